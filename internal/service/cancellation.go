package service

import (
	"context"
	"errors"
	"fmt"

	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const (
	msgCancelMissing  = "Missing details. Provide name and phone."
	msgCancelNotFound = "No matching appointment found."
	msgCancelled      = "Your appointment at %s has been canceled successfully."
	msgCancelTrouble  = "I'm having trouble canceling that appointment. Let me take your information and someone will call you back."
)

var cancellationIntents = newIntentSet("cancellation", "cancel")

// CancellationHandler removes the first confirmed appointment matching name and phone.
// By default the lookup spans every business and the row is deleted;
// features.cancellations.scope and .mode tighten both.
type CancellationHandler struct {
	store     domain.AvailabilityStore
	publisher domain.EventPublisher
	logger    *zerolog.Logger
}

func NewCancellationHandler(store domain.AvailabilityStore, publisher domain.EventPublisher, logger *zerolog.Logger) *CancellationHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CancellationHandler{store: store, publisher: publisher, logger: logger}
}

func (h *CancellationHandler) Name() string { return "cancellation" }

func (h *CancellationHandler) CanHandle(intent string) bool { return cancellationIntents.has(intent) }

func (h *CancellationHandler) Handle(ctx context.Context, req *Request) models.Result {
	name := req.Payload.GetString("customer_name")
	phone := req.Payload.GetString("phone")
	startTime := req.Payload.GetString("start_time")

	if name == "" || phone == "" {
		return models.Failure(msgCancelMissing)
	}

	settings := req.Profile.Features.Cancellations
	scopeID := ""
	if settings.Scope == models.CancellationScopeBusiness {
		scopeID = req.BusinessID
	}

	var (
		appt *models.Appointment
		err  error
	)
	if settings.Mode == models.CancellationModeAudit {
		appt, err = h.store.CancelByIdentity(ctx, scopeID, name, phone)
	} else {
		appt, err = h.store.DeleteByIdentity(ctx, scopeID, name, phone)
	}

	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Info().Str("business_id", req.BusinessID).Msg("no appointment to cancel")
		return models.Failure(msgCancelNotFound)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("business_id", req.BusinessID).Msg("cancel appointment failed")
		return models.Failure(msgCancelTrouble)
	}

	h.logger.Info().
		Str("business_id", req.BusinessID).
		Str("appointment_id", appt.PublicID()).
		Str("owner_business_id", appt.BusinessID).
		Msg("appointment cancelled")
	h.publish(appt, startTime)

	return models.Result{
		Success: true,
		Message: fmt.Sprintf(msgCancelled, startTime),
	}
}

func (h *CancellationHandler) publish(appt *models.Appointment, requested string) {
	if h.publisher == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID: appt.PublicID(),
		BusinessID:    appt.BusinessID,
		CustomerName:  appt.CustomerName,
		Phone:         appt.Phone,
		Service:       appt.Service,
		Start:         appt.StartTime,
		End:           appt.EndTime,
		Status:        models.StatusCancelled,
		RequestedTime: requested,
	}
	if err := h.publisher.PublishJSON(events.EventAppointmentCancelled, payload); err != nil {
		h.logger.Error().Err(err).Str("appointment_id", appt.PublicID()).Msg("publish event error")
	}
}
