package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist/internal/calendar"
	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/metrics"
	"receptionist/internal/models"
	"receptionist/internal/timewindow"

	"github.com/rs/zerolog"
)

const (
	msgUnparseable    = "I couldn't understand that date or time. Could you please repeat it? For example, 'November 5th at 2:30 PM'?"
	msgOutsideHours   = "I'm sorry, we're not open at that time. Our hours are %s. Would you like to schedule during our open hours?"
	msgSlotTaken      = "I'm sorry, that time is already booked."
	msgAlternatives   = "%s I have these times available: %s. Which works better for you?"
	msgNoAlternatives = "%s Let me take your information and we'll call you back to find a time that works."
	msgBooked         = "Perfect! I've scheduled your %s for %s. We'll see you then!"
	msgBookingTrouble = "I'm having trouble booking that appointment. Let me take your information and someone will call you back to confirm."
)

var schedulingIntents = newIntentSet("schedule_appointment", "book_appointment", "make_reservation")

// SchedulingRequest is the caller's booking ask as extracted upstream.
type SchedulingRequest struct {
	BusinessID   string
	CustomerName string
	Phone        string
	Email        string
	Date         string
	Time         string
	Service      string
	Notes        string
}

func schedulingRequestFrom(businessID string, p models.Payload) SchedulingRequest {
	return SchedulingRequest{
		BusinessID:   businessID,
		CustomerName: p.GetString("customer_name"),
		Phone:        p.GetString("phone"),
		Email:        p.GetString("email"),
		Date:         p.GetString("date"),
		Time:         p.GetString("time"),
		Service:      p.GetString("service"),
		Notes:        p.GetString("notes"),
	}
}

// SchedulingEngine books appointments: parse, hours gate, conflict check, commit.
type SchedulingEngine struct {
	store     domain.AvailabilityStore
	publisher domain.EventPublisher
	location  *time.Location
	logger    *zerolog.Logger
}

func NewSchedulingEngine(store domain.AvailabilityStore, publisher domain.EventPublisher, loc *time.Location, logger *zerolog.Logger) *SchedulingEngine {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SchedulingEngine{
		store:     store,
		publisher: publisher,
		location:  loc,
		logger:    logger,
	}
}

func (e *SchedulingEngine) Name() string { return "scheduling" }

func (e *SchedulingEngine) CanHandle(intent string) bool { return schedulingIntents.has(intent) }

func (e *SchedulingEngine) Handle(ctx context.Context, req *Request) models.Result {
	return e.Schedule(ctx, req.Profile, req.calendar(e.logger), schedulingRequestFrom(req.BusinessID, req.Payload))
}

// Schedule runs the booking gates in order; the first failing gate decides the result.
func (e *SchedulingEngine) Schedule(ctx context.Context, profile *models.BusinessProfile, cal *calendar.Calendar, sr SchedulingRequest) models.Result {
	log := e.logger.With().Str("business_id", sr.BusinessID).Logger()

	start, err := timewindow.ParseDateTime(sr.Date, sr.Time, e.location)
	if err != nil {
		log.Info().Err(err).Msg("unparseable booking time")
		metrics.IncBooking(metrics.OutcomeInvalid)
		return models.Failure(msgUnparseable)
	}

	duration := time.Duration(profile.ServiceDuration(sr.Service)) * time.Minute
	end := start.Add(duration)

	if !cal.IsWithinHours(start) {
		metrics.IncBooking(metrics.OutcomeOutsideHours)
		return models.Failure(fmt.Sprintf(msgOutsideHours, cal.Summary()))
	}

	conflict, err := e.store.FindOverlapping(ctx, sr.BusinessID, start, end)
	if err != nil {
		log.Error().Err(err).Msg("availability check failed")
		metrics.IncBooking(metrics.OutcomeError)
		return models.Failure(msgBookingTrouble)
	}
	if conflict != nil {
		log.Info().Int64("conflict_id", conflict.ID).Time("start", start).Msg("requested slot taken")
		return e.conflictResult(ctx, cal, sr.BusinessID, start, duration)
	}

	appt := &models.Appointment{
		BusinessID:   sr.BusinessID,
		CustomerName: sr.CustomerName,
		Phone:        sr.Phone,
		Email:        sr.Email,
		StartTime:    start,
		EndTime:      end,
		Service:      sr.Service,
		Notes:        sr.Notes,
		Status:       models.StatusConfirmed,
	}
	if err := e.store.CreateAppointmentWithLock(ctx, appt); err != nil {
		if errors.Is(err, domain.ErrSlotTaken) {
			log.Info().Time("start", start).Msg("slot taken by concurrent booking")
			return e.conflictResult(ctx, cal, sr.BusinessID, start, duration)
		}
		log.Error().Err(err).Msg("create appointment failed")
		metrics.IncBooking(metrics.OutcomeError)
		return models.Failure(msgBookingTrouble)
	}

	metrics.IncBooking(metrics.OutcomeBooked)
	log.Info().Str("appointment_id", appt.PublicID()).Time("start", start).Msg("appointment booked")
	e.publishCreated(appt)

	return models.Result{
		Success:       true,
		Message:       fmt.Sprintf(msgBooked, sr.Service, timewindow.FormatSlot(start)),
		AppointmentID: appt.PublicID(),
	}
}

func (e *SchedulingEngine) conflictResult(ctx context.Context, cal *calendar.Calendar, businessID string, start time.Time, duration time.Duration) models.Result {
	metrics.IncBooking(metrics.OutcomeConflict)

	alternatives, err := e.FindAlternatives(ctx, cal, businessID, start, duration)
	if err != nil {
		e.logger.Error().Err(err).Str("business_id", businessID).Msg("alternative search failed")
	}

	result := models.Result{
		Success:      false,
		Action:       models.ActionSuggestAlternatives,
		Alternatives: alternatives,
	}
	if len(alternatives) == 0 {
		result.Message = fmt.Sprintf(msgNoAlternatives, msgSlotTaken)
		return result
	}

	shown := alternatives
	if len(shown) > models.AlternativesInMessage {
		shown = shown[:models.AlternativesInMessage]
	}
	formatted := make([]string, 0, len(shown))
	for _, alt := range shown {
		formatted = append(formatted, alt.Formatted)
	}
	result.Message = fmt.Sprintf(msgAlternatives, msgSlotTaken, strings.Join(formatted, ", "))
	return result
}

// FindAlternatives walks the requested day and the six after it, stepping SlotStepMinutes
// from opening until the slot no longer ends by closing time. Closed and malformed days are skipped.
// A store error ends the search and returns what was collected so far.
func (e *SchedulingEngine) FindAlternatives(ctx context.Context, cal *calendar.Calendar, businessID string, requested time.Time, duration time.Duration) ([]models.CandidateSlot, error) {
	began := time.Now()
	defer func() { metrics.ObserveAlternativeSearch(time.Since(began)) }()

	var found []models.CandidateSlot
	year, month, day := requested.Date()
	loc := requested.Location()

	durationMinutes := int(duration / time.Minute)

	for offset := 0; offset < models.AlternativeSearchDays; offset++ {
		date := time.Date(year, month, day+offset, 0, 0, 0, 0, loc)
		hours, err := cal.HoursFor(date.Weekday())
		if err != nil || hours.Closed {
			continue
		}

		// Slots are built from wall-clock minutes so DST days keep the posted window.
		for minute := hours.Open; minute+durationMinutes <= hours.Close; minute += models.SlotStepMinutes {
			slot := time.Date(year, month, day+offset, 0, minute, 0, 0, loc)
			conflict, err := e.store.FindOverlapping(ctx, businessID, slot, slot.Add(duration))
			if err != nil {
				return found, err
			}
			if conflict != nil {
				continue
			}
			found = append(found, models.CandidateSlot{
				Start:     slot,
				DateTime:  timewindow.FormatISO(slot),
				Formatted: timewindow.FormatSlot(slot),
			})
			if len(found) >= models.MaxAlternatives {
				return found, nil
			}
		}
	}
	return found, nil
}

func (e *SchedulingEngine) publishCreated(appt *models.Appointment) {
	if e.publisher == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID: appt.PublicID(),
		BusinessID:    appt.BusinessID,
		CustomerName:  appt.CustomerName,
		Phone:         appt.Phone,
		Email:         appt.Email,
		Service:       appt.Service,
		Start:         appt.StartTime,
		End:           appt.EndTime,
		Notes:         appt.Notes,
		Status:        appt.Status,
	}
	if err := e.publisher.PublishJSON(events.EventAppointmentCreated, payload); err != nil {
		e.logger.Error().Err(err).Str("appointment_id", appt.PublicID()).Msg("publish event error")
	}
}
