package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist/internal/afterhours"
	"receptionist/internal/calendar"
	"receptionist/internal/config"
	"receptionist/internal/domain"
	"receptionist/internal/metrics"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const afterHoursBookingNote = " You'll receive a confirmation when our office opens."

var (
	ErrMissingBusinessID = errors.New("no business_id provided")
	ErrBusinessNotFound  = errors.New("business config not found")
)

// Envelope is the inbound webhook body. business_id may also arrive under metadata.
type Envelope struct {
	Intent     string         `json:"intent"`
	BusinessID string         `json:"business_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Data       models.Payload `json:"data"`
}

func (e *Envelope) ResolveBusinessID() string {
	if id := strings.TrimSpace(e.BusinessID); id != "" {
		return id
	}
	if id, ok := e.Metadata["business_id"].(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

// Receptionist turns an envelope into a result: profile, after-hours classification, routing.
type Receptionist struct {
	profiles     domain.BusinessProvider
	scheduling   *SchedulingEngine
	cancellation *CancellationHandler
	orders       *OrderHandler
	faq          *FAQHandler
	messages     *MessageHandler
	location     *time.Location
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewReceptionist(
	profiles domain.BusinessProvider,
	repo domain.Repository,
	publisher domain.EventPublisher,
	loc *time.Location,
	logger *zerolog.Logger,
) *Receptionist {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Receptionist{
		profiles:     profiles,
		scheduling:   NewSchedulingEngine(repo, publisher, loc, logger),
		cancellation: NewCancellationHandler(repo, publisher, logger),
		orders:       NewOrderHandler(repo, publisher, logger),
		faq:          NewFAQHandler(publisher, logger),
		messages:     NewMessageHandler(repo, publisher, logger),
		location:     loc,
		now:          time.Now,
		logger:       logger,
	}
}

// Handle returns ErrMissingBusinessID or ErrBusinessNotFound before any routing happens.
// Every other failure is expressed in the result.
func (r *Receptionist) Handle(ctx context.Context, env *Envelope) (models.Result, error) {
	businessID := env.ResolveBusinessID()
	if businessID == "" {
		return models.Result{}, ErrMissingBusinessID
	}

	profile, err := r.profiles.GetProfile(ctx, businessID)
	if err != nil {
		if errors.Is(err, config.ErrProfileNotFound) || errors.Is(err, config.ErrInvalidProfileID) || errors.Is(err, domain.ErrNotFound) {
			return models.Result{}, fmt.Errorf("%w: %s", ErrBusinessNotFound, businessID)
		}
		return models.Result{}, fmt.Errorf("load business profile: %w", err)
	}

	log := r.logger.With().Str("business_id", businessID).Str("intent", env.Intent).Logger()

	cal := calendar.New(profile.BusinessHours, &log)
	now := r.now().In(r.location)
	class := afterhours.NewResolver(profile.DisplayName(), cal, &log).Classify(now)
	if class.AfterHours {
		metrics.IncAfterHours(string(class.Reason))
		log.Info().Str("reason", string(class.Reason)).Msg("after hours call")
	}

	payload := env.Data
	if payload == nil {
		payload = models.Payload{}
	}

	req := &Request{
		Intent:     env.Intent,
		BusinessID: businessID,
		Payload:    payload,
		Profile:    profile,
		Calendar:   cal,
		AfterHours: class,
		Now:        now,
	}
	result := r.RouterFor(profile).Route(ctx, req)

	if class.AfterHours {
		result.AfterHours = true
		result.AfterHoursNote = class.Message
		if result.Success && schedulingIntents.has(env.Intent) {
			result.Message += afterHoursBookingNote
		}
	}

	metrics.IncWebhook(intentLabel(env.Intent), result.Success)
	return result, nil
}

// RouterFor enables handlers in enabled_features order. appointments and reservations
// share the scheduling handler, which is registered once.
func (r *Receptionist) RouterFor(profile *models.BusinessProfile) *IntentRouter {
	var handlers []Handler
	seen := make(map[string]bool)

	for _, feature := range profile.EnabledFeatures {
		var h Handler
		switch strings.ToLower(strings.TrimSpace(feature)) {
		case models.FeatureAppointments, models.FeatureReservations:
			h = r.scheduling
		case models.FeatureCancellations:
			h = r.cancellation
		case models.FeatureOrders:
			h = r.orders
		case models.FeatureFAQ:
			h = r.faq
		case models.FeatureMessages:
			h = r.messages
		default:
			r.logger.Warn().Str("business_id", profile.ID).Str("feature", feature).Msg("unknown feature in profile")
			continue
		}
		if seen[h.Name()] {
			continue
		}
		seen[h.Name()] = true
		handlers = append(handlers, h)
	}

	return NewIntentRouter(handlers, r.logger)
}
