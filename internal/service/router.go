package service

import (
	"context"
	"time"

	"receptionist/internal/afterhours"
	"receptionist/internal/calendar"
	"receptionist/internal/metrics"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const msgNoHandler = "I'm not sure how to help with that. Let me take your information."

// Request is one routed call. Profile is required; Calendar is derived from it when nil.
type Request struct {
	Intent     string
	BusinessID string
	Payload    models.Payload
	Profile    *models.BusinessProfile
	Calendar   *calendar.Calendar
	AfterHours afterhours.Classification
	Now        time.Time
}

func (r *Request) calendar(logger *zerolog.Logger) *calendar.Calendar {
	if r.Calendar == nil {
		r.Calendar = calendar.New(r.Profile.BusinessHours, logger)
	}
	return r.Calendar
}

// Handler is one capability selected by intent.
type Handler interface {
	Name() string
	CanHandle(intent string) bool
	Handle(ctx context.Context, req *Request) models.Result
}

type intentSet map[string]struct{}

func newIntentSet(intents ...string) intentSet {
	set := make(intentSet, len(intents))
	for _, i := range intents {
		set[i] = struct{}{}
	}
	return set
}

func (s intentSet) has(intent string) bool {
	_, ok := s[intent]
	return ok
}

var knownIntentSets = []intentSet{schedulingIntents, cancellationIntents, orderIntents, faqIntents, messageIntents}

// intentLabel keeps caller-supplied intents out of metric label values.
func intentLabel(intent string) string {
	for _, set := range knownIntentSets {
		if set.has(intent) {
			return intent
		}
	}
	return metrics.IntentUnknown
}

// IntentRouter dispatches to the first handler whose intent set contains the intent.
type IntentRouter struct {
	handlers []Handler
	logger   *zerolog.Logger
}

func NewIntentRouter(handlers []Handler, logger *zerolog.Logger) *IntentRouter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &IntentRouter{handlers: handlers, logger: logger}
}

func (r *IntentRouter) Route(ctx context.Context, req *Request) models.Result {
	for _, h := range r.handlers {
		if h.CanHandle(req.Intent) {
			r.logger.Debug().Str("intent", req.Intent).Str("handler", h.Name()).Str("business_id", req.BusinessID).Msg("routing request")
			return h.Handle(ctx, req)
		}
	}
	r.logger.Info().Str("intent", req.Intent).Str("business_id", req.BusinessID).Msg("no handler for intent")
	return models.Failure(msgNoHandler)
}

// HandlerNames lists the enabled handlers in dispatch order.
func (r *IntentRouter) HandlerNames() []string {
	names := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		names = append(names, h.Name())
	}
	return names
}
