package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "receptionist"

// Booking outcomes.
const (
	OutcomeBooked       = "booked"
	OutcomeConflict     = "conflict"
	OutcomeOutsideHours = "outside_hours"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// IntentUnknown labels webhook requests whose intent no handler recognizes.
const IntentUnknown = "unknown"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Voice webhook requests by intent and result.",
		},
		[]string{"intent", "success"},
	)

	afterHoursCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "after_hours_calls_total",
			Help:      "Calls received outside business hours by reason.",
		},
		[]string{"reason"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Scheduling attempts by outcome.",
		},
		[]string{"outcome"},
	)

	alternativeSearch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alternative_search_seconds",
			Help:      "Time spent searching alternative slots.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, webhookRequests, afterHoursCalls, bookings, alternativeSearch)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncWebhook(intent string, success bool) {
	webhookRequests.WithLabelValues(intent, strconv.FormatBool(success)).Inc()
}

func IncAfterHours(reason string) {
	afterHoursCalls.WithLabelValues(reason).Inc()
}

func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

func ObserveAlternativeSearch(d time.Duration) {
	alternativeSearch.Observe(d.Seconds())
}
