package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventAppointmentCreated   = "appointment_created"
	EventAppointmentCancelled = "appointment_cancelled"
	EventOrderCreated         = "order_created"
	EventMessageCreated       = "message_created"
	EventUnknownQuestion      = "unknown_question"
)

// AllEventTypes lists every kind the receptionist publishes.
var AllEventTypes = []string{
	EventAppointmentCreated,
	EventAppointmentCancelled,
	EventOrderCreated,
	EventMessageCreated,
	EventUnknownQuestion,
}

// AppointmentEventPayload is the appointment snapshot handed to notification consumers.
type AppointmentEventPayload struct {
	AppointmentID string    `json:"appointment_id"`
	BusinessID    string    `json:"business_id"`
	CustomerName  string    `json:"customer_name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	Service       string    `json:"service,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	RequestedTime string    `json:"requested_time,omitempty"`
}

type OrderEventPayload struct {
	OrderID             string  `json:"order_id"`
	BusinessID          string  `json:"business_id"`
	CustomerName        string  `json:"customer_name"`
	Phone               string  `json:"phone"`
	OrderItems          string  `json:"order_items"`
	Total               float64 `json:"total"`
	PickupTime          string  `json:"pickup_time"`
	DeliveryAddress     string  `json:"delivery_address,omitempty"`
	SpecialInstructions string  `json:"special_instructions,omitempty"`
}

type MessageEventPayload struct {
	MessageID  int64  `json:"message_id"`
	BusinessID string `json:"business_id"`
	CallerName string `json:"caller_name"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	Priority   string `json:"priority"`
}

type UnknownQuestionPayload struct {
	BusinessID string `json:"business_id"`
	Question   string `json:"question"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged, never returned to publishers.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every published kind.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
