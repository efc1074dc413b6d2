package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int
	bus.Subscribe(EventOrderCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventOrderCreated, OrderEventPayload{OrderID: "order_7", BusinessID: "pizza", Total: 12.5})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventOrderCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded OrderEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "order_7", decoded.OrderID)
	assert.Equal(t, 12.5, decoded.Total)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return errors.New("ignored") })

	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(nil)
	var kinds []string
	bus.SubscribeAll(func(e *Event) error {
		kinds = append(kinds, e.Type)
		return nil
	})

	for _, k := range AllEventTypes {
		require.NoError(t, bus.PublishJSON(k, UnknownQuestionPayload{BusinessID: "x"}))
	}
	assert.Equal(t, AllEventTypes, kinds)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: "nobody", CreatedAt: time.Now()})
	})
}

func TestNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventMessageCreated, nil))
}

func TestPublishJSON_Unmarshalable(t *testing.T) {
	bus := NewEventBus(nil)
	assert.Error(t, bus.PublishJSON("x", make(chan int)))
}
