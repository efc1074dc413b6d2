package service

import (
	"context"
	"testing"

	"receptionist/internal/events"
	"receptionist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHandler(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	h := NewOrderHandler(db, pub, nil)

	res := h.Handle(ctx, &Request{
		Intent:     "place_order",
		BusinessID: "pizza",
		Profile:    &models.BusinessProfile{ID: "pizza"},
		Payload: models.Payload{
			"customer_name": "Tony",
			"phone":         "+1555",
			"order_items":   "2 large pepperoni",
			"total":         "$31.50",
			"pickup_time":   "6:30 PM",
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, "order_1", res.OrderID)
	assert.Equal(t, "Great! Your order is confirmed for pickup at 6:30 PM. Order number #1.", res.Message)

	orders, err := db.ListOrders(ctx, "pizza", 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 31.5, orders[0].Total)
	assert.Equal(t, models.StatusPending, orders[0].Status)

	require.Equal(t, []string{events.EventOrderCreated}, pub.kinds())
}

func TestMessageHandler(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	h := NewMessageHandler(db, pub, nil)

	res := h.Handle(ctx, &Request{
		Intent:     "leave_message",
		BusinessID: "dental",
		Profile:    dentalProfile(),
		Payload: models.Payload{
			"caller_name": "Sam",
			"phone":       "+1555",
			"message":     "Please call me about my bill",
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, msgMessageTaken, res.Message)

	msgs, err := db.ListMessages(ctx, "dental", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PriorityNormal, msgs[0].Priority)
	assert.Equal(t, models.StatusNew, msgs[0].Status)

	require.Equal(t, []string{events.EventMessageCreated}, pub.kinds())
	payload := pub.events[0].payload.(events.MessageEventPayload)
	assert.Equal(t, msgs[0].ID, payload.MessageID)
}

func TestFAQHandler(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewFAQHandler(pub, nil)
	profile := dentalProfile()
	ask := func(q string) models.Result {
		return h.Handle(context.Background(), &Request{
			Intent:     "faq",
			BusinessID: "dental",
			Profile:    profile,
			Payload:    models.Payload{"question": q},
		})
	}

	t.Run("KeywordHit", func(t *testing.T) {
		res := ask("Do you take my Insurance?")
		assert.True(t, res.Success)
		assert.Equal(t, "We accept most major insurance plans.", res.Answer)
	})

	t.Run("SecondKeyword", func(t *testing.T) {
		res := ask("what does my coverage look like")
		assert.Equal(t, "We accept most major insurance plans.", res.Answer)
	})

	t.Run("FirstEntryWins", func(t *testing.T) {
		res := ask("is parking covered by insurance")
		assert.Equal(t, "We accept most major insurance plans.", res.Answer)
	})

	t.Run("Miss", func(t *testing.T) {
		res := ask("Do you whiten teeth?")
		assert.False(t, res.Success)
		assert.Equal(t, msgFAQUnknown, res.Answer)
		assert.Equal(t, []string{events.EventUnknownQuestion}, pub.kinds())
	})
}

func TestFindAnswer_BlankKeywordsNeverMatch(t *testing.T) {
	entries := []models.FAQEntry{{Keywords: "hours| ", Answer: "9 to 5"}}

	_, ok := findAnswer("where are you", entries)
	assert.False(t, ok)

	answer, ok := findAnswer("what are your hours", entries)
	assert.True(t, ok)
	assert.Equal(t, "9 to 5", answer)

	_, ok = findAnswer("", entries)
	assert.False(t, ok)
}
