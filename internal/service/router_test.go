package service

import (
	"context"
	"testing"

	"receptionist/internal/metrics"
	"receptionist/internal/models"

	"github.com/stretchr/testify/assert"
)

type fakeHandler struct {
	name    string
	intents intentSet
	calls   int
}

func (f *fakeHandler) Name() string { return f.name }

func (f *fakeHandler) CanHandle(intent string) bool { return f.intents.has(intent) }

func (f *fakeHandler) Handle(_ context.Context, _ *Request) models.Result {
	f.calls++
	return models.Result{Success: true, Message: f.name}
}

func TestIntentRouter_FirstMatchWins(t *testing.T) {
	first := &fakeHandler{name: "first", intents: newIntentSet("x", "y")}
	second := &fakeHandler{name: "second", intents: newIntentSet("y", "z")}
	router := NewIntentRouter([]Handler{first, second}, nil)
	ctx := context.Background()

	assert.Equal(t, "first", router.Route(ctx, &Request{Intent: "y"}).Message)
	assert.Equal(t, "second", router.Route(ctx, &Request{Intent: "z"}).Message)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestIntentRouter_NoMatch(t *testing.T) {
	router := NewIntentRouter(nil, nil)

	res := router.Route(context.Background(), &Request{Intent: "teleport"})
	assert.False(t, res.Success)
	assert.Equal(t, "I'm not sure how to help with that. Let me take your information.", res.Message)
}

func TestIntentLabel_CollapsesUnrecognized(t *testing.T) {
	assert.Equal(t, "book_appointment", intentLabel("book_appointment"))
	assert.Equal(t, "callback", intentLabel("callback"))
	assert.Equal(t, metrics.IntentUnknown, intentLabel("teleport"))
	assert.Equal(t, metrics.IntentUnknown, intentLabel(""))
	assert.Equal(t, metrics.IntentUnknown, intentLabel("x-8f2c1e9a-session-42"))
}

func TestHandlers_IntentSets(t *testing.T) {
	r := NewReceptionist(staticProfiles{}, newTestDB(t), nil, nil, nil)

	cases := []struct {
		handler Handler
		intents []string
	}{
		{r.scheduling, []string{"schedule_appointment", "book_appointment", "make_reservation"}},
		{r.cancellation, []string{"cancellation", "cancel"}},
		{r.orders, []string{"place_order", "order_food", "make_order"}},
		{r.faq, []string{"ask_question", "faq", "inquiry"}},
		{r.messages, []string{"leave_message", "take_message", "callback"}},
	}

	all := []Handler{r.scheduling, r.cancellation, r.orders, r.faq, r.messages}
	for _, tc := range cases {
		for _, intent := range tc.intents {
			for _, h := range all {
				assert.Equal(t, h == tc.handler, h.CanHandle(intent), "%s handling %s", h.Name(), intent)
			}
		}
	}
}

func TestRouterFor_FeatureOrderAndDedup(t *testing.T) {
	r := NewReceptionist(staticProfiles{}, newTestDB(t), nil, nil, nil)
	profile := &models.BusinessProfile{
		ID:              "bistro",
		EnabledFeatures: []string{"Orders", "reservations", "faq", "appointments", "teleportation", "messages"},
	}

	assert.Equal(t, []string{"order", "scheduling", "faq", "message"}, r.RouterFor(profile).HandlerNames())
	assert.Empty(t, r.RouterFor(&models.BusinessProfile{}).HandlerNames())
}
