package service

import (
	"context"
	"strings"

	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const msgFAQUnknown = "I'm not sure about that. Let me take your information and someone will call you back."

var faqIntents = newIntentSet("ask_question", "faq", "inquiry")

// FAQHandler answers from the profile's keyword list; the first entry with a matching keyword wins.
type FAQHandler struct {
	publisher domain.EventPublisher
	logger    *zerolog.Logger
}

func NewFAQHandler(publisher domain.EventPublisher, logger *zerolog.Logger) *FAQHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FAQHandler{publisher: publisher, logger: logger}
}

func (h *FAQHandler) Name() string { return "faq" }

func (h *FAQHandler) CanHandle(intent string) bool { return faqIntents.has(intent) }

func (h *FAQHandler) Handle(_ context.Context, req *Request) models.Result {
	question := strings.ToLower(req.Payload.GetString("question"))

	if answer, ok := findAnswer(question, req.Profile.Features.FAQ.Questions); ok {
		return models.Result{Success: true, Answer: answer}
	}

	h.logger.Info().Str("business_id", req.BusinessID).Str("question", question).Msg("unknown question")
	if h.publisher != nil {
		payload := events.UnknownQuestionPayload{BusinessID: req.BusinessID, Question: question}
		if err := h.publisher.PublishJSON(events.EventUnknownQuestion, payload); err != nil {
			h.logger.Error().Err(err).Msg("publish event error")
		}
	}
	return models.Result{Success: false, Answer: msgFAQUnknown}
}

// findAnswer expects question already lowercased. Blank keywords never match.
func findAnswer(question string, entries []models.FAQEntry) (string, bool) {
	if question == "" {
		return "", false
	}
	for _, entry := range entries {
		for _, kw := range strings.Split(entry.Keywords, "|") {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(question, kw) {
				return entry.Answer, true
			}
		}
	}
	return "", false
}
