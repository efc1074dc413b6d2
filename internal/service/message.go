package service

import (
	"context"

	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const (
	msgMessageTaken   = "I've taken your message and someone will get back to you shortly."
	msgMessageTrouble = "I'm sorry, I couldn't save your message. Please try calling again in a few minutes."
)

var messageIntents = newIntentSet("leave_message", "take_message", "callback")

type MessageHandler struct {
	store     domain.MessageStore
	publisher domain.EventPublisher
	logger    *zerolog.Logger
}

func NewMessageHandler(store domain.MessageStore, publisher domain.EventPublisher, logger *zerolog.Logger) *MessageHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &MessageHandler{store: store, publisher: publisher, logger: logger}
}

func (h *MessageHandler) Name() string { return "message" }

func (h *MessageHandler) CanHandle(intent string) bool { return messageIntents.has(intent) }

func (h *MessageHandler) Handle(ctx context.Context, req *Request) models.Result {
	p := req.Payload
	msg := &models.Message{
		BusinessID: req.BusinessID,
		CallerName: p.GetString("caller_name"),
		Phone:      p.GetString("phone"),
		Message:    p.GetString("message"),
		Priority:   p.GetStringOr("priority", models.PriorityNormal),
	}

	if err := h.store.CreateMessage(ctx, msg); err != nil {
		h.logger.Error().Err(err).Str("business_id", req.BusinessID).Msg("create message failed")
		return models.Failure(msgMessageTrouble)
	}

	h.logger.Info().Str("business_id", req.BusinessID).Int64("message_id", msg.ID).Str("priority", msg.Priority).Msg("message taken")
	if h.publisher != nil {
		payload := events.MessageEventPayload{
			MessageID:  msg.ID,
			BusinessID: msg.BusinessID,
			CallerName: msg.CallerName,
			Phone:      msg.Phone,
			Message:    msg.Message,
			Priority:   msg.Priority,
		}
		if err := h.publisher.PublishJSON(events.EventMessageCreated, payload); err != nil {
			h.logger.Error().Err(err).Int64("message_id", msg.ID).Msg("publish event error")
		}
	}

	return models.Result{Success: true, Message: msgMessageTaken}
}
