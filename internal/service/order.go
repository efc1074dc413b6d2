package service

import (
	"context"
	"fmt"

	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const (
	msgOrderPlaced  = "Great! Your order is confirmed for pickup at %s. Order number #%d."
	msgOrderTrouble = "I'm having trouble placing that order. Let me take your information and someone will call you back."
)

var orderIntents = newIntentSet("place_order", "order_food", "make_order")

type OrderHandler struct {
	store     domain.OrderStore
	publisher domain.EventPublisher
	logger    *zerolog.Logger
}

func NewOrderHandler(store domain.OrderStore, publisher domain.EventPublisher, logger *zerolog.Logger) *OrderHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &OrderHandler{store: store, publisher: publisher, logger: logger}
}

func (h *OrderHandler) Name() string { return "order" }

func (h *OrderHandler) CanHandle(intent string) bool { return orderIntents.has(intent) }

func (h *OrderHandler) Handle(ctx context.Context, req *Request) models.Result {
	p := req.Payload
	order := &models.Order{
		BusinessID:          req.BusinessID,
		CustomerName:        p.GetString("customer_name"),
		Phone:               p.GetString("phone"),
		OrderItems:          p.GetString("order_items"),
		Total:               p.GetFloat("total"),
		PickupTime:          p.GetString("pickup_time"),
		DeliveryAddress:     p.GetString("delivery_address"),
		SpecialInstructions: p.GetString("special_instructions"),
	}

	if err := h.store.CreateOrder(ctx, order); err != nil {
		h.logger.Error().Err(err).Str("business_id", req.BusinessID).Msg("create order failed")
		return models.Failure(msgOrderTrouble)
	}

	h.logger.Info().Str("business_id", req.BusinessID).Str("order_id", order.PublicID()).Msg("order placed")
	if h.publisher != nil {
		payload := events.OrderEventPayload{
			OrderID:             order.PublicID(),
			BusinessID:          order.BusinessID,
			CustomerName:        order.CustomerName,
			Phone:               order.Phone,
			OrderItems:          order.OrderItems,
			Total:               order.Total,
			PickupTime:          order.PickupTime,
			DeliveryAddress:     order.DeliveryAddress,
			SpecialInstructions: order.SpecialInstructions,
		}
		if err := h.publisher.PublishJSON(events.EventOrderCreated, payload); err != nil {
			h.logger.Error().Err(err).Str("order_id", order.PublicID()).Msg("publish event error")
		}
	}

	return models.Result{
		Success: true,
		Message: fmt.Sprintf(msgOrderPlaced, order.PickupTime, order.ID),
		OrderID: order.PublicID(),
	}
}
