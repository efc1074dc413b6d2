package models

import (
	"fmt"
	"time"
)

type Order struct {
	ID                  int64     `json:"id"`
	BusinessID          string    `json:"business_id"`
	CustomerName        string    `json:"customer_name"`
	Phone               string    `json:"phone"`
	OrderItems          string    `json:"order_items"`
	Total               float64   `json:"total"`
	PickupTime          string    `json:"pickup_time"`
	DeliveryAddress     string    `json:"delivery_address,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

func (o *Order) PublicID() string {
	return fmt.Sprintf("order_%d", o.ID)
}

type Message struct {
	ID         int64     `json:"id"`
	BusinessID string    `json:"business_id"`
	CallerName string    `json:"caller_name"`
	Phone      string    `json:"phone"`
	Message    string    `json:"message"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
