package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"receptionist/internal/models"
)

func (db *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO orders (
            business_id, customer_name, phone, order_items, total, pickup_time,
            delivery_address, special_instructions, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.BusinessID,
		order.CustomerName,
		order.Phone,
		order.OrderItems,
		order.Total,
		order.PickupTime,
		order.DeliveryAddress,
		order.SpecialInstructions,
		order.Status,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	order.ID = id
	order.CreatedAt = now
	return nil
}

func (db *DB) ListOrders(ctx context.Context, businessID string, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	rows, err := db.QueryContext(ctx, `SELECT id, business_id, customer_name, phone, order_items, total, pickup_time,
            delivery_address, special_instructions, status, created_at
        FROM orders WHERE business_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		var (
			o                                    models.Order
			items, pickup, address, instructions sql.NullString
			createdAt                            sql.NullTime
		)
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.CustomerName, &o.Phone, &items, &o.Total, &pickup,
			&address, &instructions, &o.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.OrderItems = items.String
		o.PickupTime = pickup.String
		o.DeliveryAddress = address.String
		o.SpecialInstructions = instructions.String
		o.CreatedAt = createdAt.Time
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}
