package pgstore

import (
	"context"
	"fmt"
	"time"

	"receptionist/internal/models"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO orders
			(business_id, customer_name, phone, order_items, total, pickup_time, delivery_address, special_instructions, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		order.BusinessID, order.CustomerName, order.Phone, order.OrderItems, order.Total, order.PickupTime,
		order.DeliveryAddress, order.SpecialInstructions, order.Status).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, businessID string, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT id, business_id, customer_name, phone, order_items, total, pickup_time,
			delivery_address, special_instructions, status, created_at
		FROM orders WHERE business_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.CustomerName, &o.Phone, &o.OrderItems, &o.Total, &o.PickupTime,
			&o.DeliveryAddress, &o.SpecialInstructions, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.Priority == "" {
		msg.Priority = models.PriorityNormal
	}
	if msg.Status == "" {
		msg.Status = models.StatusNew
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO messages (business_id, caller_name, phone, message, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		msg.BusinessID, msg.CallerName, msg.Phone, msg.Message, msg.Priority, msg.Status).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, businessID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT id, business_id, caller_name, phone, message, priority, status, created_at
		FROM messages WHERE business_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.CallerName, &m.Phone, &m.Message, &m.Priority, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO notification_queue
			(kind, business_id, channel, recipient, text, status, retry_count, last_error, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
		n.Kind, n.BusinessID, n.Channel, n.Recipient, n.Text, n.Status, n.RetryCount, n.LastError, n.NextRetryAt,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, kind, business_id, channel, recipient, text, status, retry_count,
			last_error, created_at, processed_at, next_retry_at
		FROM notification_queue
		WHERE status IN ($1, $2) AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at ASC LIMIT $3`, models.NotificationPending, models.NotificationRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	return pgx.CollectRows(rows, scanNotification)
}

func (s *Store) GetFailedNotifications(ctx context.Context, businessID string, limit int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, kind, business_id, channel, recipient, text, status, retry_count,
			last_error, created_at, processed_at, next_retry_at
		FROM notification_queue
		WHERE status = $1 AND business_id = $2
		ORDER BY created_at DESC, id DESC LIMIT $3`, models.NotificationFailed, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed notifications: %w", err)
	}
	return pgx.CollectRows(rows, scanNotification)
}

func scanNotification(row pgx.CollectableRow) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.Kind, &n.BusinessID, &n.Channel, &n.Recipient, &n.Text, &n.Status, &n.RetryCount,
		&n.LastError, &n.CreatedAt, &n.ProcessedAt, &n.NextRetryAt)
	return n, err
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var err error
	switch status {
	case models.NotificationRetry:
		_, err = s.pool.Exec(ctx, `UPDATE notification_queue
			SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1 WHERE id = $4`,
			status, errMsg, nextRetryAt, id)
	case models.NotificationCompleted, models.NotificationFailed:
		_, err = s.pool.Exec(ctx, `UPDATE notification_queue
			SET status = $1, last_error = $2, next_retry_at = $3, processed_at = now() WHERE id = $4`,
			status, errMsg, nextRetryAt, id)
	default:
		_, err = s.pool.Exec(ctx, `UPDATE notification_queue SET status = $1, last_error = $2, next_retry_at = $3 WHERE id = $4`,
			status, errMsg, nextRetryAt, id)
	}
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	return nil
}
