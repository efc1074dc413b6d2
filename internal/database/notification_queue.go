package database

import (
	"context"
	"fmt"
	"time"

	"receptionist/internal/models"
)

const notificationColumns = `id, kind, business_id, channel, recipient, text, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO notification_queue
            (kind, business_id, channel, recipient, text, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Kind,
		n.BusinessID,
		n.Channel,
		n.Recipient,
		n.Text,
		n.Status,
		n.RetryCount,
		n.LastError,
		now,
		n.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	return nil
}

// GetPendingNotifications returns pending and due retry rows, oldest first.
func (db *DB) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_queue
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	return db.queryNotifications(ctx, query, models.NotificationPending, models.NotificationRetry, time.Now(), limit)
}

// GetFailedNotifications returns a business's undeliverable rows, newest first.
func (db *DB) GetFailedNotifications(ctx context.Context, businessID string, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_queue
              WHERE status = ? AND business_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return db.queryNotifications(ctx, query, models.NotificationFailed, businessID, limit)
}

func (db *DB) UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.NotificationRetry:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.NotificationCompleted, models.NotificationFailed:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return nil
}

func (db *DB) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]models.Notification, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID, &n.Kind, &n.BusinessID, &n.Channel, &n.Recipient, &n.Text, &n.Status,
			&n.RetryCount, &n.LastError, &n.CreatedAt, &n.ProcessedAt, &n.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
