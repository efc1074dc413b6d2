package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"receptionist/internal/models"
)

func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.Priority == "" {
		msg.Priority = models.PriorityNormal
	}
	if msg.Status == "" {
		msg.Status = models.StatusNew
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO messages (business_id, caller_name, phone, message, priority, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.BusinessID, msg.CallerName, msg.Phone, msg.Message, msg.Priority, msg.Status, now)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return nil
}

func (db *DB) ListMessages(ctx context.Context, businessID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	rows, err := db.QueryContext(ctx, `SELECT id, business_id, caller_name, phone, message, priority, status, created_at
        FROM messages WHERE business_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var (
			m         models.Message
			createdAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.CallerName, &m.Phone, &m.Message, &m.Priority, &m.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = createdAt.Time
		out = append(out, &m)
	}
	return out, rows.Err()
}
