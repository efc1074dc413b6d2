package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"receptionist/internal/models"
	"receptionist/internal/timewindow"
)

const appointmentColumns = `id, business_id, customer_name, phone, email, start_time, end_time, service, notes, status, created_at`

// Half-open overlap on ISO local strings, which sort chronologically.
const overlapQuery = `SELECT ` + appointmentColumns + ` FROM appointments
        WHERE business_id = ? AND status = ? AND start_time < ? AND end_time > ?
        ORDER BY start_time LIMIT 1`

// FindOverlapping returns the first confirmed appointment of the business intersecting [start,end), or nil.
func (db *DB) FindOverlapping(ctx context.Context, businessID string, start, end time.Time) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, overlapQuery,
		businessID, models.StatusConfirmed, timewindow.FormatISO(end), timewindow.FormatISO(start))
	appt, err := db.scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping appointment: %w", err)
	}
	return appt, nil
}

// CreateAppointmentWithLock re-checks the interval and inserts in one transaction.
// Writers for the same business are serialized; a conflict yields ErrSlotTaken.
func (db *DB) CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment) error {
	unlock := db.locks.Lock(appt.BusinessID)
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	start := timewindow.FormatISO(appt.StartTime)
	end := timewindow.FormatISO(appt.EndTime)

	var conflictID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM appointments WHERE business_id = ? AND status = ? AND start_time < ? AND end_time > ? LIMIT 1`,
		appt.BusinessID, models.StatusConfirmed, end, start).Scan(&conflictID)
	switch {
	case err == nil:
		db.logger.Debug().
			Str("business_id", appt.BusinessID).
			Int64("conflict_id", conflictID).
			Str("start", start).
			Msg("slot taken")
		return ErrSlotTaken
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}

	if appt.Status == "" {
		appt.Status = models.StatusConfirmed
	}
	now := time.Now()
	result, err := tx.ExecContext(ctx, `INSERT INTO appointments (
            business_id, customer_name, phone, email, start_time, end_time, service, notes, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.BusinessID,
		appt.CustomerName,
		appt.Phone,
		appt.Email,
		start,
		end,
		appt.Service,
		appt.Notes,
		appt.Status,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appointment in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit appointment: %w", err)
	}
	appt.ID = id
	appt.CreatedAt = now
	return nil
}

// DeleteByIdentity removes the first confirmed appointment matching name and phone.
// An empty businessID searches every business.
func (db *DB) DeleteByIdentity(ctx context.Context, businessID, customerName, phone string) (*models.Appointment, error) {
	return db.withIdentityMatch(ctx, businessID, customerName, phone, func(tx *sql.Tx, appt *models.Appointment) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, appt.ID)
		return err
	})
}

// CancelByIdentity marks the first confirmed match as cancelled and keeps the row.
func (db *DB) CancelByIdentity(ctx context.Context, businessID, customerName, phone string) (*models.Appointment, error) {
	return db.withIdentityMatch(ctx, businessID, customerName, phone, func(tx *sql.Tx, appt *models.Appointment) error {
		if _, err := tx.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, models.StatusCancelled, appt.ID); err != nil {
			return err
		}
		appt.Status = models.StatusCancelled
		return nil
	})
}

func (db *DB) withIdentityMatch(
	ctx context.Context,
	businessID, customerName, phone string,
	apply func(tx *sql.Tx, appt *models.Appointment) error,
) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE customer_name = ? AND phone = ? AND status = ?`
	args := []interface{}{customerName, phone, models.StatusConfirmed}
	if businessID != "" {
		query += ` AND business_id = ?`
		args = append(args, businessID)
	}
	query += ` ORDER BY id LIMIT 1`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	appt, err := db.scanAppointment(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}

	if err := apply(tx, appt); err != nil {
		return nil, fmt.Errorf("failed to update appointment %d: %w", appt.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return appt, nil
}

// ListAppointments returns the latest appointments of a business by start time, newest first.
func (db *DB) ListAppointments(ctx context.Context, businessID string, limit int) ([]*models.Appointment, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	rows, err := db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
        WHERE business_id = ? ORDER BY start_time DESC LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var out []*models.Appointment
	for rows.Next() {
		appt, err := db.scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// CountAppointments counts rows of a business regardless of status.
func (db *DB) CountAppointments(ctx context.Context, businessID string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments WHERE business_id = ?`, businessID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return n, nil
}

func (db *DB) scanAppointment(r rowScanner) (*models.Appointment, error) {
	var (
		a                 models.Appointment
		email, svc, notes sql.NullString
		startStr, endStr  string
		createdAt         sql.NullTime
	)
	if err := r.Scan(&a.ID, &a.BusinessID, &a.CustomerName, &a.Phone, &email, &startStr, &endStr, &svc, &notes, &a.Status, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if a.StartTime, err = timewindow.ParseISO(startStr, db.location); err != nil {
		return nil, err
	}
	if a.EndTime, err = timewindow.ParseISO(endStr, db.location); err != nil {
		return nil, err
	}
	a.Email = email.String
	a.Service = svc.String
	a.Notes = notes.String
	a.CreatedAt = createdAt.Time
	return &a, nil
}
