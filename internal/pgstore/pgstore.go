// Package pgstore is the PostgreSQL implementation of the receptionist repository.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"receptionist/internal/domain"
	"receptionist/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS appointments (
    id BIGSERIAL PRIMARY KEY,
    business_id TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    phone TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP NOT NULL,
    service TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'confirmed',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_appointments_business_time ON appointments(business_id, start_time, end_time);
CREATE INDEX IF NOT EXISTS idx_appointments_identity ON appointments(customer_name, phone);

CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    business_id TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    phone TEXT NOT NULL,
    order_items TEXT NOT NULL DEFAULT '',
    total DOUBLE PRECISION NOT NULL DEFAULT 0,
    pickup_time TEXT NOT NULL DEFAULT '',
    delivery_address TEXT NOT NULL DEFAULT '',
    special_instructions TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    business_id TEXT NOT NULL,
    caller_name TEXT NOT NULL,
    phone TEXT NOT NULL,
    message TEXT NOT NULL,
    priority TEXT NOT NULL DEFAULT 'normal',
    status TEXT NOT NULL DEFAULT 'new',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notification_queue (
    id BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    business_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    recipient TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INT NOT NULL DEFAULT 0,
    last_error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at TIMESTAMPTZ,
    next_retry_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_notification_queue_status ON notification_queue(status, next_retry_at);
`

// Store keeps appointments in PostgreSQL. Bookings for one business are serialized
// with a transaction-scoped advisory lock.
type Store struct {
	pool     *pgxpool.Pool
	location *time.Location
	logger   *zerolog.Logger
}

var _ domain.Repository = (*Store)(nil)

func Open(ctx context.Context, dsn string, loc *time.Location, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if loc == nil {
		loc = time.Local
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	logger.Info().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("postgres store initialized")
	return &Store{pool: pool, location: loc, logger: logger}, nil
}

func (s *Store) PingContext(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// wall drops the zone so TIMESTAMP columns keep the local wall clock.
func wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func (s *Store) local(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.location)
}

const appointmentColumns = `id, business_id, customer_name, phone, email, start_time, end_time, service, notes, status, created_at`

func (s *Store) scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment
	if err := row.Scan(&a.ID, &a.BusinessID, &a.CustomerName, &a.Phone, &a.Email, &a.StartTime, &a.EndTime,
		&a.Service, &a.Notes, &a.Status, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.StartTime = s.local(a.StartTime)
	a.EndTime = s.local(a.EndTime)
	return &a, nil
}

func (s *Store) FindOverlapping(ctx context.Context, businessID string, start, end time.Time) (*models.Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE business_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4
		ORDER BY start_time LIMIT 1`,
		businessID, models.StatusConfirmed, wall(end), wall(start))
	appt, err := s.scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find overlapping appointment: %w", err)
	}
	return appt, nil
}

func (s *Store) CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appt.BusinessID); err != nil {
		return fmt.Errorf("lock business %s: %w", appt.BusinessID, err)
	}

	var conflictID int64
	err = tx.QueryRow(ctx, `SELECT id FROM appointments
		WHERE business_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4 LIMIT 1`,
		appt.BusinessID, models.StatusConfirmed, wall(appt.EndTime), wall(appt.StartTime)).Scan(&conflictID)
	switch {
	case err == nil:
		return domain.ErrSlotTaken
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("check overlap in tx: %w", err)
	}

	if appt.Status == "" {
		appt.Status = models.StatusConfirmed
	}
	err = tx.QueryRow(ctx, `INSERT INTO appointments
			(business_id, customer_name, phone, email, start_time, end_time, service, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		appt.BusinessID, appt.CustomerName, appt.Phone, appt.Email, wall(appt.StartTime), wall(appt.EndTime),
		appt.Service, appt.Notes, appt.Status).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) DeleteByIdentity(ctx context.Context, businessID, customerName, phone string) (*models.Appointment, error) {
	return s.withIdentityMatch(ctx, businessID, customerName, phone, func(tx pgx.Tx, appt *models.Appointment) error {
		_, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, appt.ID)
		return err
	})
}

func (s *Store) CancelByIdentity(ctx context.Context, businessID, customerName, phone string) (*models.Appointment, error) {
	return s.withIdentityMatch(ctx, businessID, customerName, phone, func(tx pgx.Tx, appt *models.Appointment) error {
		if _, err := tx.Exec(ctx, `UPDATE appointments SET status = $1 WHERE id = $2`, models.StatusCancelled, appt.ID); err != nil {
			return err
		}
		appt.Status = models.StatusCancelled
		return nil
	})
}

func (s *Store) withIdentityMatch(
	ctx context.Context,
	businessID, customerName, phone string,
	apply func(tx pgx.Tx, appt *models.Appointment) error,
) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE customer_name = $1 AND phone = $2 AND status = $3`
	args := []interface{}{customerName, phone, models.StatusConfirmed}
	if businessID != "" {
		query += ` AND business_id = $4`
		args = append(args, businessID)
	}
	query += ` ORDER BY id LIMIT 1 FOR UPDATE`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.scanAppointment(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	if err := apply(tx, appt); err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", appt.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return appt, nil
}

func (s *Store) ListAppointments(ctx context.Context, businessID string, limit int) ([]*models.Appointment, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE business_id = $1 ORDER BY start_time DESC LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*models.Appointment
	for rows.Next() {
		appt, err := s.scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}
