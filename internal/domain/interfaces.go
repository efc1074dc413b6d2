package domain

import (
	"context"
	"time"

	"receptionist/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AvailabilityStore holds the appointment calendar of every business.
type AvailabilityStore interface {
	FindOverlapping(ctx context.Context, businessID string, start, end time.Time) (*models.Appointment, error)
	CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment) error
	DeleteByIdentity(ctx context.Context, businessID, customerName, phone string) (*models.Appointment, error)
	CancelByIdentity(ctx context.Context, businessID, customerName, phone string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, businessID string, limit int) ([]*models.Appointment, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, businessID string, limit int) ([]*models.Order, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, businessID string, limit int) ([]*models.Message, error)
}

// Repository is everything the receptionist persists.
type Repository interface {
	AvailabilityStore
	OrderStore
	MessageStore
	PingContext(ctx context.Context) error
	Close() error
}

type BusinessProvider interface {
	GetProfile(ctx context.Context, businessID string) (*models.BusinessProfile, error)
}

// ProfileCache keeps decoded profiles and per-key request counters close to the webhook.
type ProfileCache interface {
	GetProfile(ctx context.Context, businessID string) (*models.BusinessProfile, error)
	SetProfile(ctx context.Context, profile *models.BusinessProfile, ttl time.Duration) error
	InvalidateProfile(ctx context.Context, businessID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NotificationQueue persists outgoing notifications until they are delivered.
type NotificationQueue interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// FailedNotificationLister exposes notifications that exhausted their retries.
type FailedNotificationLister interface {
	GetFailedNotifications(ctx context.Context, businessID string, limit int) ([]models.Notification, error)
}
