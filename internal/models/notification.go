package models

import "time"

// Notification is a queued message to the business owner about a caller action.
type Notification struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	BusinessID  string     `json:"business_id"`
	Channel     string     `json:"channel"`
	Recipient   string     `json:"recipient"`
	Text        string     `json:"text"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

const (
	ChannelTelegram = "telegram"
	ChannelSMS      = "sms"
	ChannelLog      = "log"
)

const (
	NotificationPending   = "pending"
	NotificationRetry     = "retry"
	NotificationCompleted = "completed"
	NotificationFailed    = "failed"
)
