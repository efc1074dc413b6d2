package models

import (
	"fmt"
	"time"
)

type Appointment struct {
	ID           int64     `json:"id"`
	BusinessID   string    `json:"business_id"`
	CustomerName string    `json:"customer_name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Service      string    `json:"service"`
	Notes        string    `json:"notes,omitempty"`
	Status       string    `json:"status"` // confirmed, cancelled
	CreatedAt    time.Time `json:"created_at"`
}

// PublicID is the identifier handed back to callers, e.g. "apt_42".
func (a *Appointment) PublicID() string {
	return fmt.Sprintf("apt_%d", a.ID)
}

// CandidateSlot is an unbooked start time offered instead of a conflicting one.
type CandidateSlot struct {
	Start     time.Time `json:"-"`
	DateTime  string    `json:"datetime"`
	Formatted string    `json:"formatted"`
}
