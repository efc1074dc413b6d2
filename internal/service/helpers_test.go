package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"receptionist/internal/config"
	"receptionist/internal/database"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// 2026-03-16 is a Monday.
func mon(hour, minute int) time.Time {
	return time.Date(2026, 3, 16, hour, minute, 0, 0, time.UTC)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.SetLocation(time.UTC)
	t.Cleanup(func() { db.Close() })
	return db
}

func dentalProfile() *models.BusinessProfile {
	return &models.BusinessProfile{
		ID:           "dental",
		BusinessName: "Bright Smiles Dental",
		BusinessHours: map[string]string{
			"monday":    "09:00-17:00",
			"tuesday":   "09:00-17:00",
			"wednesday": "09:00-17:00",
			"thursday":  "09:00-17:00",
			"friday":    "09:00-17:00",
			"saturday":  "closed",
			"sunday":    "closed",
		},
		EnabledFeatures: []string{"appointments", "cancellations", "faq", "messages"},
		Features: models.FeatureConfig{
			Appointments: models.AppointmentFeature{
				AppointmentTypes: []models.ServiceType{
					{Name: "Cleaning", Duration: 30},
					{Name: "Root Canal", Duration: 90},
				},
			},
			FAQ: models.FAQFeature{
				Questions: []models.FAQEntry{
					{Keywords: "insurance|coverage", Answer: "We accept most major insurance plans."},
					{Keywords: "parking", Answer: "Free parking is behind the building."},
				},
			},
		},
	}
}

func insertAppointment(t *testing.T, db *database.DB, businessID, name, phone string, start time.Time, minutes int) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		BusinessID:   businessID,
		CustomerName: name,
		Phone:        phone,
		StartTime:    start,
		EndTime:      start.Add(time.Duration(minutes) * time.Minute),
		Service:      "Cleaning",
	}
	require.NoError(t, db.CreateAppointmentWithLock(context.Background(), appt))
	return appt
}

type publishedEvent struct {
	kind    string
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{kind: eventType, payload: payload})
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

type staticProfiles map[string]*models.BusinessProfile

func (s staticProfiles) GetProfile(_ context.Context, id string) (*models.BusinessProfile, error) {
	p, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrProfileNotFound, id)
	}
	return p, nil
}
