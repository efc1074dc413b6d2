// Package afterhours classifies the moment of a call against a business calendar.
package afterhours

import (
	"fmt"
	"time"

	"receptionist/internal/calendar"
	"receptionist/internal/timewindow"

	"github.com/rs/zerolog"
)

type Reason string

const (
	ReasonOpen        Reason = ""
	ReasonClosedToday Reason = "closed_today"
	ReasonBeforeOpen  Reason = "before_open"
	ReasonAfterClose  Reason = "after_close"
)

const fallbackOpening = "during our business hours"

// Classification is an annotation only; it never blocks an intent.
type Classification struct {
	AfterHours bool
	Reason     Reason
	Message    string
}

type Resolver struct {
	businessName string
	calendar     *calendar.Calendar
	logger       *zerolog.Logger
}

func NewResolver(businessName string, cal *calendar.Calendar, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{businessName: businessName, calendar: cal, logger: logger}
}

// Classify reports whether now lies outside today's hours and builds the greeting for that case.
func (r *Resolver) Classify(now time.Time) Classification {
	hours, err := r.calendar.HoursFor(now.Weekday())
	if err != nil {
		r.logger.Warn().Err(err).Str("weekday", now.Weekday().String()).Msg("cannot classify call, hours unparseable")
		return Classification{}
	}

	if hours.Closed {
		return Classification{
			AfterHours: true,
			Reason:     ReasonClosedToday,
			Message: fmt.Sprintf("Thank you for calling %s! We're closed on %ss. We'll be open %s. "+
				"I'm happy to take a message or schedule an appointment for when we're open. How can I help you?",
				r.businessName, now.Weekday(), r.nextOpening(now)),
		}
	}

	secondOfDay := now.Hour()*3600 + now.Minute()*60 + now.Second()
	switch {
	case secondOfDay < hours.Open*60:
		return Classification{
			AfterHours: true,
			Reason:     ReasonBeforeOpen,
			Message: fmt.Sprintf("Thank you for calling %s! Our office opens at %s. "+
				"I'm here to help right now though - I can schedule an appointment, answer questions, or take a message. What can I do for you?",
				r.businessName, timewindow.FormatClock(hours.Open)),
		}
	case secondOfDay > hours.Close*60:
		return Classification{
			AfterHours: true,
			Reason:     ReasonAfterClose,
			Message: fmt.Sprintf("Thank you for calling %s! Our office is currently closed for the day. We'll be open %s. "+
				"I'm here to help - I can schedule an appointment, answer questions, or take a message. How can I assist you?",
				r.businessName, r.tomorrowOrNext(now)),
		}
	}

	return Classification{}
}

func (r *Resolver) nextOpening(now time.Time) string {
	opening, ok := r.calendar.NextOpening(now)
	if !ok {
		return fallbackOpening
	}
	return opening.String()
}

func (r *Resolver) tomorrowOrNext(now time.Time) string {
	tomorrow := now.AddDate(0, 0, 1).Weekday()
	hours, err := r.calendar.HoursFor(tomorrow)
	if err != nil {
		return "tomorrow"
	}
	if hours.Closed {
		return r.nextOpening(now)
	}
	return "tomorrow at " + timewindow.FormatClock(hours.Open)
}
