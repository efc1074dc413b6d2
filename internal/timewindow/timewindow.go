package timewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseable is matched by every ParseError.
var ErrUnparseable = errors.New("unparseable date or time")

// ParseError reports which part of the request could not be understood.
type ParseError struct {
	Field string // "date" or "time"
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s: %q", e.Field, e.Value)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrUnparseable
}

// DateLayouts are tried in order; the first one that parses wins.
var DateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// TimeLayouts are tried in order against the upper-cased input.
var TimeLayouts = []string{
	"15:04",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

const (
	// ISOLayout is the storage and wire format for local instants.
	ISOLayout = "2006-01-02T15:04:05"

	slotLayout  = "Monday, January 02 at 03:04 PM"
	clockLayout = "3:04 PM"
)

// ParseDateTime combines a loosely formatted date and time into an instant in loc.
func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	date, ok := parseFirst(strings.TrimSpace(dateStr), DateLayouts)
	if !ok {
		return time.Time{}, &ParseError{Field: "date", Value: dateStr}
	}

	clock, ok := parseFirst(strings.ToUpper(strings.TrimSpace(timeStr)), TimeLayouts)
	if !ok {
		return time.Time{}, &ParseError{Field: "time", Value: timeStr}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

func parseFirst(value string, layouts []string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Overlaps reports whether half-open intervals [startA,endA) and [startB,endB) intersect.
// Touching intervals do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// FormatSlot renders an instant the way it is read back to callers.
func FormatSlot(t time.Time) string {
	return t.Format(slotLayout)
}

// FormatClock renders a minute-of-day as "9:00 AM".
func FormatClock(minuteOfDay int) string {
	t := time.Date(2000, 1, 1, minuteOfDay/60, minuteOfDay%60, 0, 0, time.UTC)
	return t.Format(clockLayout)
}

// FormatISO renders a local instant without zone, matching the stored form.
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}

// ParseISO reads an instant written by FormatISO back in loc.
func ParseISO(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(ISOLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored instant %q: %w", value, err)
	}
	return t, nil
}

// MinuteOfDay returns the wall-clock minute of t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
