package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist/internal/timewindow"

	"github.com/rs/zerolog"
)

var ErrMalformedHours = errors.New("malformed business hours")

const closedValue = "closed"

// Weekdays in the order the hours summary is rendered.
var Weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// DayHours is either closed or an open interval in minutes since midnight.
type DayHours struct {
	Closed bool
	Open   int
	Close  int
}

// Opening names the next day the business opens.
type Opening struct {
	Day     time.Weekday
	Open    int
	HasTime bool // false when that day's hours could not be parsed
}

func (o Opening) String() string {
	if !o.HasTime {
		return o.Day.String()
	}
	return fmt.Sprintf("%s at %s", o.Day, timewindow.FormatClock(o.Open))
}

// Calendar answers hours questions for one business.
type Calendar struct {
	hours  map[time.Weekday]string
	logger *zerolog.Logger
}

// New builds a calendar from weekday-name keys ("monday") to "HH:MM-HH:MM" or "closed".
// Missing days are closed.
func New(hours map[string]string, logger *zerolog.Logger) *Calendar {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	byDay := make(map[time.Weekday]string, len(hours))
	for key, value := range hours {
		if day, ok := parseWeekday(key); ok {
			byDay[day] = strings.TrimSpace(value)
		}
	}
	return &Calendar{hours: byDay, logger: logger}
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range Weekdays {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return time.Sunday, false
}

// HoursFor returns the configured hours for a weekday.
func (c *Calendar) HoursFor(day time.Weekday) (DayHours, error) {
	raw, ok := c.hours[day]
	if !ok || raw == "" || strings.EqualFold(raw, closedValue) {
		return DayHours{Closed: true}, nil
	}
	return parseRange(raw)
}

func parseRange(raw string) (DayHours, error) {
	openStr, closeStr, found := strings.Cut(raw, "-")
	if !found {
		return DayHours{}, fmt.Errorf("%w: %q", ErrMalformedHours, raw)
	}
	open, err := parseClock(openStr)
	if err != nil {
		return DayHours{}, fmt.Errorf("%w: %q", ErrMalformedHours, raw)
	}
	closing, err := parseClock(closeStr)
	if err != nil {
		return DayHours{}, fmt.Errorf("%w: %q", ErrMalformedHours, raw)
	}
	return DayHours{Open: open, Close: closing}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return timewindow.MinuteOfDay(t), nil
}

// IsWithinHours reports whether t falls inside its day's open interval, both ends inclusive.
// Unparseable hours fail open.
func (c *Calendar) IsWithinHours(t time.Time) bool {
	hours, err := c.HoursFor(t.Weekday())
	if err != nil {
		c.logger.Warn().Err(err).Str("weekday", t.Weekday().String()).Msg("hours unparseable, treating as open")
		return true
	}
	if hours.Closed {
		return false
	}

	secondOfDay := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return hours.Open*60 <= secondOfDay && secondOfDay <= hours.Close*60
}

// NextOpening scans the seven days after from's day and returns the first one not closed.
func (c *Calendar) NextOpening(from time.Time) (Opening, bool) {
	for i := 1; i <= 7; i++ {
		day := time.Weekday((int(from.Weekday()) + i) % 7)
		hours, err := c.HoursFor(day)
		if err != nil {
			return Opening{Day: day}, true
		}
		if hours.Closed {
			continue
		}
		return Opening{Day: day, Open: hours.Open, HasTime: true}, true
	}
	return Opening{}, false
}

// Summary renders the week, grouping consecutive days with equal hours,
// e.g. "Monday-Friday 9:00 AM-5:00 PM, Saturday 9:00 AM-2:00 PM".
func (c *Calendar) Summary() string {
	type span struct {
		first, last time.Weekday
		text        string
	}

	var spans []span
	for _, day := range Weekdays {
		hours, err := c.HoursFor(day)
		if err != nil || hours.Closed {
			continue
		}
		text := fmt.Sprintf("%s-%s", timewindow.FormatClock(hours.Open), timewindow.FormatClock(hours.Close))
		if n := len(spans); n > 0 && spans[n-1].text == text && nextDay(spans[n-1].last) == day {
			spans[n-1].last = day
			continue
		}
		spans = append(spans, span{first: day, last: day, text: text})
	}

	if len(spans) == 0 {
		return "by appointment only"
	}

	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		days := s.first.String()
		if s.first != s.last {
			days += "-" + s.last.String()
		}
		parts = append(parts, days+" "+s.text)
	}
	return strings.Join(parts, ", ")
}

func nextDay(d time.Weekday) time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}
