package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var ErrInvalidClock = errors.New("invalid time of day")

// Clock is a wall-clock time of day in minutes since midnight (0..1439).
type Clock int

func New(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// Parse accepts "HH:MM" and "HH:MM:SS"; seconds are dropped.
func Parse(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidClock, s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: invalid second in %q", ErrInvalidClock, s)
		}
	}
	return New(h, m), nil
}

func MustParse(s string) Clock {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Of returns the wall-clock minute of t in t's own location.
func Of(t time.Time) Clock {
	return New(t.Hour(), t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant at c on the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Window is a time-of-day range with both edges inclusive.
// Start > End means the window wraps past midnight, e.g. 22:00-06:00.
type Window struct {
	Start Clock
	End   Clock
}

func (w Window) Contains(c Clock) bool {
	if w.Start <= w.End {
		return w.Start <= c && c <= w.End
	}
	return c >= w.Start || c <= w.End
}

func (w Window) Wraps() bool {
	return w.Start > w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// ParseWindow parses "HH:MM-HH:MM" (an en dash separator is also accepted).
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "–") {
		sep = "–"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("%w: expected HH:MM-HH:MM, got %q", ErrInvalidClock, s)
	}
	start, err := Parse(parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	end, err := Parse(parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	return Window{Start: start, End: end}, nil
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
