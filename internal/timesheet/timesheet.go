package timesheet

import (
	"fmt"
	"sort"
	"time"

	"github.com/foxseedlab/punchclock/internal/apperror"
	"github.com/foxseedlab/punchclock/internal/repository"
)

var (
	ErrInvalidRange = apperror.Validation("invalid_range", "end date is before start date")
	ErrRangeTooLong = apperror.Validation("range_too_long", "date range exceeds the maximum window")
)

// Entry is one calendar day of derived totals. WorkMinutes is
// TotalMinutes - BreakMinutes + AdjustedMinutes and is never clamped.
type Entry struct {
	Date            time.Time
	UserID          string
	DisplayName     string
	ClockIn         *time.Time
	ClockOut        *time.Time
	TotalMinutes    int
	BreakMinutes    int
	WorkMinutes     int
	Adjustments     []repository.Adjustment
	AdjustedMinutes int
}

// Range is a closed interval of calendar dates; only the year, month and day
// of Start and End are used.
type Range struct {
	Start time.Time
	End   time.Time
}

// Days validates r against maxDays and returns the number of days in it.
func (r Range) Days(maxDays int) (int, error) {
	start := civilUTC(r.Start)
	end := civilUTC(r.End)
	if end.Before(start) {
		return 0, ErrInvalidRange
	}
	n := int(end.Sub(start).Hours()/24) + 1
	if maxDays > 0 && n > maxDays {
		return 0, apperror.Wrap(ErrRangeTooLong, fmt.Errorf("%d days requested, at most %d allowed", n, maxDays))
	}
	return n, nil
}

// Bounds returns [first local midnight, midnight after the last day).
func (r Range) Bounds(loc *time.Location) (time.Time, time.Time) {
	from := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(r.End.Year(), r.End.Month(), r.End.Day()+1, 0, 0, 0, 0, loc)
	return from, to
}

type Activity struct {
	Sessions    []repository.Session
	Breaks      []repository.BreakSegment
	Adjustments []repository.Adjustment
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

func civilUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

// Build turns one user's activity into one entry per day of r. Sessions and
// breaks are keyed by the local date of their start; adjustments by their
// effective date. Open sessions and open breaks contribute nothing to totals.
func Build(r Range, loc *time.Location, maxDays int, act Activity) ([]Entry, error) {
	n, err := r.Days(maxDays)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, n)
	index := make(map[dayKey]int, n)
	for i := 0; i < n; i++ {
		date := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day()+i, 0, 0, 0, 0, loc)
		entries[i] = Entry{Date: date, Adjustments: []repository.Adjustment{}}
		index[keyOf(date)] = i
	}

	for _, s := range act.Sessions {
		clockIn := s.ClockInAt.In(loc)
		i, ok := index[keyOf(clockIn)]
		if !ok {
			continue
		}
		e := &entries[i]
		if e.ClockIn == nil || clockIn.Before(*e.ClockIn) {
			ci := clockIn
			e.ClockIn = &ci
		}
		if s.ClockOutAt == nil {
			continue
		}
		clockOut := s.ClockOutAt.In(loc)
		if e.ClockOut == nil || clockOut.After(*e.ClockOut) {
			co := clockOut
			e.ClockOut = &co
		}
		e.TotalMinutes += minutesBetween(clockIn, clockOut)
	}

	for _, b := range act.Breaks {
		if b.EndAt == nil {
			continue
		}
		i, ok := index[keyOf(b.StartAt.In(loc))]
		if !ok {
			continue
		}
		entries[i].BreakMinutes += minutesBetween(b.StartAt, *b.EndAt)
	}

	for _, a := range act.Adjustments {
		i, ok := index[keyOf(a.EffectiveDate)]
		if !ok {
			continue
		}
		e := &entries[i]
		e.Adjustments = append(e.Adjustments, a)
		switch a.Type {
		case repository.AdjustmentAddTime:
			e.AdjustedMinutes += a.Minutes
		case repository.AdjustmentSubtractTime:
			e.AdjustedMinutes -= a.Minutes
		case repository.AdjustmentOverride:
			// Last override wins and discards earlier deltas for the day.
			e.AdjustedMinutes = a.Minutes - (e.TotalMinutes - e.BreakMinutes)
		}
	}

	for i := range entries {
		e := &entries[i]
		e.WorkMinutes = e.TotalMinutes - e.BreakMinutes + e.AdjustedMinutes
	}
	return entries, nil
}

type MemberActivity struct {
	User repository.User
	Activity
}

// BuildTeam runs Build for each member over the same range, tags the entries
// and orders them by date, then display name.
func BuildTeam(r Range, loc *time.Location, maxDays int, members []MemberActivity) ([]Entry, error) {
	if _, err := r.Days(maxDays); err != nil {
		return nil, err
	}
	var all []Entry
	for _, m := range members {
		entries, err := Build(r, loc, maxDays, m.Activity)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			entries[i].UserID = m.User.ID
			entries[i].DisplayName = m.User.DisplayName
		}
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		if all[i].DisplayName != all[j].DisplayName {
			return all[i].DisplayName < all[j].DisplayName
		}
		return all[i].UserID < all[j].UserID
	})
	return all, nil
}
