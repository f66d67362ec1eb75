package reminder

import (
	"time"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
	"github.com/foxseedlab/punchclock/internal/timeofday"
)

// QuietHours resolves the effective window: the user's own, then the
// organisation's, then DefaultQuietHours.
func QuietHours(prefs repository.ReminderPreferences, org config.OrgSettings) timeofday.Window {
	if prefs.QuietHours != nil {
		return *prefs.QuietHours
	}
	if w, ok := org.OrgQuietHours(); ok {
		return w
	}
	return config.DefaultQuietHours
}

func within(now, from, to time.Time) bool {
	return !now.Before(from) && !now.After(to)
}

// clockInDue reports the first schedule whose start window contains now.
func clockInDue(now time.Time, open *repository.Session, schedules []repository.Schedule, windowMinutes int) (*repository.Schedule, bool) {
	if open != nil {
		return nil, false
	}
	window := time.Duration(windowMinutes) * time.Minute
	for i := range schedules {
		start := schedules[i].StartOn(now)
		if within(now, start, start.Add(window)) {
			return &schedules[i], true
		}
	}
	return nil, false
}

// clockOutDue uses the schedule of the open session's team for the local
// day the session started, so an overnight shift ends on the following day.
// schedules must be the ones active on that weekday. The before and after
// windows are checked separately and both include scheduled end.
func clockOutDue(now time.Time, open *repository.Session, schedules []repository.Schedule, beforeMinutes, afterMinutes int) (time.Time, bool) {
	if open == nil {
		return time.Time{}, false
	}
	shiftDay := open.ClockInAt.In(now.Location())
	for i := range schedules {
		if schedules[i].TeamID != open.TeamID || schedules[i].DayOfWeek != shiftDay.Weekday() {
			continue
		}
		end := schedules[i].EndOn(shiftDay)
		before := end.Add(-time.Duration(beforeMinutes) * time.Minute)
		after := end.Add(time.Duration(afterMinutes) * time.Minute)
		if within(now, before, end) || within(now, end, after) {
			return end, true
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

func breakReturnDue(now time.Time, open *repository.BreakSegment, thresholdMinutes int) (int, bool) {
	if open == nil {
		return 0, false
	}
	elapsed := int(now.Sub(open.StartAt) / time.Minute)
	return elapsed, elapsed >= thresholdMinutes
}

func missedPunchDue(now time.Time, open *repository.Session, thresholdHours int) (int, bool) {
	if open == nil {
		return 0, false
	}
	elapsed := int(now.Sub(open.ClockInAt) / time.Minute)
	return elapsed, elapsed >= thresholdHours*60
}
