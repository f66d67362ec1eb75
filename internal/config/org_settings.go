package config

import (
	"fmt"
	"time"

	"github.com/foxseedlab/punchclock/internal/timeofday"
)

// DefaultQuietHours applies when neither the user nor the organisation sets a window.
var DefaultQuietHours = timeofday.Window{
	Start: timeofday.New(22, 0),
	End:   timeofday.New(6, 0),
}

// OrgSettings is the organisation-wide record read by the detector, the
// reminder scheduler and the clock state machine. It is passed explicitly so
// batch runs are deterministic.
type OrgSettings struct {
	MissedPunchThresholdHours     int              `toml:"missed_punch_threshold_hours"`
	ClockInReminderWindowMinutes  int              `toml:"clock_in_reminder_window_minutes"`
	ClockOutReminderBeforeMinutes int              `toml:"clock_out_reminder_before_minutes"`
	ClockOutReminderAfterMinutes  int              `toml:"clock_out_reminder_after_minutes"`
	BreakReturnThresholdMinutes   int              `toml:"break_return_threshold_minutes"`
	ReminderCooldownMinutes       int              `toml:"reminder_cooldown_minutes"`
	QuietHoursStart               *timeofday.Clock `toml:"quiet_hours_start"`
	QuietHoursEnd                 *timeofday.Clock `toml:"quiet_hours_end"`
	LateGraceMinutes              int              `toml:"late_grace_minutes"`
	DailyBreakLimit               int              `toml:"daily_break_limit"`
	DailyLunchLimit               int              `toml:"daily_lunch_limit"`
	DetectorBatchSize             int              `toml:"detector_batch_size"`
	ReminderPageSize              int              `toml:"reminder_page_size"`
	MaxTimesheetDays              int              `toml:"max_timesheet_days"`
}

func DefaultOrgSettings() OrgSettings {
	return OrgSettings{
		MissedPunchThresholdHours:     12,
		ClockInReminderWindowMinutes:  15,
		ClockOutReminderBeforeMinutes: 15,
		ClockOutReminderAfterMinutes:  30,
		BreakReturnThresholdMinutes:   30,
		ReminderCooldownMinutes:       60,
		LateGraceMinutes:              0,
		DailyBreakLimit:               2,
		DailyLunchLimit:               1,
		DetectorBatchSize:             100,
		ReminderPageSize:              200,
		MaxTimesheetDays:              93,
	}
}

func (s OrgSettings) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"missed_punch_threshold_hours", s.MissedPunchThresholdHours},
		{"break_return_threshold_minutes", s.BreakReturnThresholdMinutes},
		{"detector_batch_size", s.DetectorBatchSize},
		{"reminder_page_size", s.ReminderPageSize},
		{"max_timesheet_days", s.MaxTimesheetDays},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	nonNegative := []struct {
		name  string
		value int
	}{
		{"clock_in_reminder_window_minutes", s.ClockInReminderWindowMinutes},
		{"clock_out_reminder_before_minutes", s.ClockOutReminderBeforeMinutes},
		{"clock_out_reminder_after_minutes", s.ClockOutReminderAfterMinutes},
		{"reminder_cooldown_minutes", s.ReminderCooldownMinutes},
		{"late_grace_minutes", s.LateGraceMinutes},
		{"daily_break_limit", s.DailyBreakLimit},
		{"daily_lunch_limit", s.DailyLunchLimit},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			return fmt.Errorf("%s must not be negative, got %d", n.name, n.value)
		}
	}
	if (s.QuietHoursStart == nil) != (s.QuietHoursEnd == nil) {
		return fmt.Errorf("quiet_hours_start and quiet_hours_end must be set together")
	}
	return nil
}

// OrgQuietHours returns the organisation quiet-hours window, if configured.
func (s OrgSettings) OrgQuietHours() (timeofday.Window, bool) {
	if s.QuietHoursStart == nil || s.QuietHoursEnd == nil {
		return timeofday.Window{}, false
	}
	return timeofday.Window{Start: *s.QuietHoursStart, End: *s.QuietHoursEnd}, true
}

func (s OrgSettings) MissedPunchThreshold() time.Duration {
	return time.Duration(s.MissedPunchThresholdHours) * time.Hour
}

func (s OrgSettings) ReminderCooldown() time.Duration {
	return time.Duration(s.ReminderCooldownMinutes) * time.Minute
}

func (s OrgSettings) LateGrace() time.Duration {
	return time.Duration(s.LateGraceMinutes) * time.Minute
}
