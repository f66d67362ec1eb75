package repository

import (
	"time"

	"github.com/foxseedlab/punchclock/internal/timeofday"
)

type BreakType string

const (
	BreakTypeBreak BreakType = "BREAK"
	BreakTypeLunch BreakType = "LUNCH"
)

func (t BreakType) Valid() bool {
	return t == BreakTypeBreak || t == BreakTypeLunch
}

type AdjustmentType string

const (
	AdjustmentAddTime      AdjustmentType = "ADD_TIME"
	AdjustmentSubtractTime AdjustmentType = "SUBTRACT_TIME"
	AdjustmentOverride     AdjustmentType = "OVERRIDE"
)

type NotificationType string

const (
	NotificationClockIn     NotificationType = "clock_in_reminder"
	NotificationClockOut    NotificationType = "clock_out_reminder"
	NotificationBreakReturn NotificationType = "break_return_reminder"
	NotificationMissedPunch NotificationType = "missed_punch_reminder"
)

type NotificationStatus string

const (
	// NotificationPending marks a claimed slot whose send has not finished.
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

type User struct {
	ID          string
	Email       string
	DisplayName string
}

type Session struct {
	ID         string
	UserID     string
	TeamID     string
	ClockInAt  time.Time
	ClockOutAt *time.Time
	LateNote   string
}

func (s *Session) IsOpen() bool {
	return s.ClockOutAt == nil
}

type BreakSegment struct {
	ID        string
	SessionID string
	UserID    string
	Type      BreakType
	StartAt   time.Time
	EndAt     *time.Time
}

func (b *BreakSegment) IsOpen() bool {
	return b.EndAt == nil
}

// Adjustment is a manual correction for a calendar day. EffectiveDate carries
// the date in its year/month/day fields; the clock part is ignored.
type Adjustment struct {
	ID            string
	UserID        string
	TeamID        string
	SessionID     *string
	Type          AdjustmentType
	Minutes       int
	EffectiveDate time.Time
	Description   string
	CreatedAt     time.Time
}

// Schedule is one weekday of a user's expected hours on a team. EndTime at
// or before StartTime means the shift ends on the following day.
type Schedule struct {
	UserID               string
	TeamID               string
	DayOfWeek            time.Weekday
	StartTime            timeofday.Clock
	EndTime              timeofday.Clock
	BreakExpectedMinutes int
	IsActive             bool
}

// StartOn and EndOn anchor the schedule to the calendar day of day.
func (s *Schedule) StartOn(day time.Time) time.Time {
	return s.StartTime.On(day)
}

func (s *Schedule) EndOn(day time.Time) time.Time {
	end := s.EndTime.On(day)
	if s.EndTime <= s.StartTime {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

type MissedPunchFlag struct {
	ID         string
	SessionID  string
	UserID     string
	TeamID     string
	Reason     string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type NotificationEvent struct {
	ID        string
	UserID    string
	Type      NotificationType
	Status    NotificationStatus
	Payload   []byte
	CreatedAt time.Time
}

type ReminderPreferences struct {
	UserID             string
	ClockInEnabled     bool
	ClockOutEnabled    bool
	BreakReturnEnabled bool
	MissedPunchEnabled bool
	QuietHours         *timeofday.Window
}

func DefaultReminderPreferences(userID string) ReminderPreferences {
	return ReminderPreferences{
		UserID:             userID,
		ClockInEnabled:     true,
		ClockOutEnabled:    true,
		BreakReturnEnabled: true,
		MissedPunchEnabled: true,
	}
}
