package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrOpenSessionExists = errors.New("user already has an open session")
	ErrOpenBreakExists   = errors.New("session already has an open break")
	ErrAlreadyClosed     = errors.New("record already closed")
	ErrAmbiguousSchedule = errors.New("more than one active schedule for user, team and weekday")
)

type CreateSessionInput struct {
	UserID    string
	TeamID    string
	ClockInAt time.Time
	LateNote  string
}

type CreateBreakInput struct {
	SessionID string
	UserID    string
	Type      BreakType
	StartAt   time.Time
}

type CountBreaksInput struct {
	UserID string
	Type   BreakType
	From   time.Time
	To     time.Time
}

// RangeInput selects one user's records on one team with From <= t < To.
type RangeInput struct {
	UserID string
	TeamID string
	From   time.Time
	To     time.Time
}

// DateRangeInput selects by calendar date, both ends inclusive.
type DateRangeInput struct {
	UserID   string
	TeamID   string
	FromDate time.Time
	ToDate   time.Time
}

type CreateFlagInput struct {
	SessionID string
	UserID    string
	TeamID    string
	Reason    string
	CreatedAt time.Time
}

type ClaimNotificationInput struct {
	UserID  string
	Type    NotificationType
	Payload []byte
	Now     time.Time
	Since   time.Time
}

type SessionRepository interface {
	// CreateSession returns ErrOpenSessionExists when the user already has an open session.
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// GetOpenSession returns nil, nil when the user is clocked out.
	GetOpenSession(ctx context.Context, userID string) (*Session, error)
	// CloseSession returns ErrAlreadyClosed when the session already has a clock-out.
	CloseSession(ctx context.Context, sessionID string, at time.Time) (*Session, error)
	ListSessions(ctx context.Context, input RangeInput) ([]Session, error)
	// ListStaleOpenSessions returns open sessions clocked in before the cutoff, oldest first.
	ListStaleOpenSessions(ctx context.Context, clockedInBefore time.Time, limit int) ([]Session, error)
}

type BreakRepository interface {
	// CreateBreak returns ErrOpenBreakExists when the session already has an open break.
	CreateBreak(ctx context.Context, input CreateBreakInput) (*BreakSegment, error)
	GetBreak(ctx context.Context, breakID string) (*BreakSegment, error)
	// GetOpenBreak returns nil, nil when no break is in progress.
	GetOpenBreak(ctx context.Context, sessionID string) (*BreakSegment, error)
	CloseBreak(ctx context.Context, breakID string, at time.Time) (*BreakSegment, error)
	CountCompletedBreaks(ctx context.Context, input CountBreaksInput) (int, error)
	ListBreaks(ctx context.Context, input RangeInput) ([]BreakSegment, error)
}

type AdjustmentRepository interface {
	// ListAdjustments returns adjustments in creation order.
	ListAdjustments(ctx context.Context, input DateRangeInput) ([]Adjustment, error)
}

type ScheduleRepository interface {
	// GetActiveSchedule returns nil, nil when there is none and
	// ErrAmbiguousSchedule when more than one row is active.
	GetActiveSchedule(ctx context.Context, userID, teamID string, day time.Weekday) (*Schedule, error)
	ListActiveSchedulesForDay(ctx context.Context, userID string, day time.Weekday) ([]Schedule, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	// ListUsers pages by ascending ID, starting after afterID.
	ListUsers(ctx context.Context, afterID string, limit int) ([]User, error)
	ListTeamMembers(ctx context.Context, teamID string) ([]User, error)
	// GetReminderPreferences returns nil, nil when the user never saved preferences.
	GetReminderPreferences(ctx context.Context, userID string) (*ReminderPreferences, error)
}

type FlagRepository interface {
	HasUnresolvedFlag(ctx context.Context, sessionID string) (bool, error)
	// CreateFlagIfAbsent inserts unless an unresolved flag already exists for
	// the session; created reports whether a row was written.
	CreateFlagIfAbsent(ctx context.Context, input CreateFlagInput) (flag *MissedPunchFlag, created bool, err error)
}

type NotificationRepository interface {
	HasNotificationSince(ctx context.Context, userID string, notificationType NotificationType, since time.Time) (bool, error)
	// ClaimNotification atomically inserts a PENDING event unless an event of
	// the same type exists for the user at or after input.Since.
	ClaimNotification(ctx context.Context, input ClaimNotificationInput) (event *NotificationEvent, claimed bool, err error)
	FinalizeNotification(ctx context.Context, eventID string, status NotificationStatus, payload []byte) error
}

// ClockRepository is what the clock state machine needs.
type ClockRepository interface {
	SessionRepository
	BreakRepository
	ScheduleRepository
}

// TimesheetRepository is what the timesheet service reads.
type TimesheetRepository interface {
	SessionRepository
	BreakRepository
	AdjustmentRepository
	UserRepository
}

type DetectorRepository interface {
	SessionRepository
	ScheduleRepository
	FlagRepository
}

type ReminderRepository interface {
	SessionRepository
	BreakRepository
	ScheduleRepository
	UserRepository
	NotificationRepository
}

type Repository interface {
	SessionRepository
	BreakRepository
	AdjustmentRepository
	ScheduleRepository
	UserRepository
	FlagRepository
	NotificationRepository
	Close() error
}
