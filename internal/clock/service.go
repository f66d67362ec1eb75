package clock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/punchclock/internal/apperror"
	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
	"github.com/foxseedlab/punchclock/internal/timeofday"
)

const maxLateNoteLength = 500

type State string

const (
	StateOut     State = "OUT"
	StateIn      State = "IN"
	StateOnBreak State = "ON_BREAK"
)

type ClockInStatus string

const (
	ClockInStatusClockedIn ClockInStatus = "CLOCKED_IN"
	// ClockInStatusPendingLateConfirmation means nothing was written; the
	// caller must repeat the request with a late note.
	ClockInStatusPendingLateConfirmation ClockInStatus = "PENDING_LATE_CONFIRMATION"
)

type ClockInRequest struct {
	UserID   string
	TeamID   string
	LateNote string
}

type ClockInResult struct {
	Status         ClockInStatus
	Session        *repository.Session
	ScheduledStart *time.Time
	LateBy         time.Duration
}

type ClockOutResult struct {
	Session     *repository.Session
	ClosedBreak *repository.BreakSegment
}

type StatusResult struct {
	State   State
	Session *repository.Session
	Break   *repository.BreakSegment
}

// Service enforces the session and break rules. Mutual exclusion is backed
// by the store's uniqueness constraints, so no in-process lock is held.
type Service struct {
	repo     repository.ClockRepository
	settings config.OrgSettings
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo repository.ClockRepository, settings config.OrgSettings, loc *time.Location) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *Service) ClockIn(ctx context.Context, req ClockInRequest) (*ClockInResult, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.TeamID) == "" {
		return nil, apperror.Wrap(ErrInvalidRequest, errors.New("user and team are required"))
	}
	note := strings.TrimSpace(req.LateNote)
	if len(note) > maxLateNoteLength {
		return nil, ErrLateNoteTooLong
	}

	open, err := s.repo.GetOpenSession(ctx, req.UserID)
	if err != nil {
		return nil, apperror.Dependency("failed to load open session", err)
	}
	if open != nil {
		return nil, apperror.Wrap(ErrAlreadyClockedIn, fmt.Errorf("open session %s", open.ID))
	}

	now := s.now()
	scheduledStart, lateBy, err := s.lateness(ctx, req.UserID, req.TeamID, now)
	if err != nil {
		return nil, err
	}
	result := &ClockInResult{ScheduledStart: scheduledStart, LateBy: lateBy}
	if lateBy > 0 && note == "" {
		slog.Info("late clock-in awaiting confirmation", "user_id", req.UserID, "team_id", req.TeamID, "late_by", lateBy.String())
		result.Status = ClockInStatusPendingLateConfirmation
		return result, nil
	}
	if lateBy <= 0 {
		note = ""
	}

	created, err := s.repo.CreateSession(ctx, repository.CreateSessionInput{
		UserID:    req.UserID,
		TeamID:    req.TeamID,
		ClockInAt: now,
		LateNote:  note,
	})
	if err != nil {
		if errors.Is(err, repository.ErrOpenSessionExists) {
			return nil, apperror.Wrap(ErrAlreadyClockedIn, err)
		}
		return nil, apperror.Dependency("failed to create session", err)
	}
	slog.Info("clocked in", "user_id", req.UserID, "team_id", req.TeamID, "session_id", created.ID, "late", lateBy > 0)
	result.Status = ClockInStatusClockedIn
	result.Session = created
	return result, nil
}

// lateness compares now with today's scheduled start for the team.
func (s *Service) lateness(ctx context.Context, userID, teamID string, now time.Time) (*time.Time, time.Duration, error) {
	localNow := now.In(s.loc)
	sched, err := s.repo.GetActiveSchedule(ctx, userID, teamID, localNow.Weekday())
	if err != nil {
		if errors.Is(err, repository.ErrAmbiguousSchedule) {
			return nil, 0, apperror.Wrap(ErrAmbiguousSchedule, err)
		}
		return nil, 0, apperror.Dependency("failed to load schedule", err)
	}
	if sched == nil {
		return nil, 0, nil
	}
	start := sched.StartOn(localNow)
	deadline := start.Add(s.settings.LateGrace())
	if !now.After(deadline) {
		return &start, 0, nil
	}
	return &start, now.Sub(start), nil
}

func (s *Service) ClockOut(ctx context.Context, userID, sessionID string) (*ClockOutResult, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsOpen() {
		return nil, ErrSessionAlreadyClosed
	}

	now := s.now()
	result := &ClockOutResult{}
	openBreak, err := s.repo.GetOpenBreak(ctx, sess.ID)
	if err != nil {
		return nil, apperror.Dependency("failed to load open break", err)
	}
	if openBreak != nil {
		closed, err := s.repo.CloseBreak(ctx, openBreak.ID, now)
		if err != nil && !errors.Is(err, repository.ErrAlreadyClosed) {
			return nil, apperror.Dependency("failed to close open break", err)
		}
		result.ClosedBreak = closed
	}

	closed, err := s.repo.CloseSession(ctx, sess.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return nil, apperror.Wrap(ErrSessionAlreadyClosed, err)
		}
		return nil, apperror.Dependency("failed to close session", err)
	}
	slog.Info("clocked out", "user_id", userID, "session_id", sess.ID, "closed_break", result.ClosedBreak != nil)
	result.Session = closed
	return result, nil
}

func (s *Service) StartBreak(ctx context.Context, userID, sessionID string, breakType repository.BreakType) (*repository.BreakSegment, error) {
	if !breakType.Valid() {
		return nil, apperror.Wrap(ErrInvalidRequest, fmt.Errorf("unknown break type %q", breakType))
	}
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsOpen() {
		return nil, ErrSessionClosed
	}

	openBreak, err := s.repo.GetOpenBreak(ctx, sess.ID)
	if err != nil {
		return nil, apperror.Dependency("failed to load open break", err)
	}
	if openBreak != nil {
		return nil, apperror.Wrap(ErrBreakAlreadyActive, fmt.Errorf("break %s started at %s", openBreak.ID, openBreak.StartAt.Format(time.RFC3339)))
	}

	now := s.now()
	dayStart := timeofday.StartOfDay(now, s.loc)
	used, err := s.repo.CountCompletedBreaks(ctx, repository.CountBreaksInput{
		UserID: userID,
		Type:   breakType,
		From:   dayStart,
		To:     dayStart.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, apperror.Dependency("failed to count breaks", err)
	}
	limit := s.dailyLimit(breakType)
	if used >= limit {
		return nil, apperror.Wrap(ErrBreakLimitReached, fmt.Errorf("%d of %d %s used today", used, limit, breakType))
	}

	created, err := s.repo.CreateBreak(ctx, repository.CreateBreakInput{
		SessionID: sess.ID,
		UserID:    userID,
		Type:      breakType,
		StartAt:   now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOpenBreakExists):
			return nil, apperror.Wrap(ErrBreakAlreadyActive, err)
		case errors.Is(err, repository.ErrAlreadyClosed):
			return nil, apperror.Wrap(ErrSessionClosed, err)
		}
		return nil, apperror.Dependency("failed to create break", err)
	}
	slog.Info("break started", "user_id", userID, "session_id", sess.ID, "break_id", created.ID, "break_type", string(breakType))
	return created, nil
}

func (s *Service) EndBreak(ctx context.Context, userID, breakID string) (*repository.BreakSegment, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(breakID) == "" {
		return nil, apperror.Wrap(ErrInvalidRequest, errors.New("user and break are required"))
	}
	b, err := s.repo.GetBreak(ctx, breakID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBreakNotFound
		}
		return nil, apperror.Dependency("failed to load break", err)
	}
	if b.UserID != userID {
		return nil, ErrBreakNotOwned
	}
	if !b.IsOpen() {
		return nil, ErrBreakAlreadyEnded
	}
	closed, err := s.repo.CloseBreak(ctx, b.ID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return nil, apperror.Wrap(ErrBreakAlreadyEnded, err)
		}
		return nil, apperror.Dependency("failed to close break", err)
	}
	slog.Info("break ended", "user_id", userID, "break_id", b.ID, "session_id", b.SessionID)
	return closed, nil
}

func (s *Service) Status(ctx context.Context, userID string) (*StatusResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.Wrap(ErrInvalidRequest, errors.New("user is required"))
	}
	sess, err := s.repo.GetOpenSession(ctx, userID)
	if err != nil {
		return nil, apperror.Dependency("failed to load open session", err)
	}
	if sess == nil {
		return &StatusResult{State: StateOut}, nil
	}
	b, err := s.repo.GetOpenBreak(ctx, sess.ID)
	if err != nil {
		return nil, apperror.Dependency("failed to load open break", err)
	}
	if b != nil {
		return &StatusResult{State: StateOnBreak, Session: sess, Break: b}, nil
	}
	return &StatusResult{State: StateIn, Session: sess}, nil
}

func (s *Service) ownedSession(ctx context.Context, userID, sessionID string) (*repository.Session, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		return nil, apperror.Wrap(ErrInvalidRequest, errors.New("user and session are required"))
	}
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, apperror.Dependency("failed to load session", err)
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotOwned
	}
	return sess, nil
}

func (s *Service) dailyLimit(t repository.BreakType) int {
	if t == repository.BreakTypeLunch {
		return s.settings.DailyLunchLimit
	}
	return s.settings.DailyBreakLimit
}
