package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/notifier"
	"github.com/foxseedlab/punchclock/internal/repository"
	"github.com/foxseedlab/punchclock/internal/timeofday"
)

type Status string

const (
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusDryRun     Status = "dry_run"
	StatusCooldown   Status = "cooldown"
	StatusQuietHours Status = "quiet_hours"
	StatusError      Status = "error"
)

var errSendTimeout = errors.New("notifier did not respond before the timeout")

// Result is one outcome of a tick. Type is empty for user-level outcomes
// such as quiet hours or a failed lookup.
type Result struct {
	UserID string
	Type   repository.NotificationType
	Status Status
	Err    error
}

type Report struct {
	Users      int
	Sent       int
	Failed     int
	DryRun     int
	Cooldown   int
	QuietHours int
	Errors     int
	Results    []Result
}

func (r *Report) add(results []Result) {
	r.Users++
	for _, res := range results {
		switch res.Status {
		case StatusSent:
			r.Sent++
		case StatusFailed:
			r.Failed++
		case StatusDryRun:
			r.DryRun++
		case StatusCooldown:
			r.Cooldown++
		case StatusQuietHours:
			r.QuietHours++
		case StatusError:
			r.Errors++
		}
	}
	r.Results = append(r.Results, results...)
}

type RunOptions struct {
	// DryRun evaluates every check but neither calls the notifier nor writes events.
	DryRun bool
}

type Scheduler struct {
	repo        repository.ReminderRepository
	notifier    notifier.Notifier
	settings    config.OrgSettings
	loc         *time.Location
	workers     int
	sendTimeout time.Duration
	now         func() time.Time
}

func NewScheduler(
	repo repository.ReminderRepository,
	n notifier.Notifier,
	settings config.OrgSettings,
	loc *time.Location,
	workers int,
	sendTimeout time.Duration,
) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		repo:        repo,
		notifier:    n,
		settings:    settings,
		loc:         loc,
		workers:     workers,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// Run evaluates every user once. Per-user failures are recorded in the
// report; only a failure to page through users is returned as an error.
func (s *Scheduler) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	now := s.now().In(s.loc)
	report := &Report{}
	after := ""
	for {
		users, err := s.repo.ListUsers(ctx, after, s.settings.ReminderPageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list users: %w", err)
		}
		if len(users) == 0 {
			break
		}

		perUser := make([][]Result, len(users))
		var g errgroup.Group
		g.SetLimit(s.workers)
		for i, u := range users {
			g.Go(func() error {
				perUser[i] = s.evaluate(ctx, u, now, opts)
				return nil
			})
		}
		_ = g.Wait()
		for _, results := range perUser {
			report.add(results)
		}

		if len(users) < s.settings.ReminderPageSize {
			break
		}
		after = users[len(users)-1].ID
	}

	slog.Info("reminder run finished",
		"dry_run", opts.DryRun,
		"users", report.Users,
		"sent", report.Sent,
		"failed", report.Failed,
		"cooldown", report.Cooldown,
		"quiet_hours", report.QuietHours,
		"errors", report.Errors)
	return report, nil
}

type candidate struct {
	notificationType repository.NotificationType
	context          map[string]any
}

func (s *Scheduler) evaluate(ctx context.Context, u repository.User, now time.Time, opts RunOptions) []Result {
	userError := func(msg string, err error) []Result {
		slog.Error(msg, "error", err, "user_id", u.ID)
		return []Result{{UserID: u.ID, Status: StatusError, Err: err}}
	}

	prefs := repository.DefaultReminderPreferences(u.ID)
	saved, err := s.repo.GetReminderPreferences(ctx, u.ID)
	if err != nil {
		return userError("failed to load reminder preferences", err)
	}
	if saved != nil {
		prefs = *saved
	}
	if QuietHours(prefs, s.settings).Contains(timeofday.Of(now)) {
		slog.Debug("user in quiet hours", "user_id", u.ID)
		return []Result{{UserID: u.ID, Status: StatusQuietHours}}
	}

	open, err := s.repo.GetOpenSession(ctx, u.ID)
	if err != nil {
		return userError("failed to load open session", err)
	}
	var openBreak *repository.BreakSegment
	if open != nil {
		if openBreak, err = s.repo.GetOpenBreak(ctx, open.ID); err != nil {
			return userError("failed to load open break", err)
		}
	}
	schedules, err := s.repo.ListActiveSchedulesForDay(ctx, u.ID, now.Weekday())
	if err != nil {
		return userError("failed to load schedules", err)
	}
	// The clock-out check reads the schedule of the day the shift started.
	shiftSchedules := schedules
	if open != nil {
		if day := open.ClockInAt.In(s.loc).Weekday(); day != now.Weekday() {
			if shiftSchedules, err = s.repo.ListActiveSchedulesForDay(ctx, u.ID, day); err != nil {
				return userError("failed to load shift schedules", err)
			}
		}
	}

	var results []Result
	for _, c := range s.candidates(now, prefs, open, openBreak, schedules, shiftSchedules) {
		results = append(results, s.deliver(ctx, u, c, now, opts))
	}
	return results
}

func (s *Scheduler) candidates(
	now time.Time,
	prefs repository.ReminderPreferences,
	open *repository.Session,
	openBreak *repository.BreakSegment,
	schedules []repository.Schedule,
	shiftSchedules []repository.Schedule,
) []candidate {
	var out []candidate
	if prefs.ClockInEnabled {
		if sched, ok := clockInDue(now, open, schedules, s.settings.ClockInReminderWindowMinutes); ok {
			out = append(out, candidate{repository.NotificationClockIn, map[string]any{
				"team_id":         sched.TeamID,
				"scheduled_start": sched.StartTime.String(),
			}})
		}
	}
	if prefs.ClockOutEnabled {
		if end, ok := clockOutDue(now, open, shiftSchedules,
			s.settings.ClockOutReminderBeforeMinutes, s.settings.ClockOutReminderAfterMinutes); ok {
			out = append(out, candidate{repository.NotificationClockOut, map[string]any{
				"session_id":    open.ID,
				"team_id":       open.TeamID,
				"scheduled_end": end.Format("15:04"),
			}})
		}
	}
	if prefs.BreakReturnEnabled {
		if elapsed, ok := breakReturnDue(now, openBreak, s.settings.BreakReturnThresholdMinutes); ok {
			out = append(out, candidate{repository.NotificationBreakReturn, map[string]any{
				"break_id":        openBreak.ID,
				"break_type":      string(openBreak.Type),
				"elapsed_minutes": elapsed,
			}})
		}
	}
	if prefs.MissedPunchEnabled {
		if elapsed, ok := missedPunchDue(now, open, s.settings.MissedPunchThresholdHours); ok {
			out = append(out, candidate{repository.NotificationMissedPunch, map[string]any{
				"session_id":      open.ID,
				"clock_in_at":     open.ClockInAt.In(s.loc).Format("2006-01-02 15:04"),
				"elapsed_minutes": elapsed,
			}})
		}
	}
	return out
}

type eventPayload struct {
	notifier.Message
	Error string `json:"error,omitempty"`
}

func (s *Scheduler) deliver(ctx context.Context, u repository.User, c candidate, now time.Time, opts RunOptions) Result {
	res := Result{UserID: u.ID, Type: c.notificationType}
	since := now.Add(-s.settings.ReminderCooldown())
	msg := notifier.Message{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Type:        c.notificationType,
		Context:     c.context,
	}

	if opts.DryRun {
		recent, err := s.repo.HasNotificationSince(ctx, u.ID, c.notificationType, since)
		if err != nil {
			slog.Error("failed to check cooldown", "error", err, "user_id", u.ID, "type", c.notificationType)
			res.Status, res.Err = StatusError, err
			return res
		}
		if recent {
			res.Status = StatusCooldown
			return res
		}
		slog.Info("reminder due (dry run)", "user_id", u.ID, "type", c.notificationType, "context", c.context)
		res.Status = StatusDryRun
		return res
	}

	payload, err := json.Marshal(eventPayload{Message: msg})
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}
	event, claimed, err := s.repo.ClaimNotification(ctx, repository.ClaimNotificationInput{
		UserID:  u.ID,
		Type:    c.notificationType,
		Payload: payload,
		Now:     now,
		Since:   since,
	})
	if err != nil {
		slog.Error("failed to claim notification", "error", err, "user_id", u.ID, "type", c.notificationType)
		res.Status, res.Err = StatusError, err
		return res
	}
	if !claimed {
		res.Status = StatusCooldown
		return res
	}

	status := repository.NotificationSent
	res.Status = StatusSent
	if sendErr := s.send(ctx, msg); sendErr != nil {
		slog.Warn("notifier failed", "error", sendErr, "user_id", u.ID, "type", c.notificationType)
		status = repository.NotificationFailed
		res.Status, res.Err = StatusFailed, sendErr
		if payload, err = json.Marshal(eventPayload{Message: msg, Error: sendErr.Error()}); err != nil {
			payload = nil
		}
	}
	if err := s.repo.FinalizeNotification(ctx, event.ID, status, payload); err != nil {
		slog.Error("failed to finalize notification", "error", err, "event_id", event.ID)
		if res.Err == nil {
			res.Err = err
		}
	}
	if res.Status == StatusSent {
		slog.Info("reminder sent", "user_id", u.ID, "type", c.notificationType)
	}
	return res
}

// send bounds the notifier call even when the implementation ignores ctx.
func (s *Scheduler) send(ctx context.Context, msg notifier.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.notifier.Send(sendCtx, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("%w: %w", errSendTimeout, sendCtx.Err())
	}
}
