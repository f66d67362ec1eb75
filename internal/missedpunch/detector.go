package missedpunch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
)

const reasonTimeLayout = "2006-01-02 15:04"

type Outcome string

const (
	OutcomeFlagged        Outcome = "flagged"
	OutcomeAlreadyFlagged Outcome = "already_flagged"
	OutcomeFailed         Outcome = "failed"
)

type SessionResult struct {
	SessionID string
	UserID    string
	Outcome   Outcome
	Reason    string
	Err       error
}

type Report struct {
	Scanned        int
	Flagged        int
	AlreadyFlagged int
	Failed         int
	Results        []SessionResult
}

// Detector flags sessions left open past the org threshold. Reruns are
// no-ops for sessions that already carry an unresolved flag; flags are
// never resolved here.
type Detector struct {
	repo     repository.DetectorRepository
	settings config.OrgSettings
	loc      *time.Location
	workers  int
	now      func() time.Time
}

func NewDetector(repo repository.DetectorRepository, settings config.OrgSettings, loc *time.Location, workers int) *Detector {
	if workers <= 0 {
		workers = 1
	}
	return &Detector{
		repo:     repo,
		settings: settings,
		loc:      loc,
		workers:  workers,
		now:      time.Now,
	}
}

func (d *Detector) Run(ctx context.Context) (*Report, error) {
	now := d.now()
	cutoff := now.Add(-d.settings.MissedPunchThreshold())
	sessions, err := d.repo.ListStaleOpenSessions(ctx, cutoff, d.settings.DetectorBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale open sessions: %w", err)
	}

	results := make([]SessionResult, len(sessions))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, s := range sessions {
		g.Go(func() error {
			results[i] = d.inspect(ctx, s, now)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Scanned: len(sessions), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeFlagged:
			report.Flagged++
		case OutcomeAlreadyFlagged:
			report.AlreadyFlagged++
		case OutcomeFailed:
			report.Failed++
		}
	}
	slog.Info("missed punch scan finished",
		"scanned", report.Scanned,
		"flagged", report.Flagged,
		"already_flagged", report.AlreadyFlagged,
		"failed", report.Failed)
	return report, nil
}

func (d *Detector) inspect(ctx context.Context, s repository.Session, now time.Time) SessionResult {
	res := SessionResult{SessionID: s.ID, UserID: s.UserID}

	flagged, err := d.repo.HasUnresolvedFlag(ctx, s.ID)
	if err != nil {
		slog.Error("failed to check existing flag", "error", err, "session_id", s.ID)
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	if flagged {
		res.Outcome = OutcomeAlreadyFlagged
		return res
	}

	res.Reason = d.reason(ctx, s, now)
	_, created, err := d.repo.CreateFlagIfAbsent(ctx, repository.CreateFlagInput{
		SessionID: s.ID,
		UserID:    s.UserID,
		TeamID:    s.TeamID,
		Reason:    res.Reason,
		CreatedAt: now,
	})
	if err != nil {
		slog.Error("failed to create missed punch flag", "error", err, "session_id", s.ID)
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	if !created {
		res.Outcome = OutcomeAlreadyFlagged
		return res
	}
	slog.Info("missed punch flagged", "session_id", s.ID, "user_id", s.UserID, "reason", res.Reason)
	res.Outcome = OutcomeFlagged
	return res
}

// reason cites the scheduled end when the clock-in day has a schedule that
// already ended, and the raw threshold otherwise.
func (d *Detector) reason(ctx context.Context, s repository.Session, now time.Time) string {
	clockIn := s.ClockInAt.In(d.loc)
	thresholdReason := fmt.Sprintf("session open for more than %d hours since %s",
		d.settings.MissedPunchThresholdHours, clockIn.Format(reasonTimeLayout))

	sched, err := d.repo.GetActiveSchedule(ctx, s.UserID, s.TeamID, clockIn.Weekday())
	if err != nil {
		slog.Warn("schedule lookup failed; using threshold reason", "error", err, "session_id", s.ID)
		return thresholdReason
	}
	if sched == nil {
		return thresholdReason
	}
	end := sched.EndOn(clockIn)
	if !now.After(end) {
		return thresholdReason
	}
	return fmt.Sprintf("still clocked in after scheduled end %s (clocked in %s)",
		end.Format(reasonTimeLayout), clockIn.Format(reasonTimeLayout))
}
