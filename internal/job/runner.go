package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/do/v2"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/missedpunch"
	"github.com/foxseedlab/punchclock/internal/reminder"
)

type Detector interface {
	Run(ctx context.Context) (*missedpunch.Report, error)
}

type ReminderScheduler interface {
	Run(ctx context.Context, opts reminder.RunOptions) (*reminder.Report, error)
}

// Runner drives both batch jobs on a fixed interval. Each tick runs the
// detector and then the reminder scheduler; a failing job never stops the loop.
type Runner struct {
	detector  Detector
	reminders ReminderScheduler
	interval  time.Duration
}

func NewRunner(detector Detector, reminders ReminderScheduler, interval time.Duration) *Runner {
	return &Runner{
		detector:  detector,
		reminders: reminders,
		interval:  interval,
	}
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Runner, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d := do.MustInvoke[*missedpunch.Detector](i)
		s := do.MustInvoke[*reminder.Scheduler](i)
		return NewRunner(d, s, cfg.JobInterval()), nil
	})
}

// Run ticks once immediately and then every interval until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("job runner started", "interval", r.interval.String())
	r.Tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("job runner stopping")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

func (r *Runner) Tick(ctx context.Context) {
	if _, err := r.detector.Run(ctx); err != nil {
		slog.Error("missed punch detector failed", "error", err)
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := r.reminders.Run(ctx, reminder.RunOptions{}); err != nil {
		slog.Error("reminder scheduler failed", "error", err)
	}
}
