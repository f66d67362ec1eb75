package reminder

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/notifier"
	"github.com/foxseedlab/punchclock/internal/repository"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		n := do.MustInvoke[notifier.Notifier](i)
		return NewScheduler(repo, n, cfg.Org, cfg.Location(), cfg.JobWorkers, cfg.NotifyTimeout()), nil
	})
}
