package missedpunch

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Detector, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		return NewDetector(repo, cfg.Org, cfg.Location(), cfg.JobWorkers), nil
	})
}
