package clock

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		return NewService(repo, cfg.Org, cfg.Location()), nil
	})
}
