package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	configloader "github.com/foxseedlab/punchclock/external/config"
	notifierimpl "github.com/foxseedlab/punchclock/external/notifier"
	repositoryimpl "github.com/foxseedlab/punchclock/external/repository"
	"github.com/foxseedlab/punchclock/internal/clock"
	"github.com/foxseedlab/punchclock/internal/commands"
	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/job"
	"github.com/foxseedlab/punchclock/internal/missedpunch"
	"github.com/foxseedlab/punchclock/internal/reminder"
	"github.com/foxseedlab/punchclock/internal/timesheet"
)

func main() {
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Debug("startup: configuration loaded", "env", cfg.Env, "notifier", cfg.NotifierKind)

	injector := setupDI(cfg)

	if err := commands.Execute(context.Background(), injector, os.Args[1:]); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	notifierimpl.RegisterDI(injector)
	clock.RegisterDI(injector)
	timesheet.RegisterDI(injector)
	missedpunch.RegisterDI(injector)
	reminder.RegisterDI(injector)
	job.RegisterDI(injector)

	return injector
}
