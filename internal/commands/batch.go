package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/foxseedlab/punchclock/internal/job"
	"github.com/foxseedlab/punchclock/internal/missedpunch"
	"github.com/foxseedlab/punchclock/internal/reminder"
	"github.com/foxseedlab/punchclock/internal/repository"
)

func newServeCommand(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the missed punch detector and reminders periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := do.Invoke[*job.Runner](injector)
			if err != nil {
				return fmt.Errorf("failed to resolve job runner: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			runner.Run(ctx)
			slog.Info("shutting down")
			return nil
		},
	}
}

func newDetectCommand(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "detect-missed-punches",
		Short: "Flag sessions left open past the threshold, once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := do.Invoke[*missedpunch.Detector](injector)
			if err != nil {
				return fmt.Errorf("failed to resolve detector: %w", err)
			}
			report, err := d.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderDetectorReport(report))
			return nil
		},
	}
}

func newSendRemindersCommand(injector do.Injector) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "send-reminders",
		Short: "Evaluate reminders for every user, once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := do.Invoke[*reminder.Scheduler](injector)
			if err != nil {
				return fmt.Errorf("failed to resolve reminder scheduler: %w", err)
			}
			report, err := s.Run(cmd.Context(), reminder.RunOptions{DryRun: dryRun})
			if report != nil {
				fmt.Fprint(cmd.OutOrStdout(), renderReminderReport(report))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate and log without sending or recording")
	return cmd
}

func newMigrateCommand(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store applies migrations.
			if _, err := do.Invoke[repository.Repository](injector); err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}
