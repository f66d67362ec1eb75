package commands

import (
	"context"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the CLI. Services are resolved from injector only
// when a command runs, so --help never touches the database.
func NewRootCommand(injector do.Injector) *cobra.Command {
	root := &cobra.Command{
		Use:           "punchclock",
		Short:         "Employee time tracking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(injector),
		newDetectCommand(injector),
		newSendRemindersCommand(injector),
		newMigrateCommand(injector),
		newClockInCommand(injector),
		newClockOutCommand(injector),
		newBreakStartCommand(injector),
		newBreakEndCommand(injector),
		newStatusCommand(injector),
		newTimesheetCommand(injector),
	)
	return root
}

func Execute(ctx context.Context, injector do.Injector, args []string) error {
	root := NewRootCommand(injector)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
