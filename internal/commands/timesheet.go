package commands

import (
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/foxseedlab/punchclock/internal/apperror"
	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/timesheet"
)

const dateLayout = "2006-01-02"

var errUserOrTeam = apperror.Validation("user_or_team", "--user or --team is required")

func newTimesheetCommand(injector do.Injector) *cobra.Command {
	var userID, teamID, from, to string
	cmd := &cobra.Command{
		Use:   "timesheet",
		Short: "Print daily totals for a user or a team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" && teamID == "" {
				return errUserOrTeam
			}
			cfg, err := do.Invoke[*config.Config](injector)
			if err != nil {
				return fmt.Errorf("failed to resolve config: %w", err)
			}
			svc, err := do.Invoke[*timesheet.Service](injector)
			if err != nil {
				return fmt.Errorf("failed to resolve timesheet service: %w", err)
			}
			loc := cfg.Location()
			r, err := parseRange(from, to, time.Now().In(loc))
			if err != nil {
				return err
			}
			var entries []timesheet.Entry
			if userID != "" {
				entries, err = svc.ForUser(cmd.Context(), userID, teamID, r)
			} else {
				entries, err = svc.ForTeam(cmd.Context(), teamID, r)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTimesheet(entries, loc))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&teamID, "team", "", "team id (alone: whole team; with --user: that user's sessions in the team)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default --from)")
	return cmd
}

// parseRange reads the --from and --to flags; empty values default to today.
func parseRange(from, to string, today time.Time) (timesheet.Range, error) {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if from != "" {
		d, err := parseDate(from)
		if err != nil {
			return timesheet.Range{}, err
		}
		start = d
	}
	end := start
	if to != "" {
		d, err := parseDate(to)
		if err != nil {
			return timesheet.Range{}, err
		}
		end = d
	}
	return timesheet.Range{Start: start, End: end}, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.Validation("invalid_date", "date must be YYYY-MM-DD"), err)
	}
	return d, nil
}
