package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/foxseedlab/punchclock/internal/clock"
	"github.com/foxseedlab/punchclock/internal/repository"
)

const timeLayout = "2006-01-02 15:04"

func clockService(injector do.Injector) (*clock.Service, error) {
	svc, err := do.Invoke[*clock.Service](injector)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve clock service: %w", err)
	}
	return svc, nil
}

// openSessionID falls back to the user's open session when no id was given.
func openSessionID(ctx context.Context, svc *clock.Service, userID, sessionID string) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	st, err := svc.Status(ctx, userID)
	if err != nil {
		return "", err
	}
	if st.Session == nil {
		return "", clock.ErrSessionNotFound
	}
	return st.Session.ID, nil
}

func newClockInCommand(injector do.Injector) *cobra.Command {
	var userID, teamID, note string
	cmd := &cobra.Command{
		Use:   "clock-in",
		Short: "Open a work session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := clockService(injector)
			if err != nil {
				return err
			}
			res, err := svc.ClockIn(cmd.Context(), clock.ClockInRequest{UserID: userID, TeamID: teamID, LateNote: note})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Status == clock.ClockInStatusPendingLateConfirmation {
				fmt.Fprint(out, renderLateConfirmation(res))
				return nil
			}
			fmt.Fprintf(out, "clocked in at %s (session %s)\n", res.Session.ClockInAt.Format(timeLayout), res.Session.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	cmd.Flags().StringVar(&note, "note", "", "late note")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func newClockOutCommand(injector do.Injector) *cobra.Command {
	var userID, sessionID string
	cmd := &cobra.Command{
		Use:   "clock-out",
		Short: "Close the open work session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := clockService(injector)
			if err != nil {
				return err
			}
			id, err := openSessionID(cmd.Context(), svc, userID, sessionID)
			if err != nil {
				return err
			}
			res, err := svc.ClockOut(cmd.Context(), userID, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.ClosedBreak != nil {
				fmt.Fprintf(out, "ended %s break %s\n", strings.ToLower(string(res.ClosedBreak.Type)), res.ClosedBreak.ID)
			}
			fmt.Fprintf(out, "clocked out at %s (session %s)\n", res.Session.ClockOutAt.Format(timeLayout), res.Session.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to the open session)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newBreakStartCommand(injector do.Injector) *cobra.Command {
	var userID, sessionID, breakType string
	cmd := &cobra.Command{
		Use:   "break-start",
		Short: "Start a break in the open session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := clockService(injector)
			if err != nil {
				return err
			}
			id, err := openSessionID(cmd.Context(), svc, userID, sessionID)
			if err != nil {
				return err
			}
			b, err := svc.StartBreak(cmd.Context(), userID, id, repository.BreakType(strings.ToUpper(breakType)))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s started at %s (break %s)\n", b.Type, b.StartAt.Format(timeLayout), b.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to the open session)")
	cmd.Flags().StringVar(&breakType, "type", string(repository.BreakTypeBreak), "BREAK or LUNCH")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newBreakEndCommand(injector do.Injector) *cobra.Command {
	var userID, breakID string
	cmd := &cobra.Command{
		Use:   "break-end",
		Short: "End the running break",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := clockService(injector)
			if err != nil {
				return err
			}
			if breakID == "" {
				st, err := svc.Status(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if st.Break == nil {
					return clock.ErrBreakNotFound
				}
				breakID = st.Break.ID
			}
			b, err := svc.EndBreak(cmd.Context(), userID, breakID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ended at %s (%d min)\n",
				b.Type, b.EndAt.Format(timeLayout), int(b.EndAt.Sub(b.StartAt).Minutes()))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&breakID, "break", "", "break id (defaults to the running break)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatusCommand(injector do.Injector) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a user is clocked in or on a break",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := clockService(injector)
			if err != nil {
				return err
			}
			st, err := svc.Status(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(st))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
