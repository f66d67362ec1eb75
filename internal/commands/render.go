package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/foxseedlab/punchclock/internal/clock"
	"github.com/foxseedlab/punchclock/internal/missedpunch"
	"github.com/foxseedlab/punchclock/internal/reminder"
	"github.com/foxseedlab/punchclock/internal/timesheet"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderLateConfirmation(res *clock.ClockInResult) string {
	scheduled := "-"
	if res.ScheduledStart != nil {
		scheduled = res.ScheduledStart.Format("15:04")
	}
	return fmt.Sprintf("late by %s (scheduled start %s); repeat with --note to confirm\n",
		res.LateBy.Truncate(time.Minute), scheduled)
}

func renderStatus(st *clock.StatusResult) string {
	switch st.State {
	case clock.StateOnBreak:
		return fmt.Sprintf("%s since %s (%s break %s, session %s)\n",
			st.State, st.Break.StartAt.Format(timeLayout), strings.ToLower(string(st.Break.Type)), st.Break.ID, st.Session.ID)
	case clock.StateIn:
		return fmt.Sprintf("%s since %s (session %s)\n", st.State, st.Session.ClockInAt.Format(timeLayout), st.Session.ID)
	default:
		return fmt.Sprintf("%s\n", st.State)
	}
}

func renderDetectorReport(r *missedpunch.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scanned %d, flagged %d, already flagged %d, failed %d\n",
		r.Scanned, r.Flagged, r.AlreadyFlagged, r.Failed)
	for _, res := range r.Results {
		switch res.Outcome {
		case missedpunch.OutcomeFlagged:
			fmt.Fprintf(&b, "  %s %s: %s\n", res.UserID, res.SessionID, res.Reason)
		case missedpunch.OutcomeFailed:
			fmt.Fprintf(&b, "  %s %s: failed: %v\n", res.UserID, res.SessionID, res.Err)
		}
	}
	return b.String()
}

func renderReminderReport(r *reminder.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "users %d, sent %d, failed %d, dry run %d, cooldown %d, quiet hours %d, errors %d\n",
		r.Users, r.Sent, r.Failed, r.DryRun, r.Cooldown, r.QuietHours, r.Errors)
	for _, res := range r.Results {
		switch res.Status {
		case reminder.StatusSent, reminder.StatusDryRun:
			fmt.Fprintf(&b, "  %s %s: %s\n", res.UserID, res.Type, res.Status)
		case reminder.StatusFailed, reminder.StatusError:
			fmt.Fprintf(&b, "  %s %s: %s: %v\n", res.UserID, res.Type, res.Status, res.Err)
		}
	}
	return b.String()
}

func renderTimesheet(entries []timesheet.Entry, loc *time.Location) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Date.Format("2006-01-02"),
			e.DisplayName,
			clockCell(e.ClockIn, loc),
			clockCell(e.ClockOut, loc),
			strconv.Itoa(e.TotalMinutes),
			strconv.Itoa(e.BreakMinutes),
			signed(e.AdjustedMinutes),
			strconv.Itoa(e.WorkMinutes),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DATE", "USER", "IN", "OUT", "TOTAL", "BREAK", "ADJ", "WORK").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String() + "\n"
}

func clockCell(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("15:04")
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
