package notifier

import (
	"fmt"

	"github.com/foxseedlab/punchclock/internal/repository"
)

const (
	messageClockInFormat     = ":alarm_clock: **%s**, your shift started at %v. Don't forget to clock in."
	messageClockOutFormat    = ":house: **%s**, your shift ends at %v. Remember to clock out."
	messageBreakReturnFormat = ":coffee: **%s**, your %v has been running for %v minutes."
	messageMissedPunchFormat = ":warning: **%s**, you have been clocked in since %v. Did you forget to clock out?"
	messageUnknownFormat     = ":bell: **%s**, you have a new reminder."
)

// Text renders msg as a single chat line.
func Text(msg Message) string {
	name := msg.DisplayName
	if name == "" {
		name = msg.Email
	}
	switch msg.Type {
	case repository.NotificationClockIn:
		return fmt.Sprintf(messageClockInFormat, name, msg.Context["scheduled_start"])
	case repository.NotificationClockOut:
		return fmt.Sprintf(messageClockOutFormat, name, msg.Context["scheduled_end"])
	case repository.NotificationBreakReturn:
		return fmt.Sprintf(messageBreakReturnFormat, name, msg.Context["break_type"], msg.Context["elapsed_minutes"])
	case repository.NotificationMissedPunch:
		return fmt.Sprintf(messageMissedPunchFormat, name, msg.Context["clock_in_at"])
	default:
		return fmt.Sprintf(messageUnknownFormat, name)
	}
}
