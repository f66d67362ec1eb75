package clock

import "github.com/foxseedlab/punchclock/internal/apperror"

var (
	ErrInvalidRequest  = apperror.Validation("invalid_request", "invalid clock request")
	ErrLateNoteTooLong = apperror.Validation("late_note_too_long", "late note is too long")

	ErrAlreadyClockedIn     = apperror.New(apperror.KindConflict, "already_clocked_in", "user already has an open session")
	ErrSessionAlreadyClosed = apperror.New(apperror.KindConflict, "session_already_closed", "session is already clocked out")
	ErrSessionClosed        = apperror.New(apperror.KindConflict, "session_closed", "cannot start a break on a closed session")
	ErrBreakAlreadyActive   = apperror.New(apperror.KindConflict, "break_already_active", "a break is already in progress")
	ErrBreakLimitReached    = apperror.New(apperror.KindConflict, "break_limit_reached", "daily break limit reached")
	ErrBreakAlreadyEnded    = apperror.New(apperror.KindConflict, "break_already_ended", "break has already ended")

	ErrSessionNotFound = apperror.New(apperror.KindNotFound, "session_not_found", "session not found")
	ErrBreakNotFound   = apperror.New(apperror.KindNotFound, "break_not_found", "break not found")
	ErrSessionNotOwned = apperror.New(apperror.KindNotOwned, "session_not_owned", "session belongs to another user")
	ErrBreakNotOwned   = apperror.New(apperror.KindNotOwned, "break_not_owned", "break belongs to another user")

	ErrAmbiguousSchedule = apperror.New(apperror.KindDependency, "ambiguous_schedule", "more than one active schedule matches today")
)
