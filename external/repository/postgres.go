package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foxseedlab/punchclock/internal/repository"
	"github.com/foxseedlab/punchclock/internal/timeofday"
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextFormat = "22P02"

	sessionColumns  = `id::text, user_id::text, team_id, clock_in_at, clock_out_at, late_note`
	breakColumns    = `id::text, session_id::text, user_id::text, break_type, break_start_at, break_end_at`
	scheduleColumns = `user_id::text, team_id, day_of_week, start_time, end_time, break_expected_minutes, is_active`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// lookupError maps a missing row or a malformed id to ErrNotFound.
func lookupError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == pgInvalidTextFormat {
		return repository.ErrNotFound
	}
	return err
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var clockOutAt *time.Time
	if err := row.Scan(&s.ID, &s.UserID, &s.TeamID, &s.ClockInAt, &clockOutAt, &s.LateNote); err != nil {
		return nil, err
	}
	s.ClockOutAt = clockOutAt
	return &s, nil
}

func scanBreak(row pgx.Row) (*repository.BreakSegment, error) {
	var b repository.BreakSegment
	var breakType string
	var endAt *time.Time
	if err := row.Scan(&b.ID, &b.SessionID, &b.UserID, &breakType, &b.StartAt, &endAt); err != nil {
		return nil, err
	}
	b.Type = repository.BreakType(breakType)
	b.EndAt = endAt
	return &b, nil
}

func clockFromTime(t pgtype.Time) timeofday.Clock {
	return timeofday.Clock(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func scanSchedule(row pgx.Row) (*repository.Schedule, error) {
	var s repository.Schedule
	var dow int16
	var start, end pgtype.Time
	if err := row.Scan(&s.UserID, &s.TeamID, &dow, &start, &end, &s.BreakExpectedMinutes, &s.IsActive); err != nil {
		return nil, err
	}
	s.DayOfWeek = time.Weekday(dow)
	s.StartTime = clockFromTime(start)
	s.EndTime = clockFromTime(end)
	return &s, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, team_id, clock_in_at, late_note)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+sessionColumns,
		input.UserID, input.TeamID, input.ClockInAt, input.LateNote)
	s, err := scanSession(row)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return nil, repository.ErrOpenSessionExists
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	s, err := scanSession(row)
	if err != nil {
		return nil, lookupError(err)
	}
	return s, nil
}

func (r *PostgresRepository) GetOpenSession(ctx context.Context, userID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND clock_out_at IS NULL
		 LIMIT 1`,
		userID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(lookupError(err), repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) CloseSession(ctx context.Context, sessionID string, at time.Time) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE sessions SET clock_out_at = $2
		 WHERE id = $1 AND clock_out_at IS NULL
		 RETURNING `+sessionColumns,
		sessionID, at)
	s, err := scanSession(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(lookupError(err), repository.ErrNotFound) {
		return nil, err
	}
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return nil, repository.ErrAlreadyClosed
}

func (r *PostgresRepository) ListSessions(ctx context.Context, input repository.RangeInput) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND ($2 = '' OR team_id = $2)
		   AND clock_in_at >= $3 AND clock_in_at < $4
		 ORDER BY clock_in_at`,
		input.UserID, input.TeamID, input.From, input.To)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSession)
}

func (r *PostgresRepository) ListStaleOpenSessions(ctx context.Context, clockedInBefore time.Time, limit int) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE clock_out_at IS NULL AND clock_in_at < $1
		 ORDER BY clock_in_at
		 LIMIT $2`,
		clockedInBefore, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSession)
}

// CreateBreak inserts only while the parent session is open.
func (r *PostgresRepository) CreateBreak(ctx context.Context, input repository.CreateBreakInput) (*repository.BreakSegment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO break_segments (session_id, user_id, break_type, break_start_at)
		 SELECT s.id, $2, $3, $4 FROM sessions s
		 WHERE s.id = $1 AND s.clock_out_at IS NULL
		 RETURNING `+breakColumns,
		input.SessionID, input.UserID, string(input.Type), input.StartAt)
	b, err := scanBreak(row)
	if err != nil {
		switch {
		case pgErrorCode(err) == pgUniqueViolation:
			return nil, repository.ErrOpenBreakExists
		case errors.Is(err, pgx.ErrNoRows):
			return nil, repository.ErrAlreadyClosed
		}
		return nil, err
	}
	return b, nil
}

func (r *PostgresRepository) GetBreak(ctx context.Context, breakID string) (*repository.BreakSegment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+breakColumns+` FROM break_segments WHERE id = $1`, breakID)
	b, err := scanBreak(row)
	if err != nil {
		return nil, lookupError(err)
	}
	return b, nil
}

func (r *PostgresRepository) GetOpenBreak(ctx context.Context, sessionID string) (*repository.BreakSegment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+breakColumns+` FROM break_segments
		 WHERE session_id = $1 AND break_end_at IS NULL
		 LIMIT 1`,
		sessionID)
	b, err := scanBreak(row)
	if err != nil {
		if errors.Is(lookupError(err), repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (r *PostgresRepository) CloseBreak(ctx context.Context, breakID string, at time.Time) (*repository.BreakSegment, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE break_segments SET break_end_at = $2
		 WHERE id = $1 AND break_end_at IS NULL
		 RETURNING `+breakColumns,
		breakID, at)
	b, err := scanBreak(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(lookupError(err), repository.ErrNotFound) {
		return nil, err
	}
	if _, err := r.GetBreak(ctx, breakID); err != nil {
		return nil, err
	}
	return nil, repository.ErrAlreadyClosed
}

func (r *PostgresRepository) CountCompletedBreaks(ctx context.Context, input repository.CountBreaksInput) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM break_segments
		 WHERE user_id = $1 AND break_type = $2 AND break_end_at IS NOT NULL
		   AND break_start_at >= $3 AND break_start_at < $4`,
		input.UserID, string(input.Type), input.From, input.To).Scan(&n)
	return n, err
}

func (r *PostgresRepository) ListBreaks(ctx context.Context, input repository.RangeInput) ([]repository.BreakSegment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id::text, b.session_id::text, b.user_id::text, b.break_type, b.break_start_at, b.break_end_at
		 FROM break_segments b JOIN sessions s ON s.id = b.session_id
		 WHERE b.user_id = $1 AND ($2 = '' OR s.team_id = $2)
		   AND b.break_start_at >= $3 AND b.break_start_at < $4
		 ORDER BY b.break_start_at`,
		input.UserID, input.TeamID, input.From, input.To)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBreak)
}

func (r *PostgresRepository) ListAdjustments(ctx context.Context, input repository.DateRangeInput) ([]repository.Adjustment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, user_id::text, team_id, session_id::text, adjustment_type, minutes,
		        effective_date, description, created_at
		 FROM adjustments
		 WHERE user_id = $1 AND ($2 = '' OR team_id = $2)
		   AND effective_date BETWEEN $3::date AND $4::date
		 ORDER BY created_at, id`,
		input.UserID, input.TeamID, input.FromDate.Format(time.DateOnly), input.ToDate.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Adjustment
	for rows.Next() {
		var a repository.Adjustment
		var adjType string
		if err := rows.Scan(&a.ID, &a.UserID, &a.TeamID, &a.SessionID, &adjType, &a.Minutes,
			&a.EffectiveDate, &a.Description, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = repository.AdjustmentType(adjType)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetActiveSchedule(ctx context.Context, userID, teamID string, day time.Weekday) (*repository.Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE user_id = $1 AND team_id = $2 AND day_of_week = $3 AND is_active
		 LIMIT 2`,
		userID, teamID, int16(day))
	if err != nil {
		return nil, err
	}
	schedules, err := collect(rows, scanSchedule)
	if err != nil {
		return nil, err
	}
	switch len(schedules) {
	case 0:
		return nil, nil
	case 1:
		return &schedules[0], nil
	default:
		return nil, repository.ErrAmbiguousSchedule
	}
}

func (r *PostgresRepository) ListActiveSchedulesForDay(ctx context.Context, userID string, day time.Weekday) ([]repository.Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE user_id = $1 AND day_of_week = $2 AND is_active
		 ORDER BY team_id`,
		userID, int16(day))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSchedule)
}

func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, email, display_name FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &u.DisplayName)
	if err != nil {
		return nil, lookupError(err)
	}
	return &u, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context, afterID string, limit int) ([]repository.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, email, display_name FROM users
		 WHERE id::text > $1
		 ORDER BY id::text
		 LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func (r *PostgresRepository) ListTeamMembers(ctx context.Context, teamID string) ([]repository.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id::text, u.email, u.display_name
		 FROM users u JOIN team_members m ON m.user_id = u.id
		 WHERE m.team_id = $1
		 ORDER BY u.display_name, u.id`,
		teamID)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]repository.User, error) {
	defer rows.Close()
	var out []repository.User
	for rows.Next() {
		var u repository.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetReminderPreferences(ctx context.Context, userID string) (*repository.ReminderPreferences, error) {
	p := repository.ReminderPreferences{UserID: userID}
	var quietStart, quietEnd pgtype.Time
	err := r.pool.QueryRow(ctx,
		`SELECT clock_in_enabled, clock_out_enabled, break_return_enabled, missed_punch_enabled,
		        quiet_hours_start, quiet_hours_end
		 FROM reminder_preferences WHERE user_id = $1`, userID).
		Scan(&p.ClockInEnabled, &p.ClockOutEnabled, &p.BreakReturnEnabled, &p.MissedPunchEnabled,
			&quietStart, &quietEnd)
	if err != nil {
		if errors.Is(lookupError(err), repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if quietStart.Valid && quietEnd.Valid {
		p.QuietHours = &timeofday.Window{Start: clockFromTime(quietStart), End: clockFromTime(quietEnd)}
	}
	return &p, nil
}

func (r *PostgresRepository) HasUnresolvedFlag(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM missed_punch_flags WHERE session_id = $1 AND resolved_at IS NULL)`,
		sessionID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) CreateFlagIfAbsent(ctx context.Context, input repository.CreateFlagInput) (*repository.MissedPunchFlag, bool, error) {
	var f repository.MissedPunchFlag
	err := r.pool.QueryRow(ctx,
		`INSERT INTO missed_punch_flags (session_id, user_id, team_id, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) WHERE resolved_at IS NULL DO NOTHING
		 RETURNING id::text, session_id::text, user_id::text, team_id, reason, created_at, resolved_at`,
		input.SessionID, input.UserID, input.TeamID, input.Reason, input.CreatedAt).
		Scan(&f.ID, &f.SessionID, &f.UserID, &f.TeamID, &f.Reason, &f.CreatedAt, &f.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &f, true, nil
}

func (r *PostgresRepository) HasNotificationSince(ctx context.Context, userID string, notificationType repository.NotificationType, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notification_events
		   WHERE user_id = $1 AND notification_type = $2 AND created_at >= $3
		 )`,
		userID, string(notificationType), since).Scan(&exists)
	return exists, err
}

// ClaimNotification serializes claims per (user, type) with a transaction
// scoped advisory lock so the cooldown check and the insert cannot interleave.
func (r *PostgresRepository) ClaimNotification(ctx context.Context, input repository.ClaimNotificationInput) (*repository.NotificationEvent, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`,
		input.UserID, string(input.Type)); err != nil {
		return nil, false, fmt.Errorf("failed to lock notification slot: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notification_events
		   WHERE user_id = $1 AND notification_type = $2 AND created_at >= $3
		 )`,
		input.UserID, string(input.Type), input.Since).Scan(&exists); err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	e := repository.NotificationEvent{
		UserID:  input.UserID,
		Type:    input.Type,
		Status:  repository.NotificationPending,
		Payload: input.Payload,
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO notification_events (user_id, notification_type, status, payload, created_at)
		 VALUES ($1, $2, $3, COALESCE($4::jsonb, '{}'::jsonb), $5)
		 RETURNING id::text, created_at`,
		input.UserID, string(input.Type), string(repository.NotificationPending), input.Payload, input.Now).
		Scan(&e.ID, &e.CreatedAt); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func (r *PostgresRepository) FinalizeNotification(ctx context.Context, eventID string, status repository.NotificationStatus, payload []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notification_events
		 SET status = $2, payload = COALESCE($3::jsonb, payload)
		 WHERE id = $1`,
		eventID, string(status), payload)
	if err != nil {
		return lookupError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
