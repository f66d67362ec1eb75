package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/foxseedlab/punchclock/internal/repository"
	"github.com/foxseedlab/punchclock/internal/timeofday"
)

const sqliteMemoryPath = ":memory:"

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

// Timestamps are stored as unix milliseconds and effective dates as
// YYYY-MM-DD text.

type userRow struct {
	ID          string `gorm:"primaryKey"`
	Email       string
	DisplayName string
}

func (userRow) TableName() string { return "users" }

type teamMemberRow struct {
	TeamID string `gorm:"primaryKey"`
	UserID string `gorm:"primaryKey"`
}

func (teamMemberRow) TableName() string { return "team_members" }

type sessionRow struct {
	ID         string `gorm:"primaryKey"`
	UserID     string
	TeamID     string
	ClockInAt  int64
	ClockOutAt *int64
	LateNote   string
}

func (sessionRow) TableName() string { return "sessions" }

type breakRow struct {
	ID           string `gorm:"primaryKey"`
	SessionID    string
	UserID       string
	BreakType    string
	BreakStartAt int64
	BreakEndAt   *int64
}

func (breakRow) TableName() string { return "break_segments" }

type adjustmentRow struct {
	ID             string `gorm:"primaryKey"`
	UserID         string
	TeamID         string
	SessionID      *string
	AdjustmentType string
	Minutes        int
	EffectiveDate  string
	Description    string
	CreatedAt      int64 `gorm:"autoCreateTime:false"`
}

func (adjustmentRow) TableName() string { return "adjustments" }

type scheduleRow struct {
	ID                   string `gorm:"primaryKey"`
	UserID               string
	TeamID               string
	DayOfWeek            int
	StartMinute          int
	EndMinute            int
	BreakExpectedMinutes int
	IsActive             bool
}

func (scheduleRow) TableName() string { return "schedules" }

type flagRow struct {
	ID         string `gorm:"primaryKey"`
	SessionID  string
	UserID     string
	TeamID     string
	Reason     string
	CreatedAt  int64 `gorm:"autoCreateTime:false"`
	ResolvedAt *int64
}

func (flagRow) TableName() string { return "missed_punch_flags" }

type notificationRow struct {
	ID               string `gorm:"primaryKey"`
	UserID           string
	NotificationType string
	Status           string
	Payload          string
	CreatedAt        int64 `gorm:"autoCreateTime:false"`
}

func (notificationRow) TableName() string { return "notification_events" }

type preferencesRow struct {
	UserID             string `gorm:"primaryKey"`
	ClockInEnabled     bool
	ClockOutEnabled    bool
	BreakReturnEnabled bool
	MissedPunchEnabled bool
	QuietHoursStart    *int
	QuietHoursEnd      *int
}

func (preferencesRow) TableName() string { return "reminder_preferences" }

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMillis(*ms)
	return &t
}

func (r sessionRow) toModel() repository.Session {
	return repository.Session{
		ID:         r.ID,
		UserID:     r.UserID,
		TeamID:     r.TeamID,
		ClockInAt:  fromMillis(r.ClockInAt),
		ClockOutAt: fromMillisPtr(r.ClockOutAt),
		LateNote:   r.LateNote,
	}
}

func (r breakRow) toModel() repository.BreakSegment {
	return repository.BreakSegment{
		ID:        r.ID,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Type:      repository.BreakType(r.BreakType),
		StartAt:   fromMillis(r.BreakStartAt),
		EndAt:     fromMillisPtr(r.BreakEndAt),
	}
}

func (r scheduleRow) toModel() repository.Schedule {
	return repository.Schedule{
		UserID:               r.UserID,
		TeamID:               r.TeamID,
		DayOfWeek:            time.Weekday(r.DayOfWeek),
		StartTime:            timeofday.Clock(r.StartMinute),
		EndTime:              timeofday.Clock(r.EndMinute),
		BreakExpectedMinutes: r.BreakExpectedMinutes,
		IsActive:             r.IsActive,
	}
}

func (r userRow) toModel() repository.User {
	return repository.User{ID: r.ID, Email: r.Email, DisplayName: r.DisplayName}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type SQLiteRepository struct {
	db *gorm.DB
}

// OpenSQLite opens path with a single connection so transactions serialize
// writers. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != sqliteMemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := sessionRow{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		TeamID:    input.TeamID,
		ClockInAt: toMillis(input.ClockInAt),
		LateNote:  input.LateNote,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return nil, repository.ErrOpenSessionExists
		}
		return nil, err
	}
	s := row.toModel()
	return &s, nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	var row sessionRow
	if err := r.db.WithContext(ctx).Where("id = ?", sessionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	s := row.toModel()
	return &s, nil
}

func (r *SQLiteRepository) GetOpenSession(ctx context.Context, userID string) (*repository.Session, error) {
	var rows []sessionRow
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND clock_out_at IS NULL", userID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	s := rows[0].toModel()
	return &s, nil
}

func (r *SQLiteRepository) CloseSession(ctx context.Context, sessionID string, at time.Time) (*repository.Session, error) {
	res := r.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND clock_out_at IS NULL", sessionID).
		Update("clock_out_at", toMillis(at))
	if res.Error != nil {
		return nil, res.Error
	}
	s, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrAlreadyClosed
	}
	return s, nil
}

func sessionsFrom(rows []sessionRow) []repository.Session {
	out := make([]repository.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, input repository.RangeInput) ([]repository.Session, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND clock_in_at >= ? AND clock_in_at < ?",
			input.UserID, toMillis(input.From), toMillis(input.To))
	if input.TeamID != "" {
		q = q.Where("team_id = ?", input.TeamID)
	}
	var rows []sessionRow
	if err := q.Order("clock_in_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return sessionsFrom(rows), nil
}

func (r *SQLiteRepository) ListStaleOpenSessions(ctx context.Context, clockedInBefore time.Time, limit int) ([]repository.Session, error) {
	var rows []sessionRow
	if err := r.db.WithContext(ctx).
		Where("clock_out_at IS NULL AND clock_in_at < ?", toMillis(clockedInBefore)).
		Order("clock_in_at").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return sessionsFrom(rows), nil
}

func (r *SQLiteRepository) CreateBreak(ctx context.Context, input repository.CreateBreakInput) (*repository.BreakSegment, error) {
	row := breakRow{
		ID:           uuid.NewString(),
		SessionID:    input.SessionID,
		UserID:       input.UserID,
		BreakType:    string(input.Type),
		BreakStartAt: toMillis(input.StartAt),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&sessionRow{}).
			Where("id = ? AND clock_out_at IS NULL", input.SessionID).
			Count(&open).Error; err != nil {
			return err
		}
		if open == 0 {
			return repository.ErrAlreadyClosed
		}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return repository.ErrOpenBreakExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b := row.toModel()
	return &b, nil
}

func (r *SQLiteRepository) GetBreak(ctx context.Context, breakID string) (*repository.BreakSegment, error) {
	var row breakRow
	if err := r.db.WithContext(ctx).Where("id = ?", breakID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	b := row.toModel()
	return &b, nil
}

func (r *SQLiteRepository) GetOpenBreak(ctx context.Context, sessionID string) (*repository.BreakSegment, error) {
	var rows []breakRow
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND break_end_at IS NULL", sessionID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	b := rows[0].toModel()
	return &b, nil
}

func (r *SQLiteRepository) CloseBreak(ctx context.Context, breakID string, at time.Time) (*repository.BreakSegment, error) {
	res := r.db.WithContext(ctx).Model(&breakRow{}).
		Where("id = ? AND break_end_at IS NULL", breakID).
		Update("break_end_at", toMillis(at))
	if res.Error != nil {
		return nil, res.Error
	}
	b, err := r.GetBreak(ctx, breakID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrAlreadyClosed
	}
	return b, nil
}

func (r *SQLiteRepository) CountCompletedBreaks(ctx context.Context, input repository.CountBreaksInput) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&breakRow{}).
		Where("user_id = ? AND break_type = ? AND break_end_at IS NOT NULL", input.UserID, string(input.Type)).
		Where("break_start_at >= ? AND break_start_at < ?", toMillis(input.From), toMillis(input.To)).
		Count(&n).Error
	return int(n), err
}

func (r *SQLiteRepository) ListBreaks(ctx context.Context, input repository.RangeInput) ([]repository.BreakSegment, error) {
	q := r.db.WithContext(ctx).Model(&breakRow{}).
		Select("break_segments.*").
		Joins("JOIN sessions ON sessions.id = break_segments.session_id").
		Where("break_segments.user_id = ?", input.UserID).
		Where("break_segments.break_start_at >= ? AND break_segments.break_start_at < ?",
			toMillis(input.From), toMillis(input.To))
	if input.TeamID != "" {
		q = q.Where("sessions.team_id = ?", input.TeamID)
	}
	var rows []breakRow
	if err := q.Order("break_segments.break_start_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]repository.BreakSegment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *SQLiteRepository) ListAdjustments(ctx context.Context, input repository.DateRangeInput) ([]repository.Adjustment, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND effective_date BETWEEN ? AND ?",
			input.UserID, input.FromDate.Format(time.DateOnly), input.ToDate.Format(time.DateOnly))
	if input.TeamID != "" {
		q = q.Where("team_id = ?", input.TeamID)
	}
	var rows []adjustmentRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]repository.Adjustment, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(time.DateOnly, row.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("adjustment %s has malformed effective date: %w", row.ID, err)
		}
		out = append(out, repository.Adjustment{
			ID:            row.ID,
			UserID:        row.UserID,
			TeamID:        row.TeamID,
			SessionID:     row.SessionID,
			Type:          repository.AdjustmentType(row.AdjustmentType),
			Minutes:       row.Minutes,
			EffectiveDate: date,
			Description:   row.Description,
			CreatedAt:     fromMillis(row.CreatedAt),
		})
	}
	return out, nil
}

func (r *SQLiteRepository) GetActiveSchedule(ctx context.Context, userID, teamID string, day time.Weekday) (*repository.Schedule, error) {
	var rows []scheduleRow
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND team_id = ? AND day_of_week = ? AND is_active = ?", userID, teamID, int(day), true).
		Limit(2).Find(&rows).Error; err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		s := rows[0].toModel()
		return &s, nil
	default:
		return nil, repository.ErrAmbiguousSchedule
	}
}

func (r *SQLiteRepository) ListActiveSchedulesForDay(ctx context.Context, userID string, day time.Weekday) ([]repository.Schedule, error) {
	var rows []scheduleRow
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND day_of_week = ? AND is_active = ?", userID, int(day), true).
		Order("team_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]repository.Schedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID string) (*repository.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u := row.toModel()
	return &u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, afterID string, limit int) ([]repository.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return usersFrom(rows), nil
}

func (r *SQLiteRepository) ListTeamMembers(ctx context.Context, teamID string) ([]repository.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.user_id = users.id").
		Where("team_members.team_id = ?", teamID).
		Order("users.display_name, users.id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return usersFrom(rows), nil
}

func usersFrom(rows []userRow) []repository.User {
	out := make([]repository.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

func (r *SQLiteRepository) GetReminderPreferences(ctx context.Context, userID string) (*repository.ReminderPreferences, error) {
	var rows []preferencesRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	p := &repository.ReminderPreferences{
		UserID:             row.UserID,
		ClockInEnabled:     row.ClockInEnabled,
		ClockOutEnabled:    row.ClockOutEnabled,
		BreakReturnEnabled: row.BreakReturnEnabled,
		MissedPunchEnabled: row.MissedPunchEnabled,
	}
	if row.QuietHoursStart != nil && row.QuietHoursEnd != nil {
		p.QuietHours = &timeofday.Window{
			Start: timeofday.Clock(*row.QuietHoursStart),
			End:   timeofday.Clock(*row.QuietHoursEnd),
		}
	}
	return p, nil
}

func (r *SQLiteRepository) HasUnresolvedFlag(ctx context.Context, sessionID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&flagRow{}).
		Where("session_id = ? AND resolved_at IS NULL", sessionID).
		Count(&n).Error
	return n > 0, err
}

func (r *SQLiteRepository) CreateFlagIfAbsent(ctx context.Context, input repository.CreateFlagInput) (*repository.MissedPunchFlag, bool, error) {
	row := flagRow{
		ID:        uuid.NewString(),
		SessionID: input.SessionID,
		UserID:    input.UserID,
		TeamID:    input.TeamID,
		Reason:    input.Reason,
		CreatedAt: toMillis(input.CreatedAt),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	return &repository.MissedPunchFlag{
		ID:        row.ID,
		SessionID: row.SessionID,
		UserID:    row.UserID,
		TeamID:    row.TeamID,
		Reason:    row.Reason,
		CreatedAt: fromMillis(row.CreatedAt),
	}, true, nil
}

func recentNotification(tx *gorm.DB, userID string, notificationType repository.NotificationType, since time.Time) (bool, error) {
	var n int64
	err := tx.Model(&notificationRow{}).
		Where("user_id = ? AND notification_type = ? AND created_at >= ?",
			userID, string(notificationType), toMillis(since)).
		Count(&n).Error
	return n > 0, err
}

func (r *SQLiteRepository) HasNotificationSince(ctx context.Context, userID string, notificationType repository.NotificationType, since time.Time) (bool, error) {
	return recentNotification(r.db.WithContext(ctx), userID, notificationType, since)
}

// ClaimNotification relies on the single connection: the check and the
// insert run in one transaction that no other writer can interleave with.
func (r *SQLiteRepository) ClaimNotification(ctx context.Context, input repository.ClaimNotificationInput) (*repository.NotificationEvent, bool, error) {
	payload := string(input.Payload)
	if payload == "" {
		payload = "{}"
	}
	row := notificationRow{
		ID:               uuid.NewString(),
		UserID:           input.UserID,
		NotificationType: string(input.Type),
		Status:           string(repository.NotificationPending),
		Payload:          payload,
		CreatedAt:        toMillis(input.Now),
	}
	claimed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recent, err := recentNotification(tx, input.UserID, input.Type, input.Since)
		if err != nil || recent {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil || !claimed {
		return nil, false, err
	}
	return &repository.NotificationEvent{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      input.Type,
		Status:    repository.NotificationPending,
		Payload:   []byte(row.Payload),
		CreatedAt: fromMillis(row.CreatedAt),
	}, true, nil
}

func (r *SQLiteRepository) FinalizeNotification(ctx context.Context, eventID string, status repository.NotificationStatus, payload []byte) error {
	updates := map[string]any{"status": string(status)}
	if payload != nil {
		updates["payload"] = string(payload)
	}
	res := r.db.WithContext(ctx).Model(&notificationRow{}).Where("id = ?", eventID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
