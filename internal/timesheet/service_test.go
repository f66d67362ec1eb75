package timesheet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/punchclock/internal/apperror"
	"github.com/foxseedlab/punchclock/internal/repository"
)

type mockRepository struct {
	users       map[string]repository.User
	team        []repository.User
	sessions    map[string][]repository.Session
	adjustments map[string][]repository.Adjustment
	rangeCalls  []repository.RangeInput
	listErr     error
	calls       int
}

func (m *mockRepository) GetUser(_ context.Context, userID string) (*repository.User, error) {
	m.calls++
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *mockRepository) ListUsers(_ context.Context, _ string, _ int) ([]repository.User, error) {
	return nil, nil
}

func (m *mockRepository) ListTeamMembers(_ context.Context, _ string) ([]repository.User, error) {
	m.calls++
	return m.team, nil
}

func (m *mockRepository) GetReminderPreferences(_ context.Context, _ string) (*repository.ReminderPreferences, error) {
	return nil, nil
}

func (m *mockRepository) CreateSession(_ context.Context, _ repository.CreateSessionInput) (*repository.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) GetSession(_ context.Context, _ string) (*repository.Session, error) {
	return nil, repository.ErrNotFound
}

func (m *mockRepository) GetOpenSession(_ context.Context, _ string) (*repository.Session, error) {
	return nil, nil
}

func (m *mockRepository) CloseSession(_ context.Context, _ string, _ time.Time) (*repository.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) ListSessions(_ context.Context, input repository.RangeInput) ([]repository.Session, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sessions[input.UserID], nil
}

func (m *mockRepository) ListStaleOpenSessions(_ context.Context, _ time.Time, _ int) ([]repository.Session, error) {
	return nil, nil
}

func (m *mockRepository) CreateBreak(_ context.Context, _ repository.CreateBreakInput) (*repository.BreakSegment, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) GetBreak(_ context.Context, _ string) (*repository.BreakSegment, error) {
	return nil, repository.ErrNotFound
}

func (m *mockRepository) GetOpenBreak(_ context.Context, _ string) (*repository.BreakSegment, error) {
	return nil, nil
}

func (m *mockRepository) CloseBreak(_ context.Context, _ string, _ time.Time) (*repository.BreakSegment, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) CountCompletedBreaks(_ context.Context, _ repository.CountBreaksInput) (int, error) {
	return 0, nil
}

func (m *mockRepository) ListBreaks(_ context.Context, input repository.RangeInput) ([]repository.BreakSegment, error) {
	if input.UserID == "u1" {
		m.rangeCalls = append(m.rangeCalls, input)
	}
	return nil, nil
}

func (m *mockRepository) ListAdjustments(_ context.Context, input repository.DateRangeInput) ([]repository.Adjustment, error) {
	return m.adjustments[input.UserID], nil
}

func TestForUser_QueriesLocalDayBounds(t *testing.T) {
	repo := &mockRepository{
		users: map[string]repository.User{"u1": {ID: "u1", DisplayName: "Alice"}},
		sessions: map[string][]repository.Session{
			"u1": {{ClockInAt: ts(2, 9, 0), ClockOutAt: ptr(ts(2, 17, 0))}},
		},
	}
	svc := NewService(repo, loc, 93)

	entries, err := svc.ForUser(context.Background(), "u1", "team-1", Range{Start: date(2), End: date(3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].DisplayName != "Alice" || entries[0].WorkMinutes != 480 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if len(repo.rangeCalls) != 1 {
		t.Fatalf("expected one break query, got %d", len(repo.rangeCalls))
	}
	got := repo.rangeCalls[0]
	if !got.From.Equal(ts(2, 0, 0)) || !got.To.Equal(ts(4, 0, 0)) {
		t.Fatalf("unexpected bounds: %v - %v", got.From, got.To)
	}
}

func TestForUser_InvalidRangeRejectedBeforeStoreAccess(t *testing.T) {
	repo := &mockRepository{}
	svc := NewService(repo, loc, 93)

	_, err := svc.ForUser(context.Background(), "u1", "team-1", Range{Start: date(3), End: date(2)})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("expected no store access, got %d calls", repo.calls)
	}
}

func TestForUser_UnknownUser(t *testing.T) {
	svc := NewService(&mockRepository{}, loc, 93)
	_, err := svc.ForUser(context.Background(), "ghost", "team-1", Range{Start: date(2), End: date(2)})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestForTeam_FansOutAndSorts(t *testing.T) {
	repo := &mockRepository{
		team: []repository.User{
			{ID: "u2", DisplayName: "Bob"},
			{ID: "u1", DisplayName: "Alice"},
		},
		sessions: map[string][]repository.Session{
			"u2": {{ClockInAt: ts(2, 9, 0), ClockOutAt: ptr(ts(2, 10, 0))}},
		},
		adjustments: map[string][]repository.Adjustment{
			"u1": {{Type: repository.AdjustmentAddTime, Minutes: 30, EffectiveDate: date(2)}},
		},
	}
	svc := NewService(repo, loc, 93)

	entries, err := svc.ForTeam(context.Background(), "team-1", Range{Start: date(2), End: date(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].UserID != "u1" || entries[0].WorkMinutes != 30 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].UserID != "u2" || entries[1].WorkMinutes != 60 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestForTeam_StoreFailureIsDependency(t *testing.T) {
	repo := &mockRepository{
		team:    []repository.User{{ID: "u1", DisplayName: "Alice"}},
		listErr: errors.New("connection reset"),
	}
	svc := NewService(repo, loc, 93)

	_, err := svc.ForTeam(context.Background(), "team-1", Range{Start: date(2), End: date(2)})
	if apperror.KindOf(err) != apperror.KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
