package clock

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/foxseedlab/punchclock/internal/apperror"
	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
	"github.com/foxseedlab/punchclock/internal/timeofday"
)

type mockRepository struct {
	sessions    map[string]*repository.Session
	breaks      map[string]*repository.BreakSegment
	schedules   []repository.Schedule
	scheduleErr error
	createErr   error
	nextID      int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		sessions: make(map[string]*repository.Session),
		breaks:   make(map[string]*repository.BreakSegment),
	}
}

func (m *mockRepository) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, s := range m.sessions {
		if s.UserID == input.UserID && s.IsOpen() {
			return nil, repository.ErrOpenSessionExists
		}
	}
	s := &repository.Session{
		ID:        m.id("session"),
		UserID:    input.UserID,
		TeamID:    input.TeamID,
		ClockInAt: input.ClockInAt,
		LateNote:  input.LateNote,
	}
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *mockRepository) GetSession(_ context.Context, sessionID string) (*repository.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepository) GetOpenSession(_ context.Context, userID string) (*repository.Session, error) {
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsOpen() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) CloseSession(_ context.Context, sessionID string, at time.Time) (*repository.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !s.IsOpen() {
		return nil, repository.ErrAlreadyClosed
	}
	s.ClockOutAt = &at
	cp := *s
	return &cp, nil
}

func (m *mockRepository) ListSessions(_ context.Context, _ repository.RangeInput) ([]repository.Session, error) {
	return nil, nil
}

func (m *mockRepository) ListStaleOpenSessions(_ context.Context, _ time.Time, _ int) ([]repository.Session, error) {
	return nil, nil
}

func (m *mockRepository) CreateBreak(_ context.Context, input repository.CreateBreakInput) (*repository.BreakSegment, error) {
	for _, b := range m.breaks {
		if b.SessionID == input.SessionID && b.IsOpen() {
			return nil, repository.ErrOpenBreakExists
		}
	}
	b := &repository.BreakSegment{
		ID:        m.id("break"),
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Type:      input.Type,
		StartAt:   input.StartAt,
	}
	m.breaks[b.ID] = b
	cp := *b
	return &cp, nil
}

func (m *mockRepository) GetBreak(_ context.Context, breakID string) (*repository.BreakSegment, error) {
	b, ok := m.breaks[breakID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockRepository) GetOpenBreak(_ context.Context, sessionID string) (*repository.BreakSegment, error) {
	for _, b := range m.breaks {
		if b.SessionID == sessionID && b.IsOpen() {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) CloseBreak(_ context.Context, breakID string, at time.Time) (*repository.BreakSegment, error) {
	b, ok := m.breaks[breakID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !b.IsOpen() {
		return nil, repository.ErrAlreadyClosed
	}
	b.EndAt = &at
	cp := *b
	return &cp, nil
}

func (m *mockRepository) CountCompletedBreaks(_ context.Context, input repository.CountBreaksInput) (int, error) {
	n := 0
	for _, b := range m.breaks {
		if b.UserID != input.UserID || b.Type != input.Type || b.IsOpen() {
			continue
		}
		if !b.StartAt.Before(input.From) && b.StartAt.Before(input.To) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) ListBreaks(_ context.Context, _ repository.RangeInput) ([]repository.BreakSegment, error) {
	return nil, nil
}

func (m *mockRepository) GetActiveSchedule(_ context.Context, userID, teamID string, day time.Weekday) (*repository.Schedule, error) {
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	var found []repository.Schedule
	for _, s := range m.schedules {
		if s.UserID == userID && s.TeamID == teamID && s.DayOfWeek == day && s.IsActive {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		return nil, repository.ErrAmbiguousSchedule
	}
}

func (m *mockRepository) ListActiveSchedulesForDay(_ context.Context, _ string, _ time.Weekday) ([]repository.Schedule, error) {
	return nil, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testLoc = time.FixedZone("JST", 9*60*60)

// 2026-03-02 is a Monday.
func at(hh, mm int) time.Time {
	return time.Date(2026, 3, 2, hh, mm, 0, 0, testLoc)
}

func newTestService(repo *mockRepository, start time.Time) (*Service, *fakeClock) {
	clk := &fakeClock{t: start}
	svc := NewService(repo, config.DefaultOrgSettings(), testLoc)
	svc.now = clk.now
	return svc, clk
}

func mondaySchedule(start string) repository.Schedule {
	return repository.Schedule{
		UserID:    "user-1",
		TeamID:    "team-1",
		DayOfWeek: time.Monday,
		StartTime: timeofday.MustParse(start),
		EndTime:   timeofday.MustParse("17:00"),
		IsActive:  true,
	}
}

func TestClockIn_CreatesSession(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo, at(9, 0))

	res, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != ClockInStatusClockedIn || res.Session == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Session.ClockInAt.Equal(at(9, 0)) {
		t.Fatalf("unexpected clock-in time: %v", res.Session.ClockInAt)
	}
}

func TestClockIn_RejectsSecondOpenSessionOnAnyTeam(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo, at(9, 0))
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-2"})
	if !errors.Is(err, ErrAlreadyClockedIn) {
		t.Fatalf("expected ErrAlreadyClockedIn, got %v", err)
	}
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict kind, got %s", apperror.KindOf(err))
	}
}

func TestClockIn_StoreUniqueViolationSurfacesAsAlreadyClockedIn(t *testing.T) {
	repo := newMockRepository()
	repo.createErr = fmt.Errorf("insert: %w", repository.ErrOpenSessionExists)
	svc, _ := newTestService(repo, at(9, 0))

	_, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if !errors.Is(err, ErrAlreadyClockedIn) {
		t.Fatalf("expected ErrAlreadyClockedIn, got %v", err)
	}
}

func TestClockIn_LateRequiresConfirmationThenAcceptsNote(t *testing.T) {
	repo := newMockRepository()
	repo.schedules = []repository.Schedule{mondaySchedule("09:00")}
	svc, _ := newTestService(repo, at(9, 20))
	ctx := context.Background()

	res, err := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != ClockInStatusPendingLateConfirmation {
		t.Fatalf("expected pending late confirmation, got %s", res.Status)
	}
	if res.Session != nil || len(repo.sessions) != 0 {
		t.Fatal("expected no session to be written before confirmation")
	}
	if res.LateBy != 20*time.Minute {
		t.Fatalf("unexpected late by: %v", res.LateBy)
	}

	res, err = svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1", LateNote: "  train delay "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != ClockInStatusClockedIn || res.Session.LateNote != "train delay" {
		t.Fatalf("unexpected result: %+v", res.Session)
	}
}

func TestClockIn_OnTimeDropsNote(t *testing.T) {
	repo := newMockRepository()
	repo.schedules = []repository.Schedule{mondaySchedule("09:00")}
	svc, _ := newTestService(repo, at(9, 0))

	res, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1", TeamID: "team-1", LateNote: "just in case"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Session.LateNote != "" {
		t.Fatalf("expected note to be dropped, got %q", res.Session.LateNote)
	}
}

func TestClockIn_GraceWindow(t *testing.T) {
	repo := newMockRepository()
	repo.schedules = []repository.Schedule{mondaySchedule("09:00")}
	svc, _ := newTestService(repo, at(9, 4))
	svc.settings.LateGraceMinutes = 5

	res, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != ClockInStatusClockedIn {
		t.Fatalf("expected clock-in within grace, got %s", res.Status)
	}
}

// Two active rows for the same (user, team, weekday) violate a data
// invariant; clock-in refuses to guess which start time applies.
func TestClockIn_AmbiguousScheduleIsReportedNotGuessed(t *testing.T) {
	repo := newMockRepository()
	repo.schedules = []repository.Schedule{mondaySchedule("09:00"), mondaySchedule("10:00")}
	svc, _ := newTestService(repo, at(9, 30))

	_, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if !errors.Is(err, ErrAmbiguousSchedule) {
		t.Fatalf("expected ErrAmbiguousSchedule, got %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatal("expected no session to be created")
	}
}

func TestClockIn_Validation(t *testing.T) {
	svc, _ := newTestService(newMockRepository(), at(9, 0))
	_, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1"})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClockIn_ScheduleLookupFailureIsDependency(t *testing.T) {
	repo := newMockRepository()
	repo.scheduleErr = errors.New("connection refused")
	svc, _ := newTestService(repo, at(9, 0))

	_, err := svc.ClockIn(context.Background(), ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if apperror.KindOf(err) != apperror.KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClockOut_OwnershipAndDoubleClockOut(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, err := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionID := res.Session.ID

	if _, err := svc.ClockOut(ctx, "user-1", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.ClockOut(ctx, "user-2", sessionID); !errors.Is(err, ErrSessionNotOwned) {
		t.Fatalf("expected ErrSessionNotOwned, got %v", err)
	}

	clk.advance(8 * time.Hour)
	out, err := svc.ClockOut(ctx, "user-1", sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Session.ClockOutAt == nil || !out.Session.ClockOutAt.Equal(at(17, 0)) {
		t.Fatalf("unexpected clock-out: %v", out.Session.ClockOutAt)
	}
	if _, err := svc.ClockOut(ctx, "user-1", sessionID); !errors.Is(err, ErrSessionAlreadyClosed) {
		t.Fatalf("expected ErrSessionAlreadyClosed, got %v", err)
	}
}

func TestClockOut_ClosesOpenBreak(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	clk.advance(3 * time.Hour)
	if _, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeLunch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clk.advance(30 * time.Minute)

	out, err := svc.ClockOut(ctx, "user-1", res.Session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ClosedBreak == nil || out.ClosedBreak.EndAt == nil || !out.ClosedBreak.EndAt.Equal(at(12, 30)) {
		t.Fatalf("expected open break closed at clock-out, got %+v", out.ClosedBreak)
	}
}

func TestStartBreak_RejectsClosedSessionAndConcurrentBreak(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if _, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeBreak); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clk.advance(time.Minute)
	if _, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeLunch); !errors.Is(err, ErrBreakAlreadyActive) {
		t.Fatalf("expected ErrBreakAlreadyActive, got %v", err)
	}

	if _, err := svc.ClockOut(ctx, "user-1", res.Session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeBreak); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestStartBreak_RejectsUnknownType(t *testing.T) {
	svc, _ := newTestService(newMockRepository(), at(9, 0))
	_, err := svc.StartBreak(context.Background(), "user-1", "session-1", repository.BreakType("NAP"))
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartBreak_DailyCaps(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	sessionID := res.Session.ID

	takeBreak := func(bt repository.BreakType) error {
		b, err := svc.StartBreak(ctx, "user-1", sessionID, bt)
		if err != nil {
			return err
		}
		clk.advance(10 * time.Minute)
		_, err = svc.EndBreak(ctx, "user-1", b.ID)
		clk.advance(time.Hour)
		return err
	}

	for i := 0; i < 2; i++ {
		if err := takeBreak(repository.BreakTypeBreak); err != nil {
			t.Fatalf("break %d: unexpected error: %v", i+1, err)
		}
	}
	if err := takeBreak(repository.BreakTypeBreak); !errors.Is(err, ErrBreakLimitReached) {
		t.Fatalf("expected ErrBreakLimitReached on third break, got %v", err)
	}

	if err := takeBreak(repository.BreakTypeLunch); err != nil {
		t.Fatalf("lunch: unexpected error: %v", err)
	}
	err := takeBreak(repository.BreakTypeLunch)
	if !errors.Is(err, ErrBreakLimitReached) {
		t.Fatalf("expected ErrBreakLimitReached on second lunch, got %v", err)
	}
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict kind, got %s", apperror.KindOf(err))
	}
}

func TestStartBreak_InProgressBreakDoesNotCountTowardCap(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	first, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeBreak)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clk.advance(10 * time.Minute)
	if _, err := svc.EndBreak(ctx, "user-1", first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clk.advance(time.Hour)
	second, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeBreak)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	used, _ := repo.CountCompletedBreaks(ctx, repository.CountBreaksInput{
		UserID: "user-1", Type: repository.BreakTypeBreak, From: at(0, 0), To: at(0, 0).AddDate(0, 0, 1),
	})
	if used != 1 {
		t.Fatalf("expected in-progress break not to count, got %d", used)
	}
	if _, err := svc.EndBreak(ctx, "user-1", second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartBreak_CapResetsNextDay(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	b, _ := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeLunch)
	clk.advance(30 * time.Minute)
	_, _ = svc.EndBreak(ctx, "user-1", b.ID)
	_, _ = svc.ClockOut(ctx, "user-1", res.Session.ID)

	clk.t = at(9, 0).AddDate(0, 0, 1)
	res, err := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeLunch); err != nil {
		t.Fatalf("expected lunch allowed on a new day, got %v", err)
	}
}

func TestEndBreak_Errors(t *testing.T) {
	repo := newMockRepository()
	svc, clk := newTestService(repo, at(9, 0))
	ctx := context.Background()

	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	b, _ := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeBreak)

	if _, err := svc.EndBreak(ctx, "user-1", "missing"); !errors.Is(err, ErrBreakNotFound) {
		t.Fatalf("expected ErrBreakNotFound, got %v", err)
	}
	if _, err := svc.EndBreak(ctx, "user-2", b.ID); !errors.Is(err, ErrBreakNotOwned) {
		t.Fatalf("expected ErrBreakNotOwned, got %v", err)
	}
	clk.advance(15 * time.Minute)
	ended, err := svc.EndBreak(ctx, "user-1", b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ended.EndAt == nil || !ended.EndAt.Equal(at(9, 15)) {
		t.Fatalf("unexpected end: %v", ended.EndAt)
	}
	if _, err := svc.EndBreak(ctx, "user-1", b.ID); !errors.Is(err, ErrBreakAlreadyEnded) {
		t.Fatalf("expected ErrBreakAlreadyEnded, got %v", err)
	}
}

func TestStatus_Transitions(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo, at(9, 0))
	ctx := context.Background()

	st, err := svc.Status(ctx, "user-1")
	if err != nil || st.State != StateOut {
		t.Fatalf("expected OUT, got %+v (%v)", st, err)
	}
	res, _ := svc.ClockIn(ctx, ClockInRequest{UserID: "user-1", TeamID: "team-1"})
	st, _ = svc.Status(ctx, "user-1")
	if st.State != StateIn {
		t.Fatalf("expected IN, got %s", st.State)
	}
	b, _ := svc.StartBreak(ctx, "user-1", res.Session.ID, repository.BreakTypeBreak)
	st, _ = svc.Status(ctx, "user-1")
	if st.State != StateOnBreak || st.Break == nil || st.Break.ID != b.ID {
		t.Fatalf("expected ON_BREAK, got %+v", st)
	}
	_, _ = svc.EndBreak(ctx, "user-1", b.ID)
	st, _ = svc.Status(ctx, "user-1")
	if st.State != StateIn {
		t.Fatalf("expected IN after break, got %s", st.State)
	}
}
