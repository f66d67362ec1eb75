package timesheet

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foxseedlab/punchclock/internal/apperror"
	"github.com/foxseedlab/punchclock/internal/repository"
)

const teamFetchConcurrency = 4

var ErrUserNotFound = apperror.New(apperror.KindNotFound, "user_not_found", "user not found")

// Service loads activity from the store and hands it to Build. It never writes.
type Service struct {
	repo    repository.TimesheetRepository
	loc     *time.Location
	maxDays int
}

func NewService(repo repository.TimesheetRepository, loc *time.Location, maxDays int) *Service {
	return &Service{repo: repo, loc: loc, maxDays: maxDays}
}

func (s *Service) ForUser(ctx context.Context, userID, teamID string, r Range) ([]Entry, error) {
	if _, err := r.Days(s.maxDays); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Dependency("failed to load user", err)
	}
	act, err := s.loadActivity(ctx, userID, teamID, r)
	if err != nil {
		return nil, err
	}
	return BuildTeam(r, s.loc, s.maxDays, []MemberActivity{{User: *user, Activity: *act}})
}

func (s *Service) ForTeam(ctx context.Context, teamID string, r Range) ([]Entry, error) {
	if _, err := r.Days(s.maxDays); err != nil {
		return nil, err
	}
	users, err := s.repo.ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, apperror.Dependency("failed to list team members", err)
	}

	members := make([]MemberActivity, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(teamFetchConcurrency)
	for i, u := range users {
		g.Go(func() error {
			act, err := s.loadActivity(gctx, u.ID, teamID, r)
			if err != nil {
				return err
			}
			members[i] = MemberActivity{User: u, Activity: *act}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return BuildTeam(r, s.loc, s.maxDays, members)
}

func (s *Service) loadActivity(ctx context.Context, userID, teamID string, r Range) (*Activity, error) {
	from, to := r.Bounds(s.loc)
	in := repository.RangeInput{UserID: userID, TeamID: teamID, From: from, To: to}

	sessions, err := s.repo.ListSessions(ctx, in)
	if err != nil {
		return nil, apperror.Dependency("failed to list sessions", err)
	}
	breaks, err := s.repo.ListBreaks(ctx, in)
	if err != nil {
		return nil, apperror.Dependency("failed to list breaks", err)
	}
	adjustments, err := s.repo.ListAdjustments(ctx, repository.DateRangeInput{
		UserID:   userID,
		TeamID:   teamID,
		FromDate: r.Start,
		ToDate:   r.End,
	})
	if err != nil {
		return nil, apperror.Dependency("failed to list adjustments", err)
	}
	return &Activity{Sessions: sessions, Breaks: breaks, Adjustments: adjustments}, nil
}
