package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// EvaluatorRepo is the read access the evaluator needs.
type EvaluatorRepo interface {
	ListSchedule(ctx context.Context, weekday int) ([]domain.ScheduleEntry, error)
	ListEligibleUsers(ctx context.Context, groups []domain.Group, onOrBefore time.Time) ([]domain.User, error)
}

// Evaluator finds (user, class session) pairs whose class has just ended.
// It holds no state and writes nothing, so it is safe to retry.
type Evaluator struct {
	repo  EvaluatorRepo
	loc   *time.Location
	grace time.Duration
}

func NewEvaluator(repo EvaluatorRepo, loc *time.Location, grace time.Duration) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{repo: repo, loc: loc, grace: grace}
}

// Evaluate returns the pairs eligible at now. Store failures are returned
// wrapped; errors.Is(err, store.ErrUnavailable) identifies them.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time) ([]domain.Eligible, error) {
	now = now.In(e.loc)

	var entries []domain.ScheduleEntry
	for _, wd := range domain.WindowWeekdays(now) {
		day, err := e.repo.ListSchedule(ctx, wd)
		if err != nil {
			return nil, errors.Wrap(err, "list schedule")
		}
		entries = append(entries, day...)
	}
	groups := domain.GroupsEndingNow(now, e.loc, e.grace, entries)
	if len(groups) == 0 {
		return nil, nil
	}

	users, err := e.repo.ListEligibleUsers(ctx, groups, now)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return domain.EvaluateEligibility(now, e.loc, e.grace, entries, users), nil
}
