package store

import (
	"context"
	"time"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// UserRepo stores registered students.
type UserRepo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	SetActive(ctx context.Context, chatID int64, active bool) error
	ListEligibleUsers(ctx context.Context, groups []domain.Group, onOrBefore time.Time) ([]domain.User, error)
}

// ScheduleRepo stores the weekly class schedule.
type ScheduleRepo interface {
	SeedSchedule(ctx context.Context, entries []domain.ScheduleEntry) (int, error)
	ListSchedule(ctx context.Context, weekday int) ([]domain.ScheduleEntry, error)
	ListAllSchedule(ctx context.Context) ([]domain.ScheduleEntry, error)
}

// DispatchRepo stores one record per (user, class date) feedback prompt.
type DispatchRepo interface {
	ClaimDispatch(ctx context.Context, rec DispatchRecord) (bool, error)
	MarkDispatch(ctx context.Context, chatID int64, classDate string, status DispatchStatus, errText string) error
	GetDispatch(ctx context.Context, chatID int64, classDate string) (*DispatchRecord, error)
	PruneDispatches(ctx context.Context, before string) (int64, error)
}

// FeedbackRepo stores messages students send back.
type FeedbackRepo interface {
	SaveFeedback(ctx context.Context, chatID int64, message string) (string, error)
	CountFeedback(ctx context.Context, chatID int64) (int, error)
}

// Repo is the full storage surface.
type Repo interface {
	UserRepo
	ScheduleRepo
	DispatchRepo
	FeedbackRepo
	Ping(ctx context.Context) error
	Close() error
}
