package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// Repo is everything a scheduling pass touches in the store.
type Repo interface {
	EvaluatorRepo
	DispatchRepo
	PruneDispatches(ctx context.Context, before string) (int64, error)
}

// Config tunes the periodic trigger and the pass itself.
type Config struct {
	Location        *time.Location
	PollInterval    time.Duration // between passes
	Grace           time.Duration // <= 0 means PollInterval
	StartupDelay    time.Duration // first pass after boot
	Retention       time.Duration // dispatch records older than this are pruned; 0 keeps them
	SendConcurrency int
	Message         string // empty means FeedbackRequestText
}

// Result summarises one scheduling pass.
type Result struct {
	PassID    string    `json:"pass_id"`
	Now       time.Time `json:"now"`
	Eligible  int       `json:"eligible"`
	Scheduled int       `json:"scheduled"`
	Skipped   int       `json:"skipped"`
	Pruned    int64     `json:"pruned"`
	Shared    bool      `json:"shared"` // joined a pass already in flight
}

// Scheduler periodically evaluates the class schedule and sends feedback
// requests to students whose class just ended.
type Scheduler struct {
	repo  Repo
	log   *zap.Logger
	clock domain.Clock
	cfg   Config
	eval  *Evaluator
	dedup *Deduplicator
	sf    singleflight.Group
}

// New creates a Scheduler. Zero config values fall back to 10 minute polls,
// a grace window equal to the poll interval and a 30 second startup delay.
func New(repo Repo, sender Sender, clock domain.Clock, log *zap.Logger, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = cfg.PollInterval
	}
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = 30 * time.Second
	}
	if cfg.Message == "" {
		cfg.Message = FeedbackRequestText
	}
	if clock == nil {
		clock = domain.NewLocationClock(cfg.Location)
	}

	return &Scheduler{
		repo:  repo,
		log:   log,
		clock: clock,
		cfg:   cfg,
		eval:  NewEvaluator(repo, cfg.Location, cfg.Grace),
		dedup: NewDeduplicator(repo, sender, log, cfg.Message, cfg.SendConcurrency),
	}
}

// Run performs one pass after the startup delay, then one per poll interval,
// until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	startup := time.NewTimer(s.cfg.StartupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("grace", s.cfg.Grace),
		zap.Duration("startup_delay", s.cfg.StartupDelay),
		zap.String("tz", s.cfg.Location.String()),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-startup.C:
			s.tick(ctx)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunPass(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("scheduling pass failed", zap.Error(err))
	}
}

// RunPass runs one scheduling pass. Concurrent callers share a single
// in-flight pass; the at-most-once guarantee does not depend on that.
//
// The shared pass ignores cancellation of whichever caller started it, so a
// caller that joined it still gets the full result. Each caller stops
// waiting when its own ctx is done.
func (s *Scheduler) RunPass(ctx context.Context) (Result, error) {
	base := context.WithoutCancel(ctx)
	ch := s.sf.DoChan("pass", func() (interface{}, error) {
		return s.runPass(base)
	})
	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		res.Shared = r.Shared
		return res, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Scheduler) runPass(ctx context.Context) (Result, error) {
	now := s.clock.Now().In(s.cfg.Location)
	res := Result{PassID: uuid.NewString(), Now: now}
	log := s.log.With(zap.String("pass_id", res.PassID))

	eligible, err := s.eval.Evaluate(ctx, now)
	if err != nil {
		return res, errors.Wrap(err, "evaluate")
	}
	res.Eligible = len(eligible)

	stats, err := s.dedup.Dispatch(ctx, log, eligible)
	res.Scheduled, res.Skipped = stats.Scheduled, stats.Skipped
	if err != nil {
		return res, errors.Wrap(err, "dispatch")
	}

	if before, ok := s.pruneBefore(now); ok {
		n, err := s.repo.PruneDispatches(ctx, before)
		if err != nil {
			log.Warn("prune dispatches failed", zap.Error(err))
		}
		res.Pruned = n
	}

	fields := []zap.Field{
		zap.Time("now", now),
		zap.Int("eligible", res.Eligible),
		zap.Int("scheduled", res.Scheduled),
		zap.Int("skipped", res.Skipped),
		zap.Int64("pruned", res.Pruned),
	}
	if res.Eligible > 0 || res.Pruned > 0 {
		log.Info("scheduling pass finished", fields...)
	} else {
		log.Debug("scheduling pass finished", fields...)
	}
	return res, nil
}

// pruneBefore returns the first class date to keep.
func (s *Scheduler) pruneBefore(now time.Time) (string, bool) {
	if s.cfg.Retention <= 0 {
		return "", false
	}
	days := int(s.cfg.Retention / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return domain.DateKey(domain.StartOfDay(now).AddDate(0, 0, -days)), true
}

// Wait blocks until background sends started by earlier passes finish.
func (s *Scheduler) Wait() {
	s.dedup.Wait()
}

// WaitContext is Wait bounded by ctx.
func (s *Scheduler) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.dedup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
