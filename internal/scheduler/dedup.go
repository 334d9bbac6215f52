package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/classfeedback/feedback-bot/internal/domain"
	"github.com/classfeedback/feedback-bot/internal/store"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// DispatchRepo is the dispatch-record access the deduplicator needs.
type DispatchRepo interface {
	ClaimDispatch(ctx context.Context, rec store.DispatchRecord) (bool, error)
	MarkDispatch(ctx context.Context, chatID int64, classDate string, status store.DispatchStatus, errText string) error
}

// ErrNotifyFailed matches every NotifyError.
var ErrNotifyFailed = errors.New("notify failed")

// NotifyError is a transport failure after the dispatch record was created.
// The record stays; nothing retries it.
type NotifyError struct {
	ChatID    int64
	ClassDate string
	Err       error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify chat %d for %s: %v", e.ChatID, e.ClassDate, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

func (e *NotifyError) Is(target error) bool { return target == ErrNotifyFailed }

// DispatchStats counts the outcome of one Dispatch call.
type DispatchStats struct {
	Scheduled int `json:"scheduled"`
	Skipped   int `json:"skipped"`
}

// Deduplicator turns eligible pairs into at most one message per
// (user, class date). The uniqueness comes from the store, not from memory.
type Deduplicator struct {
	repo   DispatchRepo
	sender Sender
	log    *zap.Logger
	text   string
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

func NewDeduplicator(repo DispatchRepo, sender Sender, log *zap.Logger, text string, concurrency int) *Deduplicator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Deduplicator{
		repo:   repo,
		sender: sender,
		log:    log,
		text:   text,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// Dispatch claims a record for every pair and hands newly claimed ones to
// the sender in the background. Already-claimed pairs are counted as skips.
// A claim that fails for any other reason aborts the call.
func (d *Deduplicator) Dispatch(ctx context.Context, log *zap.Logger, eligible []domain.Eligible) (DispatchStats, error) {
	var stats DispatchStats
	if log == nil {
		log = d.log
	}
	for _, e := range eligible {
		claimed, err := d.repo.ClaimDispatch(ctx, store.DispatchRecord{
			ChatID:    e.ChatID,
			ClassDate: e.ClassDate,
			ClassEnd:  e.ClassEnd,
			Status:    store.DispatchPending,
		})
		if err != nil {
			return stats, errors.Wrapf(err, "claim dispatch chat=%d date=%s", e.ChatID, e.ClassDate)
		}
		if !claimed {
			stats.Skipped++
			log.Debug("dispatch already recorded",
				zap.Int64("chat_id", e.ChatID), zap.String("class_date", e.ClassDate))
			continue
		}
		stats.Scheduled++

		d.wg.Add(1)
		go d.deliver(context.WithoutCancel(ctx), log, e)
	}
	return stats, nil
}

// deliver sends one prompt and records the outcome. It never returns an error.
func (d *Deduplicator) deliver(ctx context.Context, log *zap.Logger, e domain.Eligible) {
	defer d.wg.Done()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer d.sem.Release(1)

	fields := []zap.Field{zap.Int64("chat_id", e.ChatID), zap.String("class_date", e.ClassDate)}

	status, errText := store.DispatchSent, ""
	if err := d.sender.SendMessage(e.ChatID, d.text); err != nil {
		nerr := &NotifyError{ChatID: e.ChatID, ClassDate: e.ClassDate, Err: err}
		log.Error("feedback request send failed", append(fields, zap.Error(nerr))...)
		status, errText = store.DispatchFailed, err.Error()
	} else {
		log.Info("feedback request sent", fields...)
	}

	if err := d.repo.MarkDispatch(ctx, e.ChatID, e.ClassDate, status, errText); err != nil {
		log.Warn("mark dispatch failed", append(fields, zap.Error(err))...)
	}
}

// Wait blocks until every background send has finished.
func (d *Deduplicator) Wait() {
	d.wg.Wait()
}
