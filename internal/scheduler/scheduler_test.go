package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classfeedback/feedback-bot/internal/domain"
	"github.com/classfeedback/feedback-bot/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeSender struct {
	mu    sync.Mutex
	calls []int64
	texts []string
	err   error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatID)
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeSender) Calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

type fixture struct {
	db     *store.DB
	loc    *time.Location
	clock  *testClock
	sender *fakeSender
	sched  *Scheduler
}

func newFixture(t *testing.T, entries []domain.ScheduleEntry) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"), loc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.SeedSchedule(context.Background(), entries)
	require.NoError(t, err)

	f := &fixture{db: db, loc: loc, clock: &testClock{}, sender: &fakeSender{}}
	f.sched = f.newScheduler()
	return f
}

func (f *fixture) newScheduler() *Scheduler {
	return New(f.db, f.sender, f.clock, zap.NewNop(), Config{
		Location:        f.loc,
		PollInterval:    10 * time.Minute,
		Retention:       7 * 24 * time.Hour,
		SendConcurrency: 2,
	})
}

func (f *fixture) at(y int, m time.Month, d, hh, mm int) {
	f.clock.Set(time.Date(y, m, d, hh, mm, 0, 0, f.loc))
}

func (f *fixture) addUser(t *testing.T, chatID int64, g domain.Group, start string, active bool) {
	t.Helper()
	sd, err := time.ParseInLocation("2006-01-02", start, f.loc)
	require.NoError(t, err)
	require.NoError(t, f.db.UpsertUser(context.Background(), &domain.User{
		ChatID: chatID, FirstName: "U", Group: g, StartDate: sd, Active: active,
	}))
}

func wednesdaySchedule() []domain.ScheduleEntry {
	return []domain.ScheduleEntry{{Group: domain.GroupWeekday, Weekday: 2, EndMinutes: 18 * 60}}
}

// 2025-05-07 is a Wednesday.
func TestRunPass_DispatchesOnceWithinGraceWindow(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-23", true)
	ctx := context.Background()

	f.at(2025, time.May, 7, 18, 3)
	res, err := f.sched.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Eligible)
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, 0, res.Skipped)
	assert.NotEmpty(t, res.PassID)
	f.sched.Wait()

	f.at(2025, time.May, 7, 18, 7)
	res, err = f.sched.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scheduled)
	assert.Equal(t, 1, res.Skipped)
	f.sched.Wait()

	assert.Equal(t, []int64{1}, f.sender.Calls())
	assert.Equal(t, FeedbackRequestText, f.sender.texts[0])

	rec, err := f.db.GetDispatch(ctx, 1, "2025-05-07")
	require.NoError(t, err)
	assert.Equal(t, store.DispatchSent, rec.Status)
}

func TestRunPass_MissedWindowIsNotBackfilled(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-23", true)

	f.at(2025, time.May, 7, 18, 15)
	res, err := f.sched.RunPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Eligible)
	assert.Zero(t, res.Scheduled)
	f.sched.Wait()
	assert.Empty(t, f.sender.Calls())
}

func TestRunPass_RepeatedPassesSendOnce(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-23", true)
	f.addUser(t, 2, domain.GroupWeekday, "2025-04-23", true)

	total := 0
	for i := 0; i <= 10; i++ {
		f.at(2025, time.May, 7, 18, i)
		res, err := f.sched.RunPass(context.Background())
		require.NoError(t, err)
		total += res.Scheduled
	}
	f.sched.Wait()
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []int64{1, 2}, f.sender.Calls())
}

func TestRunPass_ConcurrentSchedulersClaimOnce(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	for id := int64(1); id <= 5; id++ {
		f.addUser(t, id, domain.GroupWeekday, "2025-04-23", true)
	}
	f.at(2025, time.May, 7, 18, 2)

	// separate schedulers do not share a single-flight guard
	scheds := []*Scheduler{f.newScheduler(), f.newScheduler(), f.newScheduler()}
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for _, s := range scheds {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			res, err := s.RunPass(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			total += res.Scheduled
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	for _, s := range scheds {
		s.Wait()
	}

	assert.Equal(t, 5, total)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, f.sender.Calls())
}

func TestRunPass_InactiveAndFutureUsersSkipped(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-23", false)
	f.addUser(t, 2, domain.GroupWeekday, "2025-05-08", true)
	f.addUser(t, 3, domain.GroupWeekday, "2025-05-07", true)

	f.at(2025, time.May, 7, 18, 0)
	res, err := f.sched.RunPass(context.Background())
	require.NoError(t, err)
	f.sched.Wait()
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, []int64{3}, f.sender.Calls())
}

func TestRunPass_OnlyGroupWhoseClassEnded(t *testing.T) {
	f := newFixture(t, []domain.ScheduleEntry{
		{Group: domain.GroupWeekday, Weekday: 2, EndMinutes: 18 * 60},
		{Group: domain.GroupWeekend, Weekday: 2, EndMinutes: 14 * 60},
	})
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-01", true)
	f.addUser(t, 2, domain.GroupWeekend, "2025-04-01", true)

	f.at(2025, time.May, 7, 14, 4)
	res, err := f.sched.RunPass(context.Background())
	require.NoError(t, err)
	f.sched.Wait()
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, []int64{2}, f.sender.Calls())
}

func TestRunPass_LateClassDispatchedAfterMidnight(t *testing.T) {
	f := newFixture(t, []domain.ScheduleEntry{{Group: domain.GroupWeekday, Weekday: 1, EndMinutes: 23*60 + 55}})
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-01", true)
	ctx := context.Background()

	f.at(2025, time.May, 6, 23, 50)
	res, err := f.sched.RunPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Scheduled)

	f.at(2025, time.May, 7, 0, 2)
	res, err = f.sched.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scheduled)
	f.sched.Wait()

	_, err = f.db.GetDispatch(ctx, 1, "2025-05-06")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, f.sender.Calls())
}

func TestRunPass_SendFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-01", true)
	f.sender.err = errors.New("Forbidden: bot was blocked by the user")
	ctx := context.Background()

	f.at(2025, time.May, 7, 18, 1)
	res, err := f.sched.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scheduled)
	f.sched.Wait()

	rec, err := f.db.GetDispatch(ctx, 1, "2025-05-07")
	require.NoError(t, err)
	assert.Equal(t, store.DispatchFailed, rec.Status)
	assert.Contains(t, rec.Error, "blocked")

	// not retried
	f.sender.err = nil
	f.at(2025, time.May, 7, 18, 6)
	res, err = f.sched.RunPass(ctx)
	require.NoError(t, err)
	f.sched.Wait()
	assert.Equal(t, 0, res.Scheduled)
	assert.Len(t, f.sender.Calls(), 1)
}

func TestRunPass_StoreUnavailable(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.at(2025, time.May, 7, 18, 1)
	require.NoError(t, f.db.Close())

	_, err := f.sched.RunPass(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestRunPass_PrunesOldRecords(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	ctx := context.Background()
	_, err := f.db.ClaimDispatch(ctx, store.DispatchRecord{ChatID: 9, ClassDate: "2025-04-20", ClassEnd: time.Now()})
	require.NoError(t, err)
	_, err = f.db.ClaimDispatch(ctx, store.DispatchRecord{ChatID: 9, ClassDate: "2025-05-01", ClassEnd: time.Now()})
	require.NoError(t, err)

	f.at(2025, time.May, 7, 10, 0)
	res, err := f.sched.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Pruned)

	_, err = f.db.GetDispatch(ctx, 9, "2025-05-01")
	assert.NoError(t, err)
}

func TestRun_FirstPassAfterStartupDelay(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-01", true)
	f.at(2025, time.May, 7, 18, 5)

	s := New(f.db, f.sender, f.clock, zap.NewNop(), Config{
		Location:     f.loc,
		PollInterval: time.Hour,
		StartupDelay: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(f.sender.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	require.NoError(t, s.WaitContext(context.Background()))
}

// gatedRepo holds ListSchedule until release is closed.
type gatedRepo struct {
	*store.DB
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (r *gatedRepo) ListSchedule(ctx context.Context, weekday int) ([]domain.ScheduleEntry, error) {
	if r.calls.Add(1) == 1 {
		close(r.entered)
	}
	<-r.release
	return r.DB.ListSchedule(ctx, weekday)
}

func TestRunPass_SharedPassSurvivesCanceledCaller(t *testing.T) {
	f := newFixture(t, wednesdaySchedule())
	f.addUser(t, 1, domain.GroupWeekday, "2025-04-01", true)
	f.at(2025, time.May, 7, 18, 2)

	repo := &gatedRepo{DB: f.db, entered: make(chan struct{}), release: make(chan struct{})}
	s := New(repo, f.sender, f.clock, zap.NewNop(), Config{Location: f.loc, PollInterval: 10 * time.Minute})

	// an HTTP-triggered pass whose client goes away
	reqCtx, cancel := context.WithCancel(context.Background())
	reqErr := make(chan error, 1)
	go func() {
		_, err := s.RunPass(reqCtx)
		reqErr <- err
	}()
	<-repo.entered

	type outcome struct {
		res Result
		err error
	}
	tick := make(chan outcome, 1)
	go func() {
		res, err := s.RunPass(context.Background())
		tick <- outcome{res, err}
	}()

	cancel()
	require.ErrorIs(t, <-reqErr, context.Canceled)

	// give the tick time to join the pass that is still blocked
	time.Sleep(50 * time.Millisecond)
	close(repo.release)

	got := <-tick
	require.NoError(t, got.err)
	assert.True(t, got.res.Shared)
	assert.Equal(t, 1, got.res.Scheduled)
	// one pass reads today's and yesterday's schedule
	assert.Equal(t, int32(2), repo.calls.Load())

	s.Wait()
	assert.Equal(t, []int64{1}, f.sender.Calls())
}

func TestNotifyError(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&NotifyError{ChatID: 1, ClassDate: "2025-05-07", Err: cause})
	assert.ErrorIs(t, err, ErrNotifyFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "chat 1")
}
