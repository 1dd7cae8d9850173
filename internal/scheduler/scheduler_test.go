package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/example/internship-platform/internal/scheduler"
	"github.com/example/internship-platform/internal/testfixtures"
)

type recorder struct {
	mu    sync.Mutex
	calls []scheduler.Job
	fn    func(ctx context.Context, job scheduler.Job) error
}

func (r *recorder) Handle(ctx context.Context, job scheduler.Job) error {
	r.mu.Lock()
	r.calls = append(r.calls, job)
	fn := r.fn
	r.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, job)
}

func (r *recorder) Calls() []scheduler.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scheduler.Job(nil), r.calls...)
}

func newTestScheduler(t *testing.T, cfg scheduler.Config) (*scheduler.Scheduler, *scheduler.MemoryStore, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	store := scheduler.NewMemoryStore(clock.NowFunc())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := scheduler.New(store, cfg, testfixtures.NewIDGenerator("mail").NextFunc(), clock.NowFunc(), logger)
	return s, store, clock
}

func drain(t *testing.T, s *scheduler.Scheduler) int {
	t.Helper()
	total := 0
	for i := 0; i < 20; i++ {
		n, err := s.RunDue(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return total
		}
		total += n
	}
	t.Fatalf("jobs still due after 20 rounds")
	return total
}

func TestScheduleReplacesJobUnderSameKey(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{})
	ctx := context.Background()

	first, err := scheduler.NewEmailJob("welcome", "a@example.com", "first", map[string]string{"message": "one"}, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	second, err := scheduler.NewEmailJob("welcome", "a@example.com", "second", map[string]string{"message": "two"}, clock.Now().Add(2*time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.Schedule(ctx, first))
	require.NoError(t, s.Schedule(ctx, second))

	jobs, err := s.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "second", jobs[0].Payload[scheduler.PayloadSubject])
	assert.Equal(t, scheduler.DefaultMaxRetries, jobs[0].MaxRetries)
	assert.Equal(t, 1, store.Len())
}

func TestScheduleEmailRequiresMessageOrTemplate(t *testing.T) {
	s, store, _ := newTestScheduler(t, scheduler.Config{})

	err := s.ScheduleEmail(context.Background(), "a@example.com", "subject", map[string]string{"fullName": "Ada"})
	require.ErrorIs(t, err, scheduler.ErrInvalidContent)
	assert.Zero(t, store.Len())

	require.NoError(t, s.ScheduleEmail(context.Background(), "a@example.com", "subject", map[string]string{"template": "request-status"}))
	jobs, err := s.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "email:mail-1", jobs[0].Key)
}

func TestFireRetriesThenSchedulesSingleFallback(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{FallbackRecipient: "admin@example.com"})
	handler := &recorder{fn: func(ctx context.Context, job scheduler.Job) error {
		return errors.New("relay down")
	}}
	s.Register(scheduler.JobTypeEmail, handler)

	job, err := scheduler.NewEmailJob("status", "intern@example.com", "Your request", map[string]string{"message": "hi"}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.Schedule(context.Background(), job))

	drain(t, s)

	calls := handler.Calls()
	require.Len(t, calls, scheduler.DefaultMaxRetries+2)
	for i := 0; i <= scheduler.DefaultMaxRetries; i++ {
		assert.Equal(t, "status", calls[i].Key)
		assert.Equal(t, i, calls[i].RetryCount)
	}

	fallback := calls[len(calls)-1]
	assert.Equal(t, "fallback:status:"+calls[0].Revision, fallback.Key)
	assert.Equal(t, "admin@example.com", fallback.Payload[scheduler.PayloadEmail])
	assert.True(t, fallback.IsFallback())
	assert.Zero(t, fallback.MaxRetries)

	content, err := scheduler.DecodeContent(fallback.Payload[scheduler.PayloadContent])
	require.NoError(t, err)
	assert.Contains(t, content["message"], "intern@example.com")
	assert.Contains(t, content["message"], "relay down")

	assert.Zero(t, store.Len(), "failing fallback must not be retried or escalated")
}

// unreliableGetStore fails Get while failGet is set.
type unreliableGetStore struct {
	*scheduler.MemoryStore
	failGet bool
}

func (s *unreliableGetStore) Get(ctx context.Context, key string) (scheduler.Job, error) {
	if s.failGet {
		return scheduler.Job{}, errors.New("connection reset")
	}
	return s.MemoryStore.Get(ctx, key)
}

func TestFireCompletesExhaustedJobWhenReloadFails(t *testing.T) {
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	store := &unreliableGetStore{MemoryStore: scheduler.NewMemoryStore(clock.NowFunc())}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := scheduler.New(store, scheduler.Config{MaxRetries: 1, FallbackRecipient: "admin@example.com"},
		testfixtures.NewIDGenerator("mail").NextFunc(), clock.NowFunc(), logger)
	handler := &recorder{fn: func(ctx context.Context, job scheduler.Job) error {
		if job.IsFallback() {
			return nil
		}
		return errors.New("relay down")
	}}
	s.Register(scheduler.JobTypeEmail, handler)
	ctx := context.Background()

	job, err := scheduler.NewEmailJob("status", "intern@example.com", "Your request", map[string]string{"message": "hi"}, clock.Now())
	require.NoError(t, err)
	job.MaxRetries = 1
	require.NoError(t, s.Schedule(ctx, job))

	n, err := s.RunDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	store.failGet = true
	n, err = s.RunDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	store.failGet = false

	_, err = store.MemoryStore.Get(ctx, "status")
	assert.ErrorIs(t, err, scheduler.ErrJobNotFound, "exhausted job must not outlive its lease")

	clock.Advance(2 * time.Minute)
	drain(t, s)

	var original int
	for _, call := range handler.Calls() {
		if call.Key == "status" {
			original++
		}
	}
	assert.Equal(t, 2, original, "no attempt beyond MaxRetries")
	assert.True(t, handler.Calls()[len(handler.Calls())-1].IsFallback())
	assert.Zero(t, store.Len())
}

func TestFireWithoutFallbackRecipientDropsExhaustedJob(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{MaxRetries: 1})
	handler := &recorder{fn: func(ctx context.Context, job scheduler.Job) error {
		return errors.New("boom")
	}}
	s.Register(scheduler.JobTypeEmail, handler)

	job, err := scheduler.NewEmailJob("status", "intern@example.com", "s", map[string]string{"message": "hi"}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.Schedule(context.Background(), job))

	drain(t, s)

	assert.Len(t, handler.Calls(), 2)
	assert.Zero(t, store.Len())
}

func TestFireNoRetries(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{})
	handler := &recorder{fn: func(ctx context.Context, job scheduler.Job) error {
		return errors.New("boom")
	}}
	s.Register("custom", handler)

	require.NoError(t, s.Schedule(context.Background(), scheduler.Job{
		Key: "once", Type: "custom", FireAt: clock.Now(), MaxRetries: scheduler.NoRetries,
	}))

	drain(t, s)

	assert.Len(t, handler.Calls(), 1)
	assert.Zero(t, store.Len(), "non-notification jobs never escalate")
}

func TestCancelWhileRunningPreventsRetry(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{FallbackRecipient: "admin@example.com"})
	handler := &recorder{}
	handler.fn = func(ctx context.Context, job scheduler.Job) error {
		require.NoError(t, s.Cancel(ctx, job.Key))
		return errors.New("failed after cancel")
	}
	s.Register(scheduler.JobTypeEmail, handler)

	job, err := scheduler.NewEmailJob("status", "intern@example.com", "s", map[string]string{"message": "hi"}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.Schedule(context.Background(), job))

	drain(t, s)

	assert.Len(t, handler.Calls(), 1)
	assert.Zero(t, store.Len())
}

func TestReplaceWhileRunningKeepsNewJob(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{})
	handler := &recorder{}
	handler.fn = func(ctx context.Context, job scheduler.Job) error {
		if job.Payload[scheduler.PayloadSubject] != "old" {
			return nil
		}
		replacement, err := scheduler.NewEmailJob(job.Key, "intern@example.com", "new", map[string]string{"message": "hi"}, clock.Now().Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.Schedule(ctx, replacement))
		return nil
	}
	s.Register(scheduler.JobTypeEmail, handler)

	job, err := scheduler.NewEmailJob("status", "intern@example.com", "old", map[string]string{"message": "hi"}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.Schedule(context.Background(), job))

	drain(t, s)

	stored, err := store.Get(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Payload[scheduler.PayloadSubject])
	assert.Len(t, handler.Calls(), 1)
}

func TestFutureJobsWaitForFireTime(t *testing.T) {
	s, _, clock := newTestScheduler(t, scheduler.Config{})
	handler := &recorder{}
	s.Register(scheduler.JobTypeReminder, handler)

	job, err := scheduler.NewReminderJob(scheduler.Reminder{
		Kind:           scheduler.ReminderStartDate,
		SeasonID:       "season",
		SeasonName:     "Summer",
		RecipientEmail: "mentor@example.com",
		FireAt:         clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, s.Schedule(context.Background(), job))

	assert.Zero(t, drain(t, s))
	clock.Advance(time.Hour)
	assert.Equal(t, 1, drain(t, s))
	assert.Len(t, handler.Calls(), 1)
}

func TestFireWithoutHandlerDropsJob(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{})
	require.NoError(t, s.Schedule(context.Background(), scheduler.Job{Key: "orphan", Type: "unknown", FireAt: clock.Now()}))

	jobs, err := store.ClaimDue(context.Background(), clock.Now(), time.Minute, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	err = s.Fire(context.Background(), jobs[0])
	require.ErrorIs(t, err, scheduler.ErrNoHandler)
	assert.Zero(t, store.Len())
}

func TestHandlerPanicCountsAsFailure(t *testing.T) {
	s, store, clock := newTestScheduler(t, scheduler.Config{})
	s.Register("custom", scheduler.HandlerFunc(func(ctx context.Context, job scheduler.Job) error {
		panic("kaboom")
	}))
	require.NoError(t, s.Schedule(context.Background(), scheduler.Job{
		Key: "p", Type: "custom", FireAt: clock.Now(), MaxRetries: scheduler.NoRetries,
	}))

	jobs, err := store.ClaimDue(context.Background(), clock.Now(), time.Minute, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	err = s.Fire(context.Background(), jobs[0])
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "handler panic"), err.Error())
	assert.Zero(t, store.Len())
}

func TestStartFiresMissedJobsAndNewlyScheduledOnes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, _, clock := newTestScheduler(t, scheduler.Config{Workers: 2, PollInterval: time.Hour})
	fired := make(chan string, 4)
	s.Register("custom", scheduler.HandlerFunc(func(ctx context.Context, job scheduler.Job) error {
		fired <- job.Key
		return nil
	}))

	require.NoError(t, s.Schedule(context.Background(), scheduler.Job{Key: "missed", Type: "custom", FireAt: clock.Now().Add(-time.Hour)}))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	select {
	case key := <-fired:
		assert.Equal(t, "missed", key)
	case <-time.After(5 * time.Second):
		t.Fatal("missed job did not fire on start")
	}

	require.NoError(t, s.Schedule(context.Background(), scheduler.Job{Key: "now", Type: "custom", FireAt: clock.Now()}))
	select {
	case key := <-fired:
		assert.Equal(t, "now", key)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduling a due job did not wake the loop")
	}

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestSchedulerStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, _, _ := newTestScheduler(t, scheduler.Config{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	s.Stop()
}
