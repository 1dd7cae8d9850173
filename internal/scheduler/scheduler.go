// Package scheduler runs keyed, retryable deferred jobs stored in a JobStore.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Handler executes jobs of one type. Handlers run concurrently on worker
// goroutines and must not share mutable state outside the JobStore.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Config tunes the scheduler loop.
type Config struct {
	Workers           int
	PollInterval      time.Duration
	Lease             time.Duration
	BatchSize         int
	MaxRetries        int
	FallbackRecipient string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		PollInterval: time.Second,
		Lease:        time.Minute,
		BatchSize:    50,
		MaxRetries:   DefaultMaxRetries,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Lease <= 0 {
		c.Lease = def.Lease
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	return c
}

// Scheduler schedules, cancels and fires jobs held in a JobStore.
type Scheduler struct {
	store       JobStore
	cfg         Config
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	wake    chan struct{}
}

// New wires a scheduler around store.
func New(store JobStore, cfg Config, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Scheduler {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:       store,
		cfg:         cfg.withDefaults(),
		idGenerator: idGenerator,
		now:         now,
		logger:      logger.With("component", "scheduler"),
		handlers:    make(map[string]Handler),
		wake:        make(chan struct{}, 1),
	}
}

// Register installs the handler for jobType, replacing any previous one.
func (s *Scheduler) Register(jobType string, handler Handler) {
	s.handlersMu.Lock()
	s.handlers[jobType] = handler
	s.handlersMu.Unlock()
}

func (s *Scheduler) handler(jobType string) (Handler, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	h, ok := s.handlers[jobType]
	return h, ok
}

// Schedule inserts job or replaces the job already stored under its key.
// A replaced job never fires after Schedule returns.
func (s *Scheduler) Schedule(ctx context.Context, job Job) error {
	if err := ValidateJob(job); err != nil {
		return err
	}
	switch {
	case job.MaxRetries < 0:
		job.MaxRetries = 0
	case job.MaxRetries == 0:
		job.MaxRetries = s.cfg.MaxRetries
	}

	stored, err := s.store.Save(ctx, job)
	if err != nil {
		recordStoreError("save")
		return &SchedulingError{Op: "save", Key: job.Key, Err: err}
	}
	jobsScheduled.WithLabelValues(job.Type).Inc()
	s.logger.DebugContext(ctx, "job scheduled", "job_key", stored.Key, "job_type", stored.Type, "fire_at", stored.FireAt)

	if !stored.FireAt.After(s.now()) {
		s.notify()
	}
	return nil
}

// Cancel removes the job under key. Cancelling an unknown key succeeds. A
// handler already running is not interrupted, but the job is not retried.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	if err := s.store.Remove(ctx, key); err != nil {
		recordStoreError("remove")
		return &SchedulingError{Op: "remove", Key: key, Err: err}
	}
	jobsCancelled.Inc()
	s.logger.DebugContext(ctx, "job cancelled", "job_key", key)
	return nil
}

// ScheduleEmail enqueues a one-shot mail job firing immediately. content must
// carry either "message" or "template".
func (s *Scheduler) ScheduleEmail(ctx context.Context, recipient, subject string, content map[string]string) error {
	job, err := NewEmailJob("email:"+s.idGenerator(), recipient, subject, content, s.now())
	if err != nil {
		return err
	}
	return s.Schedule(ctx, job)
}

// Jobs returns every stored job.
func (s *Scheduler) Jobs(ctx context.Context) ([]Job, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		recordStoreError("list")
		return nil, &SchedulingError{Op: "list", Err: err}
	}
	return jobs, nil
}

// Fire runs the handler registered for job.Type. A failed run is re-enqueued
// immediately until MaxRetries is reached; an exhausted notification job is
// replaced by a single non-retried alert to the fallback recipient.
func (s *Scheduler) Fire(ctx context.Context, job Job) error {
	logger := s.logger.With("job_key", job.Key, "job_type", job.Type, "retry_count", job.RetryCount)

	handler, ok := s.handler(job.Type)
	if !ok {
		logger.ErrorContext(ctx, "no handler registered; dropping job")
		recordFired(job.Type, "no_handler")
		s.complete(ctx, logger, job)
		return fmt.Errorf("%w for %q", ErrNoHandler, job.Type)
	}

	runErr := s.invoke(ctx, handler, job)
	if runErr == nil {
		if s.complete(ctx, logger, job) {
			recordFired(job.Type, "success")
		}
		return nil
	}

	if job.RetryCount < job.MaxRetries {
		err := s.store.Reschedule(ctx, job.Key, job.Revision, job.RetryCount+1, s.now())
		switch {
		case errors.Is(err, ErrSuperseded):
			logger.InfoContext(ctx, "job cancelled or replaced while running; not retrying", "error", runErr)
			recordFired(job.Type, "superseded")
		case err != nil:
			recordStoreError("reschedule")
			logger.ErrorContext(ctx, "failed to re-enqueue job", "error", err, "cause", runErr)
		default:
			logger.WarnContext(ctx, "job failed; retrying", "error", runErr)
			recordFired(job.Type, "retry")
			s.notify()
		}
		return runErr
	}

	logger.ErrorContext(ctx, "job exhausted retries", "error", runErr, "max_retries", job.MaxRetries)
	recordFired(job.Type, "exhausted")

	current, err := s.store.Get(ctx, job.Key)
	switch {
	case errors.Is(err, ErrJobNotFound), err == nil && current.Revision != job.Revision:
		logger.InfoContext(ctx, "exhausted job was cancelled or replaced; no fallback")
		return runErr
	case err != nil:
		recordStoreError("get")
		logger.ErrorContext(ctx, "failed to reload exhausted job; completing it anyway", "error", err)
	}
	if job.IsNotification() && !job.IsFallback() {
		s.scheduleFallback(ctx, logger, job, runErr)
	}
	s.complete(ctx, logger, job)
	return runErr
}

// RunDue claims the jobs due now and fires them on the calling goroutine.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	jobs, err := s.store.ClaimDue(ctx, s.now(), s.cfg.Lease, s.cfg.BatchSize)
	if err != nil {
		recordStoreError("claim")
		return 0, &SchedulingError{Op: "claim", Err: err}
	}
	for _, job := range jobs {
		_ = s.Fire(ctx, job)
	}
	return len(jobs), nil
}

// Start launches the polling loop and worker pool. Jobs whose fire time
// passed while the scheduler was down are due and fire on the first poll.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Info("scheduler started",
		"workers", s.cfg.Workers,
		"poll_interval", s.cfg.PollInterval,
		"max_retries", s.cfg.MaxRetries,
	)
	return nil
}

// Stop halts polling and waits for in-flight handlers to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan Job)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			for job := range work {
				_ = s.Fire(gctx, job)
			}
			return nil
		})
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	defer func() {
		close(work)
		_ = g.Wait()
	}()

	for {
		if !s.dispatch(ctx, work) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, work chan<- Job) bool {
	jobs, err := s.store.ClaimDue(ctx, s.now(), s.cfg.Lease, s.cfg.BatchSize)
	if err != nil {
		recordStoreError("claim")
		s.logger.ErrorContext(ctx, "failed to claim due jobs", "error", err)
		return true
	}
	for _, job := range jobs {
		select {
		case work <- job:
		case <-ctx.Done():
			return false
		case <-s.stop:
			return false
		}
	}
	return true
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) invoke(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, job.Clone())
}

// complete removes the claimed revision and reports whether it was still current.
func (s *Scheduler) complete(ctx context.Context, logger *slog.Logger, job Job) bool {
	err := s.store.Complete(ctx, job.Key, job.Revision)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSuperseded):
		logger.DebugContext(ctx, "job replaced or cancelled while running")
		recordFired(job.Type, "superseded")
	default:
		recordStoreError("complete")
		logger.ErrorContext(ctx, "failed to complete job", "error", err)
	}
	return false
}

func (s *Scheduler) scheduleFallback(ctx context.Context, logger *slog.Logger, job Job, cause error) {
	if s.cfg.FallbackRecipient == "" {
		logger.ErrorContext(ctx, "no fallback recipient configured; notification failure not escalated")
		return
	}

	message := fmt.Sprintf("Notification job %s (%s) to %s with subject %q failed after %d attempts: %v",
		job.Key, job.Type, job.Payload[PayloadEmail], job.Payload[PayloadSubject], job.RetryCount+1, cause)
	fallback, err := NewEmailJob("fallback:"+job.Key+":"+job.Revision, s.cfg.FallbackRecipient,
		"Notification delivery failed", map[string]string{ContentMessage: message}, s.now())
	if err != nil {
		logger.ErrorContext(ctx, "failed to build fallback job", "error", err)
		return
	}
	fallback.MaxRetries = NoRetries
	fallback.Payload[PayloadFallback] = "true"

	if err := s.Schedule(ctx, fallback); err != nil {
		logger.ErrorContext(ctx, "failed to schedule fallback job", "error", err)
		return
	}
	fallbacksScheduled.Inc()
	logger.WarnContext(ctx, "fallback notification scheduled", "fallback_key", fallback.Key)
}
