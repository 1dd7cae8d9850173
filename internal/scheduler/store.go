package scheduler

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStore persists keyed jobs. It is the single point of synchronisation
// between schedulers, cancellations and workers.
type JobStore interface {
	// Save inserts or atomically replaces the job stored under job.Key. The
	// stored copy gets a fresh Revision and no lease.
	Save(ctx context.Context, job Job) (Job, error)
	// Remove deletes the job under key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error
	// Get returns the job under key or ErrJobNotFound.
	Get(ctx context.Context, key string) (Job, error)
	// List returns all jobs ordered by fire time, then key.
	List(ctx context.Context) ([]Job, error)
	// ClaimDue leases up to limit jobs that are due at now so no other
	// worker claims them until the lease expires.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error)
	// Reschedule re-enqueues the claimed revision with a new retry count
	// and fire time. It fails with ErrSuperseded when the revision is gone.
	Reschedule(ctx context.Context, key, revision string, retryCount int, fireAt time.Time) error
	// Complete removes the claimed revision. It fails with ErrSuperseded
	// and leaves the store untouched when the revision is gone.
	Complete(ctx context.Context, key, revision string) error
}

// MemoryStore is an in-process JobStore.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
	now  func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{jobs: make(map[string]Job), now: now}
}

// Save implements JobStore.
func (s *MemoryStore) Save(ctx context.Context, job Job) (Job, error) {
	if err := ValidateJob(job); err != nil {
		return Job{}, err
	}
	stored := job.Clone()
	stored.Revision = uuid.NewString()
	stored.LeaseUntil = time.Time{}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.jobs[job.Key] = stored
	s.mu.Unlock()

	return stored.Clone(), nil
}

// Remove implements JobStore.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.jobs, key)
	s.mu.Unlock()
	return nil
}

// Get implements JobStore.
func (s *MemoryStore) Get(ctx context.Context, key string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List implements JobStore.
func (s *MemoryStore) List(ctx context.Context) ([]Job, error) {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.Unlock()

	SortJobs(out)
	return out, nil
}

// ClaimDue implements JobStore.
func (s *MemoryStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]Job, 0)
	for _, job := range s.jobs {
		if job.Due(now) {
			due = append(due, job)
		}
	}
	SortJobs(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	leaseUntil := now.Add(lease)
	for i := range due {
		due[i].LeaseUntil = leaseUntil
		s.jobs[due[i].Key] = due[i]
		due[i] = due[i].Clone()
	}
	return due, nil
}

// Reschedule implements JobStore.
func (s *MemoryStore) Reschedule(ctx context.Context, key, revision string, retryCount int, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok || job.Revision != revision {
		return ErrSuperseded
	}
	job.RetryCount = retryCount
	job.FireAt = fireAt
	job.LeaseUntil = time.Time{}
	s.jobs[key] = job
	return nil
}

// Complete implements JobStore.
func (s *MemoryStore) Complete(ctx context.Context, key, revision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok || job.Revision != revision {
		return ErrSuperseded
	}
	delete(s.jobs, key)
	return nil
}

// Len returns the number of stored jobs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// SortJobs orders jobs by fire time, then key.
func SortJobs(jobs []Job) {
	slices.SortFunc(jobs, func(a, b Job) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}
