// Package redis implements a scheduler.JobStore shared by every instance
// connected to the same Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/internship-platform/internal/scheduler"
)

// DefaultPrefix namespaces the store's keys.
const DefaultPrefix = "internship:jobs:"

const (
	fieldType       = "type"
	fieldPayload    = "payload"
	fieldFireAt     = "fire_at"
	fieldRetryCount = "retry_count"
	fieldMaxRetries = "max_retries"
	fieldRevision   = "revision"
	fieldLeaseUntil = "lease_until"
	fieldCreatedAt  = "created_at"
)

// maxTxRetries bounds optimistic transaction retries on contention.
const maxTxRetries = 5

// JobStore keeps each job in a hash at <prefix>job:<key> and indexes the
// instant it next becomes claimable (fire time or lease end, in unix
// milliseconds) in the sorted set <prefix>due.
type JobStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

var _ scheduler.JobStore = (*JobStore)(nil)

// NewJobStore returns a store using client. An empty prefix uses DefaultPrefix.
func NewJobStore(client goredis.UniversalClient, prefix string, now func() time.Time, logger *slog.Logger) *JobStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobStore{
		client: client,
		prefix: prefix,
		now:    now,
		logger: logger.With("component", "redis_job_store"),
	}
}

func (s *JobStore) jobKey(key string) string {
	return s.prefix + "job:" + key
}

func (s *JobStore) dueKey() string {
	return s.prefix + "due"
}

// Save implements scheduler.JobStore.
func (s *JobStore) Save(ctx context.Context, job scheduler.Job) (scheduler.Job, error) {
	if err := scheduler.ValidateJob(job); err != nil {
		return scheduler.Job{}, err
	}
	stored := job.Clone()
	stored.Revision = uuid.NewString()
	stored.LeaseUntil = time.Time{}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}

	fields, err := encodeJob(stored)
	if err != nil {
		return scheduler.Job{}, err
	}

	hashKey := s.jobKey(stored.Key)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, hashKey)
		pipe.HSet(ctx, hashKey, fields)
		pipe.ZAdd(ctx, s.dueKey(), goredis.Z{Score: score(stored.FireAt), Member: stored.Key})
		return nil
	})
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("redis: save job %s: %w", job.Key, err)
	}
	return stored, nil
}

// Remove implements scheduler.JobStore.
func (s *JobStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.jobKey(key))
		pipe.ZRem(ctx, s.dueKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: remove job %s: %w", key, err)
	}
	return nil
}

// Get implements scheduler.JobStore.
func (s *JobStore) Get(ctx context.Context, key string) (scheduler.Job, error) {
	job, err := s.load(ctx, s.client, key)
	if err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
		return scheduler.Job{}, fmt.Errorf("redis: get job %s: %w", key, err)
	}
	return job, err
}

// List implements scheduler.JobStore.
func (s *JobStore) List(ctx context.Context) ([]scheduler.Job, error) {
	keys, err := s.client.ZRange(ctx, s.dueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list jobs: %w", err)
	}

	jobs := make([]scheduler.Job, 0, len(keys))
	for _, key := range keys {
		job, err := s.load(ctx, s.client, key)
		if errors.Is(err, scheduler.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: list jobs: %w", err)
		}
		jobs = append(jobs, job)
	}
	scheduler.SortJobs(jobs)
	return jobs, nil
}

// ClaimDue implements scheduler.JobStore. Each candidate is leased in its
// own WATCH transaction; a job changed by another client in between is
// skipped.
func (s *JobStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]scheduler.Job, error) {
	var count int64
	if limit > 0 {
		count = int64(limit)
	}
	keys, err := s.client.ZRangeByScore(ctx, s.dueKey(), &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: claim due jobs: %w", err)
	}

	leaseUntil := now.Add(lease)
	claimed := make([]scheduler.Job, 0, len(keys))
	for _, key := range keys {
		var job scheduler.Job
		hashKey := s.jobKey(key)
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			current, err := s.load(ctx, tx, key)
			if err != nil {
				return err
			}
			if !current.Due(now) {
				return errNotDue
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.HSet(ctx, hashKey, fieldLeaseUntil, nanos(leaseUntil))
				pipe.ZAdd(ctx, s.dueKey(), goredis.Z{Score: score(leaseUntil), Member: key})
				return nil
			})
			if err != nil {
				return err
			}
			current.LeaseUntil = leaseUntil
			job = current
			return nil
		}, hashKey)

		switch {
		case err == nil:
			claimed = append(claimed, job)
		case errors.Is(err, scheduler.ErrJobNotFound):
			s.client.ZRem(ctx, s.dueKey(), key)
		case errors.Is(err, errNotDue), errors.Is(err, goredis.TxFailedErr):
			s.logger.DebugContext(ctx, "skipping job claimed elsewhere", "job_key", key)
		default:
			return claimed, fmt.Errorf("redis: claim job %s: %w", key, err)
		}
	}

	scheduler.SortJobs(claimed)
	return claimed, nil
}

var errNotDue = errors.New("redis: job not due")

// Reschedule implements scheduler.JobStore.
func (s *JobStore) Reschedule(ctx context.Context, key, revision string, retryCount int, fireAt time.Time) error {
	return s.onRevision(ctx, "reschedule", key, revision, func(pipe goredis.Pipeliner) {
		pipe.HSet(ctx, s.jobKey(key),
			fieldRetryCount, retryCount,
			fieldFireAt, nanos(fireAt),
			fieldLeaseUntil, 0,
		)
		pipe.ZAdd(ctx, s.dueKey(), goredis.Z{Score: score(fireAt), Member: key})
	})
}

// Complete implements scheduler.JobStore.
func (s *JobStore) Complete(ctx context.Context, key, revision string) error {
	return s.onRevision(ctx, "complete", key, revision, func(pipe goredis.Pipeliner) {
		pipe.Del(ctx, s.jobKey(key))
		pipe.ZRem(ctx, s.dueKey(), key)
	})
}

// onRevision applies mutate atomically when the stored job still carries
// revision, retrying when another client touches the job concurrently.
func (s *JobStore) onRevision(ctx context.Context, op, key, revision string, mutate func(goredis.Pipeliner)) error {
	hashKey := s.jobKey(key)
	txf := func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, hashKey, fieldRevision).Result()
		if errors.Is(err, goredis.Nil) || (err == nil && current != revision) {
			return scheduler.ErrSuperseded
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			mutate(pipe)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, hashKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if errors.Is(err, scheduler.ErrSuperseded) {
			return err
		}
		if err != nil {
			return fmt.Errorf("redis: %s job %s: %w", op, key, err)
		}
		return nil
	}
	return fmt.Errorf("redis: %s job %s: %w", op, key, goredis.TxFailedErr)
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

func (s *JobStore) load(ctx context.Context, c hashReader, key string) (scheduler.Job, error) {
	fields, err := c.HGetAll(ctx, s.jobKey(key)).Result()
	if err != nil {
		return scheduler.Job{}, err
	}
	if len(fields) == 0 {
		return scheduler.Job{}, scheduler.ErrJobNotFound
	}
	return decodeJob(key, fields)
}

func encodeJob(job scheduler.Job) (map[string]any, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("redis: encode payload: %w", err)
	}
	return map[string]any{
		fieldType:       job.Type,
		fieldPayload:    string(payload),
		fieldFireAt:     nanos(job.FireAt),
		fieldRetryCount: job.RetryCount,
		fieldMaxRetries: job.MaxRetries,
		fieldRevision:   job.Revision,
		fieldLeaseUntil: nanos(job.LeaseUntil),
		fieldCreatedAt:  nanos(job.CreatedAt),
	}, nil
}

func decodeJob(key string, fields map[string]string) (scheduler.Job, error) {
	job := scheduler.Job{
		Key:      key,
		Type:     fields[fieldType],
		Revision: fields[fieldRevision],
	}
	if err := json.Unmarshal([]byte(fields[fieldPayload]), &job.Payload); err != nil {
		return scheduler.Job{}, fmt.Errorf("redis: decode payload of %s: %w", key, err)
	}

	ints := make(map[string]int64, 5)
	for _, name := range []string{fieldFireAt, fieldRetryCount, fieldMaxRetries, fieldLeaseUntil, fieldCreatedAt} {
		raw := strings.TrimSpace(fields[name])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return scheduler.Job{}, fmt.Errorf("redis: decode %s of %s: %w", name, key, err)
		}
		ints[name] = v
	}
	job.FireAt = fromNanos(ints[fieldFireAt])
	job.RetryCount = int(ints[fieldRetryCount])
	job.MaxRetries = int(ints[fieldMaxRetries])
	job.LeaseUntil = fromNanos(ints[fieldLeaseUntil])
	job.CreatedAt = fromNanos(ints[fieldCreatedAt])
	return job, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
