package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/internship-platform/internal/scheduler"
)

const jobColumns = `job_key, job_type, payload, fire_at, retry_count, max_retries, revision, lease_until, created_at`

// JobStore is a durable scheduler.JobStore. Times are stored as UTC unix
// nanoseconds; zero times are stored as 0.
type JobStore struct {
	db     *sql.DB
	retry  RetryConfig
	now    func() time.Time
	logger *slog.Logger
}

var _ scheduler.JobStore = (*JobStore)(nil)

// NewJobStore migrates the schema on db and returns the store.
func NewJobStore(ctx context.Context, db *sql.DB, now func() time.Time, logger *slog.Logger) (*JobStore, error) {
	if db == nil {
		return nil, errors.New("sqlite: job store requires a database")
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := migrate(ctx, db, jobStoreMigrations); err != nil {
		return nil, err
	}
	return &JobStore{
		db:     db,
		retry:  DefaultRetryConfig(),
		now:    now,
		logger: logger.With("component", "sqlite_job_store"),
	}, nil
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

	payload, err := json.Marshal(stored.Payload)
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("sqlite: encode payload: %w", err)
	}

	const query = `INSERT INTO scheduled_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(job_key) DO UPDATE SET
			job_type = excluded.job_type,
			payload = excluded.payload,
			fire_at = excluded.fire_at,
			retry_count = excluded.retry_count,
			max_retries = excluded.max_retries,
			revision = excluded.revision,
			lease_until = 0,
			created_at = excluded.created_at`

	err = withRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, query,
			stored.Key, stored.Type, string(payload), toNanos(stored.FireAt),
			stored.RetryCount, stored.MaxRetries, stored.Revision, toNanos(stored.CreatedAt))
		return err
	})
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("sqlite: save job %s: %w", job.Key, err)
	}
	return stored, nil
}

// Remove implements scheduler.JobStore.
func (s *JobStore) Remove(ctx context.Context, key string) error {
	err := withRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE job_key = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: remove job %s: %w", key, err)
	}
	return nil
}

// Get implements scheduler.JobStore.
func (s *JobStore) Get(ctx context.Context, key string) (scheduler.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scheduled_jobs WHERE job_key = ?`, key)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return scheduler.Job{}, scheduler.ErrJobNotFound
	}
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("sqlite: get job %s: %w", key, err)
	}
	return job, nil
}

// List implements scheduler.JobStore.
func (s *JobStore) List(ctx context.Context) ([]scheduler.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM scheduled_jobs ORDER BY fire_at, job_key`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimDue implements scheduler.JobStore. A job is leased only when its row
// still holds the selected revision and no live lease, so concurrent
// claimers never share a job.
func (s *JobStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]scheduler.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	nowNanos := toNanos(now)
	leaseUntil := now.Add(lease)

	var claimed []scheduler.Job
	err := withRetry(ctx, s.retry, func() error {
		claimed = claimed[:0]
		return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
			rows, err := tx.QueryContext(ctx,
				`SELECT `+jobColumns+` FROM scheduled_jobs
				 WHERE fire_at <= ? AND lease_until <= ?
				 ORDER BY fire_at, job_key LIMIT ?`,
				nowNanos, nowNanos, limit)
			if err != nil {
				return err
			}
			due, err := scanJobs(rows)
			_ = rows.Close()
			if err != nil {
				return err
			}

			for _, job := range due {
				res, err := tx.ExecContext(ctx,
					`UPDATE scheduled_jobs SET lease_until = ?
					 WHERE job_key = ? AND revision = ? AND lease_until <= ?`,
					toNanos(leaseUntil), job.Key, job.Revision, nowNanos)
				if err != nil {
					return err
				}
				if n, _ := res.RowsAffected(); n == 0 {
					continue
				}
				job.LeaseUntil = leaseUntil
				claimed = append(claimed, job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: claim due jobs: %w", err)
	}
	return claimed, nil
}

// Reschedule implements scheduler.JobStore.
func (s *JobStore) Reschedule(ctx context.Context, key, revision string, retryCount int, fireAt time.Time) error {
	return s.execOnRevision(ctx, "reschedule", key,
		`UPDATE scheduled_jobs SET retry_count = ?, fire_at = ?, lease_until = 0
		 WHERE job_key = ? AND revision = ?`,
		retryCount, toNanos(fireAt), key, revision)
}

// Complete implements scheduler.JobStore.
func (s *JobStore) Complete(ctx context.Context, key, revision string) error {
	return s.execOnRevision(ctx, "complete", key,
		`DELETE FROM scheduled_jobs WHERE job_key = ? AND revision = ?`,
		key, revision)
}

func (s *JobStore) execOnRevision(ctx context.Context, op, key, query string, args ...any) error {
	var affected int64
	err := withRetry(ctx, s.retry, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: %s job %s: %w", op, key, err)
	}
	if affected == 0 {
		s.logger.DebugContext(ctx, "job revision superseded", "op", op, "job_key", key)
		return scheduler.ErrSuperseded
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (scheduler.Job, error) {
	var (
		job                         scheduler.Job
		payload                     string
		fireAt, leaseUntil, created int64
	)
	if err := row.Scan(&job.Key, &job.Type, &payload, &fireAt, &job.RetryCount, &job.MaxRetries, &job.Revision, &leaseUntil, &created); err != nil {
		return scheduler.Job{}, err
	}
	if err := json.Unmarshal([]byte(payload), &job.Payload); err != nil {
		return scheduler.Job{}, fmt.Errorf("decode payload of %s: %w", job.Key, err)
	}
	job.FireAt = fromNanos(fireAt)
	job.LeaseUntil = fromNanos(leaseUntil)
	job.CreatedAt = fromNanos(created)
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]scheduler.Job, error) {
	jobs := make([]scheduler.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func toNanos(t time.Time) int64 {
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
