// Package storetest holds the behavioural suite every scheduler.JobStore
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/internship-platform/internal/scheduler"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) scheduler.JobStore

var base = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func job(key string, fireAt time.Time) scheduler.Job {
	return scheduler.Job{
		Key:        key,
		Type:       scheduler.JobTypeEmail,
		Payload:    map[string]string{scheduler.PayloadEmail: key + "@example.com", scheduler.PayloadSubject: "subject"},
		FireAt:     fireAt,
		MaxRetries: scheduler.DefaultMaxRetries,
	}
}

// Run exercises newStore against the JobStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("save assigns a revision and replaces by key", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		first, err := store.Save(ctx, job("a", base))
		require.NoError(t, err)
		require.NotEmpty(t, first.Revision)

		replacement := job("a", base.Add(time.Hour))
		replacement.Payload[scheduler.PayloadSubject] = "updated"
		second, err := store.Save(ctx, replacement)
		require.NoError(t, err)
		require.NotEqual(t, first.Revision, second.Revision)

		jobs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		require.Equal(t, second.Revision, jobs[0].Revision)
		require.Equal(t, "updated", jobs[0].Payload[scheduler.PayloadSubject])
		require.True(t, jobs[0].FireAt.Equal(base.Add(time.Hour)))
	})

	t.Run("save rejects incomplete jobs", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Save(context.Background(), scheduler.Job{Key: "x", Type: scheduler.JobTypeEmail})
		require.Error(t, err)
	})

	t.Run("get and remove", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		saved, err := store.Save(ctx, job("a", base))
		require.NoError(t, err)

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, saved.Revision, got.Revision)
		require.Equal(t, saved.Payload, got.Payload)
		require.Equal(t, scheduler.DefaultMaxRetries, got.MaxRetries)

		require.NoError(t, store.Remove(ctx, "a"))
		require.NoError(t, store.Remove(ctx, "a"))

		_, err = store.Get(ctx, "a")
		require.ErrorIs(t, err, scheduler.ErrJobNotFound)
	})

	t.Run("list orders by fire time then key", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		for _, j := range []scheduler.Job{job("c", base), job("b", base.Add(time.Minute)), job("a", base)} {
			_, err := store.Save(ctx, j)
			require.NoError(t, err)
		}

		jobs, err := store.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "c", "b"}, keys(jobs))
	})

	t.Run("claim due leases jobs until the lease expires", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		for _, j := range []scheduler.Job{job("past", base.Add(-time.Hour)), job("now", base), job("future", base.Add(time.Hour))} {
			_, err := store.Save(ctx, j)
			require.NoError(t, err)
		}

		claimed, err := store.ClaimDue(ctx, base, time.Minute, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"past", "now"}, keys(claimed))
		for _, c := range claimed {
			require.True(t, c.LeaseUntil.Equal(base.Add(time.Minute)), "lease of %s", c.Key)
		}

		again, err := store.ClaimDue(ctx, base.Add(30*time.Second), time.Minute, 10)
		require.NoError(t, err)
		require.Empty(t, again)

		expired, err := store.ClaimDue(ctx, base.Add(2*time.Minute), time.Minute, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"past", "now"}, keys(expired))
	})

	t.Run("claim due honours the limit", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		for i := 0; i < 5; i++ {
			_, err := store.Save(ctx, job(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Second)))
			require.NoError(t, err)
		}

		claimed, err := store.ClaimDue(ctx, base.Add(time.Minute), time.Minute, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"job-0", "job-1"}, keys(claimed))
	})

	t.Run("reschedule requires the claimed revision", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		_, err := store.Save(ctx, job("a", base))
		require.NoError(t, err)
		claimed, err := store.ClaimDue(ctx, base, time.Minute, 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.ErrorIs(t, store.Reschedule(ctx, "a", "stale", 1, base), scheduler.ErrSuperseded)

		require.NoError(t, store.Reschedule(ctx, "a", claimed[0].Revision, 1, base))
		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, 1, got.RetryCount)
		require.True(t, got.LeaseUntil.IsZero())

		retried, err := store.ClaimDue(ctx, base, time.Minute, 1)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, keys(retried))
	})

	t.Run("complete leaves a replaced job untouched", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		_, err := store.Save(ctx, job("a", base))
		require.NoError(t, err)
		claimed, err := store.ClaimDue(ctx, base, time.Minute, 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		replacement, err := store.Save(ctx, job("a", base.Add(time.Hour)))
		require.NoError(t, err)

		require.ErrorIs(t, store.Complete(ctx, "a", claimed[0].Revision), scheduler.ErrSuperseded)
		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, replacement.Revision, got.Revision)

		require.NoError(t, store.Complete(ctx, "a", replacement.Revision))
		_, err = store.Get(ctx, "a")
		require.ErrorIs(t, err, scheduler.ErrJobNotFound)
	})

	t.Run("complete after remove reports superseded", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		saved, err := store.Save(ctx, job("a", base))
		require.NoError(t, err)
		require.NoError(t, store.Remove(ctx, "a"))
		require.ErrorIs(t, store.Complete(ctx, "a", saved.Revision), scheduler.ErrSuperseded)
		require.ErrorIs(t, store.Reschedule(ctx, "a", saved.Revision, 1, base), scheduler.ErrSuperseded)
	})
}

func keys(jobs []scheduler.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Key)
	}
	return out
}
