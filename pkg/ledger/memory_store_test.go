package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/ledger"
)

func TestMemoryStore_Begin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first claim starts, second is duplicate", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		out, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_1", Kind: "checkout_completed"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, ledger.Started, out)

		out, err = store.Begin(ctx, ledger.BeginRequest{EventID: "evt_1", Kind: "checkout_completed"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, ledger.Duplicate, out)
	})

	t.Run("empty event id rejected", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		_, err := store.Begin(ctx, ledger.BeginRequest{}, time.Minute)
		require.ErrorIs(t, err, ledger.ErrEmptyEventID)
	})

	t.Run("terminal record stays duplicate", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		_, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_2"}, 0)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "evt_2", ledger.Outcome{Success: true, Summary: "done"}))

		out, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_2"}, time.Nanosecond)
		require.NoError(t, err)
		assert.Equal(t, ledger.Duplicate, out)
	})

	t.Run("concurrent claims resolve to one start", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		const workers = 32
		var started atomic.Int64
		var wg sync.WaitGroup
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				out, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_race"}, time.Minute)
				require.NoError(t, err)
				if out == ledger.Started {
					started.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), started.Load())
	})
}

func TestMemoryStore_StaleReclaim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := ledger.NewMemoryStore(ledger.WithClock(clock))

	out, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_stuck"}, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, ledger.Started, out)

	// Within the staleness budget the claim holds.
	mu.Lock()
	now = now.Add(4 * time.Minute)
	mu.Unlock()
	out, err = store.Begin(ctx, ledger.BeginRequest{EventID: "evt_stuck"}, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ledger.Duplicate, out)

	// Past it, a redelivery takes over.
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	out, err = store.Begin(ctx, ledger.BeginRequest{EventID: "evt_stuck"}, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ledger.Reclaimed, out)

	// Zero staleAfter disables reclaim entirely.
	mu.Lock()
	now = now.Add(24 * time.Hour)
	mu.Unlock()
	out, err = store.Begin(ctx, ledger.BeginRequest{EventID: "evt_stuck"}, 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.Duplicate, out)
}

func TestMemoryStore_Complete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("records outcome", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		_, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_1", Kind: "payment_succeeded"}, 0)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "evt_1", ledger.Outcome{Success: true, Summary: "paid"}))

		rec, err := store.Get(ctx, "evt_1")
		require.NoError(t, err)
		assert.Equal(t, ledger.StateCompleted, rec.State)
		assert.Equal(t, "paid", rec.ResultSummary)
		require.NotNil(t, rec.CompletedAt)

		processed, err := store.HasProcessed(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("repeat with same outcome is a no-op", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		_, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_2"}, 0)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "evt_2", ledger.Outcome{Success: false, Err: "boom"}))
		require.NoError(t, store.Complete(ctx, "evt_2", ledger.Outcome{Success: false, Err: "boom"}))

		rec, err := store.Get(ctx, "evt_2")
		require.NoError(t, err)
		assert.Equal(t, ledger.StateFailed, rec.State)
		assert.Equal(t, "boom", rec.LastError)
	})

	t.Run("conflicting outcome after terminal state rejected", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		_, err := store.Begin(ctx, ledger.BeginRequest{EventID: "evt_3"}, 0)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "evt_3", ledger.Outcome{Success: true}))

		err = store.Complete(ctx, "evt_3", ledger.Outcome{Success: false, Err: "late failure"})
		require.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
	})

	t.Run("unknown event", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		err := store.Complete(ctx, "evt_missing", ledger.Outcome{Success: true})
		require.ErrorIs(t, err, ledger.ErrRecordNotFound)
	})
}

func TestMemoryStore_PurgeOlderThan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := ledger.NewMemoryStore(ledger.WithClock(func() time.Time { return now }))

	_, err := store.Begin(ctx, ledger.BeginRequest{EventID: "old"}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "old", ledger.Outcome{Success: true}))

	now = now.Add(48 * time.Hour)
	_, err = store.Begin(ctx, ledger.BeginRequest{EventID: "fresh"}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "fresh", ledger.Outcome{Success: true}))

	_, err = store.Begin(ctx, ledger.BeginRequest{EventID: "inflight"}, 0)
	require.NoError(t, err)

	purged, err := store.PurgeOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.Get(ctx, "old")
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)

	// Fresh and in-flight records survive.
	_, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
	_, err = store.Get(ctx, "inflight")
	require.NoError(t, err)
}
