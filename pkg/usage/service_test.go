package usage_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/usage"
)

func limits(analysis, roast int64) usage.LimitSource {
	return usage.LimitSourceFunc(func(context.Context, uuid.UUID) (int64, int64, error) {
		return analysis, roast, nil
	})
}

type failingStore struct{}

func (failingStore) Snapshot(context.Context, uuid.UUID, time.Time, time.Time) (*usage.Snapshot, error) {
	return nil, errors.New("store down")
}

func (failingStore) Add(context.Context, uuid.UUID, usage.CounterKind, int64, time.Time, time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func (failingStore) ConsumeIfBelow(context.Context, uuid.UUID, usage.CounterKind, int64, time.Time, time.Time) (*usage.ConsumeResult, error) {
	return nil, errors.New("store down")
}

func (failingStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func TestService_CheckLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("below the limit", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(100, 10)))
		accountID := uuid.New()

		_, err := svc.Increment(ctx, accountID, usage.KindAnalysis, 40)
		require.NoError(t, err)

		res, err := svc.CheckLimit(ctx, accountID, usage.KindAnalysis)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(40), res.Used)
		assert.Equal(t, int64(100), res.Limit)
		assert.Equal(t, int64(60), res.Remaining)
		assert.False(t, res.Unlimited)
		assert.False(t, res.PeriodEnd.IsZero())
	})

	t.Run("exhausted limit denies with zero remaining", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(100, 10)))
		accountID := uuid.New()

		_, err := svc.Increment(ctx, accountID, usage.KindRoasts, 10)
		require.NoError(t, err)

		res, err := svc.CheckLimit(ctx, accountID, usage.KindRoasts)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, int64(10), res.Used)
		assert.Equal(t, int64(0), res.Remaining)
	})

	t.Run("unlimited allows any usage", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(usage.Unlimited, usage.Unlimited)))
		accountID := uuid.New()

		_, err := svc.Increment(ctx, accountID, usage.KindAnalysis, 1_000_000)
		require.NoError(t, err)

		res, err := svc.CheckLimit(ctx, accountID, usage.KindAnalysis)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.True(t, res.Unlimited)
		assert.Equal(t, usage.Unlimited, res.Remaining)
		assert.Equal(t, int64(1_000_000), res.Used)
	})

	t.Run("fails closed when the store cannot answer", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(failingStore{})
		res, err := svc.CheckLimit(ctx, uuid.New(), usage.KindAnalysis)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})

	t.Run("invalid kind", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(nil))
		_, err := svc.CheckLimit(ctx, uuid.New(), usage.CounterKind("tokens"))
		require.ErrorIs(t, err, usage.ErrInvalidKind)
	})
}

func TestService_Increment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("counters are independent and monotonic", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(100, 10)))
		accountID := uuid.New()

		n, err := svc.Increment(ctx, accountID, usage.KindAnalysis, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = svc.Increment(ctx, accountID, usage.KindAnalysis, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = svc.Increment(ctx, accountID, usage.KindRoasts, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(nil))
		_, err := svc.Increment(ctx, uuid.New(), usage.KindAnalysis, 0)
		require.ErrorIs(t, err, usage.ErrInvalidAmount)
		_, err = svc.Increment(ctx, uuid.New(), usage.KindAnalysis, -5)
		require.ErrorIs(t, err, usage.ErrInvalidAmount)
	})

	t.Run("concurrent increments all land", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(usage.Unlimited, usage.Unlimited)))
		accountID := uuid.New()

		const workers = 50
		var wg sync.WaitGroup
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				_, err := svc.Increment(ctx, accountID, usage.KindAnalysis, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		res, err := svc.CheckLimit(ctx, accountID, usage.KindAnalysis)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), res.Used)
	})
}

func TestService_TryConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("consumes up to the limit and never past it", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(100, 3)))
		accountID := uuid.New()

		for want := int64(1); want <= 3; want++ {
			res, err := svc.TryConsume(ctx, accountID, usage.KindRoasts, 1)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, want, res.NewUsed)
		}

		res, err := svc.TryConsume(ctx, accountID, usage.KindRoasts, 1)
		require.NoError(t, err)
		assert.False(t, res.Allowed)

		// The denied attempt left the counter untouched.
		check, err := svc.CheckLimit(ctx, accountID, usage.KindRoasts)
		require.NoError(t, err)
		assert.Equal(t, int64(3), check.Used)
	})

	t.Run("no overshoot under concurrency", func(t *testing.T) {
		t.Parallel()

		const limit = 20
		svc := usage.NewService(usage.NewMemoryStore(limits(limit, 10)))
		accountID := uuid.New()

		const workers = 100
		var allowed atomic.Int64
		var wg sync.WaitGroup
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				res, err := svc.TryConsume(ctx, accountID, usage.KindAnalysis, 1)
				if assert.NoError(t, err) && res.Allowed {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(limit), allowed.Load())

		check, err := svc.CheckLimit(ctx, accountID, usage.KindAnalysis)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), check.Used)
	})

	t.Run("unlimited always consumes", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(usage.NewMemoryStore(limits(usage.Unlimited, usage.Unlimited)))
		res, err := svc.TryConsume(ctx, uuid.New(), usage.KindAnalysis, 1_000_000)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})
}

func TestService_Summary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := usage.NewService(usage.NewMemoryStore(limits(100, usage.Unlimited)))
	accountID := uuid.New()

	_, err := svc.Increment(ctx, accountID, usage.KindAnalysis, 25)
	require.NoError(t, err)
	_, err = svc.Increment(ctx, accountID, usage.KindRoasts, 7)
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, accountID)
	require.NoError(t, err)

	assert.Equal(t, accountID, sum.AccountID)
	assert.Equal(t, int64(25), sum.Analysis.Used)
	assert.Equal(t, 25, sum.Analysis.Percentage)
	assert.False(t, sum.Analysis.Unlimited)
	assert.Equal(t, int64(7), sum.Roasts.Used)
	assert.True(t, sum.Roasts.Unlimited)
	assert.Equal(t, -1, sum.Roasts.Percentage)
	assert.True(t, sum.PeriodEnd.After(sum.PeriodStart))
}

func TestService_PeriodRollover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := usage.NewMemoryStore(limits(100, 10))
	svc := usage.NewService(store, usage.WithClock(clock))
	accountID := uuid.New()

	_, err := svc.Increment(ctx, accountID, usage.KindAnalysis, 99)
	require.NoError(t, err)

	// New month, fresh counter.
	mu.Lock()
	now = time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)
	mu.Unlock()

	res, err := svc.CheckLimit(ctx, accountID, usage.KindAnalysis)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(0), res.Used)

	// The closed period can now be purged.
	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestCurrentPeriod(t *testing.T) {
	t.Parallel()

	start, end := usage.CurrentPeriod(time.Date(2026, 8, 15, 13, 45, 0, 0, time.FixedZone("CEST", 2*3600)))
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), end)
}
