package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Snapshot pairs the current counter with the limits in force, read
// consistently: both sides must come from the same store round trip so a
// concurrent entitlement change cannot be observed halfway.
type Snapshot struct {
	Counter       Counter
	AnalysisLimit int64
	RoastLimit    int64
}

// Store persists usage counters. Add and ConsumeIfBelow must be atomic in
// the underlying store; callers are never allowed to read-modify-write a
// counter.
type Store interface {
	// Snapshot returns the counter for the period together with the
	// account's limits. A missing counter reads as zeros; missing limits
	// read as the free-tier defaults.
	Snapshot(ctx context.Context, accountID uuid.UUID, periodStart, periodEnd time.Time) (*Snapshot, error)

	// Add increments the counter unconditionally and returns the new value.
	// Creates the period row if it does not exist yet.
	Add(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64, periodStart, periodEnd time.Time) (int64, error)

	// ConsumeIfBelow increments only while the result stays within the
	// account's limit (or the limit is unlimited), as one atomic
	// conditional update. A denied attempt leaves the counter untouched.
	ConsumeIfBelow(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64, periodStart, periodEnd time.Time) (*ConsumeResult, error)

	// PurgeExpired removes counter rows whose period ended before the
	// cutoff and returns how many were deleted. Rollover primitive for an
	// external scheduler; new periods start implicitly at zero.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// LimitSource supplies the limits in force for an account. Used by stores
// that do not hold entitlements themselves.
type LimitSource interface {
	Limits(ctx context.Context, accountID uuid.UUID) (analysis, roast int64, err error)
}

// LimitSourceFunc adapts a function to the LimitSource interface.
type LimitSourceFunc func(ctx context.Context, accountID uuid.UUID) (int64, int64, error)

func (f LimitSourceFunc) Limits(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	return f(ctx, accountID)
}
