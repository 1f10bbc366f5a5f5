package ledger

import (
	"context"
	"time"
)

// Store persists processing records. Implementations must make Begin an
// atomic insert-if-absent: two concurrent calls for the same event id must
// resolve to exactly one Started (or Reclaimed) and the rest Duplicate.
type Store interface {
	// HasProcessed reports whether a terminal record exists for the event.
	// Single atomic read.
	HasProcessed(ctx context.Context, eventID string) (bool, error)

	// Begin claims the event for processing. staleAfter bounds how long an
	// in-flight record may sit in StateProcessing before a redelivery is
	// allowed to reclaim it; zero disables reclaim.
	Begin(ctx context.Context, req BeginRequest, staleAfter time.Duration) (BeginOutcome, error)

	// Complete transitions the record to its terminal state. Calling it
	// again with the same outcome is a no-op; a conflicting outcome after a
	// terminal state returns ErrAlreadyFinalized.
	Complete(ctx context.Context, eventID string, outcome Outcome) error

	// Get returns the record for an event id, or ErrRecordNotFound.
	Get(ctx context.Context, eventID string) (*ProcessingRecord, error)

	// PurgeOlderThan removes terminal records completed before the cutoff
	// and returns how many were deleted. Intended for a retention job, not
	// for the processing path.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
