package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// PGStore is the Postgres-backed Store. The webhook_events primary key on
// event_id is what makes Begin race-free: the insert either lands or
// conflicts, and the conflict is the duplicate signal.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given connection pool.
// Panics on a nil pool to fail fast during initialization.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("ledger: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, ErrEmptyEventID
	}

	var processed bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM webhook_events
			WHERE event_id = $1 AND state IN ('completed', 'failed')
		)`, eventID).Scan(&processed)
	if err != nil {
		return false, errors.Join(ErrStoreFailure, err)
	}
	return processed, nil
}

func (s *PGStore) Begin(ctx context.Context, req BeginRequest, staleAfter time.Duration) (BeginOutcome, error) {
	if req.EventID == "" {
		return Duplicate, ErrEmptyEventID
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_events (event_id, kind, state, customer_ref, subscription_ref, started_at)
		 VALUES ($1, $2, 'processing', $3, $4, now())
		 ON CONFLICT (event_id) DO NOTHING`,
		req.EventID, req.Kind, req.CustomerRef, req.SubscriptionRef)
	if err != nil {
		return Duplicate, errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 1 {
		return Started, nil
	}

	if staleAfter > 0 {
		// Conditional takeover: only an in-flight record past the staleness
		// threshold can be reclaimed, so a live worker is never preempted.
		tag, err = s.pool.Exec(ctx,
			`UPDATE webhook_events
			 SET started_at = now(), customer_ref = $2, subscription_ref = $3
			 WHERE event_id = $1
			   AND state = 'processing'
			   AND started_at < now() - $4::interval`,
			req.EventID, req.CustomerRef, req.SubscriptionRef, staleAfter.String())
		if err != nil {
			return Duplicate, errors.Join(ErrStoreFailure, err)
		}
		if tag.RowsAffected() == 1 {
			return Reclaimed, nil
		}
	}

	return Duplicate, nil
}

func (s *PGStore) Complete(ctx context.Context, eventID string, outcome Outcome) error {
	if eventID == "" {
		return ErrEmptyEventID
	}

	state := StateCompleted
	if !outcome.Success {
		state = StateFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET state = $2, completed_at = now(), result_summary = $3, last_error = $4
		 WHERE event_id = $1 AND state = 'processing'`,
		eventID, string(state), outcome.Summary, outcome.Err)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// The transition did not apply: either unknown event, a repeated call
	// with the same outcome (no-op), or a conflicting outcome (rejected).
	rec, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if rec.State == state {
		return nil
	}
	return ErrAlreadyFinalized
}

func (s *PGStore) Get(ctx context.Context, eventID string) (*ProcessingRecord, error) {
	if eventID == "" {
		return nil, ErrEmptyEventID
	}

	var rec ProcessingRecord
	err := s.pool.QueryRow(ctx,
		`SELECT event_id, kind, state, customer_ref, subscription_ref,
		        started_at, completed_at, result_summary, last_error
		 FROM webhook_events WHERE event_id = $1`, eventID).
		Scan(&rec.EventID, &rec.Kind, &rec.State, &rec.CustomerRef, &rec.SubscriptionRef,
			&rec.StartedAt, &rec.CompletedAt, &rec.ResultSummary, &rec.LastError)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &rec, nil
}

func (s *PGStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_events
		 WHERE state IN ('completed', 'failed') AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return tag.RowsAffected(), nil
}
