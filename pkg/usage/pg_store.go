package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// Free-tier limits used when an account has no entitlement row yet. Must
// match the entitlement package's free defaults.
const (
	defaultAnalysisLimit = 100
	defaultRoastLimit    = 10
)

// PGStore is the Postgres-backed usage Store. Each primitive is a single
// SQL statement, which is what makes Add and ConsumeIfBelow atomic under
// concurrent requests: the row lock taken by the statement serializes
// racing increments, and the conditional form evaluates the limit inside
// the same statement.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given connection pool.
// Panics on a nil pool to fail fast during initialization.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("usage: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) Snapshot(ctx context.Context, accountID uuid.UUID, periodStart, periodEnd time.Time) (*Snapshot, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}

	snap := &Snapshot{
		Counter: Counter{AccountID: accountID, PeriodStart: periodStart, PeriodEnd: periodEnd},
	}
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(e.analysis_limit_monthly, $3),
		        COALESCE(e.roast_limit_monthly, $4),
		        COALESCE(u.analysis_used, 0),
		        COALESCE(u.roasts_used, 0)
		 FROM (SELECT $1::uuid AS account_id) a
		 LEFT JOIN account_entitlements e ON e.account_id = a.account_id
		 LEFT JOIN usage_counters u ON u.account_id = a.account_id AND u.period_start = $2`,
		accountID, periodStart, defaultAnalysisLimit, defaultRoastLimit).
		Scan(&snap.AnalysisLimit, &snap.RoastLimit, &snap.Counter.AnalysisUsed, &snap.Counter.RoastsUsed)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return snap, nil
}

func (s *PGStore) Add(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64, periodStart, periodEnd time.Time) (int64, error) {
	if accountID == uuid.Nil {
		return 0, ErrEmptyAccountID
	}
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	// Kind selects between two static statements; column names never come
	// from input.
	query := `INSERT INTO usage_counters AS uc (account_id, period_start, period_end, analysis_used, roasts_used)
		 VALUES ($1, $2, $3, $4, 0)
		 ON CONFLICT (account_id, period_start) DO UPDATE SET analysis_used = uc.analysis_used + $4, updated_at = now()
		 RETURNING analysis_used`
	if kind == KindRoasts {
		query = `INSERT INTO usage_counters AS uc (account_id, period_start, period_end, analysis_used, roasts_used)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (account_id, period_start) DO UPDATE SET roasts_used = uc.roasts_used + $4, updated_at = now()
		 RETURNING roasts_used`
	}

	var newUsed int64
	if err := s.pool.QueryRow(ctx, query, accountID, periodStart, periodEnd, amount).Scan(&newUsed); err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return newUsed, nil
}

func (s *PGStore) ConsumeIfBelow(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64, periodStart, periodEnd time.Time) (*ConsumeResult, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	query := `WITH lim AS (
		   SELECT COALESCE((SELECT analysis_limit_monthly FROM account_entitlements WHERE account_id = $1), $5) AS l
		 )
		 INSERT INTO usage_counters AS uc (account_id, period_start, period_end, analysis_used, roasts_used)
		 SELECT $1, $2, $3, $4, 0 FROM lim WHERE l = -1 OR $4 <= l
		 ON CONFLICT (account_id, period_start) DO UPDATE SET analysis_used = uc.analysis_used + $4, updated_at = now()
		 WHERE (SELECT l FROM lim) = -1 OR uc.analysis_used + $4 <= (SELECT l FROM lim)
		 RETURNING analysis_used`
	limit := int64(defaultAnalysisLimit)
	if kind == KindRoasts {
		query = `WITH lim AS (
		   SELECT COALESCE((SELECT roast_limit_monthly FROM account_entitlements WHERE account_id = $1), $5) AS l
		 )
		 INSERT INTO usage_counters AS uc (account_id, period_start, period_end, analysis_used, roasts_used)
		 SELECT $1, $2, $3, 0, $4 FROM lim WHERE l = -1 OR $4 <= l
		 ON CONFLICT (account_id, period_start) DO UPDATE SET roasts_used = uc.roasts_used + $4, updated_at = now()
		 WHERE (SELECT l FROM lim) = -1 OR uc.roasts_used + $4 <= (SELECT l FROM lim)
		 RETURNING roasts_used`
		limit = defaultRoastLimit
	}

	var newUsed int64
	err := s.pool.QueryRow(ctx, query, accountID, periodStart, periodEnd, amount, limit).Scan(&newUsed)
	if err != nil {
		if pg.IsNotFoundError(err) {
			// The conditional rejected the increment: the counter is full.
			return &ConsumeResult{Allowed: false, Kind: kind}, nil
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &ConsumeResult{Allowed: true, Kind: kind, NewUsed: newUsed}, nil
}

func (s *PGStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM usage_counters WHERE period_end <= $1`, cutoff)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return tag.RowsAffected(), nil
}
