package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// PGStore is the Postgres-backed entitlement Store. Save is a full-row
// upsert, which keeps the wholesale-overwrite contract inside a single
// statement.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given connection pool.
// Panics on a nil pool to fail fast during initialization.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("entitlement: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, accountID uuid.UUID) (*Entitlement, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}

	var ent Entitlement
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, plan_name, analysis_limit_monthly, roast_limit_monthly,
		        model, shield_enabled, moderation_mode,
		        provider_price_ref, provider_product_ref, source, updated_at
		 FROM account_entitlements WHERE account_id = $1`, accountID).
		Scan(&ent.AccountID, &ent.PlanName, &ent.AnalysisLimitMonthly, &ent.RoastLimitMonthly,
			&ent.Model, &ent.ShieldEnabled, &ent.ModerationMode,
			&ent.ProviderPriceRef, &ent.ProviderProductRef, &ent.Source, &ent.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEntitlementNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &ent, nil
}

func (s *PGStore) Save(ctx context.Context, ent *Entitlement) error {
	if ent == nil || ent.AccountID == uuid.Nil {
		return ErrEmptyAccountID
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_entitlements
		   (account_id, plan_name, analysis_limit_monthly, roast_limit_monthly,
		    model, shield_enabled, moderation_mode,
		    provider_price_ref, provider_product_ref, source, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (account_id) DO UPDATE SET
		   plan_name = EXCLUDED.plan_name,
		   analysis_limit_monthly = EXCLUDED.analysis_limit_monthly,
		   roast_limit_monthly = EXCLUDED.roast_limit_monthly,
		   model = EXCLUDED.model,
		   shield_enabled = EXCLUDED.shield_enabled,
		   moderation_mode = EXCLUDED.moderation_mode,
		   provider_price_ref = EXCLUDED.provider_price_ref,
		   provider_product_ref = EXCLUDED.provider_product_ref,
		   source = EXCLUDED.source,
		   updated_at = now()`,
		ent.AccountID, ent.PlanName, ent.AnalysisLimitMonthly, ent.RoastLimitMonthly,
		ent.Model, ent.ShieldEnabled, ent.ModerationMode,
		ent.ProviderPriceRef, ent.ProviderProductRef, ent.Source)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}
