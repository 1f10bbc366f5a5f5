package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Resolver is the single writer of entitlement records. It derives records
// from provider price metadata, applies manual grants, and answers
// plan-level access queries.
type Resolver struct {
	store  Store
	api    PriceAPI // nil when billing integration is disabled
	levels LevelMatrix
	log    *slog.Logger
}

// ResolverOption configures optional Resolver settings.
type ResolverOption func(*Resolver)

// WithPriceAPI enables provider-backed resolution. Without it,
// ResolveFromPrice always applies the fallback.
func WithPriceAPI(api PriceAPI) ResolverOption {
	return func(r *Resolver) { r.api = api }
}

// WithLevelMatrix overrides the compiled-in tier level ceilings.
func WithLevelMatrix(m LevelMatrix) ResolverOption {
	return func(r *Resolver) {
		if m != nil {
			r.levels = m
		}
	}
}

// WithLogger sets the structured logger used for degraded-path warnings.
func WithLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a Resolver over the given store.
// Panics on a nil store to fail fast during initialization.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	if store == nil {
		panic("entitlement: Store is required")
	}

	r := &Resolver{
		store:  store,
		levels: DefaultLevelMatrix(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveFromPrice derives the account's entitlement from provider price
// metadata and persists it wholesale. On any upstream failure the account
// is placed on the free-tier fallback instead; the returned result reports
// Success false and FallbackApplied true, and the error is nil because the
// account ended in a valid state. A non-nil error means even the fallback
// could not be persisted.
func (r *Resolver) ResolveFromPrice(ctx context.Context, accountID uuid.UUID, priceRef string) (*ResolveResult, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}
	if priceRef == "" {
		return nil, ErrEmptyPriceRef
	}

	price, err := r.retrievePrice(ctx, priceRef)
	if err != nil {
		r.log.WarnContext(ctx, "price resolution failed, applying free-tier fallback",
			slog.String("account_id", accountID.String()),
			slog.String("price_ref", priceRef),
			slog.Any("error", err))
		return r.applyFallback(ctx, accountID)
	}

	ent := extractFromPrice(price)
	ent.AccountID = accountID
	ent.ProviderPriceRef = price.ID
	ent.ProviderProductRef = price.Product.ID
	ent.Source = SourceProviderPrice
	ent.UpdatedAt = time.Now().UTC()

	if err := r.store.Save(ctx, &ent); err != nil {
		r.log.WarnContext(ctx, "entitlement persist failed, applying free-tier fallback",
			slog.String("account_id", accountID.String()),
			slog.Any("error", err))
		return r.applyFallback(ctx, accountID)
	}

	return &ResolveResult{Success: true, Entitlement: &ent}, nil
}

// ResolveDirect persists a caller-supplied entitlement verbatim. Used for
// manual grants and free-tier resets.
func (r *Resolver) ResolveDirect(ctx context.Context, accountID uuid.UUID, ent Entitlement) (*ResolveResult, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}

	ent.AccountID = accountID
	if ent.Source == "" {
		ent.Source = SourceDirect
	}
	ent.UpdatedAt = time.Now().UTC()

	if err := r.store.Save(ctx, &ent); err != nil {
		return nil, err
	}
	return &ResolveResult{Success: true, Entitlement: &ent}, nil
}

// Get returns the account's entitlement. The read path never errors to
// callers: a missing record or a failing store degrades to the free-tier
// default, the safest answer for enforcement code.
func (r *Resolver) Get(ctx context.Context, accountID uuid.UUID) *Entitlement {
	ent, err := r.store.Get(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrEntitlementNotFound) {
			r.log.WarnContext(ctx, "entitlement read failed, serving free-tier default",
				slog.String("account_id", accountID.String()),
				slog.Any("error", err))
		}
		free := TierDefaults(TierFree)
		free.AccountID = accountID
		return &free
	}
	return ent
}

// ValidateLevelAccess checks requested intensity levels against the ordinal
// range first and the account's tier ceilings second, so an out-of-range
// request is rejected with a specific reason before any plan is consulted.
func (r *Resolver) ValidateLevelAccess(ctx context.Context, accountID uuid.UUID, req LevelRequest) *LevelDecision {
	if req.RoastLevel != nil {
		if dec := rangeCheck("roast", *req.RoastLevel); dec != nil {
			return dec
		}
	}
	if req.ShieldLevel != nil {
		if dec := rangeCheck("shield", *req.ShieldLevel); dec != nil {
			return dec
		}
	}

	ent := r.Get(ctx, accountID)
	ceiling := r.levels.ceiling(ent.PlanName)

	dec := &LevelDecision{
		Allowed:               true,
		Plan:                  ent.PlanName,
		MaxAllowedRoastLevel:  ceiling.Roast,
		MaxAllowedShieldLevel: ceiling.Shield,
	}

	if req.RoastLevel != nil && *req.RoastLevel > ceiling.Roast {
		dec.Allowed = false
		dec.Reason = fmt.Sprintf("roast level %d exceeds the %s plan maximum of %d", *req.RoastLevel, ent.PlanName, ceiling.Roast)
		dec.RequiredTier = r.levels.minTierForRoast(*req.RoastLevel)
		return dec
	}
	if req.ShieldLevel != nil && *req.ShieldLevel > ceiling.Shield {
		dec.Allowed = false
		dec.Reason = fmt.Sprintf("shield level %d exceeds the %s plan maximum of %d", *req.ShieldLevel, ent.PlanName, ceiling.Shield)
		dec.RequiredTier = r.levels.minTierForShield(*req.ShieldLevel)
		return dec
	}

	return dec
}

// LevelAccessMatrix returns a copy of the per-tier level ceilings for
// read-only configuration endpoints.
func (r *Resolver) LevelAccessMatrix() LevelMatrix {
	out := make(LevelMatrix, len(r.levels))
	for tier, ceiling := range r.levels {
		out[tier] = ceiling
	}
	return out
}

func rangeCheck(field string, level int) *LevelDecision {
	if level >= MinLevel && level <= MaxLevel {
		return nil
	}
	return &LevelDecision{
		Allowed: false,
		Reason:  fmt.Sprintf("%s level %d is out of range [%d,%d]", field, level, MinLevel, MaxLevel),
	}
}

func (r *Resolver) retrievePrice(ctx context.Context, priceRef string) (*Price, error) {
	if r.api == nil {
		return nil, ErrBillingDisabled
	}
	return r.api.RetrievePrice(ctx, priceRef)
}

// applyFallback persists the deterministic free-tier record so the account
// is never left without an entitlement.
func (r *Resolver) applyFallback(ctx context.Context, accountID uuid.UUID) (*ResolveResult, error) {
	fallback := FreeEntitlement(accountID)
	if err := r.store.Save(ctx, fallback); err != nil {
		return nil, err
	}
	return &ResolveResult{Success: false, FallbackApplied: true, Entitlement: fallback}, nil
}

// extractFromPrice builds an entitlement from provider metadata with the
// precedence: price metadata, then product metadata, then tier defaults
// inferred from the price lookup key or product name.
func extractFromPrice(price *Price) Entitlement {
	identifier := price.LookupKey
	if identifier == "" {
		identifier = price.Product.Name
	}
	ent := TierDefaults(InferTier(identifier))

	meta := func(key string) (string, bool) {
		if v, ok := price.Metadata[key]; ok && v != "" {
			return v, true
		}
		if v, ok := price.Product.Metadata[key]; ok && v != "" {
			return v, true
		}
		return "", false
	}

	if v, ok := meta("analysis_limit_monthly"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			ent.AnalysisLimitMonthly = n
		}
	}
	if v, ok := meta("roast_limit_monthly"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			ent.RoastLimitMonthly = n
		}
	}
	if v, ok := meta("model"); ok {
		ent.Model = v
	}
	if v, ok := meta("shield_enabled"); ok {
		ent.ShieldEnabled = v == "true"
	}
	if v, ok := meta("moderation_mode"); ok {
		ent.ModerationMode = ModerationMode(v)
	}
	if v, ok := meta("plan_name"); ok {
		ent.PlanName = Tier(v)
	}

	return ent
}
