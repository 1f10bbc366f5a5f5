package entitlement

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// tierDefaults are the baseline entitlements applied when price and product
// metadata are silent. Values mirror the provider plan catalog.
var tierDefaults = map[Tier]Entitlement{
	TierFree: {
		PlanName:             TierFree,
		AnalysisLimitMonthly: 100,
		RoastLimitMonthly:    10,
		Model:                "gpt-3.5-turbo",
		ShieldEnabled:        false,
		ModerationMode:       ModerationBasic,
	},
	TierStarter: {
		PlanName:             TierStarter,
		AnalysisLimitMonthly: 1000,
		RoastLimitMonthly:    10,
		Model:                "gpt-4o",
		ShieldEnabled:        true,
		ModerationMode:       ModerationBasic,
	},
	TierPro: {
		PlanName:             TierPro,
		AnalysisLimitMonthly: 10000,
		RoastLimitMonthly:    1000,
		Model:                "gpt-4",
		ShieldEnabled:        true,
		ModerationMode:       ModerationAdvanced,
	},
	TierCreatorPlus: {
		PlanName:             TierCreatorPlus,
		AnalysisLimitMonthly: 100000,
		RoastLimitMonthly:    5000,
		Model:                "gpt-4",
		ShieldEnabled:        true,
		ModerationMode:       ModerationPremium,
	},
	TierCustom: {
		PlanName:             TierCustom,
		AnalysisLimitMonthly: Unlimited,
		RoastLimitMonthly:    Unlimited,
		Model:                "gpt-4",
		ShieldEnabled:        true,
		ModerationMode:       ModerationPremium,
	},
}

// InferTier maps a price lookup key or product name onto a tier by
// case-insensitive keyword match. Anything unrecognized lands on free.
func InferTier(identifier string) Tier {
	id := strings.ToLower(identifier)

	switch {
	case strings.Contains(id, "starter"):
		return TierStarter
	case strings.Contains(id, "pro"):
		return TierPro
	case strings.Contains(id, "creator"), strings.Contains(id, "plus"):
		return TierCreatorPlus
	case strings.Contains(id, "custom"), strings.Contains(id, "enterprise"):
		return TierCustom
	default:
		return TierFree
	}
}

// TierDefaults returns a copy of the baseline entitlement for a tier.
// Unknown tiers fall back to free.
func TierDefaults(tier Tier) Entitlement {
	ent, ok := tierDefaults[tier]
	if !ok {
		ent = tierDefaults[TierFree]
	}
	return ent
}

// FreeEntitlement is the deterministic fallback record: the safe default an
// account receives when resolution cannot reach its source of truth.
func FreeEntitlement(accountID uuid.UUID) *Entitlement {
	ent := TierDefaults(TierFree)
	ent.AccountID = accountID
	ent.Source = SourceFallback
	ent.UpdatedAt = time.Now().UTC()
	return &ent
}
