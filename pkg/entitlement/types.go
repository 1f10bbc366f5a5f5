package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a named subscription level. Tiers are ordered: every tier permits
// at least what the tiers below it permit.
type Tier string

const (
	TierFree        Tier = "free"
	TierStarter     Tier = "starter"
	TierPro         Tier = "pro"
	TierCreatorPlus Tier = "creator_plus"
	TierCustom      Tier = "custom"
)

// tierOrder defines the monotonic tier ladder, lowest first.
var tierOrder = []Tier{TierFree, TierStarter, TierPro, TierCreatorPlus, TierCustom}

// rank returns the tier's position on the ladder; unknown tiers rank as free.
func (t Tier) rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return 0
}

// ModerationMode selects the moderation pipeline variant a plan unlocks.
type ModerationMode string

const (
	ModerationBasic    ModerationMode = "basic"
	ModerationAdvanced ModerationMode = "advanced"
	ModerationPremium  ModerationMode = "premium"
)

// RecordSource tells how an entitlement record was produced.
type RecordSource string

const (
	SourceProviderPrice RecordSource = "provider_price"
	SourceDirect        RecordSource = "direct"
	SourceFallback      RecordSource = "fallback"
)

const (
	// Unlimited marks a limit with no ceiling (-1 for SQL compatibility).
	Unlimited int64 = -1
)

// Entitlement is the full set of limits and feature flags granted to an
// account by its current plan. Records are replaced wholesale on every
// write, never merged field by field.
type Entitlement struct {
	AccountID            uuid.UUID
	PlanName             Tier
	AnalysisLimitMonthly int64
	RoastLimitMonthly    int64
	Model                string
	ShieldEnabled        bool
	ModerationMode       ModerationMode
	ProviderPriceRef     string
	ProviderProductRef   string
	Source               RecordSource
	UpdatedAt            time.Time
}

// ResolveResult reports how a resolution call ended. Success false with
// FallbackApplied true means the provider was unreachable and the account
// now holds the free-tier fallback record.
type ResolveResult struct {
	Success         bool
	FallbackApplied bool
	Entitlement     *Entitlement
}
