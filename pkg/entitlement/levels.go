package entitlement

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Level bounds for the ordinal intensity settings.
const (
	MinLevel = 1
	MaxLevel = 5
)

// LevelCeiling caps the intensity levels a tier may configure. A zero
// ceiling means the feature is not available on that tier at all.
type LevelCeiling struct {
	Roast  int `yaml:"roast"`
	Shield int `yaml:"shield"`
}

// LevelMatrix maps every tier to its level ceilings.
type LevelMatrix map[Tier]LevelCeiling

// DefaultLevelMatrix returns the compiled-in ceilings. Ceilings grow
// monotonically up the tier ladder.
func DefaultLevelMatrix() LevelMatrix {
	return LevelMatrix{
		TierFree:        {Roast: 2, Shield: 0},
		TierStarter:     {Roast: 3, Shield: 3},
		TierPro:         {Roast: 4, Shield: 4},
		TierCreatorPlus: {Roast: 5, Shield: 5},
		TierCustom:      {Roast: 5, Shield: 5},
	}
}

// LoadLevelMatrix reads tier ceilings from a YAML file, filling tiers the
// file omits from the compiled-in defaults.
func LoadLevelMatrix(path string) (LevelMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidLevelMatrix, err)
	}

	var loaded map[Tier]LevelCeiling
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, errors.Join(ErrInvalidLevelMatrix, err)
	}

	matrix := DefaultLevelMatrix()
	for tier, ceiling := range loaded {
		if _, known := matrix[tier]; !known {
			return nil, errors.Join(ErrInvalidLevelMatrix, fmt.Errorf("unknown tier %q", tier))
		}
		matrix[tier] = ceiling
	}

	if err := matrix.validate(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// validate rejects matrices that break tier monotonicity or exceed the
// ordinal range.
func (m LevelMatrix) validate() error {
	prev := LevelCeiling{}
	for _, tier := range tierOrder {
		c := m[tier]
		if c.Roast < 0 || c.Roast > MaxLevel || c.Shield < 0 || c.Shield > MaxLevel {
			return errors.Join(ErrInvalidLevelMatrix, fmt.Errorf("tier %q ceiling out of range", tier))
		}
		if c.Roast < prev.Roast || c.Shield < prev.Shield {
			return errors.Join(ErrInvalidLevelMatrix, fmt.Errorf("tier %q lowers a ceiling of the tier below", tier))
		}
		prev = c
	}
	return nil
}

// ceiling returns the ceilings for a tier, defaulting unknown tiers to free.
func (m LevelMatrix) ceiling(tier Tier) LevelCeiling {
	if c, ok := m[tier]; ok {
		return c
	}
	return m[TierFree]
}

// minTierForRoast returns the lowest tier whose roast ceiling admits the
// level, or "" when no tier does.
func (m LevelMatrix) minTierForRoast(level int) Tier {
	for _, tier := range tierOrder {
		if m.ceiling(tier).Roast >= level {
			return tier
		}
	}
	return ""
}

func (m LevelMatrix) minTierForShield(level int) Tier {
	for _, tier := range tierOrder {
		if m.ceiling(tier).Shield >= level {
			return tier
		}
	}
	return ""
}

// LevelRequest names the levels a caller wants to configure. Nil fields are
// not checked.
type LevelRequest struct {
	RoastLevel  *int
	ShieldLevel *int
}

// LevelDecision is the typed answer to a level-access query. It is a normal
// negative decision, never an error: rejections carry enough detail for the
// caller to render an upgrade prompt.
type LevelDecision struct {
	Allowed               bool   `json:"allowed"`
	Reason                string `json:"reason,omitempty"`
	Plan                  Tier   `json:"plan"`
	MaxAllowedRoastLevel  int    `json:"max_allowed_roast_level"`
	MaxAllowedShieldLevel int    `json:"max_allowed_shield_level"`
	RequiredTier          Tier   `json:"required_tier,omitempty"` // lowest tier that would permit the request
}
