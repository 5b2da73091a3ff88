package plans

import "strings"

// Tier constants (single source of truth)
const (
	TierNone         = "none"
	TierEssential    = "essential"
	TierProfessional = "professional"
	TierAdvanced     = "advanced"
)

// PlanTier returns the effective tier for a plan. The stored tier wins;
// price-based inference remains only as a safety net for rows seeded
// before the tier column existed.
func PlanTier(p *Plan) string {
	if p == nil {
		return TierNone
	}

	tier := strings.ToLower(strings.TrimSpace(p.Tier))
	switch tier {
	case TierEssential, TierProfessional, TierAdvanced:
		return tier
	}

	return inferTierFromPrice(p.PriceEUR)
}

func inferTierFromPrice(priceEUR float64) string {
	switch {
	case priceEUR >= 320:
		return TierAdvanced
	case priceEUR >= 180:
		return TierProfessional
	default:
		return TierEssential
	}
}
