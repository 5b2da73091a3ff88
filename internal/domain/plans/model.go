package plans

import "time"

// Plan is the allow-list of purchasable prices. Upgrades only accept a
// price id present here, so a forged price id can never reach the billing
// provider.
type Plan struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	StripePriceID string `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id"`
	PriceEUR      float64
	Interval      string // month/year
	Tier          string `gorm:"column:tier"` // "essential" | "professional" | "advanced"
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
