package billing

import "context"

// Price is one purchasable recurring price as the provider advertises
// it. The plan catalog is synced from these; the provider stays the
// source of truth for amounts.
type Price struct {
	ID              string
	ProductID       string
	ProductName     string
	UnitAmountCents int64
	Currency        string
	Interval        string
	Metadata        map[string]string
}

// Catalog lists the provider's purchasable prices. Separate from
// Provider because only the plan sync needs it.
type Catalog interface {
	ListRecurringPrices(ctx context.Context) ([]Price, error)
}
