package stripe

import (
	"context"

	"billing-app/internal/domain/billing"

	"github.com/stripe/stripe-go/v75"
)

// ListRecurringPrices returns the active recurring prices whose product
// is still active, for the plan catalog sync.
func (c *Client) ListRecurringPrices(ctx context.Context) ([]billing.Price, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PriceListParams{}
	params.Context = ctx
	params.Active = stripe.Bool(true)
	params.Type = stripe.String(string(stripe.PriceTypeRecurring))
	params.AddExpand("data.product")

	var out []billing.Price
	it := c.api.Prices.List(params)
	for it.Next() {
		p := it.Price()
		if !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
			continue
		}
		out = append(out, billing.Price{
			ID:              p.ID,
			ProductID:       p.Product.ID,
			ProductName:     p.Product.Name,
			UnitAmountCents: p.UnitAmount,
			Currency:        string(p.Currency),
			Interval:        string(p.Recurring.Interval),
			Metadata:        p.Metadata,
		})
	}
	if err := it.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
