package plans

import (
	"errors"
	"net/http"

	"billing-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SyncFromProvider upserts the plan catalog from the provider's active
// recurring prices. Prices marked visible=false in metadata are left
// out; a tier comes from the price metadata and falls back to the
// price-based inference at read time.
func (h *Handler) SyncFromProvider(c *gin.Context) {
	ctx := c.Request.Context()

	prices, err := h.catalog.ListRecurringPrices(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch provider prices"})
		return
	}

	synced := 0
	created := 0
	updated := 0
	skipped := 0

	for _, p := range prices {
		if p.Currency != "eur" {
			skipped++
			continue
		}
		if p.Metadata["visible"] == "false" {
			skipped++
			continue
		}

		name := p.ProductName
		if v := p.Metadata["plan"]; v != "" {
			name = v
		}
		tier := p.Metadata["plan"]
		if tier == "" {
			tier = p.Metadata["tier"]
		}
		amount := float64(p.UnitAmountCents) / 100.0

		var existing plans.Plan
		err := h.db.WithContext(ctx).Where("stripe_price_id = ?", p.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			plan := plans.Plan{
				Name:          name,
				PriceEUR:      amount,
				StripePriceID: p.ID,
				Interval:      p.Interval,
				Tier:          tier,
			}
			if err := h.db.WithContext(ctx).Create(&plan).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plan"})
				return
			}
			created++
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
			return
		default:
			existing.Name = name
			existing.PriceEUR = amount
			existing.Interval = p.Interval
			if tier != "" {
				existing.Tier = tier
			}
			if err := h.db.WithContext(ctx).Save(&existing).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan"})
				return
			}
			updated++
		}
		synced++
	}

	c.JSON(http.StatusOK, gin.H{
		"synced":  synced,
		"created": created,
		"updated": updated,
		"skipped": skipped,
	})
}
