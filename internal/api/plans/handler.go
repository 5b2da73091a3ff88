package plans

import (
	"net/http"

	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	catalog billing.Catalog
}

func NewHandler(db *gorm.DB, catalog billing.Catalog) *Handler {
	return &Handler{db: db, catalog: catalog}
}

type planResponse struct {
	Name     string  `json:"name"`
	PriceID  string  `json:"price_id"`
	PriceEUR float64 `json:"price_eur"`
	Interval string  `json:"interval"`
	Tier     string  `json:"tier"`
}

// ListPlans returns the purchasable price catalog.
func (h *Handler) ListPlans(c *gin.Context) {
	var all []plans.Plan
	if err := h.db.WithContext(c.Request.Context()).Order("price_eur ASC").Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}

	out := make([]planResponse, 0, len(all))
	for _, p := range all {
		out = append(out, planResponse{
			Name:     p.Name,
			PriceID:  p.StripePriceID,
			PriceEUR: p.PriceEUR,
			Interval: p.Interval,
			Tier:     plans.PlanTier(&p),
		})
	}

	c.JSON(http.StatusOK, out)
}
