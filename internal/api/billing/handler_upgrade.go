package billing

import (
	"errors"
	"net/http"

	"billing-app/internal/app/http/middleware"
	"billing-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Upgrade moves the caller from free onto the requested paid price. The
// price id is allow-listed against the plans table before the billing
// provider is involved.
func (h *Handler) Upgrade(c *gin.Context) {
	var body struct {
		PriceID string `json:"price_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PriceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid price_id"})
		return
	}

	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var plan plans.Plan
	if err := h.db.WithContext(c.Request.Context()).
		Where("stripe_price_id = ?", body.PriceID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan/price_id"})
			return
		}
		respondError(c, err)
		return
	}

	rec, err := h.engine.Upgrade(c.Request.Context(), middleware.Principal(c), userID, plan.StripePriceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(rec))
}
