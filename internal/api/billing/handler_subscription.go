package billing

import (
	"errors"
	"net/http"

	"billing-app/internal/app/http/middleware"
	"billing-app/internal/domain/access"
	"billing-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetSubscription returns the caller's record snapshot.
func (h *Handler) GetSubscription(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	rec, err := h.engine.Get(c.Request.Context(), middleware.Principal(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(rec))
}

// GetEntitlements returns the feature surface derived from the caller's
// subscription. This is the only endpoint the feature-gating UI consumes.
func (h *Handler) GetEntitlements(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	rec, err := h.engine.Get(c.Request.Context(), middleware.Principal(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var plan *plans.Plan
	if rec.PriceID != nil && *rec.PriceID != "" {
		var p plans.Plan
		err := h.db.WithContext(c.Request.Context()).
			Where("stripe_price_id = ?", *rec.PriceID).First(&p).Error
		switch {
		case err == nil:
			plan = &p
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Unknown price falls through to the free tier rather than
			// guessing a paid one.
		default:
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, access.ComputeEntitlements(string(rec.Status), plan))
}
