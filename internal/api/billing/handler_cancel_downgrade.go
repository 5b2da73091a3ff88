package billing

import (
	"net/http"

	"billing-app/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

// Cancel ends the caller's paid subscription. The record flips to
// canceled; the provider subscription id stays on it for audit until the
// explicit downgrade.
func (h *Handler) Cancel(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	rec, err := h.engine.Cancel(c.Request.Context(), middleware.Principal(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(rec))
}

// Downgrade returns a canceled record to the free tier.
func (h *Handler) Downgrade(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	rec, err := h.engine.DowngradeToFree(c.Request.Context(), middleware.Principal(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(rec))
}
