package admin

import (
	"net/http"
	"strconv"

	"billing-app/internal/app/http/middleware"
	"billing-app/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// Handler is the administrator surface: integrity diagnostics, the audit
// trail, and per-user subscription inspection. Routes are mounted behind
// the admin role guard; the engine re-checks the principal anyway.
type Handler struct {
	engine      *subscriptions.Engine
	diagnostics *subscriptions.Diagnostics
	audit       *subscriptions.AuditLog
}

func NewHandler(engine *subscriptions.Engine, diagnostics *subscriptions.Diagnostics, audit *subscriptions.AuditLog) *Handler {
	return &Handler{engine: engine, diagnostics: diagnostics, audit: audit}
}

// ListInvalidRecords runs the integrity scan. Findings are reported,
// never auto-corrected; remediation is an explicit admin decision.
func (h *Handler) ListInvalidRecords(c *gin.Context) {
	findings, err := h.diagnostics.ListInvalidRecords(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Diagnostics scan failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invalid_count": len(findings),
		"findings":      findings,
	})
}

// ListAuditTrail returns the lifecycle audit log, newest first.
func (h *Handler) ListAuditTrail(c *gin.Context) {
	recs, err := h.audit.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}

	c.JSON(http.StatusOK, recs)
}

// GetUserSubscription returns any user's record for support inspection.
func (h *Handler) GetUserSubscription(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	rec, err := h.engine.Get(c.Request.Context(), middleware.Principal(c), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}
