package routes

import (
	adminapi "billing-app/internal/api/admin"
	authapi "billing-app/internal/api/auth"
	billingapi "billing-app/internal/api/billing"
	plansapi "billing-app/internal/api/plans"
	stripewebhooks "billing-app/internal/api/stripewebhook"
	"billing-app/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the wired handler set main builds once at startup.
type Handlers struct {
	Auth    *authapi.Handler
	Billing *billingapi.Handler
	Plans   *plansapi.Handler
	Admin   *adminapi.Handler
	Webhook *stripewebhooks.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// Webhook route stays outside the sanitization group: signature
	// verification needs the raw payload.
	r.POST("/webhook", h.Webhook.Handle)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeInput())
	public.POST("/register", h.Auth.Register)
	public.POST("/login", h.Auth.Login)
	public.GET("/plans", h.Plans.ListPlans)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/subscription", h.Billing.GetSubscription)
	auth.POST("/subscription/upgrade", h.Billing.Upgrade)
	auth.POST("/subscription/cancel", h.Billing.Cancel)
	auth.POST("/subscription/downgrade", h.Billing.Downgrade)
	auth.GET("/entitlements", h.Billing.GetEntitlements)
	auth.GET("/payments", h.Billing.GetPaymentHistory)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/diagnostics", h.Admin.ListInvalidRecords)
	admin.GET("/audit", h.Admin.ListAuditTrail)
	admin.GET("/users/:id/subscription", h.Admin.GetUserSubscription)
	admin.POST("/plans/sync", h.Plans.SyncFromProvider)
}
