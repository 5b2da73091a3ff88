package billing

import (
	"errors"
	"net/http"
	"time"

	"billing-app/internal/domain/access"
	billingdomain "billing-app/internal/domain/billing"
	"billing-app/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler exposes the lifecycle operations to the owning application
// layer. It is a thin layer: principal from the token, allow-list checks,
// engine call, error-to-status mapping.
type Handler struct {
	db       *gorm.DB
	engine   *subscriptions.Engine
	payments *billingdomain.PaymentLog
}

func NewHandler(db *gorm.DB, engine *subscriptions.Engine, payments *billingdomain.PaymentLog) *Handler {
	return &Handler{db: db, engine: engine, payments: payments}
}

type subscriptionResponse struct {
	InternalID             string     `json:"internal_id"`
	Status                 string     `json:"status"`
	PriceID                *string    `json:"price_id,omitempty"`
	ExternalSubscriptionID *string    `json:"external_subscription_id,omitempty"`
	ExternalCustomerID     *string    `json:"external_customer_id,omitempty"`
	CurrentPeriodStart     *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func toSubscriptionResponse(rec *subscriptions.SubscriptionRecord) subscriptionResponse {
	return subscriptionResponse{
		InternalID:             rec.InternalID,
		Status:                 string(rec.Status),
		PriceID:                rec.PriceID,
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		ExternalCustomerID:     rec.ExternalCustomerID,
		CurrentPeriodStart:     rec.CurrentPeriodStart,
		CurrentPeriodEnd:       rec.CurrentPeriodEnd,
		UpdatedAt:              rec.UpdatedAt,
	}
}

// respondError maps the lifecycle error taxonomy onto HTTP statuses.
// Conflicts are retryable by the caller; constraint violations are not.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, subscriptions.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case errors.Is(err, subscriptions.ErrSubscriptionExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription already exists"})
	case errors.Is(err, subscriptions.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription changed concurrently, retry"})
	case errors.Is(err, subscriptions.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, access.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
	case errors.Is(err, billingdomain.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Billing provider unavailable, retry later"})
	case errors.Is(err, billingdomain.ErrNotFound):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Billing provider rejected the request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
