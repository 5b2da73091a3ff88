package stripewebhooks

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"billing-app/internal/domain/subscriptions"
	stripeinfra "billing-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
)

const maxPayloadBytes = 65536

// Handler receives Stripe webhook deliveries, verifies them, and feeds
// the normalized events to the reconciler under the service principal.
type Handler struct {
	reconciler     *subscriptions.Reconciler
	endpointSecret string
	log            *slog.Logger
}

func NewHandler(reconciler *subscriptions.Reconciler, endpointSecret string, log *slog.Logger) *Handler {
	return &Handler{
		reconciler:     reconciler,
		endpointSecret: endpointSecret,
		log:            log,
	}
}

func (h *Handler) Handle(c *gin.Context) {
	if h.endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readBody(c, maxPayloadBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	ev, err := stripeinfra.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), h.endpointSecret)
	if err != nil {
		if errors.Is(err, stripeinfra.ErrUnhandledEventType) {
			// Acknowledge event types the lifecycle does not consume so
			// Stripe stops retrying them.
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		h.log.Warn("webhook rejected", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	err = h.reconciler.Process(c.Request.Context(), *ev)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	case errors.Is(err, subscriptions.ErrNotFound):
		// No record owns this subscription or customer yet. Non-2xx makes
		// Stripe redeliver later, by which time a racing upgrade commit
		// may have landed the ids this event needs.
		h.log.Error("webhook event unmatched",
			slog.String("event_id", ev.EventID),
			slog.String("subscription_id", ev.SubscriptionID))
		c.JSON(http.StatusNotFound, gin.H{"error": "No matching subscription record"})
	case errors.Is(err, subscriptions.ErrInvalidTransition):
		// Redelivery cannot make an illegal transition legal; acknowledge
		// and leave the event unapplied for manual inspection.
		h.log.Error("webhook event rejected by lifecycle",
			slog.String("event_id", ev.EventID),
			slog.Any("error", err))
		c.JSON(http.StatusOK, gin.H{"status": "rejected"})
	default:
		h.log.Error("webhook processing failed",
			slog.String("event_id", ev.EventID),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
	}
}

func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
