package stripe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-app/internal/domain/billing"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// ErrUnhandledEventType marks a verified event the lifecycle does not
// consume. The HTTP handler acknowledges these so Stripe stops retrying.
var ErrUnhandledEventType = errors.New("stripe event type not handled")

// ParseWebhook verifies the payload signature and normalizes the event
// into the lifecycle's vocabulary. The webhook payload carries the
// subscription id under several names (top-level object, invoice
// reference); they collapse to the one canonical field here at the
// boundary.
func ParseWebhook(payload []byte, sigHeader, endpointSecret string) (*billing.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}

	sum := sha256.Sum256(payload)
	out := &billing.WebhookEvent{
		EventID:     event.ID,
		OccurredAt:  time.Unix(event.Created, 0).UTC(),
		PayloadHash: hex.EncodeToString(sum[:]),
	}

	switch event.Type {
	case "customer.subscription.created":
		out.Type = billing.EventSubscriptionCreated
		return fillFromSubscription(out, event.Data.Raw)
	case "customer.subscription.updated":
		out.Type = billing.EventSubscriptionUpdated
		return fillFromSubscription(out, event.Data.Raw)
	case "customer.subscription.deleted":
		out.Type = billing.EventSubscriptionDeleted
		return fillFromSubscription(out, event.Data.Raw)
	case "invoice.payment_succeeded":
		out.Type = billing.EventPaymentSucceeded
		return fillFromInvoice(out, event.Data.Raw)
	case "invoice.payment_failed":
		out.Type = billing.EventPaymentFailed
		return fillFromInvoice(out, event.Data.Raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEventType, event.Type)
	}
}

func fillFromSubscription(out *billing.WebhookEvent, raw json.RawMessage) (*billing.WebhookEvent, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription payload: %w", err)
	}
	if sub.ID == "" {
		return nil, errors.New("subscription payload missing id")
	}

	out.SubscriptionID = sub.ID
	out.Status = NormalizeStatus(string(sub.Status))
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodStart != 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		out.PeriodStart = &start
	}
	if sub.CurrentPeriodEnd != 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.PeriodEnd = &end
	}
	return out, nil
}

func fillFromInvoice(out *billing.WebhookEvent, raw json.RawMessage) (*billing.WebhookEvent, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("parse invoice payload: %w", err)
	}

	out.InvoiceID = inv.ID
	out.Currency = string(inv.Currency)
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if out.Type == billing.EventPaymentSucceeded {
		out.AmountCents = inv.AmountPaid
	} else {
		out.AmountCents = inv.AmountDue
	}
	return out, nil
}
