package billing

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the provider has no object with the given id.
	ErrNotFound = errors.New("billing provider object not found")

	// ErrUnavailable covers timeouts, rate limits and 5xx responses from the
	// provider. Transient; callers may retry with the same idempotency key.
	ErrUnavailable = errors.New("billing provider unavailable")
)

// Provider is the billing provider handle passed explicitly into every
// operation that needs one. No process-wide client singleton, so tests can
// substitute a double per call site.
//
// Every creating call carries an idempotency key so a retried call cannot
// produce a duplicate provider-side object.
type Provider interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
}

// CreateCustomerParams identifies the application user behind the new
// provider customer object.
type CreateCustomerParams struct {
	UserID         uint
	Email          string
	IdempotencyKey string
}

// Customer is the provider's customer object, reduced to what the
// lifecycle needs.
type Customer struct {
	ID    string
	Email string
}

type CreateSubscriptionParams struct {
	CustomerID     string
	PriceID        string
	IdempotencyKey string
}

// Subscription is the provider's subscription object, reduced to what the
// lifecycle needs.
type Subscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// EventType is the normalized provider event type. The provider adapter
// maps its wire event names onto these.
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription_created"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
)

// WebhookEvent is a normalized inbound provider event. Delivery is
// at-least-once and unordered; the reconciler owns dedup and ordering,
// keyed on EventID and OccurredAt.
type WebhookEvent struct {
	EventID        string
	Type           EventType
	SubscriptionID string
	CustomerID     string
	Status         string
	PriceID        string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	OccurredAt     time.Time
	PayloadHash    string

	// Payment details, set for payment events only.
	AmountCents int64
	Currency    string
	InvoiceID   string
}
