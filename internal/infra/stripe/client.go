package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"billing-app/internal/domain/billing"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// Client implements billing.Provider against Stripe. It wraps its own
// client.API handle so there is no process-wide Stripe key; each Client is
// an explicit dependency and tests substitute a double.
type Client struct {
	api     *client.API
	timeout time.Duration
}

type Option func(*Client)

// WithTimeout bounds each provider call. Calls past the deadline return
// billing.ErrUnavailable and the caller reconciles on the next read
// rather than assuming failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(secretKey string, opts ...Option) *Client {
	// The SDK retries idempotent requests itself; combined with the
	// idempotency keys the engine supplies, a network-level retry cannot
	// create a duplicate provider object.
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(2),
	})

	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	c := &Client{
		api:     api,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateCustomer(ctx context.Context, p billing.CreateCustomerParams) (*billing.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(p.Email),
		Metadata: map[string]string{
			"user_id": fmt.Sprint(p.UserID),
		},
	}
	params.SetIdempotencyKey(p.IdempotencyKey)

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &billing.Customer{ID: cus.ID, Email: cus.Email}, nil
}

func (c *Client) CreateSubscription(ctx context.Context, p billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	params.SetIdempotencyKey(p.IdempotencyKey)

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return mapSubscription(sub), nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sub, err := c.api.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, classify(err)
	}
	return mapSubscription(sub), nil
}

func mapSubscription(sub *stripe.Subscription) *billing.Subscription {
	out := &billing.Subscription{
		ID:                 sub.ID,
		Status:             NormalizeStatus(string(sub.Status)),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out
}

// classify maps SDK errors onto the lifecycle's provider taxonomy:
// missing objects are definite, rate limits and 5xx (and anything the SDK
// could not get a response for) are transient.
func classify(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.HTTPStatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", billing.ErrNotFound, serr.Msg)
		case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %s", billing.ErrUnavailable, serr.Msg)
		}
		return err
	}
	return fmt.Errorf("%w: %v", billing.ErrUnavailable, err)
}
