package stripe

import (
	"fmt"
	"testing"
	"time"

	"billing-app/internal/domain/billing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

const testEndpointSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testEndpointSecret)
	return fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig)
}

func TestParseWebhookSubscriptionUpdated(t *testing.T) {
	payload := []byte(`{
		"id": "evt_123",
		"type": "customer.subscription.updated",
		"created": 1712000000,
		"data": {
			"object": {
				"id": "sub_123",
				"object": "subscription",
				"status": "unpaid",
				"customer": "cus_123",
				"current_period_start": 1711000000,
				"current_period_end": 1713600000,
				"items": {
					"data": [
						{"price": {"id": "price_basic"}}
					]
				}
			}
		}
	}`)

	ev, err := ParseWebhook(payload, signPayload(t, payload), testEndpointSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_123", ev.EventID)
	assert.Equal(t, billing.EventSubscriptionUpdated, ev.Type)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, "cus_123", ev.CustomerID)
	assert.Equal(t, "past_due", ev.Status) // unpaid normalizes
	assert.Equal(t, "price_basic", ev.PriceID)
	assert.Equal(t, time.Unix(1712000000, 0).UTC(), ev.OccurredAt)
	require.NotNil(t, ev.PeriodStart)
	assert.Equal(t, time.Unix(1711000000, 0).UTC(), *ev.PeriodStart)
	require.NotNil(t, ev.PeriodEnd)
	assert.NotEmpty(t, ev.PayloadHash)
}

func TestParseWebhookInvoicePaymentSucceeded(t *testing.T) {
	payload := []byte(`{
		"id": "evt_inv",
		"type": "invoice.payment_succeeded",
		"created": 1712000000,
		"data": {
			"object": {
				"id": "in_123",
				"object": "invoice",
				"customer": "cus_123",
				"subscription": "sub_123",
				"currency": "eur",
				"amount_paid": 1900,
				"amount_due": 1900
			}
		}
	}`)

	ev, err := ParseWebhook(payload, signPayload(t, payload), testEndpointSecret)
	require.NoError(t, err)

	assert.Equal(t, billing.EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "in_123", ev.InvoiceID)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, "cus_123", ev.CustomerID)
	assert.Equal(t, int64(1900), ev.AmountCents)
	assert.Equal(t, "eur", ev.Currency)
}

func TestParseWebhookUnhandledType(t *testing.T) {
	payload := []byte(`{
		"id": "evt_charge",
		"type": "charge.refunded",
		"created": 1712000000,
		"data": {"object": {"id": "ch_123", "object": "charge"}}
	}`)

	_, err := ParseWebhook(payload, signPayload(t, payload), testEndpointSecret)
	assert.ErrorIs(t, err, ErrUnhandledEventType)
}

func TestParseWebhookBadSignature(t *testing.T) {
	payload := []byte(`{"id": "evt_123", "type": "customer.subscription.updated", "created": 1712000000, "data": {"object": {}}}`)

	_, err := ParseWebhook(payload, "t=0,v1=deadbeef", testEndpointSecret)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhandledEventType)
}
