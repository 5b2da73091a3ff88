package subscriptions_test

import (
	"context"
	"testing"
	"time"

	"billing-app/internal/domain/access"
	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionEvent(id string, typ billing.EventType, subID, status string, at time.Time) billing.WebhookEvent {
	return billing.WebhookEvent{
		EventID:        id,
		Type:           typ,
		SubscriptionID: subID,
		Status:         status,
		OccurredAt:     at,
		PayloadHash:    "hash-" + id,
	}
}

// upgradedFixture returns a fixture with user 1 already on a paid plan.
func upgradedFixture(t *testing.T) (*fixture, *subscriptions.SubscriptionRecord) {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateFree(ctx, access.Owner(1), 1)
	require.NoError(t, err)
	rec, err := f.engine.Upgrade(ctx, access.Owner(1), 1, "price_basic")
	require.NoError(t, err)
	return f, rec
}

func TestProcessAppliesSubscriptionUpdate(t *testing.T) {
	f, rec := upgradedFixture(t)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Microsecond)
	ev := subscriptionEvent("evt_1", billing.EventSubscriptionUpdated, *rec.ExternalSubscriptionID, "past_due", at)
	require.NoError(t, f.reconciler.Process(ctx, ev))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPastDue, got.Status)
	require.NotNil(t, got.SourceEventID)
	assert.Equal(t, "evt_1", *got.SourceEventID)
	require.NotNil(t, got.SourceEventTime)
	assert.True(t, got.SourceEventTime.Equal(at))

	seen, err := f.events.Lookup(ctx, "evt_1")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Applied)
}

func TestProcessReplayedEventIsSuppressed(t *testing.T) {
	f, rec := upgradedFixture(t)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Microsecond)
	ev := subscriptionEvent("evt_1", billing.EventSubscriptionUpdated, *rec.ExternalSubscriptionID, "past_due", at)
	require.NoError(t, f.reconciler.Process(ctx, ev))

	after, err := f.store.Get(ctx, 1)
	require.NoError(t, err)

	// Redelivery of an applied event changes nothing, not even the
	// optimistic token.
	require.NoError(t, f.reconciler.Process(ctx, ev))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, after.Status, got.Status)
	assert.True(t, got.UpdatedAt.Equal(after.UpdatedAt))
}

func TestProcessOutOfOrderEventIsDiscarded(t *testing.T) {
	f, rec := upgradedFixture(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	newer := subscriptionEvent("evt_newer", billing.EventSubscriptionUpdated, *rec.ExternalSubscriptionID, "past_due", base)
	require.NoError(t, f.reconciler.Process(ctx, newer))

	// A delivery that predates the last applied event must not win.
	stale := subscriptionEvent("evt_stale", billing.EventSubscriptionUpdated, *rec.ExternalSubscriptionID, "active", base.Add(-time.Hour))
	require.NoError(t, f.reconciler.Process(ctx, stale))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPastDue, got.Status)
	require.NotNil(t, got.SourceEventID)
	assert.Equal(t, "evt_newer", *got.SourceEventID)

	// The discard is final: the stale event is marked applied so a
	// redelivery is suppressed outright.
	seen, err := f.events.Lookup(ctx, "evt_stale")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Applied)

	// Same timestamp as the applied event is also stale.
	tie := subscriptionEvent("evt_tie", billing.EventSubscriptionUpdated, *rec.ExternalSubscriptionID, "active", base)
	require.NoError(t, f.reconciler.Process(ctx, tie))
	got, err = f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPastDue, got.Status)
}

func TestProcessUnknownSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := subscriptionEvent("evt_orphan", billing.EventSubscriptionUpdated, "sub_unknown", "active", time.Now().UTC())
	err := f.reconciler.Process(ctx, ev)
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)

	// Received but not applied, so the provider's redelivery gets a
	// fresh attempt once the record exists.
	seen, err := f.events.Lookup(ctx, "evt_orphan")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.False(t, seen.Applied)
}

func TestProcessResolvesByCustomerID(t *testing.T) {
	f, rec := upgradedFixture(t)
	ctx := context.Background()

	// Customer-level events carry no subscription id.
	ev := billing.WebhookEvent{
		EventID:    "evt_cus",
		Type:       billing.EventSubscriptionUpdated,
		CustomerID: *rec.ExternalCustomerID,
		Status:     "trialing",
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, f.reconciler.Process(ctx, ev))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusTrialing, got.Status)
}

func TestProcessSubscriptionDeleted(t *testing.T) {
	f, rec := upgradedFixture(t)
	ctx := context.Background()

	ev := subscriptionEvent("evt_del", billing.EventSubscriptionDeleted, *rec.ExternalSubscriptionID, "", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, f.reconciler.Process(ctx, ev))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusCanceled, got.Status)
	// Cancellation by event keeps the last known subscription id too.
	require.NotNil(t, got.ExternalSubscriptionID)
}

func TestProcessEventForReplacedSubscriptionIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := access.Owner(1)

	// Full cycle and back onto a paid plan: the record now owns a second
	// provider subscription, and the user-initiated writes left
	// source_event_time empty.
	_, err := f.engine.CreateFree(ctx, owner, 1)
	require.NoError(t, err)
	first, err := f.engine.Upgrade(ctx, owner, 1, "price_basic")
	require.NoError(t, err)
	oldSub := *first.ExternalSubscriptionID
	_, err = f.engine.Cancel(ctx, owner, 1)
	require.NoError(t, err)
	_, err = f.engine.DowngradeToFree(ctx, owner, 1)
	require.NoError(t, err)
	second, err := f.engine.Upgrade(ctx, owner, 1, "price_basic")
	require.NoError(t, err)
	newSub := *second.ExternalSubscriptionID
	require.NotEqual(t, oldSub, newSub)

	// The provider finally delivers the old subscription's deletion. It
	// resolves through the customer id but must not touch the record
	// that owns the replacement.
	ev := subscriptionEvent("evt_old_deleted", billing.EventSubscriptionDeleted, oldSub, "", time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour))
	ev.CustomerID = *second.ExternalCustomerID
	require.NoError(t, f.reconciler.Process(ctx, ev))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, got.Status)
	require.NotNil(t, got.ExternalSubscriptionID)
	assert.Equal(t, newSub, *got.ExternalSubscriptionID)

	// The discard is final, so a redelivery is suppressed outright.
	seen, err := f.events.Lookup(ctx, "evt_old_deleted")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Applied)
}

func TestProcessPaymentEvents(t *testing.T) {
	f, rec := upgradedFixture(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)

	failed := subscriptionEvent("evt_fail", billing.EventPaymentFailed, *rec.ExternalSubscriptionID, "", base)
	failed.InvoiceID = "in_1"
	failed.AmountCents = 1900
	failed.Currency = "eur"
	require.NoError(t, f.reconciler.Process(ctx, failed))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPastDue, got.Status)

	recovered := subscriptionEvent("evt_paid", billing.EventPaymentSucceeded, *rec.ExternalSubscriptionID, "", base.Add(time.Minute))
	recovered.InvoiceID = "in_2"
	recovered.AmountCents = 1900
	recovered.Currency = "eur"
	require.NoError(t, f.reconciler.Process(ctx, recovered))

	got, err = f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, got.Status)

	history, err := f.payments.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// A distinct event carrying an already-recorded invoice appends no
	// second row.
	duplicate := subscriptionEvent("evt_paid_redelivered", billing.EventPaymentSucceeded, *rec.ExternalSubscriptionID, "", base.Add(2*time.Minute))
	duplicate.InvoiceID = "in_2"
	duplicate.AmountCents = 1900
	duplicate.Currency = "eur"
	require.NoError(t, f.reconciler.Process(ctx, duplicate))

	history, err = f.payments.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestProcessIllegalTransitionSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A free record with a linked customer: a payment event for it has
	// no legal target transition.
	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, rec.InternalID, "cus_1"))

	ev := billing.WebhookEvent{
		EventID:    "evt_bad",
		Type:       billing.EventPaymentFailed,
		CustomerID: "cus_1",
		OccurredAt: time.Now().UTC(),
	}
	err = f.reconciler.Process(ctx, ev)
	assert.ErrorIs(t, err, subscriptions.ErrInvalidTransition)

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusFree, got.Status)
}
