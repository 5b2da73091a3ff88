package subscriptions_test

import (
	"context"
	"testing"
	"time"

	"billing-app/internal/domain/subscriptions"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.InternalID)
	assert.Equal(t, subscriptions.StatusFree, rec.Status)
	assert.Nil(t, rec.ExternalSubscriptionID)
	assert.Nil(t, rec.ExternalCustomerID)

	// One record per user, enforced by the table itself.
	_, err = f.store.CreateFree(ctx, 1)
	assert.ErrorIs(t, err, subscriptions.ErrSubscriptionExists)

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rec.InternalID, got.InternalID)
}

func TestGetUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Get(context.Background(), 999)
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}

func TestApplyTransitionStaleTokenConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	subID := "sub_1"
	priceID := "price_basic"

	// Two writers read the same snapshot.
	first, err := f.store.ApplyTransition(ctx, rec.InternalID, subscriptions.Mutation{
		Status:                 subscriptions.StatusActive,
		ExternalSubscriptionID: &subID,
		PriceID:                &priceID,
	}, rec.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, first.Status)
	assert.True(t, first.UpdatedAt.After(rec.UpdatedAt))

	// The second write still carries the old token and must lose.
	_, err = f.store.ApplyTransition(ctx, rec.InternalID, subscriptions.Mutation{
		Status: subscriptions.StatusCanceled,
	}, rec.UpdatedAt)
	assert.ErrorIs(t, err, subscriptions.ErrConflict)

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, got.Status)
	require.NotNil(t, got.ExternalSubscriptionID)
	assert.Equal(t, subID, *got.ExternalSubscriptionID)
}

func TestApplyTransitionNilMeansNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	subID := "sub_1"
	start := time.Now().UTC().Truncate(time.Microsecond)
	end := start.AddDate(0, 1, 0)
	rec, err = f.store.ApplyTransition(ctx, rec.InternalID, subscriptions.Mutation{
		Status:                 subscriptions.StatusActive,
		ExternalSubscriptionID: &subID,
		CurrentPeriodStart:     &start,
		CurrentPeriodEnd:       &end,
	}, rec.UpdatedAt)
	require.NoError(t, err)
	require.NotNil(t, rec.CurrentPeriodEnd)

	// A mutation that omits a field clears it; nothing is carried over
	// implicitly.
	rec, err = f.store.ApplyTransition(ctx, rec.InternalID, subscriptions.Mutation{
		Status:                 subscriptions.StatusCanceled,
		ExternalSubscriptionID: &subID,
	}, rec.UpdatedAt)
	require.NoError(t, err)
	assert.Nil(t, rec.CurrentPeriodStart)
	assert.Nil(t, rec.CurrentPeriodEnd)
	require.NotNil(t, rec.ExternalSubscriptionID)
}

func TestApplyTransitionUnknownStatusRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	_, err = f.store.ApplyTransition(ctx, rec.InternalID, subscriptions.Mutation{
		Status: subscriptions.Status("suspended"),
	}, rec.UpdatedAt)
	assert.ErrorIs(t, err, subscriptions.ErrInvalidTransition)
}

func TestApplyTransitionMissingRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.ApplyTransition(context.Background(), uuid.NewString(), subscriptions.Mutation{
		Status: subscriptions.StatusActive,
	}, time.Now())
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}

func TestSetCustomerIDFirstWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, f.store.SetCustomerID(ctx, rec.InternalID, "cus_first"))
	require.NoError(t, f.store.SetCustomerID(ctx, rec.InternalID, "cus_second"))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalCustomerID)
	assert.Equal(t, "cus_first", *got.ExternalCustomerID)

	// The narrow customer write must not move the optimistic token.
	assert.True(t, got.UpdatedAt.Equal(rec.UpdatedAt))
}

func TestGetByExternalIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, rec.InternalID, "cus_7"))

	subID := "sub_7"
	_, err = f.store.ApplyTransition(ctx, rec.InternalID, subscriptions.Mutation{
		Status:                 subscriptions.StatusActive,
		ExternalSubscriptionID: &subID,
	}, rec.UpdatedAt)
	require.NoError(t, err)

	bySub, err := f.store.GetByExternalSubscriptionID(ctx, "sub_7")
	require.NoError(t, err)
	assert.Equal(t, uint(7), bySub.UserID)

	byCus, err := f.store.GetByExternalCustomerID(ctx, "cus_7")
	require.NoError(t, err)
	assert.Equal(t, rec.InternalID, byCus.InternalID)

	_, err = f.store.GetByExternalSubscriptionID(ctx, "sub_unknown")
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}
