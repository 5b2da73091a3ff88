package subscriptions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCustomerCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	first, err := f.linker.EnsureCustomer(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := f.linker.EnsureCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.provider.customerCreates)

	rec, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec.ExternalCustomerID)
	assert.Equal(t, first, *rec.ExternalCustomerID)
}

func TestEnsureCustomerLosingRacerAdoptsPersistedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	// A competing call persists its customer id while this call's
	// provider request is in flight. The narrow write keeps the first id
	// and this call must return it, not the object it just created.
	f.provider.beforeCreateCustomer = func() {
		f.provider.beforeCreateCustomer = nil
		require.NoError(t, f.store.SetCustomerID(ctx, rec.InternalID, "cus_rival"))
	}

	got, err := f.linker.EnsureCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cus_rival", got)

	stored, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.ExternalCustomerID)
	assert.Equal(t, "cus_rival", *stored.ExternalCustomerID)
}

func TestEnsureCustomerUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.linker.EnsureCustomer(context.Background(), 42)
	assert.Error(t, err)
}

func TestEnsureCustomerProviderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateFree(ctx, 1)
	require.NoError(t, err)

	boom := errors.New("provider down")
	f.provider.createCustomerErr = boom
	_, err = f.linker.EnsureCustomer(ctx, 1)
	assert.ErrorIs(t, err, boom)

	// Nothing was persisted; a retry starts clean and succeeds.
	f.provider.createCustomerErr = nil
	got, err := f.linker.EnsureCustomer(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
