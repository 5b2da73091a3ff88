package subscriptions

import (
	"context"
	"fmt"

	"billing-app/internal/domain/billing"
)

// EmailLookup resolves the billing email for a user. Injected so the
// linker does not depend on the users table directly.
type EmailLookup func(ctx context.Context, userID uint) (string, error)

// CustomerLinker maintains the mapping from application user to provider
// customer identity, including pre-provisioning before any paid
// subscription exists.
type CustomerLinker struct {
	store    *Store
	provider billing.Provider
	email    EmailLookup
}

func NewCustomerLinker(store *Store, provider billing.Provider, email EmailLookup) *CustomerLinker {
	return &CustomerLinker{store: store, provider: provider, email: email}
}

// EnsureCustomer returns the user's provider customer id, creating the
// provider customer on first use.
//
// The create call carries an idempotency key derived from the user id
// alone, so a retry after a crashed persist (or a concurrent call for the
// same brand-new user) resolves to the same provider object instead of
// creating a duplicate. The persist is a narrow write that fills the
// customer column only when it is still empty; whichever call wins, both
// return the id that landed in the store.
func (l *CustomerLinker) EnsureCustomer(ctx context.Context, userID uint) (string, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec.ExternalCustomerID != nil && *rec.ExternalCustomerID != "" {
		return *rec.ExternalCustomerID, nil
	}

	email, err := l.email(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve billing email for user %d: %w", userID, err)
	}

	cus, err := l.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
		UserID:         userID,
		Email:          email,
		IdempotencyKey: customerIdempotencyKey(userID),
	})
	if err != nil {
		return "", fmt.Errorf("create provider customer for user %d: %w", userID, err)
	}

	if err := l.store.SetCustomerID(ctx, rec.InternalID, cus.ID); err != nil {
		return "", err
	}

	rec, err = l.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec.ExternalCustomerID == nil || *rec.ExternalCustomerID == "" {
		return "", fmt.Errorf("customer id for user %d not persisted", userID)
	}
	return *rec.ExternalCustomerID, nil
}

func customerIdempotencyKey(userID uint) string {
	return fmt.Sprintf("customer-create-user-%d", userID)
}
