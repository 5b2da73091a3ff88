package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mutation fully describes the post-transition values of the mutable
// columns. Callers copy forward any value they want to keep, so a nil
// pointer always means "store null", never "leave unchanged".
type Mutation struct {
	Status                 Status
	ExternalSubscriptionID *string
	PriceID                *string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	SourceEventID          *string
	SourceEventTime        *time.Time
}

// Store is the durable repository of subscription records. All writes go
// through a single atomic check-and-set on updated_at, which is what
// serializes concurrent mutations of the same record without table locks.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the record owned by userID.
func (s *Store) Get(ctx context.Context, userID uint) (*SubscriptionRecord, error) {
	var rec SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load subscription record: %w", err)
	}
	return &rec, nil
}

// GetByInternalID returns the record with the given immutable id.
func (s *Store) GetByInternalID(ctx context.Context, internalID string) (*SubscriptionRecord, error) {
	var rec SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("internal_id = ?", internalID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load subscription record: %w", err)
	}
	return &rec, nil
}

// GetByExternalSubscriptionID resolves the record owning a provider
// subscription id.
func (s *Store) GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*SubscriptionRecord, error) {
	var rec SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("external_subscription_id = ?", subscriptionID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load subscription record: %w", err)
	}
	return &rec, nil
}

// GetByExternalCustomerID resolves the record owning a provider customer
// id, for customer-level events.
func (s *Store) GetByExternalCustomerID(ctx context.Context, customerID string) (*SubscriptionRecord, error) {
	var rec SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("external_customer_id = ?", customerID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load subscription record: %w", err)
	}
	return &rec, nil
}

// CreateFree creates the user's record in free status. The unique index on
// user_id guarantees at most one record per user even under concurrent
// signups.
func (s *Store) CreateFree(ctx context.Context, userID uint) (*SubscriptionRecord, error) {
	now := storeNow()
	rec := SubscriptionRecord{
		InternalID: uuid.NewString(),
		UserID:     userID,
		Status:     StatusFree,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSubscriptionExists
		}
		return nil, fmt.Errorf("create free subscription record: %w", err)
	}
	return &rec, nil
}

// ApplyTransition writes the mutation if and only if the record still
// carries expectedUpdatedAt. A lost race returns ErrConflict and the
// caller must re-read and retry.
func (s *Store) ApplyTransition(ctx context.Context, internalID string, mut Mutation, expectedUpdatedAt time.Time) (*SubscriptionRecord, error) {
	if !mut.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, mut.Status)
	}

	now := storeNow()
	res := s.db.WithContext(ctx).Model(&SubscriptionRecord{}).
		Where("internal_id = ? AND updated_at = ?", internalID, expectedUpdatedAt).
		Updates(map[string]interface{}{
			"status":                   mut.Status,
			"external_subscription_id": mut.ExternalSubscriptionID,
			"price_id":                 mut.PriceID,
			"current_period_start":     mut.CurrentPeriodStart,
			"current_period_end":       mut.CurrentPeriodEnd,
			"source_event_id":          mut.SourceEventID,
			"source_event_time":        mut.SourceEventTime,
			"updated_at":               now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("apply subscription transition: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the row vanished or someone wrote it first. The record is
		// never deleted, so distinguish the two for the caller.
		if _, err := s.GetByInternalID(ctx, internalID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	return s.GetByInternalID(ctx, internalID)
}

// SetCustomerID is the customer linker's narrow write: it fills the
// customer id without touching status or the subscription id, and only if
// the column is still empty. Losing the race to another linker call is
// fine; the caller re-reads and uses whatever id won.
func (s *Store) SetCustomerID(ctx context.Context, internalID, customerID string) error {
	res := s.db.WithContext(ctx).Model(&SubscriptionRecord{}).
		Where("internal_id = ? AND external_customer_id IS NULL", internalID).
		Update("external_customer_id", customerID)
	if res.Error != nil {
		return fmt.Errorf("persist customer id: %w", res.Error)
	}
	return nil
}

// ListAll returns every record, for the integrity diagnostics scan.
func (s *Store) ListAll(ctx context.Context) ([]SubscriptionRecord, error) {
	var recs []SubscriptionRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list subscription records: %w", err)
	}
	return recs, nil
}

// storeNow truncates to microseconds so the optimistic token written to
// postgres (microsecond timestamptz) compares equal after a round trip.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
