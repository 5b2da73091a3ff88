package subscriptions

import (
	"time"
)

// SubscriptionRecord is the internal system of record for a user's
// subscription. One record per user; the record is mutated in place by
// lifecycle transitions and never deleted (cancellation is a status flip,
// not a row removal).
type SubscriptionRecord struct {
	// InternalID is assigned once at creation and never reused.
	InternalID string `gorm:"column:internal_id;primaryKey;size:36"`

	UserID uint `gorm:"column:user_id;not null;uniqueIndex:idx_subscription_records_user_id"`

	// ExternalSubscriptionID is the billing provider's subscription object
	// id. Set only while the record is in a paid-family status, except that
	// a canceled record keeps its last known id for audit until the
	// explicit downgrade to free.
	ExternalSubscriptionID *string `gorm:"column:external_subscription_id;uniqueIndex:idx_subscription_records_external_subscription_id"`

	// ExternalCustomerID may be set in any status. A free user keeps the
	// customer created on a first upgrade attempt so a retry or later
	// upgrade does not create a second provider customer.
	ExternalCustomerID *string `gorm:"column:external_customer_id;uniqueIndex:idx_subscription_records_external_customer_id"`

	PriceID *string `gorm:"column:price_id"`

	Status Status `gorm:"column:status;type:varchar(20);not null;default:'free'"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end"`

	// SourceEventID and SourceEventTime identify the provider event that
	// last wrote this record, for the reconciler's ordering rule. The id
	// alone cannot be ordered, so the provider's event timestamp is kept
	// alongside it.
	SourceEventID   *string    `gorm:"column:source_event_id"`
	SourceEventTime *time.Time `gorm:"column:source_event_time"`

	CreatedAt time.Time `gorm:"column:created_at"`

	// UpdatedAt doubles as the optimistic-concurrency token: every write
	// goes through a check-and-set on it, so gorm must not touch it on its
	// own.
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

// WebhookEventRecord is the append-only log of received provider events,
// used for replay suppression.
type WebhookEventRecord struct {
	EventID     string    `gorm:"column:event_id;primaryKey;size:255"`
	ReceivedAt  time.Time `gorm:"column:received_at"`
	PayloadHash string    `gorm:"column:payload_hash;size:64"`
	Applied     bool      `gorm:"column:applied"`
}

// AdminActionRecord is an append-only audit entry for every mutating
// lifecycle call initiated by a user or administrator.
type AdminActionRecord struct {
	ID           uint      `gorm:"primaryKey"`
	ActorID      uint      `gorm:"column:actor_id"`
	ActorKind    string    `gorm:"column:actor_kind;size:20"`
	Action       string    `gorm:"column:action;size:50"`
	TargetUserID uint      `gorm:"column:target_user_id"`
	Metadata     string    `gorm:"column:metadata"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}
