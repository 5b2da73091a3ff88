package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventLog is the append-only record of received webhook events, keyed by
// the provider-assigned event id. It backs replay suppression: an event is
// processed at most once no matter how many times the provider delivers it.
type EventLog struct {
	db *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

// Lookup returns the stored record for an event id, or nil if the event
// has never been seen.
func (l *EventLog) Lookup(ctx context.Context, eventID string) (*WebhookEventRecord, error) {
	var rec WebhookEventRecord
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup webhook event: %w", err)
	}
	return &rec, nil
}

// MarkReceived records that an event arrived without marking it applied.
// Re-recording a known event is a no-op.
func (l *EventLog) MarkReceived(ctx context.Context, eventID, payloadHash string) error {
	return l.record(ctx, eventID, payloadHash, false)
}

// MarkApplied records that an event's effect (or its deliberate discard
// under the ordering rule) is final. Applied never reverts to unapplied.
func (l *EventLog) MarkApplied(ctx context.Context, eventID, payloadHash string) error {
	return l.record(ctx, eventID, payloadHash, true)
}

func (l *EventLog) record(ctx context.Context, eventID, payloadHash string, applied bool) error {
	rec := WebhookEventRecord{
		EventID:     eventID,
		ReceivedAt:  time.Now().UTC(),
		PayloadHash: payloadHash,
		Applied:     applied,
	}
	err := l.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if !applied {
		return nil
	}
	if err := l.db.WithContext(ctx).Model(&WebhookEventRecord{}).
		Where("event_id = ?", eventID).
		Update("applied", true).Error; err != nil {
		return fmt.Errorf("mark webhook event applied: %w", err)
	}
	return nil
}
