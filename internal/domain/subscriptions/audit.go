package subscriptions

import (
	"context"
	"fmt"
	"time"

	"billing-app/internal/domain/access"

	"gorm.io/gorm"
)

// AuditLog appends an AdminActionRecord for every user- or
// admin-initiated lifecycle mutation.
type AuditLog struct {
	db *gorm.DB
}

func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (l *AuditLog) Record(ctx context.Context, actor access.Principal, action string, targetUserID uint, metadata string) error {
	rec := AdminActionRecord{
		ActorID:      actor.UserID,
		ActorKind:    string(actor.Kind),
		Action:       action,
		TargetUserID: targetUserID,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// List returns the audit trail, newest first.
func (l *AuditLog) List(ctx context.Context) ([]AdminActionRecord, error) {
	var recs []AdminActionRecord
	if err := l.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load audit records: %w", err)
	}
	return recs, nil
}
