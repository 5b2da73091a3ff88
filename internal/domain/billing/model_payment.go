package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Payment records a settled (or failed) provider invoice for a user. Rows
// are appended by the webhook reconciler; nothing updates them afterwards.
type Payment struct {
	ID                     uint    `gorm:"primaryKey"`
	UserID                 uint    `gorm:"column:user_id;index"`
	PriceID                *string `gorm:"column:price_id"`
	ExternalSubscriptionID *string `gorm:"column:external_subscription_id"`
	InvoiceID              string  `gorm:"column:invoice_id;uniqueIndex:idx_payments_invoice_id"`
	AmountCents            int64   `gorm:"column:amount_cents"`
	Currency               string  `gorm:"column:currency;size:3"`
	Status                 string  `gorm:"column:status;size:20"`
	CreatedAt              time.Time
}

// PaymentLog is the append-only payment history store.
type PaymentLog struct {
	db *gorm.DB
}

func NewPaymentLog(db *gorm.DB) *PaymentLog {
	return &PaymentLog{db: db}
}

// Append records a payment. A replayed invoice id is a silent no-op so the
// reconciler can reprocess payment events safely.
func (l *PaymentLog) Append(ctx context.Context, p Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("append payment: %w", err)
	}
	return nil
}

// ListForUser returns the user's payment history, newest first.
func (l *PaymentLog) ListForUser(ctx context.Context, userID uint) ([]Payment, error) {
	var payments []Payment
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return payments, nil
}

// ListAll returns every payment, newest first, for the admin surface.
func (l *PaymentLog) ListAll(ctx context.Context) ([]Payment, error) {
	var payments []Payment
	if err := l.db.WithContext(ctx).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return payments, nil
}
