package subscriptions

import (
	"context"
	"fmt"
	"log/slog"

	"billing-app/internal/domain/access"
	"billing-app/internal/domain/billing"
)

// Engine is the lifecycle state machine over subscription records. Every
// operation states its acting principal and is authorized before any
// store access; per-record serialization comes from the store's
// check-and-set, not from locks, so concurrent callers race safely and
// the loser observes ErrConflict.
type Engine struct {
	store    *Store
	linker   *CustomerLinker
	provider billing.Provider
	gate     *access.Gate
	audit    *AuditLog
	log      *slog.Logger
}

func NewEngine(store *Store, linker *CustomerLinker, provider billing.Provider, gate *access.Gate, audit *AuditLog, log *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		linker:   linker,
		provider: provider,
		gate:     gate,
		audit:    audit,
		log:      log,
	}
}

// Get returns the record snapshot for a user.
func (e *Engine) Get(ctx context.Context, p access.Principal, userID uint) (*SubscriptionRecord, error) {
	if err := e.gate.Authorize(p, access.OpRead, userID); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, userID)
}

// CreateFree creates the user's record in free status at signup. No
// provider object is involved.
func (e *Engine) CreateFree(ctx context.Context, p access.Principal, userID uint) (*SubscriptionRecord, error) {
	if err := e.gate.Authorize(p, access.OpCreateFree, userID); err != nil {
		return nil, err
	}
	rec, err := e.store.CreateFree(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.recordAudit(ctx, p, "create_free", userID, "")
	return rec, nil
}

// Upgrade moves a free record onto a paid plan. It is the only operation
// that creates a provider subscription. The idempotency key covers the
// record snapshot the caller read, so two racers share a key (the
// provider returns one object, the store CAS picks one winner) while a
// later re-upgrade after a full cancel/downgrade cycle gets a fresh key.
//
// A provider failure after customer creation leaves the record free with
// the customer id persisted; that is a valid, re-enterable state and a
// retry proceeds straight to subscription creation.
func (e *Engine) Upgrade(ctx context.Context, p access.Principal, userID uint, priceID string) (*SubscriptionRecord, error) {
	if err := e.gate.Authorize(p, access.OpUpgrade, userID); err != nil {
		return nil, err
	}

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusFree {
		return nil, fmt.Errorf("%w: upgrade requires a free record, have %q", ErrInvalidTransition, rec.Status)
	}

	customerID, err := e.linker.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Re-read so the snapshot reflects any state that changed while the
	// linker held the request (the narrow customer write leaves the
	// optimistic token alone, but a competing full transition does not).
	rec, err = e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusFree {
		return nil, fmt.Errorf("%w: upgrade requires a free record, have %q", ErrInvalidTransition, rec.Status)
	}

	provSub, err := e.provider.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID:     customerID,
		PriceID:        priceID,
		IdempotencyKey: upgradeIdempotencyKey(userID, priceID, rec),
	})
	if err != nil {
		return nil, fmt.Errorf("create provider subscription for user %d: %w", userID, err)
	}

	target := Status(provSub.Status)
	if !target.PaidFamily() {
		return nil, fmt.Errorf("%w: provider reported status %q for new subscription", ErrInvalidTransition, provSub.Status)
	}

	start := provSub.CurrentPeriodStart
	end := provSub.CurrentPeriodEnd
	updated, err := e.store.ApplyTransition(ctx, rec.InternalID, Mutation{
		Status:                 target,
		ExternalSubscriptionID: &provSub.ID,
		PriceID:                &priceID,
		CurrentPeriodStart:     &start,
		CurrentPeriodEnd:       &end,
	}, rec.UpdatedAt)
	if err != nil {
		// On a lost race the provider object is not duplicated: a retry
		// re-reads and either finds the winner's subscription or reissues
		// the create under a fresh snapshot key.
		return nil, err
	}

	e.recordAudit(ctx, p, "upgrade", userID, fmt.Sprintf(`{"price_id":%q,"subscription_id":%q}`, priceID, provSub.ID))
	return updated, nil
}

// Cancel ends a paid subscription at the provider and flips the record to
// canceled. The last known provider subscription id stays on the record
// for audit; it is cleared only by the explicit downgrade to free.
func (e *Engine) Cancel(ctx context.Context, p access.Principal, userID uint) (*SubscriptionRecord, error) {
	if err := e.gate.Authorize(p, access.OpCancel, userID); err != nil {
		return nil, err
	}

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rec.Status.PaidFamily() || rec.ExternalSubscriptionID == nil {
		return nil, fmt.Errorf("%w: cancel requires a paid record, have %q", ErrInvalidTransition, rec.Status)
	}

	if err := e.provider.CancelSubscription(ctx, *rec.ExternalSubscriptionID); err != nil {
		return nil, fmt.Errorf("cancel provider subscription %s: %w", *rec.ExternalSubscriptionID, err)
	}

	updated, err := e.store.ApplyTransition(ctx, rec.InternalID, Mutation{
		Status:                 StatusCanceled,
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		PriceID:                rec.PriceID,
		CurrentPeriodStart:     rec.CurrentPeriodStart,
		CurrentPeriodEnd:       rec.CurrentPeriodEnd,
		SourceEventID:          rec.SourceEventID,
		SourceEventTime:        rec.SourceEventTime,
	}, rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.recordAudit(ctx, p, "cancel", userID, fmt.Sprintf(`{"subscription_id":%q}`, *rec.ExternalSubscriptionID))
	return updated, nil
}

// DowngradeToFree returns a canceled record to the free tier, clearing
// the provider subscription id and period bounds. The customer id is
// kept so a future upgrade needs no second customer-creation round trip.
func (e *Engine) DowngradeToFree(ctx context.Context, p access.Principal, userID uint) (*SubscriptionRecord, error) {
	if err := e.gate.Authorize(p, access.OpDowngrade, userID); err != nil {
		return nil, err
	}

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusCanceled {
		return nil, fmt.Errorf("%w: downgrade requires a canceled record, have %q", ErrInvalidTransition, rec.Status)
	}

	updated, err := e.store.ApplyTransition(ctx, rec.InternalID, Mutation{
		Status: StatusFree,
	}, rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.recordAudit(ctx, p, "downgrade_to_free", userID, "")
	return updated, nil
}

// ApplyProviderEvent applies a reconciled webhook event to a record via a
// single check-and-set against the snapshot the reconciler resolved. The
// reconciler owns dedup, ordering and the conflict retry loop; this
// method owns transition legality.
func (e *Engine) ApplyProviderEvent(ctx context.Context, p access.Principal, rec *SubscriptionRecord, ev billing.WebhookEvent) (*SubscriptionRecord, error) {
	if err := e.gate.Authorize(p, access.OpReconcile, rec.UserID); err != nil {
		return nil, err
	}

	var target Status
	switch ev.Type {
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated:
		target = Status(ev.Status)
		if !target.Valid() {
			return nil, fmt.Errorf("%w: event %s carries unknown status %q", ErrInvalidTransition, ev.EventID, ev.Status)
		}
	case billing.EventSubscriptionDeleted:
		target = StatusCanceled
	case billing.EventPaymentFailed:
		target = StatusPastDue
	case billing.EventPaymentSucceeded:
		target = StatusActive
	default:
		return nil, fmt.Errorf("%w: unhandled event type %q", ErrInvalidTransition, ev.Type)
	}

	if !CanTransition(rec.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s (event %s)", ErrInvalidTransition, rec.Status, target, ev.EventID)
	}

	mut := Mutation{
		Status:                 target,
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		PriceID:                rec.PriceID,
		CurrentPeriodStart:     rec.CurrentPeriodStart,
		CurrentPeriodEnd:       rec.CurrentPeriodEnd,
		SourceEventID:          &ev.EventID,
		SourceEventTime:        &ev.OccurredAt,
	}
	if ev.SubscriptionID != "" {
		mut.ExternalSubscriptionID = &ev.SubscriptionID
	}
	if ev.PriceID != "" {
		mut.PriceID = &ev.PriceID
	}
	if ev.PeriodStart != nil {
		mut.CurrentPeriodStart = ev.PeriodStart
	}
	if ev.PeriodEnd != nil {
		mut.CurrentPeriodEnd = ev.PeriodEnd
	}

	return e.store.ApplyTransition(ctx, rec.InternalID, mut, rec.UpdatedAt)
}

// recordAudit is best effort: a failed audit append is logged but does
// not undo a lifecycle transition that already committed.
func (e *Engine) recordAudit(ctx context.Context, p access.Principal, action string, targetUserID uint, metadata string) {
	if err := e.audit.Record(ctx, p, action, targetUserID, metadata); err != nil {
		e.log.Warn("audit append failed",
			slog.String("action", action),
			slog.Uint64("target_user_id", uint64(targetUserID)),
			slog.Any("error", err))
	}
}

func upgradeIdempotencyKey(userID uint, priceID string, rec *SubscriptionRecord) string {
	return fmt.Sprintf("sub-create-user-%d-%s-%d", userID, priceID, rec.UpdatedAt.UnixNano())
}
