package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"billing-app/internal/domain/access"
	"billing-app/internal/domain/billing"
)

// reconcileAttempts bounds the re-resolve-and-retry loop on optimistic
// write conflicts before the event is surfaced for manual inspection.
const reconcileAttempts = 3

// Reconciler applies externally-sourced provider events to the store
// through the lifecycle engine. It owns the idempotency and ordering
// guarantees: at-least-once, unordered delivery in; exactly-once,
// newest-wins effects out.
type Reconciler struct {
	store    *Store
	events   *EventLog
	engine   *Engine
	payments *billing.PaymentLog
	log      *slog.Logger
}

func NewReconciler(store *Store, events *EventLog, engine *Engine, payments *billing.PaymentLog, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		events:   events,
		engine:   engine,
		payments: payments,
		log:      log,
	}
}

// Process applies one inbound event. Replays and stale deliveries return
// nil (the provider must not retry them); an event whose subscription or
// customer is unknown returns ErrNotFound; exhausting the conflict retry
// budget returns ErrReconciliationFailed.
func (r *Reconciler) Process(ctx context.Context, ev billing.WebhookEvent) error {
	seen, err := r.events.Lookup(ctx, ev.EventID)
	if err != nil {
		return err
	}
	if seen != nil && seen.Applied {
		r.log.Info("webhook event replayed, suppressing",
			slog.String("event_id", ev.EventID),
			slog.String("type", string(ev.Type)))
		return nil
	}
	if err := r.events.MarkReceived(ctx, ev.EventID, ev.PayloadHash); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		rec, err := r.resolve(ctx, ev)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.log.Error("webhook event matches no subscription record",
					slog.String("event_id", ev.EventID),
					slog.String("subscription_id", ev.SubscriptionID),
					slog.String("customer_id", ev.CustomerID))
			}
			return err
		}

		// An event naming a subscription this record no longer owns is a
		// leftover from a replaced subscription's lifetime (the customer
		// fallback resolved it). The timestamp check below cannot catch it
		// when a user-initiated transition cleared source_event_time, so
		// the identity mismatch itself is the staleness signal: applying
		// the event would point the record back at the old provider
		// object.
		if ev.SubscriptionID != "" && rec.ExternalSubscriptionID != nil &&
			*rec.ExternalSubscriptionID != "" && *rec.ExternalSubscriptionID != ev.SubscriptionID {
			r.log.Info("webhook event names a replaced subscription, discarding effect",
				slog.String("event_id", ev.EventID),
				slog.String("event_subscription_id", ev.SubscriptionID),
				slog.String("record_subscription_id", *rec.ExternalSubscriptionID))
			return r.events.MarkApplied(ctx, ev.EventID, ev.PayloadHash)
		}

		// Ordering rule: a delivery older than the event last applied to
		// this record is recorded as applied and its effect discarded, so
		// a late stale event can never undo a newer state.
		if rec.SourceEventTime != nil && !ev.OccurredAt.After(*rec.SourceEventTime) {
			r.log.Info("webhook event out of order, discarding effect",
				slog.String("event_id", ev.EventID),
				slog.Time("event_time", ev.OccurredAt),
				slog.Time("record_event_time", *rec.SourceEventTime))
			return r.events.MarkApplied(ctx, ev.EventID, ev.PayloadHash)
		}

		if err := r.appendPayment(ctx, rec, ev); err != nil {
			return err
		}

		_, err = r.engine.ApplyProviderEvent(ctx, access.Service(), rec, ev)
		if err == nil {
			return r.events.MarkApplied(ctx, ev.EventID, ev.PayloadHash)
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		// Lost the race to another writer: re-resolve and re-run the
		// ordering rule against the new state, never blindly overwrite.
		lastErr = err
		r.log.Debug("webhook apply conflicted, re-resolving",
			slog.String("event_id", ev.EventID),
			slog.Int("attempt", attempt+1))
	}

	r.log.Error("webhook event exhausted reconcile attempts",
		slog.String("event_id", ev.EventID),
		slog.String("type", string(ev.Type)))
	return fmt.Errorf("%w: event %s: %w", ErrReconciliationFailed, ev.EventID, lastErr)
}

// resolve finds the owning record by subscription id, falling back to the
// customer id for customer-level events.
func (r *Reconciler) resolve(ctx context.Context, ev billing.WebhookEvent) (*SubscriptionRecord, error) {
	if ev.SubscriptionID != "" {
		rec, err := r.store.GetByExternalSubscriptionID(ctx, ev.SubscriptionID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// A created event may arrive before the upgrade's own write; the
		// customer id still identifies the record.
	}
	if ev.CustomerID != "" {
		return r.store.GetByExternalCustomerID(ctx, ev.CustomerID)
	}
	return nil, ErrNotFound
}

// appendPayment writes the payment history row for payment events. The
// invoice id dedups replays at the table level.
func (r *Reconciler) appendPayment(ctx context.Context, rec *SubscriptionRecord, ev billing.WebhookEvent) error {
	if ev.Type != billing.EventPaymentSucceeded && ev.Type != billing.EventPaymentFailed {
		return nil
	}
	if ev.InvoiceID == "" {
		return nil
	}
	status := "paid"
	if ev.Type == billing.EventPaymentFailed {
		status = "failed"
	}
	p := billing.Payment{
		UserID:                 rec.UserID,
		PriceID:                rec.PriceID,
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		InvoiceID:              ev.InvoiceID,
		AmountCents:            ev.AmountCents,
		Currency:               ev.Currency,
		Status:                 status,
	}
	if ev.SubscriptionID != "" {
		p.ExternalSubscriptionID = &ev.SubscriptionID
	}
	return r.payments.Append(ctx, p)
}
