package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"billing-app/internal/domain/billing"
)

// Violation classifies what an invalid record actually breaks.
const (
	ViolationDuplicateUserRecord    = "duplicate_user_record"
	ViolationMissingInternalID      = "missing_internal_id"
	ViolationDuplicateInternalID    = "duplicate_internal_id"
	ViolationPaidWithoutProviderSub = "paid_status_missing_subscription_id"
	ViolationFreeWithProviderSub    = "free_status_with_subscription_id"
	ViolationFreeWithPeriodBounds   = "free_status_with_period_bounds"
	ViolationUnknownStatus          = "unknown_status"
	ViolationProviderDrift          = "provider_subscription_drift"
)

// Finding is one invalid record with the reason it is invalid.
type Finding struct {
	InternalID string `json:"internal_id"`
	UserID     uint   `json:"user_id"`
	Violation  string `json:"violation"`
	Detail     string `json:"detail"`
}

// Diagnostics is the read-only integrity auditor. It surfaces corruption
// and never repairs it: an automatic fix could mask a real
// provider/application desynchronization.
type Diagnostics struct {
	store *Store

	// provider is optional. When present, stored subscription ids are
	// cross-checked against the provider to catch drift; when nil the
	// scan is purely local.
	provider billing.Provider
}

func NewDiagnostics(store *Store, provider billing.Provider) *Diagnostics {
	return &Diagnostics{store: store, provider: provider}
}

// ListInvalidRecords scans every record and returns one finding per
// violated constraint. A clean store returns an empty slice.
func (d *Diagnostics) ListInvalidRecords(ctx context.Context) ([]Finding, error) {
	recs, err := d.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	findings := []Finding{}
	seenUser := map[uint]bool{}
	seenInternal := map[string]bool{}

	for i := range recs {
		rec := &recs[i]

		if rec.InternalID == "" {
			findings = append(findings, Finding{
				UserID:    rec.UserID,
				Violation: ViolationMissingInternalID,
				Detail:    "record has no internal id",
			})
		} else if seenInternal[rec.InternalID] {
			findings = append(findings, Finding{
				InternalID: rec.InternalID,
				UserID:     rec.UserID,
				Violation:  ViolationDuplicateInternalID,
				Detail:     "internal id appears on more than one record",
			})
		}
		seenInternal[rec.InternalID] = true

		if seenUser[rec.UserID] {
			findings = append(findings, Finding{
				InternalID: rec.InternalID,
				UserID:     rec.UserID,
				Violation:  ViolationDuplicateUserRecord,
				Detail:     fmt.Sprintf("user %d owns more than one record", rec.UserID),
			})
		}
		seenUser[rec.UserID] = true

		findings = append(findings, d.checkStatusShape(rec)...)
		findings = append(findings, d.checkProviderDrift(ctx, rec)...)
	}

	return findings, nil
}

// checkStatusShape verifies that the subscription id is present exactly
// when the status demands one, with the cancellation carve-out: a
// canceled record keeps its last known id for audit until downgrade.
func (d *Diagnostics) checkStatusShape(rec *SubscriptionRecord) []Finding {
	var findings []Finding

	hasSub := rec.ExternalSubscriptionID != nil && *rec.ExternalSubscriptionID != ""

	switch {
	case !rec.Status.Valid():
		findings = append(findings, Finding{
			InternalID: rec.InternalID,
			UserID:     rec.UserID,
			Violation:  ViolationUnknownStatus,
			Detail:     fmt.Sprintf("status %q is not a known lifecycle state", rec.Status),
		})
	case rec.Status.PaidFamily() && !hasSub:
		findings = append(findings, Finding{
			InternalID: rec.InternalID,
			UserID:     rec.UserID,
			Violation:  ViolationPaidWithoutProviderSub,
			Detail:     fmt.Sprintf("status %q requires a provider subscription id", rec.Status),
		})
	case rec.Status == StatusFree && hasSub:
		findings = append(findings, Finding{
			InternalID: rec.InternalID,
			UserID:     rec.UserID,
			Violation:  ViolationFreeWithProviderSub,
			Detail:     "free record still references a provider subscription",
		})
	}

	if rec.Status == StatusFree && (rec.CurrentPeriodStart != nil || rec.CurrentPeriodEnd != nil) {
		findings = append(findings, Finding{
			InternalID: rec.InternalID,
			UserID:     rec.UserID,
			Violation:  ViolationFreeWithPeriodBounds,
			Detail:     "free record carries billing period bounds",
		})
	}

	return findings
}

// checkProviderDrift verifies the stored subscription id is exactly the
// provider's object id for this record. Requires a provider handle.
func (d *Diagnostics) checkProviderDrift(ctx context.Context, rec *SubscriptionRecord) []Finding {
	if d.provider == nil || rec.ExternalSubscriptionID == nil || *rec.ExternalSubscriptionID == "" {
		return nil
	}

	sub, err := d.provider.GetSubscription(ctx, *rec.ExternalSubscriptionID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return []Finding{{
				InternalID: rec.InternalID,
				UserID:     rec.UserID,
				Violation:  ViolationProviderDrift,
				Detail:     fmt.Sprintf("provider has no subscription %s", *rec.ExternalSubscriptionID),
			}}
		}
		// A transient provider failure is not a finding; the scan reports
		// only what it could positively verify.
		return nil
	}
	if sub.ID != *rec.ExternalSubscriptionID {
		return []Finding{{
			InternalID: rec.InternalID,
			UserID:     rec.UserID,
			Violation:  ViolationProviderDrift,
			Detail:     fmt.Sprintf("stored id %s, provider reports %s", *rec.ExternalSubscriptionID, sub.ID),
		}}
	}
	return nil
}
