package access

import (
	"fmt"

	"billing-app/internal/domain/plans"
)

// Feature is a known feature identifier. Entitlements carry every known
// key explicitly; unknown keys are rejected at the boundary instead of
// passed through untyped.
type Feature string

const (
	FeatureEdit         Feature = "edit"
	FeatureUpload       Feature = "upload"
	FeatureCustomDomain Feature = "custom_domain"
	FeatureAdvanced     Feature = "advanced_features"
)

var knownFeatures = map[Feature]bool{
	FeatureEdit:         true,
	FeatureUpload:       true,
	FeatureCustomDomain: true,
	FeatureAdvanced:     true,
}

// ParseFeature validates a feature key from an external caller.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if !knownFeatures[f] {
		return "", fmt.Errorf("unknown feature key %q", s)
	}
	return f, nil
}

// Limit is a known numeric limit identifier.
type Limit string

const (
	LimitStorageGB Limit = "storage_gb"
	LimitWorks     Limit = "works"
)

// Unlimited indicates no limit for a resource.
const Unlimited int64 = -1

// EntitlementsSchemaVersion is bumped whenever the key set changes, so
// consumers can detect a stale cached shape.
const EntitlementsSchemaVersion = 1

// Entitlements is the versioned, explicitly-typed feature surface the
// presentation layer consumes. Derived deterministically from the
// subscription status and plan; never stored.
type Entitlements struct {
	SchemaVersion int              `json:"schema_version"`
	PlanID        string           `json:"plan_id"`
	Features      map[Feature]bool `json:"features"`
	Limits        map[Limit]int64  `json:"limits"`
}

// subscriptionStatus values mirrored here to keep this package free of a
// dependency on the subscriptions package. Only the grouping matters:
// which statuses grant the paid tier, which degrade it, which fall back to
// free.
const (
	statusActive   = "active"
	statusTrialing = "trialing"
	statusPastDue  = "past_due"
)

// ComputeEntitlements derives the entitlement set for a record in the
// given status on the given plan. plan may be nil for free users or an
// unconfigured free default price.
func ComputeEntitlements(status string, plan *plans.Plan) Entitlements {
	switch status {
	case statusActive, statusTrialing:
		return tierEntitlements(plan)
	case statusPastDue:
		// Payment trouble keeps read/edit access but freezes everything
		// tier-specific until the provider reports recovery.
		return Entitlements{
			SchemaVersion: EntitlementsSchemaVersion,
			PlanID:        planID(plan),
			Features: map[Feature]bool{
				FeatureEdit:         true,
				FeatureUpload:       false,
				FeatureCustomDomain: false,
				FeatureAdvanced:     false,
			},
			Limits: map[Limit]int64{
				LimitStorageGB: 1,
				LimitWorks:     10,
			},
		}
	default:
		// free, canceled, incomplete and anything unrecognized fail closed
		// to the free tier.
		return freeEntitlements()
	}
}

func tierEntitlements(plan *plans.Plan) Entitlements {
	e := Entitlements{
		SchemaVersion: EntitlementsSchemaVersion,
		PlanID:        planID(plan),
		Features: map[Feature]bool{
			FeatureEdit:         true,
			FeatureUpload:       true,
			FeatureCustomDomain: false,
			FeatureAdvanced:     false,
		},
		Limits: map[Limit]int64{
			LimitStorageGB: 5,
			LimitWorks:     100,
		},
	}

	switch plans.PlanTier(plan) {
	case plans.TierProfessional:
		e.Features[FeatureCustomDomain] = true
		e.Limits[LimitStorageGB] = 50
		e.Limits[LimitWorks] = 1000
	case plans.TierAdvanced:
		e.Features[FeatureCustomDomain] = true
		e.Features[FeatureAdvanced] = true
		e.Limits[LimitStorageGB] = 200
		e.Limits[LimitWorks] = Unlimited
	}
	return e
}

func freeEntitlements() Entitlements {
	return Entitlements{
		SchemaVersion: EntitlementsSchemaVersion,
		PlanID:        "free",
		Features: map[Feature]bool{
			FeatureEdit:         true,
			FeatureUpload:       false,
			FeatureCustomDomain: false,
			FeatureAdvanced:     false,
		},
		Limits: map[Limit]int64{
			LimitStorageGB: 1,
			LimitWorks:     3,
		},
	}
}

func planID(plan *plans.Plan) string {
	if plan == nil {
		return "free"
	}
	return plan.StripePriceID
}
