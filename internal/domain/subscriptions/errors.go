package subscriptions

import "errors"

var (
	// ErrNotFound means no subscription record exists for the lookup key.
	ErrNotFound = errors.New("subscription record not found")

	// ErrSubscriptionExists means the user already has a record; signup
	// creates at most one.
	ErrSubscriptionExists = errors.New("subscription record already exists")

	// ErrConflict is the optimistic-write collision: the record changed
	// since the caller last read it. Re-read and retry.
	ErrConflict = errors.New("subscription record was modified concurrently")

	// ErrInvalidTransition means the requested status change would leave
	// the record in an inconsistent state. Never retried automatically.
	ErrInvalidTransition = errors.New("invalid subscription status transition")

	// ErrReplayedEvent marks an already-applied webhook event. A no-op for
	// the caller, logged for visibility.
	ErrReplayedEvent = errors.New("webhook event already applied")

	// ErrStaleEvent marks an out-of-order delivery that is older than the
	// event last applied to the record. Recorded, effect discarded.
	ErrStaleEvent = errors.New("webhook event older than last applied event")

	// ErrReconciliationFailed means the reconciler exhausted its retry
	// budget against concurrent writers; the event needs manual inspection.
	ErrReconciliationFailed = errors.New("webhook event could not be reconciled")
)
