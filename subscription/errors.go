package subscription

import "errors"

// Domain errors surfaced to callers of the billing actions. They are
// precondition failures, never retried automatically.
var (
	// ErrNoPaidSubscription is returned when cancelling a user who never
	// activated a paid plan (trial or already terminal).
	ErrNoPaidSubscription = errors.New("no paid subscription to cancel")

	// ErrNotPendingCancellation is returned when reactivating a subscription
	// that was never scheduled for cancellation.
	ErrNotPendingCancellation = errors.New("subscription is not scheduled for cancellation")

	// ErrGracePeriodElapsed is returned when reactivating after periodEnd has
	// passed; the user must go through checkout again.
	ErrGracePeriodElapsed = errors.New("grace period already elapsed, a new subscription is required")

	// ErrActivationTimeout is returned by the checkout poller when the maximum
	// attempt count is reached without observing an active subscription.
	ErrActivationTimeout = errors.New("timed out waiting for subscription activation")
)
