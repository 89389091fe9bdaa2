package subscription

// Status is the custom type to define the current state of a subscription
type Status string

// Valid states of a subscription.
// trial --(checkout activates / webhook)--> active
// active --(cancel)--> pending_cancellation (cancelAtPeriodEnd=true)
// pending_cancellation --(reactivate, before periodEnd)--> active
// pending_cancellation --(periodEnd elapses: lazy read OR sweep)--> cancelled
// cancelled --(checkout activates)--> active
// past_due is representable for the payment-failure webhook path but no
// handler here transitions into it.
const (
	StatusTrial               Status = "trial"
	StatusActive              Status = "active"
	StatusPendingCancellation Status = "pending_cancellation"
	StatusCancelled           Status = "cancelled"
	StatusPastDue             Status = "past_due"
)

// Valid reports whether s is a member of the closed status set
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusPendingCancellation, StatusCancelled, StatusPastDue:
		return true
	}
	return false
}
