package subscription

import (
	"time"

	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/plan"
)

// Subscription describes the billing state of a single user. Exactly one
// record exists per user; absence is an implicit new trial record created on
// first access. The record is never deleted, only its fields mutate.
type Subscription struct {
	UserID                 string     `json:"userId" gorm:"primaryKey"`
	Status                 Status     `json:"status"`
	CancelAtPeriodEnd      bool       `json:"cancelAtPeriodEnd"`
	PeriodEnd              *time.Time `json:"periodEnd"`              // when the current paid (or grace) period ends
	CancellationReason     string     `json:"cancellationReason"`     // free-text reason captured at cancellation time
	ExternalSubscriptionID string     `json:"externalSubscriptionId"` // the record in the payment gateway, if any
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// ExpiryDue reports whether the record is stale: a cancellation was scheduled,
// the window has elapsed, and the terminal transition has not happened yet.
// The lazy read path and the sweep both use this exact predicate so both
// converge on the same record state.
func (s *Subscription) ExpiryDue(now time.Time) bool {
	return s.CancelAtPeriodEnd &&
		s.PeriodEnd != nil &&
		!s.PeriodEnd.After(now) &&
		s.Status != StatusTrial &&
		s.Status != StatusCancelled
}

// Plan maps the record to the plan whose limits apply. pending_cancellation
// still grants the paid plan until the period actually ends; cancelled and
// past_due fall back to trial limits (fail-safe).
func (s *Subscription) Plan() plan.Name {
	switch s.Status {
	case StatusActive, StatusPendingCancellation:
		return plan.Pro
	case StatusTrial, StatusCancelled, StatusPastDue:
		return plan.Trial
	}
	return plan.Trial
}

// IsActive reports whether the paid plan is currently in force
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) toUpdate() *broker.Update {
	return &broker.Update{
		UserID:                 s.UserID,
		Status:                 string(s.Status),
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd,
		PeriodEnd:              s.PeriodEnd,
		CancellationReason:     s.CancellationReason,
		ExternalSubscriptionID: s.ExternalSubscriptionID,
		UpdatedAt:              s.UpdatedAt,
	}
}

// fromUpdate rebuilds a record from a push payload. The payload was already
// schema-validated by the broker; the status set membership is checked here
// so a malformed event never drives a state transition.
func fromUpdate(u *broker.Update) (*Subscription, bool) {
	status := Status(u.Status)
	if !status.Valid() {
		return nil, false
	}
	return &Subscription{
		UserID:                 u.UserID,
		Status:                 status,
		CancelAtPeriodEnd:      u.CancelAtPeriodEnd,
		PeriodEnd:              u.PeriodEnd,
		CancellationReason:     u.CancellationReason,
		ExternalSubscriptionID: u.ExternalSubscriptionID,
		UpdatedAt:              u.UpdatedAt,
	}, true
}
