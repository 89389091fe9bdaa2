package broker

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

// Update is the wire payload pushed whenever a subscription record changes.
// It mirrors the persisted record field for field; consumers validate the
// shape before acting on it instead of trusting the producer.
type Update struct {
	UserID                 string     `json:"userId" validate:"required"`
	Status                 string     `json:"status" validate:"required"`
	CancelAtPeriodEnd      bool       `json:"cancelAtPeriodEnd"`
	PeriodEnd              *time.Time `json:"periodEnd"`
	CancellationReason     string     `json:"cancellationReason"`
	ExternalSubscriptionID string     `json:"externalSubscriptionId"`
	UpdatedAt              time.Time  `json:"updatedAt" validate:"required"`
}

var validate *validator.Validate = validator.New()

// Validate checks the payload shape. Malformed updates are dropped at the
// consumer edge, never delivered.
func (u *Update) Validate() error {
	return validate.Struct(u)
}

// Publisher defines the producing side of the push channel
type Publisher interface {
	Close()
	PublishUpdate(u *Update) error
}

// Consumer defines the receiving side of the push channel, keyed by user.
// Delivery is eventually consistent with no cross-consumer ordering
// guarantee; the last write to the store wins.
type Consumer interface {
	Close()
	ReceiveUpdates(ctx context.Context, userID string) (<-chan *Update, error)
}
