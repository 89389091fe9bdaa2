// Package gateway is the client for the external payment gateway. The
// gateway is consumed as an opaque HTTP API: create a billing plan, create a
// subscription (which yields a hosted checkout URL), cancel a subscription,
// and verify/parse inbound webhook events. Nothing in here touches local
// state.
package gateway

import "errors"

// Webhook event names the gateway delivers. These four, plus the
// notes.user_id / notes.plan payload fields, are the only load-bearing parts
// of the gateway's wire format.
// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Webhook-Signature"

const (
	EventSubscriptionActivated = "subscription.activated"
	EventPaymentCaptured       = "payment.captured"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionExpired   = "subscription.expired"
)

var (
	// ErrSignatureMismatch is returned when a webhook payload fails HMAC
	// verification.
	ErrSignatureMismatch = errors.New("webhook signature verification failed")
)

// PlanRequest describes a billing plan to create on the gateway
type PlanRequest struct {
	Name          string `json:"name" validate:"required"`
	AmountInCents int64  `json:"amountInCents" validate:"gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Interval      string `json:"interval" validate:"required,oneof=month year"`
}

// Plan is the gateway's record of a billing plan
type Plan struct {
	ID string `json:"id"`
}

// SubscriptionRequest describes a subscription to create on the gateway.
// UserID and PlanName travel in the notes so the webhook can be mapped back
// to a local user without a lookup table.
type SubscriptionRequest struct {
	PlanID   string `json:"planId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	PlanName string `json:"planName" validate:"required"`
}

// CheckoutSession is the gateway's answer to a subscription create: the
// external record ID and the hosted page the user must be redirected to.
type CheckoutSession struct {
	SubscriptionID string `json:"subscriptionId"`
	ShortURL       string `json:"shortUrl"`
}

// Event is a parsed, verified webhook event
type Event struct {
	Name           string `json:"name"`
	SubscriptionID string `json:"subscriptionId"`
	UserID         string `json:"userId"`
	Plan           string `json:"plan"`
}
