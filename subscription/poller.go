package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PollerOptions provides initialization parameters for Poller
type PollerOptions struct {
	SubscriptionManager *Manager
	Logger              *zap.Logger
	Interval            time.Duration
	MaxAttempts         int
}

// Poller re-reads a user's record after checkout was initiated until the
// gateway webhook flips it to active. It is a bounded loop, not a retry of
// the checkout itself: on exhaustion the caller surfaces a timeout message
// and the user's next fetch or push update still picks the state up.
type Poller struct {
	PollerOptions
}

// NewPoller returns a Poller with the given bounds
func NewPoller(option PollerOptions) (*Poller, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Interval <= 0 {
		option.Interval = 3 * time.Second
	}
	if option.MaxAttempts <= 0 {
		option.MaxAttempts = 20
	}
	return &Poller{
		PollerOptions: option,
	}, nil
}

// WaitForActivation blocks until the subscription is observed active, the
// context is cancelled, or MaxAttempts re-reads are exhausted
// (ErrActivationTimeout). Cancellation via ctx is the session-teardown path.
func (p *Poller) WaitForActivation(ctx context.Context, userID string) (*Subscription, error) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		sub, err := p.SubscriptionManager.FetchOrCreate(ctx, userID)
		if err != nil {
			// transient read failure still consumes an attempt; the loop is
			// bounded regardless of the failure mode
			p.Logger.Warn("Activation poll read failed",
				zap.String("UserID", userID),
				zap.Error(err),
			)
		} else if sub.IsActive() {
			return sub, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, ErrActivationTimeout
}
