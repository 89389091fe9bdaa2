package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/plan"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GracePeriod is how long a cancelled subscription keeps its paid plan
const GracePeriod = 30 * 24 * time.Hour

// ManagerOptions provides initialization parameters for Manager
type ManagerOptions struct {
	DB        *gorm.DB
	Publisher broker.Publisher
	Logger    *zap.Logger
}

// Manager handles the database operations relating to Subscriptions and owns
// every state transition. Both the lazy read path and the sweep funnel
// through the same expiry transition so they cannot diverge.
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for subscriptions
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Publisher == nil {
		return nil, fmt.Errorf("nil Publisher is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// FetchOrCreate returns the user's subscription record, creating the implicit
// trial record if none exists yet. Create-if-absent is idempotent.
func (m *Manager) FetchOrCreate(ctx context.Context, userID string) (*Subscription, error) {
	if len(userID) == 0 {
		return nil, fmt.Errorf("empty UserID is invalid")
	}
	var sub Subscription
	result := m.DB.WithContext(ctx).
		Where(Subscription{UserID: userID}).
		Attrs(Subscription{
			UserID: userID,
			Status: StatusTrial,
		}).
		FirstOrCreate(&sub)
	if result.Error != nil {
		m.Logger.Error("Unable to fetch or create subscription",
			zap.String("UserID", userID),
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot fetch subscription")
	}
	return &sub, nil
}

// DerivePlan returns the plan whose limits apply to the record right now.
// A stale record (cancellation window elapsed but not yet transitioned) is
// corrected in place before being trusted, so a user who loads the app sees
// the same plan the nightly sweep would have produced.
func (m *Manager) DerivePlan(ctx context.Context, sub *Subscription, now time.Time) (plan.Name, error) {
	if !sub.ExpiryDue(now) {
		return sub.Plan(), nil
	}
	expired, err := m.Expire(ctx, sub.UserID, now)
	if err != nil {
		return "", err
	}
	if expired != nil {
		*sub = *expired
	}
	return plan.Trial, nil
}

// Expire applies the terminal cancellation transition if the expiry predicate
// still holds. Safe to call from any number of paths concurrently: a record
// already transitioned is left alone. periodEnd is kept as a historical
// record of the last paid period.
func (m *Manager) Expire(ctx context.Context, userID string, now time.Time) (*Subscription, error) {
	return m.lambdaUpdate(ctx, userID, func(current *Subscription, desired *Subscription) (bool, error) {
		if current == nil {
			return false, nil
		}
		if !current.ExpiryDue(now) {
			return false, nil
		}
		desired.Status = StatusCancelled
		desired.CancelAtPeriodEnd = false
		return true, nil
	})
}

// Cancel schedules the subscription for cancellation at the end of the grace
// period. Idempotent: a second call leaves the already-computed periodEnd and
// reason untouched.
func (m *Manager) Cancel(ctx context.Context, userID string, reason string, now time.Time) (*Subscription, error) {
	var unchanged *Subscription
	updated, err := m.lambdaUpdate(ctx, userID, func(current *Subscription, desired *Subscription) (bool, error) {
		if current == nil {
			return false, ErrNoPaidSubscription
		}
		if current.CancelAtPeriodEnd {
			// already scheduled, keep the original terminal fields
			unchanged = current
			return false, nil
		}
		if current.Status != StatusActive {
			return false, ErrNoPaidSubscription
		}
		periodEnd := now.Add(GracePeriod)
		desired.Status = StatusPendingCancellation
		desired.CancelAtPeriodEnd = true
		desired.PeriodEnd = &periodEnd
		desired.CancellationReason = reason
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return unchanged, nil
	}
	return updated, nil
}

// Reactivate clears a scheduled cancellation while the grace window is still
// open. Fails with ErrNotPendingCancellation when nothing was scheduled and
// ErrGracePeriodElapsed when the window has closed (the caller must
// resubscribe instead).
func (m *Manager) Reactivate(ctx context.Context, userID string, now time.Time) (*Subscription, error) {
	return m.lambdaUpdate(ctx, userID, func(current *Subscription, desired *Subscription) (bool, error) {
		if current == nil || !current.CancelAtPeriodEnd {
			return false, ErrNotPendingCancellation
		}
		if current.PeriodEnd == nil || !current.PeriodEnd.After(now) {
			return false, ErrGracePeriodElapsed
		}
		desired.Status = StatusActive
		desired.CancelAtPeriodEnd = false
		desired.CancellationReason = ""
		return true, nil
	})
}

// Activate marks the user as paid. Only the webhook handler and the
// post-checkout poller path ever observe this transition; the checkout
// handler itself never writes it.
func (m *Manager) Activate(ctx context.Context, userID string, externalSubscriptionID string) (*Subscription, error) {
	if _, err := m.FetchOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	return m.lambdaUpdate(ctx, userID, func(current *Subscription, desired *Subscription) (bool, error) {
		if current == nil {
			return false, gorm.ErrRecordNotFound
		}
		desired.Status = StatusActive
		desired.CancelAtPeriodEnd = false
		desired.PeriodEnd = nil
		desired.CancellationReason = ""
		if len(externalSubscriptionID) > 0 {
			desired.ExternalSubscriptionID = externalSubscriptionID
		}
		return true, nil
	})
}

// MarkCancelled applies the terminal state unconditionally. Used by the
// webhook path when the gateway reports a cancellation or expiry it decided
// on its own.
func (m *Manager) MarkCancelled(ctx context.Context, userID string) (*Subscription, error) {
	return m.lambdaUpdate(ctx, userID, func(current *Subscription, desired *Subscription) (bool, error) {
		if current == nil {
			return false, nil
		}
		if current.Status == StatusCancelled {
			return false, nil
		}
		desired.Status = StatusCancelled
		desired.CancelAtPeriodEnd = false
		return true, nil
	})
}

// ListExpired returns all records the sweep must transition: cancellation
// scheduled and the window elapsed.
func (m *Manager) ListExpired(ctx context.Context, now time.Time) ([]Subscription, error) {
	results := make([]Subscription, 0, 1)
	result := m.DB.WithContext(ctx).
		Where("cancel_at_period_end = ?", true).
		Where("period_end <= ?", now).
		Order("period_end asc").
		Find(&results)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list expired subscriptions")
	}
	return results, nil
}

// lambdaUpdateFunc is used when a transaction is required for a state
// transition. current and desired are nil if no record exists for the user;
// returning an error aborts without saving.
type lambdaUpdateFunc func(current *Subscription, desired *Subscription) (shouldSave bool, err error)

// lambdaUpdate performs a transactional read-modify-write on the user's
// record under serializable isolation. When the lambda saves, the new record
// state is returned and pushed to open sessions; otherwise nil is returned.
func (m *Manager) lambdaUpdate(ctx context.Context, userID string, lambda lambdaUpdateFunc) (*Subscription, error) {
	var desired Subscription
	var shouldReturn bool
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Subscription
		lookupRes := tx.First(&current, "user_id = ?", userID)
		if lookupRes.Error == nil {
			desired = current
			save, err := lambda(&current, &desired)
			if err != nil {
				return err
			}
			if save {
				if saveRes := tx.Save(&desired); saveRes.Error != nil {
					return saveRes.Error
				}
				shouldReturn = true
			}
			return nil
		} else if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			_, err := lambda(nil, nil)
			return err
		}
		return lookupRes.Error
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	if !shouldReturn {
		return nil, nil
	}
	m.publish(&desired)
	return &desired, nil
}

// publish pushes the new record state to open sessions. Push is best effort:
// a failure leaves clients eventually consistent via their next fetch, so it
// is logged and not propagated.
func (m *Manager) publish(sub *Subscription) {
	if err := m.Publisher.PublishUpdate(sub.toUpdate()); err != nil {
		m.Logger.Warn("Unable to publish subscription update",
			zap.String("UserID", sub.UserID),
			zap.Error(err),
		)
	}
}
