package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/plan"

	"go.uber.org/zap"
)

// Snapshot is the derived view of a user's billing state handed to session
// observers.
type Snapshot struct {
	Subscription Subscription `json:"subscription"`
	Plan         plan.Name    `json:"plan"`
	Limits       plan.Limits  `json:"limits"`
}

// WatcherOptions provides initialization parameters for Watcher
type WatcherOptions struct {
	UserID              string
	SubscriptionManager *Manager
	Consumer            broker.Consumer
	Logger              *zap.Logger
}

// Watcher holds a single session's view of the user's plan: it fetches the
// current record, listens for pushed updates, and re-derives the plan when it
// detects a record whose cancellation window already expired. Observers
// subscribe explicitly and are detached when the watcher's context ends, so
// nothing leaks across session teardown.
type Watcher struct {
	WatcherOptions

	mu        sync.RWMutex
	snapshot  Snapshot
	observers map[int]func(Snapshot)
	nextObs   int
}

// NewWatcher returns a Watcher for one user session. Call Start to populate
// the first snapshot and begin consuming pushes.
func NewWatcher(option WatcherOptions) (*Watcher, error) {
	if len(option.UserID) == 0 {
		return nil, fmt.Errorf("empty UserID is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Consumer == nil {
		return nil, fmt.Errorf("nil Consumer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Watcher{
		WatcherOptions: option,
		observers:      make(map[int]func(Snapshot)),
	}, nil
}

// Start fetches the initial record and spawns the push consumer loop. The
// loop ends when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	sub, err := w.SubscriptionManager.FetchOrCreate(ctx, w.UserID)
	if err != nil {
		return err
	}
	derived, err := w.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		return err
	}
	w.setSnapshot(makeSnapshot(sub, derived))

	updates, err := w.Consumer.ReceiveUpdates(ctx, w.UserID)
	if err != nil {
		return err
	}
	go w.consume(ctx, updates)
	return nil
}

func (w *Watcher) consume(ctx context.Context, updates <-chan *broker.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			sub, valid := fromUpdate(u)
			if !valid {
				w.Logger.Warn("Dropping update with unknown status",
					zap.String("Status", u.Status),
				)
				continue
			}
			derived, err := w.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
			if err != nil {
				w.Logger.Error("Unable to derive plan from pushed update",
					zap.Error(err),
				)
				continue
			}
			w.setSnapshot(makeSnapshot(sub, derived))
		}
	}
}

// Snapshot returns the current derived view
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// Subscribe registers an observer called on every snapshot change and
// returns the function that detaches it.
func (w *Watcher) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextObs
	w.nextObs++
	w.observers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.observers, id)
	}
}

func (w *Watcher) setSnapshot(s Snapshot) {
	w.mu.Lock()
	w.snapshot = s
	observers := make([]func(Snapshot), 0, len(w.observers))
	for _, fn := range w.observers {
		observers = append(observers, fn)
	}
	w.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

func makeSnapshot(sub *Subscription, derived plan.Name) Snapshot {
	return Snapshot{
		Subscription: *sub,
		Plan:         derived,
		Limits:       plan.LimitsFor(derived),
	}
}
