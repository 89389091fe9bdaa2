package subscription

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/plan"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWatcher(t *testing.T, manager *Manager, userID string) *Watcher {
	t.Helper()

	memory, ok := manager.Publisher.(*broker.MemoryBroker)
	require.True(t, ok)

	watcher, err := NewWatcher(WatcherOptions{
		UserID:              userID,
		SubscriptionManager: manager,
		Consumer:            memory,
		Logger:              zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return watcher
}

func TestWatcherInitialSnapshot(t *testing.T) {
	manager := newTestManager(t)
	watcher := newTestWatcher(t, manager, "walter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, watcher.Start(ctx))

	snapshot := watcher.Snapshot()
	require.Equal(t, StatusTrial, snapshot.Subscription.Status)
	require.Equal(t, plan.Trial, snapshot.Plan)
	require.Equal(t, int64(3), snapshot.Limits.MaxClients)
}

func TestWatcherReceivesPush(t *testing.T) {
	manager := newTestManager(t)
	watcher := newTestWatcher(t, manager, "wendy")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, watcher.Start(ctx))

	var notified atomic.Int32
	unsubscribe := watcher.Subscribe(func(Snapshot) {
		notified.Add(1)
	})
	defer unsubscribe()

	// a write through the manager reaches the open session via the broker
	_, err := manager.Activate(ctx, "wendy", "sub_ext_7")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return watcher.Snapshot().Plan == plan.Pro
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, plan.Unlimited, watcher.Snapshot().Limits.MaxClients)
	require.GreaterOrEqual(t, notified.Load(), int32(1))
}

func TestWatcherDropsUnknownStatus(t *testing.T) {
	manager := newTestManager(t)
	watcher := newTestWatcher(t, manager, "wes")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, watcher.Start(ctx))

	memory := manager.Publisher.(*broker.MemoryBroker)
	require.NoError(t, memory.PublishUpdate(&broker.Update{
		UserID:    "wes",
		Status:    "superuser",
		UpdatedAt: time.Now(),
	}))

	// the malformed push never drives a plan change
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, plan.Trial, watcher.Snapshot().Plan)
}

func TestWatcherExpiredPush(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-GracePeriod - 24*time.Hour)

	_, err := manager.Activate(ctx, "wanda", "sub_ext_8")
	require.NoError(t, err)

	watcher := newTestWatcher(t, manager, "wanda")
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, watcher.Start(watchCtx))
	require.Equal(t, plan.Pro, watcher.Snapshot().Plan)

	// the cancel write pushes a record whose window is already elapsed; the
	// watcher re-derives through the manager and lands on trial limits
	_, err = manager.Cancel(ctx, "wanda", "", past)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return watcher.Snapshot().Plan == plan.Trial
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherUnsubscribe(t *testing.T) {
	manager := newTestManager(t)
	watcher := newTestWatcher(t, manager, "willa")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, watcher.Start(ctx))

	var notified atomic.Int32
	unsubscribe := watcher.Subscribe(func(Snapshot) {
		notified.Add(1)
	})
	unsubscribe()

	_, err := manager.Activate(ctx, "willa", "sub_ext_9")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return watcher.Snapshot().Plan == plan.Pro
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(0), notified.Load())
}
