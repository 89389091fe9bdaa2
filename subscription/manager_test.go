package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/plan"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every session on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	manager, err := NewManager(ManagerOptions{
		DB:        db,
		Publisher: broker.NewMemoryBroker(),
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return manager
}

func TestFetchOrCreate(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	sub, err := manager.FetchOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusTrial, sub.Status)
	require.False(t, sub.CancelAtPeriodEnd)
	require.Nil(t, sub.PeriodEnd)

	again, err := manager.FetchOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, sub.UserID, again.UserID)
	require.Equal(t, sub.CreatedAt.Unix(), again.CreatedAt.Unix())

	_, err = manager.FetchOrCreate(ctx, "")
	require.Error(t, err)
}

func TestCancel(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("trial cannot cancel", func(t *testing.T) {
		_, err := manager.FetchOrCreate(ctx, "trial-user")
		require.NoError(t, err)

		_, err = manager.Cancel(ctx, "trial-user", "too expensive", now)
		require.ErrorIs(t, err, ErrNoPaidSubscription)
	})

	t.Run("missing record cannot cancel", func(t *testing.T) {
		_, err := manager.Cancel(ctx, "ghost", "", now)
		require.ErrorIs(t, err, ErrNoPaidSubscription)
	})

	t.Run("active schedules cancellation", func(t *testing.T) {
		_, err := manager.Activate(ctx, "bob", "sub_ext_1")
		require.NoError(t, err)

		cancelled, err := manager.Cancel(ctx, "bob", "switching tools", now)
		require.NoError(t, err)
		require.Equal(t, StatusPendingCancellation, cancelled.Status)
		require.True(t, cancelled.CancelAtPeriodEnd)
		require.NotNil(t, cancelled.PeriodEnd)
		require.WithinDuration(t, now.Add(GracePeriod), *cancelled.PeriodEnd, time.Second)
		require.Equal(t, "switching tools", cancelled.CancellationReason)

		// the paid plan stays in force through the grace period
		derived, err := manager.DerivePlan(ctx, cancelled, now)
		require.NoError(t, err)
		require.Equal(t, plan.Pro, derived)
	})

	t.Run("second cancel is a no-op", func(t *testing.T) {
		later := now.Add(time.Hour)
		repeat, err := manager.Cancel(ctx, "bob", "changed my mind about the reason", later)
		require.NoError(t, err)
		require.NotNil(t, repeat)
		require.Equal(t, "switching tools", repeat.CancellationReason)
		require.WithinDuration(t, now.Add(GracePeriod), *repeat.PeriodEnd, time.Second)
	})
}

func TestReactivate(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("nothing scheduled", func(t *testing.T) {
		_, err := manager.Activate(ctx, "carol", "sub_ext_2")
		require.NoError(t, err)

		_, err = manager.Reactivate(ctx, "carol", now)
		require.ErrorIs(t, err, ErrNotPendingCancellation)
	})

	t.Run("within the window", func(t *testing.T) {
		_, err := manager.Cancel(ctx, "carol", "spring cleaning", now)
		require.NoError(t, err)

		sub, err := manager.Reactivate(ctx, "carol", now.Add(GracePeriod-time.Minute))
		require.NoError(t, err)
		require.Equal(t, StatusActive, sub.Status)
		require.False(t, sub.CancelAtPeriodEnd)
		require.Empty(t, sub.CancellationReason)
	})

	t.Run("window just elapsed", func(t *testing.T) {
		_, err := manager.Activate(ctx, "dave", "sub_ext_3")
		require.NoError(t, err)
		_, err = manager.Cancel(ctx, "dave", "", now)
		require.NoError(t, err)

		_, err = manager.Reactivate(ctx, "dave", now.Add(GracePeriod+time.Millisecond))
		require.ErrorIs(t, err, ErrGracePeriodElapsed)
	})
}

func TestExpiryConvergence(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	// cancelling this far in the past puts periodEnd a day behind now
	past := now.Add(-GracePeriod - 24*time.Hour)

	expire := func(t *testing.T, manager *Manager, userID string) *Subscription {
		t.Helper()
		_, err := manager.Activate(ctx, userID, "sub_ext")
		require.NoError(t, err)
		_, err = manager.Cancel(ctx, userID, "moving on", past)
		require.NoError(t, err)
		sub, err := manager.FetchOrCreate(ctx, userID)
		require.NoError(t, err)
		return sub
	}

	t.Run("lazy read path", func(t *testing.T) {
		manager := newTestManager(t)
		sub := expire(t, manager, "erin")

		derived, err := manager.DerivePlan(ctx, sub, now)
		require.NoError(t, err)
		require.Equal(t, plan.Trial, derived)
		require.Equal(t, StatusCancelled, sub.Status)
		require.False(t, sub.CancelAtPeriodEnd)
		// periodEnd stays as a record of the last paid period
		require.NotNil(t, sub.PeriodEnd)
	})

	t.Run("sweep path", func(t *testing.T) {
		manager := newTestManager(t)
		expire(t, manager, "frank")

		task, err := NewTask(TaskOptions{
			SubscriptionManager: manager,
			Logger:              zaptest.NewLogger(t),
		})
		require.NoError(t, err)

		summary, err := task.Sweep(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 1, summary.Total)
		require.Equal(t, 1, summary.Processed)

		sub, err := manager.FetchOrCreate(ctx, "frank")
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, sub.Status)
		require.False(t, sub.CancelAtPeriodEnd)
		require.NotNil(t, sub.PeriodEnd)
	})

	t.Run("both paths in sequence stay converged", func(t *testing.T) {
		manager := newTestManager(t)
		sub := expire(t, manager, "grace")

		derived, err := manager.DerivePlan(ctx, sub, now)
		require.NoError(t, err)
		require.Equal(t, plan.Trial, derived)

		task, err := NewTask(TaskOptions{
			SubscriptionManager: manager,
			Logger:              zaptest.NewLogger(t),
		})
		require.NoError(t, err)

		// the record already transitioned, the sweep finds nothing to do
		summary, err := task.Sweep(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 0, summary.Total)
	})
}

func TestActivateClearsCancellation(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	_, err := manager.Activate(ctx, "heidi", "sub_ext_4")
	require.NoError(t, err)
	_, err = manager.Cancel(ctx, "heidi", "seasonal work", now)
	require.NoError(t, err)

	// a fresh checkout after cancellation wipes the scheduled state
	sub, err := manager.Activate(ctx, "heidi", "sub_ext_5")
	require.NoError(t, err)
	require.Equal(t, StatusActive, sub.Status)
	require.False(t, sub.CancelAtPeriodEnd)
	require.Nil(t, sub.PeriodEnd)
	require.Empty(t, sub.CancellationReason)
	require.Equal(t, "sub_ext_5", sub.ExternalSubscriptionID)
}

func TestMarkCancelled(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Activate(ctx, "ivan", "sub_ext_6")
	require.NoError(t, err)

	sub, err := manager.MarkCancelled(ctx, "ivan")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, sub.Status)

	// terminal state is sticky
	again, err := manager.MarkCancelled(ctx, "ivan")
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestDerivePlanFresh(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sub, err := manager.FetchOrCreate(ctx, "judy")
	require.NoError(t, err)

	derived, err := manager.DerivePlan(ctx, sub, now)
	require.NoError(t, err)
	require.Equal(t, plan.Trial, derived)
	require.Equal(t, StatusTrial, sub.Status)
}
