package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestTask(t *testing.T, manager *Manager) *Task {
	t.Helper()
	task, err := NewTask(TaskOptions{
		SubscriptionManager: manager,
		Logger:              zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return task
}

func TestSweep(t *testing.T) {
	manager := newTestManager(t)
	task := newTestTask(t, manager)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-GracePeriod - 24*time.Hour)

	// three records past their window, one still inside it
	for _, userID := range []string{"sweep-1", "sweep-2", "sweep-3"} {
		_, err := manager.Activate(ctx, userID, "sub_ext")
		require.NoError(t, err)
		_, err = manager.Cancel(ctx, userID, "", past)
		require.NoError(t, err)
	}
	_, err := manager.Activate(ctx, "sweep-keep", "sub_ext")
	require.NoError(t, err)
	_, err = manager.Cancel(ctx, "sweep-keep", "", now)
	require.NoError(t, err)

	summary, err := task.Sweep(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 3, summary.Processed)
	require.Len(t, summary.Results, 3)
	for _, result := range summary.Results {
		require.True(t, result.Success)
		require.Empty(t, result.Error)
	}

	for _, userID := range []string{"sweep-1", "sweep-2", "sweep-3"} {
		sub, err := manager.FetchOrCreate(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, sub.Status)
		require.False(t, sub.CancelAtPeriodEnd)
	}

	// the record still inside its window is untouched
	kept, err := manager.FetchOrCreate(ctx, "sweep-keep")
	require.NoError(t, err)
	require.Equal(t, StatusPendingCancellation, kept.Status)
	require.True(t, kept.CancelAtPeriodEnd)

	// a second run has nothing left to transition
	again, err := task.Sweep(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 0, again.Total)
	require.Equal(t, 0, again.Processed)
}

func TestSweepPartialFailure(t *testing.T) {
	manager := newTestManager(t)
	task := newTestTask(t, manager)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-GracePeriod - 24*time.Hour)

	for _, userID := range []string{"sweep-1", "sweep-2", "sweep-3"} {
		_, err := manager.Activate(ctx, userID, "sub_ext")
		require.NoError(t, err)
		_, err = manager.Cancel(ctx, userID, "", past)
		require.NoError(t, err)
	}

	// one record's write is rejected; the sweep must carry on past it
	errRejected := errors.New("write rejected")
	err := manager.DB.Callback().Update().Before("gorm:update").Register("reject_sweep_2", func(tx *gorm.DB) {
		if sub, ok := tx.Statement.Dest.(*Subscription); ok && sub.UserID == "sweep-2" {
			tx.AddError(errRejected)
		}
	})
	require.NoError(t, err)

	summary, err := task.Sweep(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.Processed)
	require.Len(t, summary.Results, 3)

	failures := 0
	for _, result := range summary.Results {
		if result.Success {
			require.Empty(t, result.Error)
			continue
		}
		failures++
		require.Equal(t, "sweep-2", result.UserID)
		require.Contains(t, result.Error, errRejected.Error())
	}
	require.Equal(t, 1, failures)

	// the failed record still matches the predicate and converges once the
	// write goes through again
	require.NoError(t, manager.DB.Callback().Update().Remove("reject_sweep_2"))

	again, err := task.Sweep(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, again.Total)
	require.Equal(t, 1, again.Processed)

	sub, err := manager.FetchOrCreate(ctx, "sweep-2")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, sub.Status)
}

func TestSweepListFailure(t *testing.T) {
	manager := newTestManager(t)
	task := newTestTask(t, manager)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := task.Sweep(cancelled, time.Now())
	require.Error(t, err)
}
