package timeentry

import (
	"context"
	"testing"
	"time"

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
	sqlDB.SetMaxOpenConns(1)

	manager, err := NewManager(zaptest.NewLogger(t), db)
	require.NoError(t, err)
	return manager
}

func TestTimer(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("stop without start", func(t *testing.T) {
		_, err := manager.StopTimer(ctx, "tina", 0, now)
		require.ErrorIs(t, err, ErrNoRunningTimer)
	})

	t.Run("one timer at a time", func(t *testing.T) {
		entry, err := manager.StartTimer(ctx, "tina", "proj-1", "writing docs", now)
		require.NoError(t, err)
		require.True(t, entry.Running())

		_, err = manager.StartTimer(ctx, "tina", "proj-2", "other work", now)
		require.ErrorIs(t, err, ErrTimerAlreadyRunning)

		// a different user is unaffected
		_, err = manager.StartTimer(ctx, "tom", "proj-1", "", now)
		require.NoError(t, err)
	})

	t.Run("stop records minutes", func(t *testing.T) {
		stopped, err := manager.StopTimer(ctx, "tina", 0, now.Add(90*time.Minute))
		require.NoError(t, err)
		require.False(t, stopped.Running())
		require.Equal(t, int64(90), stopped.Minutes)
	})

	t.Run("runaway timer is clamped", func(t *testing.T) {
		_, err := manager.StartTimer(ctx, "tina", "proj-1", "left it running", now)
		require.NoError(t, err)

		stopped, err := manager.StopTimer(ctx, "tina", 0, now.Add(3*24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(MaxTimerDuration/time.Minute), stopped.Minutes)
	})

	t.Run("idle time is deducted", func(t *testing.T) {
		_, err := manager.StartTimer(ctx, "tina", "proj-1", "lunch in the middle", now)
		require.NoError(t, err)

		stopped, err := manager.StopTimer(ctx, "tina", 45*time.Minute, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(75), stopped.Minutes)
	})

	t.Run("idle never exceeds elapsed", func(t *testing.T) {
		_, err := manager.StartTimer(ctx, "tina", "proj-1", "short burst", now)
		require.NoError(t, err)

		stopped, err := manager.StopTimer(ctx, "tina", 5*time.Hour, now.Add(30*time.Minute))
		require.NoError(t, err)
		require.Equal(t, int64(0), stopped.Minutes)
	})
}

func TestManualEntryAndBilling(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	start := time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)

	first, err := manager.CreateManual(ctx, "ursula", "proj-9", "design review", start, 90*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(90), first.Minutes)
	require.False(t, first.Running())

	second, err := manager.CreateManual(ctx, "ursula", "proj-9", "implementation", start.Add(2*time.Hour), 45*time.Minute)
	require.NoError(t, err)

	unbilled, err := manager.ListUnbilledForProjects(ctx, "ursula", []string{"proj-9"})
	require.NoError(t, err)
	require.Len(t, unbilled, 2)

	err = manager.db.Transaction(func(tx *gorm.DB) error {
		return manager.MarkBilled(ctx, tx, []string{first.ID, second.ID})
	})
	require.NoError(t, err)

	unbilled, err = manager.ListUnbilledForProjects(ctx, "ursula", []string{"proj-9"})
	require.NoError(t, err)
	require.Empty(t, unbilled)
}
