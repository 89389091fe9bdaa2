package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/soloflow-app/soloflow/timeentry"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) (*Manager, *timeentry.Manager) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	entryManager, err := timeentry.NewManager(zaptest.NewLogger(t), db)
	require.NoError(t, err)

	manager, err := NewManager(zaptest.NewLogger(t), db, entryManager)
	require.NoError(t, err)

	return manager, entryManager
}

func TestCreateFromUnbilled(t *testing.T) {
	manager, entryManager := newTestManager(t)
	ctx := context.Background()
	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	_, err := entryManager.CreateManual(ctx, "nina", "proj-1", "api work", start, 2*time.Hour)
	require.NoError(t, err)
	_, err = entryManager.CreateManual(ctx, "nina", "proj-1", "review", start.Add(3*time.Hour), 30*time.Minute)
	require.NoError(t, err)

	inv, err := manager.CreateFromUnbilled(ctx, "nina", "client-1", []string{"proj-1"}, 9000, "usd", start)
	require.NoError(t, err)
	require.Equal(t, "INV-000001", inv.Number)
	require.Equal(t, StatusDraft, inv.Status)
	require.Len(t, inv.Items, 2)
	// 120 min at 9000 cents/h plus 30 min
	require.Equal(t, int64(18000+4500), inv.SubtotalCents)

	// the billed entries are consumed
	_, err = manager.CreateFromUnbilled(ctx, "nina", "client-1", []string{"proj-1"}, 9000, "usd", start)
	require.ErrorIs(t, err, ErrNothingToBill)

	// a new entry gets the next number in the sequence
	_, err = entryManager.CreateManual(ctx, "nina", "proj-1", "follow-up", start.Add(24*time.Hour), time.Hour)
	require.NoError(t, err)
	next, err := manager.CreateFromUnbilled(ctx, "nina", "client-1", []string{"proj-1"}, 9000, "usd", start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "INV-000002", next.Number)
}

func TestCountForMonth(t *testing.T) {
	manager, entryManager := newTestManager(t)
	ctx := context.Background()
	july := time.Date(2026, time.July, 20, 12, 0, 0, 0, time.UTC)
	august := time.Date(2026, time.August, 2, 12, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{july, august, august.Add(24 * time.Hour)} {
		_, err := entryManager.CreateManual(ctx, "oscar", "proj-2", "work", at, time.Hour)
		require.NoError(t, err)
		_, err = manager.CreateFromUnbilled(ctx, "oscar", "client-2", []string{"proj-2"}, 6000, "usd", at)
		require.NoError(t, err, "invoice %d", i)
	}

	julyCount, err := manager.CountForMonth(ctx, "oscar", july)
	require.NoError(t, err)
	require.Equal(t, int64(1), julyCount)

	augustCount, err := manager.CountForMonth(ctx, "oscar", august)
	require.NoError(t, err)
	require.Equal(t, int64(2), augustCount)
}

func TestInvoiceStatus(t *testing.T) {
	manager, entryManager := newTestManager(t)
	ctx := context.Background()
	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	_, err := entryManager.CreateManual(ctx, "pam", "proj-3", "work", start, time.Hour)
	require.NoError(t, err)
	inv, err := manager.CreateFromUnbilled(ctx, "pam", "client-3", []string{"proj-3"}, 6000, "usd", start)
	require.NoError(t, err)

	sent, err := manager.MarkSent(ctx, "pam", inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)

	paid, err := manager.MarkPaid(ctx, "pam", inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	// another user cannot touch the invoice
	missing, err := manager.MarkPaid(ctx, "intruder", inv.ID)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestInvoiceNumberUnique(t *testing.T) {
	manager, _ := newTestManager(t)
	now := time.Now()

	first := &Invoice{
		ID:       "inv-1",
		UserID:   "pam",
		ClientID: "client-1",
		Number:   "INV-000001",
		Status:   StatusDraft,
		IssuedAt: now,
	}
	require.NoError(t, manager.db.Create(first).Error)

	// a duplicate number for the same user is rejected by the index
	duplicate := &Invoice{
		ID:       "inv-2",
		UserID:   "pam",
		ClientID: "client-1",
		Number:   "INV-000001",
		Status:   StatusDraft,
		IssuedAt: now,
	}
	require.Error(t, manager.db.Create(duplicate).Error)

	// the same number under another user is fine
	other := &Invoice{
		ID:       "inv-3",
		UserID:   "jim",
		ClientID: "client-2",
		Number:   "INV-000001",
		Status:   StatusDraft,
		IssuedAt: now,
	}
	require.NoError(t, manager.db.Create(other).Error)
}
