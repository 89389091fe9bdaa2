package report

import (
	"context"

	"github.com/soloflow-app/soloflow/invoice"
	"github.com/soloflow-app/soloflow/timeentry"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectHours is the tracked total for one project
type ProjectHours struct {
	ProjectID string  `json:"projectId"`
	Minutes   int64   `json:"minutes"`
	Hours     float64 `json:"hours" gorm:"-"`
}

// MonthRevenue is the invoiced total for one calendar month
type MonthRevenue struct {
	Month         string `json:"month"`
	SubtotalCents int64  `json:"subtotalCents"`
	Invoices      int64  `json:"invoices"`
}

// Manager runs the reporting aggregates
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for reports
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// HoursByProject sums closed time entries per project for the user
func (m *Manager) HoursByProject(ctx context.Context, userID string) ([]ProjectHours, error) {
	rows := make([]ProjectHours, 0)

	result := m.db.WithContext(ctx).
		Model(&timeentry.TimeEntry{}).
		Select("project_id, SUM(minutes) AS minutes").
		Where("user_id = ? AND ended_at IS NOT NULL", userID).
		Group("project_id").
		Order("minutes DESC").
		Scan(&rows)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot aggregate hours by project")
	}

	for i := range rows {
		rows[i].Hours = float64(rows[i].Minutes) / 60
	}

	return rows, nil
}

// RevenueByMonth sums invoice subtotals per issue month for the user
func (m *Manager) RevenueByMonth(ctx context.Context, userID string) ([]MonthRevenue, error) {
	rows := make([]MonthRevenue, 0)

	// month bucketing differs between postgres and the sqlite used in tests
	monthExpr := "to_char(issued_at, 'YYYY-MM')"
	if m.db.Dialector.Name() == "sqlite" {
		monthExpr = "strftime('%Y-%m', issued_at)"
	}

	result := m.db.WithContext(ctx).
		Model(&invoice.Invoice{}).
		Select(monthExpr + " AS month, SUM(subtotal_cents) AS subtotal_cents, COUNT(*) AS invoices").
		Where("user_id = ?", userID).
		Group("month").
		Order("month ASC").
		Scan(&rows)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot aggregate revenue by month")
	}

	return rows, nil
}
