package timeentry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to TimeEntries
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for time entries
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&TimeEntry{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize timeentry.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// GetRunning returns the user's open timer, nil if none
func (m *Manager) GetRunning(ctx context.Context, userID string) (*TimeEntry, error) {
	var entry TimeEntry

	result := m.db.WithContext(ctx).First(&entry, "user_id = ? AND ended_at IS NULL", userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get running timer")
	}

	return &entry, nil
}

// StartTimer opens a timer for the user. Only one timer may run at a time.
func (m *Manager) StartTimer(ctx context.Context, userID, projectID, description string, now time.Time) (*TimeEntry, error) {
	running, err := m.GetRunning(ctx, userID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, ErrTimerAlreadyRunning
	}

	entry := &TimeEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectID:   projectID,
		Description: description,
		StartedAt:   now,
	}

	result := m.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot start timer")
	}

	return entry, nil
}

// StopTimer closes the user's open timer and records the elapsed minutes,
// clamped to MaxTimerDuration. idle is time the user reports as away from
// the work and is subtracted from the elapsed time; it can never push the
// recorded time below zero.
func (m *Manager) StopTimer(ctx context.Context, userID string, idle time.Duration, now time.Time) (*TimeEntry, error) {
	running, err := m.GetRunning(ctx, userID)
	if err != nil {
		return nil, err
	}
	if running == nil {
		return nil, ErrNoRunningTimer
	}

	elapsed := now.Sub(running.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if idle > 0 {
		if idle > elapsed {
			idle = elapsed
		}
		elapsed -= idle
	}
	if elapsed > MaxTimerDuration {
		m.logger.Warn("Clamping runaway timer",
			zap.String("UserID", userID),
			zap.String("EntryID", running.ID),
			zap.Duration("Elapsed", elapsed),
		)
		elapsed = MaxTimerDuration
	}

	running.EndedAt = &now
	running.Minutes = int64(elapsed / time.Minute)

	result := m.db.WithContext(ctx).Save(running)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot stop timer")
	}

	return running, nil
}

// CreateManual records a finished block of work entered by hand
func (m *Manager) CreateManual(ctx context.Context, userID, projectID, description string, startedAt time.Time, duration time.Duration) (*TimeEntry, error) {
	endedAt := startedAt.Add(duration)
	entry := &TimeEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectID:   projectID,
		Description: description,
		StartedAt:   startedAt,
		EndedAt:     &endedAt,
		Minutes:     int64(duration / time.Minute),
	}

	result := m.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create time entry")
	}

	return entry, nil
}

// List returns the user's entries, optionally filtered by project
func (m *Manager) List(ctx context.Context, userID, projectID string) ([]TimeEntry, error) {
	entries := make([]TimeEntry, 0)

	tx := m.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(projectID) > 0 {
		tx = tx.Where("project_id = ?", projectID)
	}

	result := tx.Order("started_at desc").Find(&entries)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list time entries")
	}

	return entries, nil
}

// ListUnbilledForProjects returns closed, unbilled entries across the given
// projects. Used when assembling an invoice.
func (m *Manager) ListUnbilledForProjects(ctx context.Context, userID string, projectIDs []string) ([]TimeEntry, error) {
	entries := make([]TimeEntry, 0)

	result := m.db.WithContext(ctx).
		Where("user_id = ? AND project_id IN ? AND billed = ? AND ended_at IS NOT NULL", userID, projectIDs, false).
		Order("started_at asc").
		Find(&entries)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list unbilled time entries")
	}

	return entries, nil
}

// MarkBilled flags the given entries as invoiced inside the caller's
// transaction.
func (m *Manager) MarkBilled(ctx context.Context, tx *gorm.DB, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}

	result := tx.WithContext(ctx).
		Model(&TimeEntry{}).
		Where("id IN ?", entryIDs).
		Update("billed", true)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot mark time entries billed")
	}

	return nil
}
