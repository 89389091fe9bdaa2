package client

import (
	"context"
	"errors"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Clients
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for clients
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Client{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize client.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new client for the user
func (m *Manager) Create(ctx context.Context, c *Client) (*Client, error) {
	c.ID = uuid.New().String()
	c.Archived = false

	result := m.db.WithContext(ctx).Create(c)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create a new Client")
	}

	return c, nil
}

// GetByID will try to return the user's client by id
func (m *Manager) GetByID(ctx context.Context, userID, id string) (*Client, error) {
	var c Client

	result := m.db.WithContext(ctx).First(&c, "id = ? AND user_id = ?", id, userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get client by id")
	}

	return &c, nil
}

// List returns the user's clients, archived ones excluded unless asked for
func (m *Manager) List(ctx context.Context, userID string, includeArchived bool) ([]Client, error) {
	clients := make([]Client, 0)

	tx := m.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		tx = tx.Where("archived = ?", false)
	}

	result := tx.Order("created_at asc").Find(&clients)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list clients")
	}

	return clients, nil
}

// Update will save changes to an existing client
func (m *Manager) Update(ctx context.Context, c *Client) (*Client, error) {
	result := m.db.WithContext(ctx).Save(c)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update client")
	}

	return c, nil
}

// Archive hides a client from active lists and frees a plan slot. Records
// are never deleted so historical invoices keep their references.
func (m *Manager) Archive(ctx context.Context, userID, id string) (*Client, error) {
	c, err := m.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	c.Archived = true
	return m.Update(ctx, c)
}

// CountActive returns the number of unarchived clients the user has
func (m *Manager) CountActive(ctx context.Context, userID string) (int64, error) {
	var count int64

	result := m.db.WithContext(ctx).
		Model(&Client{}).
		Where("user_id = ? AND archived = ?", userID, false).
		Count(&count)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot count active clients")
	}

	return count, nil
}
