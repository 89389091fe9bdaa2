package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Users
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for users
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize user.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// NewUser will create a new user profile in the database
func (m *Manager) NewUser(ctx context.Context, email string) (*User, error) {
	newUser := &User{
		ID:    uuid.New().String(),
		Email: email,
	}

	result := m.db.WithContext(ctx).Create(newUser)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create a new User")
	}

	return newUser, nil
}

// GetByID will try to return the user in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*User, error) {
	var u User

	result := m.db.WithContext(ctx).First(&u, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get user by id")
	}

	return &u, nil
}

// GetByEmail will try to return the user in the database by email address
func (m *Manager) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User

	result := m.db.WithContext(ctx).First(&u, "email = ?", email)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get user by email")
	}

	return &u, nil
}
