package project

import (
	"context"
	"errors"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Projects and Tasks
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for projects
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Project{}, &Task{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize project.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new project for the user
func (m *Manager) Create(ctx context.Context, p *Project) (*Project, error) {
	p.ID = uuid.New().String()
	p.Status = StatusActive

	result := m.db.WithContext(ctx).Create(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create a new Project")
	}

	return p, nil
}

// GetByID will try to return the user's project by id
func (m *Manager) GetByID(ctx context.Context, userID, id string) (*Project, error) {
	var p Project

	result := m.db.WithContext(ctx).First(&p, "id = ? AND user_id = ?", id, userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get project by id")
	}

	return &p, nil
}

// List returns the user's projects, optionally filtered by client
func (m *Manager) List(ctx context.Context, userID, clientID string) ([]Project, error) {
	projects := make([]Project, 0)

	tx := m.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(clientID) > 0 {
		tx = tx.Where("client_id = ?", clientID)
	}

	result := tx.Order("created_at asc").Find(&projects)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list projects")
	}

	return projects, nil
}

// Update will save changes to an existing project
func (m *Manager) Update(ctx context.Context, p *Project) (*Project, error) {
	result := m.db.WithContext(ctx).Save(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update project")
	}

	return p, nil
}

// CountActive returns the number of active projects the user has. Completed
// and archived projects do not take up a plan slot.
func (m *Manager) CountActive(ctx context.Context, userID string) (int64, error) {
	var count int64

	result := m.db.WithContext(ctx).
		Model(&Project{}).
		Where("user_id = ? AND status = ?", userID, StatusActive).
		Count(&count)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot count active projects")
	}

	return count, nil
}

// CreateTask will persist a new task under a project
func (m *Manager) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	t.ID = uuid.New().String()
	if len(t.Status) == 0 {
		t.Status = TaskTodo
	}

	result := m.db.WithContext(ctx).Create(t)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create a new Task")
	}

	return t, nil
}

// GetTaskByID will try to return the user's task by id
func (m *Manager) GetTaskByID(ctx context.Context, userID, id string) (*Task, error) {
	var t Task

	result := m.db.WithContext(ctx).First(&t, "id = ? AND user_id = ?", id, userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get task by id")
	}

	return &t, nil
}

// ListTasks returns the tasks under a project
func (m *Manager) ListTasks(ctx context.Context, userID, projectID string) ([]Task, error) {
	tasks := make([]Task, 0)

	result := m.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Order("created_at asc").
		Find(&tasks)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list tasks")
	}

	return tasks, nil
}

// UpdateTask will save changes to an existing task
func (m *Manager) UpdateTask(ctx context.Context, t *Task) (*Task, error) {
	result := m.db.WithContext(ctx).Save(t)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update task")
	}

	return t, nil
}
