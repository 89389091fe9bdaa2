package project

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/client"
	"github.com/soloflow-app/soloflow/plan"
	resp "github.com/soloflow-app/soloflow/response"
	"github.com/soloflow-app/soloflow/subscription"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	ProjectManager      *Manager
	ClientManager       *client.Manager
	SubscriptionManager *subscription.Manager
	Logger              *zap.Logger
}

// Service is the project API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the project API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.ProjectManager == nil {
		return nil, fmt.Errorf("nil ProjectManager is invalid")
	}
	if option.ClientManager == nil {
		return nil, fmt.Errorf("nil ClientManager is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// CreateRequest is the model of user request for creating a project
type CreateRequest struct {
	ClientID    string `json:"clientId" validate:"required"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateRequest is the model of user request for updating a project
type UpdateRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Status      Status `json:"status" validate:"required,oneof=active completed archived"`
}

// TaskRequest is the model of user request for creating or updating a task
type TaskRequest struct {
	Title   string     `json:"title" validate:"required,max=500"`
	Status  TaskStatus `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	DueDate *time.Time `json:"dueDate"`
}

func (s *Service) createProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid project details"))
		return
	}

	c, err := s.ClientManager.GetByID(ctx, claims.ID, req.ClientID)
	if err != nil {
		logger.Error("Unable to get client",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create project"))
		return
	}
	if c == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Client not found"))
		return
	}

	sub, err := s.SubscriptionManager.FetchOrCreate(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to fetch subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create project"))
		return
	}
	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		logger.Error("Unable to derive plan",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create project"))
		return
	}

	count, err := s.ProjectManager.CountActive(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to count active projects",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create project"))
		return
	}

	decision := plan.CheckLimit(derived, plan.MaxProjects, count)
	if !decision.Allowed {
		resp.WriteError(w, r, resp.ErrPlanUpgradeRequired().AddMessages(decision.Message))
		return
	}

	created, err := s.ProjectManager.Create(ctx, &Project{
		UserID:      claims.ID,
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		logger.Error("Unable to create project",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create project"))
		return
	}

	resp.WriteResponse(w, r, created)
}

func (s *Service) listProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	projects, err := s.ProjectManager.List(ctx, claims.ID, r.URL.Query().Get("clientId"))
	if err != nil {
		s.Logger.Error("Unable to list projects",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot list projects"))
		return
	}

	resp.WriteResponse(w, r, projects)
}

func (s *Service) getProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	p, err := s.ProjectManager.GetByID(ctx, claims.ID, id)
	if err != nil {
		s.Logger.Error("Unable to get project",
			zap.String("UserID", claims.ID),
			zap.String("ProjectID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get project"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Project not found"))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) updateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("UserID", claims.ID),
		zap.String("ProjectID", id),
	)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid project details"))
		return
	}

	p, err := s.ProjectManager.GetByID(ctx, claims.ID, id)
	if err != nil {
		logger.Error("Unable to get project",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot update project"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Project not found"))
		return
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Status = req.Status

	updated, err := s.ProjectManager.Update(ctx, p)
	if err != nil {
		logger.Error("Unable to update project",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot update project"))
		return
	}

	resp.WriteResponse(w, r, updated)
}

func (s *Service) createTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	projectID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("UserID", claims.ID),
		zap.String("ProjectID", projectID),
	)

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid task details"))
		return
	}

	p, err := s.ProjectManager.GetByID(ctx, claims.ID, projectID)
	if err != nil {
		logger.Error("Unable to get project",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create task"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Project not found"))
		return
	}

	created, err := s.ProjectManager.CreateTask(ctx, &Task{
		ProjectID: projectID,
		UserID:    claims.ID,
		Title:     req.Title,
		Status:    req.Status,
		DueDate:   req.DueDate,
	})
	if err != nil {
		logger.Error("Unable to create task",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create task"))
		return
	}

	resp.WriteResponse(w, r, created)
}

func (s *Service) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	projectID := chi.URLParam(r, "id")

	tasks, err := s.ProjectManager.ListTasks(ctx, claims.ID, projectID)
	if err != nil {
		s.Logger.Error("Unable to list tasks",
			zap.String("UserID", claims.ID),
			zap.String("ProjectID", projectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot list tasks"))
		return
	}

	resp.WriteResponse(w, r, tasks)
}

func (s *Service) updateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	taskID := chi.URLParam(r, "taskId")

	logger := s.Logger.With(
		zap.String("UserID", claims.ID),
		zap.String("TaskID", taskID),
	)

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid task details"))
		return
	}

	t, err := s.ProjectManager.GetTaskByID(ctx, claims.ID, taskID)
	if err != nil {
		logger.Error("Unable to get task",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot update task"))
		return
	}
	if t == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Task not found"))
		return
	}

	t.Title = req.Title
	if len(req.Status) > 0 {
		t.Status = req.Status
	}
	t.DueDate = req.DueDate

	updated, err := s.ProjectManager.UpdateTask(ctx, t)
	if err != nil {
		logger.Error("Unable to update task",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot update task"))
		return
	}

	resp.WriteResponse(w, r, updated)
}

// Router will return the routes under project API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createProject)
	r.Get("/", s.listProjects)
	r.Get("/{id}", s.getProject)
	r.Put("/{id}", s.updateProject)
	r.Post("/{id}/tasks", s.createTask)
	r.Get("/{id}/tasks", s.listTasks)
	r.Put("/tasks/{taskId}", s.updateTask)

	return r
}
