package timeentry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/project"
	resp "github.com/soloflow-app/soloflow/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	EntryManager   *Manager
	ProjectManager *project.Manager
	Logger         *zap.Logger
}

// Service is the time entry API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the time entry API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.EntryManager == nil {
		return nil, fmt.Errorf("nil EntryManager is invalid")
	}
	if option.ProjectManager == nil {
		return nil, fmt.Errorf("nil ProjectManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// StartRequest is the model of user request for starting a timer
type StartRequest struct {
	ProjectID   string `json:"projectId" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

// StopRequest is the model of user request for stopping a timer. The body is
// optional: an absent or empty idle means nothing is deducted.
type StopRequest struct {
	Idle string `json:"idle"`
}

// ManualRequest is the model of user request for a hand-entered time block
type ManualRequest struct {
	ProjectID   string    `json:"projectId" validate:"required"`
	Description string    `json:"description" validate:"max=500"`
	StartedAt   time.Time `json:"startedAt" validate:"required"`
	Duration    string    `json:"duration" validate:"required"`
}

func (s *Service) startTimer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid timer details"))
		return
	}

	p, err := s.ProjectManager.GetByID(ctx, claims.ID, req.ProjectID)
	if err != nil {
		logger.Error("Unable to get project",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot start timer"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Project not found"))
		return
	}

	entry, err := s.EntryManager.StartTimer(ctx, claims.ID, req.ProjectID, req.Description, time.Now())
	if err != nil {
		if errors.Is(err, ErrTimerAlreadyRunning) {
			resp.WriteError(w, r, resp.ErrConflict().AddMessages("A timer is already running"))
			return
		}
		logger.Error("Unable to start timer",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot start timer"))
		return
	}

	resp.WriteResponse(w, r, entry)
}

func (s *Service) stopTimer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	var idle time.Duration
	if len(req.Idle) > 0 {
		parsed, err := ParseDuration(req.Idle)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
			return
		}
		idle = parsed
	}

	entry, err := s.EntryManager.StopTimer(ctx, claims.ID, idle, time.Now())
	if err != nil {
		if errors.Is(err, ErrNoRunningTimer) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No timer is running"))
			return
		}
		s.Logger.Error("Unable to stop timer",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot stop timer"))
		return
	}

	resp.WriteResponse(w, r, entry)
}

func (s *Service) getRunning(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	entry, err := s.EntryManager.GetRunning(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to get running timer",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get running timer"))
		return
	}

	resp.WriteResponse(w, r, entry)
}

func (s *Service) createManual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid entry details"))
		return
	}

	duration, err := ParseDuration(req.Duration)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	p, err := s.ProjectManager.GetByID(ctx, claims.ID, req.ProjectID)
	if err != nil {
		logger.Error("Unable to get project",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create entry"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Project not found"))
		return
	}

	entry, err := s.EntryManager.CreateManual(ctx, claims.ID, req.ProjectID, req.Description, req.StartedAt, duration)
	if err != nil {
		logger.Error("Unable to create entry",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create entry"))
		return
	}

	resp.WriteResponse(w, r, entry)
}

func (s *Service) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	entries, err := s.EntryManager.List(ctx, claims.ID, r.URL.Query().Get("projectId"))
	if err != nil {
		s.Logger.Error("Unable to list entries",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot list entries"))
		return
	}

	resp.WriteResponse(w, r, entries)
}

// Router will return the routes under time entry API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createManual)
	r.Get("/", s.listEntries)
	r.Post("/timer/start", s.startTimer)
	r.Post("/timer/stop", s.stopTimer)
	r.Get("/timer", s.getRunning)

	return r
}
