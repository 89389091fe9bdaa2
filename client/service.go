package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/soloflow-app/soloflow/auth"
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
	ClientManager       *Manager
	SubscriptionManager *subscription.Manager
	Logger              *zap.Logger
}

// Service is the client API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the client API router
func NewService(option ServiceOptions) (*Service, error) {
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

// CreateRequest is the model of user request for creating a client
type CreateRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email" validate:"omitempty,email"`
	Company         string `json:"company" validate:"max=200"`
	HourlyRateCents int64  `json:"hourlyRateCents" validate:"gte=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// UpdateRequest is the model of user request for updating a client
type UpdateRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email" validate:"omitempty,email"`
	Company         string `json:"company" validate:"max=200"`
	HourlyRateCents int64  `json:"hourlyRateCents" validate:"gte=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	Notes           string `json:"notes" validate:"max=2000"`
}

func (s *Service) createClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid client details"))
		return
	}

	sub, err := s.SubscriptionManager.FetchOrCreate(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to fetch subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create client"))
		return
	}
	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		logger.Error("Unable to derive plan",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create client"))
		return
	}

	count, err := s.ClientManager.CountActive(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to count active clients",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create client"))
		return
	}

	decision := plan.CheckLimit(derived, plan.MaxClients, count)
	if !decision.Allowed {
		resp.WriteError(w, r, resp.ErrPlanUpgradeRequired().AddMessages(decision.Message))
		return
	}

	created, err := s.ClientManager.Create(ctx, &Client{
		UserID:          claims.ID,
		Name:            req.Name,
		Email:           req.Email,
		Company:         req.Company,
		HourlyRateCents: req.HourlyRateCents,
		Currency:        req.Currency,
		Notes:           req.Notes,
	})
	if err != nil {
		logger.Error("Unable to create client",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create client"))
		return
	}

	resp.WriteResponse(w, r, created)
}

func (s *Service) listClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	includeArchived := r.URL.Query().Get("archived") == "true"

	clients, err := s.ClientManager.List(ctx, claims.ID, includeArchived)
	if err != nil {
		s.Logger.Error("Unable to list clients",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot list clients"))
		return
	}

	resp.WriteResponse(w, r, clients)
}

func (s *Service) getClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	c, err := s.ClientManager.GetByID(ctx, claims.ID, id)
	if err != nil {
		s.Logger.Error("Unable to get client",
			zap.String("UserID", claims.ID),
			zap.String("ClientID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get client"))
		return
	}
	if c == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Client not found"))
		return
	}

	resp.WriteResponse(w, r, c)
}

func (s *Service) updateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("UserID", claims.ID),
		zap.String("ClientID", id),
	)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid client details"))
		return
	}

	c, err := s.ClientManager.GetByID(ctx, claims.ID, id)
	if err != nil {
		logger.Error("Unable to get client",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot update client"))
		return
	}
	if c == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Client not found"))
		return
	}

	c.Name = req.Name
	c.Email = req.Email
	c.Company = req.Company
	c.HourlyRateCents = req.HourlyRateCents
	c.Currency = req.Currency
	c.Notes = req.Notes

	updated, err := s.ClientManager.Update(ctx, c)
	if err != nil {
		logger.Error("Unable to update client",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot update client"))
		return
	}

	resp.WriteResponse(w, r, updated)
}

func (s *Service) archiveClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	c, err := s.ClientManager.Archive(ctx, claims.ID, id)
	if err != nil {
		s.Logger.Error("Unable to archive client",
			zap.String("UserID", claims.ID),
			zap.String("ClientID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot archive client"))
		return
	}
	if c == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Client not found"))
		return
	}

	resp.WriteResponse(w, r, c)
}

// Router will return the routes under client API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createClient)
	r.Get("/", s.listClients)
	r.Get("/{id}", s.getClient)
	r.Put("/{id}", s.updateClient)
	r.Delete("/{id}", s.archiveClient)

	return r
}
