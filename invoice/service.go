package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/client"
	"github.com/soloflow-app/soloflow/plan"
	"github.com/soloflow-app/soloflow/project"
	resp "github.com/soloflow-app/soloflow/response"
	"github.com/soloflow-app/soloflow/subscription"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	InvoiceManager      *Manager
	ClientManager       *client.Manager
	ProjectManager      *project.Manager
	SubscriptionManager *subscription.Manager
	Logger              *zap.Logger
}

// Service is the invoice API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the invoice API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.InvoiceManager == nil {
		return nil, fmt.Errorf("nil InvoiceManager is invalid")
	}
	if option.ClientManager == nil {
		return nil, fmt.Errorf("nil ClientManager is invalid")
	}
	if option.ProjectManager == nil {
		return nil, fmt.Errorf("nil ProjectManager is invalid")
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

// CreateRequest is the model of user request for assembling an invoice
type CreateRequest struct {
	ClientID string `json:"clientId" validate:"required"`
}

func (s *Service) createInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid invoice details"))
		return
	}

	now := time.Now()

	sub, err := s.SubscriptionManager.FetchOrCreate(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to fetch subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create invoice"))
		return
	}
	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, now)
	if err != nil {
		logger.Error("Unable to derive plan",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create invoice"))
		return
	}

	count, err := s.InvoiceManager.CountForMonth(ctx, claims.ID, now)
	if err != nil {
		logger.Error("Unable to count invoices",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create invoice"))
		return
	}

	decision := plan.CheckLimit(derived, plan.MaxInvoicesPerMonth, count)
	if !decision.Allowed {
		resp.WriteError(w, r, resp.ErrPlanUpgradeRequired().AddMessages(decision.Message))
		return
	}

	c, err := s.ClientManager.GetByID(ctx, claims.ID, req.ClientID)
	if err != nil {
		logger.Error("Unable to get client",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create invoice"))
		return
	}
	if c == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Client not found"))
		return
	}

	projects, err := s.ProjectManager.List(ctx, claims.ID, req.ClientID)
	if err != nil {
		logger.Error("Unable to list projects",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create invoice"))
		return
	}
	projectIDs := make([]string, 0, len(projects))
	for _, p := range projects {
		projectIDs = append(projectIDs, p.ID)
	}
	if len(projectIDs) == 0 {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No unbilled time entries for this client"))
		return
	}

	inv, err := s.InvoiceManager.CreateFromUnbilled(ctx, claims.ID, req.ClientID, projectIDs, c.HourlyRateCents, c.Currency, now)
	if err != nil {
		if errors.Is(err, ErrNothingToBill) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No unbilled time entries for this client"))
			return
		}
		logger.Error("Unable to create invoice",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create invoice"))
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	invoices, err := s.InvoiceManager.List(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list invoices",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot list invoices"))
		return
	}

	resp.WriteResponse(w, r, invoices)
}

func (s *Service) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	inv, err := s.InvoiceManager.GetByID(ctx, claims.ID, id)
	if err != nil {
		s.Logger.Error("Unable to get invoice",
			zap.String("UserID", claims.ID),
			zap.String("InvoiceID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get invoice"))
		return
	}
	if inv == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Invoice not found"))
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) markSent(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, s.InvoiceManager.MarkSent, "Cannot mark invoice sent")
}

func (s *Service) markPaid(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, s.InvoiceManager.MarkPaid, "Cannot mark invoice paid")
}

func (s *Service) setStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, id string) (*Invoice, error), failure string) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	inv, err := fn(ctx, claims.ID, id)
	if err != nil {
		s.Logger.Error("Unable to update invoice status",
			zap.String("UserID", claims.ID),
			zap.String("InvoiceID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages(failure))
		return
	}
	if inv == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Invoice not found"))
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) exportInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	id := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("UserID", claims.ID),
		zap.String("InvoiceID", id),
	)

	sub, err := s.SubscriptionManager.FetchOrCreate(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to fetch subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot export invoice"))
		return
	}
	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		logger.Error("Unable to derive plan",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot export invoice"))
		return
	}

	decision := plan.CheckFeature(derived, plan.CanExportPDF)
	if !decision.Allowed {
		resp.WriteError(w, r, resp.ErrPlanUpgradeRequired().AddMessages(decision.Message))
		return
	}

	inv, err := s.InvoiceManager.GetByID(ctx, claims.ID, id)
	if err != nil {
		logger.Error("Unable to get invoice",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot export invoice"))
		return
	}
	if inv == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Invoice not found"))
		return
	}

	c, err := s.ClientManager.GetByID(ctx, claims.ID, inv.ClientID)
	if err != nil {
		logger.Error("Unable to get client",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot export invoice"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.Number+".html"))
	if err := renderDocument(w, inv, c); err != nil {
		logger.Error("Unable to render invoice document",
			zap.Error(err),
		)
	}
}

// Router will return the routes under invoice API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createInvoice)
	r.Get("/", s.listInvoices)
	r.Get("/{id}", s.getInvoice)
	r.Post("/{id}/sent", s.markSent)
	r.Post("/{id}/paid", s.markPaid)
	r.Get("/{id}/export", s.exportInvoice)

	return r
}
