package report

import (
	"fmt"
	"net/http"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/plan"
	resp "github.com/soloflow-app/soloflow/response"
	"github.com/soloflow-app/soloflow/subscription"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	ReportManager       *Manager
	SubscriptionManager *subscription.Manager
	Logger              *zap.Logger
}

// Service is the report API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the report API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.ReportManager == nil {
		return nil, fmt.Errorf("nil ReportManager is invalid")
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

// gate rejects the request unless the user's plan carries advanced features
func (s *Service) gate(w http.ResponseWriter, r *http.Request, userID string) bool {
	ctx := r.Context()

	sub, err := s.SubscriptionManager.FetchOrCreate(ctx, userID)
	if err != nil {
		s.Logger.Error("Unable to fetch subscription",
			zap.String("UserID", userID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot run report"))
		return false
	}
	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		s.Logger.Error("Unable to derive plan",
			zap.String("UserID", userID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot run report"))
		return false
	}

	decision := plan.CheckFeature(derived, plan.HasAdvancedFeatures)
	if !decision.Allowed {
		resp.WriteError(w, r, resp.ErrPlanUpgradeRequired().AddMessages(decision.Message))
		return false
	}
	return true
}

func (s *Service) hoursByProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	if !s.gate(w, r, claims.ID) {
		return
	}

	rows, err := s.ReportManager.HoursByProject(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to aggregate hours",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot run report"))
		return
	}

	resp.WriteResponse(w, r, rows)
}

func (s *Service) revenueByMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	if !s.gate(w, r, claims.ID) {
		return
	}

	rows, err := s.ReportManager.RevenueByMonth(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to aggregate revenue",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot run report"))
		return
	}

	resp.WriteResponse(w, r, rows)
}

// Router will return the routes under report API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/hours", s.hoursByProject)
	r.Get("/revenue", s.revenueByMonth)

	return r
}
