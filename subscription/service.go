package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/gateway"
	resp "github.com/soloflow-app/soloflow/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	SubscriptionManager *Manager
	Gateway             *gateway.Client
	Logger              *zap.Logger

	// ProPriceCents is the monthly price sent to the gateway when a user
	// starts checkout.
	ProPriceCents int64
	Currency      string

	// PollInterval and PollMaxAttempts bound the post-checkout wait endpoint.
	// Zero values take the Poller defaults.
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
	poller *Poller
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Gateway == nil {
		return nil, fmt.Errorf("nil Gateway is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.ProPriceCents <= 0 {
		return nil, fmt.Errorf("non-positive ProPriceCents is invalid")
	}
	if len(option.Currency) == 0 {
		option.Currency = "usd"
	}
	poller, err := NewPoller(PollerOptions{
		SubscriptionManager: option.SubscriptionManager,
		Logger:              option.Logger,
		Interval:            option.PollInterval,
		MaxAttempts:         option.PollMaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return &Service{
		ServiceOptions: option,
		poller:         poller,
	}, nil
}

func (s *Service) getSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	sub, err := s.SubscriptionManager.FetchOrCreate(ctx, claims.ID)
	if err != nil {
		logger.Error("Unable to fetch subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get subscription"))
		return
	}

	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		logger.Error("Unable to derive plan",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get subscription"))
		return
	}

	resp.WriteResponse(w, r, makeSnapshot(sub, derived))
}

// waitForActivation holds the request open after checkout until the gateway
// webhook flips the record to active. A client navigating away cancels via
// the request context; exhaustion returns 408 and the client falls back to
// its regular fetch.
func (s *Service) waitForActivation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	sub, err := s.poller.WaitForActivation(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrActivationTimeout) {
			resp.WriteError(w, r, resp.ErrTimeout().AddMessages("Subscription was not activated in time"))
			return
		}
		if ctx.Err() != nil {
			// client is gone, nothing left to write
			return
		}
		s.Logger.Error("Unable to wait for activation",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get subscription"))
		return
	}

	derived, err := s.SubscriptionManager.DerivePlan(ctx, sub, time.Now())
	if err != nil {
		s.Logger.Error("Unable to derive plan",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get subscription"))
		return
	}

	resp.WriteResponse(w, r, makeSnapshot(sub, derived))
}

// CheckoutResponse carries the hosted checkout URL back to the caller. The
// handler's only local effect is returning this URL: paid state is written by
// the webhook or observed by the post-checkout poll, never here.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

func (s *Service) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	gwPlan, err := s.Gateway.CreatePlan(ctx, gateway.PlanRequest{
		Name:          "SoloFlow Pro",
		AmountInCents: s.ProPriceCents,
		Currency:      s.Currency,
		Interval:      "month",
	})
	if err != nil {
		logger.Error("Unable to create plan on gateway",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to start checkout"))
		return
	}

	session, err := s.Gateway.CreateSubscription(ctx, gateway.SubscriptionRequest{
		PlanID:   gwPlan.ID,
		UserID:   claims.ID,
		PlanName: "pro",
	})
	if err != nil {
		logger.Error("Unable to create subscription on gateway",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to start checkout"))
		return
	}

	resp.WriteResponse(w, r, CheckoutResponse{
		CheckoutURL: session.ShortURL,
	})
}

// CancelRequest is the model of user request for scheduling a cancellation
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid cancellation reason"))
		return
	}

	sub, err := s.SubscriptionManager.Cancel(ctx, claims.ID, req.Reason, time.Now())
	if err != nil {
		if errors.Is(err, ErrNoPaidSubscription) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No paid subscription to cancel"))
			return
		}
		logger.Error("Unable to cancel subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to cancel subscription"))
		return
	}

	resp.WriteResponse(w, r, sub)
}

func (s *Service) reactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	sub, err := s.SubscriptionManager.Reactivate(ctx, claims.ID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotPendingCancellation):
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Subscription is not scheduled for cancellation"))
		case errors.Is(err, ErrGracePeriodElapsed):
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Grace period has ended, please subscribe again"))
		default:
			logger.Error("Unable to reactivate subscription",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to reactivate subscription"))
		}
		return
	}

	resp.WriteResponse(w, r, sub)
}

// Router will return the routes under subscription API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.getSubscription)
	r.Get("/wait", s.waitForActivation)
	r.Post("/checkout", s.checkout)
	r.Post("/cancel", s.cancel)
	r.Post("/reactivate", s.reactivate)

	return r
}
