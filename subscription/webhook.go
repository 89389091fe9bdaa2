package subscription

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/soloflow-app/soloflow/gateway"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// WebhookOptions contains the configuration for the gateway webhook receiver
type WebhookOptions struct {
	SubscriptionManager *Manager
	Gateway             *gateway.Client
	Logger              *zap.Logger
}

// Webhook receives gateway events and applies them to local subscription
// state. It is the only component allowed to mark a subscription paid.
type Webhook struct {
	WebhookOptions
}

// NewWebhook will create the webhook receiver for gateway events
func NewWebhook(option WebhookOptions) (*Webhook, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Gateway == nil {
		return nil, fmt.Errorf("nil Gateway is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Webhook{
		WebhookOptions: option,
	}, nil
}

func (h *Webhook) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.Logger.Error("Unable to read webhook body",
			zap.Error(err),
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.Gateway.ParseWebhook(payload, r.Header.Get(gateway.SignatureHeader))
	if err != nil {
		if errors.Is(err, gateway.ErrSignatureMismatch) {
			h.Logger.Warn("Webhook signature mismatch",
				zap.String("RemoteAddr", r.RemoteAddr),
			)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.Logger.Error("Unable to parse webhook payload",
			zap.Error(err),
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	logger := h.Logger.With(
		zap.String("Event", event.Name),
		zap.String("UserID", event.UserID),
		zap.String("ExternalSubscriptionID", event.SubscriptionID),
	)

	switch event.Name {
	case gateway.EventSubscriptionActivated, gateway.EventPaymentCaptured:
		if len(event.UserID) == 0 {
			logger.Error("Activation event without user reference")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := h.SubscriptionManager.Activate(ctx, event.UserID, event.SubscriptionID); err != nil {
			logger.Error("Unable to activate subscription",
				zap.Error(err),
			)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		logger.Info("Subscription activated from gateway event")
	case gateway.EventSubscriptionCancelled, gateway.EventSubscriptionExpired:
		if len(event.UserID) == 0 {
			logger.Error("Cancellation event without user reference")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := h.SubscriptionManager.MarkCancelled(ctx, event.UserID); err != nil {
			logger.Error("Unable to mark subscription cancelled",
				zap.Error(err),
			)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		logger.Info("Subscription cancelled from gateway event")
	default:
		// Unknown events are acknowledged so the gateway stops retrying.
		logger.Info("Ignoring unhandled gateway event")
	}

	w.WriteHeader(http.StatusOK)
}

// Router will return the routes under the billing webhook
func (h *Webhook) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", h.handleEvent)

	return r
}
