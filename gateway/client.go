package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Options provides initialization parameters for Client
type Options struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Client talks to the payment gateway over HTTP with key/secret basic auth
type Client struct {
	Options
}

// NewClient returns a gateway Client
func NewClient(option Options) (*Client, error) {
	if len(option.BaseURL) == 0 {
		return nil, fmt.Errorf("empty BaseURL is invalid")
	}
	if len(option.KeyID) == 0 || len(option.KeySecret) == 0 {
		return nil, fmt.Errorf("empty API credentials are invalid")
	}
	if len(option.WebhookSecret) == 0 {
		return nil, fmt.Errorf("empty WebhookSecret is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.HTTPClient == nil {
		option.HTTPClient = &http.Client{
			Timeout: 15 * time.Second,
		}
	}
	return &Client{
		Options: option,
	}, nil
}

// CreatePlan creates a billing plan on the gateway
func (c *Client) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	body := map[string]any{
		"name":     req.Name,
		"amount":   req.AmountInCents,
		"currency": req.Currency,
		"interval": req.Interval,
	}
	var plan Plan
	if err := c.post(ctx, "/plans", body, &plan); err != nil {
		return nil, extErrors.Wrap(err, "Cannot create plan on gateway")
	}
	return &plan, nil
}

// CreateSubscription creates a subscription and returns the hosted checkout
// session the user must complete. The caller's only effect is handing the
// ShortURL back; activation happens later via webhook or polling.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*CheckoutSession, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	body := map[string]any{
		"plan_id": req.PlanID,
		"notes": map[string]string{
			"user_id": req.UserID,
			"plan":    req.PlanName,
		},
	}
	var wire struct {
		ID       string `json:"id"`
		ShortURL string `json:"short_url"`
	}
	if err := c.post(ctx, "/subscriptions", body, &wire); err != nil {
		return nil, extErrors.Wrap(err, "Cannot create subscription on gateway")
	}
	if len(wire.ShortURL) == 0 {
		return nil, fmt.Errorf("gateway returned no checkout URL")
	}
	return &CheckoutSession{
		SubscriptionID: wire.ID,
		ShortURL:       wire.ShortURL,
	}, nil
}

// CancelSubscription cancels the subscription on the gateway side. The local
// record is handled separately by the billing action handlers.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if len(subscriptionID) == 0 {
		return fmt.Errorf("empty subscriptionID is invalid")
	}
	if err := c.post(ctx, "/subscriptions/"+subscriptionID+"/cancel", map[string]any{}, nil); err != nil {
		return extErrors.Wrap(err, "Cannot cancel subscription on gateway")
	}
	return nil
}

// webhookEnvelope is the inbound event shape. Only event, the subscription
// entity id, and notes are read.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				ID    string `json:"id"`
				Notes struct {
					UserID string `json:"user_id"`
					Plan   string `json:"plan"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// ParseWebhook verifies the payload signature and extracts the event. An
// invalid signature returns ErrSignatureMismatch before anything is decoded.
func (c *Client) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if !c.verifySignature(payload, signature) {
		return nil, ErrSignatureMismatch
	}
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode webhook payload")
	}
	if len(envelope.Event) == 0 {
		return nil, fmt.Errorf("webhook payload has no event name")
	}
	return &Event{
		Name:           envelope.Event,
		SubscriptionID: envelope.Payload.Subscription.Entity.ID,
		UserID:         envelope.Payload.Subscription.Entity.Notes.UserID,
		Plan:           envelope.Payload.Subscription.Entity.Notes.Plan,
	}, nil
}

// verifySignature checks the hex HMAC-SHA256 of the raw payload under the
// webhook secret, in constant time.
func (c *Client) verifySignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayload computes the signature the gateway would attach. Exported for
// webhook tests and local simulation tooling.
func (c *Client) SignPayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		c.Logger.Error("Gateway returned error",
			zap.String("Path", path),
			zap.Int("StatusCode", res.StatusCode),
			zap.ByteString("Body", raw),
		)
		return fmt.Errorf("gateway returned HTTP %d", res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
