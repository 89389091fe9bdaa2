package subscription

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soloflow-app/soloflow/gateway"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWebhook(t *testing.T, manager *Manager) (*Webhook, *gateway.Client) {
	t.Helper()

	client, err := gateway.NewClient(gateway.Options{
		BaseURL:       "http://gateway.invalid",
		KeyID:         "key",
		KeySecret:     "secret",
		WebhookSecret: "whsec_test",
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	webhook, err := NewWebhook(WebhookOptions{
		SubscriptionManager: manager,
		Gateway:             client,
		Logger:              zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return webhook, client
}

func eventPayload(event, subscriptionID, userID, planName string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": %q,
		"payload": {
			"subscription": {
				"entity": {
					"id": %q,
					"notes": {
						"user_id": %q,
						"plan": %q
					}
				}
			}
		}
	}`, event, subscriptionID, userID, planName))
}

func deliver(t *testing.T, webhook *Webhook, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set(gateway.SignatureHeader, signature)
	recorder := httptest.NewRecorder()
	webhook.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestWebhookActivates(t *testing.T) {
	manager := newTestManager(t)
	webhook, client := newTestWebhook(t, manager)
	ctx := context.Background()

	payload := eventPayload(gateway.EventSubscriptionActivated, "sub_ext_11", "uma", "pro")
	recorder := deliver(t, webhook, payload, client.SignPayload(payload))
	require.Equal(t, http.StatusOK, recorder.Code)

	sub, err := manager.FetchOrCreate(ctx, "uma")
	require.NoError(t, err)
	require.Equal(t, StatusActive, sub.Status)
	require.Equal(t, "sub_ext_11", sub.ExternalSubscriptionID)
}

func TestWebhookPaymentCapturedActivates(t *testing.T) {
	manager := newTestManager(t)
	webhook, client := newTestWebhook(t, manager)
	ctx := context.Background()

	payload := eventPayload(gateway.EventPaymentCaptured, "sub_ext_12", "vic", "pro")
	recorder := deliver(t, webhook, payload, client.SignPayload(payload))
	require.Equal(t, http.StatusOK, recorder.Code)

	sub, err := manager.FetchOrCreate(ctx, "vic")
	require.NoError(t, err)
	require.Equal(t, StatusActive, sub.Status)
}

func TestWebhookCancels(t *testing.T) {
	manager := newTestManager(t)
	webhook, client := newTestWebhook(t, manager)
	ctx := context.Background()

	_, err := manager.Activate(ctx, "xena", "sub_ext_13")
	require.NoError(t, err)

	payload := eventPayload(gateway.EventSubscriptionCancelled, "sub_ext_13", "xena", "pro")
	recorder := deliver(t, webhook, payload, client.SignPayload(payload))
	require.Equal(t, http.StatusOK, recorder.Code)

	sub, err := manager.FetchOrCreate(ctx, "xena")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, sub.Status)
}

func TestWebhookBadSignature(t *testing.T) {
	manager := newTestManager(t)
	webhook, _ := newTestWebhook(t, manager)
	ctx := context.Background()

	payload := eventPayload(gateway.EventSubscriptionActivated, "sub_ext_14", "yuri", "pro")
	recorder := deliver(t, webhook, payload, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	// the forged event never touched local state
	sub, err := manager.FetchOrCreate(ctx, "yuri")
	require.NoError(t, err)
	require.Equal(t, StatusTrial, sub.Status)
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	manager := newTestManager(t)
	webhook, client := newTestWebhook(t, manager)

	payload := eventPayload("invoice.generated", "sub_ext_15", "zoe", "pro")
	recorder := deliver(t, webhook, payload, client.SignPayload(payload))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestWebhookMissingUserRejected(t *testing.T) {
	manager := newTestManager(t)
	webhook, client := newTestWebhook(t, manager)

	payload := eventPayload(gateway.EventSubscriptionActivated, "sub_ext_16", "", "pro")
	recorder := deliver(t, webhook, payload, client.SignPayload(payload))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
