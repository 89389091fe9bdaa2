package subscription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/gateway"
	"github.com/soloflow-app/soloflow/plan"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T, manager *Manager, maxAttempts int) *Service {
	t.Helper()

	client, err := gateway.NewClient(gateway.Options{
		BaseURL:       "http://gateway.invalid",
		KeyID:         "key",
		KeySecret:     "secret",
		WebhookSecret: "whsec_test",
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	service, err := NewService(ServiceOptions{
		SubscriptionManager: manager,
		Gateway:             client,
		Logger:              zaptest.NewLogger(t),
		ProPriceCents:       900,
		PollInterval:        10 * time.Millisecond,
		PollMaxAttempts:     maxAttempts,
	})
	require.NoError(t, err)
	return service
}

func authedRequest(method, target, userID string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(r.Context(), auth.Context, &auth.Claims{
		ID:    userID,
		Email: userID + "@example.com",
	})
	return r.WithContext(ctx)
}

func TestServiceWaitForActivation(t *testing.T) {
	manager := newTestManager(t)
	service := newTestService(t, manager, 50)
	router := service.Router()

	go func() {
		time.Sleep(30 * time.Millisecond)
		manager.Activate(context.Background(), "tina", "sub_ext")
	}()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, authedRequest("GET", "/wait", "tina"))

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Result Snapshot `json:"result"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	require.Equal(t, plan.Pro, body.Result.Plan)
	require.Equal(t, StatusActive, body.Result.Subscription.Status)
}

func TestServiceWaitForActivationTimeout(t *testing.T) {
	manager := newTestManager(t)
	service := newTestService(t, manager, 2)
	router := service.Router()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, authedRequest("GET", "/wait", "tina"))

	require.Equal(t, http.StatusRequestTimeout, recorder.Code)
}
