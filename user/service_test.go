package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/soloflow-app/soloflow/auth"

	"github.com/go-redis/redis/v7"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *Manager) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	manager, err := NewManager(zaptest.NewLogger(t), db)
	require.NoError(t, err)

	authManager, err := auth.New(auth.Options{
		Redis:         redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"}),
		Logger:        zaptest.NewLogger(t),
		JWTSigningKey: "0123456789abcdef0123456789abcdef",
		SMTPAuth:      smtp.PlainAuth("", "login", "password", "smtp.example.com"),
		From:          "login@example.com",
		Hostname:      "smtp.example.com:587",
		EmailOption: auth.EmailOption{
			Name: "SoloFlow",
			LinkGenerator: func(uid, token string) string {
				return "https://app.example.com/login/" + uid + "/" + token
			},
		},
	})
	require.NoError(t, err)

	service, err := NewService(Options{
		Auth:        authManager,
		UserManager: manager,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return service, manager
}

func postRefresh(t *testing.T, router http.Handler, refreshToken string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(RefreshRequest{RefreshToken: refreshToken})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("POST", "/refresh", bytes.NewReader(body)))
	return recorder
}

func TestRefresh(t *testing.T) {
	service, manager := newTestService(t)
	router := service.Router()
	ctx := context.Background()

	u, err := manager.NewUser(ctx, "tina@example.com")
	require.NoError(t, err)

	refreshToken, err := service.Auth.CreateRefreshTokenFromClaims(auth.Claims{
		ID:    u.ID,
		Email: u.Email,
	})
	require.NoError(t, err)

	recorder := postRefresh(t, router, refreshToken)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Result TokenResponse `json:"result"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	require.NotEmpty(t, body.Result.Token)
	require.NotEmpty(t, body.Result.RefreshToken)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	service, _ := newTestService(t)
	router := service.Router()

	recorder := postRefresh(t, router, "not a token")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRefreshRejectsUnknownUser(t *testing.T) {
	service, _ := newTestService(t)
	router := service.Router()

	refreshToken, err := service.Auth.CreateRefreshTokenFromClaims(auth.Claims{
		ID:    "never-created",
		Email: "ghost@example.com",
	})
	require.NoError(t, err)

	recorder := postRefresh(t, router, refreshToken)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
