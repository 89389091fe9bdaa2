package auth

import (
	"net/smtp"
	"testing"

	"github.com/go-redis/redis/v7"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAuth(t *testing.T, signingKey string) *Auth {
	t.Helper()

	a, err := New(Options{
		Redis:         redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"}),
		Logger:        zaptest.NewLogger(t),
		JWTSigningKey: signingKey,
		SMTPAuth:      smtp.PlainAuth("", "login", "password", "smtp.example.com"),
		From:          "login@example.com",
		Hostname:      "smtp.example.com:587",
		EmailOption: EmailOption{
			Name: "SoloFlow",
			LinkGenerator: func(uid, token string) string {
				return "https://app.example.com/login/" + uid + "/" + token
			},
		},
	})
	require.NoError(t, err)
	return a
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t, "0123456789abcdef0123456789abcdef")

	token, err := a.CreateTokenFromClaims(Claims{
		ID:    "user-1",
		Email: "tina@example.com",
	})
	require.NoError(t, err)

	claims, err := a.verifyToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims)
	require.Equal(t, "user-1", claims.ID)
	require.Equal(t, "tina@example.com", claims.Email)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t, "0123456789abcdef0123456789abcdef")

	token, err := a.CreateRefreshTokenFromClaims(Claims{
		ID:    "user-1",
		Email: "tina@example.com",
	})
	require.NoError(t, err)

	claim, err := a.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.NotNil(t, claim)
	require.Equal(t, "user-1", claim.ID)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a := newTestAuth(t, "0123456789abcdef0123456789abcdef")

	claims, err := a.verifyToken("not a token")
	require.NoError(t, err)
	require.Nil(t, claims)

	claim, err := a.VerifyRefreshToken("not a token")
	require.NoError(t, err)
	require.Nil(t, claim)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a := newTestAuth(t, "0123456789abcdef0123456789abcdef")
	b := newTestAuth(t, "fedcba9876543210fedcba9876543210")

	token, err := a.CreateTokenFromClaims(Claims{ID: "user-1"})
	require.NoError(t, err)

	claims, err := b.verifyToken(token)
	require.NoError(t, err)
	require.Nil(t, claims)
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	a := newTestAuth(t, "0123456789abcdef0123456789abcdef")

	token, err := a.CreateTokenFromClaims(Claims{
		ID:    "user-1",
		Email: "tina@example.com",
	})
	require.NoError(t, err)

	claim, err := a.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.Nil(t, claim)
}
