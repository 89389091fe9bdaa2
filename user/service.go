package user

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/soloflow-app/soloflow/auth"
	resp "github.com/soloflow-app/soloflow/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Options contains the configuration for Service router
type Options struct {
	Auth        *auth.Auth
	UserManager *Manager
	Logger      *zap.Logger
}

// Service is the user API router
type Service struct {
	Options
}

// LoginRequest is the model of user request for a sign-in code
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RefreshRequest is the model of user request for renewing an access token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse carries a fresh token pair after login or refresh
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// NewService will create an instance of the user API router
func NewService(option Options) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.UserManager == nil {
		return nil, fmt.Errorf("nil UserManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) requestLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("A valid email address is required"))
		return
	}

	// the email address doubles as the passwordless uid: no record is
	// created until a code is actually verified
	if err := s.Auth.Request(r.Context(), req.Email, req.Email); err != nil {
		s.Logger.Error("Unable to send sign-in code",
			zap.String("Email", req.Email),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot send sign-in code"))
		return
	}

	resp.WriteResponse(w, r, nil)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "uid")
	code := chi.URLParam(r, "token")

	logger := s.Logger.With(zap.String("Email", email))

	valid, err := s.Auth.Verify(ctx, email, code)
	if err != nil {
		logger.Error("Unable to verify sign-in code",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot verify sign-in code"))
		return
	}
	if !valid {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Invalid or expired sign-in code"))
		return
	}

	u, err := s.UserManager.GetByEmail(ctx, email)
	if err != nil {
		logger.Error("Unable to look up User",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot sign in"))
		return
	}
	if u == nil {
		// first verified sign-in creates the account
		u, err = s.UserManager.NewUser(ctx, email)
		if err != nil {
			logger.Error("Unable to create User",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot sign in"))
			return
		}
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		logger.Error("Unable to issue tokens",
			zap.String("UserID", u.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot sign in"))
		return
	}

	resp.WriteResponse(w, r, tokens)
}

// handleRefresh exchanges a valid refresh token for a new token pair. The
// user record is re-read so a removed account cannot keep refreshing.
func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("A refresh token is required"))
		return
	}

	claim, err := s.Auth.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		s.Logger.Error("Unable to verify refresh token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot refresh token"))
		return
	}
	if claim == nil {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Invalid or expired refresh token"))
		return
	}

	u, err := s.UserManager.GetByID(ctx, claim.ID)
	if err != nil {
		s.Logger.Error("Unable to look up User",
			zap.String("UserID", claim.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot refresh token"))
		return
	}
	if u == nil {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Invalid or expired refresh token"))
		return
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		s.Logger.Error("Unable to issue tokens",
			zap.String("UserID", u.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot refresh token"))
		return
	}

	resp.WriteResponse(w, r, tokens)
}

// issueTokens mints an access token and rotates the refresh token
func (s *Service) issueTokens(u *User) (*TokenResponse, error) {
	claims := auth.Claims{
		ID:    u.ID,
		Email: u.Email,
	}
	token, err := s.Auth.CreateTokenFromClaims(claims)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Auth.CreateRefreshTokenFromClaims(claims)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Token:        token,
		RefreshToken: refreshToken,
	}, nil
}

// Router will return the routes under user API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.requestLogin)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/{uid}/{token}", s.handleLogin)

	return r
}
