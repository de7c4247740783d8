package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/auth"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// AuthService defines the authentication operations used by AuthHandler
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Signup(ctx context.Context, orgName, adminName, email, password string) (*auth.SignupResult, error)
	VerifyToken(ctx context.Context, token string) (*auth.InviteInfo, error)
	Onboard(ctx context.Context, token, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, claims *middleware.Claims) error
	Me(ctx context.Context, actor models.Actor) (*models.User, error)
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest represents an organization signup request
type SignupRequest struct {
	OrganizationName string `json:"organizationName" validate:"required,max=200"`
	AdminName        string `json:"adminName" validate:"required,max=100"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
}

// OnboardRequest represents an invite redemption
type OnboardRequest struct {
	Token    string `json:"token" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SessionResponse is returned by login and onboard
type SessionResponse struct {
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// SignupResponse is returned by signup
type SignupResponse struct {
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization"`
}

// InviteResponse describes a pending invite
type InviteResponse struct {
	UserID           uuid.UUID     `json:"user_id"`
	DisplayName      string        `json:"display_name"`
	OrganizationName string        `json:"organization_name"`
	Language         models.Locale `json:"language"`
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service AuthService
	cookies CookieConfig
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, cookies CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.startSession(w, result)
	_ = utils.WriteOK(w, SessionResponse{User: result.User, ExpiresAt: result.Session.ExpiresAt})
}

// HandleLogout handles POST /api/auth/logout. Cookies are cleared even without a valid session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		if err := h.service.Logout(ctx, claims); err != nil {
			h.logger.Warn("failed to revoke session",
				zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
				zap.Error(err))
		}
	}

	h.cookies.clearSession(w)
	_ = utils.WriteOK(w, struct{}{})
}

// HandleSignup handles POST /api/auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Signup(r.Context(), req.OrganizationName, req.AdminName, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, SignupResponse{User: result.User, Organization: result.Organization})
}

// HandleVerifyToken handles GET /api/auth/verify-token?token=
func (h *AuthHandler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		_ = utils.WriteBadRequest(w, "token is required", nil)
		return
	}

	info, err := h.service.VerifyToken(r.Context(), token)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, InviteResponse{
		UserID:           info.UserID,
		DisplayName:      info.DisplayName,
		OrganizationName: info.OrganizationName,
		Language:         info.Language,
	})
}

// HandleOnboard handles POST /api/auth/onboard
func (h *AuthHandler) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	var req OnboardRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Onboard(r.Context(), req.Token, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.startSession(w, result)
	_ = utils.WriteOK(w, SessionResponse{User: result.User, ExpiresAt: result.Session.ExpiresAt})
}

// HandleMe handles GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.service.Me(r.Context(), actor)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"user": user})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, result *auth.LoginResult) {
	h.cookies.setSession(w, result.Session.Token, result.Session.ExpiresAt)
	if result.User.Language != "" {
		h.cookies.setLocale(w, result.User.Language)
	}
}
