package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating session tokens
type TokenValidator interface {
	// ValidateToken validates a session token and returns claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// UserLookup loads the user row behind a session
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	users     UserLookup
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. When users is set,
// ExtractTenant takes the role and organization from the user row rather
// than trusting the token.
func NewAuthMiddleware(validator TokenValidator, users UserLookup, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		users:     users,
		logger:    logger,
	}
}

// SessionCookieName is the cookie set by the login, signup and onboard endpoints.
// An Authorization header takes precedence over it.
const SessionCookieName = "session"

// RequireAuth is a middleware that requires a valid session token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := ExtractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Sub))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth stores claims when a valid token is present and otherwise passes
// the request through untouched
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.validator.ValidateToken(r.Context(), token)
		if err != nil {
			m.logger.Debug("ignoring invalid token",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// ExtractTenant is a middleware that extracts tenant information from claims
// and the current user row. It must run after RequireAuth.
func (m *AuthMiddleware) ExtractTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			m.logger.Error("claims not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			m.logger.Warn("invalid org_id in claims",
				zap.String("request_id", requestID),
				zap.String("org_id", claims.OrgID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid session")
			return
		}

		userID, err := uuid.Parse(claims.Sub)
		if err != nil {
			m.logger.Warn("invalid subject in claims",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Sub),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid session")
			return
		}

		if m.users != nil {
			user, err := m.users.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					m.logger.Warn("session user no longer exists",
						zap.String("request_id", requestID),
						zap.String("sub", claims.Sub))
					_ = utils.WriteUnauthorized(w, "Invalid session")
					return
				}
				m.logger.Error("failed to load session user",
					zap.String("request_id", requestID),
					zap.String("sub", claims.Sub),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "Failed to load user")
				return
			}
			if user.OrgID != orgID {
				m.logger.Warn("session organization does not match user",
					zap.String("request_id", requestID),
					zap.String("sub", claims.Sub))
				_ = utils.WriteUnauthorized(w, "Invalid session")
				return
			}

			// RequireRole reads the role from the claims
			current := *claims
			current.Role = string(user.Role)
			claims = &current
			ctx = WithClaims(ctx, claims)
		}

		role := models.UserRole(claims.Role)
		if !role.IsValid() {
			m.logger.Warn("invalid role in claims",
				zap.String("request_id", requestID),
				zap.String("role", claims.Role))
			_ = utils.WriteUnauthorized(w, "Invalid session")
			return
		}

		ctx = WithOrgID(ctx, orgID)
		ctx = WithUserID(ctx, &userID)
		ctx = WithRole(ctx, role)

		m.logger.Debug("tenant information extracted",
			zap.String("request_id", requestID),
			zap.String("org_id", orgID.String()),
			zap.String("role", string(role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is a middleware that requires one of the given roles
func (m *AuthMiddleware) RequireRole(roles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			hasRole := false
			for _, role := range roles {
				if claims.Role == string(role) {
					hasRole = true
					break
				}
			}

			if !hasRole {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("role", claims.Role),
					zap.Int("allowed_roles", len(roles)))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken reads the bearer token, falling back to the session cookie
func ExtractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
