package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for session claims
	ClaimsKey contextKey = "claims"

	// OrgIDKey is the context key for organization ID
	OrgIDKey contextKey = "org_id"

	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"

	// RoleKey is the context key for the caller's role
	RoleKey contextKey = "role"
)

// Claims represents the session token claims
type Claims struct {
	Sub      string `json:"sub"` // users.id
	OrgID    string `json:"org"`
	Role     string `json:"role"`
	Language string `json:"lang"`
	JTI      string `json:"jti"`
	Exp      int64  `json:"exp"`
	Iat      int64  `json:"iat"`
}

// GetRequestIDFromContext retrieves the request ID from context, falling back to
// the id assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves session claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds session claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetOrgIDFromContext retrieves the organization ID from context
func GetOrgIDFromContext(ctx context.Context) uuid.UUID {
	if val := ctx.Value(OrgIDKey); val != nil {
		if orgID, ok := val.(uuid.UUID); ok {
			return orgID
		}
	}
	return uuid.Nil
}

// WithOrgID adds an organization ID to the context
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// GetUserIDFromContext retrieves the user ID from context
func GetUserIDFromContext(ctx context.Context) *uuid.UUID {
	if val := ctx.Value(UserIDKey); val != nil {
		if userID, ok := val.(*uuid.UUID); ok {
			return userID
		}
	}
	return nil
}

// WithUserID adds a user ID to the context
func WithUserID(ctx context.Context, userID *uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRoleFromContext retrieves the caller's role from context
func GetRoleFromContext(ctx context.Context) models.UserRole {
	if val := ctx.Value(RoleKey); val != nil {
		if role, ok := val.(models.UserRole); ok {
			return role
		}
	}
	return ""
}

// WithRole adds the caller's role to the context
func WithRole(ctx context.Context, role models.UserRole) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// WithActor stores every tenant value of an actor, mainly for handler tests
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	userID := actor.UserID
	ctx = WithOrgID(ctx, actor.OrgID)
	ctx = WithUserID(ctx, &userID)
	return WithRole(ctx, actor.Role)
}

// GetActorFromContext assembles the authenticated caller. ok is false unless
// ExtractTenant stored an organization, a user and a role.
func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	orgID := GetOrgIDFromContext(ctx)
	userID := GetUserIDFromContext(ctx)
	role := GetRoleFromContext(ctx)
	if orgID == uuid.Nil || userID == nil || role == "" {
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:    *userID,
		OrgID:     orgID,
		Role:      role,
		RequestID: GetRequestIDFromContext(ctx),
	}, true
}
