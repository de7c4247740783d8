// Package session issues and validates the signed session tokens carried in
// the session cookie or an Authorization header.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/models"
	"go.uber.org/zap"
)

var (
	// ErrInvalidToken is returned when the token is malformed or badly signed
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when the token id is on the denylist
	ErrTokenRevoked = errors.New("token revoked")
)

// Denylist remembers revoked token ids until they would have expired anyway
type Denylist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// Claims is the JWT payload of a session token
type Claims struct {
	jwt.RegisteredClaims
	OrgID    string `json:"org"`
	Role     string `json:"role"`
	Language string `json:"lang,omitempty"`
}

// Manager signs session tokens with HS256
type Manager struct {
	secret   []byte
	ttl      time.Duration
	denylist Denylist
	now      func() time.Time
	logger   *zap.Logger
}

// NewManager creates a Manager. A nil denylist disables revocation.
func NewManager(cfg config.SessionConfig, denylist Denylist, logger *zap.Logger) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		denylist: denylist,
		now:      time.Now,
		logger:   logger,
	}
}

// TTL returns the lifetime of issued tokens
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the user
func (m *Manager) Issue(user *models.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OrgID:    user.OrgID.String(),
		Role:     string(user.Role),
		Language: string(user.Language),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateToken verifies the signature, expiry and revocation state of a token
func (m *Manager) ValidateToken(ctx context.Context, tokenString string) (*middleware.Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	if m.denylist != nil {
		revoked, err := m.denylist.Contains(ctx, claims.ID)
		if err != nil {
			m.logger.Warn("session denylist lookup failed, accepting token",
				zap.String("jti", claims.ID),
				zap.Error(err))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	out := &middleware.Claims{
		Sub:      claims.Subject,
		OrgID:    claims.OrgID,
		Role:     claims.Role,
		Language: claims.Language,
		JTI:      claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out, nil
}

// Revoke puts the token id on the denylist until the token expires
func (m *Manager) Revoke(ctx context.Context, claims *middleware.Claims) error {
	if m.denylist == nil || claims == nil || claims.JTI == "" {
		return nil
	}

	ttl := time.Unix(claims.Exp, 0).Sub(m.now())
	if ttl <= 0 {
		return nil
	}

	if err := m.denylist.Add(ctx, claims.JTI, ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	m.logger.Info("session revoked", zap.String("jti", claims.JTI), zap.String("sub", claims.Sub))
	return nil
}

var _ middleware.TokenValidator = (*Manager)(nil)
