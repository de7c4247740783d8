// Package identity abstracts the external service that owns email/password credentials.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/repositories"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned when the email/password pair is rejected
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned when an identity with the email already exists
	ErrEmailTaken = errors.New("email already registered")

	// ErrUnavailable is returned when the provider cannot be reached or fails
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Provider authenticates and manages identities. The subject it returns is
// stored in users.auth_id.
type Provider interface {
	// Name returns the provider name
	Name() string

	// SignIn verifies the credentials and returns the identity subject
	SignIn(ctx context.Context, email, password string) (string, error)

	// CreateUser registers a confirmed identity and returns its subject
	CreateUser(ctx context.Context, email, password string, metadata map[string]interface{}) (string, error)

	// DeleteUser removes the identity
	DeleteUser(ctx context.Context, subject string) error
}

// NewProvider builds the provider selected by cfg.Provider
func NewProvider(cfg config.IdentityConfig, identities repositories.IdentityRepository, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalProvider(identities, cfg.BcryptCost, logger), nil
	case "supabase":
		return NewSupabaseProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
	}
}
