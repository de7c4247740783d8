package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LocalProvider keeps bcrypt-hashed credentials in the auth_identities table
type LocalProvider struct {
	identities repositories.IdentityRepository
	cost       int
	logger     *zap.Logger
}

// NewLocalProvider creates a LocalProvider. A cost outside bcrypt's range uses bcrypt.DefaultCost.
func NewLocalProvider(identities repositories.IdentityRepository, cost int, logger *zap.Logger) *LocalProvider {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		identities: identities,
		cost:       cost,
		logger:     logger,
	}
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return "local"
}

// SignIn compares the password against the stored hash. An unknown email and a
// wrong password are indistinguishable to the caller.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	identity, err := p.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return identity.ID, nil
}

// CreateUser hashes the password and stores a new identity
func (p *LocalProvider) CreateUser(ctx context.Context, email, password string, _ map[string]interface{}) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &repositories.Identity{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := p.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.logger.Info("local identity created", zap.String("subject", identity.ID))
	return identity.ID, nil
}

// DeleteUser removes the identity. A missing identity is not an error.
func (p *LocalProvider) DeleteUser(ctx context.Context, subject string) error {
	if err := p.identities.Delete(ctx, subject); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
