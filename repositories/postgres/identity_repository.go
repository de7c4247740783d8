package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/manual-share/repositories"
	"go.uber.org/zap"
)

// IdentityRepository implements the repositories.IdentityRepository interface
type IdentityRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *DB, logger *zap.Logger) repositories.IdentityRepository {
	return &IdentityRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new identity; returns ErrDuplicate for a taken email
func (r *IdentityRepository) Create(ctx context.Context, identity *repositories.Identity) error {
	query := `
		INSERT INTO auth_identities (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		identity.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: identity %s", repositories.ErrDuplicate, identity.Email)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	r.logger.Debug("identity created", zap.String("id", identity.ID))
	return nil
}

// GetByEmail retrieves an identity by email
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*repositories.Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM auth_identities
		WHERE email = $1
	`

	identity := &repositories.Identity{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, email).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity for email", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return identity, nil
}

// Delete deletes an identity
func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM auth_identities WHERE id = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: identity %s", repositories.ErrNotFound, id)
	}

	r.logger.Debug("identity deleted", zap.String("id", id))
	return nil
}
