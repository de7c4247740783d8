package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, user_id, email, role, display_name, language, organization_id, is_admin,
		       invite_token, invite_expires_at, is_onboarded, auth_id, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.UserID,
		&user.Email,
		&user.Role,
		&user.DisplayName,
		&user.Language,
		&user.OrgID,
		&user.IsAdmin,
		&user.InviteToken,
		&user.InviteExpiresAt,
		&user.IsOnboarded,
		&user.AuthID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	executor := executorFor(ctx, r.db, r.tx)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.UserID,
		user.Email,
		user.Role,
		user.DisplayName,
		user.Language,
		user.OrgID,
		user.IsAdmin,
		user.InviteToken,
		user.InviteExpiresAt,
		user.IsOnboarded,
		user.AuthID,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", repositories.ErrDuplicate, user.UserID)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("user_id", user.UserID))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByAuthID retrieves a user by the identity provider subject
func (r *UserRepository) GetByAuthID(ctx context.Context, authID string) (*models.User, error) {
	return r.getOne(ctx, "auth_id = $1", authID)
}

// GetByInviteToken retrieves a user by a pending invite token
func (r *UserRepository) GetByInviteToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "invite_token = $1", token)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	executor := executorFor(ctx, r.db, r.tx)
	user, err := scanUser(executor.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %v", repositories.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ListByOrgID retrieves all users for an organization, newest first
func (r *UserRepository) ListByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	executor := executorFor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// Update writes every mutable column of the user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2,
		    role = $3,
		    display_name = $4,
		    language = $5,
		    is_admin = $6,
		    invite_token = $7,
		    invite_expires_at = $8,
		    is_onboarded = $9,
		    auth_id = $10,
		    updated_at = $11
		WHERE id = $1
	`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Role,
		user.DisplayName,
		user.Language,
		user.IsAdmin,
		user.InviteToken,
		user.InviteExpiresAt,
		user.IsOnboarded,
		user.AuthID,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", repositories.ErrDuplicate, user.ID)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: user %s", repositories.ErrNotFound, user.ID)
	}

	r.logger.Debug("user updated", zap.String("id", user.ID.String()))
	return nil
}

// RedeemInvite burns the pending invite and stores the identity link in one
// conditional write, so a token can be redeemed once
func (r *UserRepository) RedeemInvite(ctx context.Context, user *models.User, token string) error {
	query := `
		UPDATE users
		SET email = $2,
		    auth_id = $3,
		    is_onboarded = true,
		    invite_token = NULL,
		    updated_at = $4
		WHERE id = $1 AND invite_token = $5 AND is_onboarded = false
	`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.AuthID,
		user.UpdatedAt,
		token,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", repositories.ErrDuplicate, user.ID)
		}
		return fmt.Errorf("failed to redeem invite: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: pending invite for user %s", repositories.ErrNotFound, user.ID)
	}

	r.logger.Debug("invite redeemed", zap.String("id", user.ID.String()))
	return nil
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: user %s", repositories.ErrNotFound, id)
	}

	r.logger.Debug("user deleted", zap.String("id", id.String()))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *UserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	return &UserRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}
