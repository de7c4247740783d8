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

// TranslationRepository implements the repositories.TranslationRepository interface
type TranslationRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewTranslationRepository creates a new translation repository
func NewTranslationRepository(db *DB, logger *zap.Logger) repositories.TranslationRepository {
	return &TranslationRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the translation of a manual into a language, with the manual's org
func (r *TranslationRepository) Get(ctx context.Context, manualID uuid.UUID, target models.Locale) (*models.ManualTranslation, error) {
	query := `
		SELECT t.id, t.manual_id, t.target_language, t.translated_title, t.translated_blocks,
		       t.created_at, t.updated_at, m.organization_id
		FROM manual_translations t
		JOIN manuals m ON m.id = t.manual_id
		WHERE t.manual_id = $1 AND t.target_language = $2
	`

	executor := executorFor(ctx, r.db, r.tx)
	t := &models.ManualTranslation{}

	err := executor.QueryRowContext(ctx, query, manualID, target).Scan(
		&t.ID,
		&t.ManualID,
		&t.TargetLanguage,
		&t.TranslatedTitle,
		&t.TranslatedBlocks,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.OrgID,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: translation %s/%s", repositories.ErrNotFound, manualID, target)
		}
		return nil, fmt.Errorf("failed to get translation: %w", err)
	}

	return t, nil
}

// Create stores a translation; returns ErrDuplicate when one already exists
func (r *TranslationRepository) Create(ctx context.Context, t *models.ManualTranslation) error {
	query := `
		INSERT INTO manual_translations (
			id, manual_id, target_language, translated_title, translated_blocks, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := executorFor(ctx, r.db, r.tx)
	_, err := executor.ExecContext(ctx, query,
		t.ID,
		t.ManualID,
		t.TargetLanguage,
		t.TranslatedTitle,
		t.TranslatedBlocks,
		t.CreatedAt,
		t.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: translation %s/%s", repositories.ErrDuplicate, t.ManualID, t.TargetLanguage)
		}
		return fmt.Errorf("failed to create translation: %w", err)
	}

	r.logger.Debug("translation created",
		zap.String("manual_id", t.ManualID.String()),
		zap.String("target_language", string(t.TargetLanguage)))
	return nil
}

// DeleteByManual drops every cached translation of a manual
func (r *TranslationRepository) DeleteByManual(ctx context.Context, manualID uuid.UUID) (int64, error) {
	query := `DELETE FROM manual_translations WHERE manual_id = $1`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query, manualID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete translations: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		r.logger.Debug("translations invalidated",
			zap.String("manual_id", manualID.String()),
			zap.Int64("count", deleted))
	}
	return deleted, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *TranslationRepository) WithTx(tx repositories.Transaction) repositories.TranslationRepository {
	return &TranslationRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}
