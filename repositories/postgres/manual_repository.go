package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"go.uber.org/zap"
)

const manualColumns = `id, organization_id, title, description, category, status, is_visible, language,
		       blocks, department_tags, parent_manual_id, view_count, created_by, created_at, updated_at`

// ManualRepository implements the repositories.ManualRepository interface
type ManualRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewManualRepository creates a new manual repository
func NewManualRepository(db *DB, logger *zap.Logger) repositories.ManualRepository {
	return &ManualRepository{
		db:     db,
		logger: logger,
	}
}

func scanManual(row rowScanner) (*models.Manual, error) {
	m := &models.Manual{}
	err := row.Scan(
		&m.ID,
		&m.OrgID,
		&m.Title,
		&m.Description,
		&m.Category,
		&m.Status,
		&m.IsVisible,
		&m.Language,
		&m.Blocks,
		pq.Array(&m.DepartmentTags),
		&m.ParentManualID,
		&m.ViewCount,
		&m.CreatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if m.DepartmentTags == nil {
		m.DepartmentTags = []string{}
	}
	return m, err
}

func departmentTags(m *models.Manual) interface{} {
	if m.DepartmentTags == nil {
		return pq.Array([]string{})
	}
	return pq.Array(m.DepartmentTags)
}

// Create creates a new manual
func (r *ManualRepository) Create(ctx context.Context, manual *models.Manual) error {
	query := `
		INSERT INTO manuals (` + manualColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	executor := executorFor(ctx, r.db, r.tx)
	_, err := executor.ExecContext(ctx, query,
		manual.ID,
		manual.OrgID,
		manual.Title,
		manual.Description,
		manual.Category,
		manual.Status,
		manual.IsVisible,
		manual.Language,
		manual.Blocks,
		departmentTags(manual),
		manual.ParentManualID,
		manual.ViewCount,
		manual.CreatedBy,
		manual.CreatedAt,
		manual.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create manual: %w", err)
	}

	r.logger.Debug("manual created", zap.String("id", manual.ID.String()), zap.String("org_id", manual.OrgID.String()))
	return nil
}

// GetByID retrieves a manual within an organization
func (r *ManualRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Manual, error) {
	query := `
		SELECT ` + manualColumns + `
		FROM manuals
		WHERE id = $1 AND organization_id = $2
	`

	executor := executorFor(ctx, r.db, r.tx)
	manual, err := scanManual(executor.QueryRowContext(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: manual %s", repositories.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get manual: %w", err)
	}

	return manual, nil
}

// List retrieves the organization's manuals, most recently updated first
func (r *ManualRepository) List(ctx context.Context, orgID uuid.UUID, filter models.ManualFilter) ([]*models.Manual, error) {
	conditions := []string{"organization_id = $1"}
	args := []interface{}{orgID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	// staff see a manual only once it is both published and visible
	if filter.VisibleOnly {
		conditions = append(conditions, "status = 'published'", "is_visible = true")
	}

	query := `
		SELECT ` + manualColumns + `
		FROM manuals
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY updated_at DESC
	`

	executor := executorFor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query manuals: %w", err)
	}
	defer rows.Close()

	manuals := []*models.Manual{}
	for rows.Next() {
		manual, err := scanManual(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan manual: %w", err)
		}
		manuals = append(manuals, manual)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manual rows: %w", err)
	}

	return manuals, nil
}

// Update writes every mutable column of the manual
func (r *ManualRepository) Update(ctx context.Context, manual *models.Manual) error {
	query := `
		UPDATE manuals
		SET title = $3,
		    description = $4,
		    category = $5,
		    status = $6,
		    is_visible = $7,
		    language = $8,
		    blocks = $9,
		    department_tags = $10,
		    updated_at = $11
		WHERE id = $1 AND organization_id = $2
	`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query,
		manual.ID,
		manual.OrgID,
		manual.Title,
		manual.Description,
		manual.Category,
		manual.Status,
		manual.IsVisible,
		manual.Language,
		manual.Blocks,
		departmentTags(manual),
		manual.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update manual: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: manual %s", repositories.ErrNotFound, manual.ID)
	}

	r.logger.Debug("manual updated", zap.String("id", manual.ID.String()))
	return nil
}

// Delete hard deletes a manual
func (r *ManualRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	query := `DELETE FROM manuals WHERE id = $1 AND organization_id = $2`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete manual: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: manual %s", repositories.ErrNotFound, id)
	}

	r.logger.Debug("manual deleted", zap.String("id", id.String()))
	return nil
}

// IncrementViewCount bumps the view counter
func (r *ManualRepository) IncrementViewCount(ctx context.Context, orgID, id uuid.UUID) error {
	query := `UPDATE manuals SET view_count = view_count + 1 WHERE id = $1 AND organization_id = $2`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: manual %s", repositories.ErrNotFound, id)
	}

	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *ManualRepository) WithTx(tx repositories.Transaction) repositories.ManualRepository {
	return &ManualRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}
