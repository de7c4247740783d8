// Package manual implements tenant scoped manual authoring and reading.
package manual

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/audit"
	"go.uber.org/zap"
)

// Direction is the direction of a block move
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// CreateInput holds the fields of a new manual
type CreateInput struct {
	Title          string
	Description    *string
	Category       models.ManualCategory
	Status         models.ManualStatus
	Language       models.Locale
	Blocks         models.Blocks
	DepartmentTags []string
	IsVisible      *bool
}

// Service handles manual operations
type Service struct {
	txMgr        repositories.TransactionManager
	manuals      repositories.ManualRepository
	translations repositories.TranslationRepository
	audit        audit.Recorder
	logger       *zap.Logger
}

// NewService creates a new manual service
func NewService(
	txMgr repositories.TransactionManager,
	manuals repositories.ManualRepository,
	translations repositories.TranslationRepository,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		txMgr:        txMgr,
		manuals:      manuals,
		translations: translations,
		audit:        recorder,
		logger:       logger,
	}
}

// List returns the organization's manuals. Staff only ever see published, visible manuals.
func (s *Service) List(ctx context.Context, actor models.Actor, filter models.ManualFilter) ([]*models.Manual, error) {
	if !actor.CanManage() {
		filter.VisibleOnly = true
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown manual status", nil)
	}

	manuals, err := s.manuals.List(ctx, actor.OrgID, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list manuals", err)
	}
	return manuals, nil
}

// Get returns one manual of the caller's organization. Staff reads bump the view count.
func (s *Service) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Manual, error) {
	manual, err := s.manuals.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrManualNotFound, nil, "failed to get manual")
	}

	if actor.CanManage() {
		return manual, nil
	}

	if !manual.IsVisibleToStaff() {
		return nil, services.ErrManualNotFound
	}

	if err := s.manuals.IncrementViewCount(ctx, actor.OrgID, id); err != nil {
		s.logger.Warn("failed to increment view count",
			zap.String("manual_id", id.String()),
			zap.Error(err))
	} else {
		manual.ViewCount++
	}
	return manual, nil
}

// Create stores a new manual authored by the actor
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Manual, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "title is required", nil)
	}
	if !in.Category.IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown manual category", nil)
	}
	if !in.Status.IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown manual status", nil)
	}
	if _, err := models.ParseLocale(string(in.Language)); err != nil {
		return nil, services.Derive(services.ErrUnsupportedLanguage, err)
	}
	if in.Blocks == nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "blocks are required", nil)
	}

	blocks, err := prepareBlocks(in.Blocks)
	if err != nil {
		return nil, err
	}

	manual := models.NewManual(actor.OrgID, actor.UserID, title, in.Category, in.Status, in.Language, blocks)
	manual.Description = in.Description
	if in.DepartmentTags != nil {
		manual.DepartmentTags = in.DepartmentTags
	}
	if in.IsVisible != nil {
		manual.IsVisible = *in.IsVisible
	}

	if err := s.manuals.Create(ctx, manual); err != nil {
		return nil, services.WrapInternal("failed to create manual", err)
	}

	s.audit.Record(actor, models.AuditActionManualCreated, "manual", manual.ID, map[string]interface{}{
		"title":  manual.Title,
		"status": manual.Status,
	})

	s.logger.Info("manual created",
		zap.String("manual_id", manual.ID.String()),
		zap.String("org_id", actor.OrgID.String()),
		zap.Int("blocks", len(manual.Blocks)))

	return manual, nil
}

// Update applies a partial patch. Changing the title or blocks drops cached translations.
func (s *Service) Update(ctx context.Context, actor models.Actor, id uuid.UUID, patch models.ManualPatch) (*models.Manual, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	updated, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.Manual, error) {
		manuals := s.manuals.WithTx(tx)

		manual, err := manuals.GetByID(ctx, actor.OrgID, id)
		if err != nil {
			return nil, services.FromRepository(err, services.ErrManualNotFound, nil, "failed to get manual")
		}

		patch.Apply(manual)
		if err := manuals.Update(ctx, manual); err != nil {
			return nil, services.FromRepository(err, services.ErrManualNotFound, nil, "failed to update manual")
		}

		if patch.ChangedContent() {
			dropped, err := s.translations.WithTx(tx).DeleteByManual(ctx, manual.ID)
			if err != nil {
				return nil, services.WrapInternal("failed to invalidate translations", err)
			}
			if dropped > 0 {
				s.logger.Info("invalidated cached translations",
					zap.String("manual_id", manual.ID.String()),
					zap.Int64("count", dropped))
			}
		}

		return manual, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionManualUpdated, "manual", updated.ID, map[string]interface{}{
		"content_changed": patch.ChangedContent(),
	})
	return updated, nil
}

// Delete removes a manual together with its translations
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if !actor.CanManage() {
		return services.ErrInsufficientPermissions
	}

	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		manuals := s.manuals.WithTx(tx)

		if _, err := manuals.GetByID(ctx, actor.OrgID, id); err != nil {
			return services.FromRepository(err, services.ErrManualNotFound, nil, "failed to get manual")
		}
		if _, err := s.translations.WithTx(tx).DeleteByManual(ctx, id); err != nil {
			return services.WrapInternal("failed to delete translations", err)
		}
		if err := manuals.Delete(ctx, actor.OrgID, id); err != nil {
			return services.FromRepository(err, services.ErrManualNotFound, nil, "failed to delete manual")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(actor, models.AuditActionManualDeleted, "manual", id, nil)
	s.logger.Info("manual deleted",
		zap.String("manual_id", id.String()),
		zap.String("org_id", actor.OrgID.String()))
	return nil
}

// MoveBlock swaps the block at index with its neighbour and persists the result
func (s *Service) MoveBlock(ctx context.Context, actor models.Actor, id uuid.UUID, index int, direction Direction) (*models.Manual, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}

	var move func(models.Blocks, int) models.Blocks
	switch direction {
	case DirectionUp:
		move = models.MoveBlockUp
	case DirectionDown:
		move = models.MoveBlockDown
	default:
		return nil, services.NewDomainError(services.ErrorTypeValidation, "direction must be up or down", nil)
	}

	manual, err := s.manuals.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrManualNotFound, nil, "failed to get manual")
	}

	if index < 0 || index >= len(manual.Blocks) {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "block index out of range", nil).
			WithDetail("index", index).
			WithDetail("blocks", len(manual.Blocks))
	}

	moved := move(manual.Blocks, index)
	return s.Update(ctx, actor, id, models.ManualPatch{Blocks: &moved})
}

// prepareBlocks validates every block, assigns missing ids and renumbers
func prepareBlocks(in models.Blocks) (models.Blocks, error) {
	blocks := in.Clone()
	for i := range blocks {
		if blocks[i].ID == "" {
			blocks[i].ID = uuid.NewString()
		}
		if err := blocks[i].Validate(); err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation, err.Error(), err).
				WithDetail("block_index", i)
		}
	}
	blocks.Renumber()
	return blocks, nil
}

func validatePatch(patch *models.ManualPatch) error {
	if patch.IsEmpty() {
		return services.NewDomainError(services.ErrorTypeValidation, "no fields to update", nil)
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return services.NewDomainError(services.ErrorTypeValidation, "title cannot be empty", nil)
		}
		patch.Title = &title
	}
	if patch.Category != nil && !patch.Category.IsValid() {
		return services.NewDomainError(services.ErrorTypeValidation, "unknown manual category", nil)
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return services.NewDomainError(services.ErrorTypeValidation, "unknown manual status", nil)
	}
	if patch.Language != nil {
		if _, err := models.ParseLocale(string(*patch.Language)); err != nil {
			return services.Derive(services.ErrUnsupportedLanguage, fmt.Errorf("language %q: %w", *patch.Language, err))
		}
	}
	if patch.Blocks != nil {
		blocks, err := prepareBlocks(*patch.Blocks)
		if err != nil {
			return err
		}
		patch.Blocks = &blocks
	}
	return nil
}
