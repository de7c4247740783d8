// Package translation machine translates manuals with an LLM and caches one
// translation per manual and target language.
package translation

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/audit"
	"github.com/upb/manual-share/services/providers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of chunk calls in flight when none is configured
const DefaultConcurrency = 3

// Result is a translation and whether it was served from the cache
type Result struct {
	Translation *models.ManualTranslation `json:"translation"`
	Cached      bool                      `json:"cached"`
}

// Service handles manual translation
type Service struct {
	manuals      repositories.ManualRepository
	translations repositories.TranslationRepository
	llm          providers.Provider
	audit        audit.Recorder
	logger       *zap.Logger
	concurrency  int
}

// NewService creates a new translation service
func NewService(
	manuals repositories.ManualRepository,
	translations repositories.TranslationRepository,
	llm providers.Provider,
	recorder audit.Recorder,
	logger *zap.Logger,
	concurrency int,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		manuals:      manuals,
		translations: translations,
		llm:          llm,
		audit:        recorder,
		logger:       logger,
		concurrency:  concurrency,
	}
}

// Translate returns the cached translation of a manual or produces and stores a new one
func (s *Service) Translate(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*Result, error) {
	target, err := parseTarget(targetLanguage)
	if err != nil {
		return nil, err
	}

	manual, err := s.manuals.GetByID(ctx, actor.OrgID, manualID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrManualNotFound, nil, "failed to get manual")
	}

	cached, err := s.translations.Get(ctx, manual.ID, target)
	switch {
	case err == nil:
		return &Result{Translation: cached, Cached: true}, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, services.WrapInternal("failed to look up translation", err)
	}

	logger := s.logger.With(
		zap.String("manual_id", manual.ID.String()),
		zap.String("language", string(target)),
		zap.String("request_id", actor.RequestID))

	title, err := s.translateTitle(ctx, manual.Title, target)
	if err != nil {
		logger.Error("title translation failed", zap.Error(err))
		return nil, completionError(err)
	}

	blocks, err := s.translateBlocks(ctx, logger, manual.Blocks, target)
	if err != nil {
		logger.Error("block translation failed", zap.Error(err))
		return nil, completionError(err)
	}

	translation := models.NewManualTranslation(manual.ID, target, title, blocks)
	translation.OrgID = manual.OrgID

	if err := s.translations.Create(ctx, translation); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.WrapInternal("failed to store translation", err)
		}
		// a concurrent request stored it first
		stored, getErr := s.translations.Get(ctx, manual.ID, target)
		if getErr != nil {
			return nil, services.WrapInternal("failed to load stored translation", getErr)
		}
		logger.Info("translation stored concurrently, returning cached row")
		return &Result{Translation: stored, Cached: true}, nil
	}

	s.audit.Record(actor, models.AuditActionTranslationCreated, "manual", manual.ID, map[string]interface{}{
		"target_language": string(target),
		"blocks":          len(blocks),
	})
	logger.Info("manual translated", zap.Int("blocks", len(blocks)))

	return &Result{Translation: translation, Cached: false}, nil
}

// Get returns a stored translation. A manual of another organization is forbidden.
func (s *Service) Get(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*models.ManualTranslation, error) {
	target, err := parseTarget(targetLanguage)
	if err != nil {
		return nil, err
	}

	translation, err := s.translations.Get(ctx, manualID, target)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrTranslationNotFound, nil, "failed to get translation")
	}
	if translation.OrgID != actor.OrgID {
		return nil, services.ErrOrgMismatch
	}
	return translation, nil
}

func (s *Service) translateTitle(ctx context.Context, title string, target models.Locale) (string, error) {
	resp, err := s.llm.Complete(ctx, providers.UserPrompt(titlePrompt(title, target), TitleMaxTokens))
	if err != nil {
		return "", err
	}
	if translated := strings.TrimSpace(resp.Text); translated != "" {
		return translated, nil
	}
	return title, nil
}

// translateBlocks runs one call per chunk with bounded concurrency. A transport failure
// cancels the rest; an unparseable reply only leaves its chunk untranslated.
func (s *Service) translateBlocks(ctx context.Context, logger *zap.Logger, blocks models.Blocks, target models.Locale) (models.Blocks, error) {
	chunks := splitChunks(blocks, ChunkSize)
	replies := make([][]translatedBlock, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, c := range chunks {
		g.Go(func() error {
			resp, err := s.llm.Complete(gctx, providers.UserPrompt(chunkPrompt(serializeChunk(c), target), ChunkMaxTokens))
			if err != nil {
				return err
			}

			parsed, err := parseChunkReply(resp.Text)
			if err != nil {
				logger.Warn("skipping untranslatable chunk",
					zap.Int("chunk", i),
					zap.Int("first_block", c.start),
					zap.Error(err))
				return nil
			}
			replies[i] = parsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byIndex := make(map[int]translatedBlock, len(blocks))
	for i, parsed := range replies {
		c := chunks[i]
		for _, t := range parsed {
			if t.BlockIndex < c.start || t.BlockIndex >= c.start+len(c.blocks) {
				continue
			}
			if _, seen := byIndex[t.BlockIndex]; !seen {
				byIndex[t.BlockIndex] = t
			}
		}
	}
	return merge(blocks, byIndex), nil
}

func parseTarget(raw string) (models.Locale, error) {
	target := models.Locale(strings.TrimSpace(raw))
	if !target.IsTranslationTarget() {
		return "", services.Derive(services.ErrUnsupportedLanguage, nil).WithDetail("language", raw)
	}
	return target, nil
}

func completionError(err error) error {
	return services.FromCompletion(err, providers.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded))
}
