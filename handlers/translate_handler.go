package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/translation"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// TranslationService defines the translation operations used by TranslateHandler
type TranslationService interface {
	Translate(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*translation.Result, error)
	Get(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*models.ManualTranslation, error)
}

// TranslateRequest asks for a manual in another language
type TranslateRequest struct {
	ManualID       string `json:"manualId" validate:"required,uuid"`
	TargetLanguage string `json:"targetLanguage" validate:"required,translation_target"`
}

// TranslateHandler handles translation HTTP requests
type TranslateHandler struct {
	service TranslationService
	logger  *zap.Logger
}

// NewTranslateHandler creates a new TranslateHandler
func NewTranslateHandler(service TranslationService, logger *zap.Logger) *TranslateHandler {
	return &TranslateHandler{
		service: service,
		logger:  logger,
	}
}

// HandleTranslate handles POST /api/translate
func (h *TranslateHandler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req TranslateRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	manualID, ok := uuidParam(w, req.ManualID, "manualId")
	if !ok {
		return
	}

	result, err := h.service.Translate(r.Context(), actor, manualID, req.TargetLanguage)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("translation served",
		zap.String("request_id", actor.RequestID),
		zap.String("manual_id", manualID.String()),
		zap.String("language", req.TargetLanguage),
		zap.Bool("cached", result.Cached))

	_ = utils.WriteOK(w, result)
}

// HandleGet handles GET /api/translate?manualId=&targetLanguage=
func (h *TranslateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	query := r.URL.Query()
	manualID, ok := uuidParam(w, query.Get("manualId"), "manualId")
	if !ok {
		return
	}
	target := query.Get("targetLanguage")
	if target == "" {
		_ = utils.WriteBadRequest(w, "targetLanguage is required", nil)
		return
	}

	t, err := h.service.Get(r.Context(), actor, manualID, target)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"translation": t})
}
