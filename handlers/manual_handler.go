package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/manual"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// ManualService defines the manual operations used by ManualHandler
type ManualService interface {
	List(ctx context.Context, actor models.Actor, filter models.ManualFilter) ([]*models.Manual, error)
	Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Manual, error)
	Create(ctx context.Context, actor models.Actor, in manual.CreateInput) (*models.Manual, error)
	Update(ctx context.Context, actor models.Actor, id uuid.UUID, patch models.ManualPatch) (*models.Manual, error)
	Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error
	MoveBlock(ctx context.Context, actor models.Actor, id uuid.UUID, index int, direction manual.Direction) (*models.Manual, error)
}

// CreateManualRequest represents a request to create a manual
type CreateManualRequest struct {
	Title          string        `json:"title" validate:"required,max=200"`
	Description    *string       `json:"description,omitempty"`
	Category       string        `json:"category" validate:"required,manual_category"`
	Status         string        `json:"status" validate:"required,manual_status"`
	Language       string        `json:"language" validate:"required,locale"`
	Blocks         models.Blocks `json:"blocks" validate:"required"`
	DepartmentTags []string      `json:"department_tags,omitempty"`
	IsVisible      *bool         `json:"is_visible,omitempty"`
}

// UpdateManualRequest represents a partial manual update; omitted fields are unchanged
type UpdateManualRequest struct {
	ID             string         `json:"id" validate:"required,uuid"`
	Title          *string        `json:"title,omitempty" validate:"omitempty,max=200"`
	Description    *string        `json:"description,omitempty"`
	Category       *string        `json:"category,omitempty" validate:"omitempty,manual_category"`
	Status         *string        `json:"status,omitempty" validate:"omitempty,manual_status"`
	Language       *string        `json:"language,omitempty" validate:"omitempty,locale"`
	Blocks         *models.Blocks `json:"blocks,omitempty"`
	DepartmentTags *[]string      `json:"department_tags,omitempty"`
	IsVisible      *bool          `json:"is_visible,omitempty"`
}

// MoveBlockRequest moves one block a step up or down
type MoveBlockRequest struct {
	Index     *int   `json:"index" validate:"required,gte=0"`
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// ManualHandler handles manual HTTP requests
type ManualHandler struct {
	service ManualService
	logger  *zap.Logger
}

// NewManualHandler creates a new ManualHandler
func NewManualHandler(service ManualService, logger *zap.Logger) *ManualHandler {
	return &ManualHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/manuals/list?status=&visibleOnly=
func (h *ManualHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var filter models.ManualFilter
	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		status := models.ManualStatus(raw)
		if !status.IsValid() {
			_ = utils.WriteBadRequest(w, "status must be draft or published", nil)
			return
		}
		filter.Status = &status
	}
	if raw := query.Get("visibleOnly"); raw != "" {
		visibleOnly, err := strconv.ParseBool(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "visibleOnly must be a boolean", nil)
			return
		}
		filter.VisibleOnly = visibleOnly
	}

	h.logger.Debug("listing manuals",
		zap.String("request_id", actor.RequestID),
		zap.String("org_id", actor.OrgID.String()))

	manuals, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if manuals == nil {
		manuals = []*models.Manual{}
	}

	_ = utils.WriteOK(w, map[string]interface{}{"manuals": manuals})
}

// HandleGet handles GET /api/manuals/{id}
func (h *ManualHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"manual": m})
}

// HandleCreate handles POST /api/manuals/create
func (h *ManualHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateManualRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	m, err := h.service.Create(r.Context(), actor, manual.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Category:       models.ManualCategory(req.Category),
		Status:         models.ManualStatus(req.Status),
		Language:       models.Locale(req.Language),
		Blocks:         req.Blocks,
		DepartmentTags: req.DepartmentTags,
		IsVisible:      req.IsVisible,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("manual created",
		zap.String("request_id", actor.RequestID),
		zap.String("manual_id", m.ID.String()))

	_ = utils.WriteCreated(w, map[string]interface{}{"manual": m})
}

// HandleUpdate handles PUT /api/manuals/update
func (h *ManualHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateManualRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	id, ok := uuidParam(w, req.ID, "id")
	if !ok {
		return
	}

	m, err := h.service.Update(r.Context(), actor, id, req.patch())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"manual": m})
}

// HandleDelete handles DELETE /api/manuals/delete?id=
func (h *ManualHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r.URL.Query().Get("id"), "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("manual deleted",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("manual_id", id.String()))

	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse{Message: "manual deleted"})
}

// HandleMoveBlock handles POST /api/manuals/{id}/blocks/move
func (h *ManualHandler) HandleMoveBlock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	var req MoveBlockRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	m, err := h.service.MoveBlock(r.Context(), actor, id, *req.Index, manual.Direction(req.Direction))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"manual": m})
}

func (req UpdateManualRequest) patch() models.ManualPatch {
	patch := models.ManualPatch{
		Title:          req.Title,
		Description:    req.Description,
		Blocks:         req.Blocks,
		DepartmentTags: req.DepartmentTags,
		IsVisible:      req.IsVisible,
	}
	if req.Category != nil {
		category := models.ManualCategory(*req.Category)
		patch.Category = &category
	}
	if req.Status != nil {
		status := models.ManualStatus(*req.Status)
		patch.Status = &status
	}
	if req.Language != nil {
		language := models.Locale(*req.Language)
		patch.Language = &language
	}
	return patch
}
