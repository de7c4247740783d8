package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/staff"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// StaffService defines the staff management operations used by StaffHandler
type StaffService interface {
	Create(ctx context.Context, actor models.Actor, in staff.CreateInput) (*staff.Invite, error)
	List(ctx context.Context, actor models.Actor) ([]*models.User, error)
	Update(ctx context.Context, actor models.Actor, id uuid.UUID, in staff.UpdateInput) (*models.User, error)
	UpdateAdmin(ctx context.Context, actor models.Actor, id uuid.UUID, isAdmin bool) (*models.User, error)
	Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error
	RegenerateInvite(ctx context.Context, actor models.Actor, id uuid.UUID) (*staff.Invite, error)
}

// CreateStaffRequest invites a new member
type CreateStaffRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Language    string `json:"language" validate:"required,locale"`
	Role        string `json:"role" validate:"required,role"`
}

// UpdateStaffRequest patches a member; omitted fields are unchanged and an empty email clears it
type UpdateStaffRequest struct {
	UserID      string  `json:"userId" validate:"required,uuid"`
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,max=100"`
	Email       *string `json:"email,omitempty"`
	Language    *string `json:"language,omitempty" validate:"omitempty,locale"`
	Role        *string `json:"role,omitempty" validate:"omitempty,role"`
}

// UpdateAdminRequest toggles the admin flag of a member
type UpdateAdminRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	IsAdmin *bool  `json:"isAdmin" validate:"required"`
}

// StaffHandler handles staff management HTTP requests
type StaffHandler struct {
	service StaffService
	logger  *zap.Logger
}

// NewStaffHandler creates a new StaffHandler
func NewStaffHandler(service StaffService, logger *zap.Logger) *StaffHandler {
	return &StaffHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreate handles POST /api/staff/create
func (h *StaffHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateStaffRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	invite, err := h.service.Create(r.Context(), actor, staff.CreateInput{
		DisplayName: req.DisplayName,
		Language:    models.Locale(req.Language),
		Role:        models.UserRole(req.Role),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, invite)
}

// HandleList handles GET /api/staff/list
func (h *StaffHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	users, err := h.service.List(r.Context(), actor)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	_ = utils.WriteOK(w, map[string]interface{}{"staff": users})
}

// HandleUpdate handles PUT /api/staff/update
func (h *StaffHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateStaffRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	id, ok := uuidParam(w, req.UserID, "userId")
	if !ok {
		return
	}

	in := staff.UpdateInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
	}
	if req.Language != nil {
		language := models.Locale(*req.Language)
		in.Language = &language
	}
	if req.Role != nil {
		role := models.UserRole(*req.Role)
		in.Role = &role
	}

	user, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"user": user})
}

// HandleUpdateAdmin handles POST /api/staff/update-admin
func (h *StaffHandler) HandleUpdateAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateAdminRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	id, ok := uuidParam(w, req.UserID, "userId")
	if !ok {
		return
	}

	user, err := h.service.UpdateAdmin(r.Context(), actor, id, *req.IsAdmin)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"user": user})
}

// HandleDelete handles DELETE /api/staff/delete?id=
func (h *StaffHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse{Message: "staff deleted"})
}

// HandleRegenerateInvite handles POST /api/staff/{id}/invite
func (h *StaffHandler) HandleRegenerateInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	invite, err := h.service.RegenerateInvite(r.Context(), actor, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, invite)
}
