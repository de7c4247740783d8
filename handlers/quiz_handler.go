package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/quiz"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// QuizService defines the quiz operations used by QuizHandler
type QuizService interface {
	Generate(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*quiz.GenerateResult, error)
	Submit(ctx context.Context, actor models.Actor, sessionID uuid.UUID, answers []quiz.Answer) (*quiz.SubmitResult, error)
	Results(ctx context.Context, actor models.Actor, filter models.QuizResultFilter) ([]*models.QuizResult, error)
	History(ctx context.Context, actor models.Actor) ([]*models.QuizResult, error)
}

// GenerateQuizRequest asks for a new quiz on a manual
type GenerateQuizRequest struct {
	ManualID       string `json:"manualId" validate:"required,uuid"`
	TargetLanguage string `json:"targetLanguage,omitempty" validate:"omitempty,locale"`
}

// SubmitQuizRequest carries the answers of a quiz session
type SubmitQuizRequest struct {
	SessionID string        `json:"sessionId" validate:"required,uuid"`
	Answers   []quiz.Answer `json:"answers" validate:"required,min=1,dive"`
}

// QuizHandler handles quiz HTTP requests
type QuizHandler struct {
	service QuizService
	logger  *zap.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(service QuizService, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerate handles POST /api/quiz/generate
func (h *QuizHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateQuizRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	manualID, ok := uuidParam(w, req.ManualID, "manualId")
	if !ok {
		return
	}

	result, err := h.service.Generate(r.Context(), actor, manualID, req.TargetLanguage)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("quiz generated",
		zap.String("request_id", actor.RequestID),
		zap.String("manual_id", manualID.String()),
		zap.String("session_id", result.SessionID.String()))

	_ = utils.WriteOK(w, result)
}

// HandleSubmit handles POST /api/quiz/submit
func (h *QuizHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req SubmitQuizRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	sessionID, ok := uuidParam(w, req.SessionID, "sessionId")
	if !ok {
		return
	}

	result, err := h.service.Submit(r.Context(), actor, sessionID, req.Answers)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleResults handles GET /api/quiz/results?manualId=&userId=
func (h *QuizHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	query := r.URL.Query()
	manualID, ok := optionalUUIDParam(w, query.Get("manualId"), "manualId")
	if !ok {
		return
	}
	userID, ok := optionalUUIDParam(w, query.Get("userId"), "userId")
	if !ok {
		return
	}

	results, err := h.service.Results(r.Context(), actor, models.QuizResultFilter{ManualID: manualID, UserID: userID})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if results == nil {
		results = []*models.QuizResult{}
	}

	_ = utils.WriteOK(w, map[string]interface{}{"results": results})
}

// HandleHistory handles GET /api/quiz/history
func (h *QuizHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	results, err := h.service.History(r.Context(), actor)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if results == nil {
		results = []*models.QuizResult{}
	}

	_ = utils.WriteOK(w, map[string]interface{}{"results": results})
}
