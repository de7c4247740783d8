package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/media"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// uploadFormField is the multipart field carrying the file
const uploadFormField = "file"

// multipartOverhead is the slack allowed on top of the largest file for boundaries and headers
const multipartOverhead = 1 << 20

// MediaService defines the upload operation used by MediaHandler
type MediaService interface {
	Upload(ctx context.Context, actor models.Actor, in media.UploadInput) (*media.UploadResult, error)
}

// MediaHandler handles media uploads
type MediaHandler struct {
	service MediaService
	maxBody int64
	logger  *zap.Logger
}

// NewMediaHandler creates a new MediaHandler. maxFileBytes is the largest file any family allows.
func NewMediaHandler(service MediaService, maxFileBytes int64, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		service: service,
		maxBody: maxFileBytes + multipartOverhead,
		logger:  logger,
	}
}

// HandleUpload handles POST /api/media/upload. The file part is streamed to storage
// without buffering the whole body.
func (h *MediaHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	if r.ContentLength > h.maxBody {
		h.writeTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	reader, err := r.MultipartReader()
	if err != nil {
		_ = utils.WriteBadRequest(w, "multipart form data is required", nil)
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isBodyTooLarge(err) {
				h.writeTooLarge(w)
				return
			}
			_ = utils.WriteBadRequest(w, "invalid multipart body", nil)
			return
		}
		if part.FormName() != uploadFormField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		result, err := h.service.Upload(r.Context(), actor, media.UploadInput{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		})
		_ = part.Close()
		if err != nil {
			// a body without Content-Length can still overrun the cap mid-stream
			if isBodyTooLarge(err) {
				h.writeTooLarge(w)
				return
			}
			HandleServiceError(w, err, h.logger)
			return
		}

		_ = utils.WriteCreated(w, result)
		return
	}

	_ = utils.WriteBadRequest(w, "no file uploaded", map[string]interface{}{
		"field": uploadFormField,
	})
}

func (h *MediaHandler) writeTooLarge(w http.ResponseWriter) {
	_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large", map[string]interface{}{
		"max_bytes": h.maxBody - multipartOverhead,
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
