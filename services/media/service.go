// Package media validates and stores uploaded manual images and videos.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services"
	"go.uber.org/zap"
)

// sniffLen is how much of an upload is inspected for its real content type
const sniffLen = 3072

var allowedTypes = map[string]string{
	"image/jpeg":      "image",
	"image/jpg":       "image",
	"image/png":       "image",
	"image/gif":       "image",
	"image/webp":      "image",
	"video/mp4":       "video",
	"video/webm":      "video",
	"video/quicktime": "video",
	"video/x-msvideo": "video",
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// UploadInput describes one uploaded file
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult is returned after a file is stored
type UploadResult struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Service handles media uploads
type Service struct {
	storage    Storage
	publicPath string
	maxImage   int64
	maxVideo   int64
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new media service
func NewService(storage Storage, cfg config.MediaConfig, logger *zap.Logger) *Service {
	return &Service{
		storage:    storage,
		publicPath: strings.TrimSuffix(cfg.PublicPath, "/"),
		maxImage:   cfg.MaxImageBytes,
		maxVideo:   cfg.MaxVideoBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// Upload checks the declared type against the allowlist and the sniffed content,
// enforces the size cap of its family and stores the file under the actor's organization.
func (s *Service) Upload(ctx context.Context, actor models.Actor, in UploadInput) (*UploadResult, error) {
	contentType := normalizeContentType(in.ContentType)
	family, ok := allowedTypes[contentType]
	if !ok {
		return nil, services.Derive(services.ErrUnsupportedMediaType, nil).
			WithDetail("type", in.ContentType)
	}

	limit := s.maxImage
	if family == "video" {
		limit = s.maxVideo
	}
	if in.Size > limit {
		return nil, tooLarge(limit)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, services.WrapInternal("failed to read upload", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "file is empty", nil)
	}

	detected := mimetype.Detect(head)
	if sniffedFamily(detected) != family {
		s.logger.Warn("upload content does not match declared type",
			zap.String("declared", contentType),
			zap.String("detected", detected.String()),
			zap.String("org_id", actor.OrgID.String()))
		return nil, services.Derive(services.ErrUnsupportedMediaType, nil).
			WithDetail("type", contentType).
			WithDetail("detected", detected.String())
	}

	key := fmt.Sprintf("%s/%s", actor.OrgID, s.fileName(in.Filename))
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Body), limit+1)

	written, err := s.storage.Save(ctx, key, body)
	if err != nil {
		return nil, services.WrapInternal("failed to store file", err)
	}
	if written > limit {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Error("failed to remove oversized upload", zap.String("path", key), zap.Error(err))
		}
		return nil, tooLarge(limit)
	}

	s.logger.Info("media uploaded",
		zap.String("org_id", actor.OrgID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.String("path", key),
		zap.String("type", contentType),
		zap.Int64("size", written))

	return &UploadResult{
		URL:  s.publicPath + "/" + key,
		Path: key,
		Type: contentType,
		Size: written,
	}, nil
}

// fileName builds <unix_ms>_<sanitized original name>
func (s *Service) fileName(original string) string {
	name := original
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = SanitizeFileName(name)
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%d_%s", s.now().UnixMilli(), name)
}

// SanitizeFileName replaces every character outside [a-zA-Z0-9.-] with an underscore
func SanitizeFileName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// IsAllowedType reports whether uploads of the content type are accepted
func IsAllowedType(contentType string) bool {
	_, ok := allowedTypes[normalizeContentType(contentType)]
	return ok
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// sniffedFamily returns image or video for the detected type or any of its parents
func sniffedFamily(m *mimetype.MIME) string {
	for ; m != nil; m = m.Parent() {
		family, _, _ := strings.Cut(m.String(), "/")
		if family == "image" || family == "video" {
			return family
		}
	}
	return ""
}

func tooLarge(limit int64) error {
	return services.Derive(services.ErrFileTooLarge, nil).
		WithDetail("max_bytes", limit)
}
