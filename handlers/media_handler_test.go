package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/media"
	"go.uber.org/zap"
)

// fakeMediaService records the streamed upload
type fakeMediaService struct {
	input  media.UploadInput
	body   []byte
	calls  int
	result *media.UploadResult
	err    error
}

func (f *fakeMediaService) Upload(ctx context.Context, actor models.Actor, in media.UploadInput) (*media.UploadResult, error) {
	f.calls++
	f.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return f.result, f.err
}

func multipartRequest(t *testing.T, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	require.NoError(t, mw.WriteField("caption", "ignored"))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMediaHandler_HandleUpload(t *testing.T) {
	logger := zap.NewNop()
	actor := testActor(models.RoleAdmin)

	t.Run("streams the file part", func(t *testing.T) {
		service := &fakeMediaService{result: &media.UploadResult{
			URL:  "/media/org/1_a.png",
			Path: "org/1_a.png",
			Type: "image/png",
			Size: 4,
		}}
		handler := NewMediaHandler(service, 1<<20, logger)

		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(multipartRequest(t, "file", "a.png", "image/png", []byte("\x89PNG")), actor))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, service.calls)
		assert.Equal(t, "a.png", service.input.Filename)
		assert.Equal(t, "image/png", service.input.ContentType)
		assert.Equal(t, []byte("\x89PNG"), service.body)

		var body media.UploadResult
		decodeData(t, w, &body)
		assert.Equal(t, "/media/org/1_a.png", body.URL)
		assert.Equal(t, int64(4), body.Size)
	})

	t.Run("service rejection is mapped", func(t *testing.T) {
		service := &fakeMediaService{err: services.ErrUnsupportedMediaType}
		handler := NewMediaHandler(service, 1<<20, logger)

		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(multipartRequest(t, "file", "x.txt", "text/plain", []byte("hello")), actor))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		service := &fakeMediaService{}
		handler := NewMediaHandler(service, 1<<20, logger)

		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(multipartRequest(t, "attachment", "a.png", "image/png", []byte("x")), actor))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, service.calls)
	})

	t.Run("not multipart", func(t *testing.T) {
		handler := NewMediaHandler(&fakeMediaService{}, 1<<20, logger)

		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(jsonRequest(t, http.MethodPost, "/api/media/upload", `{}`), actor))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("declared length over the cap", func(t *testing.T) {
		service := &fakeMediaService{}
		handler := NewMediaHandler(service, 10, logger)

		req := multipartRequest(t, "file", "a.png", "image/png", []byte("x"))
		req.ContentLength = 10 + multipartOverhead + 1
		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(req, actor))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, 0, service.calls)
	})

	t.Run("streamed body over the cap", func(t *testing.T) {
		service := &fakeMediaService{}
		handler := NewMediaHandler(service, 10, logger)

		req := multipartRequest(t, "file", "a.mp4", "video/mp4", bytes.Repeat([]byte("v"), multipartOverhead+64))
		// chunked upload, no declared length
		req.ContentLength = -1
		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(req, actor))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, 1, service.calls)
		assert.Equal(t, float64(10), decodeError(t, w).Details["max_bytes"])
	})

	t.Run("storage failure wrapping the size error", func(t *testing.T) {
		service := &fakeMediaService{err: services.WrapInternal("failed to store media", &http.MaxBytesError{Limit: 10})}
		handler := NewMediaHandler(service, 1<<20, logger)

		w := httptest.NewRecorder()
		handler.HandleUpload(w, asActor(multipartRequest(t, "file", "a.png", "image/png", []byte("x")), actor))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		handler := NewMediaHandler(&fakeMediaService{}, 1<<20, logger)

		w := httptest.NewRecorder()
		handler.HandleUpload(w, multipartRequest(t, "file", "a.png", "image/png", []byte("x")))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
