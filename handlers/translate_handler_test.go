package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/translation"
	"go.uber.org/zap"
)

// MockTranslationService is a mock implementation of TranslationService
type MockTranslationService struct {
	mock.Mock
}

func (m *MockTranslationService) Translate(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*translation.Result, error) {
	args := m.Called(ctx, actor, manualID, targetLanguage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*translation.Result), args.Error(1)
}

func (m *MockTranslationService) Get(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*models.ManualTranslation, error) {
	args := m.Called(ctx, actor, manualID, targetLanguage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ManualTranslation), args.Error(1)
}

func TestTranslateHandler_HandleTranslate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns cached flag", func(t *testing.T) {
		service := new(MockTranslationService)
		handler := NewTranslateHandler(service, logger)
		manualID := uuid.New()

		tr := models.NewManualTranslation(manualID, models.LocaleVietnamese, "Danh sách mở cửa", models.Blocks{
			{ID: "b1", Type: models.BlockParagraph, Content: "Mở khóa"},
		})
		service.On("Translate", mock.Anything, mock.Anything, manualID, "vi").
			Return(&translation.Result{Translation: tr, Cached: true}, nil)

		w := httptest.NewRecorder()
		handler.HandleTranslate(w, asActor(jsonRequest(t, http.MethodPost, "/api/translate", TranslateRequest{
			ManualID:       manualID.String(),
			TargetLanguage: "vi",
		}), testActor(models.RoleStaff)))

		require.Equal(t, http.StatusOK, w.Code)
		var body translation.Result
		decodeData(t, w, &body)
		assert.True(t, body.Cached)
		assert.Equal(t, "Danh sách mở cửa", body.Translation.TranslatedTitle)
	})

	t.Run("japanese is not a target", func(t *testing.T) {
		service := new(MockTranslationService)
		handler := NewTranslateHandler(service, logger)

		w := httptest.NewRecorder()
		handler.HandleTranslate(w, asActor(jsonRequest(t, http.MethodPost, "/api/translate", TranslateRequest{
			ManualID:       uuid.NewString(),
			TargetLanguage: "ja",
		}), testActor(models.RoleStaff)))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Details, "targetLanguage")
		service.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("llm unavailable", func(t *testing.T) {
		service := new(MockTranslationService)
		handler := NewTranslateHandler(service, logger)
		service.On("Translate", mock.Anything, mock.Anything, mock.Anything, "th").Return(nil, services.ErrProviderUnavailable)

		w := httptest.NewRecorder()
		handler.HandleTranslate(w, asActor(jsonRequest(t, http.MethodPost, "/api/translate", TranslateRequest{
			ManualID:       uuid.NewString(),
			TargetLanguage: "th",
		}), testActor(models.RoleStaff)))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestTranslateHandler_HandleGet(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		query      string
		serviceErr error
		wantStatus int
	}{
		{name: "missing manual id", query: "?targetLanguage=vi", wantStatus: http.StatusBadRequest},
		{name: "missing language", query: "?manualId=" + uuid.NewString(), wantStatus: http.StatusBadRequest},
		{name: "not translated yet", query: "?manualId=" + uuid.NewString() + "&targetLanguage=vi", serviceErr: services.ErrTranslationNotFound, wantStatus: http.StatusNotFound},
		{name: "other organization", query: "?manualId=" + uuid.NewString() + "&targetLanguage=vi", serviceErr: services.ErrOrgMismatch, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockTranslationService)
			handler := NewTranslateHandler(service, logger)
			if tt.serviceErr != nil {
				service.On("Get", mock.Anything, mock.Anything, mock.Anything, "vi").Return(nil, tt.serviceErr)
			}

			w := httptest.NewRecorder()
			handler.HandleGet(w, asActor(httptest.NewRequest(http.MethodGet, "/api/translate"+tt.query, nil), testActor(models.RoleStaff)))

			assert.Equal(t, tt.wantStatus, w.Code)
			service.AssertExpectations(t)
		})
	}

	t.Run("returns the translation", func(t *testing.T) {
		service := new(MockTranslationService)
		handler := NewTranslateHandler(service, logger)
		manualID := uuid.New()
		tr := models.NewManualTranslation(manualID, models.LocaleIndonesian, "Daftar", models.Blocks{})
		service.On("Get", mock.Anything, mock.Anything, manualID, "id").Return(tr, nil)

		w := httptest.NewRecorder()
		handler.HandleGet(w, asActor(httptest.NewRequest(http.MethodGet, "/api/translate?manualId="+manualID.String()+"&targetLanguage=id", nil), testActor(models.RoleStaff)))

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Translation models.ManualTranslation `json:"translation"`
		}
		decodeData(t, w, &body)
		assert.Equal(t, "Daftar", body.Translation.TranslatedTitle)
	})
}
