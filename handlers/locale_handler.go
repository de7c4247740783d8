package handlers

import (
	"net/http"

	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// SetLocaleRequest represents a UI language change
type SetLocaleRequest struct {
	Locale string `json:"locale" validate:"required,locale"`
}

// LocaleResponse carries the active UI language
type LocaleResponse struct {
	Locale models.Locale `json:"locale"`
}

// LocaleHandler reads and writes the UI language cookie
type LocaleHandler struct {
	cookies CookieConfig
	logger  *zap.Logger
}

// NewLocaleHandler creates a new LocaleHandler
func NewLocaleHandler(cookies CookieConfig, logger *zap.Logger) *LocaleHandler {
	return &LocaleHandler{cookies: cookies, logger: logger}
}

// HandleGetLocale handles GET /api/locale. Unknown cookie values fall back to the default.
func (h *LocaleHandler) HandleGetLocale(w http.ResponseWriter, r *http.Request) {
	locale := models.DefaultLocale
	if cookie, err := r.Cookie(LocaleCookieName); err == nil {
		if parsed, err := models.ParseLocale(cookie.Value); err == nil {
			locale = parsed
		}
	}
	_ = utils.WriteOK(w, LocaleResponse{Locale: locale})
}

// HandleSetLocale handles POST /api/locale
func (h *LocaleHandler) HandleSetLocale(w http.ResponseWriter, r *http.Request) {
	var req SetLocaleRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	locale := models.Locale(req.Locale)
	h.cookies.setLocale(w, locale)
	_ = utils.WriteOK(w, LocaleResponse{Locale: locale})
}
