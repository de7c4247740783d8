// Package handlers holds the thin HTTP layer: decode and validate the request,
// call one service method, map its error.
package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// LocaleCookieName is read by the frontend to pick the UI language
const LocaleCookieName = "NEXT_LOCALE"

// localeCookieMaxAge keeps the language choice for a year
const localeCookieMaxAge = 365 * 24 * time.Hour

// CookieConfig controls the attributes of the cookies handlers set
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewCookieConfig derives cookie attributes from the session configuration
func NewCookieConfig(cfg config.SessionConfig) CookieConfig {
	return CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}
}

func (c CookieConfig) setSession(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) setLocale(w http.ResponseWriter, locale models.Locale) {
	http.SetCookie(w, &http.Cookie{
		Name:     LocaleCookieName,
		Value:    string(locale),
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(localeCookieMaxAge.Seconds()),
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireActor returns the authenticated caller or writes a 401
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		logger.Error("missing tenant information in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return models.Actor{}, false
	}
	actor.IPAddress = remoteIP(r)
	actor.UserAgent = r.UserAgent()
	return actor, true
}

// decodeRequest decodes and validates a JSON body, writing a 400 on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

// uuidParam parses a required UUID, writing a 400 on failure
func uuidParam(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(raw, field)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDParam parses an optional UUID query value
func optionalUUIDParam(w http.ResponseWriter, raw, field string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, ok := uuidParam(w, raw, field)
	if !ok {
		return nil, false
	}
	return &id, true
}

// remoteIP strips the port from RemoteAddr, which RealIP may already have replaced
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
