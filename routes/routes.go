package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/manual-share/app"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/utils"
)

// Rate limit buckets
const (
	routeLogin       = "login"
	routeSignup      = "signup"
	routeOnboard     = "onboard"
	routeVerifyToken = "verify-token"
	routeQuiz        = "quiz-generate"
	routeTranslate   = "translate"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config
	h := deps.Handlers
	authMW := deps.AuthMiddleware
	limit := deps.RateLimitMiddleware.Limit
	managers := authMW.RequireRole(models.RoleAdmin, models.RoleAreaManager)

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", h.Health.HandleHealth)
	r.Get("/readyz", h.Health.HandleReadiness)

	// Uploaded media
	publicPath := "/" + strings.Trim(cfg.Media.PublicPath, "/")
	r.Handle(publicPath+"/*", http.StripPrefix(publicPath, http.FileServer(http.Dir(cfg.Media.StorageDir))))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limit(routeLogin)).Post("/login", h.Auth.HandleLogin)
			r.With(limit(routeSignup)).Post("/signup", h.Auth.HandleSignup)
			r.With(limit(routeOnboard)).Post("/onboard", h.Auth.HandleOnboard)
			r.With(limit(routeVerifyToken)).Get("/verify-token", h.Auth.HandleVerifyToken)
			r.With(authMW.OptionalAuth).Post("/logout", h.Auth.HandleLogout)

			r.Group(func(r chi.Router) {
				r.Use(authMW.RequireAuth)
				r.Use(authMW.ExtractTenant)
				r.Get("/me", h.Auth.HandleMe)
			})
		})

		r.Get("/locale", h.Locale.HandleGetLocale)
		r.Post("/locale", h.Locale.HandleSetLocale)

		// Tenant scoped endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Use(authMW.ExtractTenant)

			r.Route("/manuals", func(r chi.Router) {
				r.Get("/list", h.Manual.HandleList)
				r.Get("/{id}", h.Manual.HandleGet)

				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/create", h.Manual.HandleCreate)
					r.Put("/update", h.Manual.HandleUpdate)
					r.Delete("/delete", h.Manual.HandleDelete)
					r.Post("/{id}/blocks/move", h.Manual.HandleMoveBlock)
				})
			})

			r.Post("/media/upload", h.Media.HandleUpload)

			r.Route("/quiz", func(r chi.Router) {
				r.With(limit(routeQuiz)).Post("/generate", h.Quiz.HandleGenerate)
				r.Post("/submit", h.Quiz.HandleSubmit)
				r.With(managers).Get("/results", h.Quiz.HandleResults)
				r.Get("/history", h.Quiz.HandleHistory)
			})

			r.Route("/staff", func(r chi.Router) {
				r.Use(managers)
				r.Post("/create", h.Staff.HandleCreate)
				r.Get("/list", h.Staff.HandleList)
				r.Put("/update", h.Staff.HandleUpdate)
				r.Post("/update-admin", h.Staff.HandleUpdateAdmin)
				r.Delete("/delete", h.Staff.HandleDelete)
				r.Post("/{id}/invite", h.Staff.HandleRegenerateInvite)
			})

			r.With(limit(routeTranslate)).Post("/translate", h.Translate.HandleTranslate)
			r.Get("/translate", h.Translate.HandleGet)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
