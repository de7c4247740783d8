package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/handlers"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/repositories/postgres"
	"github.com/upb/manual-share/services/audit"
	"github.com/upb/manual-share/services/auth"
	"github.com/upb/manual-share/services/events"
	"github.com/upb/manual-share/services/identity"
	"github.com/upb/manual-share/services/manual"
	"github.com/upb/manual-share/services/media"
	"github.com/upb/manual-share/services/providers"
	"github.com/upb/manual-share/services/providers/anthropic"
	"github.com/upb/manual-share/services/providers/gemini"
	"github.com/upb/manual-share/services/quiz"
	"github.com/upb/manual-share/services/ratelimit"
	"github.com/upb/manual-share/services/session"
	"github.com/upb/manual-share/services/staff"
	"github.com/upb/manual-share/services/translation"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  *redis.Client
	Logger *zap.Logger

	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	LLM       providers.Provider
	Identity  identity.Provider
	Sessions  *session.Manager
	Publisher events.Publisher
	Audit     *audit.AuditService

	// Services
	AuthService        *auth.Service
	ManualService      *manual.Service
	MediaService       *media.Service
	QuizService        *quiz.Service
	TranslationService *translation.Service
	StaffService       *staff.Service

	// HTTP
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
	Handlers            *Handlers
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Locale    *handlers.LocaleHandler
	Manual    *handlers.ManualHandler
	Media     *handlers.MediaHandler
	Quiz      *handlers.QuizHandler
	Staff     *handlers.StaffHandler
	Translate *handlers.TranslateHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.wire(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesFromDB wires the application over an already opened pool
func NewDependenciesFromDB(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		RepoFactory: postgres.NewRepositoryFactoryFromDB(db, logger),
	}
	if err := deps.wire(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) wire(ctx context.Context, cfg *config.Config) error {
	d.initRepositories()
	d.initRedis(ctx, cfg)

	if err := d.initLLM(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize llm provider: %w", err)
	}
	if err := d.initIdentity(cfg); err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}
	if err := d.initAudit(cfg); err != nil {
		return fmt.Errorf("failed to initialize audit: %w", err)
	}
	if err := d.initServices(cfg); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	d.initHTTP(cfg)
	return nil
}

// initDatabase opens the PostgreSQL pool and the repository factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
}

// initRedis connects the client backing rate limits and the session denylist.
// An unreachable server is logged; both consumers fail open.
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) {
	if !cfg.Redis.Enabled {
		d.Logger.Info("redis disabled, rate limiting and session revocation are off")
		return
	}

	d.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.Redis.Ping(pingCtx).Err(); err != nil {
		d.Logger.Warn("redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return
	}
	d.Logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
}

func (d *Dependencies) initLLM(ctx context.Context, cfg *config.Config) error {
	llm, err := NewLLMProvider(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	d.LLM = llm
	d.Logger.Info("llm provider configured", zap.String("provider", llm.Name()))
	return nil
}

// NewLLMProvider builds the completion backend selected by cfg.Provider
func NewLLMProvider(ctx context.Context, cfg config.LLMConfig) (providers.Provider, error) {
	pc := providers.ProviderConfig{
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
	}

	switch cfg.Provider {
	case "anthropic":
		pc.APIKey = cfg.AnthropicAPIKey
		pc.BaseURL = cfg.AnthropicBaseURL
		return anthropic.NewAdapter(pc), nil
	case "gemini":
		pc.APIKey = cfg.GeminiAPIKey
		return gemini.NewAdapter(ctx, pc)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func (d *Dependencies) initIdentity(cfg *config.Config) error {
	provider, err := identity.NewProvider(cfg.Identity, d.Repos.Identities, d.Logger)
	if err != nil {
		return err
	}
	d.Identity = provider
	d.Logger.Info("identity provider configured", zap.String("provider", provider.Name()))
	return nil
}

// initAudit starts the audit worker pool and its broker forwarding
func (d *Dependencies) initAudit(cfg *config.Config) error {
	publisher, err := events.NewPublisher(cfg.Events, d.Logger)
	if err != nil {
		return err
	}
	d.Publisher = publisher

	auditCfg := audit.DefaultConfig()
	if cfg.Audit.BufferSize > 0 {
		auditCfg.BufferSize = cfg.Audit.BufferSize
	}
	if cfg.Audit.WorkerCount > 0 {
		auditCfg.WorkerCount = cfg.Audit.WorkerCount
	}

	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, publisher, d.Logger, auditCfg)
	return d.Audit.Start()
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	var denylist session.Denylist
	if d.Redis != nil {
		denylist = session.NewRedisDenylist(d.Redis, "manual-share:session:revoked")
	}
	d.Sessions = session.NewManager(cfg.Session, denylist, d.Logger)

	storage, err := media.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		return fmt.Errorf("failed to open media storage: %w", err)
	}

	repos := d.Repos
	d.AuthService = auth.NewService(d.TxManager, repos.Organizations, repos.Users, d.Identity, d.Sessions, d.Audit, d.Logger)
	d.ManualService = manual.NewService(d.TxManager, repos.Manuals, repos.Translations, d.Audit, d.Logger)
	d.MediaService = media.NewService(storage, cfg.Media, d.Logger)
	d.QuizService = quiz.NewService(d.TxManager, repos.Manuals, repos.Translations, repos.Quizzes, d.LLM, d.Audit, d.Logger)
	d.TranslationService = translation.NewService(repos.Manuals, repos.Translations, d.LLM, d.Audit, d.Logger, cfg.LLM.TranslationConcurrency)
	d.StaffService = staff.NewService(repos.Users, d.Identity, d.Audit, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Sessions, d.Repos.Users, d.Logger)

	// a nil *TokenBucket must not become a non-nil Limiter
	var limiter middleware.Limiter
	if d.Redis != nil {
		limiter = ratelimit.NewTokenBucket(d.Redis, cfg.RateLimit, d.Logger)
	}
	d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(limiter, d.Logger)

	var pinger handlers.Pinger
	if d.Redis != nil {
		pinger = d.Redis
	}

	maxUpload := cfg.Media.MaxVideoBytes
	if cfg.Media.MaxImageBytes > maxUpload {
		maxUpload = cfg.Media.MaxImageBytes
	}

	cookies := handlers.NewCookieConfig(cfg.Session)
	d.Handlers = &Handlers{
		Health:    handlers.NewHealthHandler(d.DB.DB, pinger, d.Audit, d.Logger),
		Auth:      handlers.NewAuthHandler(d.AuthService, cookies, d.Logger),
		Locale:    handlers.NewLocaleHandler(cookies, d.Logger),
		Manual:    handlers.NewManualHandler(d.ManualService, d.Logger),
		Media:     handlers.NewMediaHandler(d.MediaService, maxUpload, d.Logger),
		Quiz:      handlers.NewQuizHandler(d.QuizService, d.Logger),
		Staff:     handlers.NewStaffHandler(d.StaffService, d.Logger),
		Translate: handlers.NewTranslateHandler(d.TranslationService, d.Logger),
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// drain audit before closing the pool it writes to
	if d.Audit != nil {
		timeout := 10 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
