package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/manual-share/app"
	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/repositories/postgres"
	"github.com/upb/manual-share/routes"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli carries the state built by the root command for its subcommands
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "manual-share",
		Short:         "Multi-tenant operations manual backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := initLogger(cfg.Observability)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logger.With(zap.String("environment", cfg.Environment))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.migrate(cmd.Context())
		},
	})

	return root
}

// initLogger builds the zap logger described by the observability settings
func initLogger(obs config.ObservabilityConfig) (*zap.Logger, error) {
	level := obs.LogLevel
	if level == "" {
		level = "info"
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zcfg zap.Config
	if obs.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(parsed)

	return zcfg.Build()
}

func (c *cli) serve(ctx context.Context) error {
	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         c.cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = deps.Close(context.Background())
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		c.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("server stopped")
	return errors.Join(errs...)
}

func (c *cli) migrate(ctx context.Context) error {
	factory, err := postgres.NewRepositoryFactory(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer factory.Close()

	if err := factory.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	c.logger.Info("database schema is up to date")
	return nil
}
