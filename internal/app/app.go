// Package app wires the service's components together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	api "github.com/avolkov/shortly/internal/api/http"
	"github.com/avolkov/shortly/internal/config"
	dbpostgres "github.com/avolkov/shortly/internal/database/postgres"
	"github.com/avolkov/shortly/internal/service"
	"github.com/avolkov/shortly/internal/shortcode"
	"github.com/avolkov/shortly/pkg/logging"
	"github.com/avolkov/shortly/pkg/postgres"
)

// Run starts the application and blocks until ctx is cancelled or a
// component fails.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	logClient := logging.New(
		cfg.Logging.Endpoint,
		logging.WithToken(cfg.Logging.Token),
		logging.WithSuppressErrors(cfg.Logging.SuppressErrors),
		logging.WithBufferSize(cfg.Logging.BufferSize),
	)

	urlRepo := dbpostgres.NewURLRepository(db)
	urlSvc := service.NewURLService(
		urlRepo,
		shortcode.New(cfg.Shortener.CodeLength),
		logClient,
		cfg.Shortener.DefaultValidityMinutes,
	)

	logger := httplog.NewLogger("shortly", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, urlSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	if cfg.Cleanup.Enabled {
		g.Go(func() error {
			return runCleanup(ctx, urlSvc, logger, cfg.Cleanup.Interval)
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// runCleanup periodically removes expired records until ctx is cancelled.
func runCleanup(ctx context.Context, urlSvc *service.URLService, logger *httplog.Logger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			deleted, err := urlSvc.CleanupExpired(ctx)
			if err != nil {
				logger.Error("expired url cleanup failed", "err", err)
				continue
			}

			if deleted > 0 {
				logger.Info("expired urls removed", "count", deleted)
			}
		}
	}
}
