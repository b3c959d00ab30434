// Package main initializes and runs the Rondo insights API service.
//
// It acts as the composition root for the REST read path, wiring the
// PostgreSQL repository, the two-level form cache, the insights engine
// and the HTTP server, and handling the process lifecycle.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rondohq/rondo/internal/cache"
	"github.com/rondohq/rondo/internal/config"
	"github.com/rondohq/rondo/internal/database"
	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/insightsapi"
	"github.com/rondohq/rondo/internal/logger"
	"github.com/rondohq/rondo/internal/matching"
	"github.com/rondohq/rondo/internal/observability"
	"github.com/rondohq/rondo/internal/queue"
	"github.com/rondohq/rondo/internal/store"
)

// poolMonitorInterval is how often pgx pool statistics are sampled into
// the Prometheus gauges.
const poolMonitorInterval = 15 * time.Second

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the service lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.New(&cfg.App)
	slog.SetDefault(appLogger)

	appLogger.Info("starting insights api service",
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Root context cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Infrastructure Setup
	// -------------------------------------------------------------------------

	// PostgreSQL (source of truth)
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	go database.RunPoolMonitor(ctx, pool, poolMonitorInterval)

	// Redis (L2 form cache)
	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	// -------------------------------------------------------------------------
	// 3. Wiring (Dependency Injection)
	// -------------------------------------------------------------------------
	repo := store.NewPostgresStore(pool, appLogger)

	l1, err := cache.NewMemoryCache(cfg.Cache.L1MaxEntries, cfg.Cache.L1TTL)
	if err != nil {
		return fmt.Errorf("failed to create in-memory cache: %w", err)
	}
	l2 := cache.NewRedisFormCache(redisClient, &cfg.Cache)
	forms := cache.NewFormProvider(l1, l2, repo, appLogger)

	engine := insights.New(insights.Deps{
		Forms:      forms,
		Attributes: repo,
		Teams:      repo,
		Events:     repo,
		Users:      repo,
		Bookings:   repo,
		Builder:    queue.New(repo, appLogger),
		Matcher:    matching.New(repo, appLogger),
		Logger:     appLogger,
	})

	// Authentication is skipped only when no key hash is configured, which
	// config validation forbids in production.
	skipAuth := cfg.API.APIKeyHash == ""
	if skipAuth {
		appLogger.Warn("api key authentication is disabled; configure RONDO_API_API_KEY_HASH")
	}
	api := insightsapi.NewAPIWithConfig(engine, cfg.API.APIKeyHash, skipAuth)

	// -------------------------------------------------------------------------
	// 4. Observability Server (probes + metrics on a dedicated port)
	// -------------------------------------------------------------------------
	obsServer := observability.NewServer(appLogger, &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(redisClient),
	)
	obsServer.Start()

	// -------------------------------------------------------------------------
	// 5. HTTP Server
	// -------------------------------------------------------------------------
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.Router,
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadHeaderTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		MaxHeaderBytes:    cfg.API.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		appLogger.Info("http server listening", slog.String("addr", addr), slog.Bool("tls", cfg.API.TLSEnabled))

		var err error
		if cfg.API.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.API.TLSCert, cfg.API.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 6. Graceful Shutdown
	// -------------------------------------------------------------------------
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		appLogger.Info("shutdown signal received, stopping http server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("observability server shutdown failed", slog.String("error", err.Error()))
	}

	appLogger.Info("service exited successfully")
	return nil
}
