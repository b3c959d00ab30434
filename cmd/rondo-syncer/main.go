// Package main initializes and runs the Rondo form syncer worker.
//
// The worker periodically propagates routing forms from PostgreSQL to the
// Redis cache the insights API reads from, skipping forms whose content
// fingerprint did not change.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rondohq/rondo/internal/cache"
	"github.com/rondohq/rondo/internal/config"
	"github.com/rondohq/rondo/internal/database"
	"github.com/rondohq/rondo/internal/logger"
	"github.com/rondohq/rondo/internal/observability"
	"github.com/rondohq/rondo/internal/store"
	"github.com/rondohq/rondo/internal/syncer"
)

const poolMonitorInterval = 15 * time.Second

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the worker lifecycle.
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

	if !cfg.Syncer.Enabled {
		appLogger.Info("form syncer is disabled by configuration, exiting")
		return nil
	}

	appLogger.Info("starting form syncer worker",
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Infrastructure Setup
	// -------------------------------------------------------------------------
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	go database.RunPoolMonitor(ctx, pool, poolMonitorInterval)

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	// -------------------------------------------------------------------------
	// 3. Wiring (Dependency Injection)
	// -------------------------------------------------------------------------
	repo := store.NewPostgresStore(pool, appLogger)
	formCache := cache.NewRedisFormCache(redisClient, &cfg.Cache)
	worker := syncer.New(appLogger, cfg.Syncer, repo, formCache)

	// -------------------------------------------------------------------------
	// 4. Observability Server (probes + metrics on a dedicated port)
	// -------------------------------------------------------------------------
	obsServer := observability.NewServer(appLogger, &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(redisClient),
	)
	obsServer.Start()

	// -------------------------------------------------------------------------
	// 5. Run Loop & Shutdown
	// -------------------------------------------------------------------------
	// Run blocks until the context is cancelled by a signal.
	err = worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if obsErr := obsServer.Shutdown(shutdownCtx); obsErr != nil {
		appLogger.Warn("observability server shutdown failed", slog.String("error", obsErr.Error()))
	}

	if err != nil {
		return fmt.Errorf("syncer stopped with error: %w", err)
	}
	appLogger.Info("worker exited successfully")
	return nil
}
