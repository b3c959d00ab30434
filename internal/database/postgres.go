// Package database provides the PostgreSQL connection factory and pool
// instrumentation.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rondohq/rondo/internal/config"
	"github.com/rondohq/rondo/internal/observability"
)

// NewPostgresPool initializes a PostgreSQL connection pool from config.
// It returns the pool directly, allowing the caller to manage the lifecycle via Dependency Injection.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	// 1. Parse the configuration string
	poolCfg, parseErr := pgxpool.ParseConfig(cfg.ConnectionString())
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", parseErr)
	}

	// 2. Configure settings (Pool Tuning)
	// MaxConns prevents the app from starving the DB (connection exhaustion).
	// MinConns keeps some connections warm to reduce latency for new requests.
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	// 3. Create the pool with a short timeout for fail-fast behavior
	initCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(initCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 4. Verify connection (Ping) with retries; the database may still be
	// starting when the service comes up.
	if err := pingWithRetry(ctx, pool, cfg.PingMaxRetries, cfg.PingBackoff); err != nil {
		pool.Close() // Clean up if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("successfully connected to PostgreSQL")
	return pool, nil
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool, maxRetries int, backoff time.Duration) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < maxRetries {
			slog.Warn("database ping failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// RunPoolMonitor periodically samples pool statistics into Prometheus
// gauges. It blocks until the context is cancelled, so run it in its own
// goroutine.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stat()
			observability.DBPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns()))
			observability.DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
			observability.DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
			observability.DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
			observability.DBPoolAcquireCount.Set(float64(stats.AcquireCount()))
			observability.DBPoolAcquireDuration.Set(stats.AcquireDuration().Seconds())
			observability.DBPoolWaitCount.Set(float64(stats.EmptyAcquireCount()))
		}
	}
}
