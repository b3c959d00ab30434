// Package syncer implements the background worker that propagates routing
// forms from PostgreSQL (source of truth) to the Redis form cache the
// insights API reads from.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rondohq/rondo/internal/cache"
	"github.com/rondohq/rondo/internal/config"
	"github.com/rondohq/rondo/internal/observability"
	"github.com/rondohq/rondo/internal/store"
)

// FormLister reads the forms to propagate.
type FormLister interface {
	ListFormRecords(ctx context.Context) ([]*store.FormRecord, error)
}

// Service orchestrates the synchronization process.
type Service struct {
	logger *slog.Logger
	config config.SyncerConfig
	repo   FormLister
	cache  cache.Service
}

// New creates a new Syncer service.
func New(logger *slog.Logger, cfg config.SyncerConfig, repo FormLister, cacheSvc cache.Service) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if repo == nil {
		panic("syncer: form repository cannot be nil")
	}
	if cacheSvc == nil {
		panic("syncer: cache service cannot be nil")
	}

	if cfg.Interval < time.Second {
		cfg.Interval = 10 * time.Second // Safe default
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = cfg.Interval
	}

	return &Service{
		logger: logger,
		config: cfg,
		repo:   repo,
		cache:  cacheSvc,
	}
}

// Run starts the syncer loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting form syncer", slog.String("interval", s.config.Interval.String()))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("form syncer stopping...")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle bounds one sync pass with the cycle timeout and records its
// outcome. Failures are logged, never fatal; the next tick retries.
func (s *Service) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.config.CycleTimeout)
	defer cancel()

	// Each cycle gets an id so its log lines can be correlated.
	cycleLogger := s.logger.With(slog.String("cycle_id", uuid.NewString()))

	if err := s.sync(cycleCtx, cycleLogger); err != nil {
		observability.SyncCycles.WithLabelValues("error").Inc()
		cycleLogger.Error("sync cycle failed", slog.String("error", err.Error()))
		return
	}
	observability.SyncCycles.WithLabelValues("ok").Inc()
}

// sync performs a single synchronization cycle.
func (s *Service) sync(ctx context.Context, log *slog.Logger) error {
	start := time.Now()

	// 1. Read from Source of Truth (Postgres)
	records, err := s.repo.ListFormRecords(ctx)
	if err != nil {
		return err
	}

	// 2. Write to the form cache (Redis), skipping entries whose content
	// fingerprint did not change since the previous cycle. The write still
	// happens for unchanged forms whose cache entry vanished (eviction,
	// flush), because the fingerprint probe comes back absent.
	synced := 0
	unchanged := 0
	errorCount := 0

	for _, rec := range records {
		fingerprint := cache.Fingerprint(rec)

		cached, found, err := s.cache.GetFingerprint(ctx, rec.ID)
		if err != nil {
			log.Warn("failed to probe cached fingerprint",
				slog.String("form_id", rec.ID),
				slog.String("error", err.Error()),
			)
			// Probe failure is not fatal; fall through and attempt the write.
			found = false
		}
		if found && cached == fingerprint {
			unchanged++
			observability.FormsUnchanged.Inc()
			continue
		}

		if err := s.setWithRetry(ctx, log, rec, fingerprint); err != nil {
			log.Warn("failed to sync form",
				slog.String("form_id", rec.ID),
				slog.String("error", err.Error()),
			)
			errorCount++
			continue // Try next form, don't abort entire batch
		}
		synced++
		observability.FormsSynced.Inc()
	}

	if synced > 0 || errorCount > 0 {
		log.Info("sync cycle completed",
			slog.Int("synced", synced),
			slog.Int("unchanged", unchanged),
			slog.Int("errors", errorCount),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return nil
}

// setWithRetry writes one form to the cache, retrying transient failures
// with exponential backoff up to MaxRetries attempts.
func (s *Service) setWithRetry(ctx context.Context, log *slog.Logger, rec *store.FormRecord, fingerprint uint64) error {
	delay := s.config.BaseRetryDelay

	for attempt := 0; ; attempt++ {
		err := s.cache.SetForm(ctx, rec, fingerprint)
		if err == nil {
			return nil
		}
		if attempt >= s.config.MaxRetries || ctx.Err() != nil {
			return err
		}

		log.Warn("failed to write form, retrying...",
			slog.String("form_id", rec.ID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
}
