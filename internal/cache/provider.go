package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/observability"
	"github.com/rondohq/rondo/internal/routing"
	"github.com/rondohq/rondo/internal/store"
)

// FormFetcher is the database fallback the provider reads through to.
type FormFetcher interface {
	FormRecordByID(ctx context.Context, id string) (*store.FormRecord, error)
}

// Compile-time check: the provider is the FormSource the insights
// service consumes.
var _ insights.FormSource = (*FormProvider)(nil)

// FormProvider is the read path for routing forms: L1 memory, then the
// Redis L2 the syncer maintains, then PostgreSQL. Redis failures fall
// through to the database instead of failing the request; the cache is
// an optimization, not a dependency.
type FormProvider struct {
	l1     *MemoryCache
	l2     Service
	db     FormFetcher
	logger *slog.Logger
}

// NewFormProvider wires the three read tiers together. L1 and L2 may be
// nil, which disables the corresponding tier.
func NewFormProvider(l1 *MemoryCache, l2 Service, db FormFetcher, logger *slog.Logger) *FormProvider {
	if db == nil {
		panic("cache: form fetcher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FormProvider{l1: l1, l2: l2, db: db, logger: logger}
}

// FormByID resolves a decoded routing form through the tiers.
func (p *FormProvider) FormByID(ctx context.Context, id string) (*routing.Form, error) {
	if p.l1 != nil {
		if form, ok := p.l1.Get(id); ok {
			observability.CacheL1Hits.Inc()
			return form, nil
		}
		observability.CacheL1Misses.Inc()
	}

	if p.l2 != nil {
		rec, err := p.l2.GetForm(ctx, id)
		switch {
		case err == nil:
			observability.CacheL2Hits.Inc()
			return p.decodeAndFill(id, rec)
		case errors.Is(err, ErrMiss):
			observability.CacheL2Misses.Inc()
		default:
			observability.CacheL2Misses.Inc()
			p.logger.Warn("redis form lookup failed, falling back to database",
				slog.String("form_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	rec, err := p.db.FormRecordByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.decodeAndFill(id, rec)
}

func (p *FormProvider) decodeAndFill(id string, rec *store.FormRecord) (*routing.Form, error) {
	form, err := store.DecodeForm(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode form %s: %w", id, err)
	}
	if p.l1 != nil {
		p.l1.Set(id, form)
	}
	return form, nil
}
