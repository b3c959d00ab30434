// Package store provides the Data Access Layer (Repository) for the Rondo
// application. It handles all direct interactions with the PostgreSQL
// database using the pgx driver.
package store

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/matching"
	"github.com/rondohq/rondo/internal/queue"
	"github.com/rondohq/rondo/internal/validation"
)

// ErrNotFound is returned when a requested record does not exist.
// Callers distinguish it from infrastructure failures with errors.Is.
var ErrNotFound = errors.New("store: record not found")

// Compile-time checks that PostgresStore satisfies every repository
// interface consumed by the insights layer. If an interface changes and
// the struct doesn't, the build fails here.
var (
	_ insights.FormSource       = (*PostgresStore)(nil)
	_ insights.AttributeSource  = (*PostgresStore)(nil)
	_ insights.TeamSource       = (*PostgresStore)(nil)
	_ insights.EventTypeSource  = (*PostgresStore)(nil)
	_ insights.UserSource       = (*PostgresStore)(nil)
	_ insights.BookingSource    = (*PostgresStore)(nil)
	_ matching.AttributeCatalog = (*PostgresStore)(nil)
	_ queue.EventTypeLookup     = (*PostgresStore)(nil)
)

// PostgresStore is the repository implementation backed by PostgreSQL.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a new repository instance with the given
// connection pool. A nil logger falls back to slog.Default().
func NewPostgresStore(db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	validation.AssertNotNil(db, "database pool")
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}
