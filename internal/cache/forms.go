// Package cache provides the caching layer for routing forms. It
// abstracts the Redis L2 cache the syncer populates, the in-process L1
// in front of it, and the read-through provider the insights service
// consumes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spaolacci/murmur3"

	"github.com/rondohq/rondo/internal/config"
	"github.com/rondohq/rondo/internal/store"
)

// ErrMiss is returned when a form is not present in the cache.
var ErrMiss = errors.New("cache: miss")

// Hash field names of one cached form entry.
const (
	fieldPayload     = "payload"
	fieldFingerprint = "fingerprint"
)

// Fingerprint computes a stable 64-bit content hash of a form record.
// The syncer compares it against the cached value to skip Redis writes
// for forms that did not change since the previous cycle.
func Fingerprint(rec *store.FormRecord) uint64 {
	h := murmur3.New64()
	h.Write([]byte(rec.ID))
	h.Write([]byte(rec.Name))
	h.Write(rec.Fields)
	h.Write(rec.Routes)
	return h.Sum64()
}

// Service defines the L2 form cache operations.
// This interface allows for dependency injection and mocking in tests.
type Service interface {
	// SetForm stores the serialized form record and its fingerprint.
	SetForm(ctx context.Context, rec *store.FormRecord, fingerprint uint64) error

	// GetForm retrieves a cached form record. Returns ErrMiss when absent.
	GetForm(ctx context.Context, id string) (*store.FormRecord, error)

	// GetFingerprint returns the stored fingerprint of a form, with found
	// reporting whether any entry exists.
	GetFingerprint(ctx context.Context, id string) (fingerprint uint64, found bool, err error)

	// HealthCheck pings the redis server to ensure connectivity.
	HealthCheck(ctx context.Context) error

	// Close terminates the connection.
	Close() error
}

// RedisFormCache implements Service using the go-redis library. Each form
// is stored as a hash holding the JSON payload and its fingerprint, under
// a TTL so deleted forms age out once the syncer stops refreshing them.
type RedisFormCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisFormCache wraps an existing client with the cache settings.
func NewRedisFormCache(client *redis.Client, cfg *config.CacheConfig) *RedisFormCache {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &RedisFormCache{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.L2TTL,
	}
}

func (c *RedisFormCache) key(id string) string {
	return c.prefix + id
}

// SetForm writes payload and fingerprint atomically and refreshes the TTL.
func (c *RedisFormCache) SetForm(ctx context.Context, rec *store.FormRecord, fingerprint uint64) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize form %s: %w", rec.ID, err)
	}

	key := c.key(rec.ID)

	// Pipeline keeps HSET and EXPIRE in one round trip.
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		fieldPayload:     payload,
		fieldFingerprint: strconv.FormatUint(fingerprint, 10),
	})
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache form %s: %w", rec.ID, err)
	}

	return nil
}

// GetForm retrieves and deserializes a cached form record.
func (c *RedisFormCache) GetForm(ctx context.Context, id string) (*store.FormRecord, error) {
	payload, err := c.client.HGet(ctx, c.key(id), fieldPayload).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read cached form %s: %w", id, err)
	}

	var rec store.FormRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached form %s: %w", id, err)
	}

	return &rec, nil
}

// GetFingerprint reads only the fingerprint field.
func (c *RedisFormCache) GetFingerprint(ctx context.Context, id string) (uint64, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(id), fieldFingerprint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read fingerprint of form %s: %w", id, err)
	}

	fingerprint, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		// A corrupt fingerprint is treated as absent so the syncer
		// rewrites the entry.
		return 0, false, nil
	}

	return fingerprint, true, nil
}

// HealthCheck verifies the connection to the Redis server.
func (c *RedisFormCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *RedisFormCache) Close() error {
	return c.client.Close()
}
