package cache

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/rondohq/rondo/internal/routing"
)

// MemoryCache acts as the L1 caching layer for decoded forms using a
// high-performance, contention-free algorithm (S3-FIFO) provided by the
// 'otter' library.
type MemoryCache struct {
	store otter.Cache[string, *routing.Form]
}

// NewMemoryCache initializes the in-memory cache with strict limits.
// capacity: Max number of items (Hard Cap to prevent OOM).
// ttl: Time-To-Live for items (bounds staleness relative to Redis).
func NewMemoryCache(capacity int, ttl time.Duration) (*MemoryCache, error) {
	builder := otter.MustBuilder[string, *routing.Form](capacity).
		WithTTL(ttl)

	cache, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return &MemoryCache{store: cache}, nil
}

// Get retrieves a form from memory.
// Returns the form and a boolean indicating if it was found.
func (c *MemoryCache) Get(id string) (*routing.Form, bool) {
	return c.store.Get(id)
}

// Set adds or updates a form in memory.
// The TTL configured in NewMemoryCache is applied automatically.
func (c *MemoryCache) Set(id string, form *routing.Form) {
	c.store.Set(id, form)
}

// Del removes a form from memory.
func (c *MemoryCache) Del(id string) {
	c.store.Delete(id)
}

// Close gracefully shuts down the cache and its background cleanup goroutines.
func (c *MemoryCache) Close() {
	c.store.Close()
}
