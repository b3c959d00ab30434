package config

import "time"

// CacheConfig configures the two-level routing-form cache: a small
// in-process L1 in front of the shared Redis L2 the syncer populates.
type CacheConfig struct {
	// L1MaxEntries caps the in-memory cache size (number of forms).
	L1MaxEntries int `envconfig:"L1_MAX_ENTRIES" default:"10000" validate:"min=1"`

	// L1TTL bounds local staleness relative to the Redis copy.
	L1TTL time.Duration `envconfig:"L1_TTL" default:"30s" validate:"gt=0"`

	// L2TTL expires Redis entries the syncer stopped refreshing
	// (deleted forms age out instead of lingering forever).
	L2TTL time.Duration `envconfig:"L2_TTL" default:"10m" validate:"gt=0"`

	// KeyPrefix namespaces the Redis keys.
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"rondo:forms:"`
}
