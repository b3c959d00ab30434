package config

import "time"

// SyncerConfig contains configuration for the form syncer worker. The
// worker periodically propagates routing forms from PostgreSQL to the
// Redis cache so the insights API can serve reads without hitting the
// primary database.
type SyncerConfig struct {
	Enabled        bool          `envconfig:"ENABLED" default:"true"`
	Interval       time.Duration `envconfig:"INTERVAL" default:"30s" validate:"gt=0"`
	CycleTimeout   time.Duration `envconfig:"CYCLE_TIMEOUT" default:"20s" validate:"gt=0"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"1s"`
}
