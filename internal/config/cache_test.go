package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should verify cache defaults",
			envVars: mergeEnvVars(map[string]string{}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10000, cfg.Cache.L1MaxEntries)
				assert.Equal(t, 30*time.Second, cfg.Cache.L1TTL)
				assert.Equal(t, 10*time.Minute, cfg.Cache.L2TTL)
				assert.Equal(t, "rondo:forms:", cfg.Cache.KeyPrefix)
			},
			wantErr: false,
		},
		{
			name: "Should load custom cache settings",
			envVars: mergeEnvVars(map[string]string{
				"RONDO_CACHE_L1_MAX_ENTRIES": "500",
				"RONDO_CACHE_L1_TTL":         "5s",
				"RONDO_CACHE_L2_TTL":         "1h",
				"RONDO_CACHE_KEY_PREFIX":     "custom:forms:",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 500, cfg.Cache.L1MaxEntries)
				assert.Equal(t, 5*time.Second, cfg.Cache.L1TTL)
				assert.Equal(t, time.Hour, cfg.Cache.L2TTL)
				assert.Equal(t, "custom:forms:", cfg.Cache.KeyPrefix)
			},
			wantErr: false,
		},
		{
			name: "Should fail validation when L1 size is zero",
			envVars: mergeEnvVars(map[string]string{
				"RONDO_CACHE_L1_MAX_ENTRIES": "0",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when L2 TTL is zero",
			envVars: mergeEnvVars(map[string]string{
				"RONDO_CACHE_L2_TTL": "0s",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
