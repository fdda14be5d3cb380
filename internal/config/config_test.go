package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/discovery"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv(t *testing.T) {
	t.Run("Should apply defaults for a memory store", func(t *testing.T) {
		cfg, err := FromEnv(env(map[string]string{"STORE": "memory", "JWT_SECRET": "s3cret"}))
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "EUR", cfg.BaseCurrency)
		assert.Equal(t, int64(1000), cfg.PlatformFeeBps)
		assert.Equal(t, discovery.RadiusFilterOnly, cfg.RadiusPolicy)
		assert.Equal(t, "@every 5m", cfg.SweepSchedule)
		assert.Equal(t, 20.0, cfg.SearchRateLimit)
	})

	t.Run("Should assemble the DSN from parts", func(t *testing.T) {
		cfg, err := FromEnv(env(map[string]string{
			"DB_HOST": "db", "DB_USER": "lex", "DB_PASSWORD": "p@ss", "DB_NAME": "lexhub",
			"JWT_SECRET": "x", "RADIUS_POLICY": "combined", "BASE_CURRENCY": "ron",
		}))
		require.NoError(t, err)
		assert.Equal(t, "postgres://lex:p%40ss@db:5432/lexhub", cfg.DSN())
		assert.Equal(t, discovery.RadiusCombined, cfg.RadiusPolicy)
		assert.Equal(t, "RON", cfg.BaseCurrency)
	})

	t.Run("Should prefer DATABASE_URL", func(t *testing.T) {
		cfg, err := FromEnv(env(map[string]string{"DATABASE_URL": "postgres://u@h/d", "JWT_SECRET": "x"}))
		require.NoError(t, err)
		assert.Equal(t, "postgres://u@h/d", cfg.DSN())
	})

	t.Run("Should list every missing variable", func(t *testing.T) {
		_, err := FromEnv(env(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_HOST, DB_NAME, DB_USER, JWT_SECRET")
	})

	t.Run("Should report malformed values", func(t *testing.T) {
		_, err := FromEnv(env(map[string]string{
			"STORE": "memory", "JWT_SECRET": "x",
			"PLATFORM_FEE_BPS": "20000", "RADIUS_POLICY": "both", "SWEEP_SCHEDULE": "soon", "SEARCH_RATE_LIMIT": "-1",
		}))
		require.Error(t, err)
		for _, key := range []string{"PLATFORM_FEE_BPS", "RADIUS_POLICY", "SWEEP_SCHEDULE", "SEARCH_RATE_LIMIT"} {
			assert.Contains(t, err.Error(), key)
		}
	})
}
