package config

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Load(t *testing.T) {
	t.Run("Should load defaults when no sources given", func(t *testing.T) {
		svc := NewService()
		cfg, err := svc.Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
		assert.Equal(t, 100, cfg.Cache.DefaultMaxEntries)
		assert.Equal(t, 30*time.Second, cfg.Monitor.CheckInterval)
		assert.Equal(t, 10*time.Second, cfg.Monitor.ProbeTimeout)
		assert.Equal(t, 30*time.Minute, cfg.Priority.ResultTTL)
	})

	t.Run("Should apply map source overrides on top of defaults", func(t *testing.T) {
		svc := NewService()
		cfg, err := svc.Load(t.Context(), NewMapProvider(map[string]any{
			"cache.default_ttl":     "2h",
			"monitor.probe_timeout": "5s",
		}))
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, cfg.Cache.DefaultTTL)
		assert.Equal(t, 5*time.Second, cfg.Monitor.ProbeTimeout)
		// Untouched values keep their defaults
		assert.Equal(t, 100, cfg.Cache.DefaultMaxEntries)
	})

	t.Run("Should apply environment overrides with the highest precedence", func(t *testing.T) {
		t.Setenv("PHARMA_CACHE_DEFAULT_MAX_ENTRIES", "7")
		svc := NewService()
		cfg, err := svc.Load(t.Context(), NewEnvProvider())
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Cache.DefaultMaxEntries)
	})

	t.Run("Should reject invalid configuration", func(t *testing.T) {
		svc := NewService()
		_, err := svc.Load(t.Context(), NewMapProvider(map[string]any{
			"cache.default_max_entries": 0,
		}))
		assert.Error(t, err)
	})

	t.Run("Should expose the last loaded config via Get", func(t *testing.T) {
		svc := NewService()
		cfg, err := svc.Load(t.Context())
		require.NoError(t, err)
		assert.Same(t, cfg, svc.Get())
	})

	t.Run("Should serve consistent snapshots while reloading concurrently", func(t *testing.T) {
		svc := NewService()
		_, err := svc.Load(t.Context())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, loadErr := svc.Load(context.Background(), NewMapProvider(map[string]any{
					"cache.default_ttl": "2h",
				}))
				assert.NoError(t, loadErr)
			}()
			go func() {
				defer wg.Done()
				// Every snapshot is fully built and validated.
				if cfg := svc.Get(); assert.NotNil(t, cfg) {
					assert.Positive(t, cfg.Cache.DefaultMaxEntries)
				}
			}()
		}
		wg.Wait()
	})
}

func TestTransformEnvKey(t *testing.T) {
	t.Run("Should map section prefix to dotted path", func(t *testing.T) {
		assert.Equal(t, "cache.default_ttl", transformEnvKey("CACHE_DEFAULT_TTL"))
		assert.Equal(t, "monitor.alert_buffer_size", transformEnvKey("MONITOR_ALERT_BUFFER_SIZE"))
		assert.Equal(t, "redis.url", transformEnvKey("REDIS_URL"))
		assert.Equal(t, "cache", transformEnvKey("CACHE"))
		assert.Equal(t, "", transformEnvKey("_"))
	})
}
