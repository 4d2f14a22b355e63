package config

import "time"

// Config is the root application configuration for the data-source cache and
// prioritization engine.
type Config struct {
	Cache    CacheConfig    `koanf:"cache"    validate:"required"`
	Redis    RedisConfig    `koanf:"redis"`
	Monitor  MonitorConfig  `koanf:"monitor"  validate:"required"`
	Priority PriorityConfig `koanf:"priority" validate:"required"`
}

// CacheConfig controls the tiered cache manager defaults. Per-source settings
// are registered at runtime and fall back to these values.
type CacheConfig struct {
	// DefaultTTL applies to entries of sources without an explicit config.
	DefaultTTL time.Duration `koanf:"default_ttl"         validate:"gt=0"`
	// DefaultMaxEntries bounds each unconfigured source bucket.
	DefaultMaxEntries int `koanf:"default_max_entries" validate:"gt=0"`
	// FetchTimeout bounds a single fetch callback invocation.
	FetchTimeout time.Duration `koanf:"fetch_timeout"       validate:"gt=0"`
	// PersistRetries is the number of best-effort retries for backing-store writes.
	PersistRetries uint64 `koanf:"persist_retries"`
}

// RedisConfig holds connection settings for the persistent backing store.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	Host         string        `koanf:"host"`
	Port         string        `koanf:"port"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PingTimeout  time.Duration `koanf:"ping_timeout"`
}

// MonitorConfig controls the source health monitor.
type MonitorConfig struct {
	CheckInterval time.Duration `koanf:"check_interval" validate:"gt=0"`
	// ProbeTimeout is the hard per-source probe deadline within one check.
	ProbeTimeout time.Duration `koanf:"probe_timeout"  validate:"gt=0"`
	// SlowResponseMs marks a source as degraded in its issue list.
	SlowResponseMs float64 `koanf:"slow_response_ms"`
	// ResponseCeilingMs triggers a performance alert on the average response time.
	ResponseCeilingMs float64 `koanf:"response_ceiling_ms"`
	// AlertBufferSize is the per-subscriber alert channel capacity.
	AlertBufferSize int `koanf:"alert_buffer_size" validate:"gt=0"`
}

// PriorityConfig controls the prioritization engine memoization.
type PriorityConfig struct {
	// ResultTTL is the horizon for which a computed ranking stays valid.
	ResultTTL time.Duration `koanf:"result_ttl"        validate:"gt=0"`
	// ResultCacheMax bounds the memoized ranking bucket.
	ResultCacheMax int `koanf:"result_cache_max"  validate:"gt=0"`
}

// Default returns the built-in configuration applied before any overrides.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			DefaultTTL:        time.Hour,
			DefaultMaxEntries: 100,
			FetchTimeout:      30 * time.Second,
			PersistRetries:    3,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        "6379",
			DB:          0,
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
			PingTimeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			CheckInterval:     30 * time.Second,
			ProbeTimeout:      10 * time.Second,
			SlowResponseMs:    2000,
			ResponseCeilingMs: 5000,
			AlertBufferSize:   100,
		},
		Priority: PriorityConfig{
			ResultTTL:      30 * time.Minute,
			ResultCacheMax: 50,
		},
	}
}
