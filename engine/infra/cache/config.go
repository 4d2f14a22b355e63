package cache

import (
	"sync"
	"time"
)

// SourceConfig is the per-source cache policy. Unconfigured sources fall back
// to the registry default, so an unknown source is never an error.
type SourceConfig struct {
	TTL        time.Duration `json:"ttl"`
	MaxEntries int           `json:"max_entries"`
	Persist    bool          `json:"persist"`
}

// ConfigRegistry maps source identifiers to their cache policy with an
// explicit default fallback.
type ConfigRegistry struct {
	mu       sync.RWMutex
	configs  map[string]SourceConfig
	fallback SourceConfig
}

// NewConfigRegistry creates a registry with the given default policy.
func NewConfigRegistry(fallback SourceConfig) *ConfigRegistry {
	return &ConfigRegistry{
		configs:  make(map[string]SourceConfig),
		fallback: fallback,
	}
}

// Register sets the policy for a source, replacing any previous one.
func (r *ConfigRegistry) Register(source string, cfg SourceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[source] = cfg
}

// Lookup returns the policy for a source, or the default when unconfigured.
func (r *ConfigRegistry) Lookup(source string) SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cfg, ok := r.configs[source]; ok {
		return cfg
	}
	return r.fallback
}

// Default returns the fallback policy.
func (r *ConfigRegistry) Default() SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}
