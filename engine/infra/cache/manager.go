package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/metric"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/core"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/config"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/logger"
)

// FetchFunc is the caller-supplied upstream lookup executed on a miss. It may
// be slow and may fail; it is always invoked outside the entry store lock.
type FetchFunc func(ctx context.Context) (any, error)

// Manager is the tiered cache: in-memory entry store first, optional
// persistent backing store for sources that opt in, caller-supplied fetch as
// the last resort, with stale data served when the fetch fails.
//
// Known limitation: concurrent misses for the same key are not deduplicated;
// both callers execute the fetch. Acceptable at the target request volume, a
// stricter build would add a per-key in-flight future map.
type Manager struct {
	store          *entryStore
	configs        *ConfigRegistry
	persist        PersistentStore
	metrics        *cacheMetrics
	fetchTimeout   time.Duration
	persistRetries uint64
	now            func() time.Time
	meter          metric.Meter
}

// Option customizes a Manager.
type Option func(*Manager)

// WithPersistentStore attaches the durable backing store used by sources
// configured with Persist.
func WithPersistentStore(ps PersistentStore) Option {
	return func(m *Manager) { m.persist = ps }
}

// WithMeter sets the OTel meter for cache instrumentation.
func WithMeter(meter metric.Meter) Option {
	return func(m *Manager) { m.meter = meter }
}

// WithNow overrides the clock, used by tests to control freshness.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a cache manager owning its own entry store. Each manager
// is fully independent, so tests can run several side by side.
func NewManager(cfg *config.CacheConfig, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = &config.Default().Cache
	}
	m := &Manager{
		store: newEntryStore(),
		configs: NewConfigRegistry(SourceConfig{
			TTL:        cfg.DefaultTTL,
			MaxEntries: cfg.DefaultMaxEntries,
		}),
		fetchTimeout:   cfg.FetchTimeout,
		persistRetries: cfg.PersistRetries,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics, err := newCacheMetrics(m.meter)
	if err != nil {
		return nil, err
	}
	m.metrics = metrics
	return m, nil
}

// RegisterSource sets the cache policy for a source. Sources never registered
// use the default policy.
func (m *Manager) RegisterSource(source string, cfg SourceConfig) {
	m.configs.Register(source, cfg)
}

// Get returns the data cached under (source, key), fetching on a miss.
//
// A fresh in-memory entry is returned without invoking fetch. For persisted
// sources with no entry in memory, a fresh copy from the backing store is
// promoted instead of fetching. On fetch failure a stale entry is served when
// one exists; only when nothing is cached does the failure propagate, as a
// core.Error with code FETCH_FAILED.
func (m *Manager) Get(ctx context.Context, key, source string, fetch FetchFunc) (any, error) {
	log := logger.FromContext(ctx).With("component", "cache_manager", "source", source, "key", key)
	cfg := m.configs.Lookup(source)
	ck := CompositeKey(source, key)

	entry := m.store.Get(ck)
	if entry != nil && entry.IsFresh(m.now()) {
		m.metrics.record(ctx, m.metrics.hits, source)
		return entry.Data, nil
	}

	if entry == nil && cfg.Persist && m.persist != nil {
		promoted, err := m.persist.Read(ctx, ck)
		switch {
		case err == nil && promoted.IsFresh(m.now()):
			m.insert(ctx, promoted, cfg, false, false)
			m.metrics.record(ctx, m.metrics.hits, source)
			log.Debug("promoted entry from backing store")
			return promoted.Data, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			log.Warn("backing store read failed", "error", err)
		}
	}

	m.metrics.record(ctx, m.metrics.misses, source)
	data, err := m.runFetch(ctx, fetch)
	if err != nil {
		if entry != nil {
			m.metrics.record(ctx, m.metrics.staleFallbacks, source)
			log.Warn("fetch failed, serving stale entry",
				"error", err,
				"age", m.now().Sub(entry.Timestamp))
			return entry.Data, nil
		}
		return nil, core.NewError(err, CodeFetchFailed, map[string]any{
			"key":    key,
			"source": source,
		})
	}

	fresh := NewEntry(key, source, data, cfg.TTL, m.now())
	m.insert(ctx, fresh, cfg, entry != nil, cfg.Persist)
	return data, nil
}

// runFetch executes the callback under a hard deadline. A fetch that ignores
// its context still cannot stall the caller past the timeout.
func (m *Manager) runFetch(ctx context.Context, fetch FetchFunc) (any, error) {
	fctx := ctx
	if m.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, m.fetchTimeout)
		defer cancel()
	}
	type fetchResult struct {
		data any
		err  error
	}
	resultCh := make(chan fetchResult, 1)
	go func() {
		data, err := fetch(fctx)
		resultCh <- fetchResult{data: data, err: err}
	}()
	select {
	case res := <-resultCh:
		return res.data, res.err
	case <-fctx.Done():
		return nil, fctx.Err()
	}
}

// insert stores the entry, evicting the globally oldest one when the source
// bucket is full, and optionally writes it to the backing store.
func (m *Manager) insert(ctx context.Context, entry *Entry, cfg SourceConfig, replacing, persist bool) {
	if !replacing && cfg.MaxEntries > 0 && m.store.CountBySource(entry.Source) >= cfg.MaxEntries {
		if evicted, ok := m.store.EvictOldest(); ok {
			m.metrics.record(ctx, m.metrics.evictions, evicted.Source)
			logger.FromContext(ctx).Debug("evicted oldest cache entry",
				"evicted_key", evicted.CompositeKey(),
				"inserting_key", entry.CompositeKey())
		}
	}
	m.store.Put(entry)
	if persist && m.persist != nil {
		m.persistEntry(ctx, entry)
	}
}

// persistEntry writes the entry to the backing store with bounded retries.
// Failures are logged and counted, never propagated: the in-memory path has
// already succeeded.
func (m *Manager) persistEntry(ctx context.Context, entry *Entry) {
	backoff := retry.WithMaxRetries(m.persistRetries, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.persist.Write(ctx, entry); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		m.metrics.record(ctx, m.metrics.persistFailures, entry.Source)
		logger.FromContext(ctx).Warn("backing store write failed",
			"key", entry.CompositeKey(),
			"error", err)
	}
}

// Invalidate removes every entry whose composite key contains the given
// literal substring and returns the number removed. Persisted copies are
// deleted best-effort.
func (m *Manager) Invalidate(ctx context.Context, pattern string) int {
	removed := m.store.DeleteMatching(pattern)
	for _, entry := range removed {
		cfg := m.configs.Lookup(entry.Source)
		if cfg.Persist && m.persist != nil {
			if err := m.persist.Delete(ctx, entry.CompositeKey()); err != nil {
				logger.FromContext(ctx).Warn("backing store delete failed",
					"key", entry.CompositeKey(),
					"error", err)
			}
		}
	}
	if len(removed) > 0 {
		logger.FromContext(ctx).Info("cache invalidated", "pattern", pattern, "removed", len(removed))
	}
	return len(removed)
}

// Clear drops every in-memory entry. The backing store is left untouched.
func (m *Manager) Clear(ctx context.Context) int {
	n := m.store.Clear()
	logger.FromContext(ctx).Info("cache cleared", "removed", n)
	return n
}

// Stats returns a diagnostic snapshot; it has no correctness impact.
func (m *Manager) Stats() Stats {
	return m.store.Snapshot(m.now())
}
