package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	cacheHitsMetric            = "datacache_hits_total"
	cacheMissesMetric          = "datacache_misses_total"
	cacheEvictionsMetric       = "datacache_evictions_total"
	cacheStaleFallbacksMetric  = "datacache_stale_fallbacks_total"
	cachePersistFailuresMetric = "datacache_persist_failures_total"

	labelSource = "source"
)

type cacheMetrics struct {
	hits            metric.Int64Counter
	misses          metric.Int64Counter
	evictions       metric.Int64Counter
	staleFallbacks  metric.Int64Counter
	persistFailures metric.Int64Counter
}

func createInt64Counter(meter metric.Meter, name, description string) (metric.Int64Counter, error) {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create counter %q: %w", name, err)
	}
	return counter, nil
}

// newCacheMetrics builds the instrument set. A nil meter falls back to the
// global provider, which is a no-op unless an SDK is installed.
func newCacheMetrics(meter metric.Meter) (*cacheMetrics, error) {
	if meter == nil {
		meter = otel.Meter("pharma-conecta/datacache")
	}
	m := &cacheMetrics{}
	var err error
	if m.hits, err = createInt64Counter(meter, cacheHitsMetric, "Cache hits served from fresh entries"); err != nil {
		return nil, err
	}
	if m.misses, err = createInt64Counter(meter, cacheMissesMetric, "Cache misses that invoked the fetch callback"); err != nil {
		return nil, err
	}
	if m.evictions, err = createInt64Counter(meter, cacheEvictionsMetric, "Entries evicted by the age-based policy"); err != nil {
		return nil, err
	}
	if m.staleFallbacks, err = createInt64Counter(meter, cacheStaleFallbacksMetric, "Stale entries served after a fetch failure"); err != nil {
		return nil, err
	}
	if m.persistFailures, err = createInt64Counter(meter, cachePersistFailuresMetric, "Best-effort backing store writes that failed"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) record(ctx context.Context, counter metric.Int64Counter, source string) {
	if m == nil || counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String(labelSource, source)))
}
