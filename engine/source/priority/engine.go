package priority

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/core"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/infra/cache"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/source"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/source/weights"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/config"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/logger"
)

// Result is the computed ranking for one source under one query context.
// Results are computed fresh per request and never persisted.
type Result struct {
	SourceID       string                         `json:"source_id"`
	PriorityScore  float64                        `json:"priority_score"`
	Confidence     float64                        `json:"confidence"`
	Reasoning      []string                       `json:"reasoning"`
	ScoreBreakdown map[weights.MetricName]float64 `json:"score_breakdown"`
}

// ResultCacheSource is the cache manager bucket holding memoized rankings.
const ResultCacheSource = "priority-results"

// Confidence discount factors. Each is 1.0 when the signal is sufficient.
const (
	lowVolumePenalty      = 0.8
	lowReliabilityPenalty = 0.9
	inconsistencyPenalty  = 0.85

	volumeSufficiency      = 100
	reliabilitySufficiency = 0.95
	consistencyFloor       = 50
)

// Engine ranks candidate sources for a query context using the currently
// active weight vector.
type Engine struct {
	weights *weights.Store
	cache   *cache.Manager
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithResultCache hosts short-horizon ranking memoization on the given cache
// manager, registering the ranking bucket with the configured policy.
func WithResultCache(manager *cache.Manager, cfg *config.PriorityConfig) Option {
	return func(e *Engine) {
		if cfg == nil {
			cfg = &config.Default().Priority
		}
		manager.RegisterSource(ResultCacheSource, cache.SourceConfig{
			TTL:        cfg.ResultTTL,
			MaxEntries: cfg.ResultCacheMax,
		})
		e.cache = manager
	}
}

// WithNow overrides the clock used for freshness scoring.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine reading weights from the given store.
func NewEngine(store *weights.Store, opts ...Option) *Engine {
	e := &Engine{weights: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank scores every candidate and returns results sorted by descending
// priority score.
func (e *Engine) Rank(ctx context.Context, sources []source.Metrics, qctx source.QueryContext) []Result {
	active := e.weights.Active()
	results := make([]Result, 0, len(sources))
	for i := range sources {
		results = append(results, e.score(&sources[i], qctx, active.Vector))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].PriorityScore != results[j].PriorityScore {
			return results[i].PriorityScore > results[j].PriorityScore
		}
		return results[i].SourceID < results[j].SourceID
	})
	logger.FromContext(ctx).Debug("sources ranked",
		"candidates", len(sources),
		"weights_version", active.Version)
	return results
}

// RankCached memoizes Rank on the hosting cache manager. Metrics move slowly
// relative to call frequency, so a ranking stays valid for the configured
// horizon. The memo key covers the inputs and the active weights version, so
// an adapted vector is never served a stale ranking.
func (e *Engine) RankCached(ctx context.Context, sources []source.Metrics, qctx source.QueryContext) []Result {
	if e.cache == nil {
		return e.Rank(ctx, sources, qctx)
	}
	key := core.ETagFromAny(map[string]any{
		"sources": sources,
		"context": qctx,
		"weights": e.weights.Active().Version,
	})
	cached, err := e.cache.Get(ctx, key, ResultCacheSource, func(context.Context) (any, error) {
		return e.Rank(ctx, sources, qctx), nil
	})
	if err == nil {
		if results, ok := cached.([]Result); ok {
			return results
		}
	}
	return e.Rank(ctx, sources, qctx)
}

func (e *Engine) score(m *source.Metrics, qctx source.QueryContext, vector weights.Vector) Result {
	breakdown := map[weights.MetricName]float64{
		weights.MetricAccuracy:     clampScore(m.Accuracy),
		weights.MetricRelevance:    e.relevanceScore(m, qctx),
		weights.MetricFreshness:    e.freshnessScore(m.LastUpdated),
		weights.MetricReliability:  clampScore(m.Reliability * 100),
		weights.MetricUserFeedback: clampScore(m.UserFeedbackScore / 5 * 100),
	}
	applyContextModifiers(breakdown, qctx)

	var weighted, totalWeight float64
	for name, score := range breakdown {
		weighted += score * vector[name]
		totalWeight += vector[name]
	}
	priority := 0.0
	if totalWeight > 0 {
		priority = weighted / totalWeight
	}

	return Result{
		SourceID:       m.SourceID,
		PriorityScore:  priority,
		Confidence:     e.confidence(m, breakdown),
		Reasoning:      e.reasoning(m, breakdown),
		ScoreBreakdown: breakdown,
	}
}

// relevanceScore boosts the base relevance with a domain-match bonus and a
// query-complexity multiplier, capped at 100.
func (e *Engine) relevanceScore(m *source.Metrics, qctx source.QueryContext) float64 {
	score := m.Relevance
	if qctx.Domain != "" && m.Domain == qctx.Domain {
		score += 10
	}
	if qctx.Complex {
		score *= 1.1
	}
	return clampScore(score)
}

// freshnessScore is a step function of the metric age.
func (e *Engine) freshnessScore(lastUpdated time.Time) float64 {
	age := e.now().Sub(lastUpdated)
	switch {
	case age <= 24*time.Hour:
		return 100
	case age <= 7*24*time.Hour:
		return 90
	case age <= 30*24*time.Hour:
		return 70
	case age <= 90*24*time.Hour:
		return 50
	default:
		return 30
	}
}

// applyContextModifiers composes the urgency and domain multipliers, then
// caps every sub-score at 100.
func applyContextModifiers(breakdown map[weights.MetricName]float64, qctx source.QueryContext) {
	switch qctx.Urgency {
	case source.UrgencyHigh:
		breakdown[weights.MetricReliability] *= 1.2
		breakdown[weights.MetricFreshness] *= 1.1
	case source.UrgencyLow:
		breakdown[weights.MetricAccuracy] *= 1.1
	}
	switch qctx.Domain {
	case source.DomainRegulatory:
		breakdown[weights.MetricAccuracy] *= 1.2
		breakdown[weights.MetricReliability] *= 1.1
	case source.DomainResearch:
		breakdown[weights.MetricFreshness] *= 1.2
		breakdown[weights.MetricRelevance] *= 1.1
	}
	for name, score := range breakdown {
		breakdown[name] = clampScore(score)
	}
}

// confidence multiplies independent discount factors for query volume,
// reliability and score consistency, scaled to 0-100.
func (e *Engine) confidence(m *source.Metrics, breakdown map[weights.MetricName]float64) float64 {
	factor := 1.0
	if m.TotalQueries <= volumeSufficiency {
		factor *= lowVolumePenalty
	}
	if m.Reliability <= reliabilitySufficiency {
		factor *= lowReliabilityPenalty
	}
	for _, score := range breakdown {
		if score <= consistencyFloor {
			factor *= inconsistencyPenalty
			break
		}
	}
	return factor * 100
}

// reasoning renders the two strongest sub-scores plus fixed notes for fast
// and highly reliable sources.
func (e *Engine) reasoning(m *source.Metrics, breakdown map[weights.MetricName]float64) []string {
	type scored struct {
		name  weights.MetricName
		value float64
	}
	ranked := make([]scored, 0, len(breakdown))
	for name, value := range breakdown {
		ranked = append(ranked, scored{name: name, value: value})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].value != ranked[j].value {
			return ranked[i].value > ranked[j].value
		}
		return ranked[i].name < ranked[j].name
	})

	var notes []string
	for _, s := range ranked[:2] {
		switch {
		case s.value >= 80:
			notes = append(notes, fmt.Sprintf("Excellent %s: %.0f", s.name, s.value))
		case s.value >= 60:
			notes = append(notes, fmt.Sprintf("Good %s: %.0f", s.name, s.value))
		}
	}
	if m.ResponseTime > 0 && m.ResponseTime < 1000 {
		notes = append(notes, "Fast response times")
	}
	if m.Reliability > 0.98 {
		notes = append(notes, "Highly reliable source")
	}
	return notes
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
