package priority

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/infra/cache"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/source"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/source/weights"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/config"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/logger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(context.Background(), logger.NewForTests())
}

func strongMetrics(id string, clock *fakeClock) source.Metrics {
	return source.Metrics{
		SourceID:          id,
		Domain:            source.DomainGeneral,
		Accuracy:          90,
		Relevance:         80,
		Reliability:       0.95,
		UserFeedbackScore: 4.5,
		ResponseTime:      800,
		TotalQueries:      500,
		LastUpdated:       clock.Now(),
	}
}

func TestEngineRank(t *testing.T) {
	t.Run("Should compute the weighted priority score under default weights", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		results := engine.Rank(testContext(t), []source.Metrics{strongMetrics("anvisa", clock)}, source.QueryContext{})
		require.Len(t, results, 1)

		// 90*.25 + 80*.30 + 100*.20 + 95*.15 + 90*.10
		assert.InDelta(t, 89.75, results[0].PriorityScore, 1e-9)
		assert.InDelta(t, 90, results[0].ScoreBreakdown[weights.MetricAccuracy], 1e-9)
		assert.InDelta(t, 80, results[0].ScoreBreakdown[weights.MetricRelevance], 1e-9)
		assert.InDelta(t, 100, results[0].ScoreBreakdown[weights.MetricFreshness], 1e-9)
		assert.InDelta(t, 95, results[0].ScoreBreakdown[weights.MetricReliability], 1e-9)
		assert.InDelta(t, 90, results[0].ScoreBreakdown[weights.MetricUserFeedback], 1e-9)
	})

	t.Run("Should rank a source with higher accuracy strictly above an otherwise identical one", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		better := strongMetrics("better", clock)
		worse := strongMetrics("worse", clock)
		better.Accuracy = 95
		worse.Accuracy = 85

		results := engine.Rank(testContext(t), []source.Metrics{worse, better}, source.QueryContext{})
		require.Len(t, results, 2)
		assert.Equal(t, "better", results[0].SourceID)
		assert.Greater(t, results[0].PriorityScore, results[1].PriorityScore)
	})

	t.Run("Should break score ties deterministically by source id", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		results := engine.Rank(testContext(t), []source.Metrics{
			strongMetrics("zeta", clock),
			strongMetrics("alpha", clock),
		}, source.QueryContext{})
		require.Len(t, results, 2)
		assert.Equal(t, "alpha", results[0].SourceID)
		assert.Equal(t, "zeta", results[1].SourceID)
	})

	t.Run("Should return an empty result set for no candidates", func(t *testing.T) {
		engine := NewEngine(weights.NewStore())
		assert.Empty(t, engine.Rank(testContext(t), nil, source.QueryContext{}))
	})
}

func TestFreshnessScore(t *testing.T) {
	clock := newFakeClock()
	engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

	cases := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"updated within a day", 6 * time.Hour, 100},
		{"updated within a week", 3 * 24 * time.Hour, 90},
		{"updated within a month", 20 * 24 * time.Hour, 70},
		{"updated within a quarter", 60 * 24 * time.Hour, 50},
		{"older than a quarter", 200 * 24 * time.Hour, 30},
	}
	for _, tc := range cases {
		t.Run("Should score a source "+tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, engine.freshnessScore(clock.Now().Add(-tc.age)), 1e-9)
		})
	}
}

func TestContextModifiers(t *testing.T) {
	t.Run("Should grant the domain match bonus to relevance", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Domain = source.DomainClinical
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{Domain: source.DomainClinical})
		require.Len(t, results, 1)
		assert.InDelta(t, 90, results[0].ScoreBreakdown[weights.MetricRelevance], 1e-9)
	})

	t.Run("Should boost relevance for complex queries", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{Complex: true})
		require.Len(t, results, 1)
		assert.InDelta(t, 88, results[0].ScoreBreakdown[weights.MetricRelevance], 1e-9)
	})

	t.Run("Should favor reliability and freshness under high urgency", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Reliability = 0.70
		m.LastUpdated = clock.Now().Add(-20 * 24 * time.Hour)
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{Urgency: source.UrgencyHigh})
		require.Len(t, results, 1)
		assert.InDelta(t, 84, results[0].ScoreBreakdown[weights.MetricReliability], 1e-9)
		assert.InDelta(t, 77, results[0].ScoreBreakdown[weights.MetricFreshness], 1e-9)
	})

	t.Run("Should favor accuracy under low urgency", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Accuracy = 70
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{Urgency: source.UrgencyLow})
		require.Len(t, results, 1)
		assert.InDelta(t, 77, results[0].ScoreBreakdown[weights.MetricAccuracy], 1e-9)
	})

	t.Run("Should favor accuracy and reliability for regulatory queries", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Accuracy = 70
		m.Reliability = 0.80
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{Domain: source.DomainRegulatory})
		require.Len(t, results, 1)
		assert.InDelta(t, 84, results[0].ScoreBreakdown[weights.MetricAccuracy], 1e-9)
		assert.InDelta(t, 88, results[0].ScoreBreakdown[weights.MetricReliability], 1e-9)
	})

	t.Run("Should favor freshness and relevance for research queries", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("pubmed", clock)
		m.Relevance = 70
		m.LastUpdated = clock.Now().Add(-3 * 24 * time.Hour)
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{Domain: source.DomainResearch})
		require.Len(t, results, 1)
		assert.InDelta(t, 100, results[0].ScoreBreakdown[weights.MetricFreshness], 1e-9)
		assert.InDelta(t, 77, results[0].ScoreBreakdown[weights.MetricRelevance], 1e-9)
	})

	t.Run("Should cap every sub-score at 100 after modifiers", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Accuracy = 98
		m.Reliability = 0.99
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{
			Domain:  source.DomainRegulatory,
			Urgency: source.UrgencyHigh,
		})
		require.Len(t, results, 1)
		for name, score := range results[0].ScoreBreakdown {
			assert.LessOrEqualf(t, score, 100.0, "sub-score %s exceeds cap", name)
		}
	})
}

func TestConfidence(t *testing.T) {
	t.Run("Should discount confidence for low query volume", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Reliability = 0.97
		m.TotalQueries = 40
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.InDelta(t, 80, results[0].Confidence, 1e-9)
	})

	t.Run("Should discount confidence for marginal reliability", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.InDelta(t, 90, results[0].Confidence, 1e-9)
	})

	t.Run("Should discount confidence when a sub-score is weak", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Reliability = 0.97
		m.UserFeedbackScore = 2.0
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.InDelta(t, 85, results[0].Confidence, 1e-9)
	})

	t.Run("Should report full confidence when every signal is sufficient", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Reliability = 0.97
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.InDelta(t, 100, results[0].Confidence, 1e-9)
	})
}

func TestReasoning(t *testing.T) {
	t.Run("Should render the two strongest sub-scores with fixed notes", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := strongMetrics("anvisa", clock)
		m.Reliability = 0.99
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.Equal(t, []string{
			"Excellent freshness: 100",
			"Excellent reliability: 99",
			"Fast response times",
			"Highly reliable source",
		}, results[0].Reasoning)
	})

	t.Run("Should label mid-range sub-scores as good", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := source.Metrics{
			SourceID:          "fallback",
			Domain:            source.DomainGeneral,
			Accuracy:          65,
			Relevance:         55,
			Reliability:       0.60,
			UserFeedbackScore: 2.5,
			ResponseTime:      4000,
			TotalQueries:      500,
			LastUpdated:       clock.Now().Add(-3 * 24 * time.Hour),
		}
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.Equal(t, []string{
			"Excellent freshness: 90",
			"Good accuracy: 65",
		}, results[0].Reasoning)
	})

	t.Run("Should omit labels when no sub-score reaches the threshold", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		m := source.Metrics{
			SourceID:          "weak",
			Domain:            source.DomainGeneral,
			Accuracy:          40,
			Relevance:         35,
			Reliability:       0.30,
			UserFeedbackScore: 1.0,
			ResponseTime:      6000,
			TotalQueries:      10,
			LastUpdated:       clock.Now().Add(-200 * 24 * time.Hour),
		}
		results := engine.Rank(testContext(t), []source.Metrics{m}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.Empty(t, results[0].Reasoning)
	})
}

func TestRankCached(t *testing.T) {
	t.Run("Should memoize identical rankings on the hosting cache", func(t *testing.T) {
		clock := newFakeClock()
		manager, err := cache.NewManager(nil, cache.WithNow(clock.Now))
		require.NoError(t, err)
		store := weights.NewStore()
		engine := NewEngine(store,
			WithNow(clock.Now),
			WithResultCache(manager, &config.Default().Priority))

		sources := []source.Metrics{strongMetrics("anvisa", clock), strongMetrics("fda", clock)}
		first := engine.RankCached(testContext(t), sources, source.QueryContext{})
		second := engine.RankCached(testContext(t), sources, source.QueryContext{})
		assert.Equal(t, first, second)
		assert.Equal(t, 1, manager.Stats().Valid)
	})

	t.Run("Should key memoized rankings on the active weights version", func(t *testing.T) {
		clock := newFakeClock()
		manager, err := cache.NewManager(nil, cache.WithNow(clock.Now))
		require.NoError(t, err)
		store := weights.NewStore()
		engine := NewEngine(store,
			WithNow(clock.Now),
			WithResultCache(manager, &config.Default().Priority))

		sources := []source.Metrics{strongMetrics("anvisa", clock)}
		engine.RankCached(testContext(t), sources, source.QueryContext{})

		vector := store.Active().Vector.Clone()
		vector[weights.MetricAccuracy] = 0.30
		vector[weights.MetricRelevance] = 0.25
		store.Commit(vector)

		engine.RankCached(testContext(t), sources, source.QueryContext{})
		assert.Equal(t, 2, manager.Stats().Valid)
	})

	t.Run("Should rank directly when no result cache is configured", func(t *testing.T) {
		clock := newFakeClock()
		engine := NewEngine(weights.NewStore(), WithNow(clock.Now))

		results := engine.RankCached(testContext(t), []source.Metrics{strongMetrics("anvisa", clock)}, source.QueryContext{})
		require.Len(t, results, 1)
		assert.InDelta(t, 89.75, results[0].PriorityScore, 1e-9)
	})
}
