package weights

import (
	"context"
	"fmt"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/source"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/logger"
)

// Nudge magnitudes applied by the adaptation rules. Deliberately small so
// weight movement stays bounded and explainable.
const (
	nudgeLarge = 0.02
	nudgeSmall = 0.01
)

// Rule thresholds over the aggregated feedback batch.
const (
	lowRatingThreshold  = 3.0
	highRatingThreshold = 4.0
	lowSuccessThreshold = 0.8
)

// Adapter consumes feedback batches and commits adjusted weight vectors.
//
// This is a deterministic heuristic rule table, not a trained model: the rest
// of the system assumes bounded, explainable weight movement per batch.
type Adapter struct {
	store *Store
}

// NewAdapter creates an adapter committing into the given store.
func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

// Store exposes the underlying versioned store.
func (a *Adapter) Store() *Store {
	return a.store
}

// Adapt aggregates the feedback batch, nudges the active vector by the rule
// table, constrains the result so every weight stays in
// [MinWeight, MaxWeight] while summing to 1, and commits it as the new active
// snapshot.
func (a *Adapter) Adapt(ctx context.Context, batch []source.FeedbackEvent) (Snapshot, error) {
	if len(batch) == 0 {
		return Snapshot{}, fmt.Errorf("empty feedback batch")
	}
	avgRating, successRate := aggregate(batch)
	active := a.store.Active()
	next := active.Vector.Clone()

	var applied []string
	if avgRating < lowRatingThreshold {
		next[MetricUserFeedback] += nudgeLarge
		next[MetricAccuracy] -= nudgeSmall
		applied = append(applied, "low_rating")
	} else if avgRating > highRatingThreshold {
		next[MetricAccuracy] += nudgeLarge
		applied = append(applied, "high_rating")
	}
	if successRate < lowSuccessThreshold {
		next[MetricReliability] += nudgeLarge
		next[MetricFreshness] -= nudgeSmall
		applied = append(applied, "low_success")
	}

	next = next.Constrain()
	snapshot := a.store.Commit(next)
	logger.FromContext(ctx).Info("weight vector adapted",
		"version", snapshot.Version,
		"previous_version", active.Version,
		"rules", applied,
		"avg_rating", avgRating,
		"success_rate", successRate,
		"batch_size", len(batch))
	return snapshot, nil
}

func aggregate(batch []source.FeedbackEvent) (avgRating, successRate float64) {
	var ratingSum float64
	var successes int
	for _, event := range batch {
		ratingSum += event.UserRating
		if event.QuerySuccess {
			successes++
		}
	}
	return ratingSum / float64(len(batch)), float64(successes) / float64(len(batch))
}
