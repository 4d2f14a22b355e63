package source

import (
	"sort"
	"sync"
	"time"
)

// Tracker aggregates feedback events into per-source Metrics. It is the
// ingestion side of the metrics lifecycle; the prioritization engine reads
// snapshots and never mutates them.
type Tracker struct {
	mu      sync.RWMutex
	sources map[string]*trackerState
}

type trackerState struct {
	metrics      Metrics
	successes    int64
	ratingSum    float64
	ratingCount  int64
	responseSum  float64
	responseSeen int64
}

// NewTracker creates an empty metrics tracker.
func NewTracker() *Tracker {
	return &Tracker{sources: make(map[string]*trackerState)}
}

// Register seeds calibration values for a source. Feedback-driven fields are
// left to Record.
func (t *Tracker) Register(id string, domain Domain, accuracy, relevance float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(id)
	st.metrics.Domain = domain
	st.metrics.Accuracy = accuracy
	st.metrics.Relevance = relevance
	st.metrics.LastUpdated = time.Now()
}

// Record folds one feedback event into the source's aggregates.
func (t *Tracker) Record(event FeedbackEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(event.SourceID)
	st.metrics.TotalQueries++
	if event.QuerySuccess {
		st.successes++
	}
	st.metrics.Reliability = float64(st.successes) / float64(st.metrics.TotalQueries)
	if event.UserRating > 0 {
		st.ratingSum += event.UserRating
		st.ratingCount++
		st.metrics.UserFeedbackScore = st.ratingSum / float64(st.ratingCount)
	}
	if event.ResponseTime > 0 {
		st.responseSum += event.ResponseTime
		st.responseSeen++
		st.metrics.ResponseTime = st.responseSum / float64(st.responseSeen)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	st.metrics.LastUpdated = ts
}

// Get returns the current metrics for a source.
func (t *Tracker) Get(id string) (Metrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.sources[id]
	if !ok {
		return Metrics{}, false
	}
	return st.metrics, true
}

// Snapshot returns a stable-ordered copy of all tracked metrics.
func (t *Tracker) Snapshot() []Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Metrics, 0, len(t.sources))
	for _, st := range t.sources {
		out = append(out, st.metrics)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (t *Tracker) stateLocked(id string) *trackerState {
	st, ok := t.sources[id]
	if !ok {
		st = &trackerState{metrics: Metrics{SourceID: id, Domain: DomainGeneral}}
		t.sources[id] = st
	}
	return st
}
