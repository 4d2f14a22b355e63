package source

import "time"

// Domain tags a data source or query with its subject area.
type Domain string

const (
	DomainRegulatory Domain = "regulatory"
	DomainResearch   Domain = "research"
	DomainClinical   Domain = "clinical"
	DomainGeneral    Domain = "general"
)

// Urgency expresses how time-critical a query is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Metrics is the per-source measurement record consumed by the prioritization
// engine. Produced and refreshed by the health monitor and feedback ingestion;
// the engine treats it as read-only.
type Metrics struct {
	SourceID string `json:"source_id"`
	Domain   Domain `json:"domain"`
	// Accuracy and Relevance are calibration scores in [0,100].
	Accuracy  float64 `json:"accuracy"`
	Relevance float64 `json:"relevance"`
	// Reliability is the success rate in [0,1].
	Reliability float64 `json:"reliability"`
	// UserFeedbackScore is the average user rating in [0,5].
	UserFeedbackScore float64 `json:"user_feedback_score"`
	// ResponseTime is the rolling average response time in milliseconds.
	ResponseTime float64   `json:"response_time"`
	TotalQueries int64     `json:"total_queries"`
	LastUpdated  time.Time `json:"last_updated"`
}

// QueryContext describes the request a caller wants ranked sources for.
type QueryContext struct {
	Query   string  `json:"query"`
	Domain  Domain  `json:"domain"`
	Urgency Urgency `json:"urgency"`
	// Complex marks multi-faceted queries that favor highly relevant sources.
	Complex bool `json:"complex"`
}

// FeedbackEvent is pushed by the UI layer after each user-visible result.
type FeedbackEvent struct {
	SourceID string `json:"source_id"`
	// UserRating is in [0,5].
	UserRating   float64 `json:"user_rating"`
	QuerySuccess bool    `json:"query_success"`
	// ResponseTime of the answered query in milliseconds.
	ResponseTime float64   `json:"response_time"`
	Timestamp    time.Time `json:"timestamp"`
}
