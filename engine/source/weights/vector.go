package weights

// MetricName identifies one of the scored dimensions.
type MetricName string

const (
	MetricAccuracy     MetricName = "accuracy"
	MetricRelevance    MetricName = "relevance"
	MetricFreshness    MetricName = "freshness"
	MetricReliability  MetricName = "reliability"
	MetricUserFeedback MetricName = "userFeedback"
)

// MetricNames lists the scored dimensions in canonical order.
var MetricNames = []MetricName{
	MetricAccuracy,
	MetricRelevance,
	MetricFreshness,
	MetricReliability,
	MetricUserFeedback,
}

// Bounds every individual weight must stay within after adaptation.
const (
	MinWeight = 0.05
	MaxWeight = 0.5
)

// Vector maps each metric to its non-negative weight. Committed vectors are
// normalized so the weights sum to 1.
type Vector map[MetricName]float64

// DefaultVector returns the initial scoring configuration.
func DefaultVector() Vector {
	return Vector{
		MetricAccuracy:     0.25,
		MetricRelevance:    0.30,
		MetricFreshness:    0.20,
		MetricReliability:  0.15,
		MetricUserFeedback: 0.10,
	}
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for name, weight := range v {
		out[name] = weight
	}
	return out
}

// Sum returns the total weight mass.
func (v Vector) Sum() float64 {
	total := 0.0
	for _, weight := range v {
		total += weight
	}
	return total
}

// Clamp returns a copy with every weight forced into [MinWeight, MaxWeight].
func (v Vector) Clamp() Vector {
	out := v.Clone()
	for name, weight := range out {
		if weight < MinWeight {
			out[name] = MinWeight
		} else if weight > MaxWeight {
			out[name] = MaxWeight
		}
	}
	return out
}

// Normalize returns a copy rescaled to sum to 1. A degenerate zero-sum vector
// falls back to the default.
func (v Vector) Normalize() Vector {
	total := v.Sum()
	if total <= 0 {
		return DefaultVector()
	}
	out := make(Vector, len(v))
	for name, weight := range v {
		out[name] = weight / total
	}
	return out
}

// Constrain returns a copy satisfying both invariants at once: every weight
// in [MinWeight, MaxWeight] and the total equal to 1. Plain clamp-then-rescale
// cannot guarantee this: rescaling pushes floor-clamped weights back out of
// bounds. Instead weights that would leave the bounds under rescaling are
// pinned at the violated bound and only the remaining mass is rescaled, until
// no rescaled weight violates a bound. Five weights with these bounds always
// admit a solution (5*MinWeight <= 1 <= 5*MaxWeight).
func (v Vector) Constrain() Vector {
	free := v.Clamp()
	pinned := make(Vector, len(free))
	pinnedMass := 0.0
	for range v {
		freeMass := free.Sum()
		target := 1 - pinnedMass
		if len(free) == 0 || freeMass <= 0 || target <= 0 {
			break
		}
		scale := target / freeMass
		violated := false
		for name, weight := range free {
			switch scaled := weight * scale; {
			case scaled < MinWeight:
				pinned[name] = MinWeight
				pinnedMass += MinWeight
				delete(free, name)
				violated = true
			case scaled > MaxWeight:
				pinned[name] = MaxWeight
				pinnedMass += MaxWeight
				delete(free, name)
				violated = true
			}
		}
		if !violated {
			for name, weight := range free {
				pinned[name] = weight * scale
			}
			return pinned
		}
	}
	return DefaultVector()
}
