package correlation

import "fmt"

// SourceRef identifies one corroborating source for scoring purposes.
type SourceRef struct {
	Name     string
	Category string
}

// Scorer converts a set of corroborating sources into a bounded
// confidence value. It is pure: deterministic for identical inputs and
// never mutates its arguments.
type Scorer struct{}

// maxDiversityWeight caps how much category diversity can inflate the
// base match ratio.
const maxDiversityWeight = 2.0

// Score implements
//
//	confidence = min(1, matches/max(1,total) * weighting)
//	weighting  = min(2, 1 + 0.25*(distinctCategories-1))
//
// The weighting rewards corroboration across distinct provider categories
// over raw source count: two breach-database hits add less marginal
// confidence than a breach-database hit plus a people-search hit.
//
// Boundary behavior: zero matches or a zero total pool score 0.0. The
// result is monotonically increasing in match count and category
// diversity, decreasing in total pool size, and always within [0,1].
// A negative total is malformed input and returns an error; callers
// degrade that field to zero confidence rather than failing the run.
func (Scorer) Score(matches []SourceRef, total int) (float64, error) {
	if total < 0 {
		return 0, fmt.Errorf("total source count must be non-negative, got %d", total)
	}
	if len(matches) == 0 || total == 0 {
		return 0, nil
	}

	categories := make(map[string]bool, len(matches))
	for _, m := range matches {
		categories[m.Category] = true
	}

	weighting := 1.0 + 0.25*float64(len(categories)-1)
	if weighting > maxDiversityWeight {
		weighting = maxDiversityWeight
	}

	confidence := float64(len(matches)) / float64(total) * weighting
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, nil
}
