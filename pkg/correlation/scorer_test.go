package correlation

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(categories ...string) []SourceRef {
	out := make([]SourceRef, 0, len(categories))
	for i, c := range categories {
		out = append(out, SourceRef{Name: fmt.Sprintf("source-%d", i), Category: c})
	}
	return out
}

func TestScorer_BoundaryBehavior(t *testing.T) {
	var scorer Scorer

	t.Run("zero matches scores zero", func(t *testing.T) {
		got, err := scorer.Score(nil, 10)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("zero total scores zero, no divide-by-zero", func(t *testing.T) {
		got, err := scorer.Score(refs("breach"), 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("negative total is malformed", func(t *testing.T) {
		_, err := scorer.Score(refs("breach"), -1)
		assert.Error(t, err)
	})

	t.Run("full corroboration caps at one", func(t *testing.T) {
		got, err := scorer.Score(refs("breach", "social", "public"), 3)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got)
	})
}

func TestScorer_DiversityOutweighsRawCount(t *testing.T) {
	var scorer Scorer

	sameCategory, err := scorer.Score(refs("breach", "breach"), 10)
	require.NoError(t, err)

	distinctCategories, err := scorer.Score(refs("breach", "social"), 10)
	require.NoError(t, err)

	assert.Greater(t, distinctCategories, sameCategory,
		"two sources from distinct categories should contribute more than two from the same category")
}

func TestScorer_MonotonicInMatches(t *testing.T) {
	var scorer Scorer

	previous := 0.0
	for n := 1; n <= 10; n++ {
		categories := make([]string, n)
		for i := range categories {
			categories[i] = "breach"
		}
		got, err := scorer.Score(refs(categories...), 20)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, previous, "confidence must not decrease as matches grow (n=%d)", n)
		previous = got
	}
}

func TestScorer_DecreasingInTotalPool(t *testing.T) {
	var scorer Scorer

	small, err := scorer.Score(refs("breach", "social", "public"), 3)
	require.NoError(t, err)

	large, err := scorer.Score(refs("breach", "social", "public"), 30)
	require.NoError(t, err)

	assert.Greater(t, small, large,
		"3 of 3 total sources is stronger evidence than 3 of 30")
}

// Randomized sweep over match/total combinations including zero and very
// large counts: the result must always stay within [0,1].
func TestScorer_BoundedForRandomInputs(t *testing.T) {
	var scorer Scorer
	rng := rand.New(rand.NewSource(42))
	categories := []string{"breach", "social", "public", "darkweb", "people_search"}

	for i := 0; i < 1000; i++ {
		matchCount := rng.Intn(200)
		total := rng.Intn(100000)
		if i == 0 {
			matchCount, total = 0, 0
		}

		matches := make([]SourceRef, 0, matchCount)
		for j := 0; j < matchCount; j++ {
			matches = append(matches, SourceRef{
				Name:     fmt.Sprintf("s%d", j),
				Category: categories[rng.Intn(len(categories))],
			})
		}

		got, err := scorer.Score(matches, total)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0, "matches=%d total=%d", matchCount, total)
		assert.LessOrEqual(t, got, 1.0, "matches=%d total=%d", matchCount, total)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	var scorer Scorer
	matches := refs("breach", "social", "breach")

	first, err := scorer.Score(matches, 7)
	require.NoError(t, err)
	second, err := scorer.Score(matches, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
