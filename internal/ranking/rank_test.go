package ranking_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/ranking"
	"memeflow/internal/services"
)

func candidate(id string, alignment, coherence float64) ranking.Candidate {
	return ranking.Candidate{
		ID:     id,
		Scores: map[string]float64{ranking.ScoreAlignment: alignment, ranking.ScoreCoherence: coherence},
	}
}

func TestRankSelectsTopTwoByWeightedScore(t *testing.T) {
	pool := []ranking.Candidate{
		candidate("a", 0.9, 0.8),
		candidate("b", 0.95, 0.5),
		candidate("c", 0.5, 0.99),
	}

	result, err := ranking.Rank(pool, ranking.DefaultWeights(), 2)
	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)

	assert.Equal(t, "a", result.Ranked[0].Candidate.ID)
	assert.InDelta(t, 0.86, result.Ranked[0].Combined, 1e-9)
	assert.Equal(t, 1, result.Ranked[0].Rank)
	assert.Equal(t, "b", result.Ranked[1].Candidate.ID)
	assert.InDelta(t, 0.77, result.Ranked[1].Combined, 1e-9)
	assert.Equal(t, 2, result.Ranked[1].Rank)

	all, err := ranking.Rank(pool, ranking.DefaultWeights(), 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.696, all.Ranked[2].Combined, 1e-9)
	assert.False(t, result.Normalized)
	assert.Equal(t, 3, result.PoolSize)
	assert.InDelta(t, 1.0, result.WeightSum, 1e-12)
}

func TestRankBreaksTiesByGenerationOrder(t *testing.T) {
	pool := []ranking.Candidate{
		candidate("first", 0.5, 0.5),
		candidate("second", 0.5, 0.5),
		candidate("third", 0.5, 0.5),
	}
	for range 5 {
		result, err := ranking.Rank(pool, ranking.DefaultWeights(), 3)
		require.NoError(t, err)
		ids := []string{result.Ranked[0].Candidate.ID, result.Ranked[1].Candidate.ID, result.Ranked[2].Candidate.ID}
		assert.Equal(t, []string{"first", "second", "third"}, ids)
		assert.Equal(t, []int{0, 1, 2}, []int{result.Ranked[0].Index, result.Ranked[1].Index, result.Ranked[2].Index})
	}
}

func TestRankNormalizesWhenWeightsDoNotSumToOne(t *testing.T) {
	pool := []ranking.Candidate{candidate("a", 1, 0.5)}
	result, err := ranking.Rank(pool, ranking.Weights{ranking.ScoreAlignment: 2, ranking.ScoreCoherence: 2}, 1)
	require.NoError(t, err)
	require.True(t, result.Normalized)
	assert.InDelta(t, 3.0, result.Ranked[0].Combined, 1e-12)
	assert.InDelta(t, 0.75, result.Ranked[0].Normalized, 1e-12)
}

func TestRankReturnsWholePoolWhenKExceedsIt(t *testing.T) {
	pool := []ranking.Candidate{candidate("a", 0.1, 0.1), candidate("b", 0.2, 0.2)}
	result, err := ranking.Rank(pool, ranking.DefaultWeights(), 10)
	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "b", result.Ranked[0].Candidate.ID)
}

func TestRankZeroKOnEmptyPool(t *testing.T) {
	result, err := ranking.Rank(nil, ranking.DefaultWeights(), 0)
	require.NoError(t, err)
	assert.Empty(t, result.Ranked)
}

func TestRankRejectsInvalidInput(t *testing.T) {
	valid := []ranking.Candidate{candidate("a", 0.5, 0.5)}
	cases := []struct {
		name       string
		candidates []ranking.Candidate
		weights    ranking.Weights
		k          int
	}{
		{"empty pool", nil, ranking.DefaultWeights(), 1},
		{"negative k", valid, ranking.DefaultWeights(), -1},
		{"no weights", valid, ranking.Weights{}, 1},
		{"negative weight", valid, ranking.Weights{ranking.ScoreAlignment: -0.1, ranking.ScoreCoherence: 1}, 1},
		{"infinite weight", valid, ranking.Weights{ranking.ScoreAlignment: math.Inf(1)}, 1},
		{"zero sum", valid, ranking.Weights{ranking.ScoreAlignment: 0, ranking.ScoreCoherence: 0}, 1},
		{"missing score", []ranking.Candidate{{ID: "x", Scores: map[string]float64{ranking.ScoreAlignment: 0.5}}}, ranking.DefaultWeights(), 1},
		{"score above one", []ranking.Candidate{candidate("x", 1.2, 0.5)}, ranking.DefaultWeights(), 1},
		{"score below zero", []ranking.Candidate{candidate("x", 0.5, -0.01)}, ranking.DefaultWeights(), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ranking.Rank(tc.candidates, tc.weights, tc.k)
			require.Error(t, err)
			assert.True(t, errors.Is(err, services.ErrUserInput), "want user input error, got %v", err)
		})
	}
}

func TestParseWeights(t *testing.T) {
	weights, err := ranking.ParseWeights([]string{"alignment:0.6", " coherence : 0.4 ", ""})
	require.NoError(t, err)
	assert.Equal(t, ranking.DefaultWeights(), weights)

	for _, bad := range [][]string{{"alignment"}, {":0.5"}, {"alignment:abc"}, {"alignment:-1"}, {}} {
		_, err := ranking.ParseWeights(bad)
		assert.Error(t, err, "entries %v", bad)
	}
}
