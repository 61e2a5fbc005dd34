package memeflow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/memeflow"
	"memeflow/internal/ranking"
	"memeflow/internal/services"
	"memeflow/internal/testsupport"
)

func candidate(t *testing.T, id, pattern string, alignment, coherence float64) ranking.Candidate {
	t.Helper()
	payload, err := json.Marshal(memeflow.TextOption{TopText: "top " + id, BottomText: "bottom " + id, HumorPattern: pattern})
	require.NoError(t, err)
	return ranking.Candidate{
		ID:      id,
		Pattern: pattern,
		Scores:  map[string]float64{ranking.ScoreAlignment: alignment, ranking.ScoreCoherence: coherence},
		Payload: payload,
	}
}

func selectionHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, testsupport.NewConfig(t))
	h.set(memeflow.KeyMemeCandidates, memeflow.CandidatePool{
		Candidates: []ranking.Candidate{
			candidate(t, "c01", "wordplay", 0.9, 0.8),
			candidate(t, "c02", "absurdist", 0.95, 0.5),
			candidate(t, "c03", "hyperbole", 0.5, 0.99),
		},
		Patterns: ranking.HumorPatterns,
	})
	return h
}

func TestTextSelectionKeepsTopK(t *testing.T) {
	h := selectionHarness(t)

	out := h.mustRun(memeflow.NewTextSelectionNode(), "top_k=2")
	text := decode[memeflow.MemeText](t, out, memeflow.KeyMemeText)
	require.Len(t, text.Selected, 2)
	assert.Equal(t, "c01", text.Selected[0].CandidateID)
	assert.InDelta(t, 0.86, text.Selected[0].Combined, 1e-9)
	assert.Equal(t, "top c01", text.Selected[0].TopText)
	assert.Equal(t, 1, text.Selected[0].Rank)
	assert.Equal(t, "c02", text.Selected[1].CandidateID)
	assert.InDelta(t, 0.77, text.Selected[1].Combined, 1e-9)
	assert.Equal(t, 3, text.Ranking.PoolSize)
	assert.False(t, text.Ranking.Normalized)

	best, ok := text.Best()
	require.True(t, ok)
	assert.Equal(t, "wordplay", best.HumorPattern)
}

func TestTextSelectionHonoursConfiguredWeights(t *testing.T) {
	h := selectionHarness(t)

	out := h.mustRun(memeflow.NewTextSelectionNode(), "ranking_weights=alignment:1,coherence:1,top_k=1")
	text := decode[memeflow.MemeText](t, out, memeflow.KeyMemeText)
	require.Len(t, text.Selected, 1)
	// 1.7 vs 1.49 vs 1.45 once both components count equally.
	assert.Equal(t, "c01", text.Selected[0].CandidateID)
	assert.True(t, text.Ranking.Normalized)
	assert.InDelta(t, 0.85, text.Selected[0].Normalized, 1e-9)

	_, err := h.run(memeflow.NewTextSelectionNode(), "ranking_weights=alignment:1,virality:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUserInput)

	_, err = h.run(memeflow.NewTextSelectionNode(), "top_k=0")
	assert.ErrorIs(t, err, services.ErrUserInput)
}
