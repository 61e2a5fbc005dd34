package memeflow

import (
	"context"
	"encoding/json"
	"fmt"

	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/ranking"
	"memeflow/internal/services"
	"memeflow/internal/stage"
)

const defaultTopK = 3

// TextSelectionNode ranks the candidate pool with the configured weights
// and keeps the top_k captions.
type TextSelectionNode struct{}

// NewTextSelectionNode builds the node.
func NewTextSelectionNode() *TextSelectionNode {
	return &TextSelectionNode{}
}

func (n *TextSelectionNode) Name() string { return NodeTextSelection }

func (n *TextSelectionNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyMemeCandidates},
		Produces: []stage.Key{KeyMemeText},
	}
}

func (n *TextSelectionNode) Run(_ context.Context, in *stage.Input) (*stage.Output, error) {
	var pool CandidatePool
	if err := in.Decode(KeyMemeCandidates, &pool); err != nil {
		return nil, err
	}
	weights := ranking.DefaultWeights()
	if entries := in.Config.Strings(flowconfig.KeyRankingWeights, nil); len(entries) > 0 {
		parsed, err := ranking.ParseWeights(entries)
		if err != nil {
			return nil, err
		}
		weights = parsed
	}
	k := in.Config.Int(flowconfig.KeyTopK, defaultTopK)
	if k == 0 {
		return nil, services.UserInput("memeflow", NodeTextSelection, "top_k must be at least 1")
	}

	result, err := ranking.Rank(pool.Candidates, weights, k)
	if err != nil {
		return nil, err
	}
	text := MemeText{Ranking: result}
	for _, scored := range result.Ranked {
		var option TextOption
		if err := json.Unmarshal(scored.Candidate.Payload, &option); err != nil {
			return nil, services.Wrap(services.ErrContract, "memeflow", NodeTextSelection,
				fmt.Sprintf("candidate %s payload is unreadable", scored.Candidate.ID), err)
		}
		text.Selected = append(text.Selected, SelectedText{
			TextOption:  option,
			CandidateID: scored.Candidate.ID,
			Rank:        scored.Rank,
			Combined:    scored.Combined,
			Normalized:  scored.Normalized,
			Alignment:   scored.Candidate.Scores[ranking.ScoreAlignment],
		})
	}

	best, _ := text.Best()
	in.Logger.Info("meme text selected",
		logging.String(logging.FieldEventType, "text_selected"),
		logging.Int("pool_size", result.PoolSize),
		logging.Int("selected", len(text.Selected)),
		logging.Bool("normalized", result.Normalized),
		logging.String("winner", best.CandidateID),
		logging.String("pattern", best.HumorPattern),
		logging.Float64("score", best.Combined))

	out := stage.NewOutput()
	if err := out.Set(KeyMemeText, text); err != nil {
		return nil, err
	}
	return out, nil
}
