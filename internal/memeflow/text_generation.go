package memeflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/ranking"
	"memeflow/internal/services"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
	"memeflow/internal/textflow"
	"memeflow/internal/textutil"
)

const (
	maxCaptionRunes    = 40
	defaultOptionScore = 0.5
	defaultPoolSize    = 10
)

// TextGenerationNode produces a fixed-size pool of caption candidates, one
// humor pattern per candidate, and scores each for alignment and image
// coherence.
type TextGenerationNode struct {
	llm      Completer
	patterns []string
}

// NewTextGenerationNode builds the node over ranking.HumorPatterns.
func NewTextGenerationNode(completer Completer) *TextGenerationNode {
	return &TextGenerationNode{llm: completer, patterns: ranking.HumorPatterns}
}

func (n *TextGenerationNode) Name() string { return NodeTextGeneration }

func (n *TextGenerationNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyContentAnalysis, KeyImageAnalysis},
		Optional: []stage.Key{textflow.KeyBusinessContext},
		Produces: []stage.Key{KeyMemeCandidates},
	}
}

func (n *TextGenerationNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	if n.llm == nil {
		return nil, services.Wrap(services.ErrConfiguration, "memeflow", NodeTextGeneration, "language model is not configured", nil)
	}
	var analysis ContentAnalysis
	if err := in.Decode(KeyContentAnalysis, &analysis); err != nil {
		return nil, err
	}
	var image ImageAnalysis
	if err := in.Decode(KeyImageAnalysis, &image); err != nil {
		return nil, err
	}
	tone := in.Config.String(flowconfig.KeyTone, "")
	if in.Has(textflow.KeyBusinessContext) {
		var business textflow.BusinessContext
		if err := in.Decode(textflow.KeyBusinessContext, &business); err != nil {
			return nil, err
		}
		if brandTone := business.Tone(); brandTone != "" {
			tone = strings.TrimSpace(tone + " (brand: " + brandTone + ")")
		}
	}

	size := in.Config.Int(flowconfig.KeyCandidatePoolSize, defaultPoolSize)
	if size <= 0 {
		return nil, services.UserInput("memeflow", NodeTextGeneration,
			fmt.Sprintf("candidate_pool_size must be positive, got %d", size))
	}
	offset := int(seed(in.RunID, "patterns") % uint64(len(n.patterns)))
	assigned, err := ranking.AssignPatterns(n.patterns, size, offset)
	if err != nil {
		return nil, err
	}

	system := fmt.Sprintf(textGenerationPrompt, size, maxCaptionRunes,
		image.ImageDescription,
		strings.Join(image.VisualElements, ", "),
		image.EmotionalContext,
		image.MemeFormat,
		image.SuggestedNarrativeStructure,
		strings.Join(image.HumorOpportunities, ", "),
		analysis.MemeAngle,
		analysis.DominantEmotion,
		analysis.HumorType,
		in.Config.String(flowconfig.KeyHumorType, ""),
		tone,
		patternList(assigned))
	raw, err := n.llm.CompleteJSON(ctx, system, textGenerationUser)
	if err != nil {
		return nil, err
	}
	options, err := decodeOptions(raw, size)
	if err != nil {
		return nil, err
	}

	pool := CandidatePool{Patterns: ranking.Distinct(n.patterns), Offset: offset}
	mismatched := 0
	for i, option := range options {
		if !strings.EqualFold(strings.TrimSpace(option.reportedPattern), assigned[i]) {
			mismatched++
		}
		option.HumorPattern = assigned[i]
		payload, err := json.Marshal(option.TextOption)
		if err != nil {
			return nil, services.Wrap(services.ErrContract, "memeflow", NodeTextGeneration, "candidate is not serializable", err)
		}
		pool.Candidates = append(pool.Candidates, ranking.Candidate{
			ID:      fmt.Sprintf("c%02d", i+1),
			Pattern: assigned[i],
			Scores: map[string]float64{
				ranking.ScoreAlignment: ranking.AlignmentScore(option.ViralityScore, assigned[i], analysis.DominantEmotion),
				ranking.ScoreCoherence: option.ImageCoherenceScore,
			},
			Payload: payload,
		})
	}
	if err := ranking.CheckDiversity(pool.Candidates, len(pool.Patterns)); err != nil {
		return nil, services.Wrap(services.ErrContract, "memeflow", NodeTextGeneration, "candidate pool lost pattern diversity", err)
	}

	in.Logger.Info("meme text candidates generated",
		logging.String(logging.FieldEventType, "candidates_generated"),
		logging.Int("pool_size", len(pool.Candidates)),
		logging.Int("pattern_offset", offset),
		logging.Int("pattern_mismatches", mismatched))

	out := stage.NewOutput()
	if err := out.Set(KeyMemeCandidates, pool); err != nil {
		return nil, err
	}
	return out, nil
}

func patternList(patterns []string) string {
	lines := make([]string, len(patterns))
	for i, pattern := range patterns {
		lines[i] = fmt.Sprintf("%d. %s", i+1, pattern)
	}
	return strings.Join(lines, "\n")
}

type rawOption struct {
	TopText             string   `json:"top_text"`
	BottomText          string   `json:"bottom_text"`
	ViralityScore       *float64 `json:"virality_score"`
	ImageCoherenceScore *float64 `json:"image_coherence_score"`
	HumorPatternUsed    string   `json:"humor_pattern_used"`
}

type decodedOption struct {
	TextOption
	reportedPattern string
}

// decodeOptions returns exactly size options. Extra options are dropped;
// too few is a malformed response so the node is retried.
func decodeOptions(content string, size int) ([]decodedOption, error) {
	var payload struct {
		Options []rawOption `json:"options"`
	}
	if err := llm.Decode("meme text options", content, &payload); err != nil {
		return nil, err
	}
	options := make([]decodedOption, 0, size)
	for _, raw := range payload.Options {
		top := clampCaption(raw.TopText)
		bottom := clampCaption(raw.BottomText)
		if top == "" && bottom == "" {
			continue
		}
		options = append(options, decodedOption{
			TextOption: TextOption{
				TopText:             top,
				BottomText:          bottom,
				ViralityScore:       optionScore(raw.ViralityScore),
				ImageCoherenceScore: optionScore(raw.ImageCoherenceScore),
			},
			reportedPattern: raw.HumorPatternUsed,
		})
		if len(options) == size {
			break
		}
	}
	if len(options) < size {
		return nil, services.Transient(services.ReasonMalformedResponse, "memeflow", NodeTextGeneration,
			fmt.Sprintf("model returned %d usable options, need %d", len(options), size), nil)
	}
	return options, nil
}

func clampCaption(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if utf8.RuneCountInString(value) > maxCaptionRunes {
		value = textutil.Truncate(value, maxCaptionRunes-3)
	}
	return value
}

func optionScore(value *float64) float64 {
	if value == nil || math.IsNaN(*value) {
		return defaultOptionScore
	}
	return math.Max(0, math.Min(1, *value))
}
