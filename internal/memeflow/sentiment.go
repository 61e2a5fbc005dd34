package memeflow

import (
	"context"
	"fmt"
	"math"
	"strings"

	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
	"memeflow/internal/textflow"
	"memeflow/internal/textutil"
)

// Content sources recorded on ContentAnalysis.
const (
	SourceTextFlow  = "text_flow"
	SourceInputText = "input_text"
)

// SentimentNode reads the emotion, humor and meme potential of the content
// the meme is built from.
type SentimentNode struct {
	llm Completer
}

// NewSentimentNode builds the node.
func NewSentimentNode(completer Completer) *SentimentNode {
	return &SentimentNode{llm: completer}
}

func (n *SentimentNode) Name() string { return NodeSentimentAnalysis }

func (n *SentimentNode) Spec() stage.Spec {
	return stage.Spec{
		Optional: []stage.Key{textflow.KeyPlatformContent, textflow.KeyTrendIntelligence},
		Produces: []stage.Key{KeyContentAnalysis},
	}
}

func (n *SentimentNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	if n.llm == nil {
		return nil, services.Wrap(services.ErrConfiguration, "memeflow", NodeSentimentAnalysis, "language model is not configured", nil)
	}
	content, source, err := analysisContent(in)
	if err != nil {
		return nil, err
	}
	topic, sentiment := "none", "neutral"
	if in.Has(textflow.KeyTrendIntelligence) {
		var trends textflow.TrendIntelligence
		if err := in.Decode(textflow.KeyTrendIntelligence, &trends); err != nil {
			return nil, err
		}
		if t := strings.TrimSpace(trends.SelectedTopic.Topic); t != "" {
			topic = t
		}
		if s := strings.TrimSpace(trends.SelectedTopic.Sentiment); s != "" {
			sentiment = s
		}
	}

	raw, err := n.llm.CompleteJSON(ctx, sentimentPrompt, fmt.Sprintf(sentimentUserTemplate, content, topic, sentiment))
	if err != nil {
		return nil, err
	}
	var analysis ContentAnalysis
	if err := llm.Decode("content analysis", raw, &analysis); err != nil {
		return nil, err
	}
	if err := normalizeAnalysis(&analysis); err != nil {
		return nil, err
	}
	analysis.Source = source

	in.Logger.Info("content analyzed",
		logging.String(logging.FieldEventType, "content_analyzed"),
		logging.String("source", source),
		logging.String("emotion", analysis.DominantEmotion),
		logging.String("humor_type", analysis.HumorType),
		logging.Float64("meme_worthiness", analysis.MemeWorthinessScore),
		logging.Strings("categories", analysis.SuggestedTemplateCategories))

	out := stage.NewOutput()
	if err := out.Set(KeyContentAnalysis, analysis); err != nil {
		return nil, err
	}
	return out, nil
}

// analysisContent prefers the text flow's platform content and falls back
// to the input_text option.
func analysisContent(in *stage.Input) (string, string, error) {
	if in.Has(textflow.KeyPlatformContent) {
		var content textflow.PlatformContent
		if err := in.Decode(textflow.KeyPlatformContent, &content); err != nil {
			return "", "", err
		}
		var parts []string
		for _, platform := range []string{textflow.PlatformTwitter, textflow.PlatformInstagram, textflow.PlatformLinkedIn} {
			if text := strings.TrimSpace(content.Text(platform)); text != "" {
				parts = append(parts, textutil.Label(platform)+": "+text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n"), SourceTextFlow, nil
		}
	}
	if text := strings.TrimSpace(in.Config.String(flowconfig.KeyInputText, "")); text != "" {
		return text, SourceInputText, nil
	}
	return "", "", services.UserInput("memeflow", NodeSentimentAnalysis,
		"no content to analyze: run the text flow on this run first or set input_text")
}

func normalizeAnalysis(a *ContentAnalysis) error {
	a.DominantEmotion = strings.ToLower(strings.TrimSpace(a.DominantEmotion))
	if a.DominantEmotion == "" {
		return services.Transient(services.ReasonMalformedResponse, "memeflow", NodeSentimentAnalysis,
			"model returned no dominant emotion", nil)
	}
	a.HumorType = strings.ToLower(strings.TrimSpace(a.HumorType))
	if a.HumorType == "" {
		a.HumorType = "none"
	}
	if math.IsNaN(a.MemeWorthinessScore) {
		a.MemeWorthinessScore = 0
	}
	a.MemeWorthinessScore = math.Max(0, math.Min(1, a.MemeWorthinessScore))
	categories := make([]string, 0, len(a.SuggestedTemplateCategories))
	for _, category := range a.SuggestedTemplateCategories {
		if strings.TrimSpace(category) == "" {
			continue
		}
		categories = append(categories, textutil.SanitizeToken(category))
	}
	a.SuggestedTemplateCategories = categories
	return nil
}
