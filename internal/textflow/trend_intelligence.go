package textflow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"memeflow/internal/cache"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
)

const (
	trendCacheKey       = "trend_intelligence"
	trendSummaryRunes   = 500
	defaultTrendDomain  = "general_web3"
	defaultTrendScore   = 0.5
	trendSourceLLM      = "llm_generated"
	defaultTrendDepth   = "medium"
	defaultTrendOutlook = "neutral"
)

// TrendIntelligenceNode researches trending topics and selects the most
// relevant one.
type TrendIntelligenceNode struct {
	llm   Completer
	cache *cache.Store
	now   func() time.Time
}

// NewTrendIntelligenceNode builds the node.
func NewTrendIntelligenceNode(completer Completer, store *cache.Store) *TrendIntelligenceNode {
	return &TrendIntelligenceNode{llm: completer, cache: store, now: time.Now}
}

func (n *TrendIntelligenceNode) Name() string { return NodeTrendIntelligence }

func (n *TrendIntelligenceNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyBusinessContext},
		Produces: []stage.Key{KeyTrendIntelligence},
	}
}

func (n *TrendIntelligenceNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	var business BusinessContext
	if err := in.Decode(KeyBusinessContext, &business); err != nil {
		return nil, err
	}
	hours := in.Config.Int(flowconfig.KeyTrendCacheHours, 1)
	if hours <= 0 {
		return nil, services.UserInput("textflow", NodeTrendIntelligence,
			fmt.Sprintf("trend_cache_hours must be positive, got %d", hours))
	}
	ttl := time.Duration(hours) * time.Hour
	force := in.Config.ForceRefresh(flowconfig.KeyForceRefreshTrends)

	value, outcome, err := cache.GetOrComputeByTTL(ctx, n.cache, trendCacheKey, ttl, force,
		func(ctx context.Context) (TrendIntelligence, error) {
			return n.research(ctx, business)
		})
	if err != nil {
		return nil, err
	}
	in.Logger.Info("trend selected",
		logging.String(logging.FieldEventType, "trend_selected"),
		logging.String("cache", string(outcome.Reason)),
		logging.Duration("cache_age", outcome.Age),
		logging.Int("topics", len(value.TrendingTopics)),
		logging.String("topic", value.SelectedTopic.Topic),
		logging.Float64("relevance", value.SelectedTopic.RelevanceScore))

	out := stage.NewOutput()
	out.ReportCache(outcome)
	if err := out.Set(KeyTrendIntelligence, value); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *TrendIntelligenceNode) research(ctx context.Context, business BusinessContext) (TrendIntelligence, error) {
	if n.llm == nil {
		return TrendIntelligence{}, services.Wrap(services.ErrConfiguration, "textflow", NodeTrendIntelligence, "language model is not configured", nil)
	}
	user := fmt.Sprintf("Business Context:\nBrand: %s\nTone: %s\nKey Messages: %s\n\nGenerate Web3 trending topics as JSON:",
		business.Summary(trendSummaryRunes), business.Tone(), business.KeyMessages())
	content, err := n.llm.CompleteJSON(ctx, trendIntelligencePrompt, user)
	if err != nil {
		return TrendIntelligence{}, err
	}
	topics, err := decodeTopics(content)
	if err != nil {
		return TrendIntelligence{}, err
	}
	return TrendIntelligence{
		TrendingTopics: topics,
		SelectedTopic:  SelectTopic(topics),
		GeneratedAt:    n.now().UTC(),
	}, nil
}

// SelectTopic returns the topic with the highest relevance score. The first
// one wins a tie.
func SelectTopic(topics []TrendingTopic) TrendingTopic {
	if len(topics) == 0 {
		return TrendingTopic{}
	}
	best := topics[0]
	for _, topic := range topics[1:] {
		if topic.RelevanceScore > best.RelevanceScore {
			best = topic
		}
	}
	return best
}

type rawTopic struct {
	Topic             string   `json:"topic"`
	Domain            string   `json:"domain"`
	ChainsAffected    []string `json:"chains_affected"`
	Description       string   `json:"description"`
	Reason            string   `json:"reason"`
	Sentiment         string   `json:"sentiment"`
	RelevanceScore    *float64 `json:"relevance_score"`
	ViralityPotential *float64 `json:"virality_potential"`
	MemeAngles        []string `json:"meme_angles"`
	TechnicalDepth    string   `json:"technical_depth"`
}

// decodeTopics accepts {"topics": [...]} or a bare array and fills defaults
// for fields the model left out.
func decodeTopics(content string) ([]TrendingTopic, error) {
	var raw []rawTopic
	var wrapped struct {
		Topics []rawTopic `json:"topics"`
	}
	if err := llm.DecodeLLMJSON(content, &wrapped); err == nil && len(wrapped.Topics) > 0 {
		raw = wrapped.Topics
	} else if err := llm.Decode("trend topics", content, &raw); err != nil {
		return nil, err
	}

	topics := make([]TrendingTopic, 0, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(r.Topic)
		if name == "" {
			continue
		}
		topic := TrendingTopic{
			Topic:             name,
			Domain:            orDefault(r.Domain, defaultTrendDomain),
			ChainsAffected:    r.ChainsAffected,
			Description:       strings.TrimSpace(r.Description),
			Reason:            strings.TrimSpace(r.Reason),
			Sentiment:         orDefault(r.Sentiment, defaultTrendOutlook),
			RelevanceScore:    unitScore(r.RelevanceScore),
			ViralityPotential: unitScore(r.ViralityPotential),
			MemeAngles:        r.MemeAngles,
			TechnicalDepth:    orDefault(r.TechnicalDepth, defaultTrendDepth),
			Source:            trendSourceLLM,
		}
		if len(topic.ChainsAffected) == 0 {
			topic.ChainsAffected = []string{"multi-chain"}
		}
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return nil, services.Transient(services.ReasonMalformedResponse, "textflow", NodeTrendIntelligence,
			"model returned no trending topics", nil)
	}
	return topics, nil
}

func unitScore(value *float64) float64 {
	if value == nil || math.IsNaN(*value) {
		return defaultTrendScore
	}
	return math.Min(1, math.Max(0, *value))
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
