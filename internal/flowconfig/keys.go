package flowconfig

import (
	"strconv"

	"memeflow/internal/config"
)

// Option keys understood by the built-in flows.
const (
	KeyOutputPath          = "output_path"
	KeyBusinessDocsPath    = "business_documents_path"
	KeyBrandIdentityPath   = "brand_identity_path"
	KeyMemeTemplatesPath   = "meme_templates_path"
	KeyPlatforms           = "platforms"
	KeyTone                = "tone"
	KeyHumorType           = "humor_type"
	KeySkipAnimation       = "skip_animation"
	KeyAnimationStyle      = "animation_style"
	KeyForceRefresh        = "force_refresh"
	KeyForceRefreshContext = "force_refresh_context"
	KeyForceRefreshTrends  = "force_refresh_trends"
	KeyTrendCacheHours     = "trend_cache_hours"
	KeyCandidatePoolSize   = "candidate_pool_size"
	KeyTopK                = "top_k"
	KeyRankingWeights      = "ranking_weights"
	KeyInputText           = "input_text"
	KeyMinMemeWorthiness   = "min_meme_worthiness"
)

// DefaultsFrom builds the default layer from the process configuration.
func DefaultsFrom(cfg *config.Config) Defaults {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	g := cfg.Generation
	return Defaults{
		KeyOutputPath:          StringValue(cfg.Paths.OutputDir),
		KeyBusinessDocsPath:    StringValue(cfg.Paths.BusinessDocumentsDir),
		KeyBrandIdentityPath:   StringValue(cfg.Paths.BrandIdentityDir),
		KeyMemeTemplatesPath:   StringValue(cfg.Paths.MemeTemplatesDir),
		KeyPlatforms:           ListValue(g.Platforms...),
		KeyTone:                StringValue(g.Tone),
		KeyHumorType:           StringValue(g.HumorType),
		KeySkipAnimation:       BoolValue(g.SkipAnimation),
		KeyAnimationStyle:      StringValue(g.AnimationStyle),
		KeyForceRefresh:        BoolValue(false),
		KeyForceRefreshContext: BoolValue(false),
		KeyForceRefreshTrends:  BoolValue(false),
		KeyTrendCacheHours:     IntValue(int64(g.TrendCacheHours)),
		KeyCandidatePoolSize:   IntValue(int64(g.CandidatePoolSize)),
		KeyTopK:                IntValue(int64(g.TopK)),
		KeyRankingWeights: ListValue(
			"alignment:"+strconv.FormatFloat(g.AlignmentWeight, 'g', -1, 64),
			"coherence:"+strconv.FormatFloat(g.CoherenceWeight, 'g', -1, 64),
		),
		KeyInputText:         StringValue(""),
		KeyMinMemeWorthiness: FloatValue(g.MinMemeWorthiness),
	}
}
