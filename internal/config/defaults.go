package config

const (
	defaultConfigPath           = "~/.config/memeflow/config.toml"
	defaultOutputDir            = "./output"
	defaultCacheDir             = "./.cache"
	defaultLogDir               = "~/.local/share/memeflow/logs"
	defaultBusinessDocumentsDir = "./business_documents"
	defaultBrandIdentityDir     = "./brand_identity"
	defaultMemeTemplatesDir     = "./rekt_meme_templates"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-2.5-flash"
	defaultLLMTitle             = "memeflow"
	defaultLLMTimeoutSeconds    = 60
	defaultImageGenBaseURL      = "http://127.0.0.1:8088"
	defaultImageGenTimeout      = 120
	defaultCacheBackend         = CacheBackendFile
	defaultCacheKeyPrefix       = "memeflow:cache:"
	defaultRetryMaxAttempts     = 3
	defaultRetryBaseDelayMillis = 1000
	defaultRetryMaxDelayMillis  = 10000
	defaultRetryJitter          = 0.2
	defaultNodeTimeoutSeconds   = 180
	defaultTone                 = "casual"
	defaultHumorType            = "relatable"
	defaultAnimationStyle       = "auto"
	defaultTrendCacheHours      = 1
	defaultCandidatePoolSize    = 10
	defaultTopK                 = 3
	defaultAlignmentWeight      = 0.6
	defaultCoherenceWeight      = 0.4
	defaultMinMemeWorthiness    = 0.5
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// SupportedPlatforms lists the platforms content curation can target.
var SupportedPlatforms = []string{"twitter", "instagram", "linkedin"}

// AnimationStyles lists the accepted animation_style values.
var AnimationStyles = []string{"auto", "bounce", "shake", "glow", "zoom", "none"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:            defaultOutputDir,
			CacheDir:             defaultCacheDir,
			LogDir:               defaultLogDir,
			BusinessDocumentsDir: defaultBusinessDocumentsDir,
			BrandIdentityDir:     defaultBrandIdentityDir,
			MemeTemplatesDir:     defaultMemeTemplatesDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		ImageGen: ImageGen{
			BaseURL:        defaultImageGenBaseURL,
			TimeoutSeconds: defaultImageGenTimeout,
		},
		Cache: Cache{
			Backend:   defaultCacheBackend,
			KeyPrefix: defaultCacheKeyPrefix,
		},
		Retry: Retry{
			MaxAttempts:        defaultRetryMaxAttempts,
			BaseDelayMillis:    defaultRetryBaseDelayMillis,
			MaxDelayMillis:     defaultRetryMaxDelayMillis,
			Jitter:             defaultRetryJitter,
			NodeTimeoutSeconds: defaultNodeTimeoutSeconds,
		},
		Generation: Generation{
			Platforms:         append([]string(nil), SupportedPlatforms...),
			Tone:              defaultTone,
			HumorType:         defaultHumorType,
			AnimationStyle:    defaultAnimationStyle,
			TrendCacheHours:   defaultTrendCacheHours,
			CandidatePoolSize: defaultCandidatePoolSize,
			TopK:              defaultTopK,
			AlignmentWeight:   defaultAlignmentWeight,
			CoherenceWeight:   defaultCoherenceWeight,
			MinMemeWorthiness: defaultMinMemeWorthiness,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
