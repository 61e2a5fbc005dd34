package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyPathEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeImageGen()
	c.normalizeCache()
	c.normalizeGeneration()
	c.normalizeLogging()
	return c.normalizeMetrics()
}

// applyPathEnv honours the environment variables the content directories
// have always been configurable through, when the file left them at default.
func (c *Config) applyPathEnv() {
	pairs := []struct {
		target   *string
		fallback string
		env      string
	}{
		{&c.Paths.OutputDir, defaultOutputDir, "OUTPUT_PATH"},
		{&c.Paths.BusinessDocumentsDir, defaultBusinessDocumentsDir, "BUSINESS_DOCUMENTS_PATH"},
		{&c.Paths.BrandIdentityDir, defaultBrandIdentityDir, "BRAND_IDENTITY_PATH"},
		{&c.Paths.MemeTemplatesDir, defaultMemeTemplatesDir, "MEME_TEMPLATES_PATH"},
	}
	for _, pair := range pairs {
		if strings.TrimSpace(*pair.target) != "" && *pair.target != pair.fallback {
			continue
		}
		if value, ok := os.LookupEnv(pair.env); ok && strings.TrimSpace(value) != "" {
			*pair.target = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("TREND_CACHE_HOURS"); ok && c.Generation.TrendCacheHours == defaultTrendCacheHours {
		if hours, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			c.Generation.TrendCacheHours = hours
		}
	}
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		target   *string
		fallback string
	}{
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.cache_dir", &c.Paths.CacheDir, defaultCacheDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.business_documents_dir", &c.Paths.BusinessDocumentsDir, defaultBusinessDocumentsDir},
		{"paths.brand_identity_dir", &c.Paths.BrandIdentityDir, defaultBrandIdentityDir},
		{"paths.meme_templates_dir", &c.Paths.MemeTemplatesDir, defaultMemeTemplatesDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.target) == "" {
			*field.target = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.target))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.target = expanded
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv("LLM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = c.LLM.Model
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImageGen() {
	c.ImageGen.APIKey = strings.TrimSpace(c.ImageGen.APIKey)
	if c.ImageGen.APIKey == "" {
		c.ImageGen.APIKey = firstEnv("IMAGEGEN_API_KEY")
	}
	c.ImageGen.BaseURL = strings.TrimRight(strings.TrimSpace(c.ImageGen.BaseURL), "/")
	if value := firstEnv("IMAGEGEN_BASE_URL"); value != "" && (c.ImageGen.BaseURL == "" || c.ImageGen.BaseURL == defaultImageGenBaseURL) {
		c.ImageGen.BaseURL = strings.TrimRight(value, "/")
	}
	if c.ImageGen.BaseURL == "" {
		c.ImageGen.BaseURL = defaultImageGenBaseURL
	}
	if c.ImageGen.TimeoutSeconds <= 0 {
		c.ImageGen.TimeoutSeconds = defaultImageGenTimeout
	}
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = firstEnv("REDIS_URL")
	}
	if strings.TrimSpace(c.Cache.KeyPrefix) == "" {
		c.Cache.KeyPrefix = defaultCacheKeyPrefix
	}
}

func (c *Config) normalizeGeneration() {
	seen := make(map[string]struct{}, len(c.Generation.Platforms))
	platforms := make([]string, 0, len(c.Generation.Platforms))
	for _, platform := range c.Generation.Platforms {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		platforms = append(platforms, platform)
	}
	c.Generation.Platforms = platforms
	c.Generation.Tone = strings.TrimSpace(c.Generation.Tone)
	if c.Generation.Tone == "" {
		c.Generation.Tone = defaultTone
	}
	c.Generation.HumorType = strings.TrimSpace(c.Generation.HumorType)
	if c.Generation.HumorType == "" {
		c.Generation.HumorType = defaultHumorType
	}
	c.Generation.AnimationStyle = strings.ToLower(strings.TrimSpace(c.Generation.AnimationStyle))
	if c.Generation.AnimationStyle == "" {
		c.Generation.AnimationStyle = defaultAnimationStyle
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMetrics() error {
	c.Metrics.TextfilePath = strings.TrimSpace(c.Metrics.TextfilePath)
	if c.Metrics.TextfilePath == "" {
		return nil
	}
	expanded, err := expandPath(c.Metrics.TextfilePath)
	if err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	c.Metrics.TextfilePath = expanded
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
