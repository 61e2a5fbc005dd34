package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are not checked
// here; commands that call collaborators run preflight checks instead.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendFile:
		return nil
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url must be set when cache.backend is redis (or export REDIS_URL)")
		}
		return nil
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (expected file or redis)", c.Cache.Backend)
	}
}

func (c *Config) validateRetry() error {
	if err := ensurePositiveMap(map[string]int{
		"retry.max_attempts":         c.Retry.MaxAttempts,
		"retry.node_timeout_seconds": c.Retry.NodeTimeoutSeconds,
		"llm.timeout_seconds":        c.LLM.TimeoutSeconds,
		"imagegen.timeout_seconds":   c.ImageGen.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Retry.BaseDelayMillis < 0 || c.Retry.MaxDelayMillis < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Retry.MaxDelayMillis > 0 && c.Retry.BaseDelayMillis > c.Retry.MaxDelayMillis {
		return errors.New("retry.base_delay_ms must not exceed retry.max_delay_ms")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return errors.New("retry.jitter must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	g := c.Generation
	if len(g.Platforms) == 0 {
		return errors.New("generation.platforms must list at least one platform")
	}
	for _, platform := range g.Platforms {
		if !slices.Contains(SupportedPlatforms, platform) {
			return fmt.Errorf("generation.platforms: unsupported platform %q (expected one of %s)", platform, strings.Join(SupportedPlatforms, ", "))
		}
	}
	if !slices.Contains(AnimationStyles, g.AnimationStyle) {
		return fmt.Errorf("generation.animation_style: unsupported value %q", g.AnimationStyle)
	}
	if err := ensurePositiveMap(map[string]int{
		"generation.trend_cache_hours":   g.TrendCacheHours,
		"generation.candidate_pool_size": g.CandidatePoolSize,
		"generation.top_k":               g.TopK,
	}); err != nil {
		return err
	}
	if g.TopK > g.CandidatePoolSize {
		return errors.New("generation.top_k must not exceed generation.candidate_pool_size")
	}
	if g.AlignmentWeight < 0 || g.CoherenceWeight < 0 {
		return errors.New("generation ranking weights must not be negative")
	}
	if g.AlignmentWeight+g.CoherenceWeight <= 0 {
		return errors.New("generation ranking weights must not both be zero")
	}
	if g.MinMemeWorthiness < 0 || g.MinMemeWorthiness > 1 {
		return errors.New("generation.min_meme_worthiness must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
