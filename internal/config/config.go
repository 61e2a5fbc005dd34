package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir            string `toml:"output_dir"`
	CacheDir             string `toml:"cache_dir"`
	LogDir               string `toml:"log_dir"`
	BusinessDocumentsDir string `toml:"business_documents_dir"`
	BrandIdentityDir     string `toml:"brand_identity_dir"`
	MemeTemplatesDir     string `toml:"meme_templates_dir"`
}

// LLM contains language-model connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	VisionModel    string `toml:"vision_model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ImageGen contains settings for the image branding/rendering/animation service.
type ImageGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Cache selects and configures the stage-output cache backend.
type Cache struct {
	Backend   string `toml:"backend"`
	RedisURL  string `toml:"redis_url"`
	KeyPrefix string `toml:"key_prefix"`
}

// Retry controls node execution retries and per-attempt timeouts.
type Retry struct {
	MaxAttempts        int     `toml:"max_attempts"`
	BaseDelayMillis    int     `toml:"base_delay_ms"`
	MaxDelayMillis     int     `toml:"max_delay_ms"`
	Jitter             float64 `toml:"jitter"`
	NodeTimeoutSeconds int     `toml:"node_timeout_seconds"`
}

// Generation holds the defaults flows resolve their options from. Every value
// can be overridden per invocation.
type Generation struct {
	Platforms         []string `toml:"platforms"`
	Tone              string   `toml:"tone"`
	HumorType         string   `toml:"humor_type"`
	AnimationStyle    string   `toml:"animation_style"`
	SkipAnimation     bool     `toml:"skip_animation"`
	TrendCacheHours   int      `toml:"trend_cache_hours"`
	CandidatePoolSize int      `toml:"candidate_pool_size"`
	TopK              int      `toml:"top_k"`
	AlignmentWeight   float64  `toml:"alignment_weight"`
	CoherenceWeight   float64  `toml:"coherence_weight"`
	MinMemeWorthiness float64  `toml:"min_meme_worthiness"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics configures the Prometheus textfile written after each command.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for memeflow.
//
// Configuration sections by subsystem:
//   - Paths: input material, output runs, cache and logs
//   - LLM: language-model collaborator
//   - ImageGen: image branding, rendering and animation collaborator
//   - Cache: stage-output cache backend (file or redis)
//   - Retry: node retry budget, backoff and per-attempt timeout
//   - Generation: defaults for per-run flow options
//   - Logging: log format and level
//   - Metrics: optional Prometheus textfile export
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	ImageGen   ImageGen   `toml:"imagegen"`
	Cache      Cache      `toml:"cache"`
	Retry      Retry      `toml:"retry"`
	Generation Generation `toml:"generation"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory is loaded first so credentials can live outside the
// TOML file. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	loadDotEnv()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	// Existing environment variables win over .env entries.
	_ = godotenv.Load()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("memeflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories memeflow writes to. Input
// directories are never created; preflight reports them instead.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// NodeTimeout returns the per-attempt timeout applied to every node.
func (c *Config) NodeTimeout() time.Duration {
	return time.Duration(c.Retry.NodeTimeoutSeconds) * time.Second
}

// BaseDelay returns the first retry delay.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMillis) * time.Millisecond
}

// MaxDelay returns the retry delay ceiling.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMillis) * time.Millisecond
}

// TrendTTL returns how long trend research stays cached.
func (c *Config) TrendTTL() time.Duration {
	return time.Duration(c.Generation.TrendCacheHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
