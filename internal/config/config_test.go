package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"memeflow/internal/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LLM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "IMAGEGEN_API_KEY",
		"IMAGEGEN_BASE_URL", "REDIS_URL", "TREND_CACHE_HOURS", "OUTPUT_PATH",
		"BUSINESS_DOCUMENTS_PATH", "BRAND_IDENTITY_PATH", "MEME_TEMPLATES_PATH",
	} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	work := t.TempDir()
	chdir(t, work)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".local", "share", "memeflow", "logs"); cfg.Paths.LogDir != want {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, want)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) || filepath.Base(cfg.Paths.OutputDir) != "output" {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.VisionModel != cfg.LLM.Model {
		t.Fatalf("expected vision model to default to model, got %q", cfg.LLM.VisionModel)
	}
	if cfg.Cache.Backend != config.CacheBackendFile {
		t.Fatalf("unexpected cache backend %q", cfg.Cache.Backend)
	}
	if got := strings.Join(cfg.Generation.Platforms, ","); got != "twitter,instagram,linkedin" {
		t.Fatalf("unexpected platforms %q", got)
	}
	if cfg.Generation.CandidatePoolSize != 10 || cfg.Generation.TopK != 3 {
		t.Fatalf("unexpected pool/top_k %d/%d", cfg.Generation.CandidatePoolSize, cfg.Generation.TopK)
	}
	if cfg.TrendTTL().Hours() != 1 {
		t.Fatalf("unexpected trend ttl %s", cfg.TrendTTL())
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	work := t.TempDir()
	chdir(t, work)
	if err := os.WriteFile(filepath.Join(work, ".env"), []byte("LLM_API_KEY=from-dotenv\nTREND_CACHE_HOURS=6\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("LLM_API_KEY")
		_ = os.Unsetenv("TREND_CACHE_HOURS")
	})

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Generation.TrendCacheHours != 6 {
		t.Fatalf("expected trend hours from .env, got %d", cfg.Generation.TrendCacheHours)
	}
}

func TestLoadCustomPathOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	payload := map[string]any{
		"paths": map[string]any{
			"output_dir": filepath.Join(tempDir, "runs-out"),
			"cache_dir":  filepath.Join(tempDir, "cache"),
		},
		"llm": map[string]any{"api_key": "file-key", "model": "demo"},
		"cache": map[string]any{
			"backend":   "redis",
			"redis_url": "redis://localhost:6379/2",
		},
		"generation": map[string]any{
			"platforms":           []string{"Twitter", "linkedin", "twitter"},
			"candidate_pool_size": 12,
			"top_k":               2,
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "runs-out") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.LLM.APIKey != "file-key" || cfg.LLM.Model != "demo" {
		t.Fatalf("unexpected llm section %+v", cfg.LLM)
	}
	if cfg.Cache.Backend != config.CacheBackendRedis {
		t.Fatalf("unexpected cache backend %q", cfg.Cache.Backend)
	}
	if got := strings.Join(cfg.Generation.Platforms, ","); got != "twitter,linkedin" {
		t.Fatalf("expected normalized platforms, got %q", got)
	}
	if cfg.Generation.CandidatePoolSize != 12 || cfg.Generation.TopK != 2 {
		t.Fatalf("unexpected generation section %+v", cfg.Generation)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown backend":    func(c *config.Config) { c.Cache.Backend = "memcached" },
		"redis without url":  func(c *config.Config) { c.Cache.Backend = "redis"; c.Cache.RedisURL = "" },
		"zero attempts":      func(c *config.Config) { c.Retry.MaxAttempts = 0 },
		"jitter above one":   func(c *config.Config) { c.Retry.Jitter = 1.5 },
		"unknown platform":   func(c *config.Config) { c.Generation.Platforms = []string{"myspace"} },
		"no platforms":       func(c *config.Config) { c.Generation.Platforms = nil },
		"top k above pool":   func(c *config.Config) { c.Generation.TopK = 20 },
		"negative weight":    func(c *config.Config) { c.Generation.AlignmentWeight = -1 },
		"zero weights":       func(c *config.Config) { c.Generation.AlignmentWeight = 0; c.Generation.CoherenceWeight = 0 },
		"bad animation":      func(c *config.Config) { c.Generation.AnimationStyle = "spin" },
		"worthiness range":   func(c *config.Config) { c.Generation.MinMemeWorthiness = 2 },
		"unknown log level":  func(c *config.Config) { c.Logging.Level = "loud" },
		"base delay too big": func(c *config.Config) { c.Retry.BaseDelayMillis = 20000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Generation.TopK != 3 {
		t.Fatalf("unexpected sample top_k %d", cfg.Generation.TopK)
	}
}
