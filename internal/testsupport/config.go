package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"memeflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Input directories (business documents, brand identity, templates) are
// created empty; output, cache and log directories are left to the code
// under test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.VisionModel = cfgVal.LLM.Model
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.BusinessDocumentsDir = filepath.Join(base, "business_documents")
	cfgVal.Paths.BrandIdentityDir = filepath.Join(base, "brand_identity")
	cfgVal.Paths.MemeTemplatesDir = filepath.Join(base, "templates")
	cfgVal.Retry.BaseDelayMillis = 1
	cfgVal.Retry.MaxDelayMillis = 5

	for _, dir := range []string{
		cfgVal.Paths.BusinessDocumentsDir,
		cfgVal.Paths.BrandIdentityDir,
		cfgVal.Paths.MemeTemplatesDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMKey sets the language-model API key on the test config.
func WithLLMKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithImageGenURL points the image collaborator at url, typically an
// httptest server.
func WithImageGenURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ImageGen.BaseURL = url
	}
}

// WithGeneration applies fn to the generation defaults.
func WithGeneration(fn func(*config.Generation)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Generation)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
