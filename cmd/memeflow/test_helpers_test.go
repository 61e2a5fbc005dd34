package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"memeflow/internal/cache"
	"memeflow/internal/config"
	"memeflow/internal/testsupport"
	"memeflow/internal/workflow"
)

const (
	cliBusinessJSON = `{"brand_identity": {"core_narrative": "We make self custody feel friendly."},
"communication_style": {"tone_descriptors": ["playful"]}}`
	cliTrendsJSON  = `{"topics": [{"topic": "Restaking", "relevance_score": 0.9}]}`
	cliTwitterJSON = `{"post": "Restaking is staking with extra steps", "hashtags": ["#DeFi"]}`
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	llm        *testsupport.FakeLLM
	images     *testsupport.FakeImageGen
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	testsupport.WriteText(t, filepath.Join(cfg.Paths.BusinessDocumentsDir, "about.md"), "We make self custody feel friendly.\n")

	configPath := filepath.Join(homeDir, ".config", "memeflow", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		llm: testsupport.NewFakeLLM().
			On("brand strategist", cliBusinessJSON).
			On("trend intelligence expert", cliTrendsJSON).
			On("viral Twitter", cliTwitterJSON),
		images: testsupport.NewFakeImageGen(t),
	}
}

func (e *cliTestEnv) deps(_ *config.Config, store *cache.Store) workflow.Deps {
	return workflow.Deps{LLM: e.llm, Images: e.images, Cache: store}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, e.deps, append([]string{"--config", e.configPath}, args...))
}

func runCLI(t *testing.T, deps depsFactory, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWithDeps(deps)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
