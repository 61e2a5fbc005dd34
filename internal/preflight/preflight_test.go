package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.BusinessDocumentsDir = t.TempDir()
	cfg.Paths.BrandIdentityDir = t.TempDir()
	cfg.Paths.MemeTemplatesDir = t.TempDir()
	cfg.LLM.APIKey = "test"
	return &cfg
}

func resolve(t *testing.T, cfg *config.Config, override string) *flowconfig.Config {
	t.Helper()
	opts, err := flowconfig.Resolve(flowconfig.DefaultsFrom(cfg), override, nil)
	if err != nil {
		t.Fatalf("resolve %q: %v", override, err)
	}
	return opts
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadableDirectory_Empty(t *testing.T) {
	if result := CheckReadableDirectory("docs", "  "); result.Passed {
		t.Fatal("expected failure for unset path")
	}
}

func TestCheckAPIKey(t *testing.T) {
	if CheckAPIKey("llm", "").Passed {
		t.Fatal("expected failure for missing key")
	}
	result := CheckAPIKey("llm", "sk-secret")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if strings.Contains(result.Detail, "sk-secret") {
		t.Fatal("detail must not echo the key")
	}
}

func TestCheckServiceURL(t *testing.T) {
	cases := map[string]bool{
		"http://127.0.0.1:8088":  true,
		"https://images.example": true,
		"":                       false,
		"ftp://images.example":   false,
		"images.example/no-host": false,
	}
	for raw, want := range cases {
		if got := CheckServiceURL("svc", raw).Passed; got != want {
			t.Errorf("CheckServiceURL(%q) passed=%v, want %v", raw, got, want)
		}
	}
}

func TestCheckPlatforms(t *testing.T) {
	cfg := testConfig(t)
	if result := CheckPlatforms(resolve(t, cfg, "platforms=twitter")); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckPlatforms(resolve(t, cfg, "platforms=myspace"))
	if result.Passed {
		t.Fatal("expected failure for unknown platform")
	}
	if !strings.Contains(result.Detail, "myspace") {
		t.Fatalf("detail should name the platform: %s", result.Detail)
	}
}

func TestCheckImageService_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckImageService(context.Background(), srv.URL, "good-key")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckImageService_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckImageService(context.Background(), srv.URL, "bad-key")
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckImageService_MissingURL(t *testing.T) {
	if CheckImageService(context.Background(), "", "key").Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil, "text", nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_TextFlow(t *testing.T) {
	cfg := testConfig(t)
	results := RunAll(cfg, "text", resolve(t, cfg, ""))
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if err := Failures(results); err != nil {
		t.Fatalf("Failures returned %v", err)
	}
}

func TestRunAll_OverridePathWins(t *testing.T) {
	cfg := testConfig(t)
	missing := filepath.Join(t.TempDir(), "missing")
	results := RunAll(cfg, "meme", resolve(t, cfg, "meme_templates_path="+missing))
	err := Failures(results)
	if err == nil {
		t.Fatal("expected failure for missing templates directory")
	}
	if services.KindOf(err) != services.KindConfiguration {
		t.Fatalf("kind = %s, want configuration", services.KindOf(err))
	}
	if !strings.Contains(err.Error(), "Meme templates") {
		t.Fatalf("error should name the check: %v", err)
	}
}

func TestRunAll_AnimationSkipped(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImageGen.BaseURL = ""
	if err := Failures(RunAll(cfg, "animation", resolve(t, cfg, ""))); err == nil {
		t.Fatal("expected image service failure")
	}
	if err := Failures(RunAll(cfg, "animation", resolve(t, cfg, "skip_animation=true"))); err != nil {
		t.Fatalf("skipped animation should not need the image service: %v", err)
	}
}
