package memeflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/stage"
	"memeflow/internal/testsupport"
)

// Substrings identifying each prompt.
const (
	matchSentiment = "meme psychology"
	matchImage     = "analyzing a template image"
	matchTextGen   = "viral meme creator"
)

const (
	analysisJSON = `{"dominant_emotion": "Joy", "humor_type": "witty", "meme_worthiness_score": 0.8,
"meme_angle": "celebrate the win", "visual_vibe": "confident_success", "narrative_intent": "community",
"suggested_template_categories": ["Success Kid", "reaction_memes"]}`
	imageJSON = `{"image_description": "A toddler clenching a fist of sand on a beach.",
"visual_elements": ["fist pump", "beach"], "emotional_context": "triumph", "meme_format": "success_kid",
"text_placement_suitability": {"top": "good", "bottom": "good"},
"suggested_narrative_structure": "setup/punchline", "humor_opportunities": ["small wins", "unexpected success"]}`
	brandJSON = `{"brand_name": "Gm Wallet", "primary_color": "#1a2b3c", "secondary_color": "#fff",
"visual_tone": "bright", "logo_path": "logo.png"}`
)

// optionsJSON returns n caption options with descending virality.
func optionsJSON(n int) string {
	options := make([]string, n)
	for i := range options {
		options[i] = fmt.Sprintf(`{"top_text": "top %d", "bottom_text": "bottom %d", "virality_score": %.2f, "image_coherence_score": 0.5, "humor_pattern_used": "wordplay"}`,
			i+1, i+1, 0.9-float64(i)*0.05)
	}
	return `{"options": [` + strings.Join(options, ",") + `]}`
}

func scriptedLLM(poolSize int) *testsupport.FakeLLM {
	return testsupport.NewFakeLLM().
		On(matchSentiment, analysisJSON).
		On(matchImage, imageJSON).
		On(matchTextGen, optionsJSON(poolSize))
}

// writeAssets lays out two template categories and a brand identity.
func writeAssets(t *testing.T, cfg *config.Config) {
	t.Helper()
	templates := cfg.Paths.MemeTemplatesDir
	testsupport.WritePNG(t, filepath.Join(templates, "success_kid", "kid.png"), 100, 200)
	testsupport.WritePNG(t, filepath.Join(templates, "success_kid", "kid_alt.png"), 120, 80)
	testsupport.WritePNG(t, filepath.Join(templates, "drake", "drake.png"), 60, 60)
	testsupport.WritePNG(t, filepath.Join(templates, "loose.png"), 10, 10)
	testsupport.WriteText(t, filepath.Join(cfg.Paths.BrandIdentityDir, "brand_config.json"), brandJSON)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.BrandIdentityDir, "logo.png"), 16, 16)
}

// harness threads node outputs into later inputs the way the engine does.
type harness struct {
	t      *testing.T
	cfg    *config.Config
	runDir string
	runID  string
	values map[stage.Key]json.RawMessage
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	return &harness{t: t, cfg: cfg, runDir: t.TempDir(), runID: "20260301-120000-abcd", values: map[stage.Key]json.RawMessage{}}
}

func (h *harness) input(override string) *stage.Input {
	h.t.Helper()
	resolved, err := flowconfig.Resolve(flowconfig.DefaultsFrom(h.cfg), override, nil)
	require.NoError(h.t, err)
	return stage.NewInput("meme", h.runID, h.runDir, resolved, nil, h.values)
}

func (h *harness) set(key stage.Key, value any) {
	h.t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(h.t, err)
	h.values[key] = raw
}

func (h *harness) setRaw(key stage.Key, raw string) {
	h.values[key] = json.RawMessage(raw)
}

// run executes node and merges its outputs.
func (h *harness) run(node stage.Node, override string) (*stage.Output, error) {
	h.t.Helper()
	out, err := node.Run(context.Background(), h.input(override))
	if err != nil {
		return nil, err
	}
	maps.Copy(h.values, out.Values())
	return out, nil
}

func (h *harness) mustRun(node stage.Node, override string) *stage.Output {
	h.t.Helper()
	out, err := h.run(node, override)
	require.NoError(h.t, err)
	return out
}

func decode[T any](t *testing.T, out *stage.Output, key stage.Key) T {
	t.Helper()
	var value T
	raw, ok := out.Values()[key]
	require.True(t, ok, "missing %s", key)
	require.NoError(t, json.Unmarshal(raw, &value))
	return value
}
