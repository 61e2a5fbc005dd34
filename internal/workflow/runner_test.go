package workflow_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/animation"
	"memeflow/internal/config"
	"memeflow/internal/memeflow"
	"memeflow/internal/metrics"
	"memeflow/internal/runs"
	"memeflow/internal/services"
	"memeflow/internal/testsupport"
	"memeflow/internal/workflow"
)

const (
	runnerBusinessJSON = `{"brand_identity": {"core_narrative": "We make self custody feel friendly."},
"communication_style": {"tone_descriptors": ["playful"]}}`
	runnerTrendsJSON   = `{"topics": [{"topic": "Restaking", "relevance_score": 0.9}]}`
	runnerTwitterJSON  = `{"post": "Restaking is staking with extra steps", "hashtags": ["#DeFi"]}`
	runnerAnalysisJSON = `{"dominant_emotion": "joy", "humor_type": "witty", "meme_worthiness_score": 0.8,
"suggested_template_categories": ["success_kid"]}`
	runnerImageJSON = `{"image_description": "A toddler clenching a fist of sand.", "meme_format": "success_kid"}`
	runnerBrandJSON = `{"brand_name": "Gm Wallet", "primary_color": "#1a2b3c", "secondary_color": "#ffffff"}`
)

func runnerLLM() *testsupport.FakeLLM {
	options := `{"options": [`
	for i, pattern := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		if i > 0 {
			options += ","
		}
		options += `{"top_text": "when the ` + pattern + `", "bottom_text": "gm", "virality_score": 0.8, "image_coherence_score": 0.6}`
	}
	options += `]}`
	return testsupport.NewFakeLLM().
		On("brand strategist", runnerBusinessJSON).
		On("trend intelligence expert", runnerTrendsJSON).
		On("viral Twitter", runnerTwitterJSON).
		On("meme psychology", runnerAnalysisJSON).
		On("analyzing a template image", runnerImageJSON).
		On("viral meme creator", options)
}

type runnerFixture struct {
	cfg    *config.Config
	store  *runs.Store
	llm    *testsupport.FakeLLM
	images *testsupport.FakeImageGen
	runner *workflow.Runner
}

func newRunnerFixture(t *testing.T, opts ...workflow.RunnerOption) *runnerFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.TextfilePath = filepath.Join(testsupport.BaseDir(cfg), "metrics", "memeflow.prom")
	testsupport.WriteText(t, filepath.Join(cfg.Paths.BusinessDocumentsDir, "about.md"), "We make self custody feel friendly.\n")
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.MemeTemplatesDir, "success_kid", "kid.png"), 100, 200)
	testsupport.WriteText(t, filepath.Join(cfg.Paths.BrandIdentityDir, "brand_config.json"), runnerBrandJSON)

	f := &runnerFixture{
		cfg:    cfg,
		store:  testsupport.MustOpenRuns(t, cfg),
		llm:    runnerLLM(),
		images: testsupport.NewFakeImageGen(t),
	}
	deps := workflow.Deps{LLM: f.llm, Images: f.images, Cache: testsupport.MustOpenCache(t, cfg)}
	opts = append([]workflow.RunnerOption{workflow.WithMetrics(metrics.New())}, opts...)
	f.runner = workflow.NewRunner(cfg, f.store, deps, opts...)
	return f
}

func (f *runnerFixture) runCount(t *testing.T) int {
	t.Helper()
	list, err := f.store.List(context.Background())
	require.NoError(t, err)
	return len(list)
}

func TestRunnerRunAllChainsFlows(t *testing.T) {
	f := newRunnerFixture(t)

	results, err := f.runner.RunAll(context.Background(), workflow.Request{Override: "platforms=twitter"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	runID := results[0].RunID
	for i, name := range workflow.FlowNames {
		assert.Equal(t, name, results[i].Flow)
		assert.Equal(t, runID, results[i].RunID)
		assert.Equal(t, workflow.StateCompleted, results[i].State)
	}

	snapshot := results[2].Snapshot
	for _, name := range workflow.FlowNames {
		assert.True(t, snapshot.Completed(name), "flow %s should be completed", name)
	}

	var final memeflow.FinalMeme
	require.NoError(t, json.Unmarshal(snapshot.Namespace(memeflow.Namespace)["final_meme"], &final))
	runDir := f.store.RunDir(runID)
	assert.FileExists(t, filepath.Join(runDir, filepath.FromSlash(final.Path)))

	var clip animation.AnimatedMeme
	require.NoError(t, json.Unmarshal(snapshot.Namespace(animation.Namespace)["animated_meme"], &clip))
	assert.False(t, clip.Skipped)
	assert.Equal(t, animation.StyleBounce, clip.StyleUsed)
	assert.Equal(t, "video/animated_meme.gif", clip.Path)

	assert.FileExists(t, f.store.SnapshotPath(runID))
	assert.FileExists(t, filepath.Join(runDir, "content", "twitter.json"))

	flowLog, err := os.ReadFile(filepath.Join(runDir, "metadata", "flow.log"))
	require.NoError(t, err)
	assert.Contains(t, string(flowLog), `"event_type":"flow_complete"`)
	assert.Contains(t, string(flowLog), runID)

	prom, err := os.ReadFile(f.cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "memeflow_node_runs_total")

	// The platform content from the text flow fed the meme flow.
	assert.Equal(t, 1, f.llm.CallCount("meme psychology"))
	for _, call := range f.llm.Calls() {
		if strings.Contains(call.System, "meme psychology") {
			assert.Contains(t, call.User, "Restaking is staking with extra steps")
		}
	}
	assert.Len(t, f.images.Animates, 1)
}

func TestRunnerInheritsRunConfig(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	meme, err := f.runner.Run(ctx, workflow.Request{Flow: "meme", Override: "input_text=gm frens,skip_animation=true"})
	require.NoError(t, err)

	anim, err := f.runner.Run(ctx, workflow.Request{Flow: "animation", RunID: meme.RunID})
	require.NoError(t, err)

	var clip animation.AnimatedMeme
	require.NoError(t, json.Unmarshal(anim.Snapshot.Namespace(animation.Namespace)["animated_meme"], &clip))
	assert.True(t, clip.Skipped)
	assert.Equal(t, "skip_animation is set", clip.SkipReason)
	assert.Empty(t, f.images.Animates)
}

func TestRunnerRejectsUnknownFlow(t *testing.T) {
	f := newRunnerFixture(t)

	_, err := f.runner.Run(context.Background(), workflow.Request{Flow: "video"})
	require.Error(t, err)
	assert.True(t, services.IsUserError(err))
	assert.Zero(t, f.runCount(t))
}

func TestRunnerPreflightFailureCreatesNoRun(t *testing.T) {
	f := newRunnerFixture(t)
	require.NoError(t, os.RemoveAll(f.cfg.Paths.BusinessDocumentsDir))

	_, err := f.runner.Run(context.Background(), workflow.Request{Flow: "text"})
	require.Error(t, err)
	assert.Equal(t, services.KindConfiguration, services.KindOf(err))
	assert.Contains(t, err.Error(), "Business documents")
	assert.Zero(t, f.runCount(t))
	assert.Zero(t, f.llm.CallCount("brand strategist"))
}

func TestRunnerUnknownRun(t *testing.T) {
	f := newRunnerFixture(t)

	_, err := f.runner.Run(context.Background(), workflow.Request{Flow: "meme", RunID: "20260101-000000-dead"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRunnerRejectsForeignOutputPath(t *testing.T) {
	f := newRunnerFixture(t)

	_, err := f.runner.Run(context.Background(), workflow.Request{Flow: "text", Override: "output_path=" + t.TempDir()})
	require.Error(t, err)
	assert.True(t, services.IsUserError(err))
	assert.Contains(t, err.Error(), "output_path")
}

func TestRunnerRefusesLockedRun(t *testing.T) {
	f := newRunnerFixture(t)
	run := testsupport.NewRun(t, f.store)

	lock := flock.New(filepath.Join(f.store.RunDir(run.ID), "metadata", ".lock"))
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = lock.Unlock() })

	result, err := f.runner.Run(context.Background(), workflow.Request{Flow: "text", RunID: run.ID})
	require.Error(t, err)
	assert.True(t, services.IsUserError(err))
	assert.Equal(t, workflow.StatePending, result.State)
	assert.Zero(t, f.llm.CallCount("brand strategist"))
}

func TestRunnerAbortStillExportsSnapshot(t *testing.T) {
	f := newRunnerFixture(t)
	f.images.Err = services.Wrap(services.ErrContract, "imagegen", "brand", "rejected", nil)

	result, err := f.runner.Run(context.Background(), workflow.Request{Flow: "meme", Override: "input_text=gm"})
	require.Error(t, err)
	assert.Equal(t, workflow.StateAborted, result.State)

	failed, ok := result.Failed()
	require.True(t, ok)
	assert.Equal(t, memeflow.NodeBrandBlending, failed.Node)

	data, err := os.ReadFile(f.store.SnapshotPath(result.RunID))
	require.NoError(t, err)
	var exported runs.Snapshot
	require.NoError(t, json.Unmarshal(data, &exported))
	record, ok := exported.Flow("meme")
	require.True(t, ok)
	assert.Equal(t, runs.FlowAborted, record.Status)
	assert.Contains(t, exported.Namespace("meme"), "image_analysis")
	assert.NotContains(t, exported.Namespace("meme"), "branded_template")
}
