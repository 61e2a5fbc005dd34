package runs_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/flowconfig"
	"memeflow/internal/runs"
	"memeflow/internal/services"
)

func openStore(t *testing.T, opts ...runs.Option) *runs.Store {
	t.Helper()
	store, err := runs.Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateIssuesSortableIDAndDirectories(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := openStore(t, runs.WithClock(func() time.Time { return now }))

	run, err := store.Create(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^run_20260301_120000_[0-9a-f]{8}$`), run.ID)
	assert.Equal(t, now, run.CreatedAt)
	for _, sub := range runs.RunSubdirs {
		info, err := os.Stat(filepath.Join(run.Dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}

	exists, err := store.Exists(context.Background(), run.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateIDsAreUniqueWithinOneSecond(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := openStore(t, runs.WithClock(func() time.Time { return now }))

	seen := make(map[string]struct{})
	for range 20 {
		run, err := store.Create(context.Background())
		require.NoError(t, err)
		_, dup := seen[run.ID]
		require.False(t, dup, run.ID)
		seen[run.ID] = struct{}{}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.Create(ctx)
	require.NoError(t, err)

	want := sampleSnapshot()
	want.RunID = run.ID
	want.CreatedAt = run.CreatedAt
	require.NoError(t, store.Save(ctx, run.ID, want))

	got, err := store.Load(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Flows, got.Flows)
	assert.Equal(t, want.Namespaces, got.Namespaces)
	require.Len(t, got.Config, len(want.Config))
	for key, value := range want.Config {
		assert.True(t, value.Equal(got.Config[key]), key)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, run.ID, sampleSnapshot()))

	started := run.CreatedAt.Add(time.Minute)
	second := runs.Snapshot{
		Flows: []runs.FlowRecord{{Name: "animation", Status: runs.FlowRunning, StartedAt: started}},
		Config: map[string]flowconfig.Value{
			"skip_animation": flowconfig.BoolValue(true),
		},
		Namespaces: map[string]map[string]json.RawMessage{
			"animation": {"style": json.RawMessage(`"bounce"`)},
		},
	}
	require.NoError(t, store.Save(ctx, run.ID, second))

	got, err := store.Load(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Flows, 1)
	assert.Equal(t, "animation", got.Flows[0].Name)
	assert.Equal(t, runs.FlowRunning, got.Flows[0].Status)
	assert.True(t, started.Equal(got.Flows[0].StartedAt))
	assert.Equal(t, second.Namespaces, got.Namespaces)
	require.Len(t, got.Config, 1)
	assert.True(t, got.Config["skip_animation"].Bool)
}

func TestSaveRejectsNamespaceWithoutFlow(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, run.ID, sampleSnapshot()))

	err = store.Save(ctx, run.ID, runs.Snapshot{
		Flows:      []runs.FlowRecord{},
		Namespaces: map[string]map[string]json.RawMessage{"orphan": {"k": json.RawMessage(`1`)}},
	})
	require.Error(t, err)
	assert.Equal(t, services.KindContract, services.KindOf(err))

	got, err := store.Load(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Flows, 2)
}

func TestLoadUnknownRunIsNotFound(t *testing.T) {
	store := openStore(t)

	_, err := store.Load(context.Background(), "run_20200101_000000_deadbeef")
	require.Error(t, err)
	assert.True(t, errors.Is(err, runs.ErrRunNotFound))
	assert.True(t, errors.Is(err, services.ErrNotFound))
	assert.Equal(t, services.KindNotFound, services.KindOf(err))
	assert.True(t, services.IsUserError(err))
	assert.False(t, errors.Is(err, services.ErrPersistence))
}

func TestLoadRejectsPathLikeIDs(t *testing.T) {
	store := openStore(t)
	_, err := store.Load(context.Background(), "../etc")
	require.Error(t, err)
	assert.Equal(t, services.KindUserInput, services.KindOf(err))
}

func TestCommitFlowKeepsOtherNamespaces(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.Create(ctx)
	require.NoError(t, err)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err = store.CommitFlow(ctx, run.ID,
		runs.FlowRecord{Name: "text", Status: runs.FlowCompleted, StartedAt: started, LastNode: "content_curation"},
		map[string]json.RawMessage{"content_curation": json.RawMessage(`{"twitter":{"post":"gm"}}`)},
		map[string]flowconfig.Value{"tone": flowconfig.StringValue("edgy")})
	require.NoError(t, err)

	snapshot, err := store.CommitFlow(ctx, run.ID,
		runs.FlowRecord{Name: "meme", Status: runs.FlowRunning, StartedAt: started.Add(time.Minute)},
		map[string]json.RawMessage{},
		nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"text", "meme"}, snapshot.FlowNames())
	assert.True(t, snapshot.Completed("text"))
	assert.False(t, snapshot.Completed("meme"))
	assert.JSONEq(t, `{"twitter":{"post":"gm"}}`, string(snapshot.Namespaces["text"]["content_curation"]))
	assert.Equal(t, "edgy", snapshot.Config["tone"].Str, "nil config leaves the stored config alone")

	// Re-committing a flow keeps its original position.
	snapshot, err = store.CommitFlow(ctx, run.ID,
		runs.FlowRecord{Name: "text", Status: runs.FlowCompleted, StartedAt: started, LastNode: "content_curation"},
		map[string]json.RawMessage{"content_curation": json.RawMessage(`{"twitter":{"post":"gm again"}}`)},
		nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "meme"}, snapshot.FlowNames())
	assert.Contains(t, snapshot.Namespaces, "meme")
}

func TestCommitFlowUnknownRun(t *testing.T) {
	store := openStore(t)
	_, err := store.CommitFlow(context.Background(), "run_20200101_000000_deadbeef",
		runs.FlowRecord{Name: "text", Status: runs.FlowRunning, StartedAt: time.Now()}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, services.KindNotFound, services.KindOf(err))
}

func TestConcurrentCommitsForDifferentFlows(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.Create(ctx)
	require.NoError(t, err)

	flows := []string{"text", "meme", "animation"}
	var wg sync.WaitGroup
	for _, name := range flows {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CommitFlow(ctx, run.ID,
				runs.FlowRecord{Name: name, Status: runs.FlowCompleted, StartedAt: time.Now().UTC()},
				map[string]json.RawMessage{name + "_output": json.RawMessage(`true`)}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snapshot, err := store.Load(ctx, run.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, flows, snapshot.FlowNames())
	for _, name := range flows {
		assert.Contains(t, snapshot.Namespaces[name], name+"_output")
	}
}

func TestListOrdersByCreationTime(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	store := openStore(t, runs.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
	ctx := context.Background()

	var ids []string
	for range 3 {
		run, err := store.Create(ctx)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	_, err := store.CommitFlow(ctx, ids[1],
		runs.FlowRecord{Name: "text", Status: runs.FlowAborted, StartedAt: clock, Error: &runs.FlowError{Kind: "transient", Message: "llm unavailable"}},
		nil, nil)
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, run := range list {
		assert.Equal(t, ids[i], run.ID)
	}
	require.Len(t, list[1].Flows, 1)
	assert.Equal(t, runs.FlowAborted, list[1].Flows[0].Status)
	assert.Equal(t, "transient", list[1].Flows[0].Error.Kind)
}

func TestStoreExportWritesMetadataFile(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.Create(ctx)
	require.NoError(t, err)
	snapshot, err := store.Load(ctx, run.ID)
	require.NoError(t, err)

	path, err := store.Export(snapshot)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(run.Dir, "metadata", runs.SnapshotFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded runs.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, run.ID, decoded.RunID)
}

func TestReopenKeepsRuns(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	first, err := runs.Open(root)
	require.NoError(t, err)
	run, err := first.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := runs.Open(root)
	require.NoError(t, err)
	defer second.Close()
	exists, err := second.Exists(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}
