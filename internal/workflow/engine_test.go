package workflow_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/flowconfig"
	"memeflow/internal/runs"
	"memeflow/internal/services"
	"memeflow/internal/stage"
	"memeflow/internal/workflow"
)

type observed struct {
	mu      sync.Mutex
	nodes   []string
	retries []string
	flows   []string
}

func (o *observed) ObserveNode(flow, node string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := "ok"
	if err != nil {
		status = string(services.KindOf(err))
	}
	o.nodes = append(o.nodes, flow+"."+node+":"+status)
}

func (o *observed) ObserveRetry(flow, node string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, flow+"."+node)
}

func (o *observed) ObserveFlow(flow, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flows = append(o.flows, flow+":"+status)
}

func newEngine(t *testing.T, opts ...workflow.EngineOption) (*workflow.Engine, *runs.Store, string) {
	t.Helper()
	store, err := runs.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	run, err := store.Create(context.Background())
	require.NoError(t, err)
	base := []workflow.EngineOption{
		workflow.WithRetry(stage.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		workflow.WithSleep(func(context.Context, time.Duration) error { return nil }),
	}
	return workflow.NewEngine(store, append(base, opts...)...), store, run.ID
}

func resolved(t *testing.T, override string) *flowconfig.Config {
	t.Helper()
	cfg, err := flowconfig.Resolve(flowconfig.DefaultsFrom(nil), override, nil)
	require.NoError(t, err)
	return cfg
}

func contractFailure() error {
	return services.Wrap(services.ErrContract, "test", "node", "bad payload", nil)
}

func TestExecuteCompletesAndCheckpoints(t *testing.T) {
	obs := &observed{}
	engine, store, runID := newEngine(t, workflow.WithObserver(obs))
	flow, err := workflow.Compose("text", node("text", "a"), node("text", "b", requires(stage.K("text", "a"))))
	require.NoError(t, err)

	result, err := engine.Execute(context.Background(), flow, workflow.Invocation{RunID: runID, Config: resolved(t, "tone=edgy")})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCompleted, result.State)
	require.Len(t, result.Nodes, 2)
	for _, n := range result.Nodes {
		assert.Equal(t, workflow.NodeCompleted, n.Status)
		assert.Equal(t, 1, n.Attempts)
	}

	snapshot, err := store.Load(context.Background(), runID)
	require.NoError(t, err)
	assert.True(t, snapshot.Completed("text"))
	record, _ := snapshot.Flow("text")
	assert.Equal(t, "b", record.LastNode)
	assert.NotNil(t, record.FinishedAt)
	assert.JSONEq(t, `"a-value"`, string(snapshot.Namespaces["text"]["a"]))
	assert.Equal(t, flowconfig.StringValue("edgy"), snapshot.Config["tone"])
	_, storedDefault := snapshot.Config["platforms"]
	assert.False(t, storedDefault, "defaults must not be stored as explicit choices")

	assert.Equal(t, []string{"text.a:ok", "text.b:ok"}, obs.nodes)
	assert.Equal(t, []string{"text:completed"}, obs.flows)
}

func TestExecuteAbortKeepsEarlierOutputs(t *testing.T) {
	obs := &observed{}
	engine, store, runID := newEngine(t, workflow.WithObserver(obs))
	calls := map[string]int{}
	counting := func(name string, fail error) stage.Func {
		return node("text", name, does(func(context.Context, *stage.Input) (*stage.Output, error) {
			calls[name]++
			if fail != nil {
				return nil, fail
			}
			out := stage.NewOutput()
			if err := out.Set(stage.K("text", name), name+"-value"); err != nil {
				return nil, err
			}
			return out, nil
		}))
	}
	flow, err := workflow.Compose("text",
		counting("n1", nil), counting("n2", nil), counting("n3", contractFailure()),
		counting("n4", nil), counting("n5", nil))
	require.NoError(t, err)

	result, err := engine.Execute(context.Background(), flow, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrContract))
	assert.Equal(t, workflow.StateAborted, result.State)
	assert.Equal(t, map[string]int{"n1": 1, "n2": 1, "n3": 1}, calls, "contract failures are not retried")

	failed, ok := result.Failed()
	require.True(t, ok)
	assert.Equal(t, "n3", failed.Node)
	assert.Equal(t, services.KindContract, failed.Error.Kind)
	assert.Equal(t, workflow.NodePending, result.Nodes[3].Status)

	snapshot, err := store.Load(context.Background(), runID)
	require.NoError(t, err)
	record, ok := snapshot.Flow("text")
	require.True(t, ok)
	assert.Equal(t, runs.FlowAborted, record.Status)
	assert.Equal(t, "n2", record.LastNode)
	require.NotNil(t, record.Error)
	assert.Equal(t, "contract", record.Error.Kind)
	assert.Contains(t, record.Error.Message, "n3")
	assert.Equal(t, []string{"n1", "n2"}, sortedKeys(snapshot.Namespaces["text"]))

	assert.Equal(t, []string{"text:aborted"}, obs.flows)

	memeCalls := 0
	chained, err := workflow.Compose("meme",
		node("meme", "m1", requires(stage.K("text", "n5")), does(func(context.Context, *stage.Input) (*stage.Output, error) {
			memeCalls++
			return stage.NewOutput(), nil
		})),
	)
	require.NoError(t, err)
	result, err = engine.Execute(context.Background(), chained, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrComposition))
	assert.Contains(t, err.Error(), "m1")
	assert.Contains(t, err.Error(), "text.n5")
	assert.Equal(t, 0, memeCalls)
	assert.Equal(t, workflow.StateAborted, result.State)

	snapshot, err = store.Load(context.Background(), runID)
	require.NoError(t, err)
	memeRecord, _ := snapshot.Flow("meme")
	assert.Equal(t, runs.FlowAborted, memeRecord.Status)
	assert.Equal(t, "composition", memeRecord.Error.Kind)
	assert.Equal(t, []string{"n1", "n2"}, sortedKeys(snapshot.Namespaces["text"]), "text outputs survive the meme commit")
}

func TestExecuteChainsCompletedFlow(t *testing.T) {
	engine, _, runID := newEngine(t)
	text, err := workflow.Compose("text", node("text", "business_context"))
	require.NoError(t, err)
	_, err = engine.Execute(context.Background(), text, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.NoError(t, err)

	var seen string
	meme, err := workflow.Compose("meme", node("meme", "sentiment", requires(stage.K("text", "business_context")),
		does(func(_ context.Context, in *stage.Input) (*stage.Output, error) {
			if err := in.Decode(stage.K("text", "business_context"), &seen); err != nil {
				return nil, err
			}
			out := stage.NewOutput()
			return out, out.Set(stage.K("meme", "sentiment"), "joy")
		})))
	require.NoError(t, err)

	result, err := engine.Execute(context.Background(), meme, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.NoError(t, err)
	assert.Equal(t, "business_context-value", seen)
	assert.Equal(t, []string{"meme", "text"}, sortedKeys(result.Snapshot.Namespaces))
}

func TestExecuteHidesIncompleteFlows(t *testing.T) {
	engine, _, runID := newEngine(t)
	text, err := workflow.Compose("text",
		node("text", "business_context"),
		node("text", "trend", does(func(context.Context, *stage.Input) (*stage.Output, error) {
			return nil, contractFailure()
		})))
	require.NoError(t, err)
	_, err = engine.Execute(context.Background(), text, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.Error(t, err)

	meme, err := workflow.Compose("meme", node("meme", "sentiment", requires(stage.K("text", "business_context"))))
	require.NoError(t, err)
	_, err = engine.Execute(context.Background(), meme, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrComposition))
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	obs := &observed{}
	engine, _, runID := newEngine(t, workflow.WithObserver(obs))
	attempts := 0
	flow, err := workflow.Compose("text", node("text", "trend", does(func(context.Context, *stage.Input) (*stage.Output, error) {
		attempts++
		if attempts < 3 {
			return nil, services.Transient(services.ReasonRateLimited, "llm", "complete", "rate limited", nil)
		}
		out := stage.NewOutput()
		return out, out.Set(stage.K("text", "trend"), "ok")
	})))
	require.NoError(t, err)

	result, err := engine.Execute(context.Background(), flow, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Nodes[0].Attempts)
	assert.Equal(t, []string{"text.trend", "text.trend"}, obs.retries)
}

func TestExecuteStopsBetweenNodesOnCancel(t *testing.T) {
	engine, store, runID := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	secondRan := false
	flow, err := workflow.Compose("text",
		node("text", "first", does(func(context.Context, *stage.Input) (*stage.Output, error) {
			cancel()
			out := stage.NewOutput()
			return out, out.Set(stage.K("text", "first"), "done")
		})),
		node("text", "second", does(func(context.Context, *stage.Input) (*stage.Output, error) {
			secondRan = true
			return stage.NewOutput(), nil
		})),
	)
	require.NoError(t, err)

	result, err := engine.Execute(ctx, flow, workflow.Invocation{RunID: runID, Config: resolved(t, "")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, secondRan)
	assert.Equal(t, workflow.StateAborted, result.State)
	assert.Equal(t, workflow.NodeCompleted, result.Nodes[0].Status)

	snapshot, err := store.Load(context.Background(), runID)
	require.NoError(t, err)
	record, _ := snapshot.Flow("text")
	assert.Equal(t, runs.FlowAborted, record.Status)
	assert.Equal(t, "first", record.LastNode)
	assert.Equal(t, []string{"first"}, sortedKeys(snapshot.Namespaces["text"]))
}

func TestExecuteUnknownRun(t *testing.T) {
	engine, _, _ := newEngine(t)
	flow, err := workflow.Compose("text", node("text", "a"))
	require.NoError(t, err)
	_, err = engine.Execute(context.Background(), flow, workflow.Invocation{RunID: "run_missing", Config: resolved(t, "")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
