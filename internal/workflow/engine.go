package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"memeflow/internal/cache"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/runs"
	"memeflow/internal/services"
	"memeflow/internal/stage"
	"memeflow/internal/stageexec"
)

// State is the lifecycle position of one flow execution.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// NodeStatus is what happened to one node during an execution.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
)

// NodeOutcome reports one node of an execution.
type NodeOutcome struct {
	Node     string
	Status   NodeStatus
	Attempts int
	Duration time.Duration
	Cache    []cache.Outcome
	Notes    map[string]string
	Error    *services.ErrorDetails
}

// Result is the outcome of Engine.Execute.
type Result struct {
	RunID    string
	Flow     string
	State    State
	Nodes    []NodeOutcome
	Duration time.Duration
	Snapshot runs.Snapshot
}

// Failed returns the outcome of the node that aborted the flow.
func (r Result) Failed() (NodeOutcome, bool) {
	for _, node := range r.Nodes {
		if node.Status == NodeFailed {
			return node, true
		}
	}
	return NodeOutcome{}, false
}

// Invocation identifies the run a flow executes against and its resolved
// options.
type Invocation struct {
	RunID  string
	Config *flowconfig.Config
	// Logger overrides the engine logger for this execution.
	Logger *slog.Logger
}

// Observer receives execution measurements. metrics.Metrics implements it.
type Observer interface {
	ObserveNode(flow, node string, duration time.Duration, err error)
	ObserveRetry(flow, node string, err error)
	ObserveFlow(flow, status string, duration time.Duration)
}

// Engine executes composed flows against the run registry.
type Engine struct {
	runs     *runs.Store
	logger   *slog.Logger
	retry    stage.RetryPolicy
	timeout  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	rand     func() float64
	observer Observer
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRetry sets the default retry policy for nodes that do not carry one.
func WithRetry(policy stage.RetryPolicy) EngineOption {
	return func(e *Engine) { e.retry = policy }
}

// WithNodeTimeout sets the default per-attempt timeout.
func WithNodeTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = timeout }
}

// WithSleep replaces the wait between retry attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) { e.sleep = sleep }
}

// WithRand replaces the jitter source.
func WithRand(rnd func() float64) EngineOption {
	return func(e *Engine) { e.rand = rnd }
}

// WithObserver attaches an execution observer.
func WithObserver(observer Observer) EngineOption {
	return func(e *Engine) { e.observer = observer }
}

// WithEngineClock replaces time.Now for flow record timestamps.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine over store.
func NewEngine(store *runs.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		runs:   store,
		logger: logging.NewNop(),
		retry:  stage.DefaultRetry(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// execution is the mutable state of one Execute call.
type execution struct {
	flow      *Flow
	inv       Invocation
	logger    *slog.Logger
	record    runs.FlowRecord
	namespace map[string]json.RawMessage
	values    map[stage.Key]json.RawMessage
	result    Result
	start     time.Time
}

// Execute runs flow against inv.RunID. It returns the result together with
// the error that aborted the flow, if any; the result is meaningful in both
// cases once the run was loaded.
func (e *Engine) Execute(ctx context.Context, flow *Flow, inv Invocation) (Result, error) {
	if flow == nil || len(flow.Nodes) == 0 {
		return Result{}, compositionError("", "flow is empty")
	}
	if err := ctx.Err(); err != nil {
		return Result{RunID: inv.RunID, Flow: flow.Name, State: StatePending}, cancelled(err)
	}

	snapshot, err := e.runs.Load(ctx, inv.RunID)
	if err != nil {
		return Result{RunID: inv.RunID, Flow: flow.Name, State: StatePending}, err
	}

	ctx = services.WithFlow(services.WithRunID(ctx, inv.RunID), flow.Name)
	base := inv.Logger
	if base == nil {
		base = e.logger
	}
	ex := &execution{
		flow:      flow,
		inv:       inv,
		logger:    logging.WithContext(ctx, base),
		namespace: make(map[string]json.RawMessage),
		values:    visibleValues(snapshot, flow.Name),
		start:     e.now(),
	}
	ex.result = Result{RunID: inv.RunID, Flow: flow.Name, State: StatePending, Nodes: pendingOutcomes(flow)}
	ex.record = runs.FlowRecord{Name: flow.Name, Status: runs.FlowRunning, StartedAt: ex.start.UTC()}

	snapshot, err = e.runs.CommitFlow(ctx, inv.RunID, ex.record, ex.namespace, inv.Config.Explicit())
	if err != nil {
		return ex.result, err
	}
	ex.result.State = StateRunning
	ex.result.Snapshot = snapshot
	ex.logger.Info("flow started",
		logging.String(logging.FieldEventType, "flow_start"),
		logging.Strings("nodes", flow.NodeNames()),
		logging.Int("inherited_keys", len(ex.values)))

	runDir := e.runs.RunDir(inv.RunID)
	for i, node := range flow.Nodes {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, ex, i, cancelled(err))
		}
		if err := checkRequires(node, ex.values); err != nil {
			return e.abort(ctx, ex, i, err)
		}

		input := stage.NewInput(flow.Name, inv.RunID, runDir, inv.Config, ex.logger, ex.values)
		out, report, err := stageexec.Run(ctx, stageexec.Options{
			Logger:  ex.logger,
			Node:    node,
			Input:   input,
			Retry:   e.retry,
			Timeout: e.timeout,
			Sleep:   e.sleep,
			Rand:    e.rand,
			OnRetry: func(_ int, err error, _ time.Duration) {
				if e.observer != nil {
					e.observer.ObserveRetry(flow.Name, node.Name(), err)
				}
			},
		})
		if e.observer != nil {
			e.observer.ObserveNode(flow.Name, node.Name(), report.Duration, err)
		}
		outcome := &ex.result.Nodes[i]
		outcome.Attempts = report.Attempts
		outcome.Duration = report.Duration
		outcome.Cache = report.Cache
		outcome.Notes = report.Notes
		if err != nil {
			return e.abort(ctx, ex, i, err)
		}

		for key, raw := range out.Values() {
			ex.values[key] = raw
			ex.namespace[key.Name] = raw
		}
		ex.record.LastNode = node.Name()
		snapshot, err = e.runs.CommitFlow(context.WithoutCancel(ctx), inv.RunID, ex.record, ex.namespace, nil)
		if err != nil {
			return e.abort(ctx, ex, i, err)
		}
		outcome.Status = NodeCompleted
		ex.result.Snapshot = snapshot
	}

	return e.complete(ctx, ex)
}

func (e *Engine) complete(ctx context.Context, ex *execution) (Result, error) {
	finished := e.now().UTC()
	ex.record.Status = runs.FlowCompleted
	ex.record.FinishedAt = &finished
	snapshot, err := e.runs.CommitFlow(context.WithoutCancel(ctx), ex.inv.RunID, ex.record, ex.namespace, nil)
	if err != nil {
		return e.abort(ctx, ex, -1, err)
	}
	ex.result.State = StateCompleted
	ex.result.Snapshot = snapshot
	ex.result.Duration = finished.Sub(ex.start)
	if e.observer != nil {
		e.observer.ObserveFlow(ex.flow.Name, string(StateCompleted), ex.result.Duration)
	}
	ex.logger.Info("flow completed",
		logging.String(logging.FieldEventType, "flow_complete"),
		logging.Duration("duration", ex.result.Duration),
		logging.Int("outputs", len(ex.namespace)))
	return ex.result, nil
}

// visibleValues exposes the namespaces of other flows that completed.
func visibleValues(snapshot runs.Snapshot, flow string) map[stage.Key]json.RawMessage {
	values := make(map[stage.Key]json.RawMessage)
	for namespace := range snapshot.Namespaces {
		if namespace == flow || !snapshot.Completed(namespace) {
			continue
		}
		for name, raw := range snapshot.Namespace(namespace) {
			values[stage.K(namespace, name)] = raw
		}
	}
	return values
}

func pendingOutcomes(flow *Flow) []NodeOutcome {
	out := make([]NodeOutcome, 0, len(flow.Nodes))
	for _, node := range flow.Nodes {
		out = append(out, NodeOutcome{Node: node.Name(), Status: NodePending})
	}
	return out
}

// checkRequires fails with a composition error naming the first missing key.
func checkRequires(node stage.Node, values map[stage.Key]json.RawMessage) error {
	for _, key := range node.Spec().Requires {
		if _, ok := values[key]; ok {
			continue
		}
		hint := "run the producing flow first"
		if key.Namespace != "" {
			hint = fmt.Sprintf("run the %s flow to completion on this run first", key.Namespace)
		}
		return compositionError(node.Name(),
			fmt.Sprintf("node %s requires %s, which is missing (%s)", node.Name(), key, hint))
	}
	return nil
}

func cancelled(cause error) error {
	return services.Wrap(services.ErrUserInput, "workflow", "execute", "flow was cancelled before the next node", cause)
}
