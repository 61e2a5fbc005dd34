package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/metrics"
	"memeflow/internal/preflight"
	"memeflow/internal/runs"
	"memeflow/internal/services"
	"memeflow/internal/stage"
)

const (
	flowLogName = "flow.log"
	runLockName = ".lock"
)

// Request selects a catalog flow and the run it executes against. An empty
// RunID creates a new run.
type Request struct {
	Flow     string
	RunID    string
	Override string
}

// PreflightFunc evaluates readiness for one flow invocation.
type PreflightFunc func(cfg *config.Config, flow string, opts *flowconfig.Config) []preflight.Result

// Runner resolves configuration, checks readiness and executes catalog
// flows. It is the entry point the CLI uses.
type Runner struct {
	cfg       *config.Config
	runs      *runs.Store
	deps      Deps
	logger    *slog.Logger
	metrics   *metrics.Metrics
	preflight PreflightFunc
	engineOpt []EngineOption
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger flows inherit.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records executions and writes the configured textfile after
// each flow.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithPreflight replaces preflight.RunAll.
func WithPreflight(fn PreflightFunc) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.preflight = fn
		}
	}
}

// WithEngineOptions passes extra options to the engine, after the ones the
// runner derives from configuration.
func WithEngineOptions(opts ...EngineOption) RunnerOption {
	return func(r *Runner) { r.engineOpt = append(r.engineOpt, opts...) }
}

// NewRunner builds a runner over an open run store.
func NewRunner(cfg *config.Config, store *runs.Store, deps Deps, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:       cfg,
		runs:      store,
		deps:      deps,
		logger:    logging.NewNop(),
		preflight: preflight.RunAll,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "workflow")
	return r
}

// Run executes one catalog flow.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	flow, err := Build(req.Flow, r.deps)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(services.WithFlow(ctx, flow.Name), r.logger)

	var inherited map[string]flowconfig.Value
	runID := strings.TrimSpace(req.RunID)
	if runID != "" {
		if err := runs.ValidateID(runID); err != nil {
			return Result{}, err
		}
		snapshot, err := r.runs.Load(ctx, runID)
		if err != nil {
			return Result{}, err
		}
		inherited = snapshot.Config
	}

	opts, err := flowconfig.Resolve(flowconfig.DefaultsFrom(r.cfg), req.Override, inherited)
	if err != nil {
		return Result{}, err
	}
	if unknown := opts.Unknown(); len(unknown) > 0 {
		logging.WarnWithContext(logger, "unknown options ignored by built-in nodes", "unknown_options",
			logging.Strings("keys", unknown),
			logging.String(logging.FieldImpact, "options are stored with the run but no node reads them"),
			logging.String(logging.FieldErrorHint, "check the option names passed with --set"))
	}
	if err := r.checkOutputPath(opts); err != nil {
		return Result{}, err
	}
	if err := r.checkReady(logger, flow.Name, opts); err != nil {
		return Result{}, err
	}

	if runID == "" {
		run, err := r.runs.Create(ctx)
		if err != nil {
			return Result{}, err
		}
		runID = run.ID
	}

	unlock, err := r.lockRun(runID)
	if err != nil {
		return Result{RunID: runID, Flow: flow.Name, State: StatePending}, err
	}
	defer unlock()

	runLogger, closeLog := r.runLogger(logger, runID)
	defer closeLog()

	engine := r.newEngine(runLogger)
	result, execErr := engine.Execute(ctx, flow, Invocation{RunID: runID, Config: opts, Logger: runLogger})
	r.finish(runLogger, result)
	return result, execErr
}

// RunAll chains text, meme and animation on one run. It stops at the first
// failing flow and returns the results gathered so far.
func (r *Runner) RunAll(ctx context.Context, req Request) ([]Result, error) {
	results := make([]Result, 0, len(FlowNames))
	runID := req.RunID
	for _, name := range FlowNames {
		result, err := r.Run(ctx, Request{Flow: name, RunID: runID, Override: req.Override})
		if result.RunID != "" {
			results = append(results, result)
			runID = result.RunID
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) newEngine(logger *slog.Logger) *Engine {
	opts := []EngineOption{
		WithEngineLogger(logger),
		WithRetry(stage.RetryFromConfig(r.cfg)),
		WithNodeTimeout(r.cfg.NodeTimeout()),
	}
	if r.metrics != nil {
		opts = append(opts, WithObserver(r.metrics))
	}
	return NewEngine(r.runs, append(opts, r.engineOpt...)...)
}

// checkOutputPath rejects an output_path that differs from the store root;
// the store is opened before options are resolved.
func (r *Runner) checkOutputPath(opts *flowconfig.Config) error {
	requested := strings.TrimSpace(opts.String(flowconfig.KeyOutputPath, ""))
	if requested == "" {
		return nil
	}
	want, errWant := config.ExpandPath(requested)
	have, errHave := config.ExpandPath(r.runs.Root())
	if errWant != nil || errHave != nil || want == have {
		return nil
	}
	return services.UserInput("workflow", "resolve",
		fmt.Sprintf("output_path %s does not match the open run store at %s", requested, r.runs.Root()))
}

func (r *Runner) checkReady(logger *slog.Logger, flow string, opts *flowconfig.Config) error {
	results := r.preflight(r.cfg, flow, opts)
	for _, res := range results {
		if res.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_check_failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
			logging.String(logging.FieldImpact, "flow will not start"),
			logging.String(logging.FieldErrorHint, "fix the configuration or pass a path override with --set"))
	}
	if err := preflight.Failures(results); err != nil {
		logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
			logging.Int("checks", len(results)),
			logging.Error(err))
		return err
	}
	logger.Info("preflight passed",
		logging.String(logging.FieldEventType, "preflight_passed"),
		logging.Int("checks", len(results)))
	return nil
}

// lockRun keeps a second process from executing flows on the same run.
func (r *Runner) lockRun(id string) (func(), error) {
	dir := filepath.Join(r.runs.RunDir(id), "metadata")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "workflow", "lock run", "run directory unavailable", err)
	}
	lock := flock.New(filepath.Join(dir, runLockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "workflow", "lock run", "run lock unavailable", err)
	}
	if !ok {
		return nil, services.UserInput("workflow", "lock run",
			fmt.Sprintf("run %s is in use by another memeflow process", id))
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Debug("run lock release failed", logging.Error(err))
		}
	}, nil
}

// runLogger tees logger into the run's metadata/flow.log as JSON. A log
// file that cannot be opened degrades to logger alone.
func (r *Runner) runLogger(logger *slog.Logger, id string) (*slog.Logger, func()) {
	path := filepath.Join(r.runs.RunDir(id), "metadata", flowLogName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logging.WarnWithContext(logger, "run log unavailable", "run_log_unavailable",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "flow output is logged to the console only"))
		return logger, func() {}
	}
	fileLogger, err := logging.New(logging.Options{Level: r.cfg.Logging.Level, Format: "json", Writer: file})
	if err != nil {
		_ = file.Close()
		return logger, func() {}
	}
	return logging.Tee(logger, fileLogger.Handler()), func() { _ = file.Close() }
}

// finish exports the snapshot and metrics. Neither failure changes the
// flow result.
func (r *Runner) finish(logger *slog.Logger, result Result) {
	if result.Snapshot.RunID != "" {
		path, err := r.runs.Export(result.Snapshot)
		if err != nil {
			logging.WarnWithContext(logger, "snapshot export failed", "snapshot_export_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run state is still in the run database"),
				logging.String(logging.FieldErrorHint, "rerun `memeflow runs show` to read it"))
		} else {
			logger.Info("snapshot exported",
				logging.String(logging.FieldEventType, "snapshot_exported"),
				logging.String("path", path))
		}
	}
	if r.metrics == nil || r.cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := r.metrics.WriteTextfile(r.cfg.Metrics.TextfilePath); err != nil {
		logging.WarnWithContext(logger, "metrics textfile write failed", "metrics_write_failed",
			logging.String("path", r.cfg.Metrics.TextfilePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "metrics for this flow are not exported"))
	}
}
