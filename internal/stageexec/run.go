package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"memeflow/internal/cache"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/stage"
)

const defaultNodeTimeout = 3 * time.Minute

// Options controls one node execution.
type Options struct {
	Logger *slog.Logger
	Node   stage.Node
	Input  *stage.Input
	// Retry applies when the node's Spec does not carry its own policy.
	Retry stage.RetryPolicy
	// Timeout applies when the node's Spec does not set one.
	Timeout time.Duration
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand feeds retry jitter; nil uses math/rand.
	Rand func() float64
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Report describes what the executor did.
type Report struct {
	Attempts int
	Duration time.Duration
	Cache    []cache.Outcome
	Notes    map[string]string
}

// Run executes opts.Node with bounded retries. Each attempt gets its own
// timeout and is shielded from cancellation of ctx, so a node either
// finishes or fails on its own terms. Transient failures are retried;
// anything else aborts at once. A successful output must contain exactly the
// declared produced keys.
func Run(ctx context.Context, opts Options) (*stage.Output, Report, error) {
	var report Report
	if opts.Node == nil {
		return nil, report, services.Wrap(services.ErrComposition, "stageexec", "run", "node is required", nil)
	}
	if opts.Input == nil {
		return nil, report, services.Wrap(services.ErrComposition, "stageexec", "run", "node input is required", nil)
	}

	name := opts.Node.Name()
	spec := opts.Node.Spec()
	policy := spec.Retry
	if policy.MaxAttempts <= 0 {
		policy = opts.Retry
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}
	if timeout <= 0 {
		timeout = defaultNodeTimeout
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Float64
	}

	nodeCtx := services.WithNode(context.WithoutCancel(ctx), name)
	logger := logging.WithContext(nodeCtx, opts.Logger)
	input := opts.Input.WithLogger(logger)
	maxAttempts := policy.Attempts()
	start := time.Now()

	logger.Info("node started",
		logging.String(logging.FieldEventType, "node_start"),
		logging.Int("max_attempts", maxAttempts),
		logging.Duration("timeout", timeout))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		report.Attempts = attempt
		out, err := runAttempt(nodeCtx, opts.Node, input, timeout)
		if err == nil {
			if err = checkContract(name, spec, out); err == nil {
				report.Duration = time.Since(start)
				report.Cache = out.CacheOutcomes()
				report.Notes = out.Notes()
				logger.Info("node completed",
					logging.String(logging.FieldEventType, "node_complete"),
					logging.Int(logging.FieldAttempt, attempt),
					logging.Duration("duration", report.Duration),
					logging.Int("outputs", len(out.Keys())))
				return out, report, nil
			}
		}
		lastErr = err
		if !services.IsTransient(err) {
			report.Duration = time.Since(start)
			logging.ErrorWithContext(logger, "node failed", "node_failed",
				logging.Int(logging.FieldAttempt, attempt),
				logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
				logging.Error(err),
				logging.String(logging.FieldImpact, "flow aborted; later nodes will not run"))
			return nil, report, err
		}
		if attempt == maxAttempts {
			break
		}
		delay := policy.Delay(attempt, rnd)
		if hint := policy.Cap(services.RetryAfterOf(err)); hint > delay {
			delay = hint
		}
		logger.Warn("node attempt failed; retrying",
			logging.String(logging.FieldEventType, "node_retry"),
			logging.Int(logging.FieldAttempt, attempt),
			logging.String("reason", string(services.ReasonOf(err))),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient collaborator failure"))
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}
		if err := sleep(nodeCtx, delay); err != nil {
			lastErr = err
			break
		}
	}

	report.Duration = time.Since(start)
	reason := services.ReasonOf(lastErr)
	if reason == "" {
		reason = services.ReasonUnavailable
	}
	exhausted := services.Transient(reason, "stageexec", name,
		fmt.Sprintf("gave up after %d attempts", report.Attempts), lastErr)
	logging.ErrorWithContext(logger, "node retries exhausted", "node_retries_exhausted",
		logging.Int(logging.FieldAttempt, report.Attempts),
		logging.String("reason", string(reason)),
		logging.Error(lastErr),
		logging.String(logging.FieldImpact, "flow aborted; rerun once the collaborator recovers"))
	return nil, report, exhausted
}

// runAttempt turns an attempt deadline into a transient timeout.
func runAttempt(ctx context.Context, node stage.Node, input *stage.Input, timeout time.Duration) (*stage.Output, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := node.Run(attemptCtx, input)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if !services.IsTransient(err) {
			return nil, services.Transient(services.ReasonTimeout, "stageexec", node.Name(),
				fmt.Sprintf("attempt exceeded %s", timeout), err)
		}
	}
	return nil, err
}

// checkContract verifies out carries exactly the declared produced keys.
func checkContract(name string, spec stage.Spec, out *stage.Output) error {
	got := out.Keys()
	var missing, extra []string
	for _, key := range spec.Produces {
		if !slices.Contains(got, key) {
			missing = append(missing, key.String())
		}
	}
	for _, key := range got {
		if !slices.Contains(spec.Produces, key) {
			extra = append(extra, key.String())
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "undeclared "+strings.Join(extra, ", "))
	}
	return services.Wrap(services.ErrContract, "stageexec", name,
		fmt.Sprintf("node %s output does not match its declaration: %s", name, strings.Join(parts, "; ")), nil)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
