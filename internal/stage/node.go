package stage

import (
	"context"
	"time"
)

// Spec is a node's static declaration.
type Spec struct {
	// Requires must be present before the node runs.
	Requires []Key
	// Optional keys are read when present.
	Optional []Key
	// Produces is exactly the set of keys a successful run returns.
	Produces []Key
	// Retry overrides the executor default when MaxAttempts > 0.
	Retry RetryPolicy
	// Timeout bounds each attempt; zero uses the executor default.
	Timeout time.Duration
}

// Node is one pipeline stage.
type Node interface {
	Name() string
	Spec() Spec
	Run(ctx context.Context, in *Input) (*Output, error)
}

// Func adapts a function into a Node.
type Func struct {
	NodeName string
	NodeSpec Spec
	Fn       func(ctx context.Context, in *Input) (*Output, error)
}

func (f Func) Name() string { return f.NodeName }

func (f Func) Spec() Spec { return f.NodeSpec }

func (f Func) Run(ctx context.Context, in *Input) (*Output, error) {
	return f.Fn(ctx, in)
}
