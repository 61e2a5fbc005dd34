package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	flowKey      contextKey = "flow"
	nodeKey      contextKey = "node"
	requestIDKey contextKey = "request_id"
)

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFlow annotates context with the flow name.
func WithFlow(ctx context.Context, flow string) context.Context {
	if flow == "" {
		return ctx
	}
	return context.WithValue(ctx, flowKey, flow)
}

// FlowFromContext returns the flow name if present.
func FlowFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(flowKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithNode annotates context with the node name.
func WithNode(ctx context.Context, node string) context.Context {
	if node == "" {
		return ctx
	}
	return context.WithValue(ctx, nodeKey, node)
}

// NodeFromContext returns the node name if present.
func NodeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(nodeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
