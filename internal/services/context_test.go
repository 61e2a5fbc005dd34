package services_test

import (
	"context"
	"testing"

	"memeflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run_20250101_120000_abcd1234")
	ctx = services.WithFlow(ctx, "meme")
	ctx = services.WithNode(ctx, "text_generation")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run_20250101_120000_abcd1234" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if flow, ok := services.FlowFromContext(ctx); !ok || flow != "meme" {
		t.Fatalf("unexpected flow: %v %v", flow, ok)
	}
	if node, ok := services.NodeFromContext(ctx); !ok || node != "text_generation" {
		t.Fatalf("unexpected node: %v %v", node, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithFlow(ctx, "")
	ctx = services.WithNode(ctx, "")
	if _, ok := services.FlowFromContext(ctx); ok {
		t.Fatal("expected blank flow to be ignored")
	}
	if _, ok := services.NodeFromContext(ctx); ok {
		t.Fatal("expected blank node to be ignored")
	}
}
