package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"memeflow/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Output directory", statusError, "does not exist", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Output directory:", "[ERROR] does not exist")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Language model", statusOK, "API key configured", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestCheckLines(t *testing.T) {
	results := []preflight.Result{
		{Name: "Output directory", Passed: true, Detail: "/tmp/out"},
		{Name: "Meme templates", Passed: false, Detail: "does not exist"},
	}
	lines, ok := checkLines(results, false)
	if ok {
		t.Fatal("expected a failed check to clear ok")
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] /tmp/out") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] does not exist") {
		t.Fatalf("unexpected second line %q", lines[1])
	}

	if _, ok := checkLines(results[:1], false); !ok {
		t.Fatal("expected passing checks to keep ok")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"Key", "Value", "Source"}, [][]string{{"tone", "witty"}}, nil)
	if !strings.Contains(out, "tone") || !strings.Contains(out, "witty") {
		t.Fatalf("unexpected table %q", out)
	}
	empty := renderTable([]string{"Key"}, nil, nil)
	if !strings.Contains(empty, "(none)") {
		t.Fatalf("expected placeholder row, got %q", empty)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
