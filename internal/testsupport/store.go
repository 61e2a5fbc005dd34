package testsupport

import (
	"context"
	"testing"

	"memeflow/internal/cache"
	"memeflow/internal/config"
	"memeflow/internal/runs"
)

// MustOpenRuns opens a runs.Store on the config's output directory and
// registers cleanup.
func MustOpenRuns(t testing.TB, cfg *config.Config) *runs.Store {
	t.Helper()

	store, err := runs.Open(cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewRun creates a run for tests using the provided store.
func NewRun(t testing.TB, store *runs.Store) runs.Run {
	t.Helper()

	run, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return run
}

// MustOpenCache opens a file-backed cache.Store in the config's cache
// directory.
func MustOpenCache(t testing.TB, cfg *config.Config, opts ...cache.Option) *cache.Store {
	t.Helper()

	backend, err := cache.NewFileBackend(cfg.Paths.CacheDir)
	if err != nil {
		t.Fatalf("cache.NewFileBackend: %v", err)
	}
	store := cache.New(backend, opts...)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
