package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"memeflow/internal/fileutil"
	"memeflow/internal/services"
	"memeflow/internal/textutil"
)

const (
	entrySuffix   = ".json"
	lockSuffix    = ".lock"
	lockRetryWait = 25 * time.Millisecond
)

// FileBackend stores each entry as a JSON file under one directory.
type FileBackend struct {
	dir string
}

// NewFileBackend prepares dir for use.
func NewFileBackend(dir string) (*FileBackend, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "open", "cache directory is not configured", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "cache", "open", "cache directory unavailable", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the backing directory.
func (b *FileBackend) Dir() string { return b.dir }

// fileName keeps keys readable while staying unique after sanitizing.
func fileName(key string) string {
	return textutil.SanitizeToken(key) + "-" + fileutil.HashBytes([]byte(key))[:12]
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, fileName(key)+entrySuffix)
}

func (b *FileBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

func (b *FileBackend) Store(_ context.Context, key string, data []byte) error {
	if err := fileutil.WriteFileAtomic(b.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (b *FileBackend) Lock(ctx context.Context, key string) (func() error, error) {
	lock := flock.New(filepath.Join(b.dir, fileName(key)+lockSuffix))
	ok, err := lock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire cache lock: %w", ctx.Err())
	}
	return lock.Unlock, nil
}

func (b *FileBackend) Delete(_ context.Context, key string) (bool, error) {
	if err := os.Remove(b.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	return true, nil
}

func (b *FileBackend) List(_ context.Context) ([]Record, error) {
	names, err := b.entryNames()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(b.dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read cache entry: %w", err)
		}
		records = append(records, Record{ID: name, Data: data})
	}
	return records, nil
}

// Clear removes entry files. Lock files stay so concurrent holders keep
// their inode.
func (b *FileBackend) Clear(_ context.Context) (int, error) {
	names, err := b.entryNames()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("delete cache entry: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) entryNames() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, entrySuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
