package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"memeflow/internal/config"
	"memeflow/internal/logging"
	"memeflow/internal/services"
)

// Recorder receives one observation per lookup. The metrics package
// implements it.
type Recorder interface {
	ObserveCacheLookup(key string, policy Policy, reason Reason)
}

// Store layers validity policies and per-key locking over a Backend.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	now      func() time.Time
	recorder Recorder
	locks    sync.Map // key -> *sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now; tests use it to step across TTL boundaries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder attaches a lookup observer.
func WithRecorder(recorder Recorder) Option {
	return func(s *Store) { s.recorder = recorder }
}

// New wraps backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "cache")
	return s
}

// Open builds a store for the configured backend.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "open", "configuration missing", nil)
	}
	var (
		backend Backend
		err     error
	)
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		backend, err = NewRedisBackend(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
	default:
		backend, err = NewFileBackend(cfg.Paths.CacheDir)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, opts...), nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// List returns every readable entry sorted by key. Unreadable records are
// logged and skipped.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		var entry Entry
		if err := json.Unmarshal(record.Data, &entry); err != nil || strings.TrimSpace(entry.Key) == "" {
			logging.WarnWithContext(s.logger, "skipping unreadable cache record", "cache_record_corrupt",
				logging.String("record", record.ID),
				logging.String(logging.FieldErrorHint, "run memeflow cache clear to remove it"),
			)
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Delete removes the entry for key, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()
	removed, err := s.backend.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	if removed {
		s.logger.Info("cache entry deleted",
			logging.String(logging.FieldEventType, "cache_entry_deleted"),
			logging.String(logging.FieldCacheKey, key))
	}
	return removed, nil
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	n, err := s.backend.Clear(ctx)
	if err != nil {
		return n, fmt.Errorf("clear cache: %w", err)
	}
	s.logger.Info("cache cleared",
		logging.String(logging.FieldEventType, "cache_cleared"),
		logging.Int("removed", n))
	return n, nil
}

func (s *Store) keyLock(key string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// lock takes the in-process mutex, then the backend lock.
func (s *Store) lock(ctx context.Context, key string) (func(), error) {
	mu := s.keyLock(key)
	mu.Lock()
	release, err := s.backend.Lock(ctx, key)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	return func() {
		if err := release(); err != nil {
			s.logger.Warn("cache lock release failed",
				logging.String(logging.FieldEventType, "cache_unlock_failed"),
				logging.String(logging.FieldCacheKey, key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the lock expires or is released when the process exits"),
			)
		}
		mu.Unlock()
	}, nil
}

// read loads and decodes the entry for key. A missing entry returns
// ReasonMiss; an unreadable one ReasonCorrupt.
func (s *Store) read(ctx context.Context, key string) (Entry, Reason) {
	data, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		logging.WarnWithContext(s.logger, "cache read failed; recomputing", "cache_read_failed",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "value will be recomputed"),
		)
		return Entry{}, ReasonCorrupt
	}
	if !ok {
		return Entry{}, ReasonMiss
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		if err == nil {
			err = fmt.Errorf("entry key %q does not match", entry.Key)
		}
		s.warnCorrupt(key, services.Wrap(services.ErrCacheCorruption, "cache", "decode", "entry unreadable", err))
		return Entry{}, ReasonCorrupt
	}
	return entry, ReasonHit
}

func (s *Store) write(ctx context.Context, entry Entry) {
	data, err := json.Marshal(entry)
	if err == nil {
		err = s.backend.Store(ctx, entry.Key, data)
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "cache write failed", "cache_write_failed",
			logging.String(logging.FieldCacheKey, entry.Key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the value will be recomputed next time"),
		)
	}
}

func (s *Store) warnCorrupt(key string, err error) {
	logging.WarnWithContext(s.logger, "cache entry corrupt; treating as miss", "cache_entry_corrupt",
		logging.String(logging.FieldCacheKey, key),
		logging.Error(err),
		logging.String(logging.FieldErrorKind, string(services.KindCacheCorruption)),
		logging.String(logging.FieldImpact, "value will be recomputed"),
	)
}

func (s *Store) observe(o Outcome) {
	if s.recorder != nil {
		s.recorder.ObserveCacheLookup(o.Key, o.Policy, o.Reason)
	}
	s.logger.Debug("cache lookup",
		logging.String(logging.FieldEventType, "cache_lookup"),
		logging.String(logging.FieldCacheKey, o.Key),
		logging.String("policy", string(o.Policy)),
		logging.String("result", string(o.Reason)),
	)
}
