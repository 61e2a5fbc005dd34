package cache

import "context"

// Record is a raw stored entry as returned by Backend.List. ID is the
// backend's own name for it (file name or Redis key).
type Record struct {
	ID   string
	Data []byte
}

// Backend persists encoded entries. Implementations must make Store atomic:
// a concurrent Load sees either the previous or the new bytes.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, data []byte) error
	// Lock blocks until the cross-process lock for key is held or ctx ends.
	Lock(ctx context.Context, key string) (func() error, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]Record, error)
	Clear(ctx context.Context) (int, error)
	Close() error
}
