package cachechain

import (
	"context"
	"fmt"
)

// Level is one stage of a cache: a leaf backed by storage, or a decorator
// around another Level.
//
// Get fails with an error matching ErrNotFound when key is absent.
// Set succeeds once the level recorded the value.
// Get and Set never block the caller; the outcome arrives on the Future.
// Clear and OnMemoryWarning are synchronous and idempotent.
type Level[K comparable, V any] interface {
	Get(ctx context.Context, key K) *Future[V]
	Set(ctx context.Context, key K, value V) *Future[struct{}]
	Clear()
	OnMemoryWarning()
}

// Closer is implemented by levels holding resources (connections, files).
type Closer interface {
	Close(ctx context.Context) error
}

// ClosableLevel is a Level that also releases resources.
type ClosableLevel[K comparable, V any] interface {
	Level[K, V]
	Closer
}

// KeyFunc renders a key for string-keyed stores.
// It must be deterministic: the same key always yields the same string.
type KeyFunc[K any] func(K) string

// DefaultKeyFunc handles strings, fmt.Stringer and everything else via fmt.Sprint.
func DefaultKeyFunc[K any](k K) string {
	switch v := any(k).(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(k)
	}
}

type namer interface{ Name() string }

type named[K comparable, V any] struct {
	Level[K, V]
	name string
}

func (n named[K, V]) Name() string { return n.name }

func (n named[K, V]) Close(ctx context.Context) error { return closeLevel(ctx, n.Level) }

// Named attaches a stage name used in logs, hooks and errors.
func Named[K comparable, V any](name string, l Level[K, V]) Level[K, V] {
	return named[K, V]{Level: l, name: name}
}

func levelName(l any, idx int) string {
	if n, ok := l.(namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("stage%d", idx)
}

func closeLevel(ctx context.Context, l any) error {
	if c, ok := l.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
