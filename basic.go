package cachechain

import "context"

// BasicCache builds a Level out of independent behaviors. The transformer
// decorators return one wired to the level they wrap.
//
// A nil GetFunc always misses, a nil SetFunc accepts and drops the value,
// nil ClearFunc / MemoryWarningFunc / CloseFunc do nothing.
type BasicCache[K comparable, V any] struct {
	GetFunc           func(ctx context.Context, key K) *Future[V]
	SetFunc           func(ctx context.Context, key K, value V) *Future[struct{}]
	ClearFunc         func()
	MemoryWarningFunc func()
	CloseFunc         func(ctx context.Context) error
}

var _ ClosableLevel[string, int] = (*BasicCache[string, int])(nil)

// NewBasic builds a BasicCache from the four level operations.
func NewBasic[K comparable, V any](
	get func(ctx context.Context, key K) *Future[V],
	set func(ctx context.Context, key K, value V) *Future[struct{}],
	clear func(),
	memoryWarning func(),
) *BasicCache[K, V] {
	return &BasicCache[K, V]{
		GetFunc:           get,
		SetFunc:           set,
		ClearFunc:         clear,
		MemoryWarningFunc: memoryWarning,
	}
}

func (b *BasicCache[K, V]) Get(ctx context.Context, key K) *Future[V] {
	if b.GetFunc == nil {
		return Failed[V](ErrNotFound)
	}
	return b.GetFunc(ctx, key)
}

func (b *BasicCache[K, V]) Set(ctx context.Context, key K, value V) *Future[struct{}] {
	if b.SetFunc == nil {
		return Resolved(struct{}{})
	}
	return b.SetFunc(ctx, key, value)
}

func (b *BasicCache[K, V]) Clear() {
	if b.ClearFunc != nil {
		b.ClearFunc()
	}
}

func (b *BasicCache[K, V]) OnMemoryWarning() {
	if b.MemoryWarningFunc != nil {
		b.MemoryWarningFunc()
	}
}

func (b *BasicCache[K, V]) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		return nil
	}
	return b.CloseFunc(ctx)
}
