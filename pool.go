package cachechain

import (
	"context"
	"sync"
)

// PoolOptions tune a PoolCache. The zero value is usable.
type PoolOptions[K any] struct {
	Logger    Logger     // if nil, NopLogger is used
	Hooks     Hooks      // if nil, NopHooks is used
	KeyString KeyFunc[K] // renders keys for logs/hooks; nil => DefaultKeyFunc
}

// PoolCache collapses concurrent Gets for the same key into one Get on the
// wrapped level. Every caller for that key receives the same Future.
// Set, Clear and OnMemoryWarning pass through and never touch the in-flight map.
type PoolCache[K comparable, V any] struct {
	level Level[K, V]
	log   Logger
	hooks Hooks
	keyFn KeyFunc[K]

	mu       sync.Mutex
	inflight map[K]*Future[V]
}

var _ ClosableLevel[string, int] = (*PoolCache[string, int])(nil)

// NewPool wraps level so concurrent Gets for one key share a single fetch.
func NewPool[K comparable, V any](level Level[K, V], opts PoolOptions[K]) *PoolCache[K, V] {
	p := &PoolCache[K, V]{
		level:    level,
		inflight: make(map[K]*Future[V]),
		keyFn:    opts.KeyString,
	}
	p.log = coalesce[Logger](opts.Logger, NopLogger{})
	p.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if p.keyFn == nil {
		p.keyFn = DefaultKeyFunc[K]
	}
	return p
}

// Pooled wraps level with default options.
func Pooled[K comparable, V any](level Level[K, V]) *PoolCache[K, V] {
	return NewPool(level, PoolOptions[K]{})
}

func (p *PoolCache[K, V]) Get(ctx context.Context, key K) *Future[V] {
	p.mu.Lock()
	if f, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		ks := p.keyFn(key)
		p.hooks.PoolJoined(ks)
		p.log.Debug("joined in-flight get", Fields{"key": ks})
		return f
	}
	shared := NewFuture[V]()
	p.inflight[key] = shared
	p.mu.Unlock()

	ks := p.keyFn(key)
	p.hooks.PoolFetch(ks)
	p.log.Debug("pooled get started", Fields{"key": ks})

	// the fetch outlives any single caller, so it must not inherit cancellation
	p.level.Get(context.WithoutCancel(ctx), key).OnComplete(func(v V, err error) {
		// unregister before completing so no late caller attaches to a finished entry
		p.mu.Lock()
		if p.inflight[key] == shared {
			delete(p.inflight, key)
		}
		p.mu.Unlock()
		shared.Complete(v, err)
	})
	return shared
}

func (p *PoolCache[K, V]) Set(ctx context.Context, key K, value V) *Future[struct{}] {
	return p.level.Set(ctx, key, value)
}

func (p *PoolCache[K, V]) Clear() { p.level.Clear() }

func (p *PoolCache[K, V]) OnMemoryWarning() { p.level.OnMemoryWarning() }

func (p *PoolCache[K, V]) Close(ctx context.Context) error { return closeLevel(ctx, p.level) }

// InFlight reports how many keys currently have a fetch in flight.
func (p *PoolCache[K, V]) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}
