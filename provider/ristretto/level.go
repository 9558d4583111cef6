package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cachechain"
)

// Coster is implemented by values that know their own memory cost.
type Coster interface {
	Cost() int64
}

// LevelOptions tune a typed in-memory Level.
type LevelOptions[K any] struct {
	Name        string
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration         // 0 = no expiry
	KeyString   cachechain.KeyFunc[K] // nil => DefaultKeyFunc
}

// Level keeps decoded values on the heap, so hits skip framing and decoding.
// Values implementing Coster are charged their own cost; others cost 1.
// OnMemoryWarning drops everything.
type Level[K comparable, V any] struct {
	name  string
	c     *rc.Cache
	ttl   time.Duration
	keyFn cachechain.KeyFunc[K]
}

var _ cachechain.ClosableLevel[string, int] = (*Level[string, int])(nil)

func NewLevel[K comparable, V any](opts LevelOptions[K]) (*Level[K, V], error) {
	if opts.NumCounters <= 0 || opts.MaxCost <= 0 || opts.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid level config")
	}
	if opts.TTL < 0 {
		return nil, errors.New("ristretto: negative ttl")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: opts.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	l := &Level[K, V]{name: opts.Name, c: c, ttl: opts.TTL, keyFn: opts.KeyString}
	if l.name == "" {
		l.name = "memory"
	}
	if l.keyFn == nil {
		l.keyFn = cachechain.DefaultKeyFunc[K]
	}
	return l, nil
}

func (l *Level[K, V]) Name() string { return l.name }

func (l *Level[K, V]) Get(_ context.Context, key K) *cachechain.Future[V] {
	v, ok := l.c.Get(l.keyFn(key))
	if !ok {
		return cachechain.Failed[V](cachechain.ErrNotFound)
	}
	tv, ok := v.(V)
	if !ok {
		l.c.Del(l.keyFn(key))
		return cachechain.Failed[V](cachechain.ErrNotFound)
	}
	return cachechain.Resolved(tv)
}

// Set waits for the write buffer so an admitted value is visible to the next Get.
// A value the admission policy drops fails with ErrRejected.
func (l *Level[K, V]) Set(_ context.Context, key K, value V) *cachechain.Future[struct{}] {
	return cachechain.Go(func() (struct{}, error) {
		k := l.keyFn(key)
		if !l.c.SetWithTTL(k, value, costOf(value), l.ttl) {
			return struct{}{}, cachechain.ErrRejected
		}
		l.c.Wait()
		if _, ok := l.c.Get(k); !ok {
			return struct{}{}, cachechain.ErrRejected
		}
		return struct{}{}, nil
	})
}

func (l *Level[K, V]) Clear() { l.c.Clear() }

func (l *Level[K, V]) OnMemoryWarning() { l.c.Clear() }

func (l *Level[K, V]) Close(context.Context) error {
	l.c.Close()
	return nil
}

func costOf(v any) int64 {
	if c, ok := v.(Coster); ok {
		if n := c.Cost(); n > 0 {
			return n
		}
	}
	return 1
}
