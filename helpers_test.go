package cachechain

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const awaitTimeout = 2 * time.Second

func await[V any](t *testing.T, f *Future[V]) (V, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	v, err := f.Await(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("future did not complete within %v", awaitTimeout)
	}
	return v, err
}

func mustGet[V any](t *testing.T, l Level[string, V], key string) V {
	t.Helper()
	v, err := await(t, l.Get(context.Background(), key))
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return v
}

func mustSet[V any](t *testing.T, l Level[string, V], key string, v V) {
	t.Helper()
	if _, err := await(t, l.Set(context.Background(), key, v)); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

// memLevel is an in-memory Level that counts every call.
// Get answers on its own goroutine; Set applies synchronously.
type memLevel[V any] struct {
	name string

	mu sync.Mutex
	m  map[string]V

	getErr   error
	setErr   error
	closeErr error
	gate     chan struct{} // when non-nil, Get waits until it is closed

	gets, sets, clears, warnings, closes atomic.Int32
}

func newMemLevel[V any](name string) *memLevel[V] {
	return &memLevel[V]{name: name, m: make(map[string]V)}
}

func (l *memLevel[V]) Name() string { return l.name }

func (l *memLevel[V]) Get(_ context.Context, key string) *Future[V] {
	l.gets.Add(1)
	gate := l.gate
	return Go(func() (V, error) {
		if gate != nil {
			<-gate
		}
		var zero V
		if l.getErr != nil {
			return zero, l.getErr
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		v, ok := l.m[key]
		if !ok {
			return zero, ErrNotFound
		}
		return v, nil
	})
}

func (l *memLevel[V]) Set(_ context.Context, key string, v V) *Future[struct{}] {
	l.sets.Add(1)
	if l.setErr != nil {
		return Failed[struct{}](l.setErr)
	}
	l.put(key, v)
	return Resolved(struct{}{})
}

func (l *memLevel[V]) Clear() {
	l.clears.Add(1)
	l.mu.Lock()
	l.m = make(map[string]V)
	l.mu.Unlock()
}

func (l *memLevel[V]) OnMemoryWarning() { l.warnings.Add(1) }

func (l *memLevel[V]) Close(context.Context) error {
	l.closes.Add(1)
	return l.closeErr
}

func (l *memLevel[V]) put(key string, v V) {
	l.mu.Lock()
	l.m[key] = v
	l.mu.Unlock()
}

func (l *memLevel[V]) lookup(key string) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.m[key]
	return v, ok
}

// recordingHooks keeps every event as "<event>:<detail>".
type recordingHooks struct {
	mu     sync.Mutex
	events []string
}

var _ Hooks = (*recordingHooks)(nil)

func (h *recordingHooks) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recordingHooks) count(e string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, got := range h.events {
		if got == e {
			n++
		}
	}
	return n
}

func (h *recordingHooks) PoolJoined(key string)                   { h.add("joined:" + key) }
func (h *recordingHooks) PoolFetch(key string)                    { h.add("fetch:" + key) }
func (h *recordingHooks) PopulateFailed(stage, _ string, _ error) { h.add("populate_failed:" + stage) }
func (h *recordingHooks) StageSetFailed(stage, _ string, _ error) { h.add("set_failed:" + stage) }
func (h *recordingHooks) SelfHeal(_, reason string)               { h.add("self_heal:" + reason) }
func (h *recordingHooks) ProviderSetRejected(string)              { h.add("rejected") }
