package cachechain

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachechain/internal/util"
	"github.com/unkn0wn-root/cachechain/internal/wire"
	pr "github.com/unkn0wn-root/cachechain/provider"
)

type memProvider struct {
	mu       sync.Mutex
	m        map[string][]byte
	reject   bool
	setErr   error
	clearErr error
	dels     int
	released int
	lastCost int64
	lastTTL  time.Duration
}

var (
	_ pr.Provider       = (*memProvider)(nil)
	_ pr.MemoryReleaser = (*memProvider)(nil)
)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return false, p.setErr
	}
	if p.reject {
		return false, nil
	}
	p.m[key] = value
	p.lastCost, p.lastTTL = cost, ttl
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dels++
	delete(p.m, key)
	return nil
}

func (p *memProvider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clearErr != nil {
		return p.clearErr
	}
	p.m = make(map[string][]byte)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) ReleaseMemory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	p.m = make(map[string][]byte)
}

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = v
}

func newTestLevel(t *testing.T, ns string, mp pr.Provider, optsOpt func(*ProviderOptions)) *ProviderLevel {
	t.Helper()
	opts := ProviderOptions{Namespace: ns, Provider: mp}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	l, err := NewProviderLevel(opts)
	if err != nil {
		t.Fatalf("NewProviderLevel: %v", err)
	}
	return l
}

func TestProviderLevelRoundTrip(t *testing.T) {
	mp := newMemProvider()
	l := newTestLevel(t, "img", mp, nil)

	if _, err := await(t, l.Get(context.Background(), "a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("miss expected, got %v", err)
	}
	mustSet[[]byte](t, l, "a", []byte("payload"))

	raw, ok := mp.raw("img:a")
	if !ok {
		t.Fatalf("value not stored under namespaced key")
	}
	if _, p, err := wire.DecodeEntry(raw); err != nil || string(p) != "payload" {
		t.Fatalf("stored frame: %q %v", p, err)
	}
	if mp.lastCost != int64(len(raw)) {
		t.Fatalf("default cost %d, want framed length %d", mp.lastCost, len(raw))
	}

	got := mustGet[[]byte](t, l, "a")
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
	// callers own the returned slice
	got[0] = 'X'
	if again := mustGet[[]byte](t, l, "a"); string(again) != "payload" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}
}

func TestProviderLevelNamespacesIsolate(t *testing.T) {
	mp := newMemProvider()
	a := newTestLevel(t, "a", mp, nil)
	b := newTestLevel(t, "b", mp, nil)

	mustSet[[]byte](t, a, "k", []byte("from-a"))
	if _, err := await(t, b.Get(context.Background(), "k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("namespace b sees a's key: %v", err)
	}

	long := strings.Repeat("k", util.MaxKeyLen+1)
	mustSet[[]byte](t, a, long, []byte("long"))
	if _, ok := mp.raw(util.StorageKey("a", long)); !ok {
		t.Fatalf("long key not stored under hashed key")
	}
	if got := mustGet[[]byte](t, a, long); string(got) != "long" {
		t.Fatalf("long key: %q", got)
	}
}

func TestProviderLevelSelfHealOnCorrupt(t *testing.T) {
	mp := newMemProvider()
	hooks := &recordingHooks{}
	l := newTestLevel(t, "img", mp, func(o *ProviderOptions) { o.Hooks = hooks })

	mp.put("img:bad", []byte("not-a-frame"))
	if _, err := await(t, l.Get(context.Background(), "bad")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt entry must read as miss, got %v", err)
	}
	if _, ok := mp.raw("img:bad"); ok {
		t.Fatalf("corrupt entry not deleted")
	}
	if hooks.count("self_heal:corrupt") != 1 {
		t.Fatalf("hooks: %v", hooks.events)
	}
}

func TestProviderLevelExpiry(t *testing.T) {
	mp := newMemProvider()
	hooks := &recordingHooks{}
	now := time.Unix(1700000000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	l := newTestLevel(t, "img", mp, func(o *ProviderOptions) {
		o.TTL = time.Minute
		o.Clock = clock
		o.Hooks = hooks
	})

	mustSet[[]byte](t, l, "k", []byte("v"))
	if mp.lastTTL != time.Minute {
		t.Fatalf("ttl not passed to provider: %v", mp.lastTTL)
	}
	if got := mustGet[[]byte](t, l, "k"); string(got) != "v" {
		t.Fatalf("live entry: %q", got)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	if _, err := await(t, l.Get(context.Background(), "k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired entry must miss, got %v", err)
	}
	if _, ok := mp.raw("img:k"); ok {
		t.Fatalf("expired entry not deleted")
	}
	if hooks.count("self_heal:expired") != 1 {
		t.Fatalf("hooks: %v", hooks.events)
	}
}

func TestProviderLevelSetFailures(t *testing.T) {
	mp := newMemProvider()
	hooks := &recordingHooks{}
	l := newTestLevel(t, "img", mp, func(o *ProviderOptions) { o.Hooks = hooks })

	mp.reject = true
	_, err := await(t, l.Set(context.Background(), "k", []byte("v")))
	if !errors.Is(err, ErrRejected) || !errors.Is(err, ErrStorage) {
		t.Fatalf("rejected write: %v", err)
	}
	if hooks.count("rejected") != 1 {
		t.Fatalf("hooks: %v", hooks.events)
	}

	mp.reject = false
	mp.setErr = errors.New("disk full")
	_, err = await(t, l.Set(context.Background(), "k", []byte("v")))
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "set" || se.Key != "k" || !errors.Is(err, mp.setErr) {
		t.Fatalf("storage error: %#v", err)
	}
}

func TestProviderLevelCustomCost(t *testing.T) {
	mp := newMemProvider()
	l := newTestLevel(t, "img", mp, func(o *ProviderOptions) {
		o.ComputeSetCost = func(string, []byte) int64 { return 1 }
	})
	mustSet[[]byte](t, l, "k", bytes.Repeat([]byte("x"), 64))
	if mp.lastCost != 1 {
		t.Fatalf("cost %d, want 1", mp.lastCost)
	}
}

func TestProviderLevelClearAndMemoryWarning(t *testing.T) {
	mp := newMemProvider()
	l := newTestLevel(t, "img", mp, nil)

	mustSet[[]byte](t, l, "k", []byte("v"))
	l.Clear()
	l.Clear()
	if _, err := await(t, l.Get(context.Background(), "k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after clear: %v", err)
	}

	// a failing clear is logged, not raised
	mp.clearErr = errors.New("unreachable")
	l.Clear()

	l.OnMemoryWarning()
	if mp.released != 1 {
		t.Fatalf("ReleaseMemory called %d times", mp.released)
	}
}

func TestNewProviderLevelValidation(t *testing.T) {
	cases := []ProviderOptions{
		{Namespace: "ns"},
		{Provider: newMemProvider()},
		{Namespace: "ns", Provider: newMemProvider(), TTL: -time.Second},
	}
	for i, opts := range cases {
		if _, err := NewProviderLevel(opts); err == nil {
			t.Fatalf("case %d: invalid options accepted", i)
		}
	}
	l := newTestLevel(t, "ns", newMemProvider(), func(o *ProviderOptions) { o.Name = "memory" })
	if l.Name() != "memory" {
		t.Fatalf("Name()=%q", l.Name())
	}
}
