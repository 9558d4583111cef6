package cachechain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/cachechain/internal/util"
	"github.com/unkn0wn-root/cachechain/internal/wire"
	pr "github.com/unkn0wn-root/cachechain/provider"
)

// ProviderLevel is a leaf Level[string, []byte] over a provider.Provider.
// Values are framed with their expiry so stores without per-entry TTL still
// expire entries; corrupt or expired frames are deleted on read and reported
// as misses.
type ProviderLevel struct {
	ns             string
	name           string
	provider       pr.Provider
	log            Logger
	hooks          Hooks
	ttl            time.Duration
	computeSetCost SetCostFunc
	clearTimeout   time.Duration
	now            func() time.Time
}

var _ ClosableLevel[string, []byte] = (*ProviderLevel)(nil)

func newProviderLevel(opts ProviderOptions) (*ProviderLevel, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("cachechain: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("cachechain: namespace is required")
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("cachechain: negative ttl %v", opts.TTL)
	}

	l := &ProviderLevel{
		ns:       opts.Namespace,
		provider: opts.Provider,
		ttl:      opts.TTL,
		now:      opts.Clock,
	}

	// defaults
	l.name = coalesce(opts.Name, opts.Namespace)
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	l.clearTimeout = coalesce(opts.ClearTimeout, defaultClearTimeout)
	if l.now == nil {
		l.now = time.Now
	}
	if opts.ComputeSetCost != nil {
		l.computeSetCost = opts.ComputeSetCost
	} else {
		l.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	return l, nil
}

func (l *ProviderLevel) Name() string { return l.name }

func (l *ProviderLevel) Get(ctx context.Context, key string) *Future[[]byte] {
	return Go(func() ([]byte, error) { return l.get(ctx, key) })
}

func (l *ProviderLevel) get(ctx context.Context, key string) ([]byte, error) {
	k := l.storageKey(key)
	raw, ok, err := l.provider.Get(ctx, k)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, ErrNotFound
	}
	exp, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		l.selfHeal(ctx, k, "corrupt")
		return nil, ErrNotFound
	}
	if wire.Expired(exp, l.now()) {
		l.selfHeal(ctx, k, "expired")
		return nil, ErrNotFound
	}
	// payload aliases the provider's buffer, which memory stores share across readers
	return bytes.Clone(payload), nil
}

func (l *ProviderLevel) Set(ctx context.Context, key string, value []byte) *Future[struct{}] {
	return Go(func() (struct{}, error) { return struct{}{}, l.set(ctx, key, value) })
}

func (l *ProviderLevel) set(ctx context.Context, key string, value []byte) error {
	k := l.storageKey(key)
	var exp time.Time
	if l.ttl > 0 {
		exp = l.now().Add(l.ttl)
	}
	wireb := wire.EncodeEntry(exp, value)
	ok, err := l.provider.Set(ctx, k, wireb, l.computeSetCost(k, wireb), l.ttl)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if !ok {
		l.hooks.ProviderSetRejected(k)
		l.log.Debug("set rejected by provider (pressure)", Fields{"stage": l.name, "key": key})
		return &StorageError{Op: "set", Key: key, Err: ErrRejected}
	}
	return nil
}

// Clear empties the provider. Failures are logged; Clear itself reports nothing.
func (l *ProviderLevel) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), l.clearTimeout)
	defer cancel()
	if err := l.provider.Clear(ctx); err != nil {
		l.log.Error("clear failed", Fields{"stage": l.name, "err": err})
		return
	}
	l.log.Debug("cleared", Fields{"stage": l.name})
}

// OnMemoryWarning releases memory when the provider supports it.
func (l *ProviderLevel) OnMemoryWarning() {
	if r, ok := l.provider.(pr.MemoryReleaser); ok {
		r.ReleaseMemory()
		l.log.Info("released memory on warning", Fields{"stage": l.name})
	}
}

func (l *ProviderLevel) Close(ctx context.Context) error {
	return l.provider.Close(ctx)
}

func (l *ProviderLevel) selfHeal(ctx context.Context, storageKey, reason string) {
	if err := l.provider.Del(ctx, storageKey); err != nil && !errors.Is(err, context.Canceled) {
		l.log.Warn("self-heal delete failed", Fields{"stage": l.name, "key": storageKey, "err": err})
	}
	l.hooks.SelfHeal(storageKey, reason)
}

func (l *ProviderLevel) storageKey(userKey string) string {
	// isolate by namespace
	return util.StorageKey(l.ns, userKey)
}
