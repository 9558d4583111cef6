// Package asynchook moves hook delivery off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	pipe, _ := cachechain.NewPipeline(cachechain.PipelineOptions[string]{Hooks: hooks}, mem, disk)
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachechain"
)

// Hooks queues events for a fixed set of workers. Events arriving while the
// queue is full are dropped and counted.
type Hooks struct {
	inner   cachechain.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ cachechain.Hooks = (*Hooks)(nil)

func New(inner cachechain.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) PoolJoined(k string) { h.try(func() { h.inner.PoolJoined(k) }) }
func (h *Hooks) PoolFetch(k string)  { h.try(func() { h.inner.PoolFetch(k) }) }
func (h *Hooks) PopulateFailed(stage, k string, err error) {
	h.try(func() { h.inner.PopulateFailed(stage, k, err) })
}
func (h *Hooks) StageSetFailed(stage, k string, err error) {
	h.try(func() { h.inner.StageSetFailed(stage, k, err) })
}
func (h *Hooks) SelfHeal(k, r string)          { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
