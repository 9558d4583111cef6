package cachechain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

// PopulatePolicy selects which earlier stages receive a value found in a
// later stage.
type PopulatePolicy int

const (
	// PopulateAll writes the value into every stage before the hit.
	PopulateAll PopulatePolicy = iota
	// PopulatePrevious writes it only into the stage right before the hit.
	PopulatePrevious
	// PopulateNone never writes back.
	PopulateNone
)

func (p PopulatePolicy) String() string {
	switch p {
	case PopulateAll:
		return "all"
	case PopulatePrevious:
		return "previous"
	case PopulateNone:
		return "none"
	default:
		return "unknown"
	}
}

// PipelineOptions tune a Pipeline. The zero value is usable.
type PipelineOptions[K any] struct {
	Populate  PopulatePolicy // default PopulateAll
	Logger    Logger         // if nil, NopLogger is used
	Hooks     Hooks          // if nil, NopHooks is used
	KeyString KeyFunc[K]     // renders keys for logs/hooks/errors; nil => DefaultKeyFunc
}

type stage[K comparable, V any] struct {
	name  string
	level Level[K, V]
}

// Pipeline chains levels first-to-last. Get falls back stage by stage and
// writes hits back into earlier stages before it completes, so a direct read
// of an earlier stage right after sees the value. Set, Clear and
// OnMemoryWarning are broadcast to every stage.
type Pipeline[K comparable, V any] struct {
	stages   []stage[K, V]
	populate PopulatePolicy
	log      Logger
	hooks    Hooks
	keyFn    KeyFunc[K]
}

var _ ClosableLevel[string, int] = (*Pipeline[string, int])(nil)

var errNoStages = errors.New("cachechain: pipeline needs at least one level")

// NewPipeline chains levels first to last. It fails on no levels or a nil level.
func NewPipeline[K comparable, V any](opts PipelineOptions[K], levels ...Level[K, V]) (*Pipeline[K, V], error) {
	if len(levels) == 0 {
		return nil, errNoStages
	}
	p := &Pipeline[K, V]{
		stages:   make([]stage[K, V], len(levels)),
		populate: opts.Populate,
		keyFn:    opts.KeyString,
	}
	for i, l := range levels {
		if l == nil {
			return nil, errors.New("cachechain: nil level in pipeline")
		}
		p.stages[i] = stage[K, V]{name: levelName(l, i), level: l}
	}
	p.log = coalesce[Logger](opts.Logger, NopLogger{})
	p.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if p.keyFn == nil {
		p.keyFn = DefaultKeyFunc[K]
	}
	return p, nil
}

// Compose chains two or more levels with default options.
func Compose[K comparable, V any](first, second Level[K, V], rest ...Level[K, V]) *Pipeline[K, V] {
	levels := append([]Level[K, V]{first, second}, rest...)
	p, err := NewPipeline(PipelineOptions[K]{}, levels...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pipeline[K, V]) Get(ctx context.Context, key K) *Future[V] {
	out := NewFuture[V]()
	p.getFrom(ctx, key, 0, out)
	return out
}

func (p *Pipeline[K, V]) getFrom(ctx context.Context, key K, idx int, out *Future[V]) {
	p.stages[idx].level.Get(ctx, key).OnComplete(func(v V, err error) {
		if err == nil {
			p.populateBefore(ctx, key, v, idx).OnComplete(func(struct{}, error) { out.Succeed(v) })
			return
		}
		if idx == len(p.stages)-1 {
			out.Fail(err)
			return
		}
		if !errors.Is(err, ErrNotFound) {
			p.log.Debug("stage get failed; trying next", Fields{"stage": p.stages[idx].name, "key": p.keyFn(key), "err": err})
		}
		p.getFrom(ctx, key, idx+1, out)
	})
}

// populateBefore writes a hit at stage idx back into earlier stages. The
// returned future completes once every write has settled; it never fails.
// Write failures go to hooks and the log only.
func (p *Pipeline[K, V]) populateBefore(ctx context.Context, key K, v V, idx int) *Future[struct{}] {
	if idx == 0 || p.populate == PopulateNone {
		return Resolved(struct{}{})
	}
	from := 0
	if p.populate == PopulatePrevious {
		from = idx - 1
	}
	settled := NewFuture[struct{}]()
	var pending atomic.Int32
	pending.Store(int32(idx - from))
	detached := context.WithoutCancel(ctx)
	for i := from; i < idx; i++ {
		st := p.stages[i]
		st.level.Set(detached, key, v).OnComplete(func(_ struct{}, err error) {
			if err != nil {
				ks := p.keyFn(key)
				p.hooks.PopulateFailed(st.name, ks, err)
				p.log.Warn("populate failed", Fields{"stage": st.name, "key": ks, "err": err})
			}
			if pending.Add(-1) == 0 {
				settled.Succeed(struct{}{})
			}
		})
	}
	return settled
}

// Set writes to every stage. It succeeds only when every stage succeeds;
// otherwise it fails with a *SetError once all stages have answered.
func (p *Pipeline[K, V]) Set(ctx context.Context, key K, value V) *Future[struct{}] {
	out := NewFuture[struct{}]()

	var (
		mu      sync.Mutex
		pending = len(p.stages)
		errs    = make([]error, len(p.stages))
	)
	for i, st := range p.stages {
		st.level.Set(ctx, key, value).OnComplete(func(_ struct{}, err error) {
			mu.Lock()
			errs[i] = err
			pending--
			done := pending == 0
			mu.Unlock()
			if done {
				p.finishSet(key, errs, out)
			}
		})
	}
	return out
}

func (p *Pipeline[K, V]) finishSet(key K, errs []error, out *Future[struct{}]) {
	var failures []StageError
	for i, err := range errs {
		if err != nil {
			failures = append(failures, StageError{Stage: p.stages[i].name, Err: err})
		}
	}
	if len(failures) == 0 {
		out.Succeed(struct{}{})
		return
	}
	ks := p.keyFn(key)
	for _, f := range failures {
		p.hooks.StageSetFailed(f.Stage, ks, f.Err)
	}
	p.log.Warn("set failed on some stages", Fields{"key": ks, "failed": len(failures), "stages": len(p.stages)})
	out.Fail(&SetError{Key: ks, Failures: failures})
}

func (p *Pipeline[K, V]) Clear() {
	for _, st := range p.stages {
		st.level.Clear()
	}
}

func (p *Pipeline[K, V]) OnMemoryWarning() {
	for _, st := range p.stages {
		st.level.OnMemoryWarning()
	}
}

// Close closes every stage that holds resources and combines their errors.
func (p *Pipeline[K, V]) Close(ctx context.Context) error {
	var err error
	for _, st := range p.stages {
		err = multierr.Append(err, closeLevel(ctx, st.level))
	}
	return err
}

// Stages returns the stage names, first to last.
func (p *Pipeline[K, V]) Stages() []string {
	out := make([]string, len(p.stages))
	for i, st := range p.stages {
		out[i] = st.name
	}
	return out
}
