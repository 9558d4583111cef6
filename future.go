package cachechain

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Future is a single-completion, multi-observer asynchronous outcome.
// It completes exactly once, with a value or an error. Observers attached
// after completion receive the stored outcome.
type Future[V any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	val       V
	err       error
	observers []func(V, error)
}

// NewFuture returns a pending future.
func NewFuture[V any]() *Future[V] {
	return &Future[V]{done: make(chan struct{})}
}

// Resolved returns a future already completed with v.
func Resolved[V any](v V) *Future[V] {
	f := NewFuture[V]()
	f.Complete(v, nil)
	return f
}

// Failed returns a future already completed with err.
func Failed[V any](err error) *Future[V] {
	f := NewFuture[V]()
	var zero V
	f.Complete(zero, err)
	return f
}

// Go runs fn on its own goroutine and completes the returned future with its result.
func Go[V any](fn func() (V, error)) *Future[V] {
	f := NewFuture[V]()
	go func() {
		v, err := fn()
		f.Complete(v, err)
	}()
	return f
}

// Complete publishes the outcome. Only the first call has an effect;
// it reports whether this call was the one that completed f.
// A non-nil err discards v.
func (f *Future[V]) Complete(v V, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	if err != nil {
		var zero V
		v = zero
	}
	f.completed = true
	f.val, f.err = v, err
	obs := f.observers
	f.observers = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range obs {
		fn(v, err)
	}
	return true
}

func (f *Future[V]) Succeed(v V) bool { return f.Complete(v, nil) }

func (f *Future[V]) Fail(err error) bool {
	var zero V
	return f.Complete(zero, err)
}

// OnComplete attaches fn. It runs exactly once: on the completing goroutine
// when attached before completion, or immediately on the caller's goroutine
// when f is already complete. fn must not block.
func (f *Future[V]) OnComplete(fn func(V, error)) {
	f.mu.Lock()
	if !f.completed {
		f.observers = append(f.observers, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Done is closed once the outcome is known.
func (f *Future[V]) Done() <-chan struct{} { return f.done }

// Result peeks at the outcome without waiting. ok is false while pending.
func (f *Future[V]) Result() (v V, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err, f.completed
}

// Await blocks until the outcome is known or ctx ends. Giving up on ctx
// only drops interest; the underlying work keeps running.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

var errNilFuture = errors.New("cachechain: Then callback returned a nil future")

// Then chains fn after f. A failure of f skips fn and is propagated as is.
// A nil future from fn fails the result.
func Then[A, B any](f *Future[A], fn func(A) *Future[B]) *Future[B] {
	out := NewFuture[B]()
	f.OnComplete(func(a A, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		next := fn(a)
		if next == nil {
			out.Fail(errNilFuture)
			return
		}
		next.OnComplete(func(b B, err error) { out.Complete(b, err) })
	})
	return out
}

// Map applies a synchronous conversion to the value of f.
func Map[A, B any](f *Future[A], fn func(A) (B, error)) *Future[B] {
	out := NewFuture[B]()
	f.OnComplete(func(a A, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		out.Complete(fn(a))
	})
	return out
}

// Discard keeps only the outcome of f, dropping its value.
func Discard[V any](f *Future[V]) *Future[struct{}] {
	return Map(f, func(V) (struct{}, error) { return struct{}{}, nil })
}

// All succeeds with every value, in argument order, once all futures succeed.
// It fails with the first failure observed.
func All[V any](fs ...*Future[V]) *Future[[]V] {
	if len(fs) == 0 {
		return Resolved([]V{})
	}
	return Go(func() ([]V, error) {
		out := make([]V, len(fs))
		g, ctx := errgroup.WithContext(context.Background())
		for i, f := range fs {
			g.Go(func() error {
				v, err := f.Await(ctx)
				if err != nil {
					return err
				}
				out[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
}
