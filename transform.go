package cachechain

import (
	"context"

	c "github.com/unkn0wn-root/cachechain/codec"
)

// OneWayTransformer converts A values into B values.
type OneWayTransformer[A, B any] interface {
	Transform(ctx context.Context, in A) *Future[B]
}

// TwoWayTransformer converts A into B and back.
// InverseTransform(Transform(x)) is expected to be equivalent to x; nothing
// enforces it, and a transformer that breaks it corrupts cached data.
type TwoWayTransformer[A, B any] interface {
	OneWayTransformer[A, B]
	InverseTransform(ctx context.Context, out B) *Future[A]
}

// OneWayFunc adapts a function to OneWayTransformer.
type OneWayFunc[A, B any] func(ctx context.Context, in A) *Future[B]

func (f OneWayFunc[A, B]) Transform(ctx context.Context, in A) *Future[B] { return f(ctx, in) }

// TransformationBox is a TwoWayTransformer made of two functions.
type TransformationBox[A, B any] struct {
	transform func(ctx context.Context, in A) *Future[B]
	inverse   func(ctx context.Context, out B) *Future[A]
}

var _ TwoWayTransformer[int, string] = (*TransformationBox[int, string])(nil)

func NewTransformationBox[A, B any](
	transform func(ctx context.Context, in A) *Future[B],
	inverse func(ctx context.Context, out B) *Future[A],
) *TransformationBox[A, B] {
	return &TransformationBox[A, B]{transform: transform, inverse: inverse}
}

// SyncTransformationBox builds a box from plain conversion functions.
// Each conversion runs on its own goroutine, so callers get a pending future
// back even when encoding is slow.
func SyncTransformationBox[A, B any](transform func(A) (B, error), inverse func(B) (A, error)) *TransformationBox[A, B] {
	return NewTransformationBox(
		func(_ context.Context, in A) *Future[B] {
			return Go(func() (B, error) { return transform(in) })
		},
		func(_ context.Context, out B) *Future[A] {
			return Go(func() (A, error) { return inverse(out) })
		},
	)
}

func (t *TransformationBox[A, B]) Transform(ctx context.Context, in A) *Future[B] {
	return t.transform(ctx, in)
}

func (t *TransformationBox[A, B]) InverseTransform(ctx context.Context, out B) *Future[A] {
	return t.inverse(ctx, out)
}

// Invert swaps the two directions.
func (t *TransformationBox[A, B]) Invert() *TransformationBox[B, A] {
	return &TransformationBox[B, A]{transform: t.inverse, inverse: t.transform}
}

// Invert swaps the directions of any TwoWayTransformer.
func Invert[A, B any](t TwoWayTransformer[A, B]) *TransformationBox[B, A] {
	return NewTransformationBox(t.InverseTransform, t.Transform)
}

// ComposeTransformers chains first (A<->B) and second (B<->C) into A<->C.
func ComposeTransformers[A, B, C any](first TwoWayTransformer[A, B], second TwoWayTransformer[B, C]) *TransformationBox[A, C] {
	return NewTransformationBox(
		func(ctx context.Context, in A) *Future[C] {
			return Then(first.Transform(ctx, in), func(b B) *Future[C] { return second.Transform(ctx, b) })
		},
		func(ctx context.Context, out C) *Future[A] {
			return Then(second.InverseTransform(ctx, out), func(b B) *Future[A] { return first.InverseTransform(ctx, b) })
		},
	)
}

// TransformValues exposes level with B values instead of A values.
// Get fails with the first failure of the fetch or the transform. Set runs
// the inverse transform first and never reaches level when it fails.
func TransformValues[K comparable, A, B any](level Level[K, A], t TwoWayTransformer[A, B]) *BasicCache[K, B] {
	return &BasicCache[K, B]{
		GetFunc: func(ctx context.Context, key K) *Future[B] {
			return Then(level.Get(ctx, key), func(a A) *Future[B] {
				return wrapTransform(t.Transform(ctx, a), "transform")
			})
		},
		SetFunc: func(ctx context.Context, key K, value B) *Future[struct{}] {
			return Then(wrapTransform(t.InverseTransform(ctx, value), "inverse_transform"), func(a A) *Future[struct{}] {
				return level.Set(ctx, key, a)
			})
		},
		ClearFunc:         level.Clear,
		MemoryWarningFunc: level.OnMemoryWarning,
		CloseFunc:         func(ctx context.Context) error { return closeLevel(ctx, level) },
	}
}

// TransformKeys exposes level under K1 keys, converting each key before use.
func TransformKeys[K1, K2 comparable, V any](level Level[K2, V], t OneWayTransformer[K1, K2]) *BasicCache[K1, V] {
	return &BasicCache[K1, V]{
		GetFunc: func(ctx context.Context, key K1) *Future[V] {
			return Then(wrapTransform(t.Transform(ctx, key), "key_transform"), func(k K2) *Future[V] {
				return level.Get(ctx, k)
			})
		},
		SetFunc: func(ctx context.Context, key K1, value V) *Future[struct{}] {
			return Then(wrapTransform(t.Transform(ctx, key), "key_transform"), func(k K2) *Future[struct{}] {
				return level.Set(ctx, k, value)
			})
		},
		ClearFunc:         level.Clear,
		MemoryWarningFunc: level.OnMemoryWarning,
		CloseFunc:         func(ctx context.Context) error { return closeLevel(ctx, level) },
	}
}

// StringKeys mounts a string-keyed level under K keys rendered by fn
// (DefaultKeyFunc when nil).
func StringKeys[K comparable, V any](level Level[string, V], fn KeyFunc[K]) *BasicCache[K, V] {
	if fn == nil {
		fn = DefaultKeyFunc[K]
	}
	return TransformKeys[K, string, V](level, OneWayFunc[K, string](func(_ context.Context, k K) *Future[string] {
		return Resolved(fn(k))
	}))
}

// CodecTransformer turns a codec into a []byte <-> V transformer:
// Transform decodes, InverseTransform encodes.
func CodecTransformer[V any](cd c.Codec[V]) *TransformationBox[[]byte, V] {
	return SyncTransformationBox(cd.Decode, cd.Encode)
}

func wrapTransform[V any](f *Future[V], op string) *Future[V] {
	out := NewFuture[V]()
	f.OnComplete(func(v V, err error) { out.Complete(v, transformErr(op, err)) })
	return out
}
