package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{LifeWindow: time.Minute, Shards: 16, MaxEntriesInWindow: 1024, MaxEntrySize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestRequiresLifeWindow(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	ok, err := p.Set(ctx, "k", []byte("v"), 0, 0)
	require.NoError(t, err)
	require.True(t, ok)

	got, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, p.Len())
}

func TestDelMissingKeyIsNotAnError(t *testing.T) {
	assert.NoError(t, newTestProvider(t).Del(context.Background(), "absent"))
}

func TestClearAndRelease(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, err := p.Set(ctx, "a", []byte("1"), 0, 0)
	require.NoError(t, err)
	require.NoError(t, p.Clear(ctx))
	assert.Zero(t, p.Len())

	_, err = p.Set(ctx, "b", []byte("2"), 0, 0)
	require.NoError(t, err)
	p.ReleaseMemory()
	assert.Zero(t, p.Len())
}

func TestCloseTwiceIsNoop(t *testing.T) {
	p := newTestProvider(t)
	require.NoError(t, p.Close(context.Background()))
	assert.NotPanics(t, func() { _ = p.Close(context.Background()) })
}
