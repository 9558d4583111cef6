package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket. List pages hold at most pageSize keys.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	batches  int
}

var _ API = (*fakeS3)(nil)

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte), pageSize: 2} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = New(Config{Client: newFakeS3()})
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	p, err := New(Config{Client: api, Bucket: "b", Prefix: "cache/"})
	require.NoError(t, err)

	_, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	ok, err := p.Set(ctx, "k", []byte("v"), 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, api.has("cache/k"))

	got, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, p.Del(ctx, "k"))
	_, hit, err = p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestClearOnlyTouchesPrefix(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	api.objects["other/keep"] = []byte("x")
	p, err := New(Config{Client: api, Bucket: "b", Prefix: "cache/"})
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_, err := p.Set(ctx, k, []byte(k), 0, 0)
		require.NoError(t, err)
	}
	require.NoError(t, p.Clear(ctx))
	require.NoError(t, p.Clear(ctx))

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		assert.False(t, api.has("cache/"+k), k)
	}
	assert.True(t, api.has("other/keep"))
	assert.Equal(t, 1, api.batches)
}
