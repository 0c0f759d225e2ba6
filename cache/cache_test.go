package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lucid-search/lucid"
	"github.com/lucid-search/lucid/internal/sorter"
)

// fakeBackend is an in-memory stand-in for *pkgredis.Client, satisfying
// redisBackend so QueryCache's Get/Set/GetOrCompute/Invalidate logic can be
// exercised without a live Redis.
type fakeBackend struct {
	mu    sync.Mutex
	data  map[string]string
	calls atomic.Int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string)}
}

func (f *fakeBackend) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeBackend) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Add(1)
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return nil
}

func (f *fakeBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var deleted int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			deleted++
		}
	}
	return deleted, nil
}

func newTestCache() (*QueryCache, *fakeBackend) {
	backend := newFakeBackend()
	return &QueryCache{
		client: backend,
		logger: slog.Default(),
	}, backend
}

func TestNormalizeParamsIsOrderIndependentForWhereClause(t *testing.T) {
	a := lucid.SearchParams{
		Term:  "search",
		Where: map[string]any{"published": true, "views": float64(10)},
	}
	b := lucid.SearchParams{
		Term:  "search",
		Where: map[string]any{"views": float64(10), "published": true},
	}
	require.Equal(t, normalizeParams(a), normalizeParams(b))
}

func TestNormalizeParamsIsOrderIndependentForProperties(t *testing.T) {
	a := lucid.SearchParams{Term: "x", Properties: []string{"title", "body"}}
	b := lucid.SearchParams{Term: "x", Properties: []string{"body", "title"}}
	require.Equal(t, normalizeParams(a), normalizeParams(b))
}

func TestNormalizeParamsDiffersOnTerm(t *testing.T) {
	a := lucid.SearchParams{Term: "search"}
	b := lucid.SearchParams{Term: "searching"}
	require.NotEqual(t, normalizeParams(a), normalizeParams(b))
}

func TestNormalizeParamsDiffersOnSortBy(t *testing.T) {
	a := lucid.SearchParams{Term: "x", SortBy: &lucid.SortBy{Property: "views", Order: sorter.Asc}}
	b := lucid.SearchParams{Term: "x", SortBy: &lucid.SortBy{Property: "views", Order: sorter.Desc}}
	require.NotEqual(t, normalizeParams(a), normalizeParams(b))
}

func TestBuildKeyIsDeterministicAndPrefixed(t *testing.T) {
	c := &QueryCache{}
	params := lucid.SearchParams{Term: "search", Limit: 10}

	k1 := c.buildKey(params)
	k2 := c.buildKey(params)
	require.Equal(t, k1, k2)
	require.True(t, len(k1) > len(keyPrefix))
	require.Equal(t, keyPrefix, k1[:len(keyPrefix)])
}

func TestBuildKeyDiffersForDifferentParams(t *testing.T) {
	c := &QueryCache{}
	k1 := c.buildKey(lucid.SearchParams{Term: "search"})
	k2 := c.buildKey(lucid.SearchParams{Term: "engine"})
	require.NotEqual(t, k1, k2)
}

func TestGetMissesOnEmptyBackend(t *testing.T) {
	c, _ := newTestCache()
	result, ok := c.Get(context.Background(), lucid.SearchParams{Term: "search"})
	require.False(t, ok)
	require.Nil(t, result)
	hits, misses := c.Stats()
	require.Equal(t, int64(0), hits)
	require.Equal(t, int64(1), misses)
}

func TestSetThenGetHits(t *testing.T) {
	c, _ := newTestCache()
	params := lucid.SearchParams{Term: "search", Limit: 10}
	want := &lucid.SearchResult{Count: 2}

	c.Set(context.Background(), params, want)
	got, ok := c.Get(context.Background(), params)
	require.True(t, ok)
	require.Equal(t, want.Count, got.Count)

	hits, misses := c.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(0), misses)
}

func TestGetOrComputeCachesAfterFirstCall(t *testing.T) {
	c, backend := newTestCache()
	params := lucid.SearchParams{Term: "search"}
	var computed atomic.Int64

	computeFn := func() (*lucid.SearchResult, error) {
		computed.Add(1)
		return &lucid.SearchResult{Count: 5}, nil
	}

	result, hit, err := c.GetOrCompute(context.Background(), params, computeFn)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 5, result.Count)
	require.Equal(t, int64(1), computed.Load())
	require.Equal(t, int64(1), backend.calls.Load())

	result, hit, err = c.GetOrCompute(context.Background(), params, computeFn)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 5, result.Count)
	require.Equal(t, int64(1), computed.Load(), "computeFn must not run again once the result is cached")
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c, _ := newTestCache()
	_, _, err := c.GetOrCompute(context.Background(), lucid.SearchParams{Term: "x"}, func() (*lucid.SearchResult, error) {
		return nil, context.DeadlineExceeded
	})
	require.Error(t, err)
}

func TestInvalidateDropsAllCachedKeys(t *testing.T) {
	c, backend := newTestCache()
	ctx := context.Background()
	c.Set(ctx, lucid.SearchParams{Term: "search"}, &lucid.SearchResult{Count: 1})
	c.Set(ctx, lucid.SearchParams{Term: "engine"}, &lucid.SearchResult{Count: 2})

	require.NoError(t, c.Invalidate(ctx))

	_, ok := c.Get(ctx, lucid.SearchParams{Term: "search"})
	require.False(t, ok)
	_, ok = c.Get(ctx, lucid.SearchParams{Term: "engine"})
	require.False(t, ok)
	require.Empty(t, backend.data)
}
