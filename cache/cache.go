// Package cache wraps Database.Search with a Redis-backed result cache
// and golang.org/x/sync/singleflight request coalescing, so identical
// concurrent queries against a stable index share one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lucid-search/lucid"
	"github.com/lucid-search/lucid/pkg/config"
	pkgredis "github.com/lucid-search/lucid/pkg/redis"
)

const keyPrefix = "lucid:search:"

// redisBackend is the slice of *pkgredis.Client that QueryCache depends on.
// Tests substitute an in-memory fake instead of talking to a real Redis.
type redisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache caches lucid.SearchResult values keyed by a normalized
// rendering of the search parameters.
type QueryCache struct {
	client redisBackend
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache backed by client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for params, if present and still valid.
func (c *QueryCache) Get(ctx context.Context, params lucid.SearchParams) (*lucid.SearchResult, bool) {
	key := c.buildKey(params)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var result lucid.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores result for params under the configured TTL.
func (c *QueryCache) Set(ctx context.Context, params lucid.SearchParams, result *lucid.SearchResult) {
	key := c.buildKey(params)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for params, or computes it via
// computeFn exactly once across concurrent identical requests, caching
// the result before returning.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	params lucid.SearchParams,
	computeFn func() (*lucid.SearchResult, error),
) (*lucid.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, params); ok {
		return result, true, nil
	}
	key := c.buildKey(params)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, params); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, params, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*lucid.SearchResult), false, nil
}

// Invalidate drops every cached search result, used after a batch of
// writes when callers would rather pay one round of cache misses than
// risk serving stale hits.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats returns cumulative hit/miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(params lucid.SearchParams) string {
	normalized := normalizeParams(params)
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeParams renders the parts of SearchParams that affect the
// result set into a stable string, independent of map/slice ordering,
// so semantically identical queries always hash to the same key.
func normalizeParams(p lucid.SearchParams) string {
	props := append([]string{}, p.Properties...)
	sort.Strings(props)

	var where []string
	for k, v := range p.Where {
		where = append(where, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(where)

	sb := p.SortBy
	sortKey := ""
	if sb != nil {
		sortKey = sb.Property + ":" + string(sb.Order)
	}

	var boost []string
	for k, v := range p.Boost {
		boost = append(boost, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(boost)
	facets := append([]string{}, p.Facets...)
	sort.Strings(facets)
	group := lucid.GroupByParams{}
	if p.GroupBy != nil {
		group = *p.GroupBy
	}

	return strings.Join([]string{
		p.Term,
		strings.Join(props, ","),
		fmt.Sprintf("tol=%d,exact=%v,mode=%s", p.Tolerance, p.Exact, p.Mode),
		fmt.Sprintf("limit=%d,offset=%d", p.Limit, p.Offset),
		"where:" + strings.Join(where, "&"),
		"sort:" + sortKey,
		fmt.Sprintf("k1=%v,b=%v,d=%v,boost=%s", p.Relevance.K1, p.Relevance.B, p.Relevance.D, strings.Join(boost, "&")),
		fmt.Sprintf("facets=%s,group=%s:%d", strings.Join(facets, ","), group.Property, group.MaxResult),
	}, "|")
}
