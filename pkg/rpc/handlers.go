package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucid-search/lucid"
	"github.com/lucid-search/lucid/cache"
	"github.com/lucid-search/lucid/internal/sorter"
	"github.com/lucid-search/lucid/pkg/metrics"
)

// SearchRequest is the wire shape for a "Database.Search" call.
type SearchRequest struct {
	Term       string             `json:"term"`
	Properties []string           `json:"properties,omitempty"`
	Tolerance  int                `json:"tolerance,omitempty"`
	Exact      bool               `json:"exact,omitempty"`
	Mode       string             `json:"mode,omitempty"`
	Boost      map[string]float64 `json:"boost,omitempty"`
	Limit      int                `json:"limit,omitempty"`
	Offset     int                `json:"offset,omitempty"`
	Where      map[string]any     `json:"where,omitempty"`
	SortBy     *SortByRequest     `json:"sortBy,omitempty"`
	Facets     []string           `json:"facets,omitempty"`
	GroupBy    *GroupByRequest    `json:"groupBy,omitempty"`
}

// SortByRequest is the wire shape of SearchRequest.SortBy.
type SortByRequest struct {
	Property string `json:"property"`
	Order    string `json:"order"`
}

// GroupByRequest is the wire shape of SearchRequest.GroupBy.
type GroupByRequest struct {
	Property  string `json:"property"`
	MaxResult int    `json:"maxResult,omitempty"`
}

// SearchResponse is the wire shape for a "Database.Search" response.
type SearchResponse struct {
	ElapsedMillis float64                 `json:"elapsedMillis"`
	Count         int                     `json:"count"`
	Hits          []HitEntry              `json:"hits"`
	FacetCounts   map[string][]FacetEntry `json:"facetCounts,omitempty"`
	Groups        []GroupEntry            `json:"groups,omitempty"`
}

// HitEntry is one entry of SearchResponse.Hits or GroupEntry.Hits.
type HitEntry struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Document map[string]any `json:"document"`
}

// FacetEntry is one entry of SearchResponse.FacetCounts[property].
type FacetEntry struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// GroupEntry is one entry of SearchResponse.Groups.
type GroupEntry struct {
	Value any        `json:"value"`
	Hits  []HitEntry `json:"hits"`
}

// InsertRequest is the wire shape for a "Database.Insert" call.
type InsertRequest struct {
	ID       string         `json:"id"`
	Document map[string]any `json:"document"`
}

// RemoveRequest is the wire shape for a "Database.Remove" call.
type RemoveRequest struct {
	ID string `json:"id"`
}

// DatabaseOptions configures the optional collaborators RegisterDatabase
// wires around db's handlers: a QueryCache placed in front of
// Database.Search, and a Metrics sink recording query volume, latency,
// result size, and cache hit rate for every search.
type DatabaseOptions struct {
	Cache   *cache.QueryCache
	Metrics *metrics.Metrics
}

// RegisterDatabase registers Database.Search, Database.Insert, and
// Database.Remove handlers on s, backed by db. When opts.Cache is set,
// Database.Search results are served from (and populated into) the cache
// instead of always recomputing; when opts.Metrics is set, every search
// records lucid_search_queries_total/lucid_search_latency_seconds/
// lucid_search_results_count and lucid_cache_{hits,misses}_total.
func RegisterDatabase(s *Server, db *lucid.Database, opts DatabaseOptions) {
	s.Register("Database.Search", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req SearchRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding search request: %w", err)
		}

		params := lucid.SearchParams{
			Term:       req.Term,
			Properties: req.Properties,
			Tolerance:  req.Tolerance,
			Exact:      req.Exact,
			Mode:       lucid.Mode(req.Mode),
			Boost:      req.Boost,
			Limit:      req.Limit,
			Offset:     req.Offset,
			Where:      req.Where,
			Facets:     req.Facets,
		}
		if req.SortBy != nil {
			order := sorter.Asc
			if sorter.Order(req.SortBy.Order) == sorter.Desc {
				order = sorter.Desc
			}
			params.SortBy = &lucid.SortBy{
				Property: req.SortBy.Property,
				Order:    order,
			}
		}
		if req.GroupBy != nil {
			params.GroupBy = &lucid.GroupByParams{
				Property:  req.GroupBy.Property,
				MaxResult: req.GroupBy.MaxResult,
			}
		}

		start := time.Now()
		result, cacheStatus, err := runSearch(ctx, db, opts.Cache, params)
		recordSearchMetrics(opts.Metrics, cacheStatus, err, result, time.Since(start))
		if err != nil {
			return nil, err
		}

		return SearchResponse{
			ElapsedMillis: float64(result.Elapsed.Microseconds()) / 1000,
			Count:         result.Count,
			Hits:          hitEntries(result.Hits),
			FacetCounts:   facetEntries(result.FacetCounts),
			Groups:        groupEntries(result.Groups),
		}, nil
	})

	s.Register("Database.Insert", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req InsertRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding insert request: %w", err)
		}
		if err := db.Insert(req.ID, req.Document); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	})

	s.Register("Database.Remove", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req RemoveRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding remove request: %w", err)
		}
		if err := db.Remove(req.ID); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	})
}

// runSearch executes params against db, going through qc when it is
// non-nil. It reports a cache_status label ("disabled", "hit", or "miss")
// alongside the result, for recordSearchMetrics.
func runSearch(ctx context.Context, db *lucid.Database, qc *cache.QueryCache, params lucid.SearchParams) (lucid.SearchResult, string, error) {
	if qc == nil {
		result, err := db.Search(ctx, params)
		return result, "disabled", err
	}
	result, hit, err := qc.GetOrCompute(ctx, params, func() (*lucid.SearchResult, error) {
		r, err := db.Search(ctx, params)
		return &r, err
	})
	if err != nil {
		return lucid.SearchResult{}, "miss", err
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	return *result, status, nil
}

// recordSearchMetrics updates the search-facing Prometheus collectors for
// one Database.Search call. m may be nil, in which case this is a no-op.
func recordSearchMetrics(m *metrics.Metrics, cacheStatus string, err error, result lucid.SearchResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := cacheStatus
	if err != nil {
		status = "error"
	}
	m.SearchQueriesTotal.WithLabelValues(status).Inc()
	m.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	if err == nil {
		m.SearchResultsCount.Observe(float64(result.Count))
	}
	switch cacheStatus {
	case "hit":
		m.CacheHitsTotal.Inc()
	case "miss":
		m.CacheMissesTotal.Inc()
	}
}

func hitEntries(hits []lucid.Hit) []HitEntry {
	out := make([]HitEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, HitEntry{ID: h.ID, Score: h.Score, Document: h.Document})
	}
	return out
}

func facetEntries(counts map[string][]lucid.FacetCount) map[string][]FacetEntry {
	if counts == nil {
		return nil
	}
	out := make(map[string][]FacetEntry, len(counts))
	for prop, fcs := range counts {
		entries := make([]FacetEntry, 0, len(fcs))
		for _, fc := range fcs {
			entries = append(entries, FacetEntry{Value: fc.Value, Count: fc.Count})
		}
		out[prop] = entries
	}
	return out
}

func groupEntries(groups []lucid.Group) []GroupEntry {
	if groups == nil {
		return nil
	}
	out := make([]GroupEntry, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupEntry{Value: g.Value, Hits: hitEntries(g.Hits)})
	}
	return out
}
