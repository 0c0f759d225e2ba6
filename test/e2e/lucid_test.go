// Package e2e contains end-to-end tests that exercise a full Database
// lifecycle: schema creation, insert, sorted and filtered search, update
// via remove+reinsert, and removal.
//
// Run with:
//
//	go test -v -tags=e2e ./test/e2e/...
package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucid-search/lucid"
	"github.com/lucid-search/lucid/internal/schema"
	"github.com/lucid-search/lucid/internal/sorter"
)

func newArticleDatabase(t *testing.T) *lucid.Database {
	t.Helper()
	db, err := lucid.Create(lucid.CreateParams{
		ID: "articles",
		Schema: schema.Literal{
			"title":     "string",
			"body":      "string",
			"views":     "number",
			"published": "boolean",
			"tags":      "string[]",
		},
		Sort: lucid.SortConfig{Enabled: true},
	})
	require.NoError(t, err)
	return db
}

func seedArticles(t *testing.T, db *lucid.Database) {
	t.Helper()
	articles := []map[string]any{
		{"id": "a1", "title": "BM25 ranking for search engines", "body": "BM25 scores documents by term frequency and length normalization", "views": 120.0, "published": true, "tags": []any{"search", "ranking"}},
		{"id": "a2", "title": "Radix trees for prefix search", "body": "radix trees compress shared prefixes for efficient string lookup", "views": 80.0, "published": true, "tags": []any{"search", "data-structures"}},
		{"id": "a3", "title": "Draft article about caching", "body": "query caching reduces repeated computation for identical requests", "views": 5.0, "published": false, "tags": []any{"caching"}},
	}
	for _, a := range articles {
		require.NoError(t, db.Insert(a["id"].(string), a))
	}
}

// TestFullLifecycle walks a Database through creation, insertion, search
// with where-clause filtering, sort-by, removal, and reinsertion under a
// changed schema value.
func TestFullLifecycle(t *testing.T) {
	db := newArticleDatabase(t)
	seedArticles(t, db)
	ctx := context.Background()

	result, err := db.Search(ctx, lucid.SearchParams{Term: "search", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)

	result, err = db.Search(ctx, lucid.SearchParams{
		Term:  "search",
		Limit: 10,
		Where: map[string]any{"published": true},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)

	result, err = db.Search(ctx, lucid.SearchParams{
		Term:   "search",
		Limit:  10,
		SortBy: &lucid.SortBy{Property: "views", Order: sorter.Desc},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	require.Equal(t, "a1", result.Hits[0].ID)

	require.NoError(t, db.Remove("a1"))
	result, err = db.Search(ctx, lucid.SearchParams{Term: "search", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.Equal(t, "a2", result.Hits[0].ID)

	require.NoError(t, db.Insert("a1", map[string]any{
		"id": "a1", "title": "Updated BM25 article", "body": "revised content about bm25 ranking internals",
		"views": 200.0, "published": true, "tags": []any{"search"},
	}))
	result, err = db.Search(ctx, lucid.SearchParams{Term: "bm25", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.Equal(t, float64(200), result.Hits[0].Document["views"])
}

// TestEmptyQueryWithWhereClause verifies a Database returns the
// where-restricted set even when no free-text term is given.
func TestEmptyQueryWithWhereClause(t *testing.T) {
	db := newArticleDatabase(t)
	seedArticles(t, db)

	result, err := db.Search(context.Background(), lucid.SearchParams{
		Where: map[string]any{"published": false},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.Equal(t, "a3", result.Hits[0].ID)
}

// TestPaginationAcrossPages verifies offset/limit paginate a stable result
// set without duplicating or dropping hits.
func TestPaginationAcrossPages(t *testing.T) {
	db := newArticleDatabase(t)
	seedArticles(t, db)

	seen := make(map[string]bool)
	for offset := 0; offset < 3; offset++ {
		result, err := db.Search(context.Background(), lucid.SearchParams{
			Term:   "",
			Where:  map[string]any{"published": true},
			Limit:  1,
			Offset: offset,
			SortBy: &lucid.SortBy{Property: "views", Order: sorter.Desc},
		})
		require.NoError(t, err)
		for _, h := range result.Hits {
			require.False(t, seen[h.ID], "duplicate hit across pages: %s", h.ID)
			seen[h.ID] = true
		}
	}
	require.Len(t, seen, 2)
}
