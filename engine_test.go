package lucid

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/lucid-search/lucid/pkg/errors"

	"github.com/lucid-search/lucid/internal/sorter"
)

func articleSchema() map[string]any {
	return map[string]any{
		"title":     "string",
		"body":      "string",
		"views":     "number",
		"published": "boolean",
		"tags":      "string[]",
	}
}

func newArticleDB(t *testing.T) *Database {
	db, err := Create(CreateParams{
		ID:     "test",
		Schema: articleSchema(),
		Sort:   SortConfig{Enabled: true},
	})
	require.NoError(t, err)
	return db
}

func seedArticles(t *testing.T, db *Database) {
	require.NoError(t, db.Insert("a1", map[string]any{
		"title": "full text search basics", "body": "search engines rank documents by relevance",
		"views": float64(100), "published": true, "tags": []string{"search", "basics"},
	}))
	require.NoError(t, db.Insert("a2", map[string]any{
		"title": "radix trees explained", "body": "radix trees compress shared prefixes for search",
		"views": float64(50), "published": true, "tags": []string{"data-structures"},
	}))
	require.NoError(t, db.Insert("a3", map[string]any{
		"title": "draft notes", "body": "unrelated cooking content",
		"views": float64(5), "published": false, "tags": []string{"draft"},
	}))
}

func TestCreateRejectsInvalidSchemaType(t *testing.T) {
	_, err := Create(CreateParams{Schema: map[string]any{"x": "wat"}})
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, apperrors.CodeInvalidSchemaType, code)
}

func TestInsertAndSearchByTerm(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{Term: "search"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	ids := hitIDs(res)
	require.ElementsMatch(t, []string{"a1", "a2"}, ids)
}

func TestSearchExcludesUnpublishedViaWhereClause(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{
		Term:  "search",
		Where: map[string]any{"published": true},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
}

func TestSearchModeANDRequiresAllTerms(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{
		Term:       "radix trees",
		Mode:       ModeAND,
		Properties: []string{"body"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, "a2", res.Hits[0].ID)
}

func TestSearchModeORUnionsTerms(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{Term: "basics prefixes", Mode: ModeOR})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1", "a2"}, hitIDs(res))
}

func TestSearchEmptyTermWithWhereClauseOnly(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{Where: map[string]any{"published": false}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, "a3", res.Hits[0].ID)
}

func TestSearchEmptyTermWithoutWhereClauseReturnsNothing(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Count)
	require.Nil(t, res.Hits)
}

func TestSearchSortByOverridesScoreOrder(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{
		Term:   "search",
		SortBy: &SortBy{Property: "views", Order: sorter.Desc},
	})
	require.NoError(t, err)
	require.Equal(t, "a1", res.Hits[0].ID)
}

func TestSearchPagination(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	seen := map[string]bool{}
	for offset := 0; offset < 2; offset++ {
		res, err := db.Search(context.Background(), SearchParams{
			Term:   "search",
			Limit:  1,
			Offset: offset,
			SortBy: &SortBy{Property: "views", Order: sorter.Desc},
		})
		require.NoError(t, err)
		require.Len(t, res.Hits, 1)
		require.Equal(t, 2, res.Count)
		seen[res.Hits[0].ID] = true
	}
	require.Len(t, seen, 2)
}

func TestRemoveExcludesDocumentFromFutureSearches(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	require.NoError(t, db.Remove("a1"))

	res, err := db.Search(context.Background(), SearchParams{Term: "search"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, "a2", res.Hits[0].ID)
}

func TestRemoveUnknownIDIsIdempotent(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	require.NoError(t, db.Remove("does-not-exist"))
	require.NoError(t, db.Remove("does-not-exist"))
}

func TestReinsertAfterRemoveUsesFreshState(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)
	require.NoError(t, db.Remove("a1"))

	require.NoError(t, db.Insert("a1", map[string]any{
		"title": "full text search basics, revised", "body": "search engines and bm25 ranking",
		"views": float64(999), "published": true, "tags": []string{"search"},
	}))

	res, err := db.Search(context.Background(), SearchParams{Term: "bm25"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, float64(999), res.Hits[0].Document["views"])
}

func TestInsertMultipleAndRemoveMultiple(t *testing.T) {
	db := newArticleDB(t)

	require.NoError(t, db.InsertMultiple(map[string]map[string]any{
		"b1": {"title": "one", "body": "search term alpha", "views": float64(1), "published": true, "tags": []string{}},
		"b2": {"title": "two", "body": "search term beta", "views": float64(2), "published": true, "tags": []string{}},
	}))

	res, err := db.Search(context.Background(), SearchParams{Term: "search"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)

	require.NoError(t, db.RemoveMultiple([]string{"b1", "b2"}))
	res, err = db.Search(context.Background(), SearchParams{Term: "search"})
	require.NoError(t, err)
	require.Equal(t, 0, res.Count)
}

func TestInsertDocumentUsesDefaultIDField(t *testing.T) {
	db := newArticleDB(t)
	err := db.InsertDocument(map[string]any{
		"id": "c1", "title": "x", "body": "search via default id", "views": float64(1), "published": true, "tags": []string{},
	})
	require.NoError(t, err)

	res, err := db.Search(context.Background(), SearchParams{Term: "search"})
	require.NoError(t, err)
	require.Equal(t, "c1", res.Hits[0].ID)
}

func TestInsertDocumentErrorsWithoutResolvableID(t *testing.T) {
	db := newArticleDB(t)
	err := db.InsertDocument(map[string]any{"title": "missing id"})
	require.Error(t, err)
}

func TestHooksFireAroundInsertAndRemove(t *testing.T) {
	db := newArticleDB(t)
	var afterInsertID string
	var afterRemoveID string
	db.SetHooks(Hooks{
		AfterInsert: func(id string, doc map[string]any) { afterInsertID = id },
		AfterRemove: func(id string) { afterRemoveID = id },
	})

	require.NoError(t, db.Insert("h1", map[string]any{
		"title": "x", "body": "hooked document", "views": float64(1), "published": true, "tags": []string{},
	}))
	require.Equal(t, "h1", afterInsertID)

	require.NoError(t, db.Remove("h1"))
	require.Equal(t, "h1", afterRemoveID)
}

func TestBeforeInsertHookCanRejectDocument(t *testing.T) {
	db := newArticleDB(t)
	db.SetHooks(Hooks{
		BeforeInsert: func(doc map[string]any) error {
			return apperrors.New(apperrors.CodeInvalidSchemaType, "rejected")
		},
	})

	err := db.Insert("r1", map[string]any{"title": "x"})
	require.Error(t, err)
}

func TestSaveAndLoadRoundTripsDocumentsAndIDs(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	snap := db.Save()
	require.Len(t, snap.Documents, 3)
	require.Len(t, snap.IDs, 3)

	restored, err := Load(snap, Components{})
	require.NoError(t, err)

	res, err := restored.Search(context.Background(), SearchParams{Term: "search"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	require.ElementsMatch(t, []string{"a1", "a2"}, hitIDs(res))
}

func TestSaveAndLoadPreservesInternalIDAssignment(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)
	snap := db.Save()

	restored, err := Load(snap, Components{})
	require.NoError(t, err)

	for ext, id := range snap.IDs {
		got, ok := restored.ids.Lookup(ext)
		require.True(t, ok)
		require.Equal(t, id, got)
	}
}

func TestLoadRejectsInvalidSnapshotSchema(t *testing.T) {
	snap := Snapshot{Schema: map[string]any{"x": "not-a-type"}}
	_, err := Load(snap, Components{})
	require.Error(t, err)
}

func TestSearchFacetsCountsDistinctValues(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{
		Where:  map[string]any{"published": true},
		Facets: []string{"published"},
	})
	require.NoError(t, err)
	require.Contains(t, res.FacetCounts, "published")
	require.Equal(t, []FacetCount{{Value: true, Count: 2}}, res.FacetCounts["published"])
}

func TestSearchFacetsCountArrayPropertyPerElement(t *testing.T) {
	db := newArticleDB(t)
	seedArticles(t, db)

	res, err := db.Search(context.Background(), SearchParams{
		Term:   "search",
		Facets: []string{"tags"},
	})
	require.NoError(t, err)
	counts := map[string]int{}
	for _, fc := range res.FacetCounts["tags"] {
		counts[fmt.Sprintf("%v", fc.Value)] = fc.Count
	}
	require.Equal(t, 1, counts["search"])
	require.Equal(t, 1, counts["basics"])
	require.Equal(t, 1, counts["data-structures"])
}

func TestSearchGroupByBucketsAndCapsPerGroup(t *testing.T) {
	db := newArticleDB(t)
	require.NoError(t, db.InsertMultiple(map[string]map[string]any{
		"g1": {"title": "x", "body": "search alpha", "views": float64(1), "published": true, "tags": []string{}},
		"g2": {"title": "y", "body": "search beta", "views": float64(2), "published": true, "tags": []string{}},
		"g3": {"title": "z", "body": "search gamma", "views": float64(3), "published": false, "tags": []string{}},
	}))

	res, err := db.Search(context.Background(), SearchParams{
		Term:    "search",
		GroupBy: &GroupByParams{Property: "published", MaxResult: 1},
	})
	require.NoError(t, err)
	require.Empty(t, res.Hits)
	require.Len(t, res.Groups, 2)
	for _, g := range res.Groups {
		require.LessOrEqual(t, len(g.Hits), 1)
	}
}

func hitIDs(res SearchResult) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.ID
	}
	return out
}
