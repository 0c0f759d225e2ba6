package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/lucid-search/lucid/pkg/errors"

	"github.com/lucid-search/lucid/internal/bm25"
	"github.com/lucid-search/lucid/internal/idstore"
	"github.com/lucid-search/lucid/internal/schema"
	"github.com/lucid-search/lucid/internal/tokenizer"
)

func newTestIndex(t *testing.T) (*Index, *tokenizer.Tokenizer) {
	flat := schema.Flattened{
		"title":     schema.TypeString,
		"published": schema.TypeBoolean,
		"views":     schema.TypeNumber,
		"tags":      schema.TypeStringArray,
	}
	ix, err := New(flat)
	require.NoError(t, err)
	tok, err := tokenizer.New(tokenizer.Config{})
	require.NoError(t, err)
	return ix, tok
}

func TestInsertAndSearchTermScoresMatches(t *testing.T) {
	ix, tok := newTestIndex(t)
	require.NoError(t, ix.Insert("title", idstore.InternalID(1), "search engines rank documents", tok, tokenizer.English))
	require.NoError(t, ix.Insert("title", idstore.InternalID(2), "cooking recipes for dinner", tok, tokenizer.English))

	scores, err := ix.SearchTerm("title", "search", false, 0, bm25.DefaultParams())
	require.NoError(t, err)
	require.Contains(t, scores, idstore.InternalID(1))
	require.NotContains(t, scores, idstore.InternalID(2))
}

func TestInsertArrayPropertyIndexesEachElement(t *testing.T) {
	ix, tok := newTestIndex(t)
	require.NoError(t, ix.Insert("tags", idstore.InternalID(1), []string{"golang", "search"}, tok, tokenizer.English))

	scores, err := ix.SearchTerm("tags", "golang", true, 0, bm25.DefaultParams())
	require.NoError(t, err)
	require.Contains(t, scores, idstore.InternalID(1))
}

func TestRemoveReversesInsertForStringProperty(t *testing.T) {
	ix, tok := newTestIndex(t)
	require.NoError(t, ix.Insert("title", idstore.InternalID(1), "search engines", tok, tokenizer.English))
	require.NoError(t, ix.Remove("title", idstore.InternalID(1), "search engines", tok, tokenizer.English))

	scores, err := ix.SearchTerm("title", "search", true, 0, bm25.DefaultParams())
	require.NoError(t, err)
	require.Empty(t, scores)
}

func TestSearchTermOnUnknownPropertyErrors(t *testing.T) {
	ix, _ := newTestIndex(t)
	_, err := ix.SearchTerm("missing", "search", true, 0, bm25.DefaultParams())
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, apperrors.CodeUnknownFilterProperty, code)
}

func TestSearchByWhereClauseEmptyReturnsNoRestriction(t *testing.T) {
	ix, _ := newTestIndex(t)
	_, restricted, err := ix.SearchByWhereClause(nil, nil, tokenizer.English)
	require.NoError(t, err)
	require.False(t, restricted)
}

func TestSearchByWhereClauseBooleanFilter(t *testing.T) {
	ix, tok := newTestIndex(t)
	require.NoError(t, ix.Insert("published", idstore.InternalID(1), true, tok, tokenizer.English))
	require.NoError(t, ix.Insert("published", idstore.InternalID(2), false, tok, tokenizer.English))

	candidates, restricted, err := ix.SearchByWhereClause(map[string]any{"published": true}, tok, tokenizer.English)
	require.NoError(t, err)
	require.True(t, restricted)
	require.Contains(t, candidates, idstore.InternalID(1))
	require.NotContains(t, candidates, idstore.InternalID(2))
}

func TestSearchByWhereClauseNumericGTFilter(t *testing.T) {
	ix, tok := newTestIndex(t)
	require.NoError(t, ix.Insert("views", idstore.InternalID(1), float64(50), tok, tokenizer.English))
	require.NoError(t, ix.Insert("views", idstore.InternalID(2), float64(500), tok, tokenizer.English))

	candidates, restricted, err := ix.SearchByWhereClause(map[string]any{"views": map[string]any{"gt": float64(100)}}, tok, tokenizer.English)
	require.NoError(t, err)
	require.True(t, restricted)
	require.Contains(t, candidates, idstore.InternalID(2))
	require.NotContains(t, candidates, idstore.InternalID(1))
}

func TestSearchByWhereClauseIntersectsMultipleProperties(t *testing.T) {
	ix, tok := newTestIndex(t)
	require.NoError(t, ix.Insert("published", idstore.InternalID(1), true, tok, tokenizer.English))
	require.NoError(t, ix.Insert("views", idstore.InternalID(1), float64(500), tok, tokenizer.English))
	require.NoError(t, ix.Insert("published", idstore.InternalID(2), true, tok, tokenizer.English))
	require.NoError(t, ix.Insert("views", idstore.InternalID(2), float64(10), tok, tokenizer.English))

	candidates, restricted, err := ix.SearchByWhereClause(map[string]any{
		"published": true,
		"views":     map[string]any{"gte": float64(100)},
	}, tok, tokenizer.English)
	require.NoError(t, err)
	require.True(t, restricted)
	require.Contains(t, candidates, idstore.InternalID(1))
	require.NotContains(t, candidates, idstore.InternalID(2))
}

func TestSearchByWhereClauseUnknownPropertyErrors(t *testing.T) {
	ix, tok := newTestIndex(t)
	_, _, err := ix.SearchByWhereClause(map[string]any{"missing": true}, tok, tokenizer.English)
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, apperrors.CodeUnknownFilterProperty, code)
}

func TestSearchByWhereClauseInvalidComparisonObjectErrors(t *testing.T) {
	ix, tok := newTestIndex(t)
	_, _, err := ix.SearchByWhereClause(map[string]any{"views": map[string]any{"gt": 1.0, "lt": 2.0}}, tok, tokenizer.English)
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, apperrors.CodeInvalidFilterOperation, code)
}

func TestStringPathsReturnsOnlyStringProperties(t *testing.T) {
	ix, _ := newTestIndex(t)
	paths := ix.StringPaths()
	require.ElementsMatch(t, []string{"title", "tags"}, paths)
}
