package radix

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucid-search/lucid/internal/idstore"
)

func TestExactMatch(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("searching", idstore.InternalID(2))

	matches := tr.Find(FindParams{Term: "search", Exact: true})
	require.Len(t, matches, 1)
	require.Equal(t, "search", matches[0].Term)
	require.Equal(t, 1, matches[0].IDs[idstore.InternalID(1)])

	matches = tr.Find(FindParams{Term: "sear", Exact: true})
	require.Empty(t, matches)
}

func TestPrefixMatch(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("searching", idstore.InternalID(2))
	tr.Insert("season", idstore.InternalID(3))

	matches := tr.Find(FindParams{Term: "sea"})
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, m.Term)
	}
	require.ElementsMatch(t, []string{"search", "searching", "season"}, terms)
}

func TestFuzzyToleranceMatchesNearbyTerms(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("research", idstore.InternalID(2))

	matches := tr.Find(FindParams{Term: "serch", Tolerance: 1})
	found := false
	for _, m := range matches {
		if m.Term == "search" {
			found = true
			require.Equal(t, 1, m.Distance)
		}
	}
	require.True(t, found)
}

func TestRepeatedInsertIncrementsOccurrenceCount(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("search", idstore.InternalID(1))

	matches := tr.Find(FindParams{Term: "search", Exact: true})
	require.Len(t, matches, 1)
	require.Equal(t, 3, matches[0].IDs[idstore.InternalID(1)])
}

func TestRemoveDocumentByWordPrunesEmptyTerminal(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))

	tr.RemoveDocumentByWord("search", idstore.InternalID(1))
	matches := tr.Find(FindParams{Term: "search", Exact: true})
	require.Empty(t, matches)
}

func TestRemoveDocumentByWordKeepsSiblingTerms(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("searching", idstore.InternalID(2))

	tr.RemoveDocumentByWord("search", idstore.InternalID(1))

	matches := tr.Find(FindParams{Term: "search", Exact: true})
	require.Empty(t, matches)

	matches = tr.Find(FindParams{Term: "searching", Exact: true})
	require.Len(t, matches, 1)
}

func TestRemoveOnlyOneOfMultipleDocuments(t *testing.T) {
	tr := New()
	tr.Insert("search", idstore.InternalID(1))
	tr.Insert("search", idstore.InternalID(2))

	tr.RemoveDocumentByWord("search", idstore.InternalID(1))

	matches := tr.Find(FindParams{Term: "search", Exact: true})
	require.Len(t, matches, 1)
	_, has1 := matches[0].IDs[idstore.InternalID(1)]
	require.False(t, has1)
	_, has2 := matches[0].IDs[idstore.InternalID(2)]
	require.True(t, has2)
}
