// Package highlight implements the plugin-match-highlight collaborator
// from §1: given a set of matched terms, it locates the byte ranges in
// the original field text that normalize to one of those terms, so a
// caller can wrap them for display.
package highlight

import (
	"unicode"

	"github.com/lucid-search/lucid/internal/tokenizer"
)

// Span is one matched region of the original text.
type Span struct {
	Start int
	End   int // exclusive
}

// HighlightTerms re-splits text on the same non-word boundaries the
// tokenizer uses and returns the byte span of every raw word that
// normalizes (lowercase, diacritic-stripped, optionally stemmed) to one
// of terms. terms are expected already normalized, matching what the
// radix tree stored them as.
func HighlightTerms(text string, language tokenizer.Language, stemming bool, terms []string) []Span {
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}

	var spans []Span
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := text[start:end]
		if _, ok := want[tokenizer.Normalize(word, language, stemming)]; ok {
			spans = append(spans, Span{Start: start, End: end})
		}
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return spans
}
