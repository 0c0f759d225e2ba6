// Package tokenizer turns raw field text into the normalized, optionally
// stemmed and deduplicated terms that feed the radix-tree string index and
// the BM25 statistics. It lower-cases, strips diacritics, splits on
// non-word boundaries, drops stop-words, and stems, per §4.1.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/lucid-search/lucid/pkg/errors"
)

// Token is a single normalized term plus its zero-based position within a
// single Tokenize call.
type Token struct {
	Term     string
	Position int
}

// Config configures one Tokenizer instance.
type Config struct {
	// Language is the default language used when a per-call override is
	// not given. Defaults to English.
	Language Language
	// StopWords, when non-nil, replaces the language default stop-word
	// set. An explicitly empty-but-non-nil set combined with Disabled
	// below controls whether filtering happens at all.
	StopWords map[string]struct{}
	// StopWordsDisabled turns off stop-word filtering entirely. A config
	// of `stopWords: false` is valid per §7.
	StopWordsDisabled bool
	// Stemming enables the per-language stemmer.
	Stemming bool
	// AllowDuplicates disables the default within-call deduplication.
	AllowDuplicates bool
}

// Tokenizer is a configured instance, safe for concurrent Tokenize calls
// (it holds no mutable state).
type Tokenizer struct {
	cfg Config
}

// New validates cfg.Language against the closed language set and returns
// a ready Tokenizer.
func New(cfg Config) (*Tokenizer, error) {
	if cfg.Language == "" {
		cfg.Language = English
	}
	if err := ValidateLanguage(cfg.Language); err != nil {
		return nil, err
	}
	return &Tokenizer{cfg: cfg}, nil
}

// Language returns the tokenizer's configured default language.
func (t *Tokenizer) Language() Language { return t.cfg.Language }

// Tokenize normalizes, splits, filters, and (optionally) stems text for
// the given property, using language as an optional per-call override of
// the tokenizer's default language. property is accepted for parity with
// the spec's signature (per-property tokenizer overrides are a Create-time
// components concern, not a per-call one here) and is currently unused by
// the default pipeline.
func (t *Tokenizer) Tokenize(text string, language Language, property string) ([]Token, error) {
	lang := language
	if lang == "" {
		lang = t.cfg.Language
	}
	if err := ValidateLanguage(lang); err != nil {
		return nil, err
	}

	normalized := stripDiacritics(strings.ToLower(text))
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	stopWords := t.stopWordsFor(lang)
	var stemmer Stemmer = identityStemmer{}
	if t.cfg.Stemming {
		stemmer = stemmerForInterface(lang)
	}

	seen := make(map[string]struct{}, len(words))
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, w := range words {
		if len(w) == 0 {
			continue
		}
		if !t.cfg.StopWordsDisabled {
			if _, stop := stopWords[w]; stop {
				continue
			}
		}
		term := w
		if t.cfg.Stemming {
			term = stemmer.Stem(term)
		}
		if term == "" {
			continue
		}
		if !t.cfg.AllowDuplicates {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	return tokens, nil
}

// Normalize applies the same lowercase/diacritic-strip/stem pipeline
// Tokenize uses to a single already-split word, without stop-word
// filtering or deduplication. Used by callers (e.g. the highlight
// collaborator) that need to match a raw word against a known term
// independent of position or stopword bookkeeping.
func Normalize(word string, language Language, stemming bool) string {
	w := stripDiacritics(strings.ToLower(word))
	if stemming {
		w = stemmerFor(language).Stem(w)
	}
	return w
}

func (t *Tokenizer) stopWordsFor(lang Language) map[string]struct{} {
	if t.cfg.StopWords != nil {
		return t.cfg.StopWords
	}
	return defaultStopWords[lang]
}

// stemmerForInterface exposes stemmerFor (package-private) under a name
// that reads well at the call site above.
func stemmerForInterface(lang Language) Stemmer {
	return stemmerFor(lang)
}

// stripDiacritics removes combining marks (accents, umlauts, etc.) after
// Unicode canonical decomposition, so "café" and "cafe" tokenize
// identically, matching §4.1 step 1.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ErrorIfUnsupported is a small helper for when only the language needs
// checking, without building a full Tokenizer.
func ErrorIfUnsupported(lang Language) error {
	if err := ValidateLanguage(lang); err != nil {
		return apperrors.Wrap(apperrors.CodeLanguageNotSupported, err, "validating tokenizer language")
	}
	return nil
}
