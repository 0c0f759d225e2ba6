package tokenizer

import "strings"

// Stemmer reduces a normalized token to its stem.
type Stemmer interface {
	Stem(word string) string
}

// stemmers maps each supported language to its Stemmer. Only English has a
// real suffix-stripping ruleset in this engine, ported from the indexer's
// original stemmer; the rest use identityStemmer. See DESIGN.md.
var stemmers = map[Language]Stemmer{
	English: englishStemmer{},
}

func stemmerFor(lang Language) Stemmer {
	if s, ok := stemmers[lang]; ok {
		return s
	}
	return identityStemmer{}
}

type identityStemmer struct{}

func (identityStemmer) Stem(word string) string { return word }

// englishStemmer applies a Porter-style suffix-stripping ruleset, the same
// table the platform's original tokenizer used for its single supported
// language, generalized here to sit behind the Stemmer interface.
type englishStemmer struct{}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

var englishSuffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"s", "", 3},
}

func (englishStemmer) Stem(word string) string {
	for _, rule := range englishSuffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			candidate := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(candidate) >= rule.minLen {
				return candidate
			}
		}
	}
	return word
}
