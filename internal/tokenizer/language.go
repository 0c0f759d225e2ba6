package tokenizer

import apperrors "github.com/lucid-search/lucid/pkg/errors"

// Language is one of the closed set of twelve languages the tokenizer
// understands stop-words and stemming rules for.
type Language string

const (
	English    Language = "english"
	French     Language = "french"
	Italian    Language = "italian"
	Spanish    Language = "spanish"
	German     Language = "german"
	Portuguese Language = "portuguese"
	Dutch      Language = "dutch"
	Swedish    Language = "swedish"
	Russian    Language = "russian"
	Norwegian  Language = "norwegian"
	Danish     Language = "danish"
	Finnish    Language = "finnish"
)

// supportedLanguages is the closed set from §4.1. Unknown languages fail
// create-time/tokenize-time with LANGUAGE_NOT_SUPPORTED.
var supportedLanguages = map[Language]struct{}{
	English: {}, French: {}, Italian: {}, Spanish: {}, German: {},
	Portuguese: {}, Dutch: {}, Swedish: {}, Russian: {}, Norwegian: {},
	Danish: {}, Finnish: {},
}

// ValidateLanguage returns a LANGUAGE_NOT_SUPPORTED error if lang is not
// in the closed set.
func ValidateLanguage(lang Language) error {
	if _, ok := supportedLanguages[lang]; !ok {
		return apperrors.Newf(apperrors.CodeLanguageNotSupported,
			"language %q is not supported", lang)
	}
	return nil
}
