package tokenizer

// defaultStopWords holds each supported language's default stop-word set.
// English carries the teacher's full curated list; the other eleven
// languages carry a compact set of their most common function words,
// which is enough to exercise stop-word filtering end to end without
// claiming linguistic completeness — see DESIGN.md for the scope call.
var defaultStopWords = map[Language]map[string]struct{}{
	English: setOf(
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
		"the", "to", "was", "were", "will", "with", "this", "but", "they",
		"have", "had", "what", "when", "where", "who", "which", "their",
		"if", "each", "do", "not", "no", "so", "can",
	),
	French: setOf(
		"le", "la", "les", "un", "une", "des", "et", "est", "de", "du",
		"en", "que", "qui", "pour", "dans", "ce", "se", "pas",
	),
	Italian: setOf(
		"il", "lo", "la", "gli", "le", "un", "una", "di", "che", "è",
		"e", "per", "in", "con", "non", "si",
	),
	Spanish: setOf(
		"el", "la", "los", "las", "un", "una", "de", "que", "es", "en",
		"y", "por", "con", "no", "se", "para",
	),
	German: setOf(
		"der", "die", "das", "ein", "eine", "und", "ist", "in", "von",
		"zu", "den", "mit", "nicht", "auf", "für",
	),
	Portuguese: setOf(
		"o", "a", "os", "as", "um", "uma", "de", "que", "é", "em", "e",
		"por", "com", "não", "se", "para",
	),
	Dutch: setOf(
		"de", "het", "een", "en", "is", "van", "in", "dat", "niet",
		"op", "met", "voor",
	),
	Swedish: setOf(
		"en", "ett", "och", "är", "av", "i", "att", "inte", "på", "med",
		"för", "det",
	),
	Russian: setOf(
		"и", "в", "не", "на", "я", "что", "он", "с", "а", "это", "по",
		"к",
	),
	Norwegian: setOf(
		"en", "ei", "et", "og", "er", "av", "i", "at", "ikke", "på",
		"med", "for",
	),
	Danish: setOf(
		"en", "et", "og", "er", "af", "i", "at", "ikke", "på", "med",
		"for", "det",
	),
	Finnish: setOf(
		"ja", "on", "ei", "se", "että", "tai", "ovat", "oli", "kun",
		"niin",
	),
}

func setOf(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
