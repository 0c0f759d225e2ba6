// Package bm25 maintains the per-property ranking statistics from §3
// ("BM25 statistics") and computes the BM25 (and BM25+) score for a single
// matched term/document/property triple, per §4.5. The incremental-mean
// bookkeeping mirrors the platform's ranker.RankParams/computeIDF/
// computeTFNorm, generalized from a flat corpus-wide average to one
// average per schema property.
package bm25

import (
	"math"

	"github.com/lucid-search/lucid/internal/idstore"
)

// Params are the caller-supplied relevance tuning knobs from §6's
// `relevance` search parameter.
type Params struct {
	K1 float64
	B  float64
	D  float64 // BM25+ lower-bound term; 0 disables the BM25+ addition.
}

// DefaultParams returns the spec's defaults: k1=1.2, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}

func (p Params) withDefaults() Params {
	if p.K1 == 0 {
		p.K1 = 1.2
	}
	if p.B == 0 {
		p.B = 0.75
	}
	return p
}

// Stats holds the per-property BM25 bookkeeping described in §3:
// avgFieldLength, fieldLengths, tokenOccurrences (document frequency), and
// frequencies (normalized per-document term frequency).
type Stats struct {
	docsCount        map[string]int
	avgFieldLength   map[string]float64
	fieldLengths     map[string]map[idstore.InternalID]int
	tokenOccurrences map[string]map[string]int
	frequencies      map[string]map[idstore.InternalID]map[string]float64
}

// New creates empty Stats.
func New() *Stats {
	return &Stats{
		docsCount:        make(map[string]int),
		avgFieldLength:   make(map[string]float64),
		fieldLengths:     make(map[string]map[idstore.InternalID]int),
		tokenOccurrences: make(map[string]map[string]int),
		frequencies:      make(map[string]map[idstore.InternalID]map[string]float64),
	}
}

// DocsCount returns the number of IndexDocument calls currently recorded
// for property p, less those reversed by RemoveDocument. Empty strings
// count too, and each element of a string[] field counts once.
func (s *Stats) DocsCount(p string) int { return s.docsCount[p] }

// AvgFieldLength returns avgFieldLength[p].
func (s *Stats) AvgFieldLength(p string) float64 { return s.avgFieldLength[p] }

// TokenOccurrences returns tokenOccurrences[p][t], the document frequency
// of term t on property p.
func (s *Stats) TokenOccurrences(p, term string) int {
	return s.tokenOccurrences[p][term]
}

// FieldLength returns fieldLengths[p][id].
func (s *Stats) FieldLength(p string, id idstore.InternalID) (int, bool) {
	m, ok := s.fieldLengths[p]
	if !ok {
		return 0, false
	}
	v, ok := m[id]
	return v, ok
}

// Frequency returns frequencies[p][id][term], the normalized term
// frequency.
func (s *Stats) Frequency(p string, id idstore.InternalID, term string) float64 {
	docMap, ok := s.frequencies[p]
	if !ok {
		return 0
	}
	termMap, ok := docMap[id]
	if !ok {
		return 0
	}
	return termMap[term]
}

// IndexDocument records a string field's tokenization into the stats for
// property p and document id, per §4.5's insert algorithm: updates the
// incremental avgFieldLength, fieldLengths, per-token document frequency,
// and normalized per-document term frequency.
func (s *Stats) IndexDocument(p string, id idstore.InternalID, tokenCounts map[string]int, totalTokens int) {
	s.docsCount[p]++
	n := s.docsCount[p]

	oldAvg := s.avgFieldLength[p]
	s.avgFieldLength[p] = (oldAvg*float64(n-1) + float64(totalTokens)) / float64(n)

	if s.fieldLengths[p] == nil {
		s.fieldLengths[p] = make(map[idstore.InternalID]int)
	}
	s.fieldLengths[p][id] = totalTokens

	if s.frequencies[p] == nil {
		s.frequencies[p] = make(map[idstore.InternalID]map[string]float64)
	}
	freqs := make(map[string]float64, len(tokenCounts))

	if s.tokenOccurrences[p] == nil {
		s.tokenOccurrences[p] = make(map[string]int)
	}
	for term, count := range tokenCounts {
		if totalTokens > 0 {
			freqs[term] = float64(count) / float64(totalTokens)
		}
		s.tokenOccurrences[p][term]++
	}
	s.frequencies[p][id] = freqs
}

// RemoveDocument reverses IndexDocument for property p and document id,
// per §4.5's remove algorithm. When docsCount is 1 before removal
// (i.e. this was the last document), avgFieldLength[p] resets to 0.
func (s *Stats) RemoveDocument(p string, id idstore.InternalID, tokens []string) {
	n := s.docsCount[p]
	if n == 0 {
		return
	}
	fieldLen := s.fieldLengths[p][id]
	if n == 1 {
		s.avgFieldLength[p] = 0
	} else {
		s.avgFieldLength[p] = (s.avgFieldLength[p]*float64(n) - float64(fieldLen)) / float64(n-1)
	}
	s.docsCount[p] = n - 1

	delete(s.fieldLengths[p], id)
	delete(s.frequencies[p], id)
	for _, term := range tokens {
		if s.tokenOccurrences[p][term] > 0 {
			s.tokenOccurrences[p][term]--
			if s.tokenOccurrences[p][term] == 0 {
				delete(s.tokenOccurrences[p], term)
			}
		}
	}
}

// Score computes the BM25 (optionally BM25+) score of term in document id
// on property p, per §4.5's formula:
//
//	score = idf * ((tf*(k1+1)) / (tf + k1*(1 - b + b*fieldLength/avgFieldLength)))
//	idf    = ln(1 + (docsCount - df + 0.5) / (df + 0.5))
func (s *Stats) Score(p, term string, id idstore.InternalID, params Params) float64 {
	params = params.withDefaults()
	df := s.TokenOccurrences(p, term)
	if df == 0 {
		return 0
	}
	n := s.DocsCount(p)
	tf := s.Frequency(p, id, term)
	fieldLen, _ := s.FieldLength(p, id)
	avgLen := s.AvgFieldLength(p)

	idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

	var lengthRatio float64
	if avgLen > 0 {
		lengthRatio = float64(fieldLen) / avgLen
	}
	denom := tf + params.K1*(1-params.B+params.B*lengthRatio)
	var tfComponent float64
	if denom != 0 {
		tfComponent = (tf * (params.K1 + 1)) / denom
	}
	score := idf * tfComponent
	if params.D > 0 {
		score += idf * params.D
	}
	return score
}
