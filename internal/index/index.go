// Package index implements the aggregate from §4.5: one underlying
// structure per searchable schema path (radix tree for strings, AVL tree
// for numbers, boolean buckets for booleans), plus the BM25 statistics
// that ride alongside the string structures. It owns insert/remove
// dispatch by schema type and the two read paths the orchestrator needs:
// per-term scored search and where-clause candidate filtering.
package index

import (
	"sort"

	apperrors "github.com/lucid-search/lucid/pkg/errors"

	"github.com/lucid-search/lucid/internal/avltree"
	"github.com/lucid-search/lucid/internal/bm25"
	"github.com/lucid-search/lucid/internal/boolindex"
	"github.com/lucid-search/lucid/internal/idstore"
	"github.com/lucid-search/lucid/internal/radix"
	"github.com/lucid-search/lucid/internal/schema"
	"github.com/lucid-search/lucid/internal/tokenizer"
)

// Index is the per-database structure aggregate.
type Index struct {
	flat    schema.Flattened
	radices map[string]*radix.Tree
	avls    map[string]*avltree.Tree
	bools   map[string]*boolindex.Index
	stats   *bm25.Stats
}

// New builds an Index from a flattened schema, creating one structure per
// path keyed by its scalar element type. Flatten already rejects
// unsupported leaf declarations, so the only failure here is an
// unrecognized Type value slipping through, which is a bug-class error.
func New(flat schema.Flattened) (*Index, error) {
	ix := &Index{
		flat:    flat,
		radices: make(map[string]*radix.Tree),
		avls:    make(map[string]*avltree.Tree),
		bools:   make(map[string]*boolindex.Index),
		stats:   bm25.New(),
	}
	for p, t := range flat {
		switch t.Scalar() {
		case schema.TypeString:
			ix.radices[p] = radix.New()
		case schema.TypeNumber:
			ix.avls[p] = avltree.New()
		case schema.TypeBoolean:
			ix.bools[p] = boolindex.New()
		default:
			return nil, apperrors.Newf(apperrors.CodeInvalidSchemaType,
				"property %q has unrecognized type %q", p, t)
		}
	}
	return ix, nil
}

// Stats exposes the BM25 bookkeeping for serialization and inspection.
func (ix *Index) Stats() *bm25.Stats { return ix.stats }

// StringPaths returns every string/string[] path, for the orchestrator's
// "search all string properties" default.
func (ix *Index) StringPaths() []string { return ix.flat.StringPaths() }

// Insert dispatches value for property prop to its owning structure(s),
// per §4.5. Array types iterate elements, each dispatched to the scalar
// path. tok/language are only consulted for string (or string[]) paths.
func (ix *Index) Insert(prop string, id idstore.InternalID, value any, tok *tokenizer.Tokenizer, language tokenizer.Language) error {
	t, ok := ix.flat[prop]
	if !ok {
		return nil
	}
	if t.IsArray() {
		for _, v := range toSlice(value) {
			if err := ix.insertScalar(prop, t.Scalar(), id, v, tok, language); err != nil {
				return err
			}
		}
		return nil
	}
	return ix.insertScalar(prop, t, id, value, tok, language)
}

func (ix *Index) insertScalar(prop string, scalar schema.Type, id idstore.InternalID, value any, tok *tokenizer.Tokenizer, language tokenizer.Language) error {
	switch scalar {
	case schema.TypeBoolean:
		b, _ := value.(bool)
		ix.bools[prop].Insert(b, id)
	case schema.TypeNumber:
		f, ok := toFloat64(value)
		if !ok {
			return nil
		}
		ix.avls[prop].Insert(f, id)
	case schema.TypeString:
		s, _ := value.(string)
		tokens, err := tok.Tokenize(s, language, prop)
		if err != nil {
			return err
		}
		counts := make(map[string]int, len(tokens))
		for _, tk := range tokens {
			counts[tk.Term]++
		}
		ix.stats.IndexDocument(prop, id, counts, len(tokens))
		tree := ix.radices[prop]
		for _, tk := range tokens {
			tree.Insert(tk.Term, id)
		}
	}
	return nil
}

// Remove reverses Insert for property prop and document id, per §4.5's
// removal algorithm. Unknown properties are a silent no-op, matching the
// engine-level "removing an unknown document is idempotent" rule (§7).
func (ix *Index) Remove(prop string, id idstore.InternalID, value any, tok *tokenizer.Tokenizer, language tokenizer.Language) error {
	t, ok := ix.flat[prop]
	if !ok {
		return nil
	}
	if t.IsArray() {
		for _, v := range toSlice(value) {
			if err := ix.removeScalar(prop, t.Scalar(), id, v, tok, language); err != nil {
				return err
			}
		}
		return nil
	}
	return ix.removeScalar(prop, t, id, value, tok, language)
}

func (ix *Index) removeScalar(prop string, scalar schema.Type, id idstore.InternalID, value any, tok *tokenizer.Tokenizer, language tokenizer.Language) error {
	switch scalar {
	case schema.TypeBoolean:
		b, _ := value.(bool)
		ix.bools[prop].Remove(b, id)
	case schema.TypeNumber:
		f, ok := toFloat64(value)
		if !ok {
			return nil
		}
		ix.avls[prop].RemoveDocument(id, f)
	case schema.TypeString:
		s, _ := value.(string)
		tokens, err := tok.Tokenize(s, language, prop)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(tokens))
		terms := make([]string, 0, len(tokens))
		for _, tk := range tokens {
			if _, dup := seen[tk.Term]; dup {
				continue
			}
			seen[tk.Term] = struct{}{}
			terms = append(terms, tk.Term)
		}
		ix.stats.RemoveDocument(prop, id, terms)
		tree := ix.radices[prop]
		for _, term := range terms {
			tree.RemoveDocumentByWord(term, id)
		}
	}
	return nil
}

// SearchTerm resolves term against property prop's radix tree under the
// given exact/tolerance settings and returns the summed BM25 score per
// matched internal id, per §4.5's search algorithm.
func (ix *Index) SearchTerm(prop, term string, exact bool, tolerance int, params bm25.Params) (map[idstore.InternalID]float64, error) {
	tree, ok := ix.radices[prop]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnknownFilterProperty, "property %q is not a searchable string property", prop)
	}
	matches := tree.Find(radix.FindParams{Term: term, Exact: exact, Tolerance: tolerance})
	scores := make(map[idstore.InternalID]float64)
	for _, m := range matches {
		for id := range m.IDs {
			scores[id] += ix.stats.Score(prop, m.Term, id, params)
		}
	}
	return scores, nil
}

// FilterOp is a single-key comparison object from a where-clause, per §6's
// `{gt, gte, lt, lte, eq, between}`.
type FilterOp struct {
	GT      *float64
	GTE     *float64
	LT      *float64
	LTE     *float64
	EQ      *float64
	Between *[2]float64
}

// SearchByWhereClause resolves a where-clause to the AND-intersected set
// of candidate internal ids, per §4.5. The second return is false when
// the where-clause is empty ("no restriction"), in which case the result
// set is always nil and must be ignored by the caller.
func (ix *Index) SearchByWhereClause(where map[string]any, tok *tokenizer.Tokenizer, language tokenizer.Language) (map[idstore.InternalID]struct{}, bool, error) {
	if len(where) == 0 {
		return nil, false, nil
	}

	props := make([]string, 0, len(where))
	for p := range where {
		props = append(props, p)
	}
	sort.Strings(props)

	var result map[idstore.InternalID]struct{}
	for _, p := range props {
		t, ok := ix.flat[p]
		if !ok {
			return nil, false, apperrors.Newf(apperrors.CodeUnknownFilterProperty, "unknown filter property %q", p)
		}
		candidates, err := ix.resolveFilter(p, t, where[p], tok, language)
		if err != nil {
			return nil, false, err
		}
		if result == nil {
			result = candidates
		} else {
			result = intersect(result, candidates)
		}
	}
	return result, true, nil
}

func (ix *Index) resolveFilter(prop string, t schema.Type, value any, tok *tokenizer.Tokenizer, language tokenizer.Language) (map[idstore.InternalID]struct{}, error) {
	switch v := value.(type) {
	case bool:
		out := make(map[idstore.InternalID]struct{})
		for _, id := range ix.bools[prop].Bucket(v) {
			out[id] = struct{}{}
		}
		return out, nil
	case string:
		return ix.exactStringCandidates(prop, []string{v}, tok, language)
	case []string:
		return ix.exactStringCandidates(prop, v, tok, language)
	case []any:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, apperrors.Newf(apperrors.CodeInvalidFilterOperation,
					"filter on %q must be boolean, string, []string, or a comparison object", prop)
			}
			strs = append(strs, s)
		}
		return ix.exactStringCandidates(prop, strs, tok, language)
	case map[string]any:
		return ix.numericOperatorCandidates(prop, v)
	case FilterOp:
		return ix.numericOperatorFromStruct(prop, v)
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidFilterOperation,
			"filter on %q must be boolean, string, []string, or a comparison object", prop)
	}
}

func (ix *Index) exactStringCandidates(prop string, values []string, tok *tokenizer.Tokenizer, language tokenizer.Language) (map[idstore.InternalID]struct{}, error) {
	out := make(map[idstore.InternalID]struct{})
	tree, ok := ix.radices[prop]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnknownFilterProperty, "property %q is not a string property", prop)
	}
	for _, value := range values {
		tokens, err := tok.Tokenize(value, language, prop)
		if err != nil {
			return nil, err
		}
		for _, tk := range tokens {
			matches := tree.Find(radix.FindParams{Term: tk.Term, Exact: true})
			for _, m := range matches {
				for id := range m.IDs {
					out[id] = struct{}{}
				}
			}
		}
	}
	return out, nil
}

func (ix *Index) numericOperatorCandidates(prop string, ops map[string]any) (map[idstore.InternalID]struct{}, error) {
	if len(ops) != 1 {
		return nil, apperrors.Newf(apperrors.CodeInvalidFilterOperation,
			"filter on %q must specify exactly one of gt, gte, lt, lte, eq, between", prop)
	}
	tree, ok := ix.avls[prop]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnknownFilterProperty, "property %q is not a numeric property", prop)
	}
	for key, raw := range ops {
		switch key {
		case "eq":
			f, _ := toFloat64(raw)
			return toSet(tree.Find(f)), nil
		case "gt":
			f, _ := toFloat64(raw)
			return toSet(tree.GreaterThan(f, false)), nil
		case "gte":
			f, _ := toFloat64(raw)
			return toSet(tree.GreaterThan(f, true)), nil
		case "lt":
			f, _ := toFloat64(raw)
			return toSet(tree.LessThan(f, false)), nil
		case "lte":
			f, _ := toFloat64(raw)
			return toSet(tree.LessThan(f, true)), nil
		case "between":
			bounds, ok := toFloat64Pair(raw)
			if !ok {
				return nil, apperrors.Newf(apperrors.CodeInvalidFilterOperation,
					"filter %q.between must be a two-element numeric range", prop)
			}
			return toSet(tree.RangeSearch(bounds[0], bounds[1])), nil
		default:
			return nil, apperrors.Newf(apperrors.CodeInvalidFilterOperation,
				"filter on %q has unknown operator %q", prop, key)
		}
	}
	return nil, nil
}

func (ix *Index) numericOperatorFromStruct(prop string, op FilterOp) (map[idstore.InternalID]struct{}, error) {
	set := map[string]any{}
	switch {
	case op.EQ != nil:
		set["eq"] = *op.EQ
	case op.GT != nil:
		set["gt"] = *op.GT
	case op.GTE != nil:
		set["gte"] = *op.GTE
	case op.LT != nil:
		set["lt"] = *op.LT
	case op.LTE != nil:
		set["lte"] = *op.LTE
	case op.Between != nil:
		set["between"] = []any{op.Between[0], op.Between[1]}
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidFilterOperation, "empty comparison object on %q", prop)
	}
	return ix.numericOperatorCandidates(prop, set)
}

func intersect(a, b map[idstore.InternalID]struct{}) map[idstore.InternalID]struct{} {
	out := make(map[idstore.InternalID]struct{})
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func toSet(ids []idstore.InternalID) map[idstore.InternalID]struct{} {
	out := make(map[idstore.InternalID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func toSlice(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out
	case []bool:
		out := make([]any, len(v))
		for i, b := range v {
			out[i] = b
		}
		return out
	default:
		return nil
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func toFloat64Pair(value any) ([2]float64, bool) {
	switch v := value.(type) {
	case []any:
		if len(v) != 2 {
			return [2]float64{}, false
		}
		lo, ok1 := toFloat64(v[0])
		hi, ok2 := toFloat64(v[1])
		return [2]float64{lo, hi}, ok1 && ok2
	case [2]float64:
		return v, true
	case []float64:
		if len(v) != 2 {
			return [2]float64{}, false
		}
		return [2]float64{v[0], v[1]}, true
	default:
		return [2]float64{}, false
	}
}
