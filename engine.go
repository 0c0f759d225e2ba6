// Package lucid is an embeddable, in-memory full-text search engine over
// schema-typed documents. A Database is created with a schema describing
// scalar and array fields; documents are inserted, removed, and queried
// by free-text search, filter expressions, and sort on scalar fields,
// with BM25 ranking over tokenized string fields.
package lucid

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucid-search/lucid/internal/bm25"
	"github.com/lucid-search/lucid/internal/docstore"
	"github.com/lucid-search/lucid/internal/idstore"
	"github.com/lucid-search/lucid/internal/index"
	"github.com/lucid-search/lucid/internal/schema"
	"github.com/lucid-search/lucid/internal/sorter"
	"github.com/lucid-search/lucid/internal/tokenizer"
	apperrors "github.com/lucid-search/lucid/pkg/errors"
	"github.com/lucid-search/lucid/pkg/tracing"
)

// Hooks are caller-supplied callbacks invoked around mutation, per §6's
// `components` override surface. Every hook is optional; a nil hook is
// skipped. Single-document hooks run for Insert/Remove; the Multiple
// forms additionally run once per InsertMultiple/RemoveMultiple batch.
type Hooks struct {
	BeforeInsert         func(doc map[string]any) error
	AfterInsert          func(id string, doc map[string]any)
	BeforeRemove         func(id string) error
	AfterRemove          func(id string)
	BeforeUpdate         func(id string, doc map[string]any) error
	AfterUpdate          func(id string, doc map[string]any)
	BeforeMultipleInsert func(docs []map[string]any) error
	AfterMultipleInsert  func(docs []map[string]any)
	BeforeMultipleRemove func(ids []string) error
	AfterMultipleRemove  func(ids []string)
}

// SortConfig is the `sort` creation argument from §6.
type SortConfig struct {
	Enabled              bool
	UnsortableProperties []string
}

// Components lets a caller override the engine's collaborators, per §6
// and §9's "opaque component interfaces" design note. A nil Store
// defaults to an in-process docstore.Memory; a nil/zero TokenizerConfig
// uses English with default stop-words, no stemming.
type Components struct {
	Store            docstore.Store
	TokenizerConfig  tokenizer.Config
	GetDocumentIndexID func(doc map[string]any) (string, bool)
}

// CreateParams are the `{ schema, language?, sort?, components?, id? }`
// creation arguments from §6.
type CreateParams struct {
	ID         string
	Schema     schema.Literal
	Language   tokenizer.Language
	Sort       SortConfig
	Components Components
}

// Database is the engine root: the public façade over the index
// aggregate, document store, sorter, and id store. It is single-writer,
// multi-reader per §5 — callers must not call Insert/Remove concurrently
// with each other, though concurrent Search calls against a stable index
// are safe.
type Database struct {
	mu sync.RWMutex

	id            string
	schemaLiteral schema.Literal
	sortConfig    SortConfig
	flat          schema.Flattened
	lang          tokenizer.Language
	tok           *tokenizer.Tokenizer
	ix            *index.Index
	sort          *sorter.Sorter
	docs          docstore.Store
	ids           *idstore.Store
	hooks         Hooks
	getID         func(doc map[string]any) (string, bool)
	logger        *slog.Logger
}

// Create builds a new Database from schema and options, per §6. Schema
// validation errors (INVALID_SCHEMA_TYPE, INVALID_SORT_SCHEMA_TYPE) and
// language validation (LANGUAGE_NOT_SUPPORTED) fail here, never later.
func Create(params CreateParams) (*Database, error) {
	flat, err := schema.Flatten(params.Schema)
	if err != nil {
		return nil, err
	}
	if err := flat.Validate(params.Sort.UnsortableProperties); err != nil {
		return nil, err
	}

	language := params.Language
	if language == "" {
		language = tokenizer.English
	}
	tokCfg := params.Components.TokenizerConfig
	if tokCfg.Language == "" {
		tokCfg.Language = language
	}
	tok, err := tokenizer.New(tokCfg)
	if err != nil {
		return nil, err
	}

	ix, err := index.New(flat)
	if err != nil {
		return nil, err
	}

	store := params.Components.Store
	if store == nil {
		store = docstore.NewMemory()
	}

	srt := sorter.New(flat, sorter.Config{
		Enabled:              params.Sort.Enabled,
		UnsortableProperties: params.Sort.UnsortableProperties,
	})

	getID := params.Components.GetDocumentIndexID
	if getID == nil {
		getID = defaultGetDocumentIndexID
	}

	return &Database{
		id:            params.ID,
		schemaLiteral: params.Schema,
		sortConfig:    params.Sort,
		flat:          flat,
		lang:          language,
		tok:           tok,
		ix:            ix,
		sort:          srt,
		docs:          store,
		ids:           idstore.New(),
		getID:         getID,
		logger:        slog.Default().With("component", "lucid", "database", params.ID),
	}, nil
}

// Snapshot is the persisted-state layout written by Save and read back by
// Load, per §6's "Save/Load persisted state" surface. Only document
// bodies and the id mapping are durable; Load regenerates every derived
// structure (index, sorter, BM25 stats) by replaying documents through
// the same insert path Create/Insert uses, matching §9's "opaque
// component interfaces" note that the core owns no external state.
type Snapshot struct {
	ID            string                        `json:"id"`
	Schema        schema.Literal                `json:"schema"`
	Language      tokenizer.Language            `json:"language"`
	Sort          SortConfig                    `json:"sort"`
	IDs           map[string]idstore.InternalID `json:"ids"`
	HighWaterMark idstore.InternalID            `json:"highWaterMark"`
	Documents     map[string]map[string]any     `json:"documents"`
}

// Save captures the database's schema, id mapping, and document bodies
// into a Snapshot. The caller is responsible for encoding it (e.g.
// json.Marshal) to whatever durable medium it chooses — the core itself
// owns no file handles, per §5.
func (db *Database) Save() Snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()

	docs := make(map[string]map[string]any, db.docs.Len())
	for id, doc := range db.docs.Snapshot() {
		ext, ok := db.ids.External(id)
		if !ok {
			continue
		}
		docs[ext] = doc
	}

	return Snapshot{
		ID:            db.id,
		Schema:        db.schemaLiteral,
		Language:      db.lang,
		Sort:          db.sortConfig,
		IDs:           db.ids.Snapshot(),
		HighWaterMark: db.ids.HighWaterMark(),
		Documents:     docs,
	}
}

// Load rebuilds a Database from a Snapshot previously produced by Save.
// components lets the caller reattach a backing Store or tokenizer
// override, since Go function values and interfaces are never part of
// the serialized Snapshot. The id mapping is restored before documents
// are replayed so every derived structure lands on the same internal ids
// the original Database used, keeping ids stable across a save/load
// round-trip as §3 requires.
func Load(snap Snapshot, components Components) (*Database, error) {
	db, err := Create(CreateParams{
		ID:         snap.ID,
		Schema:     snap.Schema,
		Language:   snap.Language,
		Sort:       snap.Sort,
		Components: components,
	})
	if err != nil {
		return nil, err
	}

	db.ids = idstore.Restore(snap.IDs, snap.HighWaterMark)
	for ext, doc := range snap.Documents {
		if err := db.insertLocked(ext, doc); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// SetHooks installs the lifecycle hooks used by Insert/Remove, per §6.
func (db *Database) SetHooks(h Hooks) { db.hooks = h }

// Len returns the number of documents currently held in the document store.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.docs.Len()
}

func defaultGetDocumentIndexID(doc map[string]any) (string, bool) {
	raw, ok := doc["id"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// Insert adds a single document, running beforeInsert/afterInsert hooks
// around it. externalID identifies the document across Insert/Remove
// calls and serialization.
func (db *Database) Insert(externalID string, doc map[string]any) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertLocked(externalID, doc)
}

// InsertDocument derives the external id from doc itself via the
// Components.GetDocumentIndexID override (or the "id" field by default)
// instead of requiring the caller to name it separately.
func (db *Database) InsertDocument(doc map[string]any) error {
	externalID, ok := db.getID(doc)
	if !ok {
		return apperrors.New(apperrors.CodeInvalidSchemaType, "document has no resolvable id; set an \"id\" field or a GetDocumentIndexID component")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertLocked(externalID, doc)
}

func (db *Database) insertLocked(externalID string, doc map[string]any) error {
	if db.hooks.BeforeInsert != nil {
		if err := db.hooks.BeforeInsert(doc); err != nil {
			return err
		}
	}

	id := db.ids.Intern(externalID)

	for prop := range db.flat {
		value, ok := lookupPath(doc, prop)
		if !ok {
			continue
		}
		if err := db.ix.Insert(prop, id, value, db.tok, db.lang); err != nil {
			return err
		}
		if db.sort.IsSortable(prop) {
			db.sort.Insert(prop, id, value, string(db.lang))
		}
	}
	db.docs.Put(id, doc)

	if db.hooks.AfterInsert != nil {
		db.hooks.AfterInsert(externalID, doc)
	}
	return nil
}

// InsertMultiple inserts every document in docs, running the batch hooks
// once around the whole call and the per-document hooks for each item.
func (db *Database) InsertMultiple(items map[string]map[string]any) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	docs := make([]map[string]any, 0, len(items))
	for _, d := range items {
		docs = append(docs, d)
	}
	if db.hooks.BeforeMultipleInsert != nil {
		if err := db.hooks.BeforeMultipleInsert(docs); err != nil {
			return err
		}
	}
	for externalID, d := range items {
		if err := db.insertLocked(externalID, d); err != nil {
			return err
		}
	}
	if db.hooks.AfterMultipleInsert != nil {
		db.hooks.AfterMultipleInsert(docs)
	}
	return nil
}

// Remove deletes a document by external id. Removing an unknown id is a
// silent no-op, per §7.
func (db *Database) Remove(externalID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.removeLocked(externalID)
}

func (db *Database) removeLocked(externalID string) error {
	if db.hooks.BeforeRemove != nil {
		if err := db.hooks.BeforeRemove(externalID); err != nil {
			return err
		}
	}

	id, ok := db.ids.Lookup(externalID)
	if !ok {
		return nil
	}
	doc, ok := db.docs.Get(id)
	if !ok {
		return nil
	}

	for prop := range db.flat {
		value, ok := lookupPath(doc, prop)
		if !ok {
			continue
		}
		if err := db.ix.Remove(prop, id, value, db.tok, db.lang); err != nil {
			return err
		}
		if db.sort.IsSortable(prop) {
			db.sort.Remove(prop, id)
		}
	}
	db.docs.Delete(id)
	db.ids.Forget(externalID)

	if db.hooks.AfterRemove != nil {
		db.hooks.AfterRemove(externalID)
	}
	return nil
}

// RemoveMultiple removes every id in ids, running the batch hooks once
// around the whole call.
func (db *Database) RemoveMultiple(ids []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.hooks.BeforeMultipleRemove != nil {
		if err := db.hooks.BeforeMultipleRemove(ids); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if err := db.removeLocked(id); err != nil {
			return err
		}
	}
	if db.hooks.AfterMultipleRemove != nil {
		db.hooks.AfterMultipleRemove(ids)
	}
	return nil
}

// Mode picks union or intersection of per-term id sets for a multi-term
// query, per §4.7 and the Open Question in §9 (union is the default).
type Mode string

const (
	ModeOR  Mode = "or"
	ModeAND Mode = "and"
)

// SortBy requests sorter-backed ordering instead of score-descending.
type SortBy struct {
	Property string
	Order    sorter.Order
}

// SearchParams is the `{ term, properties?, tolerance?, exact?, boost?,
// relevance?, limit?, offset?, where?, sortBy? }` search parameters from
// §6.
type SearchParams struct {
	Term       string
	Properties []string
	Tolerance  int
	Exact      bool
	Mode       Mode
	Boost      map[string]float64
	Relevance  bm25.Params
	Limit      int
	Offset     int
	Where      map[string]any
	SortBy     *SortBy
	// Facets requests, per named property, a count of matching hits per
	// distinct value, computed over the post-filter, pre-pagination
	// candidate set.
	Facets []string
	// GroupBy buckets hits by a property's value, capping the hits
	// returned per bucket. When set, the normal flat Limit/Offset
	// pagination is bypassed in favor of per-group capping; Hits is left
	// empty and Groups holds the result.
	GroupBy *GroupByParams
}

// GroupByParams requests bucketing hits by a property's value, per §6's
// `groupBy` search parameter.
type GroupByParams struct {
	Property  string
	MaxResult int
}

// Hit is one scored, materialized search result.
type Hit struct {
	ID       string
	Score    float64
	Document map[string]any
}

// FacetCount is one distinct value of a faceted property and how many
// matching hits carry it, per §6's `facets` search parameter.
type FacetCount struct {
	Value any
	Count int
}

// Group is one groupBy bucket: a distinct property value and the hits
// that share it, capped at GroupByParams.MaxResult.
type Group struct {
	Value any
	Hits  []Hit
}

// SearchResult is the `{ elapsed, count, hits }` search result from §6,
// extended with the optional facets/groupBy outputs.
type SearchResult struct {
	Elapsed     time.Duration
	Count       int
	Hits        []Hit
	FacetCounts map[string][]FacetCount
	Groups      []Group
}

// Search runs the full orchestration pipeline from §4.7: tokenize,
// per-term/per-property lookup, union or intersect by Mode, sum BM25
// across terms/properties with boost, filter by where-clause, sort,
// paginate, and materialize.
var traceSeq atomic.Int64

func (db *Database) Search(ctx context.Context, params SearchParams) (SearchResult, error) {
	start := monotonicNow()
	ctx, span := tracing.StartSpan(ctx, "Database.Search", fmt.Sprintf("search-%d", traceSeq.Add(1)))
	span.SetAttr("term", params.Term)
	defer func() {
		span.End()
		db.logger.Debug("search traced", "trace_id", span.TraceID, "duration_ms", span.Duration.Milliseconds())
	}()

	db.mu.RLock()
	defer db.mu.RUnlock()

	properties := params.Properties
	if len(properties) == 0 {
		properties = db.ix.StringPaths()
	}

	relevance := params.Relevance
	if relevance.K1 == 0 && relevance.B == 0 {
		relevance = bm25.DefaultParams()
		relevance.D = params.Relevance.D
	}

	scores := make(map[idstore.InternalID]float64)
	var scoresMu sync.Mutex
	var termSets []map[idstore.InternalID]struct{}
	var setsMu sync.Mutex

	if params.Term != "" {
		fanoutCtx, fanoutSpan := tracing.StartChildSpan(ctx, "tokenize+fanout")
		tokens, err := db.tok.Tokenize(params.Term, db.lang, "")
		if err != nil {
			fanoutSpan.End()
			return SearchResult{}, err
		}
		fanoutSpan.SetAttr("token_count", len(tokens))
		fanoutSpan.SetAttr("property_count", len(properties))

		g, gctx := errgroup.WithContext(fanoutCtx)
		for _, tk := range tokens {
			for _, prop := range properties {
				term := tk.Term
				prop := prop
				boost := 1.0
				if params.Boost != nil {
					if b, ok := params.Boost[prop]; ok {
						boost = b
					}
				}
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					hits, err := db.ix.SearchTerm(prop, term, params.Exact, params.Tolerance, relevance)
					if err != nil {
						return err
					}
					set := make(map[idstore.InternalID]struct{}, len(hits))
					scoresMu.Lock()
					for id, s := range hits {
						scores[id] += s * boost
						set[id] = struct{}{}
					}
					scoresMu.Unlock()
					setsMu.Lock()
					termSets = append(termSets, set)
					setsMu.Unlock()
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			fanoutSpan.End()
			return SearchResult{}, err
		}
		fanoutSpan.End()
	}

	var matched map[idstore.InternalID]struct{}
	if params.Term == "" {
		matched = nil // empty query restricts to nothing unless a where-clause supplies ids
	} else if params.Mode == ModeAND {
		matched = intersectAll(termSets)
	} else {
		matched = unionAll(termSets)
	}

	whereIDs, restricted, err := db.ix.SearchByWhereClause(params.Where, db.tok, db.lang)
	if err != nil {
		return SearchResult{}, err
	}

	var candidates []idstore.InternalID
	switch {
	case params.Term == "" && !restricted:
		return SearchResult{Elapsed: time.Since(start), Count: 0, Hits: nil}, nil
	case params.Term == "" && restricted:
		candidates = setToSlice(whereIDs)
	case restricted:
		for id := range matched {
			if _, ok := whereIDs[id]; ok {
				candidates = append(candidates, id)
			}
		}
	default:
		candidates = setToSlice(matched)
	}

	if params.SortBy != nil {
		candidates, err = db.sort.SortBy(candidates, sorter.SortParams{Property: params.SortBy.Property, Order: params.SortBy.Order})
		if err != nil {
			return SearchResult{}, err
		}
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			si, sj := scores[candidates[i]], scores[candidates[j]]
			if si != sj {
				return si > sj
			}
			return candidates[i] < candidates[j]
		})
	}

	count := len(candidates)

	var hits []Hit
	var groups []Group
	if params.GroupBy != nil {
		all := db.materializeHits(candidates, scores)
		groups = groupHits(all, params.GroupBy.Property, params.GroupBy.MaxResult)
	} else {
		page := paginate(candidates, params.Offset, params.Limit)
		hits = db.materializeHits(page, scores)
	}

	var facetCounts map[string][]FacetCount
	if len(params.Facets) > 0 {
		facetCounts = db.computeFacets(candidates, params.Facets)
	}

	return SearchResult{
		Elapsed:     time.Since(start),
		Count:       count,
		Hits:        hits,
		FacetCounts: facetCounts,
		Groups:      groups,
	}, nil
}

func (db *Database) materializeHits(ids []idstore.InternalID, scores map[idstore.InternalID]float64) []Hit {
	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		doc, ok := db.docs.Get(id)
		if !ok {
			continue
		}
		ext, _ := db.ids.External(id)
		hits = append(hits, Hit{ID: ext, Score: scores[id], Document: doc})
	}
	return hits
}

// computeFacets counts, for each requested property, how many candidates
// carry each distinct value. Array-valued properties contribute one count
// per element. Results are ordered by the value's fmt "%v" string form
// for deterministic output.
func (db *Database) computeFacets(candidates []idstore.InternalID, props []string) map[string][]FacetCount {
	out := make(map[string][]FacetCount, len(props))
	for _, prop := range props {
		counts := make(map[string]FacetCount)
		var order []string
		for _, id := range candidates {
			doc, ok := db.docs.Get(id)
			if !ok {
				continue
			}
			value, ok := lookupPath(doc, prop)
			if !ok {
				continue
			}
			for _, v := range facetValues(value) {
				key := fmt.Sprintf("%v", v)
				fc, seen := counts[key]
				if !seen {
					fc = FacetCount{Value: v}
					order = append(order, key)
				}
				fc.Count++
				counts[key] = fc
			}
		}
		sort.Strings(order)
		result := make([]FacetCount, len(order))
		for i, key := range order {
			result[i] = counts[key]
		}
		out[prop] = result
	}
	return out
}

func facetValues(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{value}
	}
}

// groupHits buckets hits by property's value in first-seen order, capping
// each bucket at maxResult (0 or negative means unlimited).
func groupHits(hits []Hit, property string, maxResult int) []Group {
	var order []string
	buckets := make(map[string]*Group)
	for _, h := range hits {
		value, ok := lookupPath(h.Document, property)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", value)
		g, seen := buckets[key]
		if !seen {
			g = &Group{Value: value}
			buckets[key] = g
			order = append(order, key)
		}
		if maxResult <= 0 || len(g.Hits) < maxResult {
			g.Hits = append(g.Hits, h)
		}
	}
	out := make([]Group, len(order))
	for i, key := range order {
		out[i] = *buckets[key]
	}
	return out
}

func paginate(ids []idstore.InternalID, offset, limit int) []idstore.InternalID {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return ids[offset:end]
}

func setToSlice(set map[idstore.InternalID]struct{}) []idstore.InternalID {
	out := make([]idstore.InternalID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func unionAll(sets []map[idstore.InternalID]struct{}) map[idstore.InternalID]struct{} {
	out := make(map[idstore.InternalID]struct{})
	for _, s := range sets {
		for id := range s {
			out[id] = struct{}{}
		}
	}
	return out
}

func intersectAll(sets []map[idstore.InternalID]struct{}) map[idstore.InternalID]struct{} {
	if len(sets) == 0 {
		return nil
	}
	out := make(map[idstore.InternalID]struct{}, len(sets[0]))
	for id := range sets[0] {
		out[id] = struct{}{}
	}
	for _, s := range sets[1:] {
		for id := range out {
			if _, ok := s[id]; !ok {
				delete(out, id)
			}
		}
	}
	return out
}

// lookupPath resolves a dotted schema path against a nested document map.
func lookupPath(doc map[string]any, path string) (any, bool) {
	cur := any(doc)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			key := path[start:i]
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = v
			start = i + 1
		}
	}
	return cur, true
}

func monotonicNow() time.Time { return time.Now() }
