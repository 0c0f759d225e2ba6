// Package sorter maintains, per sortable schema property, a lazily-sorted
// list of (id, value) pairs with deferred deletion, per §4.6. Removals
// only mark a pending-delete set — no shifting — so repeated Remove calls
// stay O(1); any query or serialization that depends on order first calls
// EnsureSorted to compact and resort.
package sorter

import (
	"sort"
	"strings"

	apperrors "github.com/lucid-search/lucid/pkg/errors"

	"github.com/lucid-search/lucid/internal/idstore"
	"github.com/lucid-search/lucid/internal/schema"
)

// Order is the requested sort direction for SortBy.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// entry is one (id, value) pair tracked for a sortable property.
type entry struct {
	id    idstore.InternalID
	value any // string, float64, or bool, matching the property's schema.Type
}

// propState is the per-property sort state described in §3
// ("Sorter state").
type propState struct {
	orderedDocs   []entry
	docs          map[idstore.InternalID]int // id -> position in orderedDocs; valid only when isSorted
	pendingRemove map[idstore.InternalID]struct{}
	isSorted      bool
	valueType     schema.Type
}

// Sorter tracks sort state for every sortable property of one schema.
type Sorter struct {
	enabled    bool
	sortable   map[string]schema.Type
	props      map[string]*propState
	language   string // most recently recorded language; string values compare bytewise via strings.Compare, so it does not affect order
}

// Config configures a Sorter at Create time.
type Config struct {
	Enabled              bool
	UnsortableProperties []string
}

// New builds a Sorter from a flattened schema and config. It does no
// validation of its own: non-scalar or unknown unsortable properties
// (INVALID_SORT_SCHEMA_TYPE) are rejected by schema.Flattened.Validate,
// which runs before this is called.
func New(flat schema.Flattened, cfg Config) *Sorter {
	unsortable := make(map[string]struct{}, len(cfg.UnsortableProperties))
	for _, p := range cfg.UnsortableProperties {
		unsortable[p] = struct{}{}
	}
	sortablePaths := flat.SortablePaths(unsortable)

	sortable := make(map[string]schema.Type, len(sortablePaths))
	props := make(map[string]*propState, len(sortablePaths))
	for _, p := range sortablePaths {
		sortable[p] = flat[p]
		props[p] = &propState{
			docs:          make(map[idstore.InternalID]int),
			pendingRemove: make(map[idstore.InternalID]struct{}),
			isSorted:      true,
			valueType:     flat[p],
		}
	}
	return &Sorter{
		enabled:  cfg.Enabled,
		sortable: sortable,
		props:    props,
		language: "english",
	}
}

// Enabled reports whether the sorter accepts inserts/serves SortBy.
func (s *Sorter) Enabled() bool { return s.enabled }

// IsSortable reports whether property p is a sortable path.
func (s *Sorter) IsSortable(p string) bool {
	_, ok := s.sortable[p]
	return ok
}

// Insert appends (id, value) to property p's list. A no-op if the sorter
// is disabled (§7: "Inserting into a disabled sorter is a silent no-op")
// or p is not sortable.
func (s *Sorter) Insert(p string, id idstore.InternalID, value any, language string) {
	if !s.enabled {
		return
	}
	st, ok := s.props[p]
	if !ok {
		return
	}
	if language != "" {
		s.language = language
	}
	st.orderedDocs = append(st.orderedDocs, entry{id: id, value: value})
	st.docs[id] = len(st.orderedDocs) - 1
	st.isSorted = false
}

// Remove marks id for deferred removal from property p's list. Absence is
// checked explicitly (not via a falsy zero-value check) so that a
// document occupying position 0 is correctly treated as present — the
// Open Question fix from §9: the original implementation's falsy check on
// `docs[id] == 0` misclassified position 0 as "not present".
func (s *Sorter) Remove(p string, id idstore.InternalID) {
	st, ok := s.props[p]
	if !ok {
		return
	}
	if _, present := st.docs[id]; !present {
		return
	}
	delete(st.docs, id)
	st.pendingRemove[id] = struct{}{}
}

// EnsureSorted compacts out pending removals and resorts property p's
// list if dirty, per §4.6. Ascending order by default; direction is
// applied by SortBy, not here.
func (s *Sorter) EnsureSorted(p string) error {
	st, ok := s.props[p]
	if !ok {
		return apperrors.Newf(apperrors.CodeUnableToSortOnUnknownField, "property %q is not sortable", p)
	}
	if st.isSorted {
		return nil
	}
	if len(st.pendingRemove) > 0 {
		compacted := st.orderedDocs[:0]
		for _, e := range st.orderedDocs {
			if _, removed := st.pendingRemove[e.id]; removed {
				continue
			}
			compacted = append(compacted, e)
		}
		st.orderedDocs = compacted
		st.pendingRemove = make(map[idstore.InternalID]struct{})
	}

	lang := s.language
	sort.SliceStable(st.orderedDocs, func(i, j int) bool {
		return lessValue(st.orderedDocs[i].value, st.orderedDocs[j].value, st.valueType, lang)
	})

	st.docs = make(map[idstore.InternalID]int, len(st.orderedDocs))
	for i, e := range st.orderedDocs {
		st.docs[e.id] = i
	}
	st.isSorted = true
	return nil
}

func lessValue(a, b any, t schema.Type, language string) bool {
	switch t {
	case schema.TypeString:
		as, _ := a.(string)
		bs, _ := b.(string)
		return strings.Compare(as, bs) < 0
	case schema.TypeNumber:
		af, _ := a.(float64)
		bf, _ := b.(float64)
		return af < bf
	case schema.TypeBoolean:
		ab, _ := a.(bool)
		bb, _ := b.(bool)
		// true precedes false in ascending order, per §4.6.
		return ab && !bb
	default:
		return false
	}
}

// SortParams configures SortBy.
type SortParams struct {
	Property string
	Order    Order
}

// SortBy ensures property is sorted, then stably reorders docIDs so that
// indexed ids appear in that property's position order (reversed for
// DESC), with un-indexed ids kept last in their original relative order.
func (s *Sorter) SortBy(docIDs []idstore.InternalID, params SortParams) ([]idstore.InternalID, error) {
	if !s.enabled {
		return nil, apperrors.New(apperrors.CodeSortDisabled, "sorting is disabled for this engine")
	}
	st, ok := s.props[params.Property]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnableToSortOnUnknownField, "property %q is not sortable", params.Property)
	}
	if err := s.EnsureSorted(params.Property); err != nil {
		return nil, err
	}

	type ranked struct {
		id       idstore.InternalID
		position int
		found    bool
		orig     int
	}
	items := make([]ranked, len(docIDs))
	for i, id := range docIDs {
		pos, found := st.docs[id]
		items[i] = ranked{id: id, position: pos, found: found, orig: i}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.found != b.found {
			return a.found // found (indexed) items sort before un-indexed ones
		}
		if !a.found {
			return a.orig < b.orig
		}
		if params.Order == Desc {
			return a.position > b.position
		}
		return a.position < b.position
	})

	out := make([]idstore.InternalID, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out, nil
}
