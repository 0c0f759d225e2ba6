// Package boolindex implements the boolean-field index from §4.4: two
// ordered sequences of internal ids, one per truth value. Removal is a
// linear scan, acceptable because a boolean field has only two buckets
// and the engine never sorts them.
package boolindex

import "github.com/lucid-search/lucid/internal/idstore"

// Index holds the true/false posting buckets for one boolean schema path.
type Index struct {
	trueIDs  []idstore.InternalID
	falseIDs []idstore.InternalID
}

// New creates an empty Index.
func New() *Index { return &Index{} }

// Insert appends id to the bucket for value.
func (ix *Index) Insert(value bool, id idstore.InternalID) {
	if value {
		ix.trueIDs = append(ix.trueIDs, id)
	} else {
		ix.falseIDs = append(ix.falseIDs, id)
	}
}

// Bucket returns the ordered ids currently stored for value.
func (ix *Index) Bucket(value bool) []idstore.InternalID {
	if value {
		return ix.trueIDs
	}
	return ix.falseIDs
}

// Remove finds id by linear scan in the bucket for value and drops it.
func (ix *Index) Remove(value bool, id idstore.InternalID) {
	if value {
		ix.trueIDs = removeLinear(ix.trueIDs, id)
	} else {
		ix.falseIDs = removeLinear(ix.falseIDs, id)
	}
}

func removeLinear(ids []idstore.InternalID, id idstore.InternalID) []idstore.InternalID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
