// Package docstore holds the opaque id->document bag the spec treats as an
// external collaborator (§1, §9 "opaque component interfaces"): the core
// never inspects a document's contents, only stores and retrieves it by
// internal id. Store is an interface so a caller can swap in a
// Postgres-backed implementation (see store/postgres) without touching
// the indexing core.
package docstore

import "github.com/lucid-search/lucid/internal/idstore"

// Store is the capability set the core depends on: put, get, delete, and a
// full snapshot for serialization.
type Store interface {
	Put(id idstore.InternalID, doc map[string]any)
	Get(id idstore.InternalID) (map[string]any, bool)
	Delete(id idstore.InternalID)
	Snapshot() map[idstore.InternalID]map[string]any
	Len() int
}

// Memory is the default in-process Store: a plain map guarded by the
// caller's single-writer discipline (§5 — the core is single-writer,
// multi-reader; Memory adds no locking of its own beyond what callers
// already serialize through the engine).
type Memory struct {
	docs map[idstore.InternalID]map[string]any
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[idstore.InternalID]map[string]any)}
}

func (m *Memory) Put(id idstore.InternalID, doc map[string]any) {
	m.docs[id] = doc
}

func (m *Memory) Get(id idstore.InternalID) (map[string]any, bool) {
	d, ok := m.docs[id]
	return d, ok
}

func (m *Memory) Delete(id idstore.InternalID) {
	delete(m.docs, id)
}

func (m *Memory) Snapshot() map[idstore.InternalID]map[string]any {
	out := make(map[idstore.InternalID]map[string]any, len(m.docs))
	for k, v := range m.docs {
		out[k] = v
	}
	return out
}

func (m *Memory) Len() int { return len(m.docs) }
