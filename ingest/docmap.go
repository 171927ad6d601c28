package ingest

import (
	"fmt"
	"sync"

	"github.com/hupe1980/bitrow/index"
)

// DocumentMap maps global doc ids to their handles. Reads take the
// read lock only; Delete serializes through the ingestor's delete
// mutex on top of the write lock here.
type DocumentMap struct {
	mu   sync.RWMutex
	docs map[index.DocId]index.DocumentHandle
}

// NewDocumentMap creates an empty map.
func NewDocumentMap() *DocumentMap {
	return &DocumentMap{docs: make(map[index.DocId]index.DocumentHandle)}
}

// Insert adds id. Returns ErrDuplicateDocument when id is present.
func (m *DocumentMap) Insert(id index.DocId, h index.DocumentHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateDocument, id)
	}
	m.docs[id] = h
	return nil
}

// Remove deletes id and returns its handle. The second return reports
// whether id was present.
func (m *DocumentMap) Remove(id index.DocId) (index.DocumentHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.docs[id]
	if ok {
		delete(m.docs, id)
	}
	return h, ok
}

// Get returns the handle for id.
func (m *DocumentMap) Get(id index.DocId) (index.DocumentHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.docs[id]
	return h, ok
}

// Contains reports whether id is present.
func (m *DocumentMap) Contains(id index.DocId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok
}

// Len returns the number of mapped documents.
func (m *DocumentMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
