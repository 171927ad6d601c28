package index

import (
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
)

// DocumentHandle is a caller's reference to one allocated document
// column. It pins the owning slice and column index so posting and
// blob operations need no lookups. Handles are only valid between
// AllocateDocument and the document's Expire.
type DocumentHandle struct {
	slice *Slice
	index DocIndex
	id    DocId
}

// DocId returns the global document id behind the handle.
func (h DocumentHandle) DocId() DocId {
	return h.id
}

// Index returns the document's column index within its slice.
func (h DocumentHandle) Index() DocIndex {
	return h.index
}

// Slice returns the owning slice.
func (h DocumentHandle) Slice() *Slice {
	return h.slice
}

// AddPosting sets the document's bits for every row of t.
func (h DocumentHandle) AddPosting(t term.Term) {
	h.slice.shard.AddPosting(t, h.index, h.slice.buffer, h.id)
}

// AssertFact sets or clears the document's bit for a single-row fact
// term.
func (h DocumentHandle) AssertFact(fact term.Term, value bool) error {
	return h.slice.shard.AssertFact(fact, value, h.index, h.slice.buffer)
}

// Activate sets the document active bit, marking the column visible to
// matchers.
func (h DocumentHandle) Activate() {
	s := h.slice.shard
	s.layout.RowTable(0).SetBit(h.slice.buffer, s.activeRow.Index, int(h.index))
}

// Expire clears the document active bit and advances the slice's
// expired count. When the last column of the slice expires the shard's
// own reference is dropped, which recycles the slice once no external
// holders remain. Expiring more columns than the slice has committed
// returns ErrExpireOverflow; the slice counts expiries, not columns, so
// a repeated Expire of the same column is rejected only once it would
// exceed that count.
func (h DocumentHandle) Expire() error {
	s := h.slice.shard
	s.layout.RowTable(0).ClearBit(h.slice.buffer, s.activeRow.Index, int(h.index))
	full, err := h.slice.Expire()
	if err != nil {
		return err
	}
	if full {
		h.slice.DecRef()
	}
	return nil
}

// FixedBlob returns the document's fixed-size blob for id. The
// returned slice aliases the slice buffer.
func (h DocumentHandle) FixedBlob(id schema.FixedBlobId) []byte {
	return h.slice.shard.layout.DocTable().FixedBlob(h.slice.buffer, int(h.index), id)
}

// AllocateVariableBlob reserves size bytes in the slice's blob arena
// and records the blob in the document's table slot. Allocating twice
// for the same slot overwrites the reference; the old bytes stay in
// the arena until the slice is destroyed.
func (h DocumentHandle) AllocateVariableBlob(id schema.VariableBlobId, size int) ([]byte, error) {
	return h.slice.shard.layout.DocTable().AllocateVariableBlob(
		h.slice.buffer, h.slice.blobArena, int(h.index), id, size)
}

// VariableBlob resolves the document's variable-size blob for id.
// Returns nil when no blob has been allocated for the slot.
func (h DocumentHandle) VariableBlob(id schema.VariableBlobId) []byte {
	return h.slice.shard.layout.DocTable().VariableBlob(
		h.slice.buffer, h.slice.blobArena, int(h.index), id)
}
