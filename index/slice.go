package index

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/bitrow/internal/arena"
)

// blobArenaChunkSize is the chunk size of the per-slice variable blob
// arena. Small relative to slice buffers so short-lived slices stay
// cheap.
const blobArenaChunkSize = 1 << 16

// Slice is one packed batch of document columns sharing a single
// buffer. Counters track the lifecycle of its columns:
//
//	unallocated + commitPending + committedLive + expired == capacity
//
// where committedLive is the derived remainder. Columns move through
// allocate, commit, expire in that order and never back.
type Slice struct {
	shard  *Shard
	id     SliceId
	buffer []byte

	// blobArena backs variable-size document blobs; nil when the
	// schema declares none.
	blobArena *arena.Arena

	mu            sync.Mutex
	unallocated   int
	commitPending int
	expired       int

	refCount atomic.Int32
}

// newSlice allocates a buffer from the shard's allocator and
// initializes the doc table, the row tables and the trailing slice id.
// Every column starts with its document active bit set.
func newSlice(shard *Shard, id SliceId) (*Slice, error) {
	buf, err := shard.alloc.Allocate(shard.alloc.BufferSize())
	if err != nil {
		return nil, err
	}

	var blobs *arena.Arena
	if shard.dataSchema.VariableSizeBlobCount() > 0 {
		blobs, err = arena.New(blobArenaChunkSize)
		if err != nil {
			shard.alloc.Release(buf)
			return nil, err
		}
	}

	s := &Slice{
		shard:       shard,
		id:          id,
		buffer:      buf,
		blobArena:   blobs,
		unallocated: shard.layout.Capacity(),
	}
	s.refCount.Store(1)

	shard.layout.Reset(buf)
	shard.layout.WriteSliceId(buf, uint64(id))

	rt := shard.layout.RowTable(0)
	for doc := 0; doc < shard.layout.Capacity(); doc++ {
		rt.SetBit(buf, shard.activeRow.Index, doc)
	}

	return s, nil
}

// Id returns the slice's stable identifier.
func (s *Slice) Id() SliceId {
	return s.id
}

// Buffer returns the slice's buffer. Readers must hold a token or a
// reference for the duration of the access.
func (s *Slice) Buffer() []byte {
	return s.buffer
}

// Capacity returns the number of document columns.
func (s *Slice) Capacity() int {
	return s.shard.layout.Capacity()
}

// TryAllocate reserves the next free column. Returns false when the
// slice is full. Indices are issued densely in increasing order.
func (s *Slice) TryAllocate() (DocIndex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unallocated == 0 {
		return 0, false
	}
	index := DocIndex(s.shard.layout.Capacity() - s.unallocated) //nolint:gosec // bounded by capacity
	s.unallocated--
	s.commitPending++
	return index, true
}

// Commit finishes one pending allocation. Returns true when the slice
// has become full: no free columns and no pending commits remain.
// Commit without a matching TryAllocate is an invariant violation and
// halts the process.
func (s *Slice) Commit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitPending == 0 {
		fatal(s.shard.logger, "commit without pending allocation",
			"shard", s.shard.id, "slice", s.id)
	}
	s.commitPending--
	return s.unallocated+s.commitPending == 0
}

// Expire marks one committed column as soft-deleted. Returns true when
// every column of the slice has been expired; the caller must then
// drop the shard's reference with DecRef. Expiring more columns than
// have been committed returns ErrExpireOverflow.
func (s *Slice) Expire() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	committed := s.shard.layout.Capacity() - s.unallocated - s.commitPending
	if s.expired >= committed {
		return false, fmt.Errorf("%w: slice %d, expired %d, committed %d",
			ErrExpireOverflow, s.id, s.expired, committed)
	}
	s.expired++
	return s.expired == s.shard.layout.Capacity(), nil
}

// IsExpired reports whether every column has been expired.
func (s *Slice) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired == s.shard.layout.Capacity()
}

// IncRef adds a reference, keeping the slice alive past full expiry.
// External holders (e.g. a backup writer) pair it with DecRef.
func (s *Slice) IncRef() {
	s.refCount.Add(1)
}

// DecRef drops a reference. When the count reaches zero the slice is
// removed from its shard and scheduled for recycling.
func (s *Slice) DecRef() {
	if s.refCount.Add(-1) == 0 {
		s.shard.recycleAtZeroRef(s)
	}
}

// destroy releases the variable blob arena and returns the buffer to
// the allocator. Called on the recycler goroutine only.
func (s *Slice) destroy() {
	if s.blobArena != nil {
		s.blobArena.Free()
	}
	s.shard.alloc.Release(s.buffer)
}
