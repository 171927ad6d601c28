package index

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/bitrow/allocator"
	"github.com/hupe1980/bitrow/internal/layout"
	"github.com/hupe1980/bitrow/recycler"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/statistics"
	"github.com/hupe1980/bitrow/term"
)

// ShardConfig carries the collaborators a shard needs. TermTable,
// Schema, Allocator and Recycler are required.
type ShardConfig struct {
	TermTable term.Table
	Schema    schema.DataSchema
	Allocator allocator.Allocator
	Recycler  *recycler.Recycler

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Frequency receives term postings for statistics side-files.
	// Nil disables collection.
	Frequency *statistics.Builder
}

// Shard owns a growing set of slices for one document length class.
// The published buffer list is an immutable snapshot: writers replace
// it under the shard mutex, readers load it atomically and rely on the
// token discipline to keep their snapshot alive.
type Shard struct {
	id         ShardId
	termTable  term.Table
	dataSchema schema.DataSchema
	alloc      allocator.Allocator
	recycler   *recycler.Recycler
	logger     *slog.Logger
	freq       *statistics.Builder

	layout    *layout.SliceLayout
	activeRow term.RowId

	mu          sync.Mutex
	active      *Slice
	slices      map[SliceId]*Slice
	nextSliceId SliceId

	buffers atomic.Pointer[[][]byte]
}

// NewShard creates a shard. The slice capacity is the largest multiple
// of the rank-0 granularity whose layout fits the allocator's buffer
// size.
func NewShard(id ShardId, cfg ShardConfig) (*Shard, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	activeRow, err := documentActiveRowId(cfg.TermTable)
	if err != nil {
		return nil, err
	}

	capacity, err := layout.CapacityForByteSize(cfg.Allocator.BufferSize(), cfg.Schema, cfg.TermTable)
	if err != nil {
		return nil, err
	}
	l, err := layout.NewSliceLayout(capacity, cfg.Schema, cfg.TermTable)
	if err != nil {
		return nil, err
	}

	s := &Shard{
		id:         id,
		termTable:  cfg.TermTable,
		dataSchema: cfg.Schema,
		alloc:      cfg.Allocator,
		recycler:   cfg.Recycler,
		logger:     logger,
		freq:       cfg.Frequency,
		layout:     l,
		activeRow:  activeRow,
		slices:     make(map[SliceId]*Slice),
	}
	empty := make([][]byte, 0)
	s.buffers.Store(&empty)

	logger.Debug("shard created",
		"shard", id, "capacity", capacity, "buffer_size", l.BufferSize())
	return s, nil
}

func documentActiveRowId(tt term.Table) (term.RowId, error) {
	rows := tt.RowIds(tt.DocumentActiveTerm())
	if len(rows) != 1 {
		return term.RowId{}, fmt.Errorf("%w: got %d rows", ErrDocumentActiveRows, len(rows))
	}
	if rows[0].Rank != 0 {
		return term.RowId{}, fmt.Errorf("%w: got rank %d", ErrDocumentActiveRows, rows[0].Rank)
	}
	return rows[0], nil
}

// Id returns the shard id.
func (s *Shard) Id() ShardId {
	return s.id
}

// SliceCapacity returns the per-slice document capacity.
func (s *Shard) SliceCapacity() int {
	return s.layout.Capacity()
}

// SliceBufferSize returns the byte size of every slice buffer.
func (s *Shard) SliceBufferSize() int {
	return s.alloc.BufferSize()
}

// DocumentActiveRowId returns the rank-0 row marking live documents.
func (s *Shard) DocumentActiveRowId() term.RowId {
	return s.activeRow
}

// FrequencyBuilder returns the shard's statistics builder, or nil.
func (s *Shard) FrequencyBuilder() *statistics.Builder {
	return s.freq
}

// AllocateDocument reserves a column for id and returns its handle.
// Rolls a new active slice when the current one is absent or full.
func (s *Shard) AllocateDocument(id DocId) (DocumentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		if err := s.createNewActiveSliceLocked(); err != nil {
			return DocumentHandle{}, err
		}
	}
	index, ok := s.active.TryAllocate()
	if !ok {
		if err := s.createNewActiveSliceLocked(); err != nil {
			return DocumentHandle{}, err
		}
		index, ok = s.active.TryAllocate()
		if !ok {
			fatal(s.logger, "allocation failed on a fresh slice",
				"shard", s.id, "slice", s.active.id)
		}
	}
	return DocumentHandle{slice: s.active, index: index, id: id}, nil
}

// createNewActiveSliceLocked rolls a new slice and publishes a new
// buffer list with its buffer appended. The replaced list is retired
// through the recycler so readers on the old snapshot stay safe.
func (s *Shard) createNewActiveSliceLocked() error {
	sl, err := newSlice(s, s.nextSliceId)
	if err != nil {
		return err
	}
	s.nextSliceId++
	s.slices[sl.id] = sl

	old := s.buffers.Load()
	next := make([][]byte, len(*old)+1)
	copy(next, *old)
	next[len(*old)] = sl.buffer
	s.buffers.Store(&next)
	s.active = sl

	s.recycler.Enqueue(&deferredListDelete{buffers: *old})

	s.logger.Debug("slice created", "shard", s.id, "slice", sl.id, "buffers", len(next))
	return nil
}

// AddPosting sets t's row bits for column doc of buf and reports the
// posting to the frequency builder when statistics are enabled.
func (s *Shard) AddPosting(t term.Term, doc DocIndex, buf []byte, id DocId) {
	for _, row := range s.termTable.RowIds(t) {
		s.layout.RowTable(row.Rank).SetBit(buf, row.Index, int(doc))
	}
	if s.freq != nil {
		s.freq.RecordPosting(t, uint64(id))
	}
}

// AssertFact sets or clears the single row bit of a fact term for
// column doc of buf. Fact terms with anything but exactly one row are
// rejected.
func (s *Shard) AssertFact(fact term.Term, value bool, doc DocIndex, buf []byte) error {
	rows := s.termTable.RowIds(fact)
	if len(rows) != 1 {
		return fmt.Errorf("%w: got %d rows", ErrFactRowCount, len(rows))
	}
	rt := s.layout.RowTable(rows[0].Rank)
	if value {
		rt.SetBit(buf, rows[0].Index, int(doc))
	} else {
		rt.ClearBit(buf, rows[0].Index, int(doc))
	}
	return nil
}

// RowBit reads one row bit for column doc of buf.
func (s *Shard) RowBit(row term.RowId, doc DocIndex, buf []byte) bool {
	return s.layout.RowTable(row.Rank).Bit(buf, row.Index, int(doc))
}

// SliceBuffers returns the current immutable buffer list snapshot.
// Callers must hold a token while reading the buffers.
func (s *Shard) SliceBuffers() [][]byte {
	return *s.buffers.Load()
}

// SliceFromBuffer resolves the slice owning buf via the id stored in
// the buffer's trailing word. Returns nil for already-recycled slices.
func (s *Shard) SliceFromBuffer(buf []byte) *Slice {
	id := SliceIdFromBuffer(buf)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slices[id]
}

// UsedCapacityInBytes returns the bytes held by the published buffer
// list.
func (s *Shard) UsedCapacityInBytes() uint64 {
	n := len(*s.buffers.Load())
	return uint64(n) * uint64(s.alloc.BufferSize())
}

// RecycleSlice removes a fully expired slice from the published list
// and schedules the old list plus the slice itself for deferred
// destruction.
func (s *Shard) RecycleSlice(sl *Slice) error {
	if !sl.IsExpired() {
		return fmt.Errorf("%w: slice %d", ErrSliceNotExpired, sl.id)
	}

	s.mu.Lock()
	old := s.buffers.Load()
	next := make([][]byte, 0, len(*old))
	for _, buf := range *old {
		if SliceIdFromBuffer(buf) == sl.id {
			continue
		}
		next = append(next, buf)
	}
	if len(next) != len(*old)-1 {
		s.mu.Unlock()
		return fmt.Errorf("%w: slice %d, %d -> %d buffers",
			ErrBufferNotInList, sl.id, len(*old), len(next))
	}
	s.buffers.Store(&next)
	delete(s.slices, sl.id)
	if s.active == sl {
		s.active = nil
	}
	s.mu.Unlock()

	s.recycler.Enqueue(&deferredListDelete{buffers: *old, slice: sl})

	s.logger.Debug("slice recycled", "shard", s.id, "slice", sl.id, "buffers", len(next))
	return nil
}

// recycleAtZeroRef runs the refcount-zero transition. The refcount
// protocol guarantees the slice is fully expired here; a failure means
// a caller broke the protocol, which is logged and dropped.
func (s *Shard) recycleAtZeroRef(sl *Slice) {
	if err := s.RecycleSlice(sl); err != nil {
		s.logger.Error("recycle at zero refcount failed",
			"shard", s.id, "slice", sl.id, "error", err)
	}
}

// deferredListDelete is the recycler unit for a retired buffer list
// and, when a slice was removed, the slice itself.
type deferredListDelete struct {
	buffers [][]byte
	slice   *Slice
}

// Recycle implements recycler.Recyclable.
func (d *deferredListDelete) Recycle() {
	d.buffers = nil
	if d.slice != nil {
		d.slice.destroy()
	}
}
