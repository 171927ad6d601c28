// Package layout computes the byte geometry of a slice buffer: the doc
// table region, one row table per rank in ascending order and the
// trailing slice id word.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
)

const (
	// Rank0Granularity is the allocation granularity of slice
	// capacities. A capacity is always a positive multiple of it so
	// rank-0 rows fill whole 64-bit words.
	Rank0Granularity = 64

	// sliceIdLen is the size of the trailing slice id word.
	sliceIdLen = 8
)

// ErrBufferTooSmall is returned when not even the minimum capacity
// fits the buffer budget.
var ErrBufferTooSmall = errors.New("layout: buffer too small for minimum capacity")

// SliceLayout is the full descriptor set for one slice geometry. All
// slices of a shard share a single layout.
type SliceLayout struct {
	capacity   int
	bufferSize int
	docTable   DocTableDescriptor
	rowTables  []RowTableDescriptor
}

// NewSliceLayout computes descriptors for the given capacity. The
// capacity must be a positive multiple of Rank0Granularity.
func NewSliceLayout(capacity int, ds schema.DataSchema, tt term.Table) (*SliceLayout, error) {
	if capacity <= 0 || capacity%Rank0Granularity != 0 {
		return nil, fmt.Errorf("layout: capacity %d is not a positive multiple of %d", capacity, Rank0Granularity)
	}

	l := &SliceLayout{capacity: capacity}
	l.docTable = NewDocTableDescriptor(capacity, ds)

	offset := l.docTable.BufferSize()
	maxRank := tt.MaxRankUsed()
	l.rowTables = make([]RowTableDescriptor, maxRank+1)
	for r := term.Rank(0); r <= maxRank; r++ {
		l.rowTables[r] = NewRowTableDescriptor(capacity, r, tt.TotalRowCount(r), offset)
		offset += l.rowTables[r].BufferSize()
	}

	l.bufferSize = offset + sliceIdLen
	return l, nil
}

// BufferSizeForCapacity returns the buffer size a slice of the given
// capacity needs, without building the full layout.
func BufferSizeForCapacity(capacity int, ds schema.DataSchema, tt term.Table) int {
	dt := NewDocTableDescriptor(capacity, ds)
	size := dt.BufferSize()
	maxRank := tt.MaxRankUsed()
	for r := term.Rank(0); r <= maxRank; r++ {
		rt := NewRowTableDescriptor(capacity, r, tt.TotalRowCount(r), 0)
		size += rt.BufferSize()
	}
	return size + sliceIdLen
}

// CapacityForByteSize returns the largest capacity whose layout fits
// within budget bytes, probing in Rank0Granularity steps.
func CapacityForByteSize(budget int, ds schema.DataSchema, tt term.Table) (int, error) {
	capacity := Rank0Granularity
	if BufferSizeForCapacity(capacity, ds, tt) > budget {
		return 0, fmt.Errorf("%w: budget %d", ErrBufferTooSmall, budget)
	}
	for BufferSizeForCapacity(capacity+Rank0Granularity, ds, tt) <= budget {
		capacity += Rank0Granularity
	}
	return capacity, nil
}

// Capacity returns the document capacity of this layout.
func (l *SliceLayout) Capacity() int {
	return l.capacity
}

// BufferSize returns the total slice buffer size, trailing id included.
func (l *SliceLayout) BufferSize() int {
	return l.bufferSize
}

// DocTable returns the doc table descriptor.
func (l *SliceLayout) DocTable() *DocTableDescriptor {
	return &l.docTable
}

// RowTable returns the row table descriptor for a rank. The rank must
// not exceed the term table's MaxRankUsed.
func (l *SliceLayout) RowTable(r term.Rank) *RowTableDescriptor {
	return &l.rowTables[r]
}

// MaxRank returns the highest rank this layout carries a row table for.
func (l *SliceLayout) MaxRank() term.Rank {
	return term.Rank(len(l.rowTables) - 1) //nolint:gosec // bounded by term.MaxRank
}

// Reset zeroes the doc table and row table regions of buf. The
// trailing id word is left untouched.
func (l *SliceLayout) Reset(buf []byte) {
	clear(buf[:l.bufferSize-sliceIdLen])
}

// WriteSliceId stores id in the trailing word of buf.
func (l *SliceLayout) WriteSliceId(buf []byte, id uint64) {
	binary.LittleEndian.PutUint64(buf[len(buf)-sliceIdLen:], id)
}

// ReadSliceId reads the trailing slice id word of buf. The buffer must
// have been produced by a layout of the same size.
func ReadSliceId(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf[len(buf)-sliceIdLen:])
}
