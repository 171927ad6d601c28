package layout

import (
	"github.com/hupe1980/bitrow/term"
)

// RowTableDescriptor addresses the bit matrix of one rank inside a
// slice buffer. Row r, column c lives at bit (c >> rank) of row r;
// at rank 0 there is one bit per document, at rank r one bit covers
// 2^r adjacent documents.
type RowTableDescriptor struct {
	rank        term.Rank
	rowCount    uint32
	offset      int
	bytesPerRow int
}

// NewRowTableDescriptor computes the row table layout for one rank,
// starting at the given byte offset within the slice buffer.
func NewRowTableDescriptor(capacity int, rank term.Rank, rowCount uint32, offset int) RowTableDescriptor {
	bitsPerRow := capacity >> rank
	return RowTableDescriptor{
		rank:        rank,
		rowCount:    rowCount,
		offset:      offset,
		bytesPerRow: (bitsPerRow + 7) / 8,
	}
}

// Rank returns the descriptor's rank.
func (d *RowTableDescriptor) Rank() term.Rank {
	return d.rank
}

// RowCount returns the number of rows at this rank.
func (d *RowTableDescriptor) RowCount() uint32 {
	return d.rowCount
}

// BufferSize returns the byte size of this row table region.
func (d *RowTableDescriptor) BufferSize() int {
	return int(d.rowCount) * d.bytesPerRow
}

func (d *RowTableDescriptor) locate(row uint32, doc int) (int, byte) {
	bit := doc >> d.rank
	idx := d.offset + int(row)*d.bytesPerRow + bit/8
	return idx, 1 << (bit % 8)
}

// SetBit sets the bit for column doc in the given row.
func (d *RowTableDescriptor) SetBit(buf []byte, row uint32, doc int) {
	idx, mask := d.locate(row, doc)
	buf[idx] |= mask
}

// ClearBit clears the bit for column doc in the given row.
func (d *RowTableDescriptor) ClearBit(buf []byte, row uint32, doc int) {
	idx, mask := d.locate(row, doc)
	buf[idx] &^= mask
}

// Bit reports whether the bit for column doc in the given row is set.
func (d *RowTableDescriptor) Bit(buf []byte, row uint32, doc int) bool {
	idx, mask := d.locate(row, doc)
	return buf[idx]&mask != 0
}
