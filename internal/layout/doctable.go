package layout

import (
	"encoding/binary"

	"github.com/hupe1980/bitrow/internal/arena"
	"github.com/hupe1980/bitrow/schema"
)

// varSlotLen is the size of one variable-blob handle in the doc table:
// a 32-bit arena offset followed by a 32-bit length.
const varSlotLen = 8

// DocTableDescriptor is pure offset arithmetic over the doc table
// region at the start of a slice buffer. One entry per document column
// holds the fixed-size blobs followed by the variable-blob handles.
type DocTableDescriptor struct {
	capacity     int
	fixedOffsets []int
	fixedSizes   []int
	varOffset    int
	varCount     int
	bytesPerDoc  int
}

// NewDocTableDescriptor computes the doc table layout for the given
// capacity and schema.
func NewDocTableDescriptor(capacity int, ds schema.DataSchema) DocTableDescriptor {
	d := DocTableDescriptor{
		capacity:   capacity,
		fixedSizes: ds.FixedSizeBlobSizes(),
		varCount:   ds.VariableSizeBlobCount(),
	}

	offset := 0
	d.fixedOffsets = make([]int, len(d.fixedSizes))
	for i, size := range d.fixedSizes {
		d.fixedOffsets[i] = offset
		offset += size
	}
	offset = align8(offset)
	d.varOffset = offset
	offset += d.varCount * varSlotLen
	d.bytesPerDoc = align8(offset)
	return d
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// BufferSize returns the byte size of the doc table region.
func (d *DocTableDescriptor) BufferSize() int {
	return d.capacity * d.bytesPerDoc
}

// Capacity returns the number of document entries.
func (d *DocTableDescriptor) Capacity() int {
	return d.capacity
}

func (d *DocTableDescriptor) entry(buf []byte, doc int) []byte {
	start := doc * d.bytesPerDoc
	return buf[start : start+d.bytesPerDoc]
}

// FixedBlob returns the writable bytes of a fixed-size blob for the
// document at column doc.
func (d *DocTableDescriptor) FixedBlob(buf []byte, doc int, id schema.FixedBlobId) []byte {
	e := d.entry(buf, doc)
	off := d.fixedOffsets[id]
	return e[off : off+d.fixedSizes[id]]
}

// AllocateVariableBlob reserves size bytes in the slice's blob arena,
// records the handle in the doc table and returns the writable bytes.
// A second allocation for the same slot overwrites the handle; the old
// bytes stay in the arena until the slice is destroyed.
func (d *DocTableDescriptor) AllocateVariableBlob(buf []byte, a *arena.Arena, doc int, id schema.VariableBlobId, size int) ([]byte, error) {
	offset, data, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	slot := d.varSlot(buf, doc, id)
	binary.LittleEndian.PutUint32(slot[0:4], uint32(offset)) //nolint:gosec // arena offsets fit 32 bits
	binary.LittleEndian.PutUint32(slot[4:8], uint32(size))   //nolint:gosec // bounded by arena chunk size
	return data, nil
}

// VariableBlob resolves a previously allocated variable blob. Returns
// nil when the slot was never written.
func (d *DocTableDescriptor) VariableBlob(buf []byte, a *arena.Arena, doc int, id schema.VariableBlobId) []byte {
	slot := d.varSlot(buf, doc, id)
	offset := uint64(binary.LittleEndian.Uint32(slot[0:4]))
	size := int(binary.LittleEndian.Uint32(slot[4:8]))
	return a.View(offset, size)
}

func (d *DocTableDescriptor) varSlot(buf []byte, doc int, id schema.VariableBlobId) []byte {
	e := d.entry(buf, doc)
	off := d.varOffset + int(id)*varSlotLen
	return e[off : off+varSlotLen]
}
