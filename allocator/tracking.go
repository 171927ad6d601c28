package allocator

import (
	"fmt"
	"sync/atomic"
)

// Tracking is an Allocator that counts buffers currently in use.
// Intended for tests that assert reclamation behavior.
type Tracking struct {
	bufferSize int
	inUse      atomic.Int64
	total      atomic.Int64
}

// NewTracking creates a Tracking allocator for buffers of bufferSize
// bytes.
func NewTracking(bufferSize int) *Tracking {
	return &Tracking{bufferSize: bufferSize}
}

// Allocate implements Allocator.
func (t *Tracking) Allocate(size int) ([]byte, error) {
	if size != t.bufferSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongSize, size, t.bufferSize)
	}
	t.inUse.Add(1)
	t.total.Add(1)
	return make([]byte, size), nil
}

// Release implements Allocator.
func (t *Tracking) Release(buf []byte) {
	t.inUse.Add(-1)
}

// BufferSize implements Allocator.
func (t *Tracking) BufferSize() int {
	return t.bufferSize
}

// InUse returns the number of buffers allocated but not yet released.
func (t *Tracking) InUse() int {
	return int(t.inUse.Load())
}

// TotalAllocated returns the number of buffers ever allocated.
func (t *Tracking) TotalAllocated() int {
	return int(t.total.Load())
}
