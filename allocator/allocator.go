// Package allocator provides slice buffer allocators. All buffers of
// one allocator share a single size, fixed at construction.
package allocator

import "errors"

var (
	// ErrWrongSize is returned when Allocate is called with a size
	// other than the allocator's buffer size.
	ErrWrongSize = errors.New("allocator: requested size does not match buffer size")
	// ErrForeignBuffer is returned by implementations that can detect
	// a Release of a buffer they did not allocate.
	ErrForeignBuffer = errors.New("allocator: buffer not owned by this allocator")
)

// Allocator hands out equally-sized slice buffers.
// Implementations must be safe for concurrent use.
type Allocator interface {
	// Allocate returns a buffer of exactly size bytes. The size must
	// equal BufferSize.
	Allocate(size int) ([]byte, error)

	// Release returns a buffer obtained from Allocate.
	Release(buf []byte)

	// BufferSize returns the fixed buffer size.
	BufferSize() int
}
