// Package arena provides a chunked bump allocator for variable-size
// document blobs. Allocations are concurrent and lock-free on the fast
// path; freeing is all-at-once when the owning slice is destroyed.
package arena

import (
	"context"
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/bitrow/internal/mmap"
)

var (
	// ErrMaxChunksExceeded is returned when the arena runs out of
	// addressable chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrClosed is returned when allocating from a freed arena.
	ErrClosed = errors.New("arena: closed")
	// ErrAllocTooLarge is returned when a single allocation exceeds
	// the chunk size.
	ErrAllocTooLarge = errors.New("arena: allocation exceeds chunk size")
)

const (
	// DefaultChunkSize is the default chunk size (1 MiB).
	DefaultChunkSize = 1 << 20

	// MaxChunks bounds the number of chunks so that every offset fits
	// in 32 bits with the default chunk size.
	MaxChunks = 4096

	alignment = 8
)

// MemoryAcquirer reserves memory from a budget before a chunk is
// mapped and returns it when the arena is freed.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

type chunk struct {
	data    []byte
	mapping *mmap.Mapping
	offset  atomic.Int64
	index   uint32
}

// Arena is a chunked bump allocator. Offsets returned by Alloc are
// stable for the arena's lifetime and resolvable with View.
type Arena struct {
	chunkSize int
	chunkBits int
	chunkMask uint64

	chunks     [MaxChunks]atomic.Pointer[chunk]
	chunkCount atomic.Uint32
	current    atomic.Pointer[chunk]

	mu       sync.Mutex
	acquirer MemoryAcquirer
	reserved atomic.Int64
}

// Option configures an Arena.
type Option func(*Arena)

// WithMemoryAcquirer charges chunk mappings against a memory budget.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates an Arena with the given chunk size, rounded up to a
// power of two. A non-positive chunkSize selects DefaultChunkSize.
func New(chunkSize int, opts ...Option) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkBits := bits.Len(uint(chunkSize - 1))
	chunkSize = 1 << chunkBits

	a := &Arena{
		chunkSize: chunkSize,
		chunkBits: chunkBits,
		chunkMask: uint64(chunkSize - 1),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.addChunk(context.Background()); err != nil {
		return nil, err
	}
	// Reserve offset 0 so it can serve as a null handle.
	if _, _, err := a.Alloc(alignment); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Arena) addChunk(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addChunkLocked(ctx)
}

func (a *Arena) addChunkLocked(ctx context.Context) error {
	idx := a.chunkCount.Load()
	if idx >= MaxChunks {
		return ErrMaxChunksExceeded
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(ctx, int64(a.chunkSize)); err != nil {
			return err
		}
	}

	mapping, err := mmap.MapAnon(a.chunkSize)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(a.chunkSize))
		}
		return err
	}

	c := &chunk{data: mapping.Bytes(), mapping: mapping, index: idx}
	a.chunks[idx].Store(c)
	a.reserved.Add(int64(a.chunkSize))

	// Count must be visible before current so View never sees an
	// offset from a chunk it considers out of range.
	a.chunkCount.Add(1)
	a.current.Store(c)
	return nil
}

// Alloc reserves size bytes and returns the arena offset and the byte
// slice. The slice stays valid until Free.
func (a *Arena) Alloc(size int) (uint64, []byte, error) {
	return a.AllocContext(context.Background(), size)
}

// AllocContext is Alloc with a context for memory-budget waits.
func (a *Arena) AllocContext(ctx context.Context, size int) (uint64, []byte, error) {
	if size <= 0 {
		return 0, nil, nil
	}
	aligned := (size + alignment - 1) &^ (alignment - 1)
	if aligned > a.chunkSize {
		return 0, nil, ErrAllocTooLarge
	}

	for {
		curr := a.current.Load()
		if curr == nil {
			return 0, nil, ErrClosed
		}

		if offset, data, ok := a.tryAlloc(curr, size, aligned); ok {
			return offset, data, nil
		}

		if a.current.Load() != curr {
			continue
		}
		a.mu.Lock()
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}
		err := a.addChunkLocked(ctx)
		a.mu.Unlock()
		if err != nil {
			return 0, nil, err
		}
	}
}

func (a *Arena) tryAlloc(c *chunk, size, aligned int) (uint64, []byte, bool) {
	old := c.offset.Load()
	next := old + int64(aligned)
	if next > int64(len(c.data)) {
		return 0, nil, false
	}
	if !c.offset.CompareAndSwap(old, next) {
		return 0, nil, false
	}
	offset := uint64(c.index)<<a.chunkBits | uint64(old)
	return offset, c.data[old : old+int64(size) : next], true
}

// View resolves an offset returned by Alloc into a byte slice of the
// given size. Returns nil for the null offset or a freed arena.
func (a *Arena) View(offset uint64, size int) []byte {
	if offset == 0 || size <= 0 {
		return nil
	}
	chunkIdx := offset >> a.chunkBits
	chunkOff := offset & a.chunkMask
	if chunkIdx >= uint64(a.chunkCount.Load()) {
		return nil
	}
	c := a.chunks[chunkIdx].Load()
	if c == nil || chunkOff+uint64(size) > uint64(len(c.data)) {
		return nil
	}
	return c.data[chunkOff : chunkOff+uint64(size) : chunkOff+uint64(size)]
}

// Reserved returns the total bytes currently mapped.
func (a *Arena) Reserved() int64 {
	return a.reserved.Load()
}

// Free unmaps all chunks. Must not race with allocations; all slices
// handed out become invalid.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := int(a.chunkCount.Load())
	for i := 0; i < count; i++ {
		if c := a.chunks[i].Load(); c != nil && c.mapping != nil {
			_ = c.mapping.Close()
		}
		a.chunks[i].Store(nil)
	}
	a.chunkCount.Store(0)
	a.current.Store(nil)

	if reserved := a.reserved.Swap(0); reserved > 0 && a.acquirer != nil {
		a.acquirer.ReleaseMemory(reserved)
	}
}
