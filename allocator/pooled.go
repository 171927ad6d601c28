package allocator

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/bitrow/resource"
)

// Pooled is a freelist-backed Allocator. Released buffers are reused
// before new memory is requested. An optional resource.Controller
// charges fresh buffers against a memory budget.
type Pooled struct {
	bufferSize int
	controller *resource.Controller

	mu       sync.Mutex
	free     [][]byte
	maxFree  int
	acquired int64
}

// PooledOption configures a Pooled allocator.
type PooledOption func(*Pooled)

// WithController charges buffer memory against ctrl. Allocation blocks
// while the budget is exhausted.
func WithController(ctrl *resource.Controller) PooledOption {
	return func(p *Pooled) {
		p.controller = ctrl
	}
}

// WithMaxFree caps the number of buffers kept on the freelist.
// Buffers released beyond the cap are dropped. Zero means unbounded.
func WithMaxFree(n int) PooledOption {
	return func(p *Pooled) {
		p.maxFree = n
	}
}

// NewPooled creates a Pooled allocator for buffers of bufferSize bytes.
func NewPooled(bufferSize int, opts ...PooledOption) *Pooled {
	p := &Pooled{bufferSize: bufferSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocate implements Allocator.
func (p *Pooled) Allocate(size int) ([]byte, error) {
	if size != p.bufferSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongSize, size, p.bufferSize)
	}

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return buf, nil
	}
	p.mu.Unlock()

	if err := p.controller.AcquireMemory(context.Background(), int64(p.bufferSize)); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.acquired += int64(p.bufferSize)
	p.mu.Unlock()

	return make([]byte, p.bufferSize), nil
}

// Release implements Allocator.
func (p *Pooled) Release(buf []byte) {
	if len(buf) != p.bufferSize {
		return
	}

	p.mu.Lock()
	if p.maxFree > 0 && len(p.free) >= p.maxFree {
		p.acquired -= int64(p.bufferSize)
		p.mu.Unlock()
		p.controller.ReleaseMemory(int64(p.bufferSize))
		return
	}
	p.free = append(p.free, buf)
	p.mu.Unlock()
}

// BufferSize implements Allocator.
func (p *Pooled) BufferSize() int {
	return p.bufferSize
}

// Close drops the freelist and returns all charged memory to the
// controller. The allocator must not be used afterwards.
func (p *Pooled) Close() {
	p.mu.Lock()
	p.free = nil
	acquired := p.acquired
	p.acquired = 0
	p.mu.Unlock()
	p.controller.ReleaseMemory(acquired)
}
