// Package resource enforces process-wide budgets for slice buffer
// memory, background statistics workers and side-file IO throughput.
// A nil *Controller is valid everywhere and enforces nothing.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values disable the corresponding
// limit, except MaxBackgroundWorkers which defaults to 1.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory: slice
	// buffers, blob arenas and cache blocks. 0 means track only.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers bounds concurrent background jobs such as
	// per-shard statistics writes.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec throttles side-file write throughput.
	IOLimitBytesPerSec int64
}

// memoryBudget accounts for every managed byte the index holds. With
// no hard limit it degrades to a usage counter.
type memoryBudget struct {
	limit *semaphore.Weighted // nil when tracking only
	used  atomic.Int64
}

func (b *memoryBudget) acquire(ctx context.Context, bytes int64) error {
	if b.limit != nil {
		if err := b.limit.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	b.used.Add(bytes)
	return nil
}

func (b *memoryBudget) tryAcquire(bytes int64) bool {
	if b.limit != nil && !b.limit.TryAcquire(bytes) {
		return false
	}
	b.used.Add(bytes)
	return true
}

func (b *memoryBudget) release(bytes int64) {
	if b.limit != nil {
		b.limit.Release(bytes)
	}
	b.used.Add(-bytes)
}

// Controller hands out memory, background worker slots and IO budget
// to the allocator, the block caches and the statistics writers. All
// methods are safe for concurrent use and safe on a nil receiver.
type Controller struct {
	mem     memoryBudget
	workers *semaphore.Weighted
	io      *rate.Limiter
}

// NewController creates a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	workers := cfg.MaxBackgroundWorkers
	if workers <= 0 {
		workers = 1
	}

	c := &Controller{workers: semaphore.NewWeighted(workers)}
	if cfg.MemoryLimitBytes > 0 {
		c.mem.limit = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireMemory reserves bytes against the memory budget, blocking
// until the budget allows it or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	return c.mem.acquire(ctx, bytes)
}

// TryAcquireMemory reserves bytes without blocking. Returns false when
// the budget would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	return c.mem.tryAcquire(bytes)
}

// ReleaseMemory returns bytes to the memory budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.mem.release(bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.mem.used.Load()
}

// AcquireBackground reserves a background worker slot, blocking while
// all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// TryAcquireBackground reserves a background worker slot without
// blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.workers.TryAcquire(1)
}

// ReleaseBackground returns a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireIO waits until the IO limit admits bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.io == nil {
		return nil
	}
	return c.io.WaitN(ctx, bytes)
}
