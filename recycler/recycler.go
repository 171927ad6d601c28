// Package recycler runs the background reclamation of retired slices
// and buffer-list snapshots. Units are destroyed only after every
// reader token issued before their enqueue has been retired.
package recycler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hupe1980/bitrow/token"
)

// Recyclable is one unit of deferred reclamation.
type Recyclable interface {
	// Recycle releases the unit's resources. Called exactly once, on
	// the recycler goroutine, after all prior tokens have retired.
	Recycle()
}

// Recycler is a single background worker consuming recyclable units.
type Recycler struct {
	tokens *token.Manager
	logger *slog.Logger

	queue    chan unit
	stopOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	pending int
	idle    *sync.Cond
}

type unit struct {
	r  Recyclable
	sn uint64
}

// Option configures a Recycler.
type Option func(*Recycler)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recycler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithQueueDepth sets the enqueue buffer depth.
func WithQueueDepth(n int) Option {
	return func(r *Recycler) {
		if n > 0 {
			r.queue = make(chan unit, n)
		}
	}
}

// New creates a Recycler and starts its worker goroutine.
func New(tokens *token.Manager, opts ...Option) *Recycler {
	r := &Recycler{
		tokens: tokens,
		logger: slog.Default(),
		queue:  make(chan unit, 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.idle = sync.NewCond(&r.mu)

	go r.run()
	return r
}

// Enqueue schedules a unit for reclamation once all tokens issued
// before this call have retired. Blocks while the queue is full.
func (r *Recycler) Enqueue(item Recyclable) {
	sn := r.tokens.NextSerial()
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()
	r.queue <- unit{r: item, sn: sn}
}

func (r *Recycler) run() {
	defer close(r.done)
	for u := range r.queue {
		if err := r.tokens.WaitUntilAllPriorRetired(context.Background(), u.sn); err != nil {
			r.logger.Error("recycler wait interrupted", "serial", u.sn, "error", err)
		}
		u.r.Recycle()

		r.mu.Lock()
		r.pending--
		if r.pending == 0 {
			r.idle.Broadcast()
		}
		r.mu.Unlock()
	}
}

// Drain blocks until every unit enqueued so far has been recycled.
func (r *Recycler) Drain() {
	r.mu.Lock()
	for r.pending > 0 {
		r.idle.Wait()
	}
	r.mu.Unlock()
}

// Stop closes the queue and waits for the worker to finish the
// remaining units. Enqueue must not be called after Stop.
func (r *Recycler) Stop() {
	r.stopOnce.Do(func() {
		close(r.queue)
	})
	<-r.done
}
