package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bitrow/allocator"
	"github.com/hupe1980/bitrow/index"
	"github.com/hupe1980/bitrow/recycler"
	"github.com/hupe1980/bitrow/resource"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/statistics"
	"github.com/hupe1980/bitrow/term"
	"github.com/hupe1980/bitrow/token"
)

// IngestorConfig carries the ingestor's collaborators. Shards,
// TermTable, Schema, Allocator, Tokens and Recycler are required.
type IngestorConfig struct {
	Shards    ShardDefinition
	TermTable term.Table
	Schema    schema.DataSchema
	Allocator allocator.Allocator
	Tokens    *token.Manager
	Recycler  *recycler.Recycler

	// Controller bounds background statistics workers. Nil disables
	// the bound.
	Controller *resource.Controller

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Statistics enables per-shard frequency collection and the
	// document length histogram behind WriteStatistics.
	Statistics bool
}

// Ingestor routes documents to shards by posting count and owns the
// doc id to handle map. Add, Delete and the accessors are safe for
// concurrent use.
type Ingestor struct {
	def        ShardDefinition
	shards     []*index.Shard
	docs       *DocumentMap
	tokens     *token.Manager
	controller *resource.Controller
	logger     *slog.Logger

	histogram  *Histogram
	statistics bool

	deleteMu sync.Mutex
}

// NewIngestor builds one shard per shard definition entry.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	count := cfg.Shards.ShardCount()
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrShardCount, count)
	}

	ing := &Ingestor{
		def:        cfg.Shards,
		shards:     make([]*index.Shard, count),
		docs:       NewDocumentMap(),
		tokens:     cfg.Tokens,
		controller: cfg.Controller,
		logger:     logger,
		histogram:  NewHistogram(),
		statistics: cfg.Statistics,
	}

	for i := range ing.shards {
		var freq *statistics.Builder
		if cfg.Statistics {
			freq = statistics.NewBuilder()
		}
		s, err := index.NewShard(index.ShardId(i), index.ShardConfig{ //nolint:gosec // bounded by ShardCount
			TermTable: cfg.TermTable,
			Schema:    cfg.Schema,
			Allocator: cfg.Allocator,
			Recycler:  cfg.Recycler,
			Logger:    logger,
			Frequency: freq,
		})
		if err != nil {
			return nil, fmt.Errorf("ingest: shard %d: %w", i, err)
		}
		ing.shards[i] = s
	}
	return ing, nil
}

// Add routes doc to its length-class shard, lets it write its postings
// and publishes it in the document map. On a duplicate id the newly
// committed column is expired and ErrDuplicateDocument is returned.
func (ing *Ingestor) Add(id index.DocId, doc Document) error {
	postings := doc.PostingCount()
	shard := ing.shards[ing.def.ShardFor(postings)]

	handle, err := shard.AllocateDocument(id)
	if err != nil {
		return fmt.Errorf("ingest: allocate document %d: %w", id, err)
	}

	if err := doc.Ingest(handle); err != nil {
		ing.abandon(handle)
		return fmt.Errorf("ingest: document %d: %w", id, err)
	}

	handle.Activate()
	if full := handle.Slice().Commit(); full {
		ing.logger.Debug("slice filled",
			"shard", shard.Id(), "slice", handle.Slice().Id())
	}

	if err := ing.docs.Insert(id, handle); err != nil {
		if expireErr := handle.Expire(); expireErr != nil {
			ing.logger.Error("cleanup expire failed", "doc", id, "error", expireErr)
		}
		return err
	}

	if ing.statistics {
		if fb := shard.FrequencyBuilder(); fb != nil {
			fb.RecordDocument(uint64(id))
		}
		ing.histogram.Record(postings)
	}
	return nil
}

// abandon commits and immediately expires a handle whose document
// failed mid-ingest, keeping the slice counters consistent.
func (ing *Ingestor) abandon(h index.DocumentHandle) {
	h.Slice().Commit()
	if err := h.Expire(); err != nil {
		ing.logger.Error("abandon expire failed", "doc", h.DocId(), "error", err)
	}
}

// Delete expires the document for id and reports whether it was
// present. A missing id is not an error. After shutdown Delete always
// returns false.
func (ing *Ingestor) Delete(id index.DocId) bool {
	t, err := ing.tokens.RequestToken()
	if err != nil {
		ing.logger.Warn("delete rejected", "doc", id, "error", err)
		return false
	}
	defer t.Close()

	ing.deleteMu.Lock()
	defer ing.deleteMu.Unlock()

	h, ok := ing.docs.Remove(id)
	if !ok {
		return false
	}
	if err := h.Expire(); err != nil {
		ing.logger.Error("delete expire failed", "doc", id, "error", err)
	}
	return true
}

// Contains reports whether id is currently mapped.
func (ing *Ingestor) Contains(id index.DocId) bool {
	return ing.docs.Contains(id)
}

// DocumentCount returns the number of live documents.
func (ing *Ingestor) DocumentCount() int {
	return ing.docs.Len()
}

// ShardCount returns the number of shards.
func (ing *Ingestor) ShardCount() int {
	return len(ing.shards)
}

// Shard returns the shard with the given id.
func (ing *Ingestor) Shard(id index.ShardId) *index.Shard {
	return ing.shards[id]
}

// UsedCapacityInBytes sums the published buffer bytes of all shards.
func (ing *Ingestor) UsedCapacityInBytes() uint64 {
	var total uint64
	for _, s := range ing.shards {
		total += s.UsedCapacityInBytes()
	}
	return total
}

// Shutdown stops token issue and waits for outstanding tokens to
// retire, bounded by ctx.
func (ing *Ingestor) Shutdown(ctx context.Context) error {
	return ing.tokens.Shutdown(ctx)
}

// WriteStatistics writes the document length histogram and the three
// per-shard term statistics side-files through fm. Per-shard files fan
// out concurrently; the controller, when set, bounds the fan-out.
func (ing *Ingestor) WriteStatistics(ctx context.Context, fm FileManager) error {
	if !ing.statistics {
		return ErrStatisticsDisabled
	}

	w, err := fm.DocumentLengthHistogram(ctx)
	if err != nil {
		return err
	}
	if err := ing.histogram.Write(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range ing.shards {
		g.Go(func() error {
			if ing.controller != nil {
				if err := ing.controller.AcquireBackground(ctx); err != nil {
					return err
				}
				defer ing.controller.ReleaseBackground()
			}

			table := shard.FrequencyBuilder().Snapshot()
			id := shard.Id()
			if err := writeSideFile(ctx, fm.CumulativeTermCounts, id, table.WriteCumulativeCounts); err != nil {
				return fmt.Errorf("ingest: cumulative counts shard %d: %w", id, err)
			}
			if err := writeSideFile(ctx, fm.DocFreqTable, id, table.WriteDocFreq); err != nil {
				return fmt.Errorf("ingest: doc freq table shard %d: %w", id, err)
			}
			if err := writeSideFile(ctx, fm.IndexedIdfTable, id, table.WriteIndexedIdf); err != nil {
				return fmt.Errorf("ingest: indexed idf table shard %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func writeSideFile(ctx context.Context, open func(context.Context, index.ShardId) (io.WriteCloser, error), shard index.ShardId, write func(io.Writer) error) error {
	w, err := open(ctx, shard)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
