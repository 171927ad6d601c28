package bitrow

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/bitrow/allocator"
	"github.com/hupe1980/bitrow/index"
	"github.com/hupe1980/bitrow/ingest"
	"github.com/hupe1980/bitrow/query"
	"github.com/hupe1980/bitrow/recycler"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
	"github.com/hupe1980/bitrow/token"
)

// Config carries the required collaborators and geometry of an Index.
type Config struct {
	// TermTable maps terms to the bit rows they touch. Required.
	TermTable term.Table

	// Schema declares the per-document payload blobs. Required.
	Schema schema.DataSchema

	// SliceBufferSize is the byte size of each slice buffer. The slice
	// capacity of every shard is derived from it. Ignored when
	// WithAllocator supplies an allocator.
	SliceBufferSize int

	// ShardBoundaries are the strictly increasing posting count limits
	// separating document length classes. Empty means a single shard.
	ShardBoundaries []int
}

// Index is the ingestion facade: it owns the shards, the token
// manager and the background recycler, and routes documents by length
// class. All methods are safe for concurrent use.
type Index struct {
	ingestor *ingest.Ingestor
	tokens   *token.Manager
	recycler *recycler.Recycler
	logger   *Logger
	metrics  MetricsCollector
	streams  query.StreamResolver

	closed atomic.Bool
}

// New builds an Index from cfg.
func New(cfg Config, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	boundaries, err := ingest.NewBoundaries(cfg.ShardBoundaries...)
	if err != nil {
		return nil, err
	}

	alloc := o.allocator
	if alloc == nil {
		if cfg.SliceBufferSize <= 0 {
			return nil, fmt.Errorf("bitrow: slice buffer size must be positive, got %d", cfg.SliceBufferSize)
		}
		alloc = allocator.NewPooled(cfg.SliceBufferSize,
			allocator.WithController(o.controller))
	}

	tokens := token.NewManager()
	rec := recycler.New(tokens, recycler.WithLogger(o.logger.Logger))

	ingestor, err := ingest.NewIngestor(ingest.IngestorConfig{
		Shards:     boundaries,
		TermTable:  cfg.TermTable,
		Schema:     cfg.Schema,
		Allocator:  alloc,
		Tokens:     tokens,
		Recycler:   rec,
		Controller: o.controller,
		Logger:     o.logger.Logger,
		Statistics: o.statistics,
	})
	if err != nil {
		rec.Stop()
		return nil, err
	}

	return &Index{
		ingestor: ingestor,
		tokens:   tokens,
		recycler: rec,
		logger:   o.logger,
		metrics:  o.metricsCollector,
		streams:  o.streams,
	}, nil
}

// Add ingests doc under id. Adding an id that is already present
// returns ingest.ErrDuplicateDocument.
func (i *Index) Add(id index.DocId, doc ingest.Document) error {
	if i.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	err := i.ingestor.Add(id, doc)
	i.metrics.RecordAdd(time.Since(start), err)
	i.logger.LogAdd(id, doc.PostingCount(), err)
	return err
}

// Delete expires the document for id and reports whether it was
// present. Deleting a missing id is not an error.
func (i *Index) Delete(id index.DocId) bool {
	start := time.Now()
	found := i.ingestor.Delete(id)
	i.metrics.RecordDelete(time.Since(start), found)
	i.logger.LogDelete(id, found)
	return found
}

// Contains reports whether id is currently indexed.
func (i *Index) Contains(id index.DocId) bool {
	return i.ingestor.Contains(id)
}

// DocumentCount returns the number of live documents.
func (i *Index) DocumentCount() int {
	return i.ingestor.DocumentCount()
}

// ShardCount returns the number of document length classes.
func (i *Index) ShardCount() int {
	return i.ingestor.ShardCount()
}

// UsedCapacityInBytes returns the published slice buffer bytes across
// all shards.
func (i *Index) UsedCapacityInBytes() uint64 {
	return i.ingestor.UsedCapacityInBytes()
}

// Tokens exposes the reader token manager. Readers take a token,
// snapshot shard buffer lists and hold the token for the duration of
// the read.
func (i *Index) Tokens() *token.Manager {
	return i.tokens
}

// Shard returns the shard with the given id.
func (i *Index) Shard(id index.ShardId) *index.Shard {
	return i.ingestor.Shard(id)
}

// ParseQuery parses a match query. Stream prefixes resolve through
// the resolver configured with WithStreamResolver.
func (i *Index) ParseQuery(input string) (query.Node, error) {
	return query.Parse(input, i.streams)
}

// WriteStatistics writes the document length histogram and per-shard
// term statistics side-files through fm. Returns
// ingest.ErrStatisticsDisabled unless the index was built with
// WithStatistics(true).
func (i *Index) WriteStatistics(ctx context.Context, fm ingest.FileManager) error {
	if i.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	err := i.ingestor.WriteStatistics(ctx, fm)
	i.metrics.RecordStatisticsWrite(time.Since(start), err)
	i.logger.LogStatisticsWrite(i.ingestor.ShardCount(), err)
	return err
}

// Close stops token issue, waits for outstanding reader tokens bounded
// by ctx, then drains the recycler. Close is idempotent.
func (i *Index) Close(ctx context.Context) error {
	if !i.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := i.ingestor.Shutdown(ctx)
	i.recycler.Stop()
	return err
}
