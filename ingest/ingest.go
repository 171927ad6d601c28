// Package ingest routes documents into shards, tracks the global doc
// id to handle mapping and writes the statistics side-files that term
// table construction consumes.
package ingest

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/bitrow/index"
)

var (
	// ErrDuplicateDocument is returned when Add is called with a doc id
	// that is already present.
	ErrDuplicateDocument = errors.New("ingest: document id already present")
	// ErrStatisticsDisabled is returned by WriteStatistics when the
	// ingestor was built without statistics collection.
	ErrStatisticsDisabled = errors.New("ingest: statistics collection is disabled")
	// ErrShardCount is returned when the shard definition declares no
	// shards.
	ErrShardCount = errors.New("ingest: shard definition must declare at least one shard")
)

// Document is the contract ingested documents implement. Ingest writes
// the document's postings through the handle and must not retain it.
type Document interface {
	// PostingCount returns the number of postings the document will
	// write. It routes the document to its length-class shard.
	PostingCount() int

	// Ingest records the document's postings via handle.AddPosting.
	Ingest(handle index.DocumentHandle) error
}

// ShardDefinition partitions documents into shards by posting count.
// ShardFor must be total and monotone: a larger posting count never
// maps to a smaller shard.
type ShardDefinition interface {
	ShardCount() int
	ShardFor(postingCount int) index.ShardId
}

// FileManager opens the named side-file streams WriteStatistics fills.
type FileManager interface {
	DocumentLengthHistogram(ctx context.Context) (io.WriteCloser, error)
	CumulativeTermCounts(ctx context.Context, shard index.ShardId) (io.WriteCloser, error)
	DocFreqTable(ctx context.Context, shard index.ShardId) (io.WriteCloser, error)
	IndexedIdfTable(ctx context.Context, shard index.ShardId) (io.WriteCloser, error)
}
