// Package index implements the in-memory index core: shards of packed
// document slices, the document lifecycle state machine and the
// copy-on-write buffer lists that let readers run lock-free while
// writers replace them.
package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/bitrow/internal/layout"
)

// DocId is the global document identifier assigned by the caller.
type DocId uint64

// DocIndex is the local column index of a document within a slice,
// in [0, capacity).
type DocIndex uint32

// ShardId identifies a shard within an ingestor.
type ShardId uint32

// SliceId identifies a slice within its shard. Stable for the slice's
// lifetime; stored in the trailing word of the slice buffer.
type SliceId uint64

// SliceIdFromBuffer returns the slice id stored in the trailing word
// of a slice buffer.
func SliceIdFromBuffer(buf []byte) SliceId {
	return SliceId(layout.ReadSliceId(buf))
}

var (
	// ErrSliceNotExpired is returned when recycling a slice that still
	// has unexpired documents.
	ErrSliceNotExpired = errors.New("index: slice is not fully expired")
	// ErrBufferNotInList is returned when a recycled slice's buffer is
	// missing from the published buffer list.
	ErrBufferNotInList = errors.New("index: slice buffer not in published list")
	// ErrExpireOverflow is returned when expiring more columns than
	// have been committed.
	ErrExpireOverflow = errors.New("index: expire beyond committed count")
	// ErrFactRowCount is returned when a fact term does not map to
	// exactly one row.
	ErrFactRowCount = errors.New("index: fact term must have exactly one row")
	// ErrDocumentActiveRows is returned when the document active term
	// does not map to exactly one rank-0 row.
	ErrDocumentActiveRows = errors.New("index: document active term must have exactly one rank-0 row")
)

// fatal logs an invariant violation and halts. These states are
// unreachable with a correct caller; continuing would corrupt the
// index.
func fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	panic(fmt.Sprintf("index: invariant violation: %s", msg))
}
