package index

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/allocator"
	"github.com/hupe1980/bitrow/internal/layout"
	"github.com/hupe1980/bitrow/recycler"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
	"github.com/hupe1980/bitrow/token"
)

// testEnv wires a shard with a tracking allocator sized for exactly one
// rank-0 granularity of capacity, so reclamation can be asserted by
// buffer count.
type testEnv struct {
	shard  *Shard
	table  *term.StaticTable
	ds     *schema.Schema
	tokens *token.Manager
	rec    *recycler.Recycler
	alloc  *allocator.Tracking

	fixedId schema.FixedBlobId
	varId   schema.VariableBlobId
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, term.StaticTableConfig{RowCounts: []uint32{8}})
}

func newTestEnvWith(t *testing.T, cfg term.StaticTableConfig) *testEnv {
	t.Helper()

	table, err := term.NewStaticTable(cfg)
	require.NoError(t, err)

	ds := schema.New()
	fixedId, err := ds.RegisterFixedSizeBlob(4)
	require.NoError(t, err)
	varId := ds.RegisterVariableSizeBlob()

	alloc := allocator.NewTracking(layout.BufferSizeForCapacity(layout.Rank0Granularity, ds, table))
	tokens := token.NewManager()
	rec := recycler.New(tokens, recycler.WithLogger(discardLogger()))
	t.Cleanup(rec.Stop)

	shard, err := NewShard(0, ShardConfig{
		TermTable: table,
		Schema:    ds,
		Allocator: alloc,
		Recycler:  rec,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	return &testEnv{
		shard:   shard,
		table:   table,
		ds:      ds,
		tokens:  tokens,
		rec:     rec,
		alloc:   alloc,
		fixedId: fixedId,
		varId:   varId,
	}
}

// fill allocates, activates and commits n documents.
func (e *testEnv) fill(t *testing.T, n int) []DocumentHandle {
	t.Helper()
	handles := make([]DocumentHandle, n)
	for i := range handles {
		h, err := e.shard.AllocateDocument(DocId(i)) //nolint:gosec // test ids
		require.NoError(t, err)
		h.Activate()
		h.Slice().Commit()
		handles[i] = h
	}
	return handles
}
