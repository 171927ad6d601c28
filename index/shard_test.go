package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/allocator"
	"github.com/hupe1980/bitrow/internal/layout"
	"github.com/hupe1980/bitrow/recycler"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
	"github.com/hupe1980/bitrow/token"
)

// rowsTable overrides the row sequence of every term, including the
// document active term.
type rowsTable struct {
	term.Table
	rows []term.RowId
}

func (t rowsTable) RowIds(term.Term) []term.RowId {
	return t.rows
}

func TestNewShard(t *testing.T) {
	table, err := term.NewStaticTable(term.StaticTableConfig{RowCounts: []uint32{8}})
	require.NoError(t, err)
	ds := schema.New()
	tokens := token.NewManager()
	rec := recycler.New(tokens, recycler.WithLogger(discardLogger()))
	t.Cleanup(rec.Stop)

	t.Run("capacity fits the buffer size", func(t *testing.T) {
		size := layout.BufferSizeForCapacity(2*layout.Rank0Granularity, ds, table)
		s, err := NewShard(3, ShardConfig{
			TermTable: table,
			Schema:    ds,
			Allocator: allocator.NewTracking(size),
			Recycler:  rec,
			Logger:    discardLogger(),
		})
		require.NoError(t, err)

		assert.Equal(t, ShardId(3), s.Id())
		assert.Equal(t, 2*layout.Rank0Granularity, s.SliceCapacity())
		assert.Equal(t, size, s.SliceBufferSize())
		assert.Empty(t, s.SliceBuffers())
	})

	t.Run("buffer too small", func(t *testing.T) {
		_, err := NewShard(0, ShardConfig{
			TermTable: table,
			Schema:    ds,
			Allocator: allocator.NewTracking(16),
			Recycler:  rec,
			Logger:    discardLogger(),
		})
		require.ErrorIs(t, err, layout.ErrBufferTooSmall)
	})

	t.Run("document active term must have one rank-0 row", func(t *testing.T) {
		_, err := NewShard(0, ShardConfig{
			TermTable: rowsTable{Table: table, rows: []term.RowId{{Rank: 0, Index: 1}, {Rank: 0, Index: 2}}},
			Schema:    ds,
			Allocator: allocator.NewTracking(4096),
			Recycler:  rec,
			Logger:    discardLogger(),
		})
		require.ErrorIs(t, err, ErrDocumentActiveRows)

		_, err = NewShard(0, ShardConfig{
			TermTable: rowsTable{Table: table, rows: []term.RowId{{Rank: 2, Index: 0}}},
			Schema:    ds,
			Allocator: allocator.NewTracking(4096),
			Recycler:  rec,
			Logger:    discardLogger(),
		})
		require.ErrorIs(t, err, ErrDocumentActiveRows)
	})
}

func TestShardRollsSlices(t *testing.T) {
	e := newTestEnv(t)
	capacity := e.shard.SliceCapacity()

	e.fill(t, capacity+1)

	buffers := e.shard.SliceBuffers()
	assert.Len(t, buffers, 2)
	assert.Equal(t, uint64(2*e.shard.SliceBufferSize()), e.shard.UsedCapacityInBytes()) //nolint:gosec // small sizes
	assert.Equal(t, 2, e.alloc.InUse())
}

func TestShardSnapshotIsolation(t *testing.T) {
	e := newTestEnv(t)
	capacity := e.shard.SliceCapacity()

	e.fill(t, 1)

	tok, err := e.tokens.RequestToken()
	require.NoError(t, err)
	snapshot := e.shard.SliceBuffers()
	require.Len(t, snapshot, 1)

	// Grow past the first slice while the reader holds its snapshot.
	for i := 1; i < capacity+1; i++ {
		h, err := e.shard.AllocateDocument(DocId(i)) //nolint:gosec // test ids
		require.NoError(t, err)
		h.Activate()
		h.Slice().Commit()
	}

	assert.Len(t, snapshot, 1, "a held snapshot never changes")
	assert.Len(t, e.shard.SliceBuffers(), 2, "new readers see the grown list")

	require.NoError(t, tok.Close())
	e.rec.Drain()
}

func TestShardRecycleSlice(t *testing.T) {
	t.Run("rejects a live slice", func(t *testing.T) {
		e := newTestEnv(t)
		h, err := e.shard.AllocateDocument(1)
		require.NoError(t, err)
		h.Slice().Commit()

		require.ErrorIs(t, e.shard.RecycleSlice(h.Slice()), ErrSliceNotExpired)
	})

	t.Run("rejects a slice already removed", func(t *testing.T) {
		e := newTestEnv(t)
		capacity := e.shard.SliceCapacity()
		handles := e.fill(t, capacity)

		sl := handles[0].Slice()
		sl.IncRef()
		for _, h := range handles {
			require.NoError(t, h.Expire())
		}
		require.True(t, sl.IsExpired())

		require.NoError(t, e.shard.RecycleSlice(sl))
		require.ErrorIs(t, e.shard.RecycleSlice(sl), ErrBufferNotInList)

		e.rec.Drain()
		assert.Equal(t, 0, e.alloc.InUse())
	})
}

func TestShardSliceFromBuffer(t *testing.T) {
	e := newTestEnv(t)
	capacity := e.shard.SliceCapacity()
	handles := e.fill(t, capacity)

	sl := handles[0].Slice()
	buf := sl.Buffer()
	assert.Same(t, sl, e.shard.SliceFromBuffer(buf))

	for _, h := range handles {
		require.NoError(t, h.Expire())
	}
	assert.Nil(t, e.shard.SliceFromBuffer(buf), "recycled slices no longer resolve")
}
