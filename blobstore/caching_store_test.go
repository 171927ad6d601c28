package blobstore

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/internal/cache"
)

// countingStore wraps a MemoryStore and counts backend blob reads.
type countingStore struct {
	*MemoryStore
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (b *countingBlob) ReadAt(p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(p, off)
}

func newCachingFixture(t *testing.T, data []byte, blockSize int64) (*countingStore, *CachingStore) {
	t.Helper()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, inner.Put(t.Context(), "test", data))
	return inner, NewCachingStore(inner, cache.NewLRU(1<<20, nil), blockSize)
}

func TestCachingStoreReadAt(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 251)
	}

	t.Run("repeated reads hit the cache", func(t *testing.T) {
		inner, store := newCachingFixture(t, data, 256)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 100)
		n, err := blob.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Equal(t, data[:100], buf)
		assert.Equal(t, int64(1), inner.reads.Load())

		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), inner.reads.Load(), "second read must be served from cache")
	})

	t.Run("reads spanning blocks fetch only the missing one", func(t *testing.T) {
		inner, store := newCachingFixture(t, data, 256)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 100)
		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)

		// Block 0 is cached, block 1 is not.
		buf2 := make([]byte, 100)
		n, err := blob.ReadAt(buf2, 200)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Equal(t, data[200:300], buf2)
		assert.Equal(t, int64(2), inner.reads.Load())

		_, err = blob.ReadAt(buf2, 260)
		require.NoError(t, err)
		assert.Equal(t, int64(2), inner.reads.Load())
	})

	t.Run("contiguous missing runs coalesce into one read", func(t *testing.T) {
		inner, store := newCachingFixture(t, make([]byte, 10*1024), 1024)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 10*1024)
		n, err := blob.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, 10*1024, n)
		assert.Equal(t, int64(1), inner.reads.Load(), "ten cold blocks must load in one backend read")
	})

	t.Run("short tail returns EOF", func(t *testing.T) {
		_, store := newCachingFixture(t, []byte("hello"), 256)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 10)
		n, err := blob.ReadAt(buf, 0)
		require.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(buf[:n]))

		_, err = blob.ReadAt(buf, 100)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("empty reads are a no-op", func(t *testing.T) {
		inner, store := newCachingFixture(t, data, 256)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)
		defer blob.Close()

		n, err := blob.ReadAt(nil, 0)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, inner.reads.Load())
	})
}

func TestCachingStoreInvalidation(t *testing.T) {
	t.Run("put drops cached blocks", func(t *testing.T) {
		inner, store := newCachingFixture(t, []byte("old content"), 256)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)

		buf := make([]byte, 3)
		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)
		require.NoError(t, blob.Close())

		require.NoError(t, store.Put(t.Context(), "test", []byte("new content")))

		blob, err = store.Open(t.Context(), "test")
		require.NoError(t, err)
		defer blob.Close()
		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, "new", string(buf))
		assert.Equal(t, int64(2), inner.reads.Load())
	})

	t.Run("delete drops cached blocks and passes through", func(t *testing.T) {
		_, store := newCachingFixture(t, []byte("content"), 256)
		blob, err := store.Open(t.Context(), "test")
		require.NoError(t, err)
		buf := make([]byte, 3)
		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)
		require.NoError(t, blob.Close())

		require.NoError(t, store.Delete(t.Context(), "test"))
		_, err = store.Open(t.Context(), "test")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCachingStorePassthrough(t *testing.T) {
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	store := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 0)

	w, err := store.Create(t.Context(), "w.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"w.bin"}, names)
}
