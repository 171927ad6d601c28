package blobstore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Run("put and open", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "a.bin", []byte("hello world")))

		blob, err := store.Open(t.Context(), "a.bin")
		require.NoError(t, err)
		defer blob.Close()

		assert.Equal(t, int64(11), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(buf, 6)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "world", string(buf))
	})

	t.Run("open missing", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Open(t.Context(), "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create publishes on close", func(t *testing.T) {
		store := NewMemoryStore()

		w, err := store.Create(t.Context(), "b.bin")
		require.NoError(t, err)
		_, err = w.Write([]byte("data"))
		require.NoError(t, err)

		_, err = store.Open(t.Context(), "b.bin")
		require.ErrorIs(t, err, ErrNotFound, "blob must stay invisible until close")

		require.NoError(t, w.Sync())
		require.NoError(t, w.Close())

		data, err := ReadAll(t.Context(), store, "b.bin")
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), data)
	})

	t.Run("open snapshots the blob", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "c.bin", []byte("old")))

		blob, err := store.Open(t.Context(), "c.bin")
		require.NoError(t, err)
		defer blob.Close()

		require.NoError(t, store.Put(t.Context(), "c.bin", []byte("new")))

		buf := make([]byte, 3)
		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, "old", string(buf))
	})

	t.Run("read past end", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "d.bin", []byte("0123456789")))

		blob, err := store.Open(t.Context(), "d.bin")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 5)
		n, err := blob.ReadAt(buf, 8)
		require.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 2, n)
		assert.Equal(t, "89", string(buf[:n]))

		_, err = blob.ReadAt(buf, 20)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("delete and list", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "stats/a", nil))
		require.NoError(t, store.Put(t.Context(), "stats/b", nil))
		require.NoError(t, store.Put(t.Context(), "other/c", nil))

		names, err := store.List(t.Context(), "stats/")
		require.NoError(t, err)
		assert.Equal(t, []string{"stats/a", "stats/b"}, names)

		require.NoError(t, store.Delete(t.Context(), "stats/a"))
		require.NoError(t, store.Delete(t.Context(), "missing"), "deleting a missing blob is not an error")

		names, err = store.List(t.Context(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"other/c", "stats/b"}, names)
	})
}
