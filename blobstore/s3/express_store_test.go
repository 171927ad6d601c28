package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/blobstore"
)

func newExpressStore(t *testing.T) (*fakeS3Client, *ExpressStore) {
	t.Helper()
	client := newFakeS3Client()
	return client, NewExpressStore(client, "test--use1-az4--x-s3", "bitrow")
}

func TestExpressStorePutIfNotExists(t *testing.T) {
	client, store := newExpressStore(t)

	require.NoError(t, store.PutIfNotExists(t.Context(), "gen/5/CURRENT", []byte("gen-a")))

	err := store.PutIfNotExists(t.Context(), "gen/5/CURRENT", []byte("gen-b"))
	require.ErrorIs(t, err, ErrConflict)

	stored, ok := client.get("bitrow/gen/5/CURRENT")
	require.True(t, ok)
	assert.Equal(t, "gen-a", string(stored), "losing write must not overwrite the winner")
}

func TestExpressStoreRoundtrip(t *testing.T) {
	_, store := newExpressStore(t)

	require.NoError(t, store.Put(t.Context(), "stats/a.csv", []byte("a")))
	require.NoError(t, store.Put(t.Context(), "stats/b.csv", []byte("b")))

	names, err := store.List(t.Context(), "stats/")
	require.NoError(t, err)
	assert.Equal(t, []string{"stats/a.csv", "stats/b.csv"}, names)

	data, err := blobstore.ReadAll(t.Context(), store, "stats/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	require.NoError(t, store.Delete(t.Context(), "stats/a.csv"))
	_, err = store.Open(t.Context(), "stats/a.csv")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestExpressStoreCreateStreaming(t *testing.T) {
	client, store := newExpressStore(t)

	w, err := store.Create(t.Context(), "wal/0001")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	stored, ok := client.get("bitrow/wal/0001")
	require.True(t, ok)
	assert.Equal(t, "payload", string(stored))
}
