package filemanager

import (
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/blobstore"
	"github.com/hupe1980/bitrow/resource"
	"github.com/hupe1980/bitrow/term"
)

func TestManagerHistogramRoundtrip(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := New(store)

	w, err := m.DocumentLengthHistogram(t.Context())
	require.NoError(t, err)
	_, err = io.WriteString(w, "3,1\n7,2\n50,1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"DocumentLengthHistogram.csv.lz4"}, names)

	raw, err := blobstore.ReadAll(t.Context(), store, "DocumentLengthHistogram.csv.lz4")
	require.NoError(t, err)
	assert.NotEqual(t, "3,1\n7,2\n50,1\n", string(raw), "stored bytes must be lz4-framed")

	r, err := m.OpenDocumentLengthHistogram(t.Context())
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "3,1\n7,2\n50,1\n", string(content))
}

func TestManagerHistogramMissing(t *testing.T) {
	m := New(blobstore.NewMemoryStore())

	_, err := m.OpenDocumentLengthHistogram(t.Context())
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestManagerShardFileRoundtrip(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := New(store, WithZstdLevel(zstd.SpeedFastest))

	write := func(open func() (io.WriteCloser, error), content string) {
		w, err := open()
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	write(func() (io.WriteCloser, error) { return m.CumulativeTermCounts(t.Context(), 0) }, "0,5,5\n")
	write(func() (io.WriteCloser, error) { return m.DocFreqTable(t.Context(), 0) }, "000000000000000a,1,1,5,0.5\n")
	write(func() (io.WriteCloser, error) { return m.IndexedIdfTable(t.Context(), 1) }, "000000000000000a,1,1,0.3\n")

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CumulativeTermCounts-0.csv.zst",
		"DocFreqTable-0.csv.zst",
		"IndexedIdf-1.csv.zst",
	}, names)

	read := func(open func() (io.ReadCloser, error)) string {
		r, err := open()
		require.NoError(t, err)
		defer r.Close()
		content, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(content)
	}
	assert.Equal(t, "0,5,5\n", read(func() (io.ReadCloser, error) { return m.OpenCumulativeTermCounts(t.Context(), 0) }))
	assert.Equal(t, "000000000000000a,1,1,5,0.5\n", read(func() (io.ReadCloser, error) { return m.OpenDocFreqTable(t.Context(), 0) }))
	assert.Equal(t, "000000000000000a,1,1,0.3\n", read(func() (io.ReadCloser, error) { return m.OpenIndexedIdfTable(t.Context(), 1) }))

	_, err = m.OpenDocFreqTable(t.Context(), 7)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestManagerReadDocFreqTable(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := New(store)

	w, err := m.DocFreqTable(t.Context(), 2)
	require.NoError(t, err)
	_, err = io.WriteString(w, "000000000000000a,1,1,5,0.5\n000000000000000b,0,1,2,0.2\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	table, err := m.ReadDocFreqTable(t.Context(), 2, 10)
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, term.Term{Hash: 0x0a, StreamId: 1, GramSize: 1}, entries[0].Term)
	assert.Equal(t, uint64(5), entries[0].Count)
	assert.Equal(t, uint64(10), table.DocumentCount())
	assert.InDelta(t, 0.5, entries[0].Frequency(10), 1e-9)
}

func TestManagerControllerThrottlesWrites(t *testing.T) {
	store := blobstore.NewMemoryStore()
	rc := resource.NewController(resource.Config{})
	m := New(store, WithController(rc))

	w, err := m.DocumentLengthHistogram(t.Context())
	require.NoError(t, err)
	_, err = io.WriteString(w, "1,1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := m.OpenDocumentLengthHistogram(t.Context())
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "1,1\n", string(content))
}
