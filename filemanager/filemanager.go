// Package filemanager names and opens the statistics side-files over
// a blob store. The document length histogram is lz4-framed; the
// per-shard term statistics tables are zstd-compressed CSV.
package filemanager

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/bitrow/blobstore"
	"github.com/hupe1980/bitrow/index"
	"github.com/hupe1980/bitrow/ingest"
	"github.com/hupe1980/bitrow/resource"
	"github.com/hupe1980/bitrow/statistics"
)

var _ ingest.FileManager = (*Manager)(nil)

// Side-file names. Per-shard files carry the shard id.
const (
	histogramFile        = "DocumentLengthHistogram.csv.lz4"
	cumulativeCountsFile = "CumulativeTermCounts-%d.csv.zst"
	docFreqFile          = "DocFreqTable-%d.csv.zst"
	indexedIdfFile       = "IndexedIdf-%d.csv.zst"
)

// Manager opens named side-file streams backed by a BlobStore.
type Manager struct {
	store      blobstore.BlobStore
	controller *resource.Controller
	zstdLevel  zstd.EncoderLevel
}

// Option configures a Manager.
type Option func(*Manager)

// WithController throttles side-file writes against the controller's
// IO budget.
func WithController(rc *resource.Controller) Option {
	return func(m *Manager) {
		m.controller = rc
	}
}

// WithZstdLevel overrides the default zstd encoder level.
func WithZstdLevel(level zstd.EncoderLevel) Option {
	return func(m *Manager) {
		m.zstdLevel = level
	}
}

// New creates a Manager over store.
func New(store blobstore.BlobStore, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		zstdLevel: zstd.SpeedDefault,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DocumentLengthHistogram opens the histogram stream for writing.
func (m *Manager) DocumentLengthHistogram(ctx context.Context) (io.WriteCloser, error) {
	blob, err := m.store.Create(ctx, histogramFile)
	if err != nil {
		return nil, err
	}
	return &sideFileWriter{
		ctx:        ctx,
		controller: m.controller,
		comp:       lz4.NewWriter(blob),
		blob:       blob,
	}, nil
}

// CumulativeTermCounts opens a shard's cumulative term counts stream
// for writing.
func (m *Manager) CumulativeTermCounts(ctx context.Context, shard index.ShardId) (io.WriteCloser, error) {
	return m.createZstd(ctx, fmt.Sprintf(cumulativeCountsFile, shard))
}

// DocFreqTable opens a shard's document frequency table stream for
// writing.
func (m *Manager) DocFreqTable(ctx context.Context, shard index.ShardId) (io.WriteCloser, error) {
	return m.createZstd(ctx, fmt.Sprintf(docFreqFile, shard))
}

// IndexedIdfTable opens a shard's indexed IDF table stream for
// writing.
func (m *Manager) IndexedIdfTable(ctx context.Context, shard index.ShardId) (io.WriteCloser, error) {
	return m.createZstd(ctx, fmt.Sprintf(indexedIdfFile, shard))
}

func (m *Manager) createZstd(ctx context.Context, name string) (io.WriteCloser, error) {
	blob, err := m.store.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(blob, zstd.WithEncoderLevel(m.zstdLevel))
	if err != nil {
		blob.Close()
		return nil, err
	}
	return &sideFileWriter{
		ctx:        ctx,
		controller: m.controller,
		comp:       enc,
		blob:       blob,
	}, nil
}

// OpenDocumentLengthHistogram opens the histogram for reading.
func (m *Manager) OpenDocumentLengthHistogram(ctx context.Context) (io.ReadCloser, error) {
	blob, err := m.store.Open(ctx, histogramFile)
	if err != nil {
		return nil, err
	}
	return &sideFileReader{
		r:    lz4.NewReader(io.NewSectionReader(blob, 0, blob.Size())),
		blob: blob,
	}, nil
}

// OpenCumulativeTermCounts opens a shard's cumulative term counts for
// reading.
func (m *Manager) OpenCumulativeTermCounts(ctx context.Context, shard index.ShardId) (io.ReadCloser, error) {
	return m.openZstd(ctx, fmt.Sprintf(cumulativeCountsFile, shard))
}

// OpenDocFreqTable opens a shard's document frequency table for
// reading.
func (m *Manager) OpenDocFreqTable(ctx context.Context, shard index.ShardId) (io.ReadCloser, error) {
	return m.openZstd(ctx, fmt.Sprintf(docFreqFile, shard))
}

// OpenIndexedIdfTable opens a shard's indexed IDF table for reading.
func (m *Manager) OpenIndexedIdfTable(ctx context.Context, shard index.ShardId) (io.ReadCloser, error) {
	return m.openZstd(ctx, fmt.Sprintf(indexedIdfFile, shard))
}

// ReadDocFreqTable parses a shard's document frequency table. The
// document count is not stored in the file and must be supplied.
func (m *Manager) ReadDocFreqTable(ctx context.Context, shard index.ShardId, docCount uint64) (*statistics.Table, error) {
	r, err := m.OpenDocFreqTable(ctx, shard)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return statistics.ReadDocFreq(r, docCount)
}

func (m *Manager) openZstd(ctx context.Context, name string) (io.ReadCloser, error) {
	blob, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(io.NewSectionReader(blob, 0, blob.Size()))
	if err != nil {
		blob.Close()
		return nil, err
	}
	return &sideFileReader{
		r:    dec.IOReadCloser(),
		blob: blob,
	}, nil
}

// sideFileWriter chains a compressor onto a writable blob and charges
// uncompressed bytes against the controller's IO budget.
type sideFileWriter struct {
	ctx        context.Context
	controller *resource.Controller
	comp       io.WriteCloser
	blob       blobstore.WritableBlob
}

func (w *sideFileWriter) Write(p []byte) (int, error) {
	if w.controller != nil {
		if err := w.controller.AcquireIO(w.ctx, len(p)); err != nil {
			return 0, err
		}
	}
	return w.comp.Write(p)
}

// Close flushes the compressor, then publishes the blob.
func (w *sideFileWriter) Close() error {
	if err := w.comp.Close(); err != nil {
		w.blob.Close()
		return err
	}
	return w.blob.Close()
}

// sideFileReader pairs a decompressing reader with its backing blob.
type sideFileReader struct {
	r    io.Reader
	blob blobstore.Blob
}

func (r *sideFileReader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

func (r *sideFileReader) Close() error {
	if c, ok := r.r.(io.Closer); ok {
		c.Close()
	}
	return r.blob.Close()
}
