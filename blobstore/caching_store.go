package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bitrow/internal/cache"
)

// CachingStore wraps a BlobStore with block-level read caching. It
// pays off in front of remote backends whose side-files are read
// repeatedly, such as doc frequency tables fetched at query-plan
// time.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner. blockSize defaults to 4KB when <= 0.
func NewCachingStore(inner BlobStore, blocks cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &CachingStore{
		inner:     inner,
		cache:     blocks,
		blockSize: blockSize,
	}
}

// Open opens a blob whose reads go through the block cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Create passes through. Writes are not cached; blobs are immutable
// once published.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

// Put invalidates the blob's cached blocks, then writes through.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete invalidates the blob's cached blocks, then deletes through.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key cache.Key) bool {
		return key.Path == name
	})
}

// cachingBlob serves ReadAt from cached blocks, filling missing runs
// from the inner blob with coalesced reads.
type cachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *cachingBlob) Close() error {
	return b.inner.Close()
}

func (b *cachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *cachingBlob) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= b.Size() {
		return 0, io.EOF
	}

	startBlock := off / b.blockSize
	endBlock := (off + int64(len(p)) - 1) / b.blockSize
	if err := b.fillCache(startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		blkStart := blk * b.blockSize

		from := max(blkStart, off)
		to := min(blkStart+b.blockSize, off+int64(len(p)))
		if to <= from {
			continue
		}

		block, err := b.fetchBlock(blk)
		if err != nil {
			return total, err
		}

		srcOffset := from - blkStart
		if srcOffset >= int64(len(block)) {
			break
		}
		copySize := to - from
		if srcOffset+copySize > int64(len(block)) {
			copySize = int64(len(block)) - srcOffset
		}
		total += copy(p[from-off:from-off+copySize], block[srcOffset:])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillCache loads the missing blocks in [startBlock, endBlock] with
// one backend read per contiguous missing run.
func (b *cachingBlob) fillCache(startBlock, endBlock int64) error {
	type run struct {
		start, count int64
	}
	var missing []run

	current := run{start: -1}
	for blk := startBlock; blk <= endBlock; blk++ {
		key := cache.Key{Path: b.name, Block: uint64(blk)} //nolint:gosec // block indices are non-negative
		if _, ok := b.cache.Get(key); ok {
			if current.start != -1 {
				missing = append(missing, current)
				current = run{start: -1}
			}
			continue
		}
		if current.start == -1 {
			current = run{start: blk, count: 1}
		} else {
			current.count++
		}
	}
	if current.start != -1 {
		missing = append(missing, current)
	}

	var g errgroup.Group
	g.SetLimit(16)
	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * b.blockSize
			byteSize := r.count * b.blockSize

			fileSize := b.Size()
			if byteStart >= fileSize {
				return nil
			}
			if byteStart+byteSize > fileSize {
				byteSize = fileSize - byteStart
			}

			buf := make([]byte, byteSize)
			n, err := b.inner.ReadAt(buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			for i := int64(0); i < r.count; i++ {
				from := i * b.blockSize
				if from >= int64(n) {
					break
				}
				to := min(from+b.blockSize, int64(n))

				block := make([]byte, to-from)
				copy(block, buf[from:to])
				b.cache.Set(cache.Key{Path: b.name, Block: uint64(r.start + i)}, block) //nolint:gosec // block indices are non-negative
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *cachingBlob) fetchBlock(blk int64) ([]byte, error) {
	key := cache.Key{Path: b.name, Block: uint64(blk)} //nolint:gosec // block indices are non-negative
	if block, ok := b.cache.Get(key); ok {
		return block, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	block := buf[:n]
	if n > 0 {
		b.cache.Set(key, block)
	}
	return block, nil
}
