// Package statistics collects corpus statistics during ingestion:
// per-term document frequencies, cumulative term counts and an indexed
// IDF table. The side-files it produces feed term table construction.
package statistics

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/bitrow/term"
)

// Builder accumulates term/document postings for one shard. Safe for
// concurrent use; ingestion threads record under a single mutex that
// is contended only while statistics collection is enabled.
type Builder struct {
	mu       sync.Mutex
	postings map[term.Term]*roaring64.Bitmap
	docs     *roaring64.Bitmap
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		postings: make(map[term.Term]*roaring64.Bitmap),
		docs:     roaring64.New(),
	}
}

// RecordDocument notes that doc entered the shard.
func (b *Builder) RecordDocument(doc uint64) {
	b.mu.Lock()
	b.docs.Add(doc)
	b.mu.Unlock()
}

// RecordPosting notes that doc contains t. Duplicate postings for the
// same document collapse; document frequency counts documents, not
// occurrences.
func (b *Builder) RecordPosting(t term.Term, doc uint64) {
	b.mu.Lock()
	bm, ok := b.postings[t]
	if !ok {
		bm = roaring64.New()
		b.postings[t] = bm
	}
	bm.Add(doc)
	b.mu.Unlock()
}

// DocumentCount returns the number of distinct documents recorded.
func (b *Builder) DocumentCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docs.GetCardinality()
}

// TermCount returns the number of distinct terms recorded.
func (b *Builder) TermCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.postings)
}

// Snapshot freezes the current counts into a Table. The builder keeps
// accumulating afterwards.
func (b *Builder) Snapshot() *Table {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]Entry, 0, len(b.postings))
	for t, bm := range b.postings {
		entries = append(entries, Entry{Term: t, Count: bm.GetCardinality()})
	}
	return newTable(entries, b.docs.GetCardinality())
}
