// Package cache provides byte-oriented block caches for immutable
// blob reads, keyed by blob name and block index.
package cache

// Key identifies one cached block of a named blob.
type Key struct {
	Path  string
	Block uint64
}

// BlockCache is a cache for immutable blocks. Returned slices must be
// treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok is false when missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a block. The cache retains b; callers must not mutate
	// it afterwards.
	Set(key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)
	// Stats returns hit and miss counts.
	Stats() (hits, misses int64)
}
