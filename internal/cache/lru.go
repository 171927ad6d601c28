package cache

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/bitrow/resource"
)

// blockNode is one cached side-file block with its recency links.
// Nodes are intrusive so moving a block on the recency chain never
// allocates.
type blockNode struct {
	key   Key
	block []byte

	newer *blockNode
	older *blockNode
}

// LRU is a byte-bounded cache for immutable blob blocks, typically
// decompressed statistics side-file reads. When a resource controller
// is set, cached bytes are charged against its memory budget; a block
// the budget rejects is dropped rather than blocking the reader that
// produced it.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	blocks   map[Key]*blockNode

	// newest and oldest bound the recency chain. Eviction always
	// takes the oldest block.
	newest *blockNode
	oldest *blockNode

	rc *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRU creates an LRU cache holding up to capacity bytes.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity: capacity,
		blocks:   make(map[Key]*blockNode),
		rc:       rc,
	}
}

// Get returns a cached block and refreshes its recency.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.blocks[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.touch(n)
	return n.block, true
}

// Set caches a block. Blocks larger than the whole cache and blocks
// the memory budget rejects are silently not cached.
func (c *LRU) Set(key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.blocks[key]; ok {
		c.replace(n, b)
		return
	}

	want := int64(len(b))
	if want > c.capacity {
		return
	}
	// Evicting first hands the freed bytes back to the budget before
	// the new block asks for its own.
	for c.size+want > c.capacity && c.oldest != nil {
		c.drop(c.oldest)
	}
	if !c.rc.TryAcquireMemory(want) {
		return
	}

	n := &blockNode{key: key, block: b}
	c.blocks[key] = n
	c.pushNewest(n)
	c.size += want
}

// replace swaps the payload of an already-cached block, reconciling
// the byte accounting with the size difference.
func (c *LRU) replace(n *blockNode, b []byte) {
	c.touch(n)

	have := int64(len(n.block))
	want := int64(len(b))
	switch {
	case want > have:
		if !c.rc.TryAcquireMemory(want - have) {
			return
		}
	case want < have:
		c.rc.ReleaseMemory(have - want)
	}

	n.block = b
	c.size += want - have
	for c.size > c.capacity && c.oldest != nil {
		c.drop(c.oldest)
	}
}

// Invalidate removes blocks matching the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []*blockNode
	for key, n := range c.blocks {
		if predicate(key) {
			doomed = append(doomed, n)
		}
	}
	for _, n := range doomed {
		c.drop(n)
	}
}

// Stats returns hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached byte count.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *LRU) touch(n *blockNode) {
	if c.newest == n {
		return
	}
	c.unlink(n)
	c.pushNewest(n)
}

func (c *LRU) pushNewest(n *blockNode) {
	n.older = c.newest
	n.newer = nil
	if c.newest != nil {
		c.newest.newer = n
	}
	c.newest = n
	if c.oldest == nil {
		c.oldest = n
	}
}

func (c *LRU) unlink(n *blockNode) {
	if n.newer != nil {
		n.newer.older = n.older
	} else {
		c.newest = n.older
	}
	if n.older != nil {
		n.older.newer = n.newer
	} else {
		c.oldest = n.newer
	}
	n.newer, n.older = nil, nil
}

func (c *LRU) drop(n *blockNode) {
	c.unlink(n)
	delete(c.blocks, n.key)
	freed := int64(len(n.block))
	c.size -= freed
	c.rc.ReleaseMemory(freed)
}
