package cache

import (
	"fmt"
	"testing"

	"github.com/hupe1980/bitrow/resource"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU(1024, nil)

	if _, ok := c.Get(Key{Path: "a", Block: 0}); ok {
		t.Fatal("empty cache returned a block")
	}

	c.Set(Key{Path: "a", Block: 0}, []byte("block zero"))
	b, ok := c.Get(Key{Path: "a", Block: 0})
	if !ok || string(b) != "block zero" {
		t.Fatalf("got %q, %v", b, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", hits, misses)
	}

	if got := c.Size(); got != 10 {
		t.Fatalf("size=%d, want 10", got)
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU(30, nil)

	for i := uint64(0); i < 3; i++ {
		c.Set(Key{Path: "a", Block: i}, make([]byte, 10))
	}

	// Touch block 0 so block 1 is the least recently used.
	if _, ok := c.Get(Key{Path: "a", Block: 0}); !ok {
		t.Fatal("block 0 missing")
	}

	c.Set(Key{Path: "a", Block: 3}, make([]byte, 10))

	if _, ok := c.Get(Key{Path: "a", Block: 1}); ok {
		t.Fatal("least recently used block survived eviction")
	}
	if _, ok := c.Get(Key{Path: "a", Block: 0}); !ok {
		t.Fatal("recently used block was evicted")
	}
	if got := c.Size(); got != 30 {
		t.Fatalf("size=%d, want 30", got)
	}
}

func TestLRUOversizedBlock(t *testing.T) {
	c := NewLRU(10, nil)

	c.Set(Key{Path: "a", Block: 0}, make([]byte, 11))
	if _, ok := c.Get(Key{Path: "a", Block: 0}); ok {
		t.Fatal("block larger than capacity was cached")
	}
	if got := c.Size(); got != 0 {
		t.Fatalf("size=%d, want 0", got)
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	c := NewLRU(100, nil)
	key := Key{Path: "a", Block: 0}

	c.Set(key, make([]byte, 40))
	c.Set(key, make([]byte, 10))
	if got := c.Size(); got != 10 {
		t.Fatalf("size=%d after shrink, want 10", got)
	}

	c.Set(key, make([]byte, 60))
	if got := c.Size(); got != 60 {
		t.Fatalf("size=%d after grow, want 60", got)
	}
}

func TestLRUInvalidate(t *testing.T) {
	c := NewLRU(1024, nil)
	c.Set(Key{Path: "a", Block: 0}, []byte("a0"))
	c.Set(Key{Path: "a", Block: 1}, []byte("a1"))
	c.Set(Key{Path: "b", Block: 0}, []byte("b0"))

	c.Invalidate(func(key Key) bool { return key.Path == "a" })

	if _, ok := c.Get(Key{Path: "a", Block: 0}); ok {
		t.Fatal("invalidated block survived")
	}
	if _, ok := c.Get(Key{Path: "b", Block: 0}); !ok {
		t.Fatal("unrelated block was dropped")
	}
	if got := c.Size(); got != 2 {
		t.Fatalf("size=%d, want 2", got)
	}
}

func TestLRUMemoryBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 15})
	c := NewLRU(1024, rc)

	c.Set(Key{Path: "a", Block: 0}, make([]byte, 10))
	if _, ok := c.Get(Key{Path: "a", Block: 0}); !ok {
		t.Fatal("block within budget was not cached")
	}

	c.Set(Key{Path: "a", Block: 1}, make([]byte, 10))
	if _, ok := c.Get(Key{Path: "a", Block: 1}); ok {
		t.Fatal("block over budget was cached")
	}

	c.Invalidate(func(Key) bool { return true })
	if got := rc.MemoryUsage(); got != 0 {
		t.Fatalf("memory usage=%d after invalidate, want 0", got)
	}
}

func TestSharded(t *testing.T) {
	s := NewSharded(64*1024, nil)

	for i := 0; i < 100; i++ {
		s.Set(Key{Path: fmt.Sprintf("blob-%d", i%5), Block: uint64(i)}, []byte{byte(i)})
	}
	for i := 0; i < 100; i++ {
		b, ok := s.Get(Key{Path: fmt.Sprintf("blob-%d", i%5), Block: uint64(i)})
		if !ok || b[0] != byte(i) {
			t.Fatalf("block %d: got %v, %v", i, b, ok)
		}
	}

	if got := s.Size(); got != 100 {
		t.Fatalf("size=%d, want 100", got)
	}
	hits, misses := s.Stats()
	if hits != 100 || misses != 0 {
		t.Fatalf("hits=%d misses=%d, want 100/0", hits, misses)
	}

	s.Invalidate(func(key Key) bool { return key.Path == "blob-0" })
	if _, ok := s.Get(Key{Path: "blob-0", Block: 0}); ok {
		t.Fatal("invalidated block survived")
	}
	if _, ok := s.Get(Key{Path: "blob-1", Block: 1}); !ok {
		t.Fatal("unrelated block was dropped")
	}
}
