package cache

import (
	"hash/maphash"
	"sync"

	"github.com/hupe1980/bitrow/resource"
)

const numShards = 64

// Sharded distributes an LRU over 64 shards to cut lock contention
// under concurrent readers.
type Sharded struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

// NewSharded creates a sharded LRU. The byte capacity is split evenly
// across the shards.
func NewSharded(capacity int64, rc *resource.Controller) *Sharded {
	shardCapacity := capacity / numShards
	if shardCapacity < 1 {
		shardCapacity = 1
	}

	s := &Sharded{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i] = NewLRU(shardCapacity, rc)
	}
	return s
}

func (s *Sharded) shard(key Key) *LRU {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(key.Path)

	var buf [8]byte
	for i := range buf {
		buf[i] = byte(key.Block >> (8 * i))
	}
	_, _ = h.Write(buf[:])

	return s.shards[h.Sum64()%numShards]
}

// Get returns a cached block.
func (s *Sharded) Get(key Key) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches a block.
func (s *Sharded) Set(key Key, b []byte) {
	s.shard(key).Set(key, b)
}

// Invalidate removes entries matching the predicate from every shard.
func (s *Sharded) Invalidate(predicate func(key Key) bool) {
	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range s.shards {
		go func(shard *LRU) {
			defer wg.Done()
			shard.Invalidate(predicate)
		}(s.shards[i])
	}
	wg.Wait()
}

// Stats returns aggregated hit and miss counts.
func (s *Sharded) Stats() (hits, misses int64) {
	for i := range s.shards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total cached bytes across shards.
func (s *Sharded) Size() int64 {
	var total int64
	for i := range s.shards {
		total += s.shards[i].Size()
	}
	return total
}
