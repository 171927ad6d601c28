package blobstore

import (
	"context"
	"testing"

	"github.com/hupe1980/bitrow/internal/cache"
)

func BenchmarkCachingStoreReadAt(b *testing.B) {
	ctx := context.Background()
	inner := NewMemoryStore()
	data := make([]byte, 1<<20)
	if err := inner.Put(ctx, "bench", data); err != nil {
		b.Fatal(err)
	}

	store := NewCachingStore(inner, cache.NewLRU(4<<20, nil), 4096)
	blob, err := store.Open(ctx, "bench")
	if err != nil {
		b.Fatal(err)
	}
	defer blob.Close()

	buf := make([]byte, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		off := int64(i*4096) % (1 << 20)
		if _, err := blob.ReadAt(buf, off); err != nil {
			b.Fatal(err)
		}
	}
}
