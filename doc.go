// Package bitrow provides the ingestion core of an embedded
// signature-file search index for Go.
//
// Documents are routed by posting count into shards, packed as bit
// columns into fixed-capacity slices and soft-deleted by clearing a
// per-document active bit. Production-ready features include:
//
//   - Shards partitioned by document length class with derived slice
//     geometry
//   - Lock-free reader snapshots: copy-on-write slice buffer lists
//     published atomically, reclaimed through reader tokens
//   - Background recycling of expired slices with pooled buffer reuse
//   - Per-document fixed and variable-size payload blobs
//   - Term frequency statistics with compressed side-files (lz4, zstd)
//     over pluggable blob stores (local mmap, S3, MinIO, in-memory)
//   - Boolean match-query parser (and/or/not, phrases, stream
//     prefixes)
//   - Memory, IO and background-worker budgets via a resource
//     controller
//
// # Quick Start
//
// Build an index over a term table and document schema:
//
//	idx, err := bitrow.New(bitrow.Config{
//	    TermTable:       table,
//	    Schema:          docSchema,
//	    SliceBufferSize: 1 << 20,
//	    ShardBoundaries: []int{64, 512},
//	}, bitrow.WithStatistics(true))
//	if err != nil {
//	    panic(err)
//	}
//	defer idx.Close(context.Background())
//
// Ingest and delete documents:
//
//	if err := idx.Add(42, doc); err != nil { ... }
//	found := idx.Delete(42)
//
// Readers snapshot shard state under a token:
//
//	t, err := idx.Tokens().RequestToken()
//	if err != nil { ... }
//	defer t.Close()
//	buffers := idx.Shard(0).SliceBuffers()
//
// Write statistics side-files through a blob store:
//
//	store := blobstore.NewLocalStore("./stats")
//	fm := filemanager.New(store)
//	err = idx.WriteStatistics(ctx, fm)
package bitrow
