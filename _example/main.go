package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hupe1980/bitrow"
	"github.com/hupe1980/bitrow/blobstore"
	"github.com/hupe1980/bitrow/filemanager"
	"github.com/hupe1980/bitrow/index"
	"github.com/hupe1980/bitrow/resource"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
)

// textDoc splits its body on whitespace and writes one posting per
// token.
type textDoc struct {
	body string
}

func (d textDoc) PostingCount() int {
	return len(strings.Fields(d.body))
}

func (d textDoc) Ingest(h index.DocumentHandle) error {
	for _, tok := range strings.Fields(d.body) {
		h.AddPosting(term.New(tok, 0))
	}
	return nil
}

func main() {
	table, err := term.NewStaticTable(term.StaticTableConfig{
		RowCounts: []uint32{64},
	})
	if err != nil {
		log.Fatal(err)
	}

	metrics := &bitrow.BasicMetricsCollector{}
	idx, err := bitrow.New(bitrow.Config{
		TermTable:       table,
		Schema:          schema.New(),
		SliceBufferSize: 1 << 20,
		ShardBoundaries: []int{8, 64},
	},
		bitrow.WithStatistics(true),
		bitrow.WithMetricsCollector(metrics),
		bitrow.WithResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes:     256 << 20,
			MaxBackgroundWorkers: 2,
		})),
	)
	if err != nil {
		log.Fatal(err)
	}

	docs := []string{
		"the quick brown fox jumps over the lazy dog",
		"pack my box with five dozen liquor jugs",
		"sphinx of black quartz judge my vow",
	}

	start := time.Now()
	for i, body := range docs {
		if err := idx.Add(index.DocId(i+1), textDoc{body: body}); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("ingested %d documents in %v across %d shards\n",
		idx.DocumentCount(), time.Since(start), idx.ShardCount())
	fmt.Printf("slice buffer bytes in use: %d\n", idx.UsedCapacityInBytes())

	node, err := idx.ParseQuery(`quick & ("brown fox" | jugs)`)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("parsed query:", node)

	if idx.Delete(2) {
		fmt.Println("document 2 deleted")
	}

	ctx := context.Background()
	store := blobstore.NewLocalStore("./bitrow-stats")
	if err := idx.WriteStatistics(ctx, filemanager.New(store)); err != nil {
		log.Fatal(err)
	}
	names, err := store.List(ctx, "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("statistics side-files:")
	for _, name := range names {
		fmt.Println("  ", name)
	}

	stats := metrics.GetStats()
	fmt.Printf("adds=%d (avg %s) deletes=%d\n",
		stats.AddCount, time.Duration(stats.AddAvgNanos), stats.DeleteCount)

	if err := idx.Close(ctx); err != nil {
		log.Fatal(err)
	}
}
