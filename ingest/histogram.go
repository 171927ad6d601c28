package ingest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Histogram counts ingested documents by posting count. It backs the
// document length side-file that drives shard boundary tuning.
type Histogram struct {
	mu     sync.Mutex
	counts map[int]uint64
	total  uint64
}

// NewHistogram creates an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[int]uint64)}
}

// Record counts one document of the given posting count.
func (h *Histogram) Record(postingCount int) {
	h.mu.Lock()
	h.counts[postingCount]++
	h.total++
	h.mu.Unlock()
}

// Total returns the number of recorded documents.
func (h *Histogram) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// Write emits CSV lines of postingCount,documentCount in ascending
// posting count order.
func (h *Histogram) Write(w io.Writer) error {
	h.mu.Lock()
	lengths := make([]int, 0, len(h.counts))
	for l := range h.counts {
		lengths = append(lengths, l)
	}
	counts := make(map[int]uint64, len(h.counts))
	for l, c := range h.counts {
		counts[l] = c
	}
	h.mu.Unlock()

	sort.Ints(lengths)
	bw := bufio.NewWriter(w)
	for _, l := range lengths {
		if _, err := fmt.Fprintf(bw, "%d,%d\n", l, counts[l]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
