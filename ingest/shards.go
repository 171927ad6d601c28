package ingest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/bitrow/index"
)

// ErrBoundaries is returned when shard boundaries are not strictly
// increasing positive posting counts.
var ErrBoundaries = errors.New("ingest: shard boundaries must be strictly increasing and positive")

// Boundaries is a ShardDefinition over sorted posting count limits.
// Shard i holds documents with fewer postings than limit i; the last
// shard is unbounded. No limits means a single shard.
type Boundaries struct {
	limits []int
}

var _ ShardDefinition = Boundaries{}

// NewBoundaries validates and builds a boundary definition.
func NewBoundaries(limits ...int) (Boundaries, error) {
	for i, l := range limits {
		if l <= 0 || (i > 0 && l <= limits[i-1]) {
			return Boundaries{}, fmt.Errorf("%w: %v", ErrBoundaries, limits)
		}
	}
	return Boundaries{limits: limits}, nil
}

// ShardCount returns the number of shards, one more than the limit
// count.
func (b Boundaries) ShardCount() int {
	return len(b.limits) + 1
}

// ShardFor returns the shard whose length class covers postingCount.
func (b Boundaries) ShardFor(postingCount int) index.ShardId {
	i := sort.SearchInts(b.limits, postingCount+1)
	return index.ShardId(i) //nolint:gosec // bounded by len(limits)
}
