package term

import (
	"errors"
	"fmt"
)

var (
	// ErrRowCountTooSmall is returned when a rank is configured with
	// fewer rows than the table needs for its reserved rows.
	ErrRowCountTooSmall = errors.New("term: row count too small")
	// ErrRankOutOfRange is returned when a configured rank exceeds MaxRank.
	ErrRankOutOfRange = errors.New("term: rank out of range")
)

// Table is the read-only oracle mapping a term to the rows its
// postings touch. Implementations must be safe for concurrent use.
type Table interface {
	// RowIds returns the ordered row sequence for t. The returned
	// slice must not be mutated by the caller.
	RowIds(t Term) []RowId

	// DocumentActiveTerm returns the distinguished term whose single
	// rank-0 row marks documents that are not soft-deleted.
	DocumentActiveTerm() Term

	// TotalRowCount returns the number of rows at the given rank.
	TotalRowCount(r Rank) uint32

	// MaxRankUsed returns the highest rank with a nonzero row count.
	MaxRankUsed() Rank
}

// documentActiveTerm is a reserved term that no token hash can collide
// with in practice; its single row is row 0 at rank 0.
var documentActiveTerm = Term{Hash: 0, StreamId: 0, GramSize: 0}

// StaticTable is a deterministic in-memory Table. Rows are assigned by
// rehashing the term hash once per posting row, spread across the
// configured ranks. Row 0 at rank 0 is reserved for the document
// active term.
type StaticTable struct {
	rowCounts [MaxRank + 1]uint32
	rowRanks  []Rank
	maxRank   Rank
}

// StaticTableConfig configures a StaticTable.
type StaticTableConfig struct {
	// RowCounts holds the number of rows per rank, index = rank.
	// Ranks beyond the slice length have zero rows.
	RowCounts []uint32

	// RowRanks lists the rank of each posting row assigned to a term,
	// in row-sequence order. Every listed rank needs a nonzero row
	// count. If empty, every term gets three rank-0 rows.
	RowRanks []Rank
}

// NewStaticTable creates a StaticTable from cfg.
func NewStaticTable(cfg StaticTableConfig) (*StaticTable, error) {
	t := &StaticTable{}

	if len(cfg.RowCounts) > int(MaxRank)+1 {
		return nil, fmt.Errorf("%w: %d ranks configured", ErrRankOutOfRange, len(cfg.RowCounts))
	}
	for r, count := range cfg.RowCounts {
		t.rowCounts[r] = count
		if count > 0 {
			t.maxRank = Rank(r) //nolint:gosec // bounded by MaxRank above
		}
	}

	t.rowRanks = cfg.RowRanks
	if len(t.rowRanks) == 0 {
		t.rowRanks = []Rank{0, 0, 0}
	}
	for _, r := range t.rowRanks {
		if r > MaxRank {
			return nil, fmt.Errorf("%w: rank %d", ErrRankOutOfRange, r)
		}
		need := uint32(1)
		if r == 0 {
			// Row 0 is reserved, so rank 0 needs at least one more.
			need = 2
		}
		if t.rowCounts[r] < need {
			return nil, fmt.Errorf("%w: rank %d has %d rows", ErrRowCountTooSmall, r, t.rowCounts[r])
		}
	}
	if t.rowCounts[0] < 1 {
		return nil, fmt.Errorf("%w: rank 0 needs the document active row", ErrRowCountTooSmall)
	}

	return t, nil
}

// RowIds implements Table.
func (t *StaticTable) RowIds(term Term) []RowId {
	if term == documentActiveTerm {
		return []RowId{{Rank: 0, Index: 0}}
	}

	rows := make([]RowId, len(t.rowRanks))
	for i, rank := range t.rowRanks {
		h := rehash(term.Hash, uint64(i))
		count := t.rowCounts[rank]
		var idx uint32
		if rank == 0 {
			idx = 1 + uint32(h%uint64(count-1))
		} else {
			idx = uint32(h % uint64(count))
		}
		rows[i] = RowId{Rank: rank, Index: idx}
	}
	return rows
}

// DocumentActiveTerm implements Table.
func (t *StaticTable) DocumentActiveTerm() Term {
	return documentActiveTerm
}

// TotalRowCount implements Table.
func (t *StaticTable) TotalRowCount(r Rank) uint32 {
	if r > MaxRank {
		return 0
	}
	return t.rowCounts[r]
}

// MaxRankUsed implements Table.
func (t *StaticTable) MaxRankUsed() Rank {
	return t.maxRank
}

// rehash mixes a row ordinal into a term hash. Finalizer from
// murmur3; good avalanche for sequential ordinals.
func rehash(h, salt uint64) uint64 {
	h ^= salt * 0x9e3779b97f4a7c15
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
