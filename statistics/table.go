package statistics

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/bitrow/term"
)

// Entry is one row of a document frequency table.
type Entry struct {
	Term  term.Term
	Count uint64
}

// Frequency returns the entry's document frequency relative to a
// corpus of docCount documents.
func (e Entry) Frequency(docCount uint64) float64 {
	if docCount == 0 {
		return 0
	}
	return float64(e.Count) / float64(docCount)
}

// Idf returns the entry's inverse document frequency. Zero counts
// yield zero.
func (e Entry) Idf(docCount uint64) float64 {
	if e.Count == 0 || docCount == 0 {
		return 0
	}
	return math.Log10(float64(docCount) / float64(e.Count))
}

// Table is a frozen document frequency table, sorted by descending
// count with term hash as tiebreaker for deterministic output.
type Table struct {
	entries  []Entry
	docCount uint64
}

func newTable(entries []Entry, docCount uint64) *Table {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Term.Hash < entries[j].Term.Hash
	})
	return &Table{entries: entries, docCount: docCount}
}

// Entries returns the sorted entries. The slice must not be mutated.
func (t *Table) Entries() []Entry {
	return t.entries
}

// DocumentCount returns the corpus size behind the table.
func (t *Table) DocumentCount() uint64 {
	return t.docCount
}

// WriteDocFreq writes the table as CSV lines of
// hash,stream,gram,count,frequency.
func (t *Table) WriteDocFreq(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range t.entries {
		_, err := fmt.Fprintf(bw, "%016x,%d,%d,%d,%g\n",
			e.Term.Hash, e.Term.StreamId, e.Term.GramSize, e.Count, e.Frequency(t.docCount))
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCumulativeCounts writes one CSV line per entry in descending
// count order: ordinal, count at that ordinal and the running total of
// postings down to it.
func (t *Table) WriteCumulativeCounts(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var total uint64
	for i, e := range t.entries {
		total += e.Count
		if _, err := fmt.Fprintf(bw, "%d,%d,%d\n", i, e.Count, total); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteIndexedIdf writes CSV lines of hash,stream,gram,idf where idf
// is quantized to one decimal place.
func (t *Table) WriteIndexedIdf(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range t.entries {
		idf := math.Round(e.Idf(t.docCount)*10) / 10
		_, err := fmt.Fprintf(bw, "%016x,%d,%d,%.1f\n",
			e.Term.Hash, e.Term.StreamId, e.Term.GramSize, idf)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadDocFreq parses a table written by WriteDocFreq. The document
// count is not stored in the file and must be supplied by the caller.
func ReadDocFreq(r io.Reader, docCount uint64) (*Table, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 5 {
			return nil, fmt.Errorf("statistics: malformed doc freq line %q", line)
		}
		hash, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("statistics: bad term hash %q: %w", fields[0], err)
		}
		stream, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("statistics: bad stream id %q: %w", fields[1], err)
		}
		gram, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("statistics: bad gram size %q: %w", fields[2], err)
		}
		count, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("statistics: bad count %q: %w", fields[3], err)
		}
		entries = append(entries, Entry{
			Term: term.Term{
				Hash:     hash,
				StreamId: term.StreamId(stream),
				GramSize: term.GramSize(gram),
			},
			Count: count,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return newTable(entries, docCount), nil
}
