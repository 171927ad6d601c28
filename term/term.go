// Package term defines the hashed term handle, row identifiers and the
// term table contract that maps terms to the bit rows they touch.
package term

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// StreamId identifies the document stream a term was drawn from
// (e.g. body, title, anchor text).
type StreamId uint8

// GramSize is the number of adjacent words combined into a single term.
type GramSize uint8

// Rank is the power-of-two compression factor of a row table.
// At rank r, one row bit covers 2^r documents.
type Rank uint8

// MaxRank is the highest rank a row table may use.
const MaxRank Rank = 6

// MaxGramSize is the largest n-gram span a term may cover.
const MaxGramSize GramSize = 8

// Term is an opaque hashed handle for a single token or n-gram.
// Terms are immutable value types; equality is hash equality.
type Term struct {
	Hash     uint64
	StreamId StreamId
	GramSize GramSize
}

// New creates a term for a single token in the given stream.
// The hash is salted with the stream id so that the same token
// in different streams yields distinct terms.
func New(text string, stream StreamId) Term {
	return Term{
		Hash:     hashToken(text, stream),
		StreamId: stream,
		GramSize: 1,
	}
}

// Extend combines t with the term of the next word in a phrase,
// producing the n-gram term covering both. Gram size saturates at
// MaxGramSize.
func (t Term) Extend(next Term) Term {
	size := t.GramSize + next.GramSize
	if size > MaxGramSize {
		size = MaxGramSize
	}
	return Term{
		Hash:     combineHashes(t.Hash, next.Hash),
		StreamId: t.StreamId,
		GramSize: size,
	}
}

func hashToken(text string, stream StreamId) uint64 {
	h := murmur3.New64WithSeed(uint32(stream) + 1)
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

func combineHashes(left, right uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], left)
	binary.LittleEndian.PutUint64(buf[8:16], right)
	return murmur3.Sum64(buf[:])
}

// RowId addresses one row in the row tables of a slice. The index is
// rank-local: row 3 at rank 0 and row 3 at rank 2 are different rows.
type RowId struct {
	Rank  Rank
	Index uint32
}
