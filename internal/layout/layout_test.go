package layout

import (
	"bytes"
	"testing"

	"github.com/hupe1980/bitrow/internal/arena"
	"github.com/hupe1980/bitrow/schema"
	"github.com/hupe1980/bitrow/term"
)

func testFixtures(t *testing.T) (*schema.Schema, *term.StaticTable) {
	t.Helper()

	ds := schema.New()
	if _, err := ds.RegisterFixedSizeBlob(4); err != nil {
		t.Fatal(err)
	}
	ds.RegisterVariableSizeBlob()

	tt, err := term.NewStaticTable(term.StaticTableConfig{
		RowCounts: []uint32{8, 0, 4},
		RowRanks:  []term.Rank{0, 0, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	return ds, tt
}

// The fixture geometry at capacity 64: 16 bytes per doc table entry
// (4 fixed, padded, one 8-byte variable slot), 8 rank-0 rows of 8
// bytes, 4 rank-2 rows of 2 bytes and the trailing id word.
const fixtureBufferSize64 = 64*16 + 8*8 + 4*2 + 8

func TestNewSliceLayout(t *testing.T) {
	ds, tt := testFixtures(t)

	for _, capacity := range []int{0, -64, 63, 65} {
		if _, err := NewSliceLayout(capacity, ds, tt); err == nil {
			t.Fatalf("capacity %d was accepted", capacity)
		}
	}

	l, err := NewSliceLayout(64, ds, tt)
	if err != nil {
		t.Fatal(err)
	}
	if l.Capacity() != 64 {
		t.Fatalf("capacity=%d, want 64", l.Capacity())
	}
	if l.BufferSize() != fixtureBufferSize64 {
		t.Fatalf("buffer size=%d, want %d", l.BufferSize(), fixtureBufferSize64)
	}
	if got := BufferSizeForCapacity(64, ds, tt); got != l.BufferSize() {
		t.Fatalf("BufferSizeForCapacity=%d, layout says %d", got, l.BufferSize())
	}
	if l.MaxRank() != 2 {
		t.Fatalf("max rank=%d, want 2", l.MaxRank())
	}
	if got := l.RowTable(0).RowCount(); got != 8 {
		t.Fatalf("rank 0 rows=%d, want 8", got)
	}
	if got := l.RowTable(1).RowCount(); got != 0 {
		t.Fatalf("rank 1 rows=%d, want 0", got)
	}
}

func TestCapacityForByteSize(t *testing.T) {
	ds, tt := testFixtures(t)

	if _, err := CapacityForByteSize(fixtureBufferSize64-1, ds, tt); err == nil {
		t.Fatal("budget below the minimum capacity was accepted")
	}

	capacity, err := CapacityForByteSize(fixtureBufferSize64, ds, tt)
	if err != nil || capacity != 64 {
		t.Fatalf("got %d, %v, want 64", capacity, err)
	}

	budget128 := BufferSizeForCapacity(128, ds, tt)
	capacity, err = CapacityForByteSize(budget128, ds, tt)
	if err != nil || capacity != 128 {
		t.Fatalf("got %d, %v, want 128", capacity, err)
	}
	capacity, err = CapacityForByteSize(budget128-1, ds, tt)
	if err != nil || capacity != 64 {
		t.Fatalf("got %d, %v, want 64", capacity, err)
	}
}

func TestSliceIdAndReset(t *testing.T) {
	ds, tt := testFixtures(t)
	l, err := NewSliceLayout(64, ds, tt)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, l.BufferSize())
	l.WriteSliceId(buf, 0xfeedface)
	if got := ReadSliceId(buf); got != 0xfeedface {
		t.Fatalf("slice id=%#x, want 0xfeedface", got)
	}

	l.RowTable(0).SetBit(buf, 3, 17)
	copy(l.DocTable().FixedBlob(buf, 0, 0), []byte{1, 2, 3, 4})

	l.Reset(buf)
	if l.RowTable(0).Bit(buf, 3, 17) {
		t.Fatal("row bit survived reset")
	}
	if !bytes.Equal(l.DocTable().FixedBlob(buf, 0, 0), []byte{0, 0, 0, 0}) {
		t.Fatal("doc table bytes survived reset")
	}
	if got := ReadSliceId(buf); got != 0xfeedface {
		t.Fatalf("slice id=%#x after reset, want 0xfeedface", got)
	}
}

func TestRowTableBits(t *testing.T) {
	ds, tt := testFixtures(t)
	l, err := NewSliceLayout(64, ds, tt)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, l.BufferSize())

	r0 := l.RowTable(0)
	r0.SetBit(buf, 2, 5)
	if !r0.Bit(buf, 2, 5) {
		t.Fatal("rank 0 bit not set")
	}
	if r0.Bit(buf, 2, 6) || r0.Bit(buf, 3, 5) {
		t.Fatal("neighboring rank 0 bit set")
	}
	r0.ClearBit(buf, 2, 5)
	if r0.Bit(buf, 2, 5) {
		t.Fatal("rank 0 bit survived clear")
	}

	// At rank 2 one bit covers four adjacent columns.
	r2 := l.RowTable(2)
	r2.SetBit(buf, 1, 5)
	for doc := 4; doc < 8; doc++ {
		if !r2.Bit(buf, 1, doc) {
			t.Fatalf("rank 2 bit for column %d not set", doc)
		}
	}
	if r2.Bit(buf, 1, 3) || r2.Bit(buf, 1, 8) {
		t.Fatal("rank 2 bit leaked outside its column group")
	}
}

func TestDocTableBlobs(t *testing.T) {
	ds, tt := testFixtures(t)
	l, err := NewSliceLayout(64, ds, tt)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, l.BufferSize())
	dt := l.DocTable()

	copy(dt.FixedBlob(buf, 0, 0), []byte{0xde, 0xad, 0xbe, 0xef})
	copy(dt.FixedBlob(buf, 1, 0), []byte{1, 1, 1, 1})
	if !bytes.Equal(dt.FixedBlob(buf, 0, 0), []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatal("fixed blob did not round-trip")
	}

	a, err := arena.New(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free()

	if got := dt.VariableBlob(buf, a, 0, 0); got != nil {
		t.Fatalf("unset variable blob=%v, want nil", got)
	}

	data, err := dt.AllocateVariableBlob(buf, a, 0, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	copy(data, "hello puma")

	got := dt.VariableBlob(buf, a, 0, 0)
	if string(got) != "hello puma" {
		t.Fatalf("variable blob=%q", got)
	}
	if dt.VariableBlob(buf, a, 1, 0) != nil {
		t.Fatal("other document saw the blob")
	}
}
