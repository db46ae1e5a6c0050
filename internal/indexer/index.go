// Package indexer implements Component B: a parallel, delimiter-aware,
// quote-aware scanner that records the byte offset of every field in a
// delimited text file. It is the teacher's Scanner
// (entreya-csvquery/internal/indexer/scanner.go), generalized from
// "extract N key columns for a side-index" to "record every field offset
// for the column store".
package indexer

import (
	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
)

// Newline is the line-terminator convention detected for a file: the
// first newline seen defines it for the whole read, per spec §6.
type Newline string

const (
	NewlineLF   Newline = "\n"
	NewlineCRLF Newline = "\r\n"
)

// Index is the immutable, built-once table of field offsets over a
// ByteRegion (spec §3). For R data records and C columns it holds
// R*C+1 offsets; field (r, c) occupies
// [Offsets[r*C+c], Offsets[r*C+c+1] - sepWidth).
type Index struct {
	Region *common.ByteRegion

	Columns []string
	NumCols int
	NumRows int64

	// Offsets[i] is the start byte of field i (row-major, r*NumCols+c);
	// Offsets[len(Offsets)-1] is a trailing sentinel.
	Offsets []int64
	// sepWidths[i] is the number of trailing separator/newline bytes to
	// strip from field i's raw span to get its content.
	sepWidths []uint8
	// escaped marks fields whose raw bytes contained an escape sequence
	// that must be undone before use (quote doubling or backslash
	// escapes), per the character-optimization rule in spec §4.5.
	escaped bitset

	HeaderRange [2]int64
	Delim       byte
	Quote       byte
	HasQuote    bool
	Newline     Newline

	// ColumnCountMismatches counts rows whose field count deviated from
	// NumCols (right-padded or truncated per spec §4.2).
	ColumnCountMismatches int64

	Problems *errs.ProblemLog
}

// FieldRange returns the half-open content range [lo, hi) for field
// (row, col), with the field's separator already excluded.
func (ix *Index) FieldRange(row int64, col int) (lo, hi int) {
	i := row*int64(ix.NumCols) + int64(col)
	lo64 := ix.Offsets[i]
	hi64 := ix.Offsets[i+1] - int64(ix.sepWidths[i])
	if hi64 < lo64 {
		hi64 = lo64
	}
	return int(lo64), int(hi64)
}

// Field returns the raw content bytes for field (row, col). The returned
// slice aliases the Index's ByteRegion.
func (ix *Index) Field(row int64, col int) []byte {
	lo, hi := ix.FieldRange(row, col)
	return ix.Region.Slice(lo, hi)
}

// WasEscaped reports whether field (row, col) contained an escape
// sequence that must be undone before use.
func (ix *Index) WasEscaped(row int64, col int) bool {
	return ix.escaped.get(row*int64(ix.NumCols) + int64(col))
}

// bitset is a flat, growable bit array, the same uint64-word shape the
// teacher's simd bitmaps use.
type bitset struct {
	words []uint64
}

func newBitset(n int64) bitset {
	return bitset{words: make([]uint64, (n+63)/64)}
}

func (b *bitset) set(i int64) {
	word := i >> 6
	if word >= int64(len(b.words)) {
		grown := make([]uint64, word+1)
		copy(grown, b.words)
		b.words = grown
	}
	b.words[word] |= 1 << uint(i&63)
}

func (b bitset) get(i int64) bool {
	word := i >> 6
	if word >= int64(len(b.words)) {
		return false
	}
	return b.words[word]&(1<<uint(i&63)) != 0
}

// Config re-exports the delimited read configuration the indexer consumes.
type Config = config.ReadConfig
