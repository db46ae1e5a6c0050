package indexer

import (
	"bytes"
	"math/bits"

	"github.com/csvquery/csvquery/internal/errs"
	"github.com/csvquery/csvquery/internal/simd"
)

// candidateDelims is the ordered set spec §4.2 names.
var candidateDelims = []byte{',', '\t', '|', ';', ':'}

const sampleBytes = 8192

// guessDelimiter samples the first few kilobytes of data (outside quoted
// regions) and picks the candidate with the highest constant per-line
// count across at least two sample lines.
func guessDelimiter(data []byte, quote byte) (byte, error) {
	n := len(data)
	if n > sampleBytes {
		n = sampleBytes
	}
	sample := data[:n]

	lines := splitUnquotedLines(sample, quote)
	var nonEmpty [][]byte
	for _, l := range lines {
		if len(bytes.TrimSpace(l)) == 0 {
			continue
		}
		// drop quoted spans so a delimiter inside a quoted field is not counted.
		kept := make([]byte, 0, len(l))
		inQuote := false
		for _, b := range l {
			if quote != 0 && b == quote {
				inQuote = !inQuote
				continue
			}
			if !inQuote {
				kept = append(kept, b)
			}
		}
		nonEmpty = append(nonEmpty, kept)
	}
	if len(nonEmpty) == 0 {
		return 0, errs.New(errs.DelimiterUnknown, "no non-empty sample lines")
	}

	bestDelim := byte(0)
	bestCount := -1

	for _, d := range candidateDelims {
		counts := make([]int, 0, len(nonEmpty))
		for _, l := range nonEmpty {
			counts = append(counts, countByte(l, d))
		}
		constCount, ok := constantAcrossTwoOrMore(counts)
		if !ok || constCount == 0 {
			continue
		}
		if constCount > bestCount {
			bestCount = constCount
			bestDelim = d
		}
	}

	if bestDelim == 0 {
		return 0, errs.New(errs.DelimiterUnknown, "no candidate delimiter had a constant per-line count")
	}
	return bestDelim, nil
}

// countByte counts occurrences of b in line via internal/simd's structural
// bitmap scan (the SWAR fast path on amd64) instead of bytes.Count, so
// delimiter guessing shares the same byte-scanning primitive the
// per-chunk parallel boundary search uses.
func countByte(line []byte, b byte) int {
	words := (len(line) + 63) / 64
	if words == 0 {
		return 0
	}
	hits := make([]uint64, words)
	scratch1 := make([]uint64, words)
	scratch2 := make([]uint64, words)
	simd.ScanWithSeparator(line, b, scratch1, hits, scratch2)
	n := 0
	for _, w := range hits {
		n += bits.OnesCount64(w)
	}
	return n
}

// constantAcrossTwoOrMore reports the count value shared by the largest
// group of at least two lines, scanning by first-seen value for
// determinism.
func constantAcrossTwoOrMore(counts []int) (int, bool) {
	seen := map[int]int{}
	order := make([]int, 0, len(counts))
	for _, c := range counts {
		if _, ok := seen[c]; !ok {
			order = append(order, c)
		}
		seen[c]++
	}
	best := -1
	bestN := 0
	for _, c := range order {
		if seen[c] >= 2 && (c > best || bestN == 0) {
			if seen[c] > bestN || (seen[c] == bestN && c > best) {
				best = c
				bestN = seen[c]
			}
		}
	}
	if bestN == 0 {
		return 0, false
	}
	return best, true
}

// splitUnquotedLines splits data on '\n', treating byte ranges between
// unescaped quote bytes as opaque so an embedded newline inside a quoted
// field does not create a spurious sample line.
func splitUnquotedLines(data []byte, quote byte) [][]byte {
	var lines [][]byte
	start := 0
	inQuote := false
	for i := 0; i < len(data); i++ {
		b := data[i]
		if quote != 0 && b == quote {
			inQuote = !inQuote
			continue
		}
		if b == '\n' && !inQuote {
			line := data[start:i]
			line = bytes.TrimSuffix(line, []byte{'\r'})
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
