package indexer

import (
	"sync"

	"github.com/csvquery/csvquery/internal/config"
)

// buildParallel runs the §4.2.1 scan over data (whose first byte is base)
// using cfg.NumThreads workers, each assigned a quote-parity-safe byte
// range, then stitches the per-worker results into ix in order. It is the
// teacher's Scanner.Scan/findSafeRecordBoundary/processChunk
// (entreya-csvquery/internal/indexer/scanner.go), generalized from
// extracting index keys to recording every field offset.
func buildParallel(ix *Index, data []byte, base int64, cfg *config.ReadConfig) error {
	n := len(data)
	if n == 0 {
		return nil
	}

	// n_max requires a single, globally ordered row count; rather than
	// coordinate workers on a shared atomic counter mid-scan, cap runs
	// fall back to one sequential pass (see DESIGN.md).
	if cfg.NMax > 0 {
		res, err := scanChunk(data, base, cfg, ix.NumCols, cfg.NMax, nil)
		if err != nil {
			return err
		}
		appendChunk(ix, res, 0)
		reportProgress(cfg, res.rows, int64(n))
		return nil
	}

	workers := cfg.NumThreads
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = 1
	}

	chunkSize := n / workers
	boundaries := make([]int, workers+1)
	boundaries[0] = 0
	boundaries[workers] = n
	for i := 1; i < workers; i++ {
		hint := i * chunkSize
		if hint < n {
			boundaries[i] = findSafeRecordBoundary(data, hint, ix.Quote)
		} else {
			boundaries[i] = n
		}
	}

	results := make([]*chunkResult, workers)
	errsOut := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start, end := boundaries[i], boundaries[i+1]
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(idx, start, end int) {
			defer wg.Done()
			res, err := scanChunk(data[start:end], base+int64(start), cfg, ix.NumCols, 0, nil)
			results[idx] = res
			errsOut[idx] = err
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errsOut {
		if err != nil {
			return err
		}
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		appendChunk(ix, res, i)
		reportProgress(cfg, res.rows, int64(boundaries[i+1]-boundaries[i]))
	}
	return nil
}

// reportProgress publishes one chunk's contribution to cfg.Progress, if
// the caller registered a sink; a nil sink is the common case and costs
// nothing beyond the check.
func reportProgress(cfg *config.ReadConfig, rows, bytes int64) {
	if cfg.Progress == nil {
		return
	}
	cfg.Progress.AddRows(rows)
	cfg.Progress.AddBytes(bytes)
}

// appendChunk merges one worker's chunkResult into ix, in order.
func appendChunk(ix *Index, res *chunkResult, workerIdx int) {
	fieldBase := int64(len(ix.sepWidths))

	if len(ix.Offsets) == 0 {
		ix.Offsets = append(ix.Offsets, res.offsets...)
	} else {
		// drop the previous chunk's trailing sentinel; the new chunk's
		// first offset continues the same position.
		ix.Offsets = append(ix.Offsets[:len(ix.Offsets)-1], res.offsets...)
	}
	ix.sepWidths = append(ix.sepWidths, res.sepWidths...)
	if ix.escaped.words == nil {
		ix.escaped = newBitset(int64(len(res.escapedFields)))
	}
	for i, esc := range res.escapedFields {
		if esc {
			ix.escaped.set(fieldBase + int64(i))
		}
	}
	ix.NumRows += res.rows
	ix.ColumnCountMismatches += res.colMismatches
}

// findSafeRecordBoundary returns the first position at or after hint that
// begins a record unambiguously outside any quoted field. data's own
// first byte is always such a position (buildParallel only ever calls
// this over a full pre-trimmed region, never a sub-chunk), so quote
// parity is tracked cumulatively from position 0 all the way through
// hint and beyond — not just within the single line segment adjacent to
// hint — so a quoted field spanning several embedded newlines in a row
// cannot be mistaken for a safe boundary partway through it.
func findSafeRecordBoundary(data []byte, hint int, quote byte) int {
	n := len(data)
	if hint >= n {
		return n
	}
	if quote == 0 {
		// no quoting: every newline is a safe boundary.
		for i := hint; i < n; i++ {
			if data[i] == '\n' {
				return i + 1
			}
		}
		return n
	}

	inQuote := false
	i := 0
	for ; i < hint; i++ {
		if data[i] == quote {
			inQuote = !inQuote
		}
	}
	for ; i < n; i++ {
		switch data[i] {
		case quote:
			inQuote = !inQuote
		case '\n':
			if !inQuote {
				return i + 1
			}
		}
	}
	return n
}
