package indexer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BuildIndex builds an Index over region per cfg: BOM stripping, skip/
// comment lines, header resolution and name deduplication, delimiter
// autoguess, and the full parallel field-offset scan (parallel.go).
func BuildIndex(region *common.ByteRegion, cfg *config.ReadConfig) (*Index, error) {
	data := region.Bytes()
	base := int64(0)

	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
		base += int64(len(utf8BOM))
	}

	quote := cfg.Quote
	delim := cfg.Delim

	// skip physical lines and leading comment lines before anything else,
	// honoring quotes so an embedded newline inside a quoted field on a
	// skipped line does not end the skip early.
	skipped := cfg.Skip
	for skipped > 0 && len(data) > 0 {
		adv := advancePastLine(data, quote)
		data = data[adv:]
		base += int64(adv)
		skipped--
	}
	for len(data) > 0 && cfg.Comment != 0 && data[0] == cfg.Comment {
		adv := advancePastLine(data, quote)
		data = data[adv:]
		base += int64(adv)
	}

	newline := NewlineLF
	if i := bytes.IndexByte(data, '\n'); i >= 0 && i > 0 && data[i-1] == '\r' {
		newline = NewlineCRLF
	}

	if len(data) == 0 {
		return &Index{
			Region:   region,
			Columns:  nil,
			NumCols:  0,
			NumRows:  0,
			Delim:    delim,
			Quote:    quote,
			HasQuote: quote != 0,
			Newline:  newline,
			Problems: &errs.ProblemLog{},
		}, nil
	}

	if delim == 0 {
		guessed, err := guessDelimiter(data, quote)
		if err != nil {
			return nil, err
		}
		delim = guessed
	}
	scanCfg := *cfg
	scanCfg.Delim = delim
	if err := scanCfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "invalid read configuration")
	}

	// discover the column count from the header (or, lacking one, the
	// first data record) without committing to a full scan yet.
	firstRow, err := scanChunk(data, base, &scanCfg, 0, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(firstRow.offsets) == 0 {
		// every byte was whitespace/comment: treat as an empty file.
		return &Index{
			Region:   region,
			NumCols:  0,
			Delim:    delim,
			Quote:    quote,
			HasQuote: quote != 0,
			Newline:  newline,
			Problems: &errs.ProblemLog{},
		}, nil
	}
	numCols := len(firstRow.offsets) - 1

	var columns []string
	headerLo, headerHi := base, base
	bodyData := data
	bodyBase := base

	if cfg.HasHeader {
		headerLo = firstRow.offsets[0]
		headerHi = firstRow.offsets[len(firstRow.offsets)-1]
		columns = make([]string, numCols)
		for c := 0; c < numCols; c++ {
			lo := firstRow.offsets[c]
			hi := firstRow.offsets[c+1] - int64(firstRow.sepWidths[c])
			if hi < lo {
				hi = lo
			}
			columns[c] = string(region.Slice(int(lo), int(hi)))
		}
		consumed := int(headerHi - base)
		bodyData = data[consumed:]
		bodyBase = base + int64(consumed)
	} else {
		columns = make([]string, numCols)
		for c := 0; c < numCols; c++ {
			columns[c] = fmt.Sprintf("X%d", c+1)
		}
	}

	if len(cfg.ColNames) > 0 {
		for c := 0; c < numCols && c < len(cfg.ColNames); c++ {
			if cfg.ColNames[c] != "" {
				columns[c] = cfg.ColNames[c]
			}
		}
	}
	columns = dedupColumnNames(columns)

	ix := &Index{
		Region:      region,
		Columns:     columns,
		NumCols:     numCols,
		Delim:       delim,
		Quote:       quote,
		HasQuote:    quote != 0,
		Newline:     newline,
		HeaderRange: [2]int64{headerLo, headerHi},
		Problems:    &errs.ProblemLog{},
	}

	if err := buildParallel(ix, bodyData, bodyBase, &scanCfg); err != nil {
		return nil, err
	}
	return ix, nil
}

// advancePastLine returns the byte count to skip past one physical line
// (including its terminator), honoring quote parity so an embedded
// newline inside a quoted field does not end the line early.
func advancePastLine(data []byte, quote byte) int {
	inQuote := false
	for i := 0; i < len(data); i++ {
		b := data[i]
		if quote != 0 && b == quote {
			inQuote = !inQuote
			continue
		}
		if b == '\n' && !inQuote {
			return i + 1
		}
	}
	return len(data)
}

// dedupColumnNames applies spec §4.2's deterministic rule: trim
// whitespace; empty names become X{position}; duplicates (including a
// name that collides with a substituted X{position}) get an
// "...{position}" suffix, position being the 1-based original index.
func dedupColumnNames(names []string) []string {
	trimmed := make([]string, len(names))
	for i, n := range names {
		t := strings.TrimSpace(n)
		if t == "" {
			t = fmt.Sprintf("X%d", i+1)
		}
		trimmed[i] = t
	}

	seen := make(map[string]bool, len(trimmed))
	out := make([]string, len(trimmed))
	for i, t := range trimmed {
		name := t
		if seen[name] {
			name = fmt.Sprintf("%s...%d", t, i+1)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
