package indexer

import (
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
)

// state is the §4.2.1 state machine.
type state int

const (
	stFieldStart state = iota
	stUnquoted
	stQuoted
	stQuotedMaybeEnd
)

// chunkResult accumulates the output of scanning one contiguous byte
// range: field offsets/sepWidths/escaped flags plus bookkeeping needed to
// stitch multiple chunks together in order.
type chunkResult struct {
	offsets       []int64
	sepWidths     []uint8
	escapedFields []bool // parallel to sepWidths; true if that field needs unescaping
	rows          int64
	colMismatches int64
	// openQuoteAtEnd reports whether the chunk ended while still inside a
	// quoted field. scanChunk returns an UnterminatedQuote error in that
	// case, so a returned result always has it false; no caller reads it.
	openQuoteAtEnd bool
}

// rowHandler is called once per completed data record with the column
// count actually found (before padding/truncation), for warning reporting.
type rowHandler func(foundCols int)

// scanChunk runs the §4.2.1 state machine over data, whose first absolute
// byte is base. expectedCols, once non-zero, fixes the column count every
// row is padded/truncated to; pass 0 to have the function return as soon
// as the first complete row is found deriving expectedCols from it
// (BuildIndex scans the header row this way, with rowCap 1).
func scanChunk(data []byte, base int64, cfg *config.ReadConfig, expectedCols int, rowCap int64, onRow rowHandler) (*chunkResult, error) {
	res := &chunkResult{}
	n := len(data)
	pos := 0

	st := stFieldStart
	fieldStart := base // absolute offset of the current field's first byte
	col := 0
	rowFieldOffsetStart := len(res.offsets)
	escapedThisField := false
	recordHadContent := false

	emitField := func(endPos int, sepWidth uint8) {
		if expectedCols == 0 || col < expectedCols {
			res.offsets = append(res.offsets, fieldStart)
			res.sepWidths = append(res.sepWidths, sepWidth)
			res.escapedFields = append(res.escapedFields, escapedThisField)
		}
		col++
		escapedThisField = false
	}

	finishRecord := func() {
		found := col

		// A record with a single empty, all-whitespace field is a blank
		// line: skipped entirely, not emitted as a (possibly
		// NA-sentinel-padded) row.
		if found <= 1 && !recordHadContent {
			res.offsets = res.offsets[:rowFieldOffsetStart]
			res.sepWidths = res.sepWidths[:rowFieldOffsetStart]
			res.escapedFields = res.escapedFields[:rowFieldOffsetStart]
			col = 0
			recordHadContent = false
			return
		}

		if onRow != nil {
			onRow(found)
		}
		target := expectedCols
		if target == 0 {
			target = found
		}
		if found != target {
			res.colMismatches++
		}
		// right-pad missing columns with zero-length NA sentinels at the
		// record's terminator position.
		for ; col < target; col++ {
			res.offsets = append(res.offsets, fieldStart)
			res.sepWidths = append(res.sepWidths, 0)
			res.escapedFields = append(res.escapedFields, false)
		}
		res.offsets = append(res.offsets, fieldStart)
		res.rows++
		rowFieldOffsetStart = len(res.offsets)
		col = 0
		recordHadContent = false
	}

	// checkStop reports whether scanning should end right after a record
	// just completed: either expectedCols==0 and we only needed the first
	// row's width, or the caller-supplied row cap was reached.
	checkStop := func() bool {
		if expectedCols == 0 && res.rows > 0 {
			return true
		}
		if rowCap > 0 && res.rows >= rowCap {
			return true
		}
		return false
	}

	// commentSkip advances pos past a comment line (no quote awareness,
	// per spec §4.2's "a line whose first non-whitespace byte equals the
	// comment byte").
	commentSkip := func(p int) int {
		for p < n && data[p] != '\n' {
			p++
		}
		return p
	}

	for pos < n {
		b := data[pos]

		// comment / blank-line detection only applies at the very start
		// of a record.
		if st == stFieldStart && col == 0 {
			if cfg.Comment != 0 && b == cfg.Comment {
				pos = commentSkip(pos)
				if pos < n {
					pos++ // consume '\n'
				}
				fieldStart = base + int64(pos)
				continue
			}
		}

		switch st {
		case stFieldStart:
			if cfg.TrimWS && (b == ' ' || b == '\t') {
				fieldStart = base + int64(pos) + 1
				pos++
				continue
			}
			if cfg.Quote != 0 && b == cfg.Quote {
				st = stQuoted
				pos++
				continue
			}
			if b == cfg.Delim {
				emitField(pos, 1)
				fieldStart = base + int64(pos) + 1
				pos++
				continue
			}
			if b == '\n' {
				emitField(pos, 1)
				finishRecord()
				pos++
				fieldStart = base + int64(pos)
				st = stFieldStart
				if checkStop() {
					return res, nil
				}
				continue
			}
			if b == '\r' && pos+1 < n && data[pos+1] == '\n' {
				emitField(pos, 2)
				finishRecord()
				pos += 2
				fieldStart = base + int64(pos)
				st = stFieldStart
				if checkStop() {
					return res, nil
				}
				continue
			}
			recordHadContent = true
			st = stUnquoted
			pos++

		case stUnquoted:
			if b == cfg.Delim {
				emitField(pos, 1)
				fieldStart = base + int64(pos) + 1
				pos++
				st = stFieldStart
				continue
			}
			if b == '\n' {
				emitField(pos, 1)
				finishRecord()
				pos++
				fieldStart = base + int64(pos)
				st = stFieldStart
				if checkStop() {
					return res, nil
				}
				continue
			}
			if b == '\r' && pos+1 < n && data[pos+1] == '\n' {
				emitField(pos, 2)
				finishRecord()
				pos += 2
				fieldStart = base + int64(pos)
				st = stFieldStart
				if checkStop() {
					return res, nil
				}
				continue
			}
			if b != ' ' && b != '\t' {
				recordHadContent = true
			}
			pos++

		case stQuoted:
			if b == cfg.Quote {
				st = stQuotedMaybeEnd
				pos++
				continue
			}
			if cfg.EscapeBackslash && b == '\\' && pos+1 < n {
				escapedThisField = true
				pos += 2
				continue
			}
			recordHadContent = true
			pos++

		case stQuotedMaybeEnd:
			if cfg.EscapeDouble && b == cfg.Quote {
				escapedThisField = true
				st = stQuoted
				pos++
				continue
			}
			if b == cfg.Delim {
				emitField(pos, 1)
				fieldStart = base + int64(pos) + 1
				pos++
				st = stFieldStart
				continue
			}
			if b == '\n' {
				emitField(pos, 1)
				finishRecord()
				pos++
				fieldStart = base + int64(pos)
				st = stFieldStart
				if checkStop() {
					return res, nil
				}
				continue
			}
			if b == '\r' && pos+1 < n && data[pos+1] == '\n' {
				emitField(pos, 2)
				finishRecord()
				pos += 2
				fieldStart = base + int64(pos)
				st = stFieldStart
				if checkStop() {
					return res, nil
				}
				continue
			}
			if cfg.TrimWS && (b == ' ' || b == '\t') {
				pos++
				continue
			}
			malformed := errs.New(errs.MalformedQuote, "unexpected byte after closing quote")
			malformed.Offset = base + int64(pos)
			return res, malformed
		}
	}

	// EOF handling.
	switch st {
	case stQuoted:
		unterminated := errs.New(errs.UnterminatedQuote, "quote never closed")
		unterminated.Offset = fieldStart
		return res, unterminated
	case stFieldStart:
		// col>0 means a delimiter was already seen for this row but no
		// terminating newline followed; the dangling field after that
		// delimiter is empty.
		if col > 0 {
			emitField(n, 0)
			finishRecord()
		}
	case stUnquoted, stQuotedMaybeEnd:
		emitField(n, 0)
		finishRecord()
	}

	res.openQuoteAtEnd = st == stQuoted
	return res, nil
}
