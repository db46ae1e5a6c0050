// Package fixedwidth implements Component F: an alternative indexer that
// consumes column start/end byte positions instead of scanning for a
// delimiter. Grounded on the teacher's indexer.Scanner line-splitting
// (entreya-csvquery/go/internal/indexer/scanner.go's newline handling),
// generalized from delimiter-driven field boundaries to fixed positions.
package fixedwidth

import (
	"bytes"
	"strconv"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
)

// Index is Component F's output: one offset pair per (row, column), no
// delimiter or quote metadata since none applies.
type Index struct {
	Region  *common.ByteRegion
	Columns []string
	NumCols int
	NumRows int64

	// starts/ends are row-major, parallel to Columns: field (r, c)
	// occupies [starts[r*NumCols+c], ends[r*NumCols+c]).
	starts []int64
	ends   []int64

	TrimWS bool

	Problems *errs.ProblemLog
}

// FieldRange returns the half-open byte range for field (row, col).
func (ix *Index) FieldRange(row int64, col int) (lo, hi int) {
	i := row*int64(ix.NumCols) + int64(col)
	return int(ix.starts[i]), int(ix.ends[i])
}

// Field returns field (row, col)'s raw content, trimmed of surrounding
// whitespace when TrimWS is set.
func (ix *Index) Field(row int64, col int) []byte {
	lo, hi := ix.FieldRange(row, col)
	raw := ix.Region.Slice(lo, hi)
	if ix.TrimWS {
		raw = bytes.TrimSpace(raw)
	}
	return raw
}

// BuildIndex indexes region per layout: no delimiter scanning, one
// (start, end) pair per configured column per physical line. Lines
// shorter than the layout's last column end are right-padded with NA
// (an empty field, per spec §4.6's "right-padded with NA").
func BuildIndex(region *common.ByteRegion, layout *config.FixedWidthLayout, skip int, hasHeader bool) (*Index, error) {
	if err := layout.Validate(); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "invalid fixed-width layout")
	}

	cols := layout.Columns
	if len(cols) == 0 {
		inferred, err := inferColumns(region.Bytes(), layout.InferLines)
		if err != nil {
			return nil, err
		}
		cols = inferred
	}
	numCols := len(cols)
	names := make([]string, numCols)
	for i, c := range cols {
		names[i] = c.Name
	}

	data := region.Bytes()
	base := int64(0)

	for skip > 0 && len(data) > 0 {
		adv := advancePastLine(data)
		data = data[adv:]
		base += int64(adv)
		skip--
	}

	if hasHeader && len(data) > 0 {
		adv := advancePastLine(data)
		data = data[adv:]
		base += int64(adv)
	}

	ix := &Index{
		Region:   region,
		Columns:  names,
		NumCols:  numCols,
		TrimWS:   layout.TrimWS,
		Problems: &errs.ProblemLog{},
	}

	var row int64
	for len(data) > 0 {
		adv := advancePastLine(data)
		line := data[:adv]
		lineLen := len(line)
		if lineLen > 0 && line[lineLen-1] == '\n' {
			lineLen--
			if lineLen > 0 && line[lineLen-1] == '\r' {
				lineLen--
			}
		}
		content := line[:lineLen]

		if len(bytes.TrimSpace(content)) == 0 {
			data = data[adv:]
			base += int64(adv)
			continue
		}

		for _, col := range cols {
			lo := base + int64(col.Start)
			hi := base + int64(col.End)
			if col.Start >= lineLen {
				// record shorter than this column: NA, zero-length field.
				lo = base + int64(lineLen)
				hi = lo
			} else if col.End > lineLen {
				hi = base + int64(lineLen)
			}
			ix.starts = append(ix.starts, lo)
			ix.ends = append(ix.ends, hi)
		}
		row++
		data = data[adv:]
		base += int64(adv)
	}
	ix.NumRows = row
	return ix, nil
}

func advancePastLine(data []byte) int {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1
	}
	return len(data)
}

// inferColumns implements spec §4.6 shape (a): locate columns of space
// characters over the first n lines and place breaks at their midpoints.
func inferColumns(data []byte, n int) ([]config.FixedWidthColumn, error) {
	lines := sampleLines(data, n)
	if len(lines) == 0 {
		return nil, errs.New(errs.IOError, "fixed-width: cannot infer column layout from an empty file")
	}

	maxLen := 0
	for _, l := range lines {
		if len(l) > maxLen {
			maxLen = len(l)
		}
	}

	// a byte position is a "gap" column if every sampled line has either
	// a space or is too short to reach that position.
	isGap := make([]bool, maxLen)
	for pos := 0; pos < maxLen; pos++ {
		gap := true
		for _, l := range lines {
			if pos < len(l) && l[pos] != ' ' {
				gap = false
				break
			}
		}
		isGap[pos] = gap
	}

	var cols []config.FixedWidthColumn
	start := -1
	for pos := 0; pos <= maxLen; pos++ {
		gap := pos == maxLen || isGap[pos]
		if !gap && start < 0 {
			start = pos
		} else if gap && start >= 0 {
			cols = append(cols, config.FixedWidthColumn{
				Name:  "",
				Start: start,
				End:   pos,
			})
			start = -1
		}
	}
	for i := range cols {
		cols[i].Name = ""
	}
	return mergeGapMidpoints(cols, maxLen), nil
}

// mergeGapMidpoints extends each column's end to the midpoint of the
// whitespace gutter that follows it, per spec §4.6 ("placing breaks at
// their midpoints"), except the last column which runs to end of line.
func mergeGapMidpoints(cols []config.FixedWidthColumn, lineLen int) []config.FixedWidthColumn {
	out := make([]config.FixedWidthColumn, len(cols))
	for i, c := range cols {
		end := lineLen
		if i+1 < len(cols) {
			gapLo, gapHi := c.End, cols[i+1].Start
			end = gapLo + (gapHi-gapLo)/2
		}
		out[i] = config.FixedWidthColumn{Name: c.Name, Start: c.Start, End: end}
	}
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = nameFor(i)
		}
	}
	return out
}

func nameFor(i int) string {
	return "X" + strconv.Itoa(i+1)
}

func sampleLines(data []byte, n int) [][]byte {
	var lines [][]byte
	for len(data) > 0 && len(lines) < n {
		adv := advancePastLine(data)
		line := data[:adv]
		lineLen := len(line)
		if lineLen > 0 && line[lineLen-1] == '\n' {
			lineLen--
			if lineLen > 0 && line[lineLen-1] == '\r' {
				lineLen--
			}
		}
		if lineLen > 0 {
			lines = append(lines, line[:lineLen])
		}
		data = data[adv:]
	}
	return lines
}
