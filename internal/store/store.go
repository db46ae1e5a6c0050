// Package store implements Component E: the column store and lazy
// materializer. A Table binds each surviving column (after col_select/
// col_types/col_skip resolution) to the shared Index and ByteRegion,
// serving per-cell reads straight from the byte source until
// MaterializeAll promotes it to a dense typed array. Grounded on the
// teacher's indexer.Indexer.parseColumns (column-definition resolution)
// and internal/common/cache.go's one-shot-latch LRU idiom, generalized
// from "N named key-column extracts" to "every column, lazily typed."
package store

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
	"github.com/csvquery/csvquery/internal/indexer"
	"github.com/csvquery/csvquery/internal/typeinfer"
)

// FactorValue is the converted representation of a factor cell: a
// 1-based level code (0 means NA) paired with its label.
type FactorValue struct {
	Code  int
	Label string
}

// Column is one output column: its resolved name, assigned type, and
// either lazy (byte-source-backed) or materialized (dense array) access.
type Column struct {
	Name         string
	SourceIndex  int // column position within the underlying Index
	AssignedType config.ColumnType
	InferredType config.ColumnType
	Format       string // winning date/time/datetime layout, if any

	table *Table

	factorOnce   sync.Once
	factorLevels []string
	factorIndex  map[string]int

	accessCount atomic.Int64

	materializeOnce sync.Once
	materialized    atomic.Bool
	values          []interface{}
	naMask          []bool

	spill *spillState
}

// materializeThreshold is the fraction-of-distinct-rows heuristic of spec
// §4.5: once a column has been read this many times (with NumRows as the
// natural ceiling for "the whole column"), auto-materialize.
const materializeThreshold = 1.0

// Table is the lazily-backed, immutable-after-build result of read().
type Table struct {
	ix       *indexer.Index
	cfg      *config.ReadConfig
	locale   typeinfer.Locale
	columns  []*Column
	Problems *errs.ProblemLog
}

// BuildTable resolves col_types/col_select/col_skip against ix's raw
// columns, runs type inference for every column lacking a user override,
// and returns the resulting Table.
func BuildTable(ix *indexer.Index, cfg *config.ReadConfig, locale typeinfer.Locale) (*Table, error) {
	if locale == nil {
		locale = typeinfer.DefaultLocale{}
	}

	t := &Table{ix: ix, cfg: cfg, locale: locale, Problems: ix.Problems}

	renamed := resolveColSelect(ix.Columns, cfg.ColSelect)

	for i, name := range ix.Columns {
		assigned := config.TypeUnknown
		if cfg.ColTypes != nil {
			if ct, ok := cfg.ColTypes[name]; ok {
				assigned = ct
			}
		}
		if assigned == config.TypeSkip {
			continue
		}
		if _, keep := renamed[i]; len(cfg.ColSelect) > 0 && !keep {
			continue
		}

		outName := name
		if newName, ok := renamed[i]; ok {
			outName = newName
		}

		col := &Column{Name: outName, SourceIndex: i, table: t}
		if assigned != config.TypeUnknown {
			col.AssignedType = assigned
			col.InferredType = assigned
		} else {
			res := typeinfer.InferColumn(ix, i, cfg, locale)
			col.InferredType = res.Type
			col.AssignedType = res.Type
			col.Format = res.Format
		}
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// resolveColSelect maps each original column index to its renamed output
// name, per the From/Name pairs in colSelect. See DESIGN.md for the
// col_select-vs-col_names precedence decision: col_select operates on
// already-resolved (post col_names) source names.
func resolveColSelect(columns []string, colSelect []config.ColumnSelect) map[int]string {
	out := make(map[int]string)
	if len(colSelect) == 0 {
		return out
	}
	bySource := make(map[string]int, len(columns))
	for i, name := range columns {
		bySource[name] = i
	}
	for _, sel := range colSelect {
		idx, ok := bySource[sel.From]
		if !ok {
			continue
		}
		name := sel.Name
		if name == "" {
			name = sel.From
		}
		out[idx] = name
	}
	return out
}

func (t *Table) NumCols() int    { return len(t.columns) }
func (t *Table) NumRows() int64  { return t.ix.NumRows }
func (t *Table) Columns() []*Column { return t.columns }

func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Types() []config.ColumnType {
	types := make([]config.ColumnType, len(t.columns))
	for i, c := range t.columns {
		types[i] = c.AssignedType
	}
	return types
}

// Column looks up a column by output name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Get returns column col's value at row, converting from the byte source
// unless the column is already materialized.
func (t *Table) Get(col int, row int64) (interface{}, bool) {
	return t.columns[col].Get(row)
}

// Get returns c's value at row per spec §4.5's four-step contract.
func (c *Column) Get(row int64) (interface{}, bool) {
	if c.spill != nil {
		return c.getSpilled(row)
	}
	if c.materialized.Load() {
		return c.values[row], c.naMask[row]
	}

	n := c.accessCount.Add(1)
	value, isNA := c.readFromSource(row)

	if float64(n) >= materializeThreshold*float64(c.table.ix.NumRows) && c.table.ix.NumRows > 0 {
		c.MaterializeAll()
		if c.materialized.Load() {
			return c.values[row], c.naMask[row]
		}
	}
	return value, isNA
}

func (c *Column) readFromSource(row int64) (interface{}, bool) {
	ix := c.table.ix
	raw := ix.Field(row, c.SourceIndex)
	escaped := ix.WasEscaped(row, c.SourceIndex)

	stripped := stripQuotes(raw, ix.Quote)
	if isNA(stripped, c.table.cfg.NAStrings, c.table.cfg.TrimWS) {
		return nil, true
	}

	value, ok := c.convert(stripped, escaped)
	if !ok {
		c.table.Problems.Add(errs.Problem{
			Row:           row,
			Col:           c.SourceIndex,
			ExpectedType:  c.AssignedType.String(),
			ObservedBytes: append([]byte(nil), stripped...),
			Kind:          errs.ParseFailure,
		})
		return nil, true
	}
	return value, false
}

// convert dispatches to the assigned type's converter. Character fields
// that needed no escaping are returned with a single string conversion
// and no additional unescape-buffer copy (spec §4.5's "character
// optimization").
func (c *Column) convert(raw []byte, escaped bool) (interface{}, bool) {
	switch c.AssignedType {
	case config.TypeCharacter:
		if escaped {
			return unescape(raw, c.table.ix.Quote, c.table.cfg), true
		}
		return string(raw), true
	case config.TypeLogical:
		return typeinfer.ParseLogical(raw)
	case config.TypeInteger:
		return typeinfer.ParseInteger(raw)
	case config.TypeDouble:
		return typeinfer.ParseDouble(raw, c.table.locale.DecimalMark())
	case config.TypeNumberGrouped:
		return typeinfer.ParseNumberGrouped(raw, c.table.locale.DecimalMark(), c.table.locale.GroupingMark())
	case config.TypeDate, config.TypeTime, config.TypeDateTime:
		return parseTimeValue(c.Format, raw)
	case config.TypeFactor:
		return c.convertFactor(raw), true
	default:
		return string(raw), true
	}
}

func (c *Column) convertFactor(raw []byte) FactorValue {
	c.ensureFactorLevels()
	label := string(raw)
	if idx, ok := c.factorIndex[label]; ok {
		return FactorValue{Code: idx + 1, Label: label}
	}
	return FactorValue{Code: 0, Label: label}
}

// ensureFactorLevels performs the one-shot, thread-safe full-column scan
// spec §4.5 requires for materialization-like operations: a factor's
// level set must be complete, so it cannot be built from §4.4's sample
// alone (see DESIGN.md's Additional design decisions).
func (c *Column) ensureFactorLevels() {
	c.factorOnce.Do(func() {
		ix := c.table.ix
		seen := make(map[string]bool)
		var levels []string
		for r := int64(0); r < ix.NumRows; r++ {
			raw := stripQuotes(ix.Field(r, c.SourceIndex), ix.Quote)
			if isNA(raw, c.table.cfg.NAStrings, c.table.cfg.TrimWS) {
				continue
			}
			label := string(raw)
			if !seen[label] {
				seen[label] = true
				levels = append(levels, label)
			}
		}
		c.factorLevels = levels
		c.factorIndex = make(map[string]int, len(levels))
		for i, l := range levels {
			c.factorIndex[l] = i
		}
	})
}

// FactorLevels returns c's distinct levels in first-seen order. Only
// meaningful once AssignedType is TypeFactor.
func (c *Column) FactorLevels() []string {
	c.ensureFactorLevels()
	return c.factorLevels
}

// MaterializeAll promotes c to a dense typed array, bypassing the byte
// source for all subsequent reads. Idempotent and safe to call from
// multiple goroutines: the first caller performs the scan, others block
// until it completes.
func (c *Column) MaterializeAll() {
	c.materializeOnce.Do(func() {
		n := c.table.ix.NumRows
		values := make([]interface{}, n)
		naMask := make([]bool, n)
		for r := int64(0); r < n; r++ {
			v, isNA := c.readFromSource(r)
			values[r] = v
			naMask[r] = isNA
		}
		c.values = values
		c.naMask = naMask
		c.materialized.Store(true)
	})
}

// IsMaterialized reports whether c has already been promoted to a dense
// array.
func (c *Column) IsMaterialized() bool { return c.materialized.Load() }

// Header and Field let *Table satisfy writer.Rows directly, so a read
// Table can be re-serialized by Component G without an intermediate
// adapter type.

// Header returns the Table's output column names.
func (t *Table) Header() []string { return t.Names() }

// Field returns column col's textual form at row, the write-side inverse
// of Column.convert, and whether the cell is NA.
func (t *Table) Field(row int64, col int) (string, bool) {
	c := t.columns[col]
	v, isNA := c.Get(row)
	if isNA {
		return "", true
	}
	return formatValue(v, c.AssignedType), false
}

func formatValue(v interface{}, t config.ColumnType) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		if t == config.TypeDate {
			return val.Format("2006-01-02")
		}
		if t == config.TypeTime {
			return val.Format("15:04:05")
		}
		return val.Format(time.RFC3339)
	case FactorValue:
		return val.Label
	default:
		return ""
	}
}

func stripQuotes(raw []byte, quote byte) []byte {
	if quote == 0 || len(raw) < 2 {
		return raw
	}
	if raw[0] == quote && raw[len(raw)-1] == quote {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func unescape(raw []byte, quote byte, cfg *config.ReadConfig) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if cfg.EscapeBackslash && raw[i] == '\\' && i+1 < len(raw) {
			b.WriteByte(raw[i+1])
			i++
			continue
		}
		if cfg.EscapeDouble && raw[i] == quote && i+1 < len(raw) && raw[i+1] == quote {
			b.WriteByte(quote)
			i++
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func isNA(raw []byte, naStrings []string, trim bool) bool {
	s := raw
	if trim {
		lo, hi := 0, len(s)
		for lo < hi && (s[lo] == ' ' || s[lo] == '\t') {
			lo++
		}
		for hi > lo && (s[hi-1] == ' ' || s[hi-1] == '\t') {
			hi--
		}
		s = s[lo:hi]
	}
	for _, na := range naStrings {
		if string(s) == na {
			return true
		}
	}
	return false
}
