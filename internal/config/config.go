// Package config holds the plain configuration structs for reads, writes
// and fixed-width layouts, following the teacher's style of plain structs
// validated by hand rather than a flags/viper library (no such dependency
// appears anywhere in the retrieved example pack for this concern).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/csvquery/csvquery/internal/progress"
)

// ColumnType is the closed tagged variant a column's assigned type takes.
type ColumnType int

const (
	TypeUnknown ColumnType = iota
	TypeLogical
	TypeInteger
	TypeDouble
	TypeNumberGrouped
	TypeDate
	TypeTime
	TypeDateTime
	TypeCharacter
	TypeFactor
	TypeSkip
)

func (t ColumnType) String() string {
	switch t {
	case TypeLogical:
		return "logical"
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeNumberGrouped:
		return "number-with-grouping"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDateTime:
		return "datetime"
	case TypeCharacter:
		return "character"
	case TypeFactor:
		return "factor"
	case TypeSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ColumnSelect renames/selects one output column. From is the
// header-resolved source column name; if Name is empty the source name is
// kept. See DESIGN.md for the col_select-vs-col_names precedence decision.
type ColumnSelect struct {
	From string
	Name string
}

// ReadConfig is the single recognized option set for delimited reads
// (spec §6). Unknown keys have no representation here by construction —
// config validation of a foreign key set is the caller's concern (e.g. a
// CLI flag parser); Validate only checks internal consistency.
type ReadConfig struct {
	Delim           byte // 0 = autodetect
	Quote           byte // 0 = quoting disabled
	EscapeDouble    bool
	EscapeBackslash bool
	TrimWS          bool
	Comment         byte // 0 = no comment handling
	Skip            int
	NMax            int64 // 0 = unlimited
	HasHeader       bool
	ColNames        []string
	ColSelect       []ColumnSelect
	ColTypes        map[string]ColumnType
	NAStrings       []string
	GuessMax        int64
	Locale          string // not read by the library; store.BuildTable takes a typeinfer.Locale argument instead
	NumThreads      int    // 0 = runtime.NumCPU(), overridden by READER_THREADS
	IDColumnName    string // multi-file adapter: name of the synthetic source-path column

	// Progress, if non-nil, receives bytes/rows counters as BuildIndex
	// scans. Optional; the core never prints, it only publishes counters.
	Progress *progress.Sink
}

// DefaultReadConfig mirrors the defaults spec.md implies (quote enabled,
// header assumed present, the standard escaping and NA conventions).
func DefaultReadConfig() ReadConfig {
	return ReadConfig{
		Quote:        '"',
		EscapeDouble: true,
		HasHeader:    true,
		NAStrings:    []string{"", "NA"},
		GuessMax:     1000,
	}
}

// Validate checks internal consistency and applies environment overrides.
func (c *ReadConfig) Validate() error {
	if c.Delim != 0 && c.Delim == c.Quote {
		return fmt.Errorf("config: delim and quote must differ")
	}
	if c.Comment != 0 && (c.Comment == c.Delim || c.Comment == c.Quote) {
		return fmt.Errorf("config: comment must differ from delim and quote")
	}
	if c.Skip < 0 {
		return fmt.Errorf("config: skip must be >= 0")
	}
	if c.NMax < 0 {
		return fmt.Errorf("config: n_max must be >= 0")
	}
	if c.GuessMax <= 0 {
		c.GuessMax = 1000
	}
	c.NumThreads = resolveThreads(c.NumThreads)
	return nil
}

// WriterChunkRows is the default row-chunk size the writer partitions
// input into (spec §4.7: "default implementation ~2^15").
const WriterChunkRows = 1 << 15

// QuotePolicy controls when the writer quotes a field.
type QuotePolicy int

const (
	QuoteNeeds QuotePolicy = iota
	QuoteAlways
	QuoteNever
)

// WriteConfig is the single recognized option set for delimited writes.
type WriteConfig struct {
	Delim      byte
	Quote      byte
	Policy     QuotePolicy
	NAString   string
	ChunkRows  int
	NumThreads int
	HasHeader  bool
}

// DefaultWriteConfig mirrors common CSV-writing defaults.
func DefaultWriteConfig() WriteConfig {
	return WriteConfig{
		Delim:     ',',
		Quote:     '"',
		Policy:    QuoteNeeds,
		ChunkRows: WriterChunkRows,
		HasHeader: true,
	}
}

// Validate checks internal consistency and applies environment overrides.
func (c *WriteConfig) Validate() error {
	if c.Delim == 0 {
		c.Delim = ','
	}
	if c.Quote == 0 {
		c.Quote = '"'
	}
	if c.Delim == c.Quote {
		return fmt.Errorf("config: delim and quote must differ")
	}
	if c.ChunkRows <= 0 {
		c.ChunkRows = WriterChunkRows
	}
	c.NumThreads = resolveThreads(c.NumThreads)
	return nil
}

// resolveThreads applies the READER_THREADS environment override the same
// way the teacher's Indexer.config.Workers flowed into Scanner.SetWorkers.
func resolveThreads(configured int) int {
	if v := os.Getenv("READER_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if configured > 0 {
		return configured
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// FixedWidthColumn names one fixed-width field by its half-open byte
// range [Start, End) within a physical line.
type FixedWidthColumn struct {
	Name  string
	Start int
	End   int
}

// FixedWidthLayout is one of spec §4.6's four configuration shapes, all
// reducible to a vector of (start, end, name) triples:
//
//   - Columns set, Widths/Positions empty: positions/names given directly.
//   - Widths set: cumulative sum gives positions, names default to X1..XC.
//   - neither set: infer column boundaries from whitespace gutters over
//     the first InferLines lines of the file.
type FixedWidthLayout struct {
	Columns    []FixedWidthColumn // explicit (start, end, name) triples
	Widths     []int              // cumulative-sum shape; Columns derived if set
	Names      []string           // optional names paired with Widths, by position
	InferLines int                // lines sampled for whitespace-gutter inference; 0 = default
	TrimWS     bool               // default on; see Validate
}

// DefaultFixedWidthLayout returns a layout with trim_ws on, per spec
// §4.6 ("trim_ws defaults on").
func DefaultFixedWidthLayout() FixedWidthLayout {
	return FixedWidthLayout{TrimWS: true, InferLines: 25}
}

// Validate fills in derived Columns from Widths (if Columns is empty and
// Widths is set) and applies the trim_ws-defaults-on rule of spec §4.6.
func (l *FixedWidthLayout) Validate() error {
	if l.InferLines <= 0 {
		l.InferLines = 25
	}
	if len(l.Columns) == 0 && len(l.Widths) > 0 {
		start := 0
		for i, w := range l.Widths {
			if w <= 0 {
				return fmt.Errorf("config: fixed-width column %d has non-positive width %d", i, w)
			}
			name := fmt.Sprintf("X%d", i+1)
			if i < len(l.Names) && l.Names[i] != "" {
				name = l.Names[i]
			}
			l.Columns = append(l.Columns, FixedWidthColumn{Name: name, Start: start, End: start + w})
			start += w
		}
	}
	for i, c := range l.Columns {
		if c.End <= c.Start {
			return fmt.Errorf("config: fixed-width column %d (%q) has empty range [%d,%d)", i, c.Name, c.Start, c.End)
		}
	}
	return nil
}

// ConnectionSize returns the buffered-read chunk size, honoring
// READER_CONNECTION_SIZE, for non-mmap byte sources.
func ConnectionSize() int {
	if v := os.Getenv("READER_CONNECTION_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 64 * 1024
}
