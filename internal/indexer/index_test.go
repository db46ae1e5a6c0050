package indexer

import (
	"strings"
	"testing"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
)

func build(t *testing.T, data string, mutate func(*config.ReadConfig)) *Index {
	t.Helper()
	cfg := config.DefaultReadConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	region := common.NewByteRegionFromBytes([]byte(data))
	ix, err := BuildIndex(region, &cfg)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return ix
}

func field(ix *Index, row int64, col int) string {
	return string(ix.Field(row, col))
}

// Scenario 1: autoguess delimiter.
func TestAutoguessDelimiter(t *testing.T) {
	ix := build(t, "a,b,c\n1,2,3\n4,5,6\n", nil)
	if ix.Delim != ',' {
		t.Fatalf("delim = %q, want ','", ix.Delim)
	}
	if ix.NumRows != 2 || ix.NumCols != 3 {
		t.Fatalf("got %d rows, %d cols", ix.NumRows, ix.NumCols)
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if ix.Columns[i] != w {
			t.Fatalf("columns = %v, want %v", ix.Columns, want)
		}
	}
	if field(ix, 0, 0) != "1" || field(ix, 1, 2) != "6" {
		t.Fatalf("row data mismatch: %q %q", field(ix, 0, 0), field(ix, 1, 2))
	}
}

// Scenario 2: a quoted field spanning an embedded newline.
func TestQuotedEmbeddedNewline(t *testing.T) {
	ix := build(t, "x,y\n\"a\nb\",1\nc,2\n", nil)
	if ix.NumRows != 2 {
		t.Fatalf("got %d rows, want 2", ix.NumRows)
	}
	// ix.Field returns the raw source span, quotes included; unquoting
	// happens at the store layer (store.stripQuotes).
	if got := field(ix, 0, 0); got != "\"a\nb\"" {
		t.Fatalf("row0col0 = %q, want \"\\\"a\\nb\\\"\"", got)
	}
	if got := field(ix, 1, 0); got != "c" {
		t.Fatalf("row1col0 = %q, want c", got)
	}
}

func TestEmptyFile(t *testing.T) {
	ix := build(t, "", nil)
	if ix.NumRows != 0 || ix.NumCols != 0 {
		t.Fatalf("got %d rows, %d cols; want 0, 0", ix.NumRows, ix.NumCols)
	}
}

func TestHeaderOnly(t *testing.T) {
	ix := build(t, "a,b,c\n", func(cfg *config.ReadConfig) {
		cfg.Delim = ','
	})
	if ix.NumRows != 0 || ix.NumCols != 3 {
		t.Fatalf("got %d rows, %d cols; want 0, 3", ix.NumRows, ix.NumCols)
	}
}

func TestNoTrailingNewline(t *testing.T) {
	ix := build(t, "a,b\n1,2", nil)
	if ix.NumRows != 1 {
		t.Fatalf("got %d rows, want 1", ix.NumRows)
	}
	if got := field(ix, 0, 1); got != "2" {
		t.Fatalf("row0col1 = %q, want 2", got)
	}
}

func TestEmbeddedCRLFInsideQuotes(t *testing.T) {
	ix := build(t, "a,b\n\"x\r\ny\",2\n", nil)
	if ix.NumRows != 1 {
		t.Fatalf("got %d rows, want 1", ix.NumRows)
	}
	if got := field(ix, 0, 0); got != "\"x\r\ny\"" {
		t.Fatalf("row0col0 = %q, want \"\\\"x\\r\\ny\\\"\"", got)
	}
}

func TestBOMAtStart(t *testing.T) {
	data := "\xEF\xBB\xBFa,b\n1,2\n"
	ix := build(t, data, nil)
	if ix.Columns[0] != "a" {
		t.Fatalf("columns[0] = %q, want a (BOM should be stripped)", ix.Columns[0])
	}
	if got := field(ix, 0, 0); got != "1" {
		t.Fatalf("row0col0 = %q, want 1", got)
	}
}

func TestNAMatchesAnyConfiguredSentinel(t *testing.T) {
	ix := build(t, "a\nNA\nNULL\nx\n", func(cfg *config.ReadConfig) {
		cfg.Delim = ','
		cfg.NAStrings = []string{"", "NA", "NULL"}
	})
	if ix.NumRows != 3 {
		t.Fatalf("got %d rows, want 3", ix.NumRows)
	}
	// the indexer itself does not resolve NA semantics (that's the store's
	// job); verify the raw bytes required for the store's NA match survive
	// indexing unchanged.
	if field(ix, 0, 0) != "NA" || field(ix, 1, 0) != "NULL" {
		t.Fatalf("rows = %q, %q", field(ix, 0, 0), field(ix, 1, 0))
	}
}

func TestColumnCountMismatchPadsAndTruncates(t *testing.T) {
	ix := build(t, "a,b,c\n1,2\n3,4,5,6\n", func(cfg *config.ReadConfig) {
		cfg.Delim = ','
	})
	if ix.NumCols != 3 {
		t.Fatalf("NumCols = %d, want 3", ix.NumCols)
	}
	if got := field(ix, 0, 2); got != "" {
		t.Fatalf("short row's missing field = %q, want empty", got)
	}
	if ix.ColumnCountMismatches != 2 {
		t.Fatalf("ColumnCountMismatches = %d, want 2", ix.ColumnCountMismatches)
	}
}

func TestBlankLineIsSkippedNotEmitted(t *testing.T) {
	ix := build(t, "a,b\n1,2\n\n3,4\n", nil)
	if ix.NumRows != 2 {
		t.Fatalf("got %d rows, want 2 (blank line must not be emitted)", ix.NumRows)
	}
	if field(ix, 1, 0) != "3" {
		t.Fatalf("row1col0 = %q, want 3", field(ix, 1, 0))
	}
}

func TestCommentLinesSkipped(t *testing.T) {
	ix := build(t, "# a comment\na,b\n1,2\n# another\n3,4\n", func(cfg *config.ReadConfig) {
		cfg.Comment = '#'
	})
	if ix.Columns[0] != "a" {
		t.Fatalf("leading comment line should have been skipped before header: %v", ix.Columns)
	}
	if ix.NumRows != 2 {
		t.Fatalf("got %d rows, want 2 (embedded comment line must not be a data row)", ix.NumRows)
	}
}

func TestNMaxCapsRowCount(t *testing.T) {
	ix := build(t, "a\n1\n2\n3\n4\n5\n", func(cfg *config.ReadConfig) {
		cfg.Delim = ','
		cfg.NMax = 2
	})
	if ix.NumRows != 2 {
		t.Fatalf("got %d rows, want 2 (n_max cap)", ix.NumRows)
	}
	if field(ix, 0, 0) != "1" || field(ix, 1, 0) != "2" {
		t.Fatalf("capped rows = %q, %q, want 1, 2", field(ix, 0, 0), field(ix, 1, 0))
	}
}

func TestNMaxEqualToFullRowCountIsANoOp(t *testing.T) {
	ix := build(t, "a\n1\n2\n3\n", func(cfg *config.ReadConfig) {
		cfg.Delim = ','
		cfg.NMax = 3
	})
	if ix.NumRows != 3 {
		t.Fatalf("got %d rows, want 3", ix.NumRows)
	}
}

func TestHeaderNameDeduplication(t *testing.T) {
	ix := build(t, " ,a,a, \n1,2,3,4\n", nil)
	want := []string{"X1", "a", "a...3", "X4"}
	for i, w := range want {
		if ix.Columns[i] != w {
			t.Fatalf("columns = %v, want %v", ix.Columns, want)
		}
	}
}

func TestEscapeDoubleQuote(t *testing.T) {
	ix := build(t, "a\n\"he said \"\"hi\"\"\"\n", func(cfg *config.ReadConfig) {
		cfg.Delim = ','
	})
	if got := field(ix, 0, 0); got != `"he said ""hi"""` {
		// raw field retains the surrounding and doubled quotes; both
		// unquoting and unescaping happen at the store layer.
		t.Fatalf("row0col0 = %q", got)
	}
	if !ix.WasEscaped(0, 0) {
		t.Fatal("expected WasEscaped true for a field containing doubled quotes")
	}
}

// TestMultiWorkerChunkBoundarySkipsMultiLineQuotedField forces a 4-worker
// split whose naive n/workers boundary hints land inside a quoted field
// that itself spans several embedded newlines, verifying
// findSafeRecordBoundary walks past the whole field instead of landing on
// one of the newlines buried inside it.
func TestMultiWorkerChunkBoundarySkipsMultiLineQuotedField(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 0; i < 10; i++ {
		b.WriteString("1,2\n")
	}
	// a single quoted field spanning 3 embedded newlines (25 bytes).
	b.WriteString("\"line1\nline2\nline3\nline4\",b\n")
	for i := 0; i < 10; i++ {
		b.WriteString("3,4\n")
	}

	ix := build(t, b.String(), func(cfg *config.ReadConfig) {
		cfg.NumThreads = 4
	})

	if ix.NumRows != 21 {
		t.Fatalf("got %d rows, want 21 (10 + 1 multi-line + 10)", ix.NumRows)
	}
	// ix.Field returns the raw source span, quotes included.
	want := "\"line1\nline2\nline3\nline4\""
	found := false
	for r := int64(0); r < ix.NumRows; r++ {
		if field(ix, r, 0) == want {
			found = true
			if field(ix, r, 1) != "b" {
				t.Fatalf("row %d col 1 = %q, want b", r, field(ix, r, 1))
			}
			break
		}
	}
	if !found {
		t.Fatalf("multi-line quoted field not found intact among %d rows; chunk boundary corrupted it", ix.NumRows)
	}
	// every trailing "3,4" row must have survived as a full row, not been
	// swallowed or split by a boundary landing inside the quoted field.
	trailing34 := 0
	for r := int64(0); r < ix.NumRows; r++ {
		if field(ix, r, 0) == "3" && field(ix, r, 1) == "4" {
			trailing34++
		}
	}
	if trailing34 != 10 {
		t.Fatalf("got %d trailing 3,4 rows, want 10", trailing34)
	}
}

func TestUnterminatedQuoteIsAnError(t *testing.T) {
	cfg := config.DefaultReadConfig()
	cfg.Delim = ','
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	region := common.NewByteRegionFromBytes([]byte("a\n\"unterminated\n"))
	_, err := BuildIndex(region, &cfg)
	if err == nil {
		t.Fatal("expected an UnterminatedQuote error")
	}
}
