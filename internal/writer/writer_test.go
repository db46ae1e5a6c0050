package writer

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/csvquery/csvquery/internal/config"
)

// cellVal is one test row's cell: a value plus its NA flag.
type cellVal struct {
	value string
	isNA  bool
}

func cell(v string) cellVal { return cellVal{value: v} }
func naCell() cellVal       { return cellVal{isNA: true} }

type fakeRows struct {
	header []string
	rows   [][]cellVal
}

func (r fakeRows) NumRows() int64   { return int64(len(r.rows)) }
func (r fakeRows) NumCols() int     { return len(r.header) }
func (r fakeRows) Header() []string { return r.header }
func (r fakeRows) Field(row int64, col int) (string, bool) {
	c := r.rows[row][col]
	return c.value, c.isNA
}

func TestWriteBasic(t *testing.T) {
	rows := fakeRows{
		header: []string{"a", "b"},
		rows: [][]cellVal{
			{cell("1"), cell("2")},
			{cell("3"), cell("4")},
		},
	}
	cfg := config.DefaultWriteConfig()

	var buf bytes.Buffer
	sink := bufio.NewWriter(&buf)
	if err := Write(context.Background(), rows, sink, &cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := "a,b\n1,2\n3,4\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteQuotesFieldsContainingDelimiter(t *testing.T) {
	rows := fakeRows{
		header: []string{"a"},
		rows: [][]cellVal{
			{cell("has,comma")},
			{cell(`has"quote`)},
		},
	}
	cfg := config.DefaultWriteConfig()

	var buf bytes.Buffer
	sink := bufio.NewWriter(&buf)
	if err := Write(context.Background(), rows, sink, &cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"has,comma"`) {
		t.Fatalf("comma field not quoted: %q", out)
	}
	if !strings.Contains(out, `"has""quote"`) {
		t.Fatalf("quote field not escaped+quoted: %q", out)
	}
}

func TestWriteNAString(t *testing.T) {
	rows := fakeRows{
		header: []string{"a"},
		rows:   [][]cellVal{{naCell()}},
	}
	cfg := config.DefaultWriteConfig()
	cfg.NAString = "NA"

	var buf bytes.Buffer
	sink := bufio.NewWriter(&buf)
	if err := Write(context.Background(), rows, sink, &cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "a\nNA\n" {
		t.Fatalf("got %q, want \"a\\nNA\\n\"", buf.String())
	}
}

func TestWriteQuotePolicyAlways(t *testing.T) {
	rows := fakeRows{
		header: []string{"a"},
		rows:   [][]cellVal{{cell("plain")}},
	}
	cfg := config.DefaultWriteConfig()
	cfg.Policy = config.QuoteAlways

	var buf bytes.Buffer
	sink := bufio.NewWriter(&buf)
	if err := Write(context.Background(), rows, sink, &cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "\"a\"\n\"plain\"\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestWriteQuotePolicyNeverFailsOnAmbiguousField(t *testing.T) {
	rows := fakeRows{
		header: []string{"a"},
		rows:   [][]cellVal{{cell("has,comma")}},
	}
	cfg := config.DefaultWriteConfig()
	cfg.Policy = config.QuoteNever

	var buf bytes.Buffer
	sink := bufio.NewWriter(&buf)
	if err := Write(context.Background(), rows, sink, &cfg); err == nil {
		t.Fatal("expected an error: never-quote policy cannot encode a comma-bearing field")
	}
}

func TestWriteChunksAcrossMultipleWorkers(t *testing.T) {
	var dataRows [][]cellVal
	for i := 0; i < 250; i++ {
		dataRows = append(dataRows, []cellVal{cell("x")})
	}
	rows := fakeRows{header: []string{"a"}, rows: dataRows}

	cfg := config.DefaultWriteConfig()
	cfg.ChunkRows = 10
	cfg.NumThreads = 4

	var buf bytes.Buffer
	sink := bufio.NewWriter(&buf)
	if err := Write(context.Background(), rows, sink, &cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 251 { // header + 250 rows
		t.Fatalf("got %d lines, want 251", len(lines))
	}
	for i, l := range lines[1:] {
		if l != "x" {
			t.Fatalf("row %d out of order or corrupted: %q", i, l)
		}
	}
}
