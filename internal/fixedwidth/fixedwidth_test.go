package fixedwidth

import (
	"testing"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
)

func TestBuildIndexByWidths(t *testing.T) {
	data := "john      NYC       123-45-6789\n"
	region := common.NewByteRegionFromBytes([]byte(data))
	layout := config.DefaultFixedWidthLayout()
	layout.Widths = []int{10, 10, 12}
	layout.Names = []string{"name", "state", "ssn"}

	ix, err := BuildIndex(region, &layout, 0, false)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if ix.NumRows != 1 || ix.NumCols != 3 {
		t.Fatalf("got %d rows, %d cols; want 1, 3", ix.NumRows, ix.NumCols)
	}
	want := map[string]string{"name": "john", "state": "NYC", "ssn": "123-45-6789"}
	for c, name := range ix.Columns {
		got := string(ix.Field(0, c))
		if got != want[name] {
			t.Fatalf("column %q = %q, want %q", name, got, want[name])
		}
	}
}

func TestBuildIndexByExplicitPositions(t *testing.T) {
	data := "name state\nalice CA   \nbob   TX   \n"
	region := common.NewByteRegionFromBytes([]byte(data))
	layout := config.DefaultFixedWidthLayout()
	layout.Columns = []config.FixedWidthColumn{
		{Name: "name", Start: 0, End: 6},
		{Name: "state", Start: 6, End: 11},
	}

	ix, err := BuildIndex(region, &layout, 0, true)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if ix.NumRows != 2 {
		t.Fatalf("got %d rows, want 2 (header line should be skipped)", ix.NumRows)
	}
	if got := string(ix.Field(0, 0)); got != "alice" {
		t.Fatalf("row0 name = %q, want alice", got)
	}
	if got := string(ix.Field(1, 1)); got != "TX" {
		t.Fatalf("row1 state = %q, want TX", got)
	}
}

func TestBuildIndexShortRecordPadsWithNA(t *testing.T) {
	data := "widths\nabcdefghij\nabc\n"
	region := common.NewByteRegionFromBytes([]byte(data))
	layout := config.DefaultFixedWidthLayout()
	layout.Widths = []int{5, 5}

	ix, err := BuildIndex(region, &layout, 0, true)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if got := string(ix.Field(1, 0)); got != "abc" {
		t.Fatalf("short row col0 = %q, want abc", got)
	}
	if got := string(ix.Field(1, 1)); got != "" {
		t.Fatalf("short row col1 = %q, want empty (NA pad)", got)
	}
}

func TestBuildIndexInfersColumnsFromWhitespaceGutters(t *testing.T) {
	data := "john      NYC       123456789\n" +
		"mary      LA        987654321\n"
	region := common.NewByteRegionFromBytes([]byte(data))
	layout := config.DefaultFixedWidthLayout()

	ix, err := BuildIndex(region, &layout, 0, false)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if ix.NumCols != 3 {
		t.Fatalf("inferred %d columns, want 3", ix.NumCols)
	}
	if got := string(ix.Field(0, 0)); got != "john" {
		t.Fatalf("row0 col0 = %q, want john", got)
	}
	if got := string(ix.Field(1, 2)); got != "987654321" {
		t.Fatalf("row1 col2 = %q, want 987654321", got)
	}
}
