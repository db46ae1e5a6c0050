package store

import (
	"bytes"
	"testing"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/indexer"
)

func buildTestTable(t *testing.T, data string, cfg config.ReadConfig) *Table {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	region := common.NewByteRegionFromBytes([]byte(data))
	ix, err := indexer.BuildIndex(region, &cfg)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	table, err := BuildTable(ix, &cfg, nil)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	return table
}

func TestBuildTableInfersTypes(t *testing.T) {
	data := "id,name,score\n1,alice,9.5\n2,bob,8.25\n3,carol,NA\n"
	cfg := config.DefaultReadConfig()
	table := buildTestTable(t, data, cfg)

	if table.NumCols() != 3 || table.NumRows() != 3 {
		t.Fatalf("got %d cols, %d rows", table.NumCols(), table.NumRows())
	}

	idCol, ok := table.Column("id")
	if !ok {
		t.Fatal("missing id column")
	}
	if idCol.AssignedType != config.TypeInteger {
		t.Fatalf("id type = %v, want integer", idCol.AssignedType)
	}
	v, isNA := idCol.Get(0)
	if isNA || v.(int64) != 1 {
		t.Fatalf("id[0] = %v, %v", v, isNA)
	}

	scoreCol, _ := table.Column("score")
	if scoreCol.AssignedType != config.TypeDouble {
		t.Fatalf("score type = %v, want double", scoreCol.AssignedType)
	}
	_, isNA = scoreCol.Get(2)
	if !isNA {
		t.Fatal("score[2] should be NA")
	}
}

func TestColumnTypeOverride(t *testing.T) {
	data := "code\n007\n042\n"
	cfg := config.DefaultReadConfig()
	cfg.Delim = ','
	cfg.ColTypes = map[string]config.ColumnType{"code": config.TypeCharacter}
	table := buildTestTable(t, data, cfg)

	col, _ := table.Column("code")
	if col.AssignedType != config.TypeCharacter {
		t.Fatalf("code type = %v, want character (override)", col.AssignedType)
	}
	v, isNA := col.Get(0)
	if isNA || v.(string) != "007" {
		t.Fatalf("code[0] = %q, %v, want \"007\"", v, isNA)
	}
}

func TestColumnSkipAndSelect(t *testing.T) {
	data := "a,b,c\n1,2,3\n4,5,6\n"
	cfg := config.DefaultReadConfig()
	cfg.ColTypes = map[string]config.ColumnType{"b": config.TypeSkip}
	table := buildTestTable(t, data, cfg)

	if table.NumCols() != 2 {
		t.Fatalf("got %d cols, want 2 (b skipped)", table.NumCols())
	}
	if _, ok := table.Column("b"); ok {
		t.Fatal("b should have been skipped")
	}
}

func TestColumnSelectRename(t *testing.T) {
	data := "a,b\n1,2\n"
	cfg := config.DefaultReadConfig()
	cfg.ColSelect = []config.ColumnSelect{{From: "b", Name: "bee"}}
	table := buildTestTable(t, data, cfg)

	if table.NumCols() != 1 {
		t.Fatalf("got %d cols, want 1 (col_select restricts)", table.NumCols())
	}
	col, ok := table.Column("bee")
	if !ok {
		t.Fatal("missing renamed column bee")
	}
	v, _ := col.Get(0)
	if v.(int64) != 2 {
		t.Fatalf("bee[0] = %v, want 2", v)
	}
}

func TestMaterializeAllMatchesLazyReads(t *testing.T) {
	data := "x\n10\n20\n30\n"
	cfg := config.DefaultReadConfig()
	cfg.Delim = ','
	table := buildTestTable(t, data, cfg)
	col, _ := table.Column("x")

	var lazy []int64
	for r := int64(0); r < table.NumRows(); r++ {
		v, isNA := col.Get(r)
		if isNA {
			t.Fatalf("row %d unexpectedly NA", r)
		}
		lazy = append(lazy, v.(int64))
	}

	col.MaterializeAll()
	if !col.IsMaterialized() {
		t.Fatal("MaterializeAll did not set materialized flag")
	}
	for r, want := range lazy {
		v, isNA := col.Get(int64(r))
		if isNA || v.(int64) != want {
			t.Fatalf("materialized row %d = %v, want %v", r, v, want)
		}
	}
}

func TestFactorLevelsFirstSeenOrder(t *testing.T) {
	data := "grp\nb\na\nb\nc\na\n"
	cfg := config.DefaultReadConfig()
	cfg.Delim = ','
	cfg.ColTypes = map[string]config.ColumnType{"grp": config.TypeFactor}
	table := buildTestTable(t, data, cfg)
	col, _ := table.Column("grp")

	levels := col.FactorLevels()
	want := []string{"b", "a", "c"}
	if len(levels) != len(want) {
		t.Fatalf("levels = %v, want %v", levels, want)
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("levels = %v, want %v", levels, want)
		}
	}

	v, isNA := col.Get(0)
	if isNA {
		t.Fatal("row 0 unexpectedly NA")
	}
	fv := v.(FactorValue)
	if fv.Label != "b" || fv.Code != 1 {
		t.Fatalf("grp[0] = %+v, want {Code:1 Label:b}", fv)
	}
}

func TestSpillRoundTrip(t *testing.T) {
	data := "n\n1\n2\n3\n4\n"
	cfg := config.DefaultReadConfig()
	cfg.Delim = ','
	table := buildTestTable(t, data, cfg)
	col, _ := table.Column("n")
	col.MaterializeAll()

	var buf bytes.Buffer
	if err := col.Spill(&buf); err != nil {
		t.Fatalf("Spill: %v", err)
	}
	if col.IsMaterialized() {
		t.Fatal("Spill should have cleared the materialized array")
	}

	cache := NewBlockCache(1 << 20)
	r := bytes.NewReader(buf.Bytes())
	if err := col.LoadSpill(r, cache, "n"); err != nil {
		t.Fatalf("LoadSpill: %v", err)
	}

	for i, want := range []int64{1, 2, 3, 4} {
		v, isNA := col.Get(int64(i))
		if isNA {
			t.Fatalf("spilled row %d unexpectedly NA", i)
		}
		if v.(int64) != want {
			t.Fatalf("spilled row %d = %v, want %d", i, v, want)
		}
	}
}

func TestIsNATrimsWhitespace(t *testing.T) {
	if !isNA([]byte("  "), []string{""}, true) {
		t.Fatal("whitespace-only should match empty NA string when trim is on")
	}
	if isNA([]byte("  "), []string{""}, false) {
		t.Fatal("whitespace-only should not match empty NA string when trim is off")
	}
}
