package errs

import "testing"

func TestProblemLogOrdersByRowThenCol(t *testing.T) {
	var log ProblemLog
	// recorded out of (row, col) order, as a parallel scan discovering
	// problems in different columns/chunks would.
	log.Add(Problem{Row: 5, Col: 1, Kind: ParseFailure})
	log.Add(Problem{Row: 2, Col: 0, Kind: ParseFailure})
	log.Add(Problem{Row: 2, Col: 3, Kind: ColumnCountMismatch})
	log.Add(Problem{Row: 0, Col: 2, Kind: ParseFailure})

	got := log.Problems()
	want := []struct {
		row int64
		col int
	}{
		{0, 2},
		{2, 0},
		{2, 3},
		{5, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d problems, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Row != w.row || got[i].Col != w.col {
			t.Fatalf("problem %d = (row %d, col %d), want (row %d, col %d)", i, got[i].Row, got[i].Col, w.row, w.col)
		}
	}
}

func TestProblemLogLenMatchesInsertions(t *testing.T) {
	var log ProblemLog
	if log.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for empty log", log.Len())
	}
	log.Add(Problem{Row: 1, Col: 1})
	log.Add(Problem{Row: 2, Col: 2})
	if log.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", log.Len())
	}
}
