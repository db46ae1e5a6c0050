// Package multifile implements Component C: concatenating several
// single-file indexes into one logical index with optional source-path
// tracking. Grounded on the teacher's Indexer.Run (entreya-csvquery/go/
// internal/indexer/indexer.go), generalized from "fan out one scan
// across N sorter goroutines" to "fan out N file builds across a worker
// pool, then stitch their row ranges."
package multifile

import (
	"runtime"
	"sync"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
	"github.com/csvquery/csvquery/internal/indexer"
)

// FileRange records where one source file's rows land in the logical,
// concatenated row space.
type FileRange struct {
	Path     string
	StartRow int64
	NumRows  int64
	Index    *indexer.Index
}

// Index is the logical, multi-file view Component C produces: the same
// column schema as every underlying per-file Index, with rows addressed
// by a logical row number that locate maps back to (file, local row).
type Index struct {
	Columns []string
	NumCols int
	NumRows int64

	Files []FileRange

	// IDColumnName, when non-empty, is the name of the synthetic extra
	// column holding each row's source path (spec §4.3's "optionally
	// materialize a synthetic string column containing the source path").
	IDColumnName string

	Problems *errs.ProblemLog
}

// buildResult pairs one file's outcome with its original position so
// results can be reassembled in input order despite out-of-order
// completion.
type buildResult struct {
	idx int
	ix  *indexer.Index
	err error
}

// BuildIndex builds an Index per file in paths in parallel (bounded by
// cfg.NumThreads, falling back to runtime.NumCPU), verifies every file
// shares the same column count and identical header names, and stitches
// the per-file indexes into one logical row space. The header-name check
// always runs; there is no option to turn it off.
func BuildIndex(paths []string, regions []*common.ByteRegion, cfg *config.ReadConfig) (*Index, error) {
	if len(paths) != len(regions) {
		return nil, errs.New(errs.IOError, "multifile: %d paths but %d regions", len(paths), len(regions))
	}
	if len(paths) == 0 {
		return &Index{Problems: &errs.ProblemLog{}}, nil
	}

	workers := cfg.NumThreads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	work := make(chan int)
	results := make(chan buildResult, len(paths))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				ix, err := indexer.BuildIndex(regions[i], cfg)
				results <- buildResult{idx: i, ix: ix, err: err}
			}
		}()
	}
	go func() {
		for i := range paths {
			work <- i
		}
		close(work)
	}()
	wg.Wait()
	close(results)

	built := make([]*indexer.Index, len(paths))
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		built[res.idx] = res.ix
	}
	if firstErr != nil {
		return nil, firstErr
	}

	if err := verifySchemas(paths, built); err != nil {
		return nil, err
	}

	out := &Index{
		Columns:      built[0].Columns,
		NumCols:      built[0].NumCols,
		IDColumnName: cfg.IDColumnName,
		Problems:     &errs.ProblemLog{},
	}
	var cursor int64
	for i, ix := range built {
		out.Files = append(out.Files, FileRange{
			Path:     paths[i],
			StartRow: cursor,
			NumRows:  ix.NumRows,
			Index:    ix,
		})
		cursor += ix.NumRows
		out.Problems = mergeProblems(out.Problems, ix.Problems)
	}
	out.NumRows = cursor
	return out, nil
}

// verifySchemas enforces spec §4.3: every file must share the logical
// index's column count, and always identical header names.
func verifySchemas(paths []string, built []*indexer.Index) error {
	want := built[0]
	for i := 1; i < len(built); i++ {
		ix := built[i]
		if ix.NumCols != want.NumCols {
			return &errs.Error{
				Kind:   errs.SchemaMismatch,
				File:   paths[i],
				Expect: want.NumCols,
				Found:  ix.NumCols,
			}
		}
		for c := range want.Columns {
			if ix.Columns[c] != want.Columns[c] {
				return errs.New(errs.SchemaMismatch,
					"file %q: column %d is %q, expected %q (from %q)",
					paths[i], c, ix.Columns[c], want.Columns[c], paths[0])
			}
		}
	}
	return nil
}

func mergeProblems(into *errs.ProblemLog, from *errs.ProblemLog) *errs.ProblemLog {
	if from == nil {
		return into
	}
	for _, p := range from.Problems() {
		into.Add(p)
	}
	return into
}

// locate finds which file owns logical row and the row's local index
// within that file.
func (ix *Index) locate(row int64) (FileRange, int64) {
	lo, hi := 0, len(ix.Files)
	for lo < hi {
		mid := (lo + hi) / 2
		if ix.Files[mid].StartRow <= row {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	f := ix.Files[lo-1]
	return f, row - f.StartRow
}

// Field returns field (row, col)'s raw bytes, translating the logical row
// number into the owning file's local row number.
func (ix *Index) Field(row int64, col int) []byte {
	f, local := ix.locate(row)
	return f.Index.Field(local, col)
}

// WasEscaped reports whether field (row, col) requires unescaping,
// translating the logical row number per Field.
func (ix *Index) WasEscaped(row int64, col int) bool {
	f, local := ix.locate(row)
	return f.Index.WasEscaped(local, col)
}

// SourcePath returns the path of the file that contributed row.
func (ix *Index) SourcePath(row int64) string {
	f, _ := ix.locate(row)
	return f.Path
}
