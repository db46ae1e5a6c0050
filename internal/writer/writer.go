// Package writer implements Component G: a chunked, multi-threaded
// delimited-text formatter. It generalizes the teacher's
// internal/writer.CsvWriter (a single-threaded append-only encoding/csv
// wrapper) into a worker pool that formats row chunks concurrently and
// reassembles them in sequence-number order, per spec §4.7, borrowing the
// per-worker-buffer indexing idiom from the teacher's
// Indexer.Run/workerBuffers pipeline.
package writer

import (
	"bufio"
	"bytes"
	"context"
	"sync"

	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/errs"
)

// Rows is the abstract row source the writer consumes: caller data, a
// store.Table, or any other implementation.
type Rows interface {
	NumRows() int64
	NumCols() int
	Header() []string
	// Field returns the raw textual representation of (row, col) and
	// whether it is NA.
	Field(row int64, col int) (value string, isNA bool)
}

// bufPool recycles the per-chunk formatting buffers, the same buffer
// pooling idiom the teacher's sorter.go uses for its flush buffers.
var bufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Write formats rows to sink per cfg, partitioning into cfg.ChunkRows-row
// chunks processed by cfg.NumThreads workers and reassembled in order.
// sink is expected to already be wrapped with any compression codec the
// caller wants (see internal/codec); Write only ever appends plain bytes.
func Write(ctx context.Context, rows Rows, sink *bufio.Writer, cfg *config.WriteConfig) error {
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(errs.IOError, err, "invalid write configuration")
	}

	if cfg.HasHeader {
		if err := writeHeader(sink, rows.Header(), cfg); err != nil {
			return errs.Wrap(errs.IOError, err, "writing header")
		}
	}

	numRows := rows.NumRows()
	if numRows == 0 {
		return sink.Flush()
	}

	chunkRows := int64(cfg.ChunkRows)
	numChunks := int((numRows + chunkRows - 1) / chunkRows)

	buffers := make([][]byte, numChunks)
	chunkErrs := make([]error, numChunks)

	workers := cfg.NumThreads
	if workers < 1 {
		workers = 1
	}
	if workers > numChunks {
		workers = numChunks
	}

	var wg sync.WaitGroup
	work := make(chan int, numChunks)
	for c := 0; c < numChunks; c++ {
		work <- c
	}
	close(work)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range work {
				select {
				case <-ctx.Done():
					chunkErrs[chunk] = errs.New(errs.Cancelled, "write cancelled")
					continue
				default:
				}
				lo := int64(chunk) * chunkRows
				hi := lo + chunkRows
				if hi > numRows {
					hi = numRows
				}
				data, err := formatChunk(rows, lo, hi, cfg)
				if err != nil {
					chunkErrs[chunk] = err
					continue
				}
				buffers[chunk] = data
			}
		}()
	}
	wg.Wait()

	for _, err := range chunkErrs {
		if err != nil {
			return err
		}
	}
	// Reassembly: chunks are appended in sequence-number order regardless
	// of which worker produced them or when, satisfying spec §4.7's
	// ordering guarantee.
	for _, data := range buffers {
		if _, err := sink.Write(data); err != nil {
			return errs.Wrap(errs.IOError, err, "writing chunk")
		}
	}
	return sink.Flush()
}

func writeHeader(sink *bufio.Writer, names []string, cfg *config.WriteConfig) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	for i, name := range names {
		if i > 0 {
			buf.WriteByte(cfg.Delim)
		}
		needsQuote, _ := needsQuoting(name, cfg)
		writeField(buf, name, needsQuote, cfg)
	}
	buf.WriteByte('\n')
	_, err := sink.Write(buf.Bytes())
	return err
}

// formatChunk renders rows [lo, hi) into a private buffer, returning an
// owned copy so the buffer can be recycled immediately.
func formatChunk(rows Rows, lo, hi int64, cfg *config.WriteConfig) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	numCols := rows.NumCols()
	for r := lo; r < hi; r++ {
		for c := 0; c < numCols; c++ {
			if c > 0 {
				buf.WriteByte(cfg.Delim)
			}
			value, isNA := rows.Field(r, c)
			if isNA {
				writeField(buf, cfg.NAString, false, cfg)
				continue
			}
			needsQuote, err := needsQuoting(value, cfg)
			if err != nil {
				return nil, err
			}
			writeField(buf, value, needsQuote, cfg)
		}
		buf.WriteByte('\n')
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// needsQuoting applies the three quoting policies of spec §4.7.
func needsQuoting(value string, cfg *config.WriteConfig) (bool, error) {
	switch cfg.Policy {
	case config.QuoteAlways:
		return true, nil
	case config.QuoteNever:
		if containsAny(value, cfg.Delim, cfg.Quote) {
			return false, errs.New(errs.IOError, "field %q requires quoting but policy is never", value)
		}
		return false, nil
	default: // QuoteNeeds
		return containsAny(value, cfg.Delim, cfg.Quote), nil
	}
}

func containsAny(value string, delim, quote byte) bool {
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b == delim || b == quote || b == '\r' || b == '\n' {
			return true
		}
	}
	return false
}

func writeField(buf *bytes.Buffer, value string, quote bool, cfg *config.WriteConfig) {
	if !quote {
		buf.WriteString(value)
		return
	}
	buf.WriteByte(cfg.Quote)
	for i := 0; i < len(value); i++ {
		if value[i] == cfg.Quote {
			buf.WriteByte(cfg.Quote)
		}
		buf.WriteByte(value[i])
	}
	buf.WriteByte(cfg.Quote)
}
