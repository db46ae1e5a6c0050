// Command reader is the CLI surface over the core library: read a
// delimited or fixed-width file into a Table, inspect its inferred
// schema, or reformat/write it back out. Grounded on the teacher's
// src/go/main.go command dispatch (index/query/daemon/write subcommands,
// flag.NewFlagSet per command, signal-based graceful shutdown), retargeted
// from an index-build-and-query CLI to read/write/infer.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/csvquery/csvquery/internal/codec"
	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/indexer"
	"github.com/csvquery/csvquery/internal/progress"
	"github.com/csvquery/csvquery/internal/store"
	"github.com/csvquery/csvquery/internal/writer"
)

const (
	version   = "1.0.0"
	buildDate = "2026-07-30"
)

var (
	shutdownChan = make(chan os.Signal, 1)
	cleanupFuncs []func()
)

func main() {
	setupSignalHandler()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "read":
		runRead(os.Args[2:])
	case "write":
		runWrite(os.Args[2:])
	case "infer":
		runInfer(os.Args[2:])
	case "version":
		fmt.Printf("csvquery-reader v%s (%s)\n", version, buildDate)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func setupSignalHandler() {
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownChan
		fmt.Fprintln(os.Stderr, "\nreceived shutdown signal, cleaning up...")
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
		os.Exit(130)
	}()
}

func printUsage() {
	fmt.Println(`reader - indexed columnar reader/writer for delimited and fixed-width text

Usage:
    reader <command> [arguments]

Commands:
    read     Build a Table from a file and print a schema summary (optionally re-write it)
    write    Write header + tab-separated stdin rows to a delimited file
    infer    Print the inferred column types for a file without materializing it
    version  Show version
    help     Show this help

Use "reader <command> -h" for command-specific options.`)
}

func printBanner(title string) {
	fmt.Println("+------------------------------------------------------------------+")
	fmt.Printf("|  %-64s|\n", title)
	fmt.Println("+------------------------------------------------------------------+")
}

// openRegion loads path into a ByteRegion, transparently decompressing by
// suffix (internal/codec) when the source cannot be mapped directly.
func openRegion(path string) (*common.ByteRegion, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if codec.Suffix(path) == "" {
		region, err := common.NewByteRegionFromFile(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return region, func() { region.Close(); f.Close() }, nil
	}
	r, err := codec.NewReader(path, bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	region, err := common.NewByteRegionFromReader(r)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return region, func() { f.Close() }, nil
}

func runRead(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	input := fs.String("input", "", "input file path")
	output := fs.String("output", "", "if set, re-write the table here after reading")
	delim := fs.String("delim", "", "field delimiter; empty autodetects")
	hasHeader := fs.Bool("header", true, "input has a header row")
	naStrings := fs.String("na", "NA,", "comma-separated NA sentinel strings")
	guessMax := fs.Int64("guess-max", 1000, "rows sampled for type inference")
	workers := fs.Int("workers", runtime.NumCPU(), "parallel scan workers")
	_ = fs.Parse(args)

	if *input == "" {
		requiredFlag(fs, "input")
	}

	cfg := config.DefaultReadConfig()
	cfg.HasHeader = *hasHeader
	cfg.GuessMax = *guessMax
	cfg.NumThreads = *workers
	cfg.NAStrings = strings.Split(*naStrings, ",")
	if *delim != "" {
		cfg.Delim = (*delim)[0]
	}
	if err := cfg.Validate(); err != nil {
		fatalf("invalid configuration: %v", err)
	}

	printBanner("READER: read")
	fmt.Printf("Input:   %s\n", *input)

	region, closeRegion, err := openRegion(*input)
	if err != nil {
		fatalf("opening %s: %v", *input, err)
	}
	defer closeRegion()

	sink := progress.NewSink(int64(region.Len()))
	cfg.Progress = sink
	stopProgress := sink.Subscribe(func(s progress.Snapshot) {
		fmt.Fprintf(os.Stderr, "\r  %d rows, %d/%d bytes indexed", s.RowsIndexed, s.BytesIndexed, s.BytesTotal)
	})
	defer stopProgress()

	ix, err := indexer.BuildIndex(region, &cfg)
	if err != nil {
		fatalf("indexing: %v", err)
	}
	stopProgress()
	fmt.Fprintln(os.Stderr)

	table, err := store.BuildTable(ix, &cfg, nil)
	if err != nil {
		fatalf("building table: %v", err)
	}

	fmt.Printf("Rows:    %d\n", table.NumRows())
	fmt.Printf("Columns: %d\n", table.NumCols())
	for i, name := range table.Names() {
		fmt.Printf("  %-20s %s\n", name, table.Types()[i])
	}
	if n := ix.Problems.Len(); n > 0 {
		fmt.Printf("Problems logged: %d\n", n)
	}

	if *output != "" {
		if err := writeTable(table, *output, config.DefaultWriteConfig()); err != nil {
			fatalf("writing %s: %v", *output, err)
		}
		fmt.Printf("Wrote:   %s\n", *output)
	}
}

func runInfer(args []string) {
	fs := flag.NewFlagSet("infer", flag.ExitOnError)
	input := fs.String("input", "", "input file path")
	guessMax := fs.Int64("guess-max", 1000, "rows sampled for type inference")
	_ = fs.Parse(args)

	if *input == "" {
		requiredFlag(fs, "input")
	}

	cfg := config.DefaultReadConfig()
	cfg.GuessMax = *guessMax
	if err := cfg.Validate(); err != nil {
		fatalf("invalid configuration: %v", err)
	}

	region, closeRegion, err := openRegion(*input)
	if err != nil {
		fatalf("opening %s: %v", *input, err)
	}
	defer closeRegion()

	ix, err := indexer.BuildIndex(region, &cfg)
	if err != nil {
		fatalf("indexing: %v", err)
	}
	table, err := store.BuildTable(ix, &cfg, nil)
	if err != nil {
		fatalf("inferring schema: %v", err)
	}

	for i, name := range table.Names() {
		fmt.Printf("%s: %s\n", name, table.Types()[i])
	}
}

func runWrite(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	output := fs.String("output", "", "output file path")
	headersCSV := fs.String("headers", "", "comma-separated header names")
	delim := fs.String("delim", ",", "field delimiter")
	policy := fs.String("quote-policy", "needs", "quoting policy: needs, always, never")
	_ = fs.Parse(args)

	if *output == "" || *headersCSV == "" {
		requiredFlag(fs, "output and headers")
	}

	var headers []string
	for _, h := range strings.Split(*headersCSV, ",") {
		headers = append(headers, strings.TrimSpace(h))
	}

	rows, err := readDataRows(os.Stdin, len(headers))
	if err != nil {
		fatalf("reading row data from stdin: %v", err)
	}

	cfg := config.DefaultWriteConfig()
	if *delim != "" {
		cfg.Delim = (*delim)[0]
	}
	switch *policy {
	case "always":
		cfg.Policy = config.QuoteAlways
	case "never":
		cfg.Policy = config.QuoteNever
	default:
		cfg.Policy = config.QuoteNeeds
	}

	rs := staticRows{header: headers, rows: rows}
	if err := writeTable(rs, *output, cfg); err != nil {
		fatalf("writing %s: %v", *output, err)
	}
	fmt.Printf("Wrote %d rows to %s\n", len(rows), *output)
}

// writeTable serializes rows to path through the codec writer matching
// its suffix, applying cfg (validated here so a caller's zero-value cfg
// still works).
func writeTable(rows writer.Rows, path string, cfg config.WriteConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	wc, err := codec.NewWriter(path, f)
	if err != nil {
		return err
	}
	defer wc.Close()

	sink := bufio.NewWriter(wc)
	return writer.Write(context.Background(), rows, sink, &cfg)
}

// staticRows adapts an in-memory [][]string to writer.Rows, the same
// shape the teacher's `write` command accepted over JSON.
type staticRows struct {
	header []string
	rows   [][]string
}

func (r staticRows) NumRows() int64 { return int64(len(r.rows)) }
func (r staticRows) NumCols() int   { return len(r.header) }
func (r staticRows) Header() []string { return r.header }
func (r staticRows) Field(row int64, col int) (string, bool) {
	v := r.rows[row][col]
	return v, v == ""
}

// readDataRows reads tab-separated lines from r, one row per line,
// padding short rows with empty fields.
func readDataRows(r *os.File, numCols int) ([][]string, error) {
	info, err := r.Stat()
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		// no piped stdin: nothing to write beyond the header.
		return nil, nil
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	var rows [][]string
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		for len(fields) < numCols {
			fields = append(fields, "")
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func requiredFlag(fs *flag.FlagSet, names string) {
	fmt.Fprintf(os.Stderr, "Error: --%s is required\n", names)
	fs.PrintDefaults()
	os.Exit(1)
}
