// Command benchmark generates a synthetic delimited fixture and times
// BuildIndex against it, reporting throughput the way the teacher's
// fixture-generator-plus-timer benchmark did, retargeted from the old
// key-column indexer to the full field-offset index.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/indexer"
)

func main() {
	sizeMB := 500
	if len(os.Args) > 1 {
		if n, err := fmt.Sscanf(os.Args[1], "%d", &sizeMB); err != nil || n != 1 {
			fmt.Println("usage: benchmark [size_mb]")
			return
		}
	}

	fmt.Printf("Generating %d MB CSV...\n", sizeMB)
	tmpDir, err := os.MkdirTemp("", "csvquery_bench")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	csvPath := filepath.Join(tmpDir, "bench.csv")
	bytesWritten, rows, err := generateFixture(csvPath, int64(sizeMB)*1024*1024)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Generated %d rows (%.2f MB)\n", rows, float64(bytesWritten)/1024/1024)

	f, err := os.Open(csvPath)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	region, err := common.NewByteRegionFromFile(f)
	if err != nil {
		panic(err)
	}
	defer region.Close()

	cfg := config.DefaultReadConfig()
	cfg.NumThreads = runtime.NumCPU()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Starting Indexing...")
	start := time.Now()
	ix, err := indexer.BuildIndex(region, &cfg)
	if err != nil {
		panic(err)
	}
	elapsed := time.Since(start)

	mbPerSec := float64(bytesWritten) / 1024 / 1024 / elapsed.Seconds()
	fmt.Printf("\n--------------------------------------------------\n")
	fmt.Printf("Rows indexed:  %d\n", ix.NumRows)
	fmt.Printf("Columns:       %d\n", ix.NumCols)
	fmt.Printf("Throughput:    %.2f MB/s\n", mbPerSec)
	fmt.Printf("Time:          %v\n", elapsed)
	fmt.Printf("--------------------------------------------------\n")
}

func generateFixture(path string, limit int64) (int64, int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 64*1024)
	w.WriteString("id,code,value,description\n")

	rng := rand.New(rand.NewSource(123))
	var bytesWritten int64
	rows := 0
	buf := make([]byte, 0, 1024)

	for bytesWritten < limit {
		rows++
		buf = buf[:0]
		buf = fmt.Appendf(buf, "%d,US-%d,%d,\"Description for item %d with some padding to make it longer\"\n",
			rows, rng.Intn(1000), rng.Intn(10000), rows)
		n, err := w.Write(buf)
		bytesWritten += int64(n)
		if err != nil {
			return bytesWritten, rows, err
		}
	}
	return bytesWritten, rows, w.Flush()
}
