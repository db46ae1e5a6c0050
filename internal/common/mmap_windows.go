//go:build windows
// +build windows

package common

import (
	"io"
	"os"
)

// mmapFile falls back to ReadAll on Windows to avoid unsafe pointer
// arithmetic complexity without an external mmap library.
// TODO: implement proper Windows mmap via golang.org/x/sys/windows.
func mmapFile(f *os.File) ([]byte, error) {
	return io.ReadAll(f)
}

// munmapFile is a no-op for the ReadAll-backed Windows fallback: the
// ByteRegion simply lets the GC collect the buffer.
func munmapFile(data []byte) error {
	return nil
}
