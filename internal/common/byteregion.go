// Package common provides the shared byte-access and on-disk record
// primitives used across the indexer, column store and writer: the
// ByteRegion abstraction (Component A) and the binary record format
// used by the column store's disk-spill cache.
package common

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ByteRegion is a view over a finite, immutable byte sequence with random
// access. It is backed either by a memory mapping (preferred for
// uncompressed, seekable files) or by a single pre-allocated buffer holding
// fully decompressed content. Bytes are immutable for the region's
// lifetime; the region outlives every Index and Column that references it.
type ByteRegion struct {
	data     []byte
	isMapped bool
	unmap    func([]byte) error
	closed   bool
}

// NewByteRegionFromFile memory-maps f when possible. The caller must Close
// the returned region when no Column or Index still references it.
func NewByteRegionFromFile(f *os.File) (*ByteRegion, error) {
	data, err := mmapFile(f)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &ByteRegion{data: data, isMapped: true, unmap: munmapFile}, nil
}

// NewByteRegionFromReader fully drains r into memory. Used for streamed
// sources (stdin, decompressed pipes) that cannot be memory-mapped.
func NewByteRegionFromReader(r io.Reader) (*ByteRegion, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return &ByteRegion{data: data}, nil
}

// NewByteRegionFromBytes wraps an already-resident buffer without copying.
func NewByteRegionFromBytes(b []byte) *ByteRegion {
	return &ByteRegion{data: b}
}

// Len returns the region's byte length.
func (b *ByteRegion) Len() int { return len(b.data) }

// Slice returns the half-open byte range [lo, hi). The returned slice
// aliases the region's backing storage; callers must not retain it past
// the region's lifetime without copying.
func (b *ByteRegion) Slice(lo, hi int) []byte {
	return b.data[lo:hi]
}

// StartsWith reports whether the byte at off begins needle.
func (b *ByteRegion) StartsWith(off int, needle []byte) bool {
	end := off + len(needle)
	if off < 0 || end > len(b.data) {
		return false
	}
	return bytes.Equal(b.data[off:end], needle)
}

// IsMapped reports whether the region is backed by a memory mapping, so
// the indexer can choose between mapped parallel chunks and streamed
// scanning.
func (b *ByteRegion) IsMapped() bool { return b.isMapped }

// Bytes returns the full backing slice. Callers must treat it as
// read-only.
func (b *ByteRegion) Bytes() []byte { return b.data }

// Close releases the underlying mapping, if any. Safe to call more than
// once.
func (b *ByteRegion) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.unmap != nil {
		return b.unmap(b.data)
	}
	return nil
}
