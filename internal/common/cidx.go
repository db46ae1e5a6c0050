package common

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

const (
	// MagicCIDX is the magic header for a materialized-column spill file.
	MagicCIDX = "CCOL"
	// BlockTargetSize is the target size for uncompressed blocks (64KB).
	BlockTargetSize = 64 * 1024
)

// BlockMeta holds metadata for a single compressed block of column values.
type BlockMeta struct {
	StartRow    int64 `json:"startRow"`    // first row number stored in the block
	Offset      int64 `json:"offset"`      // byte offset in the spill file where the block starts
	Length      int64 `json:"length"`      // length of the compressed block in bytes
	RecordCount int64 `json:"recordCount"` // number of records in this block
}

// SparseIndex is the footer of a column spill file: enough to seek
// directly to the block containing a given row without decompressing
// earlier blocks.
type SparseIndex struct {
	Blocks []BlockMeta `json:"blocks"`
}

// BlockWriter writes a materialized column's values to an io.Writer as a
// sequence of LZ4-compressed, 64KB-target blocks, tracked by a sparse
// footer index. This is the disk-spill format used when a column is too
// large to keep its typed array resident.
type BlockWriter struct {
	w           io.Writer
	buffer      []ColumnRecord
	currentSize int
	sparseIndex SparseIndex
	offset      int64
	lw          *lz4.Writer
	rawBuf      bytes.Buffer
	compBuf     bytes.Buffer
}

// NewBlockWriter creates a new BlockWriter.
func NewBlockWriter(w io.Writer) (*BlockWriter, error) {
	n, err := w.Write([]byte(MagicCIDX))
	if err != nil {
		return nil, err
	}
	lw := lz4.NewWriter(io.Discard)
	_ = lw.Apply(lz4.BlockSizeOption(lz4.Block64Kb))

	return &BlockWriter{
		w:      w,
		buffer: make([]ColumnRecord, 0, 1000),
		offset: int64(n),
		lw:     lw,
	}, nil
}

// WriteRecord adds a record to the buffer, flushing a block once the
// buffer reaches BlockTargetSize.
func (bw *BlockWriter) WriteRecord(rec ColumnRecord) error {
	bw.buffer = append(bw.buffer, rec)
	bw.currentSize += len(rec.Value) + 16

	if bw.currentSize >= BlockTargetSize {
		return bw.FlushBlock()
	}
	return nil
}

// FlushBlock compresses the current buffer and writes it as one block.
func (bw *BlockWriter) FlushBlock() error {
	if len(bw.buffer) == 0 {
		return nil
	}

	bw.rawBuf.Reset()
	if err := WriteBatchRecords(&bw.rawBuf, bw.buffer); err != nil {
		return err
	}

	bw.compBuf.Reset()
	bw.lw.Reset(&bw.compBuf)
	if _, err := bw.lw.Write(bw.rawBuf.Bytes()); err != nil {
		return err
	}
	if err := bw.lw.Close(); err != nil {
		return err
	}
	compressedBytes := bw.compBuf.Bytes()

	meta := BlockMeta{
		StartRow:    bw.buffer[0].Row,
		Offset:      bw.offset,
		Length:      int64(len(compressedBytes)),
		RecordCount: int64(len(bw.buffer)),
	}
	bw.sparseIndex.Blocks = append(bw.sparseIndex.Blocks, meta)

	n, err := bw.w.Write(compressedBytes)
	if err != nil {
		return err
	}
	bw.offset += int64(n)

	bw.buffer = bw.buffer[:0]
	bw.currentSize = 0
	return nil
}

// Close finalizes the file: flushes any remaining buffered records and
// writes the sparse-index footer followed by its length.
func (bw *BlockWriter) Close() error {
	if err := bw.FlushBlock(); err != nil {
		return err
	}

	footerBytes, err := json.Marshal(bw.sparseIndex)
	if err != nil {
		return err
	}

	n, err := bw.w.Write(footerBytes)
	if err != nil {
		return err
	}

	return binary.Write(bw.w, binary.BigEndian, int64(n))
}

// BlockReader reads back a column spill file written by BlockWriter.
// Supports seek-based (io.ReadSeeker) and mmap-based (zero-copy) modes.
type BlockReader struct {
	r         io.ReadSeeker
	mmapData  []byte
	Footer    SparseIndex
	compBuf   []byte
	decompBuf []byte
	recBuf    []ColumnRecord
}

// NewBlockReader initializes a seek-based reader and loads the footer.
func NewBlockReader(r io.ReadSeeker) (*BlockReader, error) {
	if _, err := r.Seek(-8, io.SeekEnd); err != nil {
		return nil, err
	}

	var footerLen int64
	if err := binary.Read(r, binary.BigEndian, &footerLen); err != nil {
		return nil, err
	}

	if _, err := r.Seek(-(8 + footerLen), io.SeekEnd); err != nil {
		return nil, err
	}

	footerBytes := make([]byte, footerLen)
	if _, err := io.ReadFull(r, footerBytes); err != nil {
		return nil, err
	}

	var footer SparseIndex
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return nil, err
	}

	return &BlockReader{r: r, Footer: footer}, nil
}

// NewBlockReaderMmap creates a mmap-based block reader (zero-copy).
// Call Cleanup() when done to unmap.
func NewBlockReaderMmap(path string) (*BlockReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := mmapFile(f)
	if err != nil {
		return nil, err
	}

	if len(data) < 8 {
		_ = munmapFile(data)
		return nil, fmt.Errorf("spill file too small: %d bytes", len(data))
	}

	footerLen := int64(binary.BigEndian.Uint64(data[len(data)-8:]))
	footerStart := int64(len(data)) - 8 - footerLen
	if footerStart < 4 {
		_ = munmapFile(data)
		return nil, fmt.Errorf("invalid footer: start=%d", footerStart)
	}

	var footer SparseIndex
	if err := json.Unmarshal(data[footerStart:int64(len(data))-8], &footer); err != nil {
		_ = munmapFile(data)
		return nil, err
	}

	return &BlockReader{mmapData: data, Footer: footer}, nil
}

// Cleanup releases mmap resources. Safe to call on non-mmap readers.
func (br *BlockReader) Cleanup() {
	if br.mmapData != nil {
		_ = munmapFile(br.mmapData)
		br.mmapData = nil
	}
}

// ReadBlock decompresses one block and batch-parses its records.
func (br *BlockReader) ReadBlock(meta BlockMeta) ([]ColumnRecord, error) {
	var compData []byte

	if br.mmapData != nil {
		end := meta.Offset + meta.Length
		if end > int64(len(br.mmapData)) {
			return nil, fmt.Errorf("block extends past mmap boundary: %d > %d", end, len(br.mmapData))
		}
		compData = br.mmapData[meta.Offset:end]
	} else {
		if _, err := br.r.Seek(meta.Offset, io.SeekStart); err != nil {
			return nil, err
		}

		needed := int(meta.Length)
		if cap(br.compBuf) < needed {
			br.compBuf = make([]byte, needed)
		}
		br.compBuf = br.compBuf[:needed]

		if _, err := io.ReadFull(br.r, br.compBuf); err != nil {
			return nil, err
		}
		compData = br.compBuf
	}

	lr := lz4.NewReader(bytes.NewReader(compData))

	if cap(br.decompBuf) < BlockTargetSize*2 {
		br.decompBuf = make([]byte, 0, BlockTargetSize*2)
	}
	br.decompBuf = br.decompBuf[:0]

	var tmpBuf [8192]byte
	for {
		n, err := lr.Read(tmpBuf[:])
		if n > 0 {
			br.decompBuf = append(br.decompBuf, tmpBuf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	count := len(br.decompBuf) / RecordSize
	if count == 0 {
		br.recBuf = br.recBuf[:0]
		return br.recBuf, nil
	}

	if cap(br.recBuf) < count {
		br.recBuf = make([]ColumnRecord, count)
	}
	br.recBuf = br.recBuf[:count]

	for i := 0; i < count; i++ {
		offset := i * RecordSize
		br.recBuf[i] = decodeRecord(br.decompBuf[offset : offset+RecordSize])
	}

	return br.recBuf, nil
}
