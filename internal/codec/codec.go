// Package codec dispatches compression framing by filename suffix, the
// way nao1215/filesql's streamingParser.createDecompressedReader switches
// on FileType: {.gz, .bz2, .xz} map to a decoding/encoding byte-stream
// wrapper, an external collaborator per spec §4.7/§6. The core never
// implements a codec itself.
package codec

import (
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"
	"path/filepath"
	"strings"

	"github.com/csvquery/csvquery/internal/errs"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Suffix returns the recognized compression suffix of path ("" if none).
// .zip is recognized for reads only (see NewWriter).
func Suffix(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gz", ".bz2", ".xz", ".zip":
		return ext
	default:
		return ""
	}
}

// NewReader wraps r with a decompressing reader for path's suffix. An
// unrecognized suffix (including none) returns r unchanged.
func NewReader(path string, r io.Reader) (io.Reader, error) {
	switch Suffix(path) {
	case ".gz":
		zr, err := kgzip.NewReader(r)
		if err != nil {
			return nil, errs.Wrap(errs.CodecError, err, "opening gzip stream")
		}
		return zr, nil
	case ".bz2":
		return bzip2.NewReader(r), nil
	case ".xz":
		zr, err := xz.NewReader(bufio.NewReader(r))
		if err != nil {
			return nil, errs.Wrap(errs.CodecError, err, "opening xz stream")
		}
		return zr, nil
	case ".zip":
		return newZipEntryReader(r)
	default:
		return r, nil
	}
}

// newZipEntryReader buffers r fully (the zip central directory sits at
// the end of the archive, so a streaming io.Reader cannot be opened
// lazily the way gzip/xz can) and returns the archive's first file entry,
// matching how single-table zip exports (e.g. a spreadsheet's "export as
// zipped CSV") are shaped: one data file per archive.
func newZipEntryReader(r io.Reader) (io.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.CodecError, err, "reading zip archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Wrap(errs.CodecError, err, "opening zip archive")
	}
	if len(zr.File) == 0 {
		return nil, errs.New(errs.CodecError, "zip archive contains no files")
	}
	f, err := zr.File[0].Open()
	if err != nil {
		return nil, errs.Wrap(errs.CodecError, err, "opening zip entry %q", zr.File[0].Name)
	}
	return f, nil
}

// NewWriter wraps w with a compressing writer for path's suffix. The
// caller must Close the returned WriteCloser to flush trailing frames. An
// unrecognized suffix (including none) returns a no-op closer around w.
//
// .bz2 write support is not available: the retrieved example pack only
// carries bzip2 decoders (compress/bzip2, nao1215/filesql's bz2 read
// path); no bzip2 encoder ships with any example's dependency set, so
// requesting a .bz2 output is a CodecError rather than a silent fallback.
//
// .zip is read-only by spec: archive/zip's writer needs to own the whole
// central directory and isn't a drop-in streaming io.WriteCloser the way
// the other codecs are, so a .zip output path is also a CodecError rather
// than silently writing an uncompressed file with a .zip name.
func NewWriter(path string, w io.Writer) (io.WriteCloser, error) {
	switch Suffix(path) {
	case ".gz":
		return kgzip.NewWriter(w), nil
	case ".bz2":
		return nil, errs.New(errs.CodecError, "writing .bz2 output is not supported")
	case ".zip":
		return nil, errs.New(errs.CodecError, "writing .zip output is not supported")
	case ".xz":
		zw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errs.Wrap(errs.CodecError, err, "opening xz writer")
		}
		return zw, nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
