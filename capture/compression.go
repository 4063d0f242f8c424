package capture

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Compression is the container format wrapped around a capture file.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXZ
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionBzip2:
		return "bzip2"
	case CompressionXZ:
		return "xz"
	}
	return "none"
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{0x42, 0x5a, 0x68}
	xzMagic    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// Detect peeks at the head of br without consuming it.
func Detect(br *bufio.Reader) (Compression, error) {
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return CompressionNone, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, nil
	case bytes.HasPrefix(head, bzip2Magic):
		return CompressionBzip2, nil
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXZ, nil
	}
	return CompressionNone, nil
}

// Decompress returns a reader over the decompressed contents of r, detecting
// the compression from its magic bytes.
func Decompress(r io.Reader) (io.Reader, Compression, error) {
	br := bufio.NewReader(r)

	c, err := Detect(br)
	if err != nil {
		return nil, c, errors.Wrap(err, "detecting compression")
	}

	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, errors.Wrap(err, "creating gzip reader")
		}
		return zr, c, nil
	case CompressionBzip2:
		return bzip2.NewReader(br), c, nil
	case CompressionXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, c, errors.Wrap(err, "creating xz reader")
		}
		return xr, c, nil
	}

	return br, c, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// CompressionFor picks the compression a file should be written with from
// its extension.
func CompressionFor(filename string) Compression {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gz":
		return CompressionGzip
	case ".xz":
		return CompressionXZ
	}
	return CompressionNone
}

// Compress wraps w so writes are compressed with c. Closing the returned
// writer flushes the compressor but leaves w open. Bzip2 has no writer in
// the standard library and is rejected.
func Compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "xz writer")
		}
		return xw, nil
	}
	return nil, errors.Errorf("writing %s is not supported", c)
}
