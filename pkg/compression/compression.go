// Package compression provides streaming decompression for compressed heap dumps.
package compression

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type represents the compression algorithm used.
type Type uint8

const (
	// TypeGzip is gzip (magic 0x1f 0x8b)
	TypeGzip Type = 0
	// TypeZstd is zstd (magic 0x28 0xb5 0x2f 0xfd)
	TypeZstd Type = 1
	// TypeNone represents no compression
	TypeNone Type = 255
)

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	case TypeNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// magicLen is the longest magic prefix DetectType inspects.
const magicLen = 4

// DetectType detects the compression type from magic bytes.
// Data matching no known magic is TypeNone.
func DetectType(data []byte) Type {
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return TypeZstd
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return TypeGzip
	}
	return TypeNone
}

// NewReader sniffs the compression type of r and returns a reader of the
// decompressed stream. Uncompressed streams pass through unchanged.
// Closing the returned reader does not close r.
func NewReader(r io.Reader) (io.ReadCloser, Type, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(magicLen)
	if err != nil && err != io.EOF {
		return nil, TypeNone, fmt.Errorf("failed to sniff compression type: %w", err)
	}

	t := DetectType(magic)
	switch t {
	case TypeGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, t, nil
	case TypeZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return dec.IOReadCloser(), t, nil
	default:
		return io.NopCloser(br), TypeNone, nil
	}
}
