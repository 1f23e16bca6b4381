package hprof

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Reader provides buffered, forward-only reading of HPROF binary data.
// It tracks the absolute offset of every byte it hands out.
type Reader struct {
	r       *bufio.Reader
	idSize  int
	offset  int64
	byteBuf []byte
}

// NewReader creates a new HPROF reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:       bufio.NewReaderSize(r, 64*1024), // 64KB buffer
		idSize:  8,                                // Default to 8, will be set from header
		byteBuf: make([]byte, 8),
	}
}

// SetIDSize sets the identifier size (4 or 8 bytes).
func (r *Reader) SetIDSize(size int) {
	r.idSize = size
}

// IDSize returns the current identifier size.
func (r *Reader) IDSize() int {
	return r.idSize
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// ReadHeader reads the HPROF file header and fixes the identifier size
// for the rest of the stream.
func (r *Reader) ReadHeader() (*Header, error) {
	format, err := r.readFormat()
	if err != nil {
		return nil, err
	}

	sizeOffset := r.offset
	idSize, err := r.ReadUint32()
	if err != nil {
		return nil, withTag(err, "HEADER")
	}
	if idSize != 4 && idSize != 8 {
		return nil, &DecodeError{
			Kind:   ErrMalformedHeader,
			Offset: sizeOffset,
			Detail: fmt.Sprintf("identifier size %d is not 4 or 8", idSize),
		}
	}
	r.idSize = int(idSize)

	// Milliseconds since epoch
	timestamp, err := r.ReadUint64()
	if err != nil {
		return nil, withTag(err, "HEADER")
	}

	return &Header{
		Format:    string(format),
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(int64(timestamp)),
	}, nil
}

// maxFormatLength bounds the null-terminated format string of the header.
const maxFormatLength = 64

// readFormat reads the header's format string without its terminator.
func (r *Reader) readFormat() ([]byte, error) {
	format := make([]byte, 0, 32)
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &DecodeError{
					Kind:   ErrMalformedHeader,
					Offset: r.offset,
					Detail: "format string is not null-terminated",
				}
			}
			return nil, fmt.Errorf("failed to read format string: %w", err)
		}
		r.offset++
		if b == 0 {
			return format, nil
		}
		if len(format) == maxFormatLength {
			return nil, &DecodeError{
				Kind:   ErrMalformedHeader,
				Offset: r.offset - 1,
				Detail: fmt.Sprintf("format string exceeds %d bytes", maxFormatLength),
			}
		}
		format = append(format, b)
	}
}

// ReadRecordHeader reads a record header (tag, time delta, length).
// It returns io.EOF only when the stream ends exactly on a record
// boundary.
func (r *Reader) ReadRecordHeader() (tag RecordTag, timeDelta uint32, length uint32, err error) {
	tagByte, err := r.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, 0, io.EOF
		}
		return 0, 0, 0, err
	}
	r.offset++
	tag = RecordTag(tagByte)

	if err := r.readFull(r.byteBuf[:8]); err != nil {
		return 0, 0, 0, withTag(err, tag.String())
	}
	timeDelta = binary.BigEndian.Uint32(r.byteBuf[:4])
	length = binary.BigEndian.Uint32(r.byteBuf[4:8])

	return tag, timeDelta, length, nil
}

// eagerBodySize is the largest body allocated up front. Larger bodies
// grow with the bytes actually read, so a forged length on a short
// stream cannot force a large allocation.
const eagerBodySize = 1 << 20

// ReadBody reads the n-byte body of a record into a new slice.
func (r *Reader) ReadBody(n uint32) ([]byte, error) {
	if n <= eagerBodySize {
		buf := make([]byte, n)
		if err := r.readFull(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	start := r.offset
	var buf bytes.Buffer
	buf.Grow(eagerBodySize)
	copied, err := io.CopyN(&buf, r.r, int64(n))
	r.offset += copied
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodeError{
				Kind:     ErrTruncatedRecord,
				Offset:   start,
				Expected: int64(n),
				Actual:   copied,
			}
		}
		return nil, fmt.Errorf("failed to read %d bytes: %w", n, err)
	}
	return buf.Bytes(), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.readFull(r.byteBuf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.byteBuf[:4]), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.readFull(r.byteBuf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.byteBuf[:8]), nil
}

// Skip skips n bytes.
func (r *Reader) Skip(n int64) error {
	start := r.offset
	skipped, err := r.r.Discard(int(n))
	r.offset += int64(skipped)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &DecodeError{
				Kind:     ErrTruncatedRecord,
				Offset:   start,
				Expected: n,
				Actual:   int64(skipped),
			}
		}
		return fmt.Errorf("failed to skip %d bytes: %w", n, err)
	}
	return nil
}

// readFull fills buf, reporting a short read as a truncated record.
func (r *Reader) readFull(buf []byte) error {
	start := r.offset
	n, err := io.ReadFull(r.r, buf)
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &DecodeError{
				Kind:     ErrTruncatedRecord,
				Offset:   start,
				Expected: int64(len(buf)),
				Actual:   int64(n),
			}
		}
		return fmt.Errorf("failed to read %d bytes: %w", len(buf), err)
	}
	return nil
}
