package hprof

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/SagenKoder/hprof-parser/pkg/utils"
)

// ParserOptions configures the HPROF parser.
type ParserOptions struct {
	// ResolveCacheSize bounds the number of resolved class field lists
	// kept between instance dumps. 0 disables the cache.
	ResolveCacheSize int
	// MaxBodySize rejects records whose declared body is larger than this
	// many bytes before any memory is allocated for them. 0 means no limit.
	MaxBodySize uint32
	// Logger is used for debug logging. If nil, debug logs are suppressed.
	Logger utils.Logger
}

// DefaultParserOptions returns default parser options.
func DefaultParserOptions() *ParserOptions {
	return &ParserOptions{
		ResolveCacheSize: 4096,
	}
}

// ParseSummary counts the records delivered during one parse.
type ParseSummary struct {
	Header *Header

	Strings          int64
	LoadClasses      int64
	UnloadClasses    int64
	HeapDumps        int64
	HeapDumpSegments int64
	HeapDumpEnds     int64
	SkippedRecords   int64
	SkippedBytes     int64

	Roots               int64
	ClassDumps          int64
	InstanceDumps       int64
	ObjectArrayDumps    int64
	PrimitiveArrayDumps int64

	BytesRead int64
}

// Records returns the number of top-level records seen, skipped ones
// included.
func (s *ParseSummary) Records() int64 {
	return s.Strings + s.LoadClasses + s.UnloadClasses + s.HeapDumps +
		s.HeapDumpSegments + s.HeapDumpEnds + s.SkippedRecords
}

// SubRecords returns the number of heap dump sub-records seen.
func (s *ParseSummary) SubRecords() int64 {
	return s.Roots + s.ClassDumps + s.InstanceDumps + s.ObjectArrayDumps + s.PrimitiveArrayDumps
}

// Parser decodes HPROF streams. A Parser holds no per-stream state and
// may be reused; each Parse call owns its own class registry.
type Parser struct {
	opts *ParserOptions
}

// NewParser creates a new HPROF parser.
func NewParser(opts *ParserOptions) *Parser {
	if opts == nil {
		opts = DefaultParserOptions()
	}
	return &Parser{opts: opts}
}

// debugf logs a debug message if logger is configured.
func (p *Parser) debugf(format string, args ...interface{}) {
	if p.opts.Logger != nil {
		p.opts.Logger.Debug(format, args...)
	}
}

// session is the state of one in-progress parse.
type session struct {
	ctx      context.Context
	reader   *Reader
	registry *ClassRegistry
	handler  RecordHandler
	summary  *ParseSummary
}

// handlerError marks an error returned by a RecordHandler so the decoder
// passes it through untouched.
type handlerError struct {
	callback string
	err      error
}

func (e *handlerError) Error() string {
	return fmt.Sprintf("%s handler: %v", e.callback, e.err)
}

func (e *handlerError) Unwrap() error {
	return e.err
}

func deliver(callback string, err error) error {
	if err != nil {
		return &handlerError{callback: callback, err: err}
	}
	return nil
}

// Parse reads the header and every record from r and delivers them to h.
// It returns after Finished has been delivered or at the first error;
// all errors are fatal and no callbacks follow them.
func (p *Parser) Parse(ctx context.Context, r io.Reader, h RecordHandler) (*ParseSummary, error) {
	if h == nil {
		h = NullHandler{}
	}

	s := &session{
		ctx:      ctx,
		reader:   NewReader(r),
		registry: NewClassRegistry(p.opts.ResolveCacheSize),
		handler:  h,
		summary:  &ParseSummary{},
	}

	header, err := s.reader.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	s.summary.Header = header
	p.debugf("HPROF header: format=%q idSize=%d timestamp=%s",
		header.Format, header.IDSize, header.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"))
	if err := deliver("header", h.Header(*header)); err != nil {
		return nil, err
	}

	if err := p.parseRecords(s); err != nil {
		return nil, err
	}

	if err := deliver("finished", h.Finished()); err != nil {
		return nil, err
	}
	s.summary.BytesRead = s.reader.Offset()

	p.debugf("Parsed %d records (%d skipped, %d bytes), %d heap sub-records: %d classes, %d instances, %d object arrays, %d primitive arrays, %d roots",
		s.summary.Records(), s.summary.SkippedRecords, s.summary.BytesRead, s.summary.SubRecords(),
		s.summary.ClassDumps, s.summary.InstanceDumps, s.summary.ObjectArrayDumps,
		s.summary.PrimitiveArrayDumps, s.summary.Roots)

	return s.summary, nil
}

// parseRecords decodes top-level records until the stream ends.
func (p *Parser) parseRecords(s *session) error {
	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		tag, _, length, err := s.reader.ReadRecordHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch tag {
		case TagString:
			err = p.parseStringRecord(s, length)
		case TagLoadClass:
			err = p.parseLoadClassRecord(s, length)
		case TagUnloadClass:
			err = p.parseUnloadClassRecord(s, length)
		case TagHeapDump, TagHeapDumpSegment:
			err = p.parseHeapDumpRecord(s, tag, length)
		case TagHeapDumpEnd:
			err = p.parseHeapDumpEndRecord(s, length)
		default:
			// The length is known even though the shape is not.
			p.debugf("Skipping %s record of %d bytes at offset %d", tag, length, s.reader.Offset())
			if err = s.reader.Skip(int64(length)); err == nil {
				s.summary.SkippedRecords++
				s.summary.SkippedBytes += int64(length)
			}
		}
		if err != nil {
			return withTag(err, tag.String())
		}
	}
}

// expectLength fails with a framing violation unless the declared body
// length equals the length of the record's fixed shape.
func expectLength(s *session, tag RecordTag, length uint32, want int) error {
	if int64(length) != int64(want) {
		return &DecodeError{
			Kind:     ErrFramingViolation,
			Offset:   s.reader.Offset(),
			Tag:      tag.String(),
			Expected: int64(want),
			Actual:   int64(length),
			Detail:   "declared body length does not match record shape",
		}
	}
	return nil
}

// readBody reads a whole record body into a window.
func (p *Parser) readBody(s *session, tag RecordTag, length uint32) (*window, error) {
	if p.opts.MaxBodySize > 0 && length > p.opts.MaxBodySize {
		return nil, &DecodeError{
			Kind:     ErrFramingViolation,
			Offset:   s.reader.Offset(),
			Tag:      tag.String(),
			Expected: int64(p.opts.MaxBodySize),
			Actual:   int64(length),
			Detail:   "declared body length exceeds the configured maximum",
		}
	}
	base := s.reader.Offset()
	body, err := s.reader.ReadBody(length)
	if err != nil {
		return nil, err
	}
	return newWindow(body, base, s.reader.IDSize()), nil
}

// parseStringRecord parses a STRING IN UTF8 record.
func (p *Parser) parseStringRecord(s *session, length uint32) error {
	if int(length) < s.reader.IDSize() {
		return expectLength(s, TagString, length, s.reader.IDSize())
	}
	w, err := p.readBody(s, TagString, length)
	if err != nil {
		return err
	}
	id, err := w.id("string id")
	if err != nil {
		return err
	}
	text := string(w.buf[w.pos:])

	s.summary.Strings++
	return deliver("string", s.handler.StringUTF8(id, text))
}

// parseLoadClassRecord parses a LOAD CLASS record.
func (p *Parser) parseLoadClassRecord(s *session, length uint32) error {
	if err := expectLength(s, TagLoadClass, length, 2*4+2*s.reader.IDSize()); err != nil {
		return err
	}
	w, err := p.readBody(s, TagLoadClass, length)
	if err != nil {
		return err
	}

	var rec LoadClass
	if rec.ClassSerial, err = w.u4("class serial"); err != nil {
		return err
	}
	if rec.ClassID, err = w.id("class id"); err != nil {
		return err
	}
	if rec.StackTraceSerial, err = w.u4("stack trace serial"); err != nil {
		return err
	}
	if rec.NameID, err = w.id("class name id"); err != nil {
		return err
	}

	s.summary.LoadClasses++
	return deliver("load class", s.handler.LoadClass(rec))
}

// parseUnloadClassRecord parses an UNLOAD CLASS record.
func (p *Parser) parseUnloadClassRecord(s *session, length uint32) error {
	if err := expectLength(s, TagUnloadClass, length, 4); err != nil {
		return err
	}
	serial, err := s.reader.ReadUint32()
	if err != nil {
		return err
	}

	s.summary.UnloadClasses++
	return deliver("unload class", s.handler.UnloadClass(serial))
}

// parseHeapDumpEndRecord parses a HEAP DUMP END record.
func (p *Parser) parseHeapDumpEndRecord(s *session, length uint32) error {
	if err := expectLength(s, TagHeapDumpEnd, length, 0); err != nil {
		return err
	}

	s.summary.HeapDumpEnds++
	return deliver("heap dump end", s.handler.HeapDumpEnd())
}

// parseHeapDumpRecord parses a HEAP DUMP or HEAP DUMP SEGMENT record.
// Segments are decoded independently; producers split heap dumps only
// on sub-record boundaries.
func (p *Parser) parseHeapDumpRecord(s *session, tag RecordTag, length uint32) error {
	w, err := p.readBody(s, tag, length)
	if err != nil {
		return err
	}
	p.debugf("%s window of %d bytes at offset %d", tag, length, w.base)

	if tag == TagHeapDump {
		s.summary.HeapDumps++
		err = deliver("heap dump", s.handler.HeapDump())
	} else {
		s.summary.HeapDumpSegments++
		err = deliver("heap dump segment", s.handler.HeapDumpSegment())
	}
	if err != nil {
		return err
	}

	return p.parseHeapDumpWindow(s, w)
}

// isHandlerError reports whether err came from a RecordHandler.
func isHandlerError(err error) bool {
	var he *handlerError
	return errors.As(err, &he)
}
