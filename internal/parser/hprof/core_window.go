package hprof

import "encoding/binary"

// window is a cursor over one record body that has already been read
// into memory. Reads never go past the end of buf.
type window struct {
	buf    []byte
	pos    int
	base   int64 // stream offset of buf[0]
	idSize int
}

func newWindow(buf []byte, base int64, idSize int) *window {
	return &window{buf: buf, base: base, idSize: idSize}
}

func (w *window) remaining() int {
	return len(w.buf) - w.pos
}

func (w *window) offset() int64 {
	return w.base + int64(w.pos)
}

// take returns the next n bytes and advances past them.
func (w *window) take(n int, what string) ([]byte, error) {
	if n < 0 || n > w.remaining() {
		return nil, &DecodeError{
			Kind:     ErrTruncatedRecord,
			Offset:   w.offset(),
			Expected: int64(n),
			Actual:   int64(w.remaining()),
			Detail:   "reading " + what,
		}
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b, nil
}

func (w *window) u1(what string) (uint8, error) {
	b, err := w.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (w *window) u2(what string) (uint16, error) {
	b, err := w.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (w *window) u4(what string) (uint32, error) {
	b, err := w.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// id reads one identifier of the stream's identifier size.
func (w *window) id(what string) (uint64, error) {
	b, err := w.take(w.idSize, what)
	if err != nil {
		return 0, err
	}
	if w.idSize == 4 {
		return uint64(binary.BigEndian.Uint32(b)), nil
	}
	return binary.BigEndian.Uint64(b), nil
}
