package sink

import (
	"bytes"
	"encoding/binary"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
)

// dumpBuilder writes an HPROF stream with 8-byte identifiers.
type dumpBuilder struct {
	buf bytes.Buffer
}

func newDump() *dumpBuilder {
	d := &dumpBuilder{}
	d.buf.WriteString("JAVA PROFILE 1.0.2")
	d.buf.WriteByte(0)
	binary.Write(&d.buf, binary.BigEndian, uint32(8))
	binary.Write(&d.buf, binary.BigEndian, uint64(1700000000000))
	return d
}

func (d *dumpBuilder) record(tag hprof.RecordTag, body []byte) *dumpBuilder {
	d.buf.WriteByte(uint8(tag))
	binary.Write(&d.buf, binary.BigEndian, uint32(0))
	binary.Write(&d.buf, binary.BigEndian, uint32(len(body)))
	d.buf.Write(body)
	return d
}

func (d *dumpBuilder) bytes() []byte {
	return d.buf.Bytes()
}

// be appends big-endian values of any fixed-size type.
func be(vals ...interface{}) []byte {
	var b bytes.Buffer
	for _, v := range vals {
		binary.Write(&b, binary.BigEndian, v)
	}
	return b.Bytes()
}

func str(id uint64, text string) []byte {
	return append(be(id), text...)
}

// pointDump is a small dump with one class "Point" (fields x and y, a
// constant and a static), one instance, one object array, one byte
// array and one root.
func pointDump() []byte {
	heap := bytes.Join([][]byte{
		// ROOT STICKY CLASS
		be(uint8(hprof.HeapTagRootStickyClass), uint64(100)),
		// CLASS DUMP
		be(uint8(hprof.HeapTagClassDump), uint64(100), uint32(0), uint64(0),
			uint64(0), uint64(0), uint64(0), uint64(0), uint64(0),
			uint32(8),
			uint16(1), uint16(7), uint8(hprof.TypeInt), int32(5),
			uint16(1), uint64(4), uint8(hprof.TypeObject), uint64(0x300),
			uint16(2), uint64(2), uint8(hprof.TypeInt), uint64(3), uint8(hprof.TypeInt)),
		// INSTANCE DUMP
		be(uint8(hprof.HeapTagInstanceDump), uint64(200), uint32(1), uint64(100), uint32(8), int32(3), int32(4)),
		// OBJECT ARRAY DUMP
		be(uint8(hprof.HeapTagObjectArrayDump), uint64(300), uint32(0), uint32(2), uint64(100), uint64(200), uint64(0)),
		// PRIMITIVE ARRAY DUMP
		be(uint8(hprof.HeapTagPrimitiveArrayDump), uint64(400), uint32(0), uint32(3), uint8(hprof.TypeByte), []byte{1, 2, 3}),
	}, nil)

	return newDump().
		record(hprof.TagString, str(1, "Point")).
		record(hprof.TagString, str(2, "x")).
		record(hprof.TagString, str(3, "y")).
		record(hprof.TagString, str(4, "CACHE")).
		record(hprof.TagLoadClass, be(uint32(1), uint64(100), uint32(0), uint64(1))).
		record(hprof.TagHeapDumpSegment, heap).
		record(hprof.TagHeapDumpEnd, nil).
		bytes()
}
