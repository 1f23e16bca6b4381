package hprof

import (
	"bytes"
	"encoding/binary"
)

// body builds big-endian record and sub-record bytes.
type body struct {
	buf    bytes.Buffer
	idSize int
}

func newBody(idSize int) *body {
	return &body{idSize: idSize}
}

func (b *body) u1(v uint8) *body {
	b.buf.WriteByte(v)
	return b
}

func (b *body) u2(v uint16) *body {
	binary.Write(&b.buf, binary.BigEndian, v)
	return b
}

func (b *body) u4(v uint32) *body {
	binary.Write(&b.buf, binary.BigEndian, v)
	return b
}

func (b *body) u8(v uint64) *body {
	binary.Write(&b.buf, binary.BigEndian, v)
	return b
}

func (b *body) id(v uint64) *body {
	if b.idSize == 4 {
		return b.u4(uint32(v))
	}
	return b.u8(v)
}

func (b *body) raw(p []byte) *body {
	b.buf.Write(p)
	return b
}

func (b *body) bytes() []byte {
	return b.buf.Bytes()
}

// classDump appends a CLASS DUMP sub-record with no constants or statics.
func (b *body) classDump(classID, superID uint64, fields ...InstanceField) *body {
	b.u1(uint8(HeapTagClassDump)).id(classID).u4(0).id(superID)
	b.id(0).id(0).id(0).id(0).id(0) // loader, signers, domain, reserved x2
	size := 0
	for _, f := range fields {
		size += BasicTypeSize(f.Type, b.idSize)
	}
	b.u4(uint32(size)).u2(0).u2(0).u2(uint16(len(fields)))
	for _, f := range fields {
		b.id(f.NameID).u1(uint8(f.Type))
	}
	return b
}

// instanceDump appends an INSTANCE DUMP sub-record with raw field bytes.
func (b *body) instanceDump(objectID, classID uint64, data []byte) *body {
	b.u1(uint8(HeapTagInstanceDump)).id(objectID).u4(0).id(classID).u4(uint32(len(data)))
	return b.raw(data)
}

// dumpBuilder builds a complete HPROF stream.
type dumpBuilder struct {
	buf    bytes.Buffer
	idSize int
}

func newDump(idSize int) *dumpBuilder {
	d := &dumpBuilder{idSize: idSize}
	d.buf.WriteString("JAVA PROFILE 1.0.2")
	d.buf.WriteByte(0)
	binary.Write(&d.buf, binary.BigEndian, uint32(idSize))
	binary.Write(&d.buf, binary.BigEndian, uint64(0))
	return d
}

func (d *dumpBuilder) body() *body {
	return newBody(d.idSize)
}

// record appends a top-level record whose declared length is len(p).
func (d *dumpBuilder) record(tag RecordTag, p []byte) *dumpBuilder {
	return d.recordWithLength(tag, uint32(len(p)), p)
}

// recordWithLength appends a top-level record with an arbitrary declared
// length.
func (d *dumpBuilder) recordWithLength(tag RecordTag, length uint32, p []byte) *dumpBuilder {
	d.buf.WriteByte(uint8(tag))
	binary.Write(&d.buf, binary.BigEndian, uint32(0))
	binary.Write(&d.buf, binary.BigEndian, length)
	d.buf.Write(p)
	return d
}

func (d *dumpBuilder) str(id uint64, text string) *dumpBuilder {
	return d.record(TagString, d.body().id(id).raw([]byte(text)).bytes())
}

func (d *dumpBuilder) reader() *bytes.Reader {
	return bytes.NewReader(d.buf.Bytes())
}

// recorder captures every callback in order.
type recorder struct {
	events     []string
	header     Header
	strings    map[uint64]string
	loads      []LoadClass
	unloads    []uint32
	roots      []Root
	classes    []*ClassDump
	instances  []*InstanceDump
	objArrays  []*ObjectArrayDump
	primArrays []*PrimitiveArrayDump

	failOn  string
	failErr error
}

func newRecorder() *recorder {
	return &recorder{strings: make(map[uint64]string)}
}

func (r *recorder) event(name string) error {
	r.events = append(r.events, name)
	if r.failOn == name {
		return r.failErr
	}
	return nil
}

func (r *recorder) Header(h Header) error {
	r.header = h
	return r.event("header")
}

func (r *recorder) StringUTF8(id uint64, text string) error {
	r.strings[id] = text
	return r.event("string")
}

func (r *recorder) LoadClass(rec LoadClass) error {
	r.loads = append(r.loads, rec)
	return r.event("loadClass")
}

func (r *recorder) UnloadClass(serial uint32) error {
	r.unloads = append(r.unloads, serial)
	return r.event("unloadClass")
}

func (r *recorder) HeapDump() error        { return r.event("heapDump") }
func (r *recorder) HeapDumpSegment() error { return r.event("heapDumpSegment") }
func (r *recorder) HeapDumpEnd() error     { return r.event("heapDumpEnd") }

func (r *recorder) Root(root Root) error {
	r.roots = append(r.roots, root)
	return r.event("root")
}

func (r *recorder) ClassDump(rec *ClassDump) error {
	r.classes = append(r.classes, rec)
	return r.event("classDump")
}

func (r *recorder) InstanceDump(rec *InstanceDump) error {
	r.instances = append(r.instances, rec)
	return r.event("instanceDump")
}

func (r *recorder) ObjectArrayDump(rec *ObjectArrayDump) error {
	r.objArrays = append(r.objArrays, rec)
	return r.event("objArrayDump")
}

func (r *recorder) PrimitiveArrayDump(rec *PrimitiveArrayDump) error {
	r.primArrays = append(r.primArrays, rec)
	return r.event("primArrayDump")
}

func (r *recorder) Finished() error { return r.event("finished") }
