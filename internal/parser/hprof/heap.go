package hprof

import (
	"errors"
	"fmt"
)

// parseHeapDumpWindow decodes every sub-record of one heap dump body.
// Sub-records carry no length prefix, so the window must be consumed
// exactly: running past its end means the declared body length was
// wrong, and an unknown sub-tag cannot be skipped.
func (p *Parser) parseHeapDumpWindow(s *session, w *window) error {
	for w.remaining() > 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		start := w.offset()
		// The smallest sub-record is a tag plus one identifier.
		if smallest := 1 + w.idSize; w.remaining() < smallest {
			return &DecodeError{
				Kind:     ErrFramingViolation,
				Offset:   start,
				Expected: int64(smallest),
				Actual:   int64(w.remaining()),
				Detail:   fmt.Sprintf("%d trailing bytes after the last sub-record of the heap dump body", w.remaining()),
			}
		}
		tagByte, _ := w.u1("sub-record tag")
		tag := HeapDumpTag(tagByte)

		if err := p.parseHeapDumpSubRecord(s, w, tag); err != nil {
			if isHandlerError(err) {
				return err
			}
			var de *DecodeError
			if errors.As(err, &de) && de.Kind == ErrTruncatedRecord {
				return &DecodeError{
					Kind:     ErrFramingViolation,
					Offset:   start,
					Tag:      tag.String(),
					Expected: de.Expected,
					Actual:   de.Actual,
					Detail:   "sub-record runs past the end of the heap dump body while " + de.Detail,
				}
			}
			return annotate(err, start, tag)
		}
	}
	return nil
}

// annotate fills in the position of a DecodeError raised without one.
func annotate(err error, offset int64, tag HeapDumpTag) error {
	if de, ok := err.(*DecodeError); ok {
		if de.Offset == 0 {
			de.Offset = offset
		}
		if de.Tag == "" {
			de.Tag = tag.String()
		}
	}
	return err
}

// parseHeapDumpSubRecord decodes one sub-record whose tag has already
// been consumed and delivers it.
func (p *Parser) parseHeapDumpSubRecord(s *session, w *window, tag HeapDumpTag) error {
	switch {
	case tag.IsRoot():
		root, err := decodeRoot(w, tag)
		if err != nil {
			return err
		}
		s.summary.Roots++
		return deliver("root", s.handler.Root(root))

	case tag == HeapTagClassDump:
		return p.parseClassDump(s, w)

	case tag == HeapTagInstanceDump:
		return p.parseInstanceDump(s, w)

	case tag == HeapTagObjectArrayDump:
		return p.parseObjectArrayDump(s, w)

	case tag == HeapTagPrimitiveArrayDump:
		return p.parsePrimitiveArrayDump(s, w)

	default:
		return &DecodeError{
			Kind:   ErrUnknownSubRecord,
			Offset: w.offset() - 1,
			Tag:    tag.String(),
			Detail: fmt.Sprintf("%d bytes of the heap dump body left undecoded", w.remaining()),
		}
	}
}

// decodeRoot reads the fixed layout of a GC root sub-record.
func decodeRoot(w *window, tag HeapDumpTag) (Root, error) {
	root := Root{Kind: tag}
	var err error
	if root.ObjectID, err = w.id("root object id"); err != nil {
		return root, err
	}

	switch tag {
	case HeapTagRootJNIGlobal:
		root.JNIGlobalRefID, err = w.id("JNI global ref id")
	case HeapTagRootJNILocal, HeapTagRootJavaFrame:
		if root.ThreadSerial, err = w.u4("thread serial"); err != nil {
			return root, err
		}
		root.FrameIndex, err = w.u4("frame index")
	case HeapTagRootNativeStack, HeapTagRootThreadBlock:
		root.ThreadSerial, err = w.u4("thread serial")
	case HeapTagRootThreadObject:
		if root.ThreadSerial, err = w.u4("thread serial"); err != nil {
			return root, err
		}
		root.StackTraceSerial, err = w.u4("stack trace serial")
	}
	return root, err
}

// parseClassDump decodes a CLASS DUMP, registers its layout and delivers
// it. A class id seen twice is fatal.
func (p *Parser) parseClassDump(s *session, w *window) error {
	start := w.offset() - 1
	rec, err := decodeClassDump(w)
	if err != nil {
		return err
	}

	err = s.registry.Register(&ClassLayout{
		ClassID:      rec.ClassID,
		SuperClassID: rec.SuperClassID,
		InstanceSize: rec.InstanceSize,
		Fields:       rec.InstanceFields,
	})
	if err != nil {
		return annotate(err, start, HeapTagClassDump)
	}

	s.summary.ClassDumps++
	return deliver("class dump", s.handler.ClassDump(rec))
}

func decodeClassDump(w *window) (*ClassDump, error) {
	rec := &ClassDump{}
	var err error

	if rec.ClassID, err = w.id("class id"); err != nil {
		return nil, err
	}
	if rec.StackTraceSerial, err = w.u4("stack trace serial"); err != nil {
		return nil, err
	}
	ids := []*uint64{
		&rec.SuperClassID, &rec.ClassLoaderID, &rec.SignersID,
		&rec.ProtectionDomainID, &rec.Reserved1, &rec.Reserved2,
	}
	for _, dst := range ids {
		if *dst, err = w.id("class dump header"); err != nil {
			return nil, err
		}
	}
	if rec.InstanceSize, err = w.u4("instance size"); err != nil {
		return nil, err
	}

	// Constant pool
	cpCount, err := w.u2("constant pool size")
	if err != nil {
		return nil, err
	}
	rec.Constants = make([]Constant, 0, cpCount)
	for i := 0; i < int(cpCount); i++ {
		index, err := w.u2("constant pool index")
		if err != nil {
			return nil, err
		}
		typ, err := w.u1("constant type")
		if err != nil {
			return nil, err
		}
		v, err := w.readValue(BasicType(typ))
		if err != nil {
			return nil, err
		}
		rec.Constants = append(rec.Constants, Constant{PoolIndex: index, Value: v})
	}

	// Static fields, with values
	staticCount, err := w.u2("static field count")
	if err != nil {
		return nil, err
	}
	rec.Statics = make([]StaticField, 0, staticCount)
	for i := 0; i < int(staticCount); i++ {
		nameID, err := w.id("static field name id")
		if err != nil {
			return nil, err
		}
		typ, err := w.u1("static field type")
		if err != nil {
			return nil, err
		}
		v, err := w.readValue(BasicType(typ))
		if err != nil {
			return nil, err
		}
		rec.Statics = append(rec.Statics, StaticField{NameID: nameID, Value: v})
	}

	// Instance fields, descriptors only
	fieldCount, err := w.u2("instance field count")
	if err != nil {
		return nil, err
	}
	rec.InstanceFields = make([]InstanceField, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		nameID, err := w.id("instance field name id")
		if err != nil {
			return nil, err
		}
		typ, err := w.u1("instance field type")
		if err != nil {
			return nil, err
		}
		if !BasicType(typ).Valid() {
			return nil, &DecodeError{
				Kind:   ErrInvalidType,
				Offset: w.offset() - 1,
				Detail: fmt.Sprintf("instance field of class 0x%x has basic type %d", rec.ClassID, typ),
			}
		}
		rec.InstanceFields = append(rec.InstanceFields, InstanceField{NameID: nameID, Type: BasicType(typ)})
	}

	return rec, nil
}

// parseInstanceDump decodes an INSTANCE DUMP. The value bytes are sliced
// by the resolved field list of the class, which must already be
// registered together with all of its ancestors.
func (p *Parser) parseInstanceDump(s *session, w *window) error {
	start := w.offset() - 1
	rec := &InstanceDump{}
	var err error

	if rec.ObjectID, err = w.id("object id"); err != nil {
		return err
	}
	if rec.StackTraceSerial, err = w.u4("stack trace serial"); err != nil {
		return err
	}
	if rec.ClassID, err = w.id("class id"); err != nil {
		return err
	}
	n, err := w.u4("instance data length")
	if err != nil {
		return err
	}

	fields, err := s.registry.ResolveFields(rec.ClassID)
	if err != nil {
		return annotate(err, start, HeapTagInstanceDump)
	}
	width := 0
	for _, f := range fields {
		width += BasicTypeSize(f.Type, w.idSize)
	}
	if int64(width) != int64(n) {
		return &DecodeError{
			Kind:     ErrFieldSizeMismatch,
			Offset:   start,
			Tag:      HeapTagInstanceDump.String(),
			Expected: int64(width),
			Actual:   int64(n),
			Detail:   fmt.Sprintf("object 0x%x of class 0x%x", rec.ObjectID, rec.ClassID),
		}
	}

	dataOffset := w.offset()
	data, err := w.take(int(n), "instance field values")
	if err != nil {
		return err
	}
	values := newWindow(data, dataOffset, w.idSize)
	rec.Fields = fields
	rec.Values = make([]Value, len(fields))
	for i, f := range fields {
		if rec.Values[i], err = values.readValue(f.Type); err != nil {
			return err
		}
	}

	s.summary.InstanceDumps++
	return deliver("instance dump", s.handler.InstanceDump(rec))
}

// parseObjectArrayDump decodes an OBJECT ARRAY DUMP. On the wire the
// element count precedes the element class id.
func (p *Parser) parseObjectArrayDump(s *session, w *window) error {
	rec := &ObjectArrayDump{}
	var err error

	if rec.ObjectID, err = w.id("array object id"); err != nil {
		return err
	}
	if rec.StackTraceSerial, err = w.u4("stack trace serial"); err != nil {
		return err
	}
	count, err := w.u4("element count")
	if err != nil {
		return err
	}
	if rec.ElementClassID, err = w.id("element class id"); err != nil {
		return err
	}

	// Bounds-check the whole element block before allocating for it.
	dataOffset := w.offset()
	data, err := w.take(int(count)*w.idSize, "array elements")
	if err != nil {
		return err
	}
	elems := newWindow(data, dataOffset, w.idSize)
	rec.Elements = make([]uint64, count)
	for i := range rec.Elements {
		if rec.Elements[i], err = elems.id("array element"); err != nil {
			return err
		}
	}

	s.summary.ObjectArrayDumps++
	return deliver("object array dump", s.handler.ObjectArrayDump(rec))
}

// parsePrimitiveArrayDump decodes a PRIMITIVE ARRAY DUMP.
func (p *Parser) parsePrimitiveArrayDump(s *session, w *window) error {
	rec := &PrimitiveArrayDump{}
	var err error

	if rec.ObjectID, err = w.id("array object id"); err != nil {
		return err
	}
	if rec.StackTraceSerial, err = w.u4("stack trace serial"); err != nil {
		return err
	}
	count, err := w.u4("element count")
	if err != nil {
		return err
	}
	typ, err := w.u1("element type")
	if err != nil {
		return err
	}
	rec.ElementType = BasicType(typ)
	if !rec.ElementType.Valid() || rec.ElementType == TypeObject {
		return &DecodeError{
			Kind:   ErrInvalidType,
			Offset: w.offset() - 1,
			Detail: fmt.Sprintf("primitive array 0x%x has element type %d", rec.ObjectID, typ),
		}
	}

	size := BasicTypeSize(rec.ElementType, w.idSize)
	dataOffset := w.offset()
	data, err := w.take(int(count)*size, "array elements")
	if err != nil {
		return err
	}
	elems := newWindow(data, dataOffset, w.idSize)
	rec.Elements = make([]Value, count)
	for i := range rec.Elements {
		if rec.Elements[i], err = elems.readValue(rec.ElementType); err != nil {
			return err
		}
	}

	s.summary.PrimitiveArrayDumps++
	return deliver("primitive array dump", s.handler.PrimitiveArrayDump(rec))
}
