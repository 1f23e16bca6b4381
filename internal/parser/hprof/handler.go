package hprof

// RecordHandler receives decoded records in stream order. The decoder
// calls exactly one method per record and waits for it to return. A
// non-nil error aborts the parse; no further methods are called and
// Parse returns that error.
//
// Identifiers are passed through uninterpreted. Slices in the arguments
// may be retained by the handler but must not be modified.
type RecordHandler interface {
	Header(h Header) error
	StringUTF8(id uint64, text string) error
	LoadClass(rec LoadClass) error
	UnloadClass(classSerial uint32) error
	HeapDump() error
	HeapDumpSegment() error
	HeapDumpEnd() error
	Root(root Root) error
	ClassDump(rec *ClassDump) error
	InstanceDump(rec *InstanceDump) error
	ObjectArrayDump(rec *ObjectArrayDump) error
	PrimitiveArrayDump(rec *PrimitiveArrayDump) error
	Finished() error
}

// NullHandler ignores every record. Embed it to implement only the
// callbacks you need.
type NullHandler struct{}

func (NullHandler) Header(Header) error                          { return nil }
func (NullHandler) StringUTF8(uint64, string) error              { return nil }
func (NullHandler) LoadClass(LoadClass) error                    { return nil }
func (NullHandler) UnloadClass(uint32) error                     { return nil }
func (NullHandler) HeapDump() error                              { return nil }
func (NullHandler) HeapDumpSegment() error                       { return nil }
func (NullHandler) HeapDumpEnd() error                           { return nil }
func (NullHandler) Root(Root) error                              { return nil }
func (NullHandler) ClassDump(*ClassDump) error                   { return nil }
func (NullHandler) InstanceDump(*InstanceDump) error             { return nil }
func (NullHandler) ObjectArrayDump(*ObjectArrayDump) error       { return nil }
func (NullHandler) PrimitiveArrayDump(*PrimitiveArrayDump) error { return nil }
func (NullHandler) Finished() error                              { return nil }

// MultiHandler forwards every record to each handler in turn and stops
// at the first error.
type MultiHandler []RecordHandler

// NewMultiHandler combines handlers into one.
func NewMultiHandler(handlers ...RecordHandler) MultiHandler {
	return MultiHandler(handlers)
}

func (m MultiHandler) each(fn func(h RecordHandler) error) error {
	for _, h := range m {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiHandler) Header(hdr Header) error {
	return m.each(func(h RecordHandler) error { return h.Header(hdr) })
}

func (m MultiHandler) StringUTF8(id uint64, text string) error {
	return m.each(func(h RecordHandler) error { return h.StringUTF8(id, text) })
}

func (m MultiHandler) LoadClass(rec LoadClass) error {
	return m.each(func(h RecordHandler) error { return h.LoadClass(rec) })
}

func (m MultiHandler) UnloadClass(classSerial uint32) error {
	return m.each(func(h RecordHandler) error { return h.UnloadClass(classSerial) })
}

func (m MultiHandler) HeapDump() error {
	return m.each(func(h RecordHandler) error { return h.HeapDump() })
}

func (m MultiHandler) HeapDumpSegment() error {
	return m.each(func(h RecordHandler) error { return h.HeapDumpSegment() })
}

func (m MultiHandler) HeapDumpEnd() error {
	return m.each(func(h RecordHandler) error { return h.HeapDumpEnd() })
}

func (m MultiHandler) Root(root Root) error {
	return m.each(func(h RecordHandler) error { return h.Root(root) })
}

func (m MultiHandler) ClassDump(rec *ClassDump) error {
	return m.each(func(h RecordHandler) error { return h.ClassDump(rec) })
}

func (m MultiHandler) InstanceDump(rec *InstanceDump) error {
	return m.each(func(h RecordHandler) error { return h.InstanceDump(rec) })
}

func (m MultiHandler) ObjectArrayDump(rec *ObjectArrayDump) error {
	return m.each(func(h RecordHandler) error { return h.ObjectArrayDump(rec) })
}

func (m MultiHandler) PrimitiveArrayDump(rec *PrimitiveArrayDump) error {
	return m.each(func(h RecordHandler) error { return h.PrimitiveArrayDump(rec) })
}

func (m MultiHandler) Finished() error {
	return m.each(func(h RecordHandler) error { return h.Finished() })
}
