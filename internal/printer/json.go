package printer

import (
	"io"
	"time"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
	"github.com/SagenKoder/hprof-parser/pkg/writer"
)

// Record is the JSON shape of one decoded record. Identifiers are hex
// strings; values are rendered as text so NaN and infinities survive.
type Record struct {
	Record     string       `json:"record"`
	ID         string       `json:"id,omitempty"`
	Class      string       `json:"class,omitempty"`
	Super      string       `json:"super,omitempty"`
	Name       string       `json:"name,omitempty"`
	Text       *string      `json:"text,omitempty"`
	Serial     *uint32      `json:"serial,omitempty"`
	StackTrace *uint32      `json:"stack_trace,omitempty"`
	Thread     *uint32      `json:"thread,omitempty"`
	Frame      *uint32      `json:"frame,omitempty"`
	Ref        string       `json:"ref,omitempty"`
	Type       string       `json:"type,omitempty"`
	Length     *int         `json:"length,omitempty"`
	Format     string       `json:"format,omitempty"`
	IDSize     int          `json:"id_size,omitempty"`
	Timestamp  *time.Time   `json:"timestamp,omitempty"`
	Fields     []NamedValue `json:"fields,omitempty"`
	Statics    []NamedValue `json:"statics,omitempty"`
}

// NamedValue is one field value.
type NamedValue struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// JSONHandler writes one JSON document per record. Field and class names
// are resolved from the strings seen earlier in the stream.
type JSONHandler struct {
	out   *writer.JSONLineWriter[*Record]
	names map[uint64]string
}

var _ hprof.RecordHandler = (*JSONHandler)(nil)

// NewJSONHandler creates a JSONHandler writing to w.
func NewJSONHandler(w io.Writer) *JSONHandler {
	return &JSONHandler{
		out:   writer.NewJSONLineWriter[*Record](w),
		names: make(map[uint64]string),
	}
}

// Lines returns the number of records written.
func (j *JSONHandler) Lines() int64 {
	return j.out.Count()
}

func u32(v uint32) *uint32 { return &v }

func (j *JSONHandler) Header(h hprof.Header) error {
	ts := h.Timestamp.UTC()
	return j.out.Write(&Record{Record: "HEADER", Format: h.Format, IDSize: h.IDSize, Timestamp: &ts})
}

func (j *JSONHandler) StringUTF8(id uint64, text string) error {
	j.names[id] = text
	return j.out.Write(&Record{Record: hprof.TagString.String(), ID: hex(id), Text: &text})
}

func (j *JSONHandler) LoadClass(rec hprof.LoadClass) error {
	return j.out.Write(&Record{
		Record:     hprof.TagLoadClass.String(),
		ID:         hex(rec.ClassID),
		Name:       j.names[rec.NameID],
		Serial:     u32(rec.ClassSerial),
		StackTrace: u32(rec.StackTraceSerial),
	})
}

func (j *JSONHandler) UnloadClass(classSerial uint32) error {
	return j.out.Write(&Record{Record: hprof.TagUnloadClass.String(), Serial: u32(classSerial)})
}

func (j *JSONHandler) HeapDump() error {
	return j.out.Write(&Record{Record: hprof.TagHeapDump.String()})
}

func (j *JSONHandler) HeapDumpSegment() error {
	return j.out.Write(&Record{Record: hprof.TagHeapDumpSegment.String()})
}

func (j *JSONHandler) HeapDumpEnd() error {
	return j.out.Write(&Record{Record: hprof.TagHeapDumpEnd.String()})
}

func (j *JSONHandler) Root(root hprof.Root) error {
	rec := &Record{Record: root.Kind.String(), ID: hex(root.ObjectID)}
	switch root.Kind {
	case hprof.HeapTagRootJNIGlobal:
		rec.Ref = hex(root.JNIGlobalRefID)
	case hprof.HeapTagRootJNILocal, hprof.HeapTagRootJavaFrame:
		rec.Thread, rec.Frame = u32(root.ThreadSerial), u32(root.FrameIndex)
	case hprof.HeapTagRootNativeStack, hprof.HeapTagRootThreadBlock:
		rec.Thread = u32(root.ThreadSerial)
	case hprof.HeapTagRootThreadObject:
		rec.Thread, rec.StackTrace = u32(root.ThreadSerial), u32(root.StackTraceSerial)
	}
	return j.out.Write(rec)
}

func (j *JSONHandler) ClassDump(rec *hprof.ClassDump) error {
	out := &Record{
		Record:     hprof.HeapTagClassDump.String(),
		ID:         hex(rec.ClassID),
		Super:      hex(rec.SuperClassID),
		StackTrace: u32(rec.StackTraceSerial),
	}
	for _, f := range rec.InstanceFields {
		out.Fields = append(out.Fields, NamedValue{Name: j.names[f.NameID], Type: f.Type.String()})
	}
	for _, s := range rec.Statics {
		out.Statics = append(out.Statics, NamedValue{
			Name:  j.names[s.NameID],
			Type:  s.Value.Type.String(),
			Value: s.Value.String(),
		})
	}
	return j.out.Write(out)
}

func (j *JSONHandler) InstanceDump(rec *hprof.InstanceDump) error {
	out := &Record{
		Record:     hprof.HeapTagInstanceDump.String(),
		ID:         hex(rec.ObjectID),
		Class:      hex(rec.ClassID),
		StackTrace: u32(rec.StackTraceSerial),
		Fields:     make([]NamedValue, len(rec.Values)),
	}
	for i, v := range rec.Values {
		out.Fields[i] = NamedValue{
			Name:  j.names[rec.Fields[i].NameID],
			Type:  v.Type.String(),
			Value: v.String(),
		}
	}
	return j.out.Write(out)
}

func (j *JSONHandler) ObjectArrayDump(rec *hprof.ObjectArrayDump) error {
	n := len(rec.Elements)
	return j.out.Write(&Record{
		Record:     hprof.HeapTagObjectArrayDump.String(),
		ID:         hex(rec.ObjectID),
		Class:      hex(rec.ElementClassID),
		StackTrace: u32(rec.StackTraceSerial),
		Length:     &n,
	})
}

func (j *JSONHandler) PrimitiveArrayDump(rec *hprof.PrimitiveArrayDump) error {
	n := len(rec.Elements)
	return j.out.Write(&Record{
		Record:     hprof.HeapTagPrimitiveArrayDump.String(),
		ID:         hex(rec.ObjectID),
		Type:       rec.ElementType.String(),
		StackTrace: u32(rec.StackTraceSerial),
		Length:     &n,
	})
}

func (j *JSONHandler) Finished() error {
	return j.out.Write(&Record{Record: "FINISHED"})
}
