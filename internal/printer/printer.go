// Package printer renders decoded heap dump records for humans and for
// line-oriented tools.
package printer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
)

// Format selects the output of a print handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New returns the handler for format writing to w.
func New(w io.Writer, format Format) (hprof.RecordHandler, error) {
	switch format {
	case FormatText, "":
		return NewTextHandler(w), nil
	case FormatJSON:
		return NewJSONHandler(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// TextHandler writes one line per record, e.g.
//
//	STRING id=0x1 "Hi"
//	CLASS DUMP id=0x64 super=0x0 fields=1
//	INSTANCE DUMP id=0xc8 class=0x64 values=[int 42]
//
// A write error aborts the parse.
type TextHandler struct {
	w     io.Writer
	lines int64
}

var _ hprof.RecordHandler = (*TextHandler)(nil)

// NewTextHandler creates a TextHandler writing to w.
func NewTextHandler(w io.Writer) *TextHandler {
	return &TextHandler{w: w}
}

// Lines returns the number of lines written.
func (p *TextHandler) Lines() int64 {
	return p.lines
}

func (p *TextHandler) printf(format string, args ...interface{}) error {
	if _, err := fmt.Fprintf(p.w, format+"\n", args...); err != nil {
		return err
	}
	p.lines++
	return nil
}

func hex(id uint64) string {
	return fmt.Sprintf("0x%x", id)
}

func (p *TextHandler) Header(h hprof.Header) error {
	return p.printf("HEADER format=%q id_size=%d timestamp=%s",
		h.Format, h.IDSize, h.Timestamp.UTC().Format(time.RFC3339Nano))
}

func (p *TextHandler) StringUTF8(id uint64, text string) error {
	return p.printf("STRING id=%s %q", hex(id), text)
}

func (p *TextHandler) LoadClass(rec hprof.LoadClass) error {
	return p.printf("LOAD CLASS serial=%d id=%s stack=%d name=%s",
		rec.ClassSerial, hex(rec.ClassID), rec.StackTraceSerial, hex(rec.NameID))
}

func (p *TextHandler) UnloadClass(classSerial uint32) error {
	return p.printf("UNLOAD CLASS serial=%d", classSerial)
}

func (p *TextHandler) HeapDump() error        { return p.printf("HEAP DUMP") }
func (p *TextHandler) HeapDumpSegment() error { return p.printf("HEAP DUMP SEGMENT") }
func (p *TextHandler) HeapDumpEnd() error     { return p.printf("HEAP DUMP END") }

func (p *TextHandler) Root(root hprof.Root) error {
	return p.printf("%s id=%s%s", root.Kind, hex(root.ObjectID), rootDetail(root))
}

// rootDetail formats the kind-specific fields of a root.
func rootDetail(root hprof.Root) string {
	switch root.Kind {
	case hprof.HeapTagRootJNIGlobal:
		return " ref=" + hex(root.JNIGlobalRefID)
	case hprof.HeapTagRootJNILocal, hprof.HeapTagRootJavaFrame:
		return fmt.Sprintf(" thread=%d frame=%d", root.ThreadSerial, root.FrameIndex)
	case hprof.HeapTagRootNativeStack, hprof.HeapTagRootThreadBlock:
		return fmt.Sprintf(" thread=%d", root.ThreadSerial)
	case hprof.HeapTagRootThreadObject:
		return fmt.Sprintf(" thread=%d stack=%d", root.ThreadSerial, root.StackTraceSerial)
	default:
		return ""
	}
}

func (p *TextHandler) ClassDump(rec *hprof.ClassDump) error {
	return p.printf("CLASS DUMP id=%s super=%s fields=%d",
		hex(rec.ClassID), hex(rec.SuperClassID), len(rec.InstanceFields))
}

func (p *TextHandler) InstanceDump(rec *hprof.InstanceDump) error {
	return p.printf("INSTANCE DUMP id=%s class=%s values=[%s]",
		hex(rec.ObjectID), hex(rec.ClassID), formatValues(rec.Values))
}

func formatValues(values []hprof.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Type.String() + " " + v.String()
	}
	return strings.Join(parts, ", ")
}

func (p *TextHandler) ObjectArrayDump(rec *hprof.ObjectArrayDump) error {
	return p.printf("OBJECT ARRAY DUMP id=%s class=%s length=%d",
		hex(rec.ObjectID), hex(rec.ElementClassID), len(rec.Elements))
}

func (p *TextHandler) PrimitiveArrayDump(rec *hprof.PrimitiveArrayDump) error {
	return p.printf("PRIMITIVE ARRAY DUMP id=%s type=%s length=%d",
		hex(rec.ObjectID), rec.ElementType, len(rec.Elements))
}

func (p *TextHandler) Finished() error {
	return p.printf("FINISHED")
}
