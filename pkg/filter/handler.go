package filter

import (
	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
)

// Handler forwards records to the next handler, dropping instance dumps
// and object array dumps whose class is excluded by the filter. Class
// names come from the LOAD CLASS records and strings seen earlier;
// classes without a known name pass through.
type Handler struct {
	hprof.RecordHandler
	filter *ClassFilter

	names      map[uint64]string
	classNames map[uint64]string
	dropped    int64
}

// NewHandler wraps next with filter f.
func NewHandler(next hprof.RecordHandler, f *ClassFilter) *Handler {
	return &Handler{
		RecordHandler: next,
		filter:        f,
		names:         make(map[uint64]string),
		classNames:    make(map[uint64]string),
	}
}

// Dropped returns the number of records dropped so far.
func (h *Handler) Dropped() int64 {
	return h.dropped
}

func (h *Handler) StringUTF8(id uint64, text string) error {
	h.names[id] = text
	return h.RecordHandler.StringUTF8(id, text)
}

func (h *Handler) LoadClass(rec hprof.LoadClass) error {
	if name, ok := h.names[rec.NameID]; ok {
		h.classNames[rec.ClassID] = name
	}
	return h.RecordHandler.LoadClass(rec)
}

func (h *Handler) excluded(classID uint64) bool {
	name, ok := h.classNames[classID]
	return ok && h.filter.Excluded(name)
}

func (h *Handler) InstanceDump(rec *hprof.InstanceDump) error {
	if h.excluded(rec.ClassID) {
		h.dropped++
		return nil
	}
	return h.RecordHandler.InstanceDump(rec)
}

func (h *Handler) ObjectArrayDump(rec *hprof.ObjectArrayDump) error {
	if h.excluded(rec.ElementClassID) {
		h.dropped++
		return nil
	}
	return h.RecordHandler.ObjectArrayDump(rec)
}
