package sink

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
	apperrors "github.com/SagenKoder/hprof-parser/pkg/errors"
	"github.com/SagenKoder/hprof-parser/pkg/utils"
)

// DefaultBatchSize is the number of rows buffered per table before they
// are written.
const DefaultBatchSize = 500

// Options configures an SQLHandler.
type Options struct {
	BatchSize int
	// StorePrimitiveElements writes one row per primitive array element.
	// Off by default; large dumps hold billions of them.
	StorePrimitiveElements bool
	Logger                 utils.Logger
}

// SQLHandler is a hprof.RecordHandler that writes every record to the
// sink tables. Rows are buffered per table and written with
// CreateInBatches; Finished flushes what is left. Any database error is
// returned to the decoder and aborts the parse.
type SQLHandler struct {
	db     *gorm.DB
	opts   Options
	logger utils.Logger

	names          map[uint64]string
	classSerials   map[uint32]int64
	pendingClasses map[int64]int

	strings      []StringRow
	classes      []ClassRow
	objects      []ObjectRow
	fields       []FieldRow
	statics      []StaticFieldRow
	arrays       []ArrayRow
	objElements  []ObjectArrayElementRow
	primElements []PrimitiveArrayElementRow
	constants    []ConstantRow
	roots        []HeapRootRow

	written map[string]int64
}

var _ hprof.RecordHandler = (*SQLHandler)(nil)

// NewSQLHandler creates a handler writing through db. The tables must
// already exist; see Migrate.
func NewSQLHandler(ctx context.Context, db *gorm.DB, opts Options) *SQLHandler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &SQLHandler{
		db:             db.WithContext(ctx),
		opts:           opts,
		logger:         logger,
		names:          make(map[uint64]string),
		classSerials:   make(map[uint32]int64),
		pendingClasses: make(map[int64]int),
		written:        make(map[string]int64),
	}
}

func dbErr(message string, err error) error {
	return apperrors.Wrap(apperrors.CodeDatabaseError, message, err)
}

func flushRows[T any](h *SQLHandler, table string, rows *[]T) error {
	n := len(*rows)
	if n == 0 {
		return nil
	}
	if err := h.db.CreateInBatches(*rows, h.opts.BatchSize).Error; err != nil {
		return dbErr("failed to insert "+table, err)
	}
	h.written[table] += int64(n)
	*rows = (*rows)[:0]
	return nil
}

func appendRows[T any](h *SQLHandler, table string, rows *[]T, row ...T) error {
	*rows = append(*rows, row...)
	if len(*rows) >= h.opts.BatchSize {
		return flushRows(h, table, rows)
	}
	return nil
}

func (h *SQLHandler) flushClasses() error {
	if err := flushRows(h, "classes", &h.classes); err != nil {
		return err
	}
	clear(h.pendingClasses)
	return nil
}

func (h *SQLHandler) addClass(row ClassRow) error {
	h.pendingClasses[row.ClassID] = len(h.classes)
	h.classes = append(h.classes, row)
	if len(h.classes) >= h.opts.BatchSize {
		return h.flushClasses()
	}
	return nil
}

func (h *SQLHandler) name(id uint64) string {
	return h.names[id]
}

func (h *SQLHandler) Header(hdr hprof.Header) error {
	h.logger.WithFields(map[string]interface{}{
		"format":  hdr.Format,
		"id_size": hdr.IDSize,
	}).Debug("writing heap dump to database")
	return nil
}

func (h *SQLHandler) StringUTF8(id uint64, text string) error {
	h.names[id] = text
	return appendRows(h, "strings", &h.strings, StringRow{ID: int64(id), Data: text})
}

func (h *SQLHandler) LoadClass(rec hprof.LoadClass) error {
	id := int64(rec.ClassID)
	h.classSerials[rec.ClassSerial] = id
	return h.addClass(ClassRow{
		ClassID:     id,
		ClassSerial: rec.ClassSerial,
		Name:        h.name(rec.NameID),
	})
}

func (h *SQLHandler) UnloadClass(classSerial uint32) error {
	id, ok := h.classSerials[classSerial]
	if !ok {
		return nil
	}
	if idx, ok := h.pendingClasses[id]; ok {
		h.classes[idx].Unloaded = true
		return nil
	}
	if err := h.db.Model(&ClassRow{}).Where("class_id = ?", id).Update("unloaded", true).Error; err != nil {
		return dbErr("failed to mark class unloaded", err)
	}
	return nil
}

func (h *SQLHandler) HeapDump() error        { return nil }
func (h *SQLHandler) HeapDumpSegment() error { return nil }
func (h *SQLHandler) HeapDumpEnd() error     { return nil }

func (h *SQLHandler) Root(root hprof.Root) error {
	return appendRows(h, "heap_roots", &h.roots, HeapRootRow{
		ObjectID:         int64(root.ObjectID),
		RootType:         root.Kind.String(),
		ThreadSerial:     root.ThreadSerial,
		FrameIndex:       root.FrameIndex,
		StackTraceSerial: root.StackTraceSerial,
		JNIGlobalRefID:   int64(root.JNIGlobalRefID),
	})
}

func (h *SQLHandler) ClassDump(rec *hprof.ClassDump) error {
	id := int64(rec.ClassID)
	size := int64(rec.InstanceSize)
	var super *int64
	updates := map[string]interface{}{
		"super_class_id": nil,
		"instance_size":  size,
	}
	if rec.SuperClassID != 0 {
		s := int64(rec.SuperClassID)
		super = &s
		updates["super_class_id"] = s
	}

	if idx, ok := h.pendingClasses[id]; ok {
		h.classes[idx].SuperClassID = super
		h.classes[idx].InstanceSize = &size
	} else {
		res := h.db.Model(&ClassRow{}).Where("class_id = ?", id).Updates(updates)
		if res.Error != nil {
			return dbErr("failed to update class", res.Error)
		}
		if res.RowsAffected == 0 {
			// CLASS DUMP without a preceding LOAD CLASS.
			if err := h.addClass(ClassRow{ClassID: id, SuperClassID: super, InstanceSize: &size}); err != nil {
				return err
			}
		}
	}

	if len(rec.Constants) > 0 {
		rows := make([]ConstantRow, len(rec.Constants))
		for i, c := range rec.Constants {
			rows[i] = ConstantRow{
				ClassID:   id,
				PoolIndex: c.PoolIndex,
				Type:      c.Value.Type.String(),
				Value:     c.Value.String(),
			}
		}
		if err := appendRows(h, "constants", &h.constants, rows...); err != nil {
			return err
		}
	}

	if len(rec.Statics) > 0 {
		rows := make([]StaticFieldRow, len(rec.Statics))
		for i, s := range rec.Statics {
			rows[i] = StaticFieldRow{
				ClassID: id,
				Name:    h.name(s.NameID),
				Type:    s.Value.Type.String(),
				Value:   s.Value.String(),
			}
		}
		if err := appendRows(h, "static_fields", &h.statics, rows...); err != nil {
			return err
		}
	}
	return nil
}

func (h *SQLHandler) InstanceDump(rec *hprof.InstanceDump) error {
	id := int64(rec.ObjectID)
	if err := appendRows(h, "objects", &h.objects, ObjectRow{
		ObjectID:         id,
		ClassID:          int64(rec.ClassID),
		StackTraceSerial: rec.StackTraceSerial,
	}); err != nil {
		return err
	}

	if len(rec.Values) == 0 {
		return nil
	}
	rows := make([]FieldRow, len(rec.Values))
	for i, v := range rec.Values {
		rows[i] = FieldRow{
			ObjectID: id,
			Name:     h.name(rec.Fields[i].NameID),
			Type:     v.Type.String(),
			Value:    v.String(),
		}
	}
	return appendRows(h, "fields", &h.fields, rows...)
}

func (h *SQLHandler) ObjectArrayDump(rec *hprof.ObjectArrayDump) error {
	id := int64(rec.ObjectID)
	elemClass := int64(rec.ElementClassID)
	if err := appendRows(h, "arrays", &h.arrays, ArrayRow{
		ArrayID:          id,
		ElemClassID:      &elemClass,
		ElemType:         hprof.TypeObject.String(),
		Length:           len(rec.Elements),
		StackTraceSerial: rec.StackTraceSerial,
	}); err != nil {
		return err
	}

	if len(rec.Elements) == 0 {
		return nil
	}
	rows := make([]ObjectArrayElementRow, len(rec.Elements))
	for i, e := range rec.Elements {
		rows[i] = ObjectArrayElementRow{ArrayID: id, ElementIndex: i, ElementID: int64(e)}
	}
	return appendRows(h, "object_array_elements", &h.objElements, rows...)
}

func (h *SQLHandler) PrimitiveArrayDump(rec *hprof.PrimitiveArrayDump) error {
	id := int64(rec.ObjectID)
	if err := appendRows(h, "arrays", &h.arrays, ArrayRow{
		ArrayID:          id,
		ElemType:         rec.ElementType.String(),
		Length:           len(rec.Elements),
		StackTraceSerial: rec.StackTraceSerial,
	}); err != nil {
		return err
	}

	if !h.opts.StorePrimitiveElements || len(rec.Elements) == 0 {
		return nil
	}
	rows := make([]PrimitiveArrayElementRow, len(rec.Elements))
	for i, v := range rec.Elements {
		rows[i] = PrimitiveArrayElementRow{ArrayID: id, ElementIndex: i, Value: v.String()}
	}
	return appendRows(h, "primitive_array_elements", &h.primElements, rows...)
}

// Flush writes every buffered row.
func (h *SQLHandler) Flush() error {
	if err := flushRows(h, "strings", &h.strings); err != nil {
		return err
	}
	if err := h.flushClasses(); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return flushRows(h, "objects", &h.objects) },
		func() error { return flushRows(h, "fields", &h.fields) },
		func() error { return flushRows(h, "static_fields", &h.statics) },
		func() error { return flushRows(h, "arrays", &h.arrays) },
		func() error { return flushRows(h, "object_array_elements", &h.objElements) },
		func() error { return flushRows(h, "primitive_array_elements", &h.primElements) },
		func() error { return flushRows(h, "constants", &h.constants) },
		func() error { return flushRows(h, "heap_roots", &h.roots) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (h *SQLHandler) Finished() error {
	if err := h.Flush(); err != nil {
		return err
	}
	tables := make([]string, 0, len(h.written))
	for t := range h.written {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		h.logger.Debug("table %s: %d rows", t, h.written[t])
	}
	return nil
}

// RowsWritten returns the number of rows written per table so far.
func (h *SQLHandler) RowsWritten() map[string]int64 {
	out := make(map[string]int64, len(h.written))
	for k, v := range h.written {
		out[k] = v
	}
	return out
}

// TotalRows returns the number of rows written across all tables.
func (h *SQLHandler) TotalRows() int64 {
	var total int64
	for _, v := range h.written {
		total += v
	}
	return total
}
