// Package sink persists decoded heap dump records to a relational
// database.
package sink

// Identifiers are stored as int64 with the same bit pattern as the
// decoded uint64; database/sql drivers reject uint64 values with the
// high bit set.

// StringRow represents the strings table.
type StringRow struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Data string `gorm:"column:data;type:text"`
}

// TableName returns the table name for StringRow.
func (StringRow) TableName() string {
	return "strings"
}

// ClassRow represents the classes table. It is created at LOAD CLASS and
// completed by CLASS DUMP.
type ClassRow struct {
	ClassID      int64  `gorm:"column:class_id;primaryKey;autoIncrement:false"`
	ClassSerial  uint32 `gorm:"column:class_serial"`
	Name         string `gorm:"column:name;type:text"`
	SuperClassID *int64 `gorm:"column:super_class_id;index"`
	InstanceSize *int64 `gorm:"column:instance_size"`
	Unloaded     bool   `gorm:"column:unloaded"`
}

// TableName returns the table name for ClassRow.
func (ClassRow) TableName() string {
	return "classes"
}

// ObjectRow represents the objects table.
type ObjectRow struct {
	ObjectID         int64  `gorm:"column:object_id;primaryKey;autoIncrement:false"`
	ClassID          int64  `gorm:"column:class_id;index"`
	StackTraceSerial uint32 `gorm:"column:stack_trace_serial"`
}

// TableName returns the table name for ObjectRow.
func (ObjectRow) TableName() string {
	return "objects"
}

// FieldRow represents the fields table: one instance field value.
type FieldRow struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ObjectID int64  `gorm:"column:object_id;index"`
	Name     string `gorm:"column:name;type:varchar(255)"`
	Type     string `gorm:"column:type;type:varchar(16)"`
	Value    string `gorm:"column:value;type:text"`
}

// TableName returns the table name for FieldRow.
func (FieldRow) TableName() string {
	return "fields"
}

// StaticFieldRow represents the static_fields table.
type StaticFieldRow struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ClassID int64  `gorm:"column:class_id;index"`
	Name    string `gorm:"column:name;type:varchar(255)"`
	Type    string `gorm:"column:type;type:varchar(16)"`
	Value   string `gorm:"column:value;type:text"`
}

// TableName returns the table name for StaticFieldRow.
func (StaticFieldRow) TableName() string {
	return "static_fields"
}

// ArrayRow represents the arrays table. ElemClassID is nil for
// primitive arrays.
type ArrayRow struct {
	ArrayID          int64  `gorm:"column:array_id;primaryKey;autoIncrement:false"`
	ElemClassID      *int64 `gorm:"column:elem_class_id"`
	ElemType         string `gorm:"column:elem_type;type:varchar(16)"`
	Length           int    `gorm:"column:length"`
	StackTraceSerial uint32 `gorm:"column:stack_trace_serial"`
}

// TableName returns the table name for ArrayRow.
func (ArrayRow) TableName() string {
	return "arrays"
}

// ObjectArrayElementRow represents the object_array_elements table.
type ObjectArrayElementRow struct {
	ID           int64 `gorm:"column:id;primaryKey;autoIncrement"`
	ArrayID      int64 `gorm:"column:array_id;index"`
	ElementIndex int   `gorm:"column:element_index"`
	ElementID    int64 `gorm:"column:element_id"`
}

// TableName returns the table name for ObjectArrayElementRow.
func (ObjectArrayElementRow) TableName() string {
	return "object_array_elements"
}

// PrimitiveArrayElementRow represents the primitive_array_elements table.
type PrimitiveArrayElementRow struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ArrayID      int64  `gorm:"column:array_id;index"`
	ElementIndex int    `gorm:"column:element_index"`
	Value        string `gorm:"column:value;type:text"`
}

// TableName returns the table name for PrimitiveArrayElementRow.
func (PrimitiveArrayElementRow) TableName() string {
	return "primitive_array_elements"
}

// ConstantRow represents the constants table.
type ConstantRow struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ClassID   int64  `gorm:"column:class_id;index"`
	PoolIndex uint16 `gorm:"column:pool_index"`
	Type      string `gorm:"column:type;type:varchar(16)"`
	Value     string `gorm:"column:value;type:text"`
}

// TableName returns the table name for ConstantRow.
func (ConstantRow) TableName() string {
	return "constants"
}

// HeapRootRow represents the heap_roots table. An object may be a root
// of several kinds, so rows carry their own key.
type HeapRootRow struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ObjectID         int64  `gorm:"column:object_id;index"`
	RootType         string `gorm:"column:root_type;type:varchar(32)"`
	ThreadSerial     uint32 `gorm:"column:thread_serial"`
	FrameIndex       uint32 `gorm:"column:frame_index"`
	StackTraceSerial uint32 `gorm:"column:stack_trace_serial"`
	JNIGlobalRefID   int64  `gorm:"column:jni_global_ref_id"`
}

// TableName returns the table name for HeapRootRow.
func (HeapRootRow) TableName() string {
	return "heap_roots"
}

// AllModels returns every table model in creation order.
func AllModels() []interface{} {
	return []interface{}{
		&StringRow{},
		&ClassRow{},
		&ObjectRow{},
		&FieldRow{},
		&StaticFieldRow{},
		&ArrayRow{},
		&ObjectArrayElementRow{},
		&PrimitiveArrayElementRow{},
		&ConstantRow{},
		&HeapRootRow{},
	}
}
