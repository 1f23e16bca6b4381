package hprof

import (
	"fmt"
	"time"
)

// RecordTag represents the type of record in HPROF format.
type RecordTag uint8

const (
	TagString          RecordTag = 0x01
	TagLoadClass       RecordTag = 0x02
	TagUnloadClass     RecordTag = 0x03
	TagStackFrame      RecordTag = 0x04
	TagStackTrace      RecordTag = 0x05
	TagAllocSites      RecordTag = 0x06
	TagHeapSummary     RecordTag = 0x07
	TagStartThread     RecordTag = 0x0A
	TagEndThread       RecordTag = 0x0B
	TagHeapDump        RecordTag = 0x0C
	TagHeapDumpSegment RecordTag = 0x1C
	TagHeapDumpEnd     RecordTag = 0x2C
	TagCPUSamples      RecordTag = 0x0D
	TagControlSettings RecordTag = 0x0E
)

// String returns the HPROF name of the tag.
func (t RecordTag) String() string {
	switch t {
	case TagString:
		return "STRING IN UTF8"
	case TagLoadClass:
		return "LOAD CLASS"
	case TagUnloadClass:
		return "UNLOAD CLASS"
	case TagStackFrame:
		return "STACK FRAME"
	case TagStackTrace:
		return "STACK TRACE"
	case TagAllocSites:
		return "ALLOC SITES"
	case TagHeapSummary:
		return "HEAP SUMMARY"
	case TagStartThread:
		return "START THREAD"
	case TagEndThread:
		return "END THREAD"
	case TagHeapDump:
		return "HEAP DUMP"
	case TagHeapDumpSegment:
		return "HEAP DUMP SEGMENT"
	case TagHeapDumpEnd:
		return "HEAP DUMP END"
	case TagCPUSamples:
		return "CPU SAMPLES"
	case TagControlSettings:
		return "CONTROL SETTINGS"
	default:
		return fmt.Sprintf("TAG 0x%02X", uint8(t))
	}
}

// HeapDumpTag represents sub-tags within a heap dump record.
type HeapDumpTag uint8

const (
	HeapTagRootUnknown        HeapDumpTag = 0xFF
	HeapTagRootJNIGlobal      HeapDumpTag = 0x01
	HeapTagRootJNILocal       HeapDumpTag = 0x02
	HeapTagRootJavaFrame      HeapDumpTag = 0x03
	HeapTagRootNativeStack    HeapDumpTag = 0x04
	HeapTagRootStickyClass    HeapDumpTag = 0x05
	HeapTagRootThreadBlock    HeapDumpTag = 0x06
	HeapTagRootMonitorUsed    HeapDumpTag = 0x07
	HeapTagRootThreadObject   HeapDumpTag = 0x08
	HeapTagClassDump          HeapDumpTag = 0x20
	HeapTagInstanceDump       HeapDumpTag = 0x21
	HeapTagObjectArrayDump    HeapDumpTag = 0x22
	HeapTagPrimitiveArrayDump HeapDumpTag = 0x23
)

// String returns the HPROF name of the sub-tag.
func (t HeapDumpTag) String() string {
	switch t {
	case HeapTagRootUnknown:
		return "ROOT UNKNOWN"
	case HeapTagRootJNIGlobal:
		return "ROOT JNI GLOBAL"
	case HeapTagRootJNILocal:
		return "ROOT JNI LOCAL"
	case HeapTagRootJavaFrame:
		return "ROOT JAVA FRAME"
	case HeapTagRootNativeStack:
		return "ROOT NATIVE STACK"
	case HeapTagRootStickyClass:
		return "ROOT STICKY CLASS"
	case HeapTagRootThreadBlock:
		return "ROOT THREAD BLOCK"
	case HeapTagRootMonitorUsed:
		return "ROOT MONITOR USED"
	case HeapTagRootThreadObject:
		return "ROOT THREAD OBJECT"
	case HeapTagClassDump:
		return "CLASS DUMP"
	case HeapTagInstanceDump:
		return "INSTANCE DUMP"
	case HeapTagObjectArrayDump:
		return "OBJECT ARRAY DUMP"
	case HeapTagPrimitiveArrayDump:
		return "PRIMITIVE ARRAY DUMP"
	default:
		return fmt.Sprintf("SUB-TAG 0x%02X", uint8(t))
	}
}

// IsRoot reports whether the sub-tag is one of the GC root kinds.
func (t HeapDumpTag) IsRoot() bool {
	switch t {
	case HeapTagRootUnknown, HeapTagRootJNIGlobal, HeapTagRootJNILocal,
		HeapTagRootJavaFrame, HeapTagRootNativeStack, HeapTagRootStickyClass,
		HeapTagRootThreadBlock, HeapTagRootMonitorUsed, HeapTagRootThreadObject:
		return true
	}
	return false
}

// BasicType represents Java primitive types.
type BasicType uint8

const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

// Valid reports whether t is one of the nine HPROF basic types.
func (t BasicType) Valid() bool {
	return BasicTypeSize(t, 4) != 0
}

// String returns the Java name of the type.
func (t BasicType) String() string {
	switch t {
	case TypeObject:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeChar:
		return "char"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// BasicTypeSize returns the size in bytes for a basic type.
// It returns 0 for values outside the basic type set.
func BasicTypeSize(t BasicType, idSize int) int {
	switch t {
	case TypeObject:
		return idSize
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeFloat, TypeInt:
		return 4
	case TypeDouble, TypeLong:
		return 8
	default:
		return 0
	}
}

// Header represents the HPROF file header.
type Header struct {
	Format    string    // e.g., "JAVA PROFILE 1.0.2"
	IDSize    int       // Size of identifiers (4 or 8 bytes)
	Timestamp time.Time // Dump timestamp
}

// LoadClass is the body of a LOAD CLASS record.
type LoadClass struct {
	ClassSerial      uint32
	ClassID          uint64
	StackTraceSerial uint32
	NameID           uint64
}

// Root is a GC root sub-record. Kind selects which of the optional
// fields were present in the encoding:
//
//	ROOT UNKNOWN, STICKY CLASS, MONITOR USED: ObjectID
//	ROOT JNI GLOBAL:                          ObjectID, JNIGlobalRefID
//	ROOT JNI LOCAL, JAVA FRAME:               ObjectID, ThreadSerial, FrameIndex
//	ROOT NATIVE STACK, THREAD BLOCK:          ObjectID, ThreadSerial
//	ROOT THREAD OBJECT:                       ObjectID, ThreadSerial, StackTraceSerial
type Root struct {
	Kind             HeapDumpTag
	ObjectID         uint64
	JNIGlobalRefID   uint64
	ThreadSerial     uint32
	FrameIndex       uint32
	StackTraceSerial uint32
}

// Constant is a constant pool entry of a CLASS DUMP.
type Constant struct {
	PoolIndex uint16
	Value     Value
}

// StaticField is a static field of a CLASS DUMP together with its value.
type StaticField struct {
	NameID uint64
	Value  Value
}

// InstanceField describes the layout of one instance field. It carries
// no value.
type InstanceField struct {
	NameID uint64
	Type   BasicType
}

// ClassDump is a CLASS DUMP sub-record.
type ClassDump struct {
	ClassID            uint64
	StackTraceSerial   uint32
	SuperClassID       uint64
	ClassLoaderID      uint64
	SignersID          uint64
	ProtectionDomainID uint64
	Reserved1          uint64
	Reserved2          uint64
	InstanceSize       uint32
	Constants          []Constant
	Statics            []StaticField
	InstanceFields     []InstanceField
}

// InstanceDump is an INSTANCE DUMP sub-record. Fields is the resolved
// field list of the class (most distant ancestor first) and Values holds
// one value per entry of Fields.
type InstanceDump struct {
	ObjectID         uint64
	StackTraceSerial uint32
	ClassID          uint64
	Fields           []InstanceField
	Values           []Value
}

// ObjectArrayDump is an OBJECT ARRAY DUMP sub-record.
type ObjectArrayDump struct {
	ObjectID         uint64
	StackTraceSerial uint32
	ElementClassID   uint64
	Elements         []uint64
}

// PrimitiveArrayDump is a PRIMITIVE ARRAY DUMP sub-record.
type PrimitiveArrayDump struct {
	ObjectID         uint64
	StackTraceSerial uint32
	ElementType      BasicType
	Elements         []Value
}
