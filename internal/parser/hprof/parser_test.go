package hprof

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, d *dumpBuilder, h RecordHandler) (*ParseSummary, error) {
	t.Helper()
	return NewParser(nil).Parse(context.Background(), d.reader(), h)
}

func TestParser_HeaderOnly(t *testing.T) {
	rec := newRecorder()
	summary, err := parse(t, newDump(4), rec)

	require.NoError(t, err)
	assert.Equal(t, []string{"header", "finished"}, rec.events)
	assert.Equal(t, "JAVA PROFILE 1.0.2", rec.header.Format)
	assert.Equal(t, 4, rec.header.IDSize)
	assert.Equal(t, int64(0), rec.header.Timestamp.UnixMilli())

	require.NotNil(t, summary.Header)
	assert.Equal(t, int64(0), summary.Records())
	assert.Equal(t, int64(31), summary.BytesRead)
}

func TestParser_StringRecord(t *testing.T) {
	rec := newRecorder()
	d := newDump(4).str(1, "Hi")

	summary, err := parse(t, d, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "string", "finished"}, rec.events)
	assert.Equal(t, map[uint64]string{1: "Hi"}, rec.strings)
	assert.Equal(t, int64(1), summary.Strings)
}

func TestParser_EmptyString(t *testing.T) {
	rec := newRecorder()
	_, err := parse(t, newDump(8).str(7, ""), rec)
	require.NoError(t, err)
	assert.Equal(t, "", rec.strings[7])
}

func TestParser_LoadAndUnloadClass(t *testing.T) {
	for _, idSize := range []int{4, 8} {
		d := newDump(idSize)
		d.record(TagLoadClass, d.body().u4(3).id(100).u4(9).id(1).bytes())
		d.record(TagUnloadClass, d.body().u4(3).bytes())

		rec := newRecorder()
		summary, err := parse(t, d, rec)
		require.NoError(t, err, "idSize %d", idSize)

		assert.Equal(t, []string{"header", "loadClass", "unloadClass", "finished"}, rec.events)
		assert.Equal(t, []LoadClass{{ClassSerial: 3, ClassID: 100, StackTraceSerial: 9, NameID: 1}}, rec.loads)
		assert.Equal(t, []uint32{3}, rec.unloads)
		assert.Equal(t, int64(1), summary.LoadClasses)
		assert.Equal(t, int64(1), summary.UnloadClasses)
	}
}

func TestParser_ClassAndInstanceDump(t *testing.T) {
	d := newDump(4)
	heap := d.body().
		classDump(100, 0, InstanceField{NameID: 5, Type: TypeInt}).
		instanceDump(200, 100, []byte{0x00, 0x00, 0x00, 0x2A})
	d.record(TagHeapDump, heap.bytes())
	d.record(TagHeapDumpEnd, nil)

	rec := newRecorder()
	summary, err := parse(t, d, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"header", "heapDump", "classDump", "instanceDump", "heapDumpEnd", "finished"}, rec.events)

	require.Len(t, rec.classes, 1)
	class := rec.classes[0]
	assert.Equal(t, uint64(100), class.ClassID)
	assert.Equal(t, uint64(0), class.SuperClassID)
	assert.Equal(t, uint32(4), class.InstanceSize)
	assert.Empty(t, class.Constants)
	assert.Empty(t, class.Statics)
	assert.Equal(t, []InstanceField{{NameID: 5, Type: TypeInt}}, class.InstanceFields)

	require.Len(t, rec.instances, 1)
	inst := rec.instances[0]
	assert.Equal(t, uint64(200), inst.ObjectID)
	assert.Equal(t, uint64(100), inst.ClassID)
	assert.Equal(t, []Value{IntValue(42)}, inst.Values)
	assert.Equal(t, class.InstanceFields, inst.Fields)

	assert.Equal(t, int64(1), summary.HeapDumps)
	assert.Equal(t, int64(1), summary.HeapDumpEnds)
	assert.Equal(t, int64(1), summary.ClassDumps)
	assert.Equal(t, int64(1), summary.InstanceDumps)
	assert.Equal(t, int64(2), summary.SubRecords())
}

func TestParser_ClassDumpPoolAndStatics(t *testing.T) {
	d := newDump(8)
	heap := d.body().u1(uint8(HeapTagClassDump)).id(100).u4(7).id(50)
	heap.id(60).id(0).id(0).id(0).id(0)
	heap.u4(0)
	// Constant pool: one long
	heap.u2(1).u2(3).u1(uint8(TypeLong)).u8(0xFFFFFFFFFFFFFFFF)
	// Statics: a boolean and an object
	heap.u2(2)
	heap.id(11).u1(uint8(TypeBoolean)).u1(1)
	heap.id(12).u1(uint8(TypeObject)).id(0xABCDEF)
	// No instance fields
	heap.u2(0)
	d.record(TagHeapDumpSegment, heap.bytes())

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.NoError(t, err)

	require.Len(t, rec.classes, 1)
	class := rec.classes[0]
	assert.Equal(t, uint32(7), class.StackTraceSerial)
	assert.Equal(t, uint64(50), class.SuperClassID)
	assert.Equal(t, uint64(60), class.ClassLoaderID)
	assert.Equal(t, []Constant{{PoolIndex: 3, Value: LongValue(-1)}}, class.Constants)
	assert.Equal(t, []StaticField{
		{NameID: 11, Value: BoolValue(true)},
		{NameID: 12, Value: ObjectValue(0xABCDEF)},
	}, class.Statics)
	assert.Empty(t, class.InstanceFields)
	assert.Contains(t, rec.events, "heapDumpSegment")
}

func TestParser_InheritedFields(t *testing.T) {
	d := newDump(4)
	heap := d.body().
		classDump(1, 0, InstanceField{NameID: 10, Type: TypeInt}).
		classDump(2, 1, InstanceField{NameID: 20, Type: TypeLong}, InstanceField{NameID: 21, Type: TypeObject}).
		instanceDump(300, 2, newBody(4).u4(7).u8(8).u4(0x99).bytes())
	d.record(TagHeapDump, heap.bytes())

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.NoError(t, err)

	require.Len(t, rec.instances, 1)
	inst := rec.instances[0]
	assert.Equal(t, []InstanceField{
		{NameID: 10, Type: TypeInt},
		{NameID: 20, Type: TypeLong},
		{NameID: 21, Type: TypeObject},
	}, inst.Fields)
	assert.Equal(t, []Value{IntValue(7), LongValue(8), ObjectValue(0x99)}, inst.Values)
}

func TestParser_Arrays(t *testing.T) {
	for _, idSize := range []int{4, 8} {
		d := newDump(idSize)
		heap := d.body()
		heap.u1(uint8(HeapTagObjectArrayDump)).id(300).u4(0).u4(2).id(100).id(1).id(2)
		heap.u1(uint8(HeapTagPrimitiveArrayDump)).id(400).u4(0).u4(3).u1(uint8(TypeInt)).u4(1).u4(2).u4(3)
		heap.u1(uint8(HeapTagPrimitiveArrayDump)).id(401).u4(0).u4(2).u1(uint8(TypeChar)).u2('H').u2('i')
		heap.u1(uint8(HeapTagPrimitiveArrayDump)).id(402).u4(0).u4(0).u1(uint8(TypeDouble))
		d.record(TagHeapDump, heap.bytes())

		rec := newRecorder()
		summary, err := parse(t, d, rec)
		require.NoError(t, err, "idSize %d", idSize)

		require.Len(t, rec.objArrays, 1)
		assert.Equal(t, uint64(300), rec.objArrays[0].ObjectID)
		assert.Equal(t, uint64(100), rec.objArrays[0].ElementClassID)
		assert.Equal(t, []uint64{1, 2}, rec.objArrays[0].Elements)

		require.Len(t, rec.primArrays, 3)
		assert.Equal(t, TypeInt, rec.primArrays[0].ElementType)
		assert.Equal(t, []Value{IntValue(1), IntValue(2), IntValue(3)}, rec.primArrays[0].Elements)
		assert.Equal(t, []Value{CharValue('H'), CharValue('i')}, rec.primArrays[1].Elements)
		assert.Empty(t, rec.primArrays[2].Elements)

		assert.Equal(t, int64(1), summary.ObjectArrayDumps)
		assert.Equal(t, int64(3), summary.PrimitiveArrayDumps)
	}
}

func TestParser_Roots(t *testing.T) {
	d := newDump(8)
	heap := d.body()
	heap.u1(uint8(HeapTagRootUnknown)).id(1)
	heap.u1(uint8(HeapTagRootJNIGlobal)).id(2).id(20)
	heap.u1(uint8(HeapTagRootJNILocal)).id(3).u4(30).u4(31)
	heap.u1(uint8(HeapTagRootJavaFrame)).id(4).u4(40).u4(41)
	heap.u1(uint8(HeapTagRootNativeStack)).id(5).u4(50)
	heap.u1(uint8(HeapTagRootStickyClass)).id(6)
	heap.u1(uint8(HeapTagRootThreadBlock)).id(7).u4(70)
	heap.u1(uint8(HeapTagRootMonitorUsed)).id(8)
	heap.u1(uint8(HeapTagRootThreadObject)).id(9).u4(90).u4(91)
	d.record(TagHeapDump, heap.bytes())

	rec := newRecorder()
	summary, err := parse(t, d, rec)
	require.NoError(t, err)

	assert.Equal(t, []Root{
		{Kind: HeapTagRootUnknown, ObjectID: 1},
		{Kind: HeapTagRootJNIGlobal, ObjectID: 2, JNIGlobalRefID: 20},
		{Kind: HeapTagRootJNILocal, ObjectID: 3, ThreadSerial: 30, FrameIndex: 31},
		{Kind: HeapTagRootJavaFrame, ObjectID: 4, ThreadSerial: 40, FrameIndex: 41},
		{Kind: HeapTagRootNativeStack, ObjectID: 5, ThreadSerial: 50},
		{Kind: HeapTagRootStickyClass, ObjectID: 6},
		{Kind: HeapTagRootThreadBlock, ObjectID: 7, ThreadSerial: 70},
		{Kind: HeapTagRootMonitorUsed, ObjectID: 8},
		{Kind: HeapTagRootThreadObject, ObjectID: 9, ThreadSerial: 90, StackTraceSerial: 91},
	}, rec.roots)
	assert.Equal(t, int64(9), summary.Roots)
}

func TestParser_MultipleSegments(t *testing.T) {
	d := newDump(4)
	d.str(5, "value")
	d.record(TagHeapDumpSegment, d.body().classDump(100, 0, InstanceField{NameID: 5, Type: TypeShort}).bytes())
	d.record(TagHeapDumpSegment, d.body().instanceDump(200, 100, []byte{0xFF, 0xFE}).bytes())
	d.record(TagHeapDumpEnd, nil)

	rec := newRecorder()
	summary, err := parse(t, d, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"header", "string",
		"heapDumpSegment", "classDump",
		"heapDumpSegment", "instanceDump",
		"heapDumpEnd", "finished",
	}, rec.events)
	require.Len(t, rec.instances, 1)
	assert.Equal(t, []Value{ShortValue(-2)}, rec.instances[0].Values)
	assert.Equal(t, int64(2), summary.HeapDumpSegments)
}

func TestParser_SkipsUnknownRecords(t *testing.T) {
	d := newDump(4)
	d.record(TagStackTrace, []byte{1, 2, 3, 4, 5, 6, 7})
	d.record(RecordTag(0x77), nil)
	d.str(1, "after")

	rec := newRecorder()
	summary, err := parse(t, d, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"header", "string", "finished"}, rec.events)
	assert.Equal(t, "after", rec.strings[1])
	assert.Equal(t, int64(2), summary.SkippedRecords)
	assert.Equal(t, int64(7), summary.SkippedBytes)
	assert.Equal(t, int64(3), summary.Records())
}

func TestParser_IdentifierWidthInvariance(t *testing.T) {
	build := func(idSize int) *recorder {
		d := newDump(idSize)
		d.str(5, "count")
		d.record(TagLoadClass, d.body().u4(1).id(100).u4(0).id(5).bytes())
		heap := d.body().
			classDump(100, 0, InstanceField{NameID: 5, Type: TypeInt}, InstanceField{NameID: 6, Type: TypeObject}).
			instanceDump(200, 100, newBody(idSize).u4(42).id(0x1234).bytes())
		heap.u1(uint8(HeapTagPrimitiveArrayDump)).id(400).u4(0).u4(3).u1(uint8(TypeInt)).u4(1).u4(2).u4(3)
		d.record(TagHeapDump, heap.bytes())

		rec := newRecorder()
		_, err := parse(t, d, rec)
		require.NoError(t, err, "idSize %d", idSize)
		return rec
	}

	narrow, wide := build(4), build(8)
	assert.Equal(t, narrow.events, wide.events)
	assert.Equal(t, narrow.strings, wide.strings)
	assert.Equal(t, narrow.loads, wide.loads)
	assert.Equal(t, narrow.instances, wide.instances)
	assert.Equal(t, narrow.primArrays, wide.primArrays)
	assert.Equal(t, 4, narrow.header.IDSize)
	assert.Equal(t, 8, wide.header.IDSize)
}

func TestParser_UnresolvedClass(t *testing.T) {
	d := newDump(4)
	d.record(TagHeapDump, d.body().instanceDump(200, 100, []byte{0, 0, 0, 1}).bytes())

	rec := newRecorder()
	summary, err := parse(t, d, rec)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, ErrUnresolvedClass))
	assert.NotContains(t, rec.events, "instanceDump")
	assert.NotContains(t, rec.events, "finished")

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, HeapTagInstanceDump.String(), de.Tag)
	assert.Equal(t, int64(31+9), de.Offset)
}

func TestParser_MissingAncestor(t *testing.T) {
	d := newDump(4)
	heap := d.body().
		classDump(2, 1, InstanceField{NameID: 20, Type: TypeInt}).
		instanceDump(300, 2, []byte{0, 0, 0, 1})
	d.record(TagHeapDump, heap.bytes())

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedClass))
	assert.Contains(t, err.Error(), "ancestor 0x1")
	assert.Equal(t, []string{"header", "heapDump", "classDump"}, rec.events)
}

func TestParser_DuplicateClass(t *testing.T) {
	d := newDump(4)
	heap := d.body().
		classDump(100, 0).
		classDump(100, 0)
	d.record(TagHeapDump, heap.bytes())

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateClass))
	assert.Len(t, rec.classes, 1)
}

func TestParser_FieldSizeMismatch(t *testing.T) {
	d := newDump(4)
	heap := d.body().
		classDump(100, 0, InstanceField{NameID: 5, Type: TypeInt}).
		instanceDump(200, 100, []byte{0, 0, 0, 0, 0})
	d.record(TagHeapDump, heap.bytes())

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldSizeMismatch))
	assert.Empty(t, rec.instances)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(4), de.Expected)
	assert.Equal(t, int64(5), de.Actual)
}

func TestParser_UnknownSubRecord(t *testing.T) {
	d := newDump(4)
	d.record(TagHeapDump, d.body().u1(0x99).u4(0).bytes())

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSubRecord))
	assert.Contains(t, err.Error(), "SUB-TAG 0x99")
}

func TestParser_InvalidTypes(t *testing.T) {
	t.Run("instance field", func(t *testing.T) {
		d := newDump(4)
		d.record(TagHeapDump, d.body().classDump(100, 0, InstanceField{NameID: 5, Type: BasicType(3)}).bytes())

		_, err := parse(t, d, newRecorder())
		assert.True(t, errors.Is(err, ErrInvalidType))
	})

	t.Run("primitive array of objects", func(t *testing.T) {
		d := newDump(4)
		heap := d.body()
		heap.u1(uint8(HeapTagPrimitiveArrayDump)).id(400).u4(0).u4(1).u1(uint8(TypeObject)).id(1)
		d.record(TagHeapDump, heap.bytes())

		rec := newRecorder()
		_, err := parse(t, d, rec)
		assert.True(t, errors.Is(err, ErrInvalidType))
		assert.Empty(t, rec.primArrays)
	})

	t.Run("static field", func(t *testing.T) {
		d := newDump(4)
		heap := d.body().u1(uint8(HeapTagClassDump)).id(100).u4(0).id(0)
		heap.id(0).id(0).id(0).id(0).id(0).u4(0)
		heap.u2(0).u2(1).id(11).u1(12).u4(0).u2(0)
		d.record(TagHeapDump, heap.bytes())

		_, err := parse(t, d, newRecorder())
		assert.True(t, errors.Is(err, ErrInvalidType))
	})
}

func TestParser_TruncatedRecord(t *testing.T) {
	d := newDump(4)
	d.recordWithLength(TagString, 20, make([]byte, 10))

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncatedRecord))
	assert.Equal(t, []string{"header"}, rec.events)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(20), de.Expected)
	assert.Equal(t, int64(10), de.Actual)
	assert.Equal(t, TagString.String(), de.Tag)
}

func TestParser_TruncatedHugeSegment(t *testing.T) {
	d := newDump(8)
	d.recordWithLength(TagHeapDumpSegment, 1<<30, make([]byte, 10))

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	rec := newRecorder()
	_, err := parse(t, d, rec)
	runtime.ReadMemStats(&after)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncatedRecord))
	assert.Equal(t, []string{"header"}, rec.events)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, TagHeapDumpSegment.String(), de.Tag)
}

func TestParser_TruncatedSkippedRecord(t *testing.T) {
	d := newDump(4)
	d.recordWithLength(TagCPUSamples, 100, make([]byte, 4))

	_, err := parse(t, d, newRecorder())
	assert.True(t, errors.Is(err, ErrTruncatedRecord))
}

func TestParser_FramingViolation(t *testing.T) {
	tests := []struct {
		name string
		tag  RecordTag
		body []byte
	}{
		{"load class one byte short", TagLoadClass, make([]byte, 15)},
		{"load class one byte long", TagLoadClass, make([]byte, 17)},
		{"unload class one byte short", TagUnloadClass, make([]byte, 3)},
		{"unload class one byte long", TagUnloadClass, make([]byte, 5)},
		{"heap dump end with body", TagHeapDumpEnd, make([]byte, 1)},
		{"string shorter than its id", TagString, make([]byte, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDump(4).record(tt.tag, tt.body)

			rec := newRecorder()
			_, err := parse(t, d, rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFramingViolation))
			assert.False(t, errors.Is(err, ErrTruncatedRecord))
			assert.Equal(t, []string{"header"}, rec.events)
		})
	}
}

func TestParser_HeapWindowOneByteShort(t *testing.T) {
	d := newDump(4)
	heap := d.body().
		classDump(100, 0, InstanceField{NameID: 5, Type: TypeInt}).
		instanceDump(200, 100, []byte{0, 0, 0, 42}).
		bytes()
	d.record(TagHeapDump, heap[:len(heap)-1])

	rec := newRecorder()
	_, err := parse(t, d, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFramingViolation))
	assert.False(t, errors.Is(err, ErrTruncatedRecord))
	assert.Empty(t, rec.instances)
	assert.Len(t, rec.classes, 1)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, HeapTagInstanceDump.String(), de.Tag)
}

func TestParser_HeapWindowOneByteLong(t *testing.T) {
	for _, idSize := range []int{4, 8} {
		for _, extra := range []byte{0x00, byte(HeapTagRootUnknown)} {
			d := newDump(idSize)
			heap := d.body().
				classDump(100, 0, InstanceField{NameID: 5, Type: TypeInt}).
				instanceDump(200, 100, []byte{0, 0, 0, 42}).
				u1(extra).
				bytes()
			d.record(TagHeapDumpSegment, heap)

			rec := newRecorder()
			_, err := parse(t, d, rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFramingViolation), "id size %d, extra 0x%02x", idSize, extra)
			assert.False(t, errors.Is(err, ErrUnknownSubRecord))
			assert.Len(t, rec.classes, 1)
			assert.Len(t, rec.instances, 1)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, int64(1), de.Actual)
			assert.Equal(t, int64(1+idSize), de.Expected)
			assert.Equal(t, TagHeapDumpSegment.String(), de.Tag)
			// 31 header bytes and a 9-byte record header precede the body.
			assert.Equal(t, int64(31+9+len(heap)-1), de.Offset)
		}
	}
}

func TestParser_MaxBodySize(t *testing.T) {
	d := newDump(4).str(1, "too long")

	opts := DefaultParserOptions()
	opts.MaxBodySize = 8
	_, err := NewParser(opts).Parse(context.Background(), d.reader(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFramingViolation))
	assert.Contains(t, err.Error(), "configured maximum")
}

func TestParser_MalformedHeader(t *testing.T) {
	rec := newRecorder()
	_, err := NewParser(nil).Parse(context.Background(), newDump(4).reader(), rec)
	require.NoError(t, err)

	d := &dumpBuilder{idSize: 4}
	d.buf.WriteString("JAVA PROFILE 1.0.2")
	d.buf.WriteByte(0)
	d.buf.Write([]byte{0, 0, 0, 5})
	d.buf.Write(make([]byte, 8))

	rec = newRecorder()
	_, err = NewParser(nil).Parse(context.Background(), d.reader(), rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedHeader))
	assert.Contains(t, err.Error(), "failed to read header")
	assert.Empty(t, rec.events)
}

func TestParser_HandlerErrorAborts(t *testing.T) {
	stop := errors.New("stop here")

	tests := []struct {
		failOn string
		want   []string
	}{
		{"header", []string{"header"}},
		{"string", []string{"header", "string"}},
		{"heapDump", []string{"header", "string", "heapDump"}},
		{"classDump", []string{"header", "string", "heapDump", "classDump"}},
		{"finished", []string{"header", "string", "heapDump", "classDump", "instanceDump", "finished"}},
	}

	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			d := newDump(4).str(1, "x")
			d.record(TagHeapDump, d.body().
				classDump(100, 0, InstanceField{NameID: 1, Type: TypeByte}).
				instanceDump(200, 100, []byte{1}).
				bytes())

			rec := newRecorder()
			rec.failOn = tt.failOn
			rec.failErr = stop

			summary, err := parse(t, d, rec)
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.True(t, errors.Is(err, stop))
			assert.Equal(t, tt.want, rec.events)

			var de *DecodeError
			assert.False(t, errors.As(err, &de), "handler errors are passed through")
		})
	}
}

func TestParser_ContextCancellation(t *testing.T) {
	d := newDump(4).str(1, "never delivered")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := newRecorder()
	_, err := NewParser(nil).Parse(ctx, d.reader(), rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"header"}, rec.events)
}

func TestParser_NilHandler(t *testing.T) {
	d := newDump(8).str(1, "x")
	d.record(TagHeapDump, d.body().classDump(100, 0).bytes())

	summary, err := NewParser(nil).Parse(context.Background(), d.reader(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Strings)
	assert.Equal(t, int64(1), summary.ClassDumps)
}

func TestParser_Reuse(t *testing.T) {
	parser := NewParser(DefaultParserOptions())
	build := func() *dumpBuilder {
		d := newDump(4)
		d.record(TagHeapDump, d.body().classDump(100, 0).bytes())
		return d
	}

	// Each parse owns its registry, so the same class id is not a duplicate.
	for i := 0; i < 2; i++ {
		_, err := parser.Parse(context.Background(), build().reader(), nil)
		require.NoError(t, err)
	}
}

func TestMultiHandler(t *testing.T) {
	d := newDump(4).str(1, "Hi")
	d.record(TagHeapDump, d.body().classDump(100, 0).bytes())

	first, second := newRecorder(), newRecorder()
	_, err := parse(t, d, NewMultiHandler(first, NullHandler{}, second))
	require.NoError(t, err)

	want := []string{"header", "string", "heapDump", "classDump", "finished"}
	assert.Equal(t, want, first.events)
	assert.Equal(t, want, second.events)

	t.Run("stops at first error", func(t *testing.T) {
		stop := errors.New("stop")
		failing, after := newRecorder(), newRecorder()
		failing.failOn, failing.failErr = "string", stop

		_, err := parse(t, newDump(4).str(1, "Hi"), NewMultiHandler(failing, after))
		assert.True(t, errors.Is(err, stop))
		assert.Equal(t, []string{"header"}, after.events)
	})
}
