package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
)

type collector struct {
	hprof.NullHandler
	instances []uint64
	arrays    []uint64
	strings   int
	loads     int
}

func (c *collector) StringUTF8(uint64, string) error {
	c.strings++
	return nil
}

func (c *collector) LoadClass(hprof.LoadClass) error {
	c.loads++
	return nil
}

func (c *collector) InstanceDump(rec *hprof.InstanceDump) error {
	c.instances = append(c.instances, rec.ObjectID)
	return nil
}

func (c *collector) ObjectArrayDump(rec *hprof.ObjectArrayDump) error {
	c.arrays = append(c.arrays, rec.ObjectID)
	return nil
}

func TestHandler_DropsExcludedClasses(t *testing.T) {
	f := NewClassFilter()
	f.Exclude(CategoryJDK)

	next := &collector{}
	h := NewHandler(next, f)

	require.NoError(t, h.StringUTF8(1, "java/lang/String"))
	require.NoError(t, h.StringUTF8(2, "com/example/Order"))
	require.NoError(t, h.StringUTF8(3, "[Ljava/lang/String;"))
	require.NoError(t, h.LoadClass(hprof.LoadClass{ClassSerial: 1, ClassID: 10, NameID: 1}))
	require.NoError(t, h.LoadClass(hprof.LoadClass{ClassSerial: 2, ClassID: 20, NameID: 2}))
	require.NoError(t, h.LoadClass(hprof.LoadClass{ClassSerial: 3, ClassID: 30, NameID: 3}))

	require.NoError(t, h.InstanceDump(&hprof.InstanceDump{ObjectID: 100, ClassID: 10}))
	require.NoError(t, h.InstanceDump(&hprof.InstanceDump{ObjectID: 200, ClassID: 20}))
	// Unknown classes pass through.
	require.NoError(t, h.InstanceDump(&hprof.InstanceDump{ObjectID: 300, ClassID: 99}))
	require.NoError(t, h.ObjectArrayDump(&hprof.ObjectArrayDump{ObjectID: 400, ElementClassID: 30}))
	require.NoError(t, h.ObjectArrayDump(&hprof.ObjectArrayDump{ObjectID: 500, ElementClassID: 20}))

	assert.Equal(t, []uint64{200, 300}, next.instances)
	assert.Equal(t, []uint64{500}, next.arrays)
	assert.Equal(t, 3, next.strings)
	assert.Equal(t, 3, next.loads)
	assert.Equal(t, int64(2), h.Dropped())
}

func TestHandler_ForwardsOtherRecords(t *testing.T) {
	next := &collector{}
	h := NewHandler(next, NewClassFilter())

	require.NoError(t, h.Root(hprof.Root{Kind: hprof.HeapTagRootUnknown, ObjectID: 1}))
	require.NoError(t, h.Finished())
	assert.Zero(t, h.Dropped())
}
