package hprof

import (
	"math"
	"strconv"
)

// Value is one decoded scalar. The raw big-endian bits are kept in an
// unsigned word of the width implied by Type; the accessors reinterpret
// them. Values of the same type and bits compare equal with ==.
type Value struct {
	Type BasicType
	bits uint64
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value {
	if b {
		return Value{Type: TypeBoolean, bits: 1}
	}
	return Value{Type: TypeBoolean}
}

// ByteValue returns a byte Value.
func ByteValue(v int8) Value { return Value{Type: TypeByte, bits: uint64(uint8(v))} }

// CharValue returns a char Value holding a UTF-16 code unit.
func CharValue(v uint16) Value { return Value{Type: TypeChar, bits: uint64(v)} }

// ShortValue returns a short Value.
func ShortValue(v int16) Value { return Value{Type: TypeShort, bits: uint64(uint16(v))} }

// IntValue returns an int Value.
func IntValue(v int32) Value { return Value{Type: TypeInt, bits: uint64(uint32(v))} }

// LongValue returns a long Value.
func LongValue(v int64) Value { return Value{Type: TypeLong, bits: uint64(v)} }

// FloatValue returns a float Value.
func FloatValue(v float32) Value { return Value{Type: TypeFloat, bits: uint64(math.Float32bits(v))} }

// DoubleValue returns a double Value.
func DoubleValue(v float64) Value { return Value{Type: TypeDouble, bits: math.Float64bits(v)} }

// ObjectValue returns an object reference Value.
func ObjectValue(id uint64) Value { return Value{Type: TypeObject, bits: id} }

// Bool returns the value as a Java boolean.
func (v Value) Bool() bool { return v.bits != 0 }

// Byte returns the value as a Java byte.
func (v Value) Byte() int8 { return int8(uint8(v.bits)) }

// Char returns the value as a UTF-16 code unit.
func (v Value) Char() uint16 { return uint16(v.bits) }

// Short returns the value as a Java short.
func (v Value) Short() int16 { return int16(uint16(v.bits)) }

// Int returns the value as a Java int.
func (v Value) Int() int32 { return int32(uint32(v.bits)) }

// Long returns the value as a Java long.
func (v Value) Long() int64 { return int64(v.bits) }

// Float returns the value as a Java float.
func (v Value) Float() float32 { return math.Float32frombits(uint32(v.bits)) }

// Double returns the value as a Java double.
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }

// ObjectID returns the value as an object identifier.
func (v Value) ObjectID() uint64 { return v.bits }

// Bits returns the raw encoded bits.
func (v Value) Bits() uint64 { return v.bits }

// Interface returns the value as the natural Go type for its Java type.
func (v Value) Interface() interface{} {
	switch v.Type {
	case TypeBoolean:
		return v.Bool()
	case TypeByte:
		return v.Byte()
	case TypeChar:
		return v.Char()
	case TypeShort:
		return v.Short()
	case TypeInt:
		return v.Int()
	case TypeLong:
		return v.Long()
	case TypeFloat:
		return v.Float()
	case TypeDouble:
		return v.Double()
	default:
		return v.ObjectID()
	}
}

// String formats the value without its type.
func (v Value) String() string {
	switch v.Type {
	case TypeBoolean:
		return strconv.FormatBool(v.Bool())
	case TypeByte:
		return strconv.FormatInt(int64(v.Byte()), 10)
	case TypeChar:
		return strconv.QuoteRune(rune(v.Char()))
	case TypeShort:
		return strconv.FormatInt(int64(v.Short()), 10)
	case TypeInt:
		return strconv.FormatInt(int64(v.Int()), 10)
	case TypeLong:
		return strconv.FormatInt(v.Long(), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	default:
		return "0x" + strconv.FormatUint(v.bits, 16)
	}
}

// readValue decodes one value of type t and advances the cursor by the
// width of t.
func (w *window) readValue(t BasicType) (Value, error) {
	size := BasicTypeSize(t, w.idSize)
	if size == 0 {
		return Value{}, &DecodeError{
			Kind:   ErrInvalidType,
			Offset: w.offset(),
			Detail: "basic type " + strconv.Itoa(int(t)),
		}
	}
	b, err := w.take(size, t.String())
	if err != nil {
		return Value{}, err
	}
	var bits uint64
	for _, c := range b {
		bits = bits<<8 | uint64(c)
	}
	return Value{Type: t, bits: bits}, nil
}
