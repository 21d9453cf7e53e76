package protocol

import (
	"fmt"
	"reflect"
)

// ValueType tags a property value on the wire.
type ValueType uint8

const (
	ValueNull ValueType = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
)

// Value is a property value as the client sees it. Go values without a
// wire form travel as their fmt.Sprint text.
type Value struct {
	Type   ValueType
	Bool   bool
	Int    int64
	Float  float64
	String string
}

// ValueOf converts a Go value.
func ValueOf(v any) Value {
	if v == nil {
		return Value{Type: ValueNull}
	}
	switch x := v.(type) {
	case bool:
		return Value{Type: ValueBool, Bool: x}
	case string:
		return Value{Type: ValueString, String: x}
	case fmt.Stringer:
		return Value{Type: ValueString, String: x.String()}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Value{Type: ValueInt, Int: rv.Int()}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Value{Type: ValueInt, Int: int64(rv.Uint())}
	case reflect.Float32, reflect.Float64:
		return Value{Type: ValueFloat, Float: rv.Float()}
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return Value{Type: ValueNull}
		}
	}
	return Value{Type: ValueString, String: fmt.Sprint(v)}
}

// Any returns the value as a Go value: nil, bool, int64, float64 or string.
func (v Value) Any() any {
	switch v.Type {
	case ValueBool:
		return v.Bool
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueString:
		return v.String
	}
	return nil
}

func (e *Encoder) writeValue(v Value) {
	e.WriteByte(byte(v.Type))
	switch v.Type {
	case ValueBool:
		e.WriteBool(v.Bool)
	case ValueInt:
		e.WriteSvarint(v.Int)
	case ValueFloat:
		e.WriteFloat64(v.Float)
	case ValueString:
		e.WriteString(v.String)
	}
}

func (d *Decoder) readValue() (Value, error) {
	t, err := d.ReadByte()
	if err != nil {
		return Value{}, err
	}
	v := Value{Type: ValueType(t)}
	switch v.Type {
	case ValueNull:
	case ValueBool:
		v.Bool, err = d.ReadBool()
	case ValueInt:
		v.Int, err = d.ReadSvarint()
	case ValueFloat:
		v.Float, err = d.ReadFloat64()
	case ValueString:
		v.String, err = d.ReadString()
	default:
		err = fmt.Errorf("protocol: invalid value type 0x%02x", t)
	}
	return v, err
}
