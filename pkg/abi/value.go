package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a runtime value typed by a layout [Type]. Serialize returns the
// advice-tape encoding: the exact sequence of field elements the compiled
// code reads back.
type Value interface {
	Serialize() []uint64
	JSON() (json.RawMessage, error)
}

// Scalar values.
type (
	// BooleanValue is a boolean.
	BooleanValue bool
	// UInt32Value is a one-word unsigned integer.
	UInt32Value uint32
	// UInt64Value is a two-word unsigned integer (high, low).
	UInt64Value uint64
	// Int32Value is a one-word two's-complement integer.
	Int32Value int32
	// Int64Value is a two-word two's-complement integer.
	Int64Value int64
	// Float32Value is a one-word IEEE 754 single.
	Float32Value float32
	// Float64Value is a two-word IEEE 754 double.
	Float64Value float64
	// HashValue is a 4-word commitment digest.
	HashValue [4]uint64
	// StringValue is a UTF-8 string: length word plus packed bytes.
	StringValue string
	// BytesValue is arbitrary octets with the string layout.
	BytesValue []byte
	// ContractRefValue is a cross-contract reference: the referenced id.
	ContractRefValue []byte
)

// ArrayValue is a homogeneous sequence.
type ArrayValue []Value

// MapEntry is one key/value pair of a map, in insertion order.
type MapEntry struct {
	Key   Value
	Value Value
}

// MapValue is an insertion-ordered map.
type MapValue []MapEntry

// NullableValue wraps an optional value; a nil Inner is null.
type NullableValue struct {
	Inner Value
}

// StructFieldValue is one named field of a struct value.
type StructFieldValue struct {
	Name  string
	Value Value
}

// StructValue is a record value with fields in declaration order.
type StructValue []StructFieldValue

// Get returns the value of the named field.
func (v StructValue) Get(name string) (Value, bool) {
	for _, f := range v {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Serialize implementations. The encoding matches what the compiled
// advice-tape readers expect, word for word.

func (v BooleanValue) Serialize() []uint64 {
	if v {
		return []uint64{1}
	}
	return []uint64{0}
}

func (v UInt32Value) Serialize() []uint64 { return []uint64{uint64(v)} }

func (v UInt64Value) Serialize() []uint64 {
	return []uint64{uint64(v) >> 32, uint64(v) & 0xffffffff}
}

func (v Int32Value) Serialize() []uint64 { return []uint64{uint64(uint32(v))} }

func (v Int64Value) Serialize() []uint64 {
	bits := uint64(v)
	return []uint64{bits >> 32, bits & 0xffffffff}
}

func (v Float32Value) Serialize() []uint64 {
	return []uint64{uint64(math.Float32bits(float32(v)))}
}

func (v Float64Value) Serialize() []uint64 {
	bits := math.Float64bits(float64(v))
	return []uint64{bits >> 32, bits & 0xffffffff}
}

func (v HashValue) Serialize() []uint64 { return []uint64{v[0], v[1], v[2], v[3]} }

func (v StringValue) Serialize() []uint64 {
	out := make([]uint64, 0, len(v)+1)
	out = append(out, uint64(len(v)))
	for _, b := range []byte(v) {
		out = append(out, uint64(b))
	}
	return out
}

func (v BytesValue) Serialize() []uint64 {
	return StringValue(v).Serialize()
}

func (v ContractRefValue) Serialize() []uint64 {
	return StringValue(v).Serialize()
}

func (v ArrayValue) Serialize() []uint64 {
	out := []uint64{uint64(len(v))}
	for _, e := range v {
		out = append(out, e.Serialize()...)
	}
	return out
}

// Maps serialize as [keys_array..., values_array...] so the generated code
// can reuse its array reader for both halves.
func (v MapValue) Serialize() []uint64 {
	out := []uint64{uint64(len(v))}
	for _, e := range v {
		out = append(out, e.Key.Serialize()...)
	}
	out = append(out, uint64(len(v)))
	for _, e := range v {
		out = append(out, e.Value.Serialize()...)
	}
	return out
}

func (v NullableValue) Serialize() []uint64 {
	if v.Inner == nil {
		return []uint64{0}
	}
	return append([]uint64{1}, v.Inner.Serialize()...)
}

func (v StructValue) Serialize() []uint64 {
	var out []uint64
	for _, f := range v {
		out = append(out, f.Value.Serialize()...)
	}
	return out
}

// JSON implementations.

func rawJSON(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (v BooleanValue) JSON() (json.RawMessage, error) { return rawJSON(bool(v)) }
func (v UInt32Value) JSON() (json.RawMessage, error)  { return rawJSON(uint32(v)) }
func (v UInt64Value) JSON() (json.RawMessage, error)  { return rawJSON(uint64(v)) }
func (v Int32Value) JSON() (json.RawMessage, error)   { return rawJSON(int32(v)) }
func (v Int64Value) JSON() (json.RawMessage, error)   { return rawJSON(int64(v)) }

func (v Float32Value) JSON() (json.RawMessage, error) {
	return json.RawMessage(strconv.FormatFloat(float64(float32(v)), 'f', -1, 32)), nil
}

func (v Float64Value) JSON() (json.RawMessage, error) {
	return json.RawMessage(strconv.FormatFloat(float64(v), 'f', -1, 64)), nil
}

func (v HashValue) JSON() (json.RawMessage, error) {
	s := ""
	for _, x := range v {
		s += fmt.Sprintf("%016x", x)
	}
	return rawJSON(s)
}

func (v StringValue) JSON() (json.RawMessage, error) { return rawJSON(string(v)) }

func (v BytesValue) JSON() (json.RawMessage, error) {
	return rawJSON(base64Std(v))
}

func (v ContractRefValue) JSON() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	id, err := json.Marshal(string(v))
	if err != nil {
		return nil, err
	}
	buf.Write(id)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v ArrayValue) JSON() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := e.JSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (v MapValue) JSON() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := mapKeyString(e.Key)
		if err != nil {
			return nil, err
		}
		keyData, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyData)
		buf.WriteByte(':')
		data, err := e.Value.JSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v NullableValue) JSON() (json.RawMessage, error) {
	if v.Inner == nil {
		return json.RawMessage("null"), nil
	}
	return v.Inner.JSON()
}

func (v StructValue) JSON() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		data, err := f.Value.JSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// mapKeyString renders a map key as a JSON object key. Map keys are
// restricted to strings and numbers.
func mapKeyString(key Value) (string, error) {
	switch k := key.(type) {
	case StringValue:
		return string(k), nil
	case UInt32Value:
		return strconv.FormatUint(uint64(k), 10), nil
	case UInt64Value:
		return strconv.FormatUint(uint64(k), 10), nil
	case Int32Value:
		return strconv.FormatInt(int64(k), 10), nil
	case Int64Value:
		return strconv.FormatInt(int64(k), 10), nil
	case Float32Value:
		return strconv.FormatFloat(float64(k), 'f', -1, 32), nil
	case Float64Value:
		return strconv.FormatFloat(float64(k), 'f', -1, 64), nil
	}
	return "", fmt.Errorf("invalid map key type %T", key)
}

// DefaultValue returns the zero value of a layout type, used when the host
// passes an empty `this` record.
func (t Type) DefaultValue() Value {
	switch t.Kind {
	case KindNullable:
		return NullableValue{}
	case KindPrimitive:
		switch t.Primitive {
		case Boolean:
			return BooleanValue(false)
		case UInt32:
			return UInt32Value(0)
		case UInt64:
			return UInt64Value(0)
		case Int32:
			return Int32Value(0)
		case Int64:
			return Int64Value(0)
		case Float32:
			return Float32Value(0)
		case Float64:
			return Float64Value(0)
		}
	case KindString:
		return StringValue("")
	case KindBytes:
		return BytesValue(nil)
	case KindContractRef:
		return ContractRefValue(nil)
	case KindArray:
		return ArrayValue(nil)
	case KindMap:
		return MapValue(nil)
	case KindHash:
		return HashValue{}
	case KindPublicKey:
		return Key{}
	case KindStruct:
		fields := make(StructValue, 0, len(t.Struct.Fields))
		for _, f := range t.Struct.Fields {
			fields = append(fields, StructFieldValue{Name: f.Name, Value: f.Type.DefaultValue()})
		}
		return fields
	}
	return nil
}
