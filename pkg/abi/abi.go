// Package abi describes how a compiled entry point expects its inputs laid
// out on the VM's stack, advice tape and linear memory, and converts between
// host JSON values and those layouts.
package abi

import (
	"encoding/json"
	"fmt"
)

// Widths in VM words of each layout form.
const (
	BooleanWidth     = 1
	UInt32Width      = 1
	UInt64Width      = 2
	Int32Width       = 1
	Int64Width       = 2
	Float32Width     = 1
	Float64Width     = 2
	StringWidth      = 2 // (byte_length, pointer)
	BytesWidth       = 2
	ArrayWidth       = 3 // (length, capacity, pointer)
	MapWidth         = ArrayWidth * 2
	HashWidth        = 4
	PublicKeyWidth   = 5 // (kty, crv, alg, use, extra_ptr)
	ContractRefWidth = 2 // same layout as string: the referenced id
)

// StdVersion pins the VM standard-library version the emitted code expects.
type StdVersion string

// Supported standard-library versions.
const StdVersionCurrent StdVersion = "0.5.0"

// PrimitiveType enumerates single- and double-word scalar layouts.
type PrimitiveType string

// Primitive layout types.
const (
	Boolean PrimitiveType = "boolean"
	UInt32  PrimitiveType = "u32"
	UInt64  PrimitiveType = "u64"
	Int32   PrimitiveType = "i32"
	Int64   PrimitiveType = "i64"
	Float32 PrimitiveType = "f32"
	Float64 PrimitiveType = "f64"
)

// Width returns the number of VM words the primitive occupies.
func (p PrimitiveType) Width() uint32 {
	switch p {
	case UInt64, Int64, Float64:
		return 2
	default:
		return 1
	}
}

// TypeKind discriminates layout type forms.
type TypeKind string

// Layout type kinds.
const (
	KindNullable    TypeKind = "nullable"
	KindPrimitive   TypeKind = "primitive"
	KindString      TypeKind = "string"
	KindBytes       TypeKind = "bytes"
	KindContractRef TypeKind = "contractreference"
	KindArray       TypeKind = "array"
	KindMap         TypeKind = "map"
	KindHash        TypeKind = "hash"
	KindPublicKey   TypeKind = "publickey"
	KindStruct      TypeKind = "struct"
)

// Type is a layout type: how a value is represented in VM words.
type Type struct {
	Kind      TypeKind      `json:"kind"`
	Primitive PrimitiveType `json:"primitive,omitempty"`
	Inner     *Type         `json:"inner,omitempty"`    // nullable inner, array element
	Key       *Type         `json:"key,omitempty"`      // map key
	Value     *Type         `json:"value,omitempty"`    // map value
	Contract  string        `json:"contract,omitempty"` // contract reference target
	Struct    *Struct       `json:"struct,omitempty"`
}

// Struct is a record layout: named fields at consecutive offsets in
// declaration order.
type Struct struct {
	Name   string        `json:"name"`
	Fields []StructField `json:"fields"`
}

// StructField is one field of a struct layout.
type StructField struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Field returns the layout type and word offset of the named field.
func (s *Struct) Field(name string) (Type, uint32, bool) {
	var offset uint32
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type, offset, true
		}
		offset += f.Type.Width()
	}
	return Type{}, 0, false
}

// Width returns the number of VM words a value of this type occupies.
func (t Type) Width() uint32 {
	switch t.Kind {
	case KindNullable:
		return 1 + t.Inner.Width()
	case KindPrimitive:
		return t.Primitive.Width()
	case KindString:
		return StringWidth
	case KindBytes:
		return BytesWidth
	case KindContractRef:
		return ContractRefWidth
	case KindArray:
		return ArrayWidth
	case KindMap:
		return MapWidth
	case KindHash:
		return HashWidth
	case KindPublicKey:
		return PublicKeyWidth
	case KindStruct:
		var w uint32
		for _, f := range t.Struct.Fields {
			w += f.Type.Width()
		}
		return w
	}
	return 0
}

// String renders the layout type for diagnostics.
func (t Type) String() string {
	switch t.Kind {
	case KindNullable:
		return t.Inner.String() + "?"
	case KindPrimitive:
		return string(t.Primitive)
	case KindString, KindBytes, KindHash, KindPublicKey:
		return string(t.Kind)
	case KindContractRef:
		return t.Contract
	case KindArray:
		return t.Inner.String() + "[]"
	case KindMap:
		return fmt.Sprintf("map<%s, %s>", t.Key, t.Value)
	case KindStruct:
		return t.Struct.Name
	}
	return "unknown"
}

// Convenience constructors, used pervasively by the code generator.

// NewPrimitive returns a primitive layout type.
func NewPrimitive(p PrimitiveType) Type { return Type{Kind: KindPrimitive, Primitive: p} }

// NewString returns the string layout type.
func NewString() Type { return Type{Kind: KindString} }

// NewBytes returns the bytes layout type.
func NewBytes() Type { return Type{Kind: KindBytes} }

// NewHash returns the 4-word hash layout type.
func NewHash() Type { return Type{Kind: KindHash} }

// NewPublicKey returns the public-key layout type.
func NewPublicKey() Type { return Type{Kind: KindPublicKey} }

// NewContractRef returns a contract-reference layout type.
func NewContractRef(contract string) Type {
	return Type{Kind: KindContractRef, Contract: contract}
}

// NewArray returns an array layout type.
func NewArray(elem Type) Type { return Type{Kind: KindArray, Inner: &elem} }

// NewMap returns a map layout type.
func NewMap(key, value Type) Type { return Type{Kind: KindMap, Key: &key, Value: &value} }

// NewNullable wraps a layout type in a nullability word.
func NewNullable(inner Type) Type { return Type{Kind: KindNullable, Inner: &inner} }

// NewStruct returns a struct layout type.
func NewStruct(s Struct) Type { return Type{Kind: KindStruct, Struct: &s} }

// IsPrimitive reports whether t is the given primitive.
func (t Type) IsPrimitive(p PrimitiveType) bool {
	return t.Kind == KindPrimitive && t.Primitive == p
}

// Equal reports structural equality of layout types.
func (t Type) Equal(other Type) bool {
	a, errA := json.Marshal(t)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && string(a) == string(b)
}

// Abi links a compiled entry point to its expected input and output layout.
// It is embedded into the emitted assembly as a `# ABI: {...}` comment.
type Abi struct {
	ThisAddr   *uint32    `json:"this_addr,omitempty"`
	ThisType   *Type      `json:"this_type,omitempty"`
	ParamTypes []Type     `json:"param_types"`
	ResultType *Type      `json:"result_type,omitempty"`
	ReadAuth   bool       `json:"read_auth"`
	StdVersion StdVersion `json:"std_version,omitempty"`
}

// DefaultThisValue returns the all-defaults value of the `this` type, used
// when the host passes an empty record to a constructor.
func (a *Abi) DefaultThisValue() (Value, error) {
	if a.ThisType == nil {
		return nil, fmt.Errorf("abi has no this type")
	}
	return a.ThisType.DefaultValue(), nil
}
