// Package stableast defines the version-stable JSON wire form of a parsed
// program. It is the external contract for tools that consume the program
// structure without the compiler.
//
// Every node serializes as {"kind": ..., ...}. The schema is strictly
// additive: consumers must tolerate unknown kinds (they decode into Unknown
// members and round-trip unchanged) and unknown fields.
package stableast

import (
	"encoding/json"
	"fmt"
)

// Node kind tags.
const (
	KindContract       = "contract"
	KindFunction       = "function"
	KindNamespace      = "namespace"
	KindProperty       = "property"
	KindMethod         = "method"
	KindIndex          = "index"
	KindDirective      = "directive"
	KindParameter      = "parameter"
	KindReturnValue    = "returnvalue"
	KindFieldReference = "fieldreference"
	KindPrimitive      = "primitive"
	KindArray          = "array"
	KindMap            = "map"
	KindObject         = "object"
	KindForeignRecord  = "foreignrecord"
	KindPublicKey      = "publickey"
	KindRecord         = "record"
)

// Root is the ordered list of root nodes.
type Root []RootNode

// RootNode is a contract, a free function, or an unknown node preserved
// verbatim for forward compatibility.
type RootNode struct {
	Contract *Contract
	Function *Function
	Unknown  json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (n RootNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Contract != nil:
		return json.Marshal(n.Contract)
	case n.Function != nil:
		return json.Marshal(n.Function)
	case n.Unknown != nil:
		return n.Unknown, nil
	}
	return nil, fmt.Errorf("empty root node")
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *RootNode) UnmarshalJSON(data []byte) error {
	switch kindOf(data) {
	case KindContract:
		n.Contract = &Contract{}
		return json.Unmarshal(data, n.Contract)
	case KindFunction:
		n.Function = &Function{}
		return json.Unmarshal(data, n.Function)
	default:
		n.Unknown = append(json.RawMessage(nil), data...)
		return nil
	}
}

func kindOf(data []byte) string {
	var probe struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(data, &probe)
	return probe.Kind
}

// Namespace scopes contract names across a multi-program deployment.
type Namespace struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Contract is the wire form of a contract declaration.
type Contract struct {
	Kind       string      `json:"kind"`
	Namespace  Namespace   `json:"namespace"`
	Name       string      `json:"name"`
	Attributes []Attribute `json:"attributes"`
}

// Function is the wire form of a free function declaration.
type Function struct {
	Kind       string            `json:"kind"`
	Namespace  Namespace         `json:"namespace"`
	Name       string            `json:"name"`
	Attributes []MethodAttribute `json:"attributes"`
	Code       string            `json:"code"`
}

// Attribute is a contract attribute: property, method, index or directive.
// Unknown kinds are preserved verbatim.
type Attribute struct {
	Property  *Property
	Method    *Method
	Index     *Index
	Directive *Directive
	Unknown   json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (a Attribute) MarshalJSON() ([]byte, error) {
	switch {
	case a.Property != nil:
		return json.Marshal(a.Property)
	case a.Method != nil:
		return json.Marshal(a.Method)
	case a.Index != nil:
		return json.Marshal(a.Index)
	case a.Directive != nil:
		return json.Marshal(a.Directive)
	case a.Unknown != nil:
		return a.Unknown, nil
	}
	return nil, fmt.Errorf("empty contract attribute")
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	switch kindOf(data) {
	case KindProperty:
		a.Property = &Property{}
		return json.Unmarshal(data, a.Property)
	case KindMethod:
		a.Method = &Method{}
		return json.Unmarshal(data, a.Method)
	case KindIndex:
		a.Index = &Index{}
		return json.Unmarshal(data, a.Index)
	case KindDirective:
		a.Directive = &Directive{}
		return json.Unmarshal(data, a.Directive)
	default:
		a.Unknown = append(json.RawMessage(nil), data...)
		return nil
	}
}

// Property is a contract field.
type Property struct {
	Kind       string      `json:"kind"`
	Name       string      `json:"name"`
	Type       Type        `json:"type"`
	Directives []Directive `json:"directives"`
	Required   bool        `json:"required"`
}

// Method is a contract method: its parameters, return value, directives, and
// the captured body source.
type Method struct {
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	Attributes []MethodAttribute `json:"attributes"`
	Code       string            `json:"code"`
}

// MethodAttribute is a parameter, return value or directive.
type MethodAttribute struct {
	Parameter   *Parameter
	ReturnValue *ReturnValue
	Directive   *Directive
	Unknown     json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (a MethodAttribute) MarshalJSON() ([]byte, error) {
	switch {
	case a.Parameter != nil:
		return json.Marshal(a.Parameter)
	case a.ReturnValue != nil:
		return json.Marshal(a.ReturnValue)
	case a.Directive != nil:
		return json.Marshal(a.Directive)
	case a.Unknown != nil:
		return a.Unknown, nil
	}
	return nil, fmt.Errorf("empty method attribute")
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *MethodAttribute) UnmarshalJSON(data []byte) error {
	switch kindOf(data) {
	case KindParameter:
		a.Parameter = &Parameter{}
		return json.Unmarshal(data, a.Parameter)
	case KindReturnValue:
		a.ReturnValue = &ReturnValue{}
		return json.Unmarshal(data, a.ReturnValue)
	case KindDirective:
		a.Directive = &Directive{}
		return json.Unmarshal(data, a.Directive)
	default:
		a.Unknown = append(json.RawMessage(nil), data...)
		return nil
	}
}

// Parameter is a method parameter.
type Parameter struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Required bool   `json:"required"`
}

// ReturnValue is the declared return type of a method.
type ReturnValue struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Index is informational index metadata.
type Index struct {
	Kind   string       `json:"kind"`
	Fields []IndexField `json:"fields"`
}

// IndexField is one component of an index.
type IndexField struct {
	Direction string   `json:"direction"`
	FieldPath []string `json:"fieldPath"`
}

// Directive is an @-directive.
type Directive struct {
	Kind      string              `json:"kind"`
	Name      string              `json:"name"`
	Arguments []DirectiveArgument `json:"arguments"`
}

// DirectiveArgument is currently always a field reference.
type DirectiveArgument struct {
	FieldReference *FieldReference
	Unknown        json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (a DirectiveArgument) MarshalJSON() ([]byte, error) {
	switch {
	case a.FieldReference != nil:
		return json.Marshal(a.FieldReference)
	case a.Unknown != nil:
		return a.Unknown, nil
	}
	return nil, fmt.Errorf("empty directive argument")
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *DirectiveArgument) UnmarshalJSON(data []byte) error {
	if kindOf(data) == KindFieldReference {
		a.FieldReference = &FieldReference{}
		return json.Unmarshal(data, a.FieldReference)
	}
	a.Unknown = append(json.RawMessage(nil), data...)
	return nil
}

// FieldReference is a dotted path to a field.
type FieldReference struct {
	Kind string   `json:"kind"`
	Path []string `json:"path"`
}

// Primitive type names on the wire.
const (
	PrimitiveString  = "string"
	PrimitiveNumber  = "number"
	PrimitiveF32     = "f32"
	PrimitiveF64     = "f64"
	PrimitiveU32     = "u32"
	PrimitiveU64     = "u64"
	PrimitiveI32     = "i32"
	PrimitiveI64     = "i64"
	PrimitiveBoolean = "boolean"
	PrimitiveBytes   = "bytes"
)

// Type is the wire form of a type expression.
type Type struct {
	Primitive     *Primitive
	Array         *Array
	Map           *Map
	Object        *Object
	ForeignRecord *ForeignRecord
	PublicKey     *PublicKey
	Record        *Record
	Unknown       json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) {
	switch {
	case t.Primitive != nil:
		return json.Marshal(t.Primitive)
	case t.Array != nil:
		return json.Marshal(t.Array)
	case t.Map != nil:
		return json.Marshal(t.Map)
	case t.Object != nil:
		return json.Marshal(t.Object)
	case t.ForeignRecord != nil:
		return json.Marshal(t.ForeignRecord)
	case t.PublicKey != nil:
		return json.Marshal(t.PublicKey)
	case t.Record != nil:
		return json.Marshal(t.Record)
	case t.Unknown != nil:
		return t.Unknown, nil
	}
	return nil, fmt.Errorf("empty type")
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(data []byte) error {
	switch kindOf(data) {
	case KindPrimitive:
		t.Primitive = &Primitive{}
		return json.Unmarshal(data, t.Primitive)
	case KindArray:
		t.Array = &Array{}
		return json.Unmarshal(data, t.Array)
	case KindMap:
		t.Map = &Map{}
		return json.Unmarshal(data, t.Map)
	case KindObject:
		t.Object = &Object{}
		return json.Unmarshal(data, t.Object)
	case KindForeignRecord:
		t.ForeignRecord = &ForeignRecord{}
		return json.Unmarshal(data, t.ForeignRecord)
	case KindPublicKey:
		t.PublicKey = &PublicKey{}
		return json.Unmarshal(data, t.PublicKey)
	case KindRecord:
		t.Record = &Record{}
		return json.Unmarshal(data, t.Record)
	default:
		t.Unknown = append(json.RawMessage(nil), data...)
		return nil
	}
}

// String renders the type the way it is written in source.
func (t Type) String() string {
	switch {
	case t.Primitive != nil:
		return t.Primitive.Value
	case t.Array != nil:
		return t.Array.Value.String() + "[]"
	case t.Map != nil:
		return "map<" + t.Map.Key.String() + ", " + t.Map.Value.String() + ">"
	case t.Object != nil:
		s := "{ "
		for _, f := range t.Object.Fields {
			s += f.Name
			if !f.Required {
				s += "?"
			}
			s += ": " + f.Type.String() + "; "
		}
		return s + "}"
	case t.ForeignRecord != nil:
		return t.ForeignRecord.Contract
	case t.PublicKey != nil:
		return "PublicKey"
	case t.Record != nil:
		return "record"
	}
	return "UNKNOWN"
}

// Primitive is a primitive type.
type Primitive struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Array is a homogeneous array type.
type Array struct {
	Kind  string `json:"kind"`
	Value *Type  `json:"value"`
}

// Map is a map type.
type Map struct {
	Kind  string `json:"kind"`
	Key   *Type  `json:"key"`
	Value *Type  `json:"value"`
}

// Object is an anonymous structural record type.
type Object struct {
	Kind   string        `json:"kind"`
	Fields []ObjectField `json:"fields"`
}

// ObjectField is one field of an object type.
type ObjectField struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Required bool   `json:"required"`
}

// ForeignRecord is a cross-contract reference.
type ForeignRecord struct {
	Kind     string `json:"kind"`
	Contract string `json:"collection"`
}

// PublicKey is an opaque secp256k1 public key.
type PublicKey struct {
	Kind string `json:"kind"`
}

// Record is the erased contract-reference type used by generic built-ins.
type Record struct {
	Kind string `json:"kind"`
}
