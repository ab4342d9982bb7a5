// Package validate checks a candidate JSON value against a contract's
// stable-AST schema. External stores run it before admitting a write, so a
// value is guaranteed well-typed before any commitment is computed. It does
// not run code.
package validate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polylang/polylang/pkg/stableast"
)

// Error is a validation failure at a dotted path.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at path %s", e.Message, e.Path)
}

type path []string

func (p path) String() string { return strings.Join(p, ".") }

func (p path) field(name string) path {
	return append(append(path{}, p...), name)
}

func (p path) index(i int) path {
	if len(p) == 0 {
		return path{fmt.Sprintf("[%d]", i)}
	}
	out := append(path{}, p...)
	out[len(out)-1] += fmt.Sprintf("[%d]", i)
	return out
}

func invalidType(p path, expected stableast.Type) *Error {
	return &Error{Path: p.String(), Message: fmt.Sprintf("invalid type, expected %s", expected)}
}

// Set validates a record against the contract schema: every required
// property present with its declared type, and no properties beyond the
// schema.
func Set(contract *stableast.Contract, data json.RawMessage) error {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return &Error{Path: "", Message: "record must be an object"}
	}

	known := map[string]bool{}
	for _, attr := range contract.Attributes {
		prop := attr.Property
		if prop == nil {
			continue
		}
		known[prop.Name] = true

		value, present := record[prop.Name]
		if !present || isNull(value) {
			if prop.Required {
				return &Error{Path: prop.Name, Message: "missing required field"}
			}
			continue
		}
		if err := checkValue(path{prop.Name}, value, &prop.Type); err != nil {
			return err
		}
	}

	for name := range record {
		if !known[name] {
			return &Error{Path: name, Message: "unexpected extra field"}
		}
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	return string(data) == "null"
}

func checkValue(p path, data json.RawMessage, expected *stableast.Type) error {
	switch {
	case expected.Primitive != nil:
		return checkPrimitive(p, data, expected)

	case expected.Array != nil:
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return invalidType(p, *expected)
		}
		for i, elem := range elems {
			if err := checkValue(p.index(i), elem, expected.Array.Value); err != nil {
				return err
			}
		}
		return nil

	case expected.Map != nil:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return invalidType(p, *expected)
		}
		if key := expected.Map.Key; key.Primitive != nil && key.Primitive.Value != stableast.PrimitiveString {
			for k := range entries {
				if !isDecimal(k) {
					return &Error{Path: p.field(k).String(), Message: "map key must be a number"}
				}
			}
		}
		for k, v := range entries {
			if err := checkValue(p.field(k), v, expected.Map.Value); err != nil {
				return err
			}
		}
		return nil

	case expected.Object != nil:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return invalidType(p, *expected)
		}
		known := map[string]bool{}
		for _, f := range expected.Object.Fields {
			known[f.Name] = true
			value, present := fields[f.Name]
			if !present || isNull(value) {
				if f.Required {
					return &Error{Path: p.field(f.Name).String(), Message: "missing required field"}
				}
				continue
			}
			field := f
			if err := checkValue(p.field(f.Name), value, &field.Type); err != nil {
				return err
			}
		}
		for name := range fields {
			if !known[name] {
				return &Error{Path: p.field(name).String(), Message: "unexpected extra field"}
			}
		}
		return nil

	case expected.ForeignRecord != nil:
		var ref struct {
			ID *string `json:"id"`
		}
		if err := json.Unmarshal(data, &ref); err != nil || ref.ID == nil {
			return invalidType(p, *expected)
		}
		return nil

	case expected.PublicKey != nil:
		var key struct {
			Kty, Crv, Alg, Use, X, Y *string
		}
		if err := json.Unmarshal(data, &key); err != nil ||
			key.Kty == nil || key.Crv == nil || key.Alg == nil ||
			key.Use == nil || key.X == nil || key.Y == nil {
			return invalidType(p, *expected)
		}
		return nil

	case expected.Record != nil:
		var record map[string]json.RawMessage
		if err := json.Unmarshal(data, &record); err != nil {
			return invalidType(p, *expected)
		}
		return nil
	}
	return invalidType(p, *expected)
}

func checkPrimitive(p path, data json.RawMessage, expected *stableast.Type) error {
	switch expected.Primitive.Value {
	case stableast.PrimitiveString:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return invalidType(p, *expected)
		}
	case stableast.PrimitiveBoolean:
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return invalidType(p, *expected)
		}
	case stableast.PrimitiveBytes:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return invalidType(p, *expected)
		}
		if _, err := base64.StdEncoding.DecodeString(s); err != nil {
			return &Error{Path: p.String(), Message: "bytes must be base64"}
		}
	default: // the numeric family
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return invalidType(p, *expected)
		}
		if isIntegerPrimitive(expected.Primitive.Value) {
			if _, err := n.Int64(); err != nil {
				return invalidType(p, *expected)
			}
		}
	}
	return nil
}

func isIntegerPrimitive(name string) bool {
	switch name {
	case stableast.PrimitiveU32, stableast.PrimitiveU64,
		stableast.PrimitiveI32, stableast.PrimitiveI64:
		return true
	}
	return false
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	var n json.Number
	return json.Unmarshal([]byte(s), &n) == nil
}
