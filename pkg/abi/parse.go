package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/polylang/polylang/pkg/diag"
)

func abiErr(format string, args ...any) *diag.Error {
	return &diag.Error{Type: diag.ABIError, Message: fmt.Sprintf(format, args...)}
}

func isNullJSON(data []byte) bool {
	return string(bytes.TrimSpace(data)) == "null"
}

// Parse checks a JSON value against the layout type and converts it to a
// [Value]. The wire uses arbitrary-precision JSON numbers; sized integer
// types are range-checked and fail with a tagged out-of-range error rather
// than silently truncating.
func (t Type) Parse(data json.RawMessage) (Value, error) {
	switch t.Kind {
	case KindNullable:
		if isNullJSON(data) {
			return NullableValue{}, nil
		}
		inner, err := t.Inner.Parse(data)
		if err != nil {
			return nil, err
		}
		return NullableValue{Inner: inner}, nil

	case KindPrimitive:
		return t.Primitive.Parse(data)

	case KindString:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, abiErr("invalid string value: %s", data)
		}
		return StringValue(s), nil

	case KindBytes:
		if isNullJSON(data) {
			return BytesValue(nil), nil
		}
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, abiErr("invalid bytes value: %s", data)
		}
		b, err := base64StdDecode(s)
		if err != nil {
			return nil, abiErr("invalid bytes value: %v", err)
		}
		return BytesValue(b), nil

	case KindContractRef:
		if isNullJSON(data) {
			return ContractRefValue(nil), nil
		}
		var ref struct {
			ID *string `json:"id"`
		}
		if err := json.Unmarshal(data, &ref); err != nil || ref.ID == nil {
			return nil, abiErr("invalid contract reference: expected {\"id\": ...}, got %s", data)
		}
		return ContractRefValue(*ref.ID), nil

	case KindArray:
		if isNullJSON(data) {
			return ArrayValue(nil), nil
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, abiErr("invalid array value: %s", data)
		}
		out := make(ArrayValue, 0, len(elems))
		for _, e := range elems {
			v, err := t.Inner.Parse(e)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case KindMap:
		if isNullJSON(data) {
			return MapValue(nil), nil
		}
		return t.parseMap(data)

	case KindHash:
		return parseHash(data)

	case KindPublicKey:
		var key Key
		if err := json.Unmarshal(data, &key); err != nil {
			return nil, abiErr("invalid public key: %v", err)
		}
		if err := key.Validate(); err != nil {
			return nil, abiErr("invalid public key: %v", err)
		}
		return key, nil

	case KindStruct:
		return t.parseStruct(data, false)
	}
	return nil, abiErr("cannot parse value of unknown type %q", t.Kind)
}

// ParseThis parses a host-supplied `this` record. An empty object means
// every field takes its default value; otherwise every non-nullable field
// must be present.
func ParseThis(t Type, data json.RawMessage) (Value, error) {
	if t.Kind != KindStruct {
		return nil, abiErr("this type is not a struct")
	}
	return t.parseStruct(data, true)
}

func (t Type) parseStruct(data json.RawMessage, defaultsIfEmpty bool) (Value, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, abiErr("invalid struct value for %s: %s", t.Struct.Name, data)
	}
	useDefaults := defaultsIfEmpty && len(fields) == 0

	out := make(StructValue, 0, len(t.Struct.Fields))
	for _, f := range t.Struct.Fields {
		raw, present := fields[f.Name]
		var value Value
		switch {
		case present:
			v, err := f.Type.Parse(raw)
			if err != nil {
				return nil, err
			}
			value = v
		case useDefaults || f.Type.Kind == KindNullable:
			value = f.Type.DefaultValue()
		default:
			return nil, abiErr("missing value for field `%s`", f.Name)
		}
		out = append(out, StructFieldValue{Name: f.Name, Value: value})
	}
	return out, nil
}

// parseMap walks the JSON object with a token decoder so that insertion
// order survives; the order is observable through hashing.
func (t Type) parseMap(data json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, abiErr("invalid map value: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, abiErr("invalid map value: %s", data)
	}

	var out MapValue
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, abiErr("invalid map key: %v", err)
		}
		keyStr, ok := keyTok.(string)
		if !ok {
			return nil, abiErr("invalid map key %v", keyTok)
		}
		key, err := t.Key.parseFromString(keyStr)
		if err != nil {
			return nil, err
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, abiErr("invalid map value: %v", err)
		}
		value, err := t.Value.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, MapEntry{Key: key, Value: value})
	}
	return out, nil
}

// parseFromString parses a value from its string form; used for map keys,
// which arrive as JSON object keys.
func (t Type) parseFromString(s string) (Value, error) {
	switch t.Kind {
	case KindString:
		return StringValue(s), nil
	case KindPrimitive:
		return t.Primitive.Parse(json.RawMessage(s))
	}
	return nil, abiErr("map keys must be strings or numbers, not %s", t)
}

// Parse checks a JSON value against the primitive type, range-checking
// sized integers.
func (p PrimitiveType) Parse(data json.RawMessage) (Value, error) {
	text := string(bytes.TrimSpace(data))
	switch p {
	case Boolean:
		switch text {
		case "true":
			return BooleanValue(true), nil
		case "false":
			return BooleanValue(false), nil
		}
		return nil, abiErr("invalid boolean value: %s", text)

	case UInt32:
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, rangeErr("u32", text, err)
		}
		return UInt32Value(uint32(n)), nil

	case UInt64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, rangeErr("u64", text, err)
		}
		return UInt64Value(n), nil

	case Int32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, rangeErr("i32", text, err)
		}
		return Int32Value(int32(n)), nil

	case Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, rangeErr("i64", text, err)
		}
		return Int64Value(n), nil

	case Float32:
		n, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, rangeErr("f32", text, err)
		}
		return Float32Value(float32(n)), nil

	case Float64:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, rangeErr("f64", text, err)
		}
		return Float64Value(n), nil
	}
	return nil, abiErr("unknown primitive type %q", p)
}

func rangeErr(typeName, text string, err error) error {
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return abiErr("value %s out of range for %s", text, typeName)
	}
	return abiErr("invalid %s value: %s", typeName, text)
}

func parseHash(data json.RawMessage) (Value, error) {
	var hash HashValue
	if isNullJSON(data) {
		return hash, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, abiErr("invalid hash value: %s", data)
	}
	s = strings.TrimPrefix(s, "0x")
	if len(s) > 64 {
		return nil, abiErr("invalid hash value: %s", s)
	}
	s += strings.Repeat("0", 64-len(s))
	for i := 0; i < 4; i++ {
		n, err := strconv.ParseUint(s[i*16:(i+1)*16], 16, 64)
		if err != nil {
			return nil, abiErr("invalid hash value: %v", err)
		}
		hash[3-i] = n
	}
	return hash, nil
}
