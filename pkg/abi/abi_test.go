package abi

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeWidths(t *testing.T) {
	tests := []struct {
		typ   Type
		width uint32
	}{
		{NewPrimitive(Boolean), 1},
		{NewPrimitive(UInt32), 1},
		{NewPrimitive(UInt64), 2},
		{NewPrimitive(Int64), 2},
		{NewPrimitive(Float64), 2},
		{NewString(), 2},
		{NewBytes(), 2},
		{NewContractRef("Account"), 2},
		{NewArray(NewPrimitive(UInt32)), 3},
		{NewMap(NewString(), NewPrimitive(UInt32)), 6},
		{NewHash(), 4},
		{NewPublicKey(), 5},
		{NewNullable(NewPrimitive(UInt64)), 3},
		{NewStruct(Struct{Name: "S", Fields: []StructField{
			{Name: "a", Type: NewPrimitive(UInt32)},
			{Name: "b", Type: NewString()},
		}}), 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.width, tt.typ.Width(), "width of %s", tt.typ)
	}
}

func TestStructFieldOffsets(t *testing.T) {
	s := Struct{Name: "Account", Fields: []StructField{
		{Name: "id", Type: NewString()},
		{Name: "balance", Type: NewPrimitive(Float32)},
		{Name: "owner", Type: NewPublicKey()},
	}}

	typ, offset, ok := s.Field("balance")
	require.True(t, ok)
	assert.Equal(t, uint32(2), offset)
	assert.True(t, typ.IsPrimitive(Float32))

	_, offset, ok = s.Field("owner")
	require.True(t, ok)
	assert.Equal(t, uint32(3), offset)

	_, _, ok = s.Field("missing")
	assert.False(t, ok)
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  []uint64
	}{
		{"bool", BooleanValue(true), []uint64{1}},
		{"u32", UInt32Value(7), []uint64{7}},
		{"u64", UInt64Value(0x1_0000_0002), []uint64{1, 2}},
		{"i32", Int32Value(-1), []uint64{0xffffffff}},
		{"i64", Int64Value(-1), []uint64{0xffffffff, 0xffffffff}},
		{"string", StringValue("hi"), []uint64{2, 'h', 'i'}},
		{"array", ArrayValue{UInt32Value(1), UInt32Value(2)}, []uint64{2, 1, 2}},
		{"map", MapValue{
			{Key: StringValue("a"), Value: UInt32Value(1)},
		}, []uint64{1, 1, 'a', 1, 1}},
		{"nullable null", NullableValue{}, []uint64{0}},
		{"nullable set", NullableValue{Inner: UInt32Value(9)}, []uint64{1, 9}},
		{"ref", ContractRefValue("usa"), []uint64{3, 'u', 's', 'a'}},
		{"struct", StructValue{
			{Name: "a", Value: UInt32Value(4)},
			{Name: "b", Value: BooleanValue(true)},
		}, []uint64{4, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Serialize())
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		json string
	}{
		{"u32", NewPrimitive(UInt32), `42`},
		{"i32 negative", NewPrimitive(Int32), `-42`},
		{"u64", NewPrimitive(UInt64), `18446744073709551615`},
		{"boolean", NewPrimitive(Boolean), `true`},
		{"string", NewString(), `"hello"`},
		{"array", NewArray(NewPrimitive(Int32)), `[1,2,3]`},
		{"nested array", NewArray(NewArray(NewPrimitive(UInt32))), `[[1],[2,3]]`},
		{"map", NewMap(NewString(), NewPrimitive(UInt32)), `{"b":2,"a":1}`},
		{"number map", NewMap(NewPrimitive(UInt32), NewString()), `{"1":"one","2":"two"}`},
		{"ref", NewContractRef("Country"), `{"id":"usa"}`},
		{"nullable null", NewNullable(NewString()), `null`},
		{"nullable set", NewNullable(NewString()), `"x"`},
		{"struct", NewStruct(Struct{Name: "S", Fields: []StructField{
			{Name: "id", Type: NewString()},
			{Name: "n", Type: NewPrimitive(Float32)},
		}}), `{"id":"a","n":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.typ.Parse(json.RawMessage(tt.json))
			require.NoError(t, err)
			out, err := v.JSON()
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(out))
		})
	}
}

func TestParse_MapKeepsInsertionOrder(t *testing.T) {
	typ := NewMap(NewString(), NewPrimitive(UInt32))
	v, err := typ.Parse(json.RawMessage(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)

	m := v.(MapValue)
	require.Len(t, m, 3)
	assert.Equal(t, StringValue("z"), m[0].Key)
	assert.Equal(t, StringValue("a"), m[1].Key)
	assert.Equal(t, StringValue("m"), m[2].Key)

	out, err := v.JSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(out))
}

func TestParse_OutOfRange(t *testing.T) {
	_, err := NewPrimitive(UInt32).Parse(json.RawMessage(`4294967296`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = NewPrimitive(Int32).Parse(json.RawMessage(`-2147483649`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = NewPrimitive(UInt32).Parse(json.RawMessage(`-1`))
	require.Error(t, err)
}

func TestParse_TypeMismatch(t *testing.T) {
	_, err := NewString().Parse(json.RawMessage(`42`))
	require.Error(t, err)

	_, err = NewPrimitive(Boolean).Parse(json.RawMessage(`"yes"`))
	require.Error(t, err)

	_, err = NewContractRef("C").Parse(json.RawMessage(`{"name":"x"}`))
	require.Error(t, err)
}

func TestParseThis_Defaults(t *testing.T) {
	typ := NewStruct(Struct{Name: "Account", Fields: []StructField{
		{Name: "id", Type: NewString()},
		{Name: "balance", Type: NewPrimitive(Float32)},
		{Name: "name", Type: NewNullable(NewString())},
	}})

	// Empty object: all fields default.
	v, err := ParseThis(typ, json.RawMessage(`{}`))
	require.NoError(t, err)
	s := v.(StructValue)
	id, _ := s.Get("id")
	assert.Equal(t, StringValue(""), id)

	// Non-empty object: required fields must be present...
	_, err = ParseThis(typ, json.RawMessage(`{"id":"a"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing value for field `balance`")

	// ...but nullable fields may be absent.
	v, err = ParseThis(typ, json.RawMessage(`{"id":"a","balance":1}`))
	require.NoError(t, err)
	s = v.(StructValue)
	name, _ := s.Get("name")
	assert.Equal(t, NullableValue{}, name)
}

func TestRead_InverseOfLayout(t *testing.T) {
	// Lay out a struct {n: u32, s: string} by hand and read it back.
	mem := map[uint64][4]uint64{
		10:  {7},   // n
		11:  {2},   // s length
		12:  {100}, // s data ptr
		100: {'h'}, 101: {'i'},
	}
	read := func(addr uint64) ([4]uint64, bool) {
		w, ok := mem[addr]
		return w, ok
	}

	typ := NewStruct(Struct{Name: "S", Fields: []StructField{
		{Name: "n", Type: NewPrimitive(UInt32)},
		{Name: "s", Type: NewString()},
	}})
	v, err := typ.Read(read, 10)
	require.NoError(t, err)

	s := v.(StructValue)
	n, _ := s.Get("n")
	assert.Equal(t, UInt32Value(7), n)
	str, _ := s.Get("s")
	assert.Equal(t, StringValue("hi"), str)
}

func TestRead_ArrayLayout(t *testing.T) {
	// (length, capacity, pointer) then elements.
	mem := map[uint64][4]uint64{
		5: {2}, 6: {4}, 7: {50},
		50: {11}, 51: {22},
	}
	read := func(addr uint64) ([4]uint64, bool) {
		w, ok := mem[addr]
		return w, ok
	}
	v, err := NewArray(NewPrimitive(UInt32)).Read(read, 5)
	require.NoError(t, err)
	assert.Equal(t, ArrayValue{UInt32Value(11), UInt32Value(22)}, v)
}

// The secp256k1 generator point, a convenient known-valid key.
const (
	genX = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	genY = "483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
)

func generatorKey(t *testing.T) Key {
	t.Helper()
	x, err := hex.DecodeString(genX)
	require.NoError(t, err)
	y, err := hex.DecodeString(genY)
	require.NoError(t, err)
	key := Key{Kty: KeyKtyEC, Crv: KeyCrvSecp256k1, Alg: KeyAlgES256K, Use: KeyUseSig}
	copy(key.X[:], x)
	copy(key.Y[:], y)
	return key
}

func TestKey_Validate(t *testing.T) {
	key := generatorKey(t)
	require.NoError(t, key.Validate())

	bad := key
	bad.Y[31] ^= 1
	assert.Error(t, bad.Validate())

	wrongCrv := key
	wrongCrv.Crv = "P-256"
	assert.Error(t, wrongCrv.Validate())
}

func TestKey_JSONRoundTrip(t *testing.T) {
	key := generatorKey(t)
	data, err := json.Marshal(key)
	require.NoError(t, err)

	var decoded Key
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, key, decoded)

	parsed, err := NewPublicKey().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestKey_Serialize(t *testing.T) {
	key := generatorKey(t)
	words := key.Serialize()
	require.Len(t, words, 4+64)
	assert.Equal(t, uint64(1), words[0])
	assert.Equal(t, uint64(key.X[0]), words[4])
	assert.Equal(t, uint64(key.Y[31]), words[67])
}

func TestKey_ToHex(t *testing.T) {
	key := generatorKey(t)
	assert.Equal(t, "0x04"+genX+genY, key.ToHex())
}

func TestAbi_JSONRoundTrip(t *testing.T) {
	thisAddr := uint32(8)
	thisType := NewStruct(Struct{Name: "Account", Fields: []StructField{
		{Name: "id", Type: NewString()},
		{Name: "balance", Type: NewPrimitive(Float32)},
	}})
	resultType := NewPrimitive(Int32)
	a := Abi{
		ThisAddr:   &thisAddr,
		ThisType:   &thisType,
		ParamTypes: []Type{NewPrimitive(Int32), NewNullable(NewString())},
		ResultType: &resultType,
		ReadAuth:   true,
		StdVersion: StdVersionCurrent,
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var decoded Abi
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, a, decoded)
	assert.True(t, decoded.ThisType.Equal(thisType))
}
