package rescue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/abi"
)

func TestMerge_Deterministic(t *testing.T) {
	a := Digest{1, 2, 3, 4}
	b := Digest{5, 6, 7, 8}

	first := Merge(a, b)
	second := Merge(a, b)
	assert.Equal(t, first, second)
	assert.NotEqual(t, Digest{}, first)
}

func TestMerge_OrderMatters(t *testing.T) {
	a := Digest{1}
	b := Digest{2}
	assert.NotEqual(t, Merge(a, b), Merge(b, a))
}

func TestHashWords_LengthPrefixMatters(t *testing.T) {
	// "a" and "a\x00" serialize to different word sequences and must have
	// different digests.
	assert.NotEqual(t,
		HashWords(abi.StringValue("a").Serialize()),
		HashWords(abi.StringValue("a\x00").Serialize()))
}

func TestHashValue_Deterministic(t *testing.T) {
	v := abi.StructValue{
		{Name: "id", Value: abi.StringValue("alice")},
		{Name: "balance", Value: abi.Float32Value(100)},
	}
	h1, err := HashValue(v)
	require.NoError(t, err)
	h2, err := HashValue(v)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashValue_FieldOrderCommitted(t *testing.T) {
	a := abi.StructValue{
		{Name: "x", Value: abi.UInt32Value(1)},
		{Name: "y", Value: abi.UInt32Value(2)},
	}
	b := abi.StructValue{
		{Name: "x", Value: abi.UInt32Value(2)},
		{Name: "y", Value: abi.UInt32Value(1)},
	}
	ha, err := HashValue(a)
	require.NoError(t, err)
	hb, err := HashValue(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHashValue_AddingFieldChangesDigest(t *testing.T) {
	base := abi.StructValue{
		{Name: "id", Value: abi.StringValue("a")},
	}
	extended := abi.StructValue{
		{Name: "id", Value: abi.StringValue("a")},
		{Name: "unused", Value: abi.UInt32Value(0)},
	}
	hBase, err := HashValue(base)
	require.NoError(t, err)
	hExt, err := HashValue(extended)
	require.NoError(t, err)
	assert.NotEqual(t, hBase, hExt)
}

func TestHashValue_MapInsertionOrderCommitted(t *testing.T) {
	ab := abi.MapValue{
		{Key: abi.StringValue("a"), Value: abi.UInt32Value(1)},
		{Key: abi.StringValue("b"), Value: abi.UInt32Value(2)},
	}
	ba := abi.MapValue{
		{Key: abi.StringValue("b"), Value: abi.UInt32Value(2)},
		{Key: abi.StringValue("a"), Value: abi.UInt32Value(1)},
	}
	hab, err := HashValue(ab)
	require.NoError(t, err)
	hba, err := HashValue(ba)
	require.NoError(t, err)
	assert.NotEqual(t, hab, hba)
}

func TestHashValue_NullIsZeroDigest(t *testing.T) {
	h, err := HashValue(abi.NullableValue{})
	require.NoError(t, err)
	assert.Equal(t, Digest{}, h)

	h, err = HashValue(abi.NullableValue{Inner: abi.UInt32Value(1)})
	require.NoError(t, err)
	assert.NotEqual(t, Digest{}, h)
}

func TestHashValue_RefHashesOnlyID(t *testing.T) {
	ref := abi.ContractRefValue("usa")
	str := abi.StringValue("usa")

	hRef, err := HashValue(ref)
	require.NoError(t, err)
	hStr, err := HashValue(str)
	require.NoError(t, err)
	// A reference commits exactly to its id string.
	assert.Equal(t, hStr, hRef)
}

func TestHashValue_EmptyArrayVsNestedEmpty(t *testing.T) {
	empty, err := HashValue(abi.ArrayValue{})
	require.NoError(t, err)
	nested, err := HashValue(abi.ArrayValue{abi.ArrayValue{}})
	require.NoError(t, err)
	assert.NotEqual(t, empty, nested)
}
