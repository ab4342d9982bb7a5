package rescue

import (
	"fmt"

	"github.com/polylang/polylang/pkg/abi"
)

// The commitment protocol: how structured values fold into a digest.
//
//   - Scalars, strings, bytes and contract references fold their serialized
//     words one at a time (strings fold length first, then packed bytes;
//     references fold only the referenced id).
//   - Arrays fold their length, then merge each element's digest in order.
//   - Maps merge the digest of their key array with the digest of their
//     value array, so size and insertion order are both committed.
//   - Records merge each field digest in declared order.
//   - Public keys fold their parameter words, then the two coordinates in
//     order.
//   - A null value contributes the zero digest.

// HashWords folds a flat word sequence into a digest.
func HashWords(words []uint64) Digest {
	var h Digest
	for _, w := range words {
		h = Merge(h, Digest{w})
	}
	return h
}

// HashValue computes the commitment digest of a marshalled value.
func HashValue(v abi.Value) (Digest, error) {
	switch value := v.(type) {
	case abi.NullableValue:
		if value.Inner == nil {
			return Digest{}, nil
		}
		return HashValue(value.Inner)

	case abi.ArrayValue:
		h := HashWords([]uint64{uint64(len(value))})
		for _, elem := range value {
			eh, err := HashValue(elem)
			if err != nil {
				return Digest{}, err
			}
			h = Merge(h, eh)
		}
		return h, nil

	case abi.MapValue:
		keys := make(abi.ArrayValue, 0, len(value))
		values := make(abi.ArrayValue, 0, len(value))
		for _, e := range value {
			keys = append(keys, e.Key)
			values = append(values, e.Value)
		}
		kh, err := HashValue(keys)
		if err != nil {
			return Digest{}, err
		}
		vh, err := HashValue(values)
		if err != nil {
			return Digest{}, err
		}
		return Merge(kh, vh), nil

	case abi.StructValue:
		var h Digest
		for _, f := range value {
			fh, err := HashValue(f.Value)
			if err != nil {
				return Digest{}, err
			}
			h = Merge(h, fh)
		}
		return h, nil

	case abi.BooleanValue, abi.UInt32Value, abi.UInt64Value, abi.Int32Value,
		abi.Int64Value, abi.Float32Value, abi.Float64Value, abi.HashValue,
		abi.StringValue, abi.BytesValue, abi.ContractRefValue, abi.Key:
		return HashWords(v.Serialize()), nil
	}
	return Digest{}, fmt.Errorf("cannot hash value of type %T", v)
}
