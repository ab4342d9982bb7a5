package abi

import "unicode/utf8"

// MemoryReader reads one word of the VM's linear memory. The second return
// value is false when the address was never written.
type MemoryReader func(addr uint64) ([4]uint64, bool)

func readScalar(read MemoryReader, addr uint64, what string) (uint64, error) {
	word, ok := read(addr)
	if !ok {
		return 0, abiErr("invalid address %d for %s", addr, what)
	}
	return word[0], nil
}

// ReadFromWords decodes a value whose header words live on the stack
// rather than in memory; pointers inside the header still resolve through
// the memory reader.
func (t Type) ReadFromWords(words []uint64, read MemoryReader) (Value, error) {
	if uint32(len(words)) < t.Width() {
		return nil, abiErr("%s needs %d words, found %d", t, t.Width(), len(words))
	}
	// Lay the header out at a virtual address past all real memory.
	const virtualBase = 1 << 40
	combined := func(addr uint64) ([4]uint64, bool) {
		if addr >= virtualBase {
			i := addr - virtualBase
			if i >= uint64(len(words)) {
				return [4]uint64{}, false
			}
			return [4]uint64{words[i]}, true
		}
		return read(addr)
	}
	return t.Read(combined, virtualBase)
}

// Read decodes a value of this layout type from the VM's linear memory,
// starting at the given word address. It is the inverse of the layout the
// code generator materializes.
func (t Type) Read(read MemoryReader, addr uint64) (Value, error) {
	switch t.Kind {
	case KindNullable:
		isNotNull, err := readScalar(read, addr, "nullable flag")
		if err != nil {
			return nil, err
		}
		if isNotNull == 0 {
			return NullableValue{}, nil
		}
		inner, err := t.Inner.Read(read, addr+1)
		if err != nil {
			return nil, err
		}
		return NullableValue{Inner: inner}, nil

	case KindPrimitive:
		return t.Primitive.Read(read, addr)

	case KindString, KindBytes, KindContractRef:
		length, err := readScalar(read, addr, "length")
		if err != nil {
			return nil, err
		}
		dataPtr, err := readScalar(read, addr+1, "data pointer")
		if err != nil {
			return nil, err
		}
		data := make([]byte, 0, length)
		for i := uint64(0); i < length; i++ {
			b, err := readScalar(read, dataPtr+i, "byte")
			if err != nil {
				return nil, err
			}
			data = append(data, byte(b))
		}
		switch t.Kind {
		case KindString:
			if !utf8.Valid(data) {
				return nil, abiErr("string at %d is not valid UTF-8", addr)
			}
			return StringValue(data), nil
		case KindBytes:
			return BytesValue(data), nil
		default:
			return ContractRefValue(data), nil
		}

	case KindArray:
		return t.readArray(read, addr)

	case KindMap:
		keys, err := NewArray(*t.Key).readArray(read, addr)
		if err != nil {
			return nil, err
		}
		values, err := NewArray(*t.Value).readArray(read, addr+ArrayWidth)
		if err != nil {
			return nil, err
		}
		keyList := keys.(ArrayValue)
		valueList := values.(ArrayValue)
		if len(keyList) != len(valueList) {
			return nil, abiErr("map at %d has %d keys but %d values", addr, len(keyList), len(valueList))
		}
		out := make(MapValue, 0, len(keyList))
		for i := range keyList {
			out = append(out, MapEntry{Key: keyList[i], Value: valueList[i]})
		}
		return out, nil

	case KindHash:
		var hash HashValue
		for i := uint64(0); i < HashWidth; i++ {
			w, err := readScalar(read, addr+i, "hash")
			if err != nil {
				return nil, err
			}
			hash[i] = w
		}
		return hash, nil

	case KindPublicKey:
		return readKey(read, addr)

	case KindStruct:
		out := make(StructValue, 0, len(t.Struct.Fields))
		fieldAddr := addr
		for _, f := range t.Struct.Fields {
			v, err := f.Type.Read(read, fieldAddr)
			if err != nil {
				return nil, err
			}
			out = append(out, StructFieldValue{Name: f.Name, Value: v})
			fieldAddr += uint64(f.Type.Width())
		}
		return out, nil
	}
	return nil, abiErr("cannot read value of unknown type %q", t.Kind)
}

func (t Type) readArray(read MemoryReader, addr uint64) (Value, error) {
	length, err := readScalar(read, addr, "array length")
	if err != nil {
		return nil, err
	}
	dataPtr, err := readScalar(read, addr+2, "array data pointer")
	if err != nil {
		return nil, err
	}
	elemWidth := uint64(t.Inner.Width())
	out := make(ArrayValue, 0, length)
	for i := uint64(0); i < length; i++ {
		v, err := t.Inner.Read(read, dataPtr+i*elemWidth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Read decodes a primitive from memory.
func (p PrimitiveType) Read(read MemoryReader, addr uint64) (Value, error) {
	switch p {
	case Boolean:
		b, err := readScalar(read, addr, "boolean")
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, abiErr("invalid boolean %d at address %d", b, addr)
		}
		return BooleanValue(b == 1), nil

	case UInt32:
		x, err := readScalar(read, addr, "u32")
		if err != nil {
			return nil, err
		}
		return UInt32Value(uint32(x)), nil

	case Int32:
		x, err := readScalar(read, addr, "i32")
		if err != nil {
			return nil, err
		}
		return Int32Value(int32(uint32(x))), nil

	case UInt64, Int64, Float64:
		high, err := readScalar(read, addr, string(p))
		if err != nil {
			return nil, err
		}
		low, err := readScalar(read, addr+1, string(p))
		if err != nil {
			return nil, err
		}
		bits := high<<32 | low&0xffffffff
		switch p {
		case UInt64:
			return UInt64Value(bits), nil
		case Int64:
			return Int64Value(int64(bits)), nil
		default:
			return Float64Value(float64frombits(bits)), nil
		}

	case Float32:
		bits, err := readScalar(read, addr, "f32")
		if err != nil {
			return nil, err
		}
		return Float32Value(float32frombits(uint32(bits))), nil
	}
	return nil, abiErr("unknown primitive type %q", p)
}
