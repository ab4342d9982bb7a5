package compile

import "github.com/polylang/polylang/pkg/abi"

// Advice-tape readers. The host serializes `ctx`, `this` and the arguments
// onto the advice tape (see pkg/abi Value.Serialize); the code here reads
// them back in exactly that order.

// readAdvice reads one value of the given layout type from the advice tape
// into a fresh symbol.
func (c *Compiler) readAdvice(t abi.Type) (Symbol, error) {
	switch t.Kind {
	case abi.KindPrimitive, abi.KindHash:
		sym := c.mem().AllocateSymbol(t)
		for i := uint32(0); i < t.Width(); i++ {
			c.emit(advPush(1), memStore(sym.Addr+i))
		}
		return sym, nil

	case abi.KindString, abi.KindBytes, abi.KindContractRef:
		return c.readStringAdvice(t), nil

	case abi.KindArray:
		return c.readArrayAdvice(t)

	case abi.KindMap:
		return c.readMapAdvice(t)

	case abi.KindPublicKey:
		return c.readPublicKeyAdvice(), nil

	case abi.KindNullable:
		return c.readNullableAdvice(t)

	case abi.KindStruct:
		sym := c.mem().AllocateSymbol(t)
		if err := c.readStructAdvice(sym); err != nil {
			return Symbol{}, err
		}
		return sym, nil
	}
	return Symbol{}, c.codegenErr(nil, "cannot read %s from the advice tape", t)
}

// readStructAdvice fills an already-allocated struct symbol field by field.
func (c *Compiler) readStructAdvice(sym Symbol) error {
	for _, f := range sym.Type.Struct.Fields {
		field, err := c.structField(sym, f.Name)
		if err != nil {
			return err
		}
		value, err := c.readAdvice(f.Type)
		if err != nil {
			return err
		}
		c.copySymbol(field, value)
	}
	return nil
}

// readStringAdvice reads (length, bytes...) into heap storage.
func (c *Compiler) readStringAdvice(t abi.Type) Symbol {
	result := c.mem().AllocateSymbol(t)

	c.emit(advPush(1), dup(0))
	c.mem().Write(c.ins, stringLength(result).Addr, []ValueSource{FromStack()})
	// [str_len]

	dataPtr := c.dynamicAlloc(stringLength(result))
	c.mem().Write(c.ins, stringDataPtr(result).Addr, []ValueSource{FromMemory(dataPtr.Addr)})

	c.emit(memLoad(stringDataPtr(result).Addr))
	// [data_ptr, str_len]
	c.emit(op(OpSwap))
	// [str_len, data_ptr]
	c.emit(whileLoop(
		[]Instruction{
			dup(0),
			push(0),
			op(OpU32CheckedGT),
			// [str_len > 0, str_len, data_ptr]
		},
		[]Instruction{
			// [str_len, data_ptr]
			push(1),
			op(OpU32CheckedSub),
			op(OpSwap),
			// [data_ptr, str_len - 1]
			advPush(1),
			// [byte, data_ptr, str_len - 1]
			dup(1),
			// [data_ptr, byte, data_ptr, str_len - 1]
			memStoreTop(),
			// [data_ptr, str_len - 1]
			push(1),
			op(OpU32CheckedAdd),
			op(OpSwap),
			// [str_len - 1, data_ptr + 1]
		},
	))
	// [0, data_ptr]
	c.emit(op(OpDrop), op(OpDrop))
	return result
}

// readArrayAdvice reads (length, elements...) into heap storage, with the
// capacity set to twice the length so pushes have room to grow.
func (c *Compiler) readArrayAdvice(t abi.Type) (Symbol, error) {
	elemType := *t.Inner
	arr := c.mem().AllocateSymbol(t)
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	c.emit(advPush(1))
	c.mem().Write(c.ins, arrayLength(arr).Addr, []ValueSource{FromStack()})

	c.emit(memLoad(arrayLength(arr).Addr), push(2), op(OpU32CheckedMul))
	c.mem().Write(c.ins, arrayCapacity(arr).Addr, []ValueSource{FromStack()})

	allocSize := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	c.emit(memLoad(arrayCapacity(arr).Addr), push(elemType.Width()), op(OpU32CheckedMul))
	c.writeMem(allocSize)
	dataPtr := c.dynamicAlloc(allocSize)
	c.mem().Write(c.ins, arrayDataPtr(arr).Addr, []ValueSource{FromMemory(dataPtr.Addr)})

	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})
	body, err := c.collect(func(bc *Compiler) error {
		elem, err := bc.readAdvice(elemType)
		if err != nil {
			return err
		}
		bc.arraySet(arr, index, elem)
		bc.emit(
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		)
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}
	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			memLoad(arrayLength(arr).Addr),
			op(OpU32CheckedLT),
		},
		body,
	))
	return arr, nil
}

// readMapAdvice reads the keys array then the values array.
func (c *Compiler) readMapAdvice(t abi.Type) (Symbol, error) {
	result := c.mem().AllocateSymbol(t)

	keys, err := c.readArrayAdvice(abi.NewArray(*t.Key))
	if err != nil {
		return Symbol{}, err
	}
	values, err := c.readArrayAdvice(abi.NewArray(*t.Value))
	if err != nil {
		return Symbol{}, err
	}

	c.copySymbol(mapKeysArr(result), keys)
	c.copySymbol(mapValuesArr(result), values)
	return result, nil
}

// readPublicKeyAdvice reads the four parameter words and then the 64
// coordinate bytes into heap storage.
func (c *Compiler) readPublicKeyAdvice() Symbol {
	result := c.mem().AllocateSymbol(abi.NewPublicKey())
	for i := uint32(0); i < 4; i++ {
		c.emit(advPush(1), memStore(keyParam(result, i).Addr))
	}

	size := c.newU32(64)
	extra := c.dynamicAlloc(size)
	c.mem().Write(c.ins, keyExtraPtr(result).Addr, []ValueSource{FromMemory(extra.Addr)})

	c.emit(memLoad(keyExtraPtr(result).Addr))
	// [extra_ptr]
	for i := 0; i < 64; i++ {
		c.emit(
			advPush(1),
			// [byte, extra_ptr]
			dup(1),
			// [extra_ptr, byte, extra_ptr]
			memStoreTop(),
			// [extra_ptr]
			push(1),
			op(OpU32CheckedAdd),
			// [extra_ptr + 1]
		)
	}
	c.emit(op(OpDrop))
	return result
}

// readNullableAdvice reads the nullability flag and, when set, the value.
func (c *Compiler) readNullableAdvice(t abi.Type) (Symbol, error) {
	result := c.mem().AllocateSymbol(t)

	c.emit(advPush(1), dup(0))
	c.mem().Write(c.ins, nullableIsNotNull(result).Addr, []ValueSource{FromStack()})
	// [is_not_null]

	readValue, err := c.collect(func(rc *Compiler) error {
		value, err := rc.readAdvice(*t.Inner)
		if err != nil {
			return err
		}
		rc.copySymbol(nullableValue(result), value)
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}
	c.emit(ifTrue(nil, readValue, nil))
	return result, nil
}
