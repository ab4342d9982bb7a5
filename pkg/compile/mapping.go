package compile

import "github.com/polylang/polylang/pkg/abi"

// Map layout: a keys array followed by a values array, kept index-aligned.
// Lookup is a linear scan; insertion order is observable.

func mapKeysArr(m Symbol) Symbol {
	return Symbol{Type: abi.NewArray(*m.Type.Key), Addr: m.Addr}
}

func mapValuesArr(m Symbol) Symbol {
	return Symbol{Type: abi.NewArray(*m.Type.Value), Addr: m.Addr + abi.ArrayWidth}
}

// mapGet scans for a key. It returns the value (meaningful only when found
// is true), the runtime address of the value slot, and the found flag.
func (c *Compiler) mapGet(m, key Symbol) (value, valuePtr, found Symbol, err error) {
	keys := mapKeysArr(m)
	values := mapValuesArr(m)
	valueType := *m.Type.Value

	value = c.mem().AllocateSymbol(valueType)
	valuePtr = c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	found = c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	c.mem().Write(c.ins, found.Addr, []ValueSource{Immediate(0)})
	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})

	body, err := c.collect(func(bc *Compiler) error {
		candidate := bc.arrayGet(keys, index)
		eq, err := bc.compileEq(candidate, key)
		if err != nil {
			return err
		}

		hit, err := bc.collect(func(hc *Compiler) error {
			hc.mem().Write(hc.ins, found.Addr, []ValueSource{Immediate(1)})

			// value_ptr = values.data + index * value_width
			hc.readMem(arrayDataPtr(values))
			hc.readMem(index)
			hc.emit(push(valueType.Width()), op(OpU32CheckedMul), op(OpU32CheckedAdd))
			hc.writeMem(valuePtr)

			// copy the value out through the pointer
			for i := uint32(0); i < valueType.Width(); i++ {
				hc.emit(
					memLoad(valuePtr.Addr),
					push(i),
					op(OpU32CheckedAdd),
					memLoadTop(),
					memStore(value.Addr+i),
				)
			}
			return nil
		})
		if err != nil {
			return err
		}
		bc.emit(ifTrue([]Instruction{memLoad(eq.Addr)}, hit, nil))

		bc.emit(
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		)
		return nil
	})
	if err != nil {
		return Symbol{}, Symbol{}, Symbol{}, err
	}

	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			memLoad(arrayLength(keys).Addr),
			op(OpU32CheckedLT),
			memLoad(found.Addr),
			op(OpNot),
			op(OpAnd),
		},
		body,
	))
	return value, valuePtr, found, nil
}

// mapAssign writes m[key] = value, updating in place when the key exists
// and appending a new entry otherwise.
func (c *Compiler) mapAssign(m, key, value Symbol) error {
	_, valuePtr, found, err := c.mapGet(m, key)
	if err != nil {
		return err
	}

	update, err := c.collect(func(uc *Compiler) error {
		for i := uint32(0); i < value.Width(); i++ {
			uc.emit(
				memLoad(value.Addr+i),
				memLoad(valuePtr.Addr),
				push(i),
				op(OpU32CheckedAdd),
				memStoreTop(),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}

	insert, err := c.collect(func(ic *Compiler) error {
		if _, err := ic.arrayPush(mapKeysArr(m), key); err != nil {
			return err
		}
		_, err := ic.arrayPush(mapValuesArr(m), value)
		return err
	})
	if err != nil {
		return err
	}

	c.emit(ifTrue([]Instruction{memLoad(found.Addr)}, update, insert))
	return nil
}

// hashMap merges the key-array digest with the value-array digest.
func (c *Compiler) hashMap(m Symbol) (Symbol, error) {
	keysHash, err := c.hashArray(mapKeysArr(m))
	if err != nil {
		return Symbol{}, err
	}
	valuesHash, err := c.hashArray(mapValuesArr(m))
	if err != nil {
		return Symbol{}, err
	}

	result := c.mem().AllocateSymbol(abi.NewHash())
	c.readMem(keysHash)
	c.readMem(valuesHash)
	c.emit(op(OpHMerge))
	c.writeMem(result)
	return result, nil
}

// mapLength reads the number of entries.
func (c *Compiler) mapLength(m Symbol) Symbol {
	return arrayLength(mapKeysArr(m))
}
