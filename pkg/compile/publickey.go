package compile

import "github.com/polylang/polylang/pkg/abi"

// Public-key layout: (kty, crv, alg, use, extra_ptr) with extra_ptr
// pointing at the 64 coordinate bytes.

func keyParam(pk Symbol, i uint32) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: pk.Addr + i}
}

func keyExtraPtr(pk Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: pk.Addr + 4}
}

// publicKeyEq compares the four parameter words, then the 64 coordinate
// bytes.
func (c *Compiler) publicKeyEq(a, b Symbol) (Symbol, error) {
	result := c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	c.emit(push(1))
	for i := uint32(0); i < 4; i++ {
		c.readMem(keyParam(a, i))
		c.readMem(keyParam(b, i))
		c.emit(op(OpEq), op(OpAnd))
	}
	c.writeMem(result)

	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})
	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			push(64),
			op(OpU32CheckedLT),
			memLoad(result.Addr),
			op(OpAnd),
		},
		[]Instruction{
			memLoad(keyExtraPtr(a).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			memLoad(keyExtraPtr(b).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			op(OpEq),
			memStore(result.Addr),
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		},
	))
	return result, nil
}

// hashPublicKey folds the parameter words and then both coordinates in
// order.
func (c *Compiler) hashPublicKey(pk Symbol) Symbol {
	result := c.mem().AllocateSymbol(abi.NewHash())
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	for i := uint32(0); i < 4; i++ {
		c.mergeWordInto(result, FromMemory(keyParam(pk, i).Addr))
	}

	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})
	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			push(64),
			op(OpU32CheckedLT),
		},
		[]Instruction{
			memLoad(result.Addr + 3),
			memLoad(result.Addr + 2),
			memLoad(result.Addr + 1),
			memLoad(result.Addr),
			push(0),
			push(0),
			push(0),
			memLoad(keyExtraPtr(pk).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			op(OpHMerge),
			memStore(result.Addr),
			memStore(result.Addr + 1),
			memStore(result.Addr + 2),
			memStore(result.Addr + 3),
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		},
	))
	return result
}

// publicKeyToHex renders the key as 0x04 || X || Y in lowercase hex.
func (c *Compiler) publicKeyToHex(pk Symbol) (Symbol, error) {
	// "0x04" plus two hex characters per coordinate byte.
	const hexLen = 4 + 64*2
	result := c.newString("")
	c.mem().Write(c.ins, stringLength(result).Addr, []ValueSource{Immediate(hexLen)})

	size := c.newU32(hexLen)
	data := c.dynamicAlloc(size)
	c.mem().Write(c.ins, stringDataPtr(result).Addr, []ValueSource{FromMemory(data.Addr)})

	// Write the "0x04" prefix.
	prefix := []uint32{'0', 'x', '0', '4'}
	for i, ch := range prefix {
		c.emit(push(ch), memLoad(data.Addr), push(uint32(i)), op(OpU32CheckedAdd), memStoreTop())
	}

	hexDigit := c.usePrelude("hex_digit")
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})

	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			push(64),
			op(OpU32CheckedLT),
		},
		[]Instruction{
			// b = extra[index]
			memLoad(keyExtraPtr(pk).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			// [b]
			dup(0),
			Instruction{Op: OpU32CheckedSHR, Imm: 4, HasImm: true},
			exec(hexDigit),
			// [hi_char, b]
			memLoad(data.Addr),
			push(4),
			op(OpU32CheckedAdd),
			memLoad(index.Addr),
			push(2),
			op(OpU32CheckedMul),
			op(OpU32CheckedAdd),
			memStoreTop(),
			// [b]
			push(15),
			op(OpU32CheckedAnd),
			exec(hexDigit),
			memLoad(data.Addr),
			push(5),
			op(OpU32CheckedAdd),
			memLoad(index.Addr),
			push(2),
			op(OpU32CheckedMul),
			op(OpU32CheckedAdd),
			memStoreTop(),
			// index += 1
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		},
	))
	return result, nil
}
