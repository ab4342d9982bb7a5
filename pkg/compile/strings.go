package compile

import "github.com/polylang/polylang/pkg/abi"

// String layout: (byte_length, pointer), bytes packed one per word.

func stringLength(s Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: s.Addr}
}

func stringDataPtr(s Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: s.Addr + 1}
}

// newString materializes a string literal: the backing bytes live in the
// static region.
func (c *Compiler) newString(value string) Symbol {
	sym := c.mem().AllocateSymbol(abi.NewString())
	if value == "" {
		return sym
	}
	dataAddr := c.mem().Allocate(uint32(len(value)))
	c.mem().Write(c.ins, sym.Addr, []ValueSource{
		Immediate(uint32(len(value))),
		Immediate(dataAddr),
	})
	bytes := make([]ValueSource, len(value))
	for i := 0; i < len(value); i++ {
		bytes[i] = Immediate(uint32(value[i]))
	}
	c.mem().Write(c.ins, dataAddr, bytes)
	return sym
}

// copyStrStack copies len words from src_ptr to dest_ptr.
// Expects the stack to be: [len, src_ptr, dest_ptr].
func (c *Compiler) copyStrStack() {
	c.emit(whileLoop(
		[]Instruction{
			// [len, src_ptr, dest_ptr]
			dup(0),
			push(0),
			op(OpU32CheckedGT),
			// [len > 0, len, src_ptr, dest_ptr]
		},
		[]Instruction{
			// [len, src_ptr, dest_ptr]
			push(1),
			op(OpU32CheckedSub),
			// [len - 1, src_ptr, dest_ptr]
			movDown(2),
			// [src_ptr, dest_ptr, len - 1]
			dup(0),
			memLoadTop(),
			// [*src_ptr, src_ptr, dest_ptr, len - 1]
			dup(2),
			// [dest_ptr, *src_ptr, src_ptr, dest_ptr, len - 1]
			memStoreTop(),
			// [src_ptr, dest_ptr, len - 1]
			push(1),
			op(OpU32CheckedAdd),
			// [src_ptr + 1, dest_ptr, len - 1]
			movDown(2),
			// [dest_ptr, len - 1, src_ptr + 1]
			push(1),
			op(OpU32CheckedAdd),
			// [dest_ptr + 1, len - 1, src_ptr + 1]
			movDown(2),
			// [len - 1, src_ptr + 1, dest_ptr + 1]
		},
	))
	// [0, src_ptr, dest_ptr]
	c.emit(op(OpDrop), op(OpDrop), op(OpDrop))
}

// stringConcat allocates a new string holding a followed by b.
func (c *Compiler) stringConcat(a, b Symbol) (Symbol, error) {
	result := c.newString("")
	resultLen := stringLength(result)
	resultData := stringDataPtr(result)

	// result.length = a.length + b.length
	c.readMem(stringLength(a))
	c.readMem(stringLength(b))
	c.emit(op(OpU32CheckedAdd))
	c.writeMem(resultLen)

	allocated := c.dynamicAlloc(resultLen)
	c.mem().Write(c.ins, resultData.Addr, []ValueSource{FromMemory(allocated.Addr)})

	// Copy a, then b after it.
	c.readMem(resultData)
	c.readMem(stringDataPtr(a))
	c.readMem(stringLength(a))
	// [a_len, a_data, result_data]
	c.copyStrStack()

	c.readMem(resultData)
	c.readMem(stringLength(a))
	c.emit(op(OpU32CheckedAdd))
	// [result_data + a_len]
	c.readMem(stringDataPtr(b))
	c.readMem(stringLength(b))
	// [b_len, b_data, result_data + a_len]
	c.copyStrStack()

	return result, nil
}

// stringEq compares two strings (or contract references, which share the
// layout) byte by byte.
func (c *Compiler) stringEq(a, b Symbol) (Symbol, error) {
	result := c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	// result = a.length == b.length, index = 0
	c.readMem(stringLength(a))
	c.readMem(stringLength(b))
	c.emit(op(OpU32CheckedEq))
	c.writeMem(result)
	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})

	// while (index < len && result) compare one byte.
	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			memLoad(stringLength(a).Addr),
			op(OpU32CheckedLT),
			memLoad(result.Addr),
			op(OpAnd),
		},
		[]Instruction{
			// a.data[index] == b.data[index] -> result
			memLoad(stringDataPtr(a).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			memLoad(stringDataPtr(b).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			op(OpEq),
			memStore(result.Addr),
			// index += 1
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		},
	))
	return result, nil
}

// hashString folds a string's length and bytes into the running commitment,
// the in-VM counterpart of the host-side accumulator.
func (c *Compiler) hashString(s Symbol) Symbol {
	result := c.mem().AllocateSymbol(abi.NewHash())
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	// Fold the length first.
	c.mergeWordInto(result, FromMemory(stringLength(s).Addr))

	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})
	body, _ := c.collect(func(bc *Compiler) error {
		bc.emit(
			// h[3..0] then the next byte
			memLoad(result.Addr+3),
			memLoad(result.Addr+2),
			memLoad(result.Addr+1),
			memLoad(result.Addr),
			push(0),
			push(0),
			push(0),
			memLoad(stringDataPtr(s).Addr),
			memLoad(index.Addr),
			op(OpU32CheckedAdd),
			memLoadTop(),
			op(OpHMerge),
		)
		bc.writeMem(result)
		bc.emit(
			memLoad(index.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(index.Addr),
		)
		return nil
	})
	c.emit(whileLoop(
		[]Instruction{
			memLoad(index.Addr),
			memLoad(stringLength(s).Addr),
			op(OpU32CheckedLT),
		},
		body,
	))
	return result
}
