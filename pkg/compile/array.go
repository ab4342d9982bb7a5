package compile

import "github.com/polylang/polylang/pkg/abi"

// Array layout: (element_count, capacity, pointer).

func arrayLength(a Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: a.Addr}
}

func arrayCapacity(a Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: a.Addr + 1}
}

func arrayDataPtr(a Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: a.Addr + 2}
}

// dynamicAlloc bumps the run-time allocator by size words and returns the
// old pointer.
func (c *Compiler) dynamicAlloc(size Symbol) Symbol {
	addr := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	c.emit(memLoad(dynamicAllocPtr), dup(0))
	c.writeMem(addr)
	c.readMem(size)
	c.emit(op(OpU32CheckedAdd))
	// Keep 64-bit values aligned.
	c.emit(push(1), op(OpU32CheckedAdd), push(0xfffffffe), op(OpU32CheckedAnd))
	c.emit(memStore(dynamicAllocPtr))
	return addr
}

// newArray materializes an array literal with static backing storage and
// returns the array symbol plus the static address of its data.
func (c *Compiler) newArray(length uint32, elemType abi.Type) (Symbol, uint32) {
	arr := c.mem().AllocateSymbol(abi.NewArray(elemType))
	var dataAddr uint32
	if length > 0 {
		dataAddr = c.mem().Allocate(length * elemType.Width())
	}
	c.mem().Write(c.ins, arr.Addr, []ValueSource{
		Immediate(length),
		Immediate(length),
		Immediate(dataAddr),
	})
	return arr, dataAddr
}

// arrayGet loads the element at a runtime index, asserting it is in bounds.
func (c *Compiler) arrayGet(arr, index Symbol) Symbol {
	elemType := *arr.Type.Inner
	result := c.mem().AllocateSymbol(elemType)

	// assert(index < length)
	c.readMem(index)
	c.readMem(arrayLength(arr))
	c.emit(op(OpU32CheckedLT), op(OpAssert))

	// [elem_addr = data_ptr + index * width]
	c.readMem(arrayDataPtr(arr))
	c.readMem(index)
	c.emit(push(elemType.Width()), op(OpU32CheckedMul), op(OpU32CheckedAdd))
	for i := uint32(0); i < elemType.Width(); i++ {
		c.emit(
			dup(0),
			push(i),
			op(OpU32CheckedAdd),
			memLoadTop(),
			// [elem[i], elem_addr]
			memStore(result.Addr+i),
		)
	}
	c.emit(op(OpDrop))
	return result
}

// arraySet stores a value at a runtime index, asserting it is in bounds.
func (c *Compiler) arraySet(arr, index, value Symbol) {
	width := value.Width()

	c.readMem(index)
	c.readMem(arrayLength(arr))
	c.emit(op(OpU32CheckedLT), op(OpAssert))

	c.readMem(arrayDataPtr(arr))
	c.readMem(index)
	c.emit(push(width), op(OpU32CheckedMul), op(OpU32CheckedAdd))
	// [elem_addr]
	for i := uint32(0); i < width; i++ {
		c.emit(
			memLoad(value.Addr+i),
			// [value[i], elem_addr]
			dup(1),
			push(i),
			op(OpU32CheckedAdd),
			// [elem_addr + i, value[i], elem_addr]
			memStoreTop(),
			// [elem_addr]
		)
	}
	c.emit(op(OpDrop))
}

// arrayPush appends an element, growing the backing storage when the
// capacity is exhausted. Returns the element, like push does in JS.
func (c *Compiler) arrayPush(arr, elem Symbol) (Symbol, error) {
	width := elem.Width()

	// Grow when length == capacity: allocate room for 2*length+4
	// elements and copy the data over.
	newCap := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	newData := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	grow, err := c.collect(func(gc *Compiler) error {
		gc.readMem(arrayLength(arr))
		gc.emit(push(2), op(OpU32CheckedMul), push(4), op(OpU32CheckedAdd))
		gc.writeMem(newCap)

		allocSize := gc.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
		gc.readMem(newCap)
		gc.emit(push(width), op(OpU32CheckedMul))
		gc.writeMem(allocSize)
		ptr := gc.dynamicAlloc(allocSize)
		gc.copySymbol(newData, ptr)

		// copy the old elements: [word_count, old_data, new_data]
		gc.readMem(newData)
		gc.readMem(arrayDataPtr(arr))
		gc.readMem(arrayLength(arr))
		gc.emit(push(width), op(OpU32CheckedMul))
		gc.copyStrStack()

		gc.mem().Write(gc.ins, arrayCapacity(arr).Addr, []ValueSource{FromMemory(newCap.Addr)})
		gc.mem().Write(gc.ins, arrayDataPtr(arr).Addr, []ValueSource{FromMemory(newData.Addr)})
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}

	c.readMem(arrayLength(arr))
	c.readMem(arrayCapacity(arr))
	c.emit(op(OpU32CheckedEq))
	c.emit(ifTrue(nil, grow, nil))

	// data[length] = elem; length += 1
	c.readMem(arrayDataPtr(arr))
	c.readMem(arrayLength(arr))
	c.emit(push(width), op(OpU32CheckedMul), op(OpU32CheckedAdd))
	for i := uint32(0); i < width; i++ {
		c.emit(
			memLoad(elem.Addr+i),
			dup(1),
			push(i),
			op(OpU32CheckedAdd),
			memStoreTop(),
		)
	}
	c.emit(op(OpDrop))

	c.readMem(arrayLength(arr))
	c.emit(push(1), op(OpU32CheckedAdd))
	c.writeMem(arrayLength(arr))

	return elem, nil
}

// hashArray folds the length, then merges each element's digest in order.
func (c *Compiler) hashArray(arr Symbol) (Symbol, error) {
	result := c.mem().AllocateSymbol(abi.NewHash())
	index := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))

	c.mergeWordInto(result, FromMemory(arrayLength(arr).Addr))
	c.mem().Write(c.ins, index.Addr, []ValueSource{Immediate(0)})

	body, err := c.collect(func(bc *Compiler) error {
		elem := bc.arrayGet(arr, index)
		elemHash, err := bc.hashSymbol(elem)
		if err != nil {
			return err
		}
		bc.mergeInto(result, elemHash)
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
	return result, nil
}
