package compile

import (
	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
)

func (c *Compiler) compileIndexExpr(x *ast.IndexExpr, scope *Scope) (Symbol, error) {
	container, err := c.compileExpression(x.X, nil, scope)
	if err != nil {
		return Symbol{}, err
	}

	switch container.Type.Kind {
	case abi.KindArray:
		u32 := abi.NewPrimitive(abi.UInt32)
		index, err := c.compileExpression(x.Idx, &u32, scope)
		if err != nil {
			return Symbol{}, err
		}
		return c.arrayGet(container, index), nil

	case abi.KindMap:
		key, err := c.compileExpression(x.Idx, container.Type.Key, scope)
		if err != nil {
			return Symbol{}, err
		}
		value, _, _, err := c.mapGet(container, key)
		return value, err
	}
	return Symbol{}, c.codegenErr(x, "cannot index into %s", container.Type)
}

func (c *Compiler) compileIndexAssign(x *ast.Binary, lhs *ast.IndexExpr, scope *Scope) (Symbol, error) {
	container, err := c.compileExpression(lhs.X, nil, scope)
	if err != nil {
		return Symbol{}, err
	}

	switch container.Type.Kind {
	case abi.KindArray:
		u32 := abi.NewPrimitive(abi.UInt32)
		index, err := c.compileExpression(lhs.Idx, &u32, scope)
		if err != nil {
			return Symbol{}, err
		}
		value, err := c.compileAssignedValue(x, container.Type.Inner, func() (Symbol, error) {
			return c.arrayGet(container, index), nil
		}, scope)
		if err != nil {
			return Symbol{}, err
		}
		c.arraySet(container, index, value)
		return value, nil

	case abi.KindMap:
		key, err := c.compileExpression(lhs.Idx, container.Type.Key, scope)
		if err != nil {
			return Symbol{}, err
		}
		value, err := c.compileAssignedValue(x, container.Type.Value, func() (Symbol, error) {
			v, _, _, err := c.mapGet(container, key)
			return v, err
		}, scope)
		if err != nil {
			return Symbol{}, err
		}
		if err := c.mapAssign(container, key, value); err != nil {
			return Symbol{}, err
		}
		return value, nil
	}
	return Symbol{}, c.codegenErr(x, "cannot index into %s", container.Type)
}

// compileAssignedValue computes the right-hand side of an element
// assignment, reading the current element for += and -=.
func (c *Compiler) compileAssignedValue(
	x *ast.Binary, elemType *abi.Type, current func() (Symbol, error), scope *Scope,
) (Symbol, error) {
	value, err := c.compileExpression(x.RHS, elemType, scope)
	if err != nil {
		return Symbol{}, err
	}
	if x.Op == ast.OpAssign {
		return value, nil
	}
	old, err := current()
	if err != nil {
		return Symbol{}, err
	}
	if x.Op == ast.OpAssignAdd {
		return c.compileAdd(x, old, value)
	}
	return c.compileSub(x, old, value)
}

func (c *Compiler) compileCall(x *ast.Call, scope *Scope) (Symbol, error) {
	switch fn := x.Fn.(type) {
	case *ast.Ident:
		return c.compileNamedCall(x, fn.Name, scope)
	case *ast.Dot:
		return c.compileMethodCall(x, fn, scope)
	}
	return Symbol{}, c.codegenErr(x, "expected a function name")
}

func (c *Compiler) compileNamedCall(x *ast.Call, name string, scope *Scope) (Symbol, error) {
	switch name {
	case "error":
		msg, err := c.compileExpression(x.Args[0], nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		c.compileError(msg)
		return c.newBoolean(false), nil

	case "assert":
		cond, err := c.compileExpression(x.Args[0], nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		msg, err := c.compileExpression(x.Args[1], nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		if err := c.assertWith(cond, msg); err != nil {
			return Symbol{}, err
		}
		return c.newBoolean(true), nil

	case "log":
		for _, arg := range x.Args {
			sym, err := c.compileExpression(arg, nil, scope)
			if err != nil {
				return Symbol{}, err
			}
			if err := c.compileLog(sym); err != nil {
				return Symbol{}, err
			}
		}
		return c.newBoolean(true), nil

	case "selfdestruct":
		// Tombstone the record; the surrounding store deletes it.
		c.mem().Write(c.ins, selfDestructAddr, []ValueSource{Immediate(1)})
		return c.newBoolean(true), nil

	case "mapLength":
		m, err := c.compileExpression(x.Args[0], nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		return c.mapLength(m), nil

	case "arrayPush":
		arr, err := c.compileExpression(x.Args[0], nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		elem, err := c.compileExpression(x.Args[1], arr.Type.Inner, scope)
		if err != nil {
			return Symbol{}, err
		}
		return c.arrayPush(arr, elem)
	}

	fn, ok := c.st.program.Functions[name]
	if !ok {
		return Symbol{}, c.codegenErr(x, "function `%s` not found", name)
	}
	params, err := c.st.program.ParamTypes(nil, fn)
	if err != nil {
		return Symbol{}, err
	}
	args := make([]Symbol, 0, len(x.Args))
	for i, argExpr := range x.Args {
		expected := params[i]
		if expected.Kind == abi.KindNullable {
			expected = *expected.Inner
		}
		arg, err := c.compileExpression(argExpr, &expected, scope)
		if err != nil {
			return Symbol{}, err
		}
		args = append(args, arg)
	}
	return c.compileFunctionCall(fn, args, nil, scope)
}

func (c *Compiler) compileMethodCall(x *ast.Call, fn *ast.Dot, scope *Scope) (Symbol, error) {
	recv, err := c.compileExpression(fn.X, nil, scope)
	if err != nil {
		return Symbol{}, err
	}

	wrapping := func(u32Op Opcode, u64Proc string) (Symbol, error) {
		arg, err := c.compileExpression(x.Args[0], &recv.Type, scope)
		if err != nil {
			return Symbol{}, err
		}
		if primOf(recv) == abi.UInt32 {
			return c.binaryWord(recv.Type, recv, arg, op(u32Op)), nil
		}
		return c.binaryU64(recv.Type, recv, arg, u64Proc), nil
	}

	switch {
	case primOf(recv) == abi.UInt32 || primOf(recv) == abi.UInt64:
		switch fn.Field {
		case "wrappingAdd":
			return wrapping(OpU32WrappingAdd, "wrapping_add")
		case "wrappingSub":
			return wrapping(OpU32WrappingSub, "wrapping_sub")
		case "wrappingMul":
			return wrapping(OpU32WrappingMul, "wrapping_mul")
		}

	case recv.Type.Kind == abi.KindArray:
		if fn.Field == "push" {
			elem, err := c.compileExpression(x.Args[0], recv.Type.Inner, scope)
			if err != nil {
				return Symbol{}, err
			}
			return c.arrayPush(recv, elem)
		}

	case recv.Type.Kind == abi.KindPublicKey:
		if fn.Field == "toHex" {
			return c.publicKeyToHex(recv)
		}
	}
	return Symbol{}, c.codegenErr(x, "unknown method `%s` on %s", fn.Field, recv.Type)
}

// compileError aborts the VM with a user message: the string is published
// at the reserved error address, then an always-false assert fires.
func (c *Compiler) compileError(msg Symbol) {
	c.mem().Write(c.ins, errorStrAddr, []ValueSource{
		FromMemory(stringLength(msg).Addr),
		FromMemory(stringDataPtr(msg).Addr),
	})
	c.emit(push(0), op(OpAssert))
}

// assert fails with a fresh message string when cond is false.
func (c *Compiler) assert(cond Symbol, message string) error {
	msg := c.newString(message)
	return c.assertWith(cond, msg)
}

func (c *Compiler) assertWith(cond, msg Symbol) error {
	failure, err := c.collect(func(fc *Compiler) error {
		fc.compileError(msg)
		return nil
	})
	if err != nil {
		return err
	}
	c.emit(ifTrue([]Instruction{memLoad(cond.Addr)}, nil, failure))
	return nil
}

// compileLog appends a value to the debug log channel, converting u32
// values and booleans to strings first.
func (c *Compiler) compileLog(value Symbol) error {
	var msg Symbol
	switch {
	case value.Type.Kind == abi.KindString:
		msg = value
	case primOf(value) == abi.UInt32 || primOf(value) == abi.Boolean:
		msg = c.uint32ToString(Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: value.Addr})
	default:
		return c.codegenErr(nil, "cannot log a %s yet", value.Type)
	}

	// Copy the string header so logging in a loop captures each message.
	two := c.newU32(2)
	entry := c.dynamicAlloc(two)
	c.emit(
		memLoad(stringLength(msg).Addr),
		memLoad(entry.Addr),
		memStoreTop(),
		memLoad(stringDataPtr(msg).Addr),
		memLoad(entry.Addr),
		push(1),
		op(OpU32CheckedAdd),
		memStoreTop(),
	)

	// Prepend to the log list: (prev, message) at a fresh node.
	node := c.dynamicAlloc(two)
	c.emit(
		memLoad(logPrevAddr),
		memLoad(node.Addr),
		memStoreTop(),
		memLoad(logStrAddr),
		memLoad(node.Addr),
		push(1),
		op(OpU32CheckedAdd),
		memStoreTop(),
		memLoad(node.Addr),
		memStore(logPrevAddr),
		memLoad(entry.Addr),
		memStore(logStrAddr),
	)
	return nil
}

// uint32ToString renders a u32 in decimal.
func (c *Compiler) uint32ToString(value Symbol) Symbol {
	result := c.newString("")
	length := stringLength(result)
	ten := c.newU32(10)

	work := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	c.copySymbol(work, value)

	// Count digits: length = value == 0 ? 1 : floor(log10(value)) + 1.
	c.emit(whileLoop(
		[]Instruction{
			memLoad(work.Addr),
			push(1),
			op(OpU32CheckedGTE),
		},
		[]Instruction{
			memLoad(work.Addr),
			memLoad(ten.Addr),
			op(OpU32CheckedDiv),
			memStore(work.Addr),
			memLoad(length.Addr),
			push(1),
			op(OpU32CheckedAdd),
			memStore(length.Addr),
		},
	))
	c.emit(ifTrue(
		[]Instruction{memLoad(value.Addr), push(0), op(OpU32CheckedEq)},
		[]Instruction{push(1), memStore(length.Addr)},
		nil,
	))

	data := c.dynamicAlloc(length)
	c.mem().Write(c.ins, stringDataPtr(result).Addr, []ValueSource{FromMemory(data.Addr)})

	// Emit digits right to left.
	offset := c.mem().AllocateSymbol(abi.NewPrimitive(abi.UInt32))
	c.copySymbol(offset, length)
	c.copySymbol(work, value)
	c.emit(whileLoop(
		[]Instruction{
			memLoad(work.Addr),
			push(1),
			op(OpU32CheckedGTE),
		},
		[]Instruction{
			// offset -= 1
			memLoad(offset.Addr),
			push(1),
			op(OpU32CheckedSub),
			memStore(offset.Addr),
			// data[offset] = '0' + work % 10
			memLoad(work.Addr),
			push(10),
			op(OpU32CheckedMod),
			push('0'),
			op(OpU32CheckedAdd),
			memLoad(data.Addr),
			memLoad(offset.Addr),
			op(OpU32CheckedAdd),
			memStoreTop(),
			// work /= 10
			memLoad(work.Addr),
			push(10),
			op(OpU32CheckedDiv),
			memStore(work.Addr),
		},
	))
	c.emit(ifTrue(
		[]Instruction{memLoad(value.Addr), push(0), op(OpU32CheckedEq)},
		[]Instruction{push('0'), memLoad(data.Addr), memStoreTop()},
		nil,
	))
	return result
}
