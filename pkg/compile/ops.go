package compile

import (
	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
)

func (c *Compiler) compileBinary(x *ast.Binary, scope *Scope) (Symbol, error) {
	switch x.Op {
	case ast.OpAssign, ast.OpAssignAdd, ast.OpAssignSub:
		return c.compileAssign(x, scope)

	case ast.OpAnd, ast.OpOr:
		a, err := c.compileExpression(x.LHS, nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		b, err := c.compileExpression(x.RHS, nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		result := c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
		c.readMem(a)
		c.readMem(b)
		if x.Op == ast.OpAnd {
			c.emit(op(OpAnd))
		} else {
			c.emit(op(OpOr))
		}
		c.writeMem(result)
		return result, nil
	}

	a, b, err := c.binaryOperands(x, scope)
	if err != nil {
		return Symbol{}, err
	}

	switch x.Op {
	case ast.OpEqual:
		return c.compileEq(a, b)
	case ast.OpNotEqual:
		return c.compileNeq(a, b)
	case ast.OpAdd:
		return c.compileAdd(x, a, b)
	case ast.OpSubtract:
		return c.compileSub(x, a, b)
	case ast.OpMultiply:
		return c.compileMul(x, a, b)
	case ast.OpDivide:
		return c.compileDiv(x, a, b)
	case ast.OpModulo:
		return c.compileMod(x, a, b)
	case ast.OpShiftLeft, ast.OpShiftRight:
		return c.compileShift(x, a, b)
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		return c.compileBitwise(x, a, b)
	case ast.OpLessThan, ast.OpLessThanOrEqual, ast.OpGreaterThan, ast.OpGreaterThanOrEqual:
		return c.compileComparison(x, a, b)
	}
	return Symbol{}, c.codegenErr(x, "unsupported operator %s", x.Op)
}

// binaryOperands compiles both operands, letting a numeric literal take the
// other side's type.
func (c *Compiler) binaryOperands(x *ast.Binary, scope *Scope) (Symbol, Symbol, error) {
	_, lhsLit := x.LHS.(*ast.NumberLit)
	_, rhsLit := x.RHS.(*ast.NumberLit)

	if lhsLit && !rhsLit {
		b, err := c.compileExpression(x.RHS, nil, scope)
		if err != nil {
			return Symbol{}, Symbol{}, err
		}
		a, err := c.compileExpression(x.LHS, &b.Type, scope)
		return a, b, err
	}
	a, err := c.compileExpression(x.LHS, nil, scope)
	if err != nil {
		return Symbol{}, Symbol{}, err
	}
	b, err := c.compileExpression(x.RHS, &a.Type, scope)
	return a, b, err
}

// binaryWord emits a one-word binary op: read a, read b, op, store result.
func (c *Compiler) binaryWord(resultType abi.Type, a, b Symbol, ops ...Instruction) Symbol {
	result := c.mem().AllocateSymbol(resultType)
	c.readMem(a)
	c.readMem(b)
	c.emit(ops...)
	c.writeMem(result)
	return result
}

// binaryU64 emits a two-word binary op through the u64 standard library.
func (c *Compiler) binaryU64(resultType abi.Type, a, b Symbol, proc string) Symbol {
	result := c.mem().AllocateSymbol(resultType)
	c.readMem(a)
	c.readMem(b)
	c.emit(exec("u64::" + proc))
	c.writeMem(result)
	return result
}

func primOf(s Symbol) abi.PrimitiveType {
	if s.Type.Kind != abi.KindPrimitive {
		return ""
	}
	return s.Type.Primitive
}

func (c *Compiler) compileAdd(x *ast.Binary, a, b Symbol) (Symbol, error) {
	if a.Type.Kind == abi.KindString && b.Type.Kind == abi.KindString {
		return c.stringConcat(a, b)
	}
	switch primOf(a) {
	case abi.UInt32:
		return c.binaryWord(a.Type, a, b, op(OpU32CheckedAdd)), nil
	case abi.Int32:
		return c.binaryWord(a.Type, a, b, op(OpU32WrappingAdd)), nil
	case abi.UInt64:
		return c.binaryU64(a.Type, a, b, "checked_add"), nil
	case abi.Int64:
		return c.binaryU64(a.Type, a, b, "wrapping_add"), nil
	case abi.Float32:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("f32_add"))), nil
	}
	return Symbol{}, c.codegenErr(x, "operator + is not defined on %s", a.Type)
}

func (c *Compiler) compileSub(x *ast.Binary, a, b Symbol) (Symbol, error) {
	switch primOf(a) {
	case abi.UInt32:
		return c.binaryWord(a.Type, a, b, op(OpU32CheckedSub)), nil
	case abi.Int32:
		return c.binaryWord(a.Type, a, b, op(OpU32WrappingSub)), nil
	case abi.UInt64:
		return c.binaryU64(a.Type, a, b, "checked_sub"), nil
	case abi.Int64:
		return c.binaryU64(a.Type, a, b, "wrapping_sub"), nil
	case abi.Float32:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("f32_sub"))), nil
	}
	return Symbol{}, c.codegenErr(x, "operator - is not defined on %s", a.Type)
}

func (c *Compiler) compileMul(x *ast.Binary, a, b Symbol) (Symbol, error) {
	switch primOf(a) {
	case abi.UInt32:
		return c.binaryWord(a.Type, a, b, op(OpU32CheckedMul)), nil
	case abi.Int32:
		return c.binaryWord(a.Type, a, b, op(OpU32WrappingMul)), nil
	case abi.UInt64:
		return c.binaryU64(a.Type, a, b, "checked_mul"), nil
	case abi.Int64:
		return c.binaryU64(a.Type, a, b, "wrapping_mul"), nil
	case abi.Float32:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("f32_mul"))), nil
	}
	return Symbol{}, c.codegenErr(x, "operator * is not defined on %s", a.Type)
}

func (c *Compiler) compileDiv(x *ast.Binary, a, b Symbol) (Symbol, error) {
	switch primOf(a) {
	case abi.UInt32:
		return c.binaryWord(a.Type, a, b, op(OpU32CheckedDiv)), nil
	case abi.Int32:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("i32_div"))), nil
	case abi.UInt64:
		return c.binaryU64(a.Type, a, b, "checked_div"), nil
	case abi.Int64:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("i64_div"))), nil
	case abi.Float32:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("f32_div"))), nil
	}
	return Symbol{}, c.codegenErr(x, "operator / is not defined on %s", a.Type)
}

func (c *Compiler) compileMod(x *ast.Binary, a, b Symbol) (Symbol, error) {
	switch primOf(a) {
	case abi.UInt32:
		return c.binaryWord(a.Type, a, b, op(OpU32CheckedMod)), nil
	case abi.Int32:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("i32_mod"))), nil
	case abi.UInt64:
		return c.binaryU64(a.Type, a, b, "checked_mod"), nil
	case abi.Int64:
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("i64_mod"))), nil
	}
	return Symbol{}, c.codegenErr(x, "operator %% is not defined on %s", a.Type)
}

func (c *Compiler) compileShift(x *ast.Binary, a, b Symbol) (Symbol, error) {
	left := x.Op == ast.OpShiftLeft
	switch primOf(a) {
	case abi.UInt32:
		o := OpU32CheckedSHR
		if left {
			o = OpU32CheckedSHL
		}
		return c.binaryWord(a.Type, a, b, op(o)), nil
	case abi.Int32:
		if left {
			return c.binaryWord(a.Type, a, b, op(OpU32CheckedSHL)), nil
		}
		// Arithmetic shift preserves the sign bit.
		return c.binaryWord(a.Type, a, b, exec(c.usePrelude("i32_shr"))), nil
	case abi.UInt64, abi.Int64:
		// The u64 routines take a one-word shift amount; the high word of
		// the shift operand is always zero for in-range shifts.
		result := c.mem().AllocateSymbol(a.Type)
		c.readMem(a)
		c.mem().Read(c.ins, b.Addr+1, 1) // low word only
		proc := "checked_shr"
		if left {
			proc = "checked_shl"
		}
		c.emit(exec("u64::" + proc))
		c.writeMem(result)
		return result, nil
	}
	return Symbol{}, c.codegenErr(x, "shift operators are not defined on %s", a.Type)
}

func (c *Compiler) compileBitwise(x *ast.Binary, a, b Symbol) (Symbol, error) {
	var word Opcode
	var proc string
	switch x.Op {
	case ast.OpBitAnd:
		word, proc = OpU32CheckedAnd, "checked_and"
	case ast.OpBitOr:
		word, proc = OpU32CheckedOr, "checked_or"
	default:
		word, proc = OpU32CheckedXor, "checked_xor"
	}
	switch primOf(a) {
	case abi.UInt32, abi.Int32:
		return c.binaryWord(a.Type, a, b, op(word)), nil
	case abi.UInt64, abi.Int64:
		return c.binaryU64(a.Type, a, b, proc), nil
	}
	return Symbol{}, c.codegenErr(x, "bitwise operators are not defined on %s", a.Type)
}

// comparisonPlan maps a comparison to its u32 opcode and u64 routine.
func comparisonPlan(o ast.BinaryOp) (Opcode, string) {
	switch o {
	case ast.OpLessThan:
		return OpU32CheckedLT, "checked_lt"
	case ast.OpLessThanOrEqual:
		return OpU32CheckedLTE, "checked_lte"
	case ast.OpGreaterThan:
		return OpU32CheckedGT, "checked_gt"
	default:
		return OpU32CheckedGTE, "checked_gte"
	}
}

func (c *Compiler) compileComparison(x *ast.Binary, a, b Symbol) (Symbol, error) {
	boolType := abi.NewPrimitive(abi.Boolean)
	wordOp, u64Proc := comparisonPlan(x.Op)

	switch primOf(a) {
	case abi.UInt32, abi.Boolean:
		return c.binaryWord(boolType, a, b, op(wordOp)), nil

	case abi.Int32:
		// Flip the sign bit of both operands; two's-complement order then
		// matches unsigned order.
		result := c.mem().AllocateSymbol(boolType)
		c.readMem(a)
		c.emit(push(0x80000000), op(OpU32CheckedXor))
		c.readMem(b)
		c.emit(push(0x80000000), op(OpU32CheckedXor))
		c.emit(op(wordOp))
		c.writeMem(result)
		return result, nil

	case abi.UInt64:
		return c.binaryU64(boolType, a, b, u64Proc), nil

	case abi.Int64:
		// Same sign-bit flip, on the high word.
		result := c.mem().AllocateSymbol(boolType)
		c.readMem(a)
		c.emit(push(0x80000000), op(OpU32CheckedXor))
		c.readMem(b)
		c.emit(push(0x80000000), op(OpU32CheckedXor))
		c.emit(exec("u64::" + u64Proc))
		c.writeMem(result)
		return result, nil

	case abi.Float32:
		lt := c.usePrelude("f32_lt")
		result := c.mem().AllocateSymbol(boolType)
		switch x.Op {
		case ast.OpLessThan:
			c.readMem(a)
			c.readMem(b)
			c.emit(exec(lt))
		case ast.OpGreaterThan:
			c.readMem(b)
			c.readMem(a)
			c.emit(exec(lt))
		case ast.OpGreaterThanOrEqual:
			c.readMem(a)
			c.readMem(b)
			c.emit(exec(lt), op(OpNot))
		default: // <=
			c.readMem(b)
			c.readMem(a)
			c.emit(exec(lt), op(OpNot))
		}
		c.writeMem(result)
		return result, nil

	case abi.Float64:
		lt := c.usePrelude("f64_lt")
		result := c.mem().AllocateSymbol(boolType)
		switch x.Op {
		case ast.OpLessThan:
			c.readMem(a)
			c.readMem(b)
			c.emit(exec(lt))
		case ast.OpGreaterThan:
			c.readMem(b)
			c.readMem(a)
			c.emit(exec(lt))
		case ast.OpGreaterThanOrEqual:
			c.readMem(a)
			c.readMem(b)
			c.emit(exec(lt), op(OpNot))
		default:
			c.readMem(b)
			c.readMem(a)
			c.emit(exec(lt), op(OpNot))
		}
		c.writeMem(result)
		return result, nil
	}
	return Symbol{}, c.codegenErr(x, "operator %s is not defined on %s", x.Op, a.Type)
}

func (c *Compiler) compileBitNot(x *ast.Unary, operand Symbol) (Symbol, error) {
	switch primOf(operand) {
	case abi.UInt32, abi.Int32:
		result := c.mem().AllocateSymbol(operand.Type)
		c.readMem(operand)
		c.emit(push(0xffffffff), op(OpU32CheckedXor))
		c.writeMem(result)
		return result, nil
	case abi.UInt64, abi.Int64:
		result := c.mem().AllocateSymbol(operand.Type)
		for i := uint32(0); i < 2; i++ {
			c.mem().Read(c.ins, operand.Addr+i, 1)
			c.emit(push(0xffffffff), op(OpU32CheckedXor))
			c.mem().Write(c.ins, result.Addr+i, stackSources(1))
		}
		return result, nil
	}
	return Symbol{}, c.codegenErr(x, "operator ~ is not defined on %s", operand.Type)
}

func (c *Compiler) compileNegate(x *ast.Unary, operand Symbol) (Symbol, error) {
	switch primOf(operand) {
	case abi.Int32:
		result := c.mem().AllocateSymbol(operand.Type)
		c.emit(push(0))
		c.readMem(operand)
		c.emit(op(OpU32WrappingSub))
		c.writeMem(result)
		return result, nil
	case abi.Int64:
		result := c.mem().AllocateSymbol(operand.Type)
		c.emit(push(0), push(0))
		c.readMem(operand)
		c.emit(exec("u64::wrapping_sub"))
		c.writeMem(result)
		return result, nil
	case abi.Float32:
		result := c.mem().AllocateSymbol(operand.Type)
		c.readMem(operand)
		c.emit(push(0x80000000), op(OpU32CheckedXor))
		c.writeMem(result)
		return result, nil
	}
	return Symbol{}, c.codegenErr(x, "cannot negate %s", operand.Type)
}

func (c *Compiler) compileEq(a, b Symbol) (Symbol, error) {
	boolType := abi.NewPrimitive(abi.Boolean)

	switch {
	case a.Type.Kind == abi.KindNullable || b.Type.Kind == abi.KindNullable:
		return c.nullableEq(a, b)

	case a.Type.Kind == abi.KindString && b.Type.Kind == abi.KindString,
		a.Type.Kind == abi.KindContractRef && b.Type.Kind == abi.KindContractRef:
		return c.stringEq(a, b)

	case a.Type.Kind == abi.KindPublicKey:
		return c.publicKeyEq(a, b)

	case a.Type.Kind == abi.KindHash:
		// Word-by-word conjunction.
		result := c.mem().AllocateSymbol(boolType)
		c.emit(push(1))
		for i := uint32(0); i < a.Width(); i++ {
			c.mem().Read(c.ins, a.Addr+i, 1)
			c.mem().Read(c.ins, b.Addr+i, 1)
			c.emit(op(OpEq), op(OpAnd))
		}
		c.writeMem(result)
		return result, nil
	}

	switch primOf(a) {
	case abi.Boolean, abi.UInt32, abi.Int32, abi.Float32:
		return c.binaryWord(boolType, a, b, op(OpEq)), nil
	case abi.UInt64, abi.Int64, abi.Float64:
		return c.binaryU64(boolType, a, b, "checked_eq"), nil
	}
	return Symbol{}, c.codegenErr(nil, "operator == is not defined on %s", a.Type)
}

func (c *Compiler) compileNeq(a, b Symbol) (Symbol, error) {
	eq, err := c.compileEq(a, b)
	if err != nil {
		return Symbol{}, err
	}
	result := c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
	c.readMem(eq)
	c.emit(op(OpNot))
	c.writeMem(result)
	return result, nil
}

func (c *Compiler) compileAssign(x *ast.Binary, scope *Scope) (Symbol, error) {
	if idx, ok := x.LHS.(*ast.IndexExpr); ok {
		return c.compileIndexAssign(x, idx, scope)
	}

	target, err := c.compileExpression(x.LHS, nil, scope)
	if err != nil {
		return Symbol{}, err
	}

	expected := target.Type
	if expected.Kind == abi.KindNullable {
		expected = *expected.Inner
	}
	value, err := c.compileExpression(x.RHS, &expected, scope)
	if err != nil {
		return Symbol{}, err
	}

	// Compound assignment computes target op value first.
	if x.Op != ast.OpAssign {
		writeTarget := target
		if writeTarget.Type.Kind == abi.KindNullable {
			writeTarget = nullableValue(writeTarget)
		}
		if x.Op == ast.OpAssignAdd {
			value, err = c.compileAdd(x, writeTarget, value)
		} else {
			value, err = c.compileSub(x, writeTarget, value)
		}
		if err != nil {
			return Symbol{}, err
		}
	}

	c.storeInto(target, value)
	return target, nil
}

// storeInto copies value into target, setting the nullability flag when a
// plain value is assigned into a nullable slot.
func (c *Compiler) storeInto(target, value Symbol) {
	if target.Type.Kind == abi.KindNullable && value.Type.Kind != abi.KindNullable {
		c.mem().Write(c.ins, nullableIsNotNull(target).Addr, []ValueSource{Immediate(1)})
		c.copySymbol(nullableValue(target), value)
		return
	}
	c.copySymbol(target, value)
}
