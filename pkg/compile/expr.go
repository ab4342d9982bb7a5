package compile

import (
	"math"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
)

// compileExpression lowers an expression to the symbol holding its value.
// expected propagates the context type for numeric and array literals, the
// same rule the checker applied.
func (c *Compiler) compileExpression(e ast.Expression, expected *abi.Type, scope *Scope) (Symbol, error) {
	sym, err := c.compileExpressionInner(e, expected, scope)
	if err != nil {
		return Symbol{}, err
	}
	// A nullable narrowed by an enclosing null test reads as its value.
	if sym.Type.Kind == abi.KindNullable && scope.narrowed(sym.Addr) {
		return nullableValue(sym), nil
	}
	return sym, nil
}

func (c *Compiler) compileExpressionInner(e ast.Expression, expected *abi.Type, scope *Scope) (Symbol, error) {
	switch x := e.(type) {
	case *ast.NumberLit:
		return c.compileNumberLit(x, expected)

	case *ast.StringLit:
		return c.newString(x.Value), nil

	case *ast.BoolLit:
		return c.newBoolean(x.Value), nil

	case *ast.Ident:
		sym, ok := scope.find(x.Name)
		if !ok {
			return Symbol{}, c.codegenErr(x, "symbol `%s` not found", x.Name)
		}
		return sym, nil

	case *ast.ArrayLit:
		return c.compileArrayLit(x, expected, scope)

	case *ast.ObjectLit:
		return c.compileObjectLit(x, scope)

	case *ast.Unary:
		return c.compileUnary(x, expected, scope)

	case *ast.Binary:
		return c.compileBinary(x, scope)

	case *ast.Dot:
		return c.compileDot(x, scope)

	case *ast.IndexExpr:
		return c.compileIndexExpr(x, scope)

	case *ast.Call:
		return c.compileCall(x, scope)
	}
	return Symbol{}, c.codegenErr(e, "unsupported expression")
}

func (c *Compiler) compileNumberLit(x *ast.NumberLit, expected *abi.Type) (Symbol, error) {
	t := abi.NewPrimitive(abi.Float32)
	if expected != nil && expected.Kind == abi.KindPrimitive {
		t = *expected
	}
	switch t.Primitive {
	case abi.UInt32:
		return c.newU32(uint32(x.Value)), nil
	case abi.Int32:
		return c.newScalar(t, []uint32{uint32(int32(x.Value))}), nil
	case abi.UInt64:
		v := uint64(x.Value)
		return c.newScalar(t, []uint32{uint32(v >> 32), uint32(v)}), nil
	case abi.Int64:
		v := uint64(int64(x.Value))
		return c.newScalar(t, []uint32{uint32(v >> 32), uint32(v)}), nil
	case abi.Float64:
		bits := math.Float64bits(x.Value)
		return c.newScalar(t, []uint32{uint32(bits >> 32), uint32(bits)}), nil
	case abi.Boolean:
		return Symbol{}, c.codegenErr(x, "numeric literal in boolean position")
	default:
		f := float32(x.Value)
		if float64(f) != x.Value {
			return Symbol{}, c.codegenErr(x, "literal %v is not exactly representable", x.Value)
		}
		return c.newScalar(abi.NewPrimitive(abi.Float32), []uint32{math.Float32bits(f)}), nil
	}
}

// newScalar allocates a symbol and stores immediate words into it.
func (c *Compiler) newScalar(t abi.Type, words []uint32) Symbol {
	sym := c.mem().AllocateSymbol(t)
	values := make([]ValueSource, len(words))
	for i, w := range words {
		values[i] = Immediate(w)
	}
	c.mem().Write(c.ins, sym.Addr, values)
	return sym
}

func (c *Compiler) newU32(v uint32) Symbol {
	return c.newScalar(abi.NewPrimitive(abi.UInt32), []uint32{v})
}

func (c *Compiler) newBoolean(v bool) Symbol {
	w := uint32(0)
	if v {
		w = 1
	}
	return c.newScalar(abi.NewPrimitive(abi.Boolean), []uint32{w})
}

func (c *Compiler) compileArrayLit(x *ast.ArrayLit, expected *abi.Type, scope *Scope) (Symbol, error) {
	var elemExpected *abi.Type
	if expected != nil && expected.Kind == abi.KindArray {
		elemExpected = expected.Inner
	}

	if len(x.Elems) == 0 {
		elemType := abi.NewPrimitive(abi.UInt32)
		if elemExpected != nil {
			elemType = *elemExpected
		}
		arr, _ := c.newArray(0, elemType)
		return arr, nil
	}

	elems := make([]Symbol, 0, len(x.Elems))
	first, err := c.compileExpression(x.Elems[0], elemExpected, scope)
	if err != nil {
		return Symbol{}, err
	}
	elems = append(elems, first)
	for _, elem := range x.Elems[1:] {
		sym, err := c.compileExpression(elem, &first.Type, scope)
		if err != nil {
			return Symbol{}, err
		}
		elems = append(elems, sym)
	}

	arr, dataPtr := c.newArray(uint32(len(elems)), first.Type)
	width := first.Width()
	for i, elem := range elems {
		c.readMem(elem)
		c.mem().Write(c.ins, dataPtr+uint32(i)*width, stackSources(width))
	}
	return arr, nil
}

func (c *Compiler) compileObjectLit(x *ast.ObjectLit, scope *Scope) (Symbol, error) {
	s := abi.Struct{Name: "anonymous"}
	values := make([]Symbol, 0, len(x.Fields))
	for _, f := range x.Fields {
		sym, err := c.compileExpression(f.Value, nil, scope)
		if err != nil {
			return Symbol{}, err
		}
		s.Fields = append(s.Fields, abi.StructField{Name: f.Name, Type: sym.Type})
		values = append(values, sym)
	}

	obj := c.mem().AllocateSymbol(abi.NewStruct(s))
	for i, f := range x.Fields {
		field, err := c.structField(obj, f.Name)
		if err != nil {
			return Symbol{}, err
		}
		c.copySymbol(field, values[i])
	}
	return obj, nil
}

// structField returns a view of a struct field; no code is emitted.
func (c *Compiler) structField(s Symbol, name string) (Symbol, error) {
	if s.Type.Kind == abi.KindContractRef && name == "id" {
		// A reference materializes as its id string.
		return Symbol{Type: abi.NewString(), Addr: s.Addr}, nil
	}
	if s.Type.Kind != abi.KindStruct {
		return Symbol{}, c.codegenErr(nil, "cannot access field %s on %s", name, s.Type)
	}
	fieldType, offset, ok := s.Type.Struct.Field(name)
	if !ok {
		return Symbol{}, c.codegenErr(nil, "unknown field %s on %s", name, s.Type)
	}
	return Symbol{Type: fieldType, Addr: s.Addr + offset}, nil
}

func (c *Compiler) compileDot(x *ast.Dot, scope *Scope) (Symbol, error) {
	obj, err := c.compileExpression(x.X, nil, scope)
	if err != nil {
		return Symbol{}, err
	}

	// Any read of ctx.publicKey marks the program as authenticating reads.
	if ident, ok := x.X.(*ast.Ident); ok && ident.Name == "ctx" && x.Field == "publicKey" {
		c.st.readAuth = true
	}

	switch obj.Type.Kind {
	case abi.KindArray, abi.KindString, abi.KindBytes:
		if x.Field == "length" {
			return Symbol{Type: abi.NewPrimitive(abi.UInt32), Addr: obj.Addr}, nil
		}
	}
	return c.structField(obj, x.Field)
}

func (c *Compiler) compileUnary(x *ast.Unary, expected *abi.Type, scope *Scope) (Symbol, error) {
	operand, err := c.compileExpression(x.X, expected, scope)
	if err != nil {
		return Symbol{}, err
	}

	switch x.Op {
	case ast.OpNot:
		result := c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
		if operand.Type.Kind == abi.KindNullable {
			operand = nullableIsNotNull(operand)
		}
		c.readMem(operand)
		c.emit(op(OpNot))
		c.writeMem(result)
		return result, nil

	case ast.OpBitNot:
		return c.compileBitNot(x, operand)

	case ast.OpNegate:
		return c.compileNegate(x, operand)
	}
	return Symbol{}, c.codegenErr(x, "unsupported unary operator")
}
