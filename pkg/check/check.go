package check

import (
	"math"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
)

type env struct {
	parent *env
	vars   map[string]abi.Type
}

func (e *env) child() *env {
	return &env{parent: e, vars: map[string]abi.Type{}}
}

func (e *env) lookup(name string) (abi.Type, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if t, ok := scope.vars[name]; ok {
			return t, true
		}
	}
	return abi.Type{}, false
}

func (e *env) define(name string, t abi.Type) { e.vars[name] = t }

// checker carries the state of one function body check.
type checker struct {
	p       *Program
	self    *Contract // nil for free functions
	returns *abi.Type // declared return type, nil if none
}

// CtxStruct is the layout of the ambient `ctx` value.
func CtxStruct() abi.Struct {
	return abi.Struct{
		Name: "Context",
		Fields: []abi.StructField{
			{Name: "publicKey", Type: abi.NewNullable(abi.NewPublicKey())},
		},
	}
}

func (p *Program) checkBodies() error {
	for _, schema := range p.Contracts {
		for _, fn := range schema.Methods {
			if err := p.checkFunction(schema, fn); err != nil {
				return err
			}
		}
	}
	for _, fn := range p.Functions {
		if err := p.checkFunction(nil, fn); err != nil {
			return err
		}
	}
	return nil
}

// ParamTypes maps a function's parameters to their layout types. self may
// be nil for free functions.
func (p *Program) ParamTypes(self *Contract, fn *ast.Function) ([]abi.Type, error) {
	out := make([]abi.Type, 0, len(fn.Parameters))
	for _, param := range fn.Parameters {
		typ, err := p.abiType(self, param.Required, &param.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, typ)
	}
	return out, nil
}

// ReturnType maps a function's declared return type, or nil.
func (p *Program) ReturnType(self *Contract, fn *ast.Function) (*abi.Type, error) {
	if fn.ReturnType == nil {
		return nil, nil
	}
	typ, err := p.abiType(self, true, fn.ReturnType)
	if err != nil {
		return nil, err
	}
	return &typ, nil
}

func (p *Program) checkFunction(self *Contract, fn *ast.Function) error {
	c := &checker{p: p, self: self}

	scope := &env{vars: map[string]abi.Type{}}
	if self != nil {
		scope.define("this", abi.NewStruct(self.Struct))
	}
	scope.define("ctx", abi.NewStruct(CtxStruct()))

	for _, param := range fn.Parameters {
		typ, err := p.abiType(self, param.Required, &param.Type)
		if err != nil {
			return err
		}
		scope.define(param.Name, typ)
	}

	var err error
	c.returns, err = p.ReturnType(self, fn)
	if err != nil {
		return err
	}

	return c.checkStatements(fn.Statements, scope)
}

func (c *checker) checkStatements(stmts []ast.Statement, scope *env) error {
	for _, stmt := range stmts {
		if err := c.checkStatement(stmt, scope); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkStatement(stmt ast.Statement, scope *env) error {
	switch s := stmt.(type) {
	case *ast.Break:
		return nil

	case *ast.Return:
		t, err := c.checkExpr(s.Value, c.returns, scope)
		if err != nil {
			return err
		}
		if c.returns != nil && !t.Equal(*c.returns) {
			return c.p.semErr(s, "type mismatch: cannot return %s from a function returning %s", t, c.returns)
		}
		return nil

	case *ast.Throw:
		_, err := c.checkExpr(s.Value, nil, scope)
		return err

	case *ast.Let:
		var expected *abi.Type
		if s.Type != nil {
			typ, err := c.p.abiType(c.self, true, s.Type)
			if err != nil {
				return err
			}
			expected = &typ
		}
		t, err := c.checkExpr(s.Value, expected, scope)
		if err != nil {
			return err
		}
		if expected != nil && !t.Equal(*expected) {
			return c.p.semErr(s, "type mismatch: cannot initialize %s with %s", expected, t)
		}
		scope.define(s.Name, t)
		return nil

	case *ast.If:
		condScope := scope.child()
		if err := c.checkCondition(s.Cond, condScope); err != nil {
			return err
		}
		if err := c.checkStatements(s.Then, condScope.child()); err != nil {
			return err
		}
		return c.checkStatements(s.Else, scope.child())

	case *ast.While:
		bodyScope := scope.child()
		if err := c.checkCondition(s.Cond, bodyScope); err != nil {
			return err
		}
		return c.checkStatements(s.Body, bodyScope)

	case *ast.For:
		forScope := scope.child()
		if s.Init.Let != nil {
			if err := c.checkStatement(s.Init.Let, forScope); err != nil {
				return err
			}
		} else if s.Init.Expr != nil {
			if _, err := c.checkExpr(s.Init.Expr, nil, forScope); err != nil {
				return err
			}
		}
		if err := c.checkCondition(s.Cond, forScope); err != nil {
			return err
		}
		if _, err := c.checkExpr(s.Post, nil, forScope); err != nil {
			return err
		}
		return c.checkStatements(s.Body, forScope.child())

	case *ast.ExprStatement:
		_, err := c.checkExpr(s.Expr, nil, scope)
		return err
	}
	return nil
}

// checkCondition types a condition expression; booleans and nullable values
// (null tests) are accepted.
func (c *checker) checkCondition(cond ast.Expression, scope *env) error {
	t, err := c.checkExpr(cond, nil, scope)
	if err != nil {
		return err
	}
	if !t.IsPrimitive(abi.Boolean) && t.Kind != abi.KindNullable {
		return c.p.semErr(cond, "condition must be a boolean or an optional value, found %s", t)
	}
	return nil
}

func (c *checker) checkExpr(e ast.Expression, expected *abi.Type, scope *env) (abi.Type, error) {
	switch x := e.(type) {
	case *ast.NumberLit:
		return c.checkNumberLit(x, expected)

	case *ast.StringLit:
		return abi.NewString(), nil

	case *ast.BoolLit:
		return abi.NewPrimitive(abi.Boolean), nil

	case *ast.Ident:
		t, ok := scope.lookup(x.Name)
		if !ok {
			return abi.Type{}, c.p.semErr(x, "unknown identifier `%s`", x.Name)
		}
		return t, nil

	case *ast.ArrayLit:
		return c.checkArrayLit(x, expected, scope)

	case *ast.ObjectLit:
		s := abi.Struct{Name: "anonymous"}
		for _, f := range x.Fields {
			t, err := c.checkExpr(f.Value, nil, scope)
			if err != nil {
				return abi.Type{}, err
			}
			s.Fields = append(s.Fields, abi.StructField{Name: f.Name, Type: t})
		}
		return abi.NewStruct(s), nil

	case *ast.Unary:
		return c.checkUnary(x, expected, scope)

	case *ast.Binary:
		return c.checkBinary(x, scope)

	case *ast.Dot:
		return c.checkDot(x, scope)

	case *ast.IndexExpr:
		return c.checkIndex(x, scope)

	case *ast.Call:
		return c.checkCall(x, scope)
	}
	return abi.Type{}, c.p.semErr(e, "unsupported expression")
}

func (c *checker) checkNumberLit(x *ast.NumberLit, expected *abi.Type) (abi.Type, error) {
	if expected == nil || !isNumeric(*expected) {
		return abi.NewPrimitive(abi.Float32), nil
	}
	t := *expected
	if isInteger(t) {
		if x.HasDecimal || x.Value != math.Trunc(x.Value) {
			return abi.Type{}, c.p.semErr(x, "type mismatch: %s literal cannot have a fractional part", t)
		}
		if !literalFits(x.Value, t.Primitive) {
			return abi.Type{}, c.p.semErr(x, "literal out of range for %s", t)
		}
	}
	return t, nil
}

func literalFits(v float64, p abi.PrimitiveType) bool {
	switch p {
	case abi.UInt32:
		return v >= 0 && v <= math.MaxUint32
	case abi.UInt64:
		return v >= 0
	case abi.Int32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	case abi.Int64:
		return true
	}
	return true
}

func (c *checker) checkArrayLit(x *ast.ArrayLit, expected *abi.Type, scope *env) (abi.Type, error) {
	var elemExpected *abi.Type
	if expected != nil && expected.Kind == abi.KindArray {
		elemExpected = expected.Inner
	}
	if len(x.Elems) == 0 {
		if elemExpected != nil {
			return abi.NewArray(*elemExpected), nil
		}
		// An untyped [] defaults to a u32 element type.
		return abi.NewArray(abi.NewPrimitive(abi.UInt32)), nil
	}
	first, err := c.checkExpr(x.Elems[0], elemExpected, scope)
	if err != nil {
		return abi.Type{}, err
	}
	for _, elem := range x.Elems[1:] {
		t, err := c.checkExpr(elem, &first, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !t.Equal(first) {
			return abi.Type{}, c.p.semErr(elem, "array elements must all have the same type: found %s and %s", first, t)
		}
	}
	return abi.NewArray(first), nil
}

func (c *checker) checkUnary(x *ast.Unary, expected *abi.Type, scope *env) (abi.Type, error) {
	switch x.Op {
	case ast.OpNot:
		t, err := c.checkExpr(x.X, nil, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !t.IsPrimitive(abi.Boolean) && t.Kind != abi.KindNullable {
			return abi.Type{}, c.p.semErr(x, "operator ! expects a boolean or optional value, found %s", t)
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case ast.OpBitNot:
		t, err := c.checkExpr(x.X, expected, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !isInteger(t) {
			return abi.Type{}, c.p.semErr(x, "operator ~ expects an integer, found %s", t)
		}
		return t, nil

	case ast.OpNegate:
		t, err := c.checkExpr(x.X, expected, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !isNumeric(t) {
			return abi.Type{}, c.p.semErr(x, "operator - expects a number, found %s", t)
		}
		if t.IsPrimitive(abi.UInt32) || t.IsPrimitive(abi.UInt64) {
			return abi.Type{}, c.p.semErr(x, "cannot negate unsigned %s", t)
		}
		return t, nil
	}
	return abi.Type{}, c.p.semErr(x, "unsupported operator")
}

// binaryOperands types both operands of a homogeneous operator, letting a
// numeric literal on either side take the type of the other.
func (c *checker) binaryOperands(x *ast.Binary, scope *env) (abi.Type, abi.Type, error) {
	_, lhsLit := x.LHS.(*ast.NumberLit)
	_, rhsLit := x.RHS.(*ast.NumberLit)

	if lhsLit && !rhsLit {
		rt, err := c.checkExpr(x.RHS, nil, scope)
		if err != nil {
			return abi.Type{}, abi.Type{}, err
		}
		lt, err := c.checkExpr(x.LHS, &rt, scope)
		return lt, rt, err
	}
	lt, err := c.checkExpr(x.LHS, nil, scope)
	if err != nil {
		return abi.Type{}, abi.Type{}, err
	}
	rt, err := c.checkExpr(x.RHS, &lt, scope)
	return lt, rt, err
}

func (c *checker) checkBinary(x *ast.Binary, scope *env) (abi.Type, error) {
	switch x.Op {
	case ast.OpAssign, ast.OpAssignAdd, ast.OpAssignSub:
		return c.checkAssign(x, scope)

	case ast.OpAnd, ast.OpOr:
		for _, operand := range []ast.Expression{x.LHS, x.RHS} {
			t, err := c.checkExpr(operand, nil, scope)
			if err != nil {
				return abi.Type{}, err
			}
			if !t.IsPrimitive(abi.Boolean) {
				return abi.Type{}, c.p.semErr(operand, "operator %s expects booleans, found %s", x.Op, t)
			}
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case ast.OpEqual, ast.OpNotEqual:
		lt, rt, err := c.binaryOperands(x, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !equatable(lt, rt) {
			return abi.Type{}, c.p.semErr(x, "operator %s expects matching operand types, found %s and %s", x.Op, lt, rt)
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case ast.OpLessThan, ast.OpLessThanOrEqual, ast.OpGreaterThan, ast.OpGreaterThanOrEqual:
		lt, rt, err := c.binaryOperands(x, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !lt.Equal(rt) || !isNumeric(lt) {
			return abi.Type{}, c.p.semErr(x, "operator %s expects matching numeric operands, found %s and %s", x.Op, lt, rt)
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case ast.OpAdd:
		lt, rt, err := c.binaryOperands(x, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if lt.Kind == abi.KindString && rt.Kind == abi.KindString {
			return abi.NewString(), nil
		}
		return c.arithmeticResult(x, lt, rt)

	case ast.OpSubtract, ast.OpMultiply, ast.OpDivide:
		lt, rt, err := c.binaryOperands(x, scope)
		if err != nil {
			return abi.Type{}, err
		}
		return c.arithmeticResult(x, lt, rt)

	case ast.OpModulo, ast.OpShiftLeft, ast.OpShiftRight,
		ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		lt, rt, err := c.binaryOperands(x, scope)
		if err != nil {
			return abi.Type{}, err
		}
		// Integer-only operators reject floats, including `number`.
		if !lt.Equal(rt) || !isInteger(lt) {
			return abi.Type{}, c.p.semErr(x, "operator %s expects matching integer operands, found %s and %s", x.Op, lt, rt)
		}
		return lt, nil

	case ast.OpExponent:
		return abi.Type{}, c.p.semErr(x, "operator ** is not supported by the target")
	}
	return abi.Type{}, c.p.semErr(x, "unsupported operator")
}

func (c *checker) arithmeticResult(x *ast.Binary, lt, rt abi.Type) (abi.Type, error) {
	if !lt.Equal(rt) || !isNumeric(lt) {
		return abi.Type{}, c.p.semErr(x, "operator %s expects matching numeric operands, found %s and %s", x.Op, lt, rt)
	}
	if lt.IsPrimitive(abi.Float64) {
		return abi.Type{}, c.p.semErr(x, "f64 arithmetic is not supported by the target")
	}
	return lt, nil
}

func equatable(lt, rt abi.Type) bool {
	if lt.Kind == abi.KindNullable && !(rt.Kind == abi.KindNullable) {
		return lt.Inner.Equal(rt)
	}
	if rt.Kind == abi.KindNullable && !(lt.Kind == abi.KindNullable) {
		return rt.Inner.Equal(lt)
	}
	if !lt.Equal(rt) {
		return false
	}
	switch lt.Kind {
	case abi.KindPrimitive, abi.KindString, abi.KindPublicKey, abi.KindHash,
		abi.KindContractRef, abi.KindNullable:
		return true
	}
	return false
}

func (c *checker) checkAssign(x *ast.Binary, scope *env) (abi.Type, error) {
	switch x.LHS.(type) {
	case *ast.Ident, *ast.Dot, *ast.IndexExpr:
	default:
		return abi.Type{}, c.p.semErr(x.LHS, "cannot assign to this expression")
	}

	lt, err := c.checkExpr(x.LHS, nil, scope)
	if err != nil {
		return abi.Type{}, err
	}

	expected := lt
	if lt.Kind == abi.KindNullable {
		expected = *lt.Inner
	}
	rt, err := c.checkExpr(x.RHS, &expected, scope)
	if err != nil {
		return abi.Type{}, err
	}

	if x.Op != ast.OpAssign {
		// += and -= require arithmetic on the left type.
		if _, err := c.arithmeticResult(x, expected, rt); err != nil {
			return abi.Type{}, err
		}
		return lt, nil
	}

	if !rt.Equal(lt) && !(lt.Kind == abi.KindNullable && rt.Equal(*lt.Inner)) {
		return abi.Type{}, c.p.semErr(x, "type mismatch: cannot assign %s to %s", rt, lt)
	}
	return lt, nil
}

func (c *checker) checkDot(x *ast.Dot, scope *env) (abi.Type, error) {
	t, err := c.checkExpr(x.X, nil, scope)
	if err != nil {
		return abi.Type{}, err
	}

	switch t.Kind {
	case abi.KindStruct:
		fieldType, _, ok := t.Struct.Field(x.Field)
		if !ok {
			return abi.Type{}, c.p.semErr(x, "unknown field `%s` on %s", x.Field, t)
		}
		return fieldType, nil
	case abi.KindContractRef:
		if x.Field != "id" {
			return abi.Type{}, c.p.semErr(x, "only `id` can be read through a contract reference")
		}
		return abi.NewString(), nil
	case abi.KindArray, abi.KindString, abi.KindBytes:
		if x.Field == "length" {
			return abi.NewPrimitive(abi.UInt32), nil
		}
		return abi.Type{}, c.p.semErr(x, "unknown field `%s` on %s", x.Field, t)
	}
	return abi.Type{}, c.p.semErr(x, "cannot access field `%s` on %s", x.Field, t)
}

func (c *checker) checkIndex(x *ast.IndexExpr, scope *env) (abi.Type, error) {
	t, err := c.checkExpr(x.X, nil, scope)
	if err != nil {
		return abi.Type{}, err
	}

	switch t.Kind {
	case abi.KindArray:
		u32 := abi.NewPrimitive(abi.UInt32)
		idxType, err := c.checkExpr(x.Idx, &u32, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !idxType.Equal(u32) {
			return abi.Type{}, c.p.semErr(x.Idx, "array index must be a u32, found %s", idxType)
		}
		return *t.Inner, nil
	case abi.KindMap:
		idxType, err := c.checkExpr(x.Idx, t.Key, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !idxType.Equal(*t.Key) {
			return abi.Type{}, c.p.semErr(x.Idx, "map key must be %s, found %s", t.Key, idxType)
		}
		return *t.Value, nil
	}
	return abi.Type{}, c.p.semErr(x, "cannot index into %s", t)
}
