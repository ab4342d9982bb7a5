package check

import (
	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
)

// checkCall types a function or method call: user functions, the closed set
// of built-in functions, and built-in methods on primitive and container
// types. Cross-contract method calls are illegal; only field access through
// a reference is.
func (c *checker) checkCall(x *ast.Call, scope *env) (abi.Type, error) {
	switch fn := x.Fn.(type) {
	case *ast.Ident:
		return c.checkFunctionCall(x, fn.Name, scope)
	case *ast.Dot:
		return c.checkMethodCall(x, fn, scope)
	}
	return abi.Type{}, c.p.semErr(x, "expected a function name")
}

func (c *checker) checkFunctionCall(x *ast.Call, name string, scope *env) (abi.Type, error) {
	switch name {
	case "error":
		if err := c.checkArity(x, 1); err != nil {
			return abi.Type{}, err
		}
		t, err := c.checkExpr(x.Args[0], nil, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if t.Kind != abi.KindString {
			return abi.Type{}, c.p.semErr(x.Args[0], "error() expects a string message, found %s", t)
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case "assert":
		if err := c.checkArity(x, 2); err != nil {
			return abi.Type{}, err
		}
		cond, err := c.checkExpr(x.Args[0], nil, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !cond.IsPrimitive(abi.Boolean) {
			return abi.Type{}, c.p.semErr(x.Args[0], "assert() expects a boolean condition, found %s", cond)
		}
		msg, err := c.checkExpr(x.Args[1], nil, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if msg.Kind != abi.KindString {
			return abi.Type{}, c.p.semErr(x.Args[1], "assert() expects a string message, found %s", msg)
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case "log":
		for _, arg := range x.Args {
			t, err := c.checkExpr(arg, nil, scope)
			if err != nil {
				return abi.Type{}, err
			}
			if t.Kind != abi.KindString && !t.IsPrimitive(abi.UInt32) && !t.IsPrimitive(abi.Boolean) {
				return abi.Type{}, c.p.semErr(arg, "log() cannot log a %s yet", t)
			}
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case "selfdestruct":
		if c.self == nil {
			return abi.Type{}, c.p.semErr(x, "selfdestruct() is only valid inside a contract method")
		}
		if err := c.checkArity(x, 0); err != nil {
			return abi.Type{}, err
		}
		return abi.NewPrimitive(abi.Boolean), nil

	case "mapLength":
		if err := c.checkArity(x, 1); err != nil {
			return abi.Type{}, err
		}
		t, err := c.checkExpr(x.Args[0], nil, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if t.Kind != abi.KindMap {
			return abi.Type{}, c.p.semErr(x.Args[0], "mapLength() expects a map, found %s", t)
		}
		return abi.NewPrimitive(abi.UInt32), nil

	case "arrayPush":
		if err := c.checkArity(x, 2); err != nil {
			return abi.Type{}, err
		}
		arr, err := c.checkExpr(x.Args[0], nil, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if arr.Kind != abi.KindArray {
			return abi.Type{}, c.p.semErr(x.Args[0], "arrayPush() expects an array, found %s", arr)
		}
		elem, err := c.checkExpr(x.Args[1], arr.Inner, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !elem.Equal(*arr.Inner) {
			return abi.Type{}, c.p.semErr(x.Args[1], "cannot push %s onto %s", elem, arr)
		}
		return elem, nil
	}

	fn, ok := c.p.Functions[name]
	if !ok {
		return abi.Type{}, c.p.semErr(x, "unknown identifier `%s`", name)
	}
	return c.checkUserCall(x, fn, scope)
}

func (c *checker) checkUserCall(x *ast.Call, fn *ast.Function, scope *env) (abi.Type, error) {
	params, err := c.p.ParamTypes(nil, fn)
	if err != nil {
		return abi.Type{}, err
	}
	if len(x.Args) != len(params) {
		return abi.Type{}, c.p.semErr(x, "function `%s` expects %d arguments, found %d",
			fn.Name, len(params), len(x.Args))
	}
	for i, arg := range x.Args {
		expected := params[i]
		if expected.Kind == abi.KindNullable {
			expected = *expected.Inner
		}
		t, err := c.checkExpr(arg, &expected, scope)
		if err != nil {
			return abi.Type{}, err
		}
		if !t.Equal(params[i]) && !t.Equal(expected) {
			return abi.Type{}, c.p.semErr(arg, "type mismatch: argument %d of `%s` expects %s, found %s",
				i+1, fn.Name, params[i], t)
		}
	}
	ret, err := c.p.ReturnType(nil, fn)
	if err != nil {
		return abi.Type{}, err
	}
	if ret == nil {
		return abi.NewPrimitive(abi.Boolean), nil
	}
	return *ret, nil
}

func (c *checker) checkMethodCall(x *ast.Call, fn *ast.Dot, scope *env) (abi.Type, error) {
	recv, err := c.checkExpr(fn.X, nil, scope)
	if err != nil {
		return abi.Type{}, err
	}

	switch {
	case recv.IsPrimitive(abi.UInt32) || recv.IsPrimitive(abi.UInt64):
		switch fn.Field {
		case "wrappingAdd", "wrappingSub", "wrappingMul":
			if err := c.checkArity(x, 1); err != nil {
				return abi.Type{}, err
			}
			t, err := c.checkExpr(x.Args[0], &recv, scope)
			if err != nil {
				return abi.Type{}, err
			}
			if !t.Equal(recv) {
				return abi.Type{}, c.p.semErr(x.Args[0], "%s expects a %s operand, found %s", fn.Field, recv, t)
			}
			return recv, nil
		}

	case recv.Kind == abi.KindArray:
		if fn.Field == "push" {
			if err := c.checkArity(x, 1); err != nil {
				return abi.Type{}, err
			}
			t, err := c.checkExpr(x.Args[0], recv.Inner, scope)
			if err != nil {
				return abi.Type{}, err
			}
			if !t.Equal(*recv.Inner) {
				return abi.Type{}, c.p.semErr(x.Args[0], "cannot push %s onto %s", t, recv)
			}
			return t, nil
		}

	case recv.Kind == abi.KindPublicKey:
		if fn.Field == "toHex" {
			if err := c.checkArity(x, 0); err != nil {
				return abi.Type{}, err
			}
			return abi.NewString(), nil
		}

	case recv.Kind == abi.KindContractRef:
		return abi.Type{}, c.p.semErr(x, "cross-contract method calls are illegal; only field access through a reference by id is")
	}

	return abi.Type{}, c.p.semErr(x, "unknown method `%s` on %s", fn.Field, recv)
}

func (c *checker) checkArity(x *ast.Call, want int) error {
	if len(x.Args) != want {
		name := "function"
		switch fn := x.Fn.(type) {
		case *ast.Ident:
			name = "`" + fn.Name + "`"
		case *ast.Dot:
			name = "`" + fn.Field + "`"
		}
		return c.p.semErr(x, "%s expects %d arguments, found %d", name, want, len(x.Args))
	}
	return nil
}
