package compile

import (
	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
)

// compileFunctionCall inlines a function body. Arguments are copied into
// fresh symbols so mutation inside the callee cannot alias the caller's
// variables; `this` is passed by reference.
func (c *Compiler) compileFunctionCall(
	fn *ast.Function, args []Symbol, this *Symbol, scope *Scope,
) (Symbol, error) {
	self := c.st.self
	if this == nil {
		self = nil
	}
	returnType, err := c.st.program.ReturnType(self, fn)
	if err != nil {
		return Symbol{}, err
	}
	resultType := abi.NewPrimitive(abi.Boolean)
	if returnType != nil {
		resultType = *returnType
	}
	returnResult := c.mem().AllocateSymbol(resultType)

	fnScope := scope.child()
	if this != nil {
		fnScope.add("this", *this)
	}

	body, err := c.collect(func(fc *Compiler) error {
		for i, param := range fn.Parameters {
			arg := fc.mem().AllocateSymbol(args[i].Type)
			fc.copySymbol(arg, args[i])
			fnScope.add(param.Name, arg)
		}
		for _, stmt := range fn.Statements {
			if err := fc.compileStatement(stmt, fnScope, returnResult); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}

	c.emit(Instruction{Op: OpAbstract, Abstract: AbstractInlinedFunction, Inlined: body})
	return returnResult, nil
}

func (c *Compiler) compileStatements(stmts []ast.Statement, scope *Scope, returnResult Symbol) error {
	for _, stmt := range stmts {
		if err := c.compileStatement(stmt, scope, returnResult); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(stmt ast.Statement, scope *Scope, returnResult Symbol) error {
	switch s := stmt.(type) {
	case *ast.Break:
		c.emit(Instruction{Op: OpAbstract, Abstract: AbstractBreak})
		return nil

	case *ast.Return:
		value, err := c.compileExpression(s.Value, &returnResult.Type, scope)
		if err != nil {
			return err
		}
		c.copySymbol(returnResult, value)
		c.emit(Instruction{Op: OpAbstract, Abstract: AbstractReturn})
		return nil

	case *ast.Throw:
		_, err := c.compileExpression(s.Value, nil, scope)
		return err

	case *ast.Let:
		return c.compileLet(s, scope)

	case *ast.If:
		return c.compileIf(s, scope, returnResult)

	case *ast.While:
		return c.compileWhile(s, scope, returnResult)

	case *ast.For:
		return c.compileFor(s, scope, returnResult)

	case *ast.ExprStatement:
		_, err := c.compileExpression(s.Expr, nil, scope)
		return err
	}
	return c.codegenErr(stmt, "unsupported statement")
}

func (c *Compiler) compileLet(s *ast.Let, scope *Scope) error {
	var expected *abi.Type
	if s.Type != nil {
		t, err := c.st.program.AbiType(c.st.self, true, s.Type)
		if err != nil {
			return err
		}
		expected = &t
	}
	value, err := c.compileExpression(s.Value, expected, scope)
	if err != nil {
		return err
	}
	// Copy into a fresh symbol: identifier expressions return the storage
	// of the variable itself.
	local := c.mem().AllocateSymbol(value.Type)
	c.copySymbol(local, value)
	scope.add(s.Name, local)
	return nil
}

// compileCondition lowers a condition branch and returns the instructions
// plus the scope narrowing to apply to the taken branch.
func (c *Compiler) compileCondition(cond ast.Expression, scope *Scope) ([]Instruction, *uint32, error) {
	var narrowAddr *uint32
	insts, err := c.collect(func(cc *Compiler) error {
		sym, err := cc.compileExpression(cond, nil, scope)
		if err != nil {
			return err
		}
		if sym.Type.Kind == abi.KindNullable {
			// A nullable condition is a null test, and the tested value is
			// known non-null in the taken branch.
			addr := sym.Addr
			narrowAddr = &addr
			sym = nullableIsNotNull(sym)
		}
		cc.readMem(sym)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return insts, narrowAddr, nil
}

func (c *Compiler) compileIf(s *ast.If, scope *Scope, returnResult Symbol) error {
	scope = scope.child()
	condition, narrowAddr, err := c.compileCondition(s.Cond, scope)
	if err != nil {
		return err
	}

	thenScope := scope.child()
	if narrowAddr != nil {
		thenScope.nonNullAddrs = append(thenScope.nonNullAddrs, *narrowAddr)
	}
	then, err := c.collect(func(bc *Compiler) error {
		return bc.compileStatements(s.Then, thenScope, returnResult)
	})
	if err != nil {
		return err
	}

	els, err := c.collect(func(bc *Compiler) error {
		return bc.compileStatements(s.Else, scope.child(), returnResult)
	})
	if err != nil {
		return err
	}

	c.emit(ifTrue(condition, then, els))
	return nil
}

func (c *Compiler) compileWhile(s *ast.While, scope *Scope, returnResult Symbol) error {
	scope = scope.child()
	condition, _, err := c.compileCondition(s.Cond, scope)
	if err != nil {
		return err
	}
	body, err := c.collect(func(bc *Compiler) error {
		return bc.compileStatements(s.Body, scope, returnResult)
	})
	if err != nil {
		return err
	}
	c.emit(whileLoop(condition, body))
	return nil
}

// compileFor desugars for(init; cond; post) into init; while(cond){body; post}.
func (c *Compiler) compileFor(s *ast.For, scope *Scope, returnResult Symbol) error {
	scope = scope.child()

	switch {
	case s.Init.Let != nil:
		if err := c.compileLet(s.Init.Let, scope); err != nil {
			return err
		}
	case s.Init.Expr != nil:
		if _, err := c.compileExpression(s.Init.Expr, nil, scope); err != nil {
			return err
		}
	}

	condition, _, err := c.compileCondition(s.Cond, scope)
	if err != nil {
		return err
	}

	body, err := c.collect(func(bc *Compiler) error {
		bodyScope := scope.child()
		if err := bc.compileStatements(s.Body, bodyScope, returnResult); err != nil {
			return err
		}
		_, err := bc.compileExpression(s.Post, nil, scope)
		return err
	})
	if err != nil {
		return err
	}

	c.emit(whileLoop(condition, body))
	return nil
}
