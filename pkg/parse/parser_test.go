package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/ast"
)

func mustParse(t *testing.T, input string) *ast.Program {
	t.Helper()
	prog, err := Parse(input)
	require.Nil(t, err, "parse error: %v", err)
	return prog
}

func TestParse_EmptyContract(t *testing.T) {
	prog := mustParse(t, "contract Test {}")
	require.Len(t, prog.Nodes, 1)
	c := prog.Nodes[0].Contract
	require.NotNil(t, c)
	assert.Equal(t, "Test", c.Name)
	assert.Empty(t, c.Decorators)
	assert.Empty(t, c.Items)
}

func TestParse_ContractFields(t *testing.T) {
	prog := mustParse(t, `
		contract Test {
			name: string;
			age: number;
		}
	`)
	c := prog.Nodes[0].Contract
	require.Len(t, c.Items, 2)

	name := c.Items[0].Field
	require.NotNil(t, name)
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, ast.TypeString, name.Type.Kind)
	assert.True(t, name.Required)

	age := c.Items[1].Field
	require.NotNil(t, age)
	assert.Equal(t, "age", age.Name)
	assert.Equal(t, ast.TypeNumber, age.Type.Kind)
}

func TestParse_AscDescFieldNames(t *testing.T) {
	prog := mustParse(t, "contract Test { asc: string; desc: string; }")
	c := prog.Nodes[0].Contract
	require.Len(t, c.Items, 2)
	assert.Equal(t, "asc", c.Items[0].Field.Name)
	assert.Equal(t, "desc", c.Items[1].Field.Name)
}

func TestParse_Method(t *testing.T) {
	prog := mustParse(t, `
		contract Test {
			function get_age(a: number, b?: string) {
				return 42;
			}
		}
	`)
	c := prog.Nodes[0].Contract
	require.Len(t, c.Items, 1)
	f := c.Items[0].Function
	require.NotNil(t, f)
	assert.Equal(t, "get_age", f.Name)
	require.Len(t, f.Parameters, 2)
	assert.Equal(t, "a", f.Parameters[0].Name)
	assert.True(t, f.Parameters[0].Required)
	assert.Equal(t, "b", f.Parameters[1].Name)
	assert.False(t, f.Parameters[1].Required)
	assert.Nil(t, f.ReturnType)
	assert.Equal(t, "return 42;", f.StatementsCode)

	require.Len(t, f.Statements, 1)
	ret, ok := f.Statements[0].(*ast.Return)
	require.True(t, ok)
	num, ok := ret.Value.(*ast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, 42.0, num.Value)
	assert.False(t, num.HasDecimal)
}

func TestParse_MethodWithoutFunctionKeyword(t *testing.T) {
	prog := mustParse(t, `
		contract Account {
			balance: number;

			transfer (b: record, amount: number) {
				this.balance -= amount;
			}
		}
	`)
	c := prog.Nodes[0].Contract
	require.Len(t, c.Items, 2)
	f := c.Items[1].Function
	require.NotNil(t, f)
	assert.Equal(t, "transfer", f.Name)
	assert.Equal(t, ast.TypeRecord, f.Parameters[0].Type.Kind)
}

func TestParse_Decorators(t *testing.T) {
	prog := mustParse(t, `
		@public
		contract Account {
			@read
			owner: PublicKey;

			@call(owner)
			function noop() {}
		}
	`)
	c := prog.Nodes[0].Contract
	require.Len(t, c.Decorators, 1)
	assert.Equal(t, "public", c.Decorators[0].Name)

	field := c.Items[0].Field
	require.Len(t, field.Decorators, 1)
	assert.Equal(t, "read", field.Decorators[0].Name)
	assert.Equal(t, ast.TypePublicKey, field.Type.Kind)

	fn := c.Items[1].Function
	require.Len(t, fn.Decorators, 1)
	assert.Equal(t, "call", fn.Decorators[0].Name)
	assert.Equal(t, []string{"owner"}, fn.Decorators[0].Arguments)
}

func TestParse_ForeignRecordField(t *testing.T) {
	prog := mustParse(t, "contract test { account: Account; }")
	f := prog.Nodes[0].Contract.Items[0].Field
	assert.Equal(t, ast.TypeForeignRecord, f.Type.Kind)
	assert.Equal(t, "Account", f.Type.Contract)
}

func TestParse_ForeignRecordArray(t *testing.T) {
	prog := mustParse(t, "contract test { people: Person[]; }")
	f := prog.Nodes[0].Contract.Items[0].Field
	require.Equal(t, ast.TypeArray, f.Type.Kind)
	assert.Equal(t, ast.TypeForeignRecord, f.Type.Elem.Kind)
	assert.Equal(t, "Person", f.Type.Elem.Contract)
}

func TestParse_ArrayAndMapFields(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, f *ast.Field)
	}{
		{"contract test { numbers: number[]; }", func(t *testing.T, f *ast.Field) {
			require.Equal(t, ast.TypeArray, f.Type.Kind)
			assert.Equal(t, ast.TypeNumber, f.Type.Elem.Kind)
		}},
		{"contract test { strings: string[]; }", func(t *testing.T, f *ast.Field) {
			require.Equal(t, ast.TypeArray, f.Type.Kind)
			assert.Equal(t, ast.TypeString, f.Type.Elem.Kind)
		}},
		{"contract test { numToStr: map<number, string>; }", func(t *testing.T, f *ast.Field) {
			require.Equal(t, ast.TypeMap, f.Type.Kind)
			assert.Equal(t, ast.TypeNumber, f.Type.Key.Kind)
			assert.Equal(t, ast.TypeString, f.Type.Elem.Kind)
		}},
		{"contract test { strToNum: map<string, number>; }", func(t *testing.T, f *ast.Field) {
			require.Equal(t, ast.TypeMap, f.Type.Kind)
			assert.Equal(t, ast.TypeString, f.Type.Key.Kind)
			assert.Equal(t, ast.TypeNumber, f.Type.Elem.Kind)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prog := mustParse(t, tt.input)
			tt.check(t, prog.Nodes[0].Contract.Items[0].Field)
		})
	}
}

func TestParse_ObjectField(t *testing.T) {
	prog := mustParse(t, "contract test { person: { name: string; age?: number; }; }")
	f := prog.Nodes[0].Contract.Items[0].Field
	require.Equal(t, ast.TypeObject, f.Type.Kind)
	require.Len(t, f.Type.Fields, 2)
	assert.Equal(t, "name", f.Type.Fields[0].Name)
	assert.True(t, f.Type.Fields[0].Required)
	assert.Equal(t, "age", f.Type.Fields[1].Name)
	assert.False(t, f.Type.Fields[1].Required)
}

func TestParse_NestedObjectField(t *testing.T) {
	prog := mustParse(t, "contract test { person: { info: { name: string; }; }; }")
	f := prog.Nodes[0].Contract.Items[0].Field
	require.Equal(t, ast.TypeObject, f.Type.Kind)
	inner := f.Type.Fields[0]
	require.Equal(t, ast.TypeObject, inner.Type.Kind)
	assert.Equal(t, "name", inner.Type.Fields[0].Name)
}

func TestParse_ObjectParameterRejected(t *testing.T) {
	_, err := Parse("contract test { f(x: { a: string; }) {} }")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "object types are not allowed in parameter position")
}

func TestParse_Index(t *testing.T) {
	prog := mustParse(t, `
		contract test {
			person: {
				name: string;
			};

			@index(person.name);
			@index([lastRecordUpdated, desc]);
			@index([field, asc], field2);
		}
	`)
	c := prog.Nodes[0].Contract
	require.Len(t, c.Items, 4)

	idx1 := c.Items[1].Index
	require.NotNil(t, idx1)
	assert.Equal(t, []ast.IndexField{{Path: []string{"person", "name"}, Order: ast.Asc}}, idx1.Fields)

	idx2 := c.Items[2].Index
	assert.Equal(t, []ast.IndexField{{Path: []string{"lastRecordUpdated"}, Order: ast.Desc}}, idx2.Fields)

	idx3 := c.Items[3].Index
	assert.Equal(t, []ast.IndexField{
		{Path: []string{"field"}, Order: ast.Asc},
		{Path: []string{"field2"}, Order: ast.Asc},
	}, idx3.Fields)
}

func TestParse_Comments(t *testing.T) {
	_ = mustParse(t, `
		contract test {
			// This is a comment
			name: string;

			/*
				This is a multiline comment
			*/
			function test() {
				return 1;
			}
		}
	`)
}

func TestParse_StatementsCodeCapture(t *testing.T) {
	prog := mustParse(t, `contract C { f() { this.a = 1; if (x) { log(2); } } }`)
	f := prog.Nodes[0].Contract.Items[0].Function
	assert.Equal(t, "this.a = 1; if (x) { log(2); }", f.StatementsCode)
}

func TestParse_IfWithoutBraces(t *testing.T) {
	prog := mustParse(t, `
		contract C {
			f() {
				if (this.x != y) throw error('invalid user');
				else this.x = y;
			}
		}
	`)
	f := prog.Nodes[0].Contract.Items[0].Function
	require.Len(t, f.Statements, 1)
	ifStmt, ok := f.Statements[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Else, 1)
	_, ok = ifStmt.Then[0].(*ast.Throw)
	assert.True(t, ok)
}

func TestParse_ForLoop(t *testing.T) {
	prog := mustParse(t, `
		contract C {
			f(p: u32) {
				for (let i: u32 = 0; i < p; i += 1) {
					break;
				}
			}
		}
	`)
	f := prog.Nodes[0].Contract.Items[0].Function
	require.Len(t, f.Statements, 1)
	forStmt, ok := f.Statements[0].(*ast.For)
	require.True(t, ok)
	require.NotNil(t, forStmt.Init.Let)
	assert.Equal(t, "i", forStmt.Init.Let.Name)
	require.Len(t, forStmt.Body, 1)
	_, ok = forStmt.Body[0].(*ast.Break)
	assert.True(t, ok)
}

func TestParse_FreeFunction(t *testing.T) {
	prog := mustParse(t, `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	require.Len(t, prog.Nodes, 1)
	f := prog.Nodes[0].Function
	require.NotNil(t, f)
	assert.Equal(t, "add", f.Name)
	require.NotNil(t, f.ReturnType)
	assert.Equal(t, ast.TypeI32, f.ReturnType.Kind)
}

func TestParseExpression_Literals(t *testing.T) {
	e, err := ParseExpression("42")
	require.Nil(t, err)
	num := e.(*ast.NumberLit)
	assert.Equal(t, 42.0, num.Value)
	assert.False(t, num.HasDecimal)

	e, err = ParseExpression("42.0")
	require.Nil(t, err)
	num = e.(*ast.NumberLit)
	assert.Equal(t, 42.0, num.Value)
	assert.True(t, num.HasDecimal)

	e, err = ParseExpression("'hello world'")
	require.Nil(t, err)
	assert.Equal(t, "hello world", e.(*ast.StringLit).Value)
}

func TestParseExpression_Binary(t *testing.T) {
	e, err := ParseExpression("1 > 2")
	require.Nil(t, err)
	bin := e.(*ast.Binary)
	assert.Equal(t, ast.OpGreaterThan, bin.Op)
	assert.Equal(t, 1.0, bin.LHS.(*ast.NumberLit).Value)
	assert.Equal(t, 2.0, bin.RHS.(*ast.NumberLit).Value)
}

func TestParseExpression_Precedence(t *testing.T) {
	// * binds tighter than +.
	e, err := ParseExpression("1 + 2 * 3")
	require.Nil(t, err)
	add := e.(*ast.Binary)
	require.Equal(t, ast.OpAdd, add.Op)
	mul := add.RHS.(*ast.Binary)
	assert.Equal(t, ast.OpMultiply, mul.Op)

	// ** is right-associative.
	e, err = ParseExpression("2 ** 3 ** 2")
	require.Nil(t, err)
	pow := e.(*ast.Binary)
	require.Equal(t, ast.OpExponent, pow.Op)
	assert.Equal(t, 2.0, pow.LHS.(*ast.NumberLit).Value)
	inner := pow.RHS.(*ast.Binary)
	assert.Equal(t, ast.OpExponent, inner.Op)

	// Assignment is right-associative and loosest.
	e, err = ParseExpression("a = b = 1 + 2")
	require.Nil(t, err)
	assign := e.(*ast.Binary)
	require.Equal(t, ast.OpAssign, assign.Op)
	innerAssign := assign.RHS.(*ast.Binary)
	assert.Equal(t, ast.OpAssign, innerAssign.Op)
}

func TestParseExpression_DotCallIndex(t *testing.T) {
	e, err := ParseExpression("get_age(a, b, c)")
	require.Nil(t, err)
	call := e.(*ast.Call)
	assert.Equal(t, "get_age", call.Fn.(*ast.Ident).Name)
	assert.Len(t, call.Args, 3)

	e, err = ParseExpression("a.b")
	require.Nil(t, err)
	dot := e.(*ast.Dot)
	assert.Equal(t, "a", dot.X.(*ast.Ident).Name)
	assert.Equal(t, "b", dot.Field)

	e, err = ParseExpression("xs[0]")
	require.Nil(t, err)
	idx := e.(*ast.IndexExpr)
	assert.Equal(t, "xs", idx.X.(*ast.Ident).Name)

	e, err = ParseExpression("a -= b")
	require.Nil(t, err)
	assignSub := e.(*ast.Binary)
	assert.Equal(t, ast.OpAssignSub, assignSub.Op)
}

func TestParseExpression_Arrays(t *testing.T) {
	e, err := ParseExpression("[]")
	require.Nil(t, err)
	assert.Empty(t, e.(*ast.ArrayLit).Elems)

	e, err = ParseExpression("[1, 2, 3]")
	require.Nil(t, err)
	assert.Len(t, e.(*ast.ArrayLit).Elems, 3)

	e, err = ParseExpression("[[1], [2, 3]]")
	require.Nil(t, err)
	outer := e.(*ast.ArrayLit)
	require.Len(t, outer.Elems, 2)
	assert.Len(t, outer.Elems[1].(*ast.ArrayLit).Elems, 2)
}

func TestParseExpression_DollarIdent(t *testing.T) {
	e, err := ParseExpression("$auth.publicKey != this.publicKey")
	require.Nil(t, err)
	neq := e.(*ast.Binary)
	require.Equal(t, ast.OpNotEqual, neq.Op)
	lhs := neq.LHS.(*ast.Dot)
	assert.Equal(t, "$auth", lhs.X.(*ast.Ident).Name)
}

func TestParse_ErrorUnrecognizedToken(t *testing.T) {
	_, err := Parse("\n            contract test-cities {}\n        ")
	require.NotNil(t, err)
	assert.Equal(t,
		"Error found at line 2, column 25: Unrecognized token \"-\". Expected one of: \"{\"\n"+
			"contract test-cities {}\n"+
			"             ^",
		err.Error())
}

func TestParse_ErrorInvalidToken(t *testing.T) {
	_, err := Parse("\n            contract ą {}\n        ")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Invalid token")
}

func TestParse_ErrorUnexpectedEOF(t *testing.T) {
	_, err := Parse("\n            function x() {\n        ")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Unexpected end of file")
}
