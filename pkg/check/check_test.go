package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/parse"
)

func checkSource(t *testing.T, source string) (*Program, error) {
	t.Helper()
	prog, perr := parse.Parse(source)
	require.Nil(t, perr, "parse error: %v", perr)
	return Check(source, prog)
}

func mustCheck(t *testing.T, source string) *Program {
	t.Helper()
	p, err := checkSource(t, source)
	require.NoError(t, err)
	return p
}

func TestCheck_ImplicitID(t *testing.T) {
	p := mustCheck(t, "contract Account { balance: number; }")
	c, ok := p.Contract("Account")
	require.True(t, ok)
	require.Len(t, c.Struct.Fields, 2)
	assert.Equal(t, "id", c.Struct.Fields[0].Name)
	assert.Equal(t, abi.NewString(), c.Struct.Fields[0].Type)
	assert.Equal(t, "balance", c.Struct.Fields[1].Name)
}

func TestCheck_DeclaredIDKeepsPosition(t *testing.T) {
	p := mustCheck(t, "contract City { name: string; id: string; }")
	c, _ := p.Contract("City")
	require.Len(t, c.Struct.Fields, 2)
	assert.Equal(t, "name", c.Struct.Fields[0].Name)
	assert.Equal(t, "id", c.Struct.Fields[1].Name)
}

func TestCheck_IDMustBeString(t *testing.T) {
	_, err := checkSource(t, "contract C { id: number; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "`id` must be a required string")
}

func TestCheck_OptionalFieldIsNullable(t *testing.T) {
	p := mustCheck(t, "contract C { name?: string; }")
	c, _ := p.Contract("C")
	typ, _, ok := c.Struct.Field("name")
	require.True(t, ok)
	assert.Equal(t, abi.KindNullable, typ.Kind)
	assert.Equal(t, abi.KindString, typ.Inner.Kind)
}

func TestCheck_CrossContractReference(t *testing.T) {
	p := mustCheck(t, `
		contract Country { id: string; name: string; }
		contract City { id: string; country: Country; }
	`)
	city, _ := p.Contract("City")
	typ, _, _ := city.Struct.Field("country")
	assert.Equal(t, abi.NewContractRef("Country"), typ)

	country, _ := p.Contract("Country")
	assert.Contains(t, city.Refs, country.Index)
}

func TestCheck_CyclicReferencesAllowed(t *testing.T) {
	// A references B references A; the arena holds indices, not embeddings.
	p := mustCheck(t, `
		contract A { id: string; b: B; }
		contract B { id: string; a: A; }
	`)
	a, _ := p.Contract("A")
	b, _ := p.Contract("B")
	assert.Contains(t, a.Refs, b.Index)
	assert.Contains(t, b.Refs, a.Index)
}

func TestCheck_UnknownContract(t *testing.T) {
	_, err := checkSource(t, "contract City { country: Country; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown contract `Country`")
}

func TestCheck_UnknownIdentifier(t *testing.T) {
	_, err := checkSource(t, "contract C { f() { return missing; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown identifier `missing`")
}

func TestCheck_UnknownField(t *testing.T) {
	_, err := checkSource(t, "contract C { a: number; f() { this.b = 1; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field `b`")
}

func TestCheck_TypeMismatch(t *testing.T) {
	_, err := checkSource(t, "contract C { a: number; f(s: string) { this.a = s; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot assign")
}

func TestCheck_NoImplicitNumericCoercion(t *testing.T) {
	_, err := checkSource(t, "contract C { f(a: u32, b: i32) { let x = a + b; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matching numeric operands")
}

func TestCheck_LiteralTakesContextType(t *testing.T) {
	mustCheck(t, `
		contract C {
			n: u32;
			f(p: u32) {
				for (let i: u32 = 0; i < p; i++) {
					this.n = this.n.wrappingAdd(1);
				}
			}
		}
	`)
}

func TestCheck_FractionalLiteralRejectedForInteger(t *testing.T) {
	_, err := checkSource(t, "contract C { f() { let x: u32 = 1.5; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fractional part")
}

func TestCheck_NonHomogeneousArray(t *testing.T) {
	_, err := checkSource(t, "contract C { f(s: string) { let xs = [1, s]; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same type")
}

func TestCheck_ArrayIndexMustBeU32(t *testing.T) {
	_, err := checkSource(t, "contract C { xs: number[]; f(i: i32) { let x = this.xs[i]; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array index must be a u32")

	mustCheck(t, "contract C { xs: number[]; f(i: u32) { let x = this.xs[i]; } }")
}

func TestCheck_WrongArity(t *testing.T) {
	_, err := checkSource(t, `
		function add(a: i32, b: i32): i32 { return a + b; }
		contract C { f() { let x = add(1); } }
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 arguments, found 1")
}

func TestCheck_AssignToNonLvalue(t *testing.T) {
	_, err := checkSource(t, "contract C { f(a: i32) { a + 1 = 2; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot assign to this expression")
}

func TestCheck_MapKeyRestriction(t *testing.T) {
	_, err := checkSource(t, "contract C { m: map<boolean, string>; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map keys must be strings or numbers")

	mustCheck(t, "contract C { m: map<string, number>; n: map<u32, string>; }")
}

func TestCheck_IntegerOnlyOperatorsRejectNumber(t *testing.T) {
	_, err := checkSource(t, "contract C { f(a: number, b: number) { let x = a % b; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer operands")

	mustCheck(t, "contract C { f(a: u32, b: u32) { let x = a % b; } }")
}

func TestCheck_RefFieldAccess(t *testing.T) {
	mustCheck(t, `
		contract Country { id: string; }
		contract City { country: Country; f(): string { return this.country.id; } }
	`)

	_, err := checkSource(t, `
		contract Country { id: string; name: string; }
		contract City { country: Country; f(): string { return this.country.name; } }
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only `id` can be read through a contract reference")
}

func TestCheck_CrossContractCallIllegal(t *testing.T) {
	_, err := checkSource(t, `
		contract Country { id: string; poke() {} }
		contract City { country: Country; f() { this.country.poke(); } }
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross-contract method calls are illegal")
}

func TestCheck_CtxPublicKey(t *testing.T) {
	mustCheck(t, `
		contract C {
			owner?: PublicKey;
			constructor() {
				if (ctx.publicKey) {
					this.owner = ctx.publicKey;
				}
			}
		}
	`)
}

func TestCheck_ArrayLengthAndPush(t *testing.T) {
	mustCheck(t, `
		contract C {
			xs: u32[];
			f() {
				let n: u32 = this.xs.length;
				this.xs.push(n);
			}
		}
	`)
}

func TestCheck_EmptyArrayTakesAnnotation(t *testing.T) {
	p := mustCheck(t, "contract C { f() { let xs: u32[] = []; xs.push(1); } }")
	_, ok := p.Contract("C")
	assert.True(t, ok)
}

func TestCheck_WrappingMethods(t *testing.T) {
	mustCheck(t, "contract C { f(a: u32, b: u32) { let c = a.wrappingAdd(b); } }")

	_, err := checkSource(t, "contract C { f(a: u32, b: u64) { let c = a.wrappingAdd(b); } }")
	require.Error(t, err)
}

func TestCheck_ErrorBuiltin(t *testing.T) {
	mustCheck(t, `
		contract Account {
			balance: number;
			withdraw(amt: number) {
				if (this.balance < amt) {
					error('Insufficient balance');
				}
				this.balance -= amt;
			}
		}
	`)

	_, err := checkSource(t, "contract C { f() { error(42); } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects a string message")
}

func TestCheck_ReturnTypeMismatch(t *testing.T) {
	_, err := checkSource(t, "contract C { f(): u32 { return 'no'; } }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot return")
}

func TestCheck_SelfdestructOnlyInMethods(t *testing.T) {
	mustCheck(t, "contract C { burn() { selfdestruct(); } }")

	_, err := checkSource(t, "function f() { selfdestruct(); }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only valid inside a contract method")
}
