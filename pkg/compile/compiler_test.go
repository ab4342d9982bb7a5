package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/check"
	"github.com/polylang/polylang/pkg/parse"
)

func compileSource(t *testing.T, source, contract, function string) *Program {
	t.Helper()
	prog, perr := parse.Parse(source)
	require.Nil(t, perr, "parse error: %v", perr)
	checked, err := check.Check(source, prog)
	require.NoError(t, err)
	compiled, err := Compile(checked, contract, function)
	require.NoError(t, err)
	return compiled
}

const helloWorld = `
	contract HelloWorld {
		sum: i32;

		function add(a: i32, b: i32): i32 {
			this.sum = a + b;
			return this.sum;
		}
	}
`

func TestCompile_HelloWorld(t *testing.T) {
	p := compileSource(t, helloWorld, "HelloWorld", "add")

	assert.True(t, strings.HasPrefix(p.Code, ABIPrefix))
	assert.Contains(t, p.Code, "use.std::math::u64")
	assert.Contains(t, p.Code, "begin\n")
	assert.True(t, strings.HasSuffix(p.Code, "end\n"))
	// i32 addition lowers to the single wrapping op.
	assert.Contains(t, p.Code, "u32wrapping_add")
	// The input hash is checked and the output hash recomputed.
	assert.Contains(t, p.Code, "hmerge")
	// Inputs arrive on the advice tape.
	assert.Contains(t, p.Code, "adv_push.1")

	require.NotNil(t, p.Abi.ThisType)
	fields := p.Abi.ThisType.Struct.Fields
	require.Len(t, fields, 2)
	assert.Equal(t, "id", fields[0].Name)
	assert.Equal(t, "sum", fields[1].Name)
	require.Len(t, p.Abi.ParamTypes, 2)
	assert.True(t, p.Abi.ParamTypes[0].IsPrimitive(abi.Int32))
	require.NotNil(t, p.Abi.ResultType)
	assert.True(t, p.Abi.ResultType.IsPrimitive(abi.Int32))
	assert.False(t, p.Abi.ReadAuth)
	require.NotNil(t, p.Abi.ThisAddr)
}

func TestCompile_Deterministic(t *testing.T) {
	a := compileSource(t, helloWorld, "HelloWorld", "add")
	b := compileSource(t, helloWorld, "HelloWorld", "add")
	assert.Equal(t, a.Code, b.Code)
}

func TestCompile_AbiCommentRoundTrip(t *testing.T) {
	p := compileSource(t, helloWorld, "HelloWorld", "add")
	extracted, err := ExtractABI(p.Code)
	require.NoError(t, err)
	assert.Equal(t, p.Abi.ParamTypes, extracted.ParamTypes)
	assert.Equal(t, *p.Abi.ThisAddr, *extracted.ThisAddr)
	assert.True(t, extracted.ThisType.Equal(*p.Abi.ThisType))

	_, err = ExtractABI("begin\nend\n")
	require.Error(t, err)
}

func TestCompile_Fibonacci(t *testing.T) {
	p := compileSource(t, `
		contract Fibonacci {
			fibVal: u32;

			function main(p: u32, a: u32, b: u32) {
				for (let i: u32 = 0; i < p; i++) {
					let c = a.wrappingAdd(b);
					a = b;
					b = c;
				}
				this.fibVal = a;
			}
		}
	`, "Fibonacci", "main")

	assert.Contains(t, p.Code, "while.true")
	assert.Contains(t, p.Code, "u32wrapping_add")
	assert.Nil(t, p.Abi.ResultType)
	require.Len(t, p.Abi.ParamTypes, 3)
}

func TestCompile_ReverseArray(t *testing.T) {
	p := compileSource(t, `
		contract ReverseArray {
			elements: number[];

			function reverse(): number[] {
				let reversed: number[] = [];
				let i: u32 = 0;
				let one: u32 = 1;
				let len: u32 = this.elements.length;

				while (i < len) {
					let idx: u32 = len - i - one;
					reversed.push(this.elements[idx]);
					i = i + one;
				}

				return reversed;
			}
		}
	`, "ReverseArray", "reverse")

	require.NotNil(t, p.Abi.ResultType)
	assert.Equal(t, abi.KindArray, p.Abi.ResultType.Kind)
	assert.Contains(t, p.Code, "while.true")
}

func TestCompile_BinarySearch(t *testing.T) {
	p := compileSource(t, `
		contract BinarySearch {
			arr: i32[];
			found: boolean;
			foundPos: u32;

			function search(e: i32) {
				let lo: u32 = 0;
				let hi: u32 = this.arr.length;
				this.found = false;
				this.foundPos = 0;

				while (lo < hi) {
					let mid: u32 = lo + (hi - lo) / 2;
					if (this.arr[mid] == e) {
						this.found = true;
						this.foundPos = mid;
						break;
					}
					if (this.arr[mid] < e) {
						lo = mid + 1;
					} else {
						hi = mid;
					}
				}
			}
		}
	`, "BinarySearch", "search")

	// break lowers into a guard flag checked by the loop condition.
	assert.Contains(t, p.Code, "if.true")
	assert.Contains(t, p.Code, "while.true")
}

func TestCompile_AccountWithdraw(t *testing.T) {
	p := compileSource(t, `
		contract Account {
			id: string;
			balance: number;

			function withdraw(amt: number) {
				if (this.balance < amt) {
					error('Insufficient balance');
				}
				this.balance -= amt;
			}
		}
	`, "Account", "withdraw")

	// number arithmetic pulls in the float prelude...
	assert.Contains(t, p.Code, "proc.f32_sub")
	assert.Contains(t, p.Code, "proc.f32_lt")
	// ...and error() publishes the message then fails an assert.
	assert.Contains(t, p.Code, "push.0\n")
	assert.Contains(t, p.Code, "assert")
}

func TestCompile_CrossContractReference(t *testing.T) {
	p := compileSource(t, `
		contract Country {
			id: string;
			name: string;
		}
		contract City {
			id: string;
			name: string;
			country: Country;

			constructor(id: string, name: string, country: Country) {
				this.id = id;
				this.name = name;
				this.country = country;
			}
		}
	`, "City", "constructor")

	// A reference materializes as its id only; no Country fields appear in
	// the City layout.
	typ, _, ok := p.Abi.ThisType.Struct.Field("country")
	require.True(t, ok)
	assert.Equal(t, abi.KindContractRef, typ.Kind)
	assert.Equal(t, uint32(2), typ.Width())
	assert.Equal(t, abi.KindContractRef, p.Abi.ParamTypes[2].Kind)
}

func TestCompile_SelfDestruct(t *testing.T) {
	p := compileSource(t, `
		contract Burnable {
			id: string;
			burn() { selfdestruct(); }
		}
	`, "Burnable", "burn")

	// The tombstone flag lives at the reserved address.
	assert.Contains(t, p.Code, "mem_store.6")
}

func TestCompile_ReadAuthFlag(t *testing.T) {
	withRead := compileSource(t, `
		contract Gated {
			id: string;
			owner?: PublicKey;
			claim() {
				if (ctx.publicKey) {
					this.owner = ctx.publicKey;
				}
			}
		}
	`, "Gated", "claim")
	assert.True(t, withRead.Abi.ReadAuth)

	withoutRead := compileSource(t, helloWorld, "HelloWorld", "add")
	assert.False(t, withoutRead.Abi.ReadAuth)
}

func TestCompile_FreeFunction(t *testing.T) {
	p := compileSource(t, `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`, "", "add")

	assert.Nil(t, p.Abi.ThisType)
	assert.Nil(t, p.Abi.ThisAddr)
	require.NotNil(t, p.Abi.ResultType)
}

func TestCompile_UnknownEntryPoints(t *testing.T) {
	prog, perr := parse.Parse(helloWorld)
	require.Nil(t, perr)
	checked, err := check.Check(helloWorld, prog)
	require.NoError(t, err)

	_, err = Compile(checked, "Missing", "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown contract `Missing`")

	_, err = Compile(checked, "HelloWorld", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown function `missing`")
}

func TestCompile_LogAndMaps(t *testing.T) {
	p := compileSource(t, `
		contract Tally {
			id: string;
			votes: map<string, u32>;

			function vote(name: string) {
				this.votes[name] = 1;
				log('voted');
			}
		}
	`, "Tally", "vote")

	// Map lookup is a linear scan with in-place update or append.
	assert.Contains(t, p.Code, "while.true")
	assert.Contains(t, p.Code, "mem_store.4")
	assert.Contains(t, p.Code, "mem_store.5")
}

func TestCompile_PreludeDependencyOrder(t *testing.T) {
	p := compileSource(t, `
		contract Math {
			x: number;
			f(a: number, b: number) { this.x = a / b; }
		}
	`, "Math", "f")

	// Helpers must be defined before their callers.
	unpack := strings.Index(p.Code, "proc.f32_unpack")
	div := strings.Index(p.Code, "proc.f32_div")
	require.GreaterOrEqual(t, unpack, 0)
	require.GreaterOrEqual(t, div, 0)
	assert.Less(t, unpack, div)
}
