package jsgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/parse"
	"github.com/polylang/polylang/pkg/stableast"
)

func TestGenerateContract(t *testing.T) {
	prog, perr := parse.Parse(`
		contract Account {
			id: string;
			balance: number;

			withdraw(amount: number) { this.balance -= amount; }
			deposit(amount: number, memo?: string) { this.balance += amount; }
		}
	`)
	require.Nil(t, perr)
	root, err := stableast.FromProgram("", prog)
	require.NoError(t, err)

	out := GenerateContract(root[0].Contract)

	assert.Contains(t, out.Code, "const instance = $$__instance;")
	assert.Contains(t, out.Code, "instance.withdraw = function withdraw (amount) {\nthis.balance -= amount;\n}")
	assert.Contains(t, out.Code, "instance.deposit = function deposit (amount, memo) {")
	assert.Contains(t, out.Code, "function error(str)")
}

func TestGenerateContract_NoMethods(t *testing.T) {
	prog, perr := parse.Parse("contract Empty { id: string; }")
	require.Nil(t, perr)
	root, err := stableast.FromProgram("", prog)
	require.NoError(t, err)

	out := GenerateContract(root[0].Contract)
	assert.Contains(t, out.Code, "const instance = $$__instance;")
}
