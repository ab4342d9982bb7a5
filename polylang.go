// Package polylang is the library surface of the Polylang toolchain: a
// statically typed contract language compiled to assembly for a
// STARK-provable stack machine. Parse produces the concrete and stable
// syntax trees, Compile lowers one entry point to VM assembly with its ABI,
// and a compiled [Program] runs against an external [vm.Executor].
package polylang

import (
	"context"
	"encoding/json"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
	"github.com/polylang/polylang/pkg/check"
	"github.com/polylang/polylang/pkg/compile"
	"github.com/polylang/polylang/pkg/jsgen"
	"github.com/polylang/polylang/pkg/parse"
	"github.com/polylang/polylang/pkg/stableast"
	"github.com/polylang/polylang/pkg/validate"
	"github.com/polylang/polylang/pkg/vm"
)

// Parse parses source into the concrete AST and the version-stable wire
// tree. The namespace scopes contract names for cross-program references.
func Parse(source, namespace string) (*ast.Program, stableast.Root, error) {
	prog, perr := parse.Parse(source)
	if perr != nil {
		return nil, nil, perr
	}
	root, err := stableast.FromProgram(namespace, prog)
	if err != nil {
		return nil, nil, err
	}
	return prog, root, nil
}

// Program is a compiled entry point ready to run.
type Program struct {
	// Code is the emitted assembly, including the `# ABI: {...}` comment.
	Code string
	// Abi links the entry point to its input and output layout.
	Abi abi.Abi
}

// Compile parses, checks and lowers one entry point. contractName may be
// empty to compile a free function.
func Compile(source, contractName, functionName string) (*Program, error) {
	prog, perr := parse.Parse(source)
	if perr != nil {
		return nil, perr
	}
	checked, err := check.Check(source, prog)
	if err != nil {
		return nil, err
	}
	compiled, err := compile.Compile(checked, contractName, functionName)
	if err != nil {
		return nil, err
	}
	return &Program{Code: compiled.Code, Abi: compiled.Abi}, nil
}

// Run drives one state transition of the compiled program: thisJSON is the
// record being transformed, argsJSON the method arguments, and ctxPublicKey
// the optional caller identity. When generateProof is false only the trace
// runs; the output still carries hashes and the mutated record.
func (p *Program) Run(
	ctx context.Context,
	executor vm.Executor,
	thisJSON json.RawMessage,
	argsJSON []json.RawMessage,
	ctxPublicKey json.RawMessage,
	generateProof bool,
) (*vm.Output, error) {
	key, err := decodeKey(ctxPublicKey)
	if err != nil {
		return nil, err
	}
	inputs, err := vm.NewInputs(p.Abi, key, thisJSON, argsJSON)
	if err != nil {
		return nil, err
	}
	return vm.Run(ctx, executor, p.Code, inputs, generateProof)
}

func decodeKey(raw json.RawMessage) (*abi.Key, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var key abi.Key
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &key, nil
}

// Verify checks a proof produced by Run against its public inputs.
func Verify(ctx context.Context, executor vm.Executor, req vm.VerifyRequest) (bool, error) {
	return vm.Verify(ctx, executor, req)
}

// ValidateSet type-checks a JSON record against a contract's stable AST; a
// nil return guarantees a later run cannot fail on an ABI type error.
func ValidateSet(contractAST json.RawMessage, dataJSON json.RawMessage) error {
	var contract stableast.Contract
	if err := json.Unmarshal(contractAST, &contract); err != nil {
		return err
	}
	return validate.Set(&contract, dataJSON)
}

// GenerateJSContract cross-compiles a stable-AST contract to a JavaScript
// validator bundle.
func GenerateJSContract(contractAST json.RawMessage) (jsgen.Contract, error) {
	var contract stableast.Contract
	if err := json.Unmarshal(contractAST, &contract); err != nil {
		return jsgen.Contract{}, err
	}
	return jsgen.GenerateContract(&contract), nil
}
