// Package compile lowers a checked program into VM assembly. It manages
// linear-memory layout for structured values, hash accumulators and stack
// discipline, and emits an ABI descriptor alongside the code.
package compile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
	"github.com/polylang/polylang/pkg/check"
	"github.com/polylang/polylang/pkg/diag"
)

// Program is a compiled entry point: the assembly text (with the inline
// `# ABI: {...}` comment) and the parsed ABI.
type Program struct {
	Code string
	Abi  abi.Abi
}

// shared compiler state, common to every instruction branch being built.
type state struct {
	memory   *Memory
	program  *check.Program
	source   string
	self     *check.Contract
	readAuth bool
	prelude  map[string]bool // prelude procedures referenced by the code
}

// Compiler appends instructions for one branch of the instruction tree.
// Branches share the same state; collect builds a child branch.
type Compiler struct {
	st  *state
	ins *[]Instruction
}

func (c *Compiler) emit(insts ...Instruction) {
	*c.ins = append(*c.ins, insts...)
}

func (c *Compiler) comment(format string, args ...any) {
	c.emit(comment(format, args...))
}

// collect runs f against a fresh instruction list and returns it.
func (c *Compiler) collect(f func(*Compiler) error) ([]Instruction, error) {
	var insts []Instruction
	child := Compiler{st: c.st, ins: &insts}
	if err := f(&child); err != nil {
		return nil, err
	}
	return insts, nil
}

func (c *Compiler) mem() *Memory { return c.st.memory }

// usePrelude marks a prelude procedure as needed and returns its exec name.
func (c *Compiler) usePrelude(name string) string {
	c.st.prelude[name] = true
	return name
}

func (c *Compiler) codegenErr(r diag.Ranger, format string, args ...any) *diag.Error {
	err := &diag.Error{
		Type:    diag.CodegenError,
		Message: fmt.Sprintf(format, args...),
	}
	if r != nil {
		err.Context = diag.NewContext("source", c.st.source, r)
	}
	return err
}

// readMem pushes a symbol's words onto the stack, first word on top.
func (c *Compiler) readMem(s Symbol) {
	c.mem().Read(c.ins, s.Addr, s.Width())
}

// writeMem pops a symbol's words off the stack into its memory slot.
func (c *Compiler) writeMem(s Symbol) {
	c.mem().Write(c.ins, s.Addr, stackSources(s.Width()))
}

// copySymbol copies src's words into dst.
func (c *Compiler) copySymbol(dst, src Symbol) {
	c.readMem(src)
	c.writeMem(dst)
}

// Scope maps names to symbols during lowering. Checking has already
// resolved and typed everything; the scope only tracks locations.
type Scope struct {
	parent *Scope
	names  []string
	syms   []Symbol

	// nonNullAddrs lists nullable symbols narrowed by an enclosing
	// `if (x)` null test.
	nonNullAddrs []uint32
}

// NewScope returns an empty root scope.
func NewScope() *Scope { return &Scope{} }

func (s *Scope) child() *Scope { return &Scope{parent: s} }

func (s *Scope) add(name string, sym Symbol) {
	s.names = append(s.names, name)
	s.syms = append(s.syms, sym)
}

func (s *Scope) find(name string) (Symbol, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		for i := len(scope.names) - 1; i >= 0; i-- {
			if scope.names[i] == name {
				return scope.syms[i], true
			}
		}
	}
	return Symbol{}, false
}

func (s *Scope) narrowed(addr uint32) bool {
	for scope := s; scope != nil; scope = scope.parent {
		for _, a := range scope.nonNullAddrs {
			if a == addr {
				return true
			}
		}
	}
	return false
}

// Compile lowers one entry point of a checked program. contractName may be
// empty to compile a free function.
func Compile(prog *check.Program, contractName, functionName string) (*Program, error) {
	st := &state{
		memory:  NewMemory(),
		program: prog,
		source:  prog.Source,
		prelude: map[string]bool{},
	}

	var fn *ast.Function
	if contractName != "" {
		self, ok := prog.Contract(contractName)
		if !ok {
			return nil, &diag.Error{
				Type:    diag.SemanticError,
				Message: fmt.Sprintf("unknown contract `%s`", contractName),
			}
		}
		st.self = self
		fn = self.Methods[functionName]
	}
	if fn == nil {
		fn = prog.Functions[functionName]
	}
	if fn == nil {
		return nil, &diag.Error{
			Type:    diag.SemanticError,
			Message: fmt.Sprintf("unknown function `%s`", functionName),
		}
	}

	paramTypes, err := prog.ParamTypes(st.self, fn)
	if err != nil {
		return nil, err
	}
	returnType, err := prog.ReturnType(st.self, fn)
	if err != nil {
		return nil, err
	}

	var body []Instruction
	c := &Compiler{st: st, ins: &body}

	// The four public stack inputs commit to the input `this`.
	var expectedHash Symbol
	if st.self != nil {
		expectedHash = c.mem().AllocateSymbol(abi.NewHash())
		c.comment("store the expected `this` hash from the public stack")
		c.writeMem(expectedHash)
	}

	// Ambient context arrives on the advice tape before `this` and the
	// arguments.
	ctx := c.mem().AllocateSymbol(abi.NewStruct(check.CtxStruct()))
	if err := c.readStructAdvice(ctx); err != nil {
		return nil, err
	}

	var this Symbol
	var thisAddr *uint32
	if st.self != nil {
		this = c.mem().AllocateSymbol(abi.NewStruct(st.self.Struct))
		if err := c.readStructAdvice(this); err != nil {
			return nil, err
		}
		addr := this.Addr
		thisAddr = &addr
	}

	args := make([]Symbol, 0, len(paramTypes))
	for _, t := range paramTypes {
		arg, err := c.readAdvice(t)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if st.self != nil {
		c.comment("check the input `this` against the committed hash")
		inHash, err := c.hashSymbol(this)
		if err != nil {
			return nil, err
		}
		eq, err := c.compileEq(inHash, expectedHash)
		if err != nil {
			return nil, err
		}
		if err := c.assert(eq, "Hash of this does not match the expected hash"); err != nil {
			return nil, err
		}
	}

	scope := NewScope()
	scope.add("ctx", ctx)

	var thisSym *Symbol
	if st.self != nil {
		thisSym = &this
	}
	result, err := c.compileFunctionCall(fn, args, thisSym, scope)
	if err != nil {
		return nil, err
	}

	c.comment("push the result onto the output stack")
	c.readMem(result)

	if st.self != nil {
		c.comment("push the selfdestruct flag")
		c.emit(memLoad(selfDestructAddr))

		outHash, err := c.hashSymbol(this)
		if err != nil {
			return nil, err
		}
		c.comment("push the output `this` hash")
		c.readMem(outHash)
	}

	lowered := unabstract(body, st.memory.Allocate, new(uint32), new(uint32), new(bool), new(bool), false)

	descriptor := abi.Abi{
		ThisAddr:   thisAddr,
		ParamTypes: paramTypes,
		ResultType: returnType,
		ReadAuth:   st.readAuth,
		StdVersion: abi.StdVersionCurrent,
	}
	if st.self != nil {
		thisType := abi.NewStruct(st.self.Struct)
		descriptor.ThisType = &thisType
	}

	code, err := encodeProgram(lowered, st, descriptor)
	if err != nil {
		return nil, err
	}
	return &Program{Code: code, Abi: descriptor}, nil
}

// ABIPrefix starts the magic comment carrying the ABI inside emitted code.
const ABIPrefix = "# ABI: "

func encodeProgram(body []Instruction, st *state, descriptor abi.Abi) (string, error) {
	abiJSON, err := json.Marshal(descriptor)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(ABIPrefix)
	sb.Write(abiJSON)
	sb.WriteByte('\n')
	sb.WriteString("use.std::math::u64\n")

	// Emit prelude procedures in dependency order: the assembler requires
	// helpers to be defined before their callers.
	roots := make([]string, 0, len(st.prelude))
	for name := range st.prelude {
		roots = append(roots, name)
	}
	sort.Strings(roots)

	var names []string
	emitted := map[string]bool{}
	var require func(name string)
	require = func(name string) {
		if emitted[name] {
			return
		}
		emitted[name] = true
		for _, dep := range preludeDeps[name] {
			require(dep)
		}
		names = append(names, name)
	}
	for _, name := range roots {
		require(name)
	}
	for _, name := range names {
		text, ok := preludeProcs[name]
		if !ok {
			return "", fmt.Errorf("missing prelude procedure %s", name)
		}
		sb.WriteByte('\n')
		sb.WriteString(text)
	}

	sb.WriteString("\nbegin\n")
	fmt.Fprintf(&sb, "  push.%d\n", st.memory.StaticEnd())
	fmt.Fprintf(&sb, "  mem_store.%d\n", dynamicAllocPtr)
	for i := range body {
		body[i].Encode(&sb, 1)
		sb.WriteByte('\n')
	}
	sb.WriteString("end\n")
	return sb.String(), nil
}

// ExtractABI recovers the ABI descriptor from a compiled program's magic
// comment.
func ExtractABI(code string) (*abi.Abi, error) {
	for _, line := range strings.Split(code, "\n") {
		if !strings.HasPrefix(line, ABIPrefix) {
			continue
		}
		var out abi.Abi
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, ABIPrefix)), &out); err != nil {
			return nil, &diag.Error{
				Type:    diag.ABIError,
				Message: fmt.Sprintf("malformed ABI comment: %v", err),
			}
		}
		return &out, nil
	}
	return nil, &diag.Error{Type: diag.ABIError, Message: "no ABI comment found in code"}
}
