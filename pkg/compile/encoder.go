package compile

import (
	"fmt"
	"strings"
)

// Opcode identifies a VM instruction.
type Opcode int

// Opcodes. Structured control flow (while/if) and the abstract break/return
// markers are instruction trees rather than flat ops.
const (
	OpComment Opcode = iota
	OpDrop
	OpDropW
	OpPush
	OpAssert
	OpAssertZ
	OpDup // dup.n
	OpSwap
	OpMovUp   // movup.n
	OpMovDown // movdn.n
	OpAdd
	OpEq
	OpNot
	OpAnd
	OpOr
	OpU32CheckedAdd
	OpU32CheckedSub
	OpU32CheckedMul
	OpU32CheckedDiv
	OpU32CheckedMod
	OpU32CheckedEq
	OpU32CheckedNeq
	OpU32CheckedLT
	OpU32CheckedLTE
	OpU32CheckedGT
	OpU32CheckedGTE
	OpU32CheckedAnd
	OpU32CheckedOr
	OpU32CheckedXor
	OpU32CheckedNot
	OpU32CheckedSHL
	OpU32CheckedSHR
	OpU32WrappingAdd
	OpU32WrappingSub
	OpU32WrappingMul
	OpExec
	OpMemStore // mem_store / mem_store.addr
	OpMemLoad  // mem_load / mem_load.addr
	OpAdvPush  // adv_push.n
	OpHMerge
	OpWhile
	OpIf
	OpAbstract
)

// AbstractKind discriminates abstract instructions, which are lowered by
// [unabstract] before encoding.
type AbstractKind int

// Abstract instruction kinds.
const (
	AbstractBreak AbstractKind = iota
	AbstractReturn
	AbstractInlinedFunction
)

// Instruction is one node of the structured instruction tree.
type Instruction struct {
	Op Opcode

	// Imm is the immediate operand of Push, Dup, MovUp, MovDown, AdvPush,
	// and (when HasImm) MemStore/MemLoad and the shift ops.
	Imm    uint32
	HasImm bool

	// Text is the comment body for OpComment and the procedure name for
	// OpExec.
	Text string

	// Condition, Then, Else and Body hold the children of OpWhile and OpIf.
	Condition []Instruction
	Then      []Instruction
	Else      []Instruction
	Body      []Instruction

	// Abstract marks break/return/inlined-function nodes, with Inlined
	// holding the function body for AbstractInlinedFunction.
	Abstract AbstractKind
	Inlined  []Instruction
}

func comment(format string, args ...any) Instruction {
	return Instruction{Op: OpComment, Text: fmt.Sprintf(format, args...)}
}

func push(v uint32) Instruction {
	return Instruction{Op: OpPush, Imm: v, HasImm: true}
}

func dup(n uint32) Instruction {
	return Instruction{Op: OpDup, Imm: n, HasImm: true}
}

func movUp(n uint32) Instruction   { return Instruction{Op: OpMovUp, Imm: n, HasImm: true} }
func movDown(n uint32) Instruction { return Instruction{Op: OpMovDown, Imm: n, HasImm: true} }

func memStore(addr uint32) Instruction {
	return Instruction{Op: OpMemStore, Imm: addr, HasImm: true}
}

func memStoreTop() Instruction { return Instruction{Op: OpMemStore} }

func memLoad(addr uint32) Instruction {
	return Instruction{Op: OpMemLoad, Imm: addr, HasImm: true}
}

func memLoadTop() Instruction { return Instruction{Op: OpMemLoad} }

func advPush(n uint32) Instruction {
	return Instruction{Op: OpAdvPush, Imm: n, HasImm: true}
}

func exec(name string) Instruction { return Instruction{Op: OpExec, Text: name} }

func op(o Opcode) Instruction { return Instruction{Op: o} }

var opNames = map[Opcode]string{
	OpDrop:           "drop",
	OpDropW:          "dropw",
	OpAssert:         "assert",
	OpAssertZ:        "assertz",
	OpSwap:           "swap",
	OpAdd:            "add",
	OpEq:             "eq",
	OpNot:            "not",
	OpAnd:            "and",
	OpOr:             "or",
	OpU32CheckedAdd:  "u32checked_add",
	OpU32CheckedSub:  "u32checked_sub",
	OpU32CheckedMul:  "u32checked_mul",
	OpU32CheckedDiv:  "u32checked_div",
	OpU32CheckedMod:  "u32checked_mod",
	OpU32CheckedEq:   "u32checked_eq",
	OpU32CheckedNeq:  "u32checked_neq",
	OpU32CheckedLT:   "u32checked_lt",
	OpU32CheckedLTE:  "u32checked_lte",
	OpU32CheckedGT:   "u32checked_gt",
	OpU32CheckedGTE:  "u32checked_gte",
	OpU32CheckedAnd:  "u32checked_and",
	OpU32CheckedOr:   "u32checked_or",
	OpU32CheckedXor:  "u32checked_xor",
	OpU32CheckedNot:  "u32checked_not",
	OpU32CheckedSHL:  "u32checked_shl",
	OpU32CheckedSHR:  "u32checked_shr",
	OpU32WrappingAdd: "u32wrapping_add",
	OpU32WrappingSub: "u32wrapping_sub",
	OpU32WrappingMul: "u32wrapping_mul",
	OpHMerge:         "hmerge",
}

// Encode renders the instruction as assembly text at the given indent depth.
func (inst *Instruction) Encode(sb *strings.Builder, depth int) {
	indent := func() {
		for i := 0; i < depth; i++ {
			sb.WriteString("  ")
		}
	}

	switch inst.Op {
	case OpComment:
		indent()
		sb.WriteString("# ")
		sb.WriteString(inst.Text)

	case OpPush:
		indent()
		fmt.Fprintf(sb, "push.%d", inst.Imm)

	case OpDup:
		indent()
		if inst.Imm == 0 {
			sb.WriteString("dup")
		} else {
			fmt.Fprintf(sb, "dup.%d", inst.Imm)
		}

	case OpMovUp:
		indent()
		fmt.Fprintf(sb, "movup.%d", inst.Imm)

	case OpMovDown:
		indent()
		fmt.Fprintf(sb, "movdn.%d", inst.Imm)

	case OpExec:
		indent()
		fmt.Fprintf(sb, "exec.%s", inst.Text)

	case OpMemStore:
		indent()
		if inst.HasImm {
			fmt.Fprintf(sb, "mem_store.%d", inst.Imm)
		} else {
			sb.WriteString("mem_store")
		}

	case OpMemLoad:
		indent()
		if inst.HasImm {
			fmt.Fprintf(sb, "mem_load.%d", inst.Imm)
		} else {
			sb.WriteString("mem_load")
		}

	case OpAdvPush:
		indent()
		fmt.Fprintf(sb, "adv_push.%d", inst.Imm)

	case OpU32CheckedSHL, OpU32CheckedSHR:
		indent()
		sb.WriteString(opNames[inst.Op])
		if inst.HasImm {
			fmt.Fprintf(sb, ".%d", inst.Imm)
		}

	case OpWhile:
		for i := range inst.Condition {
			inst.Condition[i].Encode(sb, depth)
			sb.WriteByte('\n')
		}
		indent()
		sb.WriteString("while.true\n")
		for i := range inst.Body {
			inst.Body[i].Encode(sb, depth+1)
			sb.WriteByte('\n')
		}
		for i := range inst.Condition {
			inst.Condition[i].Encode(sb, depth+1)
			sb.WriteByte('\n')
		}
		indent()
		sb.WriteString("end")

	case OpIf:
		for i := range inst.Condition {
			inst.Condition[i].Encode(sb, depth)
			sb.WriteByte('\n')
		}
		indent()
		sb.WriteString("if.true\n")
		for i := range inst.Then {
			inst.Then[i].Encode(sb, depth+1)
			sb.WriteByte('\n')
		}
		if len(inst.Then) == 0 {
			// An empty branch is invalid assembly; pad with a no-op pair.
			indent()
			sb.WriteString("  push.0\n")
			indent()
			sb.WriteString("  drop\n")
		}
		if len(inst.Else) > 0 {
			indent()
			sb.WriteString("else\n")
			for i := range inst.Else {
				inst.Else[i].Encode(sb, depth+1)
				sb.WriteByte('\n')
			}
		}
		indent()
		sb.WriteString("end")

	case OpAbstract:
		panic("abstract instructions must be lowered before encoding")

	default:
		indent()
		sb.WriteString(opNames[inst.Op])
	}
}

// whileLoop builds a structured while instruction.
func whileLoop(condition, body []Instruction) Instruction {
	return Instruction{Op: OpWhile, Condition: condition, Body: body}
}

// ifTrue builds a structured if instruction.
func ifTrue(condition, then, els []Instruction) Instruction {
	return Instruction{Op: OpIf, Condition: condition, Then: then, Else: els}
}

// unabstract lowers break and return markers into guard flags stored in
// memory: after a marker fires, the rest of the enclosing block runs under
// an `if (!flag)` guard, and a while condition additionally collapses to
// false. Inlined function bodies are spliced with fresh break/return state.
func unabstract(
	instructions []Instruction,
	allocate func(size uint32) uint32,
	breakPtr, returnPtr *uint32,
	hasBreak, hasReturn *bool,
	isCondition bool,
) []Instruction {
	var result []Instruction

	lower := func(out *[]Instruction, inst Instruction) {
		switch {
		case inst.Op == OpAbstract && inst.Abstract == AbstractBreak:
			if !*hasBreak {
				*breakPtr = allocate(1)
				*hasBreak = true
			}
			*out = append(*out, push(1), memStore(*breakPtr))

		case inst.Op == OpAbstract && inst.Abstract == AbstractReturn:
			if !*hasReturn {
				*returnPtr = allocate(1)
				*hasReturn = true
			}
			*out = append(*out, push(1), memStore(*returnPtr))

		case inst.Op == OpAbstract && inst.Abstract == AbstractInlinedFunction:
			var fnBreak, fnReturn uint32
			var fnHasBreak, fnHasReturn bool
			body := unabstract(
				inst.Inlined, allocate, &fnBreak, &fnReturn, &fnHasBreak, &fnHasReturn, false)
			// Clear the guard flags on entry: the same inline site may run
			// again inside a loop.
			if fnHasReturn {
				*out = append(*out, push(0), memStore(fnReturn))
			}
			if fnHasBreak {
				*out = append(*out, push(0), memStore(fnBreak))
			}
			*out = append(*out, body...)

		case inst.Op == OpWhile:
			var loopBreak uint32
			var loopHasBreak bool
			body := unabstract(inst.Body, allocate, &loopBreak, returnPtr, &loopHasBreak, hasReturn, false)
			condition := unabstract(inst.Condition, allocate, &loopBreak, returnPtr, &loopHasBreak, hasReturn, true)
			// Clear the break flag on entry: the loop may run again inside
			// an enclosing loop.
			if loopHasBreak {
				*out = append(*out, push(0), memStore(loopBreak))
			}
			*out = append(*out, whileLoop(condition, body))

		case inst.Op == OpIf:
			var condBreak, condReturn uint32
			var condHasBreak, condHasReturn bool
			*out = append(*out, ifTrue(
				unabstract(inst.Condition, allocate, &condBreak, &condReturn, &condHasBreak, &condHasReturn, true),
				unabstract(inst.Then, allocate, breakPtr, returnPtr, hasBreak, hasReturn, false),
				unabstract(inst.Else, allocate, breakPtr, returnPtr, hasBreak, hasReturn, false),
			))

		default:
			*out = append(*out, inst)
		}
	}

	for _, inst := range instructions {
		guard, guarded := activeGuard(breakPtr, returnPtr, *hasBreak, *hasReturn)
		if !guarded {
			lower(&result, inst)
			continue
		}

		// Once a break or return may have fired, subsequent instructions
		// run only when the guard flag is still clear.
		var then []Instruction
		if isCondition {
			then = []Instruction{push(0)}
		}
		var els []Instruction
		lower(&els, inst)
		result = append(result, ifTrue([]Instruction{memLoad(guard)}, then, els))
	}
	return result
}

func activeGuard(breakPtr, returnPtr *uint32, hasBreak, hasReturn bool) (uint32, bool) {
	if hasBreak {
		return *breakPtr, true
	}
	if hasReturn {
		return *returnPtr, true
	}
	return 0, false
}
