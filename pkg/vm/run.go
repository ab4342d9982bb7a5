package vm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/diag"
	"github.com/polylang/polylang/pkg/rescue"
)

// Output is the host-readable result of one state transition.
type Output struct {
	Proof          []byte          `json:"proof,omitempty"`
	ProofLength    int             `json:"proofLength"`
	CycleCount     uint64          `json:"cycleCount"`
	Logs           []string        `json:"logs"`
	This           json.RawMessage `json:"this"`
	Result         json.RawMessage `json:"result,omitempty"`
	Hashes         Hashes          `json:"hashes"`
	SelfDestructed bool            `json:"selfDestructed"`
	ReadAuth       bool            `json:"readAuth"`

	// Stack carries the verifier-facing input and output stacks, plus the
	// proof's overflow addresses when proving.
	StackInput    []uint64 `json:"stackInput"`
	StackOutput   []uint64 `json:"stackOutput"`
	OverflowAddrs []uint64 `json:"overflowAddrs,omitempty"`
	ProgramInfo   []byte   `json:"programInfo,omitempty"`
}

// Hashes are the commitments to both ends of the transition.
type Hashes struct {
	Old abi.HashValue `json:"old"`
	New abi.HashValue `json:"new"`
}

// MarshalJSON renders each hash in its canonical hex form.
func (h Hashes) MarshalJSON() ([]byte, error) {
	old, err := h.Old.JSON()
	if err != nil {
		return nil, err
	}
	new_, err := h.New.JSON()
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"old":%s,"new":%s}`, old, new_)), nil
}

func vmErr(format string, args ...any) *diag.Error {
	return &diag.Error{Type: diag.VMError, Message: fmt.Sprintf(format, args...)}
}

// Run drives one synchronous state transition: marshal the inputs, run the
// VM (proving when generateProof is set), and decode the final state. A
// failed run surfaces as a tagged user error when the program fired
// error(), and as a trap otherwise.
func Run(ctx context.Context, executor Executor, code string, inputs *Inputs, generateProof bool) (*Output, error) {
	stackInputs := inputs.StackValues()
	adviceTape := inputs.AdviceTape()

	var state *State
	var proof *Proof
	var err error
	if generateProof {
		state, proof, err = executor.Prove(ctx, code, stackInputs, adviceTape)
	} else {
		state, err = executor.Execute(ctx, code, stackInputs, adviceTape)
	}
	if err != nil {
		return nil, runError(state, err)
	}

	out := &Output{
		CycleCount:  state.CycleCount,
		Logs:        decodeLogs(state),
		ReadAuth:    inputs.Abi.ReadAuth,
		StackInput:  stackInputs,
		StackOutput: state.Stack,
		Hashes:      Hashes{Old: abi.HashValue(inputs.ThisHash)},
	}
	if proof != nil {
		out.Proof = proof.Bytes
		out.ProofLength = len(proof.Bytes)
		out.ProgramInfo = proof.ProgramInfo
		out.OverflowAddrs = proof.OverflowAddrs
	}

	resultOffset := 0
	if inputs.Abi.ThisAddr != nil {
		if len(state.Stack) < 5 {
			return nil, vmErr("output stack too short: %d words", len(state.Stack))
		}
		copy(out.Hashes.New[:], state.Stack[0:4])
		switch state.Stack[4] {
		case 0:
		case 1:
			out.SelfDestructed = true
		default:
			return nil, vmErr("invalid selfdestruct flag %d", state.Stack[4])
		}
		resultOffset = 5

		thisValue, err := inputs.Abi.ThisType.Read(state.Word, uint64(*inputs.Abi.ThisAddr))
		if err != nil {
			return nil, err
		}
		out.This, err = thisValue.JSON()
		if err != nil {
			return nil, err
		}
	} else {
		out.This = json.RawMessage("null")
	}

	if rt := inputs.Abi.ResultType; rt != nil {
		if len(state.Stack) < resultOffset+int(rt.Width()) {
			return nil, vmErr("output stack too short for the result value")
		}
		result, err := rt.ReadFromWords(state.Stack[resultOffset:resultOffset+int(rt.Width())], state.Word)
		if err != nil {
			return nil, err
		}
		out.Result, err = result.JSON()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// runError distinguishes a user error (error() fired, leaving its message
// at the reserved address) from a VM trap.
func runError(state *State, cause error) error {
	if state != nil {
		if msg, ok := userErrorMessage(state); ok {
			return &diag.Error{Type: diag.VMError, Message: msg}
		}
	}
	return vmErr("trap: %v", cause)
}

func userErrorMessage(state *State) (string, bool) {
	value, err := abi.NewString().Read(state.Word, 1)
	if err != nil {
		return "", false
	}
	msg := string(value.(abi.StringValue))
	return msg, msg != ""
}

// decodeLogs walks the log list the program maintained at the reserved
// addresses and returns messages in emission order.
func decodeLogs(state *State) []string {
	logs := []string{}
	readWord := func(addr uint64) (uint64, bool) {
		w, ok := state.Word(addr)
		return w[0], ok
	}

	prev, _ := readWord(4)
	strPtr, ok := readWord(5)
	for ok && strPtr != 0 {
		value, err := abi.NewString().Read(state.Word, strPtr)
		if err != nil {
			break
		}
		logs = append(logs, string(value.(abi.StringValue)))

		next, nextOK := readWord(prev + 1)
		newPrev, prevOK := readWord(prev)
		if !nextOK || !prevOK {
			break
		}
		strPtr, prev = next, newPrev
	}

	// The list is newest first; emission order reads better.
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs
}

// Verify checks a proof against the verifier inputs.
func Verify(ctx context.Context, executor Executor, req VerifyRequest) (bool, error) {
	valid, err := executor.Verify(ctx, req)
	if err != nil {
		return false, &diag.Error{Type: diag.VerificationError, Message: err.Error()}
	}
	return valid, nil
}

// HashThis recomputes the commitment of a `this` value on the host; it must
// agree with what the emitted code computes inside the VM.
func HashThis(t abi.Type, thisJSON json.RawMessage) (rescue.Digest, error) {
	value, err := abi.ParseThis(t, thisJSON)
	if err != nil {
		return rescue.Digest{}, err
	}
	return rescue.HashValue(value)
}
