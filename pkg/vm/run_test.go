package vm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/diag"
)

// fakeExecutor returns a scripted state, standing in for the external VM.
type fakeExecutor struct {
	state *State
	proof *Proof
	err   error

	gotStack  []uint64
	gotAdvice []uint64
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, stackInputs, adviceTape []uint64) (*State, error) {
	f.gotStack = stackInputs
	f.gotAdvice = adviceTape
	return f.state, f.err
}

func (f *fakeExecutor) Prove(ctx context.Context, code string, stackInputs, adviceTape []uint64) (*State, *Proof, error) {
	state, err := f.Execute(ctx, code, stackInputs, adviceTape)
	return state, f.proof, err
}

func (f *fakeExecutor) Verify(context.Context, VerifyRequest) (bool, error) {
	return true, nil
}

func accountAbi() abi.Abi {
	thisAddr := uint32(20)
	thisType := abi.NewStruct(abi.Struct{Name: "Account", Fields: []abi.StructField{
		{Name: "id", Type: abi.NewString()},
		{Name: "sum", Type: abi.NewPrimitive(abi.Int32)},
	}})
	resultType := abi.NewPrimitive(abi.Int32)
	return abi.Abi{
		ThisAddr:   &thisAddr,
		ThisType:   &thisType,
		ParamTypes: []abi.Type{abi.NewPrimitive(abi.Int32), abi.NewPrimitive(abi.Int32)},
		ResultType: &resultType,
		StdVersion: abi.StdVersionCurrent,
	}
}

func TestNewInputs_TapeLayout(t *testing.T) {
	in, err := NewInputs(accountAbi(), nil, json.RawMessage(`{"id":"a","sum":0}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	// Public stack is the reversed input hash.
	stack := in.StackValues()
	require.Len(t, stack, 4)
	assert.Equal(t, in.ThisHash[0], stack[3])

	// Advice: ctx null flag, then this (id then sum), then both arguments.
	want := []uint64{0}
	want = append(want, abi.StringValue("a").Serialize()...)
	want = append(want, abi.Int32Value(0).Serialize()...)
	want = append(want, 1, 2)
	assert.Equal(t, want, in.AdviceTape())
}

func TestNewInputs_ArgumentErrors(t *testing.T) {
	_, err := NewInputs(accountAbi(), nil, json.RawMessage(`{}`), []json.RawMessage{json.RawMessage(`1`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 arguments")

	_, err = NewInputs(accountAbi(), nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`"no"`), json.RawMessage(`2`),
	})
	require.Error(t, err)
}

func TestRun_DecodesFinalState(t *testing.T) {
	descriptor := accountAbi()
	in, err := NewInputs(descriptor, nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	exec := &fakeExecutor{state: &State{
		// [new hash, selfdestruct flag, result]
		Stack:      []uint64{11, 12, 13, 14, 0, 3},
		CycleCount: 1024,
		Memory: map[uint64][4]uint64{
			20: {0}, // id length
			21: {0}, // id data ptr
			22: {3}, // sum
		},
	}}

	out, err := Run(context.Background(), exec, "code", in, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(1024), out.CycleCount)
	assert.JSONEq(t, `{"id":"","sum":3}`, string(out.This))
	assert.JSONEq(t, `3`, string(out.Result))
	assert.False(t, out.SelfDestructed)
	assert.Equal(t, abi.HashValue{11, 12, 13, 14}, out.Hashes.New)
	assert.Equal(t, abi.HashValue(in.ThisHash), out.Hashes.Old)
	assert.Equal(t, in.StackValues(), exec.gotStack)
	assert.Empty(t, out.Proof)
}

func TestRun_SelfDestructed(t *testing.T) {
	descriptor := accountAbi()
	descriptor.ResultType = nil
	in, err := NewInputs(descriptor, nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	exec := &fakeExecutor{state: &State{
		Stack: []uint64{1, 2, 3, 4, 1},
		Memory: map[uint64][4]uint64{
			20: {0}, 21: {0}, 22: {7},
		},
	}}
	out, err := Run(context.Background(), exec, "code", in, false)
	require.NoError(t, err)
	assert.True(t, out.SelfDestructed)
	// The record stays readable after a selfdestruct.
	assert.JSONEq(t, `{"id":"","sum":7}`, string(out.This))
}

func TestRun_UserError(t *testing.T) {
	in, err := NewInputs(accountAbi(), nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	msg := "Insufficient balance"
	mem := map[uint64][4]uint64{
		1: {uint64(len(msg))},
		2: {100},
	}
	for i, b := range []byte(msg) {
		mem[100+uint64(i)] = [4]uint64{uint64(b)}
	}
	exec := &fakeExecutor{
		state: &State{Memory: mem},
		err:   errors.New("assertion failed"),
	}

	_, err = Run(context.Background(), exec, "code", in, false)
	require.Error(t, err)
	var tagged *diag.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, diag.VMError, tagged.Type)
	assert.Equal(t, msg, tagged.Message)
}

func TestRun_TrapWithoutMessage(t *testing.T) {
	in, err := NewInputs(accountAbi(), nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	exec := &fakeExecutor{
		state: &State{Memory: map[uint64][4]uint64{}},
		err:   errors.New("advice tape underrun"),
	}
	_, err = Run(context.Background(), exec, "code", in, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trap: advice tape underrun")
}

func TestRun_Logs(t *testing.T) {
	in, err := NewInputs(accountAbi(), nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	// Two log entries, newest at the head.
	mem := map[uint64][4]uint64{
		20: {0}, 21: {0}, 22: {0},
		// "hi" at 200, header at 210
		200: {'h'}, 201: {'i'},
		210: {2}, 211: {200},
		// "yo" at 220, header at 230
		220: {'y'}, 221: {'o'},
		230: {2}, 231: {220},
		// first node (for "hi"): prev=0, str=0
		240: {0}, 241: {0},
		// second node (for "yo"): prev=240, str=210
		250: {240}, 251: {210},
		4: {250}, 5: {230},
	}
	exec := &fakeExecutor{state: &State{
		Stack:  []uint64{1, 2, 3, 4, 0, 0},
		Memory: mem,
	}}

	out, err := Run(context.Background(), exec, "code", in, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "yo"}, out.Logs)
}

func TestRun_ProofPassthrough(t *testing.T) {
	descriptor := accountAbi()
	descriptor.ResultType = nil
	in, err := NewInputs(descriptor, nil, json.RawMessage(`{}`), []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	})
	require.NoError(t, err)

	exec := &fakeExecutor{
		state: &State{
			Stack:  []uint64{1, 2, 3, 4, 0},
			Memory: map[uint64][4]uint64{20: {0}, 21: {0}, 22: {0}},
		},
		proof: &Proof{Bytes: []byte("proofbytes"), ProgramInfo: []byte("pi")},
	}
	out, err := Run(context.Background(), exec, "code", in, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("proofbytes"), out.Proof)
	assert.Equal(t, len("proofbytes"), out.ProofLength)
}

func TestHashes_JSON(t *testing.T) {
	h := Hashes{Old: abi.HashValue{1, 2, 3, 4}}
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"old":"0000000000000001`)
}
