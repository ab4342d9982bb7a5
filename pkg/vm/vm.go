// Package vm is the boundary to the external proving VM: it marshals host
// JSON onto the VM's input channels, drives execution through an
// [Executor], and decodes the final state back into host JSON.
package vm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// State is the observable result of running a program's trace: the final
// operand stack (top first), the written words of linear memory, and the
// cycle count.
type State struct {
	Stack      []uint64
	Memory     map[uint64][4]uint64
	CycleCount uint64
}

// Word returns memory word zero at addr.
func (s *State) Word(addr uint64) ([4]uint64, bool) {
	w, ok := s.Memory[addr]
	return w, ok
}

// Proof is an opaque proof together with the verifier's inputs.
type Proof struct {
	Bytes         []byte
	ProgramInfo   []byte
	OverflowAddrs []uint64
}

// VerifyRequest carries everything the verifier needs.
type VerifyRequest struct {
	Proof         []byte   `json:"proof"`
	ProgramInfo   []byte   `json:"programInfo"`
	StackInputs   []uint64 `json:"stackInputs"`
	OutputStack   []uint64 `json:"outputStack"`
	OverflowAddrs []uint64 `json:"overflowAddrs"`
}

// Executor abstracts the proving VM. Execute runs only trace generation;
// Prove additionally produces a proof. A failed execution may still return
// the last consistent state, which the driver uses to recover the user
// error message.
type Executor interface {
	Execute(ctx context.Context, code string, stackInputs, adviceTape []uint64) (*State, error)
	Prove(ctx context.Context, code string, stackInputs, adviceTape []uint64) (*State, *Proof, error)
	Verify(ctx context.Context, req VerifyRequest) (bool, error)
}

// ProcessExecutor runs the VM as an external process speaking JSON on
// stdin/stdout: {"op": "execute"|"prove"|"verify", ...} in, the state (and
// proof) out.
type ProcessExecutor struct {
	Path string
}

type processRequest struct {
	Op          string   `json:"op"`
	Code        string   `json:"code,omitempty"`
	StackInputs []uint64 `json:"stackInputs"`
	AdviceTape  []uint64 `json:"adviceTape,omitempty"`

	Verify *VerifyRequest `json:"verify,omitempty"`
}

type processResponse struct {
	Stack         []uint64             `json:"stack"`
	Memory        map[string][4]uint64 `json:"memory"`
	CycleCount    uint64               `json:"cycleCount"`
	Proof         []byte               `json:"proof,omitempty"`
	ProgramInfo   []byte               `json:"programInfo,omitempty"`
	OverflowAddrs []uint64             `json:"overflowAddrs,omitempty"`
	Valid         *bool                `json:"valid,omitempty"`
	Error         string               `json:"error,omitempty"`
}

func (p *ProcessExecutor) roundTrip(ctx context.Context, req processRequest) (*processResponse, *State, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	cmd := exec.CommandContext(ctx, p.Path)
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.Output()
	if err != nil {
		return nil, nil, fmt.Errorf("vm process: %w", err)
	}
	var resp processResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, nil, fmt.Errorf("vm process returned malformed output: %w", err)
	}

	state := &State{
		Stack:      resp.Stack,
		Memory:     map[uint64][4]uint64{},
		CycleCount: resp.CycleCount,
	}
	for addr, word := range resp.Memory {
		var a uint64
		if _, err := fmt.Sscanf(addr, "%d", &a); err != nil {
			return nil, nil, fmt.Errorf("vm process returned bad address %q", addr)
		}
		state.Memory[a] = word
	}
	if resp.Error != "" {
		return &resp, state, fmt.Errorf("%s", resp.Error)
	}
	return &resp, state, nil
}

// Execute implements [Executor].
func (p *ProcessExecutor) Execute(ctx context.Context, code string, stackInputs, adviceTape []uint64) (*State, error) {
	_, state, err := p.roundTrip(ctx, processRequest{
		Op: "execute", Code: code, StackInputs: stackInputs, AdviceTape: adviceTape,
	})
	return state, err
}

// Prove implements [Executor].
func (p *ProcessExecutor) Prove(ctx context.Context, code string, stackInputs, adviceTape []uint64) (*State, *Proof, error) {
	resp, state, err := p.roundTrip(ctx, processRequest{
		Op: "prove", Code: code, StackInputs: stackInputs, AdviceTape: adviceTape,
	})
	if err != nil {
		return state, nil, err
	}
	return state, &Proof{
		Bytes:         resp.Proof,
		ProgramInfo:   resp.ProgramInfo,
		OverflowAddrs: resp.OverflowAddrs,
	}, nil
}

// Verify implements [Executor].
func (p *ProcessExecutor) Verify(ctx context.Context, req VerifyRequest) (bool, error) {
	resp, _, err := p.roundTrip(ctx, processRequest{Op: "verify", Verify: &req})
	if err != nil {
		return false, err
	}
	if resp.Valid == nil {
		return false, fmt.Errorf("vm process did not report validity")
	}
	return *resp.Valid, nil
}
