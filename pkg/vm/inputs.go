package vm

import (
	"encoding/json"
	"fmt"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/rescue"
)

// Inputs is everything the VM consumes for one state transition: the
// public stack (the input `this` commitment) and the advice tape (the
// ambient context, the input `this`, then each argument, in the order the
// compiled code reads them).
type Inputs struct {
	Abi          abi.Abi
	CtxPublicKey *abi.Key
	This         abi.Value
	ThisHash     rescue.Digest
	Args         []abi.Value
}

// emptyStruct is the `this` type for entry points without a contract.
func emptyStruct() abi.Type {
	return abi.NewStruct(abi.Struct{Name: "Empty"})
}

// NewInputs parses and hashes the host-supplied JSON against the ABI.
func NewInputs(descriptor abi.Abi, ctxPublicKey *abi.Key, thisJSON json.RawMessage, argsJSON []json.RawMessage) (*Inputs, error) {
	if descriptor.ThisType == nil {
		t := emptyStruct()
		descriptor.ThisType = &t
	}
	if len(thisJSON) == 0 {
		thisJSON = json.RawMessage("{}")
	}

	this, err := abi.ParseThis(*descriptor.ThisType, thisJSON)
	if err != nil {
		return nil, err
	}
	thisHash, err := rescue.HashValue(this)
	if err != nil {
		return nil, err
	}

	if len(argsJSON) != len(descriptor.ParamTypes) {
		return nil, fmt.Errorf("abi error: expected %d arguments, found %d",
			len(descriptor.ParamTypes), len(argsJSON))
	}
	args := make([]abi.Value, 0, len(argsJSON))
	for i, raw := range argsJSON {
		v, err := descriptor.ParamTypes[i].Parse(raw)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	return &Inputs{
		Abi:          descriptor,
		CtxPublicKey: ctxPublicKey,
		This:         this,
		ThisHash:     thisHash,
		Args:         args,
	}, nil
}

// StackValues returns the public stack: the input commitment, reversed so
// the first element ends up on top.
func (in *Inputs) StackValues() []uint64 {
	return []uint64{in.ThisHash[3], in.ThisHash[2], in.ThisHash[1], in.ThisHash[0]}
}

// AdviceTape serializes the context key, `this` and the arguments, in read
// order.
func (in *Inputs) AdviceTape() []uint64 {
	ctx := abi.StructValue{
		{Name: "publicKey", Value: ctxKeyValue(in.CtxPublicKey)},
	}
	tape := ctx.Serialize()
	tape = append(tape, in.This.Serialize()...)
	for _, arg := range in.Args {
		tape = append(tape, arg.Serialize()...)
	}
	return tape
}

func ctxKeyValue(key *abi.Key) abi.Value {
	if key == nil {
		return abi.NullableValue{}
	}
	return abi.NullableValue{Inner: *key}
}
