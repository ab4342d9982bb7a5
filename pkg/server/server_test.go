package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/vm"
)

type fakeExecutor struct {
	state *vm.State
	valid bool
}

func (f *fakeExecutor) Execute(context.Context, string, []uint64, []uint64) (*vm.State, error) {
	return f.state, nil
}

func (f *fakeExecutor) Prove(context.Context, string, []uint64, []uint64) (*vm.State, *vm.Proof, error) {
	return f.state, &vm.Proof{Bytes: []byte("proof")}, nil
}

func (f *fakeExecutor) Verify(context.Context, vm.VerifyRequest) (bool, error) {
	return f.valid, nil
}

func testServer(exec vm.Executor) *Server {
	return New(exec, zerolog.Nop())
}

func post(t *testing.T, s *Server, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func proveBody() map[string]any {
	thisAddr := uint32(20)
	thisType := abi.NewStruct(abi.Struct{Name: "C", Fields: []abi.StructField{
		{Name: "id", Type: abi.NewString()},
		{Name: "n", Type: abi.NewPrimitive(abi.UInt32)},
	}})
	descriptor := abi.Abi{
		ThisAddr: &thisAddr,
		ThisType: &thisType,
	}
	return map[string]any{
		"midenCode": "begin\nend",
		"abi":       descriptor,
		"this":      map[string]any{"id": "a", "n": 1},
		"args":      []any{},
	}
}

func TestProve(t *testing.T) {
	exec := &fakeExecutor{state: &vm.State{
		Stack:      []uint64{1, 2, 3, 4, 0},
		CycleCount: 64,
		Memory: map[uint64][4]uint64{
			20: {0}, 21: {0}, 22: {7},
		},
	}}
	w := post(t, testServer(exec), "/prove", proveBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Proof       []byte   `json:"proof"`
		ProofLength int      `json:"proofLength"`
		CycleCount  uint64   `json:"cycleCount"`
		Logs        []string `json:"logs"`
		New         struct {
			This           json.RawMessage `json:"this"`
			SelfDestructed bool            `json:"selfDestructed"`
		} `json:"new"`
		Old struct {
			Hashes string `json:"hashes"`
		} `json:"old"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, []byte("proof"), resp.Proof)
	assert.Equal(t, 5, resp.ProofLength)
	assert.Equal(t, uint64(64), resp.CycleCount)
	assert.JSONEq(t, `{"id":"","n":7}`, string(resp.New.This))
	assert.False(t, resp.New.SelfDestructed)
	assert.Len(t, resp.Old.Hashes, 64)
}

func TestProve_BadAbi(t *testing.T) {
	body := proveBody()
	delete(body, "abi") // no ABI and no magic comment in the code
	w := post(t, testServer(&fakeExecutor{}), "/prove", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProve_TypeMismatch(t *testing.T) {
	body := proveBody()
	body["this"] = map[string]any{"id": "a", "n": "not a number"}
	w := post(t, testServer(&fakeExecutor{}), "/prove", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerify(t *testing.T) {
	w := post(t, testServer(&fakeExecutor{valid: true}), "/verify", vm.VerifyRequest{
		Proof: []byte("proof"),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid      bool  `json:"valid"`
		DurationMs int64 `json:"durationMs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
}
