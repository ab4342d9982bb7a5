// Package server exposes the prover as an HTTP service: POST /prove runs a
// compiled program with proof generation, POST /verify checks a proof.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/compile"
	"github.com/polylang/polylang/pkg/rescue"
	"github.com/polylang/polylang/pkg/vm"
)

// Server handles prove and verify requests against an external executor.
type Server struct {
	executor vm.Executor
	logger   zerolog.Logger
	router   *gin.Engine
}

// New builds a server around the given executor.
func New(executor vm.Executor, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		executor: executor,
		logger:   logger,
		router:   gin.New(),
	}
	s.router.POST("/prove", s.handleProve)
	s.router.POST("/verify", s.handleVerify)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("prover listening")
	return s.router.Run(addr)
}

// ProveRequest is the body of POST /prove. Abi may be omitted when the code
// carries its `# ABI:` comment.
type ProveRequest struct {
	MidenCode    string            `json:"midenCode"`
	Abi          *abi.Abi          `json:"abi"`
	CtxPublicKey *abi.Key          `json:"ctxPublicKey"`
	This         json.RawMessage   `json:"this"`
	Args         []json.RawMessage `json:"args"`
}

type stateView struct {
	This           json.RawMessage `json:"this"`
	Hashes         json.RawMessage `json:"hashes"`
	SelfDestructed *bool           `json:"selfDestructed,omitempty"`
}

type resultView struct {
	Value json.RawMessage `json:"value"`
	Hash  json.RawMessage `json:"hash"`
}

func (s *Server) handleProve(c *gin.Context) {
	var req ProveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	descriptor := req.Abi
	if descriptor == nil {
		extracted, err := compile.ExtractABI(req.MidenCode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		descriptor = extracted
	}

	inputs, err := vm.NewInputs(*descriptor, req.CtxPublicKey, req.This, req.Args)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	started := time.Now()
	out, err := vm.Run(c.Request.Context(), s.executor, req.MidenCode, inputs, true)
	if err != nil {
		s.logger.Warn().Err(err).Msg("prove failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info().
		Dur("duration", time.Since(started)).
		Uint64("cycles", out.CycleCount).
		Msg("proved")

	oldHash, _ := abi.HashValue(inputs.ThisHash).JSON()
	newHash, _ := out.Hashes.New.JSON()
	thisJSON, _ := inputs.This.JSON()

	resp := gin.H{
		"proof":       out.Proof,
		"proofLength": out.ProofLength,
		"cycleCount":  out.CycleCount,
		"logs":        out.Logs,
		"old": stateView{
			This:   thisJSON,
			Hashes: oldHash,
		},
		"new": stateView{
			This:           out.This,
			Hashes:         newHash,
			SelfDestructed: &out.SelfDestructed,
		},
		"stack": gin.H{
			"input":         out.StackInput,
			"output":        out.StackOutput,
			"overflowAddrs": out.OverflowAddrs,
		},
		"programInfo": out.ProgramInfo,
		"readAuth":    out.ReadAuth,
	}

	if descriptor.ResultType != nil && out.Result != nil {
		value, err := descriptor.ResultType.Parse(out.Result)
		if err == nil {
			if digest, err := rescue.HashValue(value); err == nil {
				hashJSON, _ := abi.HashValue(digest).JSON()
				resp["result"] = resultView{Value: out.Result, Hash: hashJSON}
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req vm.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	started := time.Now()
	valid, err := vm.Verify(c.Request.Context(), s.executor, req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      valid,
		"durationMs": time.Since(started).Milliseconds(),
	})
}
