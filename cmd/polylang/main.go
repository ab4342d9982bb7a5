// Command polylang is the toolchain CLI: compile a program to VM assembly,
// run compiled assembly against the VM, or serve the prover over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/polylang/polylang"
	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/compile"
	"github.com/polylang/polylang/pkg/server"
	"github.com/polylang/polylang/pkg/vm"
)

func main() {
	root := &cobra.Command{
		Use:           "polylang",
		Short:         "Polylang compiler and VM driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(compileCmd(), midenRunCmd(), serverCmd())

	if err := root.Execute(); err != nil {
		// One line per diagnostic; multi-line context goes to stderr as-is.
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile [contract:<Name>] function:<name>",
		Short: "Compile a program read from stdin to VM assembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			var contractName, functionName string
			for _, arg := range args {
				switch {
				case strings.HasPrefix(arg, "contract:"):
					contractName = strings.TrimPrefix(arg, "contract:")
				case strings.HasPrefix(arg, "function:"):
					functionName = strings.TrimPrefix(arg, "function:")
				default:
					return fmt.Errorf("unknown selector %q", arg)
				}
			}
			if functionName == "" {
				return fmt.Errorf("missing function:<name> selector")
			}

			source, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			program, err := polylang.Compile(string(source), contractName, functionName)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), program.Code)
			return err
		},
	}
}

func midenRunCmd() *cobra.Command {
	var (
		thisJSON       string
		adviceTapeJSON string
		abiJSON        string
		ctxJSON        string
		vmPath         string
		proofOutput    string
	)

	cmd := &cobra.Command{
		Use:   "miden-run",
		Short: "Run compiled assembly read from stdin against the VM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}

			var descriptor *abi.Abi
			if abiJSON != "" {
				descriptor = &abi.Abi{}
				if err := json.Unmarshal([]byte(abiJSON), descriptor); err != nil {
					return fmt.Errorf("invalid --abi: %w", err)
				}
			} else if descriptor, err = compile.ExtractABI(string(code)); err != nil {
				return err
			}

			var args []json.RawMessage
			if adviceTapeJSON != "" {
				if err := json.Unmarshal([]byte(adviceTapeJSON), &args); err != nil {
					return fmt.Errorf("invalid --advice-tape-json: %w", err)
				}
			}

			var ctxKey *abi.Key
			if ctxJSON != "" {
				var ctx struct {
					PublicKey *abi.Key `json:"publicKey"`
				}
				if err := json.Unmarshal([]byte(ctxJSON), &ctx); err != nil {
					return fmt.Errorf("invalid --ctx: %w", err)
				}
				ctxKey = ctx.PublicKey
			}

			inputs, err := vm.NewInputs(*descriptor, ctxKey, json.RawMessage(thisJSON), args)
			if err != nil {
				return err
			}

			executor := &vm.ProcessExecutor{Path: vmPath}
			out, err := vm.Run(context.Background(), executor, string(code), inputs, proofOutput != "")
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "this_json: %s\n", out.This)
			if out.Result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "result_json: %s\n", out.Result)
			}
			if proofOutput != "" {
				if err := os.WriteFile(proofOutput, out.Proof, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Proof saved to %s\n", proofOutput)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&thisJSON, "this-json", "{}", "JSON value for `this`")
	cmd.Flags().StringVar(&adviceTapeJSON, "advice-tape-json", "", "JSON array of arguments")
	cmd.Flags().StringVar(&abiJSON, "abi", "", "ABI JSON (extracted from the code when omitted)")
	cmd.Flags().StringVar(&ctxJSON, "ctx", "", `context JSON, e.g. {"publicKey": {...}}`)
	cmd.Flags().StringVar(&vmPath, "vm", "miden-vm", "path to the VM executor binary")
	cmd.Flags().StringVar(&proofOutput, "proof-output", "", "write a proof to this file")
	return cmd
}

func serverCmd() *cobra.Command {
	var (
		addr   string
		vmPath string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the prover over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				port := os.Getenv("PORT")
				if port == "" {
					port = "8080"
				}
				addr = os.Getenv("PROVER_LADDR")
				if addr == "" {
					addr = "0.0.0.0:" + port
				}
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			s := server.New(&vm.ProcessExecutor{Path: vmPath}, logger)
			return s.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to $PROVER_LADDR or :$PORT)")
	cmd.Flags().StringVar(&vmPath, "vm", "miden-vm", "path to the VM executor binary")
	return cmd
}
