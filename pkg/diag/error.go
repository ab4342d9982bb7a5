package diag

import "fmt"

// Error type tags, one per stage of the pipeline that can fail.
const (
	LexicalError      = "lexical error"
	ParseError        = "parse error"
	SemanticError     = "semantic error"
	CodegenError      = "codegen error"
	ABIError          = "abi error"
	VMError           = "vm error"
	VerificationError = "verification error"
)

// Error represents an error tagged with the pipeline stage it originated
// from, and optionally the source range that caused it.
type Error struct {
	Type    string
	Message string
	Context *Context
}

// Error returns a plain text representation of the error. When source
// context is available it matches the diagnostic format printed by the CLI:
//
//	Error found at line 2, column 25: Unrecognized token "-". Expected one of: "{"
//	contract test-cities {}
//	             ^
func (e *Error) Error() string {
	if e.Context == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("Error found at line %d, column %d: %s\n%s",
		e.Context.Line(), e.Context.Column(), e.Message, e.Context.Show())
}

// Range returns the range of the error, or a zero-width range at the origin
// if the error has no context.
func (e *Error) Range() Ranging {
	if e.Context == nil {
		return PointRanging(0)
	}
	return e.Context.Range()
}
