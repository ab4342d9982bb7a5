package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WithContext(t *testing.T) {
	src := "\n            contract test-cities {}\n        "
	err := &Error{
		Type:    ParseError,
		Message: `Unrecognized token "-". Expected one of: "{"`,
		Context: NewContext("test", src, Ranging{From: 26, To: 27}),
	}

	assert.Equal(t,
		"Error found at line 2, column 25: Unrecognized token \"-\". Expected one of: \"{\"\n"+
			"contract test-cities {}\n"+
			"             ^",
		err.Error())
}

func TestError_WithoutContext(t *testing.T) {
	err := &Error{Type: CodegenError, Message: "stack underflow"}
	assert.Equal(t, "codegen error: stack underflow", err.Error())
}

func TestContext_LineColumn(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		from, to     int
		line, column int
	}{
		{"start of input", "abc", 0, 1, 1, 0},
		{"second line", "ab\ncd", 3, 4, 2, 0},
		{"mid second line", "ab\ncd", 4, 5, 2, 1},
		{"point at end", "ab\n", 3, 3, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewContext("test", tt.source, Ranging{tt.from, tt.to})
			assert.Equal(t, tt.line, c.Line())
			assert.Equal(t, tt.column, c.Column())
		})
	}
}

func TestMixedRanging(t *testing.T) {
	r := MixedRanging(Ranging{1, 3}, Ranging{5, 9})
	assert.Equal(t, Ranging{1, 9}, r)
}
