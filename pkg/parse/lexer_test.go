package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylang/polylang/pkg/diag"
)

func lexAll(t *testing.T, input string) []Token {
	t.Helper()
	tokens, err := Tokens(input)
	require.Nil(t, err)
	return tokens
}

func TestLexer_Whitespace(t *testing.T) {
	tokens := lexAll(t, "  ")
	require.Len(t, tokens, 1)
	assert.Equal(t, EOF, tokens[0].Type)
}

func TestLexer_Keywords(t *testing.T) {
	tokens := lexAll(t, "desc asc")
	require.Len(t, tokens, 3)
	assert.Equal(t, KwDesc, tokens[0].Type)
	assert.Equal(t, diag.Ranging{From: 0, To: 4}, tokens[0].Ranging)
	assert.Equal(t, KwAsc, tokens[1].Type)
	assert.Equal(t, diag.Ranging{From: 5, To: 8}, tokens[1].Ranging)
}

func TestLexer_Numbers(t *testing.T) {
	tokens := lexAll(t, "123.456 987")
	require.Len(t, tokens, 3)
	assert.Equal(t, NumberLiteral, tokens[0].Type)
	assert.Equal(t, 123.456, tokens[0].Number)
	assert.Equal(t, diag.Ranging{From: 0, To: 7}, tokens[0].Ranging)
	assert.Equal(t, 987.0, tokens[1].Number)
}

func TestLexer_NumberError(t *testing.T) {
	_, err := Tokens("123.456.789")
	require.NotNil(t, err)
	assert.Equal(t, diag.LexicalError, err.Type)
	assert.Equal(t, "Failed to parse number", err.Message)
}

func TestLexer_Strings(t *testing.T) {
	tokens := lexAll(t, "'hello' \"world\"")
	require.Len(t, tokens, 3)
	assert.Equal(t, StringLiteral, tokens[0].Type)
	assert.Equal(t, "hello", tokens[0].Text)
	assert.Equal(t, diag.Ranging{From: 0, To: 7}, tokens[0].Ranging)
	assert.Equal(t, "world", tokens[1].Text)
}

func TestLexer_UnterminatedString(t *testing.T) {
	_, err := Tokens("'hello")
	require.NotNil(t, err)
	assert.Equal(t, "Unterminated string", err.Message)

	_, err = Tokens(`'hello"`)
	require.NotNil(t, err)
	assert.Equal(t, "Unterminated string", err.Message)
}

func TestLexer_Identifiers(t *testing.T) {
	tokens := lexAll(t, "$hello _world x1")
	require.Len(t, tokens, 4)
	assert.Equal(t, Identifier, tokens[0].Type)
	assert.Equal(t, "$hello", tokens[0].Text)
	assert.Equal(t, "_world", tokens[1].Text)
	assert.Equal(t, "x1", tokens[2].Text)
}

func TestLexer_InvalidUnicode(t *testing.T) {
	_, err := Tokens("ą")
	require.NotNil(t, err)
	assert.Equal(t, "Invalid token", err.Message)
}

func TestLexer_Symbols(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"(", LParen}, {")", RParen},
		{"[", LBracket}, {"]", RBracket},
		{"{", LBrace}, {"}", RBrace},
		{"+", Plus}, {"-", Minus},
		{"*", Star}, {"**", StarStar},
		{"/", Slash}, {"%", Percent},
		{"!", Bang}, {"?", Question}, {"~", Tilde},
		{"&", Ampersand}, {"&&", AmpAmp},
		{"@", At}, {"^", Caret},
		{"|", Pipe}, {"||", PipePipe},
		{"=", Equal}, {"==", EqualEqual}, {"!=", BangEqual},
		{"-=", MinusEqual}, {"+=", PlusEqual},
		{",", Comma}, {":", Colon}, {";", Semicolon}, {".", Dot},
		{"<", Lt}, {">", Gt}, {"<=", Lte}, {">=", Gte},
		{"<<", Shl}, {">>", Shr},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := lexAll(t, tt.input)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.want, tokens[0].Type)
			assert.Equal(t, diag.Ranging{From: 0, To: len(tt.input)}, tokens[0].Ranging)
		})
	}
}

func TestLexer_Comments(t *testing.T) {
	tokens := lexAll(t, "/* comment */ 123 // line\n456")
	require.Len(t, tokens, 3)
	assert.Equal(t, 123.0, tokens[0].Number)
	assert.Equal(t, 456.0, tokens[1].Number)
}

func TestLexer_UnterminatedComment(t *testing.T) {
	_, err := Tokens("/* comment")
	require.NotNil(t, err)
	assert.Equal(t, "Unterminated comment", err.Message)
}

func TestLexer_AtIndex(t *testing.T) {
	tokens := lexAll(t, "@index(name)")
	require.Len(t, tokens, 5)
	assert.Equal(t, KwIndex, tokens[0].Type)
	assert.Equal(t, LParen, tokens[1].Type)
	assert.Equal(t, Identifier, tokens[2].Type)
}
