package parse

import (
	"fmt"
	"strings"

	"github.com/polylang/polylang/pkg/ast"
	"github.com/polylang/polylang/pkg/diag"
)

// parser implements a recursive-descent parser over the token stream. The
// expression grammar follows the operator-precedence layers, strongest to
// weakest: member/index/call, unary, **, * / %, + -, << >>, < >, &, ^, |,
// <= >=, == !=, &&, ||, assignment.
type parser struct {
	input  string
	tokens []Token
	pos    int
	// lastEnd is the To position of the most recently consumed token, used
	// to capture statement-body source ranges byte-for-byte.
	lastEnd int
}

// Parse parses a whole program.
func Parse(input string) (*ast.Program, *diag.Error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	prog, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// ParseExpression parses a single expression, used by tests and tooling.
func ParseExpression(input string) (ast.Expression, *diag.Error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != EOF {
		return nil, p.unexpected(`end of file`)
	}
	return e, nil
}

// ParseFunction parses a single function declaration that starts with the
// function keyword.
func ParseFunction(input string) (*ast.Function, *diag.Error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KwFunction, `"function"`); err != nil {
		return nil, err
	}
	f, err := p.parseFunction(nil)
	if err != nil {
		return nil, err
	}
	if p.cur().Type != EOF {
		return nil, p.unexpected(`end of file`)
	}
	return f, nil
}

func newParser(input string) (*parser, *diag.Error) {
	tokens, err := Tokens(input)
	if err != nil {
		return nil, err
	}
	return &parser{input: input, tokens: tokens}, nil
}

func (p *parser) cur() Token { return p.tokens[p.pos] }

func (p *parser) at(t TokenType) bool { return p.cur().Type == t }

func (p *parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() Token {
	tok := p.cur()
	if tok.Type != EOF {
		p.pos++
		p.lastEnd = tok.To
	}
	return tok
}

func (p *parser) unexpected(expected string) *diag.Error {
	tok := p.cur()
	if tok.Type == EOF {
		return &diag.Error{
			Type:    diag.ParseError,
			Message: "Unexpected end of file",
			Context: diag.NewContext("source", p.input, tok),
		}
	}
	return &diag.Error{
		Type:    diag.ParseError,
		Message: fmt.Sprintf("Unrecognized token %q. Expected one of: %s", tok.String(), expected),
		Context: diag.NewContext("source", p.input, tok),
	}
}

func (p *parser) expect(t TokenType, expected string) (Token, *diag.Error) {
	if !p.at(t) {
		return Token{}, p.unexpected(expected)
	}
	return p.advance(), nil
}

// name tokens: identifiers plus the keywords that are legal in name
// position (field and method names like `asc` or `of`).
func (p *parser) atName() bool {
	switch p.cur().Type {
	case Identifier, KwAsc, KwDesc, KwIn, KwOf:
		return true
	}
	return false
}

func (p *parser) expectName() (Token, *diag.Error) {
	if !p.atName() {
		return Token{}, p.unexpected("identifier")
	}
	return p.advance(), nil
}

func (p *parser) parseProgram() (*ast.Program, *diag.Error) {
	prog := &ast.Program{}
	for !p.at(EOF) {
		decorators, err := p.parseDecorators()
		if err != nil {
			return nil, err
		}
		switch p.cur().Type {
		case KwContract:
			c, err := p.parseContract(decorators)
			if err != nil {
				return nil, err
			}
			prog.Nodes = append(prog.Nodes, ast.RootNode{Contract: c})
		case KwFunction:
			p.advance()
			f, err := p.parseFunction(decorators)
			if err != nil {
				return nil, err
			}
			prog.Nodes = append(prog.Nodes, ast.RootNode{Function: f})
		default:
			return nil, p.unexpected(`"contract", "function"`)
		}
	}
	return prog, nil
}

func (p *parser) parseDecorators() ([]ast.Decorator, *diag.Error) {
	var decorators []ast.Decorator
	for p.at(At) {
		at := p.advance()
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		d := ast.Decorator{
			Ranging: diag.MixedRanging(at, name),
			Name:    name.Text,
		}
		if p.at(LParen) {
			p.advance()
			for !p.at(RParen) {
				arg, err := p.parseDecoratorArgument()
				if err != nil {
					return nil, err
				}
				d.Arguments = append(d.Arguments, arg)
				if !p.at(Comma) {
					break
				}
				p.advance()
			}
			end, err := p.expect(RParen, `")"`)
			if err != nil {
				return nil, err
			}
			d.To = end.To
		}
		decorators = append(decorators, d)
	}
	return decorators, nil
}

func (p *parser) parseDecoratorArgument() (string, *diag.Error) {
	if p.at(StringLiteral) {
		return p.advance().Text, nil
	}
	name, err := p.expectName()
	if err != nil {
		return "", err
	}
	path := name.Text
	for p.at(Dot) {
		p.advance()
		part, err := p.expectName()
		if err != nil {
			return "", err
		}
		path += "." + part.Text
	}
	return path, nil
}

func (p *parser) parseContract(decorators []ast.Decorator) (*ast.Contract, *diag.Error) {
	kw := p.advance() // contract
	name, err := p.expect(Identifier, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBrace, `"{"`); err != nil {
		return nil, err
	}

	c := &ast.Contract{
		Ranging:    kw.Ranging,
		Name:       name.Text,
		Decorators: decorators,
	}
	if len(decorators) > 0 {
		c.From = decorators[0].From
	}

	for !p.at(RBrace) {
		itemDecorators, err := p.parseDecorators()
		if err != nil {
			return nil, err
		}
		switch {
		case p.at(KwIndex):
			idx, err := p.parseIndex()
			if err != nil {
				return nil, err
			}
			c.Items = append(c.Items, ast.ContractItem{Index: idx})
		case p.at(KwFunction):
			p.advance()
			f, err := p.parseFunction(itemDecorators)
			if err != nil {
				return nil, err
			}
			c.Items = append(c.Items, ast.ContractItem{Function: f})
		case p.atName() && p.peek().Type == LParen:
			// Methods may omit the function keyword.
			f, err := p.parseFunction(itemDecorators)
			if err != nil {
				return nil, err
			}
			c.Items = append(c.Items, ast.ContractItem{Function: f})
		case p.atName():
			f, err := p.parseField(itemDecorators)
			if err != nil {
				return nil, err
			}
			c.Items = append(c.Items, ast.ContractItem{Field: f})
		default:
			return nil, p.unexpected(`"}"`)
		}
	}
	end := p.advance() // }
	c.To = end.To
	return c, nil
}

func (p *parser) parseField(decorators []ast.Decorator) (*ast.Field, *diag.Error) {
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	required := true
	if p.at(Question) {
		p.advance()
		required = false
	}
	if _, err := p.expect(Colon, `":"`); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(Semicolon, `";"`)
	if err != nil {
		return nil, err
	}
	return &ast.Field{
		Ranging:    diag.MixedRanging(name, end),
		Name:       name.Text,
		Type:       typ,
		Required:   required,
		Decorators: decorators,
	}, nil
}

func (p *parser) parseIndex() (*ast.Index, *diag.Error) {
	kw := p.advance() // @index
	if _, err := p.expect(LParen, `"("`); err != nil {
		return nil, err
	}
	idx := &ast.Index{Ranging: kw.Ranging}
	for !p.at(RParen) {
		f, err := p.parseIndexField()
		if err != nil {
			return nil, err
		}
		idx.Fields = append(idx.Fields, f)
		if !p.at(Comma) {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RParen, `")"`); err != nil {
		return nil, err
	}
	end, err := p.expect(Semicolon, `";"`)
	if err != nil {
		return nil, err
	}
	idx.To = end.To
	return idx, nil
}

func (p *parser) parseIndexField() (ast.IndexField, *diag.Error) {
	if p.at(LBracket) {
		p.advance()
		path, err := p.parseFieldPath()
		if err != nil {
			return ast.IndexField{}, err
		}
		order := ast.Asc
		if p.at(Comma) {
			p.advance()
			switch p.cur().Type {
			case KwAsc:
				p.advance()
			case KwDesc:
				p.advance()
				order = ast.Desc
			default:
				return ast.IndexField{}, p.unexpected(`"asc", "desc"`)
			}
		}
		if _, err := p.expect(RBracket, `"]"`); err != nil {
			return ast.IndexField{}, err
		}
		return ast.IndexField{Path: path, Order: order}, nil
	}
	path, err := p.parseFieldPath()
	if err != nil {
		return ast.IndexField{}, err
	}
	return ast.IndexField{Path: path, Order: ast.Asc}, nil
}

func (p *parser) parseFieldPath() ([]string, *diag.Error) {
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	path := []string{name.Text}
	for p.at(Dot) {
		p.advance()
		part, err := p.expectName()
		if err != nil {
			return nil, err
		}
		path = append(path, part.Text)
	}
	return path, nil
}

// parseFunction parses a function starting at its name; the function keyword
// (when present) has already been consumed by the caller.
func (p *parser) parseFunction(decorators []ast.Decorator) (*ast.Function, *diag.Error) {
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LParen, `"("`); err != nil {
		return nil, err
	}

	f := &ast.Function{
		Ranging:    name.Ranging,
		Name:       name.Text,
		Decorators: decorators,
	}

	for !p.at(RParen) {
		param, err := p.parseParameter()
		if err != nil {
			return nil, err
		}
		f.Parameters = append(f.Parameters, param)
		if !p.at(Comma) {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RParen, `")"`); err != nil {
		return nil, err
	}

	if p.at(Colon) {
		p.advance()
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		f.ReturnType = &typ
	}

	if _, err := p.expect(LBrace, `"{"`); err != nil {
		return nil, err
	}

	bodyStart := p.cur().From
	for !p.at(RBrace) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		f.Statements = append(f.Statements, stmt)
	}
	if len(f.Statements) > 0 {
		f.StatementsCode = p.input[bodyStart:p.lastEnd]
	}
	end := p.advance() // }
	f.To = end.To
	return f, nil
}

func (p *parser) parseParameter() (ast.Parameter, *diag.Error) {
	name, err := p.expectName()
	if err != nil {
		return ast.Parameter{}, err
	}
	required := true
	if p.at(Question) {
		p.advance()
		required = false
	}
	if _, err := p.expect(Colon, `":"`); err != nil {
		return ast.Parameter{}, err
	}
	typ, err := p.parseParameterType()
	if err != nil {
		return ast.Parameter{}, err
	}
	return ast.Parameter{
		Ranging:  diag.MixedRanging(name, typ),
		Name:     name.Text,
		Type:     typ,
		Required: required,
	}, nil
}

func (p *parser) parseParameterType() (ast.Type, *diag.Error) {
	if p.at(KwRecord) {
		tok := p.advance()
		return ast.Type{Ranging: tok.Ranging, Kind: ast.TypeRecord}, nil
	}
	t, err := p.parseType()
	if err != nil {
		return ast.Type{}, err
	}
	if t.Kind == ast.TypeObject {
		return ast.Type{}, &diag.Error{
			Type:    diag.ParseError,
			Message: "object types are not allowed in parameter position",
			Context: diag.NewContext("source", p.input, t),
		}
	}
	return t, nil
}

var primitiveTypeKinds = map[TokenType]ast.TypeKind{
	KwString:  ast.TypeString,
	KwNumber:  ast.TypeNumber,
	KwF32:     ast.TypeF32,
	KwF64:     ast.TypeF64,
	KwU32:     ast.TypeU32,
	KwU64:     ast.TypeU64,
	KwI32:     ast.TypeI32,
	KwI64:     ast.TypeI64,
	KwBoolean: ast.TypeBoolean,
	KwBytes:   ast.TypeBytes,
}

func (p *parser) parseType() (ast.Type, *diag.Error) {
	var t ast.Type
	kind, isPrimitive := primitiveTypeKinds[p.cur().Type]
	switch {
	case isPrimitive:
		tok := p.advance()
		t = ast.Type{Ranging: tok.Ranging, Kind: kind}
	case p.at(KwPublicKey):
		tok := p.advance()
		t = ast.Type{Ranging: tok.Ranging, Kind: ast.TypePublicKey}
	case p.at(KwMap):
		kw := p.advance()
		if _, err := p.expect(Lt, `"<"`); err != nil {
			return ast.Type{}, err
		}
		key, err := p.parseType()
		if err != nil {
			return ast.Type{}, err
		}
		if _, err := p.expect(Comma, `","`); err != nil {
			return ast.Type{}, err
		}
		value, err := p.parseType()
		if err != nil {
			return ast.Type{}, err
		}
		end, err := p.expect(Gt, `">"`)
		if err != nil {
			return ast.Type{}, err
		}
		t = ast.Type{
			Ranging: diag.MixedRanging(kw, end),
			Kind:    ast.TypeMap,
			Key:     &key,
			Elem:    &value,
		}
	case p.at(LBrace):
		start := p.advance()
		var fields []ast.Field
		for !p.at(RBrace) {
			f, err := p.parseField(nil)
			if err != nil {
				return ast.Type{}, err
			}
			fields = append(fields, *f)
		}
		end := p.advance()
		t = ast.Type{
			Ranging: diag.MixedRanging(start, end),
			Kind:    ast.TypeObject,
			Fields:  fields,
		}
	case p.at(Identifier):
		tok := p.advance()
		t = ast.Type{Ranging: tok.Ranging, Kind: ast.TypeForeignRecord, Contract: tok.Text}
	default:
		return ast.Type{}, p.unexpected("type")
	}

	for p.at(LBracket) && p.peek().Type == RBracket {
		p.advance()
		end := p.advance()
		elem := t
		t = ast.Type{
			Ranging: diag.MixedRanging(elem, end),
			Kind:    ast.TypeArray,
			Elem:    &elem,
		}
	}
	return t, nil
}

func (p *parser) parseStatement() (ast.Statement, *diag.Error) {
	switch p.cur().Type {
	case KwBreak:
		kw := p.advance()
		end, err := p.expect(Semicolon, `";"`)
		if err != nil {
			return nil, err
		}
		return &ast.Break{Ranging: diag.MixedRanging(kw, end)}, nil

	case KwReturn:
		kw := p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(Semicolon, `";"`)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Ranging: diag.MixedRanging(kw, end), Value: value}, nil

	case KwThrow:
		kw := p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(Semicolon, `";"`)
		if err != nil {
			return nil, err
		}
		return &ast.Throw{Ranging: diag.MixedRanging(kw, end), Value: value}, nil

	case KwLet:
		letStmt, err := p.parseLet()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(Semicolon, `";"`)
		if err != nil {
			return nil, err
		}
		letStmt.To = end.To
		return letStmt, nil

	case KwIf:
		return p.parseIf()

	case KwWhile:
		kw := p.advance()
		if _, err := p.expect(LParen, `"("`); err != nil {
			return nil, err
		}
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RParen, `")"`); err != nil {
			return nil, err
		}
		body, err := p.parseStatementOrBlock()
		if err != nil {
			return nil, err
		}
		return &ast.While{
			Ranging: diag.Ranging{From: kw.From, To: p.lastEnd},
			Cond:    cond,
			Body:    body,
		}, nil

	case KwFor:
		return p.parseFor()

	default:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(Semicolon, `";"`)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStatement{
			Ranging: diag.MixedRanging(expr, end),
			Expr:    expr,
		}, nil
	}
}

func (p *parser) parseLet() (*ast.Let, *diag.Error) {
	kw := p.advance() // let
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	// An optional type annotation fixes the type of literal initializers.
	var annotation *ast.Type
	if p.at(Colon) {
		p.advance()
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		annotation = &typ
	}
	if _, err := p.expect(Equal, `"="`); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Let{
		Ranging: diag.Ranging{From: kw.From, To: p.lastEnd},
		Name:    name.Text,
		Type:    annotation,
		Value:   value,
	}, nil
}

func (p *parser) parseIf() (ast.Statement, *diag.Error) {
	kw := p.advance() // if
	if _, err := p.expect(LParen, `"("`); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RParen, `")"`); err != nil {
		return nil, err
	}
	then, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	var elseStmts []ast.Statement
	if p.at(KwElse) {
		p.advance()
		if p.at(KwIf) {
			stmt, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseStmts = []ast.Statement{stmt}
		} else {
			elseStmts, err = p.parseStatementOrBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.If{
		Ranging: diag.Ranging{From: kw.From, To: p.lastEnd},
		Cond:    cond,
		Then:    then,
		Else:    elseStmts,
	}, nil
}

func (p *parser) parseFor() (ast.Statement, *diag.Error) {
	kw := p.advance() // for
	if _, err := p.expect(LParen, `"("`); err != nil {
		return nil, err
	}

	var init ast.ForInit
	if p.at(KwLet) {
		letStmt, err := p.parseLet()
		if err != nil {
			return nil, err
		}
		init.Let = letStmt
	} else {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init.Expr = expr
	}
	if _, err := p.expect(Semicolon, `";"`); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(Semicolon, `";"`); err != nil {
		return nil, err
	}

	post, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RParen, `")"`); err != nil {
		return nil, err
	}

	body, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{
		Ranging: diag.Ranging{From: kw.From, To: p.lastEnd},
		Init:    init,
		Cond:    cond,
		Post:    post,
		Body:    body,
	}, nil
}

func (p *parser) parseStatementOrBlock() ([]ast.Statement, *diag.Error) {
	if p.at(LBrace) {
		p.advance()
		var stmts []ast.Statement
		for !p.at(RBrace) {
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		}
		p.advance()
		return stmts, nil
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return []ast.Statement{stmt}, nil
}

// Expression grammar, one function per precedence layer.

func (p *parser) parseExpr() (ast.Expression, *diag.Error) {
	return p.parseAssign()
}

func (p *parser) parseAssign() (ast.Expression, *diag.Error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	var op ast.BinaryOp
	switch p.cur().Type {
	case Equal:
		op = ast.OpAssign
	case PlusEqual:
		op = ast.OpAssignAdd
	case MinusEqual:
		op = ast.OpAssignSub
	default:
		return lhs, nil
	}
	p.advance()
	rhs, err := p.parseAssign() // right-associative
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Ranging: diag.MixedRanging(lhs, rhs), Op: op, LHS: lhs, RHS: rhs}, nil
}

// binaryLevel parses a left-associative level with the given operators.
func (p *parser) binaryLevel(
	next func() (ast.Expression, *diag.Error),
	ops map[TokenType]ast.BinaryOp,
	nonAssoc bool,
) (ast.Expression, *diag.Error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.cur().Type]
		if !ok {
			return lhs, nil
		}
		p.advance()
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		lhs = &ast.Binary{Ranging: diag.MixedRanging(lhs, rhs), Op: op, LHS: lhs, RHS: rhs}
		if nonAssoc {
			return lhs, nil
		}
	}
}

func (p *parser) parseOr() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseAnd, map[TokenType]ast.BinaryOp{PipePipe: ast.OpOr}, false)
}

func (p *parser) parseAnd() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseEquality, map[TokenType]ast.BinaryOp{AmpAmp: ast.OpAnd}, false)
}

func (p *parser) parseEquality() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseOrdering, map[TokenType]ast.BinaryOp{
		EqualEqual: ast.OpEqual,
		BangEqual:  ast.OpNotEqual,
	}, true)
}

func (p *parser) parseOrdering() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseBitOr, map[TokenType]ast.BinaryOp{
		Lte: ast.OpLessThanOrEqual,
		Gte: ast.OpGreaterThanOrEqual,
	}, true)
}

func (p *parser) parseBitOr() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseBitXor, map[TokenType]ast.BinaryOp{Pipe: ast.OpBitOr}, false)
}

func (p *parser) parseBitXor() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseBitAnd, map[TokenType]ast.BinaryOp{Caret: ast.OpBitXor}, false)
}

func (p *parser) parseBitAnd() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseComparison, map[TokenType]ast.BinaryOp{Ampersand: ast.OpBitAnd}, false)
}

func (p *parser) parseComparison() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseShift, map[TokenType]ast.BinaryOp{
		Lt: ast.OpLessThan,
		Gt: ast.OpGreaterThan,
	}, true)
}

func (p *parser) parseShift() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseAdditive, map[TokenType]ast.BinaryOp{
		Shl: ast.OpShiftLeft,
		Shr: ast.OpShiftRight,
	}, false)
}

func (p *parser) parseAdditive() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseMultiplicative, map[TokenType]ast.BinaryOp{
		Plus:  ast.OpAdd,
		Minus: ast.OpSubtract,
	}, false)
}

func (p *parser) parseMultiplicative() (ast.Expression, *diag.Error) {
	return p.binaryLevel(p.parseExponent, map[TokenType]ast.BinaryOp{
		Star:    ast.OpMultiply,
		Slash:   ast.OpDivide,
		Percent: ast.OpModulo,
	}, false)
}

func (p *parser) parseExponent() (ast.Expression, *diag.Error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if !p.at(StarStar) {
		return lhs, nil
	}
	p.advance()
	rhs, err := p.parseExponent() // right-associative
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Ranging: diag.MixedRanging(lhs, rhs), Op: ast.OpExponent, LHS: lhs, RHS: rhs}, nil
}

func (p *parser) parseUnary() (ast.Expression, *diag.Error) {
	var op ast.UnaryOp
	switch p.cur().Type {
	case Bang:
		op = ast.OpNot
	case Tilde:
		op = ast.OpBitNot
	case Minus:
		op = ast.OpNegate
	default:
		return p.parsePostfix()
	}
	tok := p.advance()
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Unary{Ranging: diag.MixedRanging(tok, x), Op: op, X: x}, nil
}

func (p *parser) parsePostfix() (ast.Expression, *diag.Error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case Dot:
			p.advance()
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			x = &ast.Dot{Ranging: diag.MixedRanging(x, name), X: x, Field: name.Text}
		case LParen:
			p.advance()
			var args []ast.Expression
			for !p.at(RParen) {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.at(Comma) {
					break
				}
				p.advance()
			}
			end, err := p.expect(RParen, `")"`)
			if err != nil {
				return nil, err
			}
			x = &ast.Call{Ranging: diag.MixedRanging(x, end), Fn: x, Args: args}
		case LBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end, err := p.expect(RBracket, `"]"`)
			if err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{Ranging: diag.MixedRanging(x, end), X: x, Idx: idx}
		case PlusPlus, MinusMinus:
			// i++ desugars to i += 1 (and i-- to i -= 1).
			tok := p.advance()
			op := ast.OpAssignAdd
			if tok.Type == MinusMinus {
				op = ast.OpAssignSub
			}
			one := &ast.NumberLit{Ranging: tok.Ranging, Value: 1}
			x = &ast.Binary{Ranging: diag.MixedRanging(x, tok), Op: op, LHS: x, RHS: one}
		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expression, *diag.Error) {
	switch p.cur().Type {
	case NumberLiteral:
		tok := p.advance()
		return &ast.NumberLit{
			Ranging:    tok.Ranging,
			Value:      tok.Number,
			HasDecimal: strings.ContainsRune(tok.Text, '.'),
		}, nil
	case StringLiteral:
		tok := p.advance()
		return &ast.StringLit{Ranging: tok.Ranging, Value: tok.Text}, nil
	case KwTrue:
		tok := p.advance()
		return &ast.BoolLit{Ranging: tok.Ranging, Value: true}, nil
	case KwFalse:
		tok := p.advance()
		return &ast.BoolLit{Ranging: tok.Ranging, Value: false}, nil
	case Identifier:
		tok := p.advance()
		return &ast.Ident{Ranging: tok.Ranging, Name: tok.Text}, nil
	case LParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RParen, `")"`); err != nil {
			return nil, err
		}
		return e, nil
	case LBracket:
		start := p.advance()
		arr := &ast.ArrayLit{Ranging: start.Ranging}
		for !p.at(RBracket) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, e)
			if !p.at(Comma) {
				break
			}
			p.advance()
		}
		end, err := p.expect(RBracket, `"]"`)
		if err != nil {
			return nil, err
		}
		arr.To = end.To
		return arr, nil
	case LBrace:
		start := p.advance()
		obj := &ast.ObjectLit{Ranging: start.Ranging}
		for !p.at(RBrace) {
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(Colon, `":"`); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, ast.ObjectLitField{Name: name.Text, Value: value})
			if !p.at(Comma) {
				break
			}
			p.advance()
		}
		end, err := p.expect(RBrace, `"}"`)
		if err != nil {
			return nil, err
		}
		obj.To = end.To
		return obj, nil
	}
	return nil, p.unexpected("expression")
}
