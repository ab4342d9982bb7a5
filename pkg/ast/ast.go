// Package ast defines the concrete syntax tree produced by the parser.
//
// Every node embeds a [diag.Ranging] pointing back into the source text, so
// that later stages can attach diagnostics to the code that caused them.
package ast

import "github.com/polylang/polylang/pkg/diag"

// Program is an ordered sequence of root nodes.
type Program struct {
	Nodes []RootNode
}

// RootNode is either a contract or a free function. Exactly one field is
// non-nil.
type RootNode struct {
	Contract *Contract
	Function *Function
}

// Range implements [diag.Ranger].
func (n RootNode) Range() diag.Ranging {
	if n.Contract != nil {
		return n.Contract.Range()
	}
	return n.Function.Range()
}

// Contract is a named record schema with fields, methods and indexes.
type Contract struct {
	diag.Ranging
	Name       string
	Decorators []Decorator
	Items      []ContractItem
}

// ContractItem is a field, method or index declaration. Exactly one field is
// non-nil.
type ContractItem struct {
	Field    *Field
	Function *Function
	Index    *Index
}

// Field is a named, typed contract field.
type Field struct {
	diag.Ranging
	Name       string
	Type       Type
	Required   bool
	Decorators []Decorator
}

// Decorator is an @-directive attached to a contract, field or method.
type Decorator struct {
	diag.Ranging
	Name      string
	Arguments []string
}

// Function is a method or free function. StatementsCode is the exact byte
// range of the body, comments included, taken verbatim from the input.
type Function struct {
	diag.Ranging
	Name           string
	Decorators     []Decorator
	Parameters     []Parameter
	ReturnType     *Type
	Statements     []Statement
	StatementsCode string
}

// Parameter is a function parameter. Required is false for `name?: type`.
type Parameter struct {
	diag.Ranging
	Name     string
	Type     Type
	Required bool
}

// Index is informational metadata consumed by external stores.
type Index struct {
	diag.Ranging
	Fields []IndexField
}

// IndexField is one component of an index: a field path plus a direction.
type IndexField struct {
	Path  []string
	Order Order
}

// Order is an index direction.
type Order string

// Index directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// TypeKind discriminates the closed set of type forms.
type TypeKind int

// The closed type lattice.
const (
	TypeString TypeKind = iota
	TypeNumber
	TypeF32
	TypeF64
	TypeU32
	TypeU64
	TypeI32
	TypeI64
	TypeBoolean
	TypeBytes
	TypePublicKey
	TypeArray
	TypeMap
	TypeObject
	TypeForeignRecord
	TypeRecord
)

// Type is a type expression. Elem is set for arrays, Key and Elem for maps,
// Fields for objects, and Contract for cross-contract references.
type Type struct {
	diag.Ranging
	Kind     TypeKind
	Elem     *Type
	Key      *Type
	Fields   []Field
	Contract string
}

// String renders the type the way it is written in source.
func (t Type) String() string {
	switch t.Kind {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeBoolean:
		return "boolean"
	case TypeBytes:
		return "bytes"
	case TypePublicKey:
		return "PublicKey"
	case TypeArray:
		return t.Elem.String() + "[]"
	case TypeMap:
		return "map<" + t.Key.String() + ", " + t.Elem.String() + ">"
	case TypeObject:
		s := "{ "
		for _, f := range t.Fields {
			s += f.Name
			if !f.Required {
				s += "?"
			}
			s += ": " + f.Type.String() + "; "
		}
		return s + "}"
	case TypeForeignRecord:
		return t.Contract
	case TypeRecord:
		return "record"
	}
	return "UNKNOWN"
}

// Statement is implemented by all statement nodes.
type Statement interface {
	diag.Ranger
	stmtNode()
}

// Break exits the innermost loop.
type Break struct {
	diag.Ranging
}

// Return unwinds to the caller with a value.
type Return struct {
	diag.Ranging
	Value Expression
}

// Throw evaluates its operand, which is expected to abort.
type Throw struct {
	diag.Ranging
	Value Expression
}

// Let binds a new local variable. Type is the optional annotation, which
// fixes the type of numeric literals in the initializer.
type Let struct {
	diag.Ranging
	Name  string
	Type  *Type
	Value Expression
}

// If is a conditional with optional else branch.
type If struct {
	diag.Ranging
	Cond Expression
	Then []Statement
	Else []Statement
}

// While is a pre-condition loop.
type While struct {
	diag.Ranging
	Cond Expression
	Body []Statement
}

// ForInit is the init clause of a for statement: either a let or a plain
// expression.
type ForInit struct {
	Let  *Let
	Expr Expression
}

// For is the three-clause loop; it desugars to init + while(cond){body; post}.
type For struct {
	diag.Ranging
	Init ForInit
	Cond Expression
	Post Expression
	Body []Statement
}

// ExprStatement wraps an expression in statement position.
type ExprStatement struct {
	diag.Ranging
	Expr Expression
}

func (*Break) stmtNode()         {}
func (*Return) stmtNode()        {}
func (*Throw) stmtNode()         {}
func (*Let) stmtNode()           {}
func (*If) stmtNode()            {}
func (*While) stmtNode()         {}
func (*For) stmtNode()           {}
func (*ExprStatement) stmtNode() {}

// Expression is implemented by all expression nodes.
type Expression interface {
	diag.Ranger
	exprNode()
}

// BinaryOp enumerates binary operators, including the assignment family.
type BinaryOp int

// Binary operators, in no particular order.
const (
	OpAssign BinaryOp = iota
	OpAssignAdd
	OpAssignSub
	OpOr
	OpAnd
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpBitOr
	OpBitXor
	OpBitAnd
	OpShiftLeft
	OpShiftRight
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpExponent
)

var binaryOpNames = map[BinaryOp]string{
	OpAssign: "=", OpAssignAdd: "+=", OpAssignSub: "-=",
	OpOr: "||", OpAnd: "&&",
	OpEqual: "==", OpNotEqual: "!=",
	OpLessThan: "<", OpLessThanOrEqual: "<=",
	OpGreaterThan: ">", OpGreaterThanOrEqual: ">=",
	OpBitOr: "|", OpBitXor: "^", OpBitAnd: "&",
	OpShiftLeft: "<<", OpShiftRight: ">>",
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/",
	OpModulo: "%", OpExponent: "**",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// UnaryOp enumerates prefix operators.
type UnaryOp int

// Prefix operators.
const (
	OpNot    UnaryOp = iota // !
	OpBitNot                // ~
	OpNegate                // -
)

// NumberLit is a numeric literal. HasDecimal records whether the literal was
// written with a decimal point, which matters for typing.
type NumberLit struct {
	diag.Ranging
	Value      float64
	HasDecimal bool
}

// StringLit is a single- or double-quoted string literal.
type StringLit struct {
	diag.Ranging
	Value string
}

// BoolLit is true or false.
type BoolLit struct {
	diag.Ranging
	Value bool
}

// Ident is a bare identifier, possibly $-prefixed.
type Ident struct {
	diag.Ranging
	Name string
}

// ArrayLit is [e, ...]; elements must be homogeneous, which the type checker
// enforces.
type ArrayLit struct {
	diag.Ranging
	Elems []Expression
}

// ObjectLitField is one field of an object literal.
type ObjectLitField struct {
	Name  string
	Value Expression
}

// ObjectLit is {field: e, ...}.
type ObjectLit struct {
	diag.Ranging
	Fields []ObjectLitField
}

// Binary is a binary operation, including assignments.
type Binary struct {
	diag.Ranging
	Op  BinaryOp
	LHS Expression
	RHS Expression
}

// Unary is a prefix operation.
type Unary struct {
	diag.Ranging
	Op UnaryOp
	X  Expression
}

// Dot is member access x.field.
type Dot struct {
	diag.Ranging
	X     Expression
	Field string
}

// IndexExpr is x[i].
type IndexExpr struct {
	diag.Ranging
	X   Expression
	Idx Expression
}

// Call is f(args...) or x.method(args...).
type Call struct {
	diag.Ranging
	Fn   Expression
	Args []Expression
}

func (*NumberLit) exprNode() {}
func (*StringLit) exprNode() {}
func (*BoolLit) exprNode()   {}
func (*Ident) exprNode()     {}
func (*ArrayLit) exprNode()  {}
func (*ObjectLit) exprNode() {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Dot) exprNode()       {}
func (*IndexExpr) exprNode() {}
func (*Call) exprNode()      {}
