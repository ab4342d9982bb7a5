// Package check is the semantic analyzer: it resolves identifiers, expands
// contract references, assigns every expression a type from the closed type
// lattice, and rejects programs that would require runtime type dispatch the
// VM cannot perform.
//
// Checking runs in two passes. The declaration pass collects every contract
// into a flat arena where cross-contract references are indices, so the
// schema forms a DAG of indices even when the source is cyclic. The body
// pass types each function body against an environment seeded with its
// parameters and `this`.
package check

import (
	"fmt"

	"github.com/polylang/polylang/pkg/abi"
	"github.com/polylang/polylang/pkg/ast"
	"github.com/polylang/polylang/pkg/diag"
)

// Program is the elaborated, type-resolved view of a parsed program.
type Program struct {
	Source    string
	AST       *ast.Program
	Contracts []*Contract
	Functions map[string]*ast.Function

	contractIndex map[string]int
}

// Contract is one slot of the contract arena.
type Contract struct {
	Index int
	Name  string
	AST   *ast.Contract

	// Struct is the record layout: every field in declared order, with the
	// implicit `id: string` primary key prepended when not declared.
	Struct abi.Struct

	Methods map[string]*ast.Function

	// Refs holds arena indices of contracts referenced from field or
	// parameter types.
	Refs []int

	// Directive metadata, preserved for external stores; the compiler does
	// not enforce access control.
	CallDirective bool
	ReadDirective bool
	FieldRead     map[string]bool
	FieldDelegate map[string]bool
}

// Contract returns the schema of the named contract.
func (p *Program) Contract(name string) (*Contract, bool) {
	i, ok := p.contractIndex[name]
	if !ok {
		return nil, false
	}
	return p.Contracts[i], true
}

func (p *Program) semErr(r diag.Ranger, format string, args ...any) *diag.Error {
	return &diag.Error{
		Type:    diag.SemanticError,
		Message: fmt.Sprintf(format, args...),
		Context: diag.NewContext("source", p.Source, r),
	}
}

// Check runs both passes over the program and returns the resolved view.
func Check(source string, prog *ast.Program) (*Program, error) {
	p := &Program{
		Source:        source,
		AST:           prog,
		Functions:     map[string]*ast.Function{},
		contractIndex: map[string]int{},
	}
	if err := p.declare(); err != nil {
		return nil, err
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	if err := p.checkBodies(); err != nil {
		return nil, err
	}
	return p, nil
}

// declare registers every contract and free function by name.
func (p *Program) declare() error {
	for _, node := range p.AST.Nodes {
		switch {
		case node.Contract != nil:
			c := node.Contract
			if _, exists := p.contractIndex[c.Name]; exists {
				return p.semErr(c, "contract `%s` is already defined", c.Name)
			}
			schema := &Contract{
				Index:         len(p.Contracts),
				Name:          c.Name,
				AST:           c,
				Methods:       map[string]*ast.Function{},
				FieldRead:     map[string]bool{},
				FieldDelegate: map[string]bool{},
			}
			for _, d := range c.Decorators {
				switch d.Name {
				case "public":
					schema.CallDirective = true
					schema.ReadDirective = true
				case "call":
					schema.CallDirective = true
				case "read":
					schema.ReadDirective = true
				}
			}
			p.contractIndex[c.Name] = schema.Index
			p.Contracts = append(p.Contracts, schema)

		case node.Function != nil:
			f := node.Function
			if _, exists := p.Functions[f.Name]; exists {
				return p.semErr(f, "function `%s` is already defined", f.Name)
			}
			p.Functions[f.Name] = f
		}
	}
	return nil
}

// resolve builds each contract's record layout, now that every contract
// name is known.
func (p *Program) resolve() error {
	for _, schema := range p.Contracts {
		declaredID := false
		for _, item := range schema.AST.Items {
			switch {
			case item.Field != nil:
				f := item.Field
				if f.Name == "id" {
					if f.Type.Kind != ast.TypeString || !f.Required {
						return p.semErr(f, "field `id` must be a required string")
					}
					declaredID = true
				}
				typ, err := p.abiType(schema, f.Required, &f.Type)
				if err != nil {
					return err
				}
				schema.Struct.Fields = append(schema.Struct.Fields, abi.StructField{
					Name: f.Name,
					Type: typ,
				})
				for _, d := range f.Decorators {
					switch d.Name {
					case "read":
						schema.FieldRead[f.Name] = true
					case "delegate":
						schema.FieldDelegate[f.Name] = true
					}
				}
			case item.Function != nil:
				schema.Methods[item.Function.Name] = item.Function
			}
		}
		if !declaredID {
			schema.Struct.Fields = append([]abi.StructField{
				{Name: "id", Type: abi.NewString()},
			}, schema.Struct.Fields...)
		}
		schema.Struct.Name = schema.Name
	}
	return nil
}

// AbiType maps a source type to its VM layout type; the code generator uses
// it for let annotations and parameters.
func (p *Program) AbiType(self *Contract, required bool, t *ast.Type) (abi.Type, error) {
	return p.abiType(self, required, t)
}

// abiType maps a source type to its VM layout type. A non-required field or
// parameter wraps in a nullability word.
func (p *Program) abiType(self *Contract, required bool, t *ast.Type) (abi.Type, error) {
	inner, err := p.abiTypeInner(self, t)
	if err != nil {
		return abi.Type{}, err
	}
	if !required {
		return abi.NewNullable(inner), nil
	}
	return inner, nil
}

func (p *Program) abiTypeInner(self *Contract, t *ast.Type) (abi.Type, error) {
	switch t.Kind {
	case ast.TypeString:
		return abi.NewString(), nil
	case ast.TypeBytes:
		return abi.NewBytes(), nil
	case ast.TypeBoolean:
		return abi.NewPrimitive(abi.Boolean), nil
	// `number` is the VM's general numeric: a single-word float, matching
	// the one-word checked arithmetic the target provides.
	case ast.TypeNumber, ast.TypeF32:
		return abi.NewPrimitive(abi.Float32), nil
	case ast.TypeF64:
		return abi.NewPrimitive(abi.Float64), nil
	case ast.TypeU32:
		return abi.NewPrimitive(abi.UInt32), nil
	case ast.TypeU64:
		return abi.NewPrimitive(abi.UInt64), nil
	case ast.TypeI32:
		return abi.NewPrimitive(abi.Int32), nil
	case ast.TypeI64:
		return abi.NewPrimitive(abi.Int64), nil
	case ast.TypePublicKey:
		return abi.NewPublicKey(), nil
	case ast.TypeArray:
		elem, err := p.abiTypeInner(self, t.Elem)
		if err != nil {
			return abi.Type{}, err
		}
		return abi.NewArray(elem), nil
	case ast.TypeMap:
		key, err := p.abiTypeInner(self, t.Key)
		if err != nil {
			return abi.Type{}, err
		}
		if !key.Equal(abi.NewString()) && !isNumeric(key) {
			return abi.Type{}, p.semErr(t, "map keys must be strings or numbers, found %s", key)
		}
		value, err := p.abiTypeInner(self, t.Elem)
		if err != nil {
			return abi.Type{}, err
		}
		if value.Kind == abi.KindMap {
			return abi.Type{}, p.semErr(t, "map values may not be maps")
		}
		return abi.NewMap(key, value), nil
	case ast.TypeObject:
		s := abi.Struct{Name: "anonymous"}
		for _, f := range t.Fields {
			typ, err := p.abiType(self, f.Required, &f.Type)
			if err != nil {
				return abi.Type{}, err
			}
			s.Fields = append(s.Fields, abi.StructField{Name: f.Name, Type: typ})
		}
		return abi.NewStruct(s), nil
	case ast.TypeForeignRecord:
		target, ok := p.contractIndex[t.Contract]
		if !ok {
			return abi.Type{}, p.semErr(t, "unknown contract `%s`", t.Contract)
		}
		if self != nil {
			self.Refs = append(self.Refs, target)
		}
		return abi.NewContractRef(t.Contract), nil
	case ast.TypeRecord:
		if self == nil {
			return abi.Type{}, p.semErr(t, "`record` is only valid inside a contract")
		}
		return abi.NewStruct(self.Struct), nil
	}
	return abi.Type{}, p.semErr(t, "unsupported type")
}

func isNumeric(t abi.Type) bool {
	if t.Kind != abi.KindPrimitive {
		return false
	}
	switch t.Primitive {
	case abi.UInt32, abi.UInt64, abi.Int32, abi.Int64, abi.Float32, abi.Float64:
		return true
	}
	return false
}

func isInteger(t abi.Type) bool {
	if t.Kind != abi.KindPrimitive {
		return false
	}
	switch t.Primitive {
	case abi.UInt32, abi.UInt64, abi.Int32, abi.Int64:
		return true
	}
	return false
}
