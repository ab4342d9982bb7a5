package stableast

import (
	"fmt"
	"strings"

	"github.com/polylang/polylang/pkg/ast"
)

// FromProgram elaborates the concrete AST into the stable wire tree. The
// namespace is an opaque caller-supplied string scoping contract names.
func FromProgram(namespace string, prog *ast.Program) (Root, error) {
	root := Root{}
	for _, node := range prog.Nodes {
		switch {
		case node.Contract != nil:
			c, err := elaborateContract(namespace, node.Contract)
			if err != nil {
				return nil, err
			}
			root = append(root, RootNode{Contract: c})
		case node.Function != nil:
			f := node.Function
			root = append(root, RootNode{Function: &Function{
				Kind:       KindFunction,
				Namespace:  Namespace{Kind: KindNamespace, Value: namespace},
				Name:       f.Name,
				Attributes: elaborateMethodAttributes(f),
				Code:       f.StatementsCode,
			}})
		default:
			return nil, fmt.Errorf("empty root node")
		}
	}
	return root, nil
}

func elaborateContract(namespace string, c *ast.Contract) (*Contract, error) {
	out := &Contract{
		Kind:       KindContract,
		Namespace:  Namespace{Kind: KindNamespace, Value: namespace},
		Name:       c.Name,
		Attributes: []Attribute{},
	}

	for _, item := range c.Items {
		switch {
		case item.Field != nil:
			f := item.Field
			out.Attributes = append(out.Attributes, Attribute{Property: &Property{
				Kind:       KindProperty,
				Name:       f.Name,
				Type:       elaborateType(&f.Type),
				Directives: elaborateDirectives(f.Decorators),
				Required:   f.Required,
			}})
		case item.Function != nil:
			f := item.Function
			out.Attributes = append(out.Attributes, Attribute{Method: &Method{
				Kind:       KindMethod,
				Name:       f.Name,
				Attributes: elaborateMethodAttributes(f),
				Code:       f.StatementsCode,
			}})
		case item.Index != nil:
			idx := &Index{Kind: KindIndex, Fields: []IndexField{}}
			for _, f := range item.Index.Fields {
				idx.Fields = append(idx.Fields, IndexField{
					Direction: string(f.Order),
					FieldPath: f.Path,
				})
			}
			out.Attributes = append(out.Attributes, Attribute{Index: idx})
		}
	}

	// Contract-level directives come after the items, matching the wire
	// layout consumers already depend on.
	for _, d := range elaborateDirectives(c.Decorators) {
		directive := d
		out.Attributes = append(out.Attributes, Attribute{Directive: &directive})
	}
	return out, nil
}

func elaborateMethodAttributes(f *ast.Function) []MethodAttribute {
	attrs := []MethodAttribute{}
	for _, p := range f.Parameters {
		typ := p.Type
		attrs = append(attrs, MethodAttribute{Parameter: &Parameter{
			Kind:     KindParameter,
			Name:     p.Name,
			Type:     elaborateType(&typ),
			Required: p.Required,
		}})
	}
	if f.ReturnType != nil {
		attrs = append(attrs, MethodAttribute{ReturnValue: &ReturnValue{
			Kind: KindReturnValue,
			Name: "_",
			Type: elaborateType(f.ReturnType),
		}})
	}
	for _, d := range elaborateDirectives(f.Decorators) {
		directive := d
		attrs = append(attrs, MethodAttribute{Directive: &directive})
	}
	return attrs
}

func elaborateDirectives(decorators []ast.Decorator) []Directive {
	out := []Directive{}
	for _, d := range decorators {
		directive := Directive{
			Kind:      KindDirective,
			Name:      d.Name,
			Arguments: []DirectiveArgument{},
		}
		for _, arg := range d.Arguments {
			directive.Arguments = append(directive.Arguments, DirectiveArgument{
				FieldReference: &FieldReference{
					Kind: KindFieldReference,
					Path: strings.Split(arg, "."),
				},
			})
		}
		out = append(out, directive)
	}
	return out
}

var primitiveNames = map[ast.TypeKind]string{
	ast.TypeString:  PrimitiveString,
	ast.TypeNumber:  PrimitiveNumber,
	ast.TypeF32:     PrimitiveF32,
	ast.TypeF64:     PrimitiveF64,
	ast.TypeU32:     PrimitiveU32,
	ast.TypeU64:     PrimitiveU64,
	ast.TypeI32:     PrimitiveI32,
	ast.TypeI64:     PrimitiveI64,
	ast.TypeBoolean: PrimitiveBoolean,
	ast.TypeBytes:   PrimitiveBytes,
}

func elaborateType(t *ast.Type) Type {
	switch t.Kind {
	case ast.TypeArray:
		elem := elaborateType(t.Elem)
		return Type{Array: &Array{Kind: KindArray, Value: &elem}}
	case ast.TypeMap:
		key := elaborateType(t.Key)
		value := elaborateType(t.Elem)
		return Type{Map: &Map{Kind: KindMap, Key: &key, Value: &value}}
	case ast.TypeObject:
		obj := &Object{Kind: KindObject, Fields: []ObjectField{}}
		for _, f := range t.Fields {
			typ := f.Type
			obj.Fields = append(obj.Fields, ObjectField{
				Name:     f.Name,
				Type:     elaborateType(&typ),
				Required: f.Required,
			})
		}
		return Type{Object: obj}
	case ast.TypeForeignRecord:
		return Type{ForeignRecord: &ForeignRecord{Kind: KindForeignRecord, Contract: t.Contract}}
	case ast.TypePublicKey:
		return Type{PublicKey: &PublicKey{Kind: KindPublicKey}}
	case ast.TypeRecord:
		return Type{Record: &Record{Kind: KindRecord}}
	default:
		return Type{Primitive: &Primitive{Kind: KindPrimitive, Value: primitiveNames[t.Kind]}}
	}
}
