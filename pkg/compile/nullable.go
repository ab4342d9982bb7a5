package compile

import "github.com/polylang/polylang/pkg/abi"

// Nullable layout: (is_not_null, value...).

func nullableIsNotNull(s Symbol) Symbol {
	return Symbol{Type: abi.NewPrimitive(abi.Boolean), Addr: s.Addr}
}

func nullableValue(s Symbol) Symbol {
	return Symbol{Type: *s.Type.Inner, Addr: s.Addr + 1}
}

// nullableEq compares values when at least one side is nullable. Two nulls
// are equal; null never equals a value.
func (c *Compiler) nullableEq(a, b Symbol) (Symbol, error) {
	// Normalize: a is nullable.
	if a.Type.Kind != abi.KindNullable {
		a, b = b, a
	}

	result := c.mem().AllocateSymbol(abi.NewPrimitive(abi.Boolean))
	c.mem().Write(c.ins, result.Addr, []ValueSource{Immediate(0)})

	if b.Type.Kind != abi.KindNullable {
		// nullable vs plain: equal iff non-null and the values match.
		valueEq, err := c.collect(func(vc *Compiler) error {
			eq, err := vc.compileEq(nullableValue(a), b)
			if err != nil {
				return err
			}
			vc.copySymbol(result, eq)
			return nil
		})
		if err != nil {
			return Symbol{}, err
		}
		c.emit(ifTrue([]Instruction{memLoad(nullableIsNotNull(a).Addr)}, valueEq, nil))
		return result, nil
	}

	// nullable vs nullable: both null, or both set with matching values.
	bothSet, err := c.collect(func(vc *Compiler) error {
		eq, err := vc.compileEq(nullableValue(a), nullableValue(b))
		if err != nil {
			return err
		}
		vc.copySymbol(result, eq)
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}

	aSet, err := c.collect(func(sc *Compiler) error {
		sc.emit(ifTrue([]Instruction{memLoad(nullableIsNotNull(b).Addr)}, bothSet, nil))
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}

	bothNull := []Instruction{
		memLoad(nullableIsNotNull(b).Addr),
		op(OpNot),
		memStore(result.Addr),
	}

	c.emit(ifTrue([]Instruction{memLoad(nullableIsNotNull(a).Addr)}, aSet, bothNull))
	return result, nil
}

// hashNullable leaves the zero digest for null and hashes the value
// otherwise.
func (c *Compiler) hashNullable(s Symbol) (Symbol, error) {
	result := c.mem().AllocateSymbol(abi.NewHash())

	hashValue, err := c.collect(func(hc *Compiler) error {
		h, err := hc.hashSymbol(nullableValue(s))
		if err != nil {
			return err
		}
		hc.copySymbol(result, h)
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}

	c.emit(ifTrue([]Instruction{memLoad(nullableIsNotNull(s).Addr)}, hashValue, nil))
	return result, nil
}
