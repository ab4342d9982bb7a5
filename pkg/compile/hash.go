package compile

import "github.com/polylang/polylang/pkg/abi"

// The in-VM commitment accumulator. Digests are 4 words; merging runs the
// VM's native 8-to-4 merge. The traversal mirrors pkg/rescue exactly: what
// the host computes for the input state, this code recomputes inside the VM.

// mergeInto folds other into h: h = merge(h, other).
func (c *Compiler) mergeInto(h, other Symbol) {
	c.readMem(h)
	c.readMem(other)
	c.emit(op(OpHMerge))
	c.writeMem(h)
}

// mergeWordInto folds a single word into h: h = merge(h, [word, 0, 0, 0]).
func (c *Compiler) mergeWordInto(h Symbol, word ValueSource) {
	c.emit(
		memLoad(h.Addr+3),
		memLoad(h.Addr+2),
		memLoad(h.Addr+1),
		memLoad(h.Addr),
		push(0),
		push(0),
		push(0),
	)
	word.load(c.ins)
	c.emit(op(OpHMerge))
	c.writeMem(h)
}

// genericHash folds a symbol's words one at a time; correct for any value
// that does not point into the heap.
func (c *Compiler) genericHash(value Symbol) Symbol {
	result := c.mem().AllocateSymbol(abi.NewHash())
	for i := uint32(0); i < value.Width(); i++ {
		c.mergeWordInto(result, FromMemory(value.Addr+i))
	}
	return result
}

// hashSymbol computes the commitment digest of a value following the
// protocol: strings fold length then bytes, arrays fold length then merge
// element digests, maps merge their key and value array digests, records
// merge field digests in declared order, references hash only the id.
func (c *Compiler) hashSymbol(value Symbol) (Symbol, error) {
	switch value.Type.Kind {
	case abi.KindPrimitive, abi.KindHash:
		return c.genericHash(value), nil

	case abi.KindString, abi.KindBytes:
		return c.hashString(value), nil

	case abi.KindContractRef:
		// A reference commits to exactly its id string.
		return c.hashString(Symbol{Type: abi.NewString(), Addr: value.Addr}), nil

	case abi.KindArray:
		return c.hashArray(value)

	case abi.KindMap:
		return c.hashMap(value)

	case abi.KindPublicKey:
		return c.hashPublicKey(value), nil

	case abi.KindNullable:
		return c.hashNullable(value)

	case abi.KindStruct:
		result := c.mem().AllocateSymbol(abi.NewHash())
		offset := uint32(0)
		for _, f := range value.Type.Struct.Fields {
			field := Symbol{Type: f.Type, Addr: value.Addr + offset}
			offset += f.Type.Width()

			fieldHash, err := c.hashSymbol(field)
			if err != nil {
				return Symbol{}, err
			}
			c.mergeInto(result, fieldHash)
		}
		return result, nil
	}
	return Symbol{}, c.codegenErr(nil, "cannot hash %s", value.Type)
}
