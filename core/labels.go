package core

import "github.com/sarchlab/pdsasm/isa"

// resolveLabels gives every label the index of the next real instruction
// and unlinks the label pseudo-instructions. It runs after expansion so
// that split LOAD/STORE words are counted. Running it again changes
// nothing.
func (a *Assembler) resolveLabels() error {
	list := a.prog.Insts

	var pc uint32

	for i := list.Front(); i != nilIndex; {
		next := list.Next(i)
		in := list.At(i)

		if in.Op == isa.OpLabel {
			id := a.idents.At(in.Args[0].Ident)
			id.LabelOffset = pc
			id.LabelResolved = true

			Trace("label resolved", "label", id.Name, "offset", pc)

			list.Remove(i)
		} else {
			pc++
		}

		i = next
	}

	if pc > a.target.MaxCodeWords {
		return a.fail(nil, -1, nil, errorf(ErrResource,
			"program has %d words, code space holds %d", pc, a.target.MaxCodeWords))
	}

	for _, i := range list.Indices() {
		in := list.At(i)

		for ai := range in.Args {
			arg := &in.Args[ai]
			if arg.Kind != ArgInline {
				continue
			}

			id := a.idents.At(arg.Ident)
			if id.Class != ClassLabel {
				continue
			}

			if !id.LabelResolved {
				return a.fail(in, ai, []string{id.Name}, errorf(ErrDeclaration,
					"label %q is never placed", id.Name))
			}

			if id.LabelOffset >= a.target.MaxCodeWords {
				return a.fail(in, ai, []string{id.Name}, errorf(ErrResource,
					"target %q at %d is outside the %d-word code space",
					id.Name, id.LabelOffset, a.target.MaxCodeWords))
			}
		}
	}

	return nil
}
