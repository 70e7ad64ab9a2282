package core

import (
	"github.com/sarchlab/pdsasm/isa"
)

// validate checks every declaration and instruction, rewriting operands
// into the shape the allocator expects. It reports every problem it finds
// instead of stopping at the first.
func (a *Assembler) validate() {
	a.validateDeclarations()

	for _, i := range a.prog.Insts.Indices() {
		a.validateInstruction(a.prog.Insts.At(i))
	}
}

func (a *Assembler) validateDeclarations() {
	for i := 0; i < a.idents.Len(); i++ {
		id := a.idents.At(i)
		id.InlineUses = 0

		if id.Class == ClassUnresolved {
			a.report(Diagnostic{
				Loc: id.Loc, Operand: -1, Idents: []string{id.Name},
				Err: errorf(ErrDeclaration, "%q is used but never declared", id.Name),
			})

			continue
		}

		if !id.PreAssigned() && id.PreOffset < 0 {
			continue
		}

		if id.Class != ClassTemp {
			a.report(Diagnostic{
				Loc: id.Loc, Operand: -1, Idents: []string{id.Name},
				Err: errorf(ErrDeclaration, "only temporaries can be pre-assigned, %q is %s", id.Name, id.Class),
			})

			continue
		}

		if id.PreBank < 0 || id.PreBank > 1 {
			a.report(Diagnostic{
				Loc: id.Loc, Operand: -1, Idents: []string{id.Name},
				Err: errorf(ErrDeclaration, "%q pre-assigned to bank %d, banks are 0 and 1", id.Name, id.PreBank),
			})

			continue
		}

		if id.PreOffset < 0 {
			continue
		}

		end := uint32(id.PreOffset + id.Dwords())
		if end > a.target.TempDwords {
			a.report(Diagnostic{
				Loc: id.Loc, Operand: -1, Idents: []string{id.Name},
				Err: errorf(ErrDeclaration, "%q pre-assigned to temporary offset %d, region holds %d dwords",
					id.Name, id.PreOffset, a.target.TempDwords),
			})
		} else if id.Type == TypeQword && id.PreOffset%2 != 0 {
			a.report(Diagnostic{
				Loc: id.Loc, Operand: -1, Idents: []string{id.Name},
				Err: errorf(ErrDeclaration, "qword %q pre-assigned to odd offset %d", id.Name, id.PreOffset),
			})
		}
	}
}

func (a *Assembler) validateInstruction(in *Instruction) {
	desc := a.table.Lookup(in.Op)

	if in.Op == isa.OpLabel {
		if len(in.Args) != 1 || a.idents.At(in.Args[0].Ident).Class != ClassLabel {
			a.reportInst(in, -1, nil, errorf(ErrShape, "malformed label"))
		}

		return
	}

	if desc.Unsupported {
		a.reportInst(in, -1, nil, errorf(ErrUnsupported, "%s on %s", desc.Reason, a.target.Name))
		return
	}

	a.validatePredicate(in)

	switch {
	case in.Op.IsMovs():
		a.validateMovs(in)
	case in.Op.IsLoadStore():
		a.validateLoadStore(in)
	default:
		a.validateFixed(in, desc)
	}
}

func (a *Assembler) validatePredicate(in *Instruction) {
	ext := a.target.ExtendedSources

	var ok bool
	if in.Op.IsFlow() {
		_, _, ok = isa.FlowCondition(in.Pred, ext)
	} else {
		_, ok = isa.GeneralCondition(in.Pred, ext)
	}

	if ok {
		return
	}

	if in.Pred.Extended() && !ext {
		a.reportInst(in, -1, nil, errorf(ErrUnsupported,
			"predicate %s needs extended sources", in.Pred))

		return
	}

	a.reportInst(in, -1, nil, errorf(ErrShape, "predicate %s cannot be encoded on %s", in.Pred, in.Op))
}

func kindOf(arg *Argument) isa.Kind {
	switch arg.Kind {
	case ArgDataStore:
		return isa.KindDS
	case ArgImmediate:
		return isa.KindImm
	case ArgSpecialReg:
		return isa.KindReg
	case ArgPredicate:
		return isa.KindPred
	case ArgInline:
		return isa.KindLabel
	}

	return 0
}

func (a *Assembler) validateFixed(in *Instruction, desc *isa.Descriptor) {
	if len(in.Args) != desc.ArgCount {
		a.reportInst(in, -1, nil, errorf(ErrShape, "expects %d operands, got %d", desc.ArgCount, len(in.Args)))
		return
	}

	for i := range in.Args {
		a.validateOperand(in, desc, i)
	}
}

func (a *Assembler) validateOperand(in *Instruction, desc *isa.Descriptor, i int) {
	arg := &in.Args[i]
	allowed := desc.KindAt(i)
	isDest := i == 0 && desc.HasDest

	if arg.Kind == ArgSpecialReg && arg.Reg.IsCommand() {
		a.reportInst(in, i, nil, errorf(ErrShape, "command type %s is only valid as movs operand 0", arg.Reg))
		return
	}

	if arg.Kind == ArgImmediate && !allowed.Any(isa.KindImm) && allowed.Any(isa.KindDS) && !isDest {
		a.materialize(arg)
	}

	if arg.Kind != ArgDataStore {
		if !allowed.Any(kindOf(arg)) {
			a.reportInst(in, i, nil, errorf(ErrShape, "%s operand not allowed, expects %s", kindOf(arg), allowed))
		}

		if arg.Flag != FlagNone {
			a.reportInst(in, i, nil, errorf(ErrShape, "half flag only applies to data-store operands"))
		}

		return
	}

	id := a.idents.At(arg.Ident)
	if id.Class == ClassUnresolved {
		return
	}

	if allowed.Any(isa.KindLabel) {
		if id.Class != ClassLabel {
			a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "%q is not a label", id.Name))
			return
		}

		arg.Kind = ArgInline
		id.InlineUses++

		return
	}

	if !allowed.Any(isa.KindDS) {
		a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "data-store operand %q not allowed, expects %s", id.Name, allowed))
		return
	}

	if isDest && !id.IsTemp() {
		a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "destination %q is not a modifiable temporary", id.Name))
		return
	}

	a.validateFlag(in, i, id)
}

func (a *Assembler) validateFlag(in *Instruction, i int, id *Identifier) {
	if in.Args[i].Flag == FlagNone {
		return
	}

	if in.Op == isa.OpMov16 || in.Op == isa.OpMul || id.Type == TypeQword {
		return
	}

	a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "half flag on %q needs a 16-bit operation or a qword", id.Name))
}

func (a *Assembler) materialize(arg *Argument) {
	arg.Ident = a.idents.Immediate(arg.Imm)
	arg.Kind = ArgDataStore

	Trace("materialized immediate", "value", arg.Imm, "ident", a.idents.At(arg.Ident).Name)
}

func (a *Assembler) validateMovs(in *Instruction) {
	if len(in.Args) < 2 {
		a.reportInst(in, -1, nil, errorf(ErrShape, "needs a command type and at least one source"))
		return
	}

	cmdArg := &in.Args[0]
	if cmdArg.Kind != ArgSpecialReg || !cmdArg.Reg.IsCommand() {
		a.reportInst(in, 0, nil, errorf(ErrShape, "operand 0 must be a command type"))
		return
	}

	cmd, _ := isa.Command(cmdArg.Reg)
	if cmd.Extended && !a.target.ExtendedSources {
		a.reportInst(in, 0, nil, errorf(ErrUnsupported, "command type %s needs extended sources", cmd.Reg))
		return
	}

	dwords := 0

	var special []isa.SpecialReg

	for i := 1; i < len(in.Args); i++ {
		arg := &in.Args[i]

		switch arg.Kind {
		case ArgImmediate:
			a.materialize(arg)
			dwords++
		case ArgDataStore:
			id := a.idents.At(arg.Ident)
			if id.Type == TypeQword && arg.Flag == FlagNone {
				dwords += 2
			} else {
				dwords++
			}

			if arg.Flag != FlagNone && id.Type != TypeQword {
				a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "half flag on dword %q", id.Name))
			}
		case ArgSpecialReg:
			if arg.Reg.IsCommand() {
				a.reportInst(in, i, nil, errorf(ErrShape, "command type %s used as a source", arg.Reg))
				continue
			}

			dwords++

			if !containsReg(special, arg.Reg) {
				special = append(special, arg.Reg)
			}
		default:
			a.reportInst(in, i, nil, errorf(ErrShape, "%s operand not allowed as movs source", kindOf(arg)))
		}
	}

	if dwords < cmd.MinDwords || dwords > cmd.MaxDwords {
		if cmd.MinDwords == cmd.MaxDwords {
			a.reportInst(in, -1, nil, errorf(ErrShape, "%s moves exactly %d dwords, got %d",
				cmd.Reg, cmd.MinDwords, dwords))
		} else {
			a.reportInst(in, -1, nil, errorf(ErrShape, "%s moves %d to %d dwords, got %d",
				cmd.Reg, cmd.MinDwords, cmd.MaxDwords, dwords))
		}
	}

	if len(special) > 1 {
		a.reportInst(in, -1, nil, errorf(ErrShape, "at most one special register source, got %d", len(special)))
	}
}

func containsReg(regs []isa.SpecialReg, r isa.SpecialReg) bool {
	for _, x := range regs {
		if x == r {
			return true
		}
	}

	return false
}

func (a *Assembler) validateLoadStore(in *Instruction) {
	if len(in.Args) < 2 {
		a.reportInst(in, -1, nil, errorf(ErrShape, "needs an address and at least one data operand"))
		return
	}

	addr := &in.Args[0]

	switch addr.Kind {
	case ArgImmediate:
		if addr.Imm%4 != 0 {
			a.reportInst(in, 0, nil, errorf(ErrShape, "address 0x%x is not dword aligned", addr.Imm))
		}
	case ArgDataStore:
		id := a.idents.At(addr.Ident)
		if id.Class == ClassData {
			addr.Kind = ArgInline
			id.InlineUses++
		} else if id.Class != ClassUnresolved {
			a.reportInst(in, 0, []string{id.Name}, errorf(ErrShape,
				"address %q must be an immediate or a data identifier", id.Name))
		}
	default:
		a.reportInst(in, 0, nil, errorf(ErrShape, "address must be an immediate or a data identifier"))
	}

	for i := 1; i < len(in.Args); i++ {
		arg := &in.Args[i]
		if arg.Kind != ArgDataStore {
			a.reportInst(in, i, nil, errorf(ErrShape, "data operand must be a temporary"))
			continue
		}

		id := a.idents.At(arg.Ident)
		if id.Class == ClassUnresolved {
			continue
		}

		if !id.IsTemp() {
			a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "data operand %q must be a temporary", id.Name))
			continue
		}

		if arg.Flag != FlagNone && id.Type != TypeQword {
			a.reportInst(in, i, []string{id.Name}, errorf(ErrShape, "half flag on dword %q", id.Name))
		}
	}
}
