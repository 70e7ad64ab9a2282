package core

import (
	"github.com/sarchlab/pdsasm/isa"
)

// packer accumulates fields of one word and keeps the first overflow.
type packer struct {
	word uint32
	err  error
}

func (p *packer) put(f isa.Field, v uint32) {
	if p.err != nil {
		return
	}

	bits, err := f.Pack(v)
	if err != nil {
		p.err = err
		return
	}

	p.word |= bits
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}

// encode turns the final instruction list into words. dataDwords is the
// size of the data segment that precedes the code in the image, so that
// inline parameters record absolute positions.
func (a *Assembler) encode(dataDwords int) ([]uint32, error) {
	var words []uint32

	for _, i := range a.prog.Insts.Indices() {
		in := a.prog.Insts.At(i)
		pos := dataDwords + len(words)

		w, err := a.encodeInst(in, pos)
		if err != nil {
			return nil, a.fail(in, -1, nil, err)
		}

		in.Word = w
		words = append(words, w)
	}

	return words, nil
}

func (a *Assembler) encodeInst(in *Instruction, pos int) (uint32, error) {
	desc := a.table.Lookup(in.Op)
	if desc.Unsupported {
		return 0, errorf(ErrUnsupported, "%s", desc.Reason)
	}

	p := &packer{}

	switch {
	case in.Op.IsFlow() || in.Op == isa.OpNop || in.Op == isa.OpFence ||
		in.Op == isa.OpWdf || in.Op == isa.OpAlum:
		a.encodeFlow(p, in)
	case in.Op.IsMovs():
		a.encodeMovs(p, in)
	case in.Op.IsLoadStore():
		a.encodeLoadStore(p, in, pos)
	default:
		if err := a.generalCondition(p, in); err != nil {
			return 0, err
		}

		if err := a.encodeGeneral(p, in); err != nil {
			return 0, err
		}
	}

	if p.err != nil {
		return 0, errorf(ErrResource, "%v", p.err)
	}

	return p.word, nil
}

func (a *Assembler) generalCondition(p *packer, in *Instruction) error {
	cc, ok := isa.GeneralCondition(in.Pred, a.target.ExtendedSources)
	if !ok {
		return errorf(ErrUnsupported, "predicate %s cannot be encoded", in.Pred)
	}

	p.put(isa.FieldCC, cc)

	return nil
}

var flowSub = map[isa.Opcode]uint32{
	isa.OpBra:   isa.FlowBra,
	isa.OpCall:  isa.FlowCall,
	isa.OpRtn:   isa.FlowRtn,
	isa.OpHalt:  isa.FlowHalt,
	isa.OpNop:   isa.FlowNop,
	isa.OpFence: isa.FlowFence,
	isa.OpWdf:   isa.FlowWdf,
	isa.OpAlum:  isa.FlowAlum,
}

func (a *Assembler) encodeFlow(p *packer, in *Instruction) {
	p.put(isa.FieldPrim, isa.PrimFlow)
	p.put(isa.FieldFlowSub, flowSub[in.Op])

	if in.Op.IsFlow() {
		cc, neg, ok := isa.FlowCondition(in.Pred, a.target.ExtendedSources)
		if !ok {
			p.err = errorf(ErrUnsupported, "predicate %s cannot be encoded", in.Pred)
			return
		}

		p.put(isa.FieldCC, cc)
		p.put(isa.FieldFlowNeg, boolBit(neg))
	} else if err := a.generalCondition(p, in); err != nil {
		p.err = err
		return
	}

	switch in.Op {
	case isa.OpBra, isa.OpCall:
		p.put(isa.FieldFlowTarget, a.idents.At(in.Args[0].Ident).LabelOffset)
	case isa.OpAlum:
		p.put(isa.FieldAlumMode, in.Args[0].Imm)
	}
}

// sel8 encodes a data-store or special-register operand as an 8-bit
// source select.
func sel8(arg *Argument) (uint32, error) {
	if arg.Kind == ArgSpecialReg {
		return isa.Sel8(isa.SelReg, uint32(arg.Reg))
	}

	b, off := arg.Location()

	return isa.Sel8(uint32(b), off)
}

func (a *Assembler) encodeGeneral(p *packer, in *Instruction) error {
	args := in.Args

	switch in.Op {
	case isa.OpMov16, isa.OpMov32:
		return a.encodeMov(p, in)
	case isa.OpAbs, isa.OpNot:
		prim, _ := isa.PrimaryFor(in.Op)
		p.put(isa.FieldPrim, prim)
		a.putSel(p, isa.FieldUnDst, &args[0])
		a.putSel(p, isa.FieldUnSrc, &args[1])
	case isa.OpTstz, isa.OpTstn, isa.OpTstnz, isa.OpTstp:
		p.put(isa.FieldPrim, isa.PrimTst)
		p.put(isa.FieldTstSub, uint32(in.Op-isa.OpTstz))
		p.put(isa.FieldTstPred, uint32(args[0].Pred))
		a.putSel(p, isa.FieldTstSrc, &args[1])
	case isa.OpAdd, isa.OpSub, isa.OpAdc, isa.OpSbc, isa.OpMul:
		prim, _ := isa.PrimaryFor(in.Op)
		p.put(isa.FieldPrim, prim)
		db, doff := args[0].Location()
		_, s0 := args[1].Location()
		_, s1 := args[2].Location()
		p.put(isa.FieldArBank, uint32(db))
		p.put(isa.FieldArDst, doff)
		p.put(isa.FieldArSrc0, s0)
		p.put(isa.FieldArSrc1, s1)

		if in.Op == isa.OpMul {
			p.put(isa.FieldArS0Hi, boolBit(args[1].Flag == FlagHigh))
			p.put(isa.FieldArS1Hi, boolBit(args[2].Flag == FlagHigh))
		}
	case isa.OpOr, isa.OpAnd, isa.OpXor, isa.OpNor, isa.OpNand:
		a.encodeLogic(p, in)
	case isa.OpShl, isa.OpShr:
		prim, _ := isa.PrimaryFor(in.Op)
		p.put(isa.FieldPrim, prim)
		db, doff := args[0].Location()
		p.put(isa.FieldShBank, uint32(db))
		p.put(isa.FieldShDst, doff)
		a.putSel(p, isa.FieldShSrc, &args[1])
		p.put(isa.FieldShShift, args[2].Imm)
	default:
		return errorf(ErrUnsupported, "no encoding for %s", in.Op)
	}

	return nil
}

func (a *Assembler) putSel(p *packer, f isa.Field, arg *Argument) {
	v, err := sel8(arg)
	if err != nil {
		if p.err == nil {
			p.err = err
		}

		return
	}

	p.put(f, v)
}

func (a *Assembler) encodeMov(p *packer, in *Instruction) error {
	dst, src := &in.Args[0], &in.Args[1]

	if src.Kind == ArgImmediate {
		if dst.Kind != ArgDataStore {
			return errorf(ErrShape, "immediate move needs a data-store destination")
		}

		b, off := dst.Location()
		p.put(isa.FieldPrim, isa.PrimMov16I)
		p.put(isa.FieldMovIDstHi, boolBit(dst.Flag == FlagHigh))
		p.put(isa.FieldMovIBank, uint32(b))
		p.put(isa.FieldMovIDst, off)
		p.put(isa.FieldMovIImm, src.Imm)

		return nil
	}

	p.put(isa.FieldPrim, isa.PrimMov)
	a.putSel(p, isa.FieldMovDst, dst)
	a.putSel(p, isa.FieldMovSrc, src)

	if in.Op == isa.OpMov16 {
		p.put(isa.FieldMovDstHi, boolBit(dst.Flag == FlagHigh))
		p.put(isa.FieldMovSrcHi, boolBit(src.Flag == FlagHigh))
	} else {
		p.put(isa.FieldMovSize, 1)
	}

	return nil
}

func (a *Assembler) encodeLogic(p *packer, in *Instruction) {
	args := in.Args

	prim, _ := isa.PrimaryFor(in.Op)
	p.put(isa.FieldPrim, prim)

	db, doff := args[0].Location()
	p.put(isa.FieldLgBank, uint32(db))
	p.put(isa.FieldLgDst, doff)

	if args[1].Kind == ArgSpecialReg {
		p.put(isa.FieldLgS0Reg, 1)
		p.put(isa.FieldLgSrc0, uint32(args[1].Reg))
	} else {
		_, off := args[1].Location()
		p.put(isa.FieldLgSrc0, off)
	}

	if args[2].Kind == ArgImmediate {
		p.put(isa.FieldLgS1Imm, 1)
		p.put(isa.FieldLgSrc1, args[2].Imm)
	} else {
		_, off := args[2].Location()
		p.put(isa.FieldLgSrc1, off)
	}
}

func (a *Assembler) encodeLoadStore(p *packer, in *Instruction, pos int) {
	if err := a.generalCondition(p, in); err != nil {
		p.err = err
		return
	}

	prim, _ := isa.PrimaryFor(in.Op)
	p.put(isa.FieldPrim, prim)

	b, off := in.Args[1].Location()
	p.put(isa.FieldLsBank, uint32(b))
	p.put(isa.FieldLsOff, off)
	p.put(isa.FieldLsCount, uint32(len(in.Args)-2))

	addrArg := &in.Args[0]
	addr := addrArg.Imm

	if addrArg.Kind == ArgInline {
		id := a.idents.At(addrArg.Ident)
		addr = id.Value + addrArg.ParamOffset
		id.Params = append(id.Params, InlineParam{
			Word:   pos,
			Field:  isa.FieldLsAddr.Shift,
			Bits:   isa.FieldLsAddr.Bits,
			Scale:  2,
			Addend: addrArg.ParamOffset,
		})
	}

	if addr%4 != 0 {
		p.err = errorf(ErrShape, "address 0x%x is not dword aligned", addr)
		return
	}

	p.put(isa.FieldLsAddr, addr>>2)
}

// encodeMovs lays out up to four dwords from at most two qword slots. A
// special register takes a whole slot; with extended sources it may use
// slot 1 when bank 0 data occupies slot 0.
func (a *Assembler) encodeMovs(p *packer, in *Instruction) {
	if err := a.generalCondition(p, in); err != nil {
		p.err = err
		return
	}

	base := uint32(isa.PrimMovs)
	if in.Op == isa.OpMovsa {
		base = isa.PrimMovsa
	}

	p.put(isa.FieldPrim, base+uint32(in.Args[0].Reg))

	slot := [2]int{-1, -1}

	hasData := [2]bool{}
	for ai := 1; ai < len(in.Args); ai++ {
		if in.Args[ai].Kind == ArgDataStore {
			b, _ := in.Args[ai].Location()
			hasData[b] = true
		}
	}

	specialSlot := -1

	var sels []uint32

	for ai := 1; ai < len(in.Args); ai++ {
		arg := &in.Args[ai]

		if arg.Kind == ArgSpecialReg {
			if specialSlot == -1 {
				specialSlot = 0
				if hasData[0] {
					specialSlot = 1
				}

				if hasData[specialSlot] || specialSlot == 1 && !a.target.ExtendedSources {
					p.err = errorf(ErrResource, "no free slot for special register %s", arg.Reg)
					return
				}

				slot[specialSlot] = int(arg.Reg)
			}

			sels = append(sels, uint32(specialSlot*2))

			continue
		}

		b, off := arg.Location()
		q := int(off >> 1)

		if slot[b] != -1 && slot[b] != q {
			p.err = errorf(ErrResource, "bank %d operands span two qwords", b)
			return
		}

		slot[b] = q

		id := a.idents.At(arg.Ident)
		if id.Type == TypeQword && arg.Flag == FlagNone {
			sels = append(sels, uint32(b*2), uint32(b*2+1))
		} else {
			sels = append(sels, uint32(b*2)+off&1)
		}
	}

	if len(sels) == 0 || len(sels) > 4 {
		p.err = errorf(ErrShape, "movs moves %d dwords, 1 to 4 allowed", len(sels))
		return
	}

	var sel uint32
	for i, s := range sels {
		sel |= s << (2 * i)
	}

	special := uint32(isa.SpecialNone)
	if specialSlot >= 0 {
		special = uint32(isa.SpecialSlot0 + specialSlot)
	}

	p.put(isa.FieldMvSpecial, special)

	for s, f := range []isa.Field{isa.FieldMvSlot0, isa.FieldMvSlot1} {
		if slot[s] >= 0 {
			p.put(f, uint32(slot[s]))
		}
	}

	p.put(isa.FieldMvCount, uint32(len(sels)-1))
	p.put(isa.FieldMvSelect, sel)
}
