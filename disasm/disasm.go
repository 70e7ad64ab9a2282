// Package disasm decodes PDS instruction words back into readable
// assembly.
package disasm

import (
	"fmt"
	"strings"

	"github.com/sarchlab/pdsasm/isa"
)

// OperandKind tells how a decoded operand is printed.
type OperandKind int

// Decoded operand kinds.
const (
	OpdDS OperandKind = iota
	OpdReg
	OpdImm
	OpdPred
	OpdTarget
	OpdAddr
)

// Operand is one decoded operand.
type Operand struct {
	Kind   OperandKind
	Bank   int
	Offset uint32
	Value  uint32
	High   bool
}

func (o Operand) String() string {
	var s string

	switch o.Kind {
	case OpdDS:
		s = fmt.Sprintf("ds%d[%d]", o.Bank, o.Offset)
	case OpdReg:
		s = isa.SpecialReg(o.Value).String()
	case OpdImm:
		s = fmt.Sprintf("0x%x", o.Value)
	case OpdPred:
		s = isa.PredReg(o.Value).String()
	case OpdTarget:
		s = fmt.Sprintf("@%d", o.Value)
	case OpdAddr:
		s = fmt.Sprintf("[0x%x]", o.Value)
	}

	if o.High {
		s += ".hi"
	}

	return s
}

// Decoded is the structured form of one word.
type Decoded struct {
	Word     uint32
	Valid    bool
	Op       isa.Opcode
	Pred     isa.Predicate
	Operands []Operand
}

var arithOps = map[uint32]isa.Opcode{
	isa.PrimAdd: isa.OpAdd,
	isa.PrimSub: isa.OpSub,
	isa.PrimAdc: isa.OpAdc,
	isa.PrimSbc: isa.OpSbc,
	isa.PrimMul: isa.OpMul,
}

var logicOps = map[uint32]isa.Opcode{
	isa.PrimOr:   isa.OpOr,
	isa.PrimAnd:  isa.OpAnd,
	isa.PrimXor:  isa.OpXor,
	isa.PrimNor:  isa.OpNor,
	isa.PrimNand: isa.OpNand,
}

func sel(v uint32) Operand {
	typ, value := isa.SplitSel8(v)
	if typ == isa.SelReg {
		return Operand{Kind: OpdReg, Value: value}
	}

	return Operand{Kind: OpdDS, Bank: int(typ), Offset: value}
}

func ds(bank, off uint32) Operand {
	return Operand{Kind: OpdDS, Bank: int(bank), Offset: off}
}

// Decode decodes one word. Words that match no encoding come back with
// Valid unset.
func Decode(w uint32) Decoded {
	d := Decoded{Word: w, Valid: true, Pred: isa.PredAlways}
	prim := isa.FieldPrim.Get(w)

	if prim != isa.PrimFlow {
		p, ok := isa.PredicateFromGeneral(isa.FieldCC.Get(w))
		if !ok {
			return Decoded{Word: w}
		}

		d.Pred = p
	}

	switch {
	case prim == isa.PrimFlow:
		return decodeFlow(w)
	case prim == isa.PrimMov:
		d.Op = isa.OpMov16
		if isa.FieldMovSize.Get(w) == 1 {
			d.Op = isa.OpMov32
		}

		dst, src := sel(isa.FieldMovDst.Get(w)), sel(isa.FieldMovSrc.Get(w))
		if d.Op == isa.OpMov16 {
			dst.High = isa.FieldMovDstHi.Get(w) == 1
			src.High = isa.FieldMovSrcHi.Get(w) == 1
		}

		d.Operands = []Operand{dst, src}
	case prim == isa.PrimMov16I:
		d.Op = isa.OpMov16
		dst := ds(isa.FieldMovIBank.Get(w), isa.FieldMovIDst.Get(w))
		dst.High = isa.FieldMovIDstHi.Get(w) == 1
		d.Operands = []Operand{dst, {Kind: OpdImm, Value: isa.FieldMovIImm.Get(w)}}
	case arithOps[prim] != 0:
		d.Op = arithOps[prim]
		s0 := ds(0, isa.FieldArSrc0.Get(w))
		s1 := ds(1, isa.FieldArSrc1.Get(w))

		if d.Op == isa.OpMul {
			s0.High = isa.FieldArS0Hi.Get(w) == 1
			s1.High = isa.FieldArS1Hi.Get(w) == 1
		}

		d.Operands = []Operand{ds(isa.FieldArBank.Get(w), isa.FieldArDst.Get(w)), s0, s1}
	case prim == isa.PrimAbs || prim == isa.PrimNot:
		d.Op = isa.OpAbs
		if prim == isa.PrimNot {
			d.Op = isa.OpNot
		}

		d.Operands = []Operand{sel(isa.FieldUnDst.Get(w)), sel(isa.FieldUnSrc.Get(w))}
	case prim == isa.PrimTst:
		d.Op = isa.TestOps[isa.FieldTstSub.Get(w)]
		d.Operands = []Operand{
			{Kind: OpdPred, Value: isa.FieldTstPred.Get(w)},
			sel(isa.FieldTstSrc.Get(w)),
		}
	case logicOps[prim] != 0:
		d.Op = logicOps[prim]
		d.Operands = decodeLogic(w)
	case prim == isa.PrimShl || prim == isa.PrimShr:
		d.Op = isa.OpShl
		if prim == isa.PrimShr {
			d.Op = isa.OpShr
		}

		d.Operands = []Operand{
			ds(isa.FieldShBank.Get(w), isa.FieldShDst.Get(w)),
			sel(isa.FieldShSrc.Get(w)),
			{Kind: OpdImm, Value: isa.FieldShShift.Get(w)},
		}
	case prim == isa.PrimLoad || prim == isa.PrimStore:
		d.Op = isa.OpLoad
		if prim == isa.PrimStore {
			d.Op = isa.OpStore
		}

		d.Operands = decodeLoadStore(w)
	case prim >= isa.PrimMovs && prim < isa.PrimMovs+5:
		d.Op = isa.OpMovs
		return decodeMovs(d, prim-isa.PrimMovs)
	case prim >= isa.PrimMovsa && prim < isa.PrimMovsa+5:
		d.Op = isa.OpMovsa
		return decodeMovs(d, prim-isa.PrimMovsa)
	default:
		return Decoded{Word: w}
	}

	return d
}

func decodeFlow(w uint32) Decoded {
	d := Decoded{Word: w, Valid: true}
	sub := isa.FieldFlowSub.Get(w)
	d.Op = isa.FlowOps[sub]

	var ok bool
	if d.Op.IsFlow() {
		d.Pred, ok = isa.PredicateFromFlow(isa.FieldCC.Get(w), isa.FieldFlowNeg.Get(w) == 1)
	} else {
		d.Pred, ok = isa.PredicateFromGeneral(isa.FieldCC.Get(w))
	}

	if !ok {
		return Decoded{Word: w}
	}

	switch d.Op {
	case isa.OpBra, isa.OpCall:
		d.Operands = []Operand{{Kind: OpdTarget, Value: isa.FieldFlowTarget.Get(w)}}
	case isa.OpAlum:
		d.Operands = []Operand{{Kind: OpdImm, Value: isa.FieldAlumMode.Get(w)}}
	}

	return d
}

func decodeLogic(w uint32) []Operand {
	out := []Operand{ds(isa.FieldLgBank.Get(w), isa.FieldLgDst.Get(w))}

	if isa.FieldLgS0Reg.Get(w) == 1 {
		out = append(out, Operand{Kind: OpdReg, Value: isa.FieldLgSrc0.Get(w)})
	} else {
		out = append(out, ds(0, isa.FieldLgSrc0.Get(w)))
	}

	if isa.FieldLgS1Imm.Get(w) == 1 {
		out = append(out, Operand{Kind: OpdImm, Value: isa.FieldLgSrc1.Get(w)})
	} else {
		out = append(out, ds(1, isa.FieldLgSrc1.Get(w)))
	}

	return out
}

func decodeLoadStore(w uint32) []Operand {
	out := []Operand{{Kind: OpdAddr, Value: isa.FieldLsAddr.Get(w) << 2}}

	bank, off := isa.FieldLsBank.Get(w), isa.FieldLsOff.Get(w)
	for i := uint32(0); i <= isa.FieldLsCount.Get(w); i++ {
		out = append(out, ds(bank, off+i))
	}

	return out
}

func decodeMovs(d Decoded, cmd uint32) Decoded {
	w := d.Word
	d.Operands = []Operand{{Kind: OpdReg, Value: cmd}}

	slots := [2]uint32{isa.FieldMvSlot0.Get(w), isa.FieldMvSlot1.Get(w)}
	special := int(isa.FieldMvSpecial.Get(w)) - 1

	if special > 1 {
		return Decoded{Word: w}
	}

	selects := isa.FieldMvSelect.Get(w)

	for i := uint32(0); i <= isa.FieldMvCount.Get(w); i++ {
		s := (selects >> (2 * i)) & 3
		slot := int(s >> 1)

		if slot == special {
			d.Operands = append(d.Operands, Operand{Kind: OpdReg, Value: slots[slot]})
			continue
		}

		d.Operands = append(d.Operands, ds(uint32(slot), slots[slot]*2+s&1))
	}

	return d
}

// Format renders a decoded word as assembly text.
func Format(d Decoded) string {
	if !d.Valid {
		return fmt.Sprintf(".word 0x%08x", d.Word)
	}

	var b strings.Builder

	if d.Pred != isa.PredAlways {
		fmt.Fprintf(&b, "(%s) ", d.Pred)
	}

	b.WriteString(d.Op.String())

	for i, o := range d.Operands {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}

		b.WriteString(o.String())
	}

	return b.String()
}

// Disassemble formats a sequence of words, one line per word.
func Disassemble(words []uint32) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Format(Decode(w))
	}

	return out
}
