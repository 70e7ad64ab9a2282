package emu

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/pdsasm/disasm"
	"github.com/sarchlab/pdsasm/isa"
)

type instEmulator struct{}

func (i instEmulator) run(s *Sequencer, d disasm.Decoded) error {
	st := &s.state

	if !i.condition(st, d.Pred) {
		st.PC++
		return nil
	}

	next := st.PC + 1
	ops := d.Operands

	switch d.Op {
	case isa.OpBra:
		next = ops[0].Value
	case isa.OpCall:
		st.Stack = append(st.Stack, next)
		next = ops[0].Value
	case isa.OpRtn:
		if len(st.Stack) == 0 {
			return fmt.Errorf("rtn with empty call stack")
		}

		next = st.Stack[len(st.Stack)-1]
		st.Stack = st.Stack[:len(st.Stack)-1]
	case isa.OpHalt:
		st.Halted = true
	case isa.OpNop, isa.OpFence, isa.OpWdf:
	case isa.OpAlum:
		st.Signed = ops[0].Value == 1
	case isa.OpMov16:
		v := i.read16(st, ops[1])
		i.write16(st, ops[0], v)
	case isa.OpMov32:
		i.write(st, ops[0], i.read(st, ops[1]))
	case isa.OpAdd, isa.OpSub, isa.OpAdc, isa.OpSbc:
		i.arith(st, d.Op, ops)
	case isa.OpMul:
		i.mul(st, ops)
	case isa.OpAbs:
		v := int32(i.read(st, ops[1]))
		if v < 0 {
			v = -v
		}

		i.setResult(st, ops[0], uint32(v))
	case isa.OpTstz, isa.OpTstn, isa.OpTstnz, isa.OpTstp:
		i.test(st, d.Op, ops)
	case isa.OpOr, isa.OpAnd, isa.OpXor, isa.OpNor, isa.OpNand:
		i.logic(st, d.Op, ops)
	case isa.OpNot:
		i.setResult(st, ops[0], ^i.read(st, ops[1]))
	case isa.OpShl:
		i.setResult(st, ops[0], i.read(st, ops[1])<<ops[2].Value)
	case isa.OpShr:
		v := i.read(st, ops[1])
		if st.Signed {
			v = uint32(int32(v) >> ops[2].Value)
		} else {
			v >>= ops[2].Value
		}

		i.setResult(st, ops[0], v)
	case isa.OpMovs, isa.OpMovsa:
		e := Emission{Command: isa.SpecialReg(ops[0].Value), Async: d.Op == isa.OpMovsa}
		for _, o := range ops[1:] {
			e.Dwords = append(e.Dwords, i.read(st, o))
		}

		s.Emitted = append(s.Emitted, e)
	case isa.OpLoad, isa.OpStore:
		if err := i.transfer(s, d.Op == isa.OpLoad, ops); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot execute %s", d.Op)
	}

	st.PC = next

	return nil
}

func (i instEmulator) condition(st *seqState, p isa.Predicate) bool {
	switch p {
	case isa.PredAlways:
		return true
	case isa.PredP0, isa.PredP1, isa.PredP2:
		return st.Pred[p-isa.PredP0]
	case isa.PredNotP0, isa.PredNotP1, isa.PredNotP2:
		return !st.Pred[p-isa.PredNotP0]
	case isa.PredIF0:
		return st.IF[0]
	case isa.PredIF1:
		return st.IF[1]
	case isa.PredNotIF0:
		return !st.IF[0]
	case isa.PredNotIF1:
		return !st.IF[1]
	case isa.PredALUZ:
		return st.ALUZ
	case isa.PredNotALUZ:
		return !st.ALUZ
	case isa.PredALUN:
		return st.ALUN
	case isa.PredNotALUN:
		return !st.ALUN
	}

	return false
}

func (i instEmulator) read(st *seqState, o disasm.Operand) uint32 {
	switch o.Kind {
	case disasm.OpdDS:
		return st.DS[o.Bank][o.Offset]
	case disasm.OpdImm:
		return o.Value
	case disasm.OpdReg:
		switch isa.SpecialReg(o.Value) {
		case isa.RegIR0:
			return st.IR[0]
		case isa.RegIR1:
			return st.IR[1]
		case isa.RegTim:
			return uint32(st.Cycles)
		case isa.RegPC:
			return st.PC
		}
	}

	return 0
}

func (i instEmulator) write(st *seqState, o disasm.Operand, v uint32) {
	switch o.Kind {
	case disasm.OpdDS:
		st.DS[o.Bank][o.Offset] = v
	case disasm.OpdReg:
		switch isa.SpecialReg(o.Value) {
		case isa.RegIR0:
			st.IR[0] = v
		case isa.RegIR1:
			st.IR[1] = v
		}
	}
}

func (i instEmulator) read16(st *seqState, o disasm.Operand) uint32 {
	v := i.read(st, o)
	if o.High {
		return v >> 16
	}

	return v & 0xFFFF
}

func (i instEmulator) write16(st *seqState, o disasm.Operand, v uint32) {
	old := i.read(st, o)
	if o.High {
		old = old&0x0000FFFF | v<<16
	} else {
		old = old&0xFFFF0000 | v&0xFFFF
	}

	i.write(st, o, old)
}

func (i instEmulator) setResult(st *seqState, dst disasm.Operand, v uint32) {
	st.ALUZ = v == 0
	st.ALUN = int32(v) < 0
	i.write(st, dst, v)
}

func (i instEmulator) arith(st *seqState, op isa.Opcode, ops []disasm.Operand) {
	a := uint64(i.read(st, ops[1]))
	b := uint64(i.read(st, ops[2]))

	var carry uint64
	if st.Carry && (op == isa.OpAdc || op == isa.OpSbc) {
		carry = 1
	}

	var r uint64

	switch op {
	case isa.OpAdd, isa.OpAdc:
		r = a + b + carry
		st.Carry = r>>32 != 0
	case isa.OpSub, isa.OpSbc:
		r = a - b - carry
		st.Carry = a < b+carry
	}

	i.setResult(st, ops[0], uint32(r))
}

func (i instEmulator) mul(st *seqState, ops []disasm.Operand) {
	a, b := i.read16(st, ops[1]), i.read16(st, ops[2])

	if st.Signed {
		i.setResult(st, ops[0], uint32(int32(int16(a))*int32(int16(b))))
		return
	}

	i.setResult(st, ops[0], a*b)
}

func (i instEmulator) test(st *seqState, op isa.Opcode, ops []disasm.Operand) {
	v := int32(i.read(st, ops[1]))

	var r bool

	switch op {
	case isa.OpTstz:
		r = v == 0
	case isa.OpTstn:
		r = v < 0
	case isa.OpTstnz:
		r = v != 0
	case isa.OpTstp:
		r = v > 0
	}

	st.Pred[ops[0].Value] = r
}

func (i instEmulator) logic(st *seqState, op isa.Opcode, ops []disasm.Operand) {
	a, b := i.read(st, ops[1]), i.read(st, ops[2])

	var r uint32

	switch op {
	case isa.OpOr:
		r = a | b
	case isa.OpAnd:
		r = a & b
	case isa.OpXor:
		r = a ^ b
	case isa.OpNor:
		r = ^(a | b)
	case isa.OpNand:
		r = ^(a & b)
	}

	i.setResult(st, ops[0], r)
}

func (i instEmulator) transfer(s *Sequencer, load bool, ops []disasm.Operand) error {
	st := &s.state
	addr := uint64(ops[0].Value)

	for k, o := range ops[1:] {
		at := addr + uint64(k)*4

		if load {
			buf, err := s.storage.Read(at, 4)
			if err != nil {
				return err
			}

			st.DS[o.Bank][o.Offset] = binary.LittleEndian.Uint32(buf)

			continue
		}

		buf := binary.LittleEndian.AppendUint32(nil, st.DS[o.Bank][o.Offset])
		if err := s.storage.Write(at, buf); err != nil {
			return err
		}
	}

	return nil
}
