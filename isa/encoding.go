package isa

import "fmt"

// Primary opcodes, bits [31:27] of every word.
const (
	PrimFlow   = 0x00
	PrimMov    = 0x01
	PrimMov16I = 0x02
	PrimAdd    = 0x03
	PrimSub    = 0x04
	PrimAdc    = 0x05
	PrimSbc    = 0x06
	PrimMul    = 0x07
	PrimAbs    = 0x08
	PrimTst    = 0x09
	PrimOr     = 0x0A
	PrimAnd    = 0x0B
	PrimXor    = 0x0C
	PrimNot    = 0x0D
	PrimNor    = 0x0E
	PrimNand   = 0x0F
	PrimMovs   = 0x10 // + command code
	PrimShl    = 0x15
	PrimShr    = 0x16
	PrimLoad   = 0x17
	PrimMovsa  = 0x18 // + command code
	PrimStore  = 0x1D
)

// Flow sub-operations, bits [22:20] of a flow word.
const (
	FlowBra = iota
	FlowCall
	FlowRtn
	FlowHalt
	FlowNop
	FlowFence
	FlowWdf
	FlowAlum
)

// Source-select types of the 8-bit operand fields.
const (
	SelDS0 = 0
	SelDS1 = 1
	SelReg = 2
)

// MOVS special-register placement.
const (
	SpecialNone  = 0
	SpecialSlot0 = 1
	SpecialSlot1 = 2
)

// Field is a bit range inside an instruction word.
type Field struct {
	Name  string
	Shift uint
	Bits  uint
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 {
	return 1<<f.Bits - 1
}

// Mask returns the field's bits in word position.
func (f Field) Mask() uint32 {
	return f.Max() << f.Shift
}

// Pack places v into the field, failing when v does not fit.
func (f Field) Pack(v uint32) (uint32, error) {
	if v > f.Max() {
		return 0, fmt.Errorf("%s value %d exceeds %d-bit field", f.Name, v, f.Bits)
	}

	return v << f.Shift, nil
}

// Get extracts the field from a word.
func (f Field) Get(word uint32) uint32 {
	return (word >> f.Shift) & f.Max()
}

// Common fields.
var (
	FieldPrim = Field{"opcode", 27, 5}
	FieldCC   = Field{"condition", 24, 3}

	FieldFlowNeg    = Field{"negate", 23, 1}
	FieldFlowSub    = Field{"flow op", 20, 3}
	FieldFlowTarget = Field{"branch target", 0, 16}
	FieldAlumMode   = Field{"alu mode", 0, 1}

	FieldMovSize  = Field{"move size", 22, 2}
	FieldMovDst   = Field{"destination", 14, 8}
	FieldMovSrc   = Field{"source", 6, 8}
	FieldMovDstHi = Field{"destination half", 5, 1}
	FieldMovSrcHi = Field{"source half", 4, 1}

	FieldMovIDstHi = Field{"destination half", 23, 1}
	FieldMovIBank  = Field{"destination bank", 22, 1}
	FieldMovIDst   = Field{"destination", 16, 6}
	FieldMovIImm   = Field{"immediate", 0, 16}

	FieldArBank = Field{"destination bank", 23, 1}
	FieldArDst  = Field{"destination", 17, 6}
	FieldArSrc0 = Field{"source 0", 11, 6}
	FieldArSrc1 = Field{"source 1", 5, 6}
	FieldArS0Hi = Field{"source 0 half", 4, 1}
	FieldArS1Hi = Field{"source 1 half", 3, 1}

	FieldUnDst = Field{"destination", 16, 8}
	FieldUnSrc = Field{"source", 8, 8}

	FieldTstSub  = Field{"test", 22, 2}
	FieldTstPred = Field{"predicate", 20, 2}
	FieldTstSrc  = Field{"source", 12, 8}

	FieldLgBank  = Field{"destination bank", 23, 1}
	FieldLgDst   = Field{"destination", 17, 6}
	FieldLgS0Reg = Field{"source 0 register", 16, 1}
	FieldLgSrc0  = Field{"source 0", 10, 6}
	FieldLgS1Imm = Field{"source 1 immediate", 9, 1}
	FieldLgSrc1  = Field{"source 1", 0, 9}

	FieldShBank  = Field{"destination bank", 23, 1}
	FieldShDst   = Field{"destination", 17, 6}
	FieldShSrc   = Field{"source", 9, 8}
	FieldShShift = Field{"shift", 4, 5}

	FieldLsBank  = Field{"bank", 23, 1}
	FieldLsOff   = Field{"data-store offset", 17, 6}
	FieldLsCount = Field{"burst count", 15, 2}
	FieldLsAddr  = Field{"memory address", 0, 15}

	FieldMvSpecial = Field{"special placement", 22, 2}
	FieldMvSlot0   = Field{"slot 0", 17, 5}
	FieldMvSlot1   = Field{"slot 1", 12, 5}
	FieldMvCount   = Field{"dword count", 10, 2}
	FieldMvSelect  = Field{"dword select", 2, 8}
)

// Sel8 packs a source-select type and value into an 8-bit operand field.
func Sel8(typ, value uint32) (uint32, error) {
	if value > 0x3F {
		return 0, fmt.Errorf("operand value %d exceeds 6 bits", value)
	}

	return typ<<6 | value, nil
}

// SplitSel8 unpacks an 8-bit operand field.
func SplitSel8(v uint32) (typ, value uint32) {
	return v >> 6, v & 0x3F
}

// PrimaryFor returns the primary opcode of the arithmetic, logic and
// shift families.
func PrimaryFor(op Opcode) (uint32, bool) {
	switch op {
	case OpAdd:
		return PrimAdd, true
	case OpSub:
		return PrimSub, true
	case OpAdc:
		return PrimAdc, true
	case OpSbc:
		return PrimSbc, true
	case OpMul:
		return PrimMul, true
	case OpOr:
		return PrimOr, true
	case OpAnd:
		return PrimAnd, true
	case OpXor:
		return PrimXor, true
	case OpNor:
		return PrimNor, true
	case OpNand:
		return PrimNand, true
	case OpShl:
		return PrimShl, true
	case OpShr:
		return PrimShr, true
	case OpAbs:
		return PrimAbs, true
	case OpNot:
		return PrimNot, true
	case OpLoad:
		return PrimLoad, true
	case OpStore:
		return PrimStore, true
	}

	return 0, false
}

// TestOps lists the TST sub-operations in encoding order.
var TestOps = []Opcode{OpTstz, OpTstn, OpTstnz, OpTstp}

// FlowOps lists the flow sub-operations in encoding order.
var FlowOps = []Opcode{OpBra, OpCall, OpRtn, OpHalt, OpNop, OpFence, OpWdf, OpAlum}
