// Package isa defines the PDS instruction set: opcodes, operand kinds,
// predicates, special registers and the per-target descriptor table.
package isa

import "strings"

// Opcode enumerates the assembly-level operations.
type Opcode int

// The opcodes. OpLabel is a pseudo-instruction that marks a branch target
// and never reaches the encoder.
const (
	OpMov16 Opcode = iota
	OpMov32
	OpMov64
	OpMov128
	OpMovs
	OpMovsa
	OpAdd
	OpSub
	OpAdc
	OpSbc
	OpMul
	OpAbs
	OpTstz
	OpTstn
	OpTstnz
	OpTstp
	OpOr
	OpAnd
	OpXor
	OpNot
	OpNor
	OpNand
	OpShl
	OpShr
	OpBra
	OpCall
	OpRtn
	OpHalt
	OpNop
	OpAlum
	OpLoad
	OpStore
	OpFence
	OpWdf
	OpLabel

	NumOpcodes
)

var mnemonics = [NumOpcodes]string{
	OpMov16:  "mov16",
	OpMov32:  "mov32",
	OpMov64:  "mov64",
	OpMov128: "mov128",
	OpMovs:   "movs",
	OpMovsa:  "movsa",
	OpAdd:    "add",
	OpSub:    "sub",
	OpAdc:    "adc",
	OpSbc:    "sbc",
	OpMul:    "mul",
	OpAbs:    "abs",
	OpTstz:   "tstz",
	OpTstn:   "tstn",
	OpTstnz:  "tstnz",
	OpTstp:   "tstp",
	OpOr:     "or",
	OpAnd:    "and",
	OpXor:    "xor",
	OpNot:    "not",
	OpNor:    "nor",
	OpNand:   "nand",
	OpShl:    "shl",
	OpShr:    "shr",
	OpBra:    "bra",
	OpCall:   "call",
	OpRtn:    "rtn",
	OpHalt:   "halt",
	OpNop:    "nop",
	OpAlum:   "alum",
	OpLoad:   "load",
	OpStore:  "store",
	OpFence:  "fence",
	OpWdf:    "wdf",
	OpLabel:  "label",
}

func (o Opcode) String() string {
	if o < 0 || o >= NumOpcodes {
		return "???"
	}

	return mnemonics[o]
}

// LookupOpcode finds an opcode by mnemonic, case-insensitively. The label
// pseudo-op cannot be named in source.
func LookupOpcode(name string) (Opcode, bool) {
	name = strings.ToLower(name)
	for op, m := range mnemonics {
		if m == name && Opcode(op) != OpLabel {
			return Opcode(op), true
		}
	}

	return 0, false
}

// IsMovs reports whether the opcode is one of the MOVS forms.
func (o Opcode) IsMovs() bool {
	return o == OpMovs || o == OpMovsa
}

// IsLoadStore reports whether the opcode is a burst memory transfer.
func (o Opcode) IsLoadStore() bool {
	return o == OpLoad || o == OpStore
}

// IsFlow reports whether the opcode uses the flow-control predicate
// encoding.
func (o Opcode) IsFlow() bool {
	switch o {
	case OpBra, OpCall, OpRtn, OpHalt:
		return true
	}

	return false
}

// Kind is a bit set of operand kinds.
type Kind uint8

// Operand kinds.
const (
	KindDS0 Kind = 1 << iota
	KindDS1
	KindReg
	KindImm
	KindPred
	KindLabel

	KindDS = KindDS0 | KindDS1
)

// Has reports whether all bits of other are in k.
func (k Kind) Has(other Kind) bool {
	return k&other == other
}

// Any reports whether k and other share a bit.
func (k Kind) Any(other Kind) bool {
	return k&other != 0
}

func (k Kind) String() string {
	var parts []string

	names := []string{"ds0", "ds1", "reg", "imm", "pred", "label"}
	for i, n := range names {
		if k&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, "|")
}

// BankMask returns the banks a data-store operand of this kind may use.
func (k Kind) BankMask() [2]bool {
	return [2]bool{k&KindDS0 != 0, k&KindDS1 != 0}
}
