package isa

import "github.com/sarchlab/pdsasm/config"

// Variadic marks a descriptor whose operand count is checked by a
// dedicated rule instead of ArgCount.
const Variadic = -1

// Descriptor is the static description of one opcode.
type Descriptor struct {
	Opcode   Opcode
	HasDest  bool
	ArgCount int
	ArgKinds []Kind

	// Unsupported is set when the target cannot execute the opcode.
	Unsupported bool
	Reason      string
}

// Mnemonic returns the assembly name of the opcode.
func (d *Descriptor) Mnemonic() string {
	return d.Opcode.String()
}

// KindAt returns the legal operand kinds at position i. Variadic opcodes
// repeat their last entry.
func (d *Descriptor) KindAt(i int) Kind {
	if len(d.ArgKinds) == 0 {
		return 0
	}

	if i >= len(d.ArgKinds) {
		return d.ArgKinds[len(d.ArgKinds)-1]
	}

	return d.ArgKinds[i]
}

// Table is the descriptor table of one target.
type Table struct {
	target *config.Target
	descs  [NumOpcodes]Descriptor
}

// Target returns the configuration the table was built for.
func (t *Table) Target() *config.Target {
	return t.target
}

// Lookup returns the descriptor of an opcode.
func (t *Table) Lookup(op Opcode) *Descriptor {
	return &t.descs[op]
}

func (t *Table) register(op Opcode, hasDest bool, kinds ...Kind) {
	t.descs[op] = Descriptor{
		Opcode:   op,
		HasDest:  hasDest,
		ArgCount: len(kinds),
		ArgKinds: kinds,
	}
}

func (t *Table) registerVariadic(op Opcode, kinds ...Kind) {
	t.descs[op] = Descriptor{
		Opcode:   op,
		ArgCount: Variadic,
		ArgKinds: kinds,
	}
}

func (t *Table) unsupported(op Opcode, reason string) {
	t.descs[op].Unsupported = true
	t.descs[op].Reason = reason
}

// NewTable builds the descriptor table for a target.
func NewTable(target *config.Target) *Table {
	t := &Table{target: target}

	t.register(OpMov16, true, KindDS|KindReg, KindDS|KindReg|KindImm)
	t.register(OpMov32, true, KindDS|KindReg, KindDS|KindReg)
	t.register(OpMov64, true, KindDS, KindDS)
	t.register(OpMov128, true, KindDS, KindDS)
	t.registerVariadic(OpMovs, KindReg, KindDS|KindReg)
	t.registerVariadic(OpMovsa, KindReg, KindDS|KindReg)

	for _, op := range []Opcode{OpAdd, OpSub, OpAdc, OpSbc, OpMul} {
		t.register(op, true, KindDS, KindDS0, KindDS1)
	}

	t.register(OpAbs, true, KindDS, KindDS)

	for _, op := range []Opcode{OpTstz, OpTstn, OpTstnz, OpTstp} {
		t.register(op, true, KindPred, KindDS|KindReg)
	}

	for _, op := range []Opcode{OpOr, OpAnd, OpXor, OpNor, OpNand} {
		t.register(op, true, KindDS, KindDS0|KindReg, KindDS1|KindImm)
	}

	t.register(OpNot, true, KindDS, KindDS|KindReg)
	t.register(OpShl, true, KindDS, KindDS|KindReg, KindImm)
	t.register(OpShr, true, KindDS, KindDS|KindReg, KindImm)
	t.register(OpBra, false, KindLabel)
	t.register(OpCall, false, KindLabel)
	t.register(OpRtn, false)
	t.register(OpHalt, false)
	t.register(OpNop, false)
	t.register(OpWdf, false)
	t.register(OpAlum, false, KindImm)
	t.registerVariadic(OpLoad, KindImm|KindDS, KindDS)
	t.registerVariadic(OpStore, KindImm|KindDS, KindDS)
	t.register(OpFence, false)
	t.register(OpLabel, false, KindLabel)

	t.unsupported(OpMov64, "64-bit moves are not implemented by the sequencer")
	t.unsupported(OpMov128, "128-bit moves are not implemented by the sequencer")

	if !target.LoadStore {
		for _, op := range []Opcode{OpLoad, OpStore, OpFence} {
			t.unsupported(op, "target has no load-store unit")
		}
	}

	return t
}
