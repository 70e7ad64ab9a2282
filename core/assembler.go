package core

import (
	"encoding/binary"
	"log/slog"

	"github.com/sarchlab/pdsasm/config"
	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/isa"
)

// Assembler turns one validated program into a loadable image.
type Assembler struct {
	target *config.Target
	table  *isa.Table
	prog   *Program
	idents *IdentTable
	ds     *datastore.Allocator

	reporter Reporter
	diags    []Diagnostic
	runID    string
	logger   *slog.Logger

	uses [][]use
	used bool
}

// ConstantInfo tells the emitter where a data constant ended up, so that
// its value can be patched after assembly.
type ConstantInfo struct {
	Name   string
	Value  uint32
	Dwords []uint32 // dword indices into the image
	Params []InlineParam
}

// Output is the result of a successful run.
type Output struct {
	Target *config.Target

	// Data is the row-interleaved data segment; Words the instruction
	// stream that follows it in the image.
	Data  []uint32
	Words []uint32

	Constants []ConstantInfo
	Idents    *IdentTable
	Usage     *datastore.Allocator
}

// DataSize returns the size of the data segment in bytes.
func (o *Output) DataSize() int {
	return len(o.Data) * 4
}

// Image returns the little-endian byte image: data segment then code.
func (o *Output) Image() []byte {
	buf := make([]byte, 0, (len(o.Data)+len(o.Words))*4)

	for _, w := range o.Data {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}

	for _, w := range o.Words {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}

	return buf
}

// ImageDwords returns the image as dwords.
func (o *Output) ImageDwords() []uint32 {
	out := make([]uint32, 0, len(o.Data)+len(o.Words))
	out = append(out, o.Data...)

	return append(out, o.Words...)
}

// RunID identifies the run in logs.
func (a *Assembler) RunID() string {
	return a.runID
}

// Target returns the hardware the assembler builds for.
func (a *Assembler) Target() *config.Target {
	return a.target
}

func (a *Assembler) report(d Diagnostic) {
	a.diags = append(a.diags, d)
	a.reporter.Report(d)
}

func (a *Assembler) reportInst(in *Instruction, operand int, idents []string, err error) {
	a.report(Diagnostic{
		Loc:      in.Loc,
		Mnemonic: in.Op.String(),
		Operand:  operand,
		Idents:   idents,
		Err:      err,
	})
}

// fail reports a fatal diagnostic and returns the Failure that ends the
// run.
func (a *Assembler) fail(in *Instruction, operand int, idents []string, err error) error {
	if in != nil {
		a.reportInst(in, operand, idents, err)
	} else {
		a.report(Diagnostic{Operand: operand, Idents: idents, Err: err})
	}

	return a.failure()
}

func (a *Assembler) failIdent(id *Identifier, err error) error {
	a.report(Diagnostic{Loc: id.Loc, Operand: -1, Idents: []string{id.Name}, Err: err})
	return a.failure()
}

func (a *Assembler) failure() error {
	return &Failure{Diagnostics: append([]Diagnostic(nil), a.diags...)}
}

// Assemble runs the whole pipeline. On failure no output is produced and
// the error is a *Failure holding every diagnostic.
func (a *Assembler) Assemble() (*Output, error) {
	if a.used {
		panic("assembler used twice")
	}

	a.used = true
	a.ds.Reset()
	a.idents.resetAllocation()

	a.logger.Info("assembling",
		"instructions", a.prog.Insts.Len(),
		"identifiers", a.idents.Len(),
	)

	a.validate()
	if len(a.diags) > 0 {
		return nil, a.failure()
	}

	stages := []struct {
		name string
		run  func() error
	}{
		{"banks", a.allocateBanks},
		{"space", a.allocateSpace},
		{"expand", a.expandLoadStore},
		{"labels", a.resolveLabels},
	}

	for _, s := range stages {
		if err := s.run(); err != nil {
			return nil, err
		}

		Trace("stage done", "run", a.runID, "stage", s.name)
	}

	data := a.layoutDataSegment()

	words, err := a.encode(len(data))
	if err != nil {
		return nil, err
	}

	out := &Output{
		Target:    a.target,
		Data:      data,
		Words:     words,
		Constants: a.constants(),
		Idents:    a.idents,
		Usage:     a.ds,
	}

	a.logger.Info("assembled",
		"words", len(words),
		"data_bytes", out.DataSize(),
	)

	return out, nil
}
