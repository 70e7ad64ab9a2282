package emu_test

import (
	"encoding/binary"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/pdsasm/config"
	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/emu"
	"github.com/sarchlab/pdsasm/isa"
	"github.com/sarchlab/pdsasm/parser"
)

func assemble(src string, target *config.Target) *core.Output {
	prog, err := parser.ParseString("emu.asm", src)
	Expect(err).NotTo(HaveOccurred())

	out, err := core.MakeBuilder().
		WithTarget(target).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build(prog).
		Assemble()
	Expect(err).NotTo(HaveOccurred())

	return out
}

func location(out *core.Output, name string) (int, uint32) {
	i, ok := out.Idents.Lookup(name)
	Expect(ok).To(BeTrue())

	id := out.Idents.At(i)
	b, ok := id.Banks.Only()
	Expect(ok).To(BeTrue())

	return b, id.Offsets[b][0]
}

var _ = Describe("Sequencer", func() {
	var (
		target *config.Target
		seq    *emu.Sequencer
	)

	BeforeEach(func() {
		target = config.MakeTargetBuilder().Build("pds")
		seq = emu.MakeBuilder().
			WithEngine(sim.NewSerialEngine()).
			WithTarget(target).
			WithMaxCycles(1000).
			Build("Seq")
	})

	read := func(out *core.Output, name string) uint32 {
		b, off := location(out, name)
		return seq.DS(b, off)
	}

	It("should compute, store and emit", func() {
		out := assemble(`
temp dword x
temp dword y
data base = 0x200
mov16 x, 15
shl y, x, 2
store base, x, y
movs doutd, x, y
halt
`, target)

		seq.Load(out)
		Expect(seq.Run()).To(Succeed())

		Expect(read(out, "x")).To(Equal(uint32(15)))
		Expect(read(out, "y")).To(Equal(uint32(60)))

		buf, err := seq.Storage().Read(0x200, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(binary.LittleEndian.Uint32(buf[0:4])).To(Equal(uint32(15)))
		Expect(binary.LittleEndian.Uint32(buf[4:8])).To(Equal(uint32(60)))

		Expect(seq.Emitted).To(Equal([]emu.Emission{
			{Command: isa.RegDoutD, Dwords: []uint32{15, 60}},
		}))
		Expect(seq.Halted()).To(BeTrue())
		Expect(seq.Cycles()).To(Equal(uint64(5)))

		state := seq.StateTable()
		Expect(state).To(ContainSubstring("0x0000003c"))
		Expect(state).To(ContainSubstring("doutd"))
	})

	It("should run a counted loop", func() {
		out := assemble(`
temp dword acc
temp dword n
mov16 acc, 0
mov16 n, 5
loop:
add acc, acc, 1
sub n, n, 1
tstnz p0, n
(p0) bra loop
halt
`, target)

		seq.Load(out)
		Expect(seq.Run()).To(Succeed())

		Expect(read(out, "acc")).To(Equal(uint32(5)))
		Expect(read(out, "n")).To(Equal(uint32(0)))
		Expect(seq.Pred(isa.P0)).To(BeFalse())
		Expect(seq.Cycles()).To(Equal(uint64(23)))
	})

	It("should multiply signed halves after alum", func() {
		out := assemble(`
temp dword a
temp dword r
data m = 0xFFFF
alum 1
mov16 a, 3
mul r, a, m
halt
`, target)

		seq.Load(out)
		Expect(seq.Run()).To(Succeed())
		Expect(read(out, "r")).To(Equal(uint32(0xFFFFFFFD)))
	})

	It("should read input registers and branch on tests", func() {
		out := assemble(`
temp dword x
mov32 x, ir0
tstz p1, x
(p1) bra zero
movs douta, x
halt
zero:
movs douta, ir1
halt
`, target)

		seq.Load(out)
		seq.SetIR(0, 7)
		Expect(seq.Run()).To(Succeed())
		Expect(seq.Emitted).To(HaveLen(1))
		Expect(seq.Emitted[0].Dwords).To(Equal([]uint32{7}))
	})

	It("should load from memory", func() {
		out := assemble(`
temp qword q
load 0x40, q
halt
`, target)

		Expect(seq.Storage().Write(0x40, []byte{1, 0, 0, 0, 2, 0, 0, 0})).To(Succeed())

		seq.Load(out)
		Expect(seq.Run()).To(Succeed())

		b, off := location(out, "q")
		Expect(seq.DS(b, off)).To(Equal(uint32(1)))
		Expect(seq.DS(b, off+1)).To(Equal(uint32(2)))
	})

	It("should stop a program that never halts", func() {
		out := assemble(`
spin:
bra spin
`, target)

		seq.Load(out)
		Expect(seq.Run()).To(MatchError(ContainSubstring("no halt")))
	})
})
