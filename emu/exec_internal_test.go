package emu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pdsasm/disasm"
	"github.com/sarchlab/pdsasm/isa"
)

func dsOp(bank int, off uint32) disasm.Operand {
	return disasm.Operand{Kind: disasm.OpdDS, Bank: bank, Offset: off}
}

func immOp(v uint32) disasm.Operand {
	return disasm.Operand{Kind: disasm.OpdImm, Value: v}
}

var _ = Describe("InstEmulator", func() {
	var (
		ie instEmulator
		s  *Sequencer
	)

	exec := func(op isa.Opcode, ops ...disasm.Operand) error {
		return ie.run(s, disasm.Decoded{Valid: true, Op: op, Pred: isa.PredAlways, Operands: ops})
	}

	BeforeEach(func() {
		ie = instEmulator{}
		s = MakeBuilder().Build("Seq")
	})

	Context("arithmetic", func() {
		It("should carry out of add into adc", func() {
			s.state.DS[0][0] = 0xFFFFFFFF
			s.state.DS[1][0] = 1

			Expect(exec(isa.OpAdd, dsOp(0, 40), dsOp(0, 0), dsOp(1, 0))).To(Succeed())
			Expect(s.state.DS[0][40]).To(Equal(uint32(0)))
			Expect(s.state.Carry).To(BeTrue())
			Expect(s.state.ALUZ).To(BeTrue())

			Expect(exec(isa.OpAdc, dsOp(0, 41), dsOp(0, 40), dsOp(1, 0))).To(Succeed())
			Expect(s.state.DS[0][41]).To(Equal(uint32(2)))
			Expect(s.state.PC).To(Equal(uint32(2)))
		})

		It("should borrow on sub", func() {
			s.state.DS[0][0] = 1
			s.state.DS[1][0] = 2

			Expect(exec(isa.OpSub, dsOp(0, 40), dsOp(0, 0), dsOp(1, 0))).To(Succeed())
			Expect(s.state.DS[0][40]).To(Equal(uint32(0xFFFFFFFF)))
			Expect(s.state.Carry).To(BeTrue())
			Expect(s.state.ALUN).To(BeTrue())
		})
	})

	Context("shifts", func() {
		It("should shift right arithmetically in signed mode", func() {
			s.state.DS[0][40] = 0x80000000
			s.state.Signed = true

			Expect(exec(isa.OpShr, dsOp(0, 41), dsOp(0, 40), immOp(4))).To(Succeed())
			Expect(s.state.DS[0][41]).To(Equal(uint32(0xF8000000)))

			s.state.Signed = false
			Expect(exec(isa.OpShr, dsOp(0, 41), dsOp(0, 40), immOp(4))).To(Succeed())
			Expect(s.state.DS[0][41]).To(Equal(uint32(0x08000000)))
		})
	})

	Context("16-bit moves", func() {
		It("should replace only the addressed half", func() {
			s.state.DS[0][40] = 0x11112222

			hi := dsOp(0, 40)
			hi.High = true

			Expect(exec(isa.OpMov16, hi, immOp(0xABCD))).To(Succeed())
			Expect(s.state.DS[0][40]).To(Equal(uint32(0xABCD2222)))
		})
	})

	Context("flow control", func() {
		It("should return to the word after the call", func() {
			s.state.PC = 3
			Expect(exec(isa.OpCall, disasm.Operand{Kind: disasm.OpdTarget, Value: 10})).To(Succeed())
			Expect(s.state.PC).To(Equal(uint32(10)))

			Expect(exec(isa.OpRtn)).To(Succeed())
			Expect(s.state.PC).To(Equal(uint32(4)))
		})

		It("should fail on rtn with an empty stack", func() {
			Expect(exec(isa.OpRtn)).To(HaveOccurred())
		})

		It("should skip a word whose predicate is false", func() {
			Expect(ie.run(s, disasm.Decoded{Valid: true, Op: isa.OpHalt, Pred: isa.PredNotIF0})).To(Succeed())
			Expect(s.state.Halted).To(BeTrue())

			s.state.Halted = false
			s.SetIF(0, true)

			Expect(ie.run(s, disasm.Decoded{Valid: true, Op: isa.OpHalt, Pred: isa.PredNotIF0})).To(Succeed())
			Expect(s.state.Halted).To(BeFalse())
		})
	})
})
