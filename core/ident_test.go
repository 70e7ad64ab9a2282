package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/isa"
)

var _ = Describe("IdentTable", func() {
	var table *core.IdentTable

	BeforeEach(func() {
		table = core.NewIdentTable()
	})

	It("should resolve a forward reference in place", func() {
		ref := table.Reference("x", core.Location{Line: 1})
		Expect(table.At(ref).Class).To(Equal(core.ClassUnresolved))

		def, err := table.Define("x", core.ClassTemp, core.TypeQword, core.Location{Line: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(def).To(Equal(ref))

		id := table.At(def)
		Expect(id.Class).To(Equal(core.ClassTemp))
		Expect(id.Dwords()).To(Equal(2))
		Expect(id.Loc.Line).To(Equal(3))
		Expect(id.PreAssigned()).To(BeFalse())
	})

	It("should reject a redefinition", func() {
		_, err := table.Define("k", core.ClassData, core.TypeDword, core.Location{Line: 1})
		Expect(err).NotTo(HaveOccurred())

		_, err = table.Define("k", core.ClassTemp, core.TypeDword, core.Location{Line: 2})
		Expect(errors.Is(err, core.ErrDeclaration)).To(BeTrue())
	})

	It("should share one identifier per immediate value", func() {
		a := table.Immediate(0x10)
		b := table.Immediate(0x10)
		c := table.Immediate(0x11)

		Expect(a).To(Equal(b))
		Expect(c).NotTo(Equal(a))
		Expect(table.At(a).Name).To(Equal("#0x10"))
		Expect(table.At(a).IsConstant()).To(BeTrue())
		Expect(table.At(a).DataValue()).To(Equal(uint32(0x10)))
		Expect(table.Len()).To(Equal(2))
	})
})

var _ = Describe("BankSet", func() {
	It("should report membership", func() {
		Expect(core.BankBoth.Has(0)).To(BeTrue())
		Expect(core.BankBoth.Has(1)).To(BeTrue())
		Expect(core.Bank1.Has(0)).To(BeFalse())

		b, ok := core.Bank1.Only()
		Expect(ok).To(BeTrue())
		Expect(b).To(Equal(1))

		_, ok = core.BankBoth.Only()
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("InstList", func() {
	var list *core.InstList

	ops := func() []isa.Opcode {
		var out []isa.Opcode
		for _, i := range list.Indices() {
			out = append(out, list.At(i).Op)
		}

		return out
	}

	BeforeEach(func() {
		list = core.NewInstList()
	})

	It("should keep indices stable across insertion and removal", func() {
		a := list.Append(core.Instruction{Op: isa.OpNop})
		b := list.Append(core.Instruction{Op: isa.OpStore})
		c := list.Append(core.Instruction{Op: isa.OpHalt})

		x := list.InsertBefore(b, core.Instruction{Op: isa.OpLoad})
		list.Remove(b)

		Expect(ops()).To(Equal([]isa.Opcode{isa.OpNop, isa.OpLoad, isa.OpHalt}))
		Expect(list.Len()).To(Equal(3))
		Expect(list.At(a).Op).To(Equal(isa.OpNop))
		Expect(list.At(c).Op).To(Equal(isa.OpHalt))
		Expect(list.Next(x)).To(Equal(c))
	})

	It("should insert at the front", func() {
		first := list.Append(core.Instruction{Op: isa.OpHalt})
		front := list.InsertBefore(first, core.Instruction{Op: isa.OpNop})

		Expect(list.Front()).To(Equal(front))
		Expect(ops()).To(Equal([]isa.Opcode{isa.OpNop, isa.OpHalt}))
	})

	It("should empty out", func() {
		i := list.Append(core.Instruction{Op: isa.OpHalt})
		list.Remove(i)

		Expect(list.Len()).To(Equal(0))
		Expect(list.Front()).To(Equal(-1))
		Expect(list.Indices()).To(BeEmpty())
	})
})

var _ = Describe("Failure", func() {
	It("should match the class of any diagnostic", func() {
		f := &core.Failure{Diagnostics: []core.Diagnostic{
			{Operand: -1, Err: core.ErrShape},
			{Loc: core.Location{File: "a.asm", Line: 2}, Mnemonic: "add", Operand: 1, Err: core.ErrResource},
		}}

		Expect(errors.Is(f, core.ErrResource)).To(BeTrue())
		Expect(errors.Is(f, core.ErrUnsupported)).To(BeFalse())
		Expect(f.Diagnostics[1].Error()).To(HavePrefix("a.asm:2: add operand 1: "))
		Expect(f.Error()).To(ContainSubstring("1 more"))
	})
})
