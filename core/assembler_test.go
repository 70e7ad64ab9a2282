package core_test

import (
	"errors"
	"io"
	"log/slog"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pdsasm/config"
	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/disasm"
	"github.com/sarchlab/pdsasm/isa"
	"github.com/sarchlab/pdsasm/parser"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func defaultTarget() *config.Target {
	return config.MakeTargetBuilder().Build("pds")
}

func assembleWith(src string, target *config.Target, r core.Reporter) (*core.Output, *core.Program, error) {
	prog, err := parser.ParseString("test.asm", src)
	Expect(err).NotTo(HaveOccurred())

	if r == nil {
		r = &core.LogReporter{Logger: quiet}
	}

	out, err := core.MakeBuilder().
		WithTarget(target).
		WithReporter(r).
		WithLogger(quiet).
		Build(prog).
		Assemble()

	return out, prog, err
}

func assemble(src string, target *config.Target) (*core.Output, *core.Program, error) {
	return assembleWith(src, target, nil)
}

func mustAssemble(src string, target *config.Target) (*core.Output, *core.Program) {
	out, prog, err := assemble(src, target)
	Expect(err).NotTo(HaveOccurred())

	return out, prog
}

func ident(out *core.Output, name string) *core.Identifier {
	i, ok := out.Idents.Lookup(name)
	Expect(ok).To(BeTrue(), "identifier %s", name)

	return out.Idents.At(i)
}

// checkInvariants verifies the properties every successful run must
// have: operands sit in banks their position can read, MOVS operands of
// one bank share a qword, and bursts are contiguous and bounded.
func checkInvariants(prog *core.Program, out *core.Output) {
	table := isa.NewTable(out.Target)

	for _, i := range prog.Insts.Indices() {
		in := prog.Insts.At(i)
		Expect(in.Op).NotTo(Equal(isa.OpLabel))

		desc := table.Lookup(in.Op)

		switch {
		case in.Op.IsMovs():
			qword := map[int]uint32{}

			for _, arg := range in.Args[1:] {
				if arg.Kind != core.ArgDataStore {
					continue
				}

				b, off := arg.Location()
				if q, ok := qword[b]; ok {
					Expect(off >> 1).To(Equal(q))
				}

				qword[b] = off >> 1
			}
		case in.Op.IsLoadStore():
			Expect(len(in.Args) - 1).To(BeNumerically("<=", out.Target.BurstDwords))

			b0, off0 := in.Args[1].Location()
			for k, arg := range in.Args[1:] {
				b, off := arg.Location()
				Expect(b).To(Equal(b0))
				Expect(off).To(Equal(off0 + uint32(k)))
			}
		default:
			for ai, arg := range in.Args {
				if arg.Kind != core.ArgDataStore {
					continue
				}

				b, _ := arg.Location()
				Expect(desc.KindAt(ai).BankMask()[b]).To(BeTrue(),
					"%s operand %d in bank %d", in.Op, ai, b)
			}
		}
	}

	for _, w := range out.Words {
		Expect(disasm.Decode(w).Valid).To(BeTrue(), "word %08x", w)
	}
}

var _ = Describe("Assembler", func() {
	var target *config.Target

	BeforeEach(func() {
		target = defaultTarget()
	})

	Context("when immediates feed an add", func() {
		It("should materialize them in complementary banks", func() {
			out, prog := mustAssemble(`
temp dword x
add x, 5, 7
halt
`, target)

			five := ident(out, "#0x5")
			seven := ident(out, "#0x7")
			x := ident(out, "x")

			Expect(five.Class).To(Equal(core.ClassImmediate))
			Expect(five.Banks).To(Equal(core.Bank0))
			Expect(seven.Banks).To(Equal(core.Bank1))
			Expect(x.Banks).To(Equal(core.Bank0))

			Expect(out.Data).To(HaveLen(8))
			Expect(out.Data[core.Interleave(0, five.Offsets[0][0], 4)]).To(Equal(uint32(5)))
			Expect(out.Data[core.Interleave(1, seven.Offsets[1][0], 4)]).To(Equal(uint32(7)))
			Expect(out.DataSize()).To(Equal(32))

			Expect(disasm.Disassemble(out.Words)).To(Equal([]string{
				"add ds0[40], ds0[0], ds1[0]",
				"halt",
			}))

			checkInvariants(prog, out)
		})
	})

	Context("when two temporaries feed one movs", func() {
		It("should place them in one aligned qword", func() {
			out, prog := mustAssemble(`
temp dword a
temp dword b
movs doutd, a, b
halt
`, target)

			a, b := ident(out, "a"), ident(out, "b")
			Expect(a.Banks).To(Equal(core.Bank0))
			Expect(b.Banks).To(Equal(core.Bank0))
			Expect(a.Offsets[0][0] % 2).To(Equal(uint32(0)))
			Expect(b.Offsets[0][0]).To(Equal(a.Offsets[0][0] + 1))

			Expect(disasm.Format(disasm.Decode(out.Words[0]))).
				To(Equal("movs doutd, ds0[40], ds0[41]"))

			checkInvariants(prog, out)
		})

		It("should fail when pre-assignments split the qword", func() {
			_, _, err := assemble(`
temp dword a @ ds0:0
temp dword b @ ds0:3
movs doutd, a, b
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("pre-assigned"))
		})

		It("should complete a qword around one pre-assigned temporary", func() {
			out, prog := mustAssemble(`
temp dword a @ ds0:5
temp dword b
movs doutd, b, a
halt
`, target)

			Expect(ident(out, "a").Offsets[0]).To(Equal([]uint32{45}))
			Expect(ident(out, "b").Offsets[0]).To(Equal([]uint32{44}))
			checkInvariants(prog, out)
		})
	})

	Context("when a movs reads a special register", func() {
		It("should push data to bank 1 without extended sources", func() {
			out, prog := mustAssemble(`
temp dword a
movs douta, tim, a
halt
`, target)

			Expect(ident(out, "a").Banks).To(Equal(core.Bank1))
			Expect(disasm.Format(disasm.Decode(out.Words[0]))).
				To(Equal("movs douta, tim, ds1[40]"))
			checkInvariants(prog, out)
		})

		It("should let the register borrow slot 1 with extended sources", func() {
			target = config.MakeTargetBuilder().WithExtendedSources(true).Build("pds-ext")

			out, prog := mustAssemble(`
temp dword a
movs douta, tim, a
halt
`, target)

			Expect(ident(out, "a").Banks).To(Equal(core.Bank0))
			Expect(disasm.Format(disasm.Decode(out.Words[0]))).
				To(Equal("movs douta, tim, ds0[40]"))
			checkInvariants(prog, out)
		})

		It("should reject two different special registers", func() {
			_, _, err := assemble(`
movs douta, tim, pc
halt
`, target)

			Expect(errors.Is(err, core.ErrShape)).To(BeTrue())
		})
	})

	Context("when constants feed movs", func() {
		It("should pair them and reuse the pair", func() {
			out, prog := mustAssemble(`
data k1 = 1
data k2 = 2
movs doutd, k1, k2
movs doutd, k2, k1
halt
`, target)

			k1, k2 := ident(out, "k1"), ident(out, "k2")
			Expect(k1.Offsets[0]).To(Equal([]uint32{0}))
			Expect(k2.Offsets[0]).To(Equal([]uint32{1}))
			Expect(out.Usage.HighWater(datastore.Preload)).To(Equal(uint32(2)))
			checkInvariants(prog, out)
		})

		It("should keep constants out of a temporary's slot", func() {
			out, prog := mustAssemble(`
temp dword a
data k = 3
movs doutd, a, k
halt
`, target)

			Expect(ident(out, "a").Banks).To(Equal(core.Bank0))
			Expect(ident(out, "k").Banks).To(Equal(core.Bank1))
			checkInvariants(prog, out)
		})
	})

	Context("when a store exceeds the burst size", func() {
		It("should split it and advance the address", func() {
			out, prog := mustAssemble(`
temp dword a
temp dword b
temp dword c
temp dword d
temp dword e
store 0x100, a, b, c, d, e
halt
`, target)

			Expect(out.Words).To(HaveLen(3))

			first, second := disasm.Decode(out.Words[0]), disasm.Decode(out.Words[1])
			Expect(first.Op).To(Equal(isa.OpStore))
			Expect(first.Operands).To(HaveLen(5))
			Expect(first.Operands[0].Value).To(Equal(uint32(0x100)))
			Expect(second.Operands).To(HaveLen(2))
			Expect(second.Operands[0].Value).To(Equal(uint32(0x110)))

			checkInvariants(prog, out)
		})

		It("should split at a bank change", func() {
			out, prog := mustAssemble(`
temp dword a
temp dword b @ ds1
store 0x0, a, b
halt
`, target)

			Expect(disasm.Disassemble(out.Words[:2])).To(Equal([]string{
				"store [0x0], ds0[40]",
				"store [0x4], ds1[40]",
			}))
			checkInvariants(prog, out)
		})

		It("should move both halves of a qword", func() {
			out, prog := mustAssemble(`
temp qword q
load 0x20, q
halt
`, target)

			Expect(disasm.Format(disasm.Decode(out.Words[0]))).
				To(Equal("load [0x20], ds0[40], ds0[41]"))
			checkInvariants(prog, out)
		})
	})

	Context("when the hardware forbids bank 1 for data", func() {
		BeforeEach(func() {
			target = config.MakeTargetBuilder().WithNoBank1Data(true).Build("pds-a0")
		})

		It("should reject a temporary pre-assigned to bank 1", func() {
			out, _, err := assemble(`
temp dword y @ ds1:5
mov32 y, y
halt
`, target)

			Expect(out).To(BeNil())
			Expect(errors.Is(err, core.ErrDeclaration)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(`"y"`))
			Expect(err.Error()).To(ContainSubstring("bank 1"))
			Expect(err.Error()).To(ContainSubstring("no_bank1_data"))
		})

		It("should fail an operand that can only read bank 1", func() {
			_, _, err := assemble(`
temp dword x
add x, x, x
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
		})
	})

	Context("when a branch crosses an expanded store", func() {
		It("should count the expanded words", func() {
			out, prog := mustAssemble(`
temp dword a
temp dword b
temp dword c
temp dword d
temp dword e
bra end
nop
store 0x100, a, b, c, d, e
end:
halt
`, target)

			Expect(ident(out, "end").LabelOffset).To(Equal(uint32(4)))
			Expect(disasm.Format(disasm.Decode(out.Words[0]))).To(Equal("bra @4"))
			Expect(disasm.Decode(out.Words[4]).Op).To(Equal(isa.OpHalt))
			checkInvariants(prog, out)
		})
	})

	Context("when a branch jumps backwards", func() {
		It("should resolve the label to an earlier word", func() {
			out, prog := mustAssemble(`
temp dword n
top:
nop
sub n, n, 1
bra top
halt
`, target)

			Expect(ident(out, "top").LabelOffset).To(Equal(uint32(0)))
			Expect(disasm.Disassemble(out.Words)).To(Equal([]string{
				"nop",
				"sub ds0[40], ds0[40], ds1[0]",
				"bra @0",
				"halt",
			}))
			checkInvariants(prog, out)
		})
	})

	Context("when the temporary region runs out", func() {
		BeforeEach(func() {
			target = config.MakeTargetBuilder().WithRegions(40, 14).Build("pds-small")
		})

		qwords := `
temp qword q0
temp qword q1
temp qword q2
temp qword q3
temp qword q4
temp qword q5
mov32 q0, q0
mov32 q1, q1
mov32 q2, q2
mov32 q3, q3
mov32 q4, q4
mov32 q5, q5
`

		It("should place a dword in the last unpaired slot", func() {
			out, prog := mustAssemble(qwords+`
temp dword s
temp dword z
mov32 s, s
mov32 z, z
halt
`, target)

			Expect(ident(out, "s").Offsets[0]).To(Equal([]uint32{52}))
			Expect(ident(out, "z").Offsets[0]).To(Equal([]uint32{53}))
			checkInvariants(prog, out)
		})

		It("should report exhaustion when no single dword is left", func() {
			_, _, err := assemble(qwords+`
temp qword q6
temp dword z
mov32 q6, q6
mov32 z, z
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(`"z"`))
		})
	})

	Context("when the store erratum applies", func() {
		BeforeEach(func() {
			target = config.MakeTargetBuilder().WithStoreStartErratum(true).Build("pds-b0")
		})

		It("should start every burst at a legal offset", func() {
			out, prog := mustAssemble(`
temp dword x
temp dword a
temp dword b
mov32 x, x
store 0x40, a, b
halt
`, target)

			Expect(ident(out, "a").Offsets[0]).To(Equal([]uint32{40}))
			Expect(ident(out, "b").Offsets[0]).To(Equal([]uint32{41}))
			Expect(ident(out, "x").Offsets[0]).To(Equal([]uint32{42}))
			checkInvariants(prog, out)
		})

		It("should reserve both dwords of a qword stored through its low half", func() {
			out, prog := mustAssemble(`
temp qword q
temp dword y
store 0x40, q.lo
mov32 y, y
halt
`, target)

			Expect(ident(out, "q").Offsets[0]).To(Equal([]uint32{40}))
			Expect(ident(out, "y").Offsets[0]).To(Equal([]uint32{42}))
			Expect(disasm.Format(disasm.Decode(out.Words[0]))).To(Equal("store [0x40], ds0[40]"))
			checkInvariants(prog, out)
		})

		It("should reject a lone high half when every start is even", func() {
			_, _, err := assemble(`
temp qword q
store 0x40, q.hi
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("no legal store start"))
		})

		It("should place a lone high half at an odd start", func() {
			target.Errata.StoreStarts = []uint32{1, 4, 8, 12, 16}

			out, prog := mustAssemble(`
temp qword q
temp dword y
store 0x40, q.hi
mov32 y, y
halt
`, target)

			Expect(ident(out, "q").Offsets[0]).To(Equal([]uint32{40}))
			Expect(ident(out, "y").Offsets[0]).To(Equal([]uint32{42}))
			Expect(disasm.Format(disasm.Decode(out.Words[0]))).To(Equal("store [0x40], ds0[41]"))
			checkInvariants(prog, out)
		})

		It("should start each burst of a long store at a legal offset", func() {
			out, prog := mustAssemble(`
temp qword q
temp dword a
temp dword b
temp dword c
temp dword d
store 0x100, q, a, b, c, d
halt
`, target)

			Expect(ident(out, "q").Offsets[0]).To(Equal([]uint32{40}))
			Expect(ident(out, "a").Offsets[0]).To(Equal([]uint32{42}))
			Expect(ident(out, "d").Offsets[0]).To(Equal([]uint32{45}))
			Expect(disasm.Disassemble(out.Words)).To(Equal([]string{
				"store [0x100], ds0[40], ds0[41], ds0[42], ds0[43]",
				"store [0x110], ds0[44], ds0[45]",
				"halt",
			}))
			checkInvariants(prog, out)
		})

		It("should let two stores share their temporaries", func() {
			out, prog := mustAssemble(`
temp dword a
temp dword b
store 0x40, a, b
store 0x80, a, b
halt
`, target)

			Expect(disasm.Disassemble(out.Words)).To(Equal([]string{
				"store [0x40], ds0[40], ds0[41]",
				"store [0x80], ds0[40], ds0[41]",
				"halt",
			}))
			checkInvariants(prog, out)
		})

		It("should reject a second store starting inside the first burst", func() {
			_, _, err := assemble(`
temp dword a
temp dword b
store 0x40, a, b
store 0x80, b
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("can only store from"))
		})

		It("should reject a pre-assignment at an illegal start", func() {
			_, _, err := assemble(`
temp dword a @ ds0:1
store 0x40, a
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
		})
	})

	Context("when operands are invalid", func() {
		var (
			mockCtrl *gomock.Controller
			reporter *MockReporter
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			reporter = NewMockReporter(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should report every problem before stopping", func() {
			reporter.EXPECT().Report(gomock.Any()).Times(3)

			out, _, err := assembleWith(`
data k = 1
mov64 k, k
add k, k, k
mov32 x, x
halt
`, target, reporter)

			Expect(out).To(BeNil())

			var f *core.Failure
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Diagnostics).To(HaveLen(3))
			Expect(errors.Is(err, core.ErrUnsupported)).To(BeTrue())
			Expect(errors.Is(err, core.ErrShape)).To(BeTrue())
			Expect(errors.Is(err, core.ErrDeclaration)).To(BeTrue())
		})

		It("should name the instruction and operand", func() {
			reporter.EXPECT().Report(gomock.Any()).Do(func(d core.Diagnostic) {
				Expect(d.Mnemonic).To(Equal("shl"))
				Expect(d.Operand).To(Equal(2))
				Expect(d.Loc.Line).To(Equal(3))
			})

			_, _, err := assembleWith(`
temp dword x
shl x, x, x
halt
`, target, reporter)

			Expect(errors.Is(err, core.ErrShape)).To(BeTrue())
		})

		It("should reject load and store without a load-store unit", func() {
			target = config.MakeTargetBuilder().WithLoadStore(false).Build("pds-lite")
			reporter.EXPECT().Report(gomock.Any()).Times(2)

			_, _, err := assembleWith(`
temp dword a
load 0x0, a
fence
halt
`, target, reporter)

			Expect(errors.Is(err, core.ErrUnsupported)).To(BeTrue())
		})

		It("should reject extended predicates on basic hardware", func() {
			reporter.EXPECT().Report(gomock.Any()).Times(2)

			_, _, err := assembleWith(`
l:
(aluz) nop
(!p0) bra l
halt
`, target, reporter)

			Expect(errors.Is(err, core.ErrUnsupported)).To(BeTrue())
		})

		It("should reject a wrong movs dword count", func() {
			reporter.EXPECT().Report(gomock.Any()).Times(1)

			_, _, err := assembleWith(`
temp dword a
movs doutu, a
halt
`, target, reporter)

			Expect(err).To(MatchError(ContainSubstring("exactly 3 dwords")))
		})

		It("should reject a constant as store data", func() {
			reporter.EXPECT().Report(gomock.Any()).Times(1)

			_, _, err := assembleWith(`
data k = 4
store 0x10, k
halt
`, target, reporter)

			Expect(errors.Is(err, core.ErrShape)).To(BeTrue())
		})

		It("should reject a misaligned address", func() {
			reporter.EXPECT().Report(gomock.Any()).Times(1)

			_, _, err := assembleWith(`
temp dword a
load 0x6, a
halt
`, target, reporter)

			Expect(errors.Is(err, core.ErrShape)).To(BeTrue())
		})
	})

	Context("when a field overflows", func() {
		It("should fail instead of truncating", func() {
			_, _, err := assemble(`
temp dword x
shl x, x, 40
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("shift"))
		})

		It("should fail when code exceeds the branch range", func() {
			target = config.MakeTargetBuilder().WithMaxCodeWords(3).Build("pds-tiny")

			_, _, err := assemble(`
nop
nop
nop
halt
`, target)

			Expect(errors.Is(err, core.ErrResource)).To(BeTrue())
		})
	})

	Context("when a data identifier addresses memory", func() {
		It("should burn the address in and record the field", func() {
			out, prog := mustAssemble(`
data buf = 0x400
temp dword a
temp dword b
load buf, a, b
halt
`, target)

			Expect(disasm.Format(disasm.Decode(out.Words[0]))).
				To(Equal("load [0x400], ds0[40], ds0[41]"))

			Expect(out.Constants).To(HaveLen(1))
			c := out.Constants[0]
			Expect(c.Name).To(Equal("buf"))
			Expect(c.Dwords).To(BeEmpty())
			Expect(c.Params).To(ConsistOf(core.InlineParam{
				Word: len(out.Data), Field: 0, Bits: 15, Scale: 2,
			}))
			checkInvariants(prog, out)
		})
	})

	Context("when every opcode is assembled and disassembled", func() {
		const decls = `
temp dword x @ ds0:0
temp dword y @ ds1:2
`

		roundTrip := func(t *config.Target, src, want string) {
			out, prog := mustAssemble(decls+src+"\nhalt\n", t)
			Expect(disasm.Format(disasm.Decode(out.Words[0]))).To(Equal(want))
			checkInvariants(prog, out)
		}

		DescribeTable("basic hardware",
			func(src, want string) {
				roundTrip(target, src, want)
			},
			Entry("sub", "sub x, x, y", "sub ds0[40], ds0[40], ds1[42]"),
			Entry("adc", "adc y, x, y", "adc ds1[42], ds0[40], ds1[42]"),
			Entry("sbc", "sbc x, x, y", "sbc ds0[40], ds0[40], ds1[42]"),
			Entry("mul with halves", "mul x, x.hi, y.lo", "mul ds0[40], ds0[40].hi, ds1[42]"),
			Entry("abs", "abs x, y", "abs ds0[40], ds1[42]"),
			Entry("not of a register", "not y, ir1", "not ds1[42], ir1"),
			Entry("tstz", "tstz p0, x", "tstz p0, ds0[40]"),
			Entry("tstn", "tstn p1, ir0", "tstn p1, ir0"),
			Entry("tstnz", "tstnz p2, y", "tstnz p2, ds1[42]"),
			Entry("tstp", "tstp p0, x", "tstp p0, ds0[40]"),
			Entry("or of register and immediate", "or x, ir0, 0x1f", "or ds0[40], ir0, 0x1f"),
			Entry("and of data stores", "and x, x, y", "and ds0[40], ds0[40], ds1[42]"),
			Entry("xor with immediate", "xor x, x, 0xff", "xor ds0[40], ds0[40], 0xff"),
			Entry("nor", "nor y, ir1, y", "nor ds1[42], ir1, ds1[42]"),
			Entry("nand", "nand x, x, 7", "nand ds0[40], ds0[40], 0x7"),
			Entry("shl", "shl x, y, 3", "shl ds0[40], ds1[42], 0x3"),
			Entry("shr of a register", "shr y, ir0, 31", "shr ds1[42], ir0, 0x1f"),
			Entry("mov16 immediate to high half", "mov16 x.hi, 0x1234", "mov16 ds0[40].hi, 0x1234"),
			Entry("mov16 from high half", "mov16 x, y.hi", "mov16 ds0[40], ds1[42].hi"),
			Entry("mov32 from register", "mov32 x, ir1", "mov32 ds0[40], ir1"),
			Entry("mov32 across banks", "mov32 y, x", "mov32 ds1[42], ds0[40]"),
			Entry("call", "top:\ncall top", "call @0"),
			Entry("rtn", "rtn", "rtn"),
			Entry("nop", "nop", "nop"),
			Entry("wdf", "wdf", "wdf"),
			Entry("alum", "alum 1", "alum 0x1"),
			Entry("fence", "fence", "fence"),
			Entry("load", "load 0x80, x", "load [0x80], ds0[40]"),
			Entry("store", "store 0x84, y", "store [0x84], ds1[42]"),
			Entry("movsa", "movsa douta, x, y", "movsa douta, ds0[40], ds1[42]"),
			Entry("movs of a register", "movs douti, ir0", "movs douti, ir0"),
			Entry("predicated add", "(p1) add x, x, y", "(p1) add ds0[40], ds0[40], ds1[42]"),
			Entry("branch on a predicate", "top:\n(p2) bra top", "(p2) bra @0"),
			Entry("branch with the negate bit", "top:\n(!if0) bra top", "(!if0) bra @0"),
		)

		DescribeTable("extended hardware",
			func(src, want string) {
				roundTrip(config.MakeTargetBuilder().WithExtendedSources(true).Build("pds-ext"), src, want)
			},
			Entry("negated predicate branch", "top:\n(!p1) bra top", "(!p1) bra @0"),
			Entry("alu flag branch", "top:\n(!alun) call top", "(!alun) call @0"),
			Entry("alu flag on a general opcode", "(aluz) mov32 x, y", "(aluz) mov32 ds0[40], ds1[42]"),
			Entry("extended command type", "movs doutt, x", "movs doutt, ds0[40]"),
		)
	})

	Context("when the same source is assembled twice", func() {
		It("should produce identical images", func() {
			src := `
temp dword x
temp dword y
temp qword q
data k = 0x1234
data m = 9
loop:
add x, k, 3
sub y, x, m
mul x, y.lo, m
or y, ir0, 0x1f
movs douta, x, y, q
tstnz p1, y
(p1) bra loop
store 0x80, x, y
halt
`
			first, prog := mustAssemble(src, target)
			second, _ := mustAssemble(src, target)

			Expect(first.Image()).To(Equal(second.Image()))
			checkInvariants(prog, first)
		})
	})
})
