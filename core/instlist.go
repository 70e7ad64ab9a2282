package core

import (
	"fmt"
	"strings"

	"github.com/sarchlab/pdsasm/isa"
)

// ArgKind is the shape of an operand.
type ArgKind int

// Operand kinds. ArgInline is produced by the validator from ArgDataStore
// when the value is burned into the instruction word.
const (
	ArgDataStore ArgKind = iota
	ArgImmediate
	ArgSpecialReg
	ArgPredicate
	ArgInline
)

// Flag selects a half of the addressed data-store slot.
type Flag int

// Half flags.
const (
	FlagNone Flag = iota
	FlagLow
	FlagHigh
)

// Argument is one operand of an instruction.
type Argument struct {
	Kind  ArgKind
	Ident int
	Imm   uint32
	Reg   isa.SpecialReg
	Pred  isa.PredReg
	Flag  Flag

	// ParamOffset is the byte offset added to an inline address.
	ParamOffset uint32

	bank    int
	offset  uint32
	located bool
}

// Location returns the resolved data-store position of the operand.
// Calling it before allocation is a programming error.
func (a *Argument) Location() (bank int, offset uint32) {
	if !a.located {
		panic("data-store location read before allocation")
	}

	return a.bank, a.offset
}

// Located reports whether the allocator has placed the operand.
func (a *Argument) Located() bool {
	return a.located
}

func (a *Argument) setLocation(bank int, offset uint32) {
	a.bank = bank
	a.offset = offset
	a.located = true
}

// Instruction is one assembly statement.
type Instruction struct {
	Pred isa.Predicate
	Op   isa.Opcode
	Args []Argument
	Loc  Location
	Word uint32
}

func (in *Instruction) clone() Instruction {
	c := *in
	c.Args = append([]Argument(nil), in.Args...)

	return c
}

// Format renders the instruction with identifier names for diagnostics.
func (in *Instruction) Format(idents *IdentTable) string {
	var parts []string

	for _, a := range in.Args {
		parts = append(parts, formatArg(a, idents))
	}

	s := in.Op.String()
	if in.Pred != isa.PredAlways {
		s = "(" + in.Pred.String() + ") " + s
	}

	if len(parts) > 0 {
		s += " " + strings.Join(parts, ", ")
	}

	return s
}

func formatArg(a Argument, idents *IdentTable) string {
	var s string

	switch a.Kind {
	case ArgDataStore, ArgInline:
		s = idents.At(a.Ident).Name
		if a.ParamOffset != 0 {
			s += fmt.Sprintf("+%d", a.ParamOffset)
		}
	case ArgImmediate:
		s = fmt.Sprintf("0x%x", a.Imm)
	case ArgSpecialReg:
		s = a.Reg.String()
	case ArgPredicate:
		s = a.Pred.String()
	}

	switch a.Flag {
	case FlagLow:
		s += ".lo"
	case FlagHigh:
		s += ".hi"
	}

	return s
}

const nilIndex = -1

type instNode struct {
	inst       Instruction
	prev, next int
	live       bool
}

// InstList is the program-ordered instruction sequence. Nodes live in an
// arena and are linked by index, so unlinking and splicing never move an
// instruction.
type InstList struct {
	nodes      []instNode
	head, tail int
	count      int
}

// NewInstList creates an empty list.
func NewInstList() *InstList {
	return &InstList{head: nilIndex, tail: nilIndex}
}

// Len returns the number of live instructions.
func (l *InstList) Len() int {
	return l.count
}

// Front returns the index of the first instruction or -1.
func (l *InstList) Front() int {
	return l.head
}

// Next returns the index following i or -1.
func (l *InstList) Next(i int) int {
	return l.nodes[i].next
}

// At returns the instruction at index i.
func (l *InstList) At(i int) *Instruction {
	return &l.nodes[i].inst
}

// Append adds an instruction at the end and returns its index.
func (l *InstList) Append(in Instruction) int {
	return l.InsertBefore(nilIndex, in)
}

// InsertBefore links a new instruction in front of index at, or at the
// end when at is -1.
func (l *InstList) InsertBefore(at int, in Instruction) int {
	idx := len(l.nodes)
	l.nodes = append(l.nodes, instNode{inst: in, prev: nilIndex, next: nilIndex, live: true})

	if at == nilIndex {
		l.nodes[idx].prev = l.tail
		if l.tail != nilIndex {
			l.nodes[l.tail].next = idx
		} else {
			l.head = idx
		}
		l.tail = idx
	} else {
		prev := l.nodes[at].prev
		l.nodes[idx].prev = prev
		l.nodes[idx].next = at
		l.nodes[at].prev = idx
		if prev != nilIndex {
			l.nodes[prev].next = idx
		} else {
			l.head = idx
		}
	}

	l.count++

	return idx
}

// Remove unlinks index i. The slot is not reused.
func (l *InstList) Remove(i int) {
	n := &l.nodes[i]
	if !n.live {
		return
	}

	if n.prev != nilIndex {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}

	if n.next != nilIndex {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}

	n.live = false
	n.prev, n.next = nilIndex, nilIndex
	n.inst.Args = nil
	l.count--
}

// Indices returns the live indices in program order.
func (l *InstList) Indices() []int {
	out := make([]int, 0, l.count)
	for i := l.head; i != nilIndex; i = l.nodes[i].next {
		out = append(out, i)
	}

	return out
}

// Program is the input of the assembler: identifiers plus instructions.
type Program struct {
	Idents *IdentTable
	Insts  *InstList
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{Idents: NewIdentTable(), Insts: NewInstList()}
}
