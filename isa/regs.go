package isa

import "strings"

// SpecialReg names a hardware register that is not part of the data
// store. The MOVS command types are special registers too.
type SpecialReg uint8

// Special registers. The command types occupy the low ids so that their
// id is also their MOVS command code.
const (
	RegDoutD SpecialReg = 0
	RegDoutA SpecialReg = 1
	RegDoutU SpecialReg = 2
	RegDoutI SpecialReg = 3
	RegDoutT SpecialReg = 4
	RegIR0   SpecialReg = 8
	RegIR1   SpecialReg = 9
	RegTim   SpecialReg = 10
	RegPC    SpecialReg = 11
)

var regNames = map[SpecialReg]string{
	RegDoutD: "doutd",
	RegDoutA: "douta",
	RegDoutU: "doutu",
	RegDoutI: "douti",
	RegDoutT: "doutt",
	RegIR0:   "ir0",
	RegIR1:   "ir1",
	RegTim:   "tim",
	RegPC:    "pc",
}

func (r SpecialReg) String() string {
	if n, ok := regNames[r]; ok {
		return n
	}

	return "sr?"
}

// LookupSpecialReg finds a special register by name.
func LookupSpecialReg(name string) (SpecialReg, bool) {
	name = strings.ToLower(name)
	for r, n := range regNames {
		if n == name {
			return r, true
		}
	}

	return 0, false
}

// CommandInfo describes a MOVS command type.
type CommandInfo struct {
	Reg       SpecialReg
	MinDwords int
	MaxDwords int
	Extended  bool
}

var commands = []CommandInfo{
	{Reg: RegDoutD, MinDwords: 2, MaxDwords: 2},
	{Reg: RegDoutA, MinDwords: 1, MaxDwords: 4},
	{Reg: RegDoutU, MinDwords: 3, MaxDwords: 3},
	{Reg: RegDoutI, MinDwords: 1, MaxDwords: 2},
	{Reg: RegDoutT, MinDwords: 1, MaxDwords: 2, Extended: true},
}

// Command returns the command description of a MOVS command register.
func Command(r SpecialReg) (CommandInfo, bool) {
	for _, c := range commands {
		if c.Reg == r {
			return c, true
		}
	}

	return CommandInfo{}, false
}

// IsCommand reports whether r is a MOVS command type.
func (r SpecialReg) IsCommand() bool {
	_, ok := Command(r)
	return ok
}

// PredReg is a predicate register written by the test instructions.
type PredReg uint8

// Predicate registers.
const (
	P0 PredReg = iota
	P1
	P2

	NumPredRegs
)

func (p PredReg) String() string {
	return "p" + string(rune('0'+p))
}
