// Package parser reads PDS assembly source into a core.Program.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/isa"
)

// Parser turns source lines into identifiers and instructions. Problems
// are collected so that one run reports every bad line.
type Parser struct {
	file  string
	prog  *core.Program
	diags []core.Diagnostic
}

// Parse reads a whole source file. The error is a *core.Failure when any
// line is malformed.
func Parse(file string, r io.Reader) (*core.Program, error) {
	p := &Parser{file: file, prog: core.NewProgram()}

	sc := bufio.NewScanner(r)
	line := 0

	for sc.Scan() {
		line++
		p.parseLine(sc.Text(), line)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	if len(p.diags) > 0 {
		return nil, &core.Failure{Diagnostics: p.diags}
	}

	return p.prog, nil
}

// ParseString parses source held in memory.
func ParseString(file, src string) (*core.Program, error) {
	return Parse(file, strings.NewReader(src))
}

func (p *Parser) errorf(line int, class error, format string, args ...any) {
	p.diags = append(p.diags, core.Diagnostic{
		Loc:     core.Location{File: p.file, Line: line},
		Operand: -1,
		Err:     fmt.Errorf("%w: "+format, append([]any{class}, args...)...),
	})
}

func stripComment(s string) string {
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}

	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}

	return strings.TrimSpace(s)
}

func (p *Parser) parseLine(raw string, line int) {
	s := stripComment(raw)
	if s == "" {
		return
	}

	if name, rest, ok := splitLabel(s); ok {
		p.defineLabel(name, line)
		s = rest

		if s == "" {
			return
		}
	}

	word, rest := cutWord(s)

	switch strings.ToLower(word) {
	case "temp":
		p.parseTemp(rest, line)
	case "data":
		p.parseData(rest, line)
	default:
		p.parseInstruction(s, line)
	}
}

// splitLabel recognizes "name:" at the start of a line.
func splitLabel(s string) (name, rest string, ok bool) {
	i := strings.Index(s, ":")
	if i <= 0 {
		return "", s, false
	}

	name = strings.TrimSpace(s[:i])
	if !isIdent(name) {
		return "", s, false
	}

	return name, strings.TrimSpace(s[i+1:]), true
}

func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}

	return s, ""
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

func reserved(name string) bool {
	if _, ok := isa.LookupSpecialReg(name); ok {
		return true
	}

	if _, ok := lookupPredReg(name); ok {
		return true
	}

	_, ok := isa.LookupOpcode(name)

	return ok
}

func (p *Parser) define(name string, class core.Class, typ core.DataType, line int) (int, bool) {
	if !isIdent(name) {
		p.errorf(line, core.ErrDeclaration, "%q is not a valid identifier", name)
		return 0, false
	}

	if reserved(name) {
		p.errorf(line, core.ErrDeclaration, "%q is a reserved name", name)
		return 0, false
	}

	idx, err := p.prog.Idents.Define(name, class, typ, core.Location{File: p.file, Line: line})
	if err != nil {
		p.errorf(line, core.ErrDeclaration, "%v", unwrapClass(err))
		return 0, false
	}

	return idx, true
}

// unwrapClass strips the class prefix that errorf-style errors carry.
func unwrapClass(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}

	return msg
}

func (p *Parser) defineLabel(name string, line int) {
	idx, ok := p.define(name, core.ClassLabel, core.TypeNone, line)
	if !ok {
		return
	}

	p.prog.Insts.Append(core.Instruction{
		Op:   isa.OpLabel,
		Args: []core.Argument{{Kind: core.ArgDataStore, Ident: idx}},
		Loc:  core.Location{File: p.file, Line: line},
	})
}

func parseType(s string) (core.DataType, bool) {
	switch strings.ToLower(s) {
	case "dword":
		return core.TypeDword, true
	case "qword":
		return core.TypeQword, true
	}

	return core.TypeNone, false
}

// parseTemp handles "temp dword x" and "temp qword q @ ds1:4".
func (p *Parser) parseTemp(s string, line int) {
	decl, place, hasPlace := strings.Cut(s, "@")

	typeWord, name := cutWord(decl)

	typ, ok := parseType(typeWord)
	if !ok {
		p.errorf(line, core.ErrDeclaration, "temp needs dword or qword, got %q", typeWord)
		return
	}

	idx, ok := p.define(strings.TrimSpace(name), core.ClassTemp, typ, line)
	if !ok || !hasPlace {
		return
	}

	bank, off, err := parsePlacement(place)
	if err != nil {
		p.errorf(line, core.ErrDeclaration, "%v", err)
		return
	}

	id := p.prog.Idents.At(idx)
	id.PreBank = bank
	id.PreOffset = off
}

// parsePlacement reads "ds1" or "ds0:5".
func parsePlacement(s string) (bank, off int, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	bankStr, offStr, hasOff := strings.Cut(s, ":")

	switch strings.TrimSpace(bankStr) {
	case "ds0":
		bank = 0
	case "ds1":
		bank = 1
	default:
		return 0, 0, fmt.Errorf("placement bank must be ds0 or ds1, got %q", bankStr)
	}

	off = -1

	if hasOff {
		v, err := strconv.ParseUint(strings.TrimSpace(offStr), 0, 8)
		if err != nil {
			return 0, 0, fmt.Errorf("bad placement offset %q", offStr)
		}

		off = int(v)
	}

	return bank, off, nil
}

// parseData handles "data k = 0x10" and "data dword k = 16".
func (p *Parser) parseData(s string, line int) {
	decl, value, ok := strings.Cut(s, "=")
	if !ok {
		p.errorf(line, core.ErrDeclaration, "data needs a value: data name = value")
		return
	}

	fields := strings.Fields(decl)
	if len(fields) == 2 {
		if typ, ok := parseType(fields[0]); !ok || typ != core.TypeDword {
			p.errorf(line, core.ErrDeclaration, "data constants are dwords, got %q", fields[0])
			return
		}

		fields = fields[1:]
	}

	if len(fields) != 1 {
		p.errorf(line, core.ErrDeclaration, "malformed data declaration")
		return
	}

	v, err := parseNumber(strings.TrimSpace(value))
	if err != nil {
		p.errorf(line, core.ErrDeclaration, "%v", err)
		return
	}

	idx, ok := p.define(fields[0], core.ClassData, core.TypeDword, line)
	if !ok {
		return
	}

	p.prog.Idents.At(idx).Value = v
}

// parseNumber accepts decimal, 0x hex, 0b binary and negative values,
// which wrap to 32 bits.
func parseNumber(s string) (uint32, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}

	if neg {
		return uint32(-int64(v)), nil
	}

	return uint32(v), nil
}

func lookupPredReg(name string) (isa.PredReg, bool) {
	switch strings.ToLower(name) {
	case "p0":
		return isa.P0, true
	case "p1":
		return isa.P1, true
	case "p2":
		return isa.P2, true
	}

	return 0, false
}

func (p *Parser) parseInstruction(s string, line int) {
	loc := core.Location{File: p.file, Line: line}
	in := core.Instruction{Pred: isa.PredAlways, Loc: loc}

	if strings.HasPrefix(s, "(") {
		end := strings.Index(s, ")")
		if end < 0 {
			p.errorf(line, core.ErrShape, "unterminated predicate")
			return
		}

		pred, ok := isa.LookupPredicate(s[1:end])
		if !ok {
			p.errorf(line, core.ErrShape, "unknown predicate %q", s[1:end])
			return
		}

		in.Pred = pred
		s = strings.TrimSpace(s[end+1:])
	}

	mnemonic, rest := cutWord(s)

	op, ok := isa.LookupOpcode(mnemonic)
	if !ok {
		p.errorf(line, core.ErrShape, "unknown mnemonic %q", mnemonic)
		return
	}

	in.Op = op

	if rest != "" {
		for _, field := range strings.Split(rest, ",") {
			arg, err := p.parseOperand(strings.TrimSpace(field), loc)
			if err != nil {
				p.errorf(line, core.ErrShape, "%s: %v", mnemonic, err)
				return
			}

			in.Args = append(in.Args, arg)
		}
	}

	p.prog.Insts.Append(in)
}

func (p *Parser) parseOperand(s string, loc core.Location) (core.Argument, error) {
	if s == "" {
		return core.Argument{}, fmt.Errorf("empty operand")
	}

	if c := s[0]; c == '-' || c >= '0' && c <= '9' {
		v, err := parseNumber(s)
		if err != nil {
			return core.Argument{}, err
		}

		return core.Argument{Kind: core.ArgImmediate, Imm: v}, nil
	}

	name, flag := s, core.FlagNone

	if base, half, ok := strings.Cut(s, "."); ok {
		switch strings.ToLower(half) {
		case "lo":
			flag = core.FlagLow
		case "hi":
			flag = core.FlagHigh
		default:
			return core.Argument{}, fmt.Errorf("unknown half %q, want lo or hi", half)
		}

		name = base
	}

	if r, ok := isa.LookupSpecialReg(name); ok {
		return core.Argument{Kind: core.ArgSpecialReg, Reg: r, Flag: flag}, nil
	}

	if pr, ok := lookupPredReg(name); ok {
		return core.Argument{Kind: core.ArgPredicate, Pred: pr, Flag: flag}, nil
	}

	if !isIdent(name) {
		return core.Argument{}, fmt.Errorf("bad operand %q", s)
	}

	return core.Argument{
		Kind:  core.ArgDataStore,
		Ident: p.prog.Idents.Reference(name, loc),
		Flag:  flag,
	}, nil
}
