package core

import (
	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/isa"
)

// lsUnit is one dword moved by a LOAD or STORE.
type lsUnit struct {
	arg   Argument
	ident int
	part  int
	bank  int
}

// lsUnits flattens the data operands of a LOAD or STORE into dwords.
// A qword without a half flag moves both halves.
func (a *Assembler) lsUnits(in *Instruction) []lsUnit {
	var units []lsUnit

	for ai := 1; ai < len(in.Args); ai++ {
		arg := in.Args[ai]
		id := a.idents.At(arg.Ident)
		b, _ := id.Banks.Only()

		if id.Type == TypeQword && arg.Flag == FlagNone {
			lo, hi := arg, arg
			lo.Flag, hi.Flag = FlagLow, FlagHigh
			units = append(units,
				lsUnit{arg: lo, ident: arg.Ident, part: 0, bank: b},
				lsUnit{arg: hi, ident: arg.Ident, part: 1, bank: b})

			continue
		}

		part := 0
		if arg.Flag == FlagHigh {
			part = 1
		}

		units = append(units, lsUnit{arg: arg, ident: arg.Ident, part: part, bank: b})
	}

	return units
}

// chunks splits units into maximal same-bank runs of at most the burst
// size, ignoring offsets.
func (a *Assembler) chunks(units []lsUnit) [][]lsUnit {
	var (
		out [][]lsUnit
		cur []lsUnit
	)

	for _, u := range units {
		if len(cur) > 0 && (u.bank != cur[0].bank || len(cur) == int(a.target.BurstDwords)) {
			out = append(out, cur)
			cur = nil
		}

		cur = append(cur, u)
	}

	if len(cur) > 0 {
		out = append(out, cur)
	}

	return out
}

// placeErratumStores binds the operands of every STORE before general
// allocation so that each burst starts at one of the temporary offsets
// the affected hardware can store from.
func (a *Assembler) placeErratumStores() error {
	for _, i := range a.prog.Insts.Indices() {
		in := a.prog.Insts.At(i)
		if in.Op != isa.OpStore {
			continue
		}

		for _, c := range a.chunks(a.lsUnits(in)) {
			if err := a.placeStoreChunk(in, c); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Assembler) placeStoreChunk(in *Instruction, c []lsUnit) error {
	b := c[0].bank
	base := a.target.TempBase()

	bound := 0
	seen := map[[2]int]bool{}

	for _, u := range c {
		id := a.idents.At(u.ident)
		if id.Bound(b) {
			bound++
		}

		key := [2]int{u.ident, u.part}
		if seen[key] {
			return a.fail(in, -1, []string{id.Name}, errorf(ErrShape,
				"%q stored twice in one burst", id.Name))
		}

		seen[key] = true
	}

	if bound == 0 {
		return a.bindStoreChunk(in, c, b, base)
	}

	if bound != len(c) {
		return a.fail(in, -1, a.chunkNames(c), errorf(ErrResource,
			"store burst mixes placed and unplaced temporaries %v", a.chunkNames(c)))
	}

	first := a.unitOffset(c[0], b)
	if !a.storeStartAllowed(first - base) {
		return a.fail(in, -1, a.chunkNames(c), errorf(ErrResource,
			"store burst starts at temporary offset %d, this hardware revision can only store from %v",
			first-base, a.target.Errata.StoreStarts))
	}

	for k, u := range c {
		if a.unitOffset(u, b) != first+uint32(k) {
			return a.fail(in, -1, a.chunkNames(c), errorf(ErrResource,
				"store burst %v is not contiguous in the temporary region", a.chunkNames(c)))
		}
	}

	return nil
}

func (a *Assembler) bindStoreChunk(in *Instruction, c []lsUnit, b int, base uint32) error {
	n := uint32(len(c))

	for _, start := range a.target.Errata.StoreStarts {
		before, after, ok := a.chunkFootprint(c, start)
		if !ok {
			continue
		}

		if !a.ds.AllocRun(datastore.Temp, b, start-before, before+n+after) {
			continue
		}

		for k, u := range c {
			id := a.idents.At(u.ident)
			id.Offsets[b] = []uint32{base + start + uint32(k) - uint32(u.part)}
		}

		Trace("store burst placed", "bank", b, "start", start, "dwords", n,
			"reserved", before+after)

		return nil
	}

	return a.fail(in, -1, a.chunkNames(c), errorf(ErrResource,
		"no legal store start in bank %d holds %d free dwords for %v",
		b, n, a.chunkNames(c)))
}

// chunkFootprint checks that every qword of the chunk stays aligned when
// the chunk starts at start. A qword stored through one half still owns
// both dwords, so before and after count the dwords the run must reserve
// outside the stored ones.
func (a *Assembler) chunkFootprint(c []lsUnit, start uint32) (before, after uint32, ok bool) {
	last := len(c) - 1

	for k, u := range c {
		if a.idents.At(u.ident).Type != TypeQword {
			continue
		}

		off := start + uint32(k)

		switch u.part {
		case 0:
			if off%2 != 0 {
				return 0, 0, false
			}

			if k < last && (c[k+1].ident != u.ident || c[k+1].part != 1) {
				return 0, 0, false
			}

			if k == last {
				after = 1
			}
		case 1:
			if off%2 != 1 {
				return 0, 0, false
			}

			if k > 0 && (c[k-1].ident != u.ident || c[k-1].part != 0) {
				return 0, 0, false
			}

			if k == 0 {
				before = 1
			}
		}
	}

	return before, after, true
}

func (a *Assembler) unitOffset(u lsUnit, b int) uint32 {
	return a.idents.At(u.ident).Offsets[b][0] + uint32(u.part)
}

func (a *Assembler) storeStartAllowed(off uint32) bool {
	for _, s := range a.target.Errata.StoreStarts {
		if s == off {
			return true
		}
	}

	return false
}

func (a *Assembler) chunkNames(c []lsUnit) []string {
	var out []string

	for _, u := range c {
		name := a.idents.At(u.ident).Name
		if len(out) == 0 || out[len(out)-1] != name {
			out = append(out, name)
		}
	}

	return out
}

// expandLoadStore rewrites every LOAD and STORE into one instruction per
// run of dwords that is same-bank, contiguous and within the burst size.
// Each piece's memory address advances by four bytes per dword already
// moved.
func (a *Assembler) expandLoadStore() error {
	list := a.prog.Insts

	for _, i := range list.Indices() {
		in := list.At(i)
		if !in.Op.IsLoadStore() {
			continue
		}

		orig := in.clone()
		units := a.lsUnits(&orig)
		pieces := 0

		for start := 0; start < len(units); {
			end := a.runEnd(units, start)

			piece := orig
			piece.Args = make([]Argument, 0, end-start+1)
			piece.Args = append(piece.Args, advance(orig.Args[0], uint32(start)*4))

			for _, u := range units[start:end] {
				arg := u.arg
				off := a.unitOffset(u, u.bank)
				arg.setLocation(u.bank, off)
				piece.Args = append(piece.Args, arg)
			}

			list.InsertBefore(i, piece)

			pieces++
			start = end
		}

		list.Remove(i)

		Trace("load/store expanded", "op", orig.Op.String(), "dwords", len(units), "pieces", pieces)
	}

	return nil
}

// runEnd returns one past the last unit of the run starting at start.
func (a *Assembler) runEnd(units []lsUnit, start int) int {
	first := units[start]
	firstOff := a.unitOffset(first, first.bank)

	end := start + 1
	for end < len(units) && end-start < int(a.target.BurstDwords) {
		u := units[end]
		if u.bank != first.bank || a.unitOffset(u, u.bank) != firstOff+uint32(end-start) {
			break
		}

		end++
	}

	return end
}

func advance(addr Argument, bytes uint32) Argument {
	if addr.Kind == ArgInline {
		addr.ParamOffset += bytes
	} else {
		addr.Imm += bytes
	}

	return addr
}
