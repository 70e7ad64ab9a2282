package core

import (
	"fmt"

	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/isa"
)

// allocateSpace binds every referenced identifier to offsets in the
// banks chosen by allocateBanks and records the location of every
// data-store operand. MOVS operands are placed first because they carry
// the tightest constraints.
func (a *Assembler) allocateSpace() error {
	if a.target.Errata.StoreStart {
		if err := a.placeErratumStores(); err != nil {
			return err
		}
	}

	indices := a.prog.Insts.Indices()

	for _, i := range indices {
		in := a.prog.Insts.At(i)
		if in.Op.IsMovs() {
			if err := a.packMovsTemps(in); err != nil {
				return err
			}
		}
	}

	for _, i := range indices {
		in := a.prog.Insts.At(i)
		if in.Op.IsMovs() {
			continue
		}

		for ai := range in.Args {
			arg := &in.Args[ai]
			if arg.Kind != ArgDataStore {
				continue
			}

			id := a.idents.At(arg.Ident)
			if !id.IsTemp() {
				continue
			}

			if err := a.bindTemp(in, id); err != nil {
				return err
			}
		}
	}

	for _, i := range indices {
		in := a.prog.Insts.At(i)
		if in.Op.IsMovs() {
			if err := a.packMovsConsts(in); err != nil {
				return err
			}
		}
	}

	for _, i := range indices {
		in := a.prog.Insts.At(i)
		if in.Op.IsMovs() || in.Op == isa.OpLabel {
			continue
		}

		if err := a.bindConsts(in); err != nil {
			return err
		}
	}

	return nil
}

func (a *Assembler) bindTemp(in *Instruction, id *Identifier) error {
	b, _ := id.Banks.Only()
	if id.Bound(b) {
		return nil
	}

	var (
		idx uint32
		ok  bool
	)

	if id.Dwords() == 2 {
		idx, ok = a.ds.AllocPair(datastore.Temp, b)
	} else {
		idx, ok = a.ds.Alloc(datastore.Temp, b)
	}

	if !ok {
		return a.fail(in, -1, []string{id.Name}, errorf(ErrResource,
			"no free temporary %s left in bank %d for %q (%d dwords, %d pairs free)",
			id.Type, b, id.Name,
			a.ds.FreeSingles(datastore.Temp, b), a.ds.FreePairs(datastore.Temp, b)))
	}

	id.Offsets[b] = []uint32{a.target.TempBase() + idx}

	Trace("temp bound", "ident", id.Name, "bank", b, "offset", id.Offsets[b][0])

	return nil
}

// bindConsts places the constants of a non-MOVS instruction in the lowest
// bank each operand position can read, reusing an existing binding.
func (a *Assembler) bindConsts(in *Instruction) error {
	desc := a.table.Lookup(in.Op)

	for ai := range in.Args {
		arg := &in.Args[ai]
		if arg.Kind != ArgDataStore {
			continue
		}

		id := a.idents.At(arg.Ident)
		mask := desc.KindAt(ai).BankMask()

		if id.IsConstant() {
			if err := a.bindConst(in, ai, id, mask); err != nil {
				return err
			}
		}

		a.locate(arg, id, mask)
	}

	return nil
}

func (a *Assembler) bindConst(in *Instruction, ai int, id *Identifier, mask [2]bool) error {
	for b := 0; b < 2; b++ {
		if mask[b] && id.Banks.Has(b) && id.Bound(b) {
			return nil
		}
	}

	for b := 0; b < 2; b++ {
		if !mask[b] || !id.Banks.Has(b) {
			continue
		}

		off, ok := a.ds.Alloc(datastore.Preload, b)
		if !ok {
			return a.fail(in, ai, []string{id.Name}, errorf(ErrResource,
				"preloaded region of bank %d is full, cannot place %q", b, id.Name))
		}

		id.Offsets[b] = append(id.Offsets[b], off)

		Trace("constant bound", "ident", id.Name, "bank", b, "offset", off)

		return nil
	}

	return a.fail(in, ai, []string{id.Name}, errorf(ErrResource,
		"%q has no bank readable by this operand", id.Name))
}

// locate records where a non-MOVS operand reads its identifier.
func (a *Assembler) locate(arg *Argument, id *Identifier, mask [2]bool) {
	for b := 0; b < 2; b++ {
		if !mask[b] || !id.Bound(b) {
			continue
		}

		off := id.Offsets[b][0]
		if arg.Flag == FlagHigh && id.Type == TypeQword {
			off++
		}

		arg.setLocation(b, off)

		return
	}
}

// movsGroup returns the distinct identifiers of a MOVS matching keep, in
// operand order.
func (a *Assembler) movsGroup(in *Instruction, keep func(*Identifier) bool) []int {
	var out []int

	for ai := 1; ai < len(in.Args); ai++ {
		arg := &in.Args[ai]
		if arg.Kind != ArgDataStore || !keep(a.idents.At(arg.Ident)) {
			continue
		}

		dup := false

		for _, x := range out {
			if x == arg.Ident {
				dup = true
				break
			}
		}

		if !dup {
			out = append(out, arg.Ident)
		}
	}

	return out
}

// packMovsTemps places the temporaries of a MOVS so that those sharing a
// bank also share an aligned qword.
func (a *Assembler) packMovsTemps(in *Instruction) error {
	var byBank [2][]int

	for _, i := range a.movsGroup(in, (*Identifier).IsTemp) {
		b, _ := a.idents.At(i).Banks.Only()
		byBank[b] = append(byBank[b], i)
	}

	for b, group := range byBank {
		dwords := 0
		for _, i := range group {
			dwords += a.idents.At(i).Dwords()
		}

		switch {
		case dwords > 2:
			return a.fail(in, -1, a.names(group), errorf(ErrResource,
				"temporaries read from bank %d need %d dwords, a slot holds 2", b, dwords))
		case len(group) == 1:
			if err := a.bindTemp(in, a.idents.At(group[0])); err != nil {
				return err
			}
		case len(group) == 2:
			if err := a.pairTemps(in, b, a.idents.At(group[0]), a.idents.At(group[1])); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Assembler) pairTemps(in *Instruction, b int, x, y *Identifier) error {
	bx, by := x.Bound(b), y.Bound(b)

	switch {
	case bx && by:
		ox, oy := x.Offsets[b][0], y.Offsets[b][0]
		if ox>>1 != oy>>1 {
			return a.pairConflict(in, x, y, fmt.Sprintf("bound to offsets %d and %d", ox, oy))
		}
	case bx:
		return a.completePair(in, b, x, y)
	case by:
		return a.completePair(in, b, y, x)
	default:
		idx, ok := a.ds.AllocPair(datastore.Temp, b)
		if !ok {
			return a.fail(in, -1, []string{x.Name, y.Name}, errorf(ErrResource,
				"no free temporary qword in bank %d for %q and %q", b, x.Name, y.Name))
		}

		base := a.target.TempBase()
		x.Offsets[b] = []uint32{base + idx}
		y.Offsets[b] = []uint32{base + idx + 1}

		Trace("temps paired", "a", x.Name, "b", y.Name, "bank", b, "offset", base+idx)
	}

	return nil
}

// completePair binds free next to bound so that both share a qword.
func (a *Assembler) completePair(in *Instruction, b int, bound, free *Identifier) error {
	sibling := bound.Offsets[b][0] ^ 1
	idx := sibling - a.target.TempBase()

	if err := a.ds.Claim(datastore.Temp, b, idx); err != nil {
		return a.pairConflict(in, bound, free,
			fmt.Sprintf("offset %d next to %q is taken", sibling, bound.Name))
	}

	free.Offsets[b] = []uint32{sibling}

	return nil
}

func (a *Assembler) pairConflict(in *Instruction, x, y *Identifier, detail string) error {
	msg := fmt.Sprintf("%q and %q must share an aligned qword but are %s", x.Name, y.Name, detail)

	for _, id := range []*Identifier{x, y} {
		if id.PreAssigned() {
			msg += fmt.Sprintf("; %q is pre-assigned, move it or drop the pre-assignment", id.Name)
		}
	}

	return a.fail(in, -1, []string{x.Name, y.Name}, errorf(ErrResource, "%s", msg))
}

func (a *Assembler) names(group []int) []string {
	out := make([]string, len(group))
	for i, x := range group {
		out[i] = a.idents.At(x).Name
	}

	return out
}

// movsSlots returns the banks still free for constants in a MOVS and the
// slot the special register will take, -1 if there is none.
func (a *Assembler) movsSlots(in *Instruction, consts []int) (avail [2]bool, special int) {
	var tempBank [2]bool

	hasSpecial := false

	for ai := 1; ai < len(in.Args); ai++ {
		arg := &in.Args[ai]

		switch arg.Kind {
		case ArgSpecialReg:
			hasSpecial = true
		case ArgDataStore:
			id := a.idents.At(arg.Ident)
			if b, ok := id.Banks.Only(); ok && id.IsTemp() {
				tempBank[b] = true
			}
		}
	}

	avail = [2]bool{!tempBank[0], !tempBank[1]}
	special = -1

	if !hasSpecial {
		return avail, special
	}

	needs0 := tempBank[0]

	for _, c := range consts {
		if a.idents.At(c).Banks == Bank0 {
			needs0 = true
		}
	}

	special = 0
	if a.target.ExtendedSources && needs0 {
		special = 1
	}

	avail[special] = false

	return avail, special
}

type slotBinding struct {
	bank int
	off  uint32
}

// packMovsConsts gives every constant of a MOVS one binding such that
// constants read from the same bank share an aligned qword. Existing
// bindings are reused when a consistent combination exists.
func (a *Assembler) packMovsConsts(in *Instruction) error {
	consts := a.movsGroup(in, (*Identifier).IsConstant)
	avail, _ := a.movsSlots(in, consts)

	chosen := make(map[int]slotBinding, len(consts))

	if len(consts) > 0 && !a.reuseMovsConsts(consts, avail, chosen) {
		if err := a.placeMovsConsts(in, consts, avail, chosen); err != nil {
			return err
		}
	}

	for ai := 1; ai < len(in.Args); ai++ {
		arg := &in.Args[ai]
		if arg.Kind != ArgDataStore {
			continue
		}

		id := a.idents.At(arg.Ident)
		if s, ok := chosen[arg.Ident]; ok {
			arg.setLocation(s.bank, s.off)
			continue
		}

		b, _ := id.Banks.Only()

		off := id.Offsets[b][0]
		if arg.Flag == FlagHigh && id.Type == TypeQword {
			off++
		}

		arg.setLocation(b, off)
	}

	return nil
}

func (a *Assembler) reuseMovsConsts(consts []int, avail [2]bool, chosen map[int]slotBinding) bool {
	cands := make([][]slotBinding, len(consts))

	for i, c := range consts {
		id := a.idents.At(c)
		for b := 0; b < 2; b++ {
			if !avail[b] || !id.Banks.Has(b) {
				continue
			}

			for _, off := range id.Offsets[b] {
				cands[i] = append(cands[i], slotBinding{b, off})
			}
		}

		if len(cands[i]) == 0 {
			return false
		}
	}

	qword := [2]int{-1, -1}
	pick := make([]slotBinding, len(consts))

	var search func(i int) bool
	search = func(i int) bool {
		if i == len(consts) {
			return true
		}

		for _, s := range cands[i] {
			q := int(s.off >> 1)
			prev := qword[s.bank]

			if prev != -1 && prev != q {
				continue
			}

			qword[s.bank] = q
			pick[i] = s

			if search(i + 1) {
				return true
			}

			qword[s.bank] = prev
		}

		return false
	}

	if !search(0) {
		return false
	}

	for i, c := range consts {
		chosen[c] = pick[i]
	}

	return true
}

func (a *Assembler) placeMovsConsts(in *Instruction, consts []int, avail [2]bool, chosen map[int]slotBinding) error {
	var group [2][]int

	room := [2]int{}
	for b := 0; b < 2; b++ {
		if avail[b] {
			room[b] = 2
		}
	}

	var flexible []int

	for _, c := range consts {
		id := a.idents.At(c)
		ok0 := avail[0] && id.Banks.Has(0)
		ok1 := avail[1] && id.Banks.Has(1)

		switch {
		case ok0 && ok1:
			flexible = append(flexible, c)
		case ok0:
			group[0] = append(group[0], c)
			room[0]--
		case ok1:
			group[1] = append(group[1], c)
			room[1]--
		default:
			return a.fail(in, -1, []string{id.Name}, errorf(ErrResource,
				"no free source slot can read constant %q", id.Name))
		}
	}

	for _, c := range flexible {
		id := a.idents.At(c)
		b := -1

		for _, want := range []int{0, 1} {
			if room[want] > 0 && id.Bound(want) {
				b = want
				break
			}
		}

		if b == -1 {
			for _, want := range []int{0, 1} {
				if room[want] > 0 {
					b = want
					break
				}
			}
		}

		if b == -1 {
			return a.fail(in, -1, a.names(consts), errorf(ErrResource,
				"constants %v do not fit the free source slots", a.names(consts)))
		}

		group[b] = append(group[b], c)
		room[b]--
	}

	for b := 0; b < 2; b++ {
		if room[b] < 0 {
			return a.fail(in, -1, a.names(group[b]), errorf(ErrResource,
				"constants %v all need bank %d, a slot holds 2 dwords", a.names(group[b]), b))
		}

		switch len(group[b]) {
		case 1:
			s, err := a.singleConst(in, b, a.idents.At(group[b][0]))
			if err != nil {
				return err
			}

			chosen[group[b][0]] = s
		case 2:
			sx, sy, err := a.pairConsts(in, b, a.idents.At(group[b][0]), a.idents.At(group[b][1]))
			if err != nil {
				return err
			}

			chosen[group[b][0]] = sx
			chosen[group[b][1]] = sy
		}
	}

	return nil
}

func (a *Assembler) singleConst(in *Instruction, b int, id *Identifier) (slotBinding, error) {
	if id.Bound(b) {
		return slotBinding{b, id.Offsets[b][0]}, nil
	}

	off, ok := a.ds.Alloc(datastore.Preload, b)
	if !ok {
		return slotBinding{}, a.fail(in, -1, []string{id.Name}, errorf(ErrResource,
			"preloaded region of bank %d is full, cannot place %q", b, id.Name))
	}

	id.Offsets[b] = append(id.Offsets[b], off)

	return slotBinding{b, off}, nil
}

// pairConsts finds or makes bindings of x and y that share an aligned
// qword of bank b: an existing shared qword, the free sibling of one
// existing binding, or a fresh pair.
func (a *Assembler) pairConsts(in *Instruction, b int, x, y *Identifier) (slotBinding, slotBinding, error) {
	for _, ox := range x.Offsets[b] {
		for _, oy := range y.Offsets[b] {
			if ox>>1 == oy>>1 {
				return slotBinding{b, ox}, slotBinding{b, oy}, nil
			}
		}
	}

	for _, ox := range x.Offsets[b] {
		if a.ds.Claim(datastore.Preload, b, ox^1) == nil {
			y.Offsets[b] = append(y.Offsets[b], ox^1)
			return slotBinding{b, ox}, slotBinding{b, ox ^ 1}, nil
		}
	}

	for _, oy := range y.Offsets[b] {
		if a.ds.Claim(datastore.Preload, b, oy^1) == nil {
			x.Offsets[b] = append(x.Offsets[b], oy^1)
			return slotBinding{b, oy ^ 1}, slotBinding{b, oy}, nil
		}
	}

	off, ok := a.ds.AllocPair(datastore.Preload, b)
	if !ok {
		return slotBinding{}, slotBinding{}, a.fail(in, -1, []string{x.Name, y.Name}, errorf(ErrResource,
			"no free preloaded qword in bank %d for %q and %q", b, x.Name, y.Name))
	}

	x.Offsets[b] = append(x.Offsets[b], off)
	y.Offsets[b] = append(y.Offsets[b], off+1)

	Trace("constants paired", "a", x.Name, "b", y.Name, "bank", b, "offset", off)

	return slotBinding{b, off}, slotBinding{b, off + 1}, nil
}
