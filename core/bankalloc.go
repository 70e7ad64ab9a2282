package core

import (
	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/isa"
)

// use is one instruction referring to an identifier through data-store
// operands at the listed positions.
type use struct {
	inst int
	args []int
}

func (a *Assembler) collectUses() [][]use {
	uses := make([][]use, a.idents.Len())

	for _, i := range a.prog.Insts.Indices() {
		in := a.prog.Insts.At(i)
		if in.Op == isa.OpLabel {
			continue
		}

		for ai := range in.Args {
			arg := &in.Args[ai]
			if arg.Kind != ArgDataStore {
				continue
			}

			u := uses[arg.Ident]
			if n := len(u); n > 0 && u[n-1].inst == i {
				u[n-1].args = append(u[n-1].args, ai)
			} else {
				u = append(u, use{inst: i, args: []int{ai}})
			}

			uses[arg.Ident] = u
		}
	}

	return uses
}

// allocateBanks decides the bank set of every referenced identifier:
// pre-assigned temporaries first, then the remaining temporaries, then
// constants.
func (a *Assembler) allocateBanks() error {
	a.uses = a.collectUses()

	for i := 0; i < a.idents.Len(); i++ {
		id := a.idents.At(i)
		if !id.PreAssigned() {
			continue
		}

		if err := a.placePreAssigned(i); err != nil {
			return err
		}
	}

	for _, temps := range []bool{true, false} {
		for i := 0; i < a.idents.Len(); i++ {
			id := a.idents.At(i)
			if id.PreAssigned() || len(a.uses[i]) == 0 || id.IsTemp() != temps {
				continue
			}

			if err := a.chooseBanks(i); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Assembler) placePreAssigned(i int) error {
	id := a.idents.At(i)
	b := id.PreBank

	if b == 1 && a.target.Errata.NoBank1Data {
		return a.failIdent(id, errorf(ErrDeclaration,
			"%q pre-assigned to bank 1, which this hardware revision cannot use for data (no_bank1_data erratum); move it to bank 0", id.Name))
	}

	can := a.scanBanks(i)
	if !can[b] {
		return a.failIdent(id, errorf(ErrDeclaration,
			"%q pre-assigned to bank %d, but not every use can read it there", id.Name, b))
	}

	id.Banks = bankSetOf(b)

	if id.PreOffset >= 0 {
		for d := 0; d < id.Dwords(); d++ {
			err := a.ds.Claim(datastore.Temp, b, uint32(id.PreOffset+d))
			if err != nil {
				return a.failIdent(id, errorf(ErrDeclaration,
					"%q pre-assigned to an occupied temporary dword: %v", id.Name, err))
			}
		}

		id.Offsets[b] = []uint32{a.target.TempBase() + uint32(id.PreOffset)}
	}

	Trace("pre-assigned bank", "ident", id.Name, "bank", b, "offset", id.PreOffset)

	return nil
}

func (a *Assembler) chooseBanks(i int) error {
	id := a.idents.At(i)
	can := a.scanBanks(i)

	if a.target.Errata.NoBank1Data {
		can[1] = false
	}

	switch {
	case can[0]:
		id.Banks = Bank0
	case can[1]:
		id.Banks = Bank1
	case id.IsTemp():
		return a.failIdent(id, errorf(ErrResource,
			"no single bank satisfies every use of temporary %q", id.Name))
	case a.target.Errata.NoBank1Data:
		return a.failIdent(id, errorf(ErrResource,
			"%q needs both banks, but this hardware revision cannot use bank 1 for data", id.Name))
	default:
		id.Banks = BankBoth
	}

	Trace("bank chosen", "ident", id.Name, "banks", id.Banks.String())

	return nil
}

// scanBanks returns which banks could serve every use of identifier i.
func (a *Assembler) scanBanks(i int) [2]bool {
	can := [2]bool{true, true}

	for _, u := range a.uses[i] {
		in := a.prog.Insts.At(u.inst)

		var m [2]bool
		if in.Op.IsMovs() {
			m = a.movsBanks(in, i)
		} else {
			m = [2]bool{true, true}
			desc := a.table.Lookup(in.Op)

			for _, ai := range u.args {
				mask := desc.KindAt(ai).BankMask()
				m[0] = m[0] && mask[0]
				m[1] = m[1] && mask[1]
			}
		}

		can[0] = can[0] && m[0]
		can[1] = can[1] && m[1]
	}

	return can
}

// movsBanks checks which bank could hold identifier self given the
// operands of the MOVS that are already committed to one bank. A bank's
// slot carries one qword, temporaries and constants cannot share it, and
// a special register takes a slot of its own.
func (a *Assembler) movsBanks(in *Instruction, self int) [2]bool {
	var (
		dwords     [2]int
		temp       [2]bool
		constant   [2]bool
		hasSpecial bool
	)

	seen := map[int]bool{self: true}

	for ai := 1; ai < len(in.Args); ai++ {
		arg := &in.Args[ai]

		switch arg.Kind {
		case ArgSpecialReg:
			hasSpecial = true
		case ArgDataStore:
			if seen[arg.Ident] {
				continue
			}

			seen[arg.Ident] = true

			other := a.idents.At(arg.Ident)

			b, ok := other.Banks.Only()
			if !ok {
				continue
			}

			dwords[b] += other.Dwords()
			if other.IsTemp() {
				temp[b] = true
			} else {
				constant[b] = true
			}
		}
	}

	me := a.idents.At(self)
	can := [2]bool{true, true}

	for b := 0; b < 2; b++ {
		if dwords[b]+me.Dwords() > 2 {
			can[b] = false
		}

		if me.IsTemp() && constant[b] || !me.IsTemp() && temp[b] {
			can[b] = false
		}
	}

	if hasSpecial {
		if a.target.ExtendedSources {
			can[0] = can[0] && dwords[1] == 0
			can[1] = can[1] && dwords[0] == 0
		} else {
			can[0] = false
		}
	}

	return can
}
