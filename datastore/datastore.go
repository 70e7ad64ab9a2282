// Package datastore tracks which dwords of the two PDS data-store banks
// are in use during one compilation.
package datastore

import "fmt"

// NumBanks is the number of data-store banks.
const NumBanks = 2

// Region is one of the two per-bank partitions of the data store.
type Region int

// Regions.
const (
	Preload Region = iota
	Temp
)

func (r Region) String() string {
	if r == Preload {
		return "preload"
	}

	return "temp"
}

// Allocator owns the used-bitmaps of both banks and both regions. It is
// created per compilation run.
type Allocator struct {
	size [2]uint32
	base [2]uint32

	used       [2][NumBanks][]bool
	freeSingle [2][NumBanks]int
	freePairs  [2][NumBanks]int
}

// NewAllocator creates an allocator for the given region sizes.
func NewAllocator(preload, temp uint32) *Allocator {
	a := &Allocator{
		size: [2]uint32{preload, temp},
		base: [2]uint32{0, preload},
	}
	a.Reset()

	return a
}

// Reset marks every dword free.
func (a *Allocator) Reset() {
	for r := range a.used {
		for b := 0; b < NumBanks; b++ {
			a.used[r][b] = make([]bool, a.size[r])
			a.freeSingle[r][b] = int(a.size[r])
			a.freePairs[r][b] = int(a.size[r] / 2)
		}
	}
}

// Size returns the number of dwords of a region in each bank.
func (a *Allocator) Size(r Region) uint32 {
	return a.size[r]
}

// Base returns the bank offset of the first dword of a region.
func (a *Allocator) Base(r Region) uint32 {
	return a.base[r]
}

// RegionOf returns the region containing a bank offset.
func (a *Allocator) RegionOf(off uint32) (Region, uint32, bool) {
	switch {
	case off < a.size[Preload]:
		return Preload, off, true
	case off < a.size[Preload]+a.size[Temp]:
		return Temp, off - a.size[Preload], true
	}

	return 0, 0, false
}

// IsFree reports whether index idx of a region is unused. Indices outside
// the region are never free.
func (a *Allocator) IsFree(r Region, bank int, idx uint32) bool {
	if idx >= a.size[r] {
		return false
	}

	return !a.used[r][bank][idx]
}

// Claim marks index idx used. It fails if the dword is taken or out of
// range.
func (a *Allocator) Claim(r Region, bank int, idx uint32) error {
	if idx >= a.size[r] {
		return fmt.Errorf("%s offset %d outside bank %d (%d dwords)", r, idx, bank, a.size[r])
	}

	if a.used[r][bank][idx] {
		return fmt.Errorf("%s offset %d of bank %d already in use", r, idx, bank)
	}

	sibling := idx ^ 1
	if sibling < a.size[r] && !a.used[r][bank][sibling] {
		a.freePairs[r][bank]--
	}

	a.used[r][bank][idx] = true
	a.freeSingle[r][bank]--

	return nil
}

// Alloc claims the lowest free index of a region.
func (a *Allocator) Alloc(r Region, bank int) (uint32, bool) {
	for i, u := range a.used[r][bank] {
		if !u {
			_ = a.Claim(r, bank, uint32(i))
			return uint32(i), true
		}
	}

	return 0, false
}

// AllocPair claims the lowest even index whose successor is also free.
func (a *Allocator) AllocPair(r Region, bank int) (uint32, bool) {
	used := a.used[r][bank]
	for i := 0; i+1 < len(used); i += 2 {
		if !used[i] && !used[i+1] {
			_ = a.Claim(r, bank, uint32(i))
			_ = a.Claim(r, bank, uint32(i+1))

			return uint32(i), true
		}
	}

	return 0, false
}

// AllocRun claims count consecutive indices starting at idx.
func (a *Allocator) AllocRun(r Region, bank int, idx, count uint32) bool {
	for i := idx; i < idx+count; i++ {
		if !a.IsFree(r, bank, i) {
			return false
		}
	}

	for i := idx; i < idx+count; i++ {
		_ = a.Claim(r, bank, i)
	}

	return true
}

// FreeSingles returns the number of unused dwords of a region.
func (a *Allocator) FreeSingles(r Region, bank int) int {
	return a.freeSingle[r][bank]
}

// FreePairs returns the number of fully unused aligned pairs of a region.
func (a *Allocator) FreePairs(r Region, bank int) int {
	return a.freePairs[r][bank]
}

// HighWater returns one past the highest used index of a region across
// both banks.
func (a *Allocator) HighWater(r Region) uint32 {
	var hw uint32

	for b := 0; b < NumBanks; b++ {
		for i := len(a.used[r][b]) - 1; i >= 0; i-- {
			if a.used[r][b][i] {
				if uint32(i+1) > hw {
					hw = uint32(i + 1)
				}

				break
			}
		}
	}

	return hw
}
