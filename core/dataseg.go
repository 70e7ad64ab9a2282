package core

import "github.com/sarchlab/pdsasm/datastore"

// Interleave returns the dword index in the data segment of offset off
// in bank b. The banks alternate every r dwords.
func Interleave(b int, off, r uint32) uint32 {
	return (off/r*2+uint32(b))*r + off%r
}

// DataSegmentDwords returns the size of the data segment for a preload
// high-water mark.
func DataSegmentDwords(highWater, r uint32) uint32 {
	rows := (highWater + r - 1) / r
	return rows * r * 2
}

// layoutDataSegment writes the value of every bound constant at its
// interleaved position.
func (a *Assembler) layoutDataSegment() []uint32 {
	r := a.target.InterleaveDwords

	seg := make([]uint32, DataSegmentDwords(a.ds.HighWater(datastore.Preload), r))

	for i := 0; i < a.idents.Len(); i++ {
		id := a.idents.At(i)
		if !id.IsConstant() {
			continue
		}

		for b := 0; b < datastore.NumBanks; b++ {
			for _, off := range id.Offsets[b] {
				seg[Interleave(b, off, r)] = id.DataValue()
			}
		}
	}

	return seg
}

// constants lists where each data constant lives in the image.
func (a *Assembler) constants() []ConstantInfo {
	var out []ConstantInfo

	r := a.target.InterleaveDwords

	for i := 0; i < a.idents.Len(); i++ {
		id := a.idents.At(i)
		if id.Class != ClassData {
			continue
		}

		c := ConstantInfo{Name: id.Name, Value: id.Value, Params: id.Params}

		for b := 0; b < datastore.NumBanks; b++ {
			for _, off := range id.Offsets[b] {
				c.Dwords = append(c.Dwords, Interleave(b, off, r))
			}
		}

		out = append(out, c)
	}

	return out
}
