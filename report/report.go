// Package report renders human-readable views of an assembled program.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/disasm"
)

// Owners maps every bound data-store dword to the identifiers placed
// there.
func Owners(out *core.Output) [datastore.NumBanks]map[uint32][]string {
	var owners [datastore.NumBanks]map[uint32][]string
	for b := range owners {
		owners[b] = make(map[uint32][]string)
	}

	for i := 0; i < out.Idents.Len(); i++ {
		id := out.Idents.At(i)

		for b := 0; b < datastore.NumBanks; b++ {
			for _, off := range id.Offsets[b] {
				owners[b][off] = append(owners[b][off], id.Name)

				if id.Type == core.TypeQword {
					owners[b][off+1] = append(owners[b][off+1], id.Name+".hi")
				}
			}
		}
	}

	return owners
}

// UsageTable lists every used dword of both banks.
func UsageTable(out *core.Output) string {
	owners := Owners(out)
	t := out.Target

	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("Data store (%s)", t.Name))
	tw.AppendHeader(table.Row{"Offset", "Region", "Bank 0", "Bank 1"})

	for off := uint32(0); off < t.BankDwords(); off++ {
		o0, o1 := owners[0][off], owners[1][off]
		if len(o0) == 0 && len(o1) == 0 {
			continue
		}

		region := datastore.Preload
		if off >= t.TempBase() {
			region = datastore.Temp
		}

		tw.AppendRow(table.Row{off, region.String(), strings.Join(o0, ","), strings.Join(o1, ",")})
	}

	tw.AppendFooter(table.Row{"", "free",
		freeSummary(out.Usage, 0), freeSummary(out.Usage, 1)})

	return tw.Render()
}

func freeSummary(ds *datastore.Allocator, b int) string {
	return fmt.Sprintf("pre %d, tmp %d (%d pairs)",
		ds.FreeSingles(datastore.Preload, b),
		ds.FreeSingles(datastore.Temp, b),
		ds.FreePairs(datastore.Temp, b))
}

// Listing shows the data segment size and a disassembly of every word.
func Listing(out *core.Output) string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("Code (%d words, %d data bytes)", len(out.Words), out.DataSize()))
	tw.AppendHeader(table.Row{"PC", "Word", "Instruction"})

	for pc, w := range out.Words {
		tw.AppendRow(table.Row{pc, fmt.Sprintf("%08x", w), disasm.Format(disasm.Decode(w))})
	}

	return tw.Render()
}

// Write prints both tables.
func Write(w io.Writer, out *core.Output) error {
	_, err := fmt.Fprintf(w, "%s\n\n%s\n", UsageTable(out), Listing(out))
	return err
}
