package emu

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/pdsasm/isa"
)

// StateTable renders the data store, flags and emissions of the
// sequencer.
func (s *Sequencer) StateTable() string {
	st := &s.state

	dsTable := table.NewWriter()
	dsTable.SetTitle(fmt.Sprintf("Sequencer %s (pc %d, %d cycles)", s.Name(), st.PC, st.Cycles))
	dsTable.AppendHeader(table.Row{"Offset", "DS0", "DS1"})

	for off := uint32(0); off < s.target.BankDwords(); off++ {
		v0, v1 := st.DS[0][off], st.DS[1][off]
		if v0 == 0 && v1 == 0 {
			continue
		}

		dsTable.AppendRow(table.Row{off, fmt.Sprintf("0x%08x", v0), fmt.Sprintf("0x%08x", v1)})
	}

	var preds []string
	for p := isa.PredReg(0); p < isa.NumPredRegs; p++ {
		preds = append(preds, fmt.Sprintf("%s=%v", p, st.Pred[p]))
	}

	dsTable.AppendFooter(table.Row{"flags",
		strings.Join(preds, " "),
		fmt.Sprintf("aluz=%v alun=%v carry=%v", st.ALUZ, st.ALUN, st.Carry)})

	outTable := table.NewWriter()
	outTable.SetTitle("Emitted")
	outTable.AppendHeader(table.Row{"#", "Command", "Async", "Dwords"})

	for i, e := range s.Emitted {
		var words []string
		for _, d := range e.Dwords {
			words = append(words, fmt.Sprintf("0x%08x", d))
		}

		outTable.AppendRow(table.Row{i, e.Command, e.Async, strings.Join(words, " ")})
	}

	return dsTable.Render() + "\n\n" + outTable.Render()
}
