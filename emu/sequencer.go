// Package emu is a functional model of the PDS sequencer. It executes an
// assembled image one word per cycle on an akita engine so that tests
// can check what a program computes.
package emu

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/pdsasm/config"
	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/disasm"
	"github.com/sarchlab/pdsasm/isa"
)

// Emission is the payload of one MOVS or MOVSA.
type Emission struct {
	Command isa.SpecialReg
	Async   bool
	Dwords  []uint32
}

type seqState struct {
	PC     uint32
	DS     [2][config.MaxBankDwords]uint32
	Pred   [isa.NumPredRegs]bool
	IF     [2]bool
	ALUZ   bool
	ALUN   bool
	Carry  bool
	Signed bool
	IR     [2]uint32
	Stack  []uint32
	Halted bool
	Cycles uint64
}

// Sequencer executes one program image.
type Sequencer struct {
	*sim.TickingComponent

	target    *config.Target
	storage   *mem.Storage
	maxCycles uint64

	code  []uint32
	state seqState
	emu   instEmulator

	Emitted []Emission
	Err     error
}

// Load places an image: the data segment is split back into the two
// banks and the rest becomes the code.
func (s *Sequencer) Load(out *core.Output) {
	s.state = seqState{}
	s.Emitted = nil
	s.Err = nil
	s.code = append([]uint32(nil), out.Words...)

	r := s.target.InterleaveDwords

	for b := 0; b < 2; b++ {
		for off := uint32(0); off < s.target.PreloadDwords; off++ {
			idx := core.Interleave(b, off, r)
			if int(idx) < len(out.Data) {
				s.state.DS[b][off] = out.Data[idx]
			}
		}
	}
}

// Start schedules the first cycle.
func (s *Sequencer) Start() {
	s.TickNow()
}

// SetIF sets one of the external input flags.
func (s *Sequencer) SetIF(i int, v bool) {
	s.state.IF[i] = v
}

// SetIR sets an input register.
func (s *Sequencer) SetIR(i int, v uint32) {
	s.state.IR[i] = v
}

// DS reads a data-store dword.
func (s *Sequencer) DS(bank int, off uint32) uint32 {
	return s.state.DS[bank][off]
}

// Pred reads a predicate register.
func (s *Sequencer) Pred(p isa.PredReg) bool {
	return s.state.Pred[p]
}

// Storage returns the memory behind LOAD and STORE.
func (s *Sequencer) Storage() *mem.Storage {
	return s.storage
}

// Halted reports whether the program executed halt.
func (s *Sequencer) Halted() bool {
	return s.state.Halted
}

// Cycles returns the number of executed words.
func (s *Sequencer) Cycles() uint64 {
	return s.state.Cycles
}

// Tick runs the program for one cycle.
func (s *Sequencer) Tick() (madeProgress bool) {
	st := &s.state

	if st.Halted || s.Err != nil {
		return false
	}

	if st.Cycles >= s.maxCycles {
		s.Err = fmt.Errorf("no halt after %d cycles", st.Cycles)
		return false
	}

	if int(st.PC) >= len(s.code) {
		s.Err = fmt.Errorf("pc %d ran past the end of the code", st.PC)
		return false
	}

	d := disasm.Decode(s.code[st.PC])
	if !d.Valid {
		s.Err = fmt.Errorf("invalid word 0x%08x at pc %d", d.Word, st.PC)
		return false
	}

	core.Trace("sequencer",
		"Behavior", "Execute",
		"Time", float64(s.Engine.CurrentTime()*1e9),
		"PC", st.PC,
		"Inst", disasm.Format(d),
	)

	st.Cycles++

	if err := s.emu.run(s, d); err != nil {
		s.Err = fmt.Errorf("pc %d: %w", st.PC, err)
		return false
	}

	return true
}

// Run executes until halt, an error or the cycle limit.
func (s *Sequencer) Run() error {
	s.Start()

	if err := s.Engine.Run(); err != nil {
		return err
	}

	if s.Err != nil {
		return s.Err
	}

	if !s.state.Halted {
		return fmt.Errorf("sequencer stopped without halt at pc %d", s.state.PC)
	}

	return nil
}
