package emu

import (
	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/pdsasm/config"
)

// Builder can create new sequencers.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	target    *config.Target
	storage   *mem.Storage
	maxCycles uint64
}

// MakeBuilder creates a builder with a 1 GHz clock and 64 KiB of
// external memory.
func MakeBuilder() Builder {
	return Builder{
		freq:      1 * sim.GHz,
		maxCycles: 1 << 20,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the sequencer.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithTarget sets the hardware the images were assembled for.
func (b Builder) WithTarget(t *config.Target) Builder {
	b.target = t
	return b
}

// WithStorage sets the memory behind LOAD and STORE.
func (b Builder) WithStorage(s *mem.Storage) Builder {
	b.storage = s
	return b
}

// WithMaxCycles bounds a run so that a looping program still ends.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a sequencer.
func (b Builder) Build(name string) *Sequencer {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}

	if b.target == nil {
		b.target = config.MakeTargetBuilder().Build("pds")
	}

	if b.storage == nil {
		b.storage = mem.NewStorage(64 * mem.KB)
	}

	s := &Sequencer{
		target:    b.target,
		storage:   b.storage,
		maxCycles: b.maxCycles,
	}
	s.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, s)

	return s
}
