package core

import (
	"log/slog"

	"github.com/rs/xid"
	"github.com/sarchlab/pdsasm/config"
	"github.com/sarchlab/pdsasm/datastore"
	"github.com/sarchlab/pdsasm/isa"
)

// Builder can create new assemblers.
type Builder struct {
	target   *config.Target
	reporter Reporter
	logger   *slog.Logger
}

// MakeBuilder creates a builder for the default target.
func MakeBuilder() Builder {
	return Builder{
		target: config.MakeTargetBuilder().Build("pds"),
	}
}

// WithTarget sets the hardware the program is assembled for.
func (b Builder) WithTarget(target *config.Target) Builder {
	b.target = target
	return b
}

// WithReporter sets where diagnostics go. The default logs them.
func (b Builder) WithReporter(r Reporter) Builder {
	b.reporter = r
	return b
}

// WithLogger sets the logger of the run.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates an assembler for one program. The program is consumed:
// assembling rewrites its instruction list.
func (b Builder) Build(prog *Program) *Assembler {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	reporter := b.reporter
	if reporter == nil {
		reporter = &LogReporter{Logger: logger}
	}

	runID := xid.New().String()

	return &Assembler{
		target:   b.target,
		table:    isa.NewTable(b.target),
		prog:     prog,
		idents:   prog.Idents,
		ds:       datastore.NewAllocator(b.target.PreloadDwords, b.target.TempDwords),
		reporter: reporter,
		runID:    runID,
		logger:   logger.With("run", runID, "target", b.target.Name),
	}
}
