package core

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug and reports per-identifier allocation
// decisions.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// Reporter receives diagnostics as the pipeline finds them.
type Reporter interface {
	Report(d Diagnostic)
}

// LogReporter logs every diagnostic and keeps them for the final
// Failure.
type LogReporter struct {
	Logger *slog.Logger
	diags  []Diagnostic
}

// Report implements Reporter.
func (r *LogReporter) Report(d Diagnostic) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Error("assembly error",
		"loc", d.Loc.String(),
		"opcode", d.Mnemonic,
		"operand", d.Operand,
		"idents", d.Idents,
		"err", d.Err.Error(),
	)

	r.diags = append(r.diags, d)
}

// Diagnostics returns everything reported so far.
func (r *LogReporter) Diagnostics() []Diagnostic {
	return r.diags
}
