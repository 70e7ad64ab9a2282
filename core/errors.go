package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every diagnostic wraps exactly one of them.
var (
	ErrDeclaration = errors.New("declaration error")
	ErrShape       = errors.New("operand error")
	ErrResource    = errors.New("resource exhausted")
	ErrUnsupported = errors.New("unsupported on target")
)

// Location is a position in the assembly source.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" && l.Line == 0 {
		return "<unknown>"
	}

	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Diagnostic describes one compilation failure.
type Diagnostic struct {
	Loc      Location
	Mnemonic string
	Operand  int // -1 if not applicable
	Idents   []string
	Err      error
}

func (d Diagnostic) Error() string {
	var b strings.Builder

	b.WriteString(d.Loc.String())
	b.WriteString(": ")

	if d.Mnemonic != "" {
		b.WriteString(d.Mnemonic)
		if d.Operand >= 0 {
			fmt.Fprintf(&b, " operand %d", d.Operand)
		}
		b.WriteString(": ")
	}

	b.WriteString(d.Err.Error())

	return b.String()
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Failure is returned by Assemble when at least one diagnostic was
// reported.
type Failure struct {
	Diagnostics []Diagnostic
}

func (f *Failure) Error() string {
	if len(f.Diagnostics) == 1 {
		return f.Diagnostics[0].Error()
	}

	return fmt.Sprintf("%s (and %d more errors)",
		f.Diagnostics[0].Error(), len(f.Diagnostics)-1)
}

// Is lets errors.Is match the class of any contained diagnostic.
func (f *Failure) Is(target error) bool {
	for _, d := range f.Diagnostics {
		if errors.Is(d.Err, target) {
			return true
		}
	}

	return false
}

func errorf(class error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{class}, args...)...)
}
