// Command pdsasm assembles PDS microcode into a C header.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/pdsasm/config"
	"github.com/sarchlab/pdsasm/core"
	"github.com/sarchlab/pdsasm/emit"
	"github.com/sarchlab/pdsasm/emu"
	"github.com/sarchlab/pdsasm/parser"
	"github.com/sarchlab/pdsasm/report"
	"github.com/tebeka/atexit"
)

func main() {
	targetFile := flag.String("target", "", "target description (YAML); default hardware if empty")
	name := flag.String("name", "", "C symbol of the program; defaults to the input file name")
	outFile := flag.String("o", "", "output header")
	sizeFile := flag.String("size", "", "optional header with the size macros only")
	verbose := flag.Bool("v", false, "trace allocation and dump the data-store map")
	run := flag.Bool("run", false, "execute the image on the sequencer model and print its final state")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = core.LevelTrace
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pdsasm [-target t.yaml] [-name N] [-o out.h] [-size size.h] [-v] [-run] in.asm")
		atexit.Exit(2)
	}

	input := flag.Arg(0)
	if *name == "" {
		*name = symbolName(input)
	}

	if *outFile == "" {
		*outFile = strings.TrimSuffix(input, filepath.Ext(input)) + ".h"
	}

	target := config.MakeTargetBuilder().Build("pds")

	if *targetFile != "" {
		t, err := config.LoadTargetFromYAML(*targetFile)
		if err != nil {
			fail(err)
		}

		target = t
	}

	out := assemble(input, target)

	if *verbose {
		if err := report.Write(os.Stderr, out); err != nil {
			fail(err)
		}
	}

	if *run {
		simulate(out, target)
	}

	artifacts := []artifact{{
		path:  *outFile,
		write: func(w *bufio.Writer) error { return emit.Header(w, *name, out) },
	}}

	if *sizeFile != "" {
		artifacts = append(artifacts, artifact{
			path:  *sizeFile,
			write: func(w *bufio.Writer) error { return emit.SizeHeader(w, *name, out) },
		})
	}

	if err := writeArtifacts(artifacts); err != nil {
		fail(err)
	}

	atexit.Exit(0)
}

func assemble(input string, target *config.Target) *core.Output {
	f, err := os.Open(input)
	if err != nil {
		fail(err)
	}
	defer f.Close()

	prog, err := parser.Parse(input, f)
	if err != nil {
		fail(err)
	}

	out, err := core.MakeBuilder().WithTarget(target).Build(prog).Assemble()
	if err != nil {
		fail(err)
	}

	return out
}

func simulate(out *core.Output, target *config.Target) {
	seq := emu.MakeBuilder().WithTarget(target).Build("Sequencer")
	seq.Load(out)

	err := seq.Run()
	fmt.Fprintln(os.Stderr, seq.StateTable())

	if err != nil {
		fail(err)
	}
}

// artifact is one output file and the function producing its contents.
type artifact struct {
	path  string
	write func(*bufio.Writer) error
}

// writeArtifacts writes every artifact. Each file stays registered for
// removal until all of them are closed, so a failed run or an early exit
// leaves none of them behind.
func writeArtifacts(artifacts []artifact) (err error) {
	var (
		cleanups []atexit.HandlerID
		written  []string
	)

	defer func() {
		if err != nil {
			for _, path := range written {
				_ = os.Remove(path)
			}
		}

		for _, id := range cleanups {
			_ = id.Cancel()
		}
	}()

	for _, a := range artifacts {
		path := a.path

		cleanups = append(cleanups, atexit.Register(func() {
			_ = os.Remove(path)
		}))

		f, err := os.Create(path)
		if err != nil {
			return err
		}

		written = append(written, path)

		if err := writeTo(f, a.write); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	for _, path := range written {
		slog.Info("wrote", "file", path)
	}

	return nil
}

func writeTo(f *os.File, write func(*bufio.Writer) error) error {
	w := bufio.NewWriter(f)

	if err := write(w); err != nil {
		f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func symbolName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}

		return '_'
	}, base)
}

func fail(err error) {
	var f *core.Failure
	if errors.As(err, &f) {
		for _, d := range f.Diagnostics {
			fmt.Fprintln(os.Stderr, d.Error())
		}
	} else {
		fmt.Fprintln(os.Stderr, "pdsasm:", err)
	}

	atexit.Exit(1)
}
