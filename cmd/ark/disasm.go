package main

import (
	"fmt"
	"io"
	"os"

	"github.com/arkscript-lang/ark/bytecode"
	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/value"
	"github.com/pkg/errors"
)

// stickyWriter latches the first write error and silently discards every
// write after it, so a disassembly dump can fire off one Fprintf per
// symbol/value/instruction without an error check after each line; the
// caller inspects Err once at the end.
type stickyWriter struct {
	w   io.Writer
	Err error
}

func (w *stickyWriter) Write(p []byte) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err := w.w.Write(p)
	if err != nil {
		w.Err = errors.Wrap(err, "write failed")
	}
	return n, w.Err
}

// runDisasm implements -bcr: decode a compiled .arkc file and dump the
// sections the caller asked for (symbol table / value table / code
// segment, or all three by default), optionally narrowed to a single
// page. Grounded on the teacher's dumpVM (cmd/retro/dump.go), generalized
// from a flat Forth memory/stack dump to this format's sectioned
// container, and reusing its ErrWriter idiom (stickyWriter above) so a
// long run of small writes doesn't need an error check after every one.
func runDisasm(path, section string, pageArg int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading bytecode file")
	}
	bc, err := bytecode.Decode(data)
	if err != nil {
		return errors.Wrap(err, "decoding bytecode")
	}

	w := &stickyWriter{w: os.Stdout}
	all := section == "" || section == "a"

	if all || section == "st" {
		dumpSymbolTable(w, bc.Symbols)
	}
	if all || section == "vt" {
		dumpValueTable(w, bc.Values)
	}
	if all || section == "cs" {
		dumpCodeSegment(w, bc.Pages, pageArg)
	}
	return w.Err
}

func dumpSymbolTable(w *stickyWriter, symbols []string) {
	fmt.Fprintf(w, "symbols (%d):\n", len(symbols))
	for i, s := range symbols {
		fmt.Fprintf(w, "  %4d  %s\n", i, s)
	}
}

func dumpValueTable(w *stickyWriter, values []value.Value) {
	fmt.Fprintf(w, "values (%d):\n", len(values))
	for i, v := range values {
		fmt.Fprintf(w, "  %4d  %-8s %s\n", i, v.Kind.String(), v.String())
	}
}

func dumpCodeSegment(w *stickyWriter, pages []*compiler.Page, pageArg int) {
	for i, p := range pages {
		if pageArg >= 0 && i != pageArg {
			continue
		}
		fmt.Fprintf(w, "page %d (%d words):\n", i, len(p.Words))
		for ip, word := range p.Words {
			fmt.Fprintf(w, "  %6d  %-18s %d\n", ip, word.Op.String(), word.Arg)
		}
	}
}
