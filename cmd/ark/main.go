// Command ark is a thin driver over the compiler/vm pipeline: run a
// source file (compiling it first if needed), compile to a standalone
// .arkc, evaluate an inline expression, or inspect a compiled bytecode
// file. The REPL, source formatter and JSON AST dumper spec.md's CLI
// table also lists stay out of scope (see DESIGN.md).
//
// Grounded on _examples/db47h-ngaro/cmd/retro/main.go's flag.Var-based
// repeatable flags (here for -d and -L) and its load/run/report-error
// shape.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arkscript-lang/ark/bytecode"
	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/importsolver"
	"github.com/arkscript-lang/ark/macro"
	"github.com/arkscript-lang/ark/parser"
	"github.com/arkscript-lang/ark/resolver"
	"github.com/arkscript-lang/ark/token"
	"github.com/arkscript-lang/ark/vm"
	"github.com/pkg/errors"
)

const version = "0.1.0"

// pathList is a repeatable, ';'-separated flag.Value, mirroring the
// teacher's fileList for -with.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ";") }
func (p *pathList) Set(s string) error {
	*p = append(*p, strings.Split(s, ";")...)
	return nil
}

// debugLevel is a repeatable boolean flag.Value: each -d bumps the count,
// the same shape as the teacher's flag.Var-based cellSizeBits but for a
// counter instead of a validated enum.
type debugLevel int

func (d *debugLevel) String() string { return strconv.Itoa(int(*d)) }
func (d *debugLevel) IsBoolFlag() bool { return true }
func (d *debugLevel) Set(string) error { *d++; return nil }

func main() {
	var (
		compileOnly bool
		evalExpr    string
		bcrFile     string
		libPaths    pathList
		debug       debugLevel
		showVersion bool
		devInfo     bool
	)

	flag.BoolVar(&compileOnly, "c", false, "compile file.ark to .arkc alongside source")
	flag.StringVar(&evalExpr, "e", "", "evaluate `expr` and print its result")
	flag.StringVar(&bcrFile, "bcr", "", "inspect a compiled bytecode `file`")
	flag.Var(&libPaths, "L", "library search path[;path...] (repeatable)")
	flag.Var(&debug, "d", "increase debug level (repeatable)")
	flag.BoolVar(&showVersion, "v", false, "print version and exit")
	flag.BoolVar(&devInfo, "dev-info", false, "print build info and exit")
	section := flag.String("s", "", "-bcr: inspect a single section (a, st, vt, cs)")
	page := flag.Int("p", -1, "-bcr: inspect a single page")
	flag.Parse()

	if showVersion {
		fmt.Println("ark " + version)
		return
	}
	if devInfo {
		fmt.Printf("ark %s, %d stdlib builtins, go runtime %d-bit pages\n",
			version, len(compiler.StdlibNames), 16)
		return
	}

	if envPaths := os.Getenv("ARKSCRIPT_PATH"); envPaths != "" {
		libPaths = append(libPaths, strings.Split(envPaths, ";")...)
	}
	if int(debug) > 0 {
		fmt.Fprintf(os.Stderr, "ark: debug level %d, library paths %v\n", debug, []string(libPaths))
	}

	var err error
	switch {
	case bcrFile != "":
		err = runDisasm(bcrFile, *section, *page)
	case evalExpr != "":
		err = runEval(evalExpr, libPaths)
	case compileOnly:
		err = runCompile(flag.Arg(0), libPaths)
	default:
		err = runFile(flag.Arg(0), libPaths)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ark: %v\n", err)
		os.Exit(1)
	}
}

// compileSource runs the front end (parse+splice, macro-expand, resolve)
// and the compiler over the program reachable from entryPath, producing a
// Program ready for bytecode.Encode.
func compileSource(entryPath string, libPaths []string) (*compiler.Program, error) {
	root, err := importsolver.New(libPaths...).Resolve(entryPath)
	if err != nil {
		return nil, errors.Wrap(err, "resolving imports")
	}
	root, err = macro.Expand(root)
	if err != nil {
		return nil, errors.Wrap(err, "expanding macros")
	}
	if err := resolver.Resolve(root); err != nil {
		return nil, errors.Wrap(err, "resolving names")
	}
	prog, err := compiler.Compile(root)
	if err != nil {
		return nil, errors.Wrap(err, "compiling")
	}
	return prog, nil
}

// compileExpr runs the same front end as compileSource but over a single
// inline expression string rather than a file, skipping import splicing
// since there is no importing file to resolve relative paths against.
func compileExpr(expr string) (*compiler.Program, error) {
	toks, err := token.New(expr, "<expr>").Tokenize()
	if err != nil {
		return nil, errors.Wrap(err, "tokenizing")
	}
	root, _, err := parser.Parse(toks, "<expr>")
	if err != nil {
		return nil, errors.Wrap(err, "parsing")
	}
	root, err = macro.Expand(root)
	if err != nil {
		return nil, errors.Wrap(err, "expanding macros")
	}
	if err := resolver.Resolve(root); err != nil {
		return nil, errors.Wrap(err, "resolving names")
	}
	prog, err := compiler.Compile(root)
	if err != nil {
		return nil, errors.Wrap(err, "compiling")
	}
	return prog, nil
}

func arkcPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".arkc"
}

func runCompile(sourcePath string, libPaths []string) error {
	if sourcePath == "" {
		return errors.New("-c requires a file.ark argument")
	}
	prog, err := compileSource(sourcePath, libPaths)
	if err != nil {
		return err
	}
	data, err := bytecode.Encode(prog, uint64(time.Now().Unix()))
	if err != nil {
		return errors.Wrap(err, "encoding bytecode")
	}
	return os.WriteFile(arkcPath(sourcePath), data, 0o644)
}

// runFile runs sourcePath, recompiling to its .arkc sibling first if that
// sibling is missing or older than the source.
func runFile(sourcePath string, libPaths []string) error {
	if sourcePath == "" {
		return errors.New("missing file.ark argument")
	}
	out := arkcPath(sourcePath)
	if !upToDate(out, sourcePath) {
		prog, err := compileSource(sourcePath, libPaths)
		if err != nil {
			return err
		}
		data, err := bytecode.Encode(prog, uint64(time.Now().Unix()))
		if err != nil {
			return errors.Wrap(err, "encoding bytecode")
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return errors.Wrap(err, "writing bytecode cache")
		}
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return errors.Wrap(err, "reading bytecode cache")
	}
	bc, err := bytecode.Decode(data)
	if err != nil {
		return errors.Wrap(err, "decoding bytecode")
	}
	_, exitCode, err := vm.RunProgram(bc, filepath.Dir(sourcePath), vm.LibraryPaths(libPaths), vm.Args(flag.Args()))
	if err != nil {
		return err
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func upToDate(out, source string) bool {
	outInfo, err := os.Stat(out)
	if err != nil {
		return false
	}
	srcInfo, err := os.Stat(source)
	if err != nil {
		return false
	}
	return !outInfo.ModTime().Before(srcInfo.ModTime())
}

func runEval(expr string, libPaths []string) error {
	prog, err := compileExpr(expr)
	if err != nil {
		return err
	}
	data, err := bytecode.Encode(prog, uint64(time.Now().Unix()))
	if err != nil {
		return errors.Wrap(err, "encoding bytecode")
	}
	bc, err := bytecode.Decode(data)
	if err != nil {
		return errors.Wrap(err, "decoding bytecode")
	}
	result, _, err := vm.RunProgram(bc, ".", vm.LibraryPaths(libPaths))
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}
