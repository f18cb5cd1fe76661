// Package importsolver builds the dependency graph of `.ark` modules
// reachable from an entry file and splices their ASTs in place of their
// Import nodes.
//
// Grounded on the teacher's library-path handling in cmd/retro/main.go
// (an ordered list of search directories tried in turn) generalized from
// "find one file" to "build a graph and splice it", and on
// its-hmny-nand2tetris's file-discovery-by-search-path pattern.
package importsolver

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/parser"
	"github.com/arkscript-lang/ark/token"
)

// SourceExt and NativeExt are the two module extensions the solver
// understands: a plain ArkScript source file and a precompiled/native
// module the solver treats as an opaque, already-resolved leaf.
const (
	SourceExt = ".ark"
	NativeExt = ".arkm"
)

// module is one entry in the solver's package-key map.
type module struct {
	key      string
	resolved bool
	native   bool
	ast      ast.Node
	imports  []ast.Import
}

// Solver resolves and splices imports starting from a single entry file.
type Solver struct {
	searchPaths []string
	modules     map[string]*module
	inlined     map[string]bool
}

// New creates a Solver that additionally searches the given library
// paths (beyond each importer's own directory) when locating a package.
func New(searchPaths ...string) *Solver {
	return &Solver{searchPaths: searchPaths, modules: make(map[string]*module)}
}

// packageKey is the de-duplication key for a package: its dotted path
// joined with '/', independent of which file imported it or how many
// times.
func packageKey(pkg []string) string {
	return filepath.Join(pkg...)
}

// Resolve parses entryPath, then recursively resolves every import it
// (transitively) reaches, and returns the entry AST with every Import
// node replaced in place by the imported module's spliced body. A
// package already spliced once is not spliced again: a cycle simply
// resolves to a no-op Begin block on the repeated edge.
func (s *Solver) Resolve(entryPath string) (ast.Node, error) {
	root, imports, err := s.parseFile(entryPath)
	if err != nil {
		return ast.Node{}, err
	}

	// LIFO worklist of (importerDir, import) pairs to resolve.
	type work struct {
		dir string
		imp ast.Import
	}
	dir := filepath.Dir(entryPath)
	stack := make([]work, 0, len(imports))
	for _, imp := range imports {
		stack = append(stack, work{dir: dir, imp: imp})
	}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := packageKey(w.imp.Package)
		if _, ok := s.modules[key]; ok {
			continue // already resolved or in-flight: de-dup
		}

		path, native, ferr := s.locate(w.dir, w.imp.Package)
		if ferr != nil {
			return ast.Node{}, ferr
		}

		if native {
			s.modules[key] = &module{key: key, resolved: true, native: true}
			continue
		}

		modAST, modImports, perr := s.parseFile(path)
		if perr != nil {
			return ast.Node{}, perr
		}
		s.modules[key] = &module{key: key, resolved: true, ast: modAST, imports: modImports}

		modDir := filepath.Dir(path)
		for _, sub := range modImports {
			stack = append(stack, work{dir: modDir, imp: sub})
		}
	}

	s.inlined = make(map[string]bool)
	return s.splice(root), nil
}

func (s *Solver) parseFile(path string) (ast.Node, []ast.Import, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return ast.Node{}, nil, errors.Wrapf(err, "import solver: reading %s", path)
	}
	toks, err := token.New(string(src), path).Tokenize()
	if err != nil {
		return ast.Node{}, nil, errors.Wrapf(err, "import solver: tokenizing %s", path)
	}
	root, imports, err := parser.Parse(toks, path)
	if err != nil {
		return ast.Node{}, nil, errors.Wrapf(err, "import solver: parsing %s", path)
	}
	return root, imports, nil
}

// locate searches importerDir first, then each configured library path,
// for pkg as either a SourceExt or a NativeExt file.
func (s *Solver) locate(importerDir string, pkg []string) (path string, native bool, err error) {
	rel := filepath.Join(pkg...)
	dirs := append([]string{importerDir}, s.searchPaths...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, rel+SourceExt)
		if fileExists(candidate) {
			return candidate, false, nil
		}
		candidate = filepath.Join(dir, rel+NativeExt)
		if fileExists(candidate) {
			return candidate, true, nil
		}
	}
	return "", false, &ModuleError{Package: pkg, Message: "module not found in importer directory or any library path"}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// splice walks node depth-first and replaces every `(import ...)` form
// with the resolved module's Begin body (or an empty Begin block for a
// native module or an already-spliced cycle edge).
func (s *Solver) splice(node ast.Node) ast.Node {
	children := node.Children()
	if children == nil {
		return node
	}
	out := make([]ast.Node, 0, len(children))
	for _, child := range children {
		if _, pkg, ok := importNode(child); ok {
			key := packageKey(pkg)
			mod, known := s.modules[key]
			// A package is inlined at most once: a native module, an
			// unresolved import, or a repeat reference (including the
			// closing edge of an import cycle) all splice to a no-op
			// Begin block instead of expanding again.
			if !known || mod.native || s.inlined[key] {
				out = append(out, emptyBegin(child))
				continue
			}
			s.inlined[key] = true
			spliced := s.splice(mod.ast)
			out = append(out, spliced.Children()[1:]...) // drop the inner Begin head
			continue
		}
		out = append(out, s.splice(child))
	}
	node.SetChildren(out)
	return node
}

// importNode reports whether n is a parsed `(import ...)` form and, if
// so, the package path it names.
func importNode(n ast.Node) (ast.Node, []string, bool) {
	if n.Kind != ast.List {
		return ast.Node{}, nil, false
	}
	children := n.Children()
	if len(children) < 2 || children[0].Kind != ast.Keyword || children[0].KeywordID() != token.Import {
		return ast.Node{}, nil, false
	}
	pkgNode := children[1]
	pkg := make([]string, len(pkgNode.Children()))
	for i, c := range pkgNode.Children() {
		pkg[i] = c.Text()
	}
	return n, pkg, true
}

func emptyBegin(at ast.Node) ast.Node {
	return ast.NewList(ast.List, at.Pos, ast.NewKeyword(token.Begin, at.Pos))
}
