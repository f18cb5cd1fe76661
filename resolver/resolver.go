// Package resolver walks a macro-expanded AST to bind every symbol use to
// a scope, enforcing `let`/`mut`/`set`/`del` and function-capture rules,
// and reports every symbol that is used but never bound.
//
// Grounded on original_source/src/arkreactor/Compiler/NameResolutionPass.cpp
// for the scope-stack shape, the keyword-by-keyword visiting rules, and
// the in-place-mutator aliasing check.
package resolver

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
)

// scope is one lexical level's bindings, mutable-ness included.
type scope struct {
	vars map[string]bool // name -> mutable
}

func newScope() *scope { return &scope{vars: make(map[string]bool)} }

func (s *scope) add(name string, mutable bool) { s.vars[name] = mutable }

func (s *scope) get(name string) (mutable bool, ok bool) {
	mutable, ok = s.vars[name]
	return
}

func (s *scope) has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Resolver carries the scope stack and bookkeeping across one Resolve call.
type Resolver struct {
	scopes   []*scope
	reserved map[string]bool

	// definedSymbols records every name ever bound anywhere in the walk,
	// not just the names reachable from the current scope chain: this
	// is what a function capture's "is this name known at all" check
	// uses, deliberately wider than isRegistered.
	definedSymbols map[string]bool
	pluginNames    []string

	symbolNodes    []ast.Node // unique candidate unbound uses, first-seen order
	seenSymbolName map[string]bool
}

// New creates a Resolver with one top-level scope pushed.
func New() *Resolver {
	r := &Resolver{
		reserved:       newReservedSet(),
		definedSymbols: make(map[string]bool),
		seenSymbolName: make(map[string]bool),
	}
	r.pushScope()
	return r
}

// Resolve walks root and returns a combined error naming every unbound
// symbol use, or the first structural NameError/MutabilityError
// encountered, whichever comes first.
func Resolve(root ast.Node) error {
	return New().Resolve(root)
}

func (r *Resolver) Resolve(root ast.Node) error {
	if err := r.visit(root); err != nil {
		return err
	}
	return r.checkUndefined()
}

func (r *Resolver) pushScope()   { r.scopes = append(r.scopes, newScope()) }
func (r *Resolver) popScope()    { r.scopes = r.scopes[:len(r.scopes)-1] }
func (r *Resolver) current() *scope { return r.scopes[len(r.scopes)-1] }

func (r *Resolver) isInScope(name string) bool { return r.current().has(name) }

func (r *Resolver) isRegistered(name string) bool {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if r.scopes[i].has(name) {
			return true
		}
	}
	return false
}

// isImmutable reports whether name resolves to an immutable binding
// somewhere in the scope chain; ok is false if name is unbound.
func (r *Resolver) isImmutable(name string) (immutable bool, ok bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if mutable, found := r.scopes[i].get(name); found {
			return !mutable, true
		}
	}
	return false, false
}

func (r *Resolver) addDefinedSymbol(name string, mutable bool) {
	r.definedSymbols[name] = true
	r.current().add(name, mutable)
}

// addSymbolNode records a candidate use for the undefined-symbol pass,
// skipping reserved names and keeping only the first occurrence of each
// distinct name (matching the diagnostic each unbound name gets once).
func (r *Resolver) addSymbolNode(sym ast.Node) {
	name := sym.Text()
	if r.reserved[name] {
		return
	}
	if r.seenSymbolName[name] {
		return
	}
	r.seenSymbolName[name] = true
	r.symbolNodes = append(r.symbolNodes, sym)
}

func (r *Resolver) visit(node ast.Node) error {
	switch node.Kind {
	case ast.Symbol:
		r.addSymbolNode(node)
		return nil

	case ast.Field:
		for _, child := range node.Children() {
			r.addSymbolNode(child)
		}
		return nil

	case ast.List:
		children := node.Children()
		if len(children) == 0 {
			return nil
		}
		if children[0].Kind == ast.Keyword {
			return r.visitKeyword(node, children[0].KeywordID())
		}
		if err := r.checkMutatorCall(children); err != nil {
			return err
		}
		for _, child := range children {
			if err := r.visit(child); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

// checkMutatorCall implements the "(append! a a)" self-aliasing check and
// the "can not mutate a constant list" check for a plain function call
// `(name arg0 arg1 ...)`.
func (r *Resolver) checkMutatorCall(children []ast.Node) error {
	if len(children) < 2 || children[0].Kind != ast.Symbol || children[1].Kind != ast.Symbol {
		return nil
	}
	funcname := children[0].Text()
	arg := children[1].Text()

	if inPlaceMutators[funcname] {
		if immutable, ok := r.isImmutable(arg); ok && immutable {
			return &MutabilityError{Pos: children[1].Pos, Message: fmt.Sprintf("can not modify the constant list `%s' using `%s'", arg, funcname)}
		}
	}
	if selfAliasingMutators[funcname] {
		for _, other := range children[2:] {
			if other.Kind == ast.Symbol && other.Text() == arg {
				return &MutabilityError{Pos: children[1].Pos, Message: fmt.Sprintf("can not %s the list `%s' to itself", funcname, arg)}
			}
		}
	}
	return nil
}

func (r *Resolver) visitKeyword(node ast.Node, kw token.KeywordID) error {
	children := node.Children()
	switch kw {
	case token.Let, token.Mut, token.Set:
		return r.visitLetMutSet(node, children, kw)

	case token.Import:
		// children[1] is the package-path List; its last segment is the
		// prefix a qualified or selective use is exempted under (the
		// plugin's exports aren't known until it is loaded at runtime).
		if len(children) > 1 {
			pathSegs := children[1].Children()
			if len(pathSegs) > 0 {
				r.pluginNames = append(r.pluginNames, pathSegs[len(pathSegs)-1].Text())
			}
		}
		return nil

	case token.Fun:
		return r.visitFun(children)

	default:
		for _, child := range children {
			if err := r.visit(child); err != nil {
				return err
			}
		}
		return nil
	}
}

// visitLetMutSet mirrors the original's order of operations: the value is
// visited (so unbound uses inside it are still caught) before the target
// name is registered, which is what makes `(let foo (fun (&foo) ()))`
// rejected as "foo" referencing itself rather than silently shadowed.
func (r *Resolver) visitLetMutSet(node ast.Node, children []ast.Node, kw token.KeywordID) error {
	if len(children) > 2 {
		if err := r.visit(children[2]); err != nil {
			return err
		}
	}
	if len(children) <= 1 || children[1].Kind != ast.Symbol {
		return nil
	}
	name := children[1].Text()

	if r.reserved[name] {
		what := "variable"
		if kw == token.Let {
			what = "constant"
		}
		return &NameError{Pos: children[1].Pos, Name: name, Message: "can not use the reserved identifier `" + name + "' as a " + what + " name"}
	}

	switch kw {
	case token.Let:
		if r.isInScope(name) {
			return &MutabilityError{Pos: children[1].Pos, Message: "can not use 'let' to redefine variable `" + name + "'"}
		}
		r.addDefinedSymbol(name, false)
	case token.Mut:
		r.addDefinedSymbol(name, true)
	case token.Set:
		if immutable, ok := r.isImmutable(name); ok && immutable {
			val := ""
			if len(children) > 2 {
				val = children[2].Repr()
			}
			return &MutabilityError{Pos: children[1].Pos, Message: fmt.Sprintf("can not set the constant `%s' to %s", name, val)}
		}
		if _, ok := r.isImmutable(name); !ok {
			r.addSymbolNode(children[1])
		}
	}
	return nil
}

func (r *Resolver) visitFun(children []ast.Node) error {
	r.pushScope()
	if len(children) > 1 && children[1].IsListLike() {
		for _, param := range children[1].Children() {
			switch param.Kind {
			case ast.Capture:
				name := param.Text()
				if !r.definedSymbols[name] {
					r.popScope()
					return &NameError{Pos: param.Pos, Name: name, Message: "can not capture `" + name + "' because it is referencing an unbound variable"}
				}
				if !r.isRegistered(name) {
					r.popScope()
					return &MutabilityError{Pos: param.Pos, Message: "can not capture `" + name + "' because it is referencing a variable defined in an unreachable scope"}
				}
				r.addDefinedSymbol(name, true)
			case ast.Symbol:
				r.addDefinedSymbol(param.Text(), true)
			}
		}
	}
	if len(children) > 2 {
		if err := r.visit(children[2]); err != nil {
			r.popScope()
			return err
		}
	}
	r.popScope()
	return nil
}

// mayBeFromPlugin exempts a selective-import qualified name (the part
// before the first GetField segment folded by the lexer, or before ':' in
// an identifier) from the undefined-symbol check, since a plugin's exports
// are only known once it is loaded at runtime.
func (r *Resolver) mayBeFromPlugin(name string) bool {
	prefix := name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		prefix = name[:i]
	}
	for _, plugin := range r.pluginNames {
		if plugin == prefix {
			return true
		}
	}
	return false
}

// checkUndefined reports every candidate symbol use that never resolved to
// a binding, each with a Levenshtein-nearest suggestion when one is close
// enough to be useful.
func (r *Resolver) checkUndefined() error {
	var unresolved []*NameError
	for _, sym := range r.symbolNodes {
		name := sym.Text()
		if r.definedSymbols[name] || r.mayBeFromPlugin(name) {
			continue
		}
		unresolved = append(unresolved, &NameError{Pos: sym.Pos, Name: name, Suggestion: r.suggest(name)})
	}
	if len(unresolved) == 0 {
		return nil
	}
	if len(unresolved) == 1 {
		return unresolved[0]
	}
	msgs := make([]string, len(unresolved))
	for i, e := range unresolved {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d unbound variable(s):\n%s", len(unresolved), strings.Join(msgs, "\n"))
}

// suggest picks the closest known name within half of str's length in
// edit distance, the original's own threshold for "close enough to be
// worth suggesting".
func (r *Resolver) suggest(str string) string {
	best := ""
	bestDist := len(str) / 2
	for name := range r.definedSymbols {
		d := levenshtein.ComputeDistance(str, name)
		if d <= bestDist {
			bestDist = d
			best = name
		}
	}
	return best
}
