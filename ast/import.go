package ast

// Import is the side-channel record the parser produces for each `(import
// ...)` form, in addition to the AST node itself.
type Import struct {
	Package []string // dotted package path segments, e.g. ["math", "trig"]
	Prefix  string
	Symbols []string // non-empty => selective import
	Glob    bool      // true => "bring everything under Prefix"
	Line    int
	Col     int
}

// Qualified reports whether this import brings everything in under Prefix
// without a glob or a selective symbol list (a "prefixed import").
func (i Import) Qualified() bool { return !i.Glob && len(i.Symbols) == 0 }
