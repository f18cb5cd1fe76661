package resolver

import "github.com/arkscript-lang/ark/token"

// reservedNames is the closed set of identifiers a program may reference
// but never rebind: the arithmetic/comparison operators, the compile-time
// logical keywords `and`/`or`, the `sys:args` CLI-argument vector, and the
// standard library's builtin functions and constants.
//
// Grounded on original_source's REPL syntax-highlighting dictionary
// (include/Ark/REPL/ConsoleStyle.hpp's KeywordsDict), the one place in the
// original that enumerates every builtin/operator name in a single list —
// the builtins themselves are scattered one-function-per-registration
// across several Builtins/*.cpp files with no single manifest.
var builtinNames = []string{
	"len", "empty?", "tail", "head", "@",
	"nil?", "assert", "toNumber", "toString",
	"and", "or", "mod", "not",
	"type", "hasField",

	"true", "false", "nil",
	"math:pi", "math:e", "math:tau", "math:Inf", "math:NaN",

	"append", "append!", "concat", "concat!", "pop", "pop!", "list",
	"list:reverse", "list:find", "list:removeAt", "list:slice",
	"list:sort", "list:fill", "list:setAt",

	"print", "puts", "input",
	"io:writeFile", "io:readFile", "io:fileExists?", "io:listFiles",
	"io:dir?", "io:makeDir", "io:removeFiles",

	"time",
	"sys:exec", "sys:sleep", "sys:args", "sys:exit",

	"str:format", "str:find", "str:removeAt",

	"math:exp", "math:ln", "math:ceil", "math:floor", "math:round",
	"math:NaN?", "Inf?", "math:cos", "math:sin", "math:tan",
	"math:arccos", "math:arcsin", "math:arctan",
}

func newReservedSet() map[string]bool {
	reserved := make(map[string]bool, len(builtinNames)+len(token.Operators))
	for _, name := range builtinNames {
		reserved[name] = true
	}
	for _, op := range token.Operators {
		reserved[op] = true
	}
	return reserved
}

// inPlaceMutators take a mutable list as their first argument; using it is
// a MutabilityError if the binding is immutable.
var inPlaceMutators = map[string]bool{
	"append!": true,
	"concat!": true,
	"pop!":    true,
}

// selfAliasingMutators additionally forbid passing the same symbol as both
// the target list and one of the values being merged into it.
var selfAliasingMutators = map[string]bool{
	"append!": true,
	"concat!": true,
}
