package compiler

// StdlibNames is the closed, ordered table of standard-library builtin
// names whose reference compiles to a dedicated `BUILTIN id` instruction
// (pushing the native procedure, which a following `CALL` invokes) rather
// than `LOAD_SYMBOL`, mirroring resolver.builtinNames minus the entries
// that already have their own opcode (operatorOps) and minus
// `true`/`false`/`nil`, which are pre-bound global names loaded with
// `LOAD_SYMBOL` (see Compiler.pushNil). Implementing what each of these actually does at runtime is out
// of scope here (the VM's calling convention, not the individual
// builtins' behavior, is this package's concern); the compiler only
// needs a stable name -> id assignment.
//
// Grounded on the same source as resolver.builtinNames:
// original_source's include/Ark/REPL/ConsoleStyle.hpp KeywordsDict.
var StdlibNames = []string{
	"math:pi", "math:e", "math:tau", "math:Inf", "math:NaN",

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

var stdlibIndex = make(map[string]uint16)

func init() {
	for i, name := range StdlibNames {
		stdlibIndex[name] = uint16(i)
	}
}
