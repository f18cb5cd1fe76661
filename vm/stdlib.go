package vm

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/value"
)

// newBuiltinTable builds the CProc table indexed exactly like
// compiler.StdlibNames, so a compiled `BUILTIN id` instruction and this
// slice always agree on what id means. Grounded on the teacher's
// vm/io_helpers.go reader/writer wrapping, generalized from Forth's
// port-based I/O to direct os/time/math stdlib calls, the ecosystem way
// every other example repo reaches host services.
func newBuiltinTable(m *VM) []value.CProc {
	table := make([]value.CProc, len(compiler.StdlibNames))
	for i, name := range compiler.StdlibNames {
		fn, ok := builtinImpls[name]
		if !ok {
			panic("vm: no implementation registered for builtin " + name)
		}
		table[i] = fn(m)
	}
	return table
}

// builtinImpls maps a stdlib name to a constructor closing over the owning
// VM (for stdout/stdin/args/exit-code access).
var builtinImpls = map[string]func(*VM) value.CProc{
	"math:pi":  func(*VM) value.CProc { return constNumber(math.Pi) },
	"math:e":   func(*VM) value.CProc { return constNumber(math.E) },
	"math:tau": func(*VM) value.CProc { return constNumber(2 * math.Pi) },
	"math:Inf": func(*VM) value.CProc { return constNumber(math.Inf(1)) },
	"math:NaN": func(*VM) value.CProc { return constNumber(math.NaN()) },

	"list:reverse":  func(*VM) value.CProc { return biListReverse },
	"list:find":     func(*VM) value.CProc { return biListFind },
	"list:removeAt": func(*VM) value.CProc { return biListRemoveAt },
	"list:slice":    func(*VM) value.CProc { return biListSlice },
	"list:sort":     func(*VM) value.CProc { return biListSort },
	"list:fill":     func(*VM) value.CProc { return biListFill },
	"list:setAt":    func(*VM) value.CProc { return biListSetAt },

	"print": func(m *VM) value.CProc { return biPrint(m, true) },
	"puts":  func(m *VM) value.CProc { return biPrint(m, false) },
	"input": func(m *VM) value.CProc { return biInput(m) },

	"io:writeFile":   func(*VM) value.CProc { return biWriteFile },
	"io:readFile":    func(*VM) value.CProc { return biReadFile },
	"io:fileExists?": func(*VM) value.CProc { return biFileExists },
	"io:listFiles":   func(*VM) value.CProc { return biListFiles },
	"io:dir?":        func(*VM) value.CProc { return biIsDir },
	"io:makeDir":     func(*VM) value.CProc { return biMakeDir },
	"io:removeFiles": func(*VM) value.CProc { return biRemoveFiles },

	"time":      func(*VM) value.CProc { return biTime },
	"sys:exec":  func(*VM) value.CProc { return biSysExec },
	"sys:sleep": func(*VM) value.CProc { return biSysSleep },
	"sys:args":  func(m *VM) value.CProc { return biSysArgs(m) },
	"sys:exit":  func(*VM) value.CProc { return biSysExit },

	"str:format":   func(*VM) value.CProc { return biStrFormat },
	"str:find":     func(*VM) value.CProc { return biStrFind },
	"str:removeAt": func(*VM) value.CProc { return biStrRemoveAt },

	"math:exp":    func(*VM) value.CProc { return mathUnary("math:exp", math.Exp) },
	"math:ln":     func(*VM) value.CProc { return mathUnary("math:ln", math.Log) },
	"math:ceil":   func(*VM) value.CProc { return mathUnary("math:ceil", math.Ceil) },
	"math:floor":  func(*VM) value.CProc { return mathUnary("math:floor", math.Floor) },
	"math:round":  func(*VM) value.CProc { return mathUnary("math:round", math.Round) },
	"math:NaN?":   func(*VM) value.CProc { return biMathIsNaN },
	"Inf?":        func(*VM) value.CProc { return biMathIsInf },
	"math:cos":    func(*VM) value.CProc { return mathUnary("math:cos", math.Cos) },
	"math:sin":    func(*VM) value.CProc { return mathUnary("math:sin", math.Sin) },
	"math:tan":    func(*VM) value.CProc { return mathUnary("math:tan", math.Tan) },
	"math:arccos": func(*VM) value.CProc { return mathUnary("math:arccos", math.Acos) },
	"math:arcsin": func(*VM) value.CProc { return mathUnary("math:arcsin", math.Asin) },
	"math:arctan": func(*VM) value.CProc { return mathUnary("math:arctan", math.Atan) },
}

func constNumber(f float64) value.CProc {
	return func(args []value.Value, _ any) (value.Value, error) {
		return value.Number(f), nil
	}
}

func argNumber(op string, args []value.Value, i int) (float64, error) {
	if i >= len(args) || args[i].Deref().Kind != value.KindNumber {
		return 0, &TypeError{Op: op, Contract: "Number", Got: argKind(args, i)}
	}
	return args[i].Deref().Number(), nil
}

func argString(op string, args []value.Value, i int) (string, error) {
	if i >= len(args) || args[i].Deref().Kind != value.KindString {
		return "", &TypeError{Op: op, Contract: "String", Got: argKind(args, i)}
	}
	return args[i].Deref().Str(), nil
}

func argList(op string, args []value.Value, i int) ([]value.Value, error) {
	if i >= len(args) || args[i].Deref().Kind != value.KindList {
		return nil, &TypeError{Op: op, Contract: "List", Got: argKind(args, i)}
	}
	return args[i].Deref().List(), nil
}

func argKind(args []value.Value, i int) string {
	if i >= len(args) {
		return "missing argument"
	}
	return args[i].Deref().Kind.String()
}

func mathUnary(op string, fn func(float64) float64) value.CProc {
	return func(args []value.Value, _ any) (value.Value, error) {
		f, err := argNumber(op, args, 0)
		if err != nil {
			return value.Value{}, err
		}
		return value.Number(fn(f)), nil
	}
}

func biMathIsNaN(args []value.Value, _ any) (value.Value, error) {
	f, err := argNumber("math:NaN?", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(math.IsNaN(f)), nil
}

func biMathIsInf(args []value.Value, _ any) (value.Value, error) {
	f, err := argNumber("Inf?", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(math.IsInf(f, 0)), nil
}

func biListReverse(args []value.Value, _ any) (value.Value, error) {
	items, err := argList("list:reverse", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, len(items))
	for i, v := range items {
		out[len(items)-1-i] = v
	}
	return value.List(out), nil
}

func biListFind(args []value.Value, _ any) (value.Value, error) {
	items, err := argList("list:find", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if len(args) < 2 {
		return value.Value{}, &TypeError{Op: "list:find", Contract: "List, Any", Got: "arity"}
	}
	needle := args[1].Deref()
	for i, v := range items {
		if value.Equal(v, needle) {
			return value.Number(float64(i)), nil
		}
	}
	return value.Number(-1), nil
}

func biListRemoveAt(args []value.Value, _ any) (value.Value, error) {
	items, err := argList("list:removeAt", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := argNumber("list:removeAt", args, 1)
	if err != nil {
		return value.Value{}, err
	}
	i := int(idx)
	if i < 0 || i >= len(items) {
		return value.Value{}, &IndexError{Op: "list:removeAt", Index: i, Size: len(items)}
	}
	out := make([]value.Value, 0, len(items)-1)
	out = append(out, items[:i]...)
	out = append(out, items[i+1:]...)
	return value.List(out), nil
}

func biListSlice(args []value.Value, _ any) (value.Value, error) {
	items, err := argList("list:slice", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	start, err := argNumber("list:slice", args, 1)
	if err != nil {
		return value.Value{}, err
	}
	end, err := argNumber("list:slice", args, 2)
	if err != nil {
		return value.Value{}, err
	}
	s, e := int(start), int(end)
	if s < 0 || e > len(items) || s > e {
		return value.Value{}, &IndexError{Op: "list:slice", Index: s, Size: len(items)}
	}
	return value.List(append([]value.Value(nil), items[s:e]...)), nil
}

func biListSort(args []value.Value, _ any) (value.Value, error) {
	items, err := argList("list:sort", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	out := append([]value.Value(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return value.Less(out[i], out[j]) })
	return value.List(out), nil
}

func biListFill(args []value.Value, _ any) (value.Value, error) {
	n, err := argNumber("list:fill", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if len(args) < 2 {
		return value.Value{}, &TypeError{Op: "list:fill", Contract: "Number, Any", Got: "arity"}
	}
	filler := args[1].Deref()
	out := make([]value.Value, int(n))
	for i := range out {
		out[i] = filler
	}
	return value.List(out), nil
}

func biListSetAt(args []value.Value, _ any) (value.Value, error) {
	items, err := argList("list:setAt", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := argNumber("list:setAt", args, 1)
	if err != nil {
		return value.Value{}, err
	}
	if len(args) < 3 {
		return value.Value{}, &TypeError{Op: "list:setAt", Contract: "List, Number, Any", Got: "arity"}
	}
	i := int(idx)
	if i < 0 || i >= len(items) {
		return value.Value{}, &IndexError{Op: "list:setAt", Index: i, Size: len(items)}
	}
	out := append([]value.Value(nil), items...)
	out[i] = args[2].Deref()
	return value.List(out), nil
}

func biPrint(m *VM, newline bool) value.CProc {
	return func(args []value.Value, _ any) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Deref().String()
		}
		line := strings.Join(parts, " ")
		if newline {
			line += "\n"
		}
		fmt.Fprint(m.stdout, line)
		return value.Nil, nil
	}
}

func biInput(m *VM) value.CProc {
	return func(args []value.Value, _ any) (value.Value, error) {
		if len(args) > 0 {
			fmt.Fprint(m.stdout, args[0].Deref().String())
		}
		line, err := bufio.NewReader(m.stdin).ReadString('\n')
		if err != nil && line == "" {
			return value.String(""), nil
		}
		return value.String(strings.TrimRight(line, "\r\n")), nil
	}
}

func biWriteFile(args []value.Value, _ any) (value.Value, error) {
	path, err := argString("io:writeFile", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	content, err := argString("io:writeFile", args, 1)
	if err != nil {
		return value.Value{}, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return value.Value{}, &ModuleError{Path: path, Message: err.Error()}
	}
	return value.Nil, nil
}

func biReadFile(args []value.Value, _ any) (value.Value, error) {
	path, err := argString("io:readFile", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return value.Value{}, &ModuleError{Path: path, Message: err.Error()}
	}
	return value.String(string(data)), nil
}

func biFileExists(args []value.Value, _ any) (value.Value, error) {
	path, err := argString("io:fileExists?", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	_, statErr := os.Stat(path)
	return value.Bool(statErr == nil), nil
}

func biListFiles(args []value.Value, _ any) (value.Value, error) {
	dir, err := argString("io:listFiles", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return value.Value{}, &ModuleError{Path: dir, Message: err.Error()}
	}
	out := make([]value.Value, len(entries))
	for i, e := range entries {
		out[i] = value.String(e.Name())
	}
	return value.List(out), nil
}

func biIsDir(args []value.Value, _ any) (value.Value, error) {
	path, err := argString("io:dir?", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	info, statErr := os.Stat(path)
	return value.Bool(statErr == nil && info.IsDir()), nil
}

func biMakeDir(args []value.Value, _ any) (value.Value, error) {
	path, err := argString("io:makeDir", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return value.Value{}, &ModuleError{Path: path, Message: err.Error()}
	}
	return value.Nil, nil
}

func biRemoveFiles(args []value.Value, _ any) (value.Value, error) {
	path, err := argString("io:removeFiles", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if err := os.RemoveAll(path); err != nil {
		return value.Value{}, &ModuleError{Path: path, Message: err.Error()}
	}
	return value.Nil, nil
}

func biTime(args []value.Value, _ any) (value.Value, error) {
	return value.Number(float64(time.Now().Unix())), nil
}

func biSysExec(args []value.Value, _ any) (value.Value, error) {
	name, err := argString("sys:exec", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	rest := make([]string, 0, len(args)-1)
	for i := 1; i < len(args); i++ {
		rest = append(rest, args[i].Deref().String())
	}
	out, runErr := exec.Command(name, rest...).CombinedOutput()
	if runErr != nil {
		return value.Value{}, &ModuleError{Path: name, Message: runErr.Error()}
	}
	return value.String(string(out)), nil
}

func biSysSleep(args []value.Value, _ any) (value.Value, error) {
	secs, err := argNumber("sys:sleep", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	return value.Nil, nil
}

func biSysArgs(m *VM) value.CProc {
	return func(args []value.Value, _ any) (value.Value, error) {
		out := make([]value.Value, len(m.args))
		for i, a := range m.args {
			out[i] = value.String(a)
		}
		return value.List(out), nil
	}
}

func biSysExit(args []value.Value, rawCtx any) (value.Value, error) {
	code := 0
	if len(args) > 0 && args[0].Deref().Kind == value.KindNumber {
		code = int(args[0].Deref().Number())
	}
	if ctx, ok := rawCtx.(*Context); ok {
		ctx.exitCode = code
		ctx.halted = true
	}
	return value.Nil, nil
}

func biStrFormat(args []value.Value, _ any) (value.Value, error) {
	tmpl, err := argString("str:format", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	rest := args[1:]
	var b strings.Builder
	argIdx := 0
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] == '{' && i+1 < len(tmpl) && tmpl[i+1] == '}' {
			if argIdx < len(rest) {
				b.WriteString(rest[argIdx].Deref().String())
				argIdx++
			}
			i++
			continue
		}
		b.WriteByte(tmpl[i])
	}
	return value.String(b.String()), nil
}

func biStrFind(args []value.Value, _ any) (value.Value, error) {
	s, err := argString("str:find", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	sub, err := argString("str:find", args, 1)
	if err != nil {
		return value.Value{}, err
	}
	return value.Number(float64(strings.Index(s, sub))), nil
}

func biStrRemoveAt(args []value.Value, _ any) (value.Value, error) {
	s, err := argString("str:removeAt", args, 0)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := argNumber("str:removeAt", args, 1)
	if err != nil {
		return value.Value{}, err
	}
	r := []rune(s)
	i := int(idx)
	if i < 0 || i >= len(r) {
		return value.Value{}, &IndexError{Op: "str:removeAt", Index: i, Size: len(r)}
	}
	out := append(append([]rune(nil), r[:i]...), r[i+1:]...)
	return value.String(string(out)), nil
}
