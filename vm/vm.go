// Package vm executes the paged bytecode package bytecode decodes: a
// fixed-size value stack per Context, a call-frame scope stack threaded
// through closures' captured scopes, and the builtin/plugin calling
// convention described by spec.md §4.7.
//
// Grounded on _examples/db47h-ngaro/vm/vm.go's functional-Option
// constructor and Instance struct shape (PC/sp/rsp/data/address generalize
// to pp/ip/stack/locals here), and core.go's panic-recovering dispatch loop
// (see run.go).
package vm

import (
	"io"
	"os"
	"sync"

	"github.com/arkscript-lang/ark/bytecode"
	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/value"
	"github.com/pkg/errors"
)

const defaultStackSize = 8192

// Option configures a VM at construction time.
type Option func(*VM)

// StackSize sets the per-Context value stack's fixed capacity.
func StackSize(size int) Option {
	return func(m *VM) { m.stackSize = size }
}

// Stdout sets the writer `print`/`puts` write to.
func Stdout(w io.Writer) Option {
	return func(m *VM) { m.stdout = w }
}

// Stdin sets the reader `input` reads from.
func Stdin(r io.Reader) Option {
	return func(m *VM) { m.stdin = r }
}

// LibraryPaths sets the directories PLUGIN searches, in order, after the
// importing file's own directory.
func LibraryPaths(paths []string) Option {
	return func(m *VM) { m.libraryPaths = paths }
}

// Args sets the values `sys:args` returns to the running program.
func Args(args []string) Option {
	return func(m *VM) { m.args = args }
}

// VM owns the state shared by every Context run against one decoded
// Bytecode: the pages/symbols/values tables, the global scope, the builtin
// table and the set of loaded plugins. Contexts created from the same VM
// (see NewContext/Fork) share this state; mu guards the mutations a
// concurrently running future can make to it (global bindings, plugin
// registration).
type VM struct {
	bc *bytecode.Bytecode

	global   *value.Scope
	builtins []value.CProc

	mu      sync.Mutex
	plugins map[string]bool

	stackSize    int
	stdout       io.Writer
	stdin        io.Reader
	libraryPaths []string
	args         []string
	sourceDir    string
}

// New builds a VM ready to run bc's top-level page (page 0).
func New(bc *bytecode.Bytecode, sourceDir string, opts ...Option) *VM {
	m := &VM{
		bc:        bc,
		global:    value.NewScope(nil),
		plugins:   make(map[string]bool),
		stackSize: defaultStackSize,
		stdout:    os.Stdout,
		stdin:     os.Stdin,
		sourceDir: sourceDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.builtins = newBuiltinTable(m)
	m.bindGlobals()
	return m
}

// bindGlobals pre-populates the global scope with the three constants the
// compiler reaches through LOAD_SYMBOL rather than LOAD_CONST (see
// compiler.Compiler.pushNil): nil/true/false are ordinary, immutable global
// bindings, not a distinct VM concept.
func (m *VM) bindGlobals() {
	for _, n := range []struct {
		name string
		v    value.Value
	}{
		{"nil", value.Nil},
		{"true", value.True},
		{"false", value.False},
	} {
		if id, ok := m.symbolID(n.name); ok {
			m.global.Set(id, n.v)
		}
	}
}

// symbolID looks up name's interned id without creating one; callers only
// ever need ids a program's bytecode already references.
func (m *VM) symbolID(name string) (uint16, bool) {
	for i, s := range m.bc.Symbols {
		if s == name {
			return uint16(i), true
		}
	}
	return 0, false
}

// Context is one cooperative thread of execution against a VM's shared
// state: its own value stack, call-frame scope stack and instruction
// pointer. Created with NewContext for the primary run, or Fork for a
// future.
type Context struct {
	vm *VM

	stack []value.Value
	sp    int // index of the top of stack; -1 when empty

	locals     []*value.Scope // call-frame scope stack; top is the active scope
	savedScope *value.Scope   // accumulates CAPTUREs pending the next MAKE_CLOSURE

	pp, ip   uint16
	fc       int
	exitCode int
	halted   bool
}

// NewContext creates the primary execution context, starting at page 0.
func (m *VM) NewContext() *Context {
	return &Context{
		vm:     m,
		stack:  make([]value.Value, m.stackSize),
		sp:     -1,
		locals: []*value.Scope{m.global},
	}
}

// Fork creates a sub-context sharing the VM's global scope and tables but
// with its own stack and call frames, for `system:await`/`system:run`-style
// concurrent evaluation (spec.md §5's Contexts/futures). The forked context
// starts executing pp/ip immediately rather than at page 0, so a future can
// be pointed at an arbitrary closure's page.
func (m *VM) Fork(pp, ip uint16) *Context {
	return &Context{
		vm:     m,
		stack:  make([]value.Value, m.stackSize),
		sp:     -1,
		locals: []*value.Scope{m.global},
		pp:     pp,
		ip:     ip,
	}
}

func (ctx *Context) push(v value.Value) error {
	ctx.sp++
	if ctx.sp >= len(ctx.stack) {
		return &VMError{Message: "value stack overflow"}
	}
	ctx.stack[ctx.sp] = v
	return nil
}

func (ctx *Context) pop() (value.Value, error) {
	if ctx.sp < 0 {
		return value.Value{}, &VMError{Message: "value stack underflow"}
	}
	v := ctx.stack[ctx.sp]
	ctx.sp--
	return v, nil
}

func (ctx *Context) top() (value.Value, error) {
	if ctx.sp < 0 {
		return value.Value{}, &VMError{Message: "value stack underflow"}
	}
	return ctx.stack[ctx.sp], nil
}

func (ctx *Context) popN(n int) ([]value.Value, error) {
	if ctx.sp+1 < n {
		return nil, &VMError{Message: "value stack underflow"}
	}
	args := make([]value.Value, n)
	copy(args, ctx.stack[ctx.sp-n+1:ctx.sp+1])
	ctx.sp -= n
	return args, nil
}

// activeScope returns the innermost scope of the currently executing frame.
func (ctx *Context) activeScope() *value.Scope {
	return ctx.locals[len(ctx.locals)-1]
}

// resolve walks the active scope's parent chain outward looking for id,
// dereferencing Reference values along the way.
func (ctx *Context) resolve(id uint16) (value.Value, bool) {
	for s := ctx.activeScope(); s != nil; s = s.Parent() {
		if v, ok := s.Get(id); ok {
			return v.Deref(), true
		}
	}
	return value.Value{}, false
}

// page returns the page currently executing.
func (ctx *Context) page() *compiler.Page {
	return ctx.vm.bc.Pages[ctx.pp]
}

// Run drives ctx to completion (HALT, or a top-level RET with no caller
// frame to return into) and reports the final value left on the stack, if
// any.
func (m *VM) Run(ctx *Context) (value.Value, error) {
	return m.dispatch(ctx)
}

// RunProgram is the common entry point: build a fresh primary Context for
// bc and run it to completion.
func RunProgram(bc *bytecode.Bytecode, sourceDir string, opts ...Option) (value.Value, int, error) {
	m := New(bc, sourceDir, opts...)
	ctx := m.NewContext()
	v, err := m.Run(ctx)
	if err != nil {
		return value.Value{}, ctx.exitCode, errors.Wrap(err, "vm")
	}
	return v, ctx.exitCode, nil
}
