package vm

import (
	"fmt"

	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/value"
	"github.com/pkg/errors"
)

// dispatch runs ctx's fetch-decode-execute loop until HALT, a top-level RET
// (fc back down to 0 with no caller frame to return into) or an error.
//
// Grounded on _examples/db47h-ngaro/vm/core.go's Run(): a deferred recover
// wrapping the whole loop (a slice-index panic anywhere below becomes a
// VMError instead of crashing the host process) around a single
// instruction-pointer-driven for/switch.
func (m *VM) dispatch(ctx *Context) (result value.Value, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.Wrapf(&VMError{Message: fmt.Sprint(e)}, "recovered panic @pp=%d ip=%d", ctx.pp, ctx.ip)
		}
	}()

	for !ctx.halted {
		page := ctx.page()
		if int(ctx.ip) >= len(page.Words) {
			return value.Value{}, &VMError{Message: "instruction pointer ran off the end of its page"}
		}
		word := page.Words[ctx.ip]
		ctx.ip++

		switch word.Op {
		case compiler.Nop:
			// no-op

		case compiler.LoadConst:
			if int(word.Arg) >= len(m.bc.Values) {
				return value.Value{}, &VMError{Message: "LOAD_CONST index out of range"}
			}
			if err := ctx.push(m.bc.Values[word.Arg]); err != nil {
				return value.Value{}, err
			}

		case compiler.LoadSymbol:
			v, ok := ctx.resolve(word.Arg)
			if !ok {
				return value.Value{}, &ScopeError{Symbol: m.symbolName(word.Arg)}
			}
			if err := ctx.push(v); err != nil {
				return value.Value{}, err
			}

		case compiler.Store:
			v, err := ctx.pop()
			if err != nil {
				return value.Value{}, err
			}
			ctx.activeScope().Set(word.Arg, v)

		case compiler.SetVal:
			v, err := ctx.pop()
			if err != nil {
				return value.Value{}, err
			}
			if !ctx.setVal(word.Arg, v) {
				return value.Value{}, &ScopeError{Symbol: m.symbolName(word.Arg), Message: "can not set an undefined variable"}
			}

		case compiler.Del:
			if !ctx.activeScope().Del(word.Arg) {
				return value.Value{}, &ScopeError{Symbol: m.symbolName(word.Arg), Message: "can not delete an undefined variable"}
			}

		case compiler.Dup:
			v, err := ctx.top()
			if err != nil {
				return value.Value{}, err
			}
			if err := ctx.push(v); err != nil {
				return value.Value{}, err
			}

		case compiler.Pop:
			if _, err := ctx.pop(); err != nil {
				return value.Value{}, err
			}

		case compiler.PopJumpIfTrue:
			v, err := ctx.pop()
			if err != nil {
				return value.Value{}, err
			}
			if v.Truthy() {
				ctx.ip = word.Arg
			}

		case compiler.PopJumpIfFalse:
			v, err := ctx.pop()
			if err != nil {
				return value.Value{}, err
			}
			if !v.Truthy() {
				ctx.ip = word.Arg
			}

		case compiler.Jump:
			ctx.ip = word.Arg

		case compiler.Halt:
			ctx.halted = true
			if ctx.sp >= 0 {
				result = ctx.stack[ctx.sp]
			}
			return result, nil

		case compiler.Ret:
			res, rerr := m.doReturn(ctx)
			if rerr != nil {
				return value.Value{}, rerr
			}
			if ctx.halted {
				return res, nil
			}

		case compiler.Call:
			if err := m.doCall(ctx, int(word.Arg)); err != nil {
				return value.Value{}, err
			}

		case compiler.Capture:
			if err := ctx.doCapture(word.Arg); err != nil {
				return value.Value{}, err
			}

		case compiler.MakeClosure:
			if err := ctx.doMakeClosure(word.Arg); err != nil {
				return value.Value{}, err
			}

		case compiler.GetField:
			if err := ctx.doGetField(word.Arg, m); err != nil {
				return value.Value{}, err
			}

		case compiler.Builtin:
			if int(word.Arg) >= len(m.builtins) {
				return value.Value{}, &VMError{Message: "BUILTIN index out of range"}
			}
			if err := ctx.push(value.NativeProc(m.builtins[word.Arg])); err != nil {
				return value.Value{}, err
			}

		case compiler.Plugin:
			if err := m.doPlugin(ctx, word.Arg); err != nil {
				return value.Value{}, err
			}

		case compiler.List:
			err = ctx.opList(int(word.Arg))
		case compiler.Append:
			err = ctx.opAppend(int(word.Arg))
		case compiler.AppendBang:
			err = ctx.opAppendBang(int(word.Arg))
		case compiler.Concat:
			err = ctx.opConcat(int(word.Arg))
		case compiler.ConcatBang:
			err = ctx.opConcatBang(int(word.Arg))
		case compiler.PopList:
			err = ctx.opPopList(int(word.Arg))
		case compiler.PopListBang:
			err = ctx.opPopListBang(int(word.Arg))

		case compiler.Add:
			err = ctx.opAdd()
		case compiler.Sub:
			err = ctx.opSub()
		case compiler.Mul:
			err = ctx.opMul()
		case compiler.Div:
			err = ctx.opDiv()
		case compiler.Mod:
			err = ctx.opMod()
		case compiler.Gt:
			err = ctx.opGt()
		case compiler.Lt:
			err = ctx.opLt()
		case compiler.Le:
			err = ctx.opLe()
		case compiler.Ge:
			err = ctx.opGe()
		case compiler.Eq:
			err = ctx.opEq()
		case compiler.Neq:
			err = ctx.opNeq()
		case compiler.And:
			err = ctx.opAnd()
		case compiler.Or:
			err = ctx.opOr()
		case compiler.Len:
			err = ctx.opLen()
		case compiler.Empty:
			err = ctx.opEmpty()
		case compiler.Head:
			err = ctx.opHead()
		case compiler.Tail:
			err = ctx.opTail()
		case compiler.IsNil:
			err = ctx.opIsNil()
		case compiler.Not:
			err = ctx.opNot()
		case compiler.Assert:
			err = ctx.opAssert()
		case compiler.ToNum:
			err = ctx.opToNum()
		case compiler.ToStr:
			err = ctx.opToStr()
		case compiler.At:
			err = ctx.opAt()
		case compiler.Type:
			err = ctx.opType()
		case compiler.HasField:
			err = ctx.opHasField()

		default:
			return value.Value{}, &VMError{Message: "unimplemented opcode " + word.Op.String()}
		}
		if err != nil {
			return value.Value{}, err
		}
	}
	return result, nil
}

func (m *VM) symbolName(id uint16) string {
	if int(id) < len(m.bc.Symbols) {
		return m.bc.Symbols[id]
	}
	return "?"
}

// setVal implements SET_VAL: write the first binding found walking the
// active scope chain outward, without creating one.
func (ctx *Context) setVal(id uint16, v value.Value) bool {
	for s := ctx.activeScope(); s != nil; s = s.Parent() {
		if ref, ok := s.Ptr(id); ok {
			if ref.Kind == value.KindReference {
				*ref.Reference() = v
			} else {
				s.Set(id, v)
			}
			return true
		}
	}
	return false
}

// doCapture implements CAPTURE: resolve id in the enclosing frame and copy a
// by-reference binding for it into the pending saved scope, consumed by the
// next MAKE_CLOSURE.
func (ctx *Context) doCapture(id uint16) error {
	for s := ctx.activeScope(); s != nil; s = s.Parent() {
		if ptr, ok := s.Ptr(id); ok {
			if ctx.savedScope == nil {
				ctx.savedScope = value.NewScope(nil)
			}
			if ptr.Kind == value.KindReference {
				ctx.savedScope.Set(id, *ptr)
			} else {
				ctx.savedScope.Set(id, value.Ref(ptr))
			}
			return nil
		}
	}
	return &ScopeError{Symbol: "?", Message: "can not capture an undefined variable"}
}

// doMakeClosure implements MAKE_CLOSURE: build a Closure over the page
// named by arg (a PageAddr constant) and whatever scope CAPTURE accumulated
// since the last one was consumed, chained to the global scope so every
// closure can still reach top-level bindings and builtins regardless of
// what it explicitly captured.
func (ctx *Context) doMakeClosure(arg uint16) error {
	if int(arg) >= len(ctx.vm.bc.Values) {
		return &VMError{Message: "MAKE_CLOSURE constant index out of range"}
	}
	pageConst := ctx.vm.bc.Values[arg]
	if pageConst.Kind != value.KindPageAddr {
		return &VMError{Message: "MAKE_CLOSURE constant is not a page address"}
	}
	scope := ctx.savedScope
	ctx.savedScope = nil
	if scope != nil {
		scope = reparent(scope, ctx.vm.global)
	} else {
		scope = ctx.vm.global
	}
	return ctx.push(value.MakeClosure(value.Closure{Scope: scope, Page: pageConst.PageAddr()}))
}

// reparent rebuilds s with parent as its lexical parent; value.Scope never
// exposes a parent setter since NewScope is the only legal way to establish
// one, so the accumulated bindings are copied onto a freshly parented scope.
func reparent(s *value.Scope, parent *value.Scope) *value.Scope {
	out := value.NewScope(parent)
	for i := 0; i < s.Len(); i++ {
		id, v := s.At(i)
		out.Set(id, v)
	}
	return out
}

// doGetField implements GET_FIELD: the base value (already on the stack)
// must be a Closure; field access only looks in that closure's own captured
// scope, not its parent chain, matching how modules/records expose exactly
// what PLUGIN or an explicit capture list put there.
func (ctx *Context) doGetField(id uint16, m *VM) error {
	base, err := ctx.pop()
	if err != nil {
		return err
	}
	base = base.Deref()
	if base.Kind != value.KindClosure {
		return &TypeError{Op: "GET_FIELD", Contract: "Closure", Got: base.Kind.String()}
	}
	scope := base.Closure().Scope
	if scope == nil {
		return &ScopeError{Symbol: m.symbolName(id), Message: "value has no fields"}
	}
	v, ok := scope.Get(id)
	if !ok {
		return &ScopeError{Symbol: m.symbolName(id), Message: "no such field"}
	}
	return ctx.push(v.Deref())
}

// doCall implements CALL argc for both Closure and native CProc callees. The
// stack holds, bottom to top: the callee, then argc arguments in call
// order; for a Closure, the callee's page prologue pops them with a STORE
// per parameter emitted in reverse, so they are pushed back in their
// original order onto the fresh frame rather than consumed here.
func (m *VM) doCall(ctx *Context, argc int) error {
	args, err := ctx.popN(argc)
	if err != nil {
		return err
	}
	callee, err := ctx.pop()
	if err != nil {
		return err
	}
	callee = callee.Deref()

	switch callee.Kind {
	case value.KindClosure:
		if err := ctx.push(value.InstPtr(ctx.pp, ctx.ip)); err != nil {
			return err
		}
		closure := callee.Closure()
		ctx.locals = append(ctx.locals, value.NewScope(closure.Scope))
		for _, a := range args {
			if err := ctx.push(a); err != nil {
				return err
			}
		}
		ctx.pp, ctx.ip = closure.Page, 0
		ctx.fc++
		return nil

	case value.KindCProc:
		res, err := callee.Proc()(args, ctx)
		if err != nil {
			return err
		}
		return ctx.push(res)

	default:
		return &TypeError{Op: "CALL", Contract: "Closure or CProc", Got: callee.Kind.String()}
	}
}

// doReturn implements RET: pop the return value, unwind to the calling
// frame (restoring pp/ip and popping this call's scope), and push it back.
// At the outermost frame (fc == 0, e.g. the program's own trailing RET) RET
// behaves like HALT: there is no caller to return into, so execution stops
// and the value is reported as the program's result.
func (m *VM) doReturn(ctx *Context) (value.Value, error) {
	ret, err := ctx.pop()
	if err != nil {
		return value.Value{}, err
	}
	if ctx.fc == 0 {
		ctx.halted = true
		return ret.Deref(), nil
	}

	marker, err := ctx.pop()
	if err != nil {
		return value.Value{}, err
	}
	if marker.Kind != value.KindInstPtr {
		return value.Value{}, &VMError{Message: "RET found no call frame marker to unwind to"}
	}
	pp, ip := marker.InstPtr()
	ctx.locals = ctx.locals[:len(ctx.locals)-1]
	ctx.pp, ctx.ip = pp, ip
	ctx.fc--
	if err := ctx.push(ret); err != nil {
		return value.Value{}, err
	}
	return value.Value{}, nil
}
