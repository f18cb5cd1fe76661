package vm

import (
	"strconv"

	"github.com/arkscript-lang/ark/value"
)

// numberOp applies a binary float64 operation to the top two stack values,
// popped rhs-then-lhs to match the compiler's TOS-accumulating fold
// (compileOperatorForm emits one op per additional operand against the
// running accumulator).
func (ctx *Context) numberOp(name string, fn func(lhs, rhs float64) (value.Value, error)) error {
	rhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, rhs = lhs.Deref(), rhs.Deref()
	if lhs.Kind != value.KindNumber || rhs.Kind != value.KindNumber {
		return &TypeError{Op: name, Contract: "Number, Number", Got: lhs.Kind.String() + ", " + rhs.Kind.String()}
	}
	v, err := fn(lhs.Number(), rhs.Number())
	if err != nil {
		return err
	}
	return ctx.push(v)
}

func (ctx *Context) opAdd() error {
	rhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, rhs = lhs.Deref(), rhs.Deref()
	switch {
	case lhs.Kind == value.KindNumber && rhs.Kind == value.KindNumber:
		return ctx.push(value.Number(lhs.Number() + rhs.Number()))
	case lhs.Kind == value.KindString && rhs.Kind == value.KindString:
		return ctx.push(value.String(lhs.Str() + rhs.Str()))
	default:
		return &TypeError{Op: "+", Contract: "(Number, Number) or (String, String)", Got: lhs.Kind.String() + ", " + rhs.Kind.String()}
	}
}

func (ctx *Context) opSub() error {
	return ctx.numberOp("-", func(a, b float64) (value.Value, error) { return value.Number(a - b), nil })
}

func (ctx *Context) opMul() error {
	return ctx.numberOp("*", func(a, b float64) (value.Value, error) { return value.Number(a * b), nil })
}

func (ctx *Context) opDiv() error {
	return ctx.numberOp("/", func(a, b float64) (value.Value, error) {
		if b == 0 {
			return value.Value{}, &DivisionByZeroError{Op: "/"}
		}
		return value.Number(a / b), nil
	})
}

func (ctx *Context) opMod() error {
	return ctx.numberOp("mod", func(a, b float64) (value.Value, error) {
		if b == 0 {
			return value.Value{}, &DivisionByZeroError{Op: "mod"}
		}
		return value.Number(float64(int64(a) % int64(b))), nil
	})
}

func (ctx *Context) compareOp(name string, cmp func(lhs, rhs value.Value) bool) error {
	rhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, err := ctx.pop()
	if err != nil {
		return err
	}
	return ctx.push(value.Bool(cmp(lhs.Deref(), rhs.Deref())))
}

func (ctx *Context) opGt() error { return ctx.compareOp(">", func(l, r value.Value) bool { return value.Less(r, l) }) }
func (ctx *Context) opLt() error { return ctx.compareOp("<", value.Less) }
func (ctx *Context) opLe() error {
	return ctx.compareOp("<=", func(l, r value.Value) bool { return !value.Less(r, l) })
}
func (ctx *Context) opGe() error {
	return ctx.compareOp(">=", func(l, r value.Value) bool { return !value.Less(l, r) })
}
func (ctx *Context) opEq() error  { return ctx.compareOp("=", value.Equal) }
func (ctx *Context) opNeq() error { return ctx.compareOp("!=", func(l, r value.Value) bool { return !value.Equal(l, r) }) }

// opAnd/opOr return the operand itself rather than a Bool, the usual Lisp
// "and/or return a value" convention: `and` yields lhs when it is falsy,
// otherwise rhs; `or` yields lhs when truthy, otherwise rhs.
func (ctx *Context) opAnd() error {
	rhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, err := ctx.pop()
	if err != nil {
		return err
	}
	if !lhs.Truthy() {
		return ctx.push(lhs)
	}
	return ctx.push(rhs)
}

func (ctx *Context) opOr() error {
	rhs, err := ctx.pop()
	if err != nil {
		return err
	}
	lhs, err := ctx.pop()
	if err != nil {
		return err
	}
	if lhs.Truthy() {
		return ctx.push(lhs)
	}
	return ctx.push(rhs)
}

func (ctx *Context) opList(n int) error {
	items, err := ctx.popN(n)
	if err != nil {
		return err
	}
	return ctx.push(value.List(items))
}

func (ctx *Context) opAppend(n int) error {
	if n < 1 {
		return &TypeError{Op: "append", Contract: "at least 1 argument", Got: "0"}
	}
	args, err := ctx.popN(n)
	if err != nil {
		return err
	}
	base := args[0].Deref()
	if base.Kind != value.KindList {
		return &TypeError{Op: "append", Contract: "List, ...", Got: base.Kind.String()}
	}
	items := append(append([]value.Value(nil), base.List()...), args[1:]...)
	return ctx.push(value.List(items))
}

func (ctx *Context) opAppendBang(n int) error {
	if n < 1 {
		return &TypeError{Op: "append!", Contract: "Reference, ...", Got: "0"}
	}
	args, err := ctx.popN(n)
	if err != nil {
		return err
	}
	ref := args[0]
	if ref.Kind != value.KindReference {
		return &TypeError{Op: "append!", Contract: "a mutable (Reference) List, ...", Got: ref.Kind.String()}
	}
	base := ref.Deref()
	if base.Kind != value.KindList {
		return &TypeError{Op: "append!", Contract: "List, ...", Got: base.Kind.String()}
	}
	items := append(append([]value.Value(nil), base.List()...), args[1:]...)
	updated := value.List(items)
	*ref.Reference() = updated
	return ctx.push(updated)
}

func (ctx *Context) opConcat(n int) error {
	args, err := ctx.popN(n)
	if err != nil {
		return err
	}
	var items []value.Value
	for _, a := range args {
		a = a.Deref()
		if a.Kind != value.KindList {
			return &TypeError{Op: "concat", Contract: "List, List, ...", Got: a.Kind.String()}
		}
		items = append(items, a.List()...)
	}
	return ctx.push(value.List(items))
}

func (ctx *Context) opConcatBang(n int) error {
	if n < 1 {
		return &TypeError{Op: "concat!", Contract: "Reference, List, ...", Got: "0"}
	}
	args, err := ctx.popN(n)
	if err != nil {
		return err
	}
	ref := args[0]
	if ref.Kind != value.KindReference {
		return &TypeError{Op: "concat!", Contract: "a mutable (Reference) List, ...", Got: ref.Kind.String()}
	}
	base := ref.Deref()
	if base.Kind != value.KindList {
		return &TypeError{Op: "concat!", Contract: "List, ...", Got: base.Kind.String()}
	}
	items := append([]value.Value(nil), base.List()...)
	for _, a := range args[1:] {
		a = a.Deref()
		if a.Kind != value.KindList {
			return &TypeError{Op: "concat!", Contract: "List, List, ...", Got: a.Kind.String()}
		}
		items = append(items, a.List()...)
	}
	updated := value.List(items)
	*ref.Reference() = updated
	return ctx.push(updated)
}

func popListIndex(op string, base value.Value) ([]value.Value, error) {
	if base.Kind != value.KindList {
		return nil, &TypeError{Op: op, Contract: "List, Number", Got: base.Kind.String()}
	}
	return base.List(), nil
}

// normalizeIndex applies Python-style negative indexing (an index counts
// back from the end) before the caller's range check, matching POP_LIST,
// POP_LIST_IN_PLACE and AT in the ground-truth VM.
func normalizeIndex(idx, size int) int {
	if idx < 0 {
		return size + idx
	}
	return idx
}

func (ctx *Context) opPopList(n int) error {
	args, err := ctx.popN(n)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return &TypeError{Op: "pop", Contract: "List, Number", Got: "arity"}
	}
	base := args[0].Deref()
	items, err := popListIndex("pop", base)
	if err != nil {
		return err
	}
	idxv := args[1].Deref()
	if idxv.Kind != value.KindNumber {
		return &TypeError{Op: "pop", Contract: "List, Number", Got: base.Kind.String() + ", " + idxv.Kind.String()}
	}
	idx := normalizeIndex(int(idxv.Number()), len(items))
	if idx < 0 || idx >= len(items) {
		return &IndexError{Op: "pop", Index: int(idxv.Number()), Size: len(items)}
	}
	out := make([]value.Value, 0, len(items)-1)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	return ctx.push(value.List(out))
}

func (ctx *Context) opPopListBang(n int) error {
	args, err := ctx.popN(n)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return &TypeError{Op: "pop!", Contract: "Reference, Number", Got: "arity"}
	}
	ref := args[0]
	if ref.Kind != value.KindReference {
		return &TypeError{Op: "pop!", Contract: "a mutable (Reference) List, Number", Got: ref.Kind.String()}
	}
	base := ref.Deref()
	items, err := popListIndex("pop!", base)
	if err != nil {
		return err
	}
	idxv := args[1].Deref()
	if idxv.Kind != value.KindNumber {
		return &TypeError{Op: "pop!", Contract: "List, Number", Got: base.Kind.String() + ", " + idxv.Kind.String()}
	}
	idx := normalizeIndex(int(idxv.Number()), len(items))
	if idx < 0 || idx >= len(items) {
		return &IndexError{Op: "pop!", Index: int(idxv.Number()), Size: len(items)}
	}
	out := make([]value.Value, 0, len(items)-1)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	updated := value.List(out)
	*ref.Reference() = updated
	return ctx.push(updated)
}

func (ctx *Context) opLen() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	v = v.Deref()
	switch v.Kind {
	case value.KindList:
		return ctx.push(value.Number(float64(len(v.List()))))
	case value.KindString:
		return ctx.push(value.Number(float64(len(v.Str()))))
	default:
		return &TypeError{Op: "len", Contract: "List or String", Got: v.Kind.String()}
	}
}

func (ctx *Context) opEmpty() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	v = v.Deref()
	switch v.Kind {
	case value.KindList:
		return ctx.push(value.Bool(len(v.List()) == 0))
	case value.KindString:
		return ctx.push(value.Bool(len(v.Str()) == 0))
	default:
		return &TypeError{Op: "empty?", Contract: "List or String", Got: v.Kind.String()}
	}
}

func (ctx *Context) opHead() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	v = v.Deref()
	switch v.Kind {
	case value.KindList:
		items := v.List()
		if len(items) == 0 {
			return ctx.push(value.Nil)
		}
		return ctx.push(items[0])
	case value.KindString:
		if len(v.Str()) == 0 {
			return ctx.push(value.Nil)
		}
		return ctx.push(value.String(string([]rune(v.Str())[0])))
	default:
		return &TypeError{Op: "head", Contract: "List or String", Got: v.Kind.String()}
	}
}

func (ctx *Context) opTail() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	v = v.Deref()
	switch v.Kind {
	case value.KindList:
		items := v.List()
		if len(items) == 0 {
			return ctx.push(value.List(nil))
		}
		return ctx.push(value.List(append([]value.Value(nil), items[1:]...)))
	case value.KindString:
		r := []rune(v.Str())
		if len(r) == 0 {
			return ctx.push(value.String(""))
		}
		return ctx.push(value.String(string(r[1:])))
	default:
		return &TypeError{Op: "tail", Contract: "List or String", Got: v.Kind.String()}
	}
}

func (ctx *Context) opIsNil() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	return ctx.push(value.Bool(v.Deref().Kind == value.KindNil))
}

func (ctx *Context) opNot() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	return ctx.push(value.Bool(!v.Truthy()))
}

func (ctx *Context) opAssert() error {
	msg, err := ctx.pop()
	if err != nil {
		return err
	}
	cond, err := ctx.pop()
	if err != nil {
		return err
	}
	if !cond.Truthy() {
		return &AssertionFailed{Message: msg.Deref().String()}
	}
	return ctx.push(value.Nil)
}

func (ctx *Context) opToNum() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	v = v.Deref()
	switch v.Kind {
	case value.KindNumber:
		return ctx.push(v)
	case value.KindString:
		f, perr := strconv.ParseFloat(v.Str(), 64)
		if perr != nil {
			return &TypeError{Op: "toNumber", Contract: "a numeric String", Got: v.Str()}
		}
		return ctx.push(value.Number(f))
	default:
		return &TypeError{Op: "toNumber", Contract: "Number or String", Got: v.Kind.String()}
	}
}

func (ctx *Context) opToStr() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	return ctx.push(value.String(v.Deref().String()))
}

func (ctx *Context) opAt() error {
	idxv, err := ctx.pop()
	if err != nil {
		return err
	}
	base, err := ctx.pop()
	if err != nil {
		return err
	}
	base, idxv = base.Deref(), idxv.Deref()
	if idxv.Kind != value.KindNumber {
		return &TypeError{Op: "@", Contract: "(List or String), Number", Got: base.Kind.String() + ", " + idxv.Kind.String()}
	}
	raw := int(idxv.Number())
	switch base.Kind {
	case value.KindList:
		items := base.List()
		idx := normalizeIndex(raw, len(items))
		if idx < 0 || idx >= len(items) {
			return &IndexError{Op: "@", Index: raw, Size: len(items)}
		}
		return ctx.push(items[idx])
	case value.KindString:
		r := []rune(base.Str())
		idx := normalizeIndex(raw, len(r))
		if idx < 0 || idx >= len(r) {
			return &IndexError{Op: "@", Index: raw, Size: len(r)}
		}
		return ctx.push(value.String(string(r[idx])))
	default:
		return &TypeError{Op: "@", Contract: "List or String", Got: base.Kind.String()}
	}
}

func (ctx *Context) opType() error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	return ctx.push(value.String(v.Deref().Kind.String()))
}

func (ctx *Context) opHasField() error {
	name, err := ctx.pop()
	if err != nil {
		return err
	}
	obj, err := ctx.pop()
	if err != nil {
		return err
	}
	obj, name = obj.Deref(), name.Deref()
	if obj.Kind != value.KindClosure {
		return &TypeError{Op: "hasField", Contract: "Closure, String", Got: obj.Kind.String() + ", " + name.Kind.String()}
	}
	if name.Kind != value.KindString {
		return &TypeError{Op: "hasField", Contract: "Closure, String", Got: obj.Kind.String() + ", " + name.Kind.String()}
	}
	id, ok := ctx.vm.symbolID(name.Str())
	if !ok {
		return ctx.push(value.False)
	}
	scope := obj.Closure().Scope
	if scope == nil {
		return ctx.push(value.False)
	}
	_, found := scope.Get(id)
	return ctx.push(value.Bool(found))
}
