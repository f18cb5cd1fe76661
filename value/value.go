// Package value implements the tagged value representation shared by the
// compiler's constant table and the virtual machine's stack, scopes and
// closures.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value. Order matters: Printable
// uses the range check "kind <= KindUser" to decide whether a value is
// directly printable without dereferencing a Reference or resolving an
// InstPtr; keep this ordering stable. The bytecode value table does not
// store Kind values: it uses its own NUMBER/STRING/FUNC tags.
type Kind uint8

const (
	KindList Kind = iota
	KindNumber
	KindString
	KindPageAddr
	KindCProc
	KindClosure
	KindUser

	KindNil
	KindTrue
	KindFalse
	KindUndefined
	KindReference
	KindInstPtr
)

var kindNames = [...]string{
	KindList:      "List",
	KindNumber:    "Number",
	KindString:    "String",
	KindPageAddr:  "Function",
	KindCProc:     "CProc",
	KindClosure:   "Closure",
	KindUser:      "UserType",
	KindNil:       "Nil",
	KindTrue:      "Bool",
	KindFalse:     "Bool",
	KindUndefined: "Undefined",
	KindReference: "Reference",
	KindInstPtr:   "InstPtr",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Printable reports whether a value of this kind can be stringified directly
// without the VM resolving it through a Reference or an InstPtr first.
func Printable(k Kind) bool { return k <= KindUser }

// CProc is the calling convention for native builtins and plugin functions:
// given the argument list (bottom to top, in call order) and the requesting
// VM context (passed as an opaque interface to avoid an import cycle with
// package vm), it returns a result value or an error.
type CProc func(args []Value, ctx any) (Value, error)

// Closure pairs a captured Scope with the address of the page implementing
// the lambda body.
type Closure struct {
	Scope *Scope
	Page  uint16
}

// User is the catch-all variant plugins use to expose host-defined data to
// ArkScript code. TypeID distinguishes user types registered by different
// plugins; CFS ("call-for-show") is the optional stringifier a plugin
// registers for its type.
type User struct {
	TypeID uint16
	CFS    func(data any) string
	Data   any
}

// Value is the tagged sum described by the data model: at most one of the
// typed fields is meaningful, selected by Kind. Const marks a binding
// produced by `let` (immutable) as opposed to `mut`.
type Value struct {
	Kind  Kind
	Const bool

	number  float64
	str     string
	page    uint16
	proc    CProc
	closure Closure
	user    User
	list    []Value
	ref     *Value
	instPtr uint32 // packed (pp<<16 | ip) instruction pointer snapshot
}

// Nil, True and False are the three singleton non-numeric booleans/null.
var (
	Nil       = Value{Kind: KindNil}
	True      = Value{Kind: KindTrue}
	False     = Value{Kind: KindFalse}
	Undefined = Value{Kind: KindUndefined}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Number(f float64) Value { return Value{Kind: KindNumber, number: f} }

func String(s string) Value { return Value{Kind: KindString, str: s} }

func PageAddr(p uint16) Value { return Value{Kind: KindPageAddr, page: p} }

func NativeProc(fn CProc) Value { return Value{Kind: KindCProc, proc: fn} }

func MakeClosure(c Closure) Value { return Value{Kind: KindClosure, closure: c} }

func MakeUser(u User) Value { return Value{Kind: KindUser, user: u} }

func List(items []Value) Value { return Value{Kind: KindList, list: items} }

func Ref(v *Value) Value { return Value{Kind: KindReference, ref: v} }

// InstPtr encodes a saved (page pointer, instruction pointer) pair as pushed
// onto the VM stack by CALL and consumed by RET.
func InstPtr(pp, ip uint16) Value {
	return Value{Kind: KindInstPtr, instPtr: uint32(pp)<<16 | uint32(ip)}
}

func (v Value) Number() float64 { return v.number }
func (v Value) Str() string     { return v.str }
func (v Value) PageAddr() uint16 {
	return v.page
}
func (v Value) Proc() CProc        { return v.proc }
func (v Value) Closure() Closure   { return v.closure }
func (v Value) User() User         { return v.user }
func (v Value) List() []Value      { return v.list }
func (v Value) Reference() *Value  { return v.ref }
func (v Value) InstPtr() (pp, ip uint16) {
	return uint16(v.instPtr >> 16), uint16(v.instPtr)
}

// Deref follows Reference chains until it reaches a non-reference value.
func (v Value) Deref() Value {
	for v.Kind == KindReference && v.ref != nil {
		v = *v.ref
	}
	return v
}

// Truthy implements runtime truthiness: only Nil and False are falsy.
func (v Value) Truthy() bool {
	switch v.Deref().Kind {
	case KindNil, KindFalse:
		return false
	default:
		return true
	}
}

func (v Value) IsFunction() bool {
	switch v.Kind {
	case KindPageAddr, KindCProc, KindClosure:
		return true
	default:
		return false
	}
}

// Equal implements ArkScript's `=` over two dereferenced values.
func Equal(a, b Value) bool {
	a, b = a.Deref(), b.Deref()
	if a.Kind != b.Kind {
		// Bool/Nil equality across True/False/Nil is still kind-distinct by design.
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.number == b.number
	case KindString:
		return a.str == b.str
	case KindPageAddr:
		return a.page == b.page
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindNil, KindTrue, KindFalse, KindUndefined:
		return true
	default:
		return a.ref == b.ref && a.page == b.page
	}
}

// Less implements ArkScript's `<` for Number and String values only; callers
// are expected to have type-checked already (see vm.TypeError).
func Less(a, b Value) bool {
	a, b = a.Deref(), b.Deref()
	switch a.Kind {
	case KindNumber:
		return a.number < b.number
	case KindString:
		return a.str < b.str
	default:
		return false
	}
}

// String renders a value the way the VM's printer does for directly
// printable kinds (see Printable); it is also used by error messages.
func (v Value) String() string {
	v = v.Deref()
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindUndefined:
		return "undefined"
	case KindNumber:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case KindString:
		return v.str
	case KindPageAddr:
		return fmt.Sprintf("Function @ %d", v.page)
	case KindCProc:
		return "CProc"
	case KindClosure:
		return fmt.Sprintf("Closure @ %d", v.closure.Page)
	case KindUser:
		if v.user.CFS != nil {
			return v.user.CFS(v.user.Data)
		}
		return "UserType"
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case KindReference:
		return "&" + v.String()
	case KindInstPtr:
		pp, ip := v.InstPtr()
		return fmt.Sprintf("InstPtr(%d,%d)", pp, ip)
	default:
		return "?"
	}
}
