package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindFunction
	KindNative
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindBool:     "boolean",
	KindNumber:   "number",
	KindString:   "string",
	KindArray:    "array",
	KindFunction: "function",
	KindNative:   "function",
}

// String returns the type name reported by the type() builtin.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a runtime value shared by both execution backends.
// Scalars are stored inline; arrays, functions and natives are references.
type Value struct {
	kind Kind
	num  float64
	str  string
	ref  any
}

// Array is a mutable, resizable sequence. Arrays are shared by reference:
// every Value holding the same *Array observes index writes.
type Array struct {
	Elems []Value
}

// NewArray wraps elems in a new array object.
func NewArray(elems []Value) *Array {
	return &Array{Elems: elems}
}

// Callable is implemented by user-defined functions of either backend.
type Callable interface {
	FuncName() string
	Arity() int
}

// NativeFn is the Go signature of a builtin.
type NativeFn func(args []Value) (Value, error)

// Native is a builtin function. Arity -1 means variadic; the function
// checks its own argument count.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFn
}

// Nil is the nil value.
var Nil = Value{}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

// NumberValue returns a number value.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// StringValue returns a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// ArrayValue returns a value referencing arr.
func ArrayValue(arr *Array) Value {
	return Value{kind: KindArray, ref: arr}
}

// FunctionValue returns a value referencing a user-defined function.
func FunctionValue(fn Callable) Value {
	return Value{kind: KindFunction, ref: fn}
}

// NativeValue returns a value referencing a builtin.
func NativeValue(n *Native) Value {
	return Value{kind: KindNative, ref: n}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNil() bool       { return v.kind == KindNil }
func (v Value) IsNumber() bool    { return v.kind == KindNumber }
func (v Value) IsString() bool    { return v.kind == KindString }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsString() string  { return v.str }
func (v Value) AsBool() bool      { return v.kind == KindBool && v.num != 0 }

// AsArray returns the referenced array, or nil if v is not an array.
func (v Value) AsArray() *Array {
	arr, _ := v.ref.(*Array)
	return arr
}

// AsCallable returns the referenced user function, or nil.
func (v Value) AsCallable() Callable {
	if v.kind != KindFunction {
		return nil
	}
	fn, _ := v.ref.(Callable)
	return fn
}

// AsNative returns the referenced builtin, or nil.
func (v Value) AsNative() *Native {
	n, _ := v.ref.(*Native)
	return n
}

// Truthy reports whether v counts as true in a condition.
// Only nil and false are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.num != 0
	default:
		return true
	}
}

// Equal compares scalars by value and arrays, functions and natives by
// identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool, KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	default:
		return a.ref == b.ref
	}
}

// String returns the representation written by print.
func (v Value) String() string {
	var sb strings.Builder
	writeValue(&sb, v, false, nil)
	return sb.String()
}

// Repr is like String but quotes strings, as they appear inside arrays.
func (v Value) Repr() string {
	var sb strings.Builder
	writeValue(&sb, v, true, nil)
	return sb.String()
}

func writeValue(sb *strings.Builder, v Value, quote bool, seen map[*Array]bool) {
	switch v.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.num != 0))
	case KindNumber:
		sb.WriteString(FormatNumber(v.num))
	case KindString:
		if quote {
			sb.WriteString(strconv.Quote(v.str))
		} else {
			sb.WriteString(v.str)
		}
	case KindArray:
		arr := v.AsArray()
		if seen[arr] {
			sb.WriteString("[...]")
			return
		}
		if seen == nil {
			seen = make(map[*Array]bool)
		}
		seen[arr] = true
		sb.WriteByte('[')
		for i, e := range arr.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, e, true, seen)
		}
		sb.WriteByte(']')
		delete(seen, arr)
	case KindFunction:
		fmt.Fprintf(sb, "<fn %s>", v.AsCallable().FuncName())
	case KindNative:
		fmt.Fprintf(sb, "<native fn %s>", v.AsNative().Name)
	}
}

// FormatNumber renders integral numbers without a fractional part and
// everything else with the shortest exact representation.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// IsCallable reports whether v can appear in call position.
func (v Value) IsCallable() bool {
	return v.kind == KindFunction || v.kind == KindNative
}
