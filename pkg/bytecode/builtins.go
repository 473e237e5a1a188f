package bytecode

import "time"

// Builtins returns the native functions every session starts with.
// Each call returns fresh *Native values.
func Builtins() []*Native {
	return []*Native{
		{Name: "len", Arity: 1, Fn: builtinLen},
		{Name: "type", Arity: 1, Fn: builtinType},
		{Name: "clock", Arity: 0, Fn: builtinClock},
		{Name: "assert", Arity: -1, Fn: builtinAssert},
		{Name: "push", Arity: 2, Fn: builtinPush},
		{Name: "pop", Arity: 1, Fn: builtinPop},
		{Name: "str", Arity: 1, Fn: builtinStr},
	}
}

// BuiltinSignatures documents the builtins for editor tooling.
var BuiltinSignatures = map[string]string{
	"len":    "len(value) -> number: length of an array, or of a string in bytes",
	"type":   "type(value) -> string: name of the value's type",
	"clock":  "clock() -> number: seconds since the Unix epoch",
	"assert": "assert(cond, message?) -> nil: fails when cond is falsy",
	"push":   "push(array, value) -> array: appends value in place",
	"pop":    "pop(array) -> value: removes and returns the last element",
	"str":    "str(value) -> string: printed representation of value",
}

func builtinLen(args []Value) (Value, error) {
	switch v := args[0]; v.Kind() {
	case KindArray:
		return NumberValue(float64(len(v.AsArray().Elems))), nil
	case KindString:
		return NumberValue(float64(len(v.AsString()))), nil
	default:
		return Nil, Errorf(TypeError, "object of type '%s' has no len()", v.Kind())
	}
}

func builtinType(args []Value) (Value, error) {
	return StringValue(args[0].Kind().String()), nil
}

func builtinClock(args []Value) (Value, error) {
	return NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

func builtinAssert(args []Value) (Value, error) {
	switch len(args) {
	case 1:
		if !args[0].Truthy() {
			return Nil, Errorf(AssertionError, "assertion failed")
		}
	case 2:
		if !args[0].Truthy() {
			return Nil, Errorf(AssertionError, "%s", args[1].String())
		}
	default:
		return Nil, Errorf(ArityError, "assert() takes 1 or 2 arguments (%d given)", len(args))
	}
	return Nil, nil
}

func builtinPush(args []Value) (Value, error) {
	arr := args[0].AsArray()
	if arr == nil {
		return Nil, Errorf(TypeError, "push() expects an array, got %s", args[0].Kind())
	}
	arr.Elems = append(arr.Elems, args[1])
	return args[0], nil
}

func builtinPop(args []Value) (Value, error) {
	arr := args[0].AsArray()
	if arr == nil {
		return Nil, Errorf(TypeError, "pop() expects an array, got %s", args[0].Kind())
	}
	if len(arr.Elems) == 0 {
		return Nil, Errorf(IndexError, "pop from empty array")
	}
	last := arr.Elems[len(arr.Elems)-1]
	arr.Elems = arr.Elems[:len(arr.Elems)-1]
	return last, nil
}

func builtinStr(args []Value) (Value, error) {
	return StringValue(args[0].String()), nil
}

// DefineBuiltins binds every builtin into globals.
func DefineBuiltins(globals *Globals) {
	for _, n := range Builtins() {
		globals.Define(n.Name, NativeValue(n))
	}
}
