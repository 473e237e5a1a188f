package bytecode

import (
	"math"
	"strings"
)

// The operations below implement the language's operator semantics and are
// shared by the VM and the tree-walking interpreter.

// Add adds two numbers or concatenates two strings.
func Add(a, b Value) (Value, error) {
	switch {
	case a.kind == KindNumber && b.kind == KindNumber:
		return NumberValue(a.num + b.num), nil
	case a.kind == KindString && b.kind == KindString:
		return StringValue(a.str + b.str), nil
	}
	return Nil, operandError("+", a, b)
}

// Arith applies one of - * / % to two numbers.
func Arith(op string, a, b Value) (Value, error) {
	if a.kind != KindNumber || b.kind != KindNumber {
		return Nil, operandError(op, a, b)
	}
	switch op {
	case "-":
		return NumberValue(a.num - b.num), nil
	case "*":
		return NumberValue(a.num * b.num), nil
	case "/":
		if b.num == 0 {
			return Nil, Errorf(ArithmeticError, "division by zero")
		}
		return NumberValue(a.num / b.num), nil
	case "%":
		if b.num == 0 {
			return Nil, Errorf(ArithmeticError, "modulo by zero")
		}
		return NumberValue(math.Mod(a.num, b.num)), nil
	}
	return Nil, Errorf(TypeError, "unknown operator %s", op)
}

// Binary dispatches an arithmetic or comparison operator by its source
// spelling.
func Binary(op string, a, b Value) (Value, error) {
	switch op {
	case "+":
		return Add(a, b)
	case "-", "*", "/", "%":
		return Arith(op, a, b)
	case "==":
		return BoolValue(Equal(a, b)), nil
	case "!=":
		return BoolValue(!Equal(a, b)), nil
	default:
		return Compare(op, a, b)
	}
}

// Compare orders two numbers, or two strings lexicographically.
func Compare(op string, a, b Value) (Value, error) {
	var c int
	switch {
	case a.kind == KindNumber && b.kind == KindNumber:
		switch {
		case a.num < b.num:
			c = -1
		case a.num > b.num:
			c = 1
		case a.num != b.num:
			// NaN compares false under every ordering operator.
			return BoolValue(false), nil
		}
	case a.kind == KindString && b.kind == KindString:
		c = strings.Compare(a.str, b.str)
	default:
		return Nil, Errorf(TypeError, "cannot compare %s and %s with %s", a.kind, b.kind, op)
	}
	switch op {
	case "<":
		return BoolValue(c < 0), nil
	case "<=":
		return BoolValue(c <= 0), nil
	case ">":
		return BoolValue(c > 0), nil
	case ">=":
		return BoolValue(c >= 0), nil
	}
	return Nil, Errorf(TypeError, "unknown operator %s", op)
}

// Negate implements unary minus.
func Negate(v Value) (Value, error) {
	if v.kind != KindNumber {
		return Nil, Errorf(TypeError, "operand of unary - must be a number, got %s", v.kind)
	}
	return NumberValue(-v.num), nil
}

// IndexGet reads arr[idx].
func IndexGet(arr, idx Value) (Value, error) {
	a, i, err := checkIndex(arr, idx)
	if err != nil {
		return Nil, err
	}
	return a.Elems[i], nil
}

// IndexSet writes arr[idx] = v in place.
func IndexSet(arr, idx, v Value) error {
	a, i, err := checkIndex(arr, idx)
	if err != nil {
		return err
	}
	a.Elems[i] = v
	return nil
}

func checkIndex(arr, idx Value) (*Array, int, error) {
	a := arr.AsArray()
	if a == nil {
		return nil, 0, Errorf(TypeError, "cannot index a value of type %s", arr.kind)
	}
	if idx.kind != KindNumber {
		return nil, 0, Errorf(TypeError, "array index must be a number, got %s", idx.kind)
	}
	n := idx.num
	if n != math.Trunc(n) {
		return nil, 0, Errorf(IndexError, "array index must be an integer, got %s", FormatNumber(n))
	}
	if n < 0 || n >= float64(len(a.Elems)) {
		return nil, 0, Errorf(IndexError, "index %s out of bounds for array of length %d", FormatNumber(n), len(a.Elems))
	}
	return a, int(n), nil
}

func operandError(op string, a, b Value) error {
	return Errorf(TypeError, "unsupported operand types for %s: %s and %s", op, a.kind, b.kind)
}

// CheckArity validates argc against a callee's declared arity.
func CheckArity(name string, arity, argc int) error {
	if arity >= 0 && arity != argc {
		return Errorf(ArityError, "%s() takes %d argument%s (%d given)", name, arity, plural(arity), argc)
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
