package bytecode

import "fmt"

// ErrorKind classifies a runtime failure.
type ErrorKind int

const (
	TypeError ErrorKind = iota
	ArithmeticError
	NameError
	IndexError
	ArityError
	CallError
	AssertionError
	StackOverflow
)

func (k ErrorKind) String() string {
	switch k {
	case TypeError:
		return "TypeError"
	case ArithmeticError:
		return "ArithmeticError"
	case NameError:
		return "NameError"
	case IndexError:
		return "IndexError"
	case ArityError:
		return "ArityError"
	case CallError:
		return "CallError"
	case AssertionError:
		return "AssertionError"
	case StackOverflow:
		return "StackOverflow"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RuntimeError is the terminal result of a failed execution.
// Line is 0 when the failing point has no source location.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Line    int
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a RuntimeError without a line; the executing backend fills
// it in when the error leaves the failing instruction.
func Errorf(kind ErrorKind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
