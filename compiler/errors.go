package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorKind is the pipeline stage that rejected the source.
type ErrorKind int

const (
	LexError ErrorKind = iota
	ParseError
	CompileError
	Warning
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case ParseError:
		return "ParseError"
	case CompileError:
		return "CompileError"
	case Warning:
		return "Warning"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a single static diagnostic.
type Error struct {
	Kind    ErrorKind
	Pos     Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Pos.Line, e.Kind, e.Message)
}

// ErrorList collects every diagnostic found before execution.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Err returns nil for an empty list so callers can use it as an error.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Sort orders diagnostics by position, keeping the stage order for ties.
func (l ErrorList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Pos.Line != l[j].Pos.Line {
			return l[i].Pos.Line < l[j].Pos.Line
		}
		return l[i].Pos.Column < l[j].Pos.Column
	})
}

func (l *ErrorList) add(kind ErrorKind, pos Position, format string, args ...any) {
	*l = append(*l, &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}
