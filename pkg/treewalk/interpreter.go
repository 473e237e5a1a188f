// Package treewalk executes myl programs directly from the AST.
//
// It shares the value model, the builtins, the operator semantics and the
// runtime error kinds of package bytecode, and resolves names the way the
// compiler does: top-level declarations are globals, everything declared in
// a block or function is local to the running function, and locals of an
// enclosing function are out of reach.
package treewalk

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("myl.treewalk")

// Function is a user function declared in a program run by the tree-walker.
type Function struct {
	Decl  *compiler.FuncDecl
	Local bool // declared inside a block or function; may name itself
}

func (f *Function) FuncName() string { return f.Decl.Name }
func (f *Function) Arity() int       { return len(f.Decl.Params) }

// frame is one active function invocation.
type frame struct {
	fn     *Function // nil for top-level code
	scopes []map[string]bytecode.Value
}

// Interpreter walks the AST of a program.
type Interpreter struct {
	globals *bytecode.Globals
	out     io.Writer
	frames  []*frame

	// REPL makes a trailing top-level expression statement the run's
	// result, matching compiler.Options.REPL.
	REPL bool

	// Trace logs every statement at debug level.
	Trace bool
}

// New creates an interpreter that resolves globals in globals and prints
// to out.
func New(globals *bytecode.Globals, out io.Writer) *Interpreter {
	return &Interpreter{globals: globals, out: out}
}

// FrameDepth returns the number of active frames. It is zero between runs.
func (in *Interpreter) FrameDepth() int {
	return len(in.frames)
}

// Run executes prog. It returns the value of a top-level return (or, in
// REPL mode, of a trailing expression statement) and nil otherwise.
func (in *Interpreter) Run(prog *compiler.Program) (bytecode.Value, error) {
	in.frames = append(in.frames[:0], &frame{})
	defer func() { in.frames = in.frames[:0] }()

	last := len(prog.Stmts) - 1
	for i, stmt := range prog.Stmts {
		if es, ok := stmt.(*compiler.ExprStmt); ok && in.REPL && i == last {
			v, err := in.eval(es.Expr)
			if err != nil {
				return bytecode.Nil, runtimeError(err)
			}
			return v, nil
		}
		ctl, err := in.exec(stmt)
		if err != nil {
			return bytecode.Nil, runtimeError(err)
		}
		if ctl.kind == controlReturn {
			return ctl.val, nil
		}
	}
	return bytecode.Nil, nil
}

// runtimeError turns any failure into the *bytecode.RuntimeError callers
// expect from either backend.
func runtimeError(err error) *bytecode.RuntimeError {
	var rerr *bytecode.RuntimeError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &bytecode.RuntimeError{Kind: bytecode.CallError, Message: err.Error()}
}

// at stamps the line of n on a runtime error that has none yet.
func at(n compiler.Node, err error) error {
	if err == nil {
		return nil
	}
	rerr := runtimeError(err)
	if rerr.Line == 0 {
		rerr.Line = n.Pos().Line
	}
	return rerr
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (in *Interpreter) current() *frame {
	return in.frames[len(in.frames)-1]
}

func (in *Interpreter) pushScope() {
	f := in.current()
	f.scopes = append(f.scopes, make(map[string]bytecode.Value))
}

func (in *Interpreter) popScope() {
	f := in.current()
	f.scopes = f.scopes[:len(f.scopes)-1]
}

// atGlobalScope reports whether a declaration here binds a global.
func (in *Interpreter) atGlobalScope() bool {
	return len(in.frames) == 1 && len(in.current().scopes) == 0
}

func (in *Interpreter) declare(name string, v bytecode.Value) {
	if in.atGlobalScope() {
		in.globals.Define(name, v)
		return
	}
	f := in.current()
	f.scopes[len(f.scopes)-1][name] = v
}

// lookup resolves name: locals of the running function, then the running
// local function's own name, then globals.
func (in *Interpreter) lookup(name string) (bytecode.Value, error) {
	f := in.current()
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if v, ok := f.scopes[i][name]; ok {
			return v, nil
		}
	}
	if f.fn != nil && f.fn.Local && f.fn.Decl.Name == name {
		return bytecode.FunctionValue(f.fn), nil
	}
	if v, ok := in.globals.Get(name); ok {
		return v, nil
	}
	return bytecode.Nil, bytecode.Errorf(bytecode.NameError, "undefined variable '%s'", name)
}

func (in *Interpreter) assign(name string, v bytecode.Value) error {
	f := in.current()
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if _, ok := f.scopes[i][name]; ok {
			f.scopes[i][name] = v
			return nil
		}
	}
	if !in.globals.Set(name, v) {
		return bytecode.Errorf(bytecode.NameError, "undefined variable '%s'", name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (in *Interpreter) call(callee bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
	switch callee.Kind() {
	case bytecode.KindFunction:
		fn, ok := callee.AsCallable().(*Function)
		if !ok {
			return bytecode.Nil, bytecode.Errorf(bytecode.CallError,
				"function '%s' was not declared in the tree-walking interpreter", callee.AsCallable().FuncName())
		}
		if err := bytecode.CheckArity(fn.FuncName(), fn.Arity(), len(args)); err != nil {
			return bytecode.Nil, err
		}
		if len(in.frames) >= bytecode.MaxFrames {
			return bytecode.Nil, bytecode.Errorf(bytecode.StackOverflow, "call depth exceeded %d frames", bytecode.MaxFrames)
		}
		return in.callFunction(fn, args)

	case bytecode.KindNative:
		n := callee.AsNative()
		if err := bytecode.CheckArity(n.Name, n.Arity, len(args)); err != nil {
			return bytecode.Nil, err
		}
		return n.Fn(args)

	default:
		return bytecode.Nil, bytecode.Errorf(bytecode.CallError, "can only call functions, got %s", callee.Kind())
	}
}

func (in *Interpreter) callFunction(fn *Function, args []bytecode.Value) (bytecode.Value, error) {
	params := make(map[string]bytecode.Value, len(args))
	for i, p := range fn.Decl.Params {
		params[p.Name] = args[i]
	}
	in.frames = append(in.frames, &frame{fn: fn, scopes: []map[string]bytecode.Value{params}})
	defer func() { in.frames = in.frames[:len(in.frames)-1] }()

	for _, stmt := range fn.Decl.Body.Stmts {
		ctl, err := in.exec(stmt)
		if err != nil {
			return bytecode.Nil, err
		}
		if ctl.kind == controlReturn {
			return ctl.val, nil
		}
	}
	return bytecode.Nil, nil
}

func (in *Interpreter) print(args []bytecode.Value) error {
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = v.String()
	}
	if _, err := fmt.Fprintln(in.out, strings.Join(parts, " ")); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}
