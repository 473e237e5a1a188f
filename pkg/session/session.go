// Package session runs myl source against a persistent set of globals.
//
// A Session owns the globals table shared by successive runs, picks the
// execution backend and carries the pipeline from source text to result:
// parse, compile, execute. The first failing stage ends the run; static
// failures come back as a compiler.ErrorList and execution failures as a
// *bytecode.RuntimeError.
package session

import (
	"fmt"
	"io"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
	"github.com/chazu/myl/pkg/treewalk"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("myl.session")

// Backend selects how compiled programs are executed.
type Backend string

const (
	BackendVM   Backend = "vm"
	BackendTree Backend = "tree"
)

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(name); b {
	case BackendVM, BackendTree:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want %q or %q)", name, BackendVM, BackendTree)
	}
}

// Options configures a new Session.
type Options struct {
	Backend Backend // defaults to BackendVM
	Trace   bool    // log every instruction or statement at debug level
	REPL    bool    // return the value of a trailing expression statement
}

// Session is a sequence of runs sharing one globals table.
type Session struct {
	out     io.Writer
	opts    Options
	globals *bytecode.Globals

	vm   *bytecode.VM
	tree *treewalk.Interpreter
}

// New creates a session that prints to out with the builtins defined.
func New(out io.Writer, opts Options) *Session {
	if opts.Backend == "" {
		opts.Backend = BackendVM
	}
	s := &Session{out: out, opts: opts}
	s.Reset()
	return s
}

// Reset discards every global and starts over with only the builtins.
func (s *Session) Reset() {
	s.globals = bytecode.NewGlobals()
	bytecode.DefineBuiltins(s.globals)

	s.vm = bytecode.NewVM(s.globals, s.out)
	s.vm.Trace = s.opts.Trace
	s.tree = treewalk.New(s.globals, s.out)
	s.tree.Trace = s.opts.Trace
	s.tree.REPL = s.opts.REPL

	log.Debugf("session reset (%d builtins)", s.globals.Len())
}

// Backend returns the active backend.
func (s *Session) Backend() Backend {
	return s.opts.Backend
}

// SetBackend switches backends. Globals are kept; functions declared under
// the other backend stay visible but calling them is a CallError.
func (s *Session) SetBackend(b Backend) {
	if b != s.opts.Backend {
		log.Debugf("backend %s -> %s", s.opts.Backend, b)
	}
	s.opts.Backend = b
}

// Globals returns the session's globals table.
func (s *Session) Globals() *bytecode.Globals {
	return s.globals
}

// Compile parses and compiles source without running it.
func (s *Session) Compile(source string) (*compiler.Program, *bytecode.Function, error) {
	prog, errs := compiler.Parse(source)
	if len(errs) > 0 {
		return nil, nil, errs
	}
	fn, errs := compiler.Compile(prog, compiler.Options{REPL: s.opts.REPL})
	if len(errs) > 0 {
		return prog, nil, errs
	}
	return prog, fn, nil
}

// Run executes source on the active backend. The compiler runs first on
// either backend so both reject the same programs.
func (s *Session) Run(source string) (bytecode.Value, error) {
	prog, fn, err := s.Compile(source)
	if err != nil {
		log.Debugf("static errors: %v", err)
		return bytecode.Nil, err
	}

	var v bytecode.Value
	switch s.opts.Backend {
	case BackendTree:
		v, err = s.tree.Run(prog)
	default:
		v, err = s.vm.Run(fn)
	}
	if err != nil {
		log.Debugf("run failed on %s backend: %v", s.opts.Backend, err)
		return bytecode.Nil, err
	}
	return v, nil
}

// Disassemble compiles source and returns the listing of every chunk.
func (s *Session) Disassemble(source string) (string, error) {
	_, fn, err := s.Compile(source)
	if err != nil {
		return "", err
	}
	return bytecode.DisassembleAll(fn), nil
}
