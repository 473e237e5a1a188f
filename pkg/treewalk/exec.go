package treewalk

import (
	"fmt"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Statement execution
// ---------------------------------------------------------------------------

type controlKind int

const (
	controlNone controlKind = iota
	controlReturn
	controlBreak
	controlContinue
)

// controlFlow is how a statement finished. val is set for controlReturn.
type controlFlow struct {
	kind controlKind
	val  bytecode.Value
}

func (in *Interpreter) exec(stmt compiler.Stmt) (controlFlow, error) {
	if in.Trace && log.AllowLevel(commonlog.Debug) {
		log.Debugf("line %d: %T (depth %d)", stmt.Pos().Line, stmt, len(in.frames))
	}

	switch s := stmt.(type) {
	case *compiler.ExprStmt:
		_, err := in.eval(s.Expr)
		return controlFlow{}, err

	case *compiler.VarDecl:
		v := bytecode.Nil
		if s.Init != nil {
			var err error
			if v, err = in.eval(s.Init); err != nil {
				return controlFlow{}, err
			}
		}
		in.declare(s.Name, v)
		return controlFlow{}, nil

	case *compiler.FuncDecl:
		fn := &Function{Decl: s, Local: !in.atGlobalScope()}
		in.declare(s.Name, bytecode.FunctionValue(fn))
		return controlFlow{}, nil

	case *compiler.Block:
		return in.execBlock(s)

	case *compiler.If:
		cond, err := in.eval(s.Cond)
		if err != nil {
			return controlFlow{}, err
		}
		if cond.Truthy() {
			return in.execBlock(s.Then)
		}
		if s.Else != nil {
			return in.exec(s.Else)
		}
		return controlFlow{}, nil

	case *compiler.While:
		return in.execWhile(s)

	case *compiler.For:
		return in.execFor(s)

	case *compiler.Print:
		args := make([]bytecode.Value, len(s.Args))
		for i, arg := range s.Args {
			v, err := in.eval(arg)
			if err != nil {
				return controlFlow{}, err
			}
			args[i] = v
		}
		return controlFlow{}, at(s, in.print(args))

	case *compiler.Return:
		v := bytecode.Nil
		if s.Value != nil {
			var err error
			if v, err = in.eval(s.Value); err != nil {
				return controlFlow{}, err
			}
		}
		return controlFlow{kind: controlReturn, val: v}, nil

	case *compiler.Break:
		return controlFlow{kind: controlBreak}, nil

	case *compiler.Continue:
		return controlFlow{kind: controlContinue}, nil

	default:
		return controlFlow{}, fmt.Errorf("unsupported statement %T", stmt)
	}
}

// execBlock runs b in a new scope and stops at the first statement that
// transfers control.
func (in *Interpreter) execBlock(b *compiler.Block) (controlFlow, error) {
	in.pushScope()
	defer in.popScope()

	for _, stmt := range b.Stmts {
		ctl, err := in.exec(stmt)
		if err != nil || ctl.kind != controlNone {
			return ctl, err
		}
	}
	return controlFlow{}, nil
}

func (in *Interpreter) execWhile(s *compiler.While) (controlFlow, error) {
	for {
		cond, err := in.eval(s.Cond)
		if err != nil {
			return controlFlow{}, err
		}
		if !cond.Truthy() {
			return controlFlow{}, nil
		}
		ctl, err := in.execBlock(s.Body)
		if err != nil {
			return controlFlow{}, err
		}
		switch ctl.kind {
		case controlBreak:
			return controlFlow{}, nil
		case controlReturn:
			return ctl, nil
		}
	}
}

// execFor runs `for (init; cond; incr) body` with init in its own scope
// around the loop. continue still runs the increment.
func (in *Interpreter) execFor(s *compiler.For) (controlFlow, error) {
	in.pushScope()
	defer in.popScope()

	if s.Init != nil {
		if _, err := in.exec(s.Init); err != nil {
			return controlFlow{}, err
		}
	}
	for {
		if s.Cond != nil {
			cond, err := in.eval(s.Cond)
			if err != nil {
				return controlFlow{}, err
			}
			if !cond.Truthy() {
				return controlFlow{}, nil
			}
		}
		ctl, err := in.execBlock(s.Body)
		if err != nil {
			return controlFlow{}, err
		}
		switch ctl.kind {
		case controlBreak:
			return controlFlow{}, nil
		case controlReturn:
			return ctl, nil
		}
		if s.Incr != nil {
			if _, err := in.eval(s.Incr); err != nil {
				return controlFlow{}, err
			}
		}
	}
}
