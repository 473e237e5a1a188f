package treewalk

import (
	"fmt"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Expression evaluation
// ---------------------------------------------------------------------------

// compoundOps maps a compound assignment to its arithmetic operator.
var compoundOps = map[string]string{
	"+=": "+",
	"-=": "-",
	"*=": "*",
	"/=": "/",
}

func (in *Interpreter) eval(expr compiler.Expr) (bytecode.Value, error) {
	switch e := expr.(type) {
	case *compiler.NumberLiteral:
		return bytecode.NumberValue(e.Value), nil

	case *compiler.StringLiteral:
		return bytecode.StringValue(e.Value), nil

	case *compiler.BoolLiteral:
		return bytecode.BoolValue(e.Value), nil

	case *compiler.NilLiteral:
		return bytecode.Nil, nil

	case *compiler.Variable:
		v, err := in.lookup(e.Name)
		return v, at(e, err)

	case *compiler.Grouping:
		return in.eval(e.Expr)

	case *compiler.Assign:
		return in.evalAssign(e)

	case *compiler.Logical:
		left, err := in.eval(e.Left)
		if err != nil {
			return bytecode.Nil, err
		}
		if (e.Op == "or") == left.Truthy() {
			return left, nil
		}
		return in.eval(e.Right)

	case *compiler.Binary:
		left, err := in.eval(e.Left)
		if err != nil {
			return bytecode.Nil, err
		}
		right, err := in.eval(e.Right)
		if err != nil {
			return bytecode.Nil, err
		}
		v, err := bytecode.Binary(e.Op, left, right)
		return v, at(e, err)

	case *compiler.Unary:
		operand, err := in.eval(e.Operand)
		if err != nil {
			return bytecode.Nil, err
		}
		if e.Op == "!" {
			return bytecode.BoolValue(!operand.Truthy()), nil
		}
		v, err := bytecode.Negate(operand)
		return v, at(e, err)

	case *compiler.Call:
		callee, err := in.eval(e.Callee)
		if err != nil {
			return bytecode.Nil, err
		}
		args := make([]bytecode.Value, len(e.Args))
		for i, arg := range e.Args {
			if args[i], err = in.eval(arg); err != nil {
				return bytecode.Nil, err
			}
		}
		v, err := in.call(callee, args)
		return v, at(e, err)

	case *compiler.ArrayLiteral:
		elems := make([]bytecode.Value, len(e.Elements))
		for i, elem := range e.Elements {
			v, err := in.eval(elem)
			if err != nil {
				return bytecode.Nil, err
			}
			elems[i] = v
		}
		return bytecode.ArrayValue(bytecode.NewArray(elems)), nil

	case *compiler.Index:
		arr, err := in.eval(e.Array)
		if err != nil {
			return bytecode.Nil, err
		}
		idx, err := in.eval(e.Index)
		if err != nil {
			return bytecode.Nil, err
		}
		v, err := bytecode.IndexGet(arr, idx)
		return v, at(e, err)

	default:
		return bytecode.Nil, fmt.Errorf("unsupported expression %T", expr)
	}
}

// evalAssign evaluates the target's subexpressions exactly once, also for
// compound operators on an index target.
func (in *Interpreter) evalAssign(e *compiler.Assign) (bytecode.Value, error) {
	arith, compound := compoundOps[e.Op]

	switch t := e.Target.(type) {
	case *compiler.Variable:
		var v bytecode.Value
		var err error
		if compound {
			var cur, rhs bytecode.Value
			if cur, err = in.lookup(t.Name); err != nil {
				return bytecode.Nil, at(t, err)
			}
			if rhs, err = in.eval(e.Value); err != nil {
				return bytecode.Nil, err
			}
			if v, err = bytecode.Binary(arith, cur, rhs); err != nil {
				return bytecode.Nil, at(e, err)
			}
		} else if v, err = in.eval(e.Value); err != nil {
			return bytecode.Nil, err
		}
		return v, at(e, in.assign(t.Name, v))

	case *compiler.Index:
		arr, err := in.eval(t.Array)
		if err != nil {
			return bytecode.Nil, err
		}
		idx, err := in.eval(t.Index)
		if err != nil {
			return bytecode.Nil, err
		}
		var v bytecode.Value
		if compound {
			var cur, rhs bytecode.Value
			if cur, err = bytecode.IndexGet(arr, idx); err != nil {
				return bytecode.Nil, at(t, err)
			}
			if rhs, err = in.eval(e.Value); err != nil {
				return bytecode.Nil, err
			}
			if v, err = bytecode.Binary(arith, cur, rhs); err != nil {
				return bytecode.Nil, at(e, err)
			}
		} else if v, err = in.eval(e.Value); err != nil {
			return bytecode.Nil, err
		}
		return v, at(e, bytecode.IndexSet(arr, idx, v))

	default:
		return bytecode.Nil, at(e, fmt.Errorf("invalid assignment target"))
	}
}
