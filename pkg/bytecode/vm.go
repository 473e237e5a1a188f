package bytecode

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"
)

// MaxFrames bounds the call depth; exceeding it is a StackOverflow.
const MaxFrames = 256

// State is the lifecycle of a VM run.
type State int

const (
	StateReady State = iota
	StateRunning
	StateHaltedOK
	StateHaltedError
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHaltedOK:
		return "halted-ok"
	case StateHaltedError:
		return "halted-error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var log = commonlog.GetLogger("myl.vm")

// VM executes compiled functions.
type VM struct {
	globals *Globals
	out     io.Writer

	stack  []Value
	frames []CallFrame

	state State
	err   *RuntimeError

	// Trace logs every instruction at debug level.
	Trace bool
}

// CallFrame represents an active function invocation on the call stack.
type CallFrame struct {
	fn   *Function
	ip   int
	base int // stack index of slot 0; the callee sits at base-1
}

// NewVM creates a VM that resolves globals in globals and prints to out.
func NewVM(globals *Globals, out io.Writer) *VM {
	return &VM{
		globals: globals,
		out:     out,
		stack:   make([]Value, 0, 256),
		frames:  make([]CallFrame, 0, 16),
	}
}

// State returns the lifecycle state of the most recent run.
func (vm *VM) State() State {
	return vm.state
}

// Err returns the error that halted the most recent run, if any.
func (vm *VM) Err() *RuntimeError {
	return vm.err
}

// FrameDepth returns the number of active call frames.
func (vm *VM) FrameDepth() int {
	return len(vm.frames)
}

// StackDepth returns the number of values on the operand stack.
func (vm *VM) StackDepth() int {
	return len(vm.stack)
}

// Run executes fn as a top-level script with fresh stacks.
// It returns the script's return value, or a *RuntimeError.
func (vm *VM) Run(fn *Function) (Value, error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.err = nil
	vm.state = StateRunning

	vm.push(FunctionValue(fn))
	vm.frames = append(vm.frames, CallFrame{fn: fn, base: len(vm.stack)})

	result, rerr := vm.run()
	if rerr != nil {
		vm.state = StateHaltedError
		vm.err = rerr
		vm.stack = vm.stack[:0]
		vm.frames = vm.frames[:0]
		return Nil, rerr
	}
	vm.state = StateHaltedOK
	return result, nil
}

// run is the main execution loop.
func (vm *VM) run() (Value, *RuntimeError) {
	frame := &vm.frames[len(vm.frames)-1]
	code := frame.fn.Chunk.Code

	for {
		start := frame.ip
		op := Opcode(code[frame.ip])
		frame.ip++

		if vm.Trace && log.AllowLevel(commonlog.Debug) {
			log.Debugf("%-12s %04X %-30s %s", frame.fn.Name, start,
				frame.fn.Chunk.DisassembleInstruction(start), vm.traceStack())
		}

		err := vm.step(op, frame, code)
		if err == nil {
			if op == OpCall || op == OpReturn {
				if len(vm.frames) == 0 {
					return vm.pop(), nil
				}
				frame = &vm.frames[len(vm.frames)-1]
				code = frame.fn.Chunk.Code
			}
			continue
		}

		var rerr *RuntimeError
		if !errors.As(err, &rerr) {
			rerr = &RuntimeError{Kind: CallError, Message: err.Error()}
		}
		if rerr.Line == 0 {
			rerr.Line = frame.fn.Chunk.LineAt(start)
		}
		return Nil, rerr
	}
}

// step executes one decoded instruction. Calls and returns push or pop
// frames; the caller refreshes its cached frame afterwards.
func (vm *VM) step(op Opcode, frame *CallFrame, code []byte) error {
	switch op {
	// ============ Stack Operations ============
	case OpPop:
		vm.stack = vm.stack[:len(vm.stack)-1]

	case OpPopN:
		n := int(code[frame.ip])
		frame.ip++
		vm.stack = vm.stack[:len(vm.stack)-n]

	case OpDup2:
		a, b := vm.peek(1), vm.peek(0)
		vm.push(a)
		vm.push(b)

	// ============ Constants ============
	case OpConst:
		idx := frame.fn.Chunk.readU16(frame.ip)
		frame.ip += 2
		vm.push(frame.fn.Chunk.Constants[idx])

	case OpNil:
		vm.push(Nil)

	case OpTrue:
		vm.push(BoolValue(true))

	case OpFalse:
		vm.push(BoolValue(false))

	// ============ Variables ============
	case OpGetLocal:
		slot := int(code[frame.ip])
		frame.ip++
		vm.push(vm.stack[frame.base+slot])

	case OpSetLocal:
		slot := int(code[frame.ip])
		frame.ip++
		vm.stack[frame.base+slot] = vm.peek(0)

	case OpDefineGlobal:
		name := vm.readName(frame)
		vm.globals.Define(name, vm.pop())

	case OpGetGlobal:
		name := vm.readName(frame)
		v, ok := vm.globals.Get(name)
		if !ok {
			return Errorf(NameError, "undefined variable '%s'", name)
		}
		vm.push(v)

	case OpSetGlobal:
		name := vm.readName(frame)
		if !vm.globals.Set(name, vm.peek(0)) {
			return Errorf(NameError, "undefined variable '%s'", name)
		}

	// ============ Arithmetic ============
	case OpAdd:
		return vm.binary(Add)

	case OpSub:
		return vm.binary(func(a, b Value) (Value, error) { return Arith("-", a, b) })

	case OpMul:
		return vm.binary(func(a, b Value) (Value, error) { return Arith("*", a, b) })

	case OpDiv:
		return vm.binary(func(a, b Value) (Value, error) { return Arith("/", a, b) })

	case OpMod:
		return vm.binary(func(a, b Value) (Value, error) { return Arith("%", a, b) })

	case OpNeg:
		v, err := Negate(vm.peek(0))
		if err != nil {
			return err
		}
		vm.stack[len(vm.stack)-1] = v

	// ============ Comparison ============
	case OpEq:
		b, a := vm.pop(), vm.pop()
		vm.push(BoolValue(Equal(a, b)))

	case OpNe:
		b, a := vm.pop(), vm.pop()
		vm.push(BoolValue(!Equal(a, b)))

	case OpLt, OpLe, OpGt, OpGe:
		sym := comparisonSymbols[op]
		return vm.binary(func(a, b Value) (Value, error) { return Compare(sym, a, b) })

	case OpNot:
		vm.stack[len(vm.stack)-1] = BoolValue(!vm.peek(0).Truthy())

	// ============ Control Flow ============
	case OpJump:
		delta := frame.fn.Chunk.readI16(frame.ip)
		frame.ip += 2 + delta

	case OpJumpFalse:
		delta := frame.fn.Chunk.readI16(frame.ip)
		frame.ip += 2
		if !vm.pop().Truthy() {
			frame.ip += delta
		}

	case OpJumpFalseKeep:
		delta := frame.fn.Chunk.readI16(frame.ip)
		frame.ip += 2
		if !vm.peek(0).Truthy() {
			frame.ip += delta
		}

	case OpJumpTrueKeep:
		delta := frame.fn.Chunk.readI16(frame.ip)
		frame.ip += 2
		if vm.peek(0).Truthy() {
			frame.ip += delta
		}

	// ============ Calls ============
	case OpCall:
		argc := int(code[frame.ip])
		frame.ip++
		return vm.call(argc)

	case OpCurrentFunction:
		vm.push(FunctionValue(frame.fn))

	case OpReturn:
		result := vm.pop()
		vm.stack = vm.stack[:frame.base-1]
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.push(result)

	// ============ Arrays ============
	case OpArray:
		n := frame.fn.Chunk.readU16(frame.ip)
		frame.ip += 2
		elems := make([]Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(ArrayValue(NewArray(elems)))

	case OpIndexGet:
		idx, arr := vm.pop(), vm.pop()
		v, err := IndexGet(arr, idx)
		if err != nil {
			return err
		}
		vm.push(v)

	case OpIndexSet:
		v, idx, arr := vm.pop(), vm.pop(), vm.pop()
		if err := IndexSet(arr, idx, v); err != nil {
			return err
		}
		vm.push(v)

	// ============ Output ============
	case OpPrint:
		n := int(code[frame.ip])
		frame.ip++
		args := vm.stack[len(vm.stack)-n:]
		parts := make([]string, n)
		for i, v := range args {
			parts[i] = v.String()
		}
		vm.stack = vm.stack[:len(vm.stack)-n]
		if _, err := fmt.Fprintln(vm.out, strings.Join(parts, " ")); err != nil {
			return fmt.Errorf("print: %w", err)
		}

	default:
		return fmt.Errorf("unknown opcode 0x%02X at %04X", byte(op), frame.ip-1)
	}
	return nil
}

var comparisonSymbols = map[Opcode]string{
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// call invokes the callee sitting below argc arguments.
func (vm *VM) call(argc int) error {
	callee := vm.stack[len(vm.stack)-1-argc]
	switch callee.Kind() {
	case KindFunction:
		fn, ok := callee.AsCallable().(*Function)
		if !ok {
			return Errorf(CallError, "function '%s' was not compiled to bytecode", callee.AsCallable().FuncName())
		}
		if err := CheckArity(fn.Name, fn.Arity(), argc); err != nil {
			return err
		}
		if len(vm.frames) >= MaxFrames {
			return Errorf(StackOverflow, "call depth exceeded %d frames", MaxFrames)
		}
		vm.frames = append(vm.frames, CallFrame{fn: fn, base: len(vm.stack) - argc})

	case KindNative:
		n := callee.AsNative()
		if err := CheckArity(n.Name, n.Arity, argc); err != nil {
			return err
		}
		args := make([]Value, argc)
		copy(args, vm.stack[len(vm.stack)-argc:])
		result, err := n.Fn(args)
		if err != nil {
			return err
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		vm.push(result)

	default:
		return Errorf(CallError, "can only call functions, got %s", callee.Kind())
	}
	return nil
}

func (vm *VM) binary(fn func(a, b Value) (Value, error)) error {
	b, a := vm.pop(), vm.pop()
	v, err := fn(a, b)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

func (vm *VM) readName(frame *CallFrame) string {
	idx := frame.fn.Chunk.readU16(frame.ip)
	frame.ip += 2
	return frame.fn.Chunk.Constants[idx].AsString()
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) traceStack() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, v := range vm.stack {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(v.Repr())
	}
	sb.WriteString("]")
	return sb.String()
}
