package compiler

import (
	"github.com/chazu/myl/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

// ScriptName is the chunk name of top-level code.
const ScriptName = "<script>"

// Options controls code generation.
type Options struct {
	// REPL makes a trailing top-level expression statement the script's
	// return value instead of discarding it.
	REPL bool
}

// Compiler compiles a parsed program to bytecode in a single pass.
type Compiler struct {
	fs     *funcState
	opts   Options
	errors ErrorList
}

// scope is one block's worth of local names.
type scope struct {
	names map[string]int // name -> slot
	count int            // slots allocated in this scope, including shadowed ones
}

// loopContext tracks the pending jumps of one enclosing loop.
type loopContext struct {
	localBase int   // live locals when the loop was entered
	breaks    []int // placeholders to patch past the loop
	continues []int // placeholders to patch to the continue target
}

// funcState is the per-function compilation state.
type funcState struct {
	enclosing *funcState
	fn        *bytecode.Function
	chunk     *bytecode.Chunk
	scopes    []*scope
	live      int // live local slots
	loops     []*loopContext
	selfName  string // name bound to the running function, for local declarations
}

// NewCompiler creates a new compiler.
func NewCompiler(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Compile compiles prog to its top-level function. On failure the function
// is nil and the list holds every compile error found.
func Compile(prog *Program, opts Options) (*bytecode.Function, ErrorList) {
	c := NewCompiler(opts)
	fn := c.CompileProgram(prog)
	if len(c.errors) > 0 {
		return nil, c.Errors()
	}
	return fn, nil
}

// Check runs code generation purely for its diagnostics.
func Check(prog *Program) ErrorList {
	_, errs := Compile(prog, Options{})
	return errs
}

// Errors returns accumulated compilation errors in source order.
func (c *Compiler) Errors() ErrorList {
	c.errors.Sort()
	return c.errors
}

// errorf records a compilation error at pos.
func (c *Compiler) errorf(pos Position, format string, args ...any) {
	c.errors.add(CompileError, pos, format, args...)
}

// CompileProgram compiles every top-level statement into the script chunk.
func (c *Compiler) CompileProgram(prog *Program) *bytecode.Function {
	fn := &bytecode.Function{Name: ScriptName, Chunk: bytecode.NewChunk(ScriptName)}
	c.fs = &funcState{fn: fn, chunk: fn.Chunk}

	last := len(prog.Stmts) - 1
	for i, stmt := range prog.Stmts {
		if es, ok := stmt.(*ExprStmt); ok && c.opts.REPL && i == last {
			c.compileExpr(es.Expr)
			c.emit(bytecode.OpReturn, es)
			return fn
		}
		c.compileStmt(stmt)
	}

	line := 1
	if last >= 0 {
		line = lastLine(prog.Stmts[last])
	}
	c.fs.chunk.Emit(bytecode.OpNil, line)
	c.fs.chunk.Emit(bytecode.OpReturn, line)
	return fn
}

func lastLine(s Stmt) int {
	switch n := s.(type) {
	case *Block:
		return n.End.Line
	case *FuncDecl:
		return n.Body.End.Line
	}
	return s.Pos().Line
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op bytecode.Opcode, n Node) int {
	return c.fs.chunk.Emit(op, n.Pos().Line)
}

func (c *Compiler) emitByte(op bytecode.Opcode, operand int, n Node) {
	c.fs.chunk.EmitWithOperand(op, n.Pos().Line, byte(operand))
}

func (c *Compiler) emitConstant(v bytecode.Value, n Node) {
	idx := c.makeConstant(v, n)
	c.fs.chunk.EmitU16(bytecode.OpConst, n.Pos().Line, idx)
}

func (c *Compiler) makeConstant(v bytecode.Value, n Node) int {
	idx := c.fs.chunk.AddConstant(v)
	if idx >= bytecode.MaxConstants {
		c.errorf(n.Pos(), "too many constants in function '%s'", c.fs.fn.Name)
		return 0
	}
	return idx
}

func (c *Compiler) emitJump(op bytecode.Opcode, n Node) int {
	return c.fs.chunk.EmitJump(op, n.Pos().Line)
}

func (c *Compiler) patchJump(placeholder int, n Node) {
	if err := c.fs.chunk.PatchJump(placeholder); err != nil {
		c.errorf(n.Pos(), "%s", err)
	}
}

func (c *Compiler) patchJumpTo(placeholder, target int, n Node) {
	if err := c.fs.chunk.PatchJumpTo(placeholder, target); err != nil {
		c.errorf(n.Pos(), "%s", err)
	}
}

func (c *Compiler) emitLoop(start int, n Node) {
	if err := c.fs.chunk.EmitLoop(start, n.Pos().Line); err != nil {
		c.errorf(n.Pos(), "loop body too large: %s", err)
	}
}

// emitPops discards n values, splitting across POPN operands as needed.
func (c *Compiler) emitPops(n int, line int) {
	for n > 0 {
		k := min(n, 255)
		if k == 1 {
			c.fs.chunk.Emit(bytecode.OpPop, line)
		} else {
			c.fs.chunk.EmitWithOperand(bytecode.OpPopN, line, byte(k))
		}
		n -= k
	}
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (c *Compiler) beginScope() {
	c.fs.scopes = append(c.fs.scopes, &scope{names: make(map[string]int)})
}

// endScope drops the innermost scope and pops its locals off the stack.
func (c *Compiler) endScope(line int) {
	fs := c.fs
	s := fs.scopes[len(fs.scopes)-1]
	fs.scopes = fs.scopes[:len(fs.scopes)-1]
	c.emitPops(s.count, line)
	fs.live -= s.count
}

// declareLocal binds name to the next free slot of the innermost scope.
// The value for the slot must be the next thing pushed.
func (c *Compiler) declareLocal(name string, n Node) int {
	fs := c.fs
	if fs.live >= bytecode.MaxLocals {
		c.errorf(n.Pos(), "too many local variables in function '%s' (max %d)", fs.fn.Name, bytecode.MaxLocals)
		return 0
	}
	slot := fs.live
	s := fs.scopes[len(fs.scopes)-1]
	s.names[name] = slot
	s.count++
	fs.live++
	if fs.live > fs.chunk.LocalCount {
		fs.chunk.LocalCount = fs.live
	}
	return slot
}

// atGlobalScope reports whether a declaration here binds a global.
func (c *Compiler) atGlobalScope() bool {
	return c.fs.enclosing == nil && len(c.fs.scopes) == 0
}

func resolveIn(fs *funcState, name string) (int, bool) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if slot, ok := fs.scopes[i].names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// variable access kinds
type access int

const (
	accessLocal access = iota
	accessSelf
	accessGlobal
)

// resolve finds how name is reached from the current function. Locals of
// enclosing functions are out of reach; naming one is an error.
func (c *Compiler) resolve(name string, forWrite bool, n Node) (access, int) {
	if slot, ok := resolveIn(c.fs, name); ok {
		return accessLocal, slot
	}
	if c.fs.selfName == name {
		if forWrite {
			c.errorf(n.Pos(), "cannot assign to function '%s' inside its own body", name)
			return accessGlobal, 0
		}
		return accessSelf, 0
	}
	for fs := c.fs.enclosing; fs != nil; fs = fs.enclosing {
		if _, ok := resolveIn(fs, name); ok {
			c.errorf(n.Pos(), "cannot capture local '%s' of enclosing function", name)
			return accessGlobal, 0
		}
		if fs.selfName == name {
			c.errorf(n.Pos(), "cannot capture local '%s' of enclosing function", name)
			return accessGlobal, 0
		}
	}
	return accessGlobal, c.makeConstant(bytecode.StringValue(name), n)
}

func (c *Compiler) emitGet(name string, n Node) {
	switch kind, arg := c.resolve(name, false, n); kind {
	case accessLocal:
		c.emitByte(bytecode.OpGetLocal, arg, n)
	case accessSelf:
		c.emit(bytecode.OpCurrentFunction, n)
	default:
		c.fs.chunk.EmitU16(bytecode.OpGetGlobal, n.Pos().Line, arg)
	}
}

func (c *Compiler) emitSet(name string, n Node) {
	switch kind, arg := c.resolve(name, true, n); kind {
	case accessLocal:
		c.emitByte(bytecode.OpSetLocal, arg, n)
	default:
		c.fs.chunk.EmitU16(bytecode.OpSetGlobal, n.Pos().Line, arg)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *ExprStmt:
		c.compileExpr(s.Expr)
		c.emit(bytecode.OpPop, s)

	case *VarDecl:
		c.compileVarDecl(s)

	case *FuncDecl:
		c.compileFuncDecl(s)

	case *Block:
		c.beginScope()
		c.compileBlockBody(s)
		c.endScope(s.End.Line)

	case *If:
		c.compileIf(s)

	case *While:
		c.compileWhile(s)

	case *For:
		c.compileFor(s)

	case *Print:
		for _, arg := range s.Args {
			c.compileExpr(arg)
		}
		c.emitByte(bytecode.OpPrint, len(s.Args), s)

	case *Return:
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.emit(bytecode.OpNil, s)
		}
		c.emit(bytecode.OpReturn, s)

	case *Break:
		c.compileLoopExit(s, true)

	case *Continue:
		c.compileLoopExit(s, false)

	default:
		c.errorf(stmt.Pos(), "unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileBlockBody(b *Block) {
	for _, stmt := range b.Stmts {
		c.compileStmt(stmt)
	}
}

// compileVarDecl evaluates the initializer before the name comes into
// scope, so `let x = x;` in a block reads the outer x.
func (c *Compiler) compileVarDecl(s *VarDecl) {
	if s.Init != nil {
		c.compileExpr(s.Init)
	} else {
		c.emit(bytecode.OpNil, s)
	}

	if c.atGlobalScope() {
		idx := c.makeConstant(bytecode.StringValue(s.Name), s)
		c.fs.chunk.EmitU16(bytecode.OpDefineGlobal, s.Pos().Line, idx)
		return
	}
	c.declareLocal(s.Name, s)
}

func (c *Compiler) compileFuncDecl(s *FuncDecl) {
	if c.atGlobalScope() {
		fn := c.compileFunction(s, false)
		c.emitConstant(bytecode.FunctionValue(fn), s)
		idx := c.makeConstant(bytecode.StringValue(s.Name), s)
		c.fs.chunk.EmitU16(bytecode.OpDefineGlobal, s.Pos().Line, idx)
		return
	}
	fn := c.compileFunction(s, true)
	c.declareLocal(s.Name, s)
	c.emitConstant(bytecode.FunctionValue(fn), s)
}

// compileFunction compiles a function body into its own chunk.
func (c *Compiler) compileFunction(s *FuncDecl, local bool) *bytecode.Function {
	fn := &bytecode.Function{
		Name:   s.Name,
		Params: s.ParamNames(),
		Chunk:  bytecode.NewChunk(s.Name),
	}
	fn.Chunk.ParamCount = len(s.Params)

	fs := &funcState{enclosing: c.fs, fn: fn, chunk: fn.Chunk}
	if local {
		fs.selfName = s.Name
	}
	c.fs = fs
	defer func() { c.fs = fs.enclosing }()

	c.beginScope()
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if seen[p.Name] {
			c.errorf(p.PosVal, "duplicate parameter '%s' in function '%s'", p.Name, s.Name)
		}
		seen[p.Name] = true
		c.declareLocal(p.Name, s)
	}

	c.compileBlockBody(s.Body)

	end := s.Body.End.Line
	fn.Chunk.Emit(bytecode.OpNil, end)
	fn.Chunk.Emit(bytecode.OpReturn, end)
	return fn
}

func (c *Compiler) compileIf(s *If) {
	c.compileExpr(s.Cond)
	elseJump := c.emitJump(bytecode.OpJumpFalse, s)

	c.compileStmt(s.Then)

	if s.Else == nil {
		c.patchJump(elseJump, s)
		return
	}
	endJump := c.emitJump(bytecode.OpJump, s)
	c.patchJump(elseJump, s)
	c.compileStmt(s.Else)
	c.patchJump(endJump, s)
}

func (c *Compiler) compileWhile(s *While) {
	loopStart := c.fs.chunk.CurrentOffset()
	c.compileExpr(s.Cond)
	exitJump := c.emitJump(bytecode.OpJumpFalse, s)

	loop := c.pushLoop()
	c.compileStmt(s.Body)
	c.emitLoop(loopStart, s)

	c.patchJump(exitJump, s)
	c.popLoop(loop, loopStart, s)
}

// compileFor lowers `for (init; cond; incr) body`. The init variable lives
// in its own scope around the loop; continue runs the increment.
func (c *Compiler) compileFor(s *For) {
	c.beginScope()
	if s.Init != nil {
		c.compileStmt(s.Init)
	}

	loopStart := c.fs.chunk.CurrentOffset()
	exitJump := -1
	if s.Cond != nil {
		c.compileExpr(s.Cond)
		exitJump = c.emitJump(bytecode.OpJumpFalse, s)
	}

	loop := c.pushLoop()
	c.compileStmt(s.Body)

	continueTarget := c.fs.chunk.CurrentOffset()
	if s.Incr != nil {
		c.compileExpr(s.Incr)
		c.emit(bytecode.OpPop, s.Incr)
	}
	c.emitLoop(loopStart, s)

	if exitJump >= 0 {
		c.patchJump(exitJump, s)
	}
	c.popLoop(loop, continueTarget, s)
	c.endScope(s.Body.End.Line)
}

func (c *Compiler) pushLoop() *loopContext {
	loop := &loopContext{localBase: c.fs.live}
	c.fs.loops = append(c.fs.loops, loop)
	return loop
}

// popLoop patches pending breaks to the current offset and continues to
// continueTarget.
func (c *Compiler) popLoop(loop *loopContext, continueTarget int, n Node) {
	for _, site := range loop.breaks {
		c.patchJump(site, n)
	}
	for _, site := range loop.continues {
		c.patchJumpTo(site, continueTarget, n)
	}
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
}

// compileLoopExit emits break or continue: pop the locals declared inside
// the loop, then jump to a site patched when the loop closes.
func (c *Compiler) compileLoopExit(s Stmt, isBreak bool) {
	if len(c.fs.loops) == 0 {
		if isBreak {
			c.errorf(s.Pos(), "break outside of loop")
		} else {
			c.errorf(s.Pos(), "continue outside of loop")
		}
		return
	}
	loop := c.fs.loops[len(c.fs.loops)-1]
	c.emitPops(c.fs.live-loop.localBase, s.Pos().Line)
	site := c.emitJump(bytecode.OpJump, s)
	if isBreak {
		loop.breaks = append(loop.breaks, site)
	} else {
		loop.continues = append(loop.continues, site)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[string]bytecode.Opcode{
	"+":  bytecode.OpAdd,
	"-":  bytecode.OpSub,
	"*":  bytecode.OpMul,
	"/":  bytecode.OpDiv,
	"%":  bytecode.OpMod,
	"==": bytecode.OpEq,
	"!=": bytecode.OpNe,
	"<":  bytecode.OpLt,
	"<=": bytecode.OpLe,
	">":  bytecode.OpGt,
	">=": bytecode.OpGe,
}

// compoundOps maps a compound assignment to its arithmetic opcode.
var compoundOps = map[string]bytecode.Opcode{
	"+=": bytecode.OpAdd,
	"-=": bytecode.OpSub,
	"*=": bytecode.OpMul,
	"/=": bytecode.OpDiv,
}

func (c *Compiler) compileExpr(expr Expr) {
	switch e := expr.(type) {
	case *NumberLiteral:
		c.emitConstant(bytecode.NumberValue(e.Value), e)

	case *StringLiteral:
		c.emitConstant(bytecode.StringValue(e.Value), e)

	case *BoolLiteral:
		if e.Value {
			c.emit(bytecode.OpTrue, e)
		} else {
			c.emit(bytecode.OpFalse, e)
		}

	case *NilLiteral:
		c.emit(bytecode.OpNil, e)

	case *Variable:
		c.emitGet(e.Name, e)

	case *Grouping:
		c.compileExpr(e.Expr)

	case *Assign:
		c.compileAssign(e)

	case *Logical:
		c.compileExpr(e.Left)
		op := bytecode.OpJumpFalseKeep
		if e.Op == "or" {
			op = bytecode.OpJumpTrueKeep
		}
		end := c.emitJump(op, e)
		c.emit(bytecode.OpPop, e)
		c.compileExpr(e.Right)
		c.patchJump(end, e)

	case *Binary:
		op, ok := binaryOps[e.Op]
		if !ok {
			c.errorf(e.Pos(), "unknown operator '%s'", e.Op)
			return
		}
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		c.emit(op, e)

	case *Unary:
		c.compileExpr(e.Operand)
		if e.Op == "-" {
			c.emit(bytecode.OpNeg, e)
		} else {
			c.emit(bytecode.OpNot, e)
		}

	case *Call:
		c.compileExpr(e.Callee)
		for _, arg := range e.Args {
			c.compileExpr(arg)
		}
		c.emitByte(bytecode.OpCall, len(e.Args), e)

	case *ArrayLiteral:
		if len(e.Elements) > 0xFFFF {
			c.errorf(e.Pos(), "too many elements in array literal")
			return
		}
		for _, elem := range e.Elements {
			c.compileExpr(elem)
		}
		c.fs.chunk.EmitU16(bytecode.OpArray, e.Pos().Line, len(e.Elements))

	case *Index:
		c.compileExpr(e.Array)
		c.compileExpr(e.Index)
		c.emit(bytecode.OpIndexGet, e)

	default:
		c.errorf(expr.Pos(), "unsupported expression %T", expr)
	}
}

// compileAssign evaluates the target's subexpressions exactly once, also
// for compound operators on an index target.
func (c *Compiler) compileAssign(e *Assign) {
	arith, compound := compoundOps[e.Op]

	switch t := e.Target.(type) {
	case *Variable:
		if compound {
			c.emitGet(t.Name, t)
			c.compileExpr(e.Value)
			c.emit(arith, e)
		} else {
			c.compileExpr(e.Value)
		}
		c.emitSet(t.Name, e)

	case *Index:
		c.compileExpr(t.Array)
		c.compileExpr(t.Index)
		if compound {
			c.emit(bytecode.OpDup2, e)
			c.emit(bytecode.OpIndexGet, t)
			c.compileExpr(e.Value)
			c.emit(arith, e)
		} else {
			c.compileExpr(e.Value)
		}
		c.emit(bytecode.OpIndexSet, e)

	default:
		c.errorf(e.Pos(), "invalid assignment target")
	}
}
