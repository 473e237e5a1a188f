package hash

import (
	"github.com/chazu/myl/compiler"
)

// ---------------------------------------------------------------------------
// AST Normalization: compiler AST → frozen hashing AST
//
// Walks the compiler's working AST and produces the frozen hashing AST with
// de Bruijn indices for locals and plain names for globals. Name resolution
// follows codegen: top-level declarations are globals, everything declared
// inside a block or function is a local.
// ---------------------------------------------------------------------------

// scope tracks variables at one nesting level.
type scope struct {
	vars map[string]uint16 // variable name → slot index
	next uint16
}

// normalizer holds state for the normalization walk.
type normalizer struct {
	scopes []scope  // scope stack of the function being normalized
	funcs  []string // names bound to enclosing local functions, innermost last
	saved  [][]scope
}

// NormalizeProgram transforms a parsed program into a frozen HProgram.
func NormalizeProgram(prog *compiler.Program) *HProgram {
	n := &normalizer{}
	stmts := make([]HNode, len(prog.Stmts))
	for i, s := range prog.Stmts {
		stmts[i] = n.normalizeStmt(s)
	}
	return &HProgram{Stmts: stmts}
}

// NormalizeFunction transforms a single function declaration, treating it
// as declared at the top level.
func NormalizeFunction(fn *compiler.FuncDecl) *HFuncDecl {
	n := &normalizer{}
	return n.normalizeFunc(fn, false)
}

func (n *normalizer) atTopLevel() bool {
	return len(n.scopes) == 0 && len(n.saved) == 0
}

func (n *normalizer) pushScope() {
	n.scopes = append(n.scopes, scope{vars: make(map[string]uint16)})
}

func (n *normalizer) popScope() {
	n.scopes = n.scopes[:len(n.scopes)-1]
}

func (n *normalizer) declare(name string) {
	s := &n.scopes[len(n.scopes)-1]
	s.vars[name] = s.next
	s.next++
}

// ---------------------------------------------------------------------------
// Statement normalization
// ---------------------------------------------------------------------------

func (n *normalizer) normalizeStmt(stmt compiler.Stmt) HNode {
	switch s := stmt.(type) {
	case *compiler.ExprStmt:
		return &HExprStmt{Expr: n.normalizeExpr(s.Expr)}

	case *compiler.VarDecl:
		var init HNode = &HNilLiteral{}
		if s.Init != nil {
			init = n.normalizeExpr(s.Init)
		}
		if n.atTopLevel() {
			return &HGlobalDecl{Name: s.Name, Init: init}
		}
		n.declare(s.Name)
		return &HLocalDecl{Init: init}

	case *compiler.FuncDecl:
		if n.atTopLevel() {
			return n.normalizeFunc(s, false)
		}
		fn := n.normalizeFunc(s, true)
		n.declare(s.Name)
		return fn

	case *compiler.Block:
		return n.normalizeBlock(s)

	case *compiler.If:
		h := &HIf{Cond: n.normalizeExpr(s.Cond), Then: n.normalizeBlock(s.Then)}
		if s.Else != nil {
			h.Else = n.normalizeStmt(s.Else)
		}
		return h

	case *compiler.While:
		return &HWhile{Cond: n.normalizeExpr(s.Cond), Body: n.normalizeBlock(s.Body)}

	case *compiler.For:
		n.pushScope()
		h := &HFor{}
		if s.Init != nil {
			h.Init = n.normalizeStmt(s.Init)
		}
		if s.Cond != nil {
			h.Cond = n.normalizeExpr(s.Cond)
		}
		h.Body = n.normalizeBlock(s.Body)
		if s.Incr != nil {
			h.Incr = n.normalizeExpr(s.Incr)
		}
		n.popScope()
		return h

	case *compiler.Print:
		return &HPrint{Args: n.normalizeExprs(s.Args)}

	case *compiler.Return:
		h := &HReturn{}
		if s.Value != nil {
			h.Value = n.normalizeExpr(s.Value)
		}
		return h

	case *compiler.Break:
		return &HBreak{}

	case *compiler.Continue:
		return &HContinue{}

	default:
		// Unknown statement type; the parser never produces one.
		return &HNilLiteral{}
	}
}

func (n *normalizer) normalizeBlock(b *compiler.Block) *HBlock {
	n.pushScope()
	stmts := make([]HNode, len(b.Stmts))
	for i, s := range b.Stmts {
		stmts[i] = n.normalizeStmt(s)
	}
	n.popScope()
	return &HBlock{Stmts: stmts}
}

// normalizeFunc gives the function a fresh scope stack: locals of the
// enclosing function are not visible inside it.
func (n *normalizer) normalizeFunc(fn *compiler.FuncDecl, local bool) *HFuncDecl {
	n.saved = append(n.saved, n.scopes)
	n.scopes = nil
	if local {
		n.funcs = append(n.funcs, fn.Name)
	} else {
		n.funcs = append(n.funcs, "")
	}

	n.pushScope()
	for _, p := range fn.Params {
		n.declare(p.Name)
	}
	body := make([]HNode, len(fn.Body.Stmts))
	for i, s := range fn.Body.Stmts {
		body[i] = n.normalizeStmt(s)
	}

	n.funcs = n.funcs[:len(n.funcs)-1]
	n.scopes = n.saved[len(n.saved)-1]
	n.saved = n.saved[:len(n.saved)-1]

	h := &HFuncDecl{Local: local, Arity: len(fn.Params), Body: body}
	if !local {
		h.Name = fn.Name
	}
	return h
}

// ---------------------------------------------------------------------------
// Expression normalization
// ---------------------------------------------------------------------------

func (n *normalizer) normalizeExprs(exprs []compiler.Expr) []HNode {
	out := make([]HNode, len(exprs))
	for i, e := range exprs {
		out[i] = n.normalizeExpr(e)
	}
	return out
}

func (n *normalizer) normalizeExpr(expr compiler.Expr) HNode {
	switch e := expr.(type) {
	case *compiler.NumberLiteral:
		return &HNumberLiteral{Value: e.Value}
	case *compiler.StringLiteral:
		return &HStringLiteral{Value: e.Value}
	case *compiler.BoolLiteral:
		return &HBoolLiteral{Value: e.Value}
	case *compiler.NilLiteral:
		return &HNilLiteral{}
	case *compiler.ArrayLiteral:
		return &HArrayLiteral{Elements: n.normalizeExprs(e.Elements)}

	case *compiler.Variable:
		return n.resolveVariable(e.Name)

	case *compiler.Grouping:
		return n.normalizeExpr(e.Expr)

	case *compiler.Assign:
		return &HAssign{Op: e.Op, Target: n.normalizeExpr(e.Target), Value: n.normalizeExpr(e.Value)}

	case *compiler.Logical:
		return &HLogical{Op: e.Op, Left: n.normalizeExpr(e.Left), Right: n.normalizeExpr(e.Right)}

	case *compiler.Binary:
		return &HBinary{Op: e.Op, Left: n.normalizeExpr(e.Left), Right: n.normalizeExpr(e.Right)}

	case *compiler.Unary:
		return &HUnary{Op: e.Op, Operand: n.normalizeExpr(e.Operand)}

	case *compiler.Call:
		return &HCall{Callee: n.normalizeExpr(e.Callee), Args: n.normalizeExprs(e.Args)}

	case *compiler.Index:
		return &HIndex{Array: n.normalizeExpr(e.Array), Index: n.normalizeExpr(e.Index)}

	default:
		return &HNilLiteral{}
	}
}

// ---------------------------------------------------------------------------
// Variable resolution → de Bruijn indices
// ---------------------------------------------------------------------------

// resolveVariable resolves a name to HLocalRef, HSelfRef or HGlobalRef.
// This mirrors the resolution order in codegen.
func (n *normalizer) resolveVariable(name string) HNode {
	// 1. Scopes of the current function, innermost first
	for depth := len(n.scopes) - 1; depth >= 0; depth-- {
		if slot, ok := n.scopes[depth].vars[name]; ok {
			return &HLocalRef{
				ScopeDepth: uint16(len(n.scopes) - 1 - depth),
				SlotIndex:  slot,
			}
		}
	}

	// 2. The running local function's own name
	if len(n.funcs) > 0 && n.funcs[len(n.funcs)-1] == name && name != "" {
		return &HSelfRef{}
	}

	// 3. Global
	return &HGlobalRef{Name: name}
}
