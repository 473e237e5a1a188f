package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no position
// data, no parentheses and de Bruijn indices instead of local names. Two
// programs that differ only in layout, comments or local variable names
// produce identical hashing ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

// ---------------------------------------------------------------------------
// Literal nodes
// ---------------------------------------------------------------------------

type HNumberLiteral struct{ Value float64 }
type HStringLiteral struct{ Value string }
type HBoolLiteral struct{ Value bool }
type HNilLiteral struct{}
type HArrayLiteral struct{ Elements []HNode }

func (*HNumberLiteral) hnode() {}
func (*HStringLiteral) hnode() {}
func (*HBoolLiteral) hnode()   {}
func (*HNilLiteral) hnode()    {}
func (*HArrayLiteral) hnode()  {}

// ---------------------------------------------------------------------------
// Variable reference nodes
// ---------------------------------------------------------------------------

// HLocalRef references a local by de Bruijn indices.
// ScopeDepth 0 = innermost scope, 1 = one scope up, etc.
// SlotIndex is the position within that scope's declarations.
type HLocalRef struct {
	ScopeDepth uint16
	SlotIndex  uint16
}

// HGlobalRef references a global by name. Globals are bound at run time,
// so their names are part of a program's meaning.
type HGlobalRef struct {
	Name string
}

// HSelfRef is a locally declared function naming itself.
type HSelfRef struct{}

func (*HLocalRef) hnode()  {}
func (*HGlobalRef) hnode() {}
func (*HSelfRef) hnode()   {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

type HAssign struct {
	Op     string
	Target HNode // HLocalRef, HGlobalRef or HIndex
	Value  HNode
}

type HLogical struct {
	Op          string
	Left, Right HNode
}

type HBinary struct {
	Op          string
	Left, Right HNode
}

type HUnary struct {
	Op      string
	Operand HNode
}

type HCall struct {
	Callee HNode
	Args   []HNode
}

type HIndex struct {
	Array, Index HNode
}

func (*HAssign) hnode()  {}
func (*HLogical) hnode() {}
func (*HBinary) hnode()  {}
func (*HUnary) hnode()   {}
func (*HCall) hnode()    {}
func (*HIndex) hnode()   {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

type HExprStmt struct{ Expr HNode }

// HLocalDecl declares the next slot of the innermost scope.
type HLocalDecl struct{ Init HNode }

// HGlobalDecl binds a global by name.
type HGlobalDecl struct {
	Name string
	Init HNode
}

// HFuncDecl is a function stripped of parameter names. Name is empty for
// locally declared functions, whose names are slots.
type HFuncDecl struct {
	Name  string
	Local bool
	Arity int
	Body  []HNode
}

type HBlock struct{ Stmts []HNode }

// HIf has a nil Else when the branch is absent.
type HIf struct {
	Cond HNode
	Then *HBlock
	Else HNode
}

type HWhile struct {
	Cond HNode
	Body *HBlock
}

// HFor has nil children for omitted clauses.
type HFor struct {
	Init HNode
	Cond HNode
	Incr HNode
	Body *HBlock
}

type HPrint struct{ Args []HNode }

// HReturn has a nil Value for a bare return.
type HReturn struct{ Value HNode }

type HBreak struct{}
type HContinue struct{}

// HProgram is the top-level hashing node.
type HProgram struct{ Stmts []HNode }

func (*HExprStmt) hnode()   {}
func (*HLocalDecl) hnode()  {}
func (*HGlobalDecl) hnode() {}
func (*HFuncDecl) hnode()   {}
func (*HBlock) hnode()      {}
func (*HIf) hnode()         {}
func (*HWhile) hnode()      {}
func (*HFor) hnode()        {}
func (*HPrint) hnode()      {}
func (*HReturn) hnode()     {}
func (*HBreak) hnode()      {}
func (*HContinue) hnode()   {}
func (*HProgram) hnode()    {}
