package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for myl
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	PosVal Position
	Value  float64
	Raw    string // source spelling, kept for formatting
}

func (n *NumberLiteral) Pos() Position { return n.PosVal }
func (n *NumberLiteral) node()         {}
func (n *NumberLiteral) expr()         {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	PosVal Position
	Value  string
}

func (n *StringLiteral) Pos() Position { return n.PosVal }
func (n *StringLiteral) node()         {}
func (n *StringLiteral) expr()         {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	PosVal Position
	Value  bool
}

func (n *BoolLiteral) Pos() Position { return n.PosVal }
func (n *BoolLiteral) node()         {}
func (n *BoolLiteral) expr()         {}

// NilLiteral represents nil.
type NilLiteral struct {
	PosVal Position
}

func (n *NilLiteral) Pos() Position { return n.PosVal }
func (n *NilLiteral) node()         {}
func (n *NilLiteral) expr()         {}

// Variable represents a variable reference.
type Variable struct {
	PosVal Position
	Name   string
}

func (n *Variable) Pos() Position { return n.PosVal }
func (n *Variable) node()         {}
func (n *Variable) expr()         {}

// Assign represents `target op value` where op is =, +=, -=, *= or /=.
// Target is a *Variable or an *Index.
type Assign struct {
	PosVal Position
	Target Expr
	Op     string
	Value  Expr
}

func (n *Assign) Pos() Position { return n.PosVal }
func (n *Assign) node()         {}
func (n *Assign) expr()         {}

// Logical represents a short-circuit `and` / `or`.
type Logical struct {
	PosVal Position
	Op     string
	Left   Expr
	Right  Expr
}

func (n *Logical) Pos() Position { return n.PosVal }
func (n *Logical) node()         {}
func (n *Logical) expr()         {}

// Binary represents an arithmetic, equality or comparison operator.
type Binary struct {
	PosVal Position
	Op     string
	Left   Expr
	Right  Expr
}

func (n *Binary) Pos() Position { return n.PosVal }
func (n *Binary) node()         {}
func (n *Binary) expr()         {}

// Unary represents `!x` or `-x`.
type Unary struct {
	PosVal  Position
	Op      string
	Operand Expr
}

func (n *Unary) Pos() Position { return n.PosVal }
func (n *Unary) node()         {}
func (n *Unary) expr()         {}

// Call represents `callee(args...)`.
type Call struct {
	PosVal Position
	Callee Expr
	Args   []Expr
}

func (n *Call) Pos() Position { return n.PosVal }
func (n *Call) node()         {}
func (n *Call) expr()         {}

// ArrayLiteral represents `[a, b, c]`.
type ArrayLiteral struct {
	PosVal   Position
	Elements []Expr
}

func (n *ArrayLiteral) Pos() Position { return n.PosVal }
func (n *ArrayLiteral) node()         {}
func (n *ArrayLiteral) expr()         {}

// Index represents `array[index]`.
type Index struct {
	PosVal Position
	Array  Expr
	Index  Expr
}

func (n *Index) Pos() Position { return n.PosVal }
func (n *Index) node()         {}
func (n *Index) expr()         {}

// Grouping represents a parenthesized expression.
type Grouping struct {
	PosVal Position
	Expr   Expr
}

func (n *Grouping) Pos() Position { return n.PosVal }
func (n *Grouping) node()         {}
func (n *Grouping) expr()         {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	PosVal Position
	Expr   Expr
}

func (n *ExprStmt) Pos() Position { return n.PosVal }
func (n *ExprStmt) node()         {}
func (n *ExprStmt) stmt()         {}

// VarDecl represents `let name = init;`. Init may be nil.
type VarDecl struct {
	PosVal  Position
	Name    string
	NamePos Position
	Init    Expr
}

func (n *VarDecl) Pos() Position { return n.PosVal }
func (n *VarDecl) node()         {}
func (n *VarDecl) stmt()         {}

// Param is a function parameter.
type Param struct {
	PosVal Position
	Name   string
}

// FuncDecl represents `fn name(params) { body }`.
type FuncDecl struct {
	PosVal  Position
	Name    string
	NamePos Position
	Params  []Param
	Body    *Block
}

func (n *FuncDecl) Pos() Position { return n.PosVal }
func (n *FuncDecl) node()         {}
func (n *FuncDecl) stmt()         {}

// ParamNames returns the parameter names in order.
func (n *FuncDecl) ParamNames() []string {
	names := make([]string, len(n.Params))
	for i, p := range n.Params {
		names[i] = p.Name
	}
	return names
}

// Block represents `{ stmts }`.
type Block struct {
	PosVal Position
	Stmts  []Stmt
	End    Position // position of the closing brace
}

func (n *Block) Pos() Position { return n.PosVal }
func (n *Block) node()         {}
func (n *Block) stmt()         {}

// If represents `if cond { } else ...`. Else is nil, an *If or a *Block.
type If struct {
	PosVal Position
	Cond   Expr
	Then   *Block
	Else   Stmt
}

func (n *If) Pos() Position { return n.PosVal }
func (n *If) node()         {}
func (n *If) stmt()         {}

// While represents `while cond { body }`.
type While struct {
	PosVal Position
	Cond   Expr
	Body   *Block
}

func (n *While) Pos() Position { return n.PosVal }
func (n *While) node()         {}
func (n *While) stmt()         {}

// For represents `for (init; cond; incr) { body }`. Every clause is
// optional; Init is a *VarDecl or an *ExprStmt.
type For struct {
	PosVal Position
	Init   Stmt
	Cond   Expr
	Incr   Expr
	Body   *Block
}

func (n *For) Pos() Position { return n.PosVal }
func (n *For) node()         {}
func (n *For) stmt()         {}

// Print represents `print a, b;`.
type Print struct {
	PosVal Position
	Args   []Expr
}

func (n *Print) Pos() Position { return n.PosVal }
func (n *Print) node()         {}
func (n *Print) stmt()         {}

// Return represents `return value;`. Value may be nil.
type Return struct {
	PosVal Position
	Value  Expr
}

func (n *Return) Pos() Position { return n.PosVal }
func (n *Return) node()         {}
func (n *Return) stmt()         {}

// Break represents `break;`.
type Break struct {
	PosVal Position
}

func (n *Break) Pos() Position { return n.PosVal }
func (n *Break) node()         {}
func (n *Break) stmt()         {}

// Continue represents `continue;`.
type Continue struct {
	PosVal Position
}

func (n *Continue) Pos() Position { return n.PosVal }
func (n *Continue) node()         {}
func (n *Continue) stmt()         {}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// Program is a parsed source file.
type Program struct {
	Stmts    []Stmt
	Comments []Comment // line comments, in source order
}

// Comment is a // comment preserved for the formatter.
type Comment struct {
	PosVal Position
	Text   string // including the leading //
}
