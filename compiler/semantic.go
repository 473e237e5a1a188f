package compiler

import (
	"github.com/chazu/myl/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: symbol index and lint warnings
// ---------------------------------------------------------------------------

// SymbolKind classifies a declaration.
type SymbolKind int

const (
	SymbolVariable SymbolKind = iota
	SymbolFunction
	SymbolParameter
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "fn"
	case SymbolParameter:
		return "param"
	default:
		return "let"
	}
}

// Symbol is one declaration and every reference that resolves to it.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Pos        Position // position of the declaring keyword or parameter
	NamePos    Position // position of the name itself
	Global     bool
	Params     []string // for functions
	References []Position
}

// SymbolIndex is the result of analyzing a program.
type SymbolIndex struct {
	Symbols  []*Symbol
	Warnings ErrorList
}

// SemanticAnalyzer resolves names the way the compiler does and records
// where each one is declared and used. Globals resolve by name across the
// whole program since they are bound at run time.
type SemanticAnalyzer struct {
	index *SymbolIndex

	knownGlobals map[string]bool
	globals      map[string]*Symbol

	// One entry per function being analyzed; each holds a scope stack.
	funcs []*analyzerFunc

	pendingGlobals []pendingRef
}

type analyzerFunc struct {
	self   *Symbol
	scopes []map[string]*Symbol
}

type pendingRef struct {
	name string
	pos  Position
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	known := make(map[string]bool)
	for _, n := range bytecode.Builtins() {
		known[n.Name] = true
	}
	return &SemanticAnalyzer{
		index:        &SymbolIndex{},
		knownGlobals: known,
		globals:      make(map[string]*Symbol),
		funcs:        []*analyzerFunc{{}},
	}
}

// AddKnownGlobal marks name as defined outside the analyzed program.
func (s *SemanticAnalyzer) AddKnownGlobal(name string) {
	s.knownGlobals[name] = true
}

// Analyze builds the symbol index for prog.
func Analyze(prog *Program) *SymbolIndex {
	s := NewSemanticAnalyzer()
	return s.AnalyzeProgram(prog)
}

// AnalyzeProgram analyzes every statement and resolves global references.
func (s *SemanticAnalyzer) AnalyzeProgram(prog *Program) *SymbolIndex {
	// Top-level functions and variables are visible from anywhere in the
	// file, so declare them before walking bodies.
	for _, stmt := range prog.Stmts {
		switch st := stmt.(type) {
		case *VarDecl:
			s.declareGlobal(st.Name, SymbolVariable, st.Pos(), st.NamePos, nil)
		case *FuncDecl:
			s.declareGlobal(st.Name, SymbolFunction, st.Pos(), st.NamePos, st.ParamNames())
		}
	}

	s.analyzeStatements(prog.Stmts, true)

	for _, ref := range s.pendingGlobals {
		if sym, ok := s.globals[ref.name]; ok {
			sym.References = append(sym.References, ref.pos)
			continue
		}
		if !s.knownGlobals[ref.name] {
			s.warnAt(ref.pos, "variable '%s' may be undefined", ref.name)
		}
	}
	s.index.Warnings.Sort()
	return s.index
}

func (s *SemanticAnalyzer) warnAt(pos Position, format string, args ...any) {
	s.index.Warnings.add(Warning, pos, format, args...)
}

func (s *SemanticAnalyzer) declareGlobal(name string, kind SymbolKind, pos, namePos Position, params []string) {
	if _, ok := s.globals[name]; ok {
		return
	}
	sym := &Symbol{Name: name, Kind: kind, Pos: pos, NamePos: namePos, Global: true, Params: params}
	s.globals[name] = sym
	s.index.Symbols = append(s.index.Symbols, sym)
}

func (s *SemanticAnalyzer) current() *analyzerFunc {
	return s.funcs[len(s.funcs)-1]
}

func (s *SemanticAnalyzer) pushScope() {
	f := s.current()
	f.scopes = append(f.scopes, make(map[string]*Symbol))
}

func (s *SemanticAnalyzer) popScope() {
	f := s.current()
	f.scopes = f.scopes[:len(f.scopes)-1]
}

func (s *SemanticAnalyzer) declareLocal(name string, kind SymbolKind, pos, namePos Position, params []string) *Symbol {
	sym := &Symbol{Name: name, Kind: kind, Pos: pos, NamePos: namePos, Params: params}
	f := s.current()
	f.scopes[len(f.scopes)-1][name] = sym
	s.index.Symbols = append(s.index.Symbols, sym)
	return sym
}

// reference resolves a use of name at pos.
func (s *SemanticAnalyzer) reference(name string, pos Position) {
	f := s.current()
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if sym, ok := f.scopes[i][name]; ok {
			sym.References = append(sym.References, pos)
			return
		}
	}
	if f.self != nil && f.self.Name == name {
		f.self.References = append(f.self.References, pos)
		return
	}
	for i := len(s.funcs) - 2; i >= 0; i-- {
		for _, sc := range s.funcs[i].scopes {
			if _, ok := sc[name]; ok {
				// The compiler reports this as an error; nothing to index.
				return
			}
		}
	}
	s.pendingGlobals = append(s.pendingGlobals, pendingRef{name, pos})
}

// analyzeStatements walks stmts and flags code after return, break or
// continue in the same block.
func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt, topLevel bool) {
	for i, stmt := range stmts {
		s.analyzeStmt(stmt, topLevel)
		switch stmt.(type) {
		case *Return, *Break, *Continue:
			if i < len(stmts)-1 {
				s.warnAt(stmts[i+1].Pos(), "unreachable code")
				for _, rest := range stmts[i+1:] {
					s.analyzeStmt(rest, topLevel)
				}
				return
			}
		}
	}
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt, topLevel bool) {
	switch st := stmt.(type) {
	case *ExprStmt:
		s.analyzeExpr(st.Expr)

	case *VarDecl:
		if st.Init != nil {
			s.analyzeExpr(st.Init)
		}
		if !topLevel {
			s.declareLocal(st.Name, SymbolVariable, st.Pos(), st.NamePos, nil)
		}

	case *FuncDecl:
		var self *Symbol
		if topLevel {
			self = s.globals[st.Name]
		} else {
			self = s.declareLocal(st.Name, SymbolFunction, st.Pos(), st.NamePos, st.ParamNames())
		}
		s.analyzeFunction(st, self)

	case *Block:
		s.pushScope()
		s.analyzeStatements(st.Stmts, false)
		s.popScope()

	case *If:
		s.analyzeExpr(st.Cond)
		s.analyzeStmt(st.Then, false)
		if st.Else != nil {
			s.analyzeStmt(st.Else, false)
		}

	case *While:
		s.analyzeExpr(st.Cond)
		s.analyzeStmt(st.Body, false)

	case *For:
		s.pushScope()
		if st.Init != nil {
			s.analyzeStmt(st.Init, false)
		}
		if st.Cond != nil {
			s.analyzeExpr(st.Cond)
		}
		s.analyzeStmt(st.Body, false)
		if st.Incr != nil {
			s.analyzeExpr(st.Incr)
		}
		s.popScope()

	case *Print:
		for _, arg := range st.Args {
			s.analyzeExpr(arg)
		}

	case *Return:
		if st.Value != nil {
			s.analyzeExpr(st.Value)
		}
	}
}

func (s *SemanticAnalyzer) analyzeFunction(fn *FuncDecl, self *Symbol) {
	f := &analyzerFunc{}
	if self != nil && !self.Global {
		f.self = self
	}
	s.funcs = append(s.funcs, f)
	s.pushScope()
	for _, p := range fn.Params {
		s.declareLocal(p.Name, SymbolParameter, p.PosVal, p.PosVal, nil)
	}
	s.analyzeStatements(fn.Body.Stmts, false)
	s.funcs = s.funcs[:len(s.funcs)-1]
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Variable:
		s.reference(e.Name, e.Pos())
	case *Assign:
		s.analyzeExpr(e.Value)
		s.analyzeExpr(e.Target)
	case *Logical:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Binary:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Unary:
		s.analyzeExpr(e.Operand)
	case *Call:
		s.analyzeExpr(e.Callee)
		for _, arg := range e.Args {
			s.analyzeExpr(arg)
		}
	case *ArrayLiteral:
		for _, elem := range e.Elements {
			s.analyzeExpr(elem)
		}
	case *Index:
		s.analyzeExpr(e.Array)
		s.analyzeExpr(e.Index)
	case *Grouping:
		s.analyzeExpr(e.Expr)
	// Literals don't need checking
	case *NumberLiteral, *StringLiteral, *BoolLiteral, *NilLiteral:
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// SymbolAt returns the symbol whose name is declared or referenced at
// line:col (1-based), or nil.
func (idx *SymbolIndex) SymbolAt(line, col int) *Symbol {
	covers := func(p Position, name string) bool {
		return p.Line == line && col >= p.Column && col < p.Column+len(name)
	}
	for _, sym := range idx.Symbols {
		if covers(sym.NamePos, sym.Name) {
			return sym
		}
		for _, ref := range sym.References {
			if covers(ref, sym.Name) {
				return sym
			}
		}
	}
	return nil
}

// Lookup returns the global symbol called name, or the first local one.
func (idx *SymbolIndex) Lookup(name string) *Symbol {
	var local *Symbol
	for _, sym := range idx.Symbols {
		if sym.Name != name {
			continue
		}
		if sym.Global {
			return sym
		}
		if local == nil {
			local = sym
		}
	}
	return local
}

// Names returns every declared name once, in declaration order.
func (idx *SymbolIndex) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, sym := range idx.Symbols {
		if !seen[sym.Name] {
			seen[sym.Name] = true
			names = append(names, sym.Name)
		}
	}
	return names
}
