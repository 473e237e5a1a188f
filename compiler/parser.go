package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for myl
// ---------------------------------------------------------------------------

// MaxArgs is the largest number of call arguments or function parameters.
const MaxArgs = 255

// Parser parses myl source code into an AST.
//
// Errors do not stop the parse. The first error inside a statement puts the
// parser into panic mode; it then discards tokens up to the next statement
// boundary and carries on, so one run reports every broken statement once.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    ErrorList
	panicking bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program. The program is returned even when errors
// were found; it then contains every statement that parsed cleanly.
func Parse(input string) (*Program, ErrorList) {
	p := NewParser(input)
	prog := p.ParseProgram()
	return prog, p.Errors()
}

// nextToken advances to the next token. Lexical errors are recorded here
// and never reach the grammar.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	for {
		tok := p.lexer.NextToken()
		if tok.Type != TokenError {
			p.peekToken = tok
			return
		}
		p.errors.add(LexError, tok.Pos, "%s", tok.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.describe())
	return false
}

// errorf records a parse error at the current token and enters panic mode.
// While panicking further errors are suppressed.
func (p *Parser) errorf(format string, args ...any) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...any) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.errors.add(ParseError, pos, format, args...)
}

// Errors returns accumulated lex and parse errors in source order.
func (p *Parser) Errors() ErrorList {
	p.errors.Sort()
	return p.errors
}

// synchronize discards tokens until a statement boundary: just past a ';',
// at a '}', or at a keyword that starts a statement. A block opened while
// skipping is skipped whole, along with an 'else' that follows it, so its
// closing brace is not mistaken for the end of an enclosing block.
func (p *Parser) synchronize() {
	p.panicking = false
	depth := 0
	for !p.curTokenIs(TokenEOF) {
		if depth > 0 {
			switch p.curToken.Type {
			case TokenLBrace:
				depth++
			case TokenRBrace:
				depth--
				if depth == 0 {
					p.nextToken()
					if !p.curTokenIs(TokenElse) {
						return
					}
				}
			}
			p.nextToken()
			continue
		}
		switch p.curToken.Type {
		case TokenLBrace:
			depth++
		case TokenSemicolon:
			p.nextToken()
			return
		case TokenRBrace, TokenLet, TokenFn, TokenIf, TokenWhile, TokenFor,
			TokenPrint, TokenReturn, TokenBreak, TokenContinue:
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenRBrace) {
			p.errorf("unexpected '}'")
			p.nextToken()
			p.panicking = false
			continue
		}
		if stmt := p.parseStatement(); stmt != nil && !p.panicking {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}
	prog.Comments = p.lexer.Comments()
	return prog
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseVarDecl()
	case TokenFn:
		return p.parseFuncDecl()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenPrint:
		return p.parsePrint()
	case TokenReturn:
		return p.parseReturn()
	case TokenBreak:
		pos := p.curToken.Pos
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &Break{PosVal: pos}
	case TokenContinue:
		pos := p.curToken.Pos
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &Continue{PosVal: pos}
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseExprStmt() Stmt {
	pos := p.curToken.Pos
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	return &ExprStmt{PosVal: pos, Expr: expr}
}

// parseVarDecl parses `let name (= expr)? ;`.
func (p *Parser) parseVarDecl() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'let'

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name, got %s", p.curToken.describe())
		return nil
	}
	name, namePos := p.curToken.Literal, p.curToken.Pos
	p.nextToken()

	var init Expr
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		if init = p.parseExpression(); init == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	return &VarDecl{PosVal: pos, Name: name, NamePos: namePos, Init: init}
}

// parseFuncDecl parses `fn name(a, b) { ... }`.
func (p *Parser) parseFuncDecl() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'fn'

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", p.curToken.describe())
		return nil
	}
	name, namePos := p.curToken.Literal, p.curToken.Pos
	p.nextToken()

	if !p.expect(TokenLParen) {
		return nil
	}
	var params []Param
	if !p.curTokenIs(TokenRParen) {
		for {
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("expected parameter name, got %s", p.curToken.describe())
				return nil
			}
			if len(params) == MaxArgs {
				p.errorf("too many parameters (max %d)", MaxArgs)
				return nil
			}
			params = append(params, Param{PosVal: p.curToken.Pos, Name: p.curToken.Literal})
			p.nextToken()
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &FuncDecl{PosVal: pos, Name: name, NamePos: namePos, Params: params, Body: body}
}

// parseBlock parses `{ stmts }`. Broken statements inside the block are
// reported and skipped without abandoning the block.
func (p *Parser) parseBlock() *Block {
	pos := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}

	block := &Block{PosVal: pos}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if stmt := p.parseStatement(); stmt != nil && !p.panicking {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}

	block.End = p.curToken.Pos
	if !p.expect(TokenRBrace) {
		return nil
	}
	return block
}

// parseIf parses `if cond { } (else if ... | else { })?`.
func (p *Parser) parseIf() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'if'

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}

	stmt := &If{PosVal: pos, Cond: cond, Then: then}
	if !p.curTokenIs(TokenElse) {
		return stmt
	}
	p.nextToken() // consume 'else'

	switch {
	case p.curTokenIs(TokenIf):
		elseIf := p.parseIf()
		if elseIf == nil {
			return nil
		}
		stmt.Else = elseIf
	case p.curTokenIs(TokenLBrace):
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		stmt.Else = block
	default:
		p.errorf("expected 'if' or '{' after 'else', got %s", p.curToken.describe())
		return nil
	}
	return stmt
}

// parseWhile parses `while cond { body }`.
func (p *Parser) parseWhile() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'while'

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &While{PosVal: pos, Cond: cond, Body: body}
}

// parseFor parses `for (init; cond; incr) { body }`.
func (p *Parser) parseFor() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'for'

	if !p.expect(TokenLParen) {
		return nil
	}

	stmt := &For{PosVal: pos}
	switch {
	case p.curTokenIs(TokenSemicolon):
		p.nextToken()
	case p.curTokenIs(TokenLet):
		if stmt.Init = p.parseVarDecl(); stmt.Init == nil {
			return nil
		}
	default:
		if stmt.Init = p.parseExprStmt(); stmt.Init == nil {
			return nil
		}
	}

	if !p.curTokenIs(TokenSemicolon) {
		if stmt.Cond = p.parseExpression(); stmt.Cond == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}

	if !p.curTokenIs(TokenRParen) {
		if stmt.Incr = p.parseExpression(); stmt.Incr == nil {
			return nil
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}

	if stmt.Body = p.parseBlock(); stmt.Body == nil {
		return nil
	}
	return stmt
}

// parsePrint parses `print a, b;`. Zero arguments print an empty line.
func (p *Parser) parsePrint() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'print'

	stmt := &Print{PosVal: pos}
	if !p.curTokenIs(TokenSemicolon) {
		for {
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			stmt.Args = append(stmt.Args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if len(stmt.Args) > MaxArgs {
		p.errorAt(pos, "too many values in print (max %d)", MaxArgs)
		return nil
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	return stmt
}

// parseReturn parses `return expr?;`.
func (p *Parser) parseReturn() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume 'return'

	stmt := &Return{PosVal: pos}
	if !p.curTokenIs(TokenSemicolon) {
		if stmt.Value = p.parseExpression(); stmt.Value == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

var assignOps = map[TokenType]string{
	TokenAssign:      "=",
	TokenPlusAssign:  "+=",
	TokenMinusAssign: "-=",
	TokenStarAssign:  "*=",
	TokenSlashAssign: "/=",
}

// parseAssignment is right associative: a = b = c assigns c to both.
func (p *Parser) parseAssignment() Expr {
	target := p.parseOr()
	if target == nil {
		return nil
	}

	op, ok := assignOps[p.curToken.Type]
	if !ok {
		return target
	}
	opPos := p.curToken.Pos
	p.nextToken()

	value := p.parseAssignment()
	if value == nil {
		return nil
	}

	switch target.(type) {
	case *Variable, *Index:
		return &Assign{PosVal: opPos, Target: target, Op: op, Value: value}
	}
	p.errorAt(opPos, "invalid assignment target")
	return nil
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for left != nil && p.curTokenIs(TokenOr) {
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = &Logical{PosVal: pos, Op: "or", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()
	for left != nil && p.curTokenIs(TokenAnd) {
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = &Logical{PosVal: pos, Op: "and", Left: left, Right: right}
	}
	return left
}

// parseBinaryLevel parses a left-associative chain of the given operators
// whose operands come from next.
func (p *Parser) parseBinaryLevel(next func() Expr, ops ...TokenType) Expr {
	left := next()
	for left != nil {
		matched := false
		for _, t := range ops {
			if p.curTokenIs(t) {
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
		opTok := p.curToken
		p.nextToken()
		right := next()
		if right == nil {
			return nil
		}
		left = &Binary{PosVal: opTok.Pos, Op: opTok.Literal, Left: left, Right: right}
	}
	return nil
}

func (p *Parser) parseEquality() Expr {
	return p.parseBinaryLevel(p.parseComparison, TokenEqual, TokenNotEqual)
}

func (p *Parser) parseComparison() Expr {
	return p.parseBinaryLevel(p.parseTerm, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) parseTerm() Expr {
	return p.parseBinaryLevel(p.parseFactor, TokenPlus, TokenMinus)
}

func (p *Parser) parseFactor() Expr {
	return p.parseBinaryLevel(p.parseUnary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenBang) || p.curTokenIs(TokenMinus) {
		opTok := p.curToken
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &Unary{PosVal: opTok.Pos, Op: opTok.Literal, Operand: operand}
	}
	return p.parseCall()
}

// parseCall parses a primary followed by any chain of (args) and [index].
func (p *Parser) parseCall() Expr {
	expr := p.parsePrimary()
	for expr != nil {
		switch {
		case p.curTokenIs(TokenLParen):
			expr = p.finishCall(expr)
		case p.curTokenIs(TokenLBracket):
			pos := p.curToken.Pos
			p.nextToken()
			idx := p.parseExpression()
			if idx == nil || !p.expect(TokenRBracket) {
				return nil
			}
			expr = &Index{PosVal: pos, Array: expr, Index: idx}
		default:
			return expr
		}
	}
	return nil
}

func (p *Parser) finishCall(callee Expr) Expr {
	pos := p.curToken.Pos
	p.nextToken() // consume '('

	var args []Expr
	if !p.curTokenIs(TokenRParen) {
		for {
			if len(args) == MaxArgs {
				p.errorf("too many arguments (max %d)", MaxArgs)
				return nil
			}
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	return &Call{PosVal: pos, Callee: callee, Args: args}
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorAt(tok.Pos, "invalid number literal %q", tok.Literal)
			return nil
		}
		return &NumberLiteral{PosVal: tok.Pos, Value: v, Raw: tok.Literal}

	case TokenString:
		p.nextToken()
		return &StringLiteral{PosVal: tok.Pos, Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{PosVal: tok.Pos, Value: tok.Type == TokenTrue}

	case TokenNil:
		p.nextToken()
		return &NilLiteral{PosVal: tok.Pos}

	case TokenIdentifier:
		p.nextToken()
		return &Variable{PosVal: tok.Pos, Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression()
		if inner == nil || !p.expect(TokenRParen) {
			return nil
		}
		return &Grouping{PosVal: tok.Pos, Expr: inner}

	case TokenLBracket:
		return p.parseArrayLiteral()
	}

	p.errorf("expected expression, got %s", tok.describe())
	return nil
}

// parseArrayLiteral parses `[a, b, c]`, allowing a trailing comma.
func (p *Parser) parseArrayLiteral() Expr {
	pos := p.curToken.Pos
	p.nextToken() // consume '['

	arr := &ArrayLiteral{PosVal: pos}
	for !p.curTokenIs(TokenRBracket) {
		elem := p.parseExpression()
		if elem == nil {
			return nil
		}
		arr.Elements = append(arr.Elements, elem)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(TokenRBracket) {
		return nil
	}
	return arr
}
