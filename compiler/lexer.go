package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for myl source
// ---------------------------------------------------------------------------

// Lexer tokenizes myl source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)

	comments []Comment
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		if l.pos < len(l.input) {
			l.col++
		}
		l.ch = 0 // EOF
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token. Malformed input yields a TokenError
// whose Literal is the diagnostic; the lexer has already skipped past it.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	if l.atEOF() {
		return Token{Type: TokenEOF, Literal: "", Pos: pos}
	}

	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	// withEq scans a one-character operator that may be followed by '='.
	withEq := func(plain, eq TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: eq, Literal: lit + "=", Pos: pos}
		}
		return Token{Type: plain, Literal: lit, Pos: pos}
	}

	switch {
	case l.ch == '(':
		return single(TokenLParen)
	case l.ch == ')':
		return single(TokenRParen)
	case l.ch == '{':
		return single(TokenLBrace)
	case l.ch == '}':
		return single(TokenRBrace)
	case l.ch == '[':
		return single(TokenLBracket)
	case l.ch == ']':
		return single(TokenRBracket)
	case l.ch == ',':
		return single(TokenComma)
	case l.ch == ';':
		return single(TokenSemicolon)
	case l.ch == '%':
		return single(TokenPercent)

	case l.ch == '+':
		return withEq(TokenPlus, TokenPlusAssign)
	case l.ch == '-':
		return withEq(TokenMinus, TokenMinusAssign)
	case l.ch == '*':
		return withEq(TokenStar, TokenStarAssign)
	case l.ch == '/':
		return withEq(TokenSlash, TokenSlashAssign)
	case l.ch == '=':
		return withEq(TokenAssign, TokenEqual)
	case l.ch == '!':
		return withEq(TokenBang, TokenNotEqual)
	case l.ch == '<':
		return withEq(TokenLess, TokenLessEqual)
	case l.ch == '>':
		return withEq(TokenGreater, TokenGreaterEqual)

	case l.ch == '"' || l.ch == '\'':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character '%c'", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			pos := l.position()
			start := l.pos
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
			text := strings.TrimRight(l.input[start:l.pos], " \t\r")
			l.comments = append(l.comments, Comment{PosVal: pos, Text: text})
			continue
		}
		return
	}
}

// readString reads a string literal delimited by " or '.
// The token literal is the decoded value.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	l.readChar() // consume opening quote

	var sb strings.Builder
	var badEscape string
	for !l.atEOF() && l.ch != quote {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\', '"', '\'':
				sb.WriteRune(l.ch)
			default:
				if l.atEOF() {
					continue
				}
				if badEscape == "" {
					badEscape = fmt.Sprintf("unknown escape sequence '\\%c'", l.ch)
				}
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.atEOF() {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	l.readChar() // consume closing quote

	if badEscape != "" {
		return Token{Type: TokenError, Literal: badEscape, Pos: pos}
	}
	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer or decimal literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	word := l.input[start:l.pos]
	if t, ok := keywords[word]; ok {
		return Token{Type: t, Literal: word, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: word, Pos: pos}
}

// Comments returns the line comments skipped so far.
func (l *Lexer) Comments() []Comment {
	return l.comments
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input up to and including EOF.
// Malformed tokens are reported in the error list and left out of the
// token slice.
func Tokenize(input string) ([]Token, ErrorList) {
	l := NewLexer(input)
	var tokens []Token
	var errs ErrorList
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			errs.add(LexError, tok.Pos, "%s", tok.Literal)
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens, errs
}
