package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the myl lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.14
	TokenString     // "hello", 'hello'
	TokenIdentifier // foo, bar_baz

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenAssign       // =
	TokenPlusAssign   // +=
	TokenMinusAssign  // -=
	TokenStarAssign   // *=
	TokenSlashAssign  // /=
	TokenEqual        // ==
	TokenBang         // !
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenSemicolon // ;

	// Keywords
	TokenLet
	TokenFn
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenBreak
	TokenContinue
	TokenReturn
	TokenAnd
	TokenOr
	TokenPrint
	TokenTrue
	TokenFalse
	TokenNil
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "end of input",
	TokenError:        "ERROR",
	TokenNumber:       "number",
	TokenString:       "string",
	TokenIdentifier:   "identifier",
	TokenPlus:         "'+'",
	TokenMinus:        "'-'",
	TokenStar:         "'*'",
	TokenSlash:        "'/'",
	TokenPercent:      "'%'",
	TokenAssign:       "'='",
	TokenPlusAssign:   "'+='",
	TokenMinusAssign:  "'-='",
	TokenStarAssign:   "'*='",
	TokenSlashAssign:  "'/='",
	TokenEqual:        "'=='",
	TokenBang:         "'!'",
	TokenNotEqual:     "'!='",
	TokenLess:         "'<'",
	TokenLessEqual:    "'<='",
	TokenGreater:      "'>'",
	TokenGreaterEqual: "'>='",
	TokenLParen:       "'('",
	TokenRParen:       "')'",
	TokenLBrace:       "'{'",
	TokenRBrace:       "'}'",
	TokenLBracket:     "'['",
	TokenRBracket:     "']'",
	TokenComma:        "','",
	TokenSemicolon:    "';'",
	TokenLet:          "'let'",
	TokenFn:           "'fn'",
	TokenIf:           "'if'",
	TokenElse:         "'else'",
	TokenWhile:        "'while'",
	TokenFor:          "'for'",
	TokenBreak:        "'break'",
	TokenContinue:     "'continue'",
	TokenReturn:       "'return'",
	TokenAnd:          "'and'",
	TokenOr:           "'or'",
	TokenPrint:        "'print'",
	TokenTrue:         "'true'",
	TokenFalse:        "'false'",
	TokenNil:          "'nil'",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the decoded value for strings
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders a token for "expected X, got Y" messages.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenNumber:
		return fmt.Sprintf("%s '%s'", t.Type, t.Literal)
	case TokenString:
		return "string"
	}
	return t.Type.String()
}

// Keywords mapped to their token types.
var keywords = map[string]TokenType{
	"let":      TokenLet,
	"fn":       TokenFn,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"return":   TokenReturn,
	"and":      TokenAnd,
	"or":       TokenOr,
	"print":    TokenPrint,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"nil":      TokenNil,
}

// Keywords returns the reserved words of the language, sorted.
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for w := range keywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	_, ok := keywords[word]
	return ok
}
