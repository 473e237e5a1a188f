package compiler

import (
	"testing"
)

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	seeds := []string{
		// Punctuation and operators
		`( ) { } [ ] , ; + - * / % = += -= *= /= == ! != < <= > >=`,
		// Numbers
		`42`, `0`, `3.14`, `1.`, `.5`, `007`,
		// Strings
		`"hello"`, `'hello'`, `""`, `"a\nb\t\0"`, `"\q"`, `'it\'s'`,
		// Identifiers and keywords
		`foo`, `_private`, `let`, `fn`, `while`, `nil`, `café`,
		// Comments
		`// comment`, "a // comment\nb",
		// Edge cases
		`"unterminated`, `'`, `"\`, `@#$`, `/`,
		// Unicode
		`"こんにちは"`, `naïve`,
		// Empty
		``, `   `, "\t\n\r",
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; i < len(data)+100; i++ {
			tok := l.NextToken()
			if tok.Type == TokenEOF {
				return
			}
		}
		t.Fatalf("lexer did not reach EOF on input %q", data)
	})
}

// ---------------------------------------------------------------------------
// FuzzParser: ensure the parser never panics on arbitrary input.
// Parse errors are acceptable; panics are not.
// ---------------------------------------------------------------------------

func FuzzParser(f *testing.F) {
	seeds := []string{
		`let x = 1;`, `print 1 + 2 * 3;`, `x = y = z;`, `a[0] += 1;`,
		`fn f(a, b) { return a + b; }`,
		`if x { } else if y { } else { }`,
		`while x < 3 { x += 1; }`,
		`for (let i = 0; i < 3; i += 1) { continue; }`,
		`print [1, 2, 3,][0];`,
		`f(1)(2)[3];`,
		// Broken input
		``, `(`, `)`, `{`, `}`, `[`, `]`, `;`, `let`, `fn`, `fn f(`,
		`let x = ;`, `1 = 2;`, `if x print;`, `for (;;`, `print 1,;`,
		`}}}`, `{{{`, `else`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parser panicked on input %q: %v", data, r)
			}
		}()

		prog, _ := Parse(data)
		if prog == nil {
			t.Fatalf("Parse returned nil program for %q", data)
		}

		p := NewParser(data)
		_ = p.ParseExpression()
		_ = p.Errors()
	})
}

// ---------------------------------------------------------------------------
// FuzzCompile: feed arbitrary programs through parse and codegen.
// Errors are fine, panics are not.
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	seeds := []string{
		`print 1;`,
		`let a = [1, 2]; a[0] *= 3; print a;`,
		`fn fib(n) { if n < 2 { return n; } return fib(n - 1) + fib(n - 2); }`,
		`fn outer() { fn inner() { return inner; } return inner(); }`,
		`{ let a = 1; { let b = a; while b { break; } } }`,
		`for (let i = 0; i < 10; i += 1) { if i % 2 == 0 { continue; } print i; }`,
		`break;`, `continue;`, `fn f(a, a) {}`,
		`fn f() { let x; fn g() { return x; } }`,
		`return;`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("compiler panicked on input %q: %v", data, r)
			}
		}()

		prog, errs := Parse(data)
		if len(errs) > 0 {
			return
		}
		fn, cerrs := Compile(prog, Options{})
		if len(cerrs) == 0 && fn == nil {
			t.Fatalf("Compile returned no function and no errors for %q", data)
		}
		_, _ = Compile(prog, Options{REPL: true})
	})
}

// ---------------------------------------------------------------------------
// FuzzSemantic: ensure the semantic analyzer never panics on arbitrary input.
// Warnings are acceptable; panics are bugs.
// ---------------------------------------------------------------------------

func FuzzSemantic(f *testing.F) {
	seeds := []string{
		`print undefinedVar;`,
		`fn f() { return 1; print 2; }`,
		`while true { break; print 1; }`,
		`let x = 1; { let x = 2; print x; } print x;`,
		`fn f(n) { fn g() { return g; } return n; }`,
		`fn f() { let x; fn g() { return x; } }`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("semantic analyzer panicked on input %q: %v", data, r)
			}
		}()

		prog, _ := Parse(data)
		idx := Analyze(prog)
		_ = idx.SymbolAt(1, 1)
	})
}
