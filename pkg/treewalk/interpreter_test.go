package treewalk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
)

func parseOK(t *testing.T, source string) *compiler.Program {
	t.Helper()
	prog, errs := compiler.Parse(source)
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return prog
}

func newInterp() (*Interpreter, *bytes.Buffer) {
	globals := bytecode.NewGlobals()
	bytecode.DefineBuiltins(globals)
	var out bytes.Buffer
	return New(globals, &out), &out
}

func runProgram(t *testing.T, source string) (string, error) {
	t.Helper()
	in, out := newInterp()
	_, err := in.Run(parseOK(t, source))
	if in.FrameDepth() != 0 {
		t.Errorf("FrameDepth after run = %d, want 0", in.FrameDepth())
	}
	return out.String(), err
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "factorial",
			source: `fn fact(n) {
  if n <= 1 { return 1; }
  return n * fact(n - 1);
}
print fact(5), fact(0);`,
			want: "120 1\n",
		},
		{
			name:   "arithmetic",
			source: `print 1 + 2 * 3, (1 + 2) * 3, 7 / 2, 7 % 3, -7 % 3, 0.1 + 0.2;`,
			want:   "7 9 3.5 1 -1 0.30000000000000004\n",
		},
		{
			name:   "logical operators return operands",
			source: `print nil or "default", 0 and "zero is truthy", false and crash(), true or crash();`,
			want:   "default zero is truthy false true\n",
		},
		{
			name: "while with break and continue",
			source: `let i = 0; let sum = 0;
while true {
  i += 1;
  if i > 10 { break; }
  if i % 2 == 0 { continue; }
  sum += i;
}
print sum;`,
			want: "25\n",
		},
		{
			name: "for loop locals",
			source: `let out = [];
for (let i = 0; i < 5; i += 1) {
  let sq = i * i;
  if sq == 4 { continue; }
  push(out, sq);
}
print out;`,
			want: "[0, 1, 9, 16]\n",
		},
		{
			name: "for variable is not visible after the loop",
			source: `let i = "global";
for (let i = 0; i < 2; i += 1) {}
print i;`,
			want: "global\n",
		},
		{
			name: "arrays are shared references",
			source: `let a = [1, 2, 3];
let b = a;
b[0] = 10;
a[1] *= 5;
print a, len(a), pop(a), a;`,
			want: "[10, 10] 3 3 [10, 10]\n",
		},
		{
			name: "block scoping and shadowing",
			source: `let x = "global";
{
  let x = "outer";
  {
    let x = x + "-inner";
    print x;
  }
  print x;
}
print x;`,
			want: "outer-inner\nouter\nglobal\n",
		},
		{
			name: "local recursive function",
			source: `fn countdown(n) {
  fn go(k) {
    if k == 0 { return "done"; }
    return go(k - 1);
  }
  return go(n);
}
print countdown(20);`,
			want: "done\n",
		},
		{
			name: "functions are values",
			source: `fn twice(f, x) { return f(f(x)); }
fn inc(n) { return n + 1; }
print twice(inc, 5), inc, len, type(inc), type(len);`,
			want: "7 <fn inc> <native fn len> function function\n",
		},
		{
			name:   "assignment is an expression",
			source: `let a; let b; a = b = 3; print a, b;`,
			want:   "3 3\n",
		},
		{
			name:   "print formatting",
			source: `print 3.0, -0.5, 2.50, nil, true, "x"; print;`,
			want:   "3 -0.5 2.5 nil true x\n\n",
		},
		{
			name: "return from inside a loop",
			source: `fn find(a, x) {
  for (let i = 0; i < len(a); i += 1) {
    while true { if a[i] == x { return i; } break; }
  }
  return -1;
}
print find([4, 5, 6], 6), find([], 1);`,
			want: "2 -1\n",
		},
		{
			name:   "top level return stops the script",
			source: `print 1; return; print 2;`,
			want:   "1\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := runProgram(t, tc.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if got != tc.want {
				t.Errorf("output = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		source string
		kind   bytecode.ErrorKind
		line   int
		msg    string
	}{
		{"print 1 + nil;", bytecode.TypeError, 1, "unsupported operand types for +: number and nil"},
		{"print\n1 / 0;", bytecode.ArithmeticError, 2, "division by zero"},
		{"print nope;", bytecode.NameError, 1, "undefined variable 'nope'"},
		{"\nnope = 1;", bytecode.NameError, 2, "undefined variable 'nope'"},
		{"let a = [1];\nprint a[1];", bytecode.IndexError, 2, "index 1 out of bounds for array of length 1"},
		{"fn f(a) {} f();", bytecode.ArityError, 1, "f() takes 1 argument (0 given)"},
		{"let x = 1; x();", bytecode.CallError, 1, "can only call functions, got number"},
		{`assert(1 > 2, "nope");`, bytecode.AssertionError, 1, "nope"},
		{"fn f() {\n  return -nil;\n}\nf();", bytecode.TypeError, 2, ""},
		{"fn r(n) { return r(n + 1); }\nr(0);", bytecode.StackOverflow, 1, "call depth exceeded 256 frames"},
		{"fn outer() {\n  let x = 1;\n  fn inner() { return x; }\n  return inner();\n}\nouter();", bytecode.NameError, 3, ""},
	}

	for _, tc := range tests {
		_, err := runProgram(t, tc.source)
		var rerr *bytecode.RuntimeError
		if !errors.As(err, &rerr) {
			t.Errorf("%q: err = %v, want RuntimeError", tc.source, err)
			continue
		}
		if rerr.Kind != tc.kind {
			t.Errorf("%q: kind = %v, want %v", tc.source, rerr.Kind, tc.kind)
		}
		if rerr.Line != tc.line {
			t.Errorf("%q: line = %d, want %d", tc.source, rerr.Line, tc.line)
		}
		if tc.msg != "" && rerr.Message != tc.msg {
			t.Errorf("%q: message = %q, want %q", tc.source, rerr.Message, tc.msg)
		}
	}
}

func TestCompoundIndexEvaluatesOnce(t *testing.T) {
	got, err := runProgram(t, `let calls = 0;
fn f() { calls += 1; return 0; }
let a = [1];
a[f()] += 1;
print a, calls;`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[2] 1\n" {
		t.Errorf("output = %q, want %q", got, "[2] 1\n")
	}
}

func TestOutputBeforeError(t *testing.T) {
	out, err := runProgram(t, "print 1;\nprint 2;\nprint 1 / 0;\nprint 3;")
	if err == nil {
		t.Fatal("expected runtime error")
	}
	if out != "1\n2\n" {
		t.Errorf("output = %q, want output up to the failing statement", out)
	}
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	in, out := newInterp()
	if _, err := in.Run(parseOK(t, "let n = 1; fn bump() { n += 1; }")); err != nil {
		t.Fatal(err)
	}
	// A failed run leaves earlier definitions in place.
	if _, err := in.Run(parseOK(t, "bump(); nope();")); err == nil {
		t.Fatal("expected NameError")
	}
	if _, err := in.Run(parseOK(t, "bump(); print n;")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "3\n" {
		t.Errorf("output = %q, want %q", out.String(), "3\n")
	}
}

func TestREPLValue(t *testing.T) {
	in, _ := newInterp()
	in.REPL = true
	v, err := in.Run(parseOK(t, "let x = 4; x * x;"))
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNumber() || v.AsNumber() != 16 {
		t.Errorf("value = %s, want 16", v.Repr())
	}

	in.REPL = false
	v, err = in.Run(parseOK(t, "x * x;"))
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNil() {
		t.Errorf("value outside REPL mode = %s, want nil", v.Repr())
	}
}

func TestCallingCompiledFunction(t *testing.T) {
	prog := parseOK(t, "fn f() { return 1; }")
	fn, errs := compiler.Compile(prog, compiler.Options{})
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	globals := bytecode.NewGlobals()
	if _, err := bytecode.NewVM(globals, &bytes.Buffer{}).Run(fn); err != nil {
		t.Fatal(err)
	}

	in := New(globals, &bytes.Buffer{})
	_, err := in.Run(parseOK(t, "f();"))
	var rerr *bytecode.RuntimeError
	if !errors.As(err, &rerr) || rerr.Kind != bytecode.CallError {
		t.Fatalf("err = %v, want CallError", err)
	}
	if rerr.Message != "function 'f' was not declared in the tree-walking interpreter" {
		t.Errorf("message = %q", rerr.Message)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrintWriteFailure(t *testing.T) {
	in := New(bytecode.NewGlobals(), failingWriter{})
	_, err := in.Run(parseOK(t, "\nprint 1;"))
	var rerr *bytecode.RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RuntimeError", err)
	}
	if rerr.Kind != bytecode.CallError || rerr.Line != 2 {
		t.Errorf("got %v, want CallError on line 2", rerr)
	}
}
