package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/myl/pkg/session"
)

func newTestREPL() (*repl, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	sess := session.New(&out, session.Options{REPL: true})
	return newREPL(sess, &out, &errOut), &out, &errOut
}

// feed sends lines to the REPL and fails if any of them quits.
func feed(t *testing.T, r *repl, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if _, quit := r.handleLine(line); quit {
			t.Fatalf("line %q quit the REPL", line)
		}
	}
}

func TestREPLPrintsValues(t *testing.T) {
	r, out, errOut := newTestREPL()
	feed(t, r, "1 + 2;", `"a" + "b";`, "let x = 5;", "", "x;", "print x;")

	if got, want := out.String(), "3\n\"ab\"\n5\n5\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected errors: %s", errOut)
	}
}

func TestREPLMultiLineEntry(t *testing.T) {
	r, out, _ := newTestREPL()

	entry, _ := r.handleLine("fn sq(n) {")
	if entry != "" || !r.pending() {
		t.Fatalf("open brace should wait for more input, got entry %q", entry)
	}
	feed(t, r, "  return n * n;")
	entry, _ = r.handleLine("}")
	if entry != "fn sq(n) {\n  return n * n;\n}" {
		t.Errorf("entry = %q", entry)
	}
	if r.pending() {
		t.Error("entry should be complete")
	}

	feed(t, r, "sq(4);")
	if out.String() != "16\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPLErrorsKeepState(t *testing.T) {
	r, out, errOut := newTestREPL()
	feed(t, r, "let y = 1;", "print nope;", "let = ;", "y;")

	if !strings.Contains(errOut.String(), "NameError") {
		t.Errorf("missing runtime error: %q", errOut)
	}
	if !strings.Contains(errOut.String(), "ParseError") {
		t.Errorf("missing parse error: %q", errOut)
	}
	if out.String() != "1\n" {
		t.Errorf("globals lost after errors, output = %q", out.String())
	}
}

func TestREPLQuit(t *testing.T) {
	r, _, _ := newTestREPL()
	for _, line := range []string{"exit", "  quit  "} {
		if _, quit := r.handleLine(line); !quit {
			t.Errorf("%q did not quit", line)
		}
	}

	// Inside an open entry, exit is just text.
	feed(t, r, "[")
	if _, quit := r.handleLine("exit"); quit {
		t.Error("exit inside a multi-line entry should not quit")
	}
}

func TestREPLCommands(t *testing.T) {
	r, out, errOut := newTestREPL()
	feed(t, r, "let x = [1, \"s\"];", "fn f() { return 1; }", ":globals")
	got := out.String()
	if !strings.Contains(got, `  x = [1, "s"]`) || !strings.Contains(got, "  f = <fn f>") {
		t.Errorf(":globals output:\n%s", got)
	}
	if strings.Contains(got, "len") {
		t.Errorf(":globals should hide builtins:\n%s", got)
	}

	out.Reset()
	feed(t, r, ":backend", ":backend tree", ":backend jit")
	if out.String() != "backend: vm\nbackend: tree\n" {
		t.Errorf(":backend output = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "unknown backend") {
		t.Errorf(":backend jit error = %q", errOut)
	}

	out.Reset()
	feed(t, r, ":disasm print 1;")
	if !strings.Contains(out.String(), "PRINT") {
		t.Errorf(":disasm output:\n%s", out.String())
	}

	out.Reset()
	errOut.Reset()
	feed(t, r, ":reset", "x;")
	if !strings.Contains(errOut.String(), "NameError") {
		t.Errorf("x should be gone after :reset, errors = %q", errOut)
	}

	errOut.Reset()
	feed(t, r, ":nope")
	if !strings.Contains(errOut.String(), "unknown command: :nope") {
		t.Errorf("unknown command error = %q", errOut)
	}
}

func TestREPLSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "globals.cbor")

	r, _, errOut := newTestREPL()
	feed(t, r, `let name = "myl";`, "let nums = [1, 2];", ":save "+path)
	if errOut.Len() != 0 {
		t.Fatalf(":save failed: %s", errOut)
	}

	r2, out, errOut := newTestREPL()
	feed(t, r2, ":load "+path, "name;", "nums;")
	if errOut.Len() != 0 {
		t.Fatalf(":load failed: %s", errOut)
	}
	want := "loaded globals from " + path + "\n\"myl\"\n[1, 2]\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestREPLComplete(t *testing.T) {
	r, _, _ := newTestREPL()
	feed(t, r, "let total = 0;")

	tests := []struct {
		line string
		want []string
	}{
		{"pr", []string{"print"}},
		{"print tot", []string{"print total"}},
		{"let x = le", []string{"let x = len", "let x = let"}},
		{":ba", []string{":backend"}},
		{"print ", nil},
		{"", nil},
		{"zzz", nil},
	}
	for _, tc := range tests {
		got := r.complete(tc.line)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Errorf("complete(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"print 1;", false},
		{"fn f() {", true},
		{"fn f() {\n  return 1;\n}", false},
		{"let a = [1,", true},
		{"print (1 +", true},
		{`print "abc`, true},
		{`print "{";`, false},
		{"print 1; // {", false},
		{"}", false},
	}
	for _, tc := range tests {
		if got := needsMoreInput(tc.input); got != tc.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
