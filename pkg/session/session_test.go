package session

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
)

var backends = []Backend{BackendVM, BackendTree}

func TestParseBackend(t *testing.T) {
	for _, name := range []string{"vm", "tree"} {
		if b, err := ParseBackend(name); err != nil || string(b) != name {
			t.Errorf("ParseBackend(%q) = %q, %v", name, b, err)
		}
	}
	if _, err := ParseBackend("jit"); err == nil {
		t.Error("ParseBackend(\"jit\") should fail")
	}
}

func TestRunBothBackends(t *testing.T) {
	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			var out bytes.Buffer
			s := New(&out, Options{Backend: b})
			if _, err := s.Run("fn fact(n) { if n <= 1 { return 1; } return n * fact(n - 1); }"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Run("print fact(10);"); err != nil {
				t.Fatal(err)
			}
			if out.String() != "3628800\n" {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestBackendsAgree(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"zero is truthy", `if (0) { print "a"; } else { print "b"; }`, "a\n"},
		{"compound index assignment", `let n = 0;
fn f() { n += 1; return 0; }
let a = [1];
a[f()] += 1;
a[f()] += 1;
print a[0], n;`, "3 2\n"},
		{"break leaves the inner loop", `for (let i = 0; i < 2; i += 1) {
  while true { break; }
  print i;
}`, "0\n1\n"},
		{"continue runs the increment", `for (let i = 0; i < 3; i += 1) { if i == 1 { continue; } print i; }`, "0\n2\n"},
	}
	for _, b := range backends {
		for _, tc := range tests {
			t.Run(string(b)+"/"+tc.name, func(t *testing.T) {
				var out bytes.Buffer
				if _, err := New(&out, Options{Backend: b}).Run(tc.source); err != nil {
					t.Fatal(err)
				}
				if out.String() != tc.want {
					t.Errorf("output = %q, want %q", out.String(), tc.want)
				}
			})
		}
	}
}

func TestStaticErrorsStopTheRun(t *testing.T) {
	tests := []struct {
		source string
		kind   compiler.ErrorKind
	}{
		{`print "unterminated;`, compiler.LexError},
		{"print 1 +;", compiler.ParseError},
		{"break;", compiler.CompileError},
	}
	for _, b := range backends {
		for _, tc := range tests {
			var out bytes.Buffer
			s := New(&out, Options{Backend: b})
			_, err := s.Run("print 0;\n" + tc.source)
			var errs compiler.ErrorList
			if !errors.As(err, &errs) {
				t.Errorf("%s %q: err = %v, want ErrorList", b, tc.source, err)
				continue
			}
			if errs[0].Kind != tc.kind {
				t.Errorf("%s %q: kind = %v, want %v", b, tc.source, errs[0].Kind, tc.kind)
			}
			if out.Len() != 0 {
				t.Errorf("%s %q: program ran despite static errors: %q", b, tc.source, out.String())
			}
		}
	}
}

func TestRuntimeErrorKeepsGlobals(t *testing.T) {
	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			s := New(&bytes.Buffer{}, Options{Backend: b, REPL: true})
			if _, err := s.Run("let a = [1, 2];"); err != nil {
				t.Fatal(err)
			}
			_, err := s.Run("a[5];")
			var rerr *bytecode.RuntimeError
			if !errors.As(err, &rerr) || rerr.Kind != bytecode.IndexError {
				t.Fatalf("err = %v, want IndexError", err)
			}
			v, err := s.Run("len(a) + 1;")
			if err != nil {
				t.Fatal(err)
			}
			if v.AsNumber() != 3 {
				t.Errorf("value = %s, want 3", v.Repr())
			}
		})
	}
}

func TestSwitchBackend(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, Options{})
	if s.Backend() != BackendVM {
		t.Fatalf("default backend = %s", s.Backend())
	}
	if _, err := s.Run("let n = 2; fn double(x) { return x * 2; }"); err != nil {
		t.Fatal(err)
	}

	s.SetBackend(BackendTree)
	if _, err := s.Run("print n + 1;"); err != nil {
		t.Fatal(err)
	}
	_, err := s.Run("double(n);")
	var rerr *bytecode.RuntimeError
	if !errors.As(err, &rerr) || rerr.Kind != bytecode.CallError {
		t.Errorf("calling a VM function from the tree-walker: err = %v, want CallError", err)
	}
	if out.String() != "3\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestReset(t *testing.T) {
	s := New(&bytes.Buffer{}, Options{})
	if _, err := s.Run("let x = 1;"); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if _, ok := s.Globals().Get("x"); ok {
		t.Error("x survived Reset")
	}
	if _, ok := s.Globals().Get("len"); !ok {
		t.Error("builtins missing after Reset")
	}
}

func TestDisassemble(t *testing.T) {
	s := New(&bytes.Buffer{}, Options{})
	listing, err := s.Disassemble("fn f() { return 1; }")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<script>", "f", "RETURN"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
	if _, err := s.Disassemble("let = ;"); err == nil {
		t.Error("expected parse error")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := New(&bytes.Buffer{}, Options{})
	if _, err := src.Run(`let n = 2.5; let s = "hi"; let ok = true; let none = nil;
let nested = [1, ["a", false], []];
fn f() {}
let withFn = [f];`); err != nil {
		t.Fatal(err)
	}
	data, err := src.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	dst := New(&bytes.Buffer{}, Options{})
	if _, err := dst.Run("let n = 0; let keep = 7;"); err != nil {
		t.Fatal(err)
	}
	if err := dst.Restore(data); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"n":      "2.5",
		"s":      `"hi"`,
		"ok":     "true",
		"none":   "nil",
		"nested": `[1, ["a", false], []]`,
		"keep":   "7",
	}
	for name, repr := range want {
		v, ok := dst.Globals().Get(name)
		if !ok {
			t.Errorf("%s not restored", name)
			continue
		}
		if v.Repr() != repr {
			t.Errorf("%s = %s, want %s", name, v.Repr(), repr)
		}
	}
	for _, name := range []string{"f", "withFn"} {
		if _, ok := dst.Globals().Get(name); ok {
			t.Errorf("%s should not be saved", name)
		}
	}
	if v, _ := dst.Globals().Get("len"); v.Kind() != bytecode.KindNative {
		t.Error("restore replaced a builtin")
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	s := New(&bytes.Buffer{}, Options{})
	if _, err := s.Run(`let b = [1, 2]; let a = "x"; let c = nil;`); err != nil {
		t.Fatal(err)
	}
	first, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("snapshot encoding is not deterministic")
	}
}

func TestSnapshotRejectsCycles(t *testing.T) {
	s := New(&bytes.Buffer{}, Options{})
	if _, err := s.Run("let a = []; push(a, a);"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Snapshot(); err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Errorf("err = %v, want cyclic array error", err)
	}
}

func TestRestoreRejectsBadInput(t *testing.T) {
	s := New(&bytes.Buffer{}, Options{})
	if err := s.Restore([]byte{0xff, 0x00}); err == nil {
		t.Error("expected decode error")
	}

	data, err := cborEncMode.Marshal(&snapshot{Version: SnapshotVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Restore(data); err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("err = %v, want version error", err)
	}

	data, err = cborEncMode.Marshal(&snapshot{
		Version: SnapshotVersion,
		Globals: map[string]snapValue{"f": {Kind: bytecode.KindFunction}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Restore(data); err == nil {
		t.Error("expected error for a function value")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	s := New(&bytes.Buffer{}, Options{})
	if _, err := s.Run("let x = [3];"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(path); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	if err := s.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Globals().Get("x"); v.Repr() != "[3]" {
		t.Errorf("x = %s, want [3]", v.Repr())
	}
	if err := s.LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing file")
	}
}
