package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI runs the command line with captured output.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{stdin: strings.NewReader(""), stdout: &out, stderr: &errOut}
	code = c.run(args)
	return out.String(), errOut.String(), code
}

func writeScript(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const factorialScript = `fn fact(n) {
  if n <= 1 { return 1; }
  return n * fact(n - 1);
}
print fact(10);
`

func TestRunFile(t *testing.T) {
	path := writeScript(t, t.TempDir(), "fact.myl", factorialScript)

	for _, backend := range []string{"vm", "tree"} {
		t.Run(backend, func(t *testing.T) {
			stdout, stderr, code := runCLI(t, "-no-config", "-backend", backend, path)
			if code != exitOK {
				t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
			}
			if stdout != "3628800\n" {
				t.Errorf("stdout = %q, want %q", stdout, "3628800\n")
			}
		})
	}
}

func TestRunSubcommand(t *testing.T) {
	path := writeScript(t, t.TempDir(), "hello.myl", `print "hello", 1 + 1;`)
	stdout, _, code := runCLI(t, "run", "-no-config", path)
	if code != exitOK || stdout != "hello 2\n" {
		t.Errorf("run = %q (exit %d), want %q", stdout, code, "hello 2\n")
	}
}

func TestEvalFlag(t *testing.T) {
	stdout, stderr, code := runCLI(t, "-no-config", "-e", "let a = [1, 2]; push(a, 3); print a, len(a);")
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if stdout != "[1, 2, 3] 3\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"parse error", []string{"-e", "let x = ;"}, exitStatic, "ParseError"},
		{"lex error", []string{"-e", `print "open;`}, exitStatic, "LexError"},
		{"compile error", []string{"-e", "break;"}, exitStatic, "CompileError"},
		{"runtime error", []string{"-e", "print nope;"}, exitRuntime, "line 1: NameError"},
		{"division by zero", []string{"-backend", "tree", "-e", "print 1 / 0;"}, exitRuntime, "ArithmeticError"},
		{"missing file", []string{filepath.Join(dir, "missing.myl")}, exitIO, "missing.myl"},
		{"unknown flag", []string{"-frobnicate"}, exitUsage, "frobnicate"},
		{"bad backend", []string{"-backend", "jit", "-e", "print 1;"}, exitUsage, "jit"},
		{"file and -e", []string{"-e", "print 1;", "x.myl"}, exitUsage, "Usage"},
		{"watch without file", []string{"-watch"}, exitUsage, "-watch needs a FILE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"-no-config"}, tc.args...)
			_, stderr, code := runCLI(t, args...)
			if code != tc.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tc.code, stderr)
			}
			if !strings.Contains(stderr, tc.stderr) {
				t.Errorf("stderr %q does not contain %q", stderr, tc.stderr)
			}
		})
	}
}

func TestOutputBeforeRuntimeError(t *testing.T) {
	stdout, stderr, code := runCLI(t, "-no-config", "-e", "print 1;\nprint [1][5];\nprint 2;")
	if code != exitRuntime {
		t.Fatalf("exit code = %d, want %d", code, exitRuntime)
	}
	if stdout != "1\n" {
		t.Errorf("stdout = %q, want output up to the error", stdout)
	}
	if !strings.Contains(stderr, "line 2: IndexError") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestStaticErrorsPrintNothing(t *testing.T) {
	stdout, stderr, code := runCLI(t, "-no-config", "-e", "print 1;\nlet = 2;\nprint 3")
	if code != exitStatic {
		t.Fatalf("exit code = %d, want %d", code, exitStatic)
	}
	if stdout != "" {
		t.Errorf("static errors must stop execution, got output %q", stdout)
	}
	if lines := strings.Count(stderr, "\n"); lines < 2 {
		t.Errorf("want every error reported, got:\n%s", stderr)
	}
}

func TestDisasm(t *testing.T) {
	path := writeScript(t, t.TempDir(), "fact.myl", factorialScript)
	stdout, stderr, code := runCLI(t, "disasm", "-no-config", path)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{"; === <script> ===", "; === fact ===", "PRINT"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing does not contain %q:\n%s", want, stdout)
		}
	}

	if _, _, code := runCLI(t, "disasm", "-no-config"); code != exitUsage {
		t.Errorf("disasm without a file: exit code = %d, want %d", code, exitUsage)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := writeScript(t, dir, "custom.toml", "[run]\nbackend = \"tree\"\n")

	stdout, stderr, code := runCLI(t, "config", "-config", config)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "# "+config) {
		t.Errorf("config output does not name the file:\n%s", stdout)
	}
	if !strings.Contains(stdout, `backend = "tree"`) {
		t.Errorf("config output:\n%s", stdout)
	}

	// A function defined on the tree backend is callable there.
	stdout, _, code = runCLI(t, "-config", config, "-e", "fn f() { return 7; } print f();")
	if code != exitOK || stdout != "7\n" {
		t.Errorf("run with config = %q (exit %d)", stdout, code)
	}

	// Flags override the file.
	stdout, _, _ = runCLI(t, "config", "-config", config, "-backend", "vm")
	if !strings.Contains(stdout, `backend = "vm"`) {
		t.Errorf("-backend did not override the file:\n%s", stdout)
	}
}

func TestBadConfigFile(t *testing.T) {
	config := writeScript(t, t.TempDir(), "bad.toml", "[run]\nbackend = \"jit\"\n")
	_, stderr, code := runCLI(t, "-config", config, "-e", "print 1;")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "bad.toml") {
		t.Errorf("stderr = %q, want it to name the file", stderr)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, code := runCLI(t, "version")
	if code != exitOK || stdout != "myl "+version+"\n" {
		t.Errorf("version = %q (exit %d)", stdout, code)
	}
}

func TestHelpExitsZero(t *testing.T) {
	_, stderr, code := runCLI(t, "-h")
	if code != exitOK {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("help output = %q", stderr)
	}
}

func TestVerbosityFlag(t *testing.T) {
	var v verbosityFlag
	for _, s := range []string{"true", "true"} {
		if err := v.Set(s); err != nil {
			t.Fatal(err)
		}
	}
	if v != 2 {
		t.Errorf("-v -v = %d, want 2", v)
	}
	if err := v.Set("5"); err != nil || v != 5 {
		t.Errorf("-v=5 gives %d, %v", v, err)
	}
	if err := v.Set("loud"); err == nil {
		t.Error("expected an error for a non-numeric verbosity")
	}
}
