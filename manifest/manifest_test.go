package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/myl/pkg/session"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[run]
backend = "tree"
trace = true

[repl]
prompt = "myl> "
history = "/tmp/hist"

[log]
verbosity = 2
file = "myl.log"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Backend() != session.BackendTree {
		t.Errorf("backend = %q, want tree", m.Run.Backend)
	}
	if !m.Run.Trace {
		t.Error("trace = false, want true")
	}
	if m.REPL.Prompt != "myl> " {
		t.Errorf("prompt = %q, want %q", m.REPL.Prompt, "myl> ")
	}
	if got := m.HistoryPath("/home/u"); got != "/tmp/hist" {
		t.Errorf("absolute history path = %q, want /tmp/hist", got)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "myl.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if m.Path() != filepath.Join(m.Dir, FileName) {
		t.Errorf("Path = %q", m.Path())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[log]\nverbosity = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Backend() != session.BackendVM {
		t.Errorf("default backend = %q, want vm", m.Run.Backend)
	}
	if m.REPL.Prompt != ">> " {
		t.Errorf("default prompt = %q", m.REPL.Prompt)
	}
	if got := m.HistoryPath("/home/u"); got != "/home/u/.myl_history" {
		t.Errorf("history path = %q, want /home/u/.myl_history", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", "[run]\nbackend = \"jit\"\n", "backend"},
		{"negative verbosity", "[log]\nverbosity = -1\n", "verbosity"},
		{"unknown key", "[run]\nbackend = \"vm\"\nspeed = 3\n", "run.speed"},
		{"wrong type", "[run]\ntrace = \"yes\"\n", ""},
		{"syntax", "[run\n", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadReportsPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[run]\nbackend = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), FileName) {
		t.Errorf("err = %v, want it to name the file", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("[repl]\nprompt = \"$ \"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if m.REPL.Prompt != "$ " {
		t.Errorf("prompt = %q", m.REPL.Prompt)
	}
	if m.Path() != path {
		t.Errorf("Path = %q, want %q", m.Path(), path)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[run]\nbackend = \"tree\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m.Backend() != session.BackendTree {
		t.Errorf("backend = %q, want tree", m.Run.Backend)
	}
	want, _ := filepath.Abs(dir)
	if m.Dir != want {
		t.Errorf("Dir = %q, want %q", m.Dir, want)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m.Dir != "" || m.Path() != "" {
		t.Errorf("defaults should have no directory, got %q", m.Dir)
	}
	if m.Backend() != session.BackendVM {
		t.Errorf("backend = %q, want vm", m.Run.Backend)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	m := Default()
	m.Run.Trace = true
	m.Log.Verbosity = 3

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Parse(buf.String())
	if err != nil {
		t.Fatalf("Parse(Encode()) failed: %v\n%s", err, buf.String())
	}
	if *got != *m {
		t.Errorf("round trip = %+v, want %+v", got, m)
	}
}
