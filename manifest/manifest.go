// Package manifest handles myl.toml configuration.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/myl/pkg/session"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "myl.toml"

// Manifest represents a myl.toml configuration.
type Manifest struct {
	Run  RunConfig  `toml:"run"`
	REPL REPLConfig `toml:"repl"`
	Log  LogConfig  `toml:"log"`

	// Dir is the directory containing the myl.toml file (set at load time).
	// It is empty when no file was found.
	Dir string `toml:"-"`

	file string
}

// RunConfig configures program execution.
type RunConfig struct {
	Backend string `toml:"backend"`
	Trace   bool   `toml:"trace"`
}

// REPLConfig configures the interactive prompt.
type REPLConfig struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"` // relative to the user's home directory
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no myl.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Run.Backend == "" {
		m.Run.Backend = string(session.BackendVM)
	}
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = ">> "
	}
	if m.REPL.History == "" {
		m.REPL.History = ".myl_history"
	}
}

// Load parses a myl.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path, whatever its name.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.Dir = filepath.Dir(abs)
	m.file = filepath.Base(abs)
	return m, nil
}

// Parse decodes myl.toml content, fills in defaults and validates it.
// Unknown keys are an error.
func Parse(content string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(content, &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks values that the TOML types alone do not constrain.
func (m *Manifest) Validate() error {
	if _, err := session.ParseBackend(m.Run.Backend); err != nil {
		return fmt.Errorf("[run] backend: %w", err)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("[log] verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a myl.toml file, then loads
// and returns it. When no file is found it returns Default().
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// Path returns the location of the loaded file, or "" for defaults.
func (m *Manifest) Path() string {
	if m.Dir == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.file)
}

// Backend returns the configured backend. The manifest is validated on
// load, so the name is known to be valid.
func (m *Manifest) Backend() session.Backend {
	return session.Backend(m.Run.Backend)
}

// HistoryPath resolves the REPL history file against home. An absolute
// history setting is returned unchanged.
func (m *Manifest) HistoryPath(home string) string {
	if filepath.IsAbs(m.REPL.History) {
		return m.REPL.History
	}
	return filepath.Join(home, m.REPL.History)
}

// Encode writes the configuration as TOML.
func (m *Manifest) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(m)
}
