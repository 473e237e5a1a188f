// myl CLI - runs myl scripts, the REPL and the language tooling
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/manifest"
	"github.com/chazu/myl/pkg/bytecode"
	"github.com/chazu/myl/pkg/session"
	"github.com/chazu/myl/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("myl.cli")

// Exit codes follow sysexits.h.
const (
	exitOK      = 0
	exitUsage   = 2
	exitStatic  = 65 // EX_DATAERR: lex, parse or compile errors
	exitRuntime = 70 // EX_SOFTWARE
	exitIO      = 74 // EX_IOERR
)

func main() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.run(os.Args[1:]))
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "run":
			return c.runCommand(args[1:])
		case "disasm":
			return c.disasmCommand(args[1:])
		case "fmt":
			return c.fmtCommand(args[1:])
		case "test":
			return c.testCommand(args[1:])
		case "lsp":
			return c.lspCommand(args[1:])
		case "config":
			return c.configCommand(args[1:])
		case "version":
			fmt.Fprintf(c.stdout, "myl %s\n", version)
			return exitOK
		}
	}
	return c.runCommand(args)
}

// ---------------------------------------------------------------------------
// Flags and configuration
// ---------------------------------------------------------------------------

// options holds the flags shared by every command that executes code.
type options struct {
	backend    string
	trace      bool
	watch      bool
	verbosity  verbosityFlag
	configPath string
	noConfig   bool
	eval       string
}

// verbosityFlag counts repeated -v flags.
type verbosityFlag int

func (v *verbosityFlag) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosityFlag) IsBoolFlag() bool { return true }
func (v *verbosityFlag) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("verbosity must be a number")
	}
	*v = verbosityFlag(n)
	return nil
}

func (c *cli) flagSet(name, usage string, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVar(&opts.backend, "backend", "", "execution backend: vm or tree (default from config, else vm)")
	fs.BoolVar(&opts.trace, "trace", false, "log every instruction or statement at debug level")
	fs.Var(&opts.verbosity, "v", "increase log verbosity (repeatable)")
	fs.StringVar(&opts.configPath, "config", "", "read configuration from this file instead of searching for myl.toml")
	fs.BoolVar(&opts.noConfig, "no-config", false, "ignore myl.toml")
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags returns the exit code to use when parsing fails, or -1.
func parseFlags(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	return -1
}

// configure loads the configuration, applies flag overrides and sets up
// logging.
func (c *cli) configure(opts *options) (*manifest.Manifest, int) {
	var m *manifest.Manifest
	var err error
	switch {
	case opts.noConfig:
		m = manifest.Default()
	case opts.configPath != "":
		m, err = manifest.LoadFile(opts.configPath)
	default:
		var wd string
		if wd, err = os.Getwd(); err == nil {
			m, err = manifest.FindAndLoad(wd)
		}
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return nil, exitUsage
	}

	if opts.backend != "" {
		b, err := session.ParseBackend(opts.backend)
		if err != nil {
			fmt.Fprintf(c.stderr, "myl: -backend: %v\n", err)
			return nil, exitUsage
		}
		m.Run.Backend = string(b)
	}
	if opts.trace {
		m.Run.Trace = true
	}
	if int(opts.verbosity) > m.Log.Verbosity {
		m.Log.Verbosity = int(opts.verbosity)
	}

	var logPath *string
	if m.Log.File != "" {
		logPath = &m.Log.File
	}
	commonlog.Configure(m.Log.Verbosity, logPath)

	if path := m.Path(); path != "" {
		log.Infof("loaded configuration from %s", path)
	} else {
		log.Info("no myl.toml found, using defaults")
	}
	return m, -1
}

func (c *cli) newSession(m *manifest.Manifest, repl bool) *session.Session {
	return session.New(c.stdout, session.Options{
		Backend: m.Backend(),
		Trace:   m.Run.Trace,
		REPL:    repl,
	})
}

// report prints err and maps it to an exit code.
func (c *cli) report(err error) int {
	if err == nil {
		return exitOK
	}
	var errs compiler.ErrorList
	if errors.As(err, &errs) {
		for _, e := range errs {
			fmt.Fprintln(c.stderr, e)
		}
		return exitStatic
	}
	fmt.Fprintln(c.stderr, err)
	var rerr *bytecode.RuntimeError
	if errors.As(err, &rerr) {
		return exitRuntime
	}
	return exitIO
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (c *cli) runCommand(args []string) int {
	var opts options
	fs := c.flagSet("myl", "myl [options] [FILE]\n       myl [options] -e SOURCE\n       myl disasm|fmt|test|lsp|config|version ...", &opts)
	fs.BoolVar(&opts.watch, "watch", false, "re-run FILE whenever it is saved")
	fs.StringVar(&opts.eval, "e", "", "run SOURCE instead of a file")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() > 1 || (fs.NArg() == 1 && opts.eval != "") {
		fs.Usage()
		return exitUsage
	}
	if opts.watch && fs.NArg() == 0 {
		fmt.Fprintln(c.stderr, "myl: -watch needs a FILE")
		return exitUsage
	}

	m, code := c.configure(&opts)
	if code >= 0 {
		return code
	}

	switch {
	case opts.eval != "":
		_, err := c.newSession(m, false).Run(opts.eval)
		return c.report(err)
	case opts.watch:
		return c.watchCommand(fs.Arg(0), m)
	case fs.NArg() == 1:
		return c.runFile(fs.Arg(0), c.newSession(m, false))
	default:
		return c.startREPL(m)
	}
}

func (c *cli) runFile(path string, sess *session.Session) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return exitIO
	}
	_, err = sess.Run(string(source))
	return c.report(err)
}

func (c *cli) disasmCommand(args []string) int {
	var opts options
	fs := c.flagSet("disasm", "myl disasm FILE", &opts)
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	m, code := c.configure(&opts)
	if code >= 0 {
		return code
	}

	source, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return exitIO
	}
	listing, err := session.New(io.Discard, session.Options{Backend: m.Backend()}).Disassemble(string(source))
	if err != nil {
		return c.report(err)
	}
	fmt.Fprint(c.stdout, listing)
	return exitOK
}

func (c *cli) lspCommand(args []string) int {
	var opts options
	fs := c.flagSet("lsp", "myl lsp", &opts)
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if _, code := c.configure(&opts); code >= 0 {
		return code
	}
	if err := server.NewLSP(version).Run(); err != nil {
		fmt.Fprintf(c.stderr, "myl lsp: %v\n", err)
		return exitIO
	}
	return exitOK
}

func (c *cli) configCommand(args []string) int {
	var opts options
	fs := c.flagSet("config", "myl config [options]", &opts)
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	m, code := c.configure(&opts)
	if code >= 0 {
		return code
	}
	if path := m.Path(); path != "" {
		fmt.Fprintf(c.stdout, "# %s\n", path)
	} else {
		fmt.Fprintln(c.stdout, "# defaults")
	}
	if err := m.Encode(c.stdout); err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return exitIO
	}
	return exitOK
}
