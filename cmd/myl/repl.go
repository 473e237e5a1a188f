package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/manifest"
	"github.com/chazu/myl/pkg/bytecode"
	"github.com/chazu/myl/pkg/session"
)

// ---------------------------------------------------------------------------
// Interactive REPL
// ---------------------------------------------------------------------------

const continuationPrompt = ".. "

// repl holds the state of an interactive session between lines. It does
// no terminal I/O of its own so it can be driven from tests.
type repl struct {
	sess   *session.Session
	out    io.Writer
	errOut io.Writer
	input  strings.Builder // pending multi-line entry
}

func newREPL(sess *session.Session, out, errOut io.Writer) *repl {
	return &repl{sess: sess, out: out, errOut: errOut}
}

// pending reports whether a multi-line entry is waiting for more lines.
func (r *repl) pending() bool {
	return r.input.Len() > 0
}

// clear drops a partially typed entry.
func (r *repl) clear() {
	r.input.Reset()
}

// handleLine processes one line of input. It returns the completed entry
// for the history, or "" while an entry is still open, and whether the
// user asked to quit.
func (r *repl) handleLine(line string) (entry string, quit bool) {
	trimmed := strings.TrimSpace(line)
	if !r.pending() {
		switch {
		case trimmed == "":
			return "", false
		case trimmed == "exit" || trimmed == "quit":
			return "", true
		case strings.HasPrefix(trimmed, ":"):
			r.command(trimmed)
			return trimmed, false
		}
	}

	if r.pending() {
		r.input.WriteByte('\n')
	}
	r.input.WriteString(line)
	source := r.input.String()
	if needsMoreInput(source) {
		return "", false
	}
	r.input.Reset()

	r.eval(source)
	return source, false
}

func (r *repl) eval(source string) {
	v, err := r.sess.Run(source)
	if err != nil {
		r.printError(err)
		return
	}
	if !v.IsNil() {
		fmt.Fprintln(r.out, v.Repr())
	}
}

func (r *repl) printError(err error) {
	var errs compiler.ErrorList
	if errors.As(err, &errs) {
		for _, e := range errs {
			fmt.Fprintln(r.errOut, e)
		}
		return
	}
	fmt.Fprintln(r.errOut, err)
}

// command runs a REPL meta-command starting with ':'.
func (r *repl) command(cmd string) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL commands:")
		fmt.Fprintln(r.out, "  :help              Show this help")
		fmt.Fprintln(r.out, "  :globals           List global variables and functions")
		fmt.Fprintln(r.out, "  :reset             Discard all globals")
		fmt.Fprintln(r.out, "  :backend [vm|tree] Show or switch the execution backend")
		fmt.Fprintln(r.out, "  :disasm SOURCE     Show the bytecode for SOURCE")
		fmt.Fprintln(r.out, "  :save FILE         Save global values to FILE")
		fmt.Fprintln(r.out, "  :load FILE         Load global values from FILE")
		fmt.Fprintln(r.out, "  exit, quit         Leave the REPL")

	case ":globals":
		r.printGlobals()

	case ":reset":
		r.sess.Reset()
		fmt.Fprintln(r.out, "globals cleared")

	case ":backend":
		if arg == "" {
			fmt.Fprintf(r.out, "backend: %s\n", r.sess.Backend())
			return
		}
		b, err := session.ParseBackend(arg)
		if err != nil {
			fmt.Fprintln(r.errOut, err)
			return
		}
		r.sess.SetBackend(b)
		fmt.Fprintf(r.out, "backend: %s\n", b)

	case ":disasm":
		if arg == "" {
			fmt.Fprintln(r.errOut, "usage: :disasm SOURCE")
			return
		}
		listing, err := r.sess.Disassemble(arg)
		if err != nil {
			r.printError(err)
			return
		}
		fmt.Fprint(r.out, listing)

	case ":save":
		if arg == "" {
			fmt.Fprintln(r.errOut, "usage: :save FILE")
			return
		}
		if err := r.sess.SaveFile(arg); err != nil {
			fmt.Fprintln(r.errOut, err)
			return
		}
		fmt.Fprintf(r.out, "saved globals to %s\n", arg)

	case ":load":
		if arg == "" {
			fmt.Fprintln(r.errOut, "usage: :load FILE")
			return
		}
		if err := r.sess.LoadFile(arg); err != nil {
			fmt.Fprintln(r.errOut, err)
			return
		}
		fmt.Fprintf(r.out, "loaded globals from %s\n", arg)

	default:
		fmt.Fprintf(r.errOut, "unknown command: %s (type :help for commands)\n", name)
	}
}

// printGlobals lists everything the user defined, skipping builtins.
func (r *repl) printGlobals() {
	g := r.sess.Globals()
	n := 0
	for _, name := range g.Names() {
		v, _ := g.Get(name)
		if v.Kind() == bytecode.KindNative {
			continue
		}
		fmt.Fprintf(r.out, "  %s = %s\n", name, v.Repr())
		n++
	}
	if n == 0 {
		fmt.Fprintln(r.out, "(no globals)")
	}
}

// complete returns whole-line candidates for the word under the cursor.
func (r *repl) complete(line string) []string {
	if line == "" || strings.HasSuffix(line, " ") {
		return nil
	}
	if strings.HasPrefix(line, ":") && !strings.Contains(line, " ") {
		return matchWords(line, "", []string{
			":backend", ":disasm", ":globals", ":help", ":load", ":reset", ":save",
		})
	}

	start := len(line)
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	head, word := line[:start], line[start:]
	if word == "" {
		return nil
	}
	words := append(compiler.Keywords(), r.sess.Globals().Names()...)
	return matchWords(word, head, words)
}

func matchWords(prefix, head string, words []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		if strings.HasPrefix(w, prefix) && !seen[w] {
			seen[w] = true
			out = append(out, head+w)
		}
	}
	sort.Strings(out)
	return out
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// needsMoreInput reports whether source ends inside an open bracket or an
// unterminated string.
func needsMoreInput(source string) bool {
	tokens, errs := compiler.Tokenize(source)
	for _, e := range errs {
		if e.Message == "unterminated string" {
			return true
		}
	}
	depth := 0
	for _, tok := range tokens {
		switch tok.Type {
		case compiler.TokenLParen, compiler.TokenLBracket, compiler.TokenLBrace:
			depth++
		case compiler.TokenRParen, compiler.TokenRBracket, compiler.TokenRBrace:
			depth--
		}
	}
	return depth > 0
}

// startREPL runs the line-editing REPL on the terminal until EOF.
func (c *cli) startREPL(m *manifest.Manifest) int {
	sess := c.newSession(m, true)
	r := newREPL(sess, c.stdout, c.stderr)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(r.complete)

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = m.HistoryPath(home)
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile == "" {
			return
		}
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		} else {
			log.Warningf("cannot write history: %v", err)
		}
	}()

	fmt.Fprintf(c.stdout, "myl %s (%s backend)\n", version, sess.Backend())
	fmt.Fprintln(c.stdout, "Type :help for commands, exit or Ctrl+D to quit")

	for {
		prompt := m.REPL.Prompt
		if r.pending() {
			prompt = continuationPrompt
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				r.clear()
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(c.stdout)
				return exitOK
			}
			fmt.Fprintf(c.stderr, "error reading input: %v\n", err)
			return exitIO
		}

		entry, quit := r.handleLine(input)
		if quit {
			return exitOK
		}
		if entry != "" {
			line.AppendHistory(entry)
		}
	}
}
