package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"
	"github.com/chazu/myl/pkg/session"
)

// ---------------------------------------------------------------------------
// myl test: expectation-driven script tests
// ---------------------------------------------------------------------------
//
// A test script states what it should do in comments:
//
//	print 1 + 2; // expect: 3
//	print x;     // expect runtime error: NameError
//	let = 1;     // expect error: ParseError
//
// Expected output lines are matched in order against everything the script
// prints. Each script is run once per backend.

const (
	expectOutput  = "// expect:"
	expectRuntime = "// expect runtime error:"
	expectStatic  = "// expect error:"
)

// expectation is what a test script declares about its own run.
type expectation struct {
	Output       []string
	RuntimeError string // runtime error kind, or ""
	StaticError  string // static error kind, or ""
}

// parseExpectations collects the expect directives in source. The lexer
// is driven directly so comments are found even when the script does not
// parse.
func parseExpectations(source string) expectation {
	l := compiler.NewLexer(source)
	for l.NextToken().Type != compiler.TokenEOF {
	}

	var exp expectation
	for _, c := range l.Comments() {
		text := strings.TrimSpace(c.Text)
		switch {
		case strings.HasPrefix(text, expectRuntime):
			exp.RuntimeError = strings.TrimSpace(strings.TrimPrefix(text, expectRuntime))
		case strings.HasPrefix(text, expectStatic):
			exp.StaticError = strings.TrimSpace(strings.TrimPrefix(text, expectStatic))
		case strings.HasPrefix(text, expectOutput):
			line := strings.TrimPrefix(text, expectOutput)
			exp.Output = append(exp.Output, strings.TrimPrefix(line, " "))
		}
	}
	return exp
}

// check compares a finished run with the expectation.
func (exp expectation) check(output string, err error) error {
	var errs compiler.ErrorList
	var rerr *bytecode.RuntimeError
	switch {
	case exp.StaticError != "":
		if !errors.As(err, &errs) {
			return fmt.Errorf("expected %s, got %v", exp.StaticError, describe(err))
		}
		for _, e := range errs {
			if e.Kind.String() == exp.StaticError {
				return nil
			}
		}
		return fmt.Errorf("expected %s, got %v", exp.StaticError, err)

	case exp.RuntimeError != "":
		if !errors.As(err, &rerr) {
			return fmt.Errorf("expected %s, got %v", exp.RuntimeError, describe(err))
		}
		if rerr.Kind.String() != exp.RuntimeError {
			return fmt.Errorf("expected %s, got %v", exp.RuntimeError, rerr)
		}

	case err != nil:
		return fmt.Errorf("unexpected error: %v", err)
	}

	var got []string
	if output != "" {
		got = strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	}
	for i := 0; i < len(got) || i < len(exp.Output); i++ {
		switch {
		case i >= len(exp.Output):
			return fmt.Errorf("unexpected output line %d: %q", i+1, got[i])
		case i >= len(got):
			return fmt.Errorf("missing output line %d: %q", i+1, exp.Output[i])
		case got[i] != exp.Output[i]:
			return fmt.Errorf("output line %d: got %q, want %q", i+1, got[i], exp.Output[i])
		}
	}
	return nil
}

func describe(err error) string {
	if err == nil {
		return "success"
	}
	return err.Error()
}

// testResult is the outcome of one script on one backend.
type testResult struct {
	Path    string
	Backend session.Backend
	Err     error
}

// runExpectTest runs source on backend and checks it against its
// directives.
func runExpectTest(source string, backend session.Backend) error {
	exp := parseExpectations(source)
	var out bytes.Buffer
	_, err := session.New(&out, session.Options{Backend: backend}).Run(source)
	return exp.check(out.String(), err)
}

func (c *cli) testCommand(args []string) int {
	var opts options
	fset := c.flagSet("test", "myl test [-backend vm|tree] <files or directories...>", &opts)
	if code := parseFlags(fset, args); code >= 0 {
		return code
	}
	m, code := c.configure(&opts)
	if code >= 0 {
		return code
	}

	paths := fset.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := collectSourceFiles(paths)
	if err != nil {
		fmt.Fprintf(c.stderr, "myl test: %v\n", err)
		return exitIO
	}

	// Both backends unless one was asked for.
	backends := []session.Backend{session.BackendVM, session.BackendTree}
	if opts.backend != "" {
		backends = []session.Backend{m.Backend()}
	}

	var results []testResult
	for _, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(c.stderr, "myl test: %v\n", err)
			return exitIO
		}
		for _, b := range backends {
			results = append(results, testResult{
				Path:    path,
				Backend: b,
				Err:     runExpectTest(string(source), b),
			})
		}
	}
	return c.printTestResults(results)
}

func (c *cli) printTestResults(results []testResult) int {
	passed, failed := 0, 0
	for _, r := range results {
		if r.Err == nil {
			passed++
			log.Debugf("PASS %s [%s]", r.Path, r.Backend)
			continue
		}
		failed++
		fmt.Fprintf(c.stdout, "FAIL %s [%s]: %v\n", r.Path, r.Backend, r.Err)
	}

	fmt.Fprintf(c.stdout, "%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return 1
	}
	return exitOK
}
