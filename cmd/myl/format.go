package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/compiler/hash"
)

// ---------------------------------------------------------------------------
// myl fmt: canonical source formatter
// ---------------------------------------------------------------------------

// Format parses a myl source string and returns canonically formatted
// output. Comments are kept and runs of blank lines collapse to one. The
// result is checked to hash the same as the input.
func Format(source string) (string, error) {
	prog, errs := compiler.Parse(source)
	if len(errs) > 0 {
		return "", errs
	}

	f := &formatter{
		buf:      &strings.Builder{},
		comments: prog.Comments,
		fresh:    true,
	}
	f.formatStmts(prog.Stmts, len(source)+1)
	f.flushComments(len(source) + 1)

	result := strings.TrimRight(f.buf.String(), "\n")
	if result != "" {
		result += "\n"
	}

	formatted, errs := compiler.Parse(result)
	if len(errs) > 0 {
		return "", fmt.Errorf("formatter produced invalid source: %w", errs)
	}
	if hash.HashProgram(formatted) != hash.HashProgram(prog) {
		return "", errors.New("formatter changed the meaning of the program")
	}
	return result, nil
}

// formatter walks the AST and emits canonically formatted source.
type formatter struct {
	indent   int
	buf      *strings.Builder
	comments []compiler.Comment // not yet emitted, in source order
	lastLine int                // source line of the last emitted item
	fresh    bool               // at the start of the file or a block
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) newline() {
	f.buf.WriteByte('\n')
}

// writeIndent writes the current indentation prefix (two spaces per level).
func (f *formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.buf.WriteString("  ")
	}
}

// separate emits a single blank line when the source had one or more
// between the previous item and one starting on line.
func (f *formatter) separate(line int) {
	if !f.fresh && line > f.lastLine+1 {
		f.newline()
	}
	f.fresh = false
}

// flushComments writes every pending comment that starts before offset on
// its own line.
func (f *formatter) flushComments(offset int) {
	for len(f.comments) > 0 && f.comments[0].PosVal.Offset < offset {
		c := f.comments[0]
		f.comments = f.comments[1:]
		f.separate(c.PosVal.Line)
		f.writeIndent()
		f.write(c.Text)
		f.newline()
		f.lastLine = c.PosVal.Line
	}
}

// endLine finishes the current output line, pulling in a comment that
// trails the item on source line line. limit is the offset of whatever
// follows the item.
func (f *formatter) endLine(line, limit int) {
	if len(f.comments) > 0 {
		c := f.comments[0]
		if c.PosVal.Line == line && c.PosVal.Offset < limit {
			f.comments = f.comments[1:]
			f.write(" ")
			f.write(c.Text)
		}
	}
	f.newline()
	f.lastLine = line
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (f *formatter) formatStmts(stmts []compiler.Stmt, limit int) {
	for i, stmt := range stmts {
		next := limit
		if i+1 < len(stmts) {
			next = stmts[i+1].Pos().Offset
		}
		f.flushComments(stmt.Pos().Offset)
		f.separate(stmt.Pos().Line)
		f.writeIndent()
		f.formatStmt(stmt, next)
	}
}

func (f *formatter) formatStmt(stmt compiler.Stmt, next int) {
	switch s := stmt.(type) {
	case *compiler.FuncDecl:
		f.write("fn " + s.Name + "(" + strings.Join(s.ParamNames(), ", ") + ") ")
		f.formatBlock(s.Body)
		f.endLine(s.Body.End.Line, next)

	case *compiler.Block:
		f.formatBlock(s)
		f.endLine(s.End.Line, next)

	case *compiler.If:
		last := f.formatIf(s)
		f.endLine(last.End.Line, next)

	case *compiler.While:
		f.write("while " + exprString(s.Cond) + " ")
		f.formatBlock(s.Body)
		f.endLine(s.Body.End.Line, next)

	case *compiler.For:
		f.write("for (")
		if s.Init != nil {
			f.write(stmtString(s.Init))
		} else {
			f.write(";")
		}
		if s.Cond != nil {
			f.write(" " + exprString(s.Cond))
		}
		f.write(";")
		if s.Incr != nil {
			f.write(" " + exprString(s.Incr))
		}
		f.write(") ")
		f.formatBlock(s.Body)
		f.endLine(s.Body.End.Line, next)

	default:
		f.write(stmtString(stmt))
		f.endLine(lastLine(stmt), next)
	}
}

// formatIf writes an if/else-if/else chain and returns its final block.
func (f *formatter) formatIf(s *compiler.If) *compiler.Block {
	f.write("if " + exprString(s.Cond) + " ")
	f.formatBlock(s.Then)
	switch e := s.Else.(type) {
	case *compiler.If:
		f.write(" else ")
		return f.formatIf(e)
	case *compiler.Block:
		f.write(" else ")
		f.formatBlock(e)
		return e
	}
	return s.Then
}

// formatBlock writes a block up to and including its closing brace.
func (f *formatter) formatBlock(b *compiler.Block) {
	empty := len(b.Stmts) == 0 &&
		(len(f.comments) == 0 || f.comments[0].PosVal.Offset > b.End.Offset)
	if empty {
		f.write("{}")
		return
	}

	f.write("{")
	f.newline()
	f.indent++
	f.fresh = true
	f.formatStmts(b.Stmts, b.End.Offset)
	f.flushComments(b.End.Offset)
	f.indent--
	f.writeIndent()
	f.write("}")
}

// stmtString renders a statement that fits on one line.
func stmtString(stmt compiler.Stmt) string {
	switch s := stmt.(type) {
	case *compiler.ExprStmt:
		return exprString(s.Expr) + ";"
	case *compiler.VarDecl:
		if s.Init == nil {
			return "let " + s.Name + ";"
		}
		return "let " + s.Name + " = " + exprString(s.Init) + ";"
	case *compiler.Print:
		if len(s.Args) == 0 {
			return "print;"
		}
		return "print " + exprList(s.Args) + ";"
	case *compiler.Return:
		if s.Value == nil {
			return "return;"
		}
		return "return " + exprString(s.Value) + ";"
	case *compiler.Break:
		return "break;"
	case *compiler.Continue:
		return "continue;"
	}
	return fmt.Sprintf("<%T>", stmt)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// exprString renders an expression. Parentheses come only from Grouping
// nodes, so the parsed structure is reproduced exactly.
func exprString(expr compiler.Expr) string {
	switch e := expr.(type) {
	case *compiler.NumberLiteral:
		if e.Raw != "" {
			return e.Raw
		}
		return strconv.FormatFloat(e.Value, 'f', -1, 64)
	case *compiler.StringLiteral:
		return quoteString(e.Value)
	case *compiler.BoolLiteral:
		return strconv.FormatBool(e.Value)
	case *compiler.NilLiteral:
		return "nil"
	case *compiler.Variable:
		return e.Name
	case *compiler.Assign:
		return exprString(e.Target) + " " + e.Op + " " + exprString(e.Value)
	case *compiler.Logical:
		return exprString(e.Left) + " " + e.Op + " " + exprString(e.Right)
	case *compiler.Binary:
		return exprString(e.Left) + " " + e.Op + " " + exprString(e.Right)
	case *compiler.Unary:
		return e.Op + exprString(e.Operand)
	case *compiler.Call:
		return exprString(e.Callee) + "(" + exprList(e.Args) + ")"
	case *compiler.ArrayLiteral:
		return "[" + exprList(e.Elements) + "]"
	case *compiler.Index:
		return exprString(e.Array) + "[" + exprString(e.Index) + "]"
	case *compiler.Grouping:
		return "(" + exprString(e.Expr) + ")"
	}
	return fmt.Sprintf("<%T>", expr)
}

func exprList(exprs []compiler.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = exprString(e)
	}
	return strings.Join(parts, ", ")
}

// quoteString renders s as a double-quoted literal using the escapes the
// lexer understands.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// lastLine returns the last source line a one-line statement touches.
func lastLine(node compiler.Node) int {
	line := node.Pos().Line
	var children []compiler.Expr
	switch n := node.(type) {
	case *compiler.ExprStmt:
		children = []compiler.Expr{n.Expr}
	case *compiler.VarDecl:
		children = []compiler.Expr{n.Init}
	case *compiler.Print:
		children = n.Args
	case *compiler.Return:
		children = []compiler.Expr{n.Value}
	case *compiler.Assign:
		children = []compiler.Expr{n.Target, n.Value}
	case *compiler.Logical:
		children = []compiler.Expr{n.Left, n.Right}
	case *compiler.Binary:
		children = []compiler.Expr{n.Left, n.Right}
	case *compiler.Unary:
		children = []compiler.Expr{n.Operand}
	case *compiler.Call:
		children = append([]compiler.Expr{n.Callee}, n.Args...)
	case *compiler.ArrayLiteral:
		children = n.Elements
	case *compiler.Index:
		children = []compiler.Expr{n.Array, n.Index}
	case *compiler.Grouping:
		children = []compiler.Expr{n.Expr}
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		if l := lastLine(c); l > line {
			line = l
		}
	}
	return line
}

// ---------------------------------------------------------------------------
// Command
// ---------------------------------------------------------------------------

func (c *cli) fmtCommand(args []string) int {
	fset := flag.NewFlagSet("fmt", flag.ContinueOnError)
	fset.SetOutput(c.stderr)
	write := fset.Bool("w", false, "write the result back to the source file")
	check := fset.Bool("check", false, "list files whose formatting differs and exit 1 if there are any")
	fset.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: myl fmt [-w] [-check] <files or directories...>\n\n")
		fmt.Fprintf(c.stderr, "Format myl source files to canonical style. Without -w the\n")
		fmt.Fprintf(c.stderr, "result is printed to standard output.\n\nOptions:\n")
		fset.PrintDefaults()
	}
	if code := parseFlags(fset, args); code >= 0 {
		return code
	}

	paths := fset.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := collectSourceFiles(paths)
	if err != nil {
		fmt.Fprintf(c.stderr, "myl fmt: %v\n", err)
		return exitIO
	}
	if len(files) == 0 {
		fmt.Fprintln(c.stderr, "myl fmt: no .myl files found")
		return exitOK
	}

	anyChanged := false
	for _, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(c.stderr, "myl fmt: %v\n", err)
			return exitIO
		}
		formatted, err := Format(string(source))
		if err != nil {
			var errs compiler.ErrorList
			if errors.As(err, &errs) {
				for _, e := range errs {
					fmt.Fprintf(c.stderr, "%s: %s\n", path, e)
				}
				return exitStatic
			}
			fmt.Fprintf(c.stderr, "%s: %v\n", path, err)
			return exitRuntime
		}

		changed := !bytes.Equal(source, []byte(formatted))
		switch {
		case *check:
			if changed {
				fmt.Fprintln(c.stdout, path)
				anyChanged = true
			}
		case *write:
			if changed {
				if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
					fmt.Fprintf(c.stderr, "myl fmt: %v\n", err)
					return exitIO
				}
				log.Infof("formatted %s", path)
			}
		default:
			fmt.Fprint(c.stdout, formatted)
		}
	}

	if anyChanged {
		return 1
	}
	return exitOK
}

// collectSourceFiles expands directories to the .myl files beneath them.
func collectSourceFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != p && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && strings.HasSuffix(path, ".myl") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
