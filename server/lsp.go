// Package server implements the myl language server.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "myl-lsp"

var log = commonlog.GetLogger("myl.lsp")

// LspServer serves editor features for myl source files.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analyzed document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// document is one open file and everything derived from its text.
type document struct {
	text  string
	index *compiler.SymbolIndex
	errs  compiler.ErrorList // lex, parse and compile errors
}

// analyze parses text and builds its symbol index. Compile errors are only
// collected for documents that parse cleanly.
func analyze(text string) *document {
	prog, errs := compiler.Parse(text)
	if len(errs) == 0 {
		errs = compiler.Check(prog)
	}
	return &document{
		text:  text,
		index: compiler.Analyze(prog),
		errs:  errs,
	}
}

// NewLSP creates a new language server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("myl LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("myl LSP shutting down")
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := analyze(text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	log.Debugf("analyzed %s: %d errors, %d warnings", uri, len(doc.errs), len(doc.index.Warnings))
	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(doc, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return hover(doc, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	loc := definition(uri, doc, params.Position)
	if loc == nil {
		return nil, nil
	}
	return *loc, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	return references(uri, doc, params.Position, params.Context.IncludeDeclaration), nil
}

// --- Document-backed logic ---

func complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	// Declarations in the document come first so they shadow builtins.
	for _, name := range doc.index.Names() {
		sym := doc.index.Lookup(name)
		kind := protocol.CompletionItemKindVariable
		if sym.Kind == compiler.SymbolFunction {
			kind = protocol.CompletionItemKindFunction
		}
		add(name, kind, signature(sym))
	}
	for _, n := range bytecode.Builtins() {
		add(n.Name, protocol.CompletionItemKindFunction, bytecode.BuiltinSignatures[n.Name])
	}
	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// signature renders a declaration the way it reads in source.
func signature(sym *compiler.Symbol) string {
	switch sym.Kind {
	case compiler.SymbolFunction:
		return fmt.Sprintf("fn %s(%s)", sym.Name, strings.Join(sym.Params, ", "))
	case compiler.SymbolParameter:
		return "param " + sym.Name
	default:
		return "let " + sym.Name
	}
}

func hover(doc *document, pos protocol.Position) *protocol.Hover {
	word, start := wordAt(doc.text, pos)
	if word == "" {
		return nil
	}

	var b strings.Builder
	if sym := doc.index.SymbolAt(int(pos.Line)+1, start+1); sym != nil {
		fmt.Fprintf(&b, "```myl\n%s\n```\n\n", signature(sym))
		scope := "local"
		if sym.Global {
			scope = "global"
		}
		fmt.Fprintf(&b, "%s %s declared on line %d, %d references", scope, sym.Kind, sym.NamePos.Line, len(sym.References))
	} else if sig, ok := bytecode.BuiltinSignatures[word]; ok {
		fmt.Fprintf(&b, "**builtin** `%s`", sig)
	} else {
		return nil
	}

	r := wordRange(int(pos.Line), start, word)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

func definition(uri protocol.DocumentUri, doc *document, pos protocol.Position) *protocol.Location {
	word, start := wordAt(doc.text, pos)
	if word == "" {
		return nil
	}
	sym := doc.index.SymbolAt(int(pos.Line)+1, start+1)
	if sym == nil {
		return nil
	}
	return &protocol.Location{URI: uri, Range: nameRange(sym.NamePos, sym.Name)}
}

func references(uri protocol.DocumentUri, doc *document, pos protocol.Position, includeDecl bool) []protocol.Location {
	word, start := wordAt(doc.text, pos)
	if word == "" {
		return nil
	}
	sym := doc.index.SymbolAt(int(pos.Line)+1, start+1)
	if sym == nil {
		return nil
	}

	var locations []protocol.Location
	if includeDecl {
		locations = append(locations, protocol.Location{URI: uri, Range: nameRange(sym.NamePos, sym.Name)})
	}
	for _, ref := range sym.References {
		locations = append(locations, protocol.Location{URI: uri, Range: nameRange(ref, sym.Name)})
	}
	return locations
}

// --- Diagnostics ---

func diagnostics(doc *document) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	source := lspName
	add := func(e *compiler.Error, severity protocol.DiagnosticSeverity) {
		diags = append(diags, protocol.Diagnostic{
			Range:    errorRange(doc.text, e.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  fmt.Sprintf("%s: %s", e.Kind, e.Message),
		})
	}
	for _, e := range doc.errs {
		add(e, protocol.DiagnosticSeverityError)
	}
	// Warnings about a partial program are mostly noise.
	if len(doc.errs) == 0 {
		for _, w := range doc.index.Warnings {
			add(w, protocol.DiagnosticSeverityWarning)
		}
	}
	return diags
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc),
	})
}

// --- Positions ---

// nameRange covers name starting at the 1-based position p.
func nameRange(p compiler.Position, name string) protocol.Range {
	return wordRange(p.Line-1, p.Column-1, name)
}

func wordRange(line, col int, word string) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col + len(word))},
	}
}

// errorRange covers the identifier at p, or a single character when p is
// not on one.
func errorRange(text string, p compiler.Position) protocol.Range {
	if p.Line < 1 {
		p.Line, p.Column = 1, 1
	}
	pos := protocol.Position{Line: protocol.UInteger(p.Line - 1), Character: protocol.UInteger(max(p.Column-1, 0))}
	word, start := wordAt(text, pos)
	if word != "" && start == int(pos.Character) {
		return wordRange(int(pos.Line), start, word)
	}
	end := pos
	end.Character++
	return protocol.Range{Start: pos, End: end}
}

// --- Text extraction helpers ---

func isIdentChar(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}

func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// wordAt returns the identifier under the cursor and its 0-based start
// column.
func wordAt(text string, pos protocol.Position) (string, int) {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return "", 0
	}

	start := col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(line[end]) {
		end++
	}
	return line[start:end], start
}

func boolPtr(b bool) *bool {
	return &b
}
