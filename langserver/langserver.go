// Package langserver implements spec §4.12 (component C12): the
// language-service queries (hover, completion, definition, references,
// signature help, document/workspace symbols) layered over a set of
// scopes and files. It is grounded on bufbuild-buf's buflsp package
// (the pack's only other from-scratch-grammar language server), reusing
// its choice of `go.lsp.dev/protocol` for every wire type instead of
// hand-rolled structs, per SPEC_FULL.md's DOMAIN STACK.
package langserver

import (
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/scriptcore/bsc/scope"
	"github.com/scriptcore/bsc/source"
	"github.com/scriptcore/bsc/token"
)

var keywordSet = []string{
	"function", "sub", "end", "if", "then", "else", "for", "each", "in", "to", "step",
	"while", "return", "dim", "print", "goto", "stop", "class", "namespace", "import",
	"new", "try", "catch", "throw", "invalid", "true", "false", "and", "or", "not",
}

// Host is the minimal view of the Program a language-service query needs:
// the set of scopes that include a given file, keyed by pkgPath.
type Host interface {
	ScopesForFile(pkgPath string) []*scope.Scope
	FileByPkgPath(pkgPath string) (*source.File, bool)
}

// Server answers spec §4.12 queries against a Host.
type Server struct {
	host Host
}

func New(host Host) *Server { return &Server{host: host} }

func toRange(r token.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.Start.Line), Character: uint32(r.Start.Column)},
		End:   protocol.Position{Line: uint32(r.End.Line), Character: uint32(r.End.Column)},
	}
}

func posInRange(pos protocol.Position, r token.Range) bool {
	p := token.Position{Line: int(pos.Line), Column: int(pos.Character)}
	return r.Contains(p)
}

// GetCompletions returns, for positions outside comment-flag ranges and
// path strings, the top-level callables and first-level namespace names
// of every scope that includes the file, plus `m` and the keywords,
// de-duplicated by lowercase label and sorted by label. It does not look
// at the text before pos: there is no member completion after `.`, no
// class-name list after `new`, and no local variables.
func (s *Server) GetCompletions(pkgPath string, pos protocol.Position) []protocol.CompletionItem {
	f, ok := s.host.FileByPkgPath(pkgPath)
	if !ok {
		return nil
	}
	if s.insideComment(f, pos) {
		return nil
	}
	if kind, ok := s.insidePathString(f, pos); ok {
		return s.pathCompletions(kind)
	}

	seen := map[string]bool{}
	var out []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind) {
		lower := strings.ToLower(label)
		if seen[lower] {
			return
		}
		seen[lower] = true
		out = append(out, protocol.CompletionItem{Label: label, Kind: kind})
	}

	for _, sc := range s.host.ScopesForFile(pkgPath) {
		for _, entries := range sc.CallablesByLowerName {
			for _, c := range entries {
				add(c.Name, protocol.CompletionItemKindFunction)
			}
		}
		for name := range sc.Root.Children {
			add(sc.Root.Children[name].LastPartName, protocol.CompletionItemKindModule)
		}
	}
	add("m", protocol.CompletionItemKindVariable)
	for _, kw := range keywordSet {
		add(kw, protocol.CompletionItemKindKeyword)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (s *Server) insideComment(f *source.File, pos protocol.Position) bool {
	for _, flag := range f.CommentFlags {
		if posInRange(pos, flag.AffectedRange) {
			return true
		}
	}
	return false
}

func (s *Server) insidePathString(f *source.File, pos protocol.Position) (string, bool) {
	for _, imp := range f.OwnScriptImports {
		if strings.HasPrefix(imp, "pkg:") || strings.HasPrefix(imp, "libpkg:") {
			return imp, true
		}
	}
	return "", false
}

func (s *Server) pathCompletions(prefixKind string) []protocol.CompletionItem {
	return []protocol.CompletionItem{{Label: prefixKind, Kind: protocol.CompletionItemKindFile}}
}

// GetHover renders the canonical signature of the callable named at pos
// in each including scope, joining disagreeing scopes' contents with
// "|". Only callables are looked up; local variables get no hover.
func (s *Server) GetHover(pkgPath string, pos protocol.Position) *protocol.Hover {
	var contents []string
	for _, sc := range s.host.ScopesForFile(pkgPath) {
		name, ok := s.identifierAt(pkgPath, pos)
		if !ok {
			continue
		}
		if callable, _, found := sc.LookupCallable(strings.ToLower(name)); found {
			contents = append(contents, signatureText(callable))
		}
	}
	if len(contents) == 0 {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.PlainText, Value: strings.Join(dedupStrings(contents), "|")},
	}
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func signatureText(c *source.Callable) string {
	kw := "function"
	if c.IsSub {
		kw = "sub"
	}
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		parts[i] = p.Name
		if p.Type != "" {
			parts[i] += " as " + p.Type
		}
	}
	sig := kw + " " + c.Name + "(" + strings.Join(parts, ", ") + ")"
	if c.ReturnType != "" {
		sig += " as " + c.ReturnType
	}
	return sig
}

// identifierAt is a best-effort lookup of the bare-word token at pos,
// scanning the file's recorded function calls and callables for a
// name whose NameRange contains pos (a full token-level lookup would
// need a position index over the token stream, which C6 does not keep).
func (s *Server) identifierAt(pkgPath string, pos protocol.Position) (string, bool) {
	f, ok := s.host.FileByPkgPath(pkgPath)
	if !ok {
		return "", false
	}
	for _, c := range f.Callables {
		if posInRange(pos, c.NameRange) {
			return c.Name, true
		}
	}
	for _, call := range f.FunctionCalls {
		if posInRange(pos, call.NameRange) {
			return call.CalleeName, true
		}
	}
	return "", false
}

// GetDefinition returns every matching declaration across scopes that
// include the file, per spec §4.12.
func (s *Server) GetDefinition(pkgPath string, pos protocol.Position) []protocol.Location {
	name, ok := s.identifierAt(pkgPath, pos)
	if !ok {
		return nil
	}
	var out []protocol.Location
	for _, sc := range s.host.ScopesForFile(pkgPath) {
		for _, entries := range sc.CallablesByLowerName {
			for _, c := range entries {
				if strings.EqualFold(c.Name, name) {
					out = append(out, protocol.Location{
						URI:   protocol.DocumentURI(c.File.SrcPath),
						Range: toRange(c.NameRange),
					})
				}
			}
		}
	}
	return out
}

// GetReferences walks every file in each including scope reporting
// every recorded function-call site whose callee matches name. Other
// variable-expression uses of the name are not reported.
func (s *Server) GetReferences(pkgPath string, pos protocol.Position) []protocol.Location {
	name, ok := s.identifierAt(pkgPath, pos)
	if !ok {
		return nil
	}
	var out []protocol.Location
	for _, sc := range s.host.ScopesForFile(pkgPath) {
		for _, f := range sc.GetAllFiles() {
			for _, call := range f.FunctionCalls {
				if strings.EqualFold(call.CalleeName, name) {
					out = append(out, protocol.Location{
						URI:   protocol.DocumentURI(f.SrcPath),
						Range: toRange(call.NameRange),
					})
				}
			}
		}
	}
	return out
}

// GetSignatureHelp takes the last recorded call starting at or before pos
// and reports its callee's signature label. The argument index is not
// computed: ActiveParameter is always 0.
func (s *Server) GetSignatureHelp(pkgPath string, pos protocol.Position) *protocol.SignatureHelp {
	f, ok := s.host.FileByPkgPath(pkgPath)
	if !ok {
		return nil
	}
	var best *source.FunctionCall
	for _, call := range f.FunctionCalls {
		if rangeBeforeOrAt(call.NameRange, pos) {
			best = call
		}
	}
	if best == nil {
		return nil
	}
	argIndex := 0
	for _, sc := range s.host.ScopesForFile(pkgPath) {
		if c, _, found := sc.LookupCallable(strings.ToLower(best.CalleeName)); found {
			return &protocol.SignatureHelp{
				Signatures:      []protocol.SignatureInformation{{Label: signatureText(c)}},
				ActiveParameter: uint32(argIndex),
			}
		}
	}
	return nil
}

func rangeBeforeOrAt(r token.Range, pos protocol.Position) bool {
	return !r.Start.Before(token.Position{}) && (r.Start.Line < int(pos.Line) ||
		(r.Start.Line == int(pos.Line) && r.Start.Column <= int(pos.Character)))
}

// GetDocumentSymbols returns one file's symbols: every function statement
// in its References as a flat Function symbol, then each class with its
// methods as children. Namespaces get no symbol of their own.
func (s *Server) GetDocumentSymbols(pkgPath string) []protocol.DocumentSymbol {
	f, ok := s.host.FileByPkgPath(pkgPath)
	if !ok || f.References == nil {
		return nil
	}
	var out []protocol.DocumentSymbol
	for _, fn := range f.References.FunctionStatements {
		out = append(out, protocol.DocumentSymbol{
			Name:           fn.Name,
			Kind:           protocol.SymbolKindFunction,
			Range:          toRange(fn.Range()),
			SelectionRange: toRange(fn.NameRange),
		})
	}
	for _, c := range f.References.ClassStatements {
		sym := protocol.DocumentSymbol{
			Name:           c.Name,
			Kind:           protocol.SymbolKindClass,
			Range:          toRange(c.Range()),
			SelectionRange: toRange(c.NameRange),
		}
		for _, m := range c.Methods {
			sym.Children = append(sym.Children, protocol.DocumentSymbol{
				Name:           m.Name,
				Kind:           protocol.SymbolKindMethod,
				Range:          toRange(m.Range()),
				SelectionRange: toRange(m.NameRange),
			})
		}
		out = append(out, sym)
	}
	return out
}

// GetWorkspaceSymbols returns a flat list with container name, per spec
// §4.12, across every file in every scope reachable from root.
func (s *Server) GetWorkspaceSymbols(roots []*scope.Scope) []protocol.SymbolInformation {
	var out []protocol.SymbolInformation
	seen := map[string]bool{}
	for _, sc := range roots {
		for _, f := range sc.GetAllFiles() {
			if seen[f.PkgPath] {
				continue
			}
			seen[f.PkgPath] = true
			if f.References == nil {
				continue
			}
			for _, fn := range f.References.FunctionStatements {
				container := fn.Namespace
				out = append(out, protocol.SymbolInformation{
					Name:          fn.Name,
					Kind:          protocol.SymbolKindFunction,
					ContainerName: container,
					Location: protocol.Location{
						URI:   protocol.DocumentURI(f.SrcPath),
						Range: toRange(fn.NameRange),
					},
				})
			}
			for _, c := range f.References.ClassStatements {
				out = append(out, protocol.SymbolInformation{
					Name:          c.Name,
					Kind:          protocol.SymbolKindClass,
					ContainerName: c.Namespace,
					Location: protocol.Location{
						URI:   protocol.DocumentURI(f.SrcPath),
						Range: toRange(c.NameRange),
					},
				})
			}
		}
	}
	return out
}
