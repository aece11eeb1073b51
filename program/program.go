// Package program implements the Program API of spec §6: the façade
// wiring every component (C1–C12) into the single stable entry point
// embedders call. It is grounded on cue/build.Context/Instance (the
// teacher's equivalent façade owning files, imports and diagnostics)
// generalized from CUE's single-level package model to this spec's
// files→scopes→dependency-graph→plugin-bus pipeline, with
// `go.uber.org/zap`/`go.uber.org/multierr` filling the ambient
// logging/error-aggregation role SPEC_FULL.md assigns them.
package program

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/scriptcore/bsc/depgraph"
	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/langserver"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/pluginbus"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/scope"
	"github.com/scriptcore/bsc/source"
	"github.com/scriptcore/bsc/token"
	"github.com/scriptcore/bsc/transpile"
	"github.com/scriptcore/bsc/validate"
)

// Options configures a new Program, per spec §6's options bag.
type Options struct {
	RootDir           string
	Cwd               string
	StagingFolderPath string
	SourceMap         bool
	SourceRoot        string
	EmitDefinitions   bool
	IgnoreErrorCodes  []diag.Code
	DiagnosticFilters []diag.Code
	Logger            *zap.SugaredLogger
}

// FileEntry is one `{src, dest}` pair from options.files, per spec §6.
type FileEntry struct {
	Src  string
	Dest string
}

// Program is the stable façade of spec §6, owning every file, scope,
// the dependency graph, and the plugin bus.
type Program struct {
	opts   Options
	logger *zap.SugaredLogger

	files    map[string]*source.File    // keyed by pkgPath
	scopes   map[string]*scope.Scope    // keyed by scope name
	deps     *depgraph.Graph
	bus      *pluginbus.Bus
	lang     *langserver.Server
	manifest preprocess.Manifest

	diagnostics []diag.Diagnostic
}

// New constructs a Program with a global scope and announces it on the
// plugin bus. Nothing subscribes to the dependency graph; scopes are
// invalidated directly by the file-changing methods.
func New(opts Options) *Program {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	p := &Program{
		opts:     opts,
		logger:   opts.Logger,
		files:    map[string]*source.File{},
		scopes:   map[string]*scope.Scope{},
		deps:     depgraph.New(),
		bus:      pluginbus.New(opts.Logger),
		manifest: preprocess.Manifest{},
	}
	p.lang = langserver.New(p)
	p.scopes["global"] = scope.New("global", nil)
	p.bus.Emit(pluginbus.AfterScopeCreate, "global")
	return p
}

// NormalizePath implements spec §6's file-path normalization: replace
// every `/`/`\` with the platform separator and strip trailing
// separators.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "/", string(filepath.Separator))
	path = strings.ReplaceAll(path, "\\", string(filepath.Separator))
	return strings.TrimRight(path, string(filepath.Separator))
}

// ToPkgPath forward-slashes a normalized path, per spec §6 ("pkgPath is
// always forward-slash").
func ToPkgPath(path string) string {
	return strings.ReplaceAll(path, string(filepath.Separator), "/")
}

// SetManifest parses a flat key=value manifest text and makes its keys
// available to every subsequently-parsed file's `#if` predicates (spec
// §6: "a flat key=value text file whose keys become available to #if
// predicates").
func (p *Program) SetManifest(text string) {
	p.manifest = preprocess.ParseManifest(text)
}

// GetOrCreateScope returns the named scope, creating it as a child of
// global when absent.
func (p *Program) GetOrCreateScope(name string) *scope.Scope {
	if s, ok := p.scopes[name]; ok {
		return s
	}
	s := scope.New(name, p.scopes["global"])
	p.scopes[name] = s
	p.bus.Emit(pluginbus.AfterScopeCreate, name)
	return s
}

// GetScopeByName implements spec §6's getScopeByName.
func (p *Program) GetScopeByName(name string) (*scope.Scope, bool) {
	s, ok := p.scopes[name]
	return s, ok
}

// GetComponentScope implements spec §6's getComponentScope, an alias
// over GetScopeByName scoped to the component namespace.
func (p *Program) GetComponentScope(componentName string) (*scope.Scope, bool) {
	return p.GetScopeByName("component:" + componentName)
}

// AddOrReplaceFile lexes/preprocesses/parses content into a File, files
// it under pkgPath on the named scope (default "global"), registers it
// with the dependency graph, and invalidates dependent scopes, per
// spec §5's ordering guarantee.
func (p *Program) AddOrReplaceFile(scopeName, pkgPath, srcPath, extension string, content []byte, mode parser.Mode) *source.File {
	p.bus.Emit(pluginbus.BeforeFileParse, pkgPath)
	f := source.Parse(srcPath, ToPkgPath(pkgPath), extension, content, p.manifest, mode)
	p.files[f.PkgPath] = f
	p.bus.Emit(pluginbus.AfterFileParse, f.PkgPath)

	s := p.GetOrCreateScope(scopeName)
	s.AddOrReplaceFile(f)
	for _, dep := range p.ScopesForFile(f.PkgPath) {
		dep.Invalidate()
	}

	p.deps.AddOrReplace(f.PkgPath, nil)
	return f
}

// RemoveFile drops a file from the program and the scope containing
// it, cascading the dependency-graph notification (spec §5 "Memory").
func (p *Program) RemoveFile(scopeName, pkgPath string) {
	pkgPath = ToPkgPath(pkgPath)
	delete(p.files, pkgPath)
	if s, ok := p.scopes[scopeName]; ok {
		s.RemoveFile(pkgPath)
	}
	p.deps.Remove(pkgPath)
}

// RemoveFiles removes every path in paths, aggregating any per-file
// errors with multierr (SPEC_FULL.md's "batch operations" rule) even
// though no single file removal can currently fail.
func (p *Program) RemoveFiles(scopeName string, paths []string) error {
	var err error
	for _, path := range paths {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = multierr.Append(err, errorFromPanic(path, r))
				}
			}()
			p.RemoveFile(scopeName, path)
		}()
	}
	return err
}

func errorFromPanic(path string, r interface{}) error {
	return &removeFileError{path: path, cause: r}
}

type removeFileError struct {
	path  string
	cause interface{}
}

func (e *removeFileError) Error() string {
	return "removeFile " + e.path + " panicked: " + toString(e.cause)
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "unknown error"
}

// HasFile implements spec §6's hasFile.
func (p *Program) HasFile(pkgPath string) bool {
	_, ok := p.files[ToPkgPath(pkgPath)]
	return ok
}

// GetFileByPathAbsolute implements spec §6's getFileByPathAbsolute.
func (p *Program) GetFileByPathAbsolute(path string) (*source.File, bool) {
	norm := NormalizePath(path)
	for _, f := range p.files {
		if NormalizePath(f.SrcPath) == norm {
			return f, true
		}
	}
	return nil, false
}

// GetFileByPkgPath implements spec §6's getFileByPkgPath and also
// backs langserver.Host.
func (p *Program) GetFileByPkgPath(pkgPath string) (*source.File, bool) {
	f, ok := p.files[ToPkgPath(pkgPath)]
	return f, ok
}

// FileByPkgPath satisfies langserver.Host.
func (p *Program) FileByPkgPath(pkgPath string) (*source.File, bool) { return p.GetFileByPkgPath(pkgPath) }

// ScopesForFile implements spec §6's getScopesForFile and backs
// langserver.Host: every scope whose GetAllFiles() includes pkgPath.
func (p *Program) ScopesForFile(pkgPath string) []*scope.Scope {
	pkgPath = ToPkgPath(pkgPath)
	var out []*scope.Scope
	for _, s := range p.scopes {
		if _, ok := s.GetAllFiles()[pkgPath]; ok {
			out = append(out, s)
		}
	}
	return out
}

// GetDiagnostics implements spec §6's getDiagnostics: the last
// validate() result plus any diagnostics added by AddDiagnostics since
// that validate() (Validate replaces the whole list), filtered by
// ignoreErrorCodes/diagnosticFilters and comment-flag suppression
// (spec §7).
func (p *Program) GetDiagnostics() []diag.Diagnostic {
	return diag.Filter(p.diagnostics, p.opts.IgnoreErrorCodes, p.opts.DiagnosticFilters, p.suppressedBy)
}

func (p *Program) suppressedBy(file string, r token.Range, code diag.Code) bool {
	f, ok := p.files[file]
	if !ok {
		return false
	}
	return f.Suppressed(r, code)
}

// AddDiagnostics implements spec §6's addDiagnostics (user-supplied
// diagnostics merged into the program's output).
func (p *Program) AddDiagnostics(ds []diag.Diagnostic) {
	p.diagnostics = append(p.diagnostics, ds...)
}

// Validate implements spec §6's validate(): rebuilds every invalidated
// scope, runs the scope-level and validator-level rule sets, fires the
// plugin-bus lifecycle events around each phase, and replaces
// p.diagnostics.
func (p *Program) Validate() []diag.Diagnostic {
	p.bus.Emit(pluginbus.BeforeProgramValidate, "")

	var out []diag.Diagnostic
	for name, s := range p.scopes {
		if s.IsValidated {
			continue
		}
		p.bus.Emit(pluginbus.BeforeScopeValidate, name)
		out = append(out, s.Build()...)
		p.bus.Emit(pluginbus.AfterScopeValidate, name)
		out = append(out, validate.Validate(s)...)
	}
	out = append(out, validate.ValidateProject(p.projectInputs())...)

	for pkgPath := range p.files {
		p.bus.Emit(pluginbus.AfterFileValidate, pkgPath)
	}

	diag.Sort(out)
	p.diagnostics = out
	p.bus.Emit(pluginbus.AfterProgramValidate, "")
	return p.GetDiagnostics()
}

func (p *Program) projectInputs() validate.ProjectInputs {
	in := validate.ProjectInputs{AllPkgPaths: map[string]bool{}}
	for pkgPath := range p.files {
		in.AllPkgPaths[pkgPath] = true
	}
	return in
}

// TranspileResult pairs a file's lowered output with its source map.
type TranspileResult struct {
	PkgPath string
	Code    string
	Map     *transpile.SourceMap
}

// Transpile implements spec §6's transpile(entries, outDir): lowers
// every requested file (by pkgPath) and returns its generated code plus
// source map, per spec §4.10.
func (p *Program) Transpile(entries []string) []TranspileResult {
	var out []TranspileResult
	for _, pkgPath := range entries {
		f, ok := p.GetFileByPkgPath(pkgPath)
		if !ok {
			p.logger.Warnw("transpile: unknown pkgPath", "pkgPath", pkgPath)
			continue
		}
		res := transpile.Transpile(f, transpile.Options{SourceMap: p.opts.SourceMap, SourceRoot: p.opts.SourceRoot})
		out = append(out, TranspileResult{PkgPath: pkgPath, Code: res.Code, Map: res.SourceMap})
	}
	return out
}

// Language-service passthroughs (spec §6). GetCompletions,
// GetHover, GetDefinition, GetReferences, and GetSignatureHelp each
// delegate straight to the langserver.Server built over this Program;
// GetDocumentSymbols/GetWorkspaceSymbols likewise. Callers wanting the
// full go.lsp.dev/protocol-typed surface can instead use
// LanguageServer() directly.

func (p *Program) GetCompletions(pkgPath string, pos protocol.Position) []protocol.CompletionItem {
	return p.lang.GetCompletions(pkgPath, pos)
}

func (p *Program) GetHover(pkgPath string, pos protocol.Position) *protocol.Hover {
	return p.lang.GetHover(pkgPath, pos)
}

func (p *Program) GetDefinition(pkgPath string, pos protocol.Position) []protocol.Location {
	return p.lang.GetDefinition(pkgPath, pos)
}

func (p *Program) GetReferences(pkgPath string, pos protocol.Position) []protocol.Location {
	return p.lang.GetReferences(pkgPath, pos)
}

func (p *Program) GetSignatureHelp(pkgPath string, pos protocol.Position) *protocol.SignatureHelp {
	return p.lang.GetSignatureHelp(pkgPath, pos)
}

func (p *Program) GetDocumentSymbols(pkgPath string) []protocol.DocumentSymbol {
	return p.lang.GetDocumentSymbols(pkgPath)
}

func (p *Program) GetWorkspaceSymbols() []protocol.SymbolInformation {
	roots := make([]*scope.Scope, 0, len(p.scopes))
	for _, s := range p.scopes {
		roots = append(roots, s)
	}
	return p.lang.GetWorkspaceSymbols(roots)
}

// Bus exposes the plugin bus so embedders can Register/Unregister
// plugins (spec §4.11).
func (p *Program) Bus() *pluginbus.Bus { return p.bus }

// LanguageServer exposes the language-service server directly for
// callers that want the full go.lsp.dev/protocol-typed API (spec §4.12).
func (p *Program) LanguageServer() *langserver.Server { return p.lang }

// Dispose implements spec §6's dispose(): drops every file, scope, and
// dependency-graph edge the Program owns.
func (p *Program) Dispose() {
	p.files = map[string]*source.File{}
	p.scopes = map[string]*scope.Scope{}
	p.deps = depgraph.New()
	p.diagnostics = nil
}
