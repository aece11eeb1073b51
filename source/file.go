// Package source implements spec §4.6 (component C6): classic/extended
// source files, component files, comment flags, and typedef linkage. It
// is grounded on cue/build.File (which pairs a parsed *ast.File with its
// package path, encoding, and per-file diagnostics) generalized from
// CUE's single file kind to this language's classic/extended split plus
// the sibling component-XML file kind cue/build has no analogue for.
package source

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/lexer"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/token"
)

// Kind distinguishes the two source dialects a File may hold, per spec
// §1/§4.3.
type Kind int

const (
	Classic Kind = iota
	Extended
)

// Callable is spec §3's Callable value, scoped to the file that declared
// it.
type Callable struct {
	Name                 string
	NameRange            token.Range
	Params               []*ast.FunctionParameter
	ReturnType           string
	IsSub                bool
	File                 *File
	Range                token.Range
	FunctionStatementRef *ast.FunctionStatement
	HasNamespace         bool
	Namespace            string
}

// ArgInfo is one lightly-typed call argument, per spec §4.6
// ("argument list with lightweight-inferred types").
type ArgInfo struct {
	Expression ast.Expression
	Type       string
}

// FunctionCall is one call site recorded in a file's functionCalls list,
// per spec §4.6.
type FunctionCall struct {
	CalleeName string
	Args       []ArgInfo
	NameRange  token.Range
	Container  *ast.FunctionStatement // nil when at file scope
}

// CommentFlag is a `bs:disable-line`/`bs:disable-next-line` directive,
// per spec §4.6.
type CommentFlag struct {
	AffectedRange token.Range
	Codes         []diag.Code
	DisableAll    bool
}

// Suppresses reports whether the flag silences a diagnostic with the
// given code at the given range.
func (f CommentFlag) Suppresses(r token.Range, code diag.Code) bool {
	if !f.AffectedRange.ContainsRange(r) && !f.AffectedRange.Contains(r.Start) {
		return false
	}
	if f.DisableAll {
		return true
	}
	for _, c := range f.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// File is a classic or extended source file, per spec §4.6.
type File struct {
	SrcPath   string
	PkgPath   string
	Extension string
	Kind      Kind

	AST        *ast.Body
	References *parser.References

	Callables        []*Callable
	FunctionCalls    []*FunctionCall
	OwnScriptImports []string
	CommentFlags     []CommentFlag

	// NeedsTranspile is false iff the file was parsed in classic mode
	// and no transform has since set it (spec §3 invariant 5).
	NeedsTranspile bool

	// TypedefFile, when non-nil, is the sibling `.d.bs` declaration file
	// whose callables take precedence over this file's own (spec §4.6,
	// §8 scenario S7).
	TypedefFile *File

	Diagnostics []diag.Diagnostic
}

var disableLineRe = regexp.MustCompile(`(?i)bs:disable-(line|next-line)\s*(?::\s*([a-z0-9,\s]+))?`)

// Parse lexes, preprocesses, and parses content into a File, recording
// parse diagnostics, callables, call sites, script imports and comment
// flags per spec §4.6.
func Parse(srcPath, pkgPath, extension string, content []byte, manifest preprocess.Manifest, mode parser.Mode) *File {
	f := &File{
		SrcPath:   srcPath,
		PkgPath:   pkgPath,
		Extension: extension,
		Kind:      Classic,
	}
	if mode == parser.Extended {
		f.Kind = Extended
	}
	f.NeedsTranspile = mode == parser.Extended

	lx := lexer.New(content, lexer.Options{})
	toks := lx.Scan()
	f.Diagnostics = append(f.Diagnostics, lx.Diagnostics()...)

	filtered, ppDiags := preprocess.Process(toks, manifest)
	f.Diagnostics = append(f.Diagnostics, ppDiags...)

	res := parser.Parse(filtered, mode)
	f.AST = res.Body
	f.References = res.References
	f.Diagnostics = append(f.Diagnostics, res.Diagnostics...)

	f.buildCallables()
	f.buildFunctionCalls()
	f.buildScriptImports()
	f.buildCommentFlags(toks)

	for i := range f.Diagnostics {
		f.Diagnostics[i].File = pkgPath
	}
	return f
}

func (f *File) buildCallables() {
	if f.References == nil {
		return
	}
	for _, fn := range f.References.FunctionStatements {
		f.Callables = append(f.Callables, &Callable{
			Name:                 fn.Name,
			NameRange:            fn.NameRange,
			Params:               fn.Params,
			ReturnType:           fn.ReturnType,
			IsSub:                fn.IsSub,
			File:                 f,
			Range:                fn.Range(),
			FunctionStatementRef: fn,
			HasNamespace:         fn.Namespace != "",
			Namespace:            fn.Namespace,
		})
	}
}

// buildFunctionCalls walks the AST collecting every Call/Callfunc
// expression, recording the enclosing function statement (nil at file
// scope) so the validator can later resolve argument counts against the
// right scope.
func (f *File) buildFunctionCalls() {
	if f.AST == nil {
		return
	}
	var enclosing *ast.FunctionStatement
	var walk func(n ast.Node)
	record := func(calleeName string, nameRange token.Range, args []ast.Expression) {
		infos := make([]ArgInfo, len(args))
		for i, a := range args {
			infos[i] = ArgInfo{Expression: a, Type: inferType(a)}
		}
		f.FunctionCalls = append(f.FunctionCalls, &FunctionCall{
			CalleeName: calleeName,
			Args:       infos,
			NameRange:  nameRange,
			Container:  enclosing,
		})
	}
	walk = func(n ast.Node) {
		if n == nil {
			return
		}
		switch v := n.(type) {
		case *ast.FunctionStatement:
			prev := enclosing
			enclosing = v
			if v.Body != nil {
				walkBody(v.Body, walk)
			}
			enclosing = prev
			return
		case *ast.FunctionExpression:
			prev := enclosing
			if v.Body != nil {
				walkBody(v.Body, walk)
			}
			enclosing = prev
			return
		case *ast.Call:
			if name, ok := calleeName(v.Callee); ok {
				record(name, v.Range(), v.Args)
			}
			walk(v.Callee)
			for _, a := range v.Args {
				walk(a)
			}
			return
		case *ast.Callfunc:
			record(v.MethodName, v.Range(), v.Args)
			walk(v.Target)
			for _, a := range v.Args {
				walk(a)
			}
			return
		}
		n.Walk(ast.VisitorFunc(func(child ast.Node) (ast.Node, bool) {
			walk(child)
			return nil, false
		}), ast.WalkOptions{Mode: ast.AllWalkModes})
	}
	walkBody(f.AST, walk)
}

func walkBody(b *ast.Body, walk func(ast.Node)) {
	for _, s := range b.Statements {
		walk(s)
	}
}

func calleeName(e ast.Expression) (string, bool) {
	switch v := e.(type) {
	case *ast.Variable:
		return v.Name, true
	case *ast.DottedGet:
		return v.Field, true
	case *ast.NamespacedVariableName:
		return v.Name(), true
	}
	return "", false
}

func inferType(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.Literal:
		switch v.LitKind {
		case ast.LiteralInt:
			return "integer"
		case ast.LiteralLong:
			return "longinteger"
		case ast.LiteralFloat:
			return "float"
		case ast.LiteralDouble:
			return "double"
		case ast.LiteralString:
			return "string"
		case ast.LiteralBool:
			return "boolean"
		case ast.LiteralInvalidValue:
			return "invalid"
		}
	case *ast.ArrayLiteral:
		return "object"
	case *ast.AALiteral:
		return "object"
	}
	return "dynamic"
}

func (f *File) buildScriptImports() {
	if f.References == nil {
		return
	}
	for _, imp := range f.References.ImportStatements {
		f.OwnScriptImports = append(f.OwnScriptImports, imp.PkgPath)
	}
	for _, lib := range f.References.LibraryStatements {
		f.OwnScriptImports = append(f.OwnScriptImports, lib.Path)
	}
}

// buildCommentFlags scans every raw comment token for a `bs:disable-line`
// or `bs:disable-next-line` directive, per spec §4.6. Line numbers come
// straight from the token range: disable-line affects the comment's own
// line; disable-next-line affects the following line.
func (f *File) buildCommentFlags(toks []lexer.Token) {
	for _, t := range toks {
		if t.Kind != token.Comment {
			continue
		}
		m := disableLineRe.FindStringSubmatch(t.Text)
		if m == nil {
			continue
		}
		flag := CommentFlag{}
		line := t.Range.Start.Line
		if strings.EqualFold(m[1], "next-line") {
			line++
		}
		flag.AffectedRange = token.Range{
			Start: token.Position{Line: line, Column: 0},
			End:   token.Position{Line: line, Column: token.MaxCol},
		}
		codes := strings.TrimSpace(m[2])
		if codes == "" {
			flag.DisableAll = true
		} else {
			for _, part := range strings.Split(codes, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				n, err := strconv.Atoi(part)
				if err != nil {
					continue
				}
				code := diag.Code(n)
				if !diag.IsKnownCode(code) {
					f.Diagnostics = append(f.Diagnostics, diag.Diagnostic{
						Code:     diag.CodeUnknownDiagnosticCode,
						Severity: diag.Warning,
						Message:  "unknown diagnostic code in comment flag: " + part,
						Range:    t.Range,
					})
					continue
				}
				flag.Codes = append(flag.Codes, code)
			}
		}
		f.CommentFlags = append(f.CommentFlags, flag)
	}
}

// Suppressed reports whether any of the file's comment flags silences a
// diagnostic with the given code at the given range.
func (f *File) Suppressed(r token.Range, code diag.Code) bool {
	for _, flag := range f.CommentFlags {
		if flag.Suppresses(r, code) {
			return true
		}
	}
	return false
}

// EffectiveCallables returns the typedef's callables when a typedef is
// linked (spec §8 S7: "the typedef controls scope visibility"),
// otherwise the file's own.
func (f *File) EffectiveCallables() []*Callable {
	if f.TypedefFile != nil {
		return f.TypedefFile.Callables
	}
	return f.Callables
}

// ComponentFile is the opaque sibling XML-like file kind of spec §4.6:
// not lexed by C1, but present in the dependency graph.
type ComponentFile struct {
	SrcPath    string
	PkgPath    string
	Name       string
	ParentName string
	Imports    []string
}

// ParseManifestFile is a thin rename of preprocess.ParseManifest kept
// here so callers of the source package don't need to import preprocess
// directly just to read a manifest file (spec §6: "flat key=value text
// file").
func ParseManifestFile(r *bufio.Scanner) preprocess.Manifest {
	m := preprocess.Manifest{}
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m
}
