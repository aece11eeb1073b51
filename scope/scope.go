// Package scope implements the scope-aggregation engine of spec §4.8
// (component C8, "the single largest component"): namespace assembly,
// callable/class resolution with ancestor shadowing, and the
// scope-level diagnostics the spec places at this layer rather than in
// the validator (duplicate-function, overridesAncestorFunction,
// namespaced-class collision, stdlib shadowing). It is grounded on
// cue/build.Instance, which aggregates a package's files into one
// resolvable unit with an import-derived parent environment; this
// module generalizes that single-level aggregation into the
// global→project→component parent chain spec §3/§4.8 describes, which
// cue/build has no analogue for (CUE packages do not nest).
package scope

import (
	"sort"
	"strings"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/source"
)

// ExemptLifecycleNames centralises the lifecycle-method exemption spec
// §9 calls for ("implementers should centralise the exempt-name list").
var ExemptLifecycleNames = map[string]bool{"init": true}

// stdlibFunctionNames is the minimal built-in-function name set the
// global scope seeds every other scope with (spec §4.8's shadowing
// rules reference "a stdlib function's name"; the spec does not
// enumerate the standard library, so this module carries the common
// subset needed to exercise those rules).
var stdlibFunctionNames = map[string]bool{
	"print": true, "len": true, "str": true, "val": true,
	"left": true, "right": true, "mid": true, "instr": true,
	"ucase": true, "lcase": true, "trim": true, "type": true,
	"getglobalaa": true, "createobject": true, "abs": true,
}

// NamespaceNode is spec §3's NamespaceNode: a dotted-name tree merging
// contributions from every file in the scope that declares it.
type NamespaceNode struct {
	FullName     string
	LastPartName string
	Children     map[string]*NamespaceNode

	Statements           []ast.Node // *ast.FunctionStatement or *ast.Class
	FunctionsByLowerName map[string]*ast.FunctionStatement
	ClassesByLowerName   map[string]*ast.Class

	// ContributingFiles is the SUPPLEMENTED "cross-file namespace merge
	// reporting" feature (SPEC_FULL.md): which pkgPaths added to this
	// node. The validator does not read it.
	ContributingFiles map[string]bool
}

func newNamespaceNode(full, last string) *NamespaceNode {
	return &NamespaceNode{
		FullName:             full,
		LastPartName:         last,
		Children:             map[string]*NamespaceNode{},
		FunctionsByLowerName: map[string]*ast.FunctionStatement{},
		ClassesByLowerName:   map[string]*ast.Class{},
		ContributingFiles:    map[string]bool{},
	}
}

// child returns (creating if absent) the child node named part, keyed
// case-insensitively but preserving the first-seen original spelling in
// FullName/LastPartName (spec §3 invariant 4).
func (n *NamespaceNode) child(parentFull, part string) *NamespaceNode {
	lower := strings.ToLower(part)
	if c, ok := n.Children[lower]; ok {
		return c
	}
	full := part
	if parentFull != "" {
		full = parentFull + "." + part
	}
	c := newNamespaceNode(full, part)
	n.Children[lower] = c
	return c
}

// Scope is spec §3's Scope: an aggregated, validated unit of analysis.
type Scope struct {
	Name   string
	Parent *Scope

	files map[string]*source.File

	Root                 *NamespaceNode
	CallablesByLowerName map[string][]*source.Callable
	ClassesByLowerName   map[string][]*ast.Class // key: lowercase fully-qualified name ("" namespace => bare lowercase name)

	IsValidated bool
	Diagnostics []diag.Diagnostic
}

// New constructs an empty scope named name with the given parent (nil
// for the global scope).
func New(name string, parent *Scope) *Scope {
	return &Scope{
		Name:   name,
		Parent: parent,
		files:  map[string]*source.File{},
	}
}

// AddOrReplaceFile adds f (or replaces the file at the same pkgPath) and
// marks the scope invalid (spec §3 invariant 2).
func (s *Scope) AddOrReplaceFile(f *source.File) {
	s.files[f.PkgPath] = f
	s.IsValidated = false
}

// RemoveFile drops the file at pkgPath from this scope's own set.
func (s *Scope) RemoveFile(pkgPath string) {
	delete(s.files, pkgPath)
	s.IsValidated = false
}

// OwnFiles returns this scope's own files, not including ancestors.
func (s *Scope) OwnFiles() map[string]*source.File { return s.files }

// GetAllFiles returns own files unioned with the parent's
// getAllFiles(), own files taking precedence on pkgPath collision (spec
// §4.8: "own files ∪ parent's getAllFiles()").
func (s *Scope) GetAllFiles() map[string]*source.File {
	out := map[string]*source.File{}
	if s.Parent != nil {
		for k, v := range s.Parent.GetAllFiles() {
			out[k] = v
		}
	}
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Invalidate clears isValidated without touching file membership (used
// when a dependency-graph notification fires, spec §3 invariant 2).
func (s *Scope) Invalidate() { s.IsValidated = false }

func effectiveReferences(f *source.File) *parser.References {
	if f.TypedefFile != nil {
		return f.TypedefFile.References
	}
	return f.References
}

// Build assembles the namespace tree, the top-level callable/class maps,
// and the scope-engine diagnostics (duplicate function, ancestor
// shadowing, stdlib shadowing, namespaced-class collision), per spec
// §4.8. It replaces s.Diagnostics and sets IsValidated=true.
func (s *Scope) Build() []diag.Diagnostic {
	s.Root = newNamespaceNode("", "")
	s.CallablesByLowerName = map[string][]*source.Callable{}
	s.ClassesByLowerName = map[string][]*ast.Class{}
	var diags []diag.Diagnostic

	files := s.GetAllFiles()
	paths := sortedKeys(files)

	for _, path := range paths {
		f := files[path]
		// Ancestors' callables stay in their own scopes' maps;
		// LookupCallable reaches them through Parent.
		_, own := s.files[path]
		for _, c := range f.EffectiveCallables() {
			if c.HasNamespace || !own {
				continue
			}
			s.CallablesByLowerName[lower(c.Name)] = append(s.CallablesByLowerName[lower(c.Name)], c)
		}
		refs := effectiveReferences(f)
		if refs == nil {
			continue
		}
		for _, fn := range refs.FunctionStatements {
			if fn.Namespace == "" {
				continue
			}
			node := s.namespaceNodeFor(fn.Namespace)
			node.Statements = append(node.Statements, fn)
			node.FunctionsByLowerName[lower(fn.Name)] = fn
			node.ContributingFiles[path] = true
		}
		for _, cls := range refs.ClassStatements {
			if cls.Namespace == "" {
				s.ClassesByLowerName[lower(cls.Name)] = append(s.ClassesByLowerName[lower(cls.Name)], cls)
				continue
			}
			node := s.namespaceNodeFor(cls.Namespace)
			node.Statements = append(node.Statements, cls)
			node.ClassesByLowerName[lower(cls.Name)] = cls
			node.ContributingFiles[path] = true
			fq := lower(cls.Namespace + "." + cls.Name)
			s.ClassesByLowerName[fq] = append(s.ClassesByLowerName[fq], cls)
		}
	}

	diags = append(diags, s.duplicateFunctionDiagnostics()...)
	diags = append(diags, s.ancestorShadowDiagnostics()...)
	diags = append(diags, s.stdlibShadowDiagnostics(files)...)
	diags = append(diags, s.namespacedClassCollisionDiagnostics()...)

	diag.Sort(diags)
	s.Diagnostics = diags
	s.IsValidated = true
	return diags
}

// namespaceNodeFor walks (creating as needed) the dotted path to the
// node for a fully dotted namespace name.
func (s *Scope) namespaceNodeFor(dotted string) *NamespaceNode {
	node := s.Root
	full := ""
	for _, part := range strings.Split(dotted, ".") {
		node = node.child(full, part)
		full = node.FullName
	}
	return node
}

// duplicateFunctionDiagnostics implements spec §4.8's "within one scope,
// if two top-level functions share the same lowercase name AND neither
// is inside a namespace, emit duplicateFunctionImplementation on each"
// (§8 scenario S1).
func (s *Scope) duplicateFunctionDiagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, lname := range sortedStringKeys(s.CallablesByLowerName) {
		cs := s.CallablesByLowerName[lname]
		if len(cs) < 2 {
			continue
		}
		for _, c := range cs {
			out = append(out, diag.Diagnostic{
				Code:     diag.CodeDuplicateFunctionImplementation,
				Severity: diag.Error,
				Message:  "duplicate function implementation: " + c.Name,
				Range:    c.NameRange,
				File:     c.File.PkgPath,
			})
		}
	}
	return out
}

// ancestorShadowDiagnostics implements the informational
// overridesAncestorFunction rule (spec §4.8), exempting
// ExemptLifecycleNames.
func (s *Scope) ancestorShadowDiagnostics() []diag.Diagnostic {
	if s.Parent == nil {
		return nil
	}
	var out []diag.Diagnostic
	for lname, cs := range s.CallablesByLowerName {
		if ExemptLifecycleNames[lname] {
			continue
		}
		if _, _, ok := s.Parent.LookupCallable(lname); !ok {
			continue
		}
		for _, c := range cs {
			out = append(out, diag.Diagnostic{
				Code:     diag.CodeOverridesAncestorFunction,
				Severity: diag.Info,
				Message:  "function overrides an ancestor scope's function: " + c.Name,
				Range:    c.NameRange,
				File:     c.File.PkgPath,
			})
		}
	}
	return out
}

// stdlibShadowDiagnostics implements spec §4.8's three local-vs-stdlib
// rules.
func (s *Scope) stdlibShadowDiagnostics(files map[string]*source.File) []diag.Diagnostic {
	var out []diag.Diagnostic
	for lname, cs := range s.CallablesByLowerName {
		if stdlibFunctionNames[lname] {
			for _, c := range cs {
				out = append(out, diag.Diagnostic{
					Code:     diag.CodeScopeFunctionShadowedByBuiltInFunction,
					Severity: diag.Warning,
					Message:  "function shadows a built-in function: " + c.Name,
					Range:    c.NameRange,
					File:     c.File.PkgPath,
				})
			}
		}
	}
	for path := range files {
		f := files[path]
		if f.References == nil {
			continue
		}
		for _, a := range f.References.AssignmentStatements {
			lname := lower(a.Name)
			if _, isFn := a.Value.(*ast.FunctionExpression); isFn && stdlibFunctionNames[lname] {
				out = append(out, diag.Diagnostic{
					Code:     diag.CodeLocalVarFunctionShadowsParentFunction,
					Severity: diag.Warning,
					Message:  "local variable shadows stdlib function 'stdlib': " + a.Name,
					Range:    a.NameRange,
					File:     path,
				})
				continue
			}
			if !stdlibFunctionNames[lname] {
				if _, ok := s.CallablesByLowerName[lname]; ok {
					out = append(out, diag.Diagnostic{
						Code:     diag.CodeLocalVarShadowedByScopedFunction,
						Severity: diag.Warning,
						Message:  "local variable shares a name with a scope function: " + a.Name,
						Range:    a.NameRange,
						File:     path,
					})
				}
			}
		}
	}
	return out
}

// namespacedClassCollisionDiagnostics implements spec §4.8: "A
// namespaced class whose simple name collides with a top-level class
// emits namespacedClassCannotShareNameWithNonNamespacedClass."
func (s *Scope) namespacedClassCollisionDiagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	var walkNS func(n *NamespaceNode)
	walkNS = func(n *NamespaceNode) {
		for lname, cls := range n.ClassesByLowerName {
			if _, ok := s.ClassesByLowerName[lname]; ok {
				out = append(out, diag.Diagnostic{
					Code:     diag.CodeNamespacedClassCannotShareNameWithNonNamespacedClass,
					Severity: diag.Error,
					Message:  "namespaced class cannot share a name with a non-namespaced class: " + cls.Name,
					Range:    cls.NameRange,
				})
			}
		}
		for _, c := range n.Children {
			walkNS(c)
		}
	}
	for _, c := range s.Root.Children {
		walkNS(c)
	}
	return out
}

// LookupCallable walks the ancestor chain starting at s, returning the
// first matching callable and the scope that declared it; a child
// scope's own callable always shadows an ancestor's (spec §4.8).
func (s *Scope) LookupCallable(lowerName string) (*source.Callable, *Scope, bool) {
	for scope := s; scope != nil; scope = scope.Parent {
		if cs, ok := scope.CallablesByLowerName[lowerName]; ok && len(cs) > 0 {
			return cs[0], scope, true
		}
	}
	return nil, nil, false
}

// ResolveClass implements spec §4.8's class resolution strategy for an
// unqualified reference from inside namespace namespaceContext (empty
// for top level): look in namespaceContext, then each ancestor prefix,
// then top level.
func (s *Scope) ResolveClass(namespaceContext, name string) (*ast.Class, bool) {
	lname := lower(name)
	parts := []string{}
	if namespaceContext != "" {
		parts = strings.Split(namespaceContext, ".")
	}
	for i := len(parts); i >= 0; i-- {
		node := s.Root
		ok := true
		for _, p := range parts[:i] {
			child, exists := node.Children[lower(p)]
			if !exists {
				ok = false
				break
			}
			node = child
		}
		if !ok {
			continue
		}
		if cls, found := node.ClassesByLowerName[lname]; found {
			return cls, true
		}
	}
	if cs, ok := s.ClassesByLowerName[lname]; ok && len(cs) > 0 {
		return cs[0], true
	}
	return nil, false
}

// ResolveQualifiedClass resolves a dotted class reference ("A.B.Name")
// by its literal namespace+name, per spec §4.8 ("Qualified references
// use their literal name").
func (s *Scope) ResolveQualifiedClass(parts []string) (*ast.Class, bool) {
	if len(parts) == 0 {
		return nil, false
	}
	name := parts[len(parts)-1]
	namespace := strings.Join(parts[:len(parts)-1], ".")
	node := s.Root
	for _, p := range parts[:len(parts)-1] {
		child, ok := node.Children[lower(p)]
		if !ok {
			return nil, false
		}
		node = child
	}
	_ = namespace
	cls, ok := node.ClassesByLowerName[lower(name)]
	return cls, ok
}

func lower(s string) string { return strings.ToLower(s) }

func sortedKeys(m map[string]*source.File) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStringKeys(m map[string][]*source.Callable) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
