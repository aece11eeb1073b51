// Package validate implements the diagnostic rule set of spec §4.9
// (component C9), run over an already-built scope (see package scope)
// plus the project-wide component/file-reference rules that need the
// whole file set rather than a single scope. It is grounded on
// cue/errors' "one pass produces a flat diagnostic list" shape and on
// cue/build's file-existence/import checks (an Instance's
// BuildFiles/Imports resolution is the closest analogue to this
// module's component-import validation), generalized from CUE's
// single-pass config evaluation to this spec's scope-then-project
// two-level validation.
package validate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/scope"
	"github.com/scriptcore/bsc/source"
	"github.com/scriptcore/bsc/token"
)

// Validate runs every scope-level check of spec §4.9 over s, which must
// already have had Build() called. Running Validate twice without
// intervening file changes produces an identical diagnostic list (spec
// §4.9, §8 property 3), since every rule here is a pure function of
// s's already-built maps.
func Validate(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	out = append(out, callUnknownFunctionDiagnostics(s)...)
	out = append(out, argumentCountDiagnostics(s)...)
	out = append(out, duplicateClassDiagnostics(s)...)
	out = append(out, classCouldNotBeFoundDiagnostics(s)...)
	out = append(out, constructorSuperCallDiagnostics(s)...)
	out = append(out, overrideKeywordDiagnostics(s)...)
	out = append(out, memberDiagnostics(s)...)

	diag.Sort(out)
	return out
}

func callUnknownFunctionDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	for path, f := range s.GetAllFiles() {
		for _, call := range f.FunctionCalls {
			lname := strings.ToLower(call.CalleeName)
			if _, _, ok := s.LookupCallable(lname); ok {
				continue
			}
			if lname == "super" || lname == "m" {
				continue
			}
			out = append(out, diag.Diagnostic{
				Code:     diag.CodeCallToUnknownFunction,
				Severity: diag.Error,
				Message:  "call to unknown function: " + call.CalleeName,
				Range:    call.NameRange,
				File:     path,
			})
		}
	}
	return out
}

// argumentCountDiagnostics implements §8 scenario S3: arg count outside
// [min,max] produces mismatchArgumentCount('min-max', got), where max is
// omitted (range collapses to a single number) when min==max, and is
// unbounded (no upper check) when a rest parameter is present.
func argumentCountDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	for path, f := range s.GetAllFiles() {
		for _, call := range f.FunctionCalls {
			lname := strings.ToLower(call.CalleeName)
			callable, _, ok := s.LookupCallable(lname)
			if !ok {
				continue
			}
			min, max, unbounded := paramRange(callable.Params)
			got := len(call.Args)
			if got < min || (!unbounded && got > max) {
				out = append(out, diag.Diagnostic{
					Code:     diag.CodeMismatchArgumentCount,
					Severity: diag.Error,
					Message:  "mismatchArgumentCount('" + rangeLabel(min, max, unbounded) + "', " + strconv.Itoa(got) + ")",
					Range:    call.NameRange,
					File:     path,
				})
			}
		}
	}
	return out
}

func paramRange(params []*ast.FunctionParameter) (min, max int, unbounded bool) {
	for _, p := range params {
		if p.IsRestArgument {
			unbounded = true
			continue
		}
		max++
		if !p.IsOptional {
			min++
		}
	}
	return min, max, unbounded
}

func rangeLabel(min, max int, unbounded bool) string {
	if unbounded {
		return strconv.Itoa(min) + "+"
	}
	if min == max {
		return strconv.Itoa(min)
	}
	return strconv.Itoa(min) + "-" + strconv.Itoa(max)
}

func duplicateClassDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	keys := make([]string, 0, len(s.ClassesByLowerName))
	for k := range s.ClassesByLowerName {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		classes := s.ClassesByLowerName[k]
		if len(classes) < 2 {
			continue
		}
		for _, c := range classes {
			out = append(out, diag.Diagnostic{
				Code:     diag.CodeDuplicateClassDeclaration,
				Severity: diag.Error,
				Message:  "duplicate class declaration: " + c.Name,
				Range:    c.NameRange,
			})
		}
	}
	return out
}

func classCouldNotBeFoundDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, classes := range s.ClassesByLowerName {
		for _, c := range classes {
			if len(c.Extends) == 0 {
				continue
			}
			if _, ok := resolveClassRef(s, c.Namespace, c.Extends); !ok {
				out = append(out, diag.Diagnostic{
					Code:     diag.CodeClassCouldNotBeFound,
					Severity: diag.Error,
					Message:  "class could not be found: " + strings.Join(c.Extends, "."),
					Range:    c.NameRange,
				})
			}
		}
	}
	return out
}

func resolveClassRef(s *scope.Scope, namespaceContext string, parts []string) (*ast.Class, bool) {
	if len(parts) > 1 {
		if cls, ok := s.ResolveQualifiedClass(parts); ok {
			return cls, true
		}
	}
	return s.ResolveClass(namespaceContext, parts[len(parts)-1])
}

// constructorSuperCallDiagnostics implements: a child class whose
// resolved parent declares a "new" constructor must call super(...)
// somewhere in its own "new" method body.
func constructorSuperCallDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, classes := range s.ClassesByLowerName {
		for _, c := range classes {
			if len(c.Extends) == 0 {
				continue
			}
			parent, ok := resolveClassRef(s, c.Namespace, c.Extends)
			if !ok || findMethod(parent, "new") == nil {
				continue
			}
			child := findMethod(c, "new")
			if child == nil || child.Func == nil || child.Func.Body == nil {
				continue
			}
			if !bodyCallsSuper(child.Func.Body) {
				out = append(out, diag.Diagnostic{
					Code:     diag.CodeClassConstructorMissingSuperCall,
					Severity: diag.Error,
					Message:  "constructor must call super(): " + c.Name,
					Range:    child.NameRange,
				})
			}
		}
	}
	return out
}

func findMethod(c *ast.Class, lowerName string) *ast.ClassMethod {
	for _, m := range c.Methods {
		if strings.ToLower(m.Name) == lowerName {
			return m
		}
	}
	return nil
}

func bodyCallsSuper(b *ast.Body) bool {
	found := false
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		if n == nil || found {
			return
		}
		if call, ok := n.(*ast.Call); ok {
			if v, ok := call.Callee.(*ast.Variable); ok && strings.EqualFold(v.Name, "super") {
				found = true
				return
			}
		}
		n.Walk(ast.VisitorFunc(func(child ast.Node) (ast.Node, bool) {
			walk(child)
			return nil, false
		}), ast.WalkOptions{Mode: ast.WalkStatements | ast.VisitStatements | ast.WalkExpressions | ast.VisitExpressions})
	}
	for _, stmt := range b.Statements {
		walk(stmt)
	}
	return found
}

// overrideKeywordDiagnostics implements spec §4.9's override-keyword
// policy, exempting "init" (spec §9 design note).
func overrideKeywordDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, classes := range s.ClassesByLowerName {
		for _, c := range classes {
			var parent *ast.Class
			if len(c.Extends) > 0 {
				parent, _ = resolveClassRef(s, c.Namespace, c.Extends)
			}
			for _, m := range c.Methods {
				if scope.ExemptLifecycleNames[strings.ToLower(m.Name)] {
					continue
				}
				var parentHas bool
				if parent != nil {
					parentHas = findMethod(parent, strings.ToLower(m.Name)) != nil
				}
				switch {
				case parentHas && !m.IsOverride:
					out = append(out, diag.Diagnostic{
						Code: diag.CodeMissingOverrideKeyword, Severity: diag.Error,
						Message: "missing override keyword: " + m.Name, Range: m.NameRange,
					})
				case !parentHas && m.IsOverride:
					out = append(out, diag.Diagnostic{
						Code: diag.CodeOverrideOnNonOverriddenMethod, Severity: diag.Error,
						Message: "override on a method with no ancestor to override: " + m.Name, Range: m.NameRange,
					})
				}
			}
		}
	}
	return out
}

// memberDiagnostics implements the duplicate-member and
// member-kind-mismatch rules.
func memberDiagnostics(s *scope.Scope) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, classes := range s.ClassesByLowerName {
		for _, c := range classes {
			seen := map[string]token.Range{}
			for _, f := range c.Fields {
				l := strings.ToLower(f.Name)
				if _, dup := seen[l]; dup {
					out = append(out, diag.Diagnostic{Code: diag.CodeDuplicateMemberName, Severity: diag.Error,
						Message: "duplicate member name: " + f.Name, Range: f.NameRange})
				}
				seen[l] = f.NameRange
			}
			for _, m := range c.Methods {
				l := strings.ToLower(m.Name)
				if _, dup := seen[l]; dup {
					out = append(out, diag.Diagnostic{Code: diag.CodeDuplicateMemberName, Severity: diag.Error,
						Message: "duplicate member name: " + m.Name, Range: m.NameRange})
				}
				seen[l] = m.NameRange
			}

			if len(c.Extends) == 0 {
				continue
			}
			parent, ok := resolveClassRef(s, c.Namespace, c.Extends)
			if !ok {
				continue
			}
			parentFields := map[string]bool{}
			for _, f := range parent.Fields {
				parentFields[strings.ToLower(f.Name)] = true
			}
			parentMethods := map[string]bool{}
			for _, m := range parent.Methods {
				parentMethods[strings.ToLower(m.Name)] = true
			}
			for _, f := range c.Fields {
				if parentMethods[strings.ToLower(f.Name)] {
					out = append(out, diag.Diagnostic{Code: diag.CodeClassChildMemberDifferentMemberTypeThanAncestor,
						Severity: diag.Error, Message: "field redeclares ancestor method: " + f.Name, Range: f.NameRange})
				}
			}
			for _, m := range c.Methods {
				if parentFields[strings.ToLower(m.Name)] {
					out = append(out, diag.Diagnostic{Code: diag.CodeClassChildMemberDifferentMemberTypeThanAncestor,
						Severity: diag.Error, Message: "method redeclares ancestor field: " + m.Name, Range: m.NameRange})
				}
			}
		}
	}
	return out
}

// ProjectInputs bundles the project-wide state the component/file
// reference rules need, independent of any single scope.
type ProjectInputs struct {
	Components []*source.ComponentFile
	// AllPkgPaths is every known file's pkgPath (source files and
	// component code-behind files alike), used for existence checks.
	AllPkgPaths map[string]bool
	// The set of referenced pkgPaths is not an input: ValidateProject
	// computes it from the components' script imports.
}

// ValidateProject implements spec §4.9's project-wide rules: duplicate
// component names, unnecessary script import, script import case
// mismatch, file not referenced, referenced file does not exist.
func ValidateProject(in ProjectInputs) []diag.Diagnostic {
	var out []diag.Diagnostic
	byName := map[string][]*source.ComponentFile{}
	byNameExact := map[string]*source.ComponentFile{}
	for _, c := range in.Components {
		byName[strings.ToLower(c.Name)] = append(byName[strings.ToLower(c.Name)], c)
		byNameExact[c.Name] = c
	}
	for _, cs := range byName {
		if len(cs) < 2 {
			continue
		}
		for _, c := range cs {
			out = append(out, diag.Diagnostic{Code: diag.CodeDuplicateComponentName, Severity: diag.Error,
				Message: "duplicate component name: " + c.Name, File: c.PkgPath, Range: token.WholeFileRange()})
		}
	}

	referenced := map[string]bool{}
	lowerToActual := map[string]string{}
	for p := range in.AllPkgPaths {
		lowerToActual[strings.ToLower(p)] = p
	}

	for _, c := range in.Components {
		ancestorImports := map[string]bool{}
		if c.ParentName != "" {
			if parent, ok := byNameExact[c.ParentName]; ok {
				for _, imp := range parent.Imports {
					ancestorImports[strings.ToLower(imp)] = true
				}
			}
		}
		for _, imp := range c.Imports {
			actual, exists := lowerToActual[strings.ToLower(imp)]
			if !exists {
				out = append(out, diag.Diagnostic{Code: diag.CodeReferencedFileDoesNotExist, Severity: diag.Error,
					Message: "referenced file does not exist: " + imp, File: c.PkgPath, Range: token.WholeFileRange()})
				continue
			}
			referenced[actual] = true
			if actual != imp {
				out = append(out, diag.Diagnostic{Code: diag.CodeScriptImportCaseMismatch, Severity: diag.Warning,
					Message: "script import case does not match file on disk: " + imp, File: c.PkgPath, Range: token.WholeFileRange()})
			}
			if ancestorImports[strings.ToLower(imp)] {
				out = append(out, diag.Diagnostic{Code: diag.CodeUnnecessaryScriptImport, Severity: diag.Warning,
					Message: "script import already provided by an ancestor component: " + imp, File: c.PkgPath, Range: token.WholeFileRange()})
			}
		}
	}

	pkgs := make([]string, 0, len(in.AllPkgPaths))
	for p := range in.AllPkgPaths {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)
	for _, p := range pkgs {
		if !referenced[p] {
			out = append(out, diag.Diagnostic{Code: diag.CodeFileNotReferenced, Severity: diag.Warning,
				Message: "file not referenced by any other file: " + p, File: p, Range: token.WholeFileRange()})
		}
	}

	diag.Sort(out)
	return out
}
