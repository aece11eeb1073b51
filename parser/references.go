package parser

import "github.com/scriptcore/bsc/ast"

// References is the by-product index built during parsing, per spec
// §4.3 ("References index").
type References struct {
	FunctionStatements  []*ast.FunctionStatement
	FunctionExpressions []*ast.FunctionExpression
	ClassStatements     []*ast.Class
	NamespaceStatements []*ast.Namespace
	ImportStatements    []*ast.Import
	LibraryStatements   []*ast.Library
	AssignmentStatements []*ast.Assignment

	// PropertyHints is every identifier observed as a property access
	// (the Field of a DottedGet/DottedSet), used for completion.
	PropertyHints []string

	// LocalVars maps an enclosing function expression/statement pointer
	// (as an opaque key) to the variable names assigned within it.
	LocalVars map[ast.Node][]string
}

func newReferences() *References {
	return &References{LocalVars: map[ast.Node][]string{}}
}
