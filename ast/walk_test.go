package ast_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/token"
)

func TestWalkReplacesChildWithoutRevisiting(t *testing.T) {
	original := &ast.Variable{Name: "a"}
	replacement := &ast.Variable{Name: "b"}
	assign := &ast.Assignment{Name: "x", Value: original}

	visits := 0
	v := ast.VisitorFunc(func(n ast.Node) (ast.Node, bool) {
		visits++
		if va, ok := n.(*ast.Variable); ok && va.Name == "a" {
			return replacement, true
		}
		return nil, true
	})

	ast.Walk(assign, v, ast.WalkOptions{Mode: ast.AllWalkModes})

	qt.Assert(t, qt.Equals(assign.Value.(*ast.Variable).Name, "b"))
	// assign itself + original "a" visited, but "b" must not be re-visited.
	qt.Assert(t, qt.Equals(visits, 2))
}

type cancelAfter struct{ n, seen int }

func (c *cancelAfter) Cancelled() bool {
	c.seen++
	return c.seen > c.n
}

func TestWalkRespectsCancellationToken(t *testing.T) {
	body := ast.NewBody(token.Range{}, []ast.Statement{
		&ast.ExitFor{}, &ast.ExitWhile{}, &ast.Continue{},
	})
	visited := 0
	v := ast.VisitorFunc(func(n ast.Node) (ast.Node, bool) {
		visited++
		return nil, true
	})
	cancel := &cancelAfter{n: 1}
	ast.Walk(body, v, ast.WalkOptions{Mode: ast.AllWalkModes, Cancel: cancel})
	qt.Assert(t, qt.Equals(visited, 1))
}

func TestWalkModeBitmaskIsIndependent(t *testing.T) {
	body := ast.NewBody(token.Range{}, []ast.Statement{&ast.ExitFor{}})
	var sawStatement bool
	v := ast.VisitorFunc(func(n ast.Node) (ast.Node, bool) {
		if n.Kind() == ast.KindExitFor {
			sawStatement = true
		}
		return nil, true
	})
	// WalkStatements without VisitStatements descends but never offers
	// children to the visitor (spec §9's "walk" / "visit" independence).
	ast.Walk(body, v, ast.WalkOptions{Mode: ast.WalkStatements})
	qt.Assert(t, qt.IsFalse(sawStatement))
}
