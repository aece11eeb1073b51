package symboltable_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/symboltable"
	"github.com/scriptcore/bsc/token"
)

func TestGetSymbolTypeSingleEntry(t *testing.T) {
	tbl := symboltable.New()
	tbl.AddSymbol("x", token.Range{}, symboltable.Concrete("integer"))
	qt.Assert(t, qt.Equals(tbl.GetSymbolType("X", false, nil), symboltable.Type("integer")))
}

func TestGetSymbolTypeDisagreementIsDynamic(t *testing.T) {
	tbl := symboltable.New()
	tbl.AddSymbol("x", token.Range{}, symboltable.Concrete("integer"))
	tbl.AddSymbol("x", token.Range{}, symboltable.Concrete("string"))
	qt.Assert(t, qt.Equals(tbl.GetSymbolType("x", false, nil), symboltable.Dynamic))
}

func TestGetSymbolTypeAgreementAcrossEntries(t *testing.T) {
	tbl := symboltable.New()
	tbl.AddSymbol("x", token.Range{}, symboltable.Concrete("string"))
	tbl.AddSymbol("x", token.Range{}, symboltable.Concrete("string"))
	qt.Assert(t, qt.Equals(tbl.GetSymbolType("x", false, nil), symboltable.Type("string")))
}

func TestSearchParentChain(t *testing.T) {
	parent := symboltable.New()
	parent.AddSymbol("y", token.Range{}, symboltable.Concrete("dynamic"))
	child := symboltable.New()
	child.SetParent(parent)
	qt.Assert(t, qt.IsFalse(child.HasSymbol("y", false)))
	qt.Assert(t, qt.IsTrue(child.HasSymbol("y", true)))
}

func TestLazyCycleResolvesToDynamic(t *testing.T) {
	var a, b *symboltable.Lazy
	a = &symboltable.Lazy{Key: "a", Fn: func(ctx *symboltable.Context) symboltable.Type { return b.Resolve(ctx) }}
	b = &symboltable.Lazy{Key: "b", Fn: func(ctx *symboltable.Context) symboltable.Type { return a.Resolve(ctx) }}
	qt.Assert(t, qt.Equals(a.Resolve(symboltable.NewContext()), symboltable.Dynamic))
}

func TestMergeFrom(t *testing.T) {
	a := symboltable.New()
	a.AddSymbol("foo", token.Range{}, symboltable.Concrete("integer"))
	b := symboltable.New()
	b.AddSymbol("bar", token.Range{}, symboltable.Concrete("string"))
	a.MergeFrom(b)
	qt.Assert(t, qt.IsTrue(a.HasSymbol("bar", false)))
}
