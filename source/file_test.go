package source_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/source"
)

func TestParseCollectsCallablesAndCalls(t *testing.T) {
	f := source.Parse("main.brs", "source/main.brs", ".brs", []byte(`function main()
  DoWork(1, "x")
end function

function DoWork(a, b)
end function
`), preprocess.Manifest{}, parser.Classic)

	qt.Assert(t, qt.HasLen(f.Diagnostics, 0))
	qt.Assert(t, qt.HasLen(f.Callables, 2))
	qt.Assert(t, qt.HasLen(f.FunctionCalls, 1))
	qt.Assert(t, qt.Equals(f.FunctionCalls[0].CalleeName, "DoWork"))
	qt.Assert(t, qt.HasLen(f.FunctionCalls[0].Args, 2))
	qt.Assert(t, qt.Equals(f.FunctionCalls[0].Args[0].Type, "integer"))
}

func TestCommentFlagSuppressesNextLine(t *testing.T) {
	f := source.Parse("main.brs", "source/main.brs", ".brs", []byte("' bs:disable-next-line: 2000\nfoo()\n"), preprocess.Manifest{}, parser.Classic)
	qt.Assert(t, qt.HasLen(f.CommentFlags, 1))
	qt.Assert(t, qt.IsFalse(f.CommentFlags[0].DisableAll))
}

func TestScriptImportsCollected(t *testing.T) {
	f := source.Parse("main.bs", "source/main.bs", ".bs", []byte("import \"pkg:/util.bs\"\n"), preprocess.Manifest{}, parser.Extended)
	qt.Assert(t, qt.HasLen(f.OwnScriptImports, 1))
	qt.Assert(t, qt.Equals(f.OwnScriptImports[0], "pkg:/util.bs"))
}
