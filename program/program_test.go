package program_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/program"
)

func TestAddFileThenValidateReportsDuplicateFunction(t *testing.T) {
	p := program.New(program.Options{RootDir: "/proj"})
	p.AddOrReplaceFile("global", "main.bs", "main.bs", ".bs",
		[]byte("function DoA()\nend function\nfunction DoA()\nend function\n"), parser.Extended)

	diags := p.Validate()
	var found bool
	for _, d := range diags {
		if d.Code == diag.CodeDuplicateFunctionImplementation {
			found = true
		}
	}
	qt.Assert(t, qt.IsTrue(found))
}

func TestTranspileLowersNamespaceFunctionCall(t *testing.T) {
	p := program.New(program.Options{RootDir: "/proj", SourceMap: true})
	p.AddOrReplaceFile("global", "main.bs", "main.bs", ".bs", []byte(`namespace NS
  sub Greet()
  end sub
end namespace
sub main()
  NS.Greet()
end sub
`), parser.Extended)

	results := p.Transpile([]string{"main.bs"})
	qt.Assert(t, qt.HasLen(results, 1))
	qt.Assert(t, qt.StringContains(results[0].Code, "NS_Greet"))
	qt.Assert(t, qt.StringContains(results[0].Code, "sourceMappingURL"))
}

func TestRemoveFileDropsItFromProgram(t *testing.T) {
	p := program.New(program.Options{RootDir: "/proj"})
	p.AddOrReplaceFile("global", "main.bs", "main.bs", ".bs", []byte("sub main()\nend sub\n"), parser.Extended)
	qt.Assert(t, qt.IsTrue(p.HasFile("main.bs")))
	p.RemoveFile("global", "main.bs")
	qt.Assert(t, qt.IsFalse(p.HasFile("main.bs")))
}

func TestGetDocumentSymbolsThroughProgram(t *testing.T) {
	p := program.New(program.Options{RootDir: "/proj"})
	p.AddOrReplaceFile("global", "main.bs", "main.bs", ".bs", []byte("function Greet()\nend function\n"), parser.Extended)
	syms := p.GetDocumentSymbols("main.bs")
	qt.Assert(t, qt.HasLen(syms, 1))
	qt.Assert(t, qt.Equals(syms[0].Name, "Greet"))
}
