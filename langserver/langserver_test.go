package langserver_test

import (
	"testing"

	"github.com/go-quicktest/qt"
	"go.lsp.dev/protocol"

	"github.com/scriptcore/bsc/langserver"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/scope"
	"github.com/scriptcore/bsc/source"
)

type fakeHost struct {
	scopes map[string][]*scope.Scope
	files  map[string]*source.File
}

func (h *fakeHost) ScopesForFile(pkgPath string) []*scope.Scope { return h.scopes[pkgPath] }
func (h *fakeHost) FileByPkgPath(pkgPath string) (*source.File, bool) {
	f, ok := h.files[pkgPath]
	return f, ok
}

func TestGetDocumentSymbolsListsFunctions(t *testing.T) {
	f := source.Parse("main.bs", "main.bs", ".bs", []byte("function Greet()\nend function\n"), preprocess.Manifest{}, parser.Extended)
	host := &fakeHost{files: map[string]*source.File{"main.bs": f}}
	s := langserver.New(host)

	syms := s.GetDocumentSymbols("main.bs")
	qt.Assert(t, qt.HasLen(syms, 1))
	qt.Assert(t, qt.Equals(syms[0].Name, "Greet"))
	qt.Assert(t, qt.Equals(syms[0].Kind, protocol.SymbolKindFunction))
}

func TestGetCompletionsIncludesCallablesAndKeywords(t *testing.T) {
	f := source.Parse("main.bs", "main.bs", ".bs", []byte("function Greet()\nend function\n"), preprocess.Manifest{}, parser.Extended)
	sc := scope.New("source", nil)
	sc.AddOrReplaceFile(f)
	sc.Build()

	host := &fakeHost{
		files:  map[string]*source.File{"main.bs": f},
		scopes: map[string][]*scope.Scope{"main.bs": {sc}},
	}
	s := langserver.New(host)
	items := s.GetCompletions("main.bs", protocol.Position{})

	var found bool
	for _, item := range items {
		if item.Label == "Greet" {
			found = true
		}
	}
	qt.Assert(t, qt.IsTrue(found))
}
