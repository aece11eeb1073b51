package scope_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/scope"
	"github.com/scriptcore/bsc/source"
)

func parseFile(t *testing.T, path, src string) *source.File {
	t.Helper()
	return source.Parse(path, path, ".bs", []byte(src), preprocess.Manifest{}, parser.Extended)
}

func TestDuplicateFunctionScenarioS1(t *testing.T) {
	f := parseFile(t, "main.bs", `function DoA()
end function
function DoA()
end function
`)
	s := scope.New("source", nil)
	s.AddOrReplaceFile(f)
	diags := s.Build()

	var dup int
	for _, d := range diags {
		if d.Code == diag.CodeDuplicateFunctionImplementation {
			dup++
		}
	}
	qt.Assert(t, qt.Equals(dup, 2))
}

func TestNamespacedDuplicateIsFineScenarioS2(t *testing.T) {
	f := parseFile(t, "main.bs", `namespace A
  sub alert()
  end sub
end namespace
namespace B
  sub alert()
  end sub
end namespace
`)
	s := scope.New("source", nil)
	s.AddOrReplaceFile(f)
	diags := s.Build()
	for _, d := range diags {
		qt.Assert(t, qt.Not(qt.Equals(d.Code, diag.CodeDuplicateFunctionImplementation)))
	}
}

func TestAncestorShadowEmitsInfo(t *testing.T) {
	parentFile := parseFile(t, "base.bs", "function init()\nend function\nfunction helper()\nend function\n")
	parent := scope.New("global-component", nil)
	parent.AddOrReplaceFile(parentFile)
	parent.Build()

	childFile := parseFile(t, "child.bs", "function helper()\nend function\n")
	child := scope.New("child-component", parent)
	child.AddOrReplaceFile(childFile)
	diags := child.Build()

	var found bool
	for _, d := range diags {
		if d.Code == diag.CodeOverridesAncestorFunction {
			found = true
		}
		qt.Assert(t, qt.Not(qt.Equals(d.Code, diag.CodeDuplicateFunctionImplementation)))
	}
	qt.Assert(t, qt.IsTrue(found))
}

func TestGetAllFilesMergesParent(t *testing.T) {
	parent := scope.New("p", nil)
	parent.AddOrReplaceFile(parseFile(t, "a.bs", "function a()\nend function\n"))
	child := scope.New("c", parent)
	child.AddOrReplaceFile(parseFile(t, "b.bs", "function b()\nend function\n"))

	all := child.GetAllFiles()
	qt.Assert(t, qt.HasLen(all, 2))
}
