package validate_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/scope"
	"github.com/scriptcore/bsc/source"
	"github.com/scriptcore/bsc/validate"
)

func parseFile(t *testing.T, path, src string) *source.File {
	t.Helper()
	return source.Parse(path, path, ".bs", []byte(src), preprocess.Manifest{}, parser.Extended)
}

func TestArgumentCountMismatchScenarioS3(t *testing.T) {
	f := parseFile(t, "main.bs", `sub a(age, name="Bob")
end sub
sub main()
  a()
end sub
`)
	s := scope.New("source", nil)
	s.AddOrReplaceFile(f)
	s.Build()
	diags := validate.Validate(s)

	var found bool
	for _, d := range diags {
		if d.Code == diag.CodeMismatchArgumentCount {
			found = true
			qt.Assert(t, qt.Equals(d.Message, "mismatchArgumentCount('1-2', 0)"))
		}
	}
	qt.Assert(t, qt.IsTrue(found))
}

func TestCallToUnknownFunction(t *testing.T) {
	f := parseFile(t, "main.bs", "sub main()\n  doesNotExist()\nend sub\n")
	s := scope.New("source", nil)
	s.AddOrReplaceFile(f)
	s.Build()
	diags := validate.Validate(s)

	var found bool
	for _, d := range diags {
		if d.Code == diag.CodeCallToUnknownFunction {
			found = true
		}
	}
	qt.Assert(t, qt.IsTrue(found))
}

func TestIdempotentValidation(t *testing.T) {
	f := parseFile(t, "main.bs", "sub a(x)\nend sub\nsub main()\n  a()\nend sub\n")
	s := scope.New("source", nil)
	s.AddOrReplaceFile(f)
	s.Build()
	first := validate.Validate(s)
	second := validate.Validate(s)
	qt.Assert(t, qt.DeepEquals(first, second))
}

func TestValidateProjectDuplicateComponentName(t *testing.T) {
	components := []*source.ComponentFile{
		{SrcPath: "a.xml", PkgPath: "components/a.xml", Name: "Widget"},
		{SrcPath: "b.xml", PkgPath: "components/b.xml", Name: "Widget"},
	}
	diags := validate.ValidateProject(validate.ProjectInputs{
		Components:  components,
		AllPkgPaths: map[string]bool{"components/a.xml": true, "components/b.xml": true},
	})
	var count int
	for _, d := range diags {
		if d.Code == diag.CodeDuplicateComponentName {
			count++
		}
	}
	qt.Assert(t, qt.Equals(count, 2))
}
