package transpile_test

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/rogpeppe/go-internal/txtar"

	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/source"
	"github.com/scriptcore/bsc/transpile"
)

// goldenCases mirrors the `-- name --` txtar convention the teacher uses
// for fixture-driven tests (e.g. mod/modcache's TestFetch registry
// contents), here holding one `in.bs`/`want.txt` pair per lowering
// scenario instead of a package tree.
const goldenCases = `
-- ternary-direct/in.bs --
sub main()
  x = condition ? 1 : 2
end sub
-- ternary-direct/want.txt --
bslib_ternary(condition, 1, 2)

-- ternary-scoped/in.bs --
sub main()
  x = condition ? getX() : y
end sub
-- ternary-scoped/want.txt --
bslib_ternaryScoped(condition, {"condition": condition, "y": y},

-- template-string/in.bs --
sub main()
  x = ` + "`hello ${name}`" + `
end sub
-- template-string/want.txt --
bslib_formatString(["hello ", name])
`

func TestGoldenLowerings(t *testing.T) {
	archive := txtar.Parse([]byte(goldenCases))
	cases := map[string]struct{ in, want string }{}
	for _, f := range archive.Files {
		dir, kind, ok := strings.Cut(f.Name, "/")
		if !ok {
			t.Fatalf("malformed fixture name %q", f.Name)
		}
		c := cases[dir]
		switch kind {
		case "in.bs":
			c.in = string(f.Data)
		case "want.txt":
			c.want = string(f.Data)
		}
		cases[dir] = c
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			f := source.Parse(name+".bs", name+".bs", ".bs", []byte(c.in), preprocess.Manifest{}, parser.Extended)
			res := transpile.Transpile(f, transpile.Options{})
			qt.Assert(t, qt.StringContains(res.Code, strings.TrimRight(c.want, "\n")))
		})
	}
}
