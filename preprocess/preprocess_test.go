package preprocess_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/lexer"
	"github.com/scriptcore/bsc/preprocess"
	"github.com/scriptcore/bsc/token"
)

func scan(src string) []lexer.Token {
	return lexer.New([]byte(src), lexer.Options{}).Scan()
}

func texts(toks []lexer.Token) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.Newline || t.Kind == token.EOF {
			continue
		}
		out = append(out, t.Text)
	}
	return out
}

func TestConstBindingGatesIf(t *testing.T) {
	src := "#const DEBUG = true\n#if DEBUG\nkeep = 1\n#end if\n"
	out, diags := preprocess.Process(scan(src), preprocess.Manifest{})
	qt.Assert(t, qt.HasLen(diags, 0))
	qt.Assert(t, qt.Contains(texts(out), "keep"))
}

func TestFalseBranchTokensDropped(t *testing.T) {
	src := "#const DEBUG = false\n#if DEBUG\ndrop = 1\n#end if\nkeep = 2\n"
	out, _ := preprocess.Process(scan(src), preprocess.Manifest{})
	all := texts(out)
	qt.Assert(t, qt.Contains(all, "keep"))
	for _, tx := range all {
		qt.Assert(t, qt.Not(qt.Equals(tx, "drop")))
	}
}

func TestManifestKeyDrivesIf(t *testing.T) {
	src := "#if roku\nkeep = 1\n#else\ndrop = 1\n#end if\n"
	out, _ := preprocess.Process(scan(src), preprocess.Manifest{"roku": "true"})
	all := texts(out)
	qt.Assert(t, qt.Contains(all, "keep"))
	for _, tx := range all {
		qt.Assert(t, qt.Not(qt.Equals(tx, "drop")))
	}
}

func TestReservedWordConstNameIsDiagnostic(t *testing.T) {
	src := "#const if = true\n"
	_, diags := preprocess.Process(scan(src), preprocess.Manifest{})
	qt.Assert(t, qt.HasLen(diags, 1))
}
