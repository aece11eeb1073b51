package lexer_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/lexer"
	"github.com/scriptcore/bsc/token"
)

func kinds(toks []lexer.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanIdentifierWithTypeDesignator(t *testing.T) {
	toks := lexer.New([]byte("name$ = 1"), lexer.Options{}).Scan()
	qt.Assert(t, qt.Equals(toks[0].Text, "name$"))
	qt.Assert(t, qt.Equals(toks[0].Kind, token.Identifier))
}

func TestScanMultiWordEndFunction(t *testing.T) {
	toks := lexer.New([]byte("end   function"), lexer.Options{}).Scan()
	qt.Assert(t, qt.Equals(toks[0].Kind, token.KwEndFunction))
}

func TestScanCaseInsensitiveReservedWord(t *testing.T) {
	for _, src := range []string{"if", "IF", "If", "iF"} {
		toks := lexer.New([]byte(src), lexer.Options{}).Scan()
		qt.Assert(t, qt.Equals(toks[0].Kind, token.KwIf))
	}
}

func TestScanHexLongLiteral(t *testing.T) {
	toks := lexer.New([]byte("&hFF&"), lexer.Options{}).Scan()
	qt.Assert(t, qt.Equals(toks[0].Kind, token.LongLiteral))
	qt.Assert(t, qt.Equals(toks[0].Text, "&hFF&"))
}

func TestScanUnterminatedStringProducesDiagnosticAndRecovers(t *testing.T) {
	l := lexer.New([]byte("a = \"oops\nb = 1"), lexer.Options{})
	toks := l.Scan()
	qt.Assert(t, qt.HasLen(l.Diagnostics(), 1))
	// Lexing continues after the broken string: "b" is still tokenized.
	qt.Assert(t, qt.Equals(toks[len(toks)-2].Text, "1"))
}

func TestScanLineContinuationAbsorbsNewline(t *testing.T) {
	toks := lexer.New([]byte("a = 1 + _\n2"), lexer.Options{}).Scan()
	for _, tk := range toks {
		qt.Assert(t, qt.Not(qt.Equals(tk.Kind, token.Newline)))
	}
}

func TestScanTemplateStringPreservesNewlines(t *testing.T) {
	toks := lexer.New([]byte("`a\nb${x}c`"), lexer.Options{}).Scan()
	qt.Assert(t, qt.Equals(toks[0].Kind, token.TemplateStringQuasi))
	qt.Assert(t, qt.Equals(toks[0].Text, "a\nb${x}c"))
}

func TestScanAlwaysTerminatesWithEOF(t *testing.T) {
	toks := lexer.New([]byte("x = 1"), lexer.Options{}).Scan()
	qt.Assert(t, qt.Equals(toks[len(toks)-1].Kind, token.EOF))
}
