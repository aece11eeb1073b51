// Package lexer turns source bytes into a token stream, per spec §4.1
// (component C1). It is grounded on cue/scanner's hand-written
// character-class scanner, generalized to this language's type-designator
// suffixes, multi-word reserved tokens and template-string fragments.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/token"
)

// Token is a single lexical unit, per spec §3.
type Token struct {
	Kind          token.Kind
	Text          string
	Range         token.Range
	LeadingTrivia string
}

// Options configures a Lexer, per spec §4.1.
type Options struct {
	IncludeWhitespace bool
}

// Lexer scans a byte slice into Tokens. It is not safe for concurrent use,
// mirroring cue/scanner.Scanner.
type Lexer struct {
	src  []byte
	opt  Options
	offs int
	line int
	col  int

	ch      rune
	chWidth int
	atEOF   bool
	diags   []diag.Diagnostic
}

// New creates a Lexer over src.
func New(src []byte, opt Options) *Lexer {
	l := &Lexer{src: src, opt: opt, line: 0, col: 0}
	l.next()
	return l
}

// Diagnostics returns the diagnostics accumulated during Scan.
func (l *Lexer) Diagnostics() []diag.Diagnostic { return l.diags }

func (l *Lexer) errorf(r token.Range, code diag.Code, format string, args ...any) {
	l.diags = append(l.diags, diag.Diagnostic{
		Code:     code,
		Severity: diag.Error,
		Message:  sprintf(format, args...),
		Range:    r,
	})
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// next advances l.ch to the next rune, tracking line/column. A newline
// resets column to 0 and increments line, matching the zero-based ranges
// spec §3 requires.
func (l *Lexer) next() {
	if l.offs >= len(l.src) {
		l.ch = -1
		l.atEOF = true
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else if l.chWidth > 0 {
		l.col++
	}
	r, w := utf8.DecodeRune(l.src[l.offs:])
	l.ch = r
	l.chWidth = w
	l.offs += w
}

func (l *Lexer) pos() token.Position { return token.Position{Line: l.line, Column: l.col} }

func (l *Lexer) peekByte() byte {
	if l.offs >= len(l.src) {
		return 0
	}
	return l.src[l.offs]
}

// Scan tokenizes the whole source, always appending a trailing EOF token,
// per spec §4.1 ("Output: token list (always terminated by EOF)").
func (l *Lexer) Scan() []Token {
	var toks []Token
	for {
		t := l.scanOne()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) scanOne() Token {
	var trivia strings.Builder
	for {
		l.skipBlanks(&trivia)
		if l.ch == '\'' {
			start := l.pos()
			text := l.scanLineComment()
			return Token{Kind: token.Comment, Text: text, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia.String()}
		}
		break
	}

	start := l.pos()
	if l.atEOF {
		return Token{Kind: token.EOF, Range: token.Range{Start: start, End: start}, LeadingTrivia: trivia.String()}
	}

	switch {
	case l.ch == '\n':
		l.next()
		return Token{Kind: token.Newline, Text: "\n", Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia.String()}
	case l.ch == '_' && l.isLineContinuation():
		// Absorbed: a newline immediately after '_' does not produce a
		// token at all (spec §4.1 "Line continuation").
		l.next() // consume '_'
		l.skipBlanks(nil)
		if l.ch == '\n' {
			l.next()
		}
		return l.scanOne()
	case l.ch == '"':
		return l.scanString(start, trivia.String())
	case l.ch == '`':
		return l.scanTemplateOpen(start, trivia.String())
	case isIdentStart(l.ch):
		return l.scanIdentOrKeyword(start, trivia.String())
	case l.ch == '&':
		return l.scanAmpersandNumber(start, trivia.String())
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekRune())):
		return l.scanNumber(start, trivia.String())
	default:
		return l.scanPunct(start, trivia.String())
	}
}

func (l *Lexer) peekRune() rune {
	if l.offs >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRune(l.src[l.offs:])
	return r
}

func (l *Lexer) isLineContinuation() bool {
	save := l.offs
	saveCh, saveW := l.ch, l.chWidth
	l.next()
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.next()
	}
	isCont := l.ch == '\n'
	l.offs, l.ch, l.chWidth = save, saveCh, saveW
	return isCont
}

func (l *Lexer) skipBlanks(trivia *strings.Builder) {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		if trivia != nil {
			trivia.WriteRune(l.ch)
		}
		l.next()
	}
}

func (l *Lexer) scanLineComment() string {
	var sb strings.Builder
	for l.ch != '\n' && !l.atEOF {
		sb.WriteRune(l.ch)
		l.next()
	}
	return sb.String()
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// multiWordSecond maps a first reserved word to the set of second words
// that fuse into one token, per spec §4.1 ("Multi-word tokens").
var multiWordSecond = map[string]map[string]token.Kind{
	"end": {
		"if": token.KwEndIf, "for": token.KwEndFor, "while": token.KwEndWhile,
		"function": token.KwEndFunction, "sub": token.KwEndSub,
		"class": token.KwEndClass, "namespace": token.KwEndNamespace,
		"try": token.KwEndTry,
	},
	"else": {"if": token.KwElseIf},
	"exit": {"for": token.KwExitFor, "while": token.KwExitWhile},
}

func (l *Lexer) scanIdentOrKeyword(start token.Position, trivia string) Token {
	var sb strings.Builder
	for isIdentPart(l.ch) {
		sb.WriteRune(l.ch)
		l.next()
	}
	// A single trailing type-designator suffix is part of the identifier
	// text itself (spec §4.1).
	switch l.ch {
	case '$', '%', '!', '#', '&':
		sb.WriteRune(l.ch)
		l.next()
	}
	text := sb.String()
	lower := strings.ToLower(text)

	if seconds, ok := multiWordSecond[lower]; ok {
		if k, tok2, ok2 := l.tryMultiWord(seconds); ok2 {
			return Token{Kind: k, Text: text + " " + tok2, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
		}
	}

	if k, ok := token.LookupReserved(lower); ok {
		return Token{Kind: k, Text: text, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
	}
	return Token{Kind: token.Identifier, Text: text, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
}

// tryMultiWord looks ahead past arbitrary whitespace for a second reserved
// word fusing with the first, per spec §4.1 ("tolerates arbitrary
// whitespace between the words"). It only consumes input on success.
func (l *Lexer) tryMultiWord(seconds map[string]token.Kind) (token.Kind, string, bool) {
	save := l.offs
	saveCh, saveW, saveLine, saveCol := l.ch, l.chWidth, l.line, l.col

	for l.ch == ' ' || l.ch == '\t' {
		l.next()
	}
	var sb strings.Builder
	for isIdentPart(l.ch) {
		sb.WriteRune(l.ch)
		l.next()
	}
	lower := strings.ToLower(sb.String())
	if k, ok := seconds[lower]; ok {
		return k, sb.String(), true
	}
	l.offs, l.ch, l.chWidth, l.line, l.col = save, saveCh, saveW, saveLine, saveCol
	return 0, "", false
}

func (l *Lexer) scanAmpersandNumber(start token.Position, trivia string) Token {
	// &h[hex]+ optionally followed by a trailing '&' marking it long.
	save := l.offs
	saveCh, saveW := l.ch, l.chWidth
	l.next() // consume '&'
	if l.ch == 'h' || l.ch == 'H' {
		l.next()
		var sb strings.Builder
		for isHexDigit(l.ch) {
			sb.WriteRune(l.ch)
			l.next()
		}
		if sb.Len() == 0 {
			l.errorf(token.Range{Start: start, End: l.pos()}, diag.CodeInvalidNumericLiteral, "invalid hex literal")
			return Token{Kind: token.Illegal, Text: "&h", Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
		}
		kind := token.IntLiteral
		text := "&h" + sb.String()
		if l.ch == '&' {
			text += "&"
			l.next()
			kind = token.LongLiteral
		}
		return Token{Kind: kind, Text: text, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
	}
	l.offs, l.ch, l.chWidth = save, saveCh, saveW
	return l.scanPunct(start, trivia)
}

func (l *Lexer) scanNumber(start token.Position, trivia string) Token {
	var sb strings.Builder
	for isDigit(l.ch) {
		sb.WriteRune(l.ch)
		l.next()
	}
	kind := token.IntLiteral
	isFloatish := false
	if l.ch == '.' {
		isFloatish = true
		sb.WriteRune(l.ch)
		l.next()
		for isDigit(l.ch) {
			sb.WriteRune(l.ch)
			l.next()
		}
		// Trailing dot with no fractional digits is permitted (spec §4.1).
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := l.offs
		saveCh, saveW := l.ch, l.chWidth
		tail := string(l.ch)
		l.next()
		if l.ch == '+' || l.ch == '-' {
			tail += string(l.ch)
			l.next()
		}
		if isDigit(l.ch) {
			isFloatish = true
			sb.WriteString(tail)
			for isDigit(l.ch) {
				sb.WriteRune(l.ch)
				l.next()
			}
		} else {
			l.offs, l.ch, l.chWidth = save, saveCh, saveW
		}
	}
	switch l.ch {
	case 'D', 'd':
		sb.WriteRune(l.ch)
		l.next()
		kind = token.DoubleLiteral
	case '!':
		sb.WriteRune(l.ch)
		l.next()
		kind = token.FloatLiteral
	case '#':
		sb.WriteRune(l.ch)
		l.next()
		kind = token.DoubleLiteral
	case '&':
		sb.WriteRune(l.ch)
		l.next()
		kind = token.LongLiteral
	case '%':
		sb.WriteRune(l.ch)
		l.next()
		kind = token.IntLiteral
	default:
		if isFloatish {
			kind = token.FloatLiteral
		}
	}
	return Token{Kind: kind, Text: sb.String(), Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
}

func (l *Lexer) scanString(start token.Position, trivia string) Token {
	l.next() // opening quote
	var sb strings.Builder
	sb.WriteByte('"')
	for {
		if l.atEOF || l.ch == '\n' {
			l.errorf(token.Range{Start: start, End: l.pos()}, diag.CodeUnterminatedString, "unterminated string literal")
			return Token{Kind: token.StringLiteral, Text: sb.String(), Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
		}
		if l.ch == '"' {
			if l.peekRune() == '"' {
				sb.WriteString(`""`)
				l.next()
				l.next()
				continue
			}
			sb.WriteByte('"')
			l.next()
			return Token{Kind: token.StringLiteral, Text: sb.String(), Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
		}
		sb.WriteRune(l.ch)
		l.next()
	}
}

// scanTemplateOpen scans a backtick-delimited template string into a
// single TemplateStringQuasi token containing the raw (unparsed) body; the
// parser is responsible for splitting ${...} interpolations out of the
// text, since only it can recursively lex expression fragments (spec
// §4.1/§4.3).
func (l *Lexer) scanTemplateOpen(start token.Position, trivia string) Token {
	l.next() // opening backtick
	var sb strings.Builder
	depth := 0
	for {
		if l.atEOF {
			l.errorf(token.Range{Start: start, End: l.pos()}, diag.CodeUnterminatedString, "unterminated template string")
			break
		}
		if l.ch == '`' && depth == 0 {
			l.next()
			break
		}
		if l.ch == '$' && l.peekRune() == '{' {
			depth++
		}
		if l.ch == '}' && depth > 0 {
			depth--
		}
		sb.WriteRune(l.ch) // newlines inside template strings are preserved
		l.next()
	}
	return Token{Kind: token.TemplateStringQuasi, Text: sb.String(), Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
}

var punctTable = []struct {
	text string
	kind token.Kind
}{
	{"<<=", token.LShiftEqual}, {">>=", token.RShiftEqual},
	{"<<", token.LShift}, {">>", token.RShift},
	{"<=", token.LessEqual}, {">=", token.GreaterEqual},
	{"<>", token.NotEqual}, {"==", token.EqualEqual},
	{"+=", token.PlusEqual}, {"-=", token.MinusEqual},
	{"*=", token.StarEqual}, {"/=", token.SlashEqual},
	{"\\=", token.BackslashEqual},
	{"++", token.PlusPlus}, {"--", token.MinusMinus},
	{"@.", token.At},
	{"(", token.LParen}, {")", token.RParen},
	{"{", token.LBrace}, {"}", token.RBrace},
	{"[", token.LBracket}, {"]", token.RBracket},
	{",", token.Comma}, {".", token.Dot}, {":", token.Colon},
	{";", token.Semicolon}, {"?", token.Question},
	{"=", token.Equal}, {"+", token.Plus}, {"-", token.Minus},
	{"*", token.Star}, {"/", token.Slash}, {"\\", token.Backslash},
	{"^", token.Caret}, {"<", token.Less}, {">", token.Greater},
	{"#", token.Hash},
}

func (l *Lexer) scanPunct(start token.Position, trivia string) Token {
	rest := l.src[l.offs-l.chWidth:]
	for _, p := range punctTable {
		if bytesHasPrefix(rest, p.text) {
			for i := 0; i < len([]rune(p.text)); i++ {
				l.next()
			}
			return Token{Kind: p.kind, Text: p.text, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
		}
	}
	bad := string(l.ch)
	l.errorf(token.Range{Start: start, End: l.pos()}, diag.CodeUnexpectedCharacter, "unexpected character %q", bad)
	l.next()
	return Token{Kind: token.Illegal, Text: bad, Range: token.Range{Start: start, End: l.pos()}, LeadingTrivia: trivia}
}

func bytesHasPrefix(b []byte, s string) bool {
	if len(b) < len(s) {
		return false
	}
	return string(b[:len(s)]) == s
}
