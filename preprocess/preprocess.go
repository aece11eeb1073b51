// Package preprocess implements the conditional-compilation directive
// layer from spec §4.2 (component C2): #const / #if / #else if / #else /
// #end if, evaluated against a manifest. It is grounded on
// internal/buildattr's build-tag filtering (the teacher's closest analogue
// to conditionally dropping source based on an external key/value map),
// generalized from CUE's single `@if(expr)` attribute to this language's
// directive-line preprocessor.
package preprocess

import (
	"strings"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/lexer"
	"github.com/scriptcore/bsc/token"
)

// Manifest is a flat string→string map, per spec §6 ("a flat key=value
// text file whose keys become available to #if predicates").
type Manifest map[string]string

// ParseManifest parses the flat key=value text format.
func ParseManifest(text string) Manifest {
	m := Manifest{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m
}

func (m Manifest) bool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

// Process filters a token stream against consts bound via #const and the
// manifest, returning the surviving tokens (directive lines themselves are
// always dropped) plus diagnostics, per spec §4.2.
func Process(toks []lexer.Token, manifest Manifest) ([]lexer.Token, []diag.Diagnostic) {
	p := &processor{toks: toks, manifest: manifest, consts: map[string]bool{}}
	p.run()
	return p.out, p.diags
}

type processor struct {
	toks     []lexer.Token
	pos      int
	manifest Manifest
	consts   map[string]bool
	out      []lexer.Token
	diags    []diag.Diagnostic
}

func (p *processor) errorf(r token.Range, code diag.Code, msg string) {
	p.diags = append(p.diags, diag.Diagnostic{Code: code, Severity: diag.Error, Message: msg, Range: r})
}

func (p *processor) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *processor) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// isHash reports whether t opens a preprocessor directive line.
func (p *processor) isHash(t lexer.Token) bool { return t.Kind == token.Hash }

func (p *processor) run() {
	for p.peek().Kind != token.EOF {
		t := p.peek()
		if p.isHash(t) {
			p.directive()
			continue
		}
		p.out = append(p.out, p.advance())
	}
	p.out = append(p.out, p.advance()) // EOF
}

func (p *processor) directive() {
	start := p.peek().Range.Start
	p.advance() // '#'
	kw := p.advance()
	switch strings.ToLower(kw.Text) {
	case "const":
		p.directiveConst()
	case "if":
		p.directiveIf(start)
	default:
		p.errorf(token.Range{Start: start, End: kw.Range.End}, diag.CodeUnexpectedToken, "unknown preprocessor directive #"+kw.Text)
		p.skipToNewline()
	}
}

func (p *processor) skipToNewline() {
	for p.peek().Kind != token.Newline && p.peek().Kind != token.EOF {
		p.advance()
	}
}

func (p *processor) directiveConst() {
	name := p.advance()
	lower := strings.ToLower(name.Text)
	if _, reserved := token.LookupReserved(lower); reserved {
		p.errorf(name.Range, diag.CodeConstNameCannotBeReservedWord, "#const name cannot be a reserved word: "+name.Text)
	}
	p.advance() // '='
	val := p.advance()
	switch strings.ToLower(val.Text) {
	case "true":
		p.consts[lower] = true
	case "false":
		p.consts[lower] = false
	default:
		if b, ok := p.consts[strings.ToLower(val.Text)]; ok {
			p.consts[lower] = b
		} else {
			p.errorf(val.Range, diag.CodeInvalidHashConstValue, "invalid #const value: "+val.Text)
		}
	}
	p.skipToNewline()
}

func (p *processor) resolve(name string) (bool, bool) {
	lower := strings.ToLower(name)
	if b, ok := p.consts[lower]; ok {
		return b, true
	}
	return p.manifest.bool(name)
}

// directiveIf consumes an entire #if/#else if/#else/#end if chain,
// keeping tokens from exactly the first branch whose condition resolves
// true (or the #else branch if none do), and dropping the rest — per
// spec §4.2 ("Tokens inside a false-resolved branch are dropped").
func (p *processor) directiveIf(start token.Position) {
	taken := false
	p.consumeIfBranch(&taken, start)
	for {
		if p.isHash(p.peek()) {
			save := p.pos
			p.advance()
			kw := p.peek()
			low := strings.ToLower(kw.Text)
			// The lexer fuses "else if" and "end if" into single tokens.
			if kw.Kind == token.KwElseIf {
				p.advance()
				p.consumeIfBranch(&taken, start)
				continue
			}
			if kw.Kind == token.KwEndIf {
				p.advance()
				p.skipToNewline()
				return
			}
			if low == "else" {
				p.advance()
				if strings.ToLower(p.peek().Text) == "if" {
					p.advance()
					p.consumeIfBranch(&taken, start)
					continue
				}
				p.skipToNewline()
				p.consumeBranch(!taken)
				taken = true
				continue
			}
			if low == "end" {
				p.advance()
				if strings.ToLower(p.peek().Text) == "if" {
					p.advance()
				}
				p.skipToNewline()
				return
			}
			p.pos = save
		}
		if p.peek().Kind == token.EOF {
			return
		}
		p.advance()
	}
}

func (p *processor) consumeIfBranch(taken *bool, start token.Position) {
	cond := p.advance()
	ok, known := p.resolve(cond.Text)
	if !known {
		p.errorf(token.Range{Start: start, End: cond.Range.End}, diag.CodeInvalidHashConstValue, "unresolved #if condition: "+cond.Text)
	}
	p.skipToNewline()
	p.consumeBranch(ok && !*taken)
	if ok {
		*taken = true
	}
}

// consumeBranch copies (keep=true) or discards (keep=false) tokens up to
// (but not including) the next `#` token. Nesting is not tracked: a
// nested #if also ends the branch.
func (p *processor) consumeBranch(keep bool) {
	for {
		if p.isHash(p.peek()) {
			return
		}
		if p.peek().Kind == token.EOF {
			return
		}
		t := p.advance()
		if keep {
			p.out = append(p.out, t)
		}
	}
}
