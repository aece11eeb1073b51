// Package parser turns a token stream into an AST plus a References
// index and parse diagnostics, per spec §4.3 (component C3). It is
// grounded on cue/parser's hand-written recursive-descent parser with
// panic-mode error recovery (cue/parser/parser.go), generalized from
// CUE's single expression grammar to this language's disjoint
// statement/expression grammar and its two dialects (classic/extended).
package parser

import (
	"fmt"
	"strings"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/lexer"
	"github.com/scriptcore/bsc/token"
)

// Mode selects the surface dialect, per spec §4.3.
type Mode int

const (
	Classic Mode = iota
	Extended
)

// Result is everything parsing a file produces.
type Result struct {
	Body        *ast.Body
	References  *References
	Diagnostics []diag.Diagnostic
}

// Parse parses toks (as produced by lexer.Scan) under mode.
func Parse(toks []lexer.Token, mode Mode) *Result {
	p := &parser{toks: toks, mode: mode, refs: newReferences()}
	body := p.parseTopLevel()
	return &Result{Body: body, References: p.refs, Diagnostics: p.diags}
}

type parser struct {
	toks     []lexer.Token
	pos      int
	mode     Mode
	refs     *References
	diags    []diag.Diagnostic
	funcStack []ast.Node
}

// --- token cursor helpers -------------------------------------------------

func (p *parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// skipSeparators skips redundant newlines/colons between statements.
// Comments are not skipped here; parseStatement turns standalone comment
// lines into CommentStatement nodes.
func (p *parser) skipSeparators() {
	for p.at(token.Newline) || p.at(token.Colon) {
		p.advance()
	}
}

func (p *parser) expect(k token.Kind, what string) (lexer.Token, bool) {
	if p.cur().Kind == k {
		return p.advance(), true
	}
	p.errorf(diag.CodeExpectedKeyword, p.cur().Range, "expected %s, got %q", what, p.cur().Text)
	return p.cur(), false
}

func (p *parser) errorf(code diag.Code, r token.Range, format string, args ...any) {
	p.diags = append(p.diags, diag.Diagnostic{
		Code: code, Severity: diag.Error, Range: r,
		Message: fmt.Sprintf(format, args...),
	})
}

// --- recovery --------------------------------------------------------------

// syncToStatementBoundary advances past the current malformed construct to
// the next newline, colon, `end <kw>`, or EOF, per spec §4.3 error policy.
func (p *parser) syncToStatementBoundary() {
	for {
		switch p.cur().Kind {
		case token.Newline, token.Colon, token.EOF,
			token.KwEndIf, token.KwEndFor, token.KwEndWhile, token.KwEndFunction,
			token.KwEndSub, token.KwEndClass, token.KwEndNamespace, token.KwEndTry:
			return
		}
		p.advance()
	}
}

func (p *parser) requireExtended(feature string, r token.Range) bool {
	if p.mode == Extended {
		return true
	}
	p.errorf(diag.CodeBsFeatureNotSupportedInBrsFiles, r, "%s is not supported in classic-mode files", feature)
	return false
}

// --- top level ---------------------------------------------------------

func (p *parser) parseTopLevel() *ast.Body {
	start := p.cur().Range.Start
	var stmts []ast.Statement
	sawNonHeader := false
	for !p.at(token.EOF) {
		p.skipSeparators()
		if p.at(token.EOF) {
			break
		}
		before := p.pos
		stmt := p.parseStatement()
		if stmt != nil {
			switch stmt.(type) {
			case *ast.Import, *ast.Library, *ast.CommentStatement:
				if sawNonHeader {
					code := diag.CodeImportStatementMustBeDeclaredAtTopOfFile
					if _, ok := stmt.(*ast.Library); ok {
						code = diag.CodeLibraryStatementMustBeDeclaredAtTopOfFile
					}
					if _, ok := stmt.(*ast.CommentStatement); !ok {
						p.errorf(code, stmt.Range(), "import/library statements must appear before any other statement")
					}
				}
			default:
				sawNonHeader = true
			}
			stmts = append(stmts, stmt)
		}
		if p.pos == before {
			// Guard against infinite loops on unhandled tokens.
			p.advance()
		}
	}
	end := p.cur().Range.End
	return ast.NewBody(token.Range{Start: start, End: end}, stmts)
}

func (p *parser) parseStatement() ast.Statement {
	switch p.cur().Kind {
	case token.Comment:
		c := p.advance()
		return &ast.CommentStatement{Text: c.Text}
	case token.KwLibrary:
		return p.parseLibrary()
	case token.KwImport:
		return p.parseImport()
	case token.KwNamespace:
		return p.parseNamespace()
	case token.KwClass:
		return p.parseClass()
	case token.KwFunction, token.KwSub:
		fn := p.parseFunctionStatement("")
		return fn
	case token.KwIf:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwExitFor:
		p.advance()
		return &ast.ExitFor{}
	case token.KwExitWhile:
		p.advance()
		return &ast.ExitWhile{}
	case token.KwContinue:
		p.advance()
		return &ast.Continue{}
	case token.KwReturn:
		return p.parseReturn()
	case token.KwPrint:
		return p.parsePrint()
	case token.KwDim:
		return p.parseDim()
	case token.KwStop:
		p.advance()
		return &ast.Stop{}
	case token.KwGoto:
		return p.parseGoto()
	case token.KwTry:
		return p.parseTryCatch()
	case token.KwThrow:
		return p.parseThrow()
	case token.At:
		return p.parseAnnotation()
	case token.Identifier:
		return p.parseIdentifierLedStatement()
	default:
		start := p.cur().Range
		p.errorf(diag.CodeUnexpectedToken, start, "unexpected token %q", p.cur().Text)
		p.syncToStatementBoundary()
		return nil
	}
}

func (p *parser) parseLibrary() ast.Statement {
	p.advance() // 'library'
	str, ok := p.expect(token.StringLiteral, "string literal")
	if !ok {
		return nil
	}
	stmt := &ast.Library{Path: unquote(str.Text)}
	p.refs.LibraryStatements = append(p.refs.LibraryStatements, stmt)
	return stmt
}

func (p *parser) parseImport() ast.Statement {
	r := p.cur().Range
	p.advance() // 'import'
	if !p.requireExtended("import statements", r) {
		p.syncToStatementBoundary()
		return nil
	}
	str, ok := p.expect(token.StringLiteral, "string literal")
	if !ok {
		return nil
	}
	stmt := &ast.Import{PkgPath: unquote(str.Text)}
	p.refs.ImportStatements = append(p.refs.ImportStatements, stmt)
	return stmt
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.ReplaceAll(s, `""`, `"`)
}

// --- namespaces & classes ------------------------------------------------

func (p *parser) parseNamespace() ast.Statement {
	r := p.cur().Range
	p.advance() // 'namespace'
	if !p.requireExtended("namespace declarations", r) {
		p.syncToStatementBoundary()
		return nil
	}
	name := p.parseDottedName()
	dotted := ""
	for i, part := range name {
		if i > 0 {
			dotted += "."
		}
		dotted += part
	}
	body := p.parseStatementsUntil(token.KwEndNamespace)
	p.expectMultiWord(token.KwEndNamespace, "end namespace")
	for _, s := range body {
		switch n := s.(type) {
		case *ast.FunctionStatement:
			n.Namespace = dotted
		case *ast.Class:
			n.Namespace = dotted
		}
	}
	ns := &ast.Namespace{NameParts: name, Body: ast.NewBody(token.Range{}, body)}
	p.refs.NamespaceStatements = append(p.refs.NamespaceStatements, ns)
	return ns
}

func (p *parser) parseDottedName() []string {
	var parts []string
	id, ok := p.expect(token.Identifier, "identifier")
	if !ok {
		return parts
	}
	parts = append(parts, id.Text)
	for p.at(token.Dot) {
		p.advance()
		id, ok := p.expect(token.Identifier, "identifier")
		if !ok {
			break
		}
		parts = append(parts, id.Text)
	}
	return parts
}

func (p *parser) expectMultiWord(k token.Kind, what string) {
	if p.at(k) {
		p.advance()
		return
	}
	p.errorf(diag.CodeExpectedKeyword, p.cur().Range, "expected %s", what)
}

func (p *parser) parseStatementsUntil(terminators ...token.Kind) []ast.Statement {
	var stmts []ast.Statement
	for {
		p.skipSeparators()
		if p.at(token.EOF) {
			return stmts
		}
		for _, t := range terminators {
			if p.at(t) {
				return stmts
			}
		}
		before := p.pos
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		if p.pos == before {
			p.advance()
		}
	}
}

func (p *parser) parseClass() ast.Statement {
	r := p.cur().Range
	p.advance() // 'class'
	if !p.requireExtended("class declarations", r) {
		p.syncToStatementBoundary()
		return nil
	}
	name, _ := p.expect(token.Identifier, "class name")
	var extends []string
	if p.at(token.KwExtends) {
		p.advance()
		extends = p.parseDottedName()
	}
	cls := &ast.Class{Name: name.Text, NameRange: name.Range, Extends: extends}
	for {
		p.skipSeparators()
		if p.at(token.KwEndClass) || p.at(token.EOF) {
			break
		}
		access := ast.Public
		override := false
		for p.at(token.KwPublic) || p.at(token.KwPrivate) || p.at(token.KwProtected) || p.at(token.KwOverride) {
			switch p.cur().Kind {
			case token.KwPublic:
				access = ast.Public
			case token.KwPrivate:
				access = ast.Private
			case token.KwProtected:
				access = ast.Protected
			case token.KwOverride:
				override = true
			}
			p.advance()
		}
		if p.at(token.KwFunction) || p.at(token.KwSub) {
			fn := p.parseFunctionStatement("")
			cls.Methods = append(cls.Methods, &ast.ClassMethod{
				Name: fn.Name, NameRange: fn.NameRange, Access: access,
				IsOverride: override, Func: fn,
			})
			continue
		}
		if p.at(token.Identifier) {
			cls.Fields = append(cls.Fields, p.parseClassField(access))
			continue
		}
		if p.at(token.Comment) {
			p.advance()
			continue
		}
		before := p.pos
		p.syncToStatementBoundary()
		if p.pos == before {
			p.advance()
		}
	}
	p.expectMultiWord(token.KwEndClass, "end class")
	p.refs.ClassStatements = append(p.refs.ClassStatements, cls)
	return cls
}

func (p *parser) parseClassField(access ast.AccessModifier) *ast.ClassField {
	name := p.advance()
	f := &ast.ClassField{Name: name.Text, NameRange: name.Range, Access: access}
	if p.at(token.KwAs) {
		p.advance()
		typ, _ := p.expect(token.Identifier, "type name")
		f.Type = typ.Text
	}
	if p.at(token.Equal) {
		p.advance()
		f.Initial = p.parseExpression()
		if lit, ok := f.Initial.(*ast.Literal); ok && lit.LitKind == ast.LiteralInvalidValue && f.Type == "" {
			f.Type = "dynamic"
		}
	}
	return f
}

// --- functions -------------------------------------------------------------

func (p *parser) parseFunctionStatement(namespace string) *ast.FunctionStatement {
	kw := p.advance() // 'function' or 'sub'
	isSub := kw.Kind == token.KwSub
	name, _ := p.expect(token.Identifier, "function name")
	fn := &ast.FunctionStatement{Name: name.Text, NameRange: name.Range, IsSub: isSub, Namespace: namespace}
	p.funcStack = append(p.funcStack, fn)
	fn.Params = p.parseParamList()
	if p.at(token.KwAs) {
		p.advance()
		typ, _ := p.expect(token.Identifier, "return type")
		fn.ReturnType = typ.Text
	}
	endKind := token.KwEndFunction
	if isSub {
		endKind = token.KwEndSub
	}
	body := p.parseStatementsUntil(endKind)
	fn.Body = ast.NewBody(token.Range{}, body)
	p.expectMultiWord(endKind, "end function/sub")
	p.funcStack = p.funcStack[:len(p.funcStack)-1]
	p.refs.FunctionStatements = append(p.refs.FunctionStatements, fn)
	return fn
}

func (p *parser) parseParamList() []*ast.FunctionParameter {
	if _, ok := p.expect(token.LParen, "("); !ok {
		return nil
	}
	var params []*ast.FunctionParameter
	seenOptional := false
	for !p.at(token.RParen) && !p.at(token.EOF) {
		param := &ast.FunctionParameter{}
		if p.at(token.Star) { // rest-argument marker, e.g. func(*args)
			p.advance()
			param.IsRestArgument = true
		}
		name, _ := p.expect(token.Identifier, "parameter name")
		param.Name = name.Text
		param.NameRange = name.Range
		if p.at(token.KwAs) {
			p.advance()
			typ, _ := p.expect(token.Identifier, "parameter type")
			param.Type = typ.Text
		}
		if p.at(token.Equal) {
			p.advance()
			param.Default = p.parseExpression()
			param.IsOptional = true
			seenOptional = true
		} else if seenOptional {
			param.IsOptional = false
		}
		params = append(params, param)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RParen, ")")
	return params
}

func (p *parser) parseFunctionExpression() *ast.FunctionExpression {
	p.advance() // 'function' or 'sub'
	fn := &ast.FunctionExpression{}
	p.funcStack = append(p.funcStack, fn)
	fn.Params = p.parseParamList()
	if p.at(token.KwAs) {
		p.advance()
		typ, _ := p.expect(token.Identifier, "return type")
		fn.ReturnType = typ.Text
	}
	body := p.parseStatementsUntil(token.KwEndFunction, token.KwEndSub)
	fn.Body = ast.NewBody(token.Range{}, body)
	if p.at(token.KwEndFunction) || p.at(token.KwEndSub) {
		p.advance()
	}
	p.funcStack = p.funcStack[:len(p.funcStack)-1]
	p.refs.FunctionExpressions = append(p.refs.FunctionExpressions, fn)
	return fn
}

// --- control flow ------------------------------------------------------

func (p *parser) parseIf() ast.Statement {
	p.advance() // 'if'
	cond := p.parseExpression()
	if p.at(token.KwThen) {
		p.advance()
	}
	ifStmt := &ast.If{Condition: cond}
	if p.isSingleLineIfBody() {
		ifStmt.Then = ast.NewBody(token.Range{}, p.parseSingleLineStatements())
		return ifStmt
	}
	ifStmt.Then = ast.NewBody(token.Range{}, p.parseStatementsUntil(token.KwElseIf, token.KwElse, token.KwEndIf))
	if p.at(token.KwElseIf) {
		ifStmt.Else = p.parseElseIf()
	} else if p.at(token.KwElse) {
		p.advance()
		ifStmt.Else = ast.NewBody(token.Range{}, p.parseStatementsUntil(token.KwEndIf))
		p.expectMultiWord(token.KwEndIf, "end if")
	} else {
		p.expectMultiWord(token.KwEndIf, "end if")
	}
	return ifStmt
}

func (p *parser) isSingleLineIfBody() bool {
	return !p.at(token.Newline) && !p.at(token.EOF)
}

// parseSingleLineStatements parses colon-separated statements on the same
// line as an `if`, consuming an optional trailing `end if` (spec §4.3:
// "Single-line if true then return 1 : end if").
func (p *parser) parseSingleLineStatements() []ast.Statement {
	var stmts []ast.Statement
	for {
		if p.at(token.Newline) || p.at(token.EOF) {
			break
		}
		if p.at(token.KwEndIf) {
			p.advance()
			break
		}
		before := p.pos
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		if p.at(token.Colon) {
			p.advance()
			continue
		}
		if p.pos == before {
			p.advance()
		}
	}
	return stmts
}

func (p *parser) parseElseIf() ast.Statement {
	p.advance() // 'else if' (single fused token)
	cond := p.parseExpression()
	if p.at(token.KwThen) {
		p.advance()
	}
	elseIf := &ast.If{Condition: cond}
	elseIf.Then = ast.NewBody(token.Range{}, p.parseStatementsUntil(token.KwElseIf, token.KwElse, token.KwEndIf))
	if p.at(token.KwElseIf) {
		elseIf.Else = p.parseElseIf()
	} else if p.at(token.KwElse) {
		p.advance()
		elseIf.Else = ast.NewBody(token.Range{}, p.parseStatementsUntil(token.KwEndIf))
		p.expectMultiWord(token.KwEndIf, "end if")
	} else {
		p.expectMultiWord(token.KwEndIf, "end if")
	}
	return elseIf
}

func (p *parser) parseFor() ast.Statement {
	p.advance() // 'for'
	if p.at(token.KwEach) {
		p.advance()
		name, _ := p.expect(token.Identifier, "loop variable")
		p.expect(token.KwIn, "in")
		target := p.parseExpression()
		body := p.parseStatementsUntil(token.KwEndFor)
		p.expectMultiWord(token.KwEndFor, "end for")
		return &ast.ForEach{ItemName: name.Text, Target: target, Body: ast.NewBody(token.Range{}, body)}
	}
	name, _ := p.expect(token.Identifier, "loop variable")
	p.expect(token.Equal, "=")
	from := p.parseExpression()
	p.expect(token.KwTo, "to")
	to := p.parseExpression()
	var step ast.Expression
	if p.at(token.KwStep) {
		p.advance()
		step = p.parseExpression()
	}
	body := p.parseStatementsUntil(token.KwEndFor)
	p.expectMultiWord(token.KwEndFor, "end for")
	return &ast.For{CounterName: name.Text, From: from, To: to, Step: step, Body: ast.NewBody(token.Range{}, body)}
}

func (p *parser) parseWhile() ast.Statement {
	p.advance() // 'while'
	cond := p.parseExpression()
	body := p.parseStatementsUntil(token.KwEndWhile)
	p.expectMultiWord(token.KwEndWhile, "end while")
	return &ast.While{Condition: cond, Body: ast.NewBody(token.Range{}, body)}
}

func (p *parser) parseReturn() ast.Statement {
	p.advance() // 'return'
	if p.at(token.Newline) || p.at(token.Colon) || p.at(token.EOF) || p.at(token.KwEndIf) {
		return &ast.Return{}
	}
	return &ast.Return{Value: p.parseExpression()}
}

func (p *parser) parsePrint() ast.Statement {
	p.advance() // 'print'
	var exprs []ast.Expression
	exprs = append(exprs, p.parseExpression())
	for p.at(token.Semicolon) || p.at(token.Comma) {
		p.advance()
		if p.at(token.Newline) || p.at(token.EOF) || p.at(token.Colon) {
			break
		}
		exprs = append(exprs, p.parseExpression())
	}
	return &ast.Print{Expressions: exprs}
}

func (p *parser) parseDim() ast.Statement {
	p.advance() // 'dim'
	name, _ := p.expect(token.Identifier, "variable name")
	dim := &ast.Dim{Name: name.Text}
	if p.at(token.LBracket) {
		p.advance()
		for !p.at(token.RBracket) && !p.at(token.EOF) {
			dim.Dimensions = append(dim.Dimensions, p.parseExpression())
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.RBracket, "]")
	}
	return dim
}

func (p *parser) parseGoto() ast.Statement {
	p.advance() // 'goto'
	label, _ := p.expect(token.Identifier, "label")
	return &ast.Goto{Label: label.Text}
}

func (p *parser) parseTryCatch() ast.Statement {
	r := p.cur().Range
	p.advance() // 'try'
	if !p.requireExtended("try/catch", r) {
		p.syncToStatementBoundary()
		return nil
	}
	tryBody := p.parseStatementsUntil(token.KwCatch)
	var catch *ast.Catch
	if p.at(token.KwCatch) {
		p.advance()
		name, _ := p.expect(token.Identifier, "catch variable")
		catchBody := p.parseStatementsUntil(token.KwEndTry)
		catch = &ast.Catch{VarName: name.Text, Body: ast.NewBody(token.Range{}, catchBody)}
	} else {
		p.errorf(diag.CodeExpectedKeyword, p.cur().Range, "try requires a matching catch")
	}
	p.expectMultiWord(token.KwEndTry, "end try")
	return &ast.TryCatch{Try: ast.NewBody(token.Range{}, tryBody), Catch: catch}
}

func (p *parser) parseThrow() ast.Statement {
	r := p.cur().Range
	p.advance() // 'throw'
	if !p.requireExtended("throw", r) {
		p.syncToStatementBoundary()
		return nil
	}
	return &ast.Throw{Value: p.parseExpression()}
}

func (p *parser) parseAnnotation() ast.Statement {
	r := p.cur().Range
	p.advance() // '@'
	if !p.requireExtended("annotations", r) {
		p.syncToStatementBoundary()
		return nil
	}
	name, _ := p.expect(token.Identifier, "annotation name")
	ann := &ast.Annotation{Name: name.Text}
	if p.at(token.LParen) {
		p.advance()
		for !p.at(token.RParen) && !p.at(token.EOF) {
			ann.Args = append(ann.Args, p.parseExpression())
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.RParen, ")")
	}
	return ann
}

// parseIdentifierLedStatement disambiguates assignment, dotted/indexed
// set, increment, and bare expression statements, all of which start with
// an identifier-rooted primary expression (spec §4.3).
func (p *parser) parseIdentifierLedStatement() ast.Statement {
	start := p.pos
	expr := p.parsePostfix(p.parsePrimary())

	switch p.cur().Kind {
	case token.Equal, token.PlusEqual, token.MinusEqual, token.StarEqual,
		token.SlashEqual, token.BackslashEqual, token.LShiftEqual, token.RShiftEqual:
		op := assignOpFor(p.advance().Kind)
		value := p.parseExpression()
		switch target := expr.(type) {
		case *ast.Variable:
			a := &ast.Assignment{Name: target.Name, Op: op, Value: value}
			p.refs.AssignmentStatements = append(p.refs.AssignmentStatements, a)
			p.recordLocalVar(target.Name)
			return a
		case *ast.DottedGet:
			p.refs.PropertyHints = append(p.refs.PropertyHints, target.Field)
			return &ast.DottedSet{Target: target.Target, Field: target.Field, Value: value}
		case *ast.IndexedGet:
			return &ast.IndexedSet{Target: target.Target, Index: target.Index, Value: value}
		default:
			p.errorf(diag.CodeUnexpectedToken, expr.Range(), "invalid assignment target")
			return nil
		}
	case token.PlusPlus, token.MinusMinus:
		isDec := p.advance().Kind == token.MinusMinus
		return &ast.Increment{Target: expr, IsDecrement: isDec}
	default:
		p.pos = start
		e := p.parseExpression()
		return &ast.ExpressionStatement{Expression: e}
	}
}

func (p *parser) recordLocalVar(name string) {
	if len(p.funcStack) == 0 {
		return
	}
	key := p.funcStack[len(p.funcStack)-1]
	p.refs.LocalVars[key] = append(p.refs.LocalVars[key], name)
}

func assignOpFor(k token.Kind) ast.AssignOperator {
	switch k {
	case token.PlusEqual:
		return ast.AssignAdd
	case token.MinusEqual:
		return ast.AssignSub
	case token.StarEqual:
		return ast.AssignMul
	case token.SlashEqual:
		return ast.AssignDiv
	case token.BackslashEqual:
		return ast.AssignIntDiv
	case token.LShiftEqual:
		return ast.AssignLShift
	case token.RShiftEqual:
		return ast.AssignRShift
	default:
		return ast.AssignSet
	}
}

// --- expressions -------------------------------------------------------

// precedence table, low to high.
var binPrec = map[token.Kind]int{
	token.KwOr: 1, token.KwAnd: 2,
	token.EqualEqual: 3, token.NotEqual: 3, token.Less: 3, token.LessEqual: 3,
	token.Greater: 3, token.GreaterEqual: 3,
	token.Plus: 4, token.Minus: 4,
	token.Star: 5, token.Slash: 5, token.Backslash: 5, token.KwMod: 5,
	token.Caret: 6,
	token.LShift: 4, token.RShift: 4,
}

var binOpFor = map[token.Kind]ast.BinaryOperator{
	token.KwOr: ast.OpOr, token.KwAnd: ast.OpAnd,
	token.EqualEqual: ast.OpEqual, token.NotEqual: ast.OpNotEqual,
	token.Less: ast.OpLess, token.LessEqual: ast.OpLessEqual,
	token.Greater: ast.OpGreater, token.GreaterEqual: ast.OpGreaterEqual,
	token.Plus: ast.OpAdd, token.Minus: ast.OpSub,
	token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.Backslash: ast.OpIntDiv,
	token.KwMod: ast.OpMod, token.Caret: ast.OpCaret,
	token.LShift: ast.OpLShift, token.RShift: ast.OpRShift,
}

func (p *parser) parseExpression() ast.Expression {
	return p.parseTernary()
}

func (p *parser) parseTernary() ast.Expression {
	cond := p.parseBinary(0)
	if p.at(token.Question) {
		r := p.cur().Range
		if !p.requireExtended("the ternary operator", r) {
			return cond
		}
		p.advance()
		cons := p.parseExpression()
		p.expect(token.Colon, ":")
		alt := p.parseExpression()
		return &ast.Ternary{Condition: cond, Consequent: cons, Alternate: alt}
	}
	return cond
}

func (p *parser) parseBinary(minPrec int) ast.Expression {
	left := p.parseUnary()
	for {
		prec, ok := binPrec[p.cur().Kind]
		if !ok || prec < minPrec {
			return left
		}
		op := p.advance().Kind
		right := p.parseBinary(prec + 1)
		left = &ast.Binary{Op: binOpFor[op], Left: left, Right: right}
	}
}

func (p *parser) parseUnary() ast.Expression {
	switch p.cur().Kind {
	case token.KwNot:
		p.advance()
		return &ast.Unary{Op: ast.UnaryNot, Operand: p.parseUnary()}
	case token.Minus:
		p.advance()
		return &ast.Unary{Op: ast.UnaryNegate, Operand: p.parseUnary()}
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// parsePostfix consumes `.field`, `[index]`, `(args)`, `@.method(args)`
// chains following a primary expression.
func (p *parser) parsePostfix(e ast.Expression) ast.Expression {
	for {
		switch p.cur().Kind {
		case token.Dot:
			p.advance()
			field, _ := p.expectIdentifierLike()
			e = &ast.DottedGet{Target: e, Field: field}
		case token.LBracket:
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBracket, "]")
			e = &ast.IndexedGet{Target: e, Index: idx}
		case token.LParen:
			e = &ast.Call{Callee: e, Args: p.parseArgList()}
		case token.At:
			p.advance()
			method, _ := p.expectIdentifierLike()
			args := p.parseArgList()
			e = &ast.Callfunc{Target: e, MethodName: method, Args: args}
		default:
			return e
		}
	}
}

// expectIdentifierLike accepts a reserved word spelled like an identifier
// as a property/method name, per spec §3 ("Reserved-word tokens must
// still be usable as object keys").
func (p *parser) expectIdentifierLike() (string, bool) {
	t := p.cur()
	if t.Kind == token.Identifier || isWordLike(t) {
		p.advance()
		return t.Text, true
	}
	p.errorf(diag.CodeExpectedIdentifier, t.Range, "expected identifier, got %q", t.Text)
	return "", false
}

func isWordLike(t lexer.Token) bool {
	return t.Kind > token.KwAnd && t.Text != "" && !strings.ContainsAny(t.Text, " (){}[],.:;")
}

func (p *parser) parseArgList() []ast.Expression {
	p.advance() // '('
	var args []ast.Expression
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpression())
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RParen, ")")
	return args
}

func (p *parser) parsePrimary() ast.Expression {
	t := p.cur()
	switch t.Kind {
	case token.LParen:
		p.advance()
		inner := p.parseExpression()
		p.expect(token.RParen, ")")
		return &ast.Grouping{Inner: inner}
	case token.IntLiteral:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralInt, Text: t.Text}
	case token.LongLiteral:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralLong, Text: t.Text}
	case token.FloatLiteral:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralFloat, Text: t.Text}
	case token.DoubleLiteral:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralDouble, Text: t.Text}
	case token.StringLiteral:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralString, Text: unquote(t.Text)}
	case token.KwTrue, token.KwFalse:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralBool, Text: t.Text}
	case token.KwInvalid:
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralInvalidValue, Text: "invalid"}
	case token.TemplateStringQuasi:
		return p.parseTemplateString()
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.LBrace:
		return p.parseAALiteral()
	case token.KwNew:
		return p.parseNew()
	case token.KwFunction, token.KwSub:
		return p.parseFunctionExpression()
	case token.Identifier:
		p.advance()
		if isSourceLiteralName(t.Text) {
			return &ast.SourceLiteral{LiteralKind: sourceLiteralKindFor(t.Text)}
		}
		return &ast.Variable{Name: t.Text}
	default:
		p.errorf(diag.CodeUnexpectedToken, t.Range, "unexpected token %q in expression", t.Text)
		p.advance()
		return &ast.Literal{LitKind: ast.LiteralInvalid, Text: ""}
	}
}

func isSourceLiteralName(name string) bool {
	switch name {
	case "LINE_NUM", "FUNCTION_NAME", "PKG_PATH", "SOURCE_FILE_PATH":
		return true
	}
	return false
}

func sourceLiteralKindFor(name string) ast.SourceLiteralKind {
	switch name {
	case "LINE_NUM":
		return ast.SourceLineNum
	case "FUNCTION_NAME":
		return ast.SourceFunctionName
	case "PKG_PATH":
		return ast.SourcePkgPath
	default:
		return ast.SourceFilePath
	}
}

func (p *parser) parseNew() ast.Expression {
	r := p.cur().Range
	p.advance() // 'new'
	if !p.requireExtended("the new operator", r) {
		return &ast.Literal{LitKind: ast.LiteralInvalid}
	}
	parts := p.parseDottedName()
	nvn := &ast.NamespacedVariableName{Parts: parts}
	var args []ast.Expression
	if p.at(token.LParen) {
		args = p.parseArgList()
	}
	return &ast.New{Callee: nvn, Args: args}
}

func (p *parser) parseArrayLiteral() ast.Expression {
	p.advance() // '['
	arr := &ast.ArrayLiteral{}
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		p.skipSeparators()
		if p.at(token.RBracket) {
			break
		}
		if p.at(token.Comment) {
			c := p.advance()
			arr.Elements = append(arr.Elements, &ast.CommentExpression{Text: c.Text})
			continue
		}
		arr.Elements = append(arr.Elements, p.parseExpression())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.RBracket, "]")
	return arr
}

func (p *parser) parseAALiteral() ast.Expression {
	p.advance() // '{'
	aa := &ast.AALiteral{}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		p.skipSeparators()
		if p.at(token.RBrace) {
			break
		}
		key, _ := p.expectIdentifierLike()
		if p.cur().Kind == token.StringLiteral {
			key = unquote(p.advance().Text)
		}
		p.expect(token.Colon, ":")
		val := p.parseExpression()
		aa.Members = append(aa.Members, ast.AAMember{Key: key, Value: val})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.RBrace, "}")
	return aa
}

// parseTemplateString re-lexes the raw quasi text the lexer captured
// between backticks, splitting literal fragments from ${...}
// interpolations and recursively parsing each interpolation as a full
// expression (spec §4.1/§4.3).
func (p *parser) parseTemplateString() ast.Expression {
	raw := p.advance().Text
	ts := &ast.TemplateString{}
	var cur strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			ts.Quasis = append(ts.Quasis, &ast.TemplateStringQuasi{Text: cur.String()})
			cur.Reset()
			depth := 1
			j := i + 2
			for j < len(raw) && depth > 0 {
				if raw[j] == '{' {
					depth++
				} else if raw[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				j++
			}
			inner := raw[i+2 : j]
			innerToks := lexer.New([]byte(inner), lexer.Options{}).Scan()
			sub := Parse(innerToks, p.mode)
			if len(sub.Body.Statements) == 1 {
				if es, ok := sub.Body.Statements[0].(*ast.ExpressionStatement); ok {
					ts.Interpolations = append(ts.Interpolations, es.Expression)
				}
			}
			i = j + 1
			continue
		}
		cur.WriteByte(raw[i])
		i++
	}
	ts.Quasis = append(ts.Quasis, &ast.TemplateStringQuasi{Text: cur.String()})
	return ts
}

