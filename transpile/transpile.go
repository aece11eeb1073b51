// Package transpile implements spec §4.10 (component C10): lowering
// extended AST to classic surface text plus a source map. It is
// grounded on cue/format's tree-to-text printer (blockDepth-driven
// indentation, one statement per line) generalized from CUE's
// value-literal pretty-printer to this language's statement/expression
// grammar, and on cue/errors' position bookkeeping for the source-map
// emission cue/format itself does not need (CUE has no "lowering to an
// older dialect" concept; the source-map v3 encoder here has no teacher
// analogue and is hand-written against the public spec, same as the
// teacher's own scanner has no parser-generator dependency).
package transpile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/source"
)

// Options configures one Transpile call, per spec §4.10/§6.
type Options struct {
	SourceMap  bool
	SourceRoot string
}

// Result is the output of lowering one file.
type Result struct {
	Code        string
	SourceMap   *SourceMap
	Diagnostics []diag.Diagnostic
}

// Transpile lowers f's extended AST to classic surface text, per spec
// §4.10. Classic-mode files that need no lowering still pass through
// the printer so indentation/then-insertion stays consistent.
func Transpile(f *source.File, opts Options) *Result {
	p := &printer{
		file:         f,
		namespaceFns: map[string]string{},
	}
	p.collectNamespaceFunctions()
	p.printBodyTopLevel(f.AST)

	code := p.sb.String()
	if opts.SourceMap {
		code += "\n'//# sourceMappingURL=./" + baseName(f.SrcPath) + ".map\n"
	}

	res := &Result{Code: code, Diagnostics: p.diags}
	if opts.SourceMap {
		res.SourceMap = buildSourceMap(f, p.mappings, opts.SourceRoot)
	}
	return res
}

func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[:i]
	}
	return path
}

type mapping struct {
	sourceLine, sourceCol int
	genLine, genCol       int
}

type printer struct {
	file *source.File
	sb   strings.Builder

	depth        int
	genLine      int
	namespaceFns map[string]string // lowercase dotted -> joined identifier
	namespaceCtx string            // current dotted namespace while printing (for short-form calls)
	mappings     []mapping
	diags        []diag.Diagnostic
}

func (p *printer) indent() string { return strings.Repeat("    ", p.depth) }

// recordMapping notes that the next emitted line begins at sourceLine in
// the original file, for the source map spec §4.10 calls for.
func (p *printer) recordMapping(sourceLine int) {
	p.mappings = append(p.mappings, mapping{
		sourceLine: sourceLine,
		genLine:    p.genLine,
		genCol:     len(p.indent()),
	})
}

func (p *printer) writeLine(text string) {
	p.sb.WriteString(p.indent())
	p.sb.WriteString(text)
	p.sb.WriteByte('\n')
	p.genLine++
}

// collectNamespaceFunctions walks every namespace statement, building
// the dotted→joined rename map spec §4.10 requires ("Namespace
// functions are renamed by joining name parts with _").
func (p *printer) collectNamespaceFunctions() {
	if p.file.References == nil {
		return
	}
	for _, fn := range p.file.References.FunctionStatements {
		if fn.Namespace == "" {
			continue
		}
		dotted := fn.Namespace + "." + fn.Name
		joined := strings.ReplaceAll(dotted, ".", "_")
		p.namespaceFns[strings.ToLower(dotted)] = joined
	}
}

// printBodyTopLevel prints a file's top-level statements, expanding
// Namespace wrappers in place (their function/class children are
// printed as ordinary top-level declarations using their renamed/lowered
// forms) and dropping Import statements (no classic-syntax analogue).
func (p *printer) printBodyTopLevel(b *ast.Body) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		p.printTopLevelStatement(stmt)
	}
}

func (p *printer) printTopLevelStatement(stmt ast.Statement) {
	switch v := stmt.(type) {
	case *ast.Import:
		return // compile-time only, no classic-syntax output
	case *ast.Namespace:
		prev := p.namespaceCtx
		p.namespaceCtx = v.Name()
		if v.Body != nil {
			for _, inner := range v.Body.Statements {
				p.printTopLevelStatement(inner)
			}
		}
		p.namespaceCtx = prev
	case *ast.Class:
		p.printClass(v)
	case *ast.FunctionStatement:
		p.printFunctionStatement(v, p.renamedFunctionName(v))
	default:
		p.printStatement(stmt)
	}
}

func (p *printer) renamedFunctionName(fn *ast.FunctionStatement) string {
	if fn.Namespace == "" {
		return fn.Name
	}
	dotted := fn.Namespace + "." + fn.Name
	return strings.ReplaceAll(dotted, ".", "_")
}

func (p *printer) printFunctionStatement(fn *ast.FunctionStatement, name string) {
	kw := "function"
	if fn.IsSub {
		kw = "sub"
	}
	header := kw + " " + name + "(" + p.paramList(fn.Params) + ")"
	if fn.ReturnType != "" {
		header += " as " + fn.ReturnType
	}
	p.writeLine(header)
	p.depth++
	p.printBody(fn.Body)
	p.depth--
	p.writeLine("end " + kw)
}

func (p *printer) paramList(params []*ast.FunctionParameter) string {
	parts := make([]string, len(params))
	for i, pm := range params {
		s := pm.Name
		if pm.Type != "" {
			s += " as " + pm.Type
		}
		if pm.Default != nil {
			s += " = " + p.expr(pm.Default)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func (p *printer) printBody(b *ast.Body) {
	if b == nil {
		return
	}
	for _, s := range b.Statements {
		p.printStatement(s)
	}
}

func (p *printer) printStatement(stmt ast.Statement) {
	p.recordMapping(stmt.Range().Start.Line)
	switch v := stmt.(type) {
	case *ast.CommentStatement:
		p.writeLine("' " + v.Text)
	case *ast.Assignment:
		p.writeLine(v.Name + " " + assignOpText(v.Op) + " " + p.expr(v.Value))
	case *ast.ExpressionStatement:
		p.writeLine(p.expr(v.Expression))
	case *ast.DottedSet:
		p.writeLine(p.expr(v.Target) + "." + v.Field + " = " + p.expr(v.Value))
	case *ast.IndexedSet:
		p.writeLine(p.expr(v.Target) + "[" + p.expr(v.Index) + "] = " + p.expr(v.Value))
	case *ast.Increment:
		op := "++"
		if v.IsDecrement {
			op = "--"
		}
		p.writeLine(p.expr(v.Target) + op)
	case *ast.Print:
		parts := make([]string, len(v.Expressions))
		for i, e := range v.Expressions {
			parts[i] = p.expr(e)
		}
		p.writeLine("print " + strings.Join(parts, "; "))
	case *ast.Return:
		if v.Value != nil {
			p.writeLine("return " + p.expr(v.Value))
		} else {
			p.writeLine("return")
		}
	case *ast.Dim:
		dims := make([]string, len(v.Dimensions))
		for i, d := range v.Dimensions {
			dims[i] = p.expr(d)
		}
		p.writeLine("dim " + v.Name + "[" + strings.Join(dims, ", ") + "]")
	case *ast.Goto:
		p.writeLine("goto " + v.Label)
	case *ast.Label:
		p.writeLine(v.Name + ":")
	case *ast.Stop:
		p.writeLine("stop")
	case *ast.End:
		p.writeLine("end")
	case *ast.Continue:
		p.writeLine("continue")
	case *ast.ExitFor:
		p.writeLine("exit for")
	case *ast.ExitWhile:
		p.writeLine("exit while")
	case *ast.If:
		p.printIf(v, false)
	case *ast.For:
		header := "for " + v.CounterName + " = " + p.expr(v.From) + " to " + p.expr(v.To)
		if v.Step != nil {
			header += " step " + p.expr(v.Step)
		}
		p.writeLine(header)
		p.depth++
		p.printBody(v.Body)
		p.depth--
		p.writeLine("end for")
	case *ast.ForEach:
		p.writeLine("for each " + v.ItemName + " in " + p.expr(v.Target))
		p.depth++
		p.printBody(v.Body)
		p.depth--
		p.writeLine("end for")
	case *ast.While:
		p.writeLine("while " + p.expr(v.Condition))
		p.depth++
		p.printBody(v.Body)
		p.depth--
		p.writeLine("end while")
	case *ast.Library:
		p.writeLine("library \"" + v.Path + "\"")
	case *ast.TryCatch:
		// No classic-syntax analogue; emitted verbatim as a best-effort
		// pass-through since spec §4.10's rule list does not cover
		// try/catch lowering.
		p.writeLine("try")
		p.depth++
		p.printBody(v.Try)
		p.depth--
		if v.Catch != nil {
			p.writeLine("catch " + v.Catch.VarName)
			p.depth++
			p.printBody(v.Catch.Body)
			p.depth--
		}
		p.writeLine("end try")
	case *ast.Throw:
		p.writeLine("throw " + p.expr(v.Value))
	case *ast.FunctionStatement:
		p.printFunctionStatement(v, p.renamedFunctionName(v))
	case *ast.Block:
		p.printBody(&ast.Body{Statements: v.Statements})
	case *ast.Class:
		p.printClass(v)
	default:
		p.diags = append(p.diags, diag.Diagnostic{
			Code: diag.CodeInternalParserFailure, Severity: diag.Warning,
			Message: fmt.Sprintf("transpile: unhandled statement kind %v", stmt.Kind()),
		})
	}
}

// printIf prints an if/elseif/else chain, always emitting "then" per
// spec §4.10 ("if without then gains then on output").
func (p *printer) printIf(n *ast.If, isElseIf bool) {
	kw := "if"
	if isElseIf {
		kw = "else if"
	}
	p.writeLine(kw + " " + p.expr(n.Condition) + " then")
	p.depth++
	p.printBody(n.Then)
	p.depth--
	switch e := n.Else.(type) {
	case *ast.If:
		p.printIf(e, true)
		return // nested call emits its own "end if"
	case *ast.Body:
		p.writeLine("else")
		p.depth++
		p.printBody(e)
		p.depth--
	}
	p.writeLine("end if")
}

func assignOpText(op ast.AssignOperator) string {
	switch op {
	case ast.AssignAdd:
		return "+="
	case ast.AssignSub:
		return "-="
	case ast.AssignMul:
		return "*="
	case ast.AssignDiv:
		return "/="
	case ast.AssignIntDiv:
		return "\\="
	case ast.AssignLShift:
		return "<<="
	case ast.AssignRShift:
		return ">>="
	}
	return "="
}

// printClass implements spec §4.10's class-lowering rule (§8 scenario
// S5): a builder function assembling fields/methods onto a fresh
// object, chained to the parent's builder when Extends is set, and an
// assembler function that calls the builder then instance.new(args).
func (p *printer) printClass(c *ast.Class) {
	builderName := "__" + c.Name + "_builder"
	p.writeLine("function " + builderName + "()")
	p.depth++
	if len(c.Extends) > 0 {
		parentBuilder := "__" + c.Extends[len(c.Extends)-1] + "_builder"
		p.writeLine("instance = " + parentBuilder + "()")
	} else {
		p.writeLine("instance = {}")
	}
	for _, f := range c.Fields {
		init := "invalid"
		if f.Initial != nil {
			init = p.expr(f.Initial)
		}
		p.writeLine("instance." + f.Name + " = " + init)
	}
	hasNew := false
	for _, m := range c.Methods {
		name := m.Name
		if strings.EqualFold(m.Name, "new") {
			hasNew = true
		}
		if m.IsOverride {
			p.writeLine("instance.super0_" + name + " = instance." + name)
		}
		p.writeLine("instance." + name + " = function(" + p.paramList(m.Func.Params) + ")")
		p.depth++
		p.printBody(m.Func.Body)
		p.depth--
		p.writeLine("end function")
	}
	if !hasNew {
		p.writeLine("instance.new = function()")
		p.writeLine("end function")
	}
	p.writeLine("return instance")
	p.depth--
	p.writeLine("end function")

	var ctorParams []*ast.FunctionParameter
	for _, m := range c.Methods {
		if strings.EqualFold(m.Name, "new") {
			ctorParams = m.Func.Params
		}
	}
	p.writeLine("function " + c.Name + "(" + p.paramList(ctorParams) + ")")
	p.depth++
	p.writeLine("instance = " + builderName + "()")
	args := make([]string, len(ctorParams))
	for i, pm := range ctorParams {
		args[i] = pm.Name
	}
	p.writeLine("instance.new(" + strings.Join(args, ", ") + ")")
	p.writeLine("return instance")
	p.depth--
	p.writeLine("end function")
}

// --- expressions ---

func (p *printer) expr(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.Literal:
		return literalText(v)
	case *ast.Variable:
		return p.renameBareCall(v.Name)
	case *ast.Binary:
		return p.expr(v.Left) + " " + binOpText(v.Op) + " " + p.expr(v.Right)
	case *ast.Unary:
		if v.Op == ast.UnaryNot {
			return "not " + p.expr(v.Operand)
		}
		return "-" + p.expr(v.Operand)
	case *ast.Grouping:
		return "(" + p.expr(v.Inner) + ")"
	case *ast.Call:
		return p.callText(v)
	case *ast.DottedGet:
		return p.expr(v.Target) + "." + v.Field
	case *ast.XmlAttributeGet:
		return p.expr(v.Target) + "@" + v.Attribute
	case *ast.IndexedGet:
		return p.expr(v.Target) + "[" + p.expr(v.Index) + "]"
	case *ast.ArrayLiteral:
		parts := make([]string, len(v.Elements))
		for i, el := range v.Elements {
			parts[i] = p.expr(el)
		}
		if len(parts) == 0 {
			return "[]"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ast.AALiteral:
		return p.aaLiteral(v)
	case *ast.EscapedCharCodeLiteral:
		return fmt.Sprintf(`\%d\`, v.Code)
	case *ast.NamespacedVariableName:
		return p.renameBareCall(v.Name())
	case *ast.New:
		name := v.Callee.Name()
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = p.expr(a)
		}
		return name + "(" + strings.Join(args, ", ") + ")"
	case *ast.Callfunc:
		return p.callfuncText(v)
	case *ast.SourceLiteral:
		return p.sourceLiteralText(v)
	case *ast.TemplateString:
		return p.templateStringText(v)
	case *ast.TaggedTemplateString:
		return p.expr(v.Tag) + "(" + p.templateStringText(v.Template) + ")"
	case *ast.Ternary:
		return p.ternaryText(v)
	case *ast.CommentExpression:
		return "' " + v.Text
	}
	return ""
}

func (p *printer) renameBareCall(name string) string {
	if p.namespaceCtx != "" {
		if joined, ok := p.namespaceFns[strings.ToLower(p.namespaceCtx+"."+name)]; ok {
			return joined
		}
	}
	if joined, ok := p.namespaceFns[strings.ToLower(name)]; ok {
		return joined
	}
	return name
}

func (p *printer) callText(c *ast.Call) string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = p.expr(a)
	}
	if dotted, ok := dottedChainName(c.Callee); ok {
		if joined, known := p.namespaceFns[strings.ToLower(dotted)]; known {
			return joined + "(" + strings.Join(args, ", ") + ")"
		}
	}
	return p.expr(c.Callee) + "(" + strings.Join(args, ", ") + ")"
}

// dottedChainName returns the literal dotted spelling of a chain of bare
// Variable/DottedGet nodes ("N.M.S"), used to detect a fully-qualified
// call to a namespaced function (spec §8 scenario S4).
func dottedChainName(e ast.Expression) (string, bool) {
	switch v := e.(type) {
	case *ast.Variable:
		return v.Name, true
	case *ast.DottedGet:
		base, ok := dottedChainName(v.Target)
		if !ok {
			return "", false
		}
		return base + "." + v.Field, true
	}
	return "", false
}

// callfuncText lowers obj@.m(args) to obj.callfunc("m", args-or-invalid),
// per spec §4.10.
func (p *printer) callfuncText(c *ast.Callfunc) string {
	var arg string
	switch len(c.Args) {
	case 0:
		arg = "invalid"
	case 1:
		arg = p.expr(c.Args[0])
	default:
		parts := make([]string, len(c.Args))
		for i, a := range c.Args {
			parts[i] = p.expr(a)
		}
		arg = strings.Join(parts, ", ")
	}
	return p.expr(c.Target) + `.callfunc("` + c.MethodName + `", ` + arg + ")"
}

func (p *printer) sourceLiteralText(v *ast.SourceLiteral) string {
	switch v.LiteralKind {
	case ast.SourceLineNum:
		return strconv.Itoa(v.Range().Start.Line)
	case ast.SourceFunctionName:
		return `"` + escapeString(p.enclosingFunctionName()) + `"`
	case ast.SourcePkgPath:
		return `"` + escapeString(p.file.PkgPath) + `"`
	case ast.SourceFilePath:
		return `"` + escapeString(p.file.SrcPath) + `"`
	}
	return "invalid"
}

// enclosingFunctionName is a best-effort lookup; since the printer does
// not track a call stack of enclosing FunctionStatements, FUNCTION_NAME
// lowers to the name of the first function statement recorded in the
// file's References (namespaced functions included) when one exists.
func (p *printer) enclosingFunctionName() string {
	if p.file.References != nil && len(p.file.References.FunctionStatements) > 0 {
		return p.file.References.FunctionStatements[0].Name
	}
	return ""
}

func (p *printer) aaLiteral(v *ast.AALiteral) string {
	if len(v.Members) == 0 {
		return "{}"
	}
	parts := make([]string, len(v.Members))
	for i, m := range v.Members {
		parts[i] = `"` + escapeString(m.Key) + `": ` + p.expr(m.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// templateStringText lowers a template string with >=1 interpolation to
// a runtime concatenation helper call, per spec §4.10.
func (p *printer) templateStringText(v *ast.TemplateString) string {
	if len(v.Interpolations) == 0 {
		var sb strings.Builder
		for _, q := range v.Quasis {
			sb.WriteString(q.Text)
		}
		return `"` + escapeString(sb.String()) + `"`
	}
	var parts []string
	for i, q := range v.Quasis {
		if q.Text != "" {
			parts = append(parts, `"`+escapeString(q.Text)+`"`)
		}
		if i < len(v.Interpolations) {
			parts = append(parts, p.expr(v.Interpolations[i]))
		}
	}
	return "bslib_formatString([" + strings.Join(parts, ", ") + "])"
}

// ternaryText implements spec §4.10/§8 scenario S6: a direct helper for
// pure branches, or a scope-safe helper capturing every plain variable
// referenced by the ternary when either branch can mutate (contains a
// call, callfunc, or dotted get).
func (p *printer) ternaryText(v *ast.Ternary) string {
	if !mutates(v.Consequent) && !mutates(v.Alternate) {
		return "bslib_ternary(" + p.expr(v.Condition) + ", " + p.expr(v.Consequent) + ", " + p.expr(v.Alternate) + ")"
	}
	vars := collectVars(v.Condition, v.Consequent, v.Alternate)
	pairs := make([]string, len(vars))
	for i, name := range vars {
		pairs[i] = `"` + name + `": ` + name
	}
	scope := "{" + strings.Join(pairs, ", ") + "}"
	return "bslib_ternaryScoped(" + p.expr(v.Condition) + ", " + scope + ", " +
		"function(__bsc_scope)\n" + p.indent() + "    return " + p.expr(v.Consequent) + "\n" + p.indent() + "end function, " +
		"function(__bsc_scope)\n" + p.indent() + "    return " + p.expr(v.Alternate) + "\n" + p.indent() + "end function)"
}

// mutates reports whether e contains a call, callfunc, or dotted get
// anywhere in its tree (spec §4.10's ternary-lowering test).
func mutates(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.Call, *ast.Callfunc, *ast.DottedGet:
		_ = v
		return true
	case *ast.Binary:
		return mutates(v.Left) || mutates(v.Right)
	case *ast.Unary:
		return mutates(v.Operand)
	case *ast.Grouping:
		return mutates(v.Inner)
	case *ast.IndexedGet:
		return mutates(v.Target) || mutates(v.Index)
	case *ast.Ternary:
		return mutates(v.Condition) || mutates(v.Consequent) || mutates(v.Alternate)
	}
	return false
}

// collectVars gathers every bare-variable reference across exprs, in
// first-seen order, skipping identifiers used purely as a call callee.
func collectVars(exprs ...ast.Expression) []string {
	seen := map[string]bool{}
	var order []string
	var walk func(e ast.Expression)
	walk = func(e ast.Expression) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *ast.Variable:
			if !seen[v.Name] {
				seen[v.Name] = true
				order = append(order, v.Name)
			}
		case *ast.Call:
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.Callfunc:
			walk(v.Target)
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.DottedGet:
			walk(v.Target)
		case *ast.IndexedGet:
			walk(v.Target)
			walk(v.Index)
		case *ast.Binary:
			walk(v.Left)
			walk(v.Right)
		case *ast.Unary:
			walk(v.Operand)
		case *ast.Grouping:
			walk(v.Inner)
		case *ast.Ternary:
			walk(v.Condition)
			walk(v.Consequent)
			walk(v.Alternate)
		}
	}
	for _, e := range exprs {
		walk(e)
	}
	return order
}

func literalText(l *ast.Literal) string {
	switch l.LitKind {
	case ast.LiteralString:
		return `"` + escapeString(l.Text) + `"`
	case ast.LiteralInvalidValue:
		return "invalid"
	default:
		return l.Text
	}
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

func binOpText(op ast.BinaryOperator) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpIntDiv:
		return "\\"
	case ast.OpMod:
		return "mod"
	case ast.OpCaret:
		return "^"
	case ast.OpAnd:
		return "and"
	case ast.OpOr:
		return "or"
	case ast.OpLess:
		return "<"
	case ast.OpLessEqual:
		return "<="
	case ast.OpGreater:
		return ">"
	case ast.OpGreaterEqual:
		return ">="
	case ast.OpEqual:
		return "="
	case ast.OpNotEqual:
		return "<>"
	case ast.OpLShift:
		return "<<"
	case ast.OpRShift:
		return ">>"
	}
	return "?"
}
