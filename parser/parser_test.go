package parser_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/ast"
	"github.com/scriptcore/bsc/lexer"
	"github.com/scriptcore/bsc/parser"
)

func parse(t *testing.T, src string, mode parser.Mode) *parser.Result {
	t.Helper()
	toks := lexer.New([]byte(src), lexer.Options{}).Scan()
	return parser.Parse(toks, mode)
}

func TestParseFunctionStatementWithParams(t *testing.T) {
	res := parse(t, `function add(a as integer, b = 2)
  return a + b
end function
`, parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	qt.Assert(t, qt.HasLen(res.References.FunctionStatements, 1))
	fn := res.References.FunctionStatements[0]
	qt.Assert(t, qt.Equals(fn.Name, "add"))
	qt.Assert(t, qt.HasLen(fn.Params, 2))
	qt.Assert(t, qt.IsTrue(fn.Params[1].IsOptional))
}

func TestParseNamespaceWithFunction(t *testing.T) {
	res := parse(t, `namespace Sound.Fx
  function Play()
  end function
end namespace
`, parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	qt.Assert(t, qt.HasLen(res.References.NamespaceStatements, 1))
	qt.Assert(t, qt.Equals(res.References.NamespaceStatements[0].Name(), "Sound.Fx"))
}

func TestParseClassLowersFieldsAndMethods(t *testing.T) {
	res := parse(t, `class Duck
  public name as string
  private override function quack()
    print "quack"
  end function
end class
`, parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	qt.Assert(t, qt.HasLen(res.References.ClassStatements, 1))
	cls := res.References.ClassStatements[0]
	qt.Assert(t, qt.HasLen(cls.Fields, 1))
	qt.Assert(t, qt.HasLen(cls.Methods, 1))
	qt.Assert(t, qt.IsTrue(cls.Methods[0].IsOverride))
	qt.Assert(t, cls.Methods[0].Access == ast.Private)
}

func TestClassFeaturesRejectedInClassicMode(t *testing.T) {
	res := parse(t, "class Duck\nend class\n", parser.Classic)
	qt.Assert(t, qt.Not(qt.HasLen(res.Diagnostics, 0)))
}

func TestTernaryRejectedInClassicMode(t *testing.T) {
	res := parse(t, "x = true ? 1 : 2\n", parser.Classic)
	qt.Assert(t, qt.Not(qt.HasLen(res.Diagnostics, 0)))
}

func TestTernaryAcceptedInExtendedMode(t *testing.T) {
	res := parse(t, "x = true ? 1 : 2\n", parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	qt.Assert(t, qt.HasLen(res.References.AssignmentStatements, 1))
	_, ok := res.References.AssignmentStatements[0].Value.(*ast.Ternary)
	qt.Assert(t, qt.IsTrue(ok))
}

func TestImportMustBeAtTopOfFile(t *testing.T) {
	res := parse(t, "x = 1\nimport \"pkg:/foo.bs\"\n", parser.Extended)
	qt.Assert(t, qt.Not(qt.HasLen(res.Diagnostics, 0)))
}

func TestDottedSetParsesAsAssignmentTarget(t *testing.T) {
	res := parse(t, "m.top.value = 5\n", parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	qt.Assert(t, qt.HasLen(res.Body.Statements, 1))
	set, ok := res.Body.Statements[0].(*ast.DottedSet)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(set.Field, "value"))
}

func TestIfElseIfElseChain(t *testing.T) {
	res := parse(t, `if a then
  print 1
else if b then
  print 2
else
  print 3
end if
`, parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	ifStmt := res.Body.Statements[0].(*ast.If)
	elseIf, ok := ifStmt.Else.(*ast.If)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, elseIf.Else != nil)
}

func TestCallfuncLowersToMethodCallNode(t *testing.T) {
	res := parse(t, `node@.doSomething(1, 2)
`, parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	es := res.Body.Statements[0].(*ast.ExpressionStatement)
	cf, ok := es.Expression.(*ast.Callfunc)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(cf.MethodName, "doSomething"))
	qt.Assert(t, qt.HasLen(cf.Args, 2))
}

func TestTemplateStringSplitsQuasisAndInterpolations(t *testing.T) {
	res := parse(t, "x = `hello ${name}!`\n", parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	a := res.References.AssignmentStatements[0]
	ts, ok := a.Value.(*ast.TemplateString)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(ts.Quasis, 2))
	qt.Assert(t, qt.HasLen(ts.Interpolations, 1))
	qt.Assert(t, qt.Equals(ts.Quasis[0].Text, "hello "))
}

func TestForEachLoop(t *testing.T) {
	res := parse(t, `for each item in collection
  print item
end for
`, parser.Extended)
	qt.Assert(t, qt.HasLen(res.Diagnostics, 0))
	fe, ok := res.Body.Statements[0].(*ast.ForEach)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(fe.ItemName, "item"))
}

func TestTryCatchRequiresExtendedMode(t *testing.T) {
	res := parse(t, "try\n  x = 1\ncatch e\n  print e\nend try\n", parser.Classic)
	qt.Assert(t, qt.Not(qt.HasLen(res.Diagnostics, 0)))
}
