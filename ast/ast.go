// Package ast defines the two disjoint AST sum types (Statement,
// Expression) from spec §3/§4.3, plus the Kind discriminator and the
// bitmask-driven Walker from spec §4.4/§9 ("efficient discriminator ...
// table lookup, not string comparisons"). It is grounded on cue/ast's
// tagged-interface AST, generalized from CUE's single expression grammar
// to this language's disjoint statement/expression grammars, and on
// cue/ast/walk.go's recursive walker, extended with in-place child
// replacement (spec §4.4).
package ast

import "github.com/scriptcore/bsc/token"

// Kind is the per-variant integer discriminator spec §9 calls for, so the
// visitor factory (see TypedVisitor) compiles to a table lookup.
type Kind int

const (
	KindInvalid Kind = iota

	// Statements
	KindBody
	KindAssignment
	KindBlock
	KindExpressionStatement
	KindCommentStatement
	KindExitFor
	KindExitWhile
	KindFunctionStatement
	KindIf
	KindIncrement
	KindPrint
	KindGoto
	KindLabel
	KindReturn
	KindEnd
	KindStop
	KindFor
	KindForEach
	KindWhile
	KindDottedSet
	KindIndexedSet
	KindLibrary
	KindNamespace
	KindImport
	KindClass
	KindClassMethod
	KindClassField
	KindThrow
	KindTryCatch
	KindCatch
	KindDim
	KindContinue
	KindAnnotation

	kindStatementEnd

	// Expressions
	KindBinary
	KindCall
	KindFunctionExpression
	KindNamespacedVariableName
	KindDottedGet
	KindXmlAttributeGet
	KindIndexedGet
	KindGrouping
	KindLiteral
	KindEscapedCharCodeLiteral
	KindArrayLiteral
	KindAALiteral
	KindUnary
	KindVariable
	KindSourceLiteral
	KindNew
	KindCallfunc
	KindTemplateStringQuasi
	KindTemplateString
	KindTaggedTemplateString
	KindTernary
	KindFunctionParameter
	KindCommentExpression
)

// IsStatement reports whether k identifies a Statement variant.
func (k Kind) IsStatement() bool { return k > KindInvalid && k < kindStatementEnd }

// IsExpression reports whether k identifies an Expression variant.
func (k Kind) IsExpression() bool { return k > kindStatementEnd }

// Node is the common supertype of Statement and Expression, matching
// spec §3: "each carrying a range and a visitMode tag".
type Node interface {
	Kind() Kind
	Range() token.Range
	VisitMode() VisitMode
	// Walk invokes visitor on each owned child field selected by
	// options.WalkMode, per spec §3/§4.4.
	Walk(v Visitor, options WalkOptions)
}

// Statement is implemented by every statement AST variant in spec §4.3.
type Statement interface {
	Node
	statementNode()
}

// Expression is implemented by every expression AST variant in spec §4.3.
type Expression interface {
	Node
	expressionNode()
}

// VisitMode tells the walker whether a node should itself be offered to
// the visitor, descended into, both, or neither — the teacher's walker
// (cue/ast) always does both; this language's walker needs the distinction
// because Comment nodes, for instance, are walkable but some call sites
// want to skip them (spec §9: "walk and visit bits ... kept independent").
type VisitMode int

const (
	VisitAndWalk VisitMode = iota
	VisitOnly
	WalkOnly
	SkipEntirely
)

// base carries the fields common to every node via composition, per spec
// §9 ("avoid deep inheritance: use composition for shared fields"). It
// intentionally implements neither statementNode nor expressionNode: those
// markers are added separately (stmtMarker / exprMarker) so the two sum
// types stay disjoint — a type assertion to Statement must never succeed
// for an Expression value, and vice versa.
type base struct {
	rng  token.Range
	mode VisitMode
}

func (b base) Range() token.Range { return b.rng }
func (b base) VisitMode() VisitMode {
	if b.mode == 0 {
		return VisitAndWalk
	}
	return b.mode
}

// stmtMarker/exprMarker are embedded alongside base to make a concrete
// type satisfy exactly one of Statement or Expression.
type stmtMarker struct{}

func (stmtMarker) statementNode() {}

type exprMarker struct{}

func (exprMarker) expressionNode() {}
