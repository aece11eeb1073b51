package ast

// WalkMode is a bitmask over the walker's independent walk/visit axes, per
// spec §4.4 and the open question in §9 ("keep them independent so a user
// can walk into children without visiting parents").
type WalkMode int

const (
	WalkStatements WalkMode = 1 << iota
	VisitStatements
	WalkExpressions
	VisitExpressions
	EnterChildFunctions
)

// AllWalkModes visits and descends into everything, including nested
// function bodies.
const AllWalkModes = WalkStatements | VisitStatements | WalkExpressions | VisitExpressions | EnterChildFunctions

// WalkOptions configures a traversal, per spec §4.4.
type WalkOptions struct {
	Mode   WalkMode
	Cancel CancelToken
}

// CancelToken lets a long walk be aborted between nodes, per spec §5
// ("the walker respects a cancellation token and returns without
// mutation").
type CancelToken interface {
	Cancelled() bool
}

// Visitor is offered every node the WalkOptions select. Returning a
// non-nil replacement of a compatible Kind swaps it into the parent field
// before continuing; the replacement is not itself re-visited in the same
// traversal, per spec §4.4 ("to prevent trivial loops"). descend controls
// whether Walk recurses into the (possibly just-replaced) node's own
// children.
type Visitor interface {
	Visit(n Node) (replacement Node, descend bool)
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(n Node) (Node, bool)

func (f VisitorFunc) Visit(n Node) (Node, bool) { return f(n) }

// TypedVisitor lets a caller register one handler per Kind of interest
// instead of a single type switch, per spec §4.4 ("A typed visitor factory
// dispatches by node kind"). Unregistered kinds fall through to Default,
// if set.
type TypedVisitor struct {
	handlers map[Kind]func(Node) (Node, bool)
	Default  func(Node) (Node, bool)
}

// NewTypedVisitor builds an empty dispatcher. On(kind, fn) registers a
// handler; the zero value (no handlers, no Default) always descends
// without replacement.
func NewTypedVisitor() *TypedVisitor {
	return &TypedVisitor{handlers: map[Kind]func(Node) (Node, bool){}}
}

// On registers fn for kind and returns the receiver for chaining.
func (t *TypedVisitor) On(kind Kind, fn func(Node) (Node, bool)) *TypedVisitor {
	t.handlers[kind] = fn
	return t
}

func (t *TypedVisitor) Visit(n Node) (Node, bool) {
	if fn, ok := t.handlers[n.Kind()]; ok {
		return fn(n)
	}
	if t.Default != nil {
		return t.Default(n)
	}
	return nil, true
}

func modeEnabled(mode WalkMode, want WalkMode) bool { return mode&want != 0 }

// cancelled checks opts.Cancel without allocating when it is nil.
func cancelled(o WalkOptions) bool { return o.Cancel != nil && o.Cancel.Cancelled() }

// visitNode applies the visitor to a single node per the Kind-appropriate
// walk/visit bits, overwriting *slot if the visitor supplies a
// replacement, and reports whether the walker should still descend into
// (the possibly-replaced) node's children.
func visitNode[N Node](slot *N, o WalkOptions, v Visitor) (descend bool) {
	n := *slot
	if n == nil || cancelled(o) {
		return false
	}
	mode := n.VisitMode()
	if mode == SkipEntirely {
		return false
	}

	var isStmt = n.Kind().IsStatement()
	visitWanted := (isStmt && modeEnabled(o.Mode, VisitStatements)) || (!isStmt && modeEnabled(o.Mode, VisitExpressions))
	walkWanted := (isStmt && modeEnabled(o.Mode, WalkStatements)) || (!isStmt && modeEnabled(o.Mode, WalkExpressions))

	if visitWanted && mode != WalkOnly {
		repl, desc := v.Visit(n)
		if repl != nil {
			if rn, ok := any(repl).(N); ok {
				*slot = rn
				// The freshly substituted node is never re-visited in
				// this traversal (spec §4.4), but its own children are
				// still eligible if the caller asked us to descend.
				if desc && walkWanted && mode != VisitOnly {
					rn.Walk(v, o)
				}
				return false
			}
		}
		if !desc {
			return false
		}
	}
	return walkWanted && mode != VisitOnly
}

// WalkChild visits and possibly descends into a single optional child
// field. Statement/Expression AST node Walk methods call this once per
// owned field; it is exported so AST nodes defined outside this package
// (none exist today, but spec §4.4 treats Walk as per-node) can reuse it.
func WalkChild[N Node](slot *N, v Visitor, o WalkOptions) {
	if visitNode(slot, o, v) {
		(*slot).Walk(v, o)
	}
}

// WalkChildren visits and possibly descends into each element of a slice
// of child nodes, supporting in-place element replacement.
func WalkChildren[N Node](list []N, v Visitor, o WalkOptions) {
	for i := range list {
		WalkChild(&list[i], v, o)
	}
}

// Walk is the external entry point: it starts the traversal with a node
// that has no parent slot to write a replacement into, matching spec
// §4.4's "every node exposes walk(visitor, options)" at the root.
func Walk(n Node, v Visitor, o WalkOptions) {
	if n == nil {
		return
	}
	root := n
	WalkChild(&root, v, o)
}
