// Package symboltable implements the scoped name→type bindings of spec
// §3/§4.5 ("SymbolTable"), generalized from cue/ast's absence of a symbol
// table (CUE resolves identifiers structurally, not nominally) onto this
// language's class→namespace→project parent chain, in the spirit of how
// cue/build.Instance chains a file's imports into its package's lookup
// environment.
package symboltable

import "github.com/scriptcore/bsc/token"

// Type is a resolved type name ("string", "integer", "dynamic", a class's
// fully-qualified name, ...). Dynamic is the fallback the spec calls for
// whenever an ambiguous or cyclic reference can't be narrowed.
type Type string

// Dynamic is the type returned whenever entries disagree or a lazy type
// resolution hits a cycle (spec §3, §9 "Forward references").
const Dynamic Type = "dynamic"

// Resolver produces a Type, possibly lazily (spec §9: "a symbol whose
// defining declaration is textually later in the file is represented as a
// lazy-resolving type that captures a context and evaluates on demand").
type Resolver interface {
	Resolve(ctx *Context) Type
}

// Concrete is a Resolver that always returns the same Type.
type Concrete Type

func (c Concrete) Resolve(*Context) Type { return Type(c) }

// Lazy wraps a deferred resolution keyed by a cycle-detection Key. Fn is
// invoked at most once per Resolve call chain; a Key already being
// resolved higher up the call stack yields Dynamic instead of recursing
// forever.
type Lazy struct {
	Key string
	Fn  func(ctx *Context) Type
}

func (l *Lazy) Resolve(ctx *Context) Type {
	if ctx == nil {
		ctx = NewContext()
	}
	if ctx.visiting[l.Key] {
		return Dynamic
	}
	ctx.visiting[l.Key] = true
	defer delete(ctx.visiting, l.Key)
	return l.Fn(ctx)
}

// Context threads cycle-detection state through a chain of lazy-type
// resolutions (spec §9: "evaluators must detect and break cycles").
type Context struct {
	visiting map[string]bool
}

func NewContext() *Context { return &Context{visiting: map[string]bool{}} }

// Entry is one binding for a name: the originally-cased spelling, the
// declaration range, and its (possibly lazy) type, per spec §3.
type Entry struct {
	OriginalName string
	Range        token.Range
	Type         Resolver
}

// Table is a scoped lowercase-name → []Entry map with parent-chain
// lookup, per spec §3/§4.5 ("a table whose parent is the class's
// enclosing namespace table, which in turn parents into the project
// symbol table").
type Table struct {
	parent  *Table
	entries map[string][]Entry
}

func New() *Table {
	return &Table{entries: map[string][]Entry{}}
}

// SetParent assigns the table this one falls back to when a lookup with
// searchParent=true misses locally.
func (t *Table) SetParent(parent *Table) { t.parent = parent }

func (t *Table) Parent() *Table { return t.parent }

// AddSymbol records one more binding for name; a name may accumulate
// several entries with differing inferred types (spec §3).
func (t *Table) AddSymbol(name string, rng token.Range, typ Resolver) {
	lower := lowercase(name)
	t.entries[lower] = append(t.entries[lower], Entry{OriginalName: name, Range: rng, Type: typ})
}

// HasSymbol reports whether name is bound in this table, optionally
// searching the parent chain.
func (t *Table) HasSymbol(name string, searchParent bool) bool {
	_, ok := t.GetSymbol(name, searchParent)
	return ok
}

// GetSymbol returns every entry recorded for name. When searchParent is
// true and this table has no local entries, the lookup walks up the
// parent chain, stopping at the first table with a binding.
func (t *Table) GetSymbol(name string, searchParent bool) ([]Entry, bool) {
	lower := lowercase(name)
	for table := t; table != nil; table = table.parent {
		if es, ok := table.entries[lower]; ok && len(es) > 0 {
			return es, true
		}
		if !searchParent {
			break
		}
	}
	return nil, false
}

// GetSymbolType implements spec §3's resolution rule: a single entry's
// type is returned outright; with two or more entries, the type is
// returned only if every entry agrees, otherwise Dynamic. lazyCtx may be
// nil, in which case a fresh Context is used for this call only.
func (t *Table) GetSymbolType(name string, searchParent bool, lazyCtx *Context) Type {
	entries, ok := t.GetSymbol(name, searchParent)
	if !ok || len(entries) == 0 {
		return Dynamic
	}
	if lazyCtx == nil {
		lazyCtx = NewContext()
	}
	first := entries[0].Type.Resolve(lazyCtx)
	if len(entries) == 1 {
		return first
	}
	for _, e := range entries[1:] {
		if e.Type.Resolve(lazyCtx) != first {
			return Dynamic
		}
	}
	return first
}

// MergeFrom copies every entry of other into t, keyed by the same
// lowercase names.
func (t *Table) MergeFrom(other *Table) {
	if other == nil {
		return
	}
	for lower, es := range other.entries {
		t.entries[lower] = append(t.entries[lower], es...)
	}
}

func lowercase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
