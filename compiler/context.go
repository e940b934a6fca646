package compiler

import (
	"github.com/gofrs/uuid"

	"github.com/tcltk-depot/tclcompiler/bytecode"
)

// Stats counts the work done across one compilation, nested bodies
// included.
type Stats struct {
	NumProcs          int
	NumCompiledBodies int
	NumUnsharedBodies int
	NumUnshares       int
}

// Context carries the state shared between a compilation and the nested
// body compilations it triggers: the literal deduplication table for the
// unit currently being built, and the cumulative statistics. A Context is
// not safe for concurrent use; independent compilations should use
// independent contexts.
type Context struct {
	shared map[any]int
	Stats  Stats
}

// NewContext returns a context with an empty deduplication table.
func NewContext() *Context {
	return &Context{shared: make(map[any]int)}
}

// SharedIndex returns the pool index for a literal value, reusing an
// existing entry when the value was interned before and appending a new
// one otherwise.
func (c *Context) SharedIndex(u *bytecode.Unit, v any) int {
	if idx, ok := c.shared[v]; ok {
		return idx
	}
	idx := u.AddLiteral(v)
	c.shared[v] = idx
	return idx
}

// Lookup reports whether a value is currently interned and at which index.
func (c *Context) Lookup(v any) (int, bool) {
	idx, ok := c.shared[v]
	return idx, ok
}

// Hide removes a value from the deduplication table without touching the
// pool. Later pushes of the same value get a fresh slot.
func (c *Context) Hide(v any) {
	delete(c.shared, v)
}

// Isolated runs fn with a fresh deduplication table and restores the
// previous table afterward. Nested body compilations run isolated so
// their literals never intern against the enclosing unit's pool.
func (c *Context) Isolated(fn func() error) error {
	saved := c.shared
	c.shared = make(map[any]int)
	defer func() { c.shared = saved }()
	return fn()
}

// NewUnitID returns a fresh identifier for a compiled unit.
func (c *Context) NewUnitID() string {
	return uuid.Must(uuid.NewV4()).String()
}
