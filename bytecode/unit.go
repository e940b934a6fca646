// Package bytecode defines the in-memory representation of a compiled
// unit: an instruction byte stream, its literal pool, exception ranges,
// auxiliary data, and the per-command location map. Units are built by a
// host front end, rewritten by the compiler's post-processing passes, and
// serialized by the tbc package.
package bytecode

// Unit is one compiled code unit. The top-level script is a Unit; nested
// procedure bodies are Units owned by entries in the containing literal
// pool. A Unit is mutable: the post-processing passes grow the code buffer
// and rewrite operands in place.
type Unit struct {
	ID   string
	Code []byte

	// Literals holds the constant pool. Each entry is one of: int64,
	// float64, string, *Unit (nested bytecode), or *ProcBody. Anything
	// else is rejected by the serializer as an invariant violation.
	Literals []any

	ExceptRanges []ExceptRange
	AuxData      []any
	Commands     []CmdLocation

	MaxStackDepth  int
	MaxExceptDepth int

	// Precompiled marks a unit that was loaded from serialized form.
	// Compile returns such units unchanged.
	Precompiled bool

	// Source is the script text this unit was compiled from. Used only
	// for error reporting; never serialized.
	Source string
}

// New returns an empty unit with the given identifier.
func New(id string) *Unit {
	return &Unit{ID: id}
}

// ExceptRangeKind distinguishes loop ranges (break/continue targets) from
// catch ranges.
type ExceptRangeKind int

const (
	LoopRange ExceptRangeKind = iota
	CatchRange
)

// ExceptRange describes one exception range: the span of code it protects
// and the continuation offsets for the exceptions it handles. Offsets not
// relevant to the kind are -1.
type ExceptRange struct {
	Kind           ExceptRangeKind
	NestingLevel   int
	CodeOffset     int
	NumCodeBytes   int
	BreakOffset    int
	ContinueOffset int
	CatchOffset    int
}

// CmdLocation records where one top-level command landed in the code
// buffer and where it came from in the source text. The source fields are
// not serialized.
type CmdLocation struct {
	CodeOffset   int
	NumCodeBytes int
	SrcOffset    int
	NumSrcChars  int
	SrcLine      int
}

// VarFlags is the subset of local-variable flags that survives
// serialization.
type VarFlags int

const (
	VarArgument  VarFlags = 1 << 8
	VarTemporary VarFlags = 1 << 9
)

// Param is one formal parameter of a compiled procedure body. Default is
// nil when the parameter has no default value; otherwise it is a literal
// value (same closed set as Unit.Literals).
type Param struct {
	Name       string
	Default    any
	FrameIndex int
	Flags      VarFlags
}

// ProcBody packages a compiled procedure body with its parameter table.
// It takes the place of the body's source string in the enclosing unit's
// literal pool.
type ProcBody struct {
	Unit   *Unit
	Params []Param
}

// NumCompiledLocals returns the size of the body's local variable table.
// Parameters are the only compiled locals produced by this compiler.
func (p *ProcBody) NumCompiledLocals() int {
	return len(p.Params)
}

// JumptableInfo is the auxiliary data for a jump-table dispatch: string
// keys mapped to code offsets relative to the owning instruction.
type JumptableInfo struct {
	Targets map[string]int
}

// DictUpdateInfo is the auxiliary data for a structured-update command:
// the local variable indices written back on completion.
type DictUpdateInfo struct {
	VarIndices []int
}

// ForeachInfo is the auxiliary data for an iteration command: one list of
// loop variable indices per value list, plus the loop counter temporary.
type ForeachInfo struct {
	LoopCtTemp int
	VarLists   [][]int
}

// AddLiteral appends a value to the literal pool and returns its index.
// Deduplication is the caller's concern (see compiler.Context).
func (u *Unit) AddLiteral(v any) int {
	u.Literals = append(u.Literals, v)
	return len(u.Literals) - 1
}

// CodeLen returns the current length of the instruction stream in bytes.
func (u *Unit) CodeLen() int {
	return len(u.Code)
}
