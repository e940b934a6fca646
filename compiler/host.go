package compiler

import "github.com/tcltk-depot/tclcompiler/bytecode"

// Site records where the host compiled a procedure definition command:
// the offset of the command's first instruction in the code buffer and
// the source line the command started on.
type Site struct {
	CodeOffset int
	SrcLine    int
}

// Listener receives notifications from the host compiler while it builds
// a unit. The compiler registers one to learn where procedure definition
// commands landed in the code stream.
type Listener interface {
	// ProcDefined is called once per compiled command whose first word is
	// the procedure definition command, with the code offset at which the
	// command's instructions begin and the command's source line.
	ProcDefined(codeOffset, srcLine int)
}

// Host is the front-end compiler that turns script text into a unit.
// Nested procedure bodies are compiled through the same interface, with
// a listener that collects any procedure definitions inside the body.
type Host interface {
	Compile(ctx *Context, source string, listener Listener) (*bytecode.Unit, error)
}

// siteRecorder is the Listener the compiler registers on each host
// compilation.
type siteRecorder struct {
	sites []Site
}

func (r *siteRecorder) ProcDefined(codeOffset, srcLine int) {
	r.sites = append(r.sites, Site{CodeOffset: codeOffset, SrcLine: srcLine})
}
