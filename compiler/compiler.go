// Package compiler post-processes compiled units so they can be
// serialized and later loaded without source text: procedure definitions
// whose words are all literals are compiled down to nested units, shared
// body strings are untangled from the literal pool, and the definition
// sites are rewritten to call the loader's procedure command.
package compiler

import (
	"github.com/rs/zerolog"

	"github.com/tcltk-depot/tclcompiler/bytecode"
)

// Compiler drives the post-processing passes. It is stateless across
// compilations; per-compilation state lives in the Context.
type Compiler struct {
	host   Host
	logger zerolog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithHost sets the front-end compiler used for scripts and procedure
// bodies.
func WithHost(h Host) Option {
	return func(c *Compiler) { c.host = h }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New returns a Compiler with the given options applied.
func New(opts ...Option) *Compiler {
	c := &Compiler{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles a script through the host front end and rewrites the
// resulting unit. The returned unit is ready for serialization.
func (c *Compiler) Compile(ctx *Context, source string) (*bytecode.Unit, error) {
	if c.host == nil {
		return nil, NewError(ErrInvariant, "no host front end configured")
	}
	recorder := &siteRecorder{}
	u, err := c.host.Compile(ctx, source, recorder)
	if err != nil {
		return nil, err
	}
	if err := c.Rewrite(ctx, u, recorder.sites); err != nil {
		return nil, err
	}
	return u, nil
}

// Rewrite runs the post-processing passes on one unit: site matching,
// reference counting, body-slot resolution, body compilation, and code
// patching. Units loaded from serialized form are returned unchanged.
func (c *Compiler) Rewrite(ctx *Context, u *bytecode.Unit, sites []Site) error {
	if u.Precompiled {
		return nil
	}
	matched, err := matchProcSites(u, sites)
	if err != nil {
		return err
	}
	c.logger.Debug().
		Str("unit", u.ID).
		Int("sites", len(sites)).
		Int("matched", len(matched)).
		Msg("matched procedure definitions")
	if len(matched) == 0 {
		return nil
	}

	refs, err := countReferences(u, matched)
	if err != nil {
		return err
	}
	slots, err := resolveBodySlots(ctx, u, matched, refs)
	if err != nil {
		return err
	}

	bodies := make([]*bytecode.ProcBody, len(matched))
	for i, s := range matched {
		name := u.Literals[s.nameIndex].(string)
		args := u.Literals[s.argsIndex].(string)
		body := u.Literals[s.bodyIndex].(string)
		ctx.Stats.NumProcs++
		pb, err := c.compileProcBody(ctx, name, args, body, s.site.SrcLine)
		if err != nil {
			return err
		}
		c.logger.Debug().
			Str("proc", name).
			Int("params", len(pb.Params)).
			Int("slot", slots[i]).
			Msg("compiled procedure body")
		bodies[i] = pb
	}
	return patchDefinitions(ctx, u, matched, slots, bodies)
}
