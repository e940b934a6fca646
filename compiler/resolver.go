package compiler

import (
	"github.com/tcltk-depot/tclcompiler/bytecode"
)

// resolveBodySlots decides, per matched site, which pool slot the compiled
// body will replace. The returned slice is aligned with sites.
//
// A body string referenced by only one push owns its slot outright; it is
// hidden from the deduplication table so a later identical literal gets a
// fresh entry instead of aliasing the compiled body. A body string whose
// every reference is a body word may keep its slot for the first
// definition that claims it; every other sharing configuration gets a
// duplicate slot, so pushes that expect the source string keep seeing a
// string.
func resolveBodySlots(ctx *Context, u *bytecode.Unit, sites []procSite, refs map[int]*refInfo) ([]int, error) {
	slots := make([]int, len(sites))
	duplicated := make(map[int]bool)

	for i, s := range sites {
		r, ok := refs[s.bodyIndex]
		if !ok || r.refs < 1 {
			return nil, NewErrorf(ErrInvariant,
				"no reference record for pool entry %d", s.bodyIndex)
		}

		body := u.Literals[s.bodyIndex].(string)
		switch {
		case r.refs < 2:
			ctx.Hide(body)
			slots[i] = s.bodyIndex

		case r.refs == r.procRefs && !r.consumed:
			ctx.Hide(body)
			r.consumed = true
			slots[i] = s.bodyIndex

		default:
			slots[i] = u.AddLiteral(body)
			ctx.Stats.NumUnshares++
			if !duplicated[s.bodyIndex] {
				duplicated[s.bodyIndex] = true
				ctx.Stats.NumUnsharedBodies++
			}
		}
	}
	return slots, nil
}
