package compiler

import (
	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/dis"
	"github.com/tcltk-depot/tclcompiler/op"
)

// refInfo tracks how a pool entry is used across the unit's code.
type refInfo struct {
	// refs is the number of push instructions naming the entry.
	refs int

	// procRefs is how many of those pushes are the body word of a
	// rewritable procedure definition.
	procRefs int

	// consumed marks an entry already claimed by one definition's body.
	// Later definitions sharing the entry must duplicate it.
	consumed bool
}

// countReferences scans the full instruction stream and builds a usage
// record for every pool entry pushed anywhere in the unit. The matched
// sites contribute the body-word counts.
func countReferences(u *bytecode.Unit, sites []procSite) (map[int]*refInfo, error) {
	refs := make(map[int]*refInfo)
	get := func(index int) *refInfo {
		r, ok := refs[index]
		if !ok {
			r = &refInfo{}
			refs[index] = r
		}
		return r
	}

	for offset := 0; offset < len(u.Code); {
		instr, err := dis.Decode(u.Code, offset)
		if err != nil {
			return nil, NewErrorf(ErrInvariant, "reference scan: %v", err)
		}
		if instr.Opcode == op.Push1 || instr.Opcode == op.Push4 {
			get(instr.Operands[0]).refs++
		}
		offset += instr.Size
	}

	for _, s := range sites {
		get(s.bodyIndex).procRefs++
	}
	return refs, nil
}
