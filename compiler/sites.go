package compiler

import (
	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/dis"
	"github.com/tcltk-depot/tclcompiler/op"
)

// procSite is one procedure definition whose shape the rewriter can
// handle: four literal pushes (command word, name, arguments, body)
// followed by an invoke of four stack values.
type procSite struct {
	site Site

	// Pool indices of the pushed words.
	cmdIndex  int
	nameIndex int
	argsIndex int
	bodyIndex int

	// Code offsets of the command-word push and the body push, the two
	// instructions the rewriter patches.
	cmdOffset  int
	bodyOffset int
}

// matchProcSites filters the recorded sites down to the ones matching
// the rewritable shape. A site that does not match the shape, such as a
// body read from a variable, is dropped: its definition runs dynamically
// and its body stays a plain string. A site that matches the shape but
// pushes a non-string name, argument list, or body word is corrupt input
// and fails the compilation.
func matchProcSites(u *bytecode.Unit, sites []Site) ([]procSite, error) {
	var matched []procSite
	for _, s := range sites {
		ps, ok, err := matchSite(u, s)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, ps)
		}
	}
	return matched, nil
}

func matchSite(u *bytecode.Unit, s Site) (procSite, bool, error) {
	pc := s.CodeOffset
	if pc < len(u.Code) && op.Code(u.Code[pc]) == op.StartCmd {
		pc += op.Size(op.StartCmd)
	}

	var indices [4]int
	var offsets [4]int
	for i := 0; i < 4; i++ {
		instr, err := dis.Decode(u.Code, pc)
		if err != nil {
			return procSite{}, false, nil
		}
		if instr.Opcode != op.Push1 && instr.Opcode != op.Push4 {
			return procSite{}, false, nil
		}
		indices[i] = instr.Operands[0]
		offsets[i] = pc
		pc += instr.Size
	}

	instr, err := dis.Decode(u.Code, pc)
	if err != nil {
		return procSite{}, false, nil
	}
	if instr.Opcode != op.InvokeStk1 && instr.Opcode != op.InvokeStk4 {
		return procSite{}, false, nil
	}
	if instr.Operands[0] != 4 {
		return procSite{}, false, nil
	}

	// The name, argument list, and body words must be plain strings for
	// the definition to be rewritable.
	wordNames := [...]string{"name", "argument list", "body"}
	for i, index := range indices[1:] {
		if index < 0 || index >= len(u.Literals) {
			return procSite{}, false, NewErrorf(ErrInvariant,
				"procedure definition at line %d: %s word names pool entry %d, pool has %d entries",
				s.SrcLine, wordNames[i], index, len(u.Literals))
		}
		if _, ok := u.Literals[index].(string); !ok {
			return procSite{}, false, NewErrorf(ErrInvariant,
				"procedure definition at line %d: %s word is not a string (pool entry %d holds %T)",
				s.SrcLine, wordNames[i], index, u.Literals[index])
		}
	}

	return procSite{
		site:       s,
		cmdIndex:   indices[0],
		nameIndex:  indices[1],
		argsIndex:  indices[2],
		bodyIndex:  indices[3],
		cmdOffset:  offsets[0],
		bodyOffset: offsets[3],
	}, true, nil
}
