package compiler

import (
	"sort"

	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/dis"
	"github.com/tcltk-depot/tclcompiler/op"
	"github.com/tcltk-depot/tclcompiler/tbc"
)

// widenDelta is how much larger the wide form of a push or jump is than
// the narrow form.
const widenDelta = 3

// patchDefinitions rewrites each matched definition so it recreates its
// procedure from the compiled body at load time: the command-word push is
// redirected at the loader's procedure command, the body push at the slot
// now holding the ProcBody. Pushes whose new index no longer fits the
// narrow form force a widening of the code buffer first.
func patchDefinitions(ctx *Context, u *bytecode.Unit, sites []procSite, slots []int, bodies []*bytecode.ProcBody) error {
	if len(sites) == 0 {
		return nil
	}

	trampoline := ctx.SharedIndex(u, tbc.ProcCommandName)
	for i := range sites {
		u.Literals[slots[i]] = bodies[i]
	}

	type patch struct {
		offset int
		index  int
	}
	patches := make([]patch, 0, 2*len(sites))
	for i, s := range sites {
		patches = append(patches, patch{s.cmdOffset, trampoline}, patch{s.bodyOffset, slots[i]})
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].offset < patches[j].offset })

	needWiden := false
	for _, p := range patches {
		if op.Code(u.Code[p.offset]) == op.Push1 && p.index >= 255 {
			needWiden = true
			break
		}
	}

	// When the unit contains jumps, growing one instruction at a time
	// would invalidate jump distances patch by patch. Widen everything in
	// one pass instead, so the remaining patches are plain in-place
	// operand writes.
	if needWiden && hasJumps(u) {
		remap, err := widenAll(u)
		if err != nil {
			return err
		}
		for i := range patches {
			patches[i].offset = remap(patches[i].offset)
		}
	}

	for i := 0; i < len(patches); i++ {
		p := patches[i]
		if op.Code(u.Code[p.offset]) == op.Push1 && p.index >= 255 {
			widenPushAt(u, p.offset)
			for j := i + 1; j < len(patches); j++ {
				if patches[j].offset > p.offset {
					patches[j].offset += widenDelta
				}
			}
		}
		if err := writePush(u, p.offset, p.index); err != nil {
			return err
		}
	}
	return nil
}

// writePush rewrites the operand of the push instruction at offset. The
// instruction must already be wide enough for the index.
func writePush(u *bytecode.Unit, offset, index int) error {
	switch op.Code(u.Code[offset]) {
	case op.Push1:
		if index >= 255 {
			return NewErrorf(ErrInvariant,
				"pool index %d does not fit narrow push at offset %d", index, offset)
		}
		u.Code[offset+1] = byte(index)
	case op.Push4:
		bytecode.PutUint4At(u.Code, offset+1, index)
	default:
		return NewErrorf(ErrInvariant,
			"expected push instruction at offset %d, found opcode %d", offset, u.Code[offset])
	}
	return nil
}

func hasJumps(u *bytecode.Unit) bool {
	for offset := 0; offset < len(u.Code); {
		code := op.Code(u.Code[offset])
		if op.IsJump(code) {
			return true
		}
		offset += op.Size(code)
	}
	return false
}

// widenPushAt converts the narrow push at offset to the wide form by
// shifting the tail of the code buffer. Command locations, exception
// ranges, and instrumentation spans covering the shift point grow;
// everything after it moves. Only callable on units without jumps.
func widenPushAt(u *bytecode.Unit, offset int) {
	index := bytecode.GetUint1At(u.Code, offset+1)

	// Instrumentation spans must be measured before the buffer moves.
	type spanFix struct {
		offset int
		length int
	}
	var fixes []spanFix
	for pc := 0; pc < len(u.Code); {
		code := op.Code(u.Code[pc])
		if code == op.StartCmd {
			length := bytecode.GetInt4At(u.Code, pc+1)
			if pc < offset && offset < pc+length {
				fixes = append(fixes, spanFix{pc, length + widenDelta})
			}
		}
		pc += op.Size(code)
	}

	u.Code = append(u.Code, 0, 0, 0)
	copy(u.Code[offset+5:], u.Code[offset+2:len(u.Code)-widenDelta])
	u.Code[offset] = byte(op.Widen(op.Code(u.Code[offset])))
	bytecode.PutUint4At(u.Code, offset+1, index)

	for _, f := range fixes {
		pc := f.offset
		if pc > offset {
			pc += widenDelta
		}
		bytecode.PutInt4At(u.Code, pc+1, f.length)
	}
	shiftLocations(u, offset, widenDelta)
}

// shiftLocations adjusts the command map and exception ranges for an
// insertion of by bytes inside the instruction at offset.
func shiftLocations(u *bytecode.Unit, offset, by int) {
	for i := range u.Commands {
		cmd := &u.Commands[i]
		switch {
		case cmd.CodeOffset > offset:
			cmd.CodeOffset += by
		case offset < cmd.CodeOffset+cmd.NumCodeBytes:
			cmd.NumCodeBytes += by
		}
	}
	for i := range u.ExceptRanges {
		er := &u.ExceptRanges[i]
		switch {
		case er.CodeOffset > offset:
			er.CodeOffset += by
		case offset < er.CodeOffset+er.NumCodeBytes:
			er.NumCodeBytes += by
		}
		if er.BreakOffset > offset {
			er.BreakOffset += by
		}
		if er.ContinueOffset > offset {
			er.ContinueOffset += by
		}
		if er.CatchOffset > offset {
			er.CatchOffset += by
		}
	}
}

// widenAll rewrites the whole code buffer with every narrow push and
// narrow jump in wide form, fixing jump distances and instrumentation
// spans for the accumulated growth. It returns the function mapping old
// code offsets to new ones.
func widenAll(u *bytecode.Unit) (func(int) int, error) {
	var points []int
	for offset := 0; offset < len(u.Code); {
		code := op.Code(u.Code[offset])
		size := op.Size(code)
		if size == 0 {
			return nil, NewErrorf(ErrInvariant, "undefined opcode %d at offset %d", code, offset)
		}
		if op.IsNarrow(code) {
			points = append(points, offset)
		}
		offset += size
	}
	remap := func(old int) int {
		if old < 0 {
			return old
		}
		return old + widenDelta*sort.SearchInts(points, old)
	}
	if len(points) == 0 {
		return remap, nil
	}

	newCode := make([]byte, 0, len(u.Code)+widenDelta*len(points))
	appendUint4 := func(v int) {
		newCode = append(newCode, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	for offset := 0; offset < len(u.Code); {
		instr, err := dis.Decode(u.Code, offset)
		if err != nil {
			return nil, NewErrorf(ErrInvariant, "widening rewrite: %v", err)
		}
		switch {
		case instr.Opcode == op.Push1:
			newCode = append(newCode, byte(op.Push4))
			appendUint4(instr.Operands[0])
		case op.IsJump(instr.Opcode):
			wide := instr.Opcode
			if op.IsNarrow(wide) {
				wide = op.Widen(wide)
			}
			target := offset + instr.Operands[0]
			newCode = append(newCode, byte(wide))
			appendUint4(remap(target) - remap(offset))
		case instr.Opcode == op.StartCmd:
			next := offset + instr.Operands[0]
			newCode = append(newCode, byte(op.StartCmd))
			appendUint4(remap(next) - remap(offset))
			appendUint4(instr.Operands[1])
		default:
			newCode = append(newCode, u.Code[offset:offset+instr.Size]...)
		}
		offset += instr.Size
	}
	u.Code = newCode

	for i := range u.Commands {
		cmd := &u.Commands[i]
		end := cmd.CodeOffset + cmd.NumCodeBytes
		cmd.CodeOffset = remap(cmd.CodeOffset)
		cmd.NumCodeBytes = remap(end) - cmd.CodeOffset
	}
	for i := range u.ExceptRanges {
		er := &u.ExceptRanges[i]
		end := er.CodeOffset + er.NumCodeBytes
		er.CodeOffset = remap(er.CodeOffset)
		er.NumCodeBytes = remap(end) - er.CodeOffset
		er.BreakOffset = remap(er.BreakOffset)
		er.ContinueOffset = remap(er.ContinueOffset)
		er.CatchOffset = remap(er.CatchOffset)
	}
	return remap, nil
}
