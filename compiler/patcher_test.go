package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/dis"
	"github.com/tcltk-depot/tclcompiler/op"
	"github.com/tcltk-depot/tclcompiler/tbc"
)

func makeBody() *bytecode.ProcBody {
	b := bytecode.New("body")
	b.Emit(op.Done)
	return &bytecode.ProcBody{Unit: b}
}

// fillPool pads the pool so the next added literal lands at a wide index.
func fillPool(u *bytecode.Unit, n int) {
	for i := 0; i < n; i++ {
		u.AddLiteral(fmt.Sprintf("filler-%d", i))
	}
}

func TestPatchInPlace(t *testing.T) {
	u, site := buildProcUnit(false)
	matched, merr := matchProcSites(u, []Site{site})
	require.NoError(t, merr)
	require.Len(t, matched, 1)

	ctx := NewContext()
	lenBefore := u.CodeLen()
	err := patchDefinitions(ctx, u, matched, []int{3}, []*bytecode.ProcBody{makeBody()})
	require.NoError(t, err)

	// Small indices patch without growing the code.
	require.Equal(t, lenBefore, u.CodeLen())

	trampoline, found := ctx.Lookup(tbc.ProcCommandName)
	require.True(t, found)
	require.Equal(t, tbc.ProcCommandName, u.Literals[trampoline])
	require.Equal(t, trampoline, bytecode.GetUint1At(u.Code, 1))
	require.Equal(t, 3, bytecode.GetUint1At(u.Code, 7))
	require.IsType(t, &bytecode.ProcBody{}, u.Literals[3])
}

func TestPatchNoSites(t *testing.T) {
	u, _ := buildProcUnit(false)
	before := append([]byte(nil), u.Code...)
	litsBefore := len(u.Literals)

	require.NoError(t, patchDefinitions(NewContext(), u, nil, nil, nil))
	require.Equal(t, before, u.Code)
	require.Len(t, u.Literals, litsBefore)
}

func TestWidenPushAt(t *testing.T) {
	u := bytecode.New("test")
	u.Emit(op.Push1, 7)
	u.Emit(op.Push1, 9)
	u.Emit(op.Done)
	u.Commands = []bytecode.CmdLocation{
		{CodeOffset: 0, NumCodeBytes: 4},
	}
	u.ExceptRanges = []bytecode.ExceptRange{
		{Kind: bytecode.LoopRange, CodeOffset: 0, NumCodeBytes: 4,
			BreakOffset: 4, ContinueOffset: 2, CatchOffset: -1},
		{Kind: bytecode.CatchRange, CodeOffset: 2, NumCodeBytes: 2,
			BreakOffset: -1, ContinueOffset: -1, CatchOffset: 4},
	}

	widenPushAt(u, 0)

	require.Equal(t, []byte{
		byte(op.Push4), 0, 0, 0, 7,
		byte(op.Push1), 9,
		byte(op.Done),
	}, u.Code)

	// The containing command grows; structures after the shift move.
	require.Equal(t, 0, u.Commands[0].CodeOffset)
	require.Equal(t, 7, u.Commands[0].NumCodeBytes)

	require.Equal(t, 0, u.ExceptRanges[0].CodeOffset)
	require.Equal(t, 7, u.ExceptRanges[0].NumCodeBytes)
	require.Equal(t, 7, u.ExceptRanges[0].BreakOffset)
	require.Equal(t, 5, u.ExceptRanges[0].ContinueOffset)
	require.Equal(t, -1, u.ExceptRanges[0].CatchOffset)

	require.Equal(t, 5, u.ExceptRanges[1].CodeOffset)
	require.Equal(t, 2, u.ExceptRanges[1].NumCodeBytes)
	require.Equal(t, 7, u.ExceptRanges[1].CatchOffset)
}

func TestWidenPushAtFixesInstrumentationSpan(t *testing.T) {
	u := bytecode.New("test")
	start := u.Emit(op.StartCmd, 13, 1)
	u.Emit(op.Push1, 7)
	u.Emit(op.InvokeStk1, 1)
	u.Emit(op.Done)
	require.Equal(t, 0, start)

	widenPushAt(u, 9)

	instr, err := dis.Decode(u.Code, 0)
	require.NoError(t, err)
	require.Equal(t, 16, instr.Operands[0])
	require.Equal(t, op.Push4, op.Code(u.Code[9]))
}

func TestPatchWidensWithoutJumps(t *testing.T) {
	u, site := buildProcUnit(false)
	fillPool(u, 256)
	matched, merr := matchProcSites(u, []Site{site})
	require.NoError(t, merr)

	ctx := NewContext()
	lenBefore := u.CodeLen()
	err := patchDefinitions(ctx, u, matched, []int{3}, []*bytecode.ProcBody{makeBody()})
	require.NoError(t, err)

	trampoline, _ := ctx.Lookup(tbc.ProcCommandName)
	require.GreaterOrEqual(t, trampoline, 255)

	// Only the command-word push needed the wide form.
	require.Equal(t, lenBefore+widenDelta, u.CodeLen())
	require.Equal(t, op.Push4, op.Code(u.Code[0]))
	require.Equal(t, trampoline, bytecode.GetUint4At(u.Code, 1))

	// The body push moved by the shift but stayed narrow.
	require.Equal(t, op.Push1, op.Code(u.Code[9]))
	require.Equal(t, 3, bytecode.GetUint1At(u.Code, 10))
}

func TestPatchBatchWideningWithJump(t *testing.T) {
	u := bytecode.New("test")
	u.AddLiteral("proc")
	u.AddLiteral("p")
	u.AddLiteral("")
	u.AddLiteral("body")
	fillPool(u, 256)

	jumpAt := u.Emit(op.Jump1, 12)
	site := Site{CodeOffset: u.CodeLen(), SrcLine: 1}
	u.Emit(op.Push1, 0)
	u.Emit(op.Push1, 1)
	u.Emit(op.Push1, 2)
	u.Emit(op.Push1, 3)
	u.Emit(op.InvokeStk1, 4)
	doneAt := u.Emit(op.Done)
	require.Equal(t, 0, jumpAt)
	require.Equal(t, 12, doneAt)

	matched, merr := matchProcSites(u, []Site{site})
	require.NoError(t, merr)
	require.Len(t, matched, 1)

	ctx := NewContext()
	err := patchDefinitions(ctx, u, matched, []int{3}, []*bytecode.ProcBody{makeBody()})
	require.NoError(t, err)

	// Every narrow instruction was upgraded in the single rewrite.
	instructions, derr := dis.Disassemble(u)
	require.NoError(t, derr)
	for _, instr := range instructions {
		require.False(t, op.IsNarrow(instr.Opcode), "offset %d", instr.Offset)
	}

	// The jump still lands on the terminator.
	jump := instructions[0]
	require.Equal(t, op.Jump4, jump.Opcode)
	target, derr := dis.Decode(u.Code, jump.Offset+jump.Operands[0])
	require.NoError(t, derr)
	require.Equal(t, op.Done, target.Opcode)

	trampoline, _ := ctx.Lookup(tbc.ProcCommandName)
	cmdPush := instructions[1]
	require.Equal(t, op.Push4, cmdPush.Opcode)
	require.Equal(t, trampoline, cmdPush.Operands[0])
	require.IsType(t, &bytecode.ProcBody{}, u.Literals[3])
}

func TestPatchWideFormTouchesOnlyOperands(t *testing.T) {
	u := bytecode.New("test")
	u.AddLiteral("proc")
	u.AddLiteral("p")
	u.AddLiteral("")
	u.AddLiteral("body")
	fillPool(u, 256)

	u.Emit(op.Jump1, 22)
	site := Site{CodeOffset: 2, SrcLine: 1}
	u.Emit(op.Push4, 0)
	u.Emit(op.Push4, 1)
	u.Emit(op.Push4, 2)
	u.Emit(op.Push4, 3)
	u.Emit(op.InvokeStk1, 4)
	u.Emit(op.Done)

	matched, merr := matchProcSites(u, []Site{site})
	require.NoError(t, merr)
	require.Len(t, matched, 1)

	before := append([]byte(nil), u.Code...)
	err := patchDefinitions(NewContext(), u, matched, []int{3}, []*bytecode.ProcBody{makeBody()})
	require.NoError(t, err)

	// Already-wide pushes rewrite in place: nothing outside the two
	// 4-byte operand fields changes.
	require.Equal(t, len(before), len(u.Code))
	for i := range before {
		if (i >= 3 && i < 7) || (i >= 18 && i < 22) {
			continue
		}
		require.Equal(t, before[i], u.Code[i], "byte %d", i)
	}
}

func TestWidenAllRemapsExceptRanges(t *testing.T) {
	u := bytecode.New("test")
	u.Emit(op.Push1, 0)       // 0, widens
	u.Emit(op.BeginCatch4, 0) // 2
	u.Emit(op.Push1, 1)       // 7, widens
	u.Emit(op.EndCatch)       // 9
	u.Emit(op.Done)           // 10
	u.ExceptRanges = []bytecode.ExceptRange{
		{Kind: bytecode.CatchRange, CodeOffset: 7, NumCodeBytes: 2,
			BreakOffset: -1, ContinueOffset: -1, CatchOffset: 10},
	}
	u.Commands = []bytecode.CmdLocation{{CodeOffset: 0, NumCodeBytes: 10}}

	_, err := widenAll(u)
	require.NoError(t, err)

	// The range starts at the widened push, so it both moves and grows.
	require.Equal(t, 10, u.ExceptRanges[0].CodeOffset)
	require.Equal(t, 5, u.ExceptRanges[0].NumCodeBytes)
	require.Equal(t, -1, u.ExceptRanges[0].BreakOffset)
	require.Equal(t, 16, u.ExceptRanges[0].CatchOffset)
	require.Equal(t, 0, u.Commands[0].CodeOffset)
	require.Equal(t, 16, u.Commands[0].NumCodeBytes)
}

func TestWidenAllRemapsInstrumentation(t *testing.T) {
	u := bytecode.New("test")
	u.Emit(op.StartCmd, 13, 1) // 0
	u.Emit(op.Push1, 0)        // 9, widens
	u.Emit(op.InvokeStk1, 1)   // 11
	u.Emit(op.Done)            // 13

	_, err := widenAll(u)
	require.NoError(t, err)

	instr, derr := dis.Decode(u.Code, 0)
	require.NoError(t, derr)
	require.Equal(t, 16, instr.Operands[0])
}
