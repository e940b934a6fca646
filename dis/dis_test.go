package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/op"
)

func TestDecode(t *testing.T) {
	u := bytecode.New("test")
	u.Emit(op.Push1, 7)
	u.Emit(op.Push4, 300)
	u.Emit(op.Jump1, -4)
	u.Emit(op.Done)

	instr, err := Decode(u.Code, 0)
	require.NoError(t, err)
	require.Equal(t, op.Push1, instr.Opcode)
	require.Equal(t, []int{7}, instr.Operands)
	require.Equal(t, 2, instr.Size)

	instr, err = Decode(u.Code, 2)
	require.NoError(t, err)
	require.Equal(t, op.Push4, instr.Opcode)
	require.Equal(t, []int{300}, instr.Operands)

	instr, err = Decode(u.Code, 7)
	require.NoError(t, err)
	require.Equal(t, op.Jump1, instr.Opcode)
	require.Equal(t, []int{-4}, instr.Operands)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{byte(op.Push1), 0}, 5)
	require.Error(t, err)

	_, err = Decode([]byte{250}, 0)
	require.ErrorContains(t, err, "undefined opcode")

	_, err = Decode([]byte{byte(op.Push4), 0, 0}, 0)
	require.ErrorContains(t, err, "truncated")
}

func TestDisassemble(t *testing.T) {
	u := bytecode.New("test")
	u.Emit(op.Push1, 0)
	u.Emit(op.InvokeStk1, 1)
	u.Emit(op.Pop)
	u.Emit(op.Done)

	instructions, err := Disassemble(u)
	require.NoError(t, err)
	require.Len(t, instructions, 4)
	require.Equal(t, []int{0, 2, 4, 5}, []int{
		instructions[0].Offset, instructions[1].Offset,
		instructions[2].Offset, instructions[3].Offset,
	})
}

func TestPrint(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	u := bytecode.New("test")
	u.AddLiteral("puts")
	u.Emit(op.Push1, 0)
	u.Emit(op.Jump1, 3)
	u.Emit(op.Done)

	var buf bytes.Buffer
	require.NoError(t, Print(u, &buf))

	out := buf.String()
	require.Contains(t, out, "push1")
	require.Contains(t, out, `"puts"`)
	require.Contains(t, out, "pc 5")
	require.Equal(t, 3, strings.Count(out, "\n"))
}
