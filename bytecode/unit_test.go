package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcltk-depot/tclcompiler/op"
)

func TestEmit(t *testing.T) {
	u := New("test")
	off := u.Emit(op.Push1, 3)
	require.Equal(t, 0, off)
	off = u.Emit(op.Push4, 0x01020304)
	require.Equal(t, 2, off)
	off = u.Emit(op.InvokeStk1, 2)
	require.Equal(t, 7, off)
	u.Emit(op.Done)

	require.Equal(t, []byte{
		byte(op.Push1), 3,
		byte(op.Push4), 1, 2, 3, 4,
		byte(op.InvokeStk1), 2,
		byte(op.Done),
	}, u.Code)
}

func TestEmitPushChoosesWidth(t *testing.T) {
	u := New("test")
	u.EmitPush(254)
	require.Equal(t, op.Push1, op.Code(u.Code[0]))
	u.EmitPush(255)
	require.Equal(t, op.Push4, op.Code(u.Code[2]))
	require.Equal(t, 255, GetUint4At(u.Code, 3))
}

func TestOperandAccess(t *testing.T) {
	code := []byte{0, 0xff, 0xff, 0xff, 0xfd, 0x80}
	require.Equal(t, -3, GetInt4At(code, 1))
	require.Equal(t, 0x80, GetUint1At(code, 5))
	require.Equal(t, -128, GetInt1At(code, 5))

	PutUint4At(code, 1, 300)
	require.Equal(t, 300, GetUint4At(code, 1))
	PutInt4At(code, 1, -300)
	require.Equal(t, -300, GetInt4At(code, 1))
}

func TestEmitPanicsOnBadOperandCount(t *testing.T) {
	u := New("test")
	require.Panics(t, func() { u.Emit(op.Push1) })
	require.Panics(t, func() { u.Emit(op.Code(200), 1) })
}

func TestAddLiteral(t *testing.T) {
	u := New("test")
	require.Equal(t, 0, u.AddLiteral("proc"))
	require.Equal(t, 1, u.AddLiteral(int64(42)))
	require.Equal(t, 2, u.AddLiteral(3.5))
	require.Len(t, u.Literals, 3)
}
