package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tcltk-depot/tclcompiler/bytecode"
)

func TestSharedIndex(t *testing.T) {
	ctx := NewContext()
	u := bytecode.New("test")

	require.Equal(t, 0, ctx.SharedIndex(u, "puts"))
	require.Equal(t, 1, ctx.SharedIndex(u, "hello"))
	require.Equal(t, 0, ctx.SharedIndex(u, "puts"))
	require.Len(t, u.Literals, 2)

	idx, ok := ctx.Lookup("hello")
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestHide(t *testing.T) {
	ctx := NewContext()
	u := bytecode.New("test")

	ctx.SharedIndex(u, "body")
	ctx.Hide("body")
	_, ok := ctx.Lookup("body")
	require.False(t, ok)

	// The next interning of the same value gets a fresh slot.
	require.Equal(t, 1, ctx.SharedIndex(u, "body"))
}

func TestIsolated(t *testing.T) {
	ctx := NewContext()
	outer := bytecode.New("outer")
	ctx.SharedIndex(outer, "shared")

	err := ctx.Isolated(func() error {
		inner := bytecode.New("inner")
		// The outer table is invisible here.
		_, ok := ctx.Lookup("shared")
		require.False(t, ok)
		require.Equal(t, 0, ctx.SharedIndex(inner, "shared"))
		return nil
	})
	require.NoError(t, err)

	idx, ok := ctx.Lookup("shared")
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

func TestIsolatedRestoresOnError(t *testing.T) {
	ctx := NewContext()
	u := bytecode.New("test")
	ctx.SharedIndex(u, "keep")

	boom := errors.New("boom")
	err := ctx.Isolated(func() error { return boom })
	require.ErrorIs(t, err, boom)

	_, ok := ctx.Lookup("keep")
	require.True(t, ok)
}

func TestNewUnitID(t *testing.T) {
	ctx := NewContext()
	a := ctx.NewUnitID()
	b := ctx.NewUnitID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}
