package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlags256BitOps(t *testing.T) {
	var f Flags256
	f.SetBit(0)
	f.SetBit(64)
	f.SetBit(255)
	require.True(t, f.HasBit(0))
	require.True(t, f.HasBit(64))
	require.True(t, f.HasBit(255))
	require.False(t, f.HasBit(1))
}

func TestFlags256AddCarries(t *testing.T) {
	var a = Flags256{^uint64(0), 0, 0, 0}
	var b = Flags256{1, 0, 0, 0}
	var sum = a.Add(b)
	require.Equal(t, Flags256{0, 1, 0, 0}, sum)
}

func TestFlags256Cmp(t *testing.T) {
	var a = Flags256{0, 0, 0, 1}
	var b = Flags256{^uint64(0), ^uint64(0), ^uint64(0), 0}
	require.Equal(t, 1, a.Cmp(b))
	require.Equal(t, -1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(a))
}
