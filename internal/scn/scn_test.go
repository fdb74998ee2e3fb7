package scn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointLess(t *testing.T) {
	require.True(t, Point{Scn: 99, SubScn: 5}.Less(Point{Scn: 100, SubScn: 0}))
	require.True(t, Point{Scn: 100, SubScn: 0}.Less(Point{Scn: 100, SubScn: 1}))
	require.False(t, Point{Scn: 100, SubScn: 1}.Less(Point{Scn: 100, SubScn: 1}))
	require.False(t, Point{Scn: 101}.Less(Point{Scn: 100, SubScn: 9}))
}

func TestDbaPacking(t *testing.T) {
	var d = NewDba(7, 12345)
	require.Equal(t, uint16(7), d.File())
	require.Equal(t, uint32(12345), d.Block())
}

func TestXidZero(t *testing.T) {
	require.True(t, Xid{}.IsZero())
	require.False(t, Xid{Usn: 1}.IsZero())
}
