package redolog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

func TestCursorNextField(t *testing.T) {
	var v = Vector{Layer: 11, SubCode: 2, Data: []byte{
		0x03, 0x00, 'a', 'b', 'c', 0x00, // length 3, payload "abc", pad 1.
		0x02, 0x00, 'x', 'y', 0x00, 0x00, // length 2, payload "xy", pad 2.
	}}
	var c = NewCursor(v)

	f1, err := c.NextField(0x0B0201)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), f1)

	f2, err := c.NextField(0x0B0202)
	require.NoError(t, err)
	require.Equal(t, []byte("xy"), f2)

	_, ok := c.NextFieldOpt(0x0B0203)
	require.False(t, ok)
}

func TestCursorTruncatedFieldIsError(t *testing.T) {
	var v = Vector{Data: []byte{0x05, 0x00, 'a'}}
	var c = NewCursor(v)
	_, err := c.NextField(1)
	require.Error(t, err)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
}

func TestLwnDrainOrdersByScnThenBlockThenOffset(t *testing.T) {
	var l = NewLwn(100, 0)
	require.NoError(t, l.Add(scn.Point{Scn: 100}, 5, 10, Vector{SubCode: 1}))
	require.NoError(t, l.Add(scn.Point{Scn: 100}, 2, 0, Vector{SubCode: 2}))
	require.NoError(t, l.Add(scn.Point{Scn: 100}, 2, 20, Vector{SubCode: 3}))

	var order []uint8
	require.NoError(t, l.Drain(func(point scn.Point, v Vector) error {
		order = append(order, v.SubCode)
		return nil
	}))
	require.Equal(t, []uint8{2, 3, 1}, order)
}

func TestMaxLwnChunksPolicy(t *testing.T) {
	require.Equal(t, 8, MaxLwnChunks(128))
	require.Equal(t, 1, MaxLwnChunks(1))
}

func TestSplitVectorsRejectsTruncatedHeader(t *testing.T) {
	_, err := splitVectors([]byte{0x01})
	require.Error(t, err)
}

func TestSplitVectorsParsesMultiple(t *testing.T) {
	var data = append([]byte{0x02, 0x00, 5, 4, 'h', 'i'}, []byte{0x01, 0x00, 11, 2, 'x'}...)
	vectors, err := splitVectors(data)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Equal(t, uint16(5)<<8|4, vectors[0].OpCode())
	require.Equal(t, []byte("hi"), vectors[0].Data)
	require.Equal(t, uint16(11)<<8|2, vectors[1].OpCode())
}
