package block

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRecyclesBuffers(t *testing.T) {
	var p = NewPool(512, 4)
	var a = p.Get()
	require.Len(t, a, 512)

	for i := range a {
		a[i] = 0xAB
	}
	p.Put(a)

	var b = p.Get()
	require.Len(t, b, 512)
	require.Equal(t, a, b) // Same backing array recycled.
}

func TestPoolDropsForeignSize(t *testing.T) {
	var p = NewPool(512, 4)
	p.Put(make([]byte, 4096)) // Should be silently dropped, not corrupt the pool.
	var b = p.Get()
	require.Len(t, b, 512)
}

func TestRingBackpressure(t *testing.T) {
	var r = NewRing(2)
	var ctx = context.Background()

	require.NoError(t, r.Push(ctx, Block{Number: 1}))
	require.NoError(t, r.Push(ctx, Block{Number: 2}))
	require.Equal(t, 0, r.Free())

	var timeoutCtx, cancel = context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := r.Push(timeoutCtx, Block{Number: 3})
	require.Error(t, err)
}

func TestRingFIFO(t *testing.T) {
	var r = NewRing(4)
	var ctx = context.Background()

	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, r.Push(ctx, Block{Number: i}))
	}
	for i := uint32(1); i <= 3; i++ {
		b, err := r.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, i, b.Number)
	}
}
