package reader

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/block"
	"github.com/openlogreplicator/analyzer/internal/config"
)

// memSource is an in-memory Source used to drive the Reader in tests
// without touching the filesystem.
type memSource struct {
	data []byte
}

func (m *memSource) Size(context.Context) (int64, error) { return int64(len(m.data)), nil }
func (m *memSource) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}
func (m *memSource) Close() error { return nil }

func buildHeaderBlock(blockSize int, resetlogs, activation uint32, numBlocks uint32) []byte {
	var buf = make([]byte, blockSize)
	buf[0x15] = map[int]byte{512: 0, 1024: 2, 4096: 3}[blockSize]
	binary.BigEndian.PutUint32(buf[0x14:0x18], 0x13000000)
	binary.BigEndian.PutUint32(buf[0x24:0x28], resetlogs)
	binary.BigEndian.PutUint32(buf[0x28:0x2C], activation)
	binary.BigEndian.PutUint32(buf[0x2C:0x30], numBlocks)
	return buf
}

func TestOpenDetectsBlockSizeAndValidates(t *testing.T) {
	var data = buildHeaderBlock(4096, 7, 3, 10)
	// Pad out so Size() != 0 covers more than the header block.
	data = append(data, make([]byte, 4096*9)...)

	var cfg = config.Config{DisableChecks: config.DisableChecksBlockSum}
	var r = New(cfg, &memSource{data: data}, block.NewRing(4), block.NewPool(4096, 2), 1, 7, 3, false)

	outcome, err := r.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, Ok, outcome)
	require.Equal(t, 4096, r.header.BlockSize)
}

func TestOpenDetectsOverwrite(t *testing.T) {
	var data = buildHeaderBlock(512, 7, 3, 4)
	data = append(data, make([]byte, 512*3)...)

	var cfg = config.Config{DisableChecks: config.DisableChecksBlockSum}
	var r = New(cfg, &memSource{data: data}, block.NewRing(4), block.NewPool(512, 2), 1, 99, 99, false)

	outcome, err := r.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, Overwritten, outcome)
}

func TestOpenEmpty(t *testing.T) {
	var cfg = config.Config{}
	var r = New(cfg, &memSource{data: nil}, block.NewRing(4), block.NewPool(512, 2), 1, 7, 3, false)

	outcome, err := r.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, Empty, outcome)
}

func TestRunStreamsBlocksThenFinishes(t *testing.T) {
	var data = buildHeaderBlock(512, 7, 3, 3)
	data = append(data, make([]byte, 512*2)...)

	var cfg = config.Config{DisableChecks: config.DisableChecksBlockSum}
	var ring = block.NewRing(8)
	var r = New(cfg, &memSource{data: data}, ring, block.NewPool(512, 2), 1, 7, 3, false)

	outcome, err := r.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, Ok, outcome)

	ctx := context.Background()
	outcome, err = r.Run(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, Finished, outcome)

	b1, err := ring.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), b1.Number)
	b2, err := ring.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(2), b2.Number)
}

func TestXorFoldChecksumSelfConsistent(t *testing.T) {
	var buf = make([]byte, 512)
	for i := range buf {
		buf[i] = byte(i * 37)
	}
	var sum = xorFoldChecksum(buf, 14)
	binary.LittleEndian.PutUint16(buf[14:16], sum)
	require.Equal(t, sum, xorFoldChecksum(buf, 14))
}
