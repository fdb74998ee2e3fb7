package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordMarshalRoundTrip(t *testing.T) {
	var r = Record{Database: "orcl", Scn: 12345, Resetlogs: 1, Activation: 2}
	data, err := r.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, r, got)
	require.Equal(t, "orcl-chkpt", r.Key())
}

func TestFileStoreRoundTrip(t *testing.T) {
	var store, err = NewFileStore(t.TempDir())
	require.NoError(t, err)

	var ctx = context.Background()
	_, ok, err := store.Read(ctx, "orcl-chkpt", 0)
	require.NoError(t, err)
	require.False(t, ok)

	var r = Record{Database: "orcl", Scn: 99}
	require.NoError(t, Save(ctx, store, r))

	got, ok, err := Load(ctx, store, "orcl")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, r, got)

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Contains(t, names, "orcl-chkpt")

	require.NoError(t, store.Drop(ctx, "orcl-chkpt"))
	_, ok, err = store.Read(ctx, "orcl-chkpt", 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreRejectsPathEscape(t *testing.T) {
	var store, err = NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, _, err = store.Read(context.Background(), "../escape", 0)
	require.Error(t, err)
}
