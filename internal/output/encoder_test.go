package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/redolog"
	"github.com/openlogreplicator/analyzer/internal/scn"
	"github.com/openlogreplicator/analyzer/internal/txn"
)

func TestJSONEncoderSkipsNonDMLAndAssignsIncreasingIds(t *testing.T) {
	var e = NewJSONEncoder(nil, "")
	var tr = &txn.Transaction{
		Xid:       scn.Xid{Usn: 1, Slot: 1, Seq: 1},
		CommitScn: 42,
		Records: []redolog.RedoLogRecord{
			{Kind: redolog.KindUndo},
			{Kind: redolog.KindInsert, RowData: []byte("a")},
			{Kind: redolog.KindUpdate, RowData: []byte("b")},
		},
	}

	msgs, err := e.Encode(tr)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Less(t, msgs[0].Id, msgs[1].Id)

	var ev event
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ev))
	require.Equal(t, "I", ev.Kind)
	require.Equal(t, uint64(42), ev.CommitScn)
}
