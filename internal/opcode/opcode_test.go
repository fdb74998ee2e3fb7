package opcode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/redolog"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

func field(length int, payload []byte) []byte {
	var b = make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(length))
	b = append(b, payload...)
	if pad := length % 4; pad != 0 {
		b = append(b, make([]byte, 4-pad)...)
	}
	return b
}

func be32(v uint32) []byte {
	var b = make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be16(v uint16) []byte {
	var b = make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func txnHeaderBytes(xid scn.Xid, dba scn.Dba, slot uint16, uba scn.Uba) []byte {
	var xidBytes = append(append(be16(xid.Usn), be16(xid.Slot)...), be32(xid.Seq)...)
	var ubaBytes = append(append(be32(uint32(uba.Dba)), be16(uba.Seq)...), uba.Rec, 0, 0)

	var out []byte
	out = append(out, field(8, xidBytes)...)
	out = append(out, field(4, be32(uint32(dba)))...)
	out = append(out, field(2, be16(slot))...)
	out = append(out, field(8, ubaBytes[:8])...)
	return out
}

func TestDispatchInsert(t *testing.T) {
	var xid = scn.Xid{Usn: 1, Slot: 2, Seq: 3}
	var dba = scn.NewDba(7, 100)
	var uba = scn.Uba{Dba: scn.NewDba(7, 99), Seq: 5, Rec: 1}

	var data = txnHeaderBytes(xid, dba, 9, uba)
	data = append(data, field(4, []byte{0, 0, 0, 1})...) // obj
	data = append(data, field(4, be32(0))...)            // dataObj
	data = append(data, field(0, nil)...)                // nullsDelta
	data = append(data, field(3, []byte("row"))...)      // row data

	var v = redolog.Vector{Layer: 11, SubCode: 2, Data: data}
	var r = NewRegistry()
	recs, err := r.Dispatch(scn.Point{Scn: 42}, v)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, redolog.KindInsert, recs[0].Kind)
	require.Equal(t, xid, recs[0].Xid)
	require.Equal(t, dba, recs[0].Dba)
	require.Equal(t, []byte("row"), recs[0].RowData)
}

func TestDispatchCommit(t *testing.T) {
	var xid = scn.Xid{Usn: 1, Slot: 2, Seq: 3}
	var xidBytes = append(append(be16(xid.Usn), be16(xid.Slot)...), be32(xid.Seq)...)

	var data = field(8, xidBytes)
	data = append(data, field(8, append(be32(0), be32(1234)...))...) // 8-byte scn
	data = append(data, field(1, []byte{0})...)                      // commit, not rollback

	var v = redolog.Vector{Layer: 5, SubCode: 4, Data: data}
	var r = NewRegistry()
	recs, err := r.Dispatch(scn.Point{Scn: 99}, v)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, redolog.KindCommit, recs[0].Kind)
	require.Equal(t, xid, recs[0].Xid)
}

func TestDispatchUnknownOpcodeIsNotFatal(t *testing.T) {
	var v = redolog.Vector{Layer: 200, SubCode: 1, Data: nil}
	var r = NewRegistry()
	recs, err := r.Dispatch(scn.Point{Scn: 1}, v)
	require.NoError(t, err)
	require.Nil(t, recs)
}

func TestDispatchMultiDelete(t *testing.T) {
	var xid = scn.Xid{Usn: 1, Slot: 1, Seq: 1}
	var dba = scn.NewDba(1, 1)
	var uba = scn.Uba{}

	var data = txnHeaderBytes(xid, dba, 0, uba)
	data = append(data, field(4, be32(0))...) // obj
	data = append(data, field(4, be32(0))...) // dataObj
	var slots = append(be16(10), be16(11)...)
	data = append(data, field(4, slots)...)

	var v = redolog.Vector{Layer: 11, SubCode: 12, Data: data}
	var r = NewRegistry()
	recs, err := r.Dispatch(scn.Point{Scn: 1}, v)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, uint16(10), recs[0].Slot)
	require.Equal(t, uint16(11), recs[1].Slot)
}
