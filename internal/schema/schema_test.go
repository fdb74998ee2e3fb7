package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

func TestObjectIsTemporaryIsDropped(t *testing.T) {
	var o Object
	require.False(t, o.IsTemporary())
	require.False(t, o.IsDropped())

	o.Flags.SetBit(objFlagTemporary)
	require.True(t, o.IsTemporary())
	require.False(t, o.IsDropped())

	o.Flags.SetBit(objFlagDropped)
	require.True(t, o.IsDropped())
}

func TestObjectColumnByNumber(t *testing.T) {
	var o = Object{Columns: []Column{
		{Name: "ID", Number: 1},
		{Name: "NAME", Number: 2},
	}}

	c, ok := o.ColumnByNumber(2)
	require.True(t, ok)
	require.Equal(t, "NAME", c.Name)

	_, ok = o.ColumnByNumber(3)
	require.False(t, ok)
}

func TestReplicaBootstrapThenGet(t *testing.T) {
	var r = NewReplica(8)
	r.Bootstrap([]*Object{
		{Obj: 1, Name: "T1"},
		{Obj: 2, Name: "T2"},
	})

	o, version, ok := r.Get(1)
	require.True(t, ok)
	require.Equal(t, "T1", o.Name)
	require.Equal(t, scn.Scn(0), version)

	_, _, ok = r.Get(99)
	require.False(t, ok)
}

func TestReplicaPutAdvancesVersion(t *testing.T) {
	var r = NewReplica(8)
	r.put(&Object{Obj: 1, Name: "T1"}, scn.Scn(100))
	_, version, ok := r.Get(1)
	require.True(t, ok)
	require.Equal(t, scn.Scn(100), version)

	r.put(&Object{Obj: 1, Name: "T1-renamed"}, scn.Scn(50))
	o, version, ok := r.Get(1)
	require.True(t, ok)
	require.Equal(t, "T1-renamed", o.Name)
	require.Equal(t, scn.Scn(100), version, "version must not move backwards")
}

func TestSystemTransactionCommitIsAtomic(t *testing.T) {
	var r = NewReplica(8)
	var xid = scn.Xid{Usn: 1, Slot: 2, Seq: 3}
	var st = NewSystemTransaction(r, xid)

	st.ProcessInsert(RowId("AAA"), &Object{Obj: 10, Name: "NEW_TABLE"})
	st.ProcessInsert(RowId("BBB"), &Object{Obj: 11, Name: "OTHER_TABLE"})

	_, _, ok := r.Get(10)
	require.False(t, ok, "nothing visible before commit")

	st.Commit(scn.Scn(200))

	o, version, ok := r.Get(10)
	require.True(t, ok)
	require.Equal(t, "NEW_TABLE", o.Name)
	require.Equal(t, scn.Scn(200), version)

	o, _, ok = r.Get(11)
	require.True(t, ok)
	require.Equal(t, "OTHER_TABLE", o.Name)
}

func TestSystemTransactionUpdateThenDeleteSameRow(t *testing.T) {
	var r = NewReplica(8)
	r.Bootstrap([]*Object{{Obj: 5, Name: "ORIGINAL"}})

	var st = NewSystemTransaction(r, scn.Xid{Usn: 1, Slot: 1, Seq: 1})
	st.ProcessUpdate(RowId("CCC"), &Object{Obj: 5, Name: "RENAMED"})
	st.Commit(scn.Scn(10))

	o, _, ok := r.Get(5)
	require.True(t, ok)
	require.Equal(t, "RENAMED", o.Name)

	st = NewSystemTransaction(r, scn.Xid{Usn: 1, Slot: 1, Seq: 2})
	st.ProcessDelete(RowId("CCC"))
	st.Commit(scn.Scn(20))

	_, _, ok = r.Get(5)
	require.False(t, ok, "row must be gone after delete commit")
}

func TestSystemTransactionRollbackDiscardsBufferedOps(t *testing.T) {
	var r = NewReplica(8)
	var st = NewSystemTransaction(r, scn.Xid{Usn: 1, Slot: 1, Seq: 1})
	st.ProcessInsert(RowId("AAA"), &Object{Obj: 1, Name: "NEVER_COMMITTED"})
	st.Rollback()
	st.Commit(scn.Scn(1))

	_, _, ok := r.Get(1)
	require.False(t, ok)
}

func TestDiffObjectsReportsColumnChange(t *testing.T) {
	var before = &Object{Obj: 1, Name: "T1", Columns: []Column{{Name: "A", Number: 1}}}
	var after = &Object{Obj: 1, Name: "T1", Columns: []Column{{Name: "A", Number: 1}, {Name: "B", Number: 2}}}

	patch, err := DiffObjects(before, after)
	require.NoError(t, err)
	require.Contains(t, string(patch), "Columns")
}

func TestDiffObjectsNilBeforeIsWholeObject(t *testing.T) {
	var after = &Object{Obj: 7, Name: "NEW"}
	patch, err := DiffObjects(nil, after)
	require.NoError(t, err)
	require.Contains(t, string(patch), "NEW")
}

func TestDiffObjectsNoChangeIsEmptyPatch(t *testing.T) {
	var o = &Object{Obj: 1, Name: "SAME"}
	patch, err := DiffObjects(o, o)
	require.NoError(t, err)
	require.Equal(t, "{}", string(patch))
}
