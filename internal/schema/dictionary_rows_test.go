package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

func TestIsDictionaryObject(t *testing.T) {
	require.True(t, IsDictionaryObject(ObjSysObj))
	require.True(t, IsDictionaryObject(ObjSysTab))
	require.True(t, IsDictionaryObject(ObjSysCol))
	require.False(t, IsDictionaryObject(10))
}

func TestObjectFromRow(t *testing.T) {
	var rowData = lenPrefixedField(
		[]byte{0x80},       // OWNER# = 0
		[]byte("EMPLOYEE"), // NAME
		[]byte{0xC1, 0x33}, // OBJ# = 50
		[]byte{0xC1, 0x33}, // DATAOBJ# = 50
		[]byte{0xC1, 0x03}, // TYPE# = 2 (table)
		[]byte{0x80},       // FLAGS = 0
	)

	o, warnings, err := ObjectFromRow(RowId("AAA"), nil, rowData, "AL32UTF8")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, uint32(50), o.Obj)
	require.Equal(t, "EMPLOYEE", o.Name)
	require.Equal(t, ObjTypeTable, o.Type)
	require.True(t, o.IsTable())
}

func TestColumnFromRow(t *testing.T) {
	var rowData = lenPrefixedField(
		[]byte{0xC1, 0x33}, // OBJ# = 50
		[]byte{0xC1, 0x02}, // COL# = 1
		[]byte("NAME"),
		[]byte{0xC1, 0x02}, // TYPE# = VARCHAR2
		[]byte{0xC1, 0x15}, // LENGTH = 20
		[]byte{0xC1, 0x02}, // NULLABLE = 1
		[]byte{0x80},       // CHARSETID = 0
	)

	obj, col, warnings, err := ColumnFromRow(nil, rowData, "AL32UTF8")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, uint32(50), obj)
	require.Equal(t, "NAME", col.Name)
	require.Equal(t, 1, col.Number)
	require.Equal(t, TypeVarchar2, col.TypeCode)
	require.True(t, col.Nullable)
}

func TestSystemTransactionProcessColumnMergesIntoPendingObject(t *testing.T) {
	var r = NewReplica(8)
	var st = NewSystemTransaction(r, scn.Xid{Usn: 1, Slot: 1, Seq: 1})

	st.ProcessInsert(RowId("AAA"), &Object{Obj: 50, Name: "EMPLOYEE"})
	st.ProcessColumn(50, Column{Name: "ID", Number: 1, TypeCode: TypeNumber})
	st.ProcessColumn(50, Column{Name: "NAME", Number: 2, TypeCode: TypeVarchar2})
	st.Commit(scn.Scn(10))

	o, _, ok := r.Get(50)
	require.True(t, ok)
	require.Len(t, o.Columns, 2)
	c, ok := o.ColumnByNumber(2)
	require.True(t, ok)
	require.Equal(t, "NAME", c.Name)
}

func TestSystemTransactionProcessColumnAgainstExistingReplicaObject(t *testing.T) {
	var r = NewReplica(8)
	r.Bootstrap([]*Object{{Obj: 60, Name: "ORDERS"}})

	var st = NewSystemTransaction(r, scn.Xid{Usn: 2, Slot: 2, Seq: 2})
	st.ProcessColumn(60, Column{Name: "ORDER_ID", Number: 1, TypeCode: TypeNumber})
	st.Commit(scn.Scn(5))

	o, _, ok := r.Get(60)
	require.True(t, ok)
	require.Equal(t, "ORDERS", o.Name)
	require.Len(t, o.Columns, 1)
}
