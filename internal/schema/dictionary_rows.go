package schema

import (
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/charset"
)

// Fixed object numbers for Oracle's bootstrap dictionary tables. These are
// not self-describing — OBJ$ has no SYS.COL$ row telling us OBJ$'s own
// layout — so, per the original's bootstrap handling, they are recorded as
// external constants rather than derived from a dictionary row.
const (
	ObjSysObj uint32 = 18
	ObjSysTab uint32 = 2
	ObjSysCol uint32 = 3
)

// IsDictionaryObject reports whether obj# names one of the bootstrap
// dictionary tables the replica watches for schema changes (spec.md §4.5).
func IsDictionaryObject(obj uint32) bool {
	switch obj {
	case ObjSysObj, ObjSysTab, ObjSysCol:
		return true
	default:
		return false
	}
}

// sysObjColumns describes the subset of SYS.OBJ$'s own columns the replica
// needs to name and type every other object.
var sysObjColumns = []Column{
	{Name: "OWNER#", Number: 1, TypeCode: TypeNumber},
	{Name: "NAME", Number: 2, TypeCode: TypeVarchar2},
	{Name: "OBJ#", Number: 3, TypeCode: TypeNumber},
	{Name: "DATAOBJ#", Number: 4, TypeCode: TypeNumber},
	{Name: "TYPE#", Number: 5, TypeCode: TypeNumber},
	{Name: "FLAGS", Number: 6, TypeCode: TypeNumber},
}

// sysColColumns describes the subset of SYS.COL$ columns needed to build
// one Column entry per row.
var sysColColumns = []Column{
	{Name: "OBJ#", Number: 1, TypeCode: TypeNumber},
	{Name: "COL#", Number: 2, TypeCode: TypeNumber},
	{Name: "NAME", Number: 3, TypeCode: TypeVarchar2},
	{Name: "TYPE#", Number: 4, TypeCode: TypeNumber},
	{Name: "LENGTH", Number: 5, TypeCode: TypeNumber},
	{Name: "NULLABLE", Number: 6, TypeCode: TypeNumber},
	{Name: "CHARSETID", Number: 7, TypeCode: TypeNumber},
}

func findValue(values []RowValue, name string) (RowValue, bool) {
	for _, v := range values {
		if v.Column == name {
			return v, true
		}
	}
	return RowValue{}, false
}

func numberOf(values []RowValue, name string) uint32 {
	v, ok := findValue(values, name)
	if !ok || v.Null {
		return 0
	}
	if f, ok := v.Value.(float64); ok {
		return uint32(f)
	}
	return 0
}

func stringOf(values []RowValue, name string) string {
	v, ok := findValue(values, name)
	if !ok || v.Null {
		return ""
	}
	if s, ok := v.Value.(string); ok {
		return s
	}
	return ""
}

// ObjectFromRow decodes one SYS.OBJ$ row image into an Object. rowId
// identifies the physical OBJ$ row so a later delete can evict the right
// replica entry.
func ObjectFromRow(rowId RowId, nullsDelta, rowData []byte, charsetName string) (*Object, []*charset.BadChar, error) {
	values, warnings := DecodeRow(rowData, nullsDelta, sysObjColumns, charsetName)
	if len(values) == 0 {
		return nil, warnings, fmt.Errorf("schema: empty SYS.OBJ$ row")
	}
	var o = &Object{
		RowId:   rowId,
		Owner:   numberOf(values, "OWNER#"),
		Obj:     numberOf(values, "OBJ#"),
		DataObj: numberOf(values, "DATAOBJ#"),
		Type:    ObjType(numberOf(values, "TYPE#")),
		Name:    stringOf(values, "NAME"),
	}
	if flags := numberOf(values, "FLAGS"); flags != 0 {
		o.Flags = Flags256{uint64(flags), 0, 0, 0}
	}
	return o, warnings, nil
}

// ColumnFromRow decodes one SYS.COL$ row image into the obj# it describes
// and the Column itself.
func ColumnFromRow(nullsDelta, rowData []byte, charsetName string) (uint32, Column, []*charset.BadChar, error) {
	values, warnings := DecodeRow(rowData, nullsDelta, sysColColumns, charsetName)
	if len(values) == 0 {
		return 0, Column{}, warnings, fmt.Errorf("schema: empty SYS.COL$ row")
	}
	var col = Column{
		Name:      stringOf(values, "NAME"),
		Number:    int(numberOf(values, "COL#")),
		TypeCode:  int(numberOf(values, "TYPE#")),
		Length:    int(numberOf(values, "LENGTH")),
		Nullable:  numberOf(values, "NULLABLE") != 0,
		CharsetID: int(numberOf(values, "CHARSETID")),
	}
	return numberOf(values, "OBJ#"), col, warnings, nil
}
