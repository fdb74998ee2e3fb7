package opcode

import (
	"encoding/binary"

	"github.com/openlogreplicator/analyzer/internal/redolog"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

// Debug ids for opcode-specific fields, following spec.md §4.3's
// convention of tagging every nextField/nextFieldOpt call for tracing.
const (
	fieldNullsDelta = 0x0B0201
	fieldColNums    = 0x0B0202
	fieldRowData    = 0x0B0203
	fieldRollbackScn = 0x050401
	fieldCommitType  = 0x050402
	fieldSessionText = 0x050D01
	fieldDDLText     = 0x051901
	fieldSlotArray   = 0x0B0B01
	fieldLogminerDDL = 0x180101
)

// decodeUndo implements opcode 5.1: an undo block change paired with its
// redo partner via Uba chaining (spec.md §4.3 item 4).
func decodeUndo(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindUndo
	if rowData, ok := cur.NextFieldOpt(fieldRowData); ok {
		rec.RowData = rowData
	}
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeXidBegin implements opcode 5.2: transaction begin.
func decodeXidBegin(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	xidBytes, err := cur.NextField(fieldXid)
	if err != nil {
		return nil, err
	}
	return []redolog.RedoLogRecord{{
		Vector: v,
		Point:  point,
		Kind:   redolog.KindXidBegin,
		Xid:    decodeXid(xidBytes),
	}}, nil
}

// decodeCommitOrRollback implements opcode 5.4: the single opcode that
// seals a transaction, either as commit (carrying the final SCN) or
// rollback, discriminated by a trailing type byte (spec.md §4.3 item 4).
func decodeCommitOrRollback(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	xidBytes, err := cur.NextField(fieldXid)
	if err != nil {
		return nil, err
	}
	var rec = redolog.RedoLogRecord{Vector: v, Point: point, Xid: decodeXid(xidBytes)}

	scnBytes, _ := cur.NextFieldOpt(fieldRollbackScn)
	typeBytes, _ := cur.NextFieldOpt(fieldCommitType)

	if len(typeBytes) > 0 && typeBytes[0] == 1 {
		rec.Kind = redolog.KindRollback
		return []redolog.RedoLogRecord{rec}, nil
	}
	rec.Kind = redolog.KindCommit
	if len(scnBytes) >= 8 {
		rec.CommitScn = scn.Scn(binary.BigEndian.Uint64(scnBytes))
	} else {
		rec.CommitScn = point.Scn
	}
	return []redolog.RedoLogRecord{rec}, nil
}

// decodePartialRollback implements opcode 5.6: marks an undo range as
// reverted without sealing the transaction.
func decodePartialRollback(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindPartialRollback
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeRollbackMarker implements opcode 5.11: marks an XID aborted.
func decodeRollbackMarker(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	xidBytes, err := cur.NextField(fieldXid)
	if err != nil {
		return nil, err
	}
	return []redolog.RedoLogRecord{{
		Vector: v,
		Point:  point,
		Kind:   redolog.KindRollbackMarker,
		Xid:    decodeXid(xidBytes),
	}}, nil
}

// decodeSessionInfo implements opcodes 5.13/5.14: optional session
// metadata, diagnostics only, shared helper since both carry the same
// free-form text field (spec.md §4.3 and original_source's shared
// session-info decode path).
func decodeSessionInfo(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	var rec = redolog.RedoLogRecord{Vector: v, Point: point, Kind: redolog.KindSessionInfo}
	if text, ok := cur.NextFieldOpt(fieldSessionText); ok {
		rec.DDLText = text
	}
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeDDLMarker implements opcodes 5.19/5.20: escalates to a
// SystemTransaction rather than an ordinary DML record.
func decodeDDLMarker(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindDDLMarker
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeInsert implements opcode 11.2: single-row insert.
func decodeInsert(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindInsert
	if nulls, ok := cur.NextFieldOpt(fieldNullsDelta); ok {
		rec.NullsDelta = nulls
	}
	rowData, err := cur.NextField(fieldRowData)
	if err != nil {
		return nil, err
	}
	rec.RowData = rowData
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeDelete implements opcode 11.3: single-row delete, whose image is
// recovered from the paired undo record rather than this vector itself
// (spec.md §4.3 catalogue: "deleted row image (from undo)").
func decodeDelete(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindDelete
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeUpdate implements opcode 11.5: changed-columns mask plus values.
func decodeUpdate(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindUpdate
	if nulls, ok := cur.NextFieldOpt(fieldNullsDelta); ok {
		rec.NullsDelta = nulls
	}
	if colNums, ok := cur.NextFieldOpt(fieldColNums); ok {
		rec.ColNums = colNums
	}
	rowData, err := cur.NextField(fieldRowData)
	if err != nil {
		return nil, err
	}
	rec.RowData = rowData
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeOverwrite implements opcode 11.6: row overwrite / lock-for-delete,
// treated as a delete-by-rowid.
func decodeOverwrite(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	rec.Vector = v
	rec.Point = point
	rec.Kind = redolog.KindDelete
	return []redolog.RedoLogRecord{rec}, nil
}

// decodeMultiInsert implements opcode 11.11: a slot array followed by
// concatenated row data, split back into one RedoLogRecord per slot.
func decodeMultiInsert(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	slots, err := cur.NextField(fieldSlotArray)
	if err != nil {
		return nil, err
	}
	var slotNums = decodeSlotArray(slots)

	var out = make([]redolog.RedoLogRecord, 0, len(slotNums))
	for _, slot := range slotNums {
		rowData, ok := cur.NextFieldOpt(fieldRowData)
		if !ok {
			break
		}
		var r = rec
		r.Vector = v
		r.Point = point
		r.Kind = redolog.KindMultiInsert
		r.Slot = slot
		r.RowData = rowData
		out = append(out, r)
	}
	return out, nil
}

// decodeMultiDelete implements opcode 11.12: a bare slot array, one
// RedoLogRecord per deleted slot.
func decodeMultiDelete(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	rec, err := readTxnHeader(cur)
	if err != nil {
		return nil, err
	}
	slots, err := cur.NextField(fieldSlotArray)
	if err != nil {
		return nil, err
	}
	var slotNums = decodeSlotArray(slots)

	var out = make([]redolog.RedoLogRecord, 0, len(slotNums))
	for _, slot := range slotNums {
		var r = rec
		r.Vector = v
		r.Point = point
		r.Kind = redolog.KindMultiDelete
		r.Slot = slot
		out = append(out, r)
	}
	return out, nil
}

// decodeDDLText implements the 24.x layer: DDL/logminer control vectors
// carrying raw DDL text capture, handled by a single layer-wide fallback
// since Oracle defines many rarely-used subcodes here.
func decodeDDLText(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	var cur = redolog.NewCursor(v)
	var rec = redolog.RedoLogRecord{Vector: v, Point: point, Kind: redolog.KindDDLText}
	if text, ok := cur.NextFieldOpt(fieldLogminerDDL); ok {
		rec.DDLText = text
	}
	return []redolog.RedoLogRecord{rec}, nil
}

func decodeSlotArray(b []byte) []uint16 {
	var out = make([]uint16, 0, len(b)/2)
	for i := 0; i+2 <= len(b); i += 2 {
		out = append(out, binary.BigEndian.Uint16(b[i:i+2]))
	}
	return out
}
