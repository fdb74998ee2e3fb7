// Package opcode implements the opcode layer of spec.md §4.3: one decoder
// per Oracle redo opcode, dispatched by (layer<<8)|subcode, each producing
// RedoLogRecord contributions from the fields of one vector.
package opcode

import (
	"encoding/binary"

	"github.com/openlogreplicator/analyzer/internal/ops"
	"github.com/openlogreplicator/analyzer/internal/redolog"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

// key packs layer and subcode the same way redolog.Vector.OpCode does.
func key(layer, subCode uint8) uint16 {
	return uint16(layer)<<8 | uint16(subCode)
}

// Handler decodes one vector into zero or more RedoLogRecord
// contributions. Most opcodes produce exactly one.
type Handler func(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error)

// Registry dispatches vectors to Handlers by opcode, implementing
// redolog.Dispatcher. Unknown opcodes are not an error: Dispatch logs a
// warning and returns no records, so the caller skips the vector.
type Registry struct {
	handlers     map[uint16]Handler
	layerFallback map[uint8]Handler
}

// NewRegistry returns a Registry pre-populated with every opcode in
// spec.md §4.3's catalogue.
func NewRegistry() *Registry {
	var r = &Registry{
		handlers:      map[uint16]Handler{},
		layerFallback: map[uint8]Handler{},
	}
	r.register(5, 1, decodeUndo)
	r.register(5, 2, decodeXidBegin)
	r.register(5, 4, decodeCommitOrRollback)
	r.register(5, 6, decodePartialRollback)
	r.register(5, 11, decodeRollbackMarker)
	r.register(5, 13, decodeSessionInfo)
	r.register(5, 14, decodeSessionInfo)
	r.register(5, 19, decodeDDLMarker)
	r.register(5, 20, decodeDDLMarker)
	r.register(11, 2, decodeInsert)
	r.register(11, 3, decodeDelete)
	r.register(11, 5, decodeUpdate)
	r.register(11, 6, decodeOverwrite)
	r.register(11, 11, decodeMultiInsert)
	r.register(11, 12, decodeMultiDelete)
	r.registerLayer(24, decodeDDLText)
	return r
}

func (r *Registry) register(layer, subCode uint8, h Handler) {
	r.handlers[key(layer, subCode)] = h
}

// registerLayer installs a fallback handler for every subcode of layer,
// used by 24.x DDL/logminer control vectors (spec.md §4.3).
func (r *Registry) registerLayer(layer uint8, h Handler) {
	r.layerFallback[layer] = h
}

// Dispatch implements redolog.Dispatcher.
func (r *Registry) Dispatch(point scn.Point, v redolog.Vector) ([]redolog.RedoLogRecord, error) {
	if h, ok := r.handlers[v.OpCode()]; ok {
		return h(point, v)
	}
	if h, ok := r.layerFallback[v.Layer]; ok {
		return h(point, v)
	}
	ops.Warnf(ops.Position{Scn: uint64(point.Scn)}, "opcode: unknown opcode %s, skipped", v)
	return nil, nil
}

// debug ids for the shared transaction-header fields every DML/undo vector
// carries first, matching spec.md §4.3's nextField tracing convention.
const (
	fieldXid     = 0x050101
	fieldDba     = 0x050102
	fieldSlot    = 0x050103
	fieldUba     = 0x050104
	fieldObj     = 0x050105
	fieldDataObj = 0x050106
)

// readTxnHeader reads the common (xid, dba, slot, uba, obj, dataObj)
// prefix most DML and undo vectors share, returning the populated record
// and the cursor positioned at the opcode-specific remainder.
func readTxnHeader(cur *redolog.Cursor) (redolog.RedoLogRecord, error) {
	var rec redolog.RedoLogRecord

	xidBytes, err := cur.NextField(fieldXid)
	if err != nil {
		return rec, err
	}
	rec.Xid = decodeXid(xidBytes)

	dbaBytes, err := cur.NextField(fieldDba)
	if err != nil {
		return rec, err
	}
	if len(dbaBytes) >= 4 {
		rec.Dba = scn.Dba(binary.BigEndian.Uint32(dbaBytes))
	}

	slotBytes, err := cur.NextField(fieldSlot)
	if err != nil {
		return rec, err
	}
	if len(slotBytes) >= 2 {
		rec.Slot = binary.BigEndian.Uint16(slotBytes)
	}

	ubaBytes, err := cur.NextField(fieldUba)
	if err != nil {
		return rec, err
	}
	rec.Uba = decodeUba(ubaBytes)

	if objBytes, ok := cur.NextFieldOpt(fieldObj); ok && len(objBytes) >= 4 {
		rec.Obj = binary.BigEndian.Uint32(objBytes)
	}
	if dataObjBytes, ok := cur.NextFieldOpt(fieldDataObj); ok && len(dataObjBytes) >= 4 {
		rec.DataObj = binary.BigEndian.Uint32(dataObjBytes)
	}

	return rec, nil
}

func decodeXid(b []byte) scn.Xid {
	if len(b) < 8 {
		return scn.Xid{}
	}
	return scn.Xid{
		Usn:  binary.BigEndian.Uint16(b[0:2]),
		Slot: binary.BigEndian.Uint16(b[2:4]),
		Seq:  binary.BigEndian.Uint32(b[4:8]),
	}
}

func decodeUba(b []byte) scn.Uba {
	if len(b) < 8 {
		return scn.Uba{}
	}
	return scn.Uba{
		Dba: scn.Dba(binary.BigEndian.Uint32(b[0:4])),
		Seq: binary.BigEndian.Uint16(b[4:6]),
		Rec: b[6],
	}
}
