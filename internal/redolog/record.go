// Package redolog implements the Parser of spec.md §4.2: it walks the
// blocks produced by a reader.Reader, groups physical records into LWNs,
// sorts each LWN by (scn, subScn, block), splits records into vectors, and
// dispatches each vector to the opcode layer for decoding.
package redolog

import (
	"encoding/binary"
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

// Vector is one opcode-tagged chunk of a physical record: Oracle's own
// on-disk unit of change. Layer/SubCode select the opcode handler
// (spec.md §4.3, dispatch key (layer<<8)|subcode).
type Vector struct {
	Layer   uint8
	SubCode uint8
	Data    []byte // borrowed from the owning LWN arena; not valid past it.
}

// OpCode packs Layer and SubCode into the dispatch key used by the opcode
// registry.
func (v Vector) OpCode() uint16 {
	return uint16(v.Layer)<<8 | uint16(v.SubCode)
}

func (v Vector) String() string {
	return fmt.Sprintf("%d.%d", v.Layer, v.SubCode)
}

// Kind classifies what a decoded RedoLogRecord represents, so the
// transaction buffer (spec.md §4.4) can dispatch on it without re-deriving
// intent from the raw opcode.
type Kind int

const (
	KindUndo Kind = iota
	KindXidBegin
	KindCommit
	KindRollback
	KindPartialRollback
	KindRollbackMarker
	KindSessionInfo
	KindDDLMarker
	KindInsert
	KindDelete
	KindUpdate
	KindMultiInsert
	KindMultiDelete
	KindDDLText
)

// RedoLogRecord is one decoded vector's contribution, carrying non-owning
// pointers into the LWN arena per spec.md §3's Ownership rules: column
// bytes are never copied here, only sliced.
type RedoLogRecord struct {
	Vector     Vector
	Kind       Kind
	Point      scn.Point
	Xid        scn.Xid
	Obj        uint32
	DataObj    uint32
	Dba        scn.Dba
	Slot       uint16
	Uba        scn.Uba
	NullsDelta []byte // bitmap of null columns, borrowed.
	ColNums    []byte // column-number vector (updates only), borrowed.
	RowData    []byte // raw row payload, borrowed.
	RowSlots   []uint16 // slot array for multi-row opcodes.
	CommitScn  scn.Scn
	DDLText    []byte
}

// Cursor walks the fields of one Vector's Data, the same nextField/
// nextFieldOpt shape spec.md §4.2 assigns to opcode handlers, with a debug
// id attached to every read for tracing.
type Cursor struct {
	Data []byte
	pos  int
}

// NewCursor returns a Cursor over v's data.
func NewCursor(v Vector) *Cursor {
	return &Cursor{Data: v.Data}
}

// FieldError reports that a mandatory field could not be read — distinct
// from an optional field simply being absent.
type FieldError struct {
	DebugID uint32
	Reason  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("redolog: field %#06x: %s", e.DebugID, e.Reason)
}

// remaining returns the number of unread bytes.
func (c *Cursor) remaining() int {
	return len(c.Data) - c.pos
}

// NextField reads a mandatory length-prefixed field tagged debugID for
// tracing. The wire format is a 2-byte little-endian length followed by
// that many payload bytes, padded to a 4-byte boundary — Oracle pads every
// redo field to preserve natural alignment of subsequent fields.
func (c *Cursor) NextField(debugID uint32) ([]byte, error) {
	b, err := c.nextFieldRaw(debugID)
	if err != nil {
		return nil, &FieldError{DebugID: debugID, Reason: err.Error()}
	}
	return b, nil
}

// NextFieldOpt reads an optional field: it returns (nil, false) rather than
// an error when no more fields remain, matching spec.md §4.2's
// nextFieldOpt used by handlers for version-dependent trailing fields.
func (c *Cursor) NextFieldOpt(debugID uint32) ([]byte, bool) {
	if c.remaining() < 2 {
		return nil, false
	}
	b, err := c.nextFieldRaw(debugID)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *Cursor) nextFieldRaw(debugID uint32) ([]byte, error) {
	if c.remaining() < 2 {
		return nil, fmt.Errorf("truncated field length")
	}
	var length = int(binary.LittleEndian.Uint16(c.Data[c.pos:]))
	c.pos += 2
	if c.remaining() < length {
		return nil, fmt.Errorf("truncated field payload: want %d have %d", length, c.remaining())
	}
	var field = c.Data[c.pos : c.pos+length]
	c.pos += length
	if pad := length % 4; pad != 0 {
		var skip = 4 - pad
		if c.remaining() < skip {
			skip = c.remaining()
		}
		c.pos += skip
	}
	return field, nil
}
