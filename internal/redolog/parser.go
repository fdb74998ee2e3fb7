package redolog

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/block"
	"github.com/openlogreplicator/analyzer/internal/ops"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

// recordHeaderSize is the 4-byte length+type header spec.md §4.2 says
// begins every physical redo record.
const recordHeaderSize = 4

// opcode19_1 is the LWN header vector's dispatch key (spec.md §4.3 table),
// handled inline by the Parser rather than the opcode registry since it
// controls LWN boundaries rather than producing a RedoLogRecord.
const opcode19_1 = uint16(19)<<8 | 1

// Dispatcher decodes one sorted vector into zero or more RedoLogRecord
// contributions, handed off to the transaction buffer. Implemented by
// internal/opcode; kept as an interface here so redolog never imports the
// opcode registry (spec.md §4.2/§4.3 are drawn as separate collaborators).
type Dispatcher interface {
	Dispatch(point scn.Point, v Vector) ([]RedoLogRecord, error)
}

// Emitter receives fully decoded records in LWN-sorted order, one LWN's
// worth at a time, for handoff to the transaction buffer (spec.md §4.4).
type Emitter interface {
	EmitLwn(lwnScn scn.Scn, records []RedoLogRecord) error
}

// Parser is the sole consumer of one reader.Reader's block.Ring: it walks
// blocks, reassembles physical records split across block boundaries,
// groups them into LWNs, sorts each LWN, and dispatches vectors to a
// Dispatcher before handing the sorted batch to an Emitter.
type Parser struct {
	ring        *block.Ring
	dispatcher  Dispatcher
	emitter     Emitter
	maxLwnChunks int

	current   *Lwn
	pending   []byte // carries a record fragment split across block boundaries.
	blockSize int
}

// NewParser constructs a Parser draining ring, dispatching vectors through
// dispatcher, and emitting sorted LWNs to emitter.
func NewParser(ring *block.Ring, dispatcher Dispatcher, emitter Emitter, blockSize, memoryMaxMb int) *Parser {
	return &Parser{
		ring:         ring,
		dispatcher:   dispatcher,
		emitter:      emitter,
		maxLwnChunks: MaxLwnChunks(memoryMaxMb),
		blockSize:    blockSize,
	}
}

// Run drains the ring until ctx is cancelled or the ring is closed,
// returning the first error encountered. Malformed record lengths are
// BadData and abort the run; unknown opcodes are logged and skipped
// (spec.md §4.2 Errors).
func (p *Parser) Run(ctx context.Context) error {
	for {
		b, err := p.ring.Pop(ctx)
		if err != nil {
			return p.flush()
		}
		if err := p.consumeBlock(b); err != nil {
			return err
		}
	}
}

func (p *Parser) consumeBlock(b block.Block) error {
	var data = append(p.pending, b.Data...)
	p.pending = nil

	var offset = 0
	for offset+recordHeaderSize <= len(data) {
		var length = int(binary.LittleEndian.Uint32(data[offset:]))
		if length == 0 {
			break // padding to end of block.
		}
		if length < recordHeaderSize {
			return fmt.Errorf("redolog: bad record length %d at block %d offset %d", length, b.Number, offset)
		}
		if offset+length > len(data) {
			// Record spans into the next block; carry the fragment forward.
			p.pending = append([]byte(nil), data[offset:]...)
			return nil
		}
		var record = data[offset+recordHeaderSize : offset+length]
		if err := p.consumeRecord(b.Number, uint16(offset), record); err != nil {
			return err
		}
		offset += length
	}
	return nil
}

// consumeRecord splits one physical record into ≤512 vectors (spec.md
// §4.2) and either opens/closes an LWN (opcode 19.1) or enqueues the
// vector for sorted dispatch.
func (p *Parser) consumeRecord(blockNumber uint32, offset uint16, data []byte) error {
	var vectors, err = splitVectors(data)
	if err != nil {
		return err
	}

	for _, v := range vectors {
		if v.OpCode() == opcode19_1 {
			if err := p.flush(); err != nil {
				return err
			}
			var lwnScn, perr = parseLwnHeader(v)
			if perr != nil {
				ops.Warnf(ops.Position{Block: blockNumber, Offset: offset}, "redolog: bad LWN header: %v", perr)
				continue
			}
			p.current = NewLwn(lwnScn, p.maxLwnChunks)
			continue
		}
		if p.current == nil {
			// No LWN header observed yet; Oracle always writes one before
			// the first real vector, so this is a skippable warning.
			ops.Warnf(ops.Position{Block: blockNumber, Offset: offset}, "redolog: vector %s outside any LWN, skipped", v)
			continue
		}
		var point = scn.Point{Scn: p.current.Scn}
		if err := p.current.Add(point, blockNumber, offset, v); err != nil {
			return err
		}
	}
	return nil
}

// flush sorts and dispatches the current LWN, if any, then clears it.
func (p *Parser) flush() error {
	if p.current == nil || p.current.Len() == 0 {
		p.current = nil
		return nil
	}
	var lwnScn = p.current.Scn
	var out []RedoLogRecord
	var err = p.current.Drain(func(point scn.Point, v Vector) error {
		recs, derr := p.dispatcher.Dispatch(point, v)
		if derr != nil {
			ops.Warnf(ops.Position{Scn: uint64(point.Scn)}, "redolog: opcode %s dispatch failed: %v", v, derr)
			return nil
		}
		out = append(out, recs...)
		return nil
	})
	p.current = nil
	if err != nil {
		return err
	}
	if p.emitter != nil {
		return p.emitter.EmitLwn(lwnScn, out)
	}
	return nil
}

// splitVectors walks a physical record's body, each vector prefixed by a
// 2-byte length, 1-byte layer, and 1-byte subcode, up to spec.md §4.2's
// limit of 512 vectors per record.
func splitVectors(data []byte) ([]Vector, error) {
	var vectors []Vector
	var pos = 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("redolog: truncated vector header at offset %d", pos)
		}
		var vlen = int(binary.LittleEndian.Uint16(data[pos:]))
		var layer = data[pos+2]
		var subCode = data[pos+3]
		pos += 4
		if pos+vlen > len(data) {
			return nil, fmt.Errorf("redolog: truncated vector body: want %d have %d", vlen, len(data)-pos)
		}
		vectors = append(vectors, Vector{Layer: layer, SubCode: subCode, Data: data[pos : pos+vlen]})
		pos += vlen
		if len(vectors) > 512 {
			return nil, fmt.Errorf("redolog: record exceeds 512 vectors")
		}
	}
	return vectors, nil
}

// parseLwnHeader extracts the SCN from a 19.1 LWN header vector: an 8-byte
// big-endian SCN at the start of the vector payload.
func parseLwnHeader(v Vector) (scn.Scn, error) {
	if len(v.Data) < 8 {
		return 0, fmt.Errorf("redolog: LWN header too short: %d bytes", len(v.Data))
	}
	return scn.Scn(binary.BigEndian.Uint64(v.Data)), nil
}
