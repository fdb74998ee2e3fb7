// Package sink implements the Sink transport contract of spec.md §6:
// sendMessage/pollIntervalCb/confirmMessage, with at-least-once delivery
// and monotonic id acknowledgement.
//
// Frame's length-prefixed wire layout is lifted directly from
// original_source/src/StreamNetwork.h's send/receiveMessage pair: a
// 16-byte header (8-byte message id, then 8-byte payload length) followed
// by the payload.
package sink

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"go.gazette.dev/core/message"
)

// maxFrameBytes guards against a corrupt or hostile length header
// allocating unbounded memory.
const maxFrameBytes = 256 * 1024 * 1024

// Frame is one length-prefixed wire message: an 8-byte big-endian id,
// followed by an 8-byte big-endian length, followed by that many payload
// bytes.
type Frame struct {
	Id      message.Clock
	Payload []byte
}

// WriteFrame writes f to w in StreamNetwork's framing.
func WriteFrame(w io.Writer, f Frame) error {
	var header [16]byte
	binary.BigEndian.PutUint64(header[0:8], uint64(f.Id))
	binary.BigEndian.PutUint64(header[8:16], uint64(len(f.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("sink: writing frame header: %w", err)
	}
	if _, err := w.Write(f.Payload); err != nil {
		return fmt.Errorf("sink: writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one Frame from r, per WriteFrame's layout.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	var id = message.Clock(binary.BigEndian.Uint64(header[0:8]))
	var length = binary.BigEndian.Uint64(header[8:16])
	if length > maxFrameBytes {
		return Frame{}, fmt.Errorf("sink: frame length %d exceeds max %d", length, maxFrameBytes)
	}
	var payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("sink: reading frame payload: %w", err)
	}
	return Frame{Id: id, Payload: payload}, nil
}
