package sink

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/openlogreplicator/analyzer/internal/ops"
	"github.com/openlogreplicator/analyzer/internal/output"
)

// StreamSink implements output.Sink over a plain TCP connection using
// Frame's length-prefixed wire format, the Go counterpart of
// original_source/src/StreamNetwork.h's client mode.
type StreamSink struct {
	conn         net.Conn
	reader       *bufio.Reader
	pollInterval time.Duration
	onConfirm    func(id uint64)
}

// DialStream connects to addr and returns a ready StreamSink. onConfirm is
// invoked for every acknowledgement frame read back from the peer.
func DialStream(ctx context.Context, addr string, pollInterval time.Duration, onConfirm func(id uint64)) (*StreamSink, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sink: dialing %s: %w", addr, err)
	}
	return &StreamSink{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		pollInterval: pollInterval,
		onConfirm:    onConfirm,
	}, nil
}

// SendMessage implements output.Sink by writing m as a length-prefixed
// Frame and blocking for its acknowledgement frame, giving at-least-once
// delivery with synchronous confirmation (spec.md §6).
func (s *StreamSink) SendMessage(ctx context.Context, m output.Message) error {
	if err := WriteFrame(s.conn, Frame{Id: m.Id, Payload: m.Payload}); err != nil {
		return err
	}
	ack, err := ReadFrame(s.reader)
	if err != nil {
		return fmt.Errorf("sink: reading ack: %w", err)
	}
	if s.onConfirm != nil {
		s.onConfirm(uint64(ack.Id))
	}
	return nil
}

// PollIntervalCb implements output.Sink's idle poll tick: original's
// StreamNetwork polls on a fixed interval while waiting for the peer, so
// this sleeps and logs rather than issuing its own I/O.
func (s *StreamSink) PollIntervalCb(ctx context.Context) error {
	select {
	case <-time.After(s.pollInterval):
		ops.Debugf("sink: poll interval elapsed with no outbound message")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying connection.
func (s *StreamSink) Close() error {
	return s.conn.Close()
}
