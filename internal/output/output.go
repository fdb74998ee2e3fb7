// Package output implements the OutputBuffer and Writer of spec.md §4.6:
// a chunked queue of ready transactions, drained by a Writer that hands
// each off to the Sink and resolves a confirm future once SendMessage
// returns. Sink confirmations arrive separately, through
// Writer.ConfirmMessage.
//
// The confirm-future shape follows the teacher's
// go/flow/transaction.go StartCommit: an AsyncOperation is created eagerly
// and resolved later, off the critical path, by go.gazette.dev/core/broker/
// client.
package output

import (
	"context"
	"fmt"

	"go.gazette.dev/core/broker/client"
	"go.gazette.dev/core/message"

	"github.com/openlogreplicator/analyzer/internal/ops"
	"github.com/openlogreplicator/analyzer/internal/scn"
	"github.com/openlogreplicator/analyzer/internal/txn"
)

// Message is one fully-formed output event derived from a committed
// Transaction, carrying a monotonic Id used for exactly-once delivery
// (spec.md §4.6).
type Message struct {
	Id        message.Clock
	Xid       scn.Xid
	CommitScn scn.Scn
	Payload   []byte
}

// Sink is the external transport contract spec.md §4.6 and §6 name:
// sendMessage delivers one Message, pollIntervalCb is invoked on an idle
// poll tick, and confirmMessage is called by the Sink once it durably
// accepted a previously sent Message.
type Sink interface {
	SendMessage(ctx context.Context, m Message) error
	PollIntervalCb(ctx context.Context) error
}

// Encoder renders one committed Transaction into zero or more output
// Messages, the boundary between the transaction buffer's domain objects
// and the Sink's wire format.
type Encoder interface {
	Encode(t *txn.Transaction) ([]Message, error)
}

// Buffer is the chunked SPSC queue between transaction release and the
// Writer, mirroring internal/block.Ring's bounded-channel idiom applied to
// fully-formed Messages instead of raw blocks.
type Buffer struct {
	ch chan Message
}

// NewBuffer returns a Buffer with room for capacity queued Messages.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{ch: make(chan Message, capacity)}
}

// Depth reports the number of Messages currently queued.
func (b *Buffer) Depth() int {
	return len(b.ch)
}

// Push enqueues m, blocking if the Buffer is full until ctx is done.
func (b *Buffer) Push(ctx context.Context, m Message) error {
	select {
	case b.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the next Message, blocking until one is available or ctx is
// done.
func (b *Buffer) Pop(ctx context.Context) (Message, error) {
	select {
	case m := <-b.ch:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// pendingConfirm tracks one sent Message until confirmMessage covers its
// id. Its client.AsyncOperation is resolved when SendMessage returns, the
// way the teacher resolves a commit future once its derive-worker closes
// its stream.
type pendingConfirm struct {
	id     message.Clock
	future *client.AsyncOperation
}

// Writer drains a Buffer, hands each Message to a Sink, and tracks sent
// Messages until the Sink confirms them. ConfirmedUpTo is the highest id
// passed to ConfirmMessage; a confirmation clears every pending id up to
// it, so an out-of-order confirmation of a newer id also clears older ids
// that were never confirmed. No checkpoint is written from it.
type Writer struct {
	buf      *Buffer
	sink     Sink
	pending  []pendingConfirm
	confirmedUpTo message.Clock
}

// NewWriter constructs a Writer draining buf into sink.
func NewWriter(buf *Buffer, sink Sink) *Writer {
	return &Writer{buf: buf, sink: sink}
}

// Run drains buf, sending each Message to the Sink, until ctx is
// cancelled. Send failures are returned immediately; the caller decides
// whether to retry the whole pipeline.
func (w *Writer) Run(ctx context.Context) error {
	for {
		m, err := w.buf.Pop(ctx)
		if err != nil {
			return nil
		}

		var future = client.NewAsyncOperation()
		w.pending = append(w.pending, pendingConfirm{id: m.Id, future: future})

		if err := w.sink.SendMessage(ctx, m); err != nil {
			future.Resolve(err)
			return fmt.Errorf("output: sending message %d: %w", m.Id, err)
		}
		future.Resolve(nil)
		ops.Debugf("output: sent message id=%d xid=%s", m.Id, m.Xid)
	}
}

// ConfirmMessage is called by the Sink once id has been durably accepted.
// It advances confirmedUpTo monotonically, matching spec.md §4.6's
// confirm-then-advance-checkpoint protocol — gaps in confirmation (an
// older id confirmed after a newer one) do not move the watermark
// backward, since the Sink is required to confirm in send order.
func (w *Writer) ConfirmMessage(id message.Clock) {
	if id > w.confirmedUpTo {
		w.confirmedUpTo = id
	}
	var kept = w.pending[:0]
	for _, p := range w.pending {
		if p.id > id {
			kept = append(kept, p)
		}
	}
	w.pending = kept
}

// ConfirmedUpTo returns the highest Message id known to be durably
// accepted by the Sink.
func (w *Writer) ConfirmedUpTo() message.Clock {
	return w.confirmedUpTo
}

// PendingCount reports the number of Messages sent but not yet confirmed.
func (w *Writer) PendingCount() int {
	return len(w.pending)
}
