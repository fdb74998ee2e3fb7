package output

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/core/message"
)

type fakeSink struct {
	mu  sync.Mutex
	got []Message
}

func (f *fakeSink) SendMessage(ctx context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, m)
	return nil
}

func (f *fakeSink) PollIntervalCb(ctx context.Context) error { return nil }

func TestBufferPushPop(t *testing.T) {
	var b = NewBuffer(2)
	var ctx = context.Background()
	require.NoError(t, b.Push(ctx, Message{Id: 1}))
	require.Equal(t, 1, b.Depth())

	m, err := b.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, message.Clock(1), m.Id)
}

func TestBufferPopBlocksUntilCancel(t *testing.T) {
	var b = NewBuffer(1)
	var ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriterRunSendsAndRunEndsOnCancel(t *testing.T) {
	var b = NewBuffer(4)
	var sink = &fakeSink{}
	var w = NewWriter(b, sink)

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, b.Push(context.Background(), Message{Id: 1}))
	require.NoError(t, b.Push(context.Background(), Message{Id: 2}))

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.got) == 2
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestConfirmMessageAdvancesWatermarkMonotonically(t *testing.T) {
	var b = NewBuffer(4)
	var w = NewWriter(b, &fakeSink{})
	w.ConfirmMessage(5)
	w.ConfirmMessage(3)
	require.Equal(t, message.Clock(5), w.ConfirmedUpTo())
}
