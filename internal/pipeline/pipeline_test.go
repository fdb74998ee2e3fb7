package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/config"
	"github.com/openlogreplicator/analyzer/internal/output"
	"github.com/openlogreplicator/analyzer/internal/txn"
)

type nopSink struct{}

func (nopSink) SendMessage(ctx context.Context, m output.Message) error { return nil }
func (nopSink) PollIntervalCb(ctx context.Context) error                { return nil }

type nopEncoder struct{}

func (nopEncoder) Encode(t *txn.Transaction) ([]output.Message, error) {
	return []output.Message{{Id: 1, Xid: t.Xid}}, nil
}

func TestContextShutdownIsIdempotent(t *testing.T) {
	var cfg = config.Config{MemoryMinMb: 64, MemoryMaxMb: 128, ReadBufferMax: 4, QueueSize: 4}
	var c = NewContext(cfg, nil, nil, nopSink{}, nil)

	require.NotPanics(t, func() {
		c.Shutdown()
		c.Shutdown()
	})
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel never closed")
	}
}
