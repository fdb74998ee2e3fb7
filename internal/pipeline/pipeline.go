// Package pipeline wires the Reader, Parser, transaction buffer, and
// Writer into one running analyzer, replacing the original's global
// singletons (oracleAnalyzer, outputBuffer) with one explicit Context
// value threaded through every stage (spec.md §9).
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/openlogreplicator/analyzer/internal/block"
	"github.com/openlogreplicator/analyzer/internal/checkpoint"
	"github.com/openlogreplicator/analyzer/internal/config"
	"github.com/openlogreplicator/analyzer/internal/dictionary"
	"github.com/openlogreplicator/analyzer/internal/dump"
	"github.com/openlogreplicator/analyzer/internal/ops"
	"github.com/openlogreplicator/analyzer/internal/opcode"
	"github.com/openlogreplicator/analyzer/internal/output"
	"github.com/openlogreplicator/analyzer/internal/reader"
	"github.com/openlogreplicator/analyzer/internal/redolog"
	"github.com/openlogreplicator/analyzer/internal/schema"
	"github.com/openlogreplicator/analyzer/internal/scn"
	"github.com/openlogreplicator/analyzer/internal/txn"
)

// Context is the one piece of process-wide state spec.md §9 allows: every
// stage receives it by value (as a pointer to shared, long-lived
// collaborators) rather than reaching for a package-level singleton.
type Context struct {
	Config     config.Config
	Dictionary dictionary.Client
	Store      checkpoint.StateStore
	Sink       output.Sink
	Metrics    *ops.Metrics

	Replica  *schema.Replica
	Registry *opcode.Registry
	Dumper   *dump.Dumper

	shutdown chan struct{}
	once     sync.Once
}

// NewContext constructs a Context ready to drive one Pipeline. The Dumper is
// built straight from cfg.DumpRedoLog/DumpRawData (spec.md §6), writing to
// stderr so it never competes with the Sink's own output stream.
func NewContext(cfg config.Config, dict dictionary.Client, store checkpoint.StateStore, sink output.Sink, metrics *ops.Metrics) *Context {
	return &Context{
		Config:     cfg,
		Dictionary: dict,
		Store:      store,
		Sink:       sink,
		Metrics:    metrics,
		Replica:    schema.NewReplica(4096),
		Registry:   opcode.NewRegistry(),
		Dumper:     dump.NewDumper(os.Stderr, dump.Level(cfg.DumpRedoLog), cfg.DumpRawData),
		shutdown:   make(chan struct{}),
	}
}

// Shutdown signals every stage watching Done to stop. Safe to call more
// than once or concurrently.
func (c *Context) Shutdown() {
	c.once.Do(func() { close(c.shutdown) })
}

// Done returns the channel closed by Shutdown.
func (c *Context) Done() <-chan struct{} {
	return c.shutdown
}

// lwnEmitter adapts a txn.Buffer to redolog.Emitter, feeding every decoded
// record in one LWN's sorted order into the transaction buffer. When a
// Dumper is configured it also traces each record past the dumpRedoLog
// verbosity gate before handing it to the buffer, matching the original's
// placement of its dump call at the point records leave the LWN.
type lwnEmitter struct {
	buf    *txn.Buffer
	dumper *dump.Dumper
}

func (e *lwnEmitter) EmitLwn(lwnScn scn.Scn, records []redolog.RedoLogRecord) error {
	for _, r := range records {
		if e.dumper != nil {
			e.dumper.Record(r)
		}
		if err := e.buf.Ingest(r); err != nil {
			return err
		}
	}
	return nil
}

// Pipeline runs the three cooperating stages spec.md §9 calls for: Reader,
// Parser (the logical orchestrator), and Writer, linked by bounded
// channels rather than a thread pool.
type Pipeline struct {
	ctx    *Context
	reader *reader.Reader
	ring   *block.Ring
	parser *redolog.Parser
	txnBuf *txn.Buffer
	buf    *output.Buffer
	writer *output.Writer
	encoder output.Encoder
}

// New assembles a Pipeline for one open redo log source; Run reads it
// starting from block 1.
func New(c *Context, src reader.Source, pool *block.Pool, encoder output.Encoder, expectedSequence uint32, expectedResetlogs, expectedActivation uint32, online bool) *Pipeline {
	var ring = block.NewRing(c.Config.ReadBufferMax)
	var r = reader.New(c.Config, src, ring, pool, expectedSequence, expectedResetlogs, expectedActivation, online)
	var txnBuf = txn.NewBuffer(c.Config.MemoryMinMb, c.Config.MemoryMaxMb, c.Replica)
	txnBuf.SetCharacterSet(c.Config.CharacterSet)
	var parser = redolog.NewParser(ring, c.Registry, &lwnEmitter{buf: txnBuf, dumper: c.Dumper}, 0, c.Config.MemoryMaxMb)
	var outBuf = output.NewBuffer(c.Config.QueueSize)
	var writer = output.NewWriter(outBuf, c.Sink)

	if encoder == nil {
		encoder = output.NewJSONEncoder(c.Replica, c.Config.CharacterSet)
	}

	return &Pipeline{
		ctx:     c,
		reader:  r,
		ring:    ring,
		parser:  parser,
		txnBuf:  txnBuf,
		buf:     outBuf,
		writer:  writer,
		encoder: encoder,
	}
}

// Run drives all stages until ctx is cancelled or the Reader reaches a
// terminal outcome, releasing committed transactions as they clear the
// watermark and handing their encoded Messages to the Writer.
func (p *Pipeline) Run(parent context.Context) error {
	var runCtx, cancel = context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-p.ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	var errs = make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		_, err := p.reader.Run(runCtx, 1)
		if err != nil {
			errs <- fmt.Errorf("pipeline: reader: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.parser.Run(runCtx); err != nil {
			errs <- fmt.Errorf("pipeline: parser: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.writer.Run(runCtx); err != nil {
			errs <- fmt.Errorf("pipeline: writer: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.releaseLoop(runCtx)
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// releaseLoop drains the transaction buffer's release watermark, encoding
// and enqueueing every transaction it frees. While no committed transaction
// is waiting it parks on the buffer's own condition variable, since Ingest
// already broadcasts on every commit and on Confirm/Close; while a committed
// transaction is held back by the watermark, the loop retries without
// waiting.
func (p *Pipeline) releaseLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.txnBuf.WaitCommitted(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		var watermark = p.txnBuf.OpenWatermark()
		if watermark == scn.Invalid {
			watermark = ^scn.Scn(0)
		}
		err := p.txnBuf.Release(watermark, func(t *txn.Transaction) error {
			msgs, err := p.encoder.Encode(t)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				if err := p.buf.Push(ctx, m); err != nil {
					return err
				}
			}
			if p.ctx.Metrics != nil {
				p.ctx.Metrics.OutputQueueDepth.Set(float64(p.buf.Depth()))
			}
			return nil
		})
		if err != nil {
			ops.Warnf(ops.Position{}, "pipeline: release loop error: %v", err)
			return
		}
	}
}
