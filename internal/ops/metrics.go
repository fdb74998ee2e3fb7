package ops

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the pipeline gauges an operator dashboards against:
// buffer occupancy, in-flight transaction memory, and output queue depth.
// One Metrics is shared across all stages of a single pipeline.Context.
type Metrics struct {
	ReaderBuffersFree prometheus.Gauge
	ParserLwnDepth    prometheus.Gauge
	TxnMemoryBytes    prometheus.Gauge
	TxnOpenCount      prometheus.Gauge
	OutputQueueDepth  prometheus.Gauge
	CheckpointScn     prometheus.Gauge
}

// NewMetrics constructs and registers a Metrics set under reg. Passing a
// fresh *prometheus.Registry per pipeline.Context (rather than the global
// default registry) keeps repeated test construction collision-free.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var m = &Metrics{
		ReaderBuffersFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olr_reader_buffers_free", Help: "Free slots in the reader ring buffer.",
		}),
		ParserLwnDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olr_parser_lwn_depth", Help: "Records buffered in the current LWN sort heap.",
		}),
		TxnMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olr_txn_memory_bytes", Help: "Bytes held by open transaction arenas.",
		}),
		TxnOpenCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olr_txn_open_count", Help: "Number of transactions currently buffered.",
		}),
		OutputQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olr_output_queue_depth", Help: "Messages queued in the output buffer awaiting confirm.",
		}),
		CheckpointScn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olr_checkpoint_scn", Help: "Last SCN written to the durable checkpoint.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ReaderBuffersFree, m.ParserLwnDepth, m.TxnMemoryBytes,
			m.TxnOpenCount, m.OutputQueueDepth, m.CheckpointScn,
		)
	}
	return m
}
