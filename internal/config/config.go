// Package config defines the recognized Config options from spec.md §6.
// Concrete flag parsing and the process entry point are external to the
// core per spec.md §1; cmd/analyzerd demonstrates parsing this struct with
// github.com/jessevdk/go-flags, the way the teacher's
// go/runtime.FlowConsumerConfig is parsed by go/flowctl/main.go.
package config

import (
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/ops"
)

// Disable-checks bitmask flags. The source left the bit assignments
// implementation-defined (spec.md §9 Open Questions); these are the three
// named checks spec.md §6 calls out in prose.
const (
	DisableChecksGrants           uint32 = 1 << 0
	DisableChecksSupplementalLog  uint32 = 1 << 1
	DisableChecksBlockSum         uint32 = 1 << 2
)

// StartMode selects which of the four choose-one start options is active.
type StartMode int

const (
	StartUnset StartMode = iota
	StartScn
	StartSequence
	StartTime
	StartTimeRel
)

// Config is the full set of recognized options from spec.md §6.
type Config struct {
	Database string `long:"database" required:"true" env:"DATABASE" description:"Logical name of the source database; used as the checkpoint key prefix"`

	MemoryMinMb int `long:"memory-min-mb" default:"64" env:"MEMORY_MIN_MB" description:"Floor of the transaction-buffer memory budget"`
	MemoryMaxMb int `long:"memory-max-mb" default:"512" env:"MEMORY_MAX_MB" description:"Ceiling of the transaction-buffer memory budget; Ingest blocks while usage is at the ceiling, and no fatal error is raised"`

	ReadBufferMax int `long:"read-buffer-max" default:"64" env:"READ_BUFFER_MAX" description:"Number of chunks in the reader ring buffer"`

	CheckpointIntervalS int `long:"checkpoint-interval-s" default:"10" env:"CHECKPOINT_INTERVAL_S" description:"Seconds between durable checkpoint writes; no component in this module reads it"`
	PollIntervalUs      int `long:"poll-interval-us" default:"100000" env:"POLL_INTERVAL_US" description:"Reader sleep interval while waiting for an online redo log to grow; the Writer does not use it"`
	QueueSize           int `long:"queue-size" default:"4096" env:"QUEUE_SIZE" description:"Capacity of the output queue between transaction release and the Writer"`
	MaxMessageMb        int `long:"max-message-mb" default:"32" env:"MAX_MESSAGE_MB" description:"Largest single encoded message size; the output buffer does not check it"`

	DumpRedoLog  int  `long:"dump-redo-log" default:"0" choice:"0" choice:"1" choice:"2" choice:"3" description:"Diagnostic redo dump verbosity"`
	DumpRawData  bool `long:"dump-raw-data" description:"Include raw undecoded bytes in diagnostic dumps"`
	DisableChecks uint32 `long:"disable-checks" default:"0" description:"Bitmask of checks to skip: 1=grants 2=supplemental-log 4=block-sum"`

	StartScn     uint64 `long:"start-scn" description:"Begin reading at this SCN (choose-one with start-sequence/start-time/start-time-rel)"`
	StartSequence uint32 `long:"start-sequence" description:"Begin reading at this log sequence number"`
	StartTime    string `long:"start-time" description:"Begin reading at this absolute timestamp (RFC3339)"`
	StartTimeRel string `long:"start-time-rel" description:"Begin reading this duration before now (e.g. '1h')"`

	CharacterSet string `long:"character-set" default:"AL32UTF8" env:"CHARACTER_SET" description:"Oracle character set of CHAR/VARCHAR2 columns"`

	ops.LogConfig
}

// DisableCheck reports whether the named check bit is set.
func (c Config) DisableCheck(bit uint32) bool {
	return c.DisableChecks&bit != 0
}

// StartMode returns which of the choose-one start options is populated, and
// errors if more than one is set.
func (c Config) StartMode() (StartMode, error) {
	var set []StartMode
	if c.StartScn != 0 {
		set = append(set, StartScn)
	}
	if c.StartSequence != 0 {
		set = append(set, StartSequence)
	}
	if c.StartTime != "" {
		set = append(set, StartTime)
	}
	if c.StartTimeRel != "" {
		set = append(set, StartTimeRel)
	}
	if len(set) > 1 {
		return StartUnset, fmt.Errorf("config: at most one of start-scn/start-sequence/start-time/start-time-rel may be set, got %d", len(set))
	}
	if len(set) == 0 {
		return StartUnset, nil
	}
	return set[0], nil
}

// Validate fails fast on configuration errors, per spec.md §7's
// "Configuration — fail fast at startup" error kind.
func (c Config) Validate() error {
	if c.MemoryMinMb <= 0 || c.MemoryMaxMb <= 0 {
		return fmt.Errorf("config: memory-min-mb and memory-max-mb must be positive")
	}
	if c.MemoryMinMb > c.MemoryMaxMb {
		return fmt.Errorf("config: memory-min-mb (%d) must not exceed memory-max-mb (%d)", c.MemoryMinMb, c.MemoryMaxMb)
	}
	if c.ReadBufferMax <= 0 {
		return fmt.Errorf("config: read-buffer-max must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("config: queue-size must be positive")
	}
	if _, err := c.StartMode(); err != nil {
		return err
	}
	return nil
}
