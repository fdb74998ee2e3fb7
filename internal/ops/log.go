// Package ops provides the structured logging and metrics surface shared by
// every pipeline stage, in the style of the teacher's go/ops and
// go/flowctl/logging.go: a small typed Log shape plus a package-level logrus
// logger configured once at process start.
package ops

import (
	log "github.com/sirupsen/logrus"
)

// LogConfig configures handling of application log events, mirroring the
// teacher's flowctl LogConfig: level and format are independently tunable,
// with a "color" format added for interactive terminals.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// Init installs cfg as the process-wide logrus configuration.
func Init(cfg LogConfig) {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}

	if lvl, err := log.ParseLevel(cfg.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
}

// Position carries the decode coordinates every warning or fatal log line
// should be tagged with, matching spec.md §7's {kind, scn, sequence, block,
// offset} user-visible error shape.
type Position struct {
	Sequence uint32
	Block    uint32
	Offset   uint16
	Scn      uint64
	Xid      string
}

// Fields renders a Position as logrus.Fields for WithFields.
func (p Position) Fields() log.Fields {
	return log.Fields{
		"sequence": p.Sequence,
		"block":    p.Block,
		"offset":   p.Offset,
		"scn":      p.Scn,
		"xid":      p.Xid,
	}
}

// Warnf logs a non-fatal decode warning (unknown opcode, bad character,
// etc.) tagged with its position. Warnings never stop the pipeline.
func Warnf(pos Position, format string, args ...interface{}) {
	log.WithFields(pos.Fields()).Warnf(format, args...)
}

// Fatal logs the single fatal condition the pipeline may ever raise and
// is expected to be followed by process exit by the caller.
func Fatal(kind string, pos Position, err error) {
	log.WithFields(pos.Fields()).WithField("kind", kind).WithError(err).Error("fatal pipeline error")
}

// Infof logs routine pipeline progress (state transitions, checkpoint
// writes) at Info level.
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Debugf logs fine-grained trace information, gated by log level the same
// way the teacher gates `flow-parser --log debug`.
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}
