// Package dump implements the dumpRedoLog/dumpRawData diagnostic printer
// spec.md §6's configuration names (dumpRedoLog∈{0..3}, dumpRawData∈{0,1})
// imply: an operator-facing trace of decoded records and, optionally, the
// raw bytes behind them.
package dump

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/openlogreplicator/analyzer/internal/redolog"
)

// Level controls dumpRedoLog verbosity: 0 disables dumping entirely, 1
// prints one line per record, 2 additionally prints vector fields, 3
// additionally prints raw row bytes.
type Level int

const (
	LevelOff Level = iota
	LevelRecord
	LevelFields
	LevelRaw
)

// Dumper prints decoded records to w for interactive diagnosis, colorizing
// by Kind the way operator-facing CLI output does throughout the teacher's
// stack.
type Dumper struct {
	w        io.Writer
	level    Level
	rawBytes bool
}

// NewDumper returns a Dumper writing to w at level, optionally also
// printing raw row bytes when rawBytes is set (dumpRawData).
func NewDumper(w io.Writer, level Level, rawBytes bool) *Dumper {
	return &Dumper{w: w, level: level, rawBytes: rawBytes}
}

var kindColor = map[redolog.Kind]*color.Color{
	redolog.KindInsert:      color.New(color.FgGreen),
	redolog.KindUpdate:      color.New(color.FgYellow),
	redolog.KindDelete:      color.New(color.FgRed),
	redolog.KindCommit:      color.New(color.FgCyan),
	redolog.KindRollback:    color.New(color.FgMagenta),
	redolog.KindDDLMarker:   color.New(color.FgBlue),
	redolog.KindMultiInsert: color.New(color.FgGreen),
	redolog.KindMultiDelete: color.New(color.FgRed),
}

func kindName(k redolog.Kind) string {
	switch k {
	case redolog.KindUndo:
		return "UNDO"
	case redolog.KindXidBegin:
		return "XID_BEGIN"
	case redolog.KindCommit:
		return "COMMIT"
	case redolog.KindRollback:
		return "ROLLBACK"
	case redolog.KindPartialRollback:
		return "PARTIAL_ROLLBACK"
	case redolog.KindRollbackMarker:
		return "ROLLBACK_MARKER"
	case redolog.KindSessionInfo:
		return "SESSION_INFO"
	case redolog.KindDDLMarker:
		return "DDL_MARKER"
	case redolog.KindInsert:
		return "INSERT"
	case redolog.KindDelete:
		return "DELETE"
	case redolog.KindUpdate:
		return "UPDATE"
	case redolog.KindMultiInsert:
		return "MULTI_INSERT"
	case redolog.KindMultiDelete:
		return "MULTI_DELETE"
	case redolog.KindDDLText:
		return "DDL_TEXT"
	default:
		return "UNKNOWN"
	}
}

// Record prints one decoded RedoLogRecord, honoring the configured Level.
func (d *Dumper) Record(rec redolog.RedoLogRecord) {
	if d.level == LevelOff {
		return
	}
	var c, ok = kindColor[rec.Kind]
	var name = kindName(rec.Kind)
	if ok {
		c.Fprintf(d.w, "[%s] scn=%s xid=%s obj=%d dba=%s\n", name, rec.Point, rec.Xid, rec.Obj, rec.Dba)
	} else {
		fmt.Fprintf(d.w, "[%s] scn=%s xid=%s obj=%d dba=%s\n", name, rec.Point, rec.Xid, rec.Obj, rec.Dba)
	}

	if d.level < LevelFields {
		return
	}
	fmt.Fprintf(d.w, "    nullsDelta=%x colNums=%x\n", rec.NullsDelta, rec.ColNums)

	if d.level < LevelRaw && !d.rawBytes {
		return
	}
	fmt.Fprintf(d.w, "    rowData=%x\n", rec.RowData)
}
