// Package dictionary implements the Dictionary collaborator of spec.md
// §4.5/§6: the external source of truth for log file inventory, SCN/time
// translation, and SYS.* table snapshots used to bootstrap internal/schema.
//
// The client shape follows the teacher's go/connector package — a thin
// wrapper invoking a remote service and decoding its response into typed
// Go values — adapted from wrapping a subprocess connector to wrapping a
// gRPC service, since a dictionary lookup here is a pure request/response
// call rather than a streamed connector protocol.
package dictionary

import (
	"context"
	"time"

	"github.com/openlogreplicator/analyzer/internal/schema"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

// LogFile describes one archived or online redo log as reported by the
// Dictionary, enough for the Reader to open and validate it (spec.md §4.1).
type LogFile struct {
	Sequence   uint32
	Name       string
	FirstScn   scn.Scn
	NextScn    scn.Scn
	Resetlogs  uint32
	Activation uint32
}

// Client is the Dictionary collaborator contract spec.md §4.5 and §6 name:
// list known log files, translate between SCN/sequence/time, and fetch a
// snapshot of one SYS table for bootstrap.
type Client interface {
	ListLogFiles(ctx context.Context) ([]LogFile, error)
	ScnFromTime(ctx context.Context, at time.Time) (scn.Scn, error)
	SequenceFromScn(ctx context.Context, at scn.Scn) (uint32, error)
	FetchSysTable(ctx context.Context, table string) ([]*schema.Object, error)
}
