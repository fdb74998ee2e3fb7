// Package checkpoint implements the CheckpointRecord and StateStore of
// spec.md §6: the durable {database, scn, resetlogs, activation} record a
// restarted pipeline resumes from, and the two anticipated StateStore
// backends (a file-per-name directory and a redis-like KV).
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

// Record is the on-disk/on-KV shape of a checkpoint, stored under key
// "<database>-chkpt" per spec.md §6.
type Record struct {
	Database   string  `json:"database"`
	Scn        scn.Scn `json:"scn"`
	Resetlogs  uint32  `json:"resetlogs"`
	Activation uint32  `json:"activation"`
}

// Key returns the state store key this Record is written under.
func (r Record) Key() string {
	return r.Database + "-chkpt"
}

func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal decodes a Record from its stored JSON form.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("checkpoint: decoding record: %w", err)
	}
	return r, nil
}

// StateStore is the external persistence contract spec.md §6 names:
// list known keys, read one (bounded by maxSize), write one, or drop one.
type StateStore interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string, maxSize int) ([]byte, bool, error)
	Write(ctx context.Context, name string, data []byte) error
	Drop(ctx context.Context, name string) error
}

// Load reads and decodes the checkpoint for database from store, returning
// (Record{}, false, nil) if none has ever been written.
func Load(ctx context.Context, store StateStore, database string) (Record, bool, error) {
	var key = Record{Database: database}.Key()
	data, ok, err := store.Read(ctx, key, 1<<20)
	if err != nil || !ok {
		return Record{}, false, err
	}
	r, err := Unmarshal(data)
	return r, err == nil, err
}

// Save writes r to store under its key.
func Save(ctx context.Context, store StateStore, r Record) error {
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("checkpoint: encoding record: %w", err)
	}
	return store.Write(ctx, r.Key(), data)
}
