// Package schema maintains the decode-time replica of Oracle's data
// dictionary described in spec.md §4.5: SYS.OBJ$/SYS.TAB$/SYS.COL$ and
// friends, keyed by RowId, with updates applied atomically at
// SystemTransaction commit.
package schema

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

// RowId is Oracle's physical row identifier, used as the dictionary's
// primary key the way the original keys every Sys* table by RowId.
type RowId string

// ObjType enumerates SYS.OBJ$.TYPE# values, grounded on
// original_source/src/SysObj.h's SYSOBJ_TYPE_* constants.
type ObjType int

const (
	ObjTypeNextObject       ObjType = 0
	ObjTypeIndex            ObjType = 1
	ObjTypeTable            ObjType = 2
	ObjTypeCluster          ObjType = 3
	ObjTypeView             ObjType = 4
	ObjTypeSynonym          ObjType = 5
	ObjTypeSequence         ObjType = 6
	ObjTypeProcedure        ObjType = 7
	ObjTypeFunction         ObjType = 8
	ObjTypePackage          ObjType = 9
	ObjTypeNonExistent      ObjType = 10
	ObjTypePackageBody      ObjType = 11
	ObjTypeTrigger          ObjType = 12
	ObjTypeType             ObjType = 13
	ObjTypeTypeBody         ObjType = 14
	ObjTypeMaterializedView ObjType = 42
)

// Flag bit positions within Object.Flags, matching the original's use of
// the OBJ$.FLAGS column to mark temporary and dropped objects.
const (
	objFlagTemporary uint = 0
	objFlagDropped   uint = 1
)

// Column describes one SYS.COL$ row for a table.
type Column struct {
	Name     string
	Number   int
	TypeCode int
	Length   int
	Nullable bool
	CharsetID int
}

// Object is the replicated, decode-ready form of one SYS.OBJ$/SYS.TAB$
// pair: enough to name columns and interpret row bytes, per spec.md §4.5.
type Object struct {
	RowId   RowId
	Owner   uint32
	Obj     uint32
	DataObj uint32
	Type    ObjType
	Name    string
	Flags   Flags256
	Columns []Column
	Single  bool
	Touched bool
	Saved   bool
}

// IsTable reports whether the object is a relational table.
func (o *Object) IsTable() bool {
	return o.Type == ObjTypeTable
}

// IsTemporary reports whether the object is a temporary table, per the
// original's SysObj::isTemporary.
func (o *Object) IsTemporary() bool {
	return o.Flags.HasBit(objFlagTemporary)
}

// IsDropped reports whether the object has been marked dropped but not yet
// purged, per the original's SysObj::isDropped.
func (o *Object) IsDropped() bool {
	return o.Flags.HasBit(objFlagDropped)
}

// ColumnByNumber returns the column at 1-based position n, or false if out
// of range — DML opcodes index columns this way (spec.md §4.3).
func (o *Object) ColumnByNumber(n int) (Column, bool) {
	for _, c := range o.Columns {
		if c.Number == n {
			return c, true
		}
	}
	return Column{}, false
}

// Replica is the live, read-mostly dictionary replica shared across parser
// goroutines. Updates happen only during SystemTransaction commit, with
// exclusive replacement of affected entries (spec.md §3 Ownership).
// The bounded LRU cache of decoded Objects keyed by obj# mirrors the
// teacher's use of github.com/hashicorp/golang-lru/v2 for bounded,
// read-mostly caches (SPEC_FULL.md §B).
type Replica struct {
	mu      sync.RWMutex
	byObj   *lru.Cache[uint32, *Object]
	version scn.Scn // Scn of the most recent applied SystemTransaction commit.
}

// NewReplica constructs a Replica caching up to capacity decoded objects.
func NewReplica(capacity int) *Replica {
	c, _ := lru.New[uint32, *Object](capacity)
	return &Replica{byObj: c}
}

// Get returns the Object for obj#, and the Scn at which the replica was
// last updated — callers use this Scn to decide whether their own read is
// stale relative to an in-flight SystemTransaction (spec.md §8 property 4).
func (r *Replica) Get(obj uint32) (*Object, scn.Scn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byObj.Get(obj)
	return o, r.version, ok
}

// Put installs or replaces the Object for its Obj#, advancing the
// replica's version. Called only from SystemTransaction.Commit.
func (r *Replica) put(o *Object, at scn.Scn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byObj.Add(o.Obj, o)
	if at > r.version {
		r.version = at
	}
}

// Bootstrap seeds the replica from rows fetched via the external Dictionary
// collaborator at startup (spec.md §4.5 "Bootstrap"). Safe to call only
// before the pipeline begins consuming redo.
func (r *Replica) Bootstrap(objects []*Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range objects {
		r.byObj.Add(o.Obj, o)
	}
}

func (o *Object) String() string {
	return fmt.Sprintf("obj#%d(%s)", o.Obj, o.Name)
}
