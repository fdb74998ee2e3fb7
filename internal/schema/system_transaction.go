package schema

import (
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/ops"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

// pendingOp is one buffered DML against a dictionary table, captured before
// commit so the whole batch can be applied atomically.
type pendingOp struct {
	rowId  RowId
	delete bool
	object *Object // nil for delete.
}

// SystemTransaction buffers DML against SYS.OBJ$/SYS.TAB$/SYS.COL$ and
// friends as it is decoded, and applies the whole batch to a Replica only
// at commit — grounded on original_source/src/SystemTransaction.h's
// processInsert/processUpdate/processDelete/commit(scn) shape. This gives
// spec.md §8 property 4: a reader of the replica never observes a
// partially-applied dictionary transaction.
type SystemTransaction struct {
	replica *Replica
	xid     scn.Xid
	ops     []pendingOp
}

// NewSystemTransaction begins buffering dictionary changes for xid against
// replica. Nothing is visible in replica until Commit.
func NewSystemTransaction(replica *Replica, xid scn.Xid) *SystemTransaction {
	return &SystemTransaction{replica: replica, xid: xid}
}

// ProcessInsert buffers the insertion of obj as rowId. A later ProcessDelete
// of the same rowId in this transaction wins at commit, matching Oracle's
// own per-row last-writer-within-transaction semantics.
func (s *SystemTransaction) ProcessInsert(rowId RowId, obj *Object) {
	obj.RowId = rowId
	s.ops = append(s.ops, pendingOp{rowId: rowId, object: obj})
}

// ProcessUpdate buffers an update of rowId to the new object image obj. The
// original records updates as delete-then-insert of the same row; this
// mirrors that by just replacing the pending image for rowId.
func (s *SystemTransaction) ProcessUpdate(rowId RowId, obj *Object) {
	obj.RowId = rowId
	s.ops = append(s.ops, pendingOp{rowId: rowId, object: obj})
}

// ProcessDelete buffers the removal of rowId.
func (s *SystemTransaction) ProcessDelete(rowId RowId) {
	s.ops = append(s.ops, pendingOp{rowId: rowId, delete: true})
}

// ProcessColumn merges one decoded SYS.COL$ row into the pending image of
// the object it describes, starting from an already-pending op in this
// transaction or the current replica entry if neither SYS.OBJ$ row nor an
// earlier SYS.COL$ row for obj has been seen yet this transaction.
func (s *SystemTransaction) ProcessColumn(obj uint32, col Column) {
	for i := len(s.ops) - 1; i >= 0; i-- {
		if !s.ops[i].delete && s.ops[i].object != nil && s.ops[i].object.Obj == obj {
			mergeColumn(s.ops[i].object, col)
			return
		}
	}

	var target *Object
	if existing, _, ok := s.replica.Get(obj); ok {
		var clone = *existing
		clone.Columns = append([]Column(nil), existing.Columns...)
		target = &clone
	} else {
		target = &Object{Obj: obj}
	}
	target.RowId = RowId(fmt.Sprintf("obj#%d", obj))
	mergeColumn(target, col)
	s.ops = append(s.ops, pendingOp{rowId: target.RowId, object: target})
}

func mergeColumn(o *Object, col Column) {
	for i, c := range o.Columns {
		if c.Number == col.Number {
			o.Columns[i] = col
			return
		}
	}
	o.Columns = append(o.Columns, col)
}

// Commit applies every buffered op to the replica as of scn, in the order
// recorded, then discards the buffer. A second Commit finds no buffered ops
// and applies nothing.
func (s *SystemTransaction) Commit(at scn.Scn) {
	if len(s.ops) == 0 {
		ops.Debugf("system transaction %s commit with no buffered ops at scn=%d", s.xid, at)
	}
	for _, op := range s.ops {
		if op.delete {
			s.replica.mu.Lock()
			s.replica.byObj.Remove(objNumberOf(s.replica, op.rowId))
			s.replica.mu.Unlock()
			continue
		}
		before, _, _ := s.replica.Get(op.object.Obj)
		s.replica.put(op.object, at)
		if before != nil {
			if patch, err := DiffObjects(before, op.object); err != nil {
				ops.Debugf("system transaction %s: diffing obj=%d: %v", s.xid, op.object.Obj, err)
			} else if len(patch) > 4 {
				ops.Debugf("system transaction %s: obj=%d changed: %s", s.xid, op.object.Obj, patch)
			}
		}
	}
	ops.Infof("applied system transaction %s: %d ops at scn=%d", s.xid, len(s.ops), at)
	s.ops = nil
}

// objNumberOf resolves a RowId to its cached Obj# so delete can evict by the
// LRU's actual key; the replica does not index by RowId directly since
// lookups during decode are keyed by Obj# (spec.md §4.5).
func objNumberOf(r *Replica, rowId RowId) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.byObj.Keys() {
		if o, ok := r.byObj.Peek(key); ok && o.RowId == rowId {
			return key
		}
	}
	return 0
}

// Rollback discards every buffered op without touching the replica,
// matching the original's handling of a rolled-back DDL transaction.
func (s *SystemTransaction) Rollback() {
	s.ops = nil
}

func (s *SystemTransaction) String() string {
	return fmt.Sprintf("systemTransaction(xid=%s, pending=%d)", s.xid, len(s.ops))
}
