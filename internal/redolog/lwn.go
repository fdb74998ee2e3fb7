package redolog

import (
	"container/heap"
	"fmt"

	"github.com/openlogreplicator/analyzer/internal/scn"
)

// maxRecordsInLwn bounds the sort heap the way the original's
// MAX_RECORDS_IN_LWN does — a pathological LWN larger than this is treated
// as BadData rather than allowed to grow the heap unbounded.
const maxRecordsInLwn = 1 << 16

// memoryChunkSizeMb is the original's MEMORY_CHUNK_SIZE expressed in
// megabytes; LWN arenas grow in units of this size.
const memoryChunkSizeMb = 4

// MaxLwnChunks implements the open policy spec.md §9 calls out explicitly
// ("the relationship between per-LWN memory and global memory budgets is
// not formally bounded in the source; pick an explicit policy and document
// it", recorded in DESIGN.md): a single LWN may consume at most a quarter
// of the configured memoryMaxMb, expressed in memoryChunkSizeMb units.
func MaxLwnChunks(memoryMaxMb int) int {
	var chunks = memoryMaxMb / memoryChunkSizeMb / 4
	if chunks < 1 {
		chunks = 1
	}
	return chunks
}

// member is one physical record pending LWN-order dispatch, keyed for the
// sort heap by (scn, subScn, block), tie-broken by offset — spec.md §4.2's
// "ties broken by block number then offset" plus subScn ahead of block.
type member struct {
	point  scn.Point
	block  uint32
	offset uint16
	record Vector
}

// lwnHeap is a min-heap of pending members ordered by (scn, subScn, block,
// offset), giving Oracle's logical dispatch order from its on-disk order.
type lwnHeap []member

func (h lwnHeap) Len() int { return len(h) }
func (h lwnHeap) Less(i, j int) bool {
	if h[i].point != h[j].point {
		return h[i].point.Less(h[j].point)
	}
	if h[i].block != h[j].block {
		return h[i].block < h[j].block
	}
	return h[i].offset < h[j].offset
}
func (h lwnHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *lwnHeap) Push(x interface{}) { *h = append(*h, x.(member)) }
func (h *lwnHeap) Pop() interface{} {
	var old = *h
	var n = len(old)
	var item = old[n-1]
	*h = old[:n-1]
	return item
}

// Lwn accumulates the members of one Log Write Number group between its
// opening 19.1 header and the next one, and yields them back in sorted
// dispatch order. It is the arena referred to throughout spec.md §3: every
// RedoLogRecord produced while draining an Lwn borrows from buffers that
// outlive the Lwn only by being copied into a transaction arena.
type Lwn struct {
	Scn       scn.Scn
	heap      lwnHeap
	maxChunks int
	chunks    int
	bytes     int
}

// NewLwn begins a new LWN group at scn, bounding its growth to maxChunks
// memoryChunkSizeMb-sized chunks (see MaxLwnChunks).
func NewLwn(at scn.Scn, maxChunks int) *Lwn {
	return &Lwn{Scn: at, maxChunks: maxChunks}
}

// Add enqueues one physical record's members for later sorted drain.
// Returns an error if the LWN has exceeded maxRecordsInLwn entries or its
// configured memory chunk budget — both map to spec.md §4.2's BadData
// ("malformed record length") failure mode, since a well-formed log never
// produces an LWN this large.
func (l *Lwn) Add(point scn.Point, block uint32, offset uint16, v Vector) error {
	if l.heap.Len() >= maxRecordsInLwn {
		return fmt.Errorf("redolog: LWN at scn=%s exceeds %d records", l.Scn, maxRecordsInLwn)
	}
	l.bytes += len(v.Data)
	l.chunks = (l.bytes + memoryChunkSizeMb*1024*1024 - 1) / (memoryChunkSizeMb * 1024 * 1024)
	if l.chunks > l.maxChunks && l.maxChunks > 0 {
		return fmt.Errorf("redolog: LWN at scn=%s exceeds memory budget of %d chunks", l.Scn, l.maxChunks)
	}
	heap.Push(&l.heap, member{point: point, block: block, offset: offset, record: v})
	return nil
}

// Len reports the number of members still pending drain.
func (l *Lwn) Len() int {
	return l.heap.Len()
}

// Drain pops members in (scn, subScn, block, offset) order, invoking fn for
// each. Draining empties the Lwn; it is not reusable afterward.
func (l *Lwn) Drain(fn func(point scn.Point, v Vector) error) error {
	for l.heap.Len() > 0 {
		var m = heap.Pop(&l.heap).(member)
		if err := fn(m.point, m.record); err != nil {
			return err
		}
	}
	return nil
}
