// Package block implements the bounded ring buffer of redo blocks that
// sits between a Reader and the Parser, plus a recycled free-list of block
// buffers. It mirrors the bounded-channel fan-out idiom of the teacher's
// go/shuffle/ring.go, adapted from a pub-sub ring of message channels to a
// single-producer/single-consumer ring of fixed-size byte buffers.
package block

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Block is one validated, fixed-size redo block. Number is the 1-based
// block number within its log file. Data is borrowed from a Reader-owned
// buffer and must not be retained past the caller's processing of the
// current LWN (see spec.md §3 Ownership).
type Block struct {
	Number uint32
	Data   []byte
}

// Pool recycles block-sized byte slices so steady-state operation performs
// no further allocation once warmed up. Keyed by size class, the way a
// production pool would serve both 512 and 4096 byte block sizes from the
// same reader generation.
type Pool struct {
	size  int
	cache *lru.Cache[int, [][]byte]
	mu    sync.Mutex
}

// NewPool returns a Pool that recycles buffers of exactly size bytes, with
// at most capacity live size classes cached (in practice there is one size
// class per open log, so a small capacity suffices).
func NewPool(size, capacity int) *Pool {
	var c, _ = lru.New[int, [][]byte](capacity)
	return &Pool{size: size, cache: c}
}

// Get returns a buffer of Pool's block size, reused from the free list if
// one is available.
func (p *Pool) Get() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if free, ok := p.cache.Get(p.size); ok && len(free) > 0 {
		var buf = free[len(free)-1]
		p.cache.Add(p.size, free[:len(free)-1])
		return buf
	}
	return make([]byte, p.size)
}

// Put returns buf to the free list. buf must have been obtained from Get
// and must not be used again by the caller.
func (p *Pool) Put(buf []byte) {
	if len(buf) != p.size {
		return // Foreign-sized buffer; drop it rather than corrupt the pool.
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	free, _ := p.cache.Get(p.size)
	p.cache.Add(p.size, append(free, buf))
}

// Ring is a bounded, single-producer single-consumer ring buffer of Blocks.
// The Reader is the sole producer; the Parser is the sole consumer. Ring
// never blocks the producer past Capacity slots, giving the Reader
// backpressure exactly as spec.md §5 requires ("buffersFree drives
// backpressure").
type Ring struct {
	capacity int
	ch       chan Block
}

// NewRing constructs a Ring holding at most capacity blocks.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{capacity: capacity, ch: make(chan Block, capacity)}
}

// Free reports the number of additional blocks the Ring can currently hold
// without blocking a Push.
func (r *Ring) Free() int {
	return r.capacity - len(r.ch)
}

// Push enqueues b, blocking until a slot is free or ctx is cancelled.
func (r *Ring) Push(ctx context.Context, b Block) error {
	select {
	case r.ch <- b:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("block ring push: %w", ctx.Err())
	}
}

// Pop dequeues the next Block, blocking until one is available or ctx is
// cancelled. Once the ring is closed and drained, Pop returns an error.
func (r *Ring) Pop(ctx context.Context) (Block, error) {
	select {
	case b, ok := <-r.ch:
		if !ok {
			return Block{}, fmt.Errorf("block ring pop: ring closed")
		}
		return b, nil
	case <-ctx.Done():
		return Block{}, fmt.Errorf("block ring pop: %w", ctx.Err())
	}
}

// Close signals no further blocks will be pushed; once the remaining blocks
// are drained, Pop returns an error and TryPop returns ok=false, mirroring
// channel close semantics used throughout the teacher's consumer package.
func (r *Ring) Close() {
	close(r.ch)
}

// TryPop performs a non-blocking dequeue, returning ok=false if the ring is
// both empty and closed.
func (r *Ring) TryPop() (b Block, ok bool) {
	select {
	case b, ok = <-r.ch:
		return b, ok
	default:
		return Block{}, true
	}
}
