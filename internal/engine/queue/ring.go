// Package queue implements the command queue (C8): a bounded single-
// producer single-consumer ring buffer carrying types.Command values from
// order-entry producers to one shard worker.
//
// Grounded on include/hft/lockfree_queue.h's sequence-numbered slot design,
// specialized down from its general MPMC form to the SPSC case the
// specification actually requires: with exactly one producer and one
// consumer the CAS retry loops on head_/tail_ are unnecessary — a plain
// atomic load/store pair on each side is sufficient and removes the
// contention the source pays for generality it does not need here.
package queue

import (
	"sync/atomic"

	"github.com/quantedge/matchcore/internal/engine/types"
)

// Ring is a fixed-capacity SPSC ring buffer of types.Command. Capacity must
// be a power of two; New rounds up if it is not.
type Ring struct {
	mask uint64
	buf  []ringSlot

	_    [56]byte // pad to avoid false sharing between head and tail
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte
}

type ringSlot struct {
	sequence atomic.Uint64
	cmd      types.Command
}

// New builds a ring with at least the requested capacity.
func New(capacity int) *Ring {
	n := uint64(1)
	for n < uint64(capacity) {
		n <<= 1
	}
	r := &Ring{
		mask: n - 1,
		buf:  make([]ringSlot, n),
	}
	for i := range r.buf {
		r.buf[i].sequence.Store(uint64(i))
	}
	return r
}

// Capacity returns the ring's fixed slot count.
func (r *Ring) Capacity() int { return len(r.buf) }

// TryPush enqueues cmd, returning false if the ring is full. Only the
// single producer goroutine may call this.
func (r *Ring) TryPush(cmd types.Command) bool {
	head := r.head.Load()
	slot := &r.buf[head&r.mask]
	if slot.sequence.Load() != head {
		return false
	}
	slot.cmd = cmd
	slot.sequence.Store(head + 1)
	r.head.Store(head + 1)
	return true
}

// TryPop dequeues the next command, returning false if the ring is empty.
// Only the single consumer goroutine may call this.
func (r *Ring) TryPop() (types.Command, bool) {
	tail := r.tail.Load()
	slot := &r.buf[tail&r.mask]
	if slot.sequence.Load() != tail+1 {
		return types.Command{}, false
	}
	cmd := slot.cmd
	slot.sequence.Store(tail + r.mask + 1)
	r.tail.Store(tail + 1)
	return cmd, true
}

// PopBatch drains up to len(out) commands into out, returning the count
// actually popped. The shard worker uses this to amortize its dequeue loop
// over a small batch (4-16 commands) per iteration.
func (r *Ring) PopBatch(out []types.Command) int {
	n := 0
	for n < len(out) {
		cmd, ok := r.TryPop()
		if !ok {
			break
		}
		out[n] = cmd
		n++
	}
	return n
}

// Len returns an approximate occupied-slot count, safe to call from either
// side for monitoring purposes only.
func (r *Ring) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(head - tail)
}
