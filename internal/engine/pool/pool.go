// Package pool implements the index-pool order store (C2): a pre-allocated
// arena of order nodes addressed by generation-tagged handles, so externally
// published order ids can be checked for staleness without a map lookup.
//
// Grounded on the teacher's sync.Pool-based order pools
// (internal/hft/pools/order_pool.go, internal/common/pool/pool.go) but
// replaces the general-purpose sync.Pool with a fixed-capacity arena plus an
// integer free-list stack, because the spec requires O(1) acquire/release
// with no allocation on the hot path and a stable (index, generation)
// identity that sync.Pool cannot provide.
package pool

import (
	"errors"

	"github.com/quantedge/matchcore/internal/engine/types"
)

// ErrPoolExhausted is returned by Acquire when every slot is live.
var ErrPoolExhausted = errors.New("pool: exhausted")

// Pool is a single-consumer arena of types.Node slots. Acquire/Release run
// without locks or atomics: the shard worker is the pool's only caller, on
// both paths, so a single top-of-stack integer suffices.
type Pool struct {
	nodes    []types.Node
	freeList []uint32
	live     []bool
	top      int
}

// New allocates a pool with the given fixed capacity.
func New(capacity int) *Pool {
	p := &Pool{
		nodes:    make([]types.Node, capacity),
		freeList: make([]uint32, capacity),
		live:     make([]bool, capacity),
		top:      capacity,
	}
	for i := 0; i < capacity; i++ {
		p.nodes[i].Index = uint32(i)
		p.nodes[i].Generation = 0
		p.nodes[i].NextIdx = types.InvalidIndex
		p.nodes[i].PrevIdx = types.InvalidIndex
		p.freeList[i] = uint32(i)
	}
	return p
}

// Capacity returns the pool's fixed slot count.
func (p *Pool) Capacity() int { return len(p.nodes) }

// Acquire returns a fresh handle with its generation bumped and hot fields
// zeroed, or ErrPoolExhausted if no slot is free.
func (p *Pool) Acquire() (*types.Node, error) {
	if p.top <= 0 {
		return nil, ErrPoolExhausted
	}
	p.top--
	idx := p.freeList[p.top]
	node := &p.nodes[idx]
	node.Generation++
	node.Reset()
	p.live[idx] = true
	return node, nil
}

// Release returns a slot to the free list. Cold fields are left untouched;
// the next Acquire's caller must repopulate them. Release may only be
// called by the pool's single consumer.
func (p *Pool) Release(node *types.Node) {
	if p.top >= len(p.freeList) {
		return
	}
	p.live[node.Index] = false
	p.freeList[p.top] = node.Index
	p.top++
}

// Get returns the slot at index only if it is live (acquired and not yet
// released) and its generation matches gen — the stale-read guard used to
// validate externally-decoded order ids.
func (p *Pool) Get(index uint32, gen uint32) (*types.Node, bool) {
	if int(index) >= len(p.nodes) {
		return nil, false
	}
	node := &p.nodes[index]
	if !p.live[index] || node.Generation != gen {
		return nil, false
	}
	return node, true
}

