// Package segtree implements the price-level population index (C4): a
// segment tree over price ticks that answers "first non-empty tick in
// [lo,hi]" in O(log N), so the crossing loop never scans empty levels.
//
// Grounded on include/hft/segment_tree.h's leaf/population layout. The
// find_first descent there does not correctly bound its search to an
// arbitrary [lo,hi] range (it only special-cases whole-tree queries); this
// port replaces it with the standard three-way split (fully outside, fully
// inside, overlapping) so ranged queries return the correct tie-broken
// smallest index.
package segtree

// Tree is a fixed-size population segment tree over tick indices
// [0, size). A leaf's value is the population (resting order count) of its
// tick, never quantity — the spec requires population so depth, not
// notional, drives the "is this level worth visiting" decision.
type Tree struct {
	size int
	tree []int32 // 1-indexed, tree[1] covers [0, size)
}

// New builds a zeroed tree over size ticks.
func New(size int) *Tree {
	return &Tree{
		size: size,
		tree: make([]int32, 2*nextPow2(size)),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p == 0 {
		p = 1
	}
	return p
}

// Add adjusts tick's population by delta (positive on insert, negative on
// removal) and propagates the change to every ancestor.
func (t *Tree) Add(tick int, delta int32) {
	n := len(t.tree) / 2
	i := tick + n
	t.tree[i] += delta
	for i > 1 {
		i >>= 1
		t.tree[i] = t.tree[2*i] + t.tree[2*i+1]
	}
}

// Population returns tick's current population.
func (t *Tree) Population(tick int) int32 {
	n := len(t.tree) / 2
	return t.tree[tick+n]
}

// FindFirst returns the smallest tick in [lo,hi] with nonzero population,
// and false if every tick in that range is empty.
func (t *Tree) FindFirst(lo, hi int) (int, bool) {
	n := len(t.tree) / 2
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		return 0, false
	}
	return t.findFirst(1, 0, n-1, lo, hi)
}

func (t *Tree) findFirst(node, segLo, segHi, lo, hi int) (int, bool) {
	if segHi < lo || segLo > hi || t.tree[node] == 0 {
		return 0, false
	}
	if segLo == segHi {
		return segLo, true
	}
	mid := (segLo + segHi) / 2
	if idx, ok := t.findFirst(2*node, segLo, mid, lo, hi); ok {
		return idx, true
	}
	return t.findFirst(2*node+1, mid+1, segHi, lo, hi)
}

// Any reports whether any tick in [lo,hi] has nonzero population.
func (t *Tree) Any(lo, hi int) bool {
	_, ok := t.FindFirst(lo, hi)
	return ok
}

// FindLast returns the largest tick in [lo,hi] with nonzero population, used
// by the bid side's descending search.
func (t *Tree) FindLast(lo, hi int) (int, bool) {
	n := len(t.tree) / 2
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		return 0, false
	}
	return t.findLast(1, 0, n-1, lo, hi)
}

func (t *Tree) findLast(node, segLo, segHi, lo, hi int) (int, bool) {
	if segHi < lo || segLo > hi || t.tree[node] == 0 {
		return 0, false
	}
	if segLo == segHi {
		return segLo, true
	}
	mid := (segLo + segHi) / 2
	if idx, ok := t.findLast(2*node+1, mid+1, segHi, lo, hi); ok {
		return idx, true
	}
	return t.findLast(2*node, segLo, mid, lo, hi)
}

// Size returns the number of addressable tick slots.
func (t *Tree) Size() int { return t.size }
