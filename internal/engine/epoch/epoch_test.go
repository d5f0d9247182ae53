package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantedge/matchcore/internal/engine/types"
)

func TestDeferredNodeReclaimedOnceEpochAdvancesPastReaders(t *testing.T) {
	var reclaimed []*types.Node
	m := NewManager(func(n *types.Node) { reclaimed = append(reclaimed, n) })

	reader := m.Register()
	m.Enter(reader)

	node := &types.Node{Index: 1}
	gen := m.Advance()
	m.Defer(node, gen)

	// Reader is still in a critical section observing an epoch at or
	// before gen, so reclamation must not happen yet.
	m.TryReclaim()
	require.Empty(t, reclaimed)

	m.Exit(reader)
	m.Advance()
	m.TryReclaim()
	require.Equal(t, []*types.Node{node}, reclaimed)
}

func TestNoReadersReclaimsOnceEpochMovesPastGeneration(t *testing.T) {
	var reclaimed []*types.Node
	m := NewManager(func(n *types.Node) { reclaimed = append(reclaimed, n) })

	node := &types.Node{Index: 2}
	gen := m.Advance()
	m.Defer(node, gen)

	// No readers at all, but the global epoch has not yet moved past gen,
	// so reclamation must still wait for the strictly-greater invariant.
	m.TryReclaim()
	require.Empty(t, reclaimed)

	m.Advance()
	n := m.TryReclaim()
	require.Equal(t, 1, n)
	require.Equal(t, []*types.Node{node}, reclaimed)
}

func TestDeferEagerlyReclaimsPastThreshold(t *testing.T) {
	var count int
	m := NewManager(func(*types.Node) { count++ })
	m.Advance() // global epoch now ahead of every deferred generation below

	for i := 0; i < ReclaimThreshold+10; i++ {
		m.Defer(&types.Node{Index: uint32(i)}, 0)
	}

	require.Greater(t, count, 0, "exceeding the batch threshold should have triggered reclamation")
	require.Less(t, m.Pending(), ReclaimThreshold+10)
}
